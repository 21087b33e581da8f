// Package keystore defines the storage contract the lifecycle manager and the
// message service depend on. The backing implementation lives in
// internal/keystore; it models a remote document database with durable
// single-document reads and writes and no multi-document transactions.
package keystore

import (
	"context"

	"github.com/sealchat/sealchat/pkg/types"
)

// KeyStore persists the per-(conversation, participant) key records. Public
// keys are readable by any authenticated conversation member; sealed private
// keys only by their owner. Absence is reported as a chaterr.KindKeyNotFound
// error, backend rejection as chaterr.KindAuthorizationDenied; the two demand
// different remediations and must never be conflated.
type KeyStore interface {
	// PutPublicKey upserts the plaintext public key record. Idempotent.
	PutPublicKey(ctx context.Context, conv types.ConversationID, participant types.ParticipantID, payload string) error

	// GetPublicKey returns the stored public key payload.
	GetPublicKey(ctx context.Context, conv types.ConversationID, participant types.ParticipantID) (string, error)

	// PutSealedPrivateKey upserts the owner's sealed private key blob.
	PutSealedPrivateKey(ctx context.Context, conv types.ConversationID, participant types.ParticipantID, blob string) error

	// GetSealedPrivateKey returns the stored sealed blob.
	GetSealedPrivateKey(ctx context.Context, conv types.ConversationID, participant types.ParticipantID) (string, error)

	// HasKeys reports whether both the public and the sealed private record
	// exist. It is the provisioning gate.
	HasKeys(ctx context.Context, conv types.ConversationID, participant types.ParticipantID) (bool, error)

	// ListParticipantsWithKeys returns every participant that has a public
	// key record in the conversation.
	ListParticipantsWithKeys(ctx context.Context, conv types.ConversationID) ([]types.ParticipantID, error)

	// DeleteKeys removes both records. Best effort; absence is not an error.
	DeleteKeys(ctx context.Context, conv types.ConversationID, participant types.ParticipantID) error

	// WatchKeys subscribes to key-record changes in the conversation. The
	// returned watch must be cancelled when the conversation view goes away.
	WatchKeys(ctx context.Context, conv types.ConversationID) (*Watch, error)
}

// ConversationStore persists the conversation documents and the
// participant-to-conversation index the re-sealing sweep iterates.
type ConversationStore interface {
	// CreateConversation creates the conversation record. Last-writer-wins
	// and idempotent: a racing second create writes value-identical content.
	CreateConversation(ctx context.Context, conv types.ConversationID, a, b types.ParticipantID) error

	// GetConversation returns the conversation record.
	GetConversation(ctx context.Context, conv types.ConversationID) (types.ConversationRecord, error)

	// ListConversations returns every conversation the participant belongs to.
	ListConversations(ctx context.Context, participant types.ParticipantID) ([]types.ConversationID, error)
}

// MessageStore persists the encrypted message documents of a conversation.
type MessageStore interface {
	// AppendMessage stores the message and assigns the server-side
	// monotonically increasing timestamp. The assigned record is returned.
	AppendMessage(ctx context.Context, rec types.MessageRecord) (types.MessageRecord, error)

	// ListMessages returns up to limit messages in timestamp order.
	// limit <= 0 means no limit.
	ListMessages(ctx context.Context, conv types.ConversationID, limit int) ([]types.MessageRecord, error)

	// GetMessage returns one message by its document ID.
	GetMessage(ctx context.Context, conv types.ConversationID, msgID string) (types.MessageRecord, error)

	// MarkRead flips the read flag on one message.
	MarkRead(ctx context.Context, conv types.ConversationID, msgID string) error

	// DeleteMessage removes one message. Absence is not an error.
	DeleteMessage(ctx context.Context, conv types.ConversationID, msgID string) error

	// UnreadCount counts messages addressed to the participant that are
	// still unread.
	UnreadCount(ctx context.Context, conv types.ConversationID, participant types.ParticipantID) (int, error)

	// WatchMessages subscribes to message changes in the conversation.
	WatchMessages(ctx context.Context, conv types.ConversationID) (*Watch, error)
}

// Store is the full surface the facade wires together.
type Store interface {
	KeyStore
	ConversationStore
	MessageStore
}
