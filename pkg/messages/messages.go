// Package messages is the conversation-level message service. It composes the
// key lifecycle with the dual-ciphertext message cipher: Send seals one
// plaintext twice, History and Subscribe pick the envelope that matches the
// reader's role and fall back to sentinel text when decryption is impossible.
package messages

import (
	"context"
	"crypto/ecdh"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/sealchat/sealchat/pkg/chaterr"
	"github.com/sealchat/sealchat/pkg/keystore"
	"github.com/sealchat/sealchat/pkg/lifecycle"
	"github.com/sealchat/sealchat/pkg/msgcipher"
	"github.com/sealchat/sealchat/pkg/types"
)

// ErrConversationNotReady is returned by Send while the counterpart has not
// provisioned their key pair yet. Sending is gated here, outside the cipher.
var ErrConversationNotReady = errors.New("conversation keys are not fully provisioned")

// Config carries the service dependencies.
type Config struct {
	// Store is the backing document store. Required.
	Store keystore.Store
	// Lifecycle manages the per-conversation key pairs. Required.
	Lifecycle *lifecycle.Manager
	// Logger is an optional structured logger. If nil, a stderr logger is used.
	Logger *slog.Logger
}

// Service sends and reads encrypted messages. Construct one per client and
// open a Session per (conversation, participant) view.
type Service struct {
	store keystore.Store
	life  *lifecycle.Manager
	log   *slog.Logger
}

func New(conf Config) (*Service, error) {
	if conf.Store == nil {
		return nil, errors.New("messages: Config.Store is required")
	}
	if conf.Lifecycle == nil {
		return nil, errors.New("messages: Config.Lifecycle is required")
	}
	logger := conf.Logger
	if logger == nil {
		logger = defaultLogger()
	}
	return &Service{store: conf.Store, life: conf.Lifecycle, log: logger}, nil
}

func defaultLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, nil))
}

// Message is one decrypted conversation entry.
type Message struct {
	types.MessageRecord
	// Text is the decrypted plaintext, or a sentinel when decryption was
	// impossible for this reader.
	Text string
	// Mine reports whether the session participant authored the message.
	Mine bool
}

// Session is one participant's opened view of a conversation. Opening unwraps
// the participant's private key once; the unwrapped key lives only in this
// handle and dies with it.
type Session struct {
	svc         *Service
	conv        types.ConversationID
	self        types.ParticipantID
	counterpart types.ParticipantID

	ownPriv        *ecdh.PrivateKey
	counterpartPub *ecdh.PublicKey
}

// Open unwraps the participant's sealed private key with their password and
// loads the counterpart's public key. A missing counterpart key is not an
// error at open time; it only blocks Send and turns received history into
// sentinel text.
func (s *Service) Open(ctx context.Context, conv types.ConversationID, self types.ParticipantID, password string) (*Session, error) {
	counterpart, err := conv.Counterpart(self)
	if err != nil {
		return nil, err
	}

	priv, err := s.life.OwnPrivateKey(ctx, conv, self, password)
	if err != nil {
		return nil, err
	}

	sess := &Session{
		svc:         s,
		conv:        conv,
		self:        self,
		counterpart: counterpart,
		ownPriv:     priv,
	}
	if err := sess.refreshCounterpartKey(ctx); err != nil {
		return nil, err
	}

	s.log.Debug("session opened",
		slog.String("conversation", string(conv)),
		slog.String("participant", string(self)),
		slog.Bool("counterpartKey", sess.counterpartPub != nil))
	return sess, nil
}

// refreshCounterpartKey re-reads the counterpart's public key. Absence is
// recorded as nil; backend rejection and decode failures propagate.
func (sess *Session) refreshCounterpartKey(ctx context.Context) error {
	pub, err := sess.svc.life.PublicKeyOf(ctx, sess.conv, sess.counterpart)
	switch {
	case err == nil:
		sess.counterpartPub = pub
	case chaterr.IsKeyNotFound(err):
		sess.counterpartPub = nil
	default:
		return err
	}
	return nil
}

// Conversation returns the session's conversation ID.
func (sess *Session) Conversation() types.ConversationID { return sess.conv }

// Send encrypts the plaintext into both envelopes and appends the message.
// It refuses with ErrConversationNotReady until both participants have keys.
func (sess *Session) Send(ctx context.Context, plaintext string) (types.MessageRecord, error) {
	if sess.counterpartPub == nil {
		// The counterpart may have provisioned since the session opened.
		if err := sess.refreshCounterpartKey(ctx); err != nil {
			return types.MessageRecord{}, err
		}
		if sess.counterpartPub == nil {
			return types.MessageRecord{}, fmt.Errorf("send to %s: %w", sess.conv, ErrConversationNotReady)
		}
	}

	forRecipient, forSender, err := msgcipher.EncryptDual(sess.ownPriv, sess.ownPriv.PublicKey(), sess.counterpartPub, plaintext)
	if err != nil {
		return types.MessageRecord{}, err
	}

	rec, err := sess.svc.store.AppendMessage(ctx, types.MessageRecord{
		ConversationID: sess.conv,
		SenderID:       sess.self,
		ForRecipient:   forRecipient,
		ForSender:      forSender,
	})
	if err != nil {
		return types.MessageRecord{}, err
	}

	sess.svc.log.Debug("message sent",
		slog.String("conversation", string(sess.conv)),
		slog.String("message", rec.ID))
	return rec, nil
}

// History returns up to limit messages, oldest first, decrypted for this
// reader. Undecryptable entries carry sentinel text instead of failing the
// whole listing. limit <= 0 means no limit.
func (sess *Session) History(ctx context.Context, limit int) ([]Message, error) {
	records, err := sess.svc.store.ListMessages(ctx, sess.conv, limit)
	if err != nil {
		return nil, err
	}

	out := make([]Message, 0, len(records))
	for _, rec := range records {
		out = append(out, sess.decrypt(rec))
	}
	return out, nil
}

// decrypt picks the envelope for the reader's role. Own messages open with
// the self-addressed envelope so they stay readable after the counterpart
// deletes their keys.
func (sess *Session) decrypt(rec types.MessageRecord) Message {
	var text string
	if rec.SenderID == sess.self {
		text = msgcipher.DecryptOrSentinel(sess.ownPriv, sess.ownPriv.PublicKey(), rec.ForSender)
	} else {
		text = msgcipher.DecryptOrSentinel(sess.ownPriv, sess.counterpartPub, rec.ForRecipient)
	}
	return Message{MessageRecord: rec, Text: text, Mine: rec.SenderID == sess.self}
}

// MarkRead flips the read flag on one message.
func (sess *Session) MarkRead(ctx context.Context, msgID string) error {
	return sess.svc.store.MarkRead(ctx, sess.conv, msgID)
}

// Delete removes one message. Absence is not an error.
func (sess *Session) Delete(ctx context.Context, msgID string) error {
	return sess.svc.store.DeleteMessage(ctx, sess.conv, msgID)
}

// UnreadCount counts messages addressed to this participant that are still
// unread.
func (sess *Session) UnreadCount(ctx context.Context) (int, error) {
	return sess.svc.store.UnreadCount(ctx, sess.conv, sess.self)
}
