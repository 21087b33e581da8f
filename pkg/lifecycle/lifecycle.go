// Package lifecycle orchestrates the per-chat key lifecycle: lazy
// provisioning of a participant's key pair when a conversation is first
// opened, observation of the counterpart's provisioning state, and the
// password-change re-sealing sweep over every conversation a user belongs
// to. Storage and crypto errors are translated into the chaterr taxonomy at
// this boundary; raw primitive errors never reach the caller.
package lifecycle

import (
	"context"
	"crypto/ecdh"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/sealchat/sealchat/pkg/chaterr"
	"github.com/sealchat/sealchat/pkg/chatkeys"
	"github.com/sealchat/sealchat/pkg/keystore"
	"github.com/sealchat/sealchat/pkg/types"
	"github.com/sealchat/sealchat/pkg/workerpool"
)

// Manager coordinates key provisioning and re-sealing against an injected
// store. Construct one per process and pass it around; there is no hidden
// global client.
type Manager struct {
	store keystore.Store
	log   *slog.Logger
	pool  *workerpool.Pool
}

// Config configures a Manager.
type Config struct {
	// Store is the backing document store. Required.
	Store keystore.Store
	// Logger is an optional structured logger. If nil, a stderr logger is used.
	Logger *slog.Logger
	// Pool bounds the re-sealing sweep's concurrency. If nil the sweep runs
	// sequentially.
	Pool *workerpool.Pool
}

func defaultLogger() *slog.Logger {
	h := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	})
	return slog.New(h)
}

// New constructs a Manager. It performs no I/O.
func New(conf Config) (*Manager, error) {
	if conf.Store == nil {
		return nil, errors.New("lifecycle: store must be provided")
	}
	if conf.Logger == nil {
		conf.Logger = defaultLogger()
	}
	return &Manager{
		store: conf.Store,
		log:   conf.Logger,
		pool:  conf.Pool,
	}, nil
}

// State describes how far a conversation's key provisioning has progressed.
type State uint8

const (
	// StateNoConversation: the conversation record does not exist yet.
	StateNoConversation State = iota
	// StateKeysPending: the conversation exists but at least one participant
	// has not provisioned keys yet. Message composition stays blocked.
	StateKeysPending
	// StateBothKeysPresent: both participants have keys; messages can flow.
	StateBothKeysPresent
)

func (s State) String() string {
	switch s {
	case StateNoConversation:
		return "no conversation"
	case StateKeysPending:
		return "keys pending"
	case StateBothKeysPresent:
		return "both keys present"
	}
	return "unknown"
}

// EnsureConversation opens (creating if needed) the conversation between
// self and other and lazily provisions self's key pair. The first opener
// creates the conversation record; the second opener finds it and only adds
// their own keys. Safe to call on every conversation open.
func (m *Manager) EnsureConversation(ctx context.Context, self, other types.ParticipantID, password string) (types.ConversationID, error) {
	conv, err := types.NewConversationID(self, other)
	if err != nil {
		return "", err
	}

	_, err = m.store.GetConversation(ctx, conv)
	switch {
	case err == nil:
		// already created
	case chaterr.IsKeyNotFound(err):
		// Check-then-create without a transaction: a racing second create
		// overwrites with value-identical content, which is accepted.
		if err := m.store.CreateConversation(ctx, conv, self, other); err != nil {
			return "", fmt.Errorf("creating conversation %s: %w", conv, err)
		}
		m.log.Info("conversation created", "conversation", conv)
	default:
		return "", fmt.Errorf("loading conversation %s: %w", conv, err)
	}

	if err := m.ProvisionOwnKeys(ctx, conv, self, password); err != nil {
		return "", err
	}
	return conv, nil
}

// ProvisionOwnKeys generates and stores self's key pair for the conversation
// unless both records already exist. The sealed private key is written last
// so HasKeys flips to true only once the pair is complete.
func (m *Manager) ProvisionOwnKeys(ctx context.Context, conv types.ConversationID, self types.ParticipantID, password string) error {
	has, err := m.store.HasKeys(ctx, conv, self)
	if err != nil {
		return fmt.Errorf("checking keys for %s in %s: %w", self, conv, err)
	}
	if has {
		return nil
	}

	sealed, err := chatkeys.GenerateSealed(conv, self, password)
	if err != nil {
		return err
	}
	if err := m.store.PutPublicKey(ctx, conv, self, sealed.PublicPayload); err != nil {
		return fmt.Errorf("storing public key: %w", err)
	}
	if err := m.store.PutSealedPrivateKey(ctx, conv, self, sealed.SealedPrivate); err != nil {
		return fmt.Errorf("storing sealed private key: %w", err)
	}

	m.log.Info("chat keys provisioned", "conversation", conv, "participant", self)
	return nil
}

// State reports the conversation's provisioning state.
func (m *Manager) State(ctx context.Context, conv types.ConversationID) (State, error) {
	_, err := m.store.GetConversation(ctx, conv)
	if chaterr.IsKeyNotFound(err) {
		return StateNoConversation, nil
	}
	if err != nil {
		return StateNoConversation, err
	}

	a, b, err := conv.Participants()
	if err != nil {
		return StateNoConversation, err
	}
	withKeys, err := m.store.ListParticipantsWithKeys(ctx, conv)
	if err != nil {
		return StateNoConversation, err
	}

	present := make(map[types.ParticipantID]bool, len(withKeys))
	for _, p := range withKeys {
		present[p] = true
	}
	if present[a] && present[b] {
		return StateBothKeysPresent, nil
	}
	return StateKeysPending, nil
}

// OwnPrivateKey loads and unwraps self's private key for the conversation
// using the current password.
func (m *Manager) OwnPrivateKey(ctx context.Context, conv types.ConversationID, self types.ParticipantID, password string) (*ecdh.PrivateKey, error) {
	blob, err := m.store.GetSealedPrivateKey(ctx, conv, self)
	if err != nil {
		return nil, err
	}
	return chatkeys.Unwrap(blob, self, conv, password)
}

// PublicKeyOf loads a participant's public key for the conversation.
func (m *Manager) PublicKeyOf(ctx context.Context, conv types.ConversationID, participant types.ParticipantID) (*ecdh.PublicKey, error) {
	payload, err := m.store.GetPublicKey(ctx, conv, participant)
	if err != nil {
		return nil, err
	}
	return chatkeys.ImportPublic(payload)
}
