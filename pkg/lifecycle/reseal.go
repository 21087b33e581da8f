package lifecycle

import (
	"context"
	"fmt"

	"github.com/sealchat/sealchat/pkg/chaterr"
	"github.com/sealchat/sealchat/pkg/chatkeys"
	"github.com/sealchat/sealchat/pkg/types"
)

// Outcome is the per-conversation result of a re-sealing sweep.
type Outcome uint8

const (
	// OutcomeSucceeded: the sealed key was unwrapped with the old password,
	// re-sealed under the new one, and written back.
	OutcomeSucceeded Outcome = iota
	// OutcomeFailed: unwrap, re-seal, or write-back failed. The reason is
	// recorded; the sweep continues.
	OutcomeFailed
	// OutcomeSkipped: no sealed key exists for this conversation. Not a
	// failure; the participant never opened it or predates keys.
	OutcomeSkipped
)

func (o Outcome) String() string {
	switch o {
	case OutcomeSucceeded:
		return "succeeded"
	case OutcomeFailed:
		return "failed"
	case OutcomeSkipped:
		return "skipped"
	}
	return "unknown"
}

// ConversationResult is one conversation's outcome within a sweep.
type ConversationResult struct {
	Conversation types.ConversationID
	Outcome      Outcome
	Reason       string
}

// SweepResult aggregates a re-sealing sweep.
type SweepResult struct {
	Succeeded int
	Failed    int
	Skipped   int
	Results   []ConversationResult
}

// FailureReasons collects the reason strings of the failed conversations.
func (r SweepResult) FailureReasons() []string {
	var reasons []string
	for _, cr := range r.Results {
		if cr.Outcome == OutcomeFailed {
			reasons = append(reasons, fmt.Sprintf("%s: %s", cr.Conversation, cr.Reason))
		}
	}
	return reasons
}

// AllowCredentialChange decides whether the authentication password may
// change despite partial failures: never strand the user with a changed
// password and zero working keys, but don't block the change just because
// some already-unreadable legacy keys stayed unreadable.
func (r SweepResult) AllowCredentialChange() bool {
	return r.Failed == 0 || r.Succeeded > 0
}

// ResealAll re-wraps every sealed private key the user owns under the new
// password. Preconditions: oldPassword is the password the keys are
// currently sealed under and newPassword the one to seal under; accuracy is
// the caller's obligation and not re-verified here.
//
// The sweep never aborts early on a single conversation's failure. Only a
// failure to resolve the conversation set (notably an authorization denial)
// aborts the whole operation, with zero conversations processed, which is
// distinct from a user with zero conversations (an empty, successful sweep).
func (m *Manager) ResealAll(ctx context.Context, self types.ParticipantID, oldPassword, newPassword string) (SweepResult, error) {
	convs, err := m.store.ListConversations(ctx, self)
	if err != nil {
		return SweepResult{}, fmt.Errorf("resolving chat ids for %s: %w", self, err)
	}

	var results []ConversationResult
	if m.pool == nil || len(convs) < 2 {
		for _, conv := range convs {
			results = append(results, m.resealOne(ctx, conv, self, oldPassword, newPassword))
		}
	} else {
		room := m.pool.NewRoom(len(convs))
		for _, conv := range convs {
			conv := conv
			room.Go(func() interface{} {
				return m.resealOne(ctx, conv, self, oldPassword, newPassword)
			})
		}
		for _, r := range room.Collect() {
			results = append(results, r.(ConversationResult))
		}
	}

	sweep := SweepResult{Results: results}
	for _, cr := range results {
		switch cr.Outcome {
		case OutcomeSucceeded:
			sweep.Succeeded++
		case OutcomeFailed:
			sweep.Failed++
		case OutcomeSkipped:
			sweep.Skipped++
		}
	}

	m.log.Info("re-seal sweep finished",
		"participant", self,
		"succeeded", sweep.Succeeded,
		"failed", sweep.Failed,
		"skipped", sweep.Skipped,
	)
	return sweep, nil
}

// resealOne handles a single conversation: read, unwrap with the old
// password, re-seal under the new one, write back. Strictly ordered; no one
// else writes this (conversation, participant) private-key record while the
// sweep runs.
func (m *Manager) resealOne(ctx context.Context, conv types.ConversationID, self types.ParticipantID, oldPassword, newPassword string) ConversationResult {
	blob, err := m.store.GetSealedPrivateKey(ctx, conv, self)
	if chaterr.IsKeyNotFound(err) {
		return ConversationResult{Conversation: conv, Outcome: OutcomeSkipped}
	}
	if err != nil {
		return ConversationResult{Conversation: conv, Outcome: OutcomeFailed, Reason: err.Error()}
	}

	priv, err := chatkeys.Unwrap(blob, self, conv, oldPassword)
	if err != nil {
		return ConversationResult{Conversation: conv, Outcome: OutcomeFailed, Reason: err.Error()}
	}

	resealed, err := chatkeys.Seal(priv, self, conv, newPassword)
	if err != nil {
		return ConversationResult{Conversation: conv, Outcome: OutcomeFailed, Reason: err.Error()}
	}

	if err := m.store.PutSealedPrivateKey(ctx, conv, self, resealed); err != nil {
		return ConversationResult{Conversation: conv, Outcome: OutcomeFailed, Reason: err.Error()}
	}

	m.log.Debug("chat key re-sealed", "conversation", conv, "participant", self)
	return ConversationResult{Conversation: conv, Outcome: OutcomeSucceeded}
}
