// Package identity holds the contracts toward the authentication provider and
// the combined password-change flow. The provider owns the account credential;
// this package owns the rule that the credential may only change after the
// per-conversation key material has been re-sealed under the new password.
package identity

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/sealchat/sealchat/pkg/chaterr"
	"github.com/sealchat/sealchat/pkg/lifecycle"
	"github.com/sealchat/sealchat/pkg/types"
)

// Identity is the signed-in account as the auth provider reports it.
type Identity interface {
	// ParticipantID returns the stable account identifier used in
	// conversation IDs and key records.
	ParticipantID() types.ParticipantID

	// EmailVerified reports whether the account's address is confirmed.
	EmailVerified() bool
}

// CredentialStore is the auth provider's credential surface.
type CredentialStore interface {
	// Reauthenticate proves possession of the current password. It must be
	// called freshly before UpdatePassword; providers reject stale sessions.
	Reauthenticate(ctx context.Context, password string) error

	// UpdatePassword replaces the account credential.
	UpdatePassword(ctx context.Context, newPassword string) error
}

// ErrReauthentication wraps a failed current-password check so callers can
// tell "wrong current password" from sweep failures.
var ErrReauthentication = errors.New("current password rejected")

// ErrStaleSession is returned when the backend refuses the chat-key sweep
// outright. The remediation is to sign out and back in, then retry.
var ErrStaleSession = errors.New("session is stale, log out and back in, then retry")

// PasswordChanger runs the full password-change flow.
type PasswordChanger struct {
	creds CredentialStore
	life  *lifecycle.Manager
	log   *slog.Logger
}

// NewPasswordChanger wires the flow. Both dependencies are required.
func NewPasswordChanger(creds CredentialStore, life *lifecycle.Manager, logger *slog.Logger) (*PasswordChanger, error) {
	if creds == nil {
		return nil, errors.New("identity: CredentialStore is required")
	}
	if life == nil {
		return nil, errors.New("identity: lifecycle manager is required")
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(os.Stderr, nil))
	}
	return &PasswordChanger{creds: creds, life: life, log: logger}, nil
}

// ChangePassword re-seals every conversation key under the new password and
// then, if the sweep left the account with working keys, updates the account
// credential. Order matters: the credential never changes while every sealed
// key still requires the old password.
//
// The returned sweep result is valid even on error so callers can show
// per-conversation outcomes.
func (pc *PasswordChanger) ChangePassword(ctx context.Context, id Identity, oldPassword, newPassword string) (lifecycle.SweepResult, error) {
	self := id.ParticipantID()

	if err := pc.creds.Reauthenticate(ctx, oldPassword); err != nil {
		return lifecycle.SweepResult{}, fmt.Errorf("%w: %v", ErrReauthentication, err)
	}

	result, err := pc.life.ResealAll(ctx, self, oldPassword, newPassword)
	if err != nil {
		if chaterr.IsAuthorizationDenied(err) {
			return result, fmt.Errorf("re-sealing chat keys for %s: %w", self, ErrStaleSession)
		}
		return result, fmt.Errorf("re-sealing chat keys for %s: %w", self, err)
	}

	if !result.AllowCredentialChange() {
		pc.log.Warn("password change refused, no chat key re-sealed",
			slog.String("participant", string(self)),
			slog.Int("failed", result.Failed))
		return result, fmt.Errorf("no chat key could be re-sealed, password unchanged: %s",
			strings.Join(result.FailureReasons(), "; "))
	}

	if err := pc.creds.UpdatePassword(ctx, newPassword); err != nil {
		// The keys are already sealed under the new password. Surface the
		// split state instead of silently retrying.
		return result, fmt.Errorf("chat keys re-sealed but credential update failed: %w", err)
	}

	pc.log.Info("password changed",
		slog.String("participant", string(self)),
		slog.Int("succeeded", result.Succeeded),
		slog.Int("failed", result.Failed),
		slog.Int("skipped", result.Skipped))
	return result, nil
}
