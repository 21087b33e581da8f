package keystore

import (
	"fmt"

	"github.com/sealchat/sealchat/pkg/types"
)

// Op names a store operation for authorization decisions.
type Op string

const (
	OpReadPublicKey   Op = "readPublicKey"
	OpWritePublicKey  Op = "writePublicKey"
	OpReadPrivateKey  Op = "readPrivateKey"
	OpWritePrivateKey Op = "writePrivateKey"
	OpDeleteKeys      Op = "deleteKeys"
	OpReadMessages    Op = "readMessages"
	OpWriteMessages   Op = "writeMessages"
	OpListChats       Op = "listChats"
)

// Authorizer models the backend's per-record security rules. A denial is
// surfaced to callers as a chaterr.KindAuthorizationDenied error; the store
// never retries it.
type Authorizer interface {
	Authorize(op Op, conv types.ConversationID, participant types.ParticipantID) error
}

// AllowAll authorizes everything. The default for trusted local use.
type AllowAll struct{}

func (AllowAll) Authorize(Op, types.ConversationID, types.ParticipantID) error { return nil }

// SessionAuthorizer enforces the rule set of the remote backend for one
// signed-in participant: private-key records are owner-only, everything else
// requires conversation membership.
type SessionAuthorizer struct {
	Self types.ParticipantID
}

func (s SessionAuthorizer) Authorize(op Op, conv types.ConversationID, participant types.ParticipantID) error {
	if conv != "" {
		if _, err := conv.Counterpart(s.Self); err != nil {
			return fmt.Errorf("participant %q is not a member of %q", s.Self, conv)
		}
	}
	switch op {
	case OpReadPrivateKey, OpWritePrivateKey, OpDeleteKeys:
		if participant != s.Self {
			return fmt.Errorf("private key records of %q are owner-only", participant)
		}
	case OpListChats:
		if participant != s.Self {
			return fmt.Errorf("chat list of %q is owner-only", participant)
		}
	}
	return nil
}
