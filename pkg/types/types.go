// Package types holds the shared identifiers and document schemas used by the
// key store, the message cipher, and the lifecycle manager.
package types

import (
	"fmt"
	"strings"
)

// Separator joins the two sorted participant identifiers into a conversation
// identifier. Participant identifiers must not contain it.
const Separator = "_"

// ParticipantID is the stable identifier the auth provider assigns to a user.
type ParticipantID string

// ConversationID identifies a two-party conversation. It is canonical: the
// same value is produced regardless of the order the participants are given
// in, so id(a,b) == id(b,a).
type ConversationID string

// NewConversationID derives the canonical conversation identifier for the two
// participants by sorting them and joining with the separator.
func NewConversationID(a, b ParticipantID) (ConversationID, error) {
	if err := ValidateParticipantID(a); err != nil {
		return "", err
	}
	if err := ValidateParticipantID(b); err != nil {
		return "", err
	}
	if a == b {
		return "", fmt.Errorf("conversation needs two distinct participants, got %q twice", a)
	}
	if b < a {
		a, b = b, a
	}
	return ConversationID(string(a) + Separator + string(b)), nil
}

// Participants splits a conversation identifier back into its two participant
// identifiers, in sorted order.
func (c ConversationID) Participants() (ParticipantID, ParticipantID, error) {
	parts := strings.Split(string(c), Separator)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("malformed conversation id %q", string(c))
	}
	return ParticipantID(parts[0]), ParticipantID(parts[1]), nil
}

// Counterpart returns the other member of the conversation.
func (c ConversationID) Counterpart(self ParticipantID) (ParticipantID, error) {
	a, b, err := c.Participants()
	if err != nil {
		return "", err
	}
	switch self {
	case a:
		return b, nil
	case b:
		return a, nil
	}
	return "", fmt.Errorf("participant %q is not a member of conversation %q", self, string(c))
}

// ValidateParticipantID rejects identifiers that are empty or that contain
// the separator, which would make conversation identifiers ambiguous.
func ValidateParticipantID(p ParticipantID) error {
	if p == "" {
		return fmt.Errorf("participant id must not be empty")
	}
	if strings.Contains(string(p), Separator) {
		return fmt.Errorf("participant id %q must not contain %q", p, Separator)
	}
	return nil
}
