// Package kdf derives the symmetric wrapping key that seals a participant's
// chat private key. The key is never stored; it is re-derived on demand from
// the password and a conversation-scoped salt, so the same inputs must always
// produce the same key.
package kdf

import (
	"crypto/sha256"
	"fmt"

	"golang.org/x/crypto/pbkdf2"

	"github.com/sealchat/sealchat/pkg/types"
)

const (
	// Iterations is the PBKDF2 work factor. Changing it invalidates every
	// sealed private key in existence, so it is a constant, not config.
	Iterations = 100_000
	// KeySize is the derived key length, sized for AES-256-GCM.
	KeySize = 32
)

// Derive computes the 256-bit wrapping key for the given password and salt.
// Deterministic: identical inputs always yield an identical key.
func Derive(password, salt string) ([]byte, error) {
	if password == "" {
		return nil, fmt.Errorf("password must not be empty")
	}
	if salt == "" {
		return nil, fmt.Errorf("salt must not be empty")
	}
	return pbkdf2.Key([]byte(password), []byte(salt), Iterations, KeySize, sha256.New), nil
}

// WrapSalt builds the salt for sealing one participant's private key in one
// conversation. Scoping the salt to the conversation keeps a compromised
// wrapping key for one chat from exposing keys for any other chat under the
// same password.
func WrapSalt(participant types.ParticipantID, conversation types.ConversationID) string {
	return "salt-" + string(participant) + "_" + string(conversation)
}
