// Package chatkeys generates the per-conversation ECDH key pairs and seals
// the private half under a password-derived key so it can be stored remotely
// and opened from any of the owner's devices.
package chatkeys

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/ecdh"
	"crypto/rand"
	"encoding/base64"
	"fmt"

	"github.com/sealchat/sealchat/pkg/chaterr"
	"github.com/sealchat/sealchat/pkg/kdf"
	"github.com/sealchat/sealchat/pkg/types"
)

// Curve is the key-agreement curve for all chat key pairs.
var Curve = ecdh.P256()

// KeyPair is one participant's asymmetric pair for exactly one conversation.
// Pairs are never reused across conversations, even for the same participant.
type KeyPair struct {
	Private *ecdh.PrivateKey
	Public  *ecdh.PublicKey
}

// Generate produces a fresh key pair.
func Generate() (*KeyPair, error) {
	priv, err := Curve.GenerateKey(rand.Reader)
	if err != nil {
		return nil, chaterr.E(chaterr.KindPrimitiveFailure, "chatkeys.Generate", err)
	}
	return &KeyPair{Private: priv, Public: priv.PublicKey()}, nil
}

// Sealed is the storable form of a key pair: the public key in the clear and
// the private key sealed under the owner's password.
type Sealed struct {
	PublicPayload string
	SealedPrivate string
}

// GenerateSealed generates a pair for the (conversation, participant) tuple
// and seals the private half under the given password. There is no partial
// success: any primitive failure fails the whole call.
func GenerateSealed(conversation types.ConversationID, participant types.ParticipantID, password string) (Sealed, error) {
	pair, err := Generate()
	if err != nil {
		return Sealed{}, err
	}
	blob, err := Seal(pair.Private, participant, conversation, password)
	if err != nil {
		return Sealed{}, err
	}
	return Sealed{
		PublicPayload: ExportPublic(pair.Public),
		SealedPrivate: blob,
	}, nil
}

// Seal serializes the private key and encrypts it under the password-derived
// wrapping key. The blob layout is 12-byte IV || AES-GCM ciphertext, encoded
// as base64 text for storage.
func Seal(priv *ecdh.PrivateKey, participant types.ParticipantID, conversation types.ConversationID, password string) (string, error) {
	wrapKey, err := kdf.Derive(password, kdf.WrapSalt(participant, conversation))
	if err != nil {
		return "", chaterr.E(chaterr.KindPrimitiveFailure, "chatkeys.Seal", err)
	}
	gcm, err := newGCM(wrapKey)
	if err != nil {
		return "", chaterr.E(chaterr.KindPrimitiveFailure, "chatkeys.Seal", err)
	}

	iv := make([]byte, types.NonceSize)
	if _, err := rand.Read(iv); err != nil {
		return "", chaterr.E(chaterr.KindPrimitiveFailure, "chatkeys.Seal", err)
	}

	sealed := gcm.Seal(iv, iv, priv.Bytes(), nil)
	return base64.StdEncoding.EncodeToString(sealed), nil
}

// Unwrap decrypts a sealed private key blob with the current password. A
// wrong password or a corrupted blob both surface as an unwrap failure; the
// two are indistinguishable on purpose, GCM authentication fails either way.
func Unwrap(blob string, participant types.ParticipantID, conversation types.ConversationID, password string) (*ecdh.PrivateKey, error) {
	raw, err := base64.StdEncoding.DecodeString(blob)
	if err != nil {
		return nil, chaterr.E(chaterr.KindUnwrapFailure, "chatkeys.Unwrap", err)
	}
	if len(raw) <= types.NonceSize {
		return nil, chaterr.E(chaterr.KindUnwrapFailure, "chatkeys.Unwrap",
			fmt.Errorf("sealed blob too short: %d bytes", len(raw)))
	}

	wrapKey, err := kdf.Derive(password, kdf.WrapSalt(participant, conversation))
	if err != nil {
		return nil, chaterr.E(chaterr.KindPrimitiveFailure, "chatkeys.Unwrap", err)
	}
	gcm, err := newGCM(wrapKey)
	if err != nil {
		return nil, chaterr.E(chaterr.KindPrimitiveFailure, "chatkeys.Unwrap", err)
	}

	iv, ciphertext := raw[:types.NonceSize], raw[types.NonceSize:]
	keyBytes, err := gcm.Open(nil, iv, ciphertext, nil)
	if err != nil {
		return nil, chaterr.E(chaterr.KindUnwrapFailure, "chatkeys.Unwrap", err)
	}

	priv, err := Curve.NewPrivateKey(keyBytes)
	if err != nil {
		return nil, chaterr.E(chaterr.KindUnwrapFailure, "chatkeys.Unwrap", err)
	}
	return priv, nil
}

// ExportPublic serializes a public key to its stored payload form, the
// base64-encoded uncompressed curve point.
func ExportPublic(pub *ecdh.PublicKey) string {
	return base64.StdEncoding.EncodeToString(pub.Bytes())
}

// ImportPublic parses a stored public key payload.
func ImportPublic(payload string) (*ecdh.PublicKey, error) {
	raw, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, chaterr.E(chaterr.KindPrimitiveFailure, "chatkeys.ImportPublic", err)
	}
	pub, err := Curve.NewPublicKey(raw)
	if err != nil {
		return nil, chaterr.E(chaterr.KindPrimitiveFailure, "chatkeys.ImportPublic", err)
	}
	return pub, nil
}

func newGCM(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}
