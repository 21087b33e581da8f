// Package msgcipher performs the per-message authenticated encryption. The
// symmetric key for one direction is agreed via ECDH between one party's
// private key and the other's public key and used directly as an AES-256-GCM
// key. It knows nothing about provisioning state; gating sends before both
// parties have keys is the caller's job.
package msgcipher

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/ecdh"
	"crypto/rand"

	"github.com/sealchat/sealchat/pkg/chaterr"
	"github.com/sealchat/sealchat/pkg/types"
)

// Sentinel texts a failed decryption resolves to. Decryption failures never
// propagate to the UI as errors; the two causes warrant different texts.
const (
	SentinelDeletedUser   = "[Message from deleted user - cannot decrypt]"
	SentinelUndecryptable = "[Encrypted message - decryption failed]"
)

// SharedKey agrees on the symmetric key for one message direction. The ECDH
// output is used directly as the AES-256-GCM key, matching the stored format
// produced by the other platforms.
func SharedKey(own *ecdh.PrivateKey, counterpart *ecdh.PublicKey) ([]byte, error) {
	secret, err := own.ECDH(counterpart)
	if err != nil {
		return nil, chaterr.E(chaterr.KindPrimitiveFailure, "msgcipher.SharedKey", err)
	}
	return secret, nil
}

// Encrypt seals plaintext under the shared key of (own private, counterpart
// public) with a fresh 96-bit nonce.
func Encrypt(own *ecdh.PrivateKey, counterpart *ecdh.PublicKey, plaintext string) (types.Envelope, error) {
	key, err := SharedKey(own, counterpart)
	if err != nil {
		return types.Envelope{}, err
	}
	gcm, err := newGCM(key)
	if err != nil {
		return types.Envelope{}, chaterr.E(chaterr.KindPrimitiveFailure, "msgcipher.Encrypt", err)
	}

	iv := make([]byte, types.NonceSize)
	if _, err := rand.Read(iv); err != nil {
		return types.Envelope{}, chaterr.E(chaterr.KindPrimitiveFailure, "msgcipher.Encrypt", err)
	}

	return types.Envelope{
		IV:         types.ByteSeq(iv),
		Ciphertext: types.ByteSeq(gcm.Seal(nil, iv, []byte(plaintext), nil)),
	}, nil
}

// Decrypt opens an envelope with the shared key of (own private, counterpart
// public). Tag mismatch and malformed input surface as an unwrap failure.
func Decrypt(own *ecdh.PrivateKey, counterpart *ecdh.PublicKey, env types.Envelope) (string, error) {
	key, err := SharedKey(own, counterpart)
	if err != nil {
		return "", err
	}
	gcm, err := newGCM(key)
	if err != nil {
		return "", chaterr.E(chaterr.KindPrimitiveFailure, "msgcipher.Decrypt", err)
	}
	if len(env.IV) != types.NonceSize {
		return "", chaterr.E(chaterr.KindUnwrapFailure, "msgcipher.Decrypt", nil)
	}

	plaintext, err := gcm.Open(nil, env.IV, env.Ciphertext, nil)
	if err != nil {
		return "", chaterr.E(chaterr.KindUnwrapFailure, "msgcipher.Decrypt", err)
	}
	return string(plaintext), nil
}

// EncryptDual produces the two ciphertexts persisted with every outgoing
// message: one for the recipient, and a self-addressed one so the sender can
// re-read their own history later using only their own key pair.
func EncryptDual(senderPriv *ecdh.PrivateKey, senderPub, recipientPub *ecdh.PublicKey, plaintext string) (forRecipient, forSender types.Envelope, err error) {
	forRecipient, err = Encrypt(senderPriv, recipientPub, plaintext)
	if err != nil {
		return types.Envelope{}, types.Envelope{}, err
	}
	forSender, err = Encrypt(senderPriv, senderPub, plaintext)
	if err != nil {
		return types.Envelope{}, types.Envelope{}, err
	}
	return forRecipient, forSender, nil
}

// DecryptOrSentinel degrades every failure to a sentinel text instead of an
// error. Missing keys mean the counterpart no longer exists (deleted
// account); everything else is a generic decryption failure.
func DecryptOrSentinel(own *ecdh.PrivateKey, counterpart *ecdh.PublicKey, env types.Envelope) string {
	if own == nil || counterpart == nil {
		return SentinelDeletedUser
	}
	plaintext, err := Decrypt(own, counterpart, env)
	if err != nil {
		return SentinelUndecryptable
	}
	return plaintext
}

func newGCM(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}
