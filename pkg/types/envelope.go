package types

import (
	"encoding/json"
	"fmt"
)

// NonceSize is the AES-GCM nonce length used for message envelopes.
const NonceSize = 12

// ByteSeq is a byte slice that marshals to a JSON array of numbers instead of
// a base64 string. The stored message format is {"iv":[..],"ciphertext":[..]}
// with explicit number arrays, and readers on other platforms depend on that.
type ByteSeq []byte

func (b ByteSeq) MarshalJSON() ([]byte, error) {
	ints := make([]uint16, len(b))
	for i, v := range b {
		ints[i] = uint16(v)
	}
	return json.Marshal(ints)
}

func (b *ByteSeq) UnmarshalJSON(data []byte) error {
	var ints []int
	if err := json.Unmarshal(data, &ints); err != nil {
		return err
	}
	out := make([]byte, len(ints))
	for i, v := range ints {
		if v < 0 || v > 255 {
			return fmt.Errorf("byte sequence element %d out of range: %d", i, v)
		}
		out[i] = byte(v)
	}
	*b = out
	return nil
}

// Envelope is one authenticated ciphertext together with its nonce. It is the
// unit the message cipher produces and the store persists.
type Envelope struct {
	IV         ByteSeq `json:"iv"`
	Ciphertext ByteSeq `json:"ciphertext"`
}

// Encode serializes the envelope to its JSON text form for storage.
func (e Envelope) Encode() (string, error) {
	raw, err := json.Marshal(e)
	if err != nil {
		return "", fmt.Errorf("encoding envelope: %w", err)
	}
	return string(raw), nil
}

// DecodeEnvelope parses the JSON text form of an envelope.
func DecodeEnvelope(text string) (Envelope, error) {
	var e Envelope
	if err := json.Unmarshal([]byte(text), &e); err != nil {
		return Envelope{}, fmt.Errorf("decoding envelope: %w", err)
	}
	if len(e.IV) != NonceSize {
		return Envelope{}, fmt.Errorf("envelope iv must be %d bytes, got %d", NonceSize, len(e.IV))
	}
	return e, nil
}
