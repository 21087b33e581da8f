package types

import "time"

// KeyRecord is the stored document for one key of one participant in one
// conversation. For public keys Payload is the base64 uncompressed-point
// export; for private keys it is the base64 sealed blob (IV || ciphertext).
type KeyRecord struct {
	ParticipantID ParticipantID `json:"participantId"`
	Payload       string        `json:"payload"`
	CreatedAt     time.Time     `json:"createdAt"`
	UpdatedAt     time.Time     `json:"updatedAt"`
}

// ConversationRecord is the stored document for a conversation itself.
// Creation is last-writer-wins: a racing second create writes value-identical
// content, so no transaction is needed.
type ConversationRecord struct {
	ParticipantA ParticipantID `json:"participantA"`
	ParticipantB ParticipantID `json:"participantB"`
	CreatedAt    time.Time     `json:"createdAt"`
}

// Member reports whether p is one of the two conversation participants.
func (r ConversationRecord) Member(p ParticipantID) bool {
	return p == r.ParticipantA || p == r.ParticipantB
}

// MessageRecord is the stored document for one message. Every outgoing
// message carries two independently encrypted payloads: ForRecipient is
// sealed under ECDH(sender-private, recipient-public), ForSender under
// ECDH(sender-private, sender-public) so the author can re-read their own
// history with only their own key pair.
type MessageRecord struct {
	ID             string         `json:"id"`
	ConversationID ConversationID `json:"conversationId"`
	SenderID       ParticipantID  `json:"senderId"`
	ForRecipient   Envelope       `json:"forRecipient"`
	ForSender      Envelope       `json:"forSender"`
	Timestamp      time.Time      `json:"timestamp"`
	Read           bool           `json:"read"`
}
