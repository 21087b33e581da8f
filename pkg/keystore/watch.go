package keystore

import "github.com/sealchat/sealchat/pkg/types"

// EventKind says which record class changed under a watch.
type EventKind uint8

const (
	EventPublicKey EventKind = iota
	EventPrivateKey
	EventMessage
)

// Event is one observed store change.
type Event struct {
	Kind           EventKind
	ConversationID types.ConversationID
	ParticipantID  types.ParticipantID
	MessageID      string
}

// Watch is a live subscription handle. Events arrive on Events until Cancel
// is called or the subscribing context ends; Cancel is idempotent and must be
// called by whoever opened the watch, or the update callback leaks.
type Watch struct {
	events <-chan Event
	cancel func()
}

// NewWatch wraps an event channel and its teardown func. Implementations
// close the channel once the subscription has fully stopped.
func NewWatch(events <-chan Event, cancel func()) *Watch {
	return &Watch{events: events, cancel: cancel}
}

// Events returns the event stream. It is closed on cancellation.
func (w *Watch) Events() <-chan Event { return w.events }

// Cancel tears the subscription down.
func (w *Watch) Cancel() {
	if w.cancel != nil {
		w.cancel()
	}
}
