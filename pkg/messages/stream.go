package messages

import (
	"context"
	"log/slog"
	"sync"

	"github.com/sealchat/sealchat/pkg/keystore"
)

// Stream is a live feed of decrypted messages for one session. Cancel must be
// called when the conversation view goes away.
type Stream struct {
	messages <-chan Message
	cancel   func()
}

// Messages returns the feed. It is closed after cancellation.
func (st *Stream) Messages() <-chan Message { return st.messages }

// Cancel tears the subscription down. Idempotent.
func (st *Stream) Cancel() { st.cancel() }

// Subscribe opens a live feed of this conversation's messages, decrypted the
// same way History decrypts them. Events for records that vanished before
// they could be fetched are dropped.
func (sess *Session) Subscribe(ctx context.Context) (*Stream, error) {
	watch, err := sess.svc.store.WatchMessages(ctx, sess.conv)
	if err != nil {
		return nil, err
	}

	out := make(chan Message)
	done := make(chan struct{})
	var once sync.Once

	go func() {
		defer close(out)
		for ev := range watch.Events() {
			if ev.Kind != keystore.EventMessage || ev.MessageID == "" {
				continue
			}
			rec, err := sess.svc.store.GetMessage(ctx, sess.conv, ev.MessageID)
			if err != nil {
				sess.svc.log.Debug("dropping stream event",
					slog.String("message", ev.MessageID),
					slog.String("error", err.Error()))
				continue
			}
			select {
			case out <- sess.decrypt(rec):
			case <-done:
				return
			case <-ctx.Done():
				return
			}
		}
	}()

	return &Stream{
		messages: out,
		cancel: func() {
			once.Do(func() {
				watch.Cancel()
				close(done)
			})
		},
	}, nil
}
