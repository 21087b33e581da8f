package lifecycle

import (
	"context"

	"github.com/sealchat/sealchat/pkg/types"
)

// StateWatch streams provisioning-state changes for one conversation. The
// opener must Cancel it when the conversation view goes away; the manager
// does not track open watches.
type StateWatch struct {
	states <-chan State
	cancel func()
}

// States returns the state stream. The current state is delivered first,
// then a new value whenever a key record changes it. Closed on cancellation.
func (w *StateWatch) States() <-chan State { return w.states }

// Cancel tears the underlying store subscription down. Idempotent.
func (w *StateWatch) Cancel() { w.cancel() }

// WatchState subscribes to the conversation's provisioning state. Runs until
// Cancel or until ctx ends.
func (m *Manager) WatchState(ctx context.Context, conv types.ConversationID) (*StateWatch, error) {
	inner, err := m.store.WatchKeys(ctx, conv)
	if err != nil {
		return nil, err
	}

	states := make(chan State, 1)
	go func() {
		defer close(states)

		last, err := m.State(ctx, conv)
		if err == nil {
			states <- last
		}

		for range inner.Events() {
			next, err := m.State(ctx, conv)
			if err != nil {
				m.log.Warn("watch state resolution failed", "conversation", conv, "err", err)
				continue
			}
			if next == last {
				continue
			}
			last = next
			select {
			case states <- next:
			case <-ctx.Done():
				return
			}
		}
	}()

	return &StateWatch{states: states, cancel: inner.Cancel}, nil
}
