package messages_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	istore "github.com/sealchat/sealchat/internal/keystore"
	"github.com/sealchat/sealchat/pkg/chaterr"
	"github.com/sealchat/sealchat/pkg/lifecycle"
	"github.com/sealchat/sealchat/pkg/messages"
	"github.com/sealchat/sealchat/pkg/msgcipher"
	"github.com/sealchat/sealchat/pkg/types"
)

type harness struct {
	store *istore.Store
	life  *lifecycle.Manager
	svc   *messages.Service
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	quiet := logrus.New()
	quiet.SetLevel(logrus.PanicLevel)

	store, err := istore.Open(istore.StoreConfig{Path: t.TempDir(), Logger: quiet})
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	life, err := lifecycle.New(lifecycle.Config{Store: store})
	require.NoError(t, err)

	svc, err := messages.New(messages.Config{Store: store, Lifecycle: life})
	require.NoError(t, err)

	return &harness{store: store, life: life, svc: svc}
}

// provision opens the conversation from both sides and returns its ID.
func (h *harness) provision(t *testing.T) types.ConversationID {
	t.Helper()
	ctx := context.Background()
	conv, err := h.life.EnsureConversation(ctx, "alice", "bob", "alice-pw")
	require.NoError(t, err)
	_, err = h.life.EnsureConversation(ctx, "bob", "alice", "bob-pw")
	require.NoError(t, err)
	return conv
}

func TestSendAndReadBothRoles(t *testing.T) {
	h := newHarness(t)
	conv := h.provision(t)
	ctx := context.Background()

	alice, err := h.svc.Open(ctx, conv, "alice", "alice-pw")
	require.NoError(t, err)
	bob, err := h.svc.Open(ctx, conv, "bob", "bob-pw")
	require.NoError(t, err)

	_, err = alice.Send(ctx, "hello bob")
	require.NoError(t, err)
	_, err = bob.Send(ctx, "hello alice")
	require.NoError(t, err)

	for _, sess := range []*messages.Session{alice, bob} {
		history, err := sess.History(ctx, 0)
		require.NoError(t, err)
		require.Len(t, history, 2)
		assert.Equal(t, "hello bob", history[0].Text)
		assert.Equal(t, "hello alice", history[1].Text)
	}

	// Role flags follow the reader, not the record.
	aliceView, err := alice.History(ctx, 0)
	require.NoError(t, err)
	assert.True(t, aliceView[0].Mine)
	assert.False(t, aliceView[1].Mine)
}

func TestSendRefusedUntilBothKeysPresent(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	// Only alice has opened the conversation.
	conv, err := h.life.EnsureConversation(ctx, "alice", "bob", "alice-pw")
	require.NoError(t, err)

	alice, err := h.svc.Open(ctx, conv, "alice", "alice-pw")
	require.NoError(t, err)

	_, err = alice.Send(ctx, "too early")
	require.ErrorIs(t, err, messages.ErrConversationNotReady)

	// Bob provisions; the same session picks the key up and sends.
	_, err = h.life.EnsureConversation(ctx, "bob", "alice", "bob-pw")
	require.NoError(t, err)

	_, err = alice.Send(ctx, "now it works")
	require.NoError(t, err)
}

func TestOpenWithWrongPassword(t *testing.T) {
	h := newHarness(t)
	conv := h.provision(t)

	_, err := h.svc.Open(context.Background(), conv, "alice", "wrong-pw")
	require.Error(t, err)
	assert.True(t, chaterr.IsUnwrapFailure(err))
}

func TestOpenByNonMember(t *testing.T) {
	h := newHarness(t)
	conv := h.provision(t)

	_, err := h.svc.Open(context.Background(), conv, "mallory", "pw")
	require.Error(t, err)
}

func TestHistorySentinelAfterCounterpartKeyLoss(t *testing.T) {
	h := newHarness(t)
	conv := h.provision(t)
	ctx := context.Background()

	alice, err := h.svc.Open(ctx, conv, "alice", "alice-pw")
	require.NoError(t, err)
	_, err = alice.Send(ctx, "a message from alice")
	require.NoError(t, err)

	// Alice deletes her keys; bob opens afterwards.
	require.NoError(t, h.store.DeleteKeys(ctx, conv, "alice"))

	bob, err := h.svc.Open(ctx, conv, "bob", "bob-pw")
	require.NoError(t, err)
	history, err := bob.History(ctx, 0)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, msgcipher.SentinelDeletedUser, history[0].Text)
}

func TestHistorySelfEnvelopeSurvivesCounterpartKeyLoss(t *testing.T) {
	h := newHarness(t)
	conv := h.provision(t)
	ctx := context.Background()

	alice, err := h.svc.Open(ctx, conv, "alice", "alice-pw")
	require.NoError(t, err)
	_, err = alice.Send(ctx, "still mine")
	require.NoError(t, err)

	// Bob vanishes. Alice can still read her own messages.
	require.NoError(t, h.store.DeleteKeys(ctx, conv, "bob"))

	alice2, err := h.svc.Open(ctx, conv, "alice", "alice-pw")
	require.NoError(t, err)
	history, err := alice2.History(ctx, 0)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, "still mine", history[0].Text)
}

func TestHistoryTamperedCiphertextYieldsSentinel(t *testing.T) {
	h := newHarness(t)
	conv := h.provision(t)
	ctx := context.Background()

	alice, err := h.svc.Open(ctx, conv, "alice", "alice-pw")
	require.NoError(t, err)
	rec, err := alice.Send(ctx, "original")
	require.NoError(t, err)

	// Corrupt the recipient envelope in place.
	rec.ForRecipient.Ciphertext[0] ^= 0xff
	_, err = h.store.AppendMessage(ctx, rec)
	require.NoError(t, err)
	require.NoError(t, h.store.DeleteMessage(ctx, conv, rec.ID))

	bob, err := h.svc.Open(ctx, conv, "bob", "bob-pw")
	require.NoError(t, err)
	history, err := bob.History(ctx, 0)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, msgcipher.SentinelUndecryptable, history[0].Text)
}

func TestMarkReadAndUnreadCount(t *testing.T) {
	h := newHarness(t)
	conv := h.provision(t)
	ctx := context.Background()

	alice, err := h.svc.Open(ctx, conv, "alice", "alice-pw")
	require.NoError(t, err)
	bob, err := h.svc.Open(ctx, conv, "bob", "bob-pw")
	require.NoError(t, err)

	first, err := alice.Send(ctx, "one")
	require.NoError(t, err)
	_, err = alice.Send(ctx, "two")
	require.NoError(t, err)

	// Own messages never count as unread.
	n, err := alice.UnreadCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	n, err = bob.UnreadCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	require.NoError(t, bob.MarkRead(ctx, first.ID))
	n, err = bob.UnreadCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestDeleteMessage(t *testing.T) {
	h := newHarness(t)
	conv := h.provision(t)
	ctx := context.Background()

	alice, err := h.svc.Open(ctx, conv, "alice", "alice-pw")
	require.NoError(t, err)
	rec, err := alice.Send(ctx, "delete me")
	require.NoError(t, err)

	require.NoError(t, alice.Delete(ctx, rec.ID))
	history, err := alice.History(ctx, 0)
	require.NoError(t, err)
	assert.Empty(t, history)

	// Deleting again is not an error.
	require.NoError(t, alice.Delete(ctx, rec.ID))
}

func TestHistoryLimitKeepsNewest(t *testing.T) {
	h := newHarness(t)
	conv := h.provision(t)
	ctx := context.Background()

	alice, err := h.svc.Open(ctx, conv, "alice", "alice-pw")
	require.NoError(t, err)
	for _, text := range []string{"one", "two", "three"} {
		_, err = alice.Send(ctx, text)
		require.NoError(t, err)
	}

	history, err := alice.History(ctx, 2)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, "two", history[0].Text)
	assert.Equal(t, "three", history[1].Text)
}

func TestSubscribeDeliversDecrypted(t *testing.T) {
	h := newHarness(t)
	conv := h.provision(t)
	ctx := context.Background()

	alice, err := h.svc.Open(ctx, conv, "alice", "alice-pw")
	require.NoError(t, err)
	bob, err := h.svc.Open(ctx, conv, "bob", "bob-pw")
	require.NoError(t, err)

	stream, err := bob.Subscribe(ctx)
	require.NoError(t, err)
	defer stream.Cancel()

	sent, err := alice.Send(ctx, "live message")
	require.NoError(t, err)

	select {
	case msg := <-stream.Messages():
		assert.Equal(t, sent.ID, msg.ID)
		assert.Equal(t, "live message", msg.Text)
		assert.False(t, msg.Mine)
	case <-time.After(5 * time.Second):
		t.Fatal("no message delivered on the stream")
	}

	stream.Cancel()
	for {
		select {
		case _, open := <-stream.Messages():
			if !open {
				return
			}
		case <-time.After(5 * time.Second):
			t.Fatal("stream not closed after cancel")
		}
	}
}

func TestGetMessageNotFound(t *testing.T) {
	h := newHarness(t)
	conv := h.provision(t)

	_, err := h.store.GetMessage(context.Background(), conv, "no-such-id")
	require.Error(t, err)
	assert.True(t, chaterr.IsKeyNotFound(err))
	assert.False(t, errors.Is(err, context.Canceled))
}
