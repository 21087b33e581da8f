package sealchat_test

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	sealchat "github.com/sealchat/sealchat"
	"github.com/sealchat/sealchat/pkg/types"
)

func newClient(t *testing.T) *sealchat.Client {
	t.Helper()
	client, err := sealchat.New(sealchat.Config{Paths: []string{t.TempDir()}})
	require.NoError(t, err)
	require.NoError(t, client.Start(context.Background()))
	t.Cleanup(func() { client.CloseWithoutContext() })
	return client
}

func TestNewRequiresPath(t *testing.T) {
	_, err := sealchat.New(sealchat.Config{})
	require.Error(t, err)
}

func TestAccessorsBeforeStart(t *testing.T) {
	client, err := sealchat.New(sealchat.Config{Paths: []string{t.TempDir()}})
	require.NoError(t, err)

	_, err = client.Store()
	require.ErrorIs(t, err, sealchat.ErrNotStarted)
	_, err = client.Lifecycle()
	require.ErrorIs(t, err, sealchat.ErrNotStarted)
	_, err = client.OpenChat(context.Background(), "alice", "bob", "pw")
	require.ErrorIs(t, err, sealchat.ErrNotStarted)
}

func TestStartAndCloseAreIdempotent(t *testing.T) {
	client, err := sealchat.New(sealchat.Config{Paths: []string{t.TempDir()}})
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, client.Start(ctx))
	require.NoError(t, client.Start(ctx))
	require.NoError(t, client.Close(ctx))
	require.NoError(t, client.Close(ctx))

	_, err = client.Store()
	require.ErrorIs(t, err, sealchat.ErrClosed)
}

func TestTwoPartyConversation(t *testing.T) {
	client := newClient(t)
	ctx := context.Background()

	alice, err := client.OpenChat(ctx, "alice", "bob", "alice-pw")
	require.NoError(t, err)
	bob, err := client.OpenChat(ctx, "bob", "alice", "bob-pw")
	require.NoError(t, err)
	assert.Equal(t, alice.Conversation(), bob.Conversation())

	_, err = alice.Send(ctx, "hi bob")
	require.NoError(t, err)

	history, err := bob.History(ctx, 0)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, "hi bob", history[0].Text)
	assert.False(t, history[0].Mine)
}

type fakeCreds struct {
	password string
	updated  int
}

func (f *fakeCreds) Reauthenticate(_ context.Context, password string) error {
	if password != f.password {
		return errors.New("invalid credential")
	}
	return nil
}

func (f *fakeCreds) UpdatePassword(_ context.Context, newPassword string) error {
	f.password = newPassword
	f.updated++
	return nil
}

func TestPasswordChangeThroughFacade(t *testing.T) {
	client := newClient(t)
	ctx := context.Background()

	_, err := client.OpenChat(ctx, "alice", "bob", "old-pw")
	require.NoError(t, err)
	_, err = client.OpenChat(ctx, "alice", "carol", "old-pw")
	require.NoError(t, err)

	creds := &fakeCreds{password: "old-pw"}
	pc, err := client.PasswordChanger(creds)
	require.NoError(t, err)

	life, err := client.Lifecycle()
	require.NoError(t, err)

	result, err := pc.ChangePassword(ctx, fixedIdentity("alice"), "old-pw", "new-pw")
	require.NoError(t, err)
	assert.Equal(t, 2, result.Succeeded)
	assert.Equal(t, 1, creds.updated)

	// Sessions reopen under the new password only.
	convs := result.Results
	require.NotEmpty(t, convs)
	_, err = life.OwnPrivateKey(ctx, convs[0].Conversation, "alice", "new-pw")
	require.NoError(t, err)
}

type fixedIdentity types.ParticipantID

func (f fixedIdentity) ParticipantID() types.ParticipantID { return types.ParticipantID(f) }
func (f fixedIdentity) EmailVerified() bool                { return true }

func TestBackupRestoreRoundTrip(t *testing.T) {
	source := newClient(t)
	ctx := context.Background()

	alice, err := source.OpenChat(ctx, "alice", "bob", "alice-pw")
	require.NoError(t, err)
	_, err = source.OpenChat(ctx, "bob", "alice", "bob-pw")
	require.NoError(t, err)
	_, err = alice.Send(ctx, "survives the backup")
	require.NoError(t, err)

	var snapshot bytes.Buffer
	require.NoError(t, source.Backup(ctx, &snapshot))

	target := newClient(t)
	require.NoError(t, target.Restore(ctx, &snapshot))

	restored, err := target.OpenChat(ctx, "alice", "bob", "alice-pw")
	require.NoError(t, err)
	history, err := restored.History(ctx, 0)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, "survives the backup", history[0].Text)
}
