package types_test

import (
	"encoding/json"
	"testing"

	"github.com/sealchat/sealchat/pkg/types"
	"github.com/stretchr/testify/assert"
)

func TestNewConversationIDSymmetry(t *testing.T) {
	pairs := [][2]types.ParticipantID{
		{"alice", "bob"},
		{"zed", "amy"},
		{"u1000", "u0999"},
		{"AAA", "aaa"},
	}

	for _, pair := range pairs {
		ab, err := types.NewConversationID(pair[0], pair[1])
		assert.NoError(t, err)
		ba, err := types.NewConversationID(pair[1], pair[0])
		assert.NoError(t, err)
		assert.Equal(t, ab, ba)
	}
}

func TestNewConversationIDRejectsSeparator(t *testing.T) {
	_, err := types.NewConversationID("al_ice", "bob")
	assert.Error(t, err)

	_, err = types.NewConversationID("alice", "b_ob")
	assert.Error(t, err)
}

func TestNewConversationIDRejectsEmptyAndSelf(t *testing.T) {
	_, err := types.NewConversationID("", "bob")
	assert.Error(t, err)

	_, err = types.NewConversationID("alice", "alice")
	assert.Error(t, err)
}

func TestConversationIDParticipants(t *testing.T) {
	conv, err := types.NewConversationID("bob", "alice")
	assert.NoError(t, err)

	a, b, err := conv.Participants()
	assert.NoError(t, err)
	assert.Equal(t, types.ParticipantID("alice"), a)
	assert.Equal(t, types.ParticipantID("bob"), b)

	other, err := conv.Counterpart("alice")
	assert.NoError(t, err)
	assert.Equal(t, types.ParticipantID("bob"), other)

	_, err = conv.Counterpart("mallory")
	assert.Error(t, err)
}

func TestEnvelopeJSONNumberArrays(t *testing.T) {
	env := types.Envelope{
		IV:         types.ByteSeq{0, 1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 255},
		Ciphertext: types.ByteSeq{200, 0, 17},
	}

	text, err := env.Encode()
	assert.NoError(t, err)
	assert.JSONEq(t, `{"iv":[0,1,2,3,4,5,6,7,8,9,10,255],"ciphertext":[200,0,17]}`, text)

	back, err := types.DecodeEnvelope(text)
	assert.NoError(t, err)
	assert.Equal(t, env, back)
}

func TestDecodeEnvelopeRejectsBadInput(t *testing.T) {
	_, err := types.DecodeEnvelope(`{"iv":[1,2],"ciphertext":[3]}`)
	assert.Error(t, err, "iv must be 12 bytes")

	_, err = types.DecodeEnvelope(`{"iv":[0,0,0,0,0,0,0,0,0,0,0,300],"ciphertext":[]}`)
	assert.Error(t, err, "elements above 255 must be rejected")

	_, err = types.DecodeEnvelope(`not json`)
	assert.Error(t, err)
}

func TestMessageRecordJSONShape(t *testing.T) {
	rec := types.MessageRecord{
		ID:       "m1",
		SenderID: "alice",
	}
	raw, err := json.Marshal(rec)
	assert.NoError(t, err)
	assert.Contains(t, string(raw), `"senderId":"alice"`)
	assert.Contains(t, string(raw), `"forRecipient"`)
	assert.Contains(t, string(raw), `"forSender"`)
}
