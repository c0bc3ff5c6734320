package chat

import (
	"encoding/json"
	"testing"

	"github.com/dronenet/server/internal/core"
	"github.com/dronenet/server/pkg/behavior"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeEnvelope(t *testing.T, data []byte) behavior.Envelope {
	t.Helper()
	var env behavior.Envelope
	require.NoError(t, json.Unmarshal(data, &env))
	return env
}

func request(kind string, payload any) []byte {
	b, _ := json.Marshal(behavior.Envelope{Kind: kind, Payload: payload})
	return b
}

func TestSetPathUnsupported(t *testing.T) {
	b := New()
	err := b.SetPath("/tmp")
	require.ErrorIs(t, err, core.ErrWrongServerType)
}

func TestRegisterThenClientList(t *testing.T) {
	b := New()
	resp, dest := b.Handle(request(KindRegisterClient, registerClientPayload{Username: "alice"}), 7)

	assert.Equal(t, uint8(7), uint8(dest))
	env := decodeEnvelope(t, resp)
	assert.Equal(t, KindClientList, env.Kind)
}

func TestRegisterDuplicateRejected(t *testing.T) {
	b := New()
	b.Handle(request(KindRegisterClient, registerClientPayload{Username: "alice"}), 7)

	resp, _ := b.Handle(request(KindRegisterClient, registerClientPayload{Username: "alice"}), 8)
	env := decodeEnvelope(t, resp)
	assert.Equal(t, KindErrorAlreadyRegistered, env.Kind)
}

func TestSendMessageToUnknownRecipientYieldsNotFound(t *testing.T) {
	b := New()
	b.Handle(request(KindRegisterClient, registerClientPayload{Username: "alice"}), 7)

	resp, dest := b.Handle(request(KindSendMessage, sendMessagePayload{To: "bob", Text: "hi"}), 7)

	assert.Equal(t, uint8(7), uint8(dest), "failure response routes back to the sender")
	env := decodeEnvelope(t, resp)
	assert.Equal(t, KindErrorNotFound, env.Kind)
}

func TestSendMessageDeliversToRecipientNode(t *testing.T) {
	b := New()
	b.Handle(request(KindRegisterClient, registerClientPayload{Username: "alice"}), 7)
	b.Handle(request(KindRegisterClient, registerClientPayload{Username: "bob"}), 8)

	resp, dest := b.Handle(request(KindSendMessage, sendMessagePayload{To: "bob", Text: "hi"}), 7)

	assert.Equal(t, uint8(8), uint8(dest), "message routes to the recipient's node")
	env := decodeEnvelope(t, resp)
	assert.Equal(t, KindMessage, env.Kind)
}
