package protocol

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMessageFromJSON_Call(t *testing.T) {
	msg, err := MessageFromJSON([]byte(`{"type":"CALL","id":"c1","ticket":"t","command":"test_uplink_connection","args":[]}`))
	require.NoError(t, err)

	assert.Equal(t, TypeCall, msg.Type)
	assert.Equal(t, "c1", msg.ID)
	assert.Equal(t, "test_uplink_connection", msg.Command)
	assert.Equal(t, "t", msg.Ticket)
}

func TestMessageFromJSON_Rejects(t *testing.T) {
	_, err := MessageFromJSON([]byte(`not json`))
	assert.Error(t, err)

	_, err = MessageFromJSON([]byte(`{"id":"c1"}`))
	assert.ErrorContains(t, err, "missing type")
}

func TestNewAuth_CarriesVersion(t *testing.T) {
	data, err := NewAuth("secret").ToJSON()
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"AUTH","key":"secret","v":1}`, string(data))
}

func TestNewErrorResponse(t *testing.T) {
	msg := NewErrorResponse("c9", ErrTypeNoServerFunction, "nope")

	assert.Equal(t, TypeResponse, msg.Type)
	assert.Nil(t, msg.Response)
	assert.Equal(t, "NoServerFunctionError: nope", msg.Error.String())

	var nilErr *Error
	assert.Equal(t, "", nilErr.String())
}
