package protocol

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeLogin(t *testing.T) {
	msg, err := Decode([]byte(`{"type":"login","username":"user1","password":"pass123"}`))
	require.NoError(t, err)

	login, ok := msg.(*Login)
	require.True(t, ok, "expected *Login, got %T", msg)
	assert.Equal(t, "user1", login.Username)
	assert.Equal(t, "pass123", login.Password)
}

func TestDecodeChatMessage(t *testing.T) {
	msg, err := Decode([]byte(`{"type":"chat_message","message":"hello","sender":"spoofed","timestamp":"00:00:00"}`))
	require.NoError(t, err)

	chat, ok := msg.(*ChatMessage)
	require.True(t, ok, "expected *ChatMessage, got %T", msg)
	assert.Equal(t, "hello", chat.Message)
	// Sender/timestamp decode as-is; the server overwrites them before relay.
	assert.Equal(t, "spoofed", chat.Sender)
}

func TestDecodeUnknownType(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"unrecognized type", `{"type":"shrug"}`},
		{"missing type", `{"message":"hi"}`},
		{"empty object", `{}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode([]byte(tt.raw))
			var unknownErr *UnknownTypeError
			require.ErrorAs(t, err, &unknownErr)
		})
	}
}

func TestDecodeMalformed(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"not json", "hello there"},
		{"truncated", `{"type":"login","user`},
		{"wrong top-level shape", `[1,2,3]`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode([]byte(tt.raw))
			require.Error(t, err)

			var unknownErr *UnknownTypeError
			assert.False(t, errors.As(err, &unknownErr),
				"malformed frame must not be reported as an unknown type")
		})
	}
}

func TestAuthResponseShapes(t *testing.T) {
	success := NewAuthSuccess("user2")
	assert.True(t, success.Success)
	assert.Equal(t, "user2", success.Username)
	assert.Empty(t, success.Message)

	failure := NewAuthFailure("invalid username or password")
	assert.False(t, failure.Success)
	assert.Empty(t, failure.Username)
	assert.Equal(t, "invalid username or password", failure.Message)
}

func TestNewStatusUsesSystemSender(t *testing.T) {
	st := NewStatus("'user1' joined the chat", "12:00:00")
	assert.Equal(t, SystemSender, st.Sender)
	assert.Equal(t, TypeStatus, st.Type)
}
