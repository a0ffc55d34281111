package provider

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry(t *testing.T) {
	r := NewRegistry()
	r.Register(&Mock{NameValue: "anthropic"})

	b, err := r.Get("anthropic")
	require.NoError(t, err)
	assert.Equal(t, "anthropic", b.Name())

	_, err = r.Get("openai")
	assert.Error(t, err)
}

func TestMock_RecordsCalls(t *testing.T) {
	m := &Mock{}
	_, err := m.Complete(context.Background(), "haiku",
		[]Message{{Role: RoleUser, Content: "hi"}}, Params{MaxTokens: 64})
	require.NoError(t, err)

	require.Len(t, m.Calls, 1)
	assert.Equal(t, "haiku", m.Calls[0].Model)
	assert.Equal(t, 64, m.Calls[0].Params.MaxTokens)
}

func TestError_Unwrap(t *testing.T) {
	cause := errors.New("connection reset")
	err := &Error{Provider: "anthropic", Model: "opus", Retryable: true, Err: cause}

	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "anthropic")
}
