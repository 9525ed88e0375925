package adapter

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sample struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

func TestJSONHandler(t *testing.T) {
	var got *sample
	h := JSONHandler(func(_ context.Context, topic string, msg *sample) error {
		assert.Equal(t, "state/alice/lamp", topic)
		got = msg
		return nil
	})

	require.NoError(t, h(context.Background(), "state/alice/lamp", []byte(`{"name":"x","count":2,"extra":true}`)))
	assert.Equal(t, &sample{Name: "x", Count: 2}, got)
}

func TestJSONHandlerInvalidPayload(t *testing.T) {
	called := false
	h := JSONHandler(func(context.Context, string, *sample) error {
		called = true
		return nil
	})

	assert.Error(t, h(context.Background(), "t", []byte(`{not json`)))
	assert.False(t, called)
}
