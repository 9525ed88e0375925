package server

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type serverFunc func(ctx context.Context) error

func (f serverFunc) Start(ctx context.Context) error { return f(ctx) }

func blockUntilDone(ctx context.Context) error {
	<-ctx.Done()
	return nil
}

func TestManagerStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() {
		done <- NewManager(serverFunc(blockUntilDone), serverFunc(blockUntilDone)).Start(ctx)
	}()

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("manager did not stop")
	}
}

func TestManagerFailureCancelsOthers(t *testing.T) {
	boom := errors.New("listen failed")

	stopped := make(chan struct{})
	other := serverFunc(func(ctx context.Context) error {
		<-ctx.Done()
		close(stopped)
		return nil
	})

	err := NewManager(other, serverFunc(func(context.Context) error { return boom })).Start(context.Background())
	assert.ErrorIs(t, err, boom)

	select {
	case <-stopped:
	case <-time.After(time.Second):
		t.Fatal("sibling server was not cancelled")
	}
}
