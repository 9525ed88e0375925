package fsm

import (
	"context"

	"github.com/looplab/fsm"
)

// WrapEvent adapts a callback returning an error into a looplab callback.
// A non-nil error cancels the transition.
func WrapEvent(fn func(ctx context.Context, event *fsm.Event) error) fsm.Callback {
	return func(ctx context.Context, event *fsm.Event) {
		if err := fn(ctx, event); err != nil {
			event.Cancel(err)
		}
	}
}

