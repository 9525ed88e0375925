package pending

import (
	"context"
	"errors"
	"fmt"

	"github.com/looplab/fsm"

	utilfsm "github.com/autopeer-io/voicelink/internal/pkg/util/fsm"
)

const (
	stateWaiting   = "waiting"
	stateDelivered = "delivered"
	stateAbandoned = "abandoned"

	eventDeliver = "deliver"
	eventAbandon = "abandon"
)

var (
	// ErrSinkConsumed is returned when a response was already delivered.
	ErrSinkConsumed = errors.New("response sink already consumed")

	// ErrSinkAbandoned is returned when the caller stopped waiting.
	ErrSinkAbandoned = errors.New("response sink abandoned by caller")
)

// Response is the terminal answer to a command request.
type Response struct {
	Status int
	// Body is encoded as JSON; nil means an empty body.
	Body any
}

// Sink completes the original request exactly once.
//
// A sink starts in the waiting state and moves to delivered when a response
// is handed over, or to abandoned when the caller goes away first. Both are
// terminal.
type Sink struct {
	machine *fsm.FSM
	result  chan Response
	done    chan struct{}
}

// NewSink returns a sink in the waiting state.
func NewSink() *Sink {
	s := &Sink{
		result: make(chan Response, 1),
		done:   make(chan struct{}),
	}

	s.machine = fsm.NewFSM(
		stateWaiting,
		fsm.Events{
			{Name: eventDeliver, Src: []string{stateWaiting}, Dst: stateDelivered},
			{Name: eventAbandon, Src: []string{stateWaiting}, Dst: stateAbandoned},
		},
		fsm.Callbacks{
			"before_" + eventDeliver: utilfsm.WrapEvent(checkResponseArg),
			"enter_" + stateDelivered: func(_ context.Context, e *fsm.Event) {
				s.result <- e.Args[0].(Response)
				close(s.done)
			},
			"enter_" + stateAbandoned: func(context.Context, *fsm.Event) {
				close(s.done)
			},
		},
	)

	return s
}

func checkResponseArg(_ context.Context, e *fsm.Event) error {
	if len(e.Args) != 1 {
		return fmt.Errorf("deliver expects one response, got %d arguments", len(e.Args))
	}
	if _, ok := e.Args[0].(Response); !ok {
		return fmt.Errorf("deliver expects a Response, got %T", e.Args[0])
	}
	return nil
}

// Deliver hands resp to the waiting caller.
// It returns ErrSinkConsumed or ErrSinkAbandoned when the sink is no longer waiting.
func (s *Sink) Deliver(ctx context.Context, resp Response) error {
	// Delivery must complete even while the process is shutting down.
	err := s.machine.Event(context.WithoutCancel(ctx), eventDeliver, resp)
	if err == nil {
		return nil
	}

	var invalid fsm.InvalidEventError
	if errors.As(err, &invalid) {
		if s.machine.Is(stateAbandoned) {
			return ErrSinkAbandoned
		}
		return ErrSinkConsumed
	}
	return err
}

// Abandon marks the sink as no longer awaited. It reports whether the sink
// was still waiting.
func (s *Sink) Abandon() bool {
	return s.machine.Event(context.Background(), eventAbandon) == nil
}

// Wait blocks until a response is delivered or ctx is done. When ctx ends
// first the sink is abandoned, unless a response raced in.
func (s *Sink) Wait(ctx context.Context) (Response, error) {
	select {
	case resp := <-s.result:
		return resp, nil
	case <-ctx.Done():
		if s.Abandon() || s.machine.Is(stateAbandoned) {
			return Response{}, ctx.Err()
		}
		return <-s.result, nil
	}
}

// Waiting reports whether no terminal state was reached yet.
func (s *Sink) Waiting() bool {
	return s.machine.Is(stateWaiting)
}
