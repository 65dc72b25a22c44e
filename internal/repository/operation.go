// Package repository implements the synchronizing repositories for items,
// lists and photos.
//
// Every call returns an Operation immediately and runs against the remote
// store in the background. Each call concludes with exactly one terminal
// event, published on the bus and available from the Operation.
package repository

import (
	"context"
	"sync"

	"github.com/dukerupert/shelflife/internal/event"
)

// Operation is the handle of one repository call.
type Operation struct {
	op    event.Op
	done  chan struct{}
	once  sync.Once
	event event.Event
}

func newOperation(op event.Op) *Operation {
	return &Operation{op: op, done: make(chan struct{})}
}

// Op identifies the call.
func (o *Operation) Op() event.Op {
	return o.op
}

// Done is closed once the terminal event has been published.
func (o *Operation) Done() <-chan struct{} {
	return o.done
}

// Event returns the terminal event, or nil while the operation is running.
func (o *Operation) Event() event.Event {
	select {
	case <-o.done:
		return o.event
	default:
		return nil
	}
}

// Wait blocks until the terminal event is available or ctx ends. Giving up
// on the wait does not stop the operation.
func (o *Operation) Wait(ctx context.Context) (event.Event, error) {
	select {
	case <-o.done:
		return o.event, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// resolve publishes e and completes the operation. Only the first call has
// any effect.
func (o *Operation) resolve(bus *event.Bus, e event.Event) {
	o.once.Do(func() {
		if e == nil {
			e = event.NoResult{Op: o.op}
		}
		bus.Publish(e)
		o.event = e
		close(o.done)
	})
}
