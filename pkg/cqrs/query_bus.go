package cqrs

import (
	"context"
	"errors"
	"fmt"
)

// ErrQueryBusShuttingDown is returned when a query is dispatched to a bus that is shutting down.
var ErrQueryBusShuttingDown = errors.New("query bus is shutting down")

// DefaultQueryBus is a simple implementation of the QueryBus interface.
type DefaultQueryBus struct {
	*Bus
}

// NewQueryBus creates a new DefaultQueryBus.
func NewQueryBus(ctx context.Context) *DefaultQueryBus {
	b := &DefaultQueryBus{
		Bus: NewBus("query"),
	}

	if ctx != nil {
		go func() {
			<-ctx.Done()
			b.Shutdown()
		}()
	}

	return b
}

// Register registers a QueryHandler[Q, R].
func (b *DefaultQueryBus) Register(handler interface{}) error {
	return b.Bus.Register(handler, 2)
}

// Dispatch sends a query to its appropriate handler and returns the result.
func (b *DefaultQueryBus) Dispatch(ctx context.Context, query Query) (interface{}, error) {
	results, err := b.call(ctx, query, ErrQueryBusShuttingDown)
	if err != nil {
		return nil, err
	}
	if !results[1].IsNil() {
		return nil, results[1].Interface().(error)
	}
	return results[0].Interface(), nil
}

// DispatchAs dispatches query and asserts the result type.
func DispatchAs[R any](ctx context.Context, bus QueryBus, query Query) (R, error) {
	var zero R
	res, err := bus.Dispatch(ctx, query)
	if err != nil {
		return zero, err
	}
	typed, ok := res.(R)
	if !ok {
		return zero, fmt.Errorf("query %s returned %T", query.Name(), res)
	}
	return typed, nil
}
