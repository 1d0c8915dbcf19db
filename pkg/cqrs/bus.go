// Package cqrs implements the Command Query Responsibility Segregation pattern.
package cqrs

import (
	"context"
	"fmt"
	"reflect"
	"sync"
)

// NameProvider is implemented by both commands and queries.
type NameProvider interface {
	// Name returns the name of the message (command or query).
	Name() string
}

// ActionProvider groups the lifecycle operations shared by both buses.
type ActionProvider interface {
	// Register registers a handler. The handler type decides the message it serves.
	Register(handler interface{}) error

	// Shutdown initiates a graceful shutdown of the bus.
	// New messages will be rejected, but existing ones will be allowed to complete.
	Shutdown()

	// WaitForCompletion waits for all active messages to complete.
	WaitForCompletion()
}

var contextType = reflect.TypeOf((*context.Context)(nil)).Elem()

// Bus is the shared registry used by the command and the query bus.
type Bus struct {
	handlers       map[string]interface{}
	mutex          sync.RWMutex
	isShuttingDown bool
	activeMessages sync.WaitGroup
	busType        string // "command" or "query"
}

// NewBus creates a new Bus with the specified type.
func NewBus(busType string) *Bus {
	return &Bus{
		handlers: make(map[string]interface{}),
		busType:  busType,
	}
}

// Register registers a handler. The handler must be a pointer with a method
// Handle(ctx context.Context, msg M) ... where M implements NameProvider;
// numOut is the number of values Handle must return.
func (b *Bus) Register(handler interface{}, numOut int) error {
	handlerType := reflect.TypeOf(handler)
	if handlerType == nil || handlerType.Kind() != reflect.Ptr {
		return fmt.Errorf("handler must be a pointer to a struct, got %T", handler)
	}

	handleMethod, exists := handlerType.MethodByName("Handle")
	if !exists {
		return fmt.Errorf("handler %T does not implement Handle method", handler)
	}

	methodType := handleMethod.Type
	if methodType.NumIn() != 3 { // receiver + ctx + message
		return fmt.Errorf("Handle method of %T must accept (context.Context, %s)", handler, b.busType)
	}
	if !methodType.In(1).Implements(contextType) {
		return fmt.Errorf("first parameter of %T.Handle must be context.Context", handler)
	}
	if methodType.NumOut() != numOut {
		return fmt.Errorf("Handle method of %T must return %d values", handler, numOut)
	}

	msgInstance := reflect.New(methodType.In(2)).Elem().Interface()
	msg, ok := msgInstance.(NameProvider)
	if !ok {
		return fmt.Errorf("parameter type %s does not implement the %s interface", methodType.In(2), b.busType)
	}

	b.mutex.Lock()
	defer b.mutex.Unlock()

	if _, exists := b.handlers[msg.Name()]; exists {
		return fmt.Errorf("handler for %s %s already registered", b.busType, msg.Name())
	}
	b.handlers[msg.Name()] = handler
	return nil
}

// Shutdown initiates a graceful shutdown of the bus.
func (b *Bus) Shutdown() {
	b.mutex.Lock()
	defer b.mutex.Unlock()
	b.isShuttingDown = true
}

// WaitForCompletion waits for all active messages to complete.
func (b *Bus) WaitForCompletion() {
	b.activeMessages.Wait()
}

// IsShuttingDown returns true if the bus is shutting down.
func (b *Bus) IsShuttingDown() bool {
	b.mutex.RLock()
	defer b.mutex.RUnlock()
	return b.isShuttingDown
}

// call looks up the handler for msg and invokes it, tracking the active count.
func (b *Bus) call(ctx context.Context, msg NameProvider, shutdownErr error) ([]reflect.Value, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	b.mutex.RLock()
	if b.isShuttingDown {
		b.mutex.RUnlock()
		return nil, shutdownErr
	}
	handler, exists := b.handlers[msg.Name()]
	if exists {
		b.activeMessages.Add(1)
	}
	b.mutex.RUnlock()

	if !exists {
		return nil, fmt.Errorf("no handler registered for %s %s", b.busType, msg.Name())
	}
	defer b.activeMessages.Done()

	method := reflect.ValueOf(handler).MethodByName("Handle")
	return method.Call([]reflect.Value{reflect.ValueOf(ctx), reflect.ValueOf(msg)}), nil
}
