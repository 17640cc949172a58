package platform

import (
	"sync"

	"github.com/kubiakdev/perms/pkg/errors"
)

// LifecycleChannel receives owner state changes from native code.
const LifecycleChannel = "perms/lifecycle"

// Lifecycle tracks the state of the UI context that owns permission
// requests. Native code reports changes by invoking "didChangeState" with
// {"state": "..."} on LifecycleChannel.
var Lifecycle = &LifecycleService{
	channel:  NewMethodChannel(LifecycleChannel),
	state:    LifecycleStateResumed,
	handlers: make(map[int]LifecycleHandler),
}

// LifecycleService holds the owner state and notifies handlers of changes.
type LifecycleService struct {
	channel  *MethodChannel
	state    LifecycleState
	handlers map[int]LifecycleHandler
	nextID   int
	mu       sync.RWMutex
}

// LifecycleState represents the state of the owning UI context.
type LifecycleState string

const (
	// LifecycleStateResumed indicates the owner is visible and interactive.
	LifecycleStateResumed LifecycleState = "resumed"

	// LifecycleStatePaused indicates the owner is hidden, for example behind
	// the permission dialog itself.
	LifecycleStatePaused LifecycleState = "paused"

	// LifecycleStateFinishing indicates the owner is closing. New requests
	// are refused.
	LifecycleStateFinishing LifecycleState = "finishing"

	// LifecycleStateDestroyed indicates the owner is gone. Pending requests
	// are dropped.
	LifecycleStateDestroyed LifecycleState = "destroyed"
)

// LifecycleHandler is called when lifecycle state changes.
type LifecycleHandler func(state LifecycleState)

func init() {
	Lifecycle.channel.SetHandler(func(method string, args any) (any, error) {
		switch method {
		case "didChangeState":
			m, _ := args.(map[string]any)
			state, ok := m["state"].(string)
			if !ok {
				err := &errors.ParseError{Channel: LifecycleChannel, DataType: "LifecycleState", Got: args}
				errors.Report(&errors.PermsError{
					Op:      "lifecycle.didChangeState",
					Kind:    errors.KindParsing,
					Channel: LifecycleChannel,
					Err:     err,
				})
				return nil, err
			}
			Lifecycle.updateState(LifecycleState(state))
			return nil, nil
		default:
			return nil, ErrMethodNotFound
		}
	})
}

// State returns the current lifecycle state.
func (l *LifecycleService) State() LifecycleState {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.state
}

// IsFinishing reports whether the owner is finishing or destroyed.
func (l *LifecycleService) IsFinishing() bool {
	switch l.State() {
	case LifecycleStateFinishing, LifecycleStateDestroyed:
		return true
	}
	return false
}

// AddHandler registers a handler to be called on lifecycle changes.
// Returns a function that removes the handler.
func (l *LifecycleService) AddHandler(handler LifecycleHandler) func() {
	l.mu.Lock()
	id := l.nextID
	l.nextID++
	l.handlers[id] = handler
	l.mu.Unlock()

	return func() {
		l.mu.Lock()
		delete(l.handlers, id)
		l.mu.Unlock()
	}
}

// updateState updates the lifecycle state and notifies handlers.
func (l *LifecycleService) updateState(newState LifecycleState) {
	l.mu.Lock()
	if l.state == newState {
		l.mu.Unlock()
		return
	}
	l.state = newState
	handlers := make([]LifecycleHandler, 0, len(l.handlers))
	for _, h := range l.handlers {
		handlers = append(handlers, h)
	}
	l.mu.Unlock()

	for _, h := range handlers {
		h(newState)
	}
}

func (l *LifecycleService) reset() {
	l.mu.Lock()
	l.state = LifecycleStateResumed
	l.handlers = make(map[int]LifecycleHandler)
	l.mu.Unlock()
}
