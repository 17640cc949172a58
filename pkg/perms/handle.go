package perms

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
)

// RequestHandle is a prepared request. Exactly one of OnResult or Await may
// be called on it.
type RequestHandle struct {
	perms       *Perms
	permissions []string
	used        atomic.Bool
}

// Permissions returns the permissions this handle requests, in order.
func (h *RequestHandle) Permissions() []string {
	return append([]string(nil), h.permissions...)
}

// OnResult issues the request and registers the callbacks that receive its
// outcome. Callbacks run through the Perms dispatcher. An empty request, or
// one whose permissions are all granted already, completes before OnResult
// returns.
func (h *RequestHandle) OnResult(cb Callbacks) error {
	if !h.used.CompareAndSwap(false, true) {
		return ErrHandleUsed
	}
	dispatch := h.perms.dispatch
	return h.perms.start(h.permissions, func(o Outcome) {
		dispatch(func() { cb.fire(o) })
	}, func(err error) {
		dispatch(func() { cb.fail(err) })
	})
}

// Await issues the request and blocks until its outcome arrives, the
// result is rejected as mismatched, or ctx is done. On cancellation the
// request stays pending; its late result is dropped. The timeout and
// cancellation errors also wrap ctx.Err().
func (h *RequestHandle) Await(ctx context.Context) (Outcome, error) {
	if !h.used.CompareAndSwap(false, true) {
		return Outcome{}, ErrHandleUsed
	}

	type result struct {
		outcome Outcome
		err     error
	}
	resultChan := make(chan result, 1)
	send := func(r result) {
		select {
		case resultChan <- r:
		default:
		}
	}
	err := h.perms.start(h.permissions,
		func(o Outcome) { send(result{outcome: o}) },
		func(err error) { send(result{err: err}) },
	)
	if err != nil {
		return Outcome{}, err
	}

	select {
	case r := <-resultChan:
		return r.outcome, r.err
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return Outcome{}, fmt.Errorf("%w: %w", ErrTimeout, ctx.Err())
		}
		return Outcome{}, fmt.Errorf("%w: %w", ErrCanceled, ctx.Err())
	}
}
