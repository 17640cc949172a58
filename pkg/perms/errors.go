package perms

import "errors"

// Errors returned by the orchestrator.
var (
	// ErrResultMismatch indicates the host delivered a result whose
	// permission or grant list does not line up with the request.
	ErrResultMismatch = errors.New("perms: result does not match request")

	// ErrHandleUsed is returned when OnResult or Await is called twice on
	// the same RequestHandle.
	ErrHandleUsed = errors.New("perms: request handle already used")

	// ErrRequestInFlight is returned when a request is issued while another
	// one from the same owner is still waiting for its result.
	ErrRequestInFlight = errors.New("perms: another request is in flight")

	// ErrOwnerFinishing is returned when the owning UI context is finishing.
	ErrOwnerFinishing = errors.New("perms: owner is finishing")

	// ErrTimeout indicates Await gave up because its context deadline passed.
	ErrTimeout = errors.New("perms: timed out waiting for result")

	// ErrCanceled indicates Await gave up because its context was canceled.
	ErrCanceled = errors.New("perms: canceled while waiting for result")
)
