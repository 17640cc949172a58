// Package permstest provides an in-memory permission host for tests and
// simulations. Host mimics the Android runtime-permission model: a first
// denial makes the rationale visible, "deny forever" hides it for good and
// later requests for that permission are denied without a dialog.
package permstest

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/kubiakdev/perms/pkg/perms"
)

// Answer is a scripted user response in the permission dialog.
type Answer int

const (
	// Deny refuses the permission; the OS will show a rationale next time.
	Deny Answer = iota
	// Grant accepts the permission.
	Grant
	// DenyForever refuses the permission and ticks "don't ask again".
	DenyForever
)

func (a Answer) String() string {
	switch a {
	case Grant:
		return "grant"
	case DenyForever:
		return "deny_forever"
	default:
		return "deny"
	}
}

// ParseAnswer parses "grant", "deny" or "deny_forever".
func ParseAnswer(s string) (Answer, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "grant":
		return Grant, nil
	case "deny":
		return Deny, nil
	case "deny_forever", "deny-forever":
		return DenyForever, nil
	}
	return Deny, fmt.Errorf("permstest: unknown answer %q", s)
}

// ErrNoRequest is returned by Respond when no request is waiting.
var ErrNoRequest = errors.New("permstest: no request waiting for an answer")

// Request is one call the host received through RequestPermissions.
type Request struct {
	Code        int
	Permissions []string
}

// Host is a fake perms.Provider. Attach it to the Perms it serves so that
// answers are delivered to HandleResult.
type Host struct {
	mu        sync.Mutex
	granted   map[string]bool
	rationale map[string]bool
	forever   map[string]bool
	finishing bool
	requests  []Request
	waiting   *Request
	script    []map[string]Answer
	deliver   func(code int, permissions []string, grants []perms.Grant) error
	failWith  error
}

// NewHost returns a host on which the given permissions are already granted.
func NewHost(granted ...string) *Host {
	h := &Host{
		granted:   make(map[string]bool),
		rationale: make(map[string]bool),
		forever:   make(map[string]bool),
	}
	for _, p := range granted {
		h.granted[p] = true
	}
	return h
}

// Attach routes OS results to p.
func (h *Host) Attach(p *perms.Perms) {
	h.mu.Lock()
	h.deliver = p.HandleResult
	h.mu.Unlock()
}

// Script queues answers for upcoming requests. Each queued map answers one
// request synchronously from inside RequestPermissions.
func (h *Host) Script(answers ...map[string]Answer) {
	h.mu.Lock()
	h.script = append(h.script, answers...)
	h.mu.Unlock()
}

// FailRequests makes RequestPermissions return err. Pass nil to restore.
func (h *Host) FailRequests(err error) {
	h.mu.Lock()
	h.failWith = err
	h.mu.Unlock()
}

// SetFinishing marks the owning context as finishing.
func (h *Host) SetFinishing(finishing bool) {
	h.mu.Lock()
	h.finishing = finishing
	h.mu.Unlock()
}

// IsFinishing implements perms.Lifecycle.
func (h *Host) IsFinishing() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.finishing
}

// IsGranted implements perms.Provider.
func (h *Host) IsGranted(permission string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.granted[permission]
}

// ShouldShowRationale implements perms.Provider.
func (h *Host) ShouldShowRationale(permission string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.rationale[permission]
}

// RequestPermissions implements perms.Provider.
func (h *Host) RequestPermissions(permissions []string, requestCode int) error {
	h.mu.Lock()
	if h.failWith != nil {
		err := h.failWith
		h.mu.Unlock()
		return err
	}
	req := Request{Code: requestCode, Permissions: append([]string(nil), permissions...)}
	h.requests = append(h.requests, req)
	h.waiting = &req
	var answers map[string]Answer
	scripted := len(h.script) > 0
	if scripted {
		answers = h.script[0]
		h.script = h.script[1:]
	}
	h.mu.Unlock()

	if scripted {
		return h.Respond(answers)
	}
	return nil
}

// Requests returns every request received so far.
func (h *Host) Requests() []Request {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]Request(nil), h.requests...)
}

// Respond answers the waiting request. Permissions already granted or
// denied forever are answered by the OS without asking; permissions missing
// from answers are denied.
func (h *Host) Respond(answers map[string]Answer) error {
	h.mu.Lock()
	req := h.waiting
	if req == nil {
		h.mu.Unlock()
		return ErrNoRequest
	}
	h.waiting = nil

	grants := make([]perms.Grant, len(req.Permissions))
	for i, p := range req.Permissions {
		grants[i] = h.answerLocked(p, answers[p])
	}
	deliver := h.deliver
	h.mu.Unlock()

	if deliver == nil {
		return nil
	}
	return deliver(req.Code, req.Permissions, grants)
}

func (h *Host) answerLocked(p string, a Answer) perms.Grant {
	switch {
	case h.granted[p]:
		return perms.Granted
	case h.forever[p]:
		return perms.Denied
	}
	switch a {
	case Grant:
		h.granted[p] = true
		h.rationale[p] = false
		return perms.Granted
	case DenyForever:
		h.forever[p] = true
		h.rationale[p] = false
		return perms.Denied
	default:
		h.rationale[p] = true
		return perms.Denied
	}
}

// Deliver sends a raw result to the attached Perms, bypassing the dialog
// model. Tests use it for duplicate or malformed deliveries.
func (h *Host) Deliver(code int, permissions []string, grants []perms.Grant) error {
	h.mu.Lock()
	deliver := h.deliver
	h.mu.Unlock()
	if deliver == nil {
		return nil
	}
	return deliver(code, permissions, grants)
}

// Revoke clears every recorded state for p, as if the user reset it from
// the system settings.
func (h *Host) Revoke(p string) {
	h.mu.Lock()
	delete(h.granted, p)
	delete(h.rationale, p)
	delete(h.forever, p)
	h.mu.Unlock()
}
