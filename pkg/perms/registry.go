package perms

import "sync"

// Request codes must fit in the lower 16 bits on Android.
const (
	// DefaultBaseRequestCode is the first request code handed out.
	DefaultBaseRequestCode = 1410
	maxRequestCode         = 0xFFFF
)

// CodeAllocator hands out request codes, starting at a base and wrapping
// from 65535 to 1. Perms instances whose results arrive on a shared channel
// must share one allocator so that a code identifies a single request.
type CodeAllocator struct {
	mu   sync.Mutex
	next int
}

// NewCodeAllocator returns an allocator starting at base. Values outside
// 1..65535 fall back to DefaultBaseRequestCode.
func NewCodeAllocator(base int) *CodeAllocator {
	if base < 1 || base > maxRequestCode {
		base = DefaultBaseRequestCode
	}
	return &CodeAllocator{next: base}
}

// Next returns the next request code.
func (a *CodeAllocator) Next() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	code := a.next
	a.next++
	if a.next > maxRequestCode {
		a.next = 1
	}
	return code
}

// pendingRequest is one in-flight request, waiting for its OS result.
type pendingRequest struct {
	code            int
	permissions     []string
	rationaleBefore map[string]bool
	deliver         func(Outcome)
	fail            func(error)
}

// registry binds request codes to pending requests. An entry can be
// completed exactly once; lookup and removal share one critical section so
// a result delivered from another goroutine cannot be dispatched twice.
type registry struct {
	mu      sync.Mutex
	pending map[int]*pendingRequest
	codes   *CodeAllocator
}

func newRegistry(codes *CodeAllocator) *registry {
	return &registry{
		pending: make(map[int]*pendingRequest),
		codes:   codes,
	}
}

// begin snapshots the rationale flags, stores the entry and asks the
// provider to show the dialog. The entry is stored before the provider is
// called so that a synchronous delivery finds it.
func (r *registry) begin(provider Provider, permissions []string, deliver func(Outcome), fail func(error)) (int, error) {
	rationale := make(map[string]bool, len(permissions))
	for _, p := range permissions {
		rationale[p] = provider.ShouldShowRationale(p)
	}

	r.mu.Lock()
	if len(r.pending) > 0 {
		r.mu.Unlock()
		return 0, ErrRequestInFlight
	}
	code := r.codes.Next()
	r.pending[code] = &pendingRequest{
		code:            code,
		permissions:     permissions,
		rationaleBefore: rationale,
		deliver:         deliver,
		fail:            fail,
	}
	r.mu.Unlock()

	if err := provider.RequestPermissions(append([]string(nil), permissions...), code); err != nil {
		r.complete(code)
		return 0, err
	}
	return code, nil
}

// complete removes and returns the entry for code.
func (r *registry) complete(code int) (*pendingRequest, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	req, ok := r.pending[code]
	if ok {
		delete(r.pending, code)
	}
	return req, ok
}

func (r *registry) size() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.pending)
}

// clear drops every pending entry and returns how many were dropped.
func (r *registry) clear() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := len(r.pending)
	clear(r.pending)
	return n
}
