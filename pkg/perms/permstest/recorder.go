package permstest

import (
	"sync"

	"github.com/kubiakdev/perms/pkg/perms"
)

// Recorder collects callback invocations.
type Recorder struct {
	mu            sync.Mutex
	accepted      [][]string
	denied        [][]string
	foreverDenied [][]string
	errs          []error
}

// Callbacks returns callbacks that record into r.
func (r *Recorder) Callbacks() perms.Callbacks {
	return perms.Callbacks{
		OnAllAccepted: func(p []string) {
			r.mu.Lock()
			r.accepted = append(r.accepted, p)
			r.mu.Unlock()
		},
		OnAtLeastOneDenied: func(p []string) {
			r.mu.Lock()
			r.denied = append(r.denied, p)
			r.mu.Unlock()
		},
		OnAtLeastOneForeverDenied: func(p []string) {
			r.mu.Lock()
			r.foreverDenied = append(r.foreverDenied, p)
			r.mu.Unlock()
		},
		OnError: func(err error) {
			r.mu.Lock()
			r.errs = append(r.errs, err)
			r.mu.Unlock()
		},
	}
}

// Accepted returns the arguments of every OnAllAccepted call.
func (r *Recorder) Accepted() [][]string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([][]string(nil), r.accepted...)
}

// Denied returns the arguments of every OnAtLeastOneDenied call.
func (r *Recorder) Denied() [][]string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([][]string(nil), r.denied...)
}

// ForeverDenied returns the arguments of every OnAtLeastOneForeverDenied call.
func (r *Recorder) ForeverDenied() [][]string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([][]string(nil), r.foreverDenied...)
}

// Errors returns the arguments of every OnError call.
func (r *Recorder) Errors() []error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]error(nil), r.errs...)
}

// Calls returns the total number of outcome callback invocations. OnError
// calls are not counted.
func (r *Recorder) Calls() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.accepted) + len(r.denied) + len(r.foreverDenied)
}
