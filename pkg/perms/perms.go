// Package perms requests runtime permissions from a host OS and reports
// which were accepted, denied, or denied forever.
//
// A request is issued through a Provider, the OS answers asynchronously and
// the host forwards that answer to HandleResult. The answer is matched to
// its request by request code, classified, and delivered exactly once:
//
//	p := perms.New(provider)
//	err := p.Request("android.permission.CAMERA").OnResult(perms.Callbacks{
//		OnAllAccepted:             func(accepted []string) { ... },
//		OnAtLeastOneDenied:        func(denied []string) { ... },
//		OnAtLeastOneForeverDenied: func(foreverDenied []string) { ... },
//	})
//
// A Perms serves a single owner and allows one request in flight at a time.
package perms

import (
	stderrors "errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/kubiakdev/perms/pkg/errors"
)

// Perms orchestrates permission requests for one owning UI context.
type Perms struct {
	provider      Provider
	registry      *registry
	logger        zerolog.Logger
	dispatch      func(func())
	foreverDenied ForeverDeniedFunc
	skipGranted   bool
}

// Option configures a Perms.
type Option func(*options)

type options struct {
	logger        zerolog.Logger
	dispatch      func(func())
	baseCode      int
	codes         *CodeAllocator
	foreverDenied ForeverDeniedFunc
	skipGranted   bool
}

// WithLogger sets the logger used for request tracing. Defaults to a no-op logger.
func WithLogger(l zerolog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithDispatcher sets the function that schedules callbacks, typically onto
// the UI thread. Defaults to calling them inline.
func WithDispatcher(fn func(func())) Option {
	return func(o *options) { o.dispatch = fn }
}

// WithBaseRequestCode sets the first request code. Values outside 1..65535
// fall back to DefaultBaseRequestCode.
func WithBaseRequestCode(code int) Option {
	return func(o *options) { o.baseCode = code }
}

// WithCodeAllocator makes the Perms draw request codes from a shared
// allocator. Use it when several Perms receive results through one channel.
// It takes precedence over WithBaseRequestCode.
func WithCodeAllocator(codes *CodeAllocator) Option {
	return func(o *options) { o.codes = codes }
}

// WithForeverDeniedPredicate overrides the forever-denied rule, taking
// precedence over a provider implementing ForeverDeniedDetector.
func WithForeverDeniedPredicate(fn ForeverDeniedFunc) Option {
	return func(o *options) { o.foreverDenied = fn }
}

// WithSkipGranted controls whether a request whose permissions are all held
// already completes without showing a dialog. Enabled by default.
func WithSkipGranted(skip bool) Option {
	return func(o *options) { o.skipGranted = skip }
}

// New returns a Perms driving the given provider.
func New(provider Provider, opts ...Option) *Perms {
	o := options{
		logger:      zerolog.Nop(),
		baseCode:    DefaultBaseRequestCode,
		skipGranted: true,
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.dispatch == nil {
		o.dispatch = func(fn func()) { fn() }
	}
	if o.codes == nil {
		o.codes = NewCodeAllocator(o.baseCode)
	}

	foreverDenied := o.foreverDenied
	if foreverDenied == nil {
		if d, ok := provider.(ForeverDeniedDetector); ok {
			foreverDenied = d.IsForeverDenied
		} else {
			foreverDenied = RationaleHidden(provider)
		}
	}

	return &Perms{
		provider:      provider,
		registry:      newRegistry(o.codes),
		logger:        o.logger.With().Str("component", "perms").Logger(),
		dispatch:      o.dispatch,
		foreverDenied: foreverDenied,
		skipGranted:   o.skipGranted,
	}
}

// Request prepares a request for the given permissions. Nothing is shown
// until OnResult or Await is called on the returned handle.
func (p *Perms) Request(permissions ...string) *RequestHandle {
	return &RequestHandle{
		perms:       p,
		permissions: append([]string(nil), permissions...),
	}
}

// HandleResult is the delivery hook for the OS result. The host forwards
// the request code, permissions and grant results unmodified.
//
// Results for unknown or already completed request codes are ignored. A
// result that does not line up with its request fails that request: the
// error, wrapping ErrResultMismatch, is returned here and handed to the
// requester (OnError, or the error returned by Await); no outcome callback
// fires.
func (p *Perms) HandleResult(requestCode int, permissions []string, grants []Grant) error {
	req, ok := p.registry.complete(requestCode)
	if !ok {
		p.logger.Debug().Int("request_code", requestCode).Msg("ignoring result for unknown request")
		return nil
	}

	outcome, err := p.classify(req, permissions, grants)
	if err != nil {
		errors.Report(&errors.PermsError{
			Op:          "perms.HandleResult",
			Kind:        errors.KindProtocol,
			RequestCode: requestCode,
			Err:         err,
		})
		if req.fail != nil {
			req.fail(err)
		}
		return err
	}

	p.logger.Debug().
		Int("request_code", requestCode).
		Strs("accepted", outcome.Accepted).
		Strs("denied", outcome.Denied).
		Strs("forever_denied", outcome.ForeverDenied).
		Msg("request completed")
	req.deliver(outcome)
	return nil
}

func (p *Perms) classify(req *pendingRequest, permissions []string, grants []Grant) (Outcome, error) {
	if err := matchResult(req.permissions, permissions); err != nil {
		return Outcome{}, err
	}
	return Classify(req.permissions, grants, req.rationaleBefore, p.foreverDenied)
}

// Pending returns the number of requests waiting for a result.
func (p *Perms) Pending() int {
	return p.registry.size()
}

// Clear drops all pending requests without firing their callbacks. Hosts
// call it when the owning UI context is destroyed. It returns how many
// requests were dropped.
func (p *Perms) Clear() int {
	n := p.registry.clear()
	if n > 0 {
		p.logger.Debug().Int("dropped", n).Msg("cleared pending requests")
	}
	return n
}

// start runs the request and arranges for deliver to receive its outcome.
func (p *Perms) start(permissions []string, deliver func(Outcome), fail func(error)) error {
	if lc, ok := p.provider.(Lifecycle); ok && lc.IsFinishing() {
		return ErrOwnerFinishing
	}

	if len(permissions) == 0 {
		deliver(acceptedOutcome(nil))
		return nil
	}

	if p.skipGranted && p.allGranted(permissions) {
		p.logger.Debug().Strs("permissions", permissions).Msg("all permissions already granted")
		deliver(acceptedOutcome(permissions))
		return nil
	}

	code, err := p.registry.begin(p.provider, permissions, deliver, fail)
	if err != nil {
		if stderrors.Is(err, ErrRequestInFlight) {
			return err
		}
		return fmt.Errorf("perms: request permissions: %w", err)
	}
	p.logger.Debug().Int("request_code", code).Strs("permissions", permissions).Msg("permission request issued")
	return nil
}

func (p *Perms) allGranted(permissions []string) bool {
	for _, perm := range permissions {
		if !p.provider.IsGranted(perm) {
			return false
		}
	}
	return true
}
