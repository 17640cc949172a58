package perms

import "github.com/kubiakdev/perms/pkg/errors"

// Callbacks receives the result of a request. At most one of OnAllAccepted
// and OnAtLeastOneDenied fires; OnAtLeastOneForeverDenied only fires in
// addition to OnAtLeastOneDenied. OnError fires instead of all of them when
// the host answers with a result that does not match the request. Nil
// handlers are no-ops.
type Callbacks struct {
	OnAllAccepted             func(accepted []string)
	OnAtLeastOneDenied        func(denied []string)
	OnAtLeastOneForeverDenied func(foreverDenied []string)
	OnError                   func(err error)
}

// fire invokes the handlers matching the outcome. A panicking handler is
// reported and does not stop the next one.
func (c Callbacks) fire(o Outcome) {
	if o.AllAccepted() {
		call("perms.OnAllAccepted", c.OnAllAccepted, o.Accepted)
		return
	}
	call("perms.OnAtLeastOneDenied", c.OnAtLeastOneDenied, o.Denied)
	if len(o.ForeverDenied) > 0 {
		call("perms.OnAtLeastOneForeverDenied", c.OnAtLeastOneForeverDenied, o.ForeverDenied)
	}
}

func call(op string, fn func([]string), permissions []string) {
	if fn == nil {
		return
	}
	defer errors.Recover(op)
	fn(permissions)
}

func (c Callbacks) fail(err error) {
	if c.OnError == nil {
		return
	}
	defer errors.Recover("perms.OnError")
	c.OnError(err)
}
