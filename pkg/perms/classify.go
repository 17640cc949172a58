package perms

import "fmt"

// Outcome is the classification of one completed request. Every requested
// permission is either in Accepted or in Denied; ForeverDenied is the subset
// of Denied the user asked never to be prompted for again. All lists keep
// the order of the original request.
type Outcome struct {
	Accepted      []string
	Denied        []string
	ForeverDenied []string
}

// AllAccepted reports whether no permission was denied.
func (o Outcome) AllAccepted() bool {
	return len(o.Denied) == 0
}

// ForeverDeniedFunc decides whether a denied permission was denied forever.
// rationaleBefore is ShouldShowRationale as captured before the request.
type ForeverDeniedFunc func(permission string, rationaleBefore bool) bool

// RationaleHidden returns the default forever-denied rule: a denied
// permission is forever denied when the OS no longer offers a rationale for
// it once the result is in. This is the host OS's heuristic; it misreports a
// first denial on devices that never show a rationale.
func RationaleHidden(provider Provider) ForeverDeniedFunc {
	return func(permission string, _ bool) bool {
		return !provider.ShouldShowRationale(permission)
	}
}

func acceptedOutcome(permissions []string) Outcome {
	return Outcome{
		Accepted:      append([]string{}, permissions...),
		Denied:        []string{},
		ForeverDenied: []string{},
	}
}

// Classify sorts permissions into outcome buckets using the matching grant
// results. It fails when the two lists differ in length.
func Classify(permissions []string, grants []Grant, rationaleBefore map[string]bool, foreverDenied ForeverDeniedFunc) (Outcome, error) {
	if len(permissions) != len(grants) {
		return Outcome{}, fmt.Errorf("%w: %d permissions, %d grant results", ErrResultMismatch, len(permissions), len(grants))
	}

	out := Outcome{
		Accepted:      make([]string, 0, len(permissions)),
		Denied:        []string{},
		ForeverDenied: []string{},
	}
	for i, p := range permissions {
		if grants[i] == Granted {
			out.Accepted = append(out.Accepted, p)
			continue
		}
		out.Denied = append(out.Denied, p)
		if foreverDenied != nil && foreverDenied(p, rationaleBefore[p]) {
			out.ForeverDenied = append(out.ForeverDenied, p)
		}
	}
	return out, nil
}

// matchResult checks that the host echoed back the requested permissions.
func matchResult(requested, received []string) error {
	if len(requested) != len(received) {
		return fmt.Errorf("%w: requested %d permissions, result has %d", ErrResultMismatch, len(requested), len(received))
	}
	for i := range requested {
		if requested[i] != received[i] {
			return fmt.Errorf("%w: position %d is %q, expected %q", ErrResultMismatch, i, received[i], requested[i])
		}
	}
	return nil
}
