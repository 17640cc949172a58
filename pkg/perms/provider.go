package perms

// Grant is the host's answer for a single permission, using the values of
// the OS constants PERMISSION_GRANTED and PERMISSION_DENIED.
type Grant int

const (
	// Granted means the user accepted the permission.
	Granted Grant = 0
	// Denied means the user refused the permission, or the OS refused it on
	// the user's behalf because it was previously denied forever.
	Denied Grant = -1
)

func (g Grant) String() string {
	if g == Granted {
		return "granted"
	}
	return "denied"
}

// Provider is the host capability the orchestrator drives. Implementations
// wrap the OS runtime-permission API of the owning UI context.
//
// RequestPermissions must not block on the user: the answer is delivered
// later by forwarding the OS result to Perms.HandleResult, possibly from
// within RequestPermissions itself.
type Provider interface {
	// IsGranted reports whether the permission is currently held.
	IsGranted(permission string) bool

	// ShouldShowRationale reports whether the OS would show a rationale for
	// the permission right now.
	ShouldShowRationale(permission string) bool

	// RequestPermissions shows the OS permission dialog for the given
	// permissions, tagged with requestCode.
	RequestPermissions(permissions []string, requestCode int) error
}

// ForeverDeniedDetector is implemented by providers whose platform has its
// own rule for "denied, never ask again". rationaleBefore is the value of
// ShouldShowRationale captured just before the request was issued.
type ForeverDeniedDetector interface {
	IsForeverDenied(permission string, rationaleBefore bool) bool
}

// Lifecycle is implemented by providers that know when their owning UI
// context is going away. Requests are not issued for a finishing owner.
type Lifecycle interface {
	IsFinishing() bool
}
