package platform

import (
	"context"
	"sync"

	"github.com/kubiakdev/perms/pkg/errors"
	"github.com/kubiakdev/perms/pkg/perms"
)

// Channel names used by the permission host.
const (
	PermissionsChannel = "perms/permissions"
	ResultsChannel     = "perms/permissions/results"
)

var (
	permissionChannelsOnce sync.Once
	permissionMethods      *MethodChannel
	permissionResults      *EventChannel

	// Every Perms attached to ResultsChannel draws from one allocator so a
	// result event matches at most one pending request.
	requestCodesMu sync.Mutex
	requestCodes   = perms.NewCodeAllocator(perms.DefaultBaseRequestCode)
)

func sharedRequestCodes() *perms.CodeAllocator {
	requestCodesMu.Lock()
	defer requestCodesMu.Unlock()
	return requestCodes
}

func resetRequestCodes() {
	requestCodesMu.Lock()
	requestCodes = perms.NewCodeAllocator(perms.DefaultBaseRequestCode)
	requestCodesMu.Unlock()
}

func getPermissionChannels() (*MethodChannel, *EventChannel) {
	permissionChannelsOnce.Do(func() {
		permissionMethods = NewMethodChannel(PermissionsChannel)
		permissionResults = NewEventChannel(ResultsChannel)
	})
	return permissionMethods, permissionResults
}

// ChannelProvider implements perms.Provider and perms.Lifecycle over the
// native bridge. Queries are best-effort: a failed call is reported and
// answered with false.
type ChannelProvider struct {
	channel *MethodChannel
	results *EventChannel
}

// NewChannelProvider returns a provider bound to the permission channels.
func NewChannelProvider() *ChannelProvider {
	methods, results := getPermissionChannels()
	return &ChannelProvider{channel: methods, results: results}
}

// IsGranted asks the host whether the permission is currently held.
func (c *ChannelProvider) IsGranted(permission string) bool {
	return c.query("check", "granted", permission)
}

// ShouldShowRationale asks the host whether a rationale would be shown.
func (c *ChannelProvider) ShouldShowRationale(permission string) bool {
	return c.query("shouldShowRationale", "shouldShow", permission)
}

// IsFinishing reports whether the owning UI context is going away, either
// as tracked by Lifecycle or as answered by the host. Hosts that do not
// implement the query are treated as active.
func (c *ChannelProvider) IsFinishing() bool {
	if Lifecycle.IsFinishing() {
		return true
	}
	result, err := c.channel.Invoke("isFinishing", nil)
	if err != nil {
		return false
	}
	if m, ok := result.(map[string]any); ok {
		return parseBool(m["finishing"])
	}
	return false
}

// RequestPermissions asks the host to show the permission dialog. The
// answer arrives later on ResultsChannel.
func (c *ChannelProvider) RequestPermissions(permissions []string, requestCode int) error {
	_, err := c.channel.Invoke("request", map[string]any{
		"permissions": permissions,
		"requestCode": requestCode,
	})
	return err
}

// OpenAppSettings opens the system settings page for this app. Use it from
// OnAtLeastOneForeverDenied: a forever-denied permission can only be granted
// there. ctx is checked before the call; the call itself is not cancelable.
func (c *ChannelProvider) OpenAppSettings(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	_, err := c.channel.Invoke("openSettings", nil)
	return err
}

func (c *ChannelProvider) query(method, key, permission string) bool {
	result, err := c.channel.Invoke(method, map[string]any{"permission": permission})
	if err != nil {
		errors.Report(&errors.PermsError{
			Op:      "permissions." + method,
			Kind:    errors.KindPlatform,
			Channel: c.channel.Name(),
			Err:     err,
		})
		return false
	}
	if m, ok := result.(map[string]any); ok {
		return parseBool(m[key])
	}
	return false
}

// Attach forwards every result event on ResultsChannel to p.HandleResult.
// Malformed events are reported and dropped. Call the returned function to
// stop forwarding.
func (c *ChannelProvider) Attach(p *perms.Perms) (detach func()) {
	return NewStream(c.results, parseResultEvent).Listen(func(res requestResult) {
		// HandleResult reports its own failures.
		_ = p.HandleResult(res.RequestCode, res.Permissions, res.Grants)
	})
}

// NewPerms builds a Perms driven by a ChannelProvider, delivers callbacks
// on the UI thread when a dispatch function is registered, and attaches the
// result stream. Pending requests are dropped when Lifecycle reports the
// owner destroyed. The returned function detaches both.
//
// Request codes come from an allocator shared by every Perms built here, so
// WithBaseRequestCode and WithCodeAllocator in opts have no effect.
func NewPerms(opts ...perms.Option) (*perms.Perms, func()) {
	provider := NewChannelProvider()
	opts = append([]perms.Option{perms.WithDispatcher(dispatchOrRun)}, opts...)
	opts = append(opts, perms.WithCodeAllocator(sharedRequestCodes()))
	p := perms.New(provider, opts...)

	detach := provider.Attach(p)
	removeHandler := Lifecycle.AddHandler(func(state LifecycleState) {
		if state == LifecycleStateDestroyed {
			p.Clear()
		}
	})
	return p, func() {
		detach()
		removeHandler()
	}
}

// requestResult is the payload of a ResultsChannel event.
type requestResult struct {
	RequestCode int
	Permissions []string
	Grants      []perms.Grant
}

func parseResultEvent(data any) (requestResult, error) {
	res, ok := parseRequestResult(data)
	if !ok {
		return res, &errors.ParseError{Channel: ResultsChannel, DataType: "RequestResult", Got: data}
	}
	return res, nil
}

func parseRequestResult(data any) (requestResult, bool) {
	m, ok := data.(map[string]any)
	if !ok {
		return requestResult{}, false
	}
	code, ok := toInt(m["requestCode"])
	if !ok {
		return requestResult{}, false
	}
	permissions, ok := parseStringSlice(m["permissions"])
	if !ok {
		return requestResult{}, false
	}
	raw, ok := parseIntSlice(m["grantResults"])
	if !ok {
		return requestResult{}, false
	}
	grants := make([]perms.Grant, len(raw))
	for i, g := range raw {
		grants[i] = perms.Grant(g)
	}
	return requestResult{RequestCode: code, Permissions: permissions, Grants: grants}, true
}
