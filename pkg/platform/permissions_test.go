package platform

import (
	"context"
	"encoding/json"
	"fmt"
	"reflect"
	"sync"
	"testing"

	"github.com/kubiakdev/perms/pkg/errors"
	"github.com/kubiakdev/perms/pkg/perms"
)

// hostBridge answers permission queries from maps and records requests.
type hostBridge struct {
	mu        sync.Mutex
	granted   map[string]bool
	rationale map[string]bool
	requests  []map[string]any
	methods   []string
	started   []string
	stopped   []string
	err       error
}

func newHostBridge() *hostBridge {
	return &hostBridge{granted: map[string]bool{}, rationale: map[string]bool{}}
}

func (b *hostBridge) InvokeMethod(channel, method string, args []byte) ([]byte, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.err != nil {
		return nil, b.err
	}
	b.methods = append(b.methods, method)
	decoded, _ := DefaultCodec.Decode(args)
	m, _ := decoded.(map[string]any)
	switch method {
	case "check":
		return DefaultCodec.Encode(map[string]any{"granted": b.granted[parseString(m["permission"])]})
	case "shouldShowRationale":
		return DefaultCodec.Encode(map[string]any{"shouldShow": b.rationale[parseString(m["permission"])]})
	case "request":
		b.requests = append(b.requests, m)
	}
	return DefaultCodec.Encode(nil)
}

func (b *hostBridge) StartEventStream(ch string) error {
	b.mu.Lock()
	b.started = append(b.started, ch)
	b.mu.Unlock()
	return nil
}

func (b *hostBridge) StopEventStream(ch string) error {
	b.mu.Lock()
	b.stopped = append(b.stopped, ch)
	b.mu.Unlock()
	return nil
}

func (b *hostBridge) lastRequest(t *testing.T) (int, []string) {
	t.Helper()
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.requests) == 0 {
		t.Fatal("no request reached the host")
	}
	req := b.requests[len(b.requests)-1]
	code, ok := toInt(req["requestCode"])
	if !ok {
		t.Fatalf("requestCode missing from %v", req)
	}
	permissions, ok := parseStringSlice(req["permissions"])
	if !ok {
		t.Fatalf("permissions missing from %v", req)
	}
	return code, permissions
}

func sendResult(t *testing.T, code int, permissions []string, grants []int) {
	t.Helper()
	data, err := json.Marshal(map[string]any{
		"requestCode":  code,
		"permissions":  permissions,
		"grantResults": grants,
	})
	if err != nil {
		t.Fatal(err)
	}
	if err := HandleEvent(ResultsChannel, data); err != nil {
		t.Fatalf("HandleEvent: %v", err)
	}
}

type errorSink struct {
	mu   sync.Mutex
	errs []*errors.PermsError
}

func (s *errorSink) HandleError(err *errors.PermsError) {
	s.mu.Lock()
	s.errs = append(s.errs, err)
	s.mu.Unlock()
}
func (s *errorSink) HandlePanic(*errors.PanicError) {}

func captureErrors(t *testing.T) *errorSink {
	t.Helper()
	sink := &errorSink{}
	old := errors.DefaultHandler
	errors.SetHandler(sink)
	t.Cleanup(func() { errors.SetHandler(old) })
	return sink
}

func TestChannelProviderQueries(t *testing.T) {
	bridge := newHostBridge()
	bridge.granted["camera"] = true
	bridge.rationale["phone"] = true
	SetNativeBridge(bridge)
	t.Cleanup(ResetForTest)

	p := NewChannelProvider()
	tests := []struct {
		name string
		got  bool
		want bool
	}{
		{"granted", p.IsGranted("camera"), true},
		{"not granted", p.IsGranted("phone"), false},
		{"rationale shown", p.ShouldShowRationale("phone"), true},
		{"rationale hidden", p.ShouldShowRationale("camera"), false},
		{"not finishing", p.IsFinishing(), false},
	}
	for _, tt := range tests {
		if tt.got != tt.want {
			t.Errorf("%s: got %v, want %v", tt.name, tt.got, tt.want)
		}
	}
}

func TestChannelProviderBridgeErrorReported(t *testing.T) {
	sink := captureErrors(t)
	bridge := newHostBridge()
	bridge.err = fmt.Errorf("host gone")
	SetNativeBridge(bridge)
	t.Cleanup(ResetForTest)

	p := NewChannelProvider()
	if p.IsGranted("camera") {
		t.Error("IsGranted should be false on bridge error")
	}
	if len(sink.errs) != 1 {
		t.Fatalf("expected 1 reported error, got %d", len(sink.errs))
	}
	if sink.errs[0].Op != "permissions.check" || sink.errs[0].Kind != errors.KindPlatform {
		t.Errorf("unexpected report %v", sink.errs[0])
	}
	if err := p.RequestPermissions([]string{"camera"}, 1); err == nil {
		t.Error("RequestPermissions should return the bridge error")
	}
}

func TestChannelProviderWithoutBridge(t *testing.T) {
	captureErrors(t)
	ResetForTest()
	p := NewChannelProvider()
	if err := p.RequestPermissions([]string{"camera"}, 1); err != ErrPlatformUnavailable {
		t.Errorf("expected ErrPlatformUnavailable, got %v", err)
	}
}

func TestNewPermsRoundTrip(t *testing.T) {
	bridge := newHostBridge()
	bridge.rationale["phone"] = true
	SetNativeBridge(bridge)
	var dispatched int
	RegisterDispatch(func(cb func()) {
		dispatched++
		cb()
	})
	t.Cleanup(ResetForTest)

	p, detach := NewPerms()
	defer detach()

	var denied, forever []string
	err := p.Request("camera", "phone").OnResult(perms.Callbacks{
		OnAllAccepted:             func([]string) { t.Error("OnAllAccepted should not fire") },
		OnAtLeastOneDenied:        func(d []string) { denied = d },
		OnAtLeastOneForeverDenied: func(f []string) { forever = f },
	})
	if err != nil {
		t.Fatalf("OnResult: %v", err)
	}

	code, permissions := bridge.lastRequest(t)
	if code != perms.DefaultBaseRequestCode {
		t.Errorf("request code = %d, want %d", code, perms.DefaultBaseRequestCode)
	}
	if !reflect.DeepEqual(permissions, []string{"camera", "phone"}) {
		t.Errorf("permissions = %v", permissions)
	}

	// camera: denied with rationale hidden afterwards, phone: denied with rationale shown.
	sendResult(t, code, permissions, []int{-1, -1})

	if !reflect.DeepEqual(denied, []string{"camera", "phone"}) {
		t.Errorf("denied = %v", denied)
	}
	if !reflect.DeepEqual(forever, []string{"camera"}) {
		t.Errorf("forever denied = %v", forever)
	}
	if dispatched != 1 {
		t.Errorf("expected callbacks to run through dispatch once, got %d", dispatched)
	}

	// Redelivery is ignored.
	denied = nil
	sendResult(t, code, permissions, []int{-1, -1})
	if denied != nil {
		t.Error("duplicate result fired callbacks again")
	}
}

func TestAttachMalformedEventReported(t *testing.T) {
	sink := captureErrors(t)
	SetupTestBridge(t.Cleanup)

	_, detach := NewPerms()
	defer detach()

	if err := HandleEvent(ResultsChannel, []byte(`{"requestCode":"x"}`)); err != nil {
		t.Fatalf("HandleEvent: %v", err)
	}
	if len(sink.errs) != 1 || sink.errs[0].Kind != errors.KindParsing {
		t.Fatalf("expected one parsing error, got %v", sink.errs)
	}
}

func TestDetachStopsForwarding(t *testing.T) {
	bridge := newHostBridge()
	SetNativeBridge(bridge)
	t.Cleanup(ResetForTest)

	p, detach := NewPerms()
	fired := false
	if err := p.Request("camera").OnResult(perms.Callbacks{OnAllAccepted: func([]string) { fired = true }}); err != nil {
		t.Fatal(err)
	}
	code, permissions := bridge.lastRequest(t)
	detach()

	sendResult(t, code, permissions, []int{0})
	if fired {
		t.Error("callback fired after detach")
	}
	if len(bridge.stopped) != 1 || bridge.stopped[0] != ResultsChannel {
		t.Errorf("expected result stream to stop, got %v", bridge.stopped)
	}
}

func TestParseRequestResult(t *testing.T) {
	tests := []struct {
		name   string
		data   any
		want   requestResult
		wantOK bool
	}{
		{
			name: "valid",
			data: map[string]any{
				"requestCode":  float64(1410),
				"permissions":  []any{"a", "b"},
				"grantResults": []any{float64(0), float64(-1)},
			},
			want:   requestResult{RequestCode: 1410, Permissions: []string{"a", "b"}, Grants: []perms.Grant{perms.Granted, perms.Denied}},
			wantOK: true,
		},
		{
			name: "empty lists are valid",
			data: map[string]any{
				"requestCode":  float64(3),
				"permissions":  []any{},
				"grantResults": []any{},
			},
			want:   requestResult{RequestCode: 3, Permissions: []string{}, Grants: []perms.Grant{}},
			wantOK: true,
		},
		{name: "not a map", data: "nope"},
		{name: "missing code", data: map[string]any{"permissions": []any{}, "grantResults": []any{}}},
		{name: "fractional code", data: map[string]any{"requestCode": 1.5, "permissions": []any{}, "grantResults": []any{}}},
		{name: "non-string permission", data: map[string]any{"requestCode": float64(1), "permissions": []any{1.0}, "grantResults": []any{}}},
		{name: "non-numeric grant", data: map[string]any{"requestCode": float64(1), "permissions": []any{"a"}, "grantResults": []any{"granted"}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := parseRequestResult(tt.data)
			if ok != tt.wantOK {
				t.Fatalf("ok = %v, want %v", ok, tt.wantOK)
			}
			if ok && !reflect.DeepEqual(got, tt.want) {
				t.Errorf("got %+v, want %+v", got, tt.want)
			}
		})
	}
}

func setLifecycle(t *testing.T, state string) {
	t.Helper()
	args, _ := json.Marshal(map[string]any{"state": state})
	if _, err := HandleMethodCall(LifecycleChannel, "didChangeState", args); err != nil {
		t.Fatalf("didChangeState(%s): %v", state, err)
	}
}

func TestLifecycleFinishingRefusesRequests(t *testing.T) {
	bridge := newHostBridge()
	SetNativeBridge(bridge)
	t.Cleanup(ResetForTest)

	p, detach := NewPerms()
	defer detach()

	setLifecycle(t, "finishing")
	if Lifecycle.State() != LifecycleStateFinishing {
		t.Fatalf("state = %s", Lifecycle.State())
	}
	if err := p.Request("camera").OnResult(perms.Callbacks{}); err != perms.ErrOwnerFinishing {
		t.Errorf("expected ErrOwnerFinishing, got %v", err)
	}
	if len(bridge.requests) != 0 {
		t.Error("no request should reach the host while finishing")
	}

	setLifecycle(t, "resumed")
	if err := p.Request("camera").OnResult(perms.Callbacks{}); err != nil {
		t.Errorf("request after resume: %v", err)
	}
}

func TestLifecycleDestroyedDropsPending(t *testing.T) {
	bridge := newHostBridge()
	SetNativeBridge(bridge)
	t.Cleanup(ResetForTest)

	p, detach := NewPerms()
	defer detach()

	fired := false
	if err := p.Request("camera").OnResult(perms.Callbacks{OnAllAccepted: func([]string) { fired = true }}); err != nil {
		t.Fatal(err)
	}
	if p.Pending() != 1 {
		t.Fatalf("pending = %d, want 1", p.Pending())
	}
	code, permissions := bridge.lastRequest(t)

	setLifecycle(t, "destroyed")
	if p.Pending() != 0 {
		t.Errorf("pending = %d after destroy, want 0", p.Pending())
	}
	sendResult(t, code, permissions, []int{0})
	if fired {
		t.Error("callback fired for a request dropped on destroy")
	}
}

func TestLifecycleHandlerRemoval(t *testing.T) {
	t.Cleanup(ResetForTest)

	var got []LifecycleState
	remove := Lifecycle.AddHandler(func(s LifecycleState) { got = append(got, s) })
	setLifecycle(t, "paused")
	setLifecycle(t, "paused")
	remove()
	setLifecycle(t, "resumed")

	if !reflect.DeepEqual(got, []LifecycleState{LifecycleStatePaused}) {
		t.Errorf("handler saw %v", got)
	}
}

func TestLifecycleBadPayload(t *testing.T) {
	sink := captureErrors(t)
	t.Cleanup(ResetForTest)

	if _, err := HandleMethodCall(LifecycleChannel, "didChangeState", []byte(`{"state":1}`)); err == nil {
		t.Error("expected an error for a non-string state")
	}
	if len(sink.errs) != 1 || sink.errs[0].Kind != errors.KindParsing {
		t.Errorf("expected one parsing report, got %v", sink.errs)
	}
	if _, err := HandleMethodCall(LifecycleChannel, "unknown", nil); err != ErrMethodNotFound {
		t.Errorf("expected ErrMethodNotFound, got %v", err)
	}
}

func TestOpenAppSettings(t *testing.T) {
	bridge := newHostBridge()
	SetNativeBridge(bridge)
	t.Cleanup(ResetForTest)

	p := NewChannelProvider()
	if err := p.OpenAppSettings(context.Background()); err != nil {
		t.Fatalf("OpenAppSettings: %v", err)
	}
	if !reflect.DeepEqual(bridge.methods, []string{"openSettings"}) {
		t.Errorf("methods = %v, want [openSettings]", bridge.methods)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := p.OpenAppSettings(ctx); err != context.Canceled {
		t.Errorf("expected context.Canceled, got %v", err)
	}
	if len(bridge.methods) != 1 {
		t.Error("a canceled context must not reach the host")
	}
}

func TestNewPermsInstancesUseDistinctRequestCodes(t *testing.T) {
	bridge := newHostBridge()
	SetNativeBridge(bridge)
	t.Cleanup(ResetForTest)

	a, detachA := NewPerms(perms.WithBaseRequestCode(5))
	defer detachA()
	b, detachB := NewPerms()
	defer detachB()

	var aFired, bFired []string
	if err := a.Request("camera").OnResult(perms.Callbacks{OnAllAccepted: func(p []string) { aFired = p }}); err != nil {
		t.Fatal(err)
	}
	codeA, permsA := bridge.lastRequest(t)
	if err := b.Request("camera").OnResult(perms.Callbacks{OnAllAccepted: func(p []string) { bFired = p }}); err != nil {
		t.Fatal(err)
	}
	codeB, _ := bridge.lastRequest(t)

	if codeA != perms.DefaultBaseRequestCode || codeB != perms.DefaultBaseRequestCode+1 {
		t.Fatalf("codes = %d, %d; want %d, %d", codeA, codeB, perms.DefaultBaseRequestCode, perms.DefaultBaseRequestCode+1)
	}

	sendResult(t, codeA, permsA, []int{0})
	if !reflect.DeepEqual(aFired, []string{"camera"}) {
		t.Errorf("first instance fired %v", aFired)
	}
	if bFired != nil {
		t.Errorf("second instance fired %v for a result that was not its own", bFired)
	}
	if a.Pending() != 0 || b.Pending() != 1 {
		t.Errorf("pending = %d, %d; want 0, 1", a.Pending(), b.Pending())
	}
}
