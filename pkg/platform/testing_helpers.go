package platform

// noopBridge is a NativeBridge that accepts all calls without side effects.
// Permission queries decode to nil, so nothing is granted, no rationale is
// shown and the owner is never finishing.
type noopBridge struct{}

func (noopBridge) InvokeMethod(channel, method string, args []byte) ([]byte, error) {
	return DefaultCodec.Encode(nil)
}
func (noopBridge) StartEventStream(string) error { return nil }
func (noopBridge) StopEventStream(string) error  { return nil }

// SetupTestBridge installs a no-op native bridge and synchronous dispatch
// function for testing code built on NewPerms or ChannelProvider. Requests
// reach the bridge and stay pending until the test feeds a result with
// HandleEvent(ResultsChannel, ...). The cleanup function should be
// testing.T.Cleanup or equivalent; it registers a teardown that calls
// ResetForTest.
//
//	platform.SetupTestBridge(t.Cleanup)
func SetupTestBridge(cleanup func(func())) {
	SetNativeBridge(noopBridge{})
	RegisterDispatch(func(cb func()) { cb() })
	cleanup(ResetForTest)
}
