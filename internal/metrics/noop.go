package metrics

// NoopRecorder discards everything. Used when metrics are disabled.
type NoopRecorder struct{}

func (NoopRecorder) TelemetryReceived()      {}
func (NoopRecorder) CommandReceived()        {}
func (NoopRecorder) MessageSent(string)      {}
func (NoopRecorder) SendFailed(string)       {}
func (NoopRecorder) Dropped(string)          {}
func (NoopRecorder) SetViewers(int)          {}
func (NoopRecorder) SetDeviceConnected(bool) {}
