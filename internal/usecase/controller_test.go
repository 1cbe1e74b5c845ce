package usecase

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"

	"studiorecorder/internal/domain"
	"studiorecorder/internal/ports"
)

type fakeStream struct {
	mu       sync.Mutex
	released bool
}

func (s *fakeStream) Release() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.released = true
	return nil
}

func (s *fakeStream) Released() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.released
}

type fakeScreenCapture struct {
	stream *fakeStream
	err    error
	calls  int
}

func (c *fakeScreenCapture) AcquireScreen(_ context.Context, _ string, _ ports.CaptureBounds) (ports.MediaStream, error) {
	c.calls++
	if c.err != nil {
		return nil, c.err
	}
	return c.stream, nil
}

type fakeCameraCapture struct {
	stream *fakeStream
	err    error
}

func (c *fakeCameraCapture) AcquireCamera(_ context.Context, _ int) (ports.MediaStream, error) {
	if c.err != nil {
		return nil, c.err
	}
	return c.stream, nil
}

type fakeComposer struct {
	err        error
	lastCamera ports.MediaStream
}

func (c *fakeComposer) Compose(screen ports.MediaStream, camera ports.MediaStream) (ports.MediaStream, error) {
	c.lastCamera = camera
	if c.err != nil {
		return nil, c.err
	}
	return screen, nil
}

type fakeRecorder struct {
	stopErr error
	stops   int
}

func (r *fakeRecorder) Stop(_ context.Context) error {
	r.stops++
	return r.stopErr
}

type fakeRecorderFactory struct {
	recorder     *fakeRecorder
	startErr     error
	faultOnStart error
	supported    map[string]bool
	lastOpts     ports.RecorderOptions
	onChunk      ports.ChunkSink
	onFault      func(error)
}

func (f *fakeRecorderFactory) SupportsCodec(_ context.Context, codec string) bool {
	if f.supported == nil {
		return true
	}
	return f.supported[codec]
}

func (f *fakeRecorderFactory) Start(_ context.Context, _ ports.MediaStream, opts ports.RecorderOptions, onChunk ports.ChunkSink, onFault func(error)) (ports.ChunkRecorder, error) {
	if f.startErr != nil {
		return nil, f.startErr
	}
	f.lastOpts = opts
	f.onChunk = onChunk
	f.onFault = onFault
	if f.faultOnStart != nil {
		onFault(f.faultOnStart)
	}
	return f.recorder, nil
}

type fakeSaver struct {
	saved     bool
	buffer    []byte
	extension string
	format    string
	calls     int
}

func (s *fakeSaver) Save(_ context.Context, buffer []byte, extension string, format string) bool {
	s.calls++
	s.buffer = buffer
	s.extension = extension
	s.format = format
	return s.saved
}

type fakeSurfaces struct {
	hidden   []domain.SurfaceKind
	restores int
}

func (s *fakeSurfaces) HideForCapture(kinds ...domain.SurfaceKind) {
	s.hidden = append(s.hidden, kinds...)
}

func (s *fakeSurfaces) RestoreHidden() { s.restores++ }

type stateEvent struct {
	state  domain.SessionState
	reason domain.SessionStateReason
}

type fakeEvents struct {
	mu        sync.Mutex
	states    []stateEvent
	recording []bool
	errors    []domain.ErrorCode
}

func (e *fakeEvents) SessionStateChanged(state domain.SessionState, reason domain.SessionStateReason) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.states = append(e.states, stateEvent{state, reason})
}

func (e *fakeEvents) RecordingStateChanged(recording bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.recording = append(e.recording, recording)
}

func (e *fakeEvents) CameraShapeChanged(domain.CameraShape) {}
func (e *fakeEvents) CameraSizeChanged(domain.CameraSize)   {}
func (e *fakeEvents) CameraVisibilityChanged(bool)          {}
func (e *fakeEvents) TeleprompterTextChanged(string)        {}

func (e *fakeEvents) SessionError(code domain.ErrorCode, _ string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.errors = append(e.errors, code)
}

func (e *fakeEvents) lastState(t *testing.T) stateEvent {
	t.Helper()
	e.mu.Lock()
	defer e.mu.Unlock()
	if len(e.states) == 0 {
		t.Fatalf("no state events emitted")
	}
	return e.states[len(e.states)-1]
}

type harness struct {
	controller *SessionController
	screen     *fakeScreenCapture
	camera     *fakeCameraCapture
	composer   *fakeComposer
	factory    *fakeRecorderFactory
	saver      *fakeSaver
	surfaces   *fakeSurfaces
	events     *fakeEvents
}

func newHarness(cfg Config) *harness {
	h := &harness{
		screen:   &fakeScreenCapture{stream: &fakeStream{}},
		camera:   &fakeCameraCapture{stream: &fakeStream{}},
		composer: &fakeComposer{},
		factory:  &fakeRecorderFactory{recorder: &fakeRecorder{}},
		saver:    &fakeSaver{saved: true},
		surfaces: &fakeSurfaces{},
		events:   &fakeEvents{},
	}
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	h.controller = NewSessionController(h.screen, h.camera, h.composer, h.factory, h.saver, h.surfaces, h.events, cfg, log)
	return h
}

func defaultConfig() Config {
	return Config{
		Format:        domain.FormatWebMVP9,
		AcquireCamera: true,
		HideControl:   true,
	}
}

func TestStartStopRoundTrip(t *testing.T) {
	t.Parallel()

	h := newHarness(defaultConfig())
	ctx := context.Background()

	if err := h.controller.Start(ctx, "screen:0"); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	if !h.controller.Recording() {
		t.Fatalf("expected recording state")
	}
	if got := h.events.lastState(t); got.reason != domain.SessionReasonRecordingStarted {
		t.Fatalf("expected recording_started reason, got %q", got.reason)
	}
	if len(h.surfaces.hidden) != 1 || h.surfaces.hidden[0] != domain.SurfaceControl {
		t.Fatalf("expected control surface hidden, got %v", h.surfaces.hidden)
	}

	h.factory.onChunk([]byte("one"))
	h.factory.onChunk([]byte("two"))

	result, err := h.controller.Stop(ctx)
	if err != nil {
		t.Fatalf("stop failed: %v", err)
	}
	if !result.Saved {
		t.Fatalf("expected saved result")
	}
	if result.Bytes != 6 {
		t.Fatalf("expected 6 bytes, got %d", result.Bytes)
	}
	if string(h.saver.buffer) != "onetwo" {
		t.Fatalf("chunks concatenated out of order: %q", h.saver.buffer)
	}
	if h.saver.extension != "webm" || h.saver.format != "webm-vp9" {
		t.Fatalf("unexpected save arguments: %q %q", h.saver.extension, h.saver.format)
	}
	if h.surfaces.restores != 1 {
		t.Fatalf("expected hidden surfaces restored once, got %d", h.surfaces.restores)
	}
	if !h.screen.stream.Released() || !h.camera.stream.Released() {
		t.Fatalf("expected both streams released")
	}
	if got := h.events.lastState(t); got.state != domain.SessionStateIdle || got.reason != domain.SessionReasonRecordingSaved {
		t.Fatalf("expected idle/recording_saved, got %v", got)
	}
}

func TestStartWhileActiveIsNoOp(t *testing.T) {
	t.Parallel()

	h := newHarness(defaultConfig())
	ctx := context.Background()

	if err := h.controller.Start(ctx, "screen:0"); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	if err := h.controller.Start(ctx, "screen:1"); err != nil {
		t.Fatalf("second start should be a silent no-op, got %v", err)
	}
	if h.screen.calls != 1 {
		t.Fatalf("expected one acquisition, got %d", h.screen.calls)
	}
	if got := h.controller.Status().SourceID; got != "screen:0" {
		t.Fatalf("expected original source retained, got %q", got)
	}
}

func TestStartWithoutSource(t *testing.T) {
	t.Parallel()

	h := newHarness(defaultConfig())
	for _, sourceID := range []string{"", "   "} {
		if err := h.controller.Start(context.Background(), sourceID); !errors.Is(err, ErrNoSourceSelected) {
			t.Fatalf("Start(%q): expected ErrNoSourceSelected, got %v", sourceID, err)
		}
	}
	if h.screen.calls != 0 {
		t.Fatalf("no acquisition should happen without a source")
	}
}

func TestStopWithoutSession(t *testing.T) {
	t.Parallel()

	h := newHarness(defaultConfig())
	if _, err := h.controller.Stop(context.Background()); !errors.Is(err, ErrNoActiveSession) {
		t.Fatalf("expected ErrNoActiveSession, got %v", err)
	}
}

func TestCameraFailureDegradesGracefully(t *testing.T) {
	t.Parallel()

	h := newHarness(defaultConfig())
	h.camera.err = errors.New("device busy")

	if err := h.controller.Start(context.Background(), "screen:0"); err != nil {
		t.Fatalf("start should survive camera failure: %v", err)
	}
	if !h.controller.Recording() {
		t.Fatalf("expected recording state")
	}
	if h.composer.lastCamera != nil {
		t.Fatalf("composer should receive nil camera stream")
	}
	if got := h.events.lastState(t); got.reason != domain.SessionReasonRecordingNoCamera {
		t.Fatalf("expected recording_no_camera reason, got %q", got.reason)
	}
}

func TestScreenAcquisitionFailureRevertsToIdle(t *testing.T) {
	t.Parallel()

	h := newHarness(defaultConfig())
	h.screen.err = errors.New("source vanished")

	if err := h.controller.Start(context.Background(), "screen:0"); err == nil {
		t.Fatalf("expected acquisition error")
	}
	if h.controller.Recording() {
		t.Fatalf("expected idle state after failure")
	}
	if h.surfaces.restores != 1 {
		t.Fatalf("hidden surfaces must be restored after failed start")
	}
	if len(h.events.errors) != 1 || h.events.errors[0] != domain.ErrorCodeAcquisition {
		t.Fatalf("expected one acquisition error event, got %v", h.events.errors)
	}
	if got := h.events.lastState(t); got.reason != domain.SessionReasonAcquisitionFailed {
		t.Fatalf("expected acquisition_failed reason, got %q", got.reason)
	}
}

func TestRecorderStartFailureReleasesStreams(t *testing.T) {
	t.Parallel()

	h := newHarness(defaultConfig())
	h.factory.startErr = errors.New("encoder missing")

	if err := h.controller.Start(context.Background(), "screen:0"); err == nil {
		t.Fatalf("expected start error")
	}
	if !h.screen.stream.Released() || !h.camera.stream.Released() {
		t.Fatalf("streams must be released when the recorder fails to start")
	}
	if h.controller.Recording() {
		t.Fatalf("expected idle state")
	}
}

func TestCodecFallback(t *testing.T) {
	t.Parallel()

	cfg := defaultConfig()
	cfg.Format = domain.FormatMP4
	h := newHarness(cfg)
	h.factory.supported = map[string]bool{"vp9": true}

	if err := h.controller.Start(context.Background(), "screen:0"); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	if h.factory.lastOpts.Codec != "vp9" {
		t.Fatalf("expected vp9 fallback, got %q", h.factory.lastOpts.Codec)
	}
}

func TestStopWithEmptyBufferSkipsSave(t *testing.T) {
	t.Parallel()

	h := newHarness(defaultConfig())
	ctx := context.Background()

	if err := h.controller.Start(ctx, "screen:0"); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	result, err := h.controller.Stop(ctx)
	if err != nil {
		t.Fatalf("stop failed: %v", err)
	}
	if result.Saved {
		t.Fatalf("nothing recorded, nothing should be saved")
	}
	if h.saver.calls != 0 {
		t.Fatalf("save pipeline must not run on an empty buffer")
	}
	if got := h.events.lastState(t); got.reason != domain.SessionReasonRecordingDiscarded {
		t.Fatalf("expected recording_discarded reason, got %q", got.reason)
	}
}

func TestStopSurvivesRecorderStopError(t *testing.T) {
	t.Parallel()

	h := newHarness(defaultConfig())
	h.factory.recorder.stopErr = errors.New("already gone")
	ctx := context.Background()

	if err := h.controller.Start(ctx, "screen:0"); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	h.factory.onChunk([]byte("data"))

	result, err := h.controller.Stop(ctx)
	if err != nil {
		t.Fatalf("stop must proceed past a recorder stop error: %v", err)
	}
	if !result.Saved {
		t.Fatalf("buffered chunks should still be saved")
	}
	if len(h.events.errors) != 1 || h.events.errors[0] != domain.ErrorCodeRecorder {
		t.Fatalf("expected recorder error event, got %v", h.events.errors)
	}
}

func TestRecorderFaultForcesStop(t *testing.T) {
	t.Parallel()

	h := newHarness(defaultConfig())
	ctx := context.Background()

	if err := h.controller.Start(ctx, "screen:0"); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	h.factory.onFault(errors.New("process died"))

	if h.controller.Recording() {
		t.Fatalf("expected idle state after fault")
	}
	if h.factory.recorder.stops != 1 {
		t.Fatalf("expected forced recorder stop, got %d", h.factory.recorder.stops)
	}
	if h.surfaces.restores != 1 {
		t.Fatalf("expected hidden surfaces restored")
	}
	if got := h.events.lastState(t); got.reason != domain.SessionReasonRecorderFault {
		t.Fatalf("expected recorder_fault reason, got %q", got.reason)
	}

	// A fault after the session already ended is ignored.
	h.factory.onFault(errors.New("late fault"))
	if h.factory.recorder.stops != 1 {
		t.Fatalf("late fault must not stop again")
	}
}

func TestRecorderFaultDuringStartup(t *testing.T) {
	t.Parallel()

	h := newHarness(defaultConfig())
	h.factory.faultOnStart = errors.New("pipeline broke")
	ctx := context.Background()

	// The fault lands before the session reaches Recording; the session must
	// not be left reporting Recording with a dead recorder behind it.
	if err := h.controller.Start(ctx, "screen:0"); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	if h.controller.Recording() {
		t.Fatalf("faulted session must not report recording")
	}
	if got := h.controller.Status().State; got != domain.SessionStateIdle {
		t.Fatalf("expected idle state, got %q", got)
	}
	if len(h.events.errors) != 1 || h.events.errors[0] != domain.ErrorCodeRecorder {
		t.Fatalf("expected one recorder error event, got %v", h.events.errors)
	}
	if got := h.events.lastState(t); got.reason != domain.SessionReasonRecorderFault {
		t.Fatalf("expected recorder_fault reason, got %q", got.reason)
	}
	if h.surfaces.restores != 1 {
		t.Fatalf("expected hidden surfaces restored, got %d", h.surfaces.restores)
	}
	if !h.screen.stream.Released() || !h.camera.stream.Released() {
		t.Fatalf("expected streams released after startup fault")
	}
	if h.factory.recorder.stops != 1 {
		t.Fatalf("expected the orphaned recorder stopped, got %d", h.factory.recorder.stops)
	}

	// The controller is reusable after the fault.
	h.factory.faultOnStart = nil
	if err := h.controller.Start(ctx, "screen:1"); err != nil {
		t.Fatalf("restart failed: %v", err)
	}
	if !h.controller.Recording() {
		t.Fatalf("expected recording after restart")
	}
}

func TestHideControlDisabled(t *testing.T) {
	t.Parallel()

	cfg := defaultConfig()
	cfg.HideControl = false
	h := newHarness(cfg)

	if err := h.controller.Start(context.Background(), "screen:0"); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	if len(h.surfaces.hidden) != 0 {
		t.Fatalf("control surface should stay visible, hid %v", h.surfaces.hidden)
	}
}
