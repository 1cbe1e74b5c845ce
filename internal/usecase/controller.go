package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"studiorecorder/internal/domain"
	"studiorecorder/internal/ports"
)

var (
	ErrNoActiveSession  = errors.New("no active recording session")
	ErrNoSourceSelected = errors.New("no capture source selected")
)

// Saver persists a finished recording buffer. The boolean collapses
// dismissal and failure on purpose; the pipeline logs the difference.
type Saver interface {
	Save(ctx context.Context, buffer []byte, extension string, format string) bool
}

// SurfaceDirector hides surfaces for the duration of a capture and restores
// them afterwards.
type SurfaceDirector interface {
	HideForCapture(kinds ...domain.SurfaceKind)
	RestoreHidden()
}

// Config controls recording behavior.
type Config struct {
	Bounds        ports.CaptureBounds
	FrameRate     int
	BitsPerSecond int
	ChunkInterval time.Duration
	Format        domain.OutputFormat
	CameraPixels  int
	AcquireCamera bool
	HideControl   bool
}

// SessionController drives the recording lifecycle:
// idle -> acquiring -> recording -> stopping -> idle. At most one session is
// active per process; a start while non-idle is a guarded no-op.
type SessionController struct {
	screen   ports.ScreenCapture
	camera   ports.CameraCapture
	composer ports.StreamComposer
	recorder ports.RecorderFactory
	saver    Saver
	surfaces SurfaceDirector
	events   ports.EventSink
	cfg      Config
	log      *slog.Logger

	mu       sync.Mutex
	state    domain.SessionState
	sourceID string
	current  *activeSession
}

func NewSessionController(
	screen ports.ScreenCapture,
	camera ports.CameraCapture,
	composer ports.StreamComposer,
	recorder ports.RecorderFactory,
	saver Saver,
	surfaces SurfaceDirector,
	events ports.EventSink,
	cfg Config,
	log *slog.Logger,
) *SessionController {
	if cfg.Format == "" {
		cfg.Format = domain.FormatWebMVP9
	}
	if cfg.ChunkInterval <= 0 {
		cfg.ChunkInterval = time.Second
	}
	if cfg.CameraPixels <= 0 {
		cfg.CameraPixels = domain.DefaultCameraPixels
	}
	return &SessionController{
		screen:   screen,
		camera:   camera,
		composer: composer,
		recorder: recorder,
		saver:    saver,
		surfaces: surfaces,
		events:   events,
		cfg:      cfg,
		log:      log,
		state:    domain.SessionStateIdle,
	}
}

// Start acquires the capture streams for sourceID and begins chunked
// recording. A start while another session is active is a no-op.
func (c *SessionController) Start(ctx context.Context, sourceID string) error {
	c.mu.Lock()
	if c.state != domain.SessionStateIdle {
		c.mu.Unlock()
		c.log.Debug("start ignored, session active", "state", c.state)
		return nil
	}
	if strings.TrimSpace(sourceID) == "" {
		c.mu.Unlock()
		return ErrNoSourceSelected
	}
	c.state = domain.SessionStateAcquiring
	c.sourceID = sourceID
	c.mu.Unlock()

	c.events.SessionStateChanged(domain.SessionStateAcquiring, domain.SessionReasonAcquiringSources)
	if c.cfg.HideControl {
		c.surfaces.HideForCapture(domain.SurfaceControl)
	}

	screenStream, err := c.screen.AcquireScreen(ctx, sourceID, c.cfg.Bounds)
	if err != nil {
		c.failAcquisition(err)
		return fmt.Errorf("screen acquisition failed: %w", err)
	}

	// Camera failure degrades gracefully: the session records the screen
	// without the overlay instead of aborting.
	var cameraStream ports.MediaStream
	if c.cfg.AcquireCamera {
		cameraStream, err = c.camera.AcquireCamera(ctx, c.cfg.CameraPixels)
		if err != nil {
			c.log.Warn("camera unavailable, recording without overlay", "err", err)
			cameraStream = nil
		}
	}

	active := &activeSession{sourceID: sourceID, screen: screenStream, camera: cameraStream}

	combined, err := c.composer.Compose(screenStream, cameraStream)
	if err != nil {
		active.releaseStreams()
		c.failAcquisition(err)
		return fmt.Errorf("stream composition failed: %w", err)
	}

	// The recorder cannot switch codecs once started, so the fallback is
	// negotiated here.
	codec := c.cfg.Format.Codec()
	if !c.recorder.SupportsCodec(ctx, codec) {
		c.log.Warn("codec unsupported, falling back", "requested", codec, "fallback", "vp9")
		codec = "vp9"
	}

	// The session is published before the recorder spawns so a fault delivered
	// during startup finds it and can tear it down.
	c.mu.Lock()
	c.current = active
	c.mu.Unlock()

	rec, err := c.recorder.Start(ctx, combined, ports.RecorderOptions{
		Codec:         codec,
		BitsPerSecond: c.cfg.BitsPerSecond,
		FrameRate:     c.cfg.FrameRate,
		ChunkInterval: c.cfg.ChunkInterval,
	}, active.appendChunk, func(err error) { c.onRecorderFault(active, err) })
	if err != nil {
		active.releaseStreams()
		c.failAcquisition(err)
		return fmt.Errorf("recorder start failed: %w", err)
	}

	c.mu.Lock()
	if c.current != active {
		// The recorder faulted before the session transitioned; the fault
		// handler already released the session and emitted the error.
		c.mu.Unlock()
		_ = rec.Stop(ctx)
		return nil
	}
	active.recorder = rec
	c.state = domain.SessionStateRecording
	c.mu.Unlock()

	c.events.RecordingStateChanged(true)
	reason := domain.SessionReasonRecordingStarted
	if c.cfg.AcquireCamera && cameraStream == nil {
		reason = domain.SessionReasonRecordingNoCamera
	}
	c.events.SessionStateChanged(domain.SessionStateRecording, reason)
	return nil
}

// Stop ends the active session, persists the buffer, and returns to idle
// regardless of the save outcome.
func (c *SessionController) Stop(ctx context.Context) (domain.StopResult, error) {
	c.mu.Lock()
	if c.state != domain.SessionStateRecording || c.current == nil {
		c.mu.Unlock()
		return domain.StopResult{}, ErrNoActiveSession
	}
	active := c.current
	c.state = domain.SessionStateStopping
	c.mu.Unlock()

	c.events.SessionStateChanged(domain.SessionStateStopping, domain.SessionReasonSaving)

	if err := active.recorder.Stop(ctx); err != nil {
		c.events.SessionError(domain.ErrorCodeRecorder, err.Error())
	}
	active.releaseStreams()
	c.surfaces.RestoreHidden()
	c.events.RecordingStateChanged(false)

	buffer := active.concat()
	saved := false
	if len(buffer) > 0 {
		saved = c.saver.Save(ctx, buffer, c.cfg.Format.Extension(), string(c.cfg.Format))
	}

	c.finish(active)

	reason := domain.SessionReasonRecordingSaved
	if !saved {
		reason = domain.SessionReasonRecordingDiscarded
	}
	c.events.SessionStateChanged(domain.SessionStateIdle, reason)

	return domain.StopResult{
		Saved:    saved,
		Bytes:    len(buffer),
		MimeType: c.cfg.Format.MimeType(),
	}, nil
}

// Status returns the current session status.
func (c *SessionController) Status() domain.Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return domain.Status{
		State:    c.state,
		Active:   c.state != domain.SessionStateIdle,
		SourceID: c.sourceID,
	}
}

// Recording reports whether a session is currently recording. This backs the
// recording-state request/response and the cross-surface boolean broadcast.
func (c *SessionController) Recording() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state == domain.SessionStateRecording
}

// failAcquisition reverts a failed start: hidden surfaces come back, the
// error is surfaced as a user-visible alert, and the session returns to idle.
func (c *SessionController) failAcquisition(err error) {
	c.surfaces.RestoreHidden()
	c.events.SessionError(domain.ErrorCodeAcquisition, err.Error())

	c.mu.Lock()
	c.state = domain.SessionStateIdle
	c.current = nil
	c.mu.Unlock()

	c.events.SessionStateChanged(domain.SessionStateIdle, domain.SessionReasonAcquisitionFailed)
}

// onRecorderFault force-stops the session when its recorder errors, whether
// the fault lands mid-recording or while the session is still transitioning
// out of Acquiring. Faults for sessions already torn down are ignored.
func (c *SessionController) onRecorderFault(active *activeSession, err error) {
	c.mu.Lock()
	if c.current != active {
		c.mu.Unlock()
		return
	}
	rec := active.recorder
	c.current = nil
	c.state = domain.SessionStateStopping
	c.mu.Unlock()

	c.log.Error("recorder fault", "err", err)
	c.events.SessionError(domain.ErrorCodeRecorder, err.Error())

	// rec is nil when the fault beat Start to the Recording transition; the
	// process is already gone in that case.
	if rec != nil {
		_ = rec.Stop(context.Background())
	}
	active.releaseStreams()
	c.surfaces.RestoreHidden()
	c.events.RecordingStateChanged(false)

	c.mu.Lock()
	c.state = domain.SessionStateIdle
	c.mu.Unlock()
	c.events.SessionStateChanged(domain.SessionStateIdle, domain.SessionReasonRecorderFault)
}

func (c *SessionController) finish(active *activeSession) {
	c.mu.Lock()
	if c.current == active {
		c.current = nil
	}
	c.state = domain.SessionStateIdle
	c.mu.Unlock()
}
