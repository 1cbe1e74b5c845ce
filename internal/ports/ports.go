package ports

import (
	"context"
	"time"

	"studiorecorder/internal/domain"
)

// SourceProvider enumerates capturable screens and windows. The returned
// snapshot is read-only and never cached; IDs are only valid until the next
// enumeration.
type SourceProvider interface {
	Sources(ctx context.Context) ([]domain.CaptureSource, error)
}

// CaptureBounds clamps the requested screen capture resolution.
type CaptureBounds struct {
	MinWidth  int
	MaxWidth  int
	MinHeight int
	MaxHeight int
}

// MediaStream is an opaque handle on an acquired capture stream. It is
// exclusively owned by the active recording session and released on stop.
type MediaStream interface {
	Release() error
}

// ScreenCapture acquires a stream bound to one capture source.
type ScreenCapture interface {
	AcquireScreen(ctx context.Context, sourceID string, bounds CaptureBounds) (MediaStream, error)
}

// CameraCapture acquires the default camera at a square pixel dimension.
type CameraCapture interface {
	AcquireCamera(ctx context.Context, pixels int) (MediaStream, error)
}

// StreamComposer produces the final capturable stream handed to the recorder.
// The direct strategy returns the screen stream untouched; the compositing
// strategy bakes the camera overlay into the screen feed. Camera may be nil.
type StreamComposer interface {
	Compose(screen MediaStream, camera MediaStream) (MediaStream, error)
}

// RecorderOptions configures a chunked recorder run.
type RecorderOptions struct {
	Codec         string
	BitsPerSecond int
	FrameRate     int
	ChunkInterval time.Duration
}

// ChunkSink receives encoded segments in delivery order.
type ChunkSink func(chunk []byte)

// ChunkRecorder is a running chunked encoder. A recorder cannot be restarted
// with a different codec mid-session, so codec support is queried through the
// factory before Start.
type ChunkRecorder interface {
	Stop(ctx context.Context) error
}

// RecorderFactory starts chunked recorders against a capturable stream.
type RecorderFactory interface {
	SupportsCodec(ctx context.Context, codec string) bool
	Start(ctx context.Context, stream MediaStream, opts RecorderOptions, onChunk ChunkSink, onFault func(error)) (ChunkRecorder, error)
}

// SaveDialog prompts the user for a destination path. An empty path with a
// nil error means the dialog was dismissed.
type SaveDialog interface {
	PromptSavePath(ctx context.Context, defaultName string, extension string) (string, error)
}

// Transcoder converts a finished recording container into another format.
type Transcoder interface {
	Transcode(ctx context.Context, inputPath string, outputPath string) error
}

// WindowOptions describes how a surface window is created.
type WindowOptions struct {
	Width            int
	Height           int
	X                int
	Y                int
	Frameless        bool
	Transparent      bool
	AlwaysOnTop      bool
	ContentProtected bool
}

// WindowHandle is a live presentation surface window.
type WindowHandle interface {
	Show() error
	Hide() error
	Resize(width int, height int) error
	Close() error
	Visible() bool
}

// WindowManager opens presentation surface windows.
type WindowManager interface {
	Open(kind domain.SurfaceKind, opts WindowOptions) (WindowHandle, error)
}

// EventSink fans notifications out to the presentation surfaces. Delivery is
// best-effort and at-most-once; surfaces that do not exist miss the event.
type EventSink interface {
	SessionStateChanged(state domain.SessionState, reason domain.SessionStateReason)
	RecordingStateChanged(recording bool)
	CameraShapeChanged(shape domain.CameraShape)
	CameraSizeChanged(size domain.CameraSize)
	CameraVisibilityChanged(visible bool)
	TeleprompterTextChanged(text string)
	SessionError(code domain.ErrorCode, detail string)
}
