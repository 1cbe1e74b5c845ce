package domain

// SessionState models the recording lifecycle.
type SessionState string

const (
	SessionStateIdle      SessionState = "idle"
	SessionStateAcquiring SessionState = "acquiring"
	SessionStateRecording SessionState = "recording"
	SessionStateStopping  SessionState = "stopping"
)

// SessionStateReason provides a structured reason for state transitions.
type SessionStateReason string

const (
	SessionReasonReady              SessionStateReason = "ready"
	SessionReasonAcquiringSources   SessionStateReason = "acquiring_sources"
	SessionReasonRecordingStarted   SessionStateReason = "recording_started"
	SessionReasonRecordingNoCamera  SessionStateReason = "recording_no_camera"
	SessionReasonSaving             SessionStateReason = "saving"
	SessionReasonRecordingSaved     SessionStateReason = "recording_saved"
	SessionReasonAcquisitionFailed  SessionStateReason = "acquisition_failed"
	SessionReasonRecorderFault      SessionStateReason = "recorder_fault"
	SessionReasonRecordingDiscarded SessionStateReason = "recording_discarded"
)

// ErrorCode identifies non-fatal and fatal backend errors.
type ErrorCode string

const (
	ErrorCodeStartup     ErrorCode = "startup"
	ErrorCodeSources     ErrorCode = "sources"
	ErrorCodeAcquisition ErrorCode = "acquisition"
	ErrorCodeRecorder    ErrorCode = "recorder"
	ErrorCodeSave        ErrorCode = "save"
	ErrorCodeTranscode   ErrorCode = "transcode"
)

// SurfaceKind identifies one of the app's presentation surfaces. Internally
// created windows carry their kind as an explicit role so catalog filtering
// and routing never depend on raw window handles.
type SurfaceKind string

const (
	SurfaceControl      SurfaceKind = "control"
	SurfaceCamera       SurfaceKind = "camera"
	SurfaceTeleprompter SurfaceKind = "teleprompter"
	SurfaceTimer        SurfaceKind = "timer"
	SurfaceMiniPanel    SurfaceKind = "mini-panel"
)

// CaptureSource is one OS-enumerable screen or window.
//
// IDs are only stable for the lifetime of one enumeration call; the catalog
// re-enumerates on every request and never caches.
type CaptureSource struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Thumbnail string `json:"thumbnail"`
}

// CameraShape is the camera overlay mask shape.
type CameraShape string

const (
	CameraShapeCircle  CameraShape = "circle"
	CameraShapeSquare  CameraShape = "square"
	CameraShapeRounded CameraShape = "rounded"
)

// Valid reports whether the shape is one of the known values.
func (s CameraShape) Valid() bool {
	switch s {
	case CameraShapeCircle, CameraShapeSquare, CameraShapeRounded:
		return true
	}
	return false
}

// CameraSize selects one of the fixed camera window dimensions.
type CameraSize string

const (
	CameraSizeSmall  CameraSize = "small"
	CameraSizeMedium CameraSize = "medium"
	CameraSizeLarge  CameraSize = "large"
)

// DefaultCameraPixels is the dimension every shape change resets the camera
// window to, independent of the previously selected size.
const DefaultCameraPixels = 300

// Pixels returns the square window dimension for the size, defaulting to
// medium for unknown values.
func (s CameraSize) Pixels() int {
	switch s {
	case CameraSizeSmall:
		return 200
	case CameraSizeLarge:
		return 450
	default:
		return DefaultCameraPixels
	}
}

// OutputFormat selects the recording container and codec.
type OutputFormat string

const (
	FormatWebMVP9 OutputFormat = "webm-vp9"
	FormatWebMVP8 OutputFormat = "webm-vp8"
	FormatMP4     OutputFormat = "mp4"
)

// Codec returns the video codec requested from the recorder for this format.
// The mp4 path asks for h264 and falls back to vp9 when the platform encoder
// lacks it; that negotiation happens before the recorder starts.
func (f OutputFormat) Codec() string {
	switch f {
	case FormatWebMVP8:
		return "vp8"
	case FormatMP4:
		return "h264"
	default:
		return "vp9"
	}
}

// Extension returns the canonical file extension, without the dot.
func (f OutputFormat) Extension() string {
	if f == FormatMP4 {
		return "mp4"
	}
	return "webm"
}

// MimeType returns the container mime type tagged onto the finished buffer.
func (f OutputFormat) MimeType() string {
	switch f {
	case FormatWebMVP8:
		return "video/webm;codecs=vp8"
	case FormatMP4:
		return "video/mp4"
	default:
		return "video/webm;codecs=vp9"
	}
}

// CameraPresentation is the broadcast camera overlay state. It is owned
// canonically nowhere; every surface keeps its own last-received copy.
type CameraPresentation struct {
	Shape   CameraShape `json:"shape"`
	Size    CameraSize  `json:"size"`
	Visible bool        `json:"visible"`
}

// Status summarizes the current backend status.
type Status struct {
	State    SessionState `json:"state"`
	Active   bool         `json:"active"`
	SourceID string       `json:"sourceId,omitempty"`
	Message  string       `json:"message,omitempty"`
}

// StopResult is returned once recording stopped and the save pipeline ran.
type StopResult struct {
	Saved    bool   `json:"saved"`
	Bytes    int    `json:"bytes"`
	MimeType string `json:"mimeType"`
}
