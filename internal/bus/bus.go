// Package bus is the cross-window signal channel: a fixed set of typed
// commands flowing from the presentation surfaces into the coordinator, and
// fan-out notifications flowing back through the event sink. Delivery is
// best-effort and at-most-once; commands addressed to an absent surface are
// silent no-ops.
package bus

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"studiorecorder/internal/domain"
	"studiorecorder/internal/ports"
	"studiorecorder/internal/usecase"
)

// CommandKind names one entry of the wire contract.
type CommandKind string

const (
	CmdRequestSources          CommandKind = "request-sources"
	CmdSetCameraShape          CommandKind = "set-camera-shape"
	CmdSetCameraSize           CommandKind = "set-camera-size"
	CmdSetTeleprompterText     CommandKind = "set-teleprompter-text"
	CmdOpenTeleprompter        CommandKind = "open-teleprompter"
	CmdCloseTeleprompter       CommandKind = "close-teleprompter"
	CmdToggleTeleprompter      CommandKind = "toggle-teleprompter"
	CmdHideControlWindow       CommandKind = "hide-control-window"
	CmdShowControlWindow       CommandKind = "show-control-window"
	CmdHideCameraWindow        CommandKind = "hide-camera-window"
	CmdShowCameraWindow        CommandKind = "show-camera-window"
	CmdShowTimer               CommandKind = "show-timer"
	CmdHideTimer               CommandKind = "hide-timer"
	CmdStartRecording          CommandKind = "start-recording"
	CmdStopRecording           CommandKind = "stop-recording"
	CmdBroadcastRecordingState CommandKind = "broadcast-recording-state"
	CmdGetRecordingState       CommandKind = "get-recording-state"
	CmdSaveRecording           CommandKind = "save-recording"
)

// Command is one surface-to-coordinator message. Only the fields relevant to
// the kind are read.
type Command struct {
	Kind      CommandKind
	Shape     domain.CameraShape
	Size      domain.CameraSize
	Text      string
	SourceID  string
	Recording bool
	Buffer    []byte
	Extension string
	Format    string
}

// Result carries the response for the three request/response commands; it is
// zero for every fire-and-forget command.
type Result struct {
	Sources   []domain.CaptureSource
	Recording bool
	Saved     bool
}

// SourceLister provides the filtered capture source catalog.
type SourceLister interface {
	List(ctx context.Context) ([]domain.CaptureSource, error)
}

// Recorder is the recording session face of the coordinator.
type Recorder interface {
	Start(ctx context.Context, sourceID string) error
	Stop(ctx context.Context) (domain.StopResult, error)
	Recording() bool
}

// Surfaces is the window-registry face of the coordinator.
type Surfaces interface {
	Show(kind domain.SurfaceKind) error
	Hide(kind domain.SurfaceKind)
	Toggle(kind domain.SurfaceKind) error
	Resize(kind domain.SurfaceKind, width int, height int)
	Close(kind domain.SurfaceKind)
}

// ScriptBoard holds and broadcasts the teleprompter text.
type ScriptBoard interface {
	SetText(text string)
}

// Dispatcher routes commands to the coordinator's collaborators.
type Dispatcher struct {
	catalog  SourceLister
	recorder Recorder
	surfaces Surfaces
	script   ScriptBoard
	saver    usecase.Saver
	events   ports.EventSink
	log      *slog.Logger
}

func NewDispatcher(
	catalog SourceLister,
	recorder Recorder,
	surfaces Surfaces,
	script ScriptBoard,
	saver usecase.Saver,
	events ports.EventSink,
	log *slog.Logger,
) *Dispatcher {
	return &Dispatcher{
		catalog:  catalog,
		recorder: recorder,
		surfaces: surfaces,
		script:   script,
		saver:    saver,
		events:   events,
		log:      log,
	}
}

// Dispatch executes one command. Fire-and-forget commands return a zero
// Result; only unknown kinds and the request/response commands can error.
func (d *Dispatcher) Dispatch(ctx context.Context, cmd Command) (Result, error) {
	switch cmd.Kind {
	case CmdRequestSources:
		sources, err := d.catalog.List(ctx)
		if err != nil {
			return Result{}, err
		}
		return Result{Sources: sources}, nil

	case CmdSetCameraShape:
		if !cmd.Shape.Valid() {
			d.log.Warn("ignoring unknown camera shape", "shape", cmd.Shape)
			return Result{}, nil
		}
		d.events.CameraShapeChanged(cmd.Shape)
		// A shape change resets the camera window to its default size,
		// independent of the previously selected size.
		d.surfaces.Resize(domain.SurfaceCamera, domain.DefaultCameraPixels, domain.DefaultCameraPixels)
		return Result{}, nil

	case CmdSetCameraSize:
		pixels := cmd.Size.Pixels()
		d.surfaces.Resize(domain.SurfaceCamera, pixels, pixels)
		d.events.CameraSizeChanged(cmd.Size)
		return Result{}, nil

	case CmdSetTeleprompterText:
		d.script.SetText(cmd.Text)
		return Result{}, nil

	case CmdOpenTeleprompter:
		return Result{}, d.surfaces.Show(domain.SurfaceTeleprompter)
	case CmdCloseTeleprompter:
		d.surfaces.Close(domain.SurfaceTeleprompter)
		return Result{}, nil
	case CmdToggleTeleprompter:
		return Result{}, d.surfaces.Toggle(domain.SurfaceTeleprompter)

	case CmdHideControlWindow:
		d.surfaces.Hide(domain.SurfaceControl)
		return Result{}, nil
	case CmdShowControlWindow:
		return Result{}, d.surfaces.Show(domain.SurfaceControl)

	case CmdHideCameraWindow:
		d.surfaces.Hide(domain.SurfaceCamera)
		d.events.CameraVisibilityChanged(false)
		return Result{}, nil
	case CmdShowCameraWindow:
		if err := d.surfaces.Show(domain.SurfaceCamera); err != nil {
			return Result{}, err
		}
		d.events.CameraVisibilityChanged(true)
		return Result{}, nil

	case CmdShowTimer:
		return Result{}, d.surfaces.Show(domain.SurfaceTimer)
	case CmdHideTimer:
		d.surfaces.Hide(domain.SurfaceTimer)
		return Result{}, nil

	case CmdStartRecording:
		return Result{}, d.recorder.Start(ctx, cmd.SourceID)

	case CmdStopRecording:
		if _, err := d.recorder.Stop(ctx); err != nil {
			// Stopping with nothing active is a no-op, not an error.
			if errors.Is(err, usecase.ErrNoActiveSession) {
				return Result{}, nil
			}
			return Result{}, err
		}
		return Result{}, nil

	case CmdBroadcastRecordingState:
		d.events.RecordingStateChanged(cmd.Recording)
		return Result{}, nil

	case CmdGetRecordingState:
		return Result{Recording: d.recorder.Recording()}, nil

	case CmdSaveRecording:
		return Result{Saved: d.saver.Save(ctx, cmd.Buffer, cmd.Extension, cmd.Format)}, nil

	default:
		return Result{}, fmt.Errorf("unknown command %q", cmd.Kind)
	}
}
