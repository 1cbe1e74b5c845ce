package main

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/wailsapp/wails/v2/pkg/runtime"

	"studiorecorder/internal/bootstrap"
	"studiorecorder/internal/bus"
	"studiorecorder/internal/config"
	"studiorecorder/internal/domain"
	"studiorecorder/internal/ports"
	"studiorecorder/internal/surface"
	"studiorecorder/internal/teleprompter"
	"studiorecorder/internal/usecase"
)

const (
	eventSession       = "studio:session"
	eventRecording     = "studio:recording"
	eventCameraShape   = "studio:camera-shape"
	eventCameraSize    = "studio:camera-size"
	eventCameraVisible = "studio:camera-visible"
	eventTeleprompter  = "studio:teleprompter-text"
	eventSurface       = "studio:surface"
	eventError         = "studio:error"
)

// App is the Wails application root. It exposes the command surface to the
// presentation panels and fans coordinator notifications back out as runtime
// events.
type App struct {
	ctx context.Context

	dispatcher *bus.Dispatcher
	controller *usecase.SessionController
	surfaces   *surface.Registry
	script     *teleprompter.Script
	cfg        config.Config
	log        *slog.Logger
	bootErr    error
}

func NewApp() *App {
	return &App{}
}

func (a *App) startup(ctx context.Context) {
	a.ctx = ctx

	services, err := bootstrap.Build(a, &panelWindowManager{app: a}, &wailsSaveDialog{app: a})
	if err != nil {
		a.bootErr = err
		a.SessionError(domain.ErrorCodeStartup, err.Error())
		return
	}

	a.dispatcher = services.Dispatcher
	a.controller = services.Controller
	a.surfaces = services.Surfaces
	a.script = services.Script
	a.cfg = services.Config
	a.log = services.Logger

	// Bring up the default surfaces, control first.
	if err := a.surfaces.Show(domain.SurfaceControl); err != nil {
		a.log.Warn("control surface unavailable", "err", err)
	}
	if a.cfg.Camera.Visible {
		if err := a.surfaces.Show(domain.SurfaceCamera); err != nil {
			a.log.Warn("camera surface unavailable", "err", err)
		}
	}
	if _, err := a.surfaces.GetOrCreate(domain.SurfaceTeleprompter); err != nil {
		a.log.Warn("teleprompter surface unavailable", "err", err)
	}

	a.SessionStateChanged(domain.SessionStateIdle, domain.SessionReasonReady)
}

func (a *App) shutdown(_ context.Context) {
	if a.script != nil {
		_ = a.script.Close()
	}
}

// GetSources returns the filtered capture source catalog.
func (a *App) GetSources() ([]domain.CaptureSource, error) {
	if err := a.requireReady(); err != nil {
		return nil, err
	}
	result, err := a.dispatcher.Dispatch(a.ctx, bus.Command{Kind: bus.CmdRequestSources})
	if err != nil {
		a.SessionError(domain.ErrorCodeSources, err.Error())
		return []domain.CaptureSource{}, nil
	}
	return result.Sources, nil
}

// StartRecording begins a session against the selected source.
func (a *App) StartRecording(sourceID string) error {
	if err := a.requireReady(); err != nil {
		return err
	}
	_, err := a.dispatcher.Dispatch(a.ctx, bus.Command{Kind: bus.CmdStartRecording, SourceID: sourceID})
	return err
}

// StopRecording ends the active session; a no-op when nothing records.
func (a *App) StopRecording() error {
	if err := a.requireReady(); err != nil {
		return err
	}
	_, err := a.dispatcher.Dispatch(a.ctx, bus.Command{Kind: bus.CmdStopRecording})
	return err
}

// GetRecordingState returns the current recording boolean.
func (a *App) GetRecordingState() bool {
	if a.dispatcher == nil {
		return false
	}
	result, _ := a.dispatcher.Dispatch(a.ctx, bus.Command{Kind: bus.CmdGetRecordingState})
	return result.Recording
}

// BroadcastRecordingState fans the recording boolean out to all surfaces.
func (a *App) BroadcastRecordingState(recording bool) {
	if a.dispatcher == nil {
		return
	}
	_, _ = a.dispatcher.Dispatch(a.ctx, bus.Command{Kind: bus.CmdBroadcastRecordingState, Recording: recording})
}

// SaveRecording persists a finished buffer through the save pipeline.
func (a *App) SaveRecording(buffer []byte, extension string, format string) bool {
	if a.dispatcher == nil {
		return false
	}
	result, _ := a.dispatcher.Dispatch(a.ctx, bus.Command{
		Kind:      bus.CmdSaveRecording,
		Buffer:    buffer,
		Extension: extension,
		Format:    format,
	})
	return result.Saved
}

// SetCameraShape forwards the shape to the camera surface.
func (a *App) SetCameraShape(shape string) {
	a.dispatch(bus.Command{Kind: bus.CmdSetCameraShape, Shape: domain.CameraShape(shape)})
}

// SetCameraSize resizes the camera window.
func (a *App) SetCameraSize(size string) {
	a.dispatch(bus.Command{Kind: bus.CmdSetCameraSize, Size: domain.CameraSize(size)})
}

// SetTeleprompterText forwards script text verbatim.
func (a *App) SetTeleprompterText(text string) {
	a.dispatch(bus.Command{Kind: bus.CmdSetTeleprompterText, Text: text})
}

// GetTeleprompterText returns the current script text.
func (a *App) GetTeleprompterText() string {
	if a.script == nil {
		return ""
	}
	return a.script.Text()
}

func (a *App) OpenTeleprompter()   { a.dispatch(bus.Command{Kind: bus.CmdOpenTeleprompter}) }
func (a *App) CloseTeleprompter()  { a.dispatch(bus.Command{Kind: bus.CmdCloseTeleprompter}) }
func (a *App) ToggleTeleprompter() { a.dispatch(bus.Command{Kind: bus.CmdToggleTeleprompter}) }
func (a *App) HideControlWindow()  { a.dispatch(bus.Command{Kind: bus.CmdHideControlWindow}) }
func (a *App) ShowControlWindow()  { a.dispatch(bus.Command{Kind: bus.CmdShowControlWindow}) }
func (a *App) HideCameraWindow()   { a.dispatch(bus.Command{Kind: bus.CmdHideCameraWindow}) }
func (a *App) ShowCameraWindow()   { a.dispatch(bus.Command{Kind: bus.CmdShowCameraWindow}) }
func (a *App) ShowTimer()          { a.dispatch(bus.Command{Kind: bus.CmdShowTimer}) }
func (a *App) HideTimer()          { a.dispatch(bus.Command{Kind: bus.CmdHideTimer}) }

// GetCameraPresentation returns the configured camera overlay state. Surfaces
// seed their local copy from this and track broadcasts afterwards.
func (a *App) GetCameraPresentation() domain.CameraPresentation {
	shape := domain.CameraShape(a.cfg.Camera.Shape)
	if !shape.Valid() {
		shape = domain.CameraShapeCircle
	}
	return domain.CameraPresentation{
		Shape:   shape,
		Size:    domain.CameraSize(a.cfg.Camera.Size),
		Visible: a.cfg.Camera.Visible,
	}
}

// GetStatus returns the current session status.
func (a *App) GetStatus() domain.Status {
	if a.controller == nil {
		status := domain.Status{State: domain.SessionStateIdle}
		if a.bootErr != nil {
			status.Message = a.bootErr.Error()
		}
		return status
	}
	return a.controller.Status()
}

// GetRuntimeInfo returns non-sensitive config for the UI.
func (a *App) GetRuntimeInfo() map[string]string {
	if a.bootErr != nil {
		return map[string]string{"error": a.bootErr.Error()}
	}
	return map[string]string{
		"ffmpeg":      a.cfg.FFmpeg.Command,
		"format":      a.cfg.Recording.Format,
		"compositing": fmt.Sprintf("%t", a.cfg.Recording.Compositing),
		"frameRate":   fmt.Sprintf("%d", a.cfg.Capture.FrameRate),
		"cameraShape": a.cfg.Camera.Shape,
		"cameraSize":  a.cfg.Camera.Size,
	}
}

func (a *App) dispatch(cmd bus.Command) {
	if a.dispatcher == nil {
		return
	}
	if _, err := a.dispatcher.Dispatch(a.ctx, cmd); err != nil {
		a.log.Warn("command failed", "kind", cmd.Kind, "err", err)
	}
}

func (a *App) requireReady() error {
	if a.bootErr != nil {
		return a.bootErr
	}
	if a.dispatcher == nil {
		return fmt.Errorf("application is not initialized")
	}
	return nil
}

// SessionStateChanged emits session lifecycle updates to the surfaces.
func (a *App) SessionStateChanged(state domain.SessionState, reason domain.SessionStateReason) {
	if a.ctx == nil {
		return
	}
	runtime.EventsEmit(a.ctx, eventSession, map[string]string{
		"state":  string(state),
		"reason": string(reason),
	})
}

// RecordingStateChanged fans the recording boolean out to every surface. The
// mini-panel and timer follow the recording state: they appear when a session
// starts and disappear when it ends.
func (a *App) RecordingStateChanged(recording bool) {
	if a.surfaces != nil {
		if recording {
			if err := a.surfaces.Show(domain.SurfaceMiniPanel); err != nil {
				a.log.Warn("mini-panel surface unavailable", "err", err)
			}
			if err := a.surfaces.Show(domain.SurfaceTimer); err != nil {
				a.log.Warn("timer surface unavailable", "err", err)
			}
		} else {
			a.surfaces.Hide(domain.SurfaceMiniPanel)
			a.surfaces.Hide(domain.SurfaceTimer)
		}
	}
	if a.ctx == nil {
		return
	}
	runtime.EventsEmit(a.ctx, eventRecording, recording)
}

// CameraShapeChanged notifies the camera and mini-panel surfaces.
func (a *App) CameraShapeChanged(shape domain.CameraShape) {
	if a.ctx == nil {
		return
	}
	runtime.EventsEmit(a.ctx, eventCameraShape, string(shape))
}

// CameraSizeChanged notifies the camera and mini-panel surfaces.
func (a *App) CameraSizeChanged(size domain.CameraSize) {
	if a.ctx == nil {
		return
	}
	runtime.EventsEmit(a.ctx, eventCameraSize, string(size))
}

// CameraVisibilityChanged notifies surfaces mirroring camera visibility.
func (a *App) CameraVisibilityChanged(visible bool) {
	if a.ctx == nil {
		return
	}
	runtime.EventsEmit(a.ctx, eventCameraVisible, visible)
}

// TeleprompterTextChanged forwards the script to the teleprompter surface.
func (a *App) TeleprompterTextChanged(text string) {
	if a.ctx == nil {
		return
	}
	runtime.EventsEmit(a.ctx, eventTeleprompter, text)
}

// SessionError emits backend errors to the UI.
func (a *App) SessionError(code domain.ErrorCode, detail string) {
	if a.ctx == nil {
		return
	}
	runtime.EventsEmit(a.ctx, eventError, map[string]string{
		"code":    string(code),
		"message": errorMessage(code, detail),
		"detail":  detail,
	})
}

func errorMessage(code domain.ErrorCode, detail string) string {
	switch code {
	case domain.ErrorCodeStartup:
		return "Startup failed"
	case domain.ErrorCodeSources:
		return "Could not list capture sources"
	case domain.ErrorCodeAcquisition:
		return "Could not start capture"
	case domain.ErrorCodeRecorder:
		return "Recording failed"
	case domain.ErrorCodeSave:
		return "Saving failed"
	case domain.ErrorCodeTranscode:
		return "Export failed"
	default:
		if detail == "" {
			return "Unknown error"
		}
		return detail
	}
}

// wailsSaveDialog prompts for a destination through the native save dialog.
type wailsSaveDialog struct {
	app *App
}

func (d *wailsSaveDialog) PromptSavePath(_ context.Context, defaultName string, extension string) (string, error) {
	filter := runtime.FileFilter{DisplayName: "WebM Video (*.webm)", Pattern: "*.webm"}
	if extension == "mp4" {
		filter = runtime.FileFilter{DisplayName: "MP4 Video (*.mp4)", Pattern: "*.mp4"}
	}
	return runtime.SaveFileDialog(d.app.ctx, runtime.SaveDialogOptions{
		Title:           "Save video",
		DefaultFilename: defaultName,
		Filters:         []runtime.FileFilter{filter},
	})
}

// panelWindowManager realizes presentation surfaces as frontend panels driven
// over the event runtime: the webview lays the panels out, while the backend
// registry stays the single owner of their lifecycle and geometry.
type panelWindowManager struct {
	app *App
}

func (m *panelWindowManager) Open(kind domain.SurfaceKind, opts ports.WindowOptions) (ports.WindowHandle, error) {
	handle := &panelHandle{app: m.app, kind: kind}
	handle.emit("open", map[string]any{
		"width":            opts.Width,
		"height":           opts.Height,
		"frameless":        opts.Frameless,
		"transparent":      opts.Transparent,
		"alwaysOnTop":      opts.AlwaysOnTop,
		"contentProtected": opts.ContentProtected,
	})
	return handle, nil
}

type panelHandle struct {
	app  *App
	kind domain.SurfaceKind

	mu      sync.Mutex
	visible bool
}

func (h *panelHandle) emit(action string, payload map[string]any) {
	if h.app.ctx == nil {
		return
	}
	body := map[string]any{"surface": string(h.kind), "action": action}
	for k, v := range payload {
		body[k] = v
	}
	runtime.EventsEmit(h.app.ctx, eventSurface, body)
}

func (h *panelHandle) Show() error {
	h.mu.Lock()
	h.visible = true
	h.mu.Unlock()
	h.emit("show", nil)
	return nil
}

func (h *panelHandle) Hide() error {
	h.mu.Lock()
	h.visible = false
	h.mu.Unlock()
	h.emit("hide", nil)
	return nil
}

func (h *panelHandle) Resize(width int, height int) error {
	h.emit("resize", map[string]any{"width": width, "height": height})
	return nil
}

func (h *panelHandle) Close() error {
	h.mu.Lock()
	h.visible = false
	h.mu.Unlock()
	h.emit("close", nil)
	return nil
}

func (h *panelHandle) Visible() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.visible
}
