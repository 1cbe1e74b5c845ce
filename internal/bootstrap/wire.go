package bootstrap

import (
	"log/slog"
	"os"

	"studiorecorder/internal/bus"
	"studiorecorder/internal/catalog"
	"studiorecorder/internal/config"
	"studiorecorder/internal/domain"
	"studiorecorder/internal/logging"
	"studiorecorder/internal/media"
	"studiorecorder/internal/ports"
	"studiorecorder/internal/save"
	"studiorecorder/internal/surface"
	"studiorecorder/internal/teleprompter"
	"studiorecorder/internal/transcode"
	"studiorecorder/internal/usecase"
)

// Services is the assembled runtime graph.
type Services struct {
	Dispatcher *bus.Dispatcher
	Controller *usecase.SessionController
	Surfaces   *surface.Registry
	Script     *teleprompter.Script
	Config     config.Config
	Logger     *slog.Logger
}

// Build wires all backend dependencies for the current runtime.
func Build(events ports.EventSink, manager ports.WindowManager, dialog ports.SaveDialog) (Services, error) {
	cfg, err := config.Load()
	if err != nil {
		return Services{}, err
	}
	log := logging.New(os.Stderr, cfg.Logging.Level, cfg.Logging.Format)

	registry := surface.NewRegistry(manager, log)
	sources := catalog.New(media.NewSourceProvider(cfg.FFmpeg.Command, log), log)
	capturer := media.NewCapturer(cfg.FFmpeg.Command, cfg.Capture.FrameRate, cfg.Camera.Device, log)
	recorders := media.NewFactory(cfg.FFmpeg.Command, log)
	pipeline := save.NewPipeline(dialog, transcode.NewFFmpeg(cfg.FFmpeg.Command, log), log)

	var composer ports.StreamComposer = media.DirectComposer{}
	if cfg.Recording.Compositing {
		composer = media.OverlayComposer{Inset: cfg.Camera.Inset}
	}

	script := teleprompter.NewScript(events, log)
	if path := cfg.Teleprompter.ScriptPath; path != "" {
		if err := script.WatchFile(path); err != nil {
			log.Warn("teleprompter script unavailable", "path", path, "err", err)
		}
	}

	controller := usecase.NewSessionController(
		capturer,
		capturer,
		composer,
		recorders,
		pipeline,
		registry,
		events,
		usecase.Config{
			Bounds: ports.CaptureBounds{
				MinWidth:  cfg.Capture.MinWidth,
				MaxWidth:  cfg.Capture.MaxWidth,
				MinHeight: cfg.Capture.MinHeight,
				MaxHeight: cfg.Capture.MaxHeight,
			},
			FrameRate:     cfg.Capture.FrameRate,
			BitsPerSecond: cfg.Recording.BitsPerSecond,
			ChunkInterval: cfg.Recording.ChunkInterval(),
			Format:        cfg.Recording.OutputFormat(),
			CameraPixels:  domain.CameraSize(cfg.Camera.Size).Pixels(),
			AcquireCamera: cfg.Camera.Visible,
			HideControl:   cfg.Recording.HideControl,
		},
		log,
	)

	dispatcher := bus.NewDispatcher(sources, controller, registry, script, pipeline, events, log)

	return Services{
		Dispatcher: dispatcher,
		Controller: controller,
		Surfaces:   registry,
		Script:     script,
		Config:     cfg,
		Logger:     log,
	}, nil
}
