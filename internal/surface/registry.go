// Package surface tracks the app's presentation surface windows in an
// explicit registry keyed by kind, instead of per-window nullable globals.
package surface

import (
	"fmt"
	"log/slog"
	"sync"

	"studiorecorder/internal/domain"
	"studiorecorder/internal/ports"
)

// Registry owns every presentation surface window. Commands addressed to a
// surface that does not currently exist are silent no-ops.
type Registry struct {
	manager ports.WindowManager
	log     *slog.Logger

	mu               sync.Mutex
	open             map[domain.SurfaceKind]ports.WindowHandle
	hiddenForCapture []domain.SurfaceKind
}

func NewRegistry(manager ports.WindowManager, log *slog.Logger) *Registry {
	return &Registry{
		manager: manager,
		log:     log,
		open:    make(map[domain.SurfaceKind]ports.WindowHandle),
	}
}

// Options returns the creation options for each surface kind. The
// teleprompter window is excluded from screen capture so the script never
// leaks into a recording.
func Options(kind domain.SurfaceKind) ports.WindowOptions {
	switch kind {
	case domain.SurfaceCamera:
		return ports.WindowOptions{
			Width:       domain.DefaultCameraPixels,
			Height:      domain.DefaultCameraPixels,
			Frameless:   true,
			Transparent: true,
			AlwaysOnTop: true,
		}
	case domain.SurfaceTeleprompter:
		return ports.WindowOptions{
			Width:            600,
			Height:           200,
			Frameless:        true,
			Transparent:      true,
			AlwaysOnTop:      true,
			ContentProtected: true,
		}
	case domain.SurfaceTimer:
		return ports.WindowOptions{
			Width:       180,
			Height:      60,
			Frameless:   true,
			AlwaysOnTop: true,
		}
	case domain.SurfaceMiniPanel:
		return ports.WindowOptions{
			Width:       420,
			Height:      72,
			Frameless:   true,
			Transparent: true,
			AlwaysOnTop: true,
		}
	default:
		return ports.WindowOptions{Width: 800, Height: 600}
	}
}

// GetOrCreate returns the surface window, opening it if absent.
func (r *Registry) GetOrCreate(kind domain.SurfaceKind) (ports.WindowHandle, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.getOrCreateLocked(kind)
}

func (r *Registry) getOrCreateLocked(kind domain.SurfaceKind) (ports.WindowHandle, error) {
	if handle, ok := r.open[kind]; ok {
		return handle, nil
	}
	handle, err := r.manager.Open(kind, Options(kind))
	if err != nil {
		return nil, fmt.Errorf("failed to open %s surface: %w", kind, err)
	}
	r.open[kind] = handle
	r.log.Debug("surface opened", "kind", kind)
	return handle, nil
}

// Get returns the surface window only if it currently exists.
func (r *Registry) Get(kind domain.SurfaceKind) (ports.WindowHandle, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	handle, ok := r.open[kind]
	return handle, ok
}

// Show opens the surface if needed and makes it visible.
func (r *Registry) Show(kind domain.SurfaceKind) error {
	handle, err := r.GetOrCreate(kind)
	if err != nil {
		return err
	}
	return handle.Show()
}

// Hide hides the surface if it exists.
func (r *Registry) Hide(kind domain.SurfaceKind) {
	if handle, ok := r.Get(kind); ok {
		if err := handle.Hide(); err != nil {
			r.log.Warn("surface hide failed", "kind", kind, "err", err)
		}
	}
}

// Toggle hides a visible surface and shows (creating if absent) a hidden one.
func (r *Registry) Toggle(kind domain.SurfaceKind) error {
	if handle, ok := r.Get(kind); ok && handle.Visible() {
		return handle.Hide()
	}
	return r.Show(kind)
}

// Resize resizes the surface if it exists.
func (r *Registry) Resize(kind domain.SurfaceKind, width int, height int) {
	if handle, ok := r.Get(kind); ok {
		if err := handle.Resize(width, height); err != nil {
			r.log.Warn("surface resize failed", "kind", kind, "err", err)
		}
	}
}

// Close destroys the surface if it exists.
func (r *Registry) Close(kind domain.SurfaceKind) {
	r.mu.Lock()
	handle, ok := r.open[kind]
	if ok {
		delete(r.open, kind)
	}
	r.mu.Unlock()

	if !ok {
		return
	}
	if err := handle.Close(); err != nil {
		r.log.Warn("surface close failed", "kind", kind, "err", err)
	}
}

// HideForCapture hides the given surfaces for the duration of a recording and
// remembers which ones were actually visible.
func (r *Registry) HideForCapture(kinds ...domain.SurfaceKind) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.hiddenForCapture = r.hiddenForCapture[:0]
	for _, kind := range kinds {
		handle, ok := r.open[kind]
		if !ok || !handle.Visible() {
			continue
		}
		if err := handle.Hide(); err != nil {
			r.log.Warn("surface hide failed", "kind", kind, "err", err)
			continue
		}
		r.hiddenForCapture = append(r.hiddenForCapture, kind)
	}
}

// RestoreHidden re-shows every surface hidden by HideForCapture.
func (r *Registry) RestoreHidden() {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, kind := range r.hiddenForCapture {
		handle, ok := r.open[kind]
		if !ok {
			continue
		}
		if err := handle.Show(); err != nil {
			r.log.Warn("surface restore failed", "kind", kind, "err", err)
		}
	}
	r.hiddenForCapture = nil
}
