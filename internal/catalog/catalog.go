// Package catalog lists capturable screens and windows, hiding the app's own
// auxiliary surfaces from the picker.
package catalog

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"studiorecorder/internal/domain"
	"studiorecorder/internal/ports"
)

// AppIdentifier is the substring that marks the app's own windows in source
// names. Filtering is a name heuristic, not an identity check: a captured
// window that merely contains "teleprompter" in its title is excluded too.
const AppIdentifier = "StudioRecorder"

// Catalog enumerates capture sources through a provider and filters out the
// app's own auxiliary windows.
type Catalog struct {
	provider ports.SourceProvider
	log      *slog.Logger
}

func New(provider ports.SourceProvider, log *slog.Logger) *Catalog {
	return &Catalog{provider: provider, log: log}
}

// List returns a fresh snapshot of capturable sources. Enumeration failures
// surface as an empty list plus a logged diagnostic; nothing is retried.
func (c *Catalog) List(ctx context.Context) ([]domain.CaptureSource, error) {
	sources, err := c.provider.Sources(ctx)
	if err != nil {
		c.log.Error("source enumeration failed", "err", err)
		return nil, fmt.Errorf("failed to enumerate capture sources: %w", err)
	}

	filtered := make([]domain.CaptureSource, 0, len(sources))
	for _, source := range sources {
		if Excluded(source.Name) {
			continue
		}
		filtered = append(filtered, source)
	}
	return filtered, nil
}

// Excluded reports whether a source name belongs to one of the app's own
// auxiliary windows. The camera overlay stays listed so the direct recording
// path can capture it inside the screen region.
func Excluded(name string) bool {
	lower := strings.ToLower(name)
	if strings.Contains(lower, strings.ToLower(AppIdentifier)) && !strings.Contains(lower, "camera") {
		return true
	}
	return strings.Contains(lower, "teleprompter")
}
