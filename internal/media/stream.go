// Package media implements capture, chunked recording, and source
// enumeration on top of an ffmpeg subprocess.
package media

import "sync"

// InputSpec describes one ffmpeg input feeding the recorder.
type InputSpec struct {
	// Format is the demuxer name (x11grab, v4l2, avfoundation, gdigrab...).
	Format string
	// Source is the -i value.
	Source string
	// Args are extra per-input arguments placed before -i.
	Args []string
}

// Stream is the ffmpeg-backed capture stream handle. Acquisition validates
// the device and records the input plan; the encoding process itself is owned
// by the recorder for the session's lifetime.
type Stream struct {
	inputs []InputSpec
	// filter is an optional filter_complex graph producing [out].
	filter string

	mu       sync.Mutex
	released bool
}

// Inputs returns the ffmpeg input plan.
func (s *Stream) Inputs() []InputSpec { return s.inputs }

// Filter returns the filter_complex graph, empty for single-input streams.
func (s *Stream) Filter() string { return s.filter }

// Release marks the stream's devices as free again. Safe to call twice.
func (s *Stream) Release() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.released = true
	return nil
}

// Released reports whether Release has been called.
func (s *Stream) Released() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.released
}
