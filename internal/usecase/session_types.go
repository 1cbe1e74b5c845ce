package usecase

import (
	"sync"

	"studiorecorder/internal/ports"
)

type activeSession struct {
	sourceID string
	screen   ports.MediaStream
	camera   ports.MediaStream
	recorder ports.ChunkRecorder

	chunkMu sync.Mutex
	chunks  [][]byte
}

// appendChunk stores one encoded segment. Chunks arrive from the recorder's
// single delivery goroutine, so append order matches capture order.
func (s *activeSession) appendChunk(chunk []byte) {
	if len(chunk) == 0 {
		return
	}
	s.chunkMu.Lock()
	s.chunks = append(s.chunks, chunk)
	s.chunkMu.Unlock()
}

// concat joins the buffered chunks in delivery order and clears the buffer.
func (s *activeSession) concat() []byte {
	s.chunkMu.Lock()
	defer s.chunkMu.Unlock()

	total := 0
	for _, chunk := range s.chunks {
		total += len(chunk)
	}
	out := make([]byte, 0, total)
	for _, chunk := range s.chunks {
		out = append(out, chunk...)
	}
	s.chunks = nil
	return out
}

// releaseStreams returns the capture devices.
func (s *activeSession) releaseStreams() {
	if s.screen != nil {
		_ = s.screen.Release()
	}
	if s.camera != nil {
		_ = s.camera.Release()
	}
}
