package media

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"studiorecorder/internal/ports"
)

// Factory starts chunked ffmpeg recorders. The encoder inventory is probed
// once and cached; codec support must be checked before Start because a
// running recorder cannot switch codecs mid-session.
type Factory struct {
	command string
	log     *slog.Logger

	once        sync.Once
	encoders    map[string]struct{}
	encodersErr error
}

func NewFactory(command string, log *slog.Logger) *Factory {
	if command == "" {
		command = "ffmpeg"
	}
	return &Factory{command: command, log: log}
}

// SupportsCodec reports whether the encoder for the codec is available. When
// the encoder list cannot be read, only the webm codecs are assumed present.
func (f *Factory) SupportsCodec(ctx context.Context, codec string) bool {
	f.loadEncoders(ctx)
	if f.encodersErr != nil {
		return codec == "vp9" || codec == "vp8"
	}
	_, ok := pickEncoder(codec, f.encoders)
	return ok
}

func (f *Factory) loadEncoders(ctx context.Context) {
	f.once.Do(func() {
		f.encoders, f.encodersErr = listEncoders(ctx, f.command)
		if f.encodersErr != nil {
			f.log.Warn("encoder inventory unavailable", "err", f.encodersErr)
		}
	})
}

// Start spawns the encoding process against the composed stream and begins
// delivering chunks at the configured cadence, in read order.
func (f *Factory) Start(ctx context.Context, stream ports.MediaStream, opts ports.RecorderOptions, onChunk ports.ChunkSink, onFault func(error)) (ports.ChunkRecorder, error) {
	ffStream, ok := stream.(*Stream)
	if !ok {
		return nil, errNotFFmpegStream
	}
	if len(ffStream.Inputs()) == 0 {
		return nil, errors.New("stream has no inputs")
	}
	if opts.ChunkInterval <= 0 {
		opts.ChunkInterval = time.Second
	}

	f.loadEncoders(ctx)
	encoder, ok := pickEncoder(opts.Codec, f.encoders)
	if !ok {
		return nil, fmt.Errorf("codec %q is not supported by the encoder", opts.Codec)
	}

	args := buildRecorderArgs(ffStream, opts, encoder)
	cmd := exec.Command(f.command, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to create recorder stdout pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("failed to start recorder: %w", err)
	}

	waitErr := make(chan error, 1)
	go func() {
		waitErr <- cmd.Wait()
		close(waitErr)
	}()

	// Catch immediate failures (bad device, unsupported encoder) before
	// reporting the session as recording.
	select {
	case err := <-waitErr:
		if err != nil {
			return nil, fmt.Errorf("recorder exited before producing output: %w: %s", err, trimmed(stderr.String()))
		}
		return nil, errors.New("recorder exited before producing output")
	case <-time.After(250 * time.Millisecond):
	}

	r := &recorder{
		stdout:     stdout,
		stderr:     &stderr,
		process:    cmd.Process,
		waitErr:    waitErr,
		readerDone: make(chan struct{}),
	}
	go r.readLoop(opts.ChunkInterval, onChunk, onFault)
	f.log.Info("recorder started", "encoder", encoder, "bitrate", opts.BitsPerSecond, "interval", opts.ChunkInterval)
	return r, nil
}

func buildRecorderArgs(stream *Stream, opts ports.RecorderOptions, encoder string) []string {
	args := []string{"-nostdin", "-hide_banner", "-loglevel", "warning"}
	for _, input := range stream.Inputs() {
		args = append(args, input.Args...)
		args = append(args, "-f", input.Format, "-i", input.Source)
	}
	if filter := stream.Filter(); filter != "" {
		args = append(args, "-filter_complex", filter, "-map", "[out]")
	}
	args = append(args, "-c:v", encoder)
	if opts.BitsPerSecond > 0 {
		args = append(args, "-b:v", strconv.Itoa(opts.BitsPerSecond))
	}
	if opts.FrameRate > 0 {
		args = append(args, "-r", strconv.Itoa(opts.FrameRate))
	}
	// The webm muxer cannot carry h264; matroska still remuxes cleanly in
	// the mp4 transcode step.
	container := "webm"
	if opts.Codec == "h264" {
		container = "matroska"
	}
	args = append(args, "-f", container, "pipe:1")
	return args
}

type recorder struct {
	stdout  io.ReadCloser
	stderr  *bytes.Buffer
	process *os.Process
	waitErr <-chan error

	stopping   atomic.Bool
	readerDone chan struct{}

	stopOnce sync.Once
	stopErr  error
}

// readLoop delivers encoded output as chunks on a fixed cadence. A single
// goroutine both reads and flushes, so chunk order always matches capture
// order.
func (r *recorder) readLoop(interval time.Duration, onChunk ports.ChunkSink, onFault func(error)) {
	defer close(r.readerDone)

	buf := make([]byte, 32*1024)
	pending := make([]byte, 0, 64*1024)
	lastFlush := time.Now()

	flush := func() {
		if len(pending) == 0 {
			return
		}
		chunk := make([]byte, len(pending))
		copy(chunk, pending)
		onChunk(chunk)
		pending = pending[:0]
		lastFlush = time.Now()
	}

	for {
		n, err := r.stdout.Read(buf)
		if n > 0 {
			pending = append(pending, buf[:n]...)
			if time.Since(lastFlush) >= interval {
				flush()
			}
		}
		if err != nil {
			flush()
			if r.stopping.Load() {
				return
			}
			if exitErr := <-r.waitErr; exitErr != nil && onFault != nil {
				onFault(fmt.Errorf("recorder failed mid-session: %w: %s", exitErr, trimmed(r.stderr.String())))
			} else if !errors.Is(err, io.EOF) && onFault != nil {
				onFault(fmt.Errorf("recorder output error: %w", err))
			}
			return
		}
	}
}

// Stop asks ffmpeg to finalize the container, escalating to a kill when it
// does not exit in time.
func (r *recorder) Stop(ctx context.Context) error {
	r.stopOnce.Do(func() {
		r.stopping.Store(true)

		if r.process != nil {
			_ = r.process.Signal(os.Interrupt)
		}

		deadline := time.After(3 * time.Second)
		select {
		case err, ok := <-r.waitErr:
			if ok {
				r.stopErr = normalizeStopErr(err)
			}
		case <-deadline:
			if r.process != nil {
				_ = r.process.Kill()
			}
			err, ok := <-r.waitErr
			if ok {
				r.stopErr = normalizeStopErr(err)
			}
		case <-ctx.Done():
			if r.process != nil {
				_ = r.process.Kill()
			}
			err, ok := <-r.waitErr
			if ok {
				r.stopErr = normalizeStopErr(err)
			}
		}

		<-r.readerDone

		if closeErr := r.stdout.Close(); closeErr != nil && !errors.Is(closeErr, os.ErrClosed) {
			if r.stopErr == nil {
				r.stopErr = closeErr
			}
		}

		if r.stopErr != nil && r.stderr.Len() > 0 {
			r.stopErr = fmt.Errorf("%w: %s", r.stopErr, trimmed(r.stderr.String()))
		}
	})

	return r.stopErr
}

// normalizeStopErr drops exit errors: ffmpeg reports non-zero status when
// interrupted, which is the expected stop path.
func normalizeStopErr(err error) error {
	if err == nil {
		return nil
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return nil
	}
	return err
}

func trimmed(input string) string {
	return string(bytes.TrimSpace([]byte(input)))
}
