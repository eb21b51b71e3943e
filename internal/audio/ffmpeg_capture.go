package audio

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"runtime"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"supportchat/internal/ports"
)

const (
	defaultSampleRate   = 16000
	defaultChannels     = 1
	defaultStartupProbe = 250 * time.Millisecond
	stopGrace           = 1200 * time.Millisecond
	stderrLimit         = 4096
)

// FFMPEGCapture records the microphone as s16le PCM through an ffmpeg child
// process. The process lives until the session is stopped or ctx ends.
type FFMPEGCapture struct {
	command      string
	startupProbe time.Duration
	logger       *zap.Logger
}

var _ ports.AudioCapture = (*FFMPEGCapture)(nil)

func NewFFMPEGCapture(command string, logger *zap.Logger) *FFMPEGCapture {
	if command == "" {
		command = "ffmpeg"
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FFMPEGCapture{command: command, startupProbe: defaultStartupProbe, logger: logger}
}

func (c *FFMPEGCapture) Start(ctx context.Context, cfg ports.AudioConfig) (ports.AudioSession, error) {
	cfg = withCaptureDefaults(cfg, runtime.GOOS)

	cmd := exec.CommandContext(ctx, c.command, captureArgs(cfg)...)
	stderr := &tailBuffer{limit: stderrLimit}
	cmd.Stderr = stderr

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to create ffmpeg stdout pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("failed to start ffmpeg: %w", err)
	}

	exited := make(chan error, 1)
	go func() {
		exited <- cmd.Wait()
		close(exited)
	}()

	// A device that cannot be opened makes ffmpeg exit almost immediately.
	select {
	case err := <-exited:
		detail := stderr.String()
		if err != nil {
			return nil, fmt.Errorf("ffmpeg exited before capture started: %w: %s", err, detail)
		}
		return nil, fmt.Errorf("ffmpeg exited before capture started: %s", detail)
	case <-time.After(c.startupProbe):
	}

	c.logger.Debug("microphone opened",
		zap.String("format", cfg.InputFormat),
		zap.String("device", cfg.InputDevice),
		zap.Int("sample_rate", cfg.SampleRate),
	)
	return &ffmpegSession{
		stdout:  stdout,
		stderr:  stderr,
		process: cmd.Process,
		exited:  exited,
	}, nil
}

// withCaptureDefaults fills the input backend of goos when none is configured.
func withCaptureDefaults(cfg ports.AudioConfig, goos string) ports.AudioConfig {
	if cfg.SampleRate <= 0 {
		cfg.SampleRate = defaultSampleRate
	}
	if cfg.Channels <= 0 {
		cfg.Channels = defaultChannels
	}
	if cfg.InputFormat == "" {
		switch goos {
		case "darwin":
			cfg.InputFormat = "avfoundation"
		case "windows":
			cfg.InputFormat = "dshow"
		default:
			cfg.InputFormat = "pulse"
		}
	}
	if cfg.InputDevice == "" {
		switch cfg.InputFormat {
		case "avfoundation":
			cfg.InputDevice = ":0"
		case "dshow":
			cfg.InputDevice = "audio=default"
		default:
			cfg.InputDevice = "default"
		}
	}
	return cfg
}

func captureArgs(cfg ports.AudioConfig) []string {
	return []string{
		"-nostdin",
		"-hide_banner",
		"-loglevel", "warning",
		"-f", cfg.InputFormat,
		"-i", cfg.InputDevice,
		"-ac", strconv.Itoa(cfg.Channels),
		"-ar", strconv.Itoa(cfg.SampleRate),
		"-f", "s16le",
		"-",
	}
}

type ffmpegSession struct {
	stdout io.ReadCloser
	stderr *tailBuffer

	process *os.Process
	exited  <-chan error

	stopOnce sync.Once
	stopErr  error
}

func (s *ffmpegSession) Read(p []byte) (int, error) {
	return s.stdout.Read(p)
}

func (s *ffmpegSession) Close() error {
	return s.Stop()
}

// Stop interrupts ffmpeg so it flushes, and kills it after a grace period.
func (s *ffmpegSession) Stop() error {
	s.stopOnce.Do(func() {
		if s.process != nil {
			_ = s.process.Signal(os.Interrupt)
		}

		var err error
		select {
		case err = <-s.exited:
		case <-time.After(stopGrace):
			if s.process != nil {
				_ = s.process.Kill()
			}
			err = <-s.exited
		}
		s.stopErr = normalizeStopErr(err)

		if closeErr := s.stdout.Close(); closeErr != nil && !errors.Is(closeErr, os.ErrClosed) && s.stopErr == nil {
			s.stopErr = closeErr
		}
		if s.stopErr != nil {
			if detail := s.stderr.String(); detail != "" {
				s.stopErr = fmt.Errorf("%w: %s", s.stopErr, detail)
			}
		}
	})

	return s.stopErr
}

// normalizeStopErr drops the exit status ffmpeg reports after being signalled.
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

// tailBuffer keeps the last limit bytes written to it. exec writes stderr from
// its own goroutine, so access is locked.
type tailBuffer struct {
	mu    sync.Mutex
	buf   bytes.Buffer
	limit int
}

func (b *tailBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.buf.Write(p)
	if over := b.buf.Len() - b.limit; b.limit > 0 && over > 0 {
		b.buf.Next(over)
	}
	return len(p), nil
}

func (b *tailBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return strings.TrimSpace(b.buf.String())
}
