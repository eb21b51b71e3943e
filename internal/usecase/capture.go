package usecase

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"supportchat/internal/domain"
	"supportchat/internal/ports"
)

var (
	ErrNoActiveCapture = errors.New("no active capture")
	ErrCaptureActive   = errors.New("a capture is already active")
	ErrCaptureClosed   = errors.New("capture session is closed")
)

// CaptureConfig controls both capture modes.
type CaptureConfig struct {
	Audio              ports.AudioConfig
	Streaming          ports.StreamingConfig
	Language           string
	ChunkSize          int
	StreamingGrace     time.Duration
	SilenceThresholdDB float64
	SilenceWindow      time.Duration
}

// CaptureSession owns the microphone. Only one capture, in either mode, may be
// active; a second Start is rejected rather than queued.
type CaptureSession struct {
	audio       ports.AudioCapture
	provider    ports.TranscriptionProvider
	transcriber ports.Transcriber
	sink        ports.CaptureSink
	finalizer   recognitionFinalizer
	logger      *zap.Logger
	cfg         CaptureConfig

	ctx      context.Context
	cancel   context.CancelFunc
	stopping sync.WaitGroup
	starting sync.WaitGroup

	mu      sync.Mutex
	current *activeCapture
	closed  bool
}

func NewCaptureSession(
	audio ports.AudioCapture,
	provider ports.TranscriptionProvider,
	transcriber ports.Transcriber,
	rules ports.RulesEngine,
	sink ports.CaptureSink,
	handler RecognitionHandler,
	logger *zap.Logger,
	cfg CaptureConfig,
) *CaptureSession {
	if cfg.ChunkSize < 256 {
		cfg.ChunkSize = 4096
	}
	if cfg.SilenceThresholdDB == 0 {
		cfg.SilenceThresholdDB = DefaultSilenceThresholdDB
	}
	if cfg.SilenceWindow <= 0 {
		cfg.SilenceWindow = DefaultSilenceWindow
	}
	if cfg.Streaming.Language == "" {
		cfg.Streaming.Language = cfg.Language
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &CaptureSession{
		audio:       audio,
		provider:    provider,
		transcriber: transcriber,
		sink:        sink,
		finalizer:   newRecognitionFinalizer(rules, sink, handler, logger),
		logger:      logger,
		cfg:         cfg,
		ctx:         ctx,
		cancel:      cancel,
	}
}

// Start acquires the microphone in mode. listener receives live results in
// streaming mode and may be nil.
func (c *CaptureSession) Start(ctx context.Context, mode domain.CaptureMode, listener ports.StreamListener) error {
	if !mode.Valid() {
		return fmt.Errorf("unknown capture mode %q", mode)
	}
	if listener == nil {
		listener = noopListener{}
	}

	active := &activeCapture{
		mode:       mode,
		listener:   listener,
		eventsDone: make(chan struct{}),
		audioDone:  make(chan struct{}),
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrCaptureClosed
	}
	if c.current != nil {
		c.mu.Unlock()
		return ErrCaptureActive
	}
	c.current = active
	c.starting.Add(1)
	c.mu.Unlock()
	defer c.starting.Done()

	var (
		run func()
		err error
	)
	if mode == domain.CaptureModeStreaming {
		run, err = c.startStreaming(ctx, active)
	} else {
		run, err = c.startUtterance(ctx, active)
	}
	if err != nil {
		c.release(active)
		c.sink.Notice(domain.ErrorCodeAudioStart, err.Error())
		return err
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		c.discard(active)
		return ErrCaptureClosed
	}
	active.ready = true
	cancelled := active.stopRequested
	active.stopping = cancelled
	c.mu.Unlock()

	if cancelled {
		c.discard(active)
		c.sink.CaptureStateChanged(domain.CaptureStateIdle, domain.CaptureReasonRecordingDiscarded)
		return nil
	}

	c.logger.Info("capture started", zap.String("mode", string(mode)))
	c.sink.CaptureStateChanged(mode.RecordingState(), domain.CaptureReasonRecordingStarted)
	run()
	return nil
}

// startUtterance acquires the microphone and returns the function that starts
// the pump once the capture is marked ready.
func (c *CaptureSession) startUtterance(ctx context.Context, active *activeCapture) (func(), error) {
	sessionCtx, cancel := context.WithCancel(ctx)
	audioSession, err := c.audio.Start(sessionCtx, c.cfg.Audio)
	if err != nil {
		cancel()
		return nil, err
	}

	active.cancel = cancel
	active.audio = audioSession
	active.recording = &pcmBuffer{}
	close(active.eventsDone)

	detector := newSilenceDetector(c.cfg.SilenceThresholdDB, c.cfg.SilenceWindow, c.cfg.Audio.SampleRate, c.cfg.Audio.Channels)
	onSilence := func() { c.autoStop(active) }
	return func() {
		go pumpAudio(active.audio, c.cfg.ChunkSize, c.sink, recordUntilSilence(active.recording, detector, onSilence), active.audioDone)
	}, nil
}

func (c *CaptureSession) startStreaming(ctx context.Context, active *activeCapture) (func(), error) {
	sessionCtx, cancel := context.WithCancel(ctx)
	stream, err := c.provider.StartStreaming(sessionCtx, c.cfg.Streaming)
	if err != nil {
		cancel()
		return nil, err
	}

	audioSession, err := c.audio.Start(sessionCtx, c.cfg.Audio)
	if err != nil {
		_ = stream.Close()
		cancel()
		return nil, err
	}

	active.cancel = cancel
	active.audio = audioSession
	active.stream = stream
	active.aggregator = newTranscriptAggregator()

	return func() {
		go consumeTranscriptionEvents(active.stream, active.aggregator, active.listener, active.eventsDone)
		go pumpAudio(active.audio, c.cfg.ChunkSize, c.sink, streamTo(active.stream), active.audioDone)
	}, nil
}

// Stop ends the active capture and delivers what was recognized. A capture
// still acquiring the microphone is discarded as soon as Start has it.
func (c *CaptureSession) Stop(ctx context.Context) error {
	c.mu.Lock()
	if pending := c.current; pending != nil && !pending.ready {
		pending.stopRequested = true
		c.mu.Unlock()
		return nil
	}
	c.mu.Unlock()

	active := c.claim(nil)
	if active == nil {
		return ErrNoActiveCapture
	}
	return c.finish(ctx, active, domain.CaptureReasonTranscribing)
}

// Status returns the current capture status.
func (c *CaptureSession) Status() domain.CaptureStatus {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.current == nil {
		return domain.CaptureStatus{State: domain.CaptureStateIdle}
	}
	return domain.CaptureStatus{State: c.current.mode.RecordingState(), Mode: c.current.mode, Active: true}
}

// Close discards any active capture and waits for every capture goroutine.
func (c *CaptureSession) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.mu.Unlock()

	// A Start in progress sees closed and releases its own resources.
	c.starting.Wait()

	c.mu.Lock()
	var active *activeCapture
	if c.current != nil && c.current.ready && !c.current.stopping {
		active = c.current
		active.stopping = true
	}
	c.mu.Unlock()

	if active != nil {
		c.abort(active)
		c.release(active)
		c.sink.CaptureStateChanged(domain.CaptureStateIdle, domain.CaptureReasonRecordingDiscarded)
	}

	c.cancel()
	c.stopping.Wait()
	return nil
}

// autoStop runs on the pump goroutine once silence was detected.
func (c *CaptureSession) autoStop(active *activeCapture) {
	if c.claim(active) == nil {
		return
	}
	c.stopping.Add(1)
	go func() {
		defer c.stopping.Done()
		if err := c.finish(c.ctx, active, domain.CaptureReasonSilenceDetected); err != nil {
			c.logger.Debug("auto stop finished with error", zap.Error(err))
		}
	}()
}

// claim marks the current capture as stopping. With a non-nil target the
// claim only succeeds while target is still the current capture.
func (c *CaptureSession) claim(target *activeCapture) *activeCapture {
	c.mu.Lock()
	defer c.mu.Unlock()
	active := c.current
	if active == nil || !active.ready || active.stopping {
		return nil
	}
	if target != nil && active != target {
		return nil
	}
	active.stopping = true
	return active
}

func (c *CaptureSession) release(active *activeCapture) {
	if active.cancel != nil {
		active.cancel()
	}
	c.mu.Lock()
	if c.current == active {
		c.current = nil
	}
	c.mu.Unlock()
}

// discard releases a capture whose goroutines were never started.
func (c *CaptureSession) discard(active *activeCapture) {
	if active.audio != nil {
		_ = active.audio.Stop()
	}
	if active.stream != nil {
		_ = active.stream.Close()
	}
	c.release(active)
}

func (c *CaptureSession) abort(active *activeCapture) {
	active.cancel()
	_ = active.audio.Stop()
	if active.stream != nil {
		_ = active.stream.Close()
	}
	<-active.eventsDone
	<-active.audioDone
}

func (c *CaptureSession) finish(ctx context.Context, active *activeCapture, reason domain.CaptureReason) error {
	if active.mode == domain.CaptureModeStreaming {
		return c.finishStreaming(ctx, active, reason)
	}
	return c.finishUtterance(ctx, active, reason)
}

func (c *CaptureSession) finishUtterance(ctx context.Context, active *activeCapture, reason domain.CaptureReason) error {
	if err := active.audio.Stop(); err != nil {
		c.sink.Notice(domain.ErrorCodeAudioStop, "failed to stop audio capture cleanly")
	}
	<-active.audioDone
	c.release(active)
	c.sink.CaptureStateChanged(domain.CaptureStateIdle, reason)

	clip := domain.AudioClip{
		PCM:        active.recording.Bytes(),
		SampleRate: c.cfg.Audio.SampleRate,
		Channels:   c.cfg.Audio.Channels,
	}
	c.logger.Debug("utterance captured", zap.Int("bytes", len(clip.PCM)), zap.String("reason", string(reason)))

	var rec domain.Recognition
	if len(clip.PCM) > 0 {
		var err error
		rec, err = c.transcriber.Transcribe(ctx, clip, c.cfg.Language)
		if err != nil {
			c.logger.Warn("transcription failed", zap.Error(err))
			c.sink.Notice(domain.ErrorCodeTranscription, err.Error())
			c.sink.CaptureStateChanged(domain.CaptureStateIdle, domain.CaptureReasonTranscriptionFailed)
			return err
		}
	}

	rec = c.finalizer.Finalize(ctx, rec)
	if rec.Empty() {
		c.sink.CaptureStateChanged(domain.CaptureStateIdle, domain.CaptureReasonNoTranscript)
		return nil
	}
	c.sink.CaptureStateChanged(domain.CaptureStateIdle, domain.CaptureReasonTranscriptDelivered)
	return nil
}

func (c *CaptureSession) finishStreaming(ctx context.Context, active *activeCapture, reason domain.CaptureReason) error {
	if err := active.audio.Stop(); err != nil {
		c.sink.Notice(domain.ErrorCodeAudioStop, "failed to stop audio capture cleanly")
	}

	if c.cfg.StreamingGrace > 0 {
		timer := time.NewTimer(c.cfg.StreamingGrace)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
		}
	}

	_ = active.stream.CloseSend()
	streamErr := waitForStream(active.stream, 4*time.Second)
	<-active.eventsDone
	<-active.audioDone
	c.release(active)
	c.sink.CaptureStateChanged(domain.CaptureStateIdle, reason)

	raw := active.aggregator.Raw()
	if raw == "" && streamErr != nil {
		c.sink.Notice(domain.ErrorCodeTranscription, streamErr.Error())
		c.sink.CaptureStateChanged(domain.CaptureStateIdle, domain.CaptureReasonTranscriptionFailed)
		return streamErr
	}
	if raw == "" {
		c.sink.CaptureStateChanged(domain.CaptureStateIdle, domain.CaptureReasonNoTranscript)
		return nil
	}

	c.finalizer.Finalize(ctx, domain.Recognition{Text: raw})
	c.sink.CaptureStateChanged(domain.CaptureStateIdle, domain.CaptureReasonTranscriptDelivered)
	return nil
}
