package deepgram

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"supportchat/internal/domain"
	"supportchat/internal/ports"
)

const (
	defaultBaseURL = "https://api.deepgram.com/v1"
	defaultModel   = "nova-2"
)

var (
	closeStreamMessage = []byte(`{"type":"CloseStream"}`)
	errStreamClosed    = errors.New("deepgram: audio stream is closed")
)

// Config controls Deepgram websocket settings. Language is used when the
// stream itself does not ask for one.
type Config struct {
	APIKey       string
	APIBaseURL   string
	Model        string
	Language     string
	SmartFormat  bool
	Endpointing  time.Duration
	UtteranceEnd time.Duration
}

// Provider implements ports.TranscriptionProvider for Deepgram live streaming.
type Provider struct {
	cfg    Config
	dialer *websocket.Dialer
	logger *zap.Logger
}

var _ ports.TranscriptionProvider = (*Provider)(nil)

func NewProvider(cfg Config, logger *zap.Logger) *Provider {
	if cfg.APIBaseURL == "" {
		cfg.APIBaseURL = defaultBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = defaultModel
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Provider{cfg: cfg, dialer: websocket.DefaultDialer, logger: logger}
}

func (p *Provider) StartStreaming(ctx context.Context, cfg ports.StreamingConfig) (ports.StreamingSession, error) {
	if strings.TrimSpace(p.cfg.APIKey) == "" {
		return nil, errors.New("DEEPGRAM_API_KEY is not configured")
	}

	wsURL, err := buildListenURL(p.cfg, cfg)
	if err != nil {
		return nil, err
	}

	headers := http.Header{}
	headers.Set("Authorization", "Token "+p.cfg.APIKey)

	conn, _, err := p.dialer.DialContext(ctx, wsURL, headers)
	if err != nil {
		return nil, fmt.Errorf("deepgram: connect: %w", err)
	}

	p.logger.Debug("deepgram stream opened",
		zap.String("model", p.cfg.Model),
		zap.Int("sample_rate", cfg.SampleRate),
	)
	s := newStream(conn, p.logger)
	context.AfterFunc(ctx, func() { _ = s.Close() })
	return s, nil
}

// stream is one live recognition websocket. Audio chunks are queued for the
// sender goroutine; server messages are decoded by the receiver goroutine.
type stream struct {
	conn   *websocket.Conn
	logger *zap.Logger

	events chan domain.TranscriptEvent
	queue  chan []byte
	done   chan struct{}
	wg     sync.WaitGroup

	// sendMu guards queue against a close racing a send.
	sendMu   sync.Mutex
	sendDone bool

	errMu sync.Mutex
	err   error

	closeOnce sync.Once
}

func newStream(conn *websocket.Conn, logger *zap.Logger) *stream {
	s := &stream{
		conn:   conn,
		logger: logger,
		events: make(chan domain.TranscriptEvent, 64),
		queue:  make(chan []byte, 32),
		done:   make(chan struct{}),
	}
	s.wg.Add(2)
	go s.receive()
	go s.transmit()
	go func() {
		s.wg.Wait()
		close(s.events)
		close(s.done)
		_ = conn.Close()
		s.logger.Debug("deepgram stream closed", zap.Error(s.waitErr()))
	}()
	return s
}

func (s *stream) SendAudio(chunk []byte) error {
	if len(chunk) == 0 {
		return nil
	}

	s.sendMu.Lock()
	defer s.sendMu.Unlock()
	if s.sendDone {
		return errStreamClosed
	}
	select {
	case s.queue <- append([]byte(nil), chunk...):
		return nil
	case <-s.done:
		if err := s.waitErr(); err != nil {
			return err
		}
		return errStreamClosed
	}
}

// CloseSend flushes queued audio and asks the server to finish the stream.
func (s *stream) CloseSend() error {
	s.sendMu.Lock()
	defer s.sendMu.Unlock()
	if !s.sendDone {
		s.sendDone = true
		close(s.queue)
	}
	return nil
}

func (s *stream) Events() <-chan domain.TranscriptEvent {
	return s.events
}

func (s *stream) Wait() error {
	<-s.done
	return s.waitErr()
}

func (s *stream) Close() error {
	s.closeOnce.Do(func() {
		// Closing the socket first unblocks a sender stuck on a full queue.
		_ = s.conn.Close()
		_ = s.CloseSend()
	})
	<-s.done
	return s.waitErr()
}

func (s *stream) waitErr() error {
	s.errMu.Lock()
	defer s.errMu.Unlock()
	return s.err
}

// fail records the first error that is not a regular close.
func (s *stream) fail(err error) {
	if err == nil || isNormalClose(err) {
		return
	}
	s.errMu.Lock()
	defer s.errMu.Unlock()
	if s.err == nil {
		s.err = err
	}
}

// isNormalClose reports a regular end of the socket, also through wrapping.
// ErrCloseSent means the close handshake already started.
func isNormalClose(err error) bool {
	if errors.Is(err, websocket.ErrCloseSent) {
		return true
	}
	var closeErr *websocket.CloseError
	if !errors.As(err, &closeErr) {
		return false
	}
	switch closeErr.Code {
	case websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseNoStatusReceived:
		return true
	}
	return false
}

func (s *stream) transmit() {
	defer s.wg.Done()

	for chunk := range s.queue {
		if err := s.conn.WriteMessage(websocket.BinaryMessage, chunk); err != nil {
			s.fail(fmt.Errorf("send audio: %w", err))
			return
		}
	}
	if err := s.conn.WriteMessage(websocket.TextMessage, closeStreamMessage); err != nil {
		s.fail(fmt.Errorf("close stream: %w", err))
	}
}

func (s *stream) receive() {
	defer s.wg.Done()

	for {
		_, payload, err := s.conn.ReadMessage()
		if err != nil {
			if !isNormalClose(err) {
				s.fail(fmt.Errorf("read provider event: %w", err))
			}
			return
		}

		event, ok, err := decodeEvent(payload)
		if err != nil {
			// Listeners still need to learn the speech is over.
			s.push(domain.TranscriptEvent{Kind: domain.TranscriptKindFinal, IsSpeechFinal: true})
			s.fail(err)
			return
		}
		if !ok {
			s.logger.Debug("ignored deepgram message", zap.Int("bytes", len(payload)))
			continue
		}
		s.push(event)
	}
}

// push never blocks; events are dropped when the consumer falls behind.
func (s *stream) push(event domain.TranscriptEvent) {
	select {
	case s.events <- event:
	default:
		s.logger.Debug("dropped transcript event", zap.String("kind", string(event.Kind)))
	}
}

type deepgramResponse struct {
	Type        string `json:"type"`
	Message     string `json:"message"`
	Description string `json:"description"`
	IsFinal     bool   `json:"is_final"`
	SpeechFinal bool   `json:"speech_final"`

	Channel struct {
		Alternatives []struct {
			Transcript string `json:"transcript"`
		} `json:"alternatives"`
	} `json:"channel"`

	Results struct {
		Channels []struct {
			Alternatives []struct {
				Transcript string `json:"transcript"`
			} `json:"alternatives"`
		} `json:"channels"`
	} `json:"results"`
}

// decodeEvent maps one server message to a transcript event. ok is false for
// messages that carry nothing to forward; a provider error is returned as err.
func decodeEvent(payload []byte) (event domain.TranscriptEvent, ok bool, err error) {
	var response deepgramResponse
	if err := json.Unmarshal(payload, &response); err != nil {
		return domain.TranscriptEvent{}, false, nil
	}

	switch {
	case strings.EqualFold(response.Type, "Error"):
		message := strings.TrimSpace(response.Message)
		if message == "" {
			message = strings.TrimSpace(response.Description)
		}
		if message == "" {
			message = "deepgram returned an unknown error"
		}
		return domain.TranscriptEvent{}, false, errors.New(message)

	case strings.EqualFold(response.Type, "UtteranceEnd"):
		return domain.TranscriptEvent{Kind: domain.TranscriptKindFinal, IsSpeechFinal: true}, true, nil
	}

	transcript := extractTranscript(response)
	if transcript == "" {
		if response.SpeechFinal {
			return domain.TranscriptEvent{Kind: domain.TranscriptKindFinal, IsSpeechFinal: true}, true, nil
		}
		return domain.TranscriptEvent{}, false, nil
	}

	event = domain.TranscriptEvent{Text: transcript, IsSpeechFinal: response.SpeechFinal}
	if response.IsFinal || response.SpeechFinal {
		event.Kind = domain.TranscriptKindFinal
	} else {
		event.Kind = domain.TranscriptKindPartial
	}
	return event, true, nil
}

func extractTranscript(response deepgramResponse) string {
	if len(response.Channel.Alternatives) > 0 {
		if text := strings.TrimSpace(response.Channel.Alternatives[0].Transcript); text != "" {
			return text
		}
	}
	if len(response.Results.Channels) > 0 && len(response.Results.Channels[0].Alternatives) > 0 {
		return strings.TrimSpace(response.Results.Channels[0].Alternatives[0].Transcript)
	}
	return ""
}

func buildListenURL(providerCfg Config, streamCfg ports.StreamingConfig) (string, error) {
	base := strings.TrimSpace(providerCfg.APIBaseURL)
	if base == "" {
		base = defaultBaseURL
	}

	if strings.HasPrefix(base, "https://") {
		base = "wss://" + strings.TrimPrefix(base, "https://")
	} else if strings.HasPrefix(base, "http://") {
		base = "ws://" + strings.TrimPrefix(base, "http://")
	}
	base = strings.TrimRight(base, "/")

	listenURL, err := url.Parse(base + "/listen")
	if err != nil {
		return "", fmt.Errorf("invalid Deepgram API base URL: %w", err)
	}

	if streamCfg.Encoding == "" {
		streamCfg.Encoding = "linear16"
	}
	if streamCfg.SampleRate <= 0 {
		streamCfg.SampleRate = 16000
	}
	if streamCfg.Channels <= 0 {
		streamCfg.Channels = 1
	}
	language := streamCfg.Language
	if language == "" {
		language = providerCfg.Language
	}

	query := listenURL.Query()
	query.Set("model", providerCfg.Model)
	query.Set("encoding", streamCfg.Encoding)
	query.Set("sample_rate", strconv.Itoa(streamCfg.SampleRate))
	query.Set("channels", strconv.Itoa(streamCfg.Channels))
	query.Set("interim_results", strconv.FormatBool(streamCfg.InterimResults))
	query.Set("smart_format", strconv.FormatBool(providerCfg.SmartFormat))
	if language != "" {
		query.Set("language", language)
	}
	if providerCfg.Endpointing > 0 {
		query.Set("endpointing", strconv.FormatInt(providerCfg.Endpointing.Milliseconds(), 10))
	}
	// Deepgram only sends UtteranceEnd alongside interim results.
	if providerCfg.UtteranceEnd > 0 && streamCfg.InterimResults {
		query.Set("utterance_end_ms", strconv.FormatInt(providerCfg.UtteranceEnd.Milliseconds(), 10))
	}
	listenURL.RawQuery = query.Encode()
	return listenURL.String(), nil
}
