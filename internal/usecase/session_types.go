package usecase

import (
	"bytes"
	"sync"

	"supportchat/internal/domain"
	"supportchat/internal/ports"
)

// activeCapture is the one capture holding the microphone. ready is false
// while Start is still acquiring resources; stopping is set by whoever claimed
// the capture for shutdown; stopRequested records a Stop that arrived before
// ready. All three are guarded by CaptureSession.mu.
type activeCapture struct {
	mode     domain.CaptureMode
	cancel   func()
	audio    ports.AudioSession
	stream   ports.StreamingSession
	listener ports.StreamListener

	ready         bool
	stopping      bool
	stopRequested bool

	recording  *pcmBuffer
	aggregator *transcriptAggregator
	eventsDone chan struct{}
	audioDone  chan struct{}
}

// pcmBuffer collects utterance audio written by the pump goroutine.
type pcmBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *pcmBuffer) Write(p []byte) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.buf.Write(p)
}

func (b *pcmBuffer) Bytes() []byte {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]byte(nil), b.buf.Bytes()...)
}

type noopListener struct{}

func (noopListener) Partial(string) {}
func (noopListener) Final(string)   {}
func (noopListener) SpeechEnded()   {}
