package usecase

import (
	"strings"
	"sync"

	"supportchat/internal/domain"
	"supportchat/internal/ports"
)

// transcriptAggregator builds the text of one streaming capture: every final
// segment in order, followed by the latest partial that no final has covered
// yet (speech cut off by Stop).
type transcriptAggregator struct {
	mu      sync.Mutex
	finals  []string
	pending string
}

func newTranscriptAggregator() *transcriptAggregator {
	return &transcriptAggregator{}
}

func (a *transcriptAggregator) Add(event domain.TranscriptEvent) {
	text := strings.TrimSpace(event.Text)
	if text == "" {
		return
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if event.Kind == domain.TranscriptKindFinal {
		a.finals = append(a.finals, text)
		a.pending = ""
		return
	}
	a.pending = text
}

func (a *transcriptAggregator) Raw() string {
	a.mu.Lock()
	defer a.mu.Unlock()

	parts := a.finals
	if a.pending != "" {
		parts = append(parts[:len(parts):len(parts)], a.pending)
	}
	return strings.Join(parts, " ")
}

// consumeTranscriptionEvents forwards recognizer output to listener in
// arrival order. A stream that fails still ends with SpeechEnded.
func consumeTranscriptionEvents(
	session ports.StreamingSession,
	aggregator *transcriptAggregator,
	listener ports.StreamListener,
	done chan struct{},
) {
	defer close(done)

	ended := false
	for event := range session.Events() {
		text := strings.TrimSpace(event.Text)
		if text != "" {
			aggregator.Add(event)
			ended = false
			if event.Kind == domain.TranscriptKindFinal {
				listener.Final(text)
			} else {
				listener.Partial(text)
			}
		}
		if event.IsSpeechFinal && !ended {
			listener.SpeechEnded()
			ended = true
		}
	}

	if err := session.Wait(); err != nil && !ended {
		listener.SpeechEnded()
	}
}
