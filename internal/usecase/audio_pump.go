package usecase

import (
	"errors"
	"fmt"
	"io"
	"time"

	"supportchat/internal/domain"
	"supportchat/internal/ports"
)

const (
	minChunkSize     = 256
	defaultChunkSize = 4096
)

// chunkConsumer handles one chunk of captured PCM. Returning stop ends the
// pump without an error notice.
type chunkConsumer func(chunk []byte) (stop bool, err error)

// pumpAudio reads audio in chunkSize pieces and hands each to consume until
// the source ends, consume stops, or either side fails. done is closed on exit.
func pumpAudio(audio ports.AudioSession, chunkSize int, sink ports.NoticeSink, consume chunkConsumer, done chan struct{}) {
	defer close(done)

	if chunkSize < minChunkSize {
		chunkSize = defaultChunkSize
	}

	buf := make([]byte, chunkSize)
	for {
		n, readErr := audio.Read(buf)
		if n > 0 {
			stop, err := consume(buf[:n])
			if err != nil {
				sink.Notice(domain.ErrorCodeAudioStream, err.Error())
				return
			}
			if stop {
				return
			}
		}
		if readErr != nil {
			if !errors.Is(readErr, io.EOF) {
				sink.Notice(domain.ErrorCodeAudioStream, fmt.Sprintf("audio capture error: %v", readErr))
			}
			return
		}
	}
}

// streamTo forwards every chunk to the recognizer.
func streamTo(stream ports.StreamingSession) chunkConsumer {
	return func(chunk []byte) (bool, error) {
		if err := stream.SendAudio(chunk); err != nil {
			return false, fmt.Errorf("failed to stream audio: %w", err)
		}
		return false, nil
	}
}

// recordUntilSilence keeps every chunk in recording and stops once the
// detector reports a full window of silence, running onSilence exactly once.
func recordUntilSilence(recording *pcmBuffer, detector *silenceDetector, onSilence func()) chunkConsumer {
	return func(chunk []byte) (bool, error) {
		recording.Write(chunk)
		if !detector.Observe(chunk) {
			return false, nil
		}
		onSilence()
		return true, nil
	}
}

// waitForStream waits for the recognizer to flush, closing it after timeout.
func waitForStream(session ports.StreamingSession, timeout time.Duration) error {
	done := make(chan error, 1)
	go func() {
		done <- session.Wait()
	}()

	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case err := <-done:
		return err
	case <-timer.C:
		_ = session.Close()
		return <-done
	}
}
