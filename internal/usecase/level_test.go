package usecase

import (
	"testing"
	"time"
)

func TestPCMLevelDBFS(t *testing.T) {
	t.Parallel()

	if got := pcmLevelDBFS(silentChunk(64)); got != silenceFloorDB {
		t.Fatalf("expected floor for digital silence, got %f", got)
	}
	if got := pcmLevelDBFS(nil); got != silenceFloorDB {
		t.Fatalf("expected floor for empty chunk, got %f", got)
	}
	if got := pcmLevelDBFS(toneChunk(64, 32767)); got < -0.01 || got > 0 {
		t.Fatalf("expected full scale near 0 dBFS, got %f", got)
	}
	if got := pcmLevelDBFS(toneChunk(64, 100)); got > -45 {
		t.Fatalf("expected quiet tone below -45 dBFS, got %f", got)
	}
}

func TestSilenceDetectorCountsAudioTime(t *testing.T) {
	t.Parallel()

	// 16 kHz mono: 3200 bytes are 100ms.
	detector := newSilenceDetector(-45, 200*time.Millisecond, 16000, 1)

	if detector.Observe(silentChunk(3200)) {
		t.Fatalf("100ms of silence must not trigger a 200ms window")
	}
	if detector.Observe(toneChunk(320, 12000)) {
		t.Fatalf("speech must not trigger")
	}
	if detector.silentFor() != 0 {
		t.Fatalf("speech must reset the silence run")
	}
	if detector.Observe(silentChunk(3200)) {
		t.Fatalf("silence run restarted after speech")
	}
	if !detector.Observe(silentChunk(3200)) {
		t.Fatalf("expected 200ms of silence to trigger")
	}
}
