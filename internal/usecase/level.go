package usecase

import (
	"encoding/binary"
	"math"
	"time"
)

const (
	DefaultSilenceThresholdDB = -45.0
	DefaultSilenceWindow      = 2 * time.Second

	// silenceFloorDB is reported for digital silence.
	silenceFloorDB = -120.0
)

// pcmLevelDBFS returns the RMS level of s16le samples in dBFS.
func pcmLevelDBFS(chunk []byte) float64 {
	samples := len(chunk) / 2
	if samples == 0 {
		return silenceFloorDB
	}
	var sum float64
	for i := 0; i < samples; i++ {
		v := float64(int16(binary.LittleEndian.Uint16(chunk[i*2:]))) / 32768.0
		sum += v * v
	}
	rms := math.Sqrt(sum / float64(samples))
	if rms == 0 {
		return silenceFloorDB
	}
	return math.Max(20*math.Log10(rms), silenceFloorDB)
}

// silenceDetector tracks how long the input has stayed below the threshold.
// Time is measured in audio samples so it follows the recording, not the clock.
type silenceDetector struct {
	thresholdDB    float64
	window         time.Duration
	bytesPerSecond int
	silentBytes    int
}

func newSilenceDetector(thresholdDB float64, window time.Duration, sampleRate int, channels int) *silenceDetector {
	if window <= 0 {
		window = DefaultSilenceWindow
	}
	if sampleRate <= 0 {
		sampleRate = 16000
	}
	if channels <= 0 {
		channels = 1
	}
	return &silenceDetector{
		thresholdDB:    thresholdDB,
		window:         window,
		bytesPerSecond: sampleRate * channels * 2,
	}
}

// Observe feeds one chunk and reports whether the silence window has elapsed.
func (d *silenceDetector) Observe(chunk []byte) bool {
	if pcmLevelDBFS(chunk) >= d.thresholdDB {
		d.silentBytes = 0
		return false
	}
	d.silentBytes += len(chunk)
	return d.silentFor() >= d.window
}

func (d *silenceDetector) silentFor() time.Duration {
	return time.Duration(d.silentBytes) * time.Second / time.Duration(d.bytesPerSecond)
}
