package audio

import (
	"bytes"
	"encoding/binary"
	"errors"
	"io"

	"supportchat/internal/domain"
)

const (
	wavHeaderSize    = 44
	wavBitsPerSample = 16
)

// EncodeWAV wraps the clip's PCM in a canonical 16-bit RIFF/WAVE container.
func EncodeWAV(clip domain.AudioClip) []byte {
	var buf bytes.Buffer
	buf.Grow(wavHeaderSize + len(clip.PCM))
	_ = WriteWAV(&buf, clip)
	return buf.Bytes()
}

// WriteWAV streams the clip to w as a WAVE file.
func WriteWAV(w io.Writer, clip domain.AudioClip) error {
	sampleRate := clip.SampleRate
	if sampleRate <= 0 {
		sampleRate = defaultSampleRate
	}
	channels := clip.Channels
	if channels <= 0 {
		channels = defaultChannels
	}
	if uint64(len(clip.PCM)) > uint64(^uint32(0))-wavHeaderSize {
		return errors.New("audio clip too large for wav")
	}

	blockAlign := channels * wavBitsPerSample / 8
	header := struct {
		RIFF          [4]byte
		ChunkSize     uint32
		WAVE          [4]byte
		Fmt           [4]byte
		FmtSize       uint32
		AudioFormat   uint16
		Channels      uint16
		SampleRate    uint32
		ByteRate      uint32
		BlockAlign    uint16
		BitsPerSample uint16
		Data          [4]byte
		DataSize      uint32
	}{
		RIFF:          [4]byte{'R', 'I', 'F', 'F'},
		ChunkSize:     uint32(wavHeaderSize - 8 + len(clip.PCM)),
		WAVE:          [4]byte{'W', 'A', 'V', 'E'},
		Fmt:           [4]byte{'f', 'm', 't', ' '},
		FmtSize:       16,
		AudioFormat:   1,
		Channels:      uint16(channels),
		SampleRate:    uint32(sampleRate),
		ByteRate:      uint32(sampleRate * blockAlign),
		BlockAlign:    uint16(blockAlign),
		BitsPerSample: wavBitsPerSample,
		Data:          [4]byte{'d', 'a', 't', 'a'},
		DataSize:      uint32(len(clip.PCM)),
	}
	if err := binary.Write(w, binary.LittleEndian, header); err != nil {
		return err
	}
	_, err := w.Write(clip.PCM)
	return err
}
