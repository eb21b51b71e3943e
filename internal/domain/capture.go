package domain

// CaptureMode selects how speech is captured.
type CaptureMode string

const (
	CaptureModeUtterance CaptureMode = "utterance"
	CaptureModeStreaming CaptureMode = "streaming"
)

// CaptureState models the microphone lifecycle. At most one non-idle state exists at a time.
type CaptureState string

const (
	CaptureStateIdle               CaptureState = "idle"
	CaptureStateUtteranceRecording CaptureState = "utterance_recording"
	CaptureStateStreamingRecording CaptureState = "streaming_recording"
)

// RecordingState returns the non-idle state that corresponds to mode.
func (m CaptureMode) RecordingState() CaptureState {
	if m == CaptureModeStreaming {
		return CaptureStateStreamingRecording
	}
	return CaptureStateUtteranceRecording
}

// Valid reports whether m is a known capture mode.
func (m CaptureMode) Valid() bool {
	return m == CaptureModeUtterance || m == CaptureModeStreaming
}

// CaptureReason provides a structured reason for capture state transitions.
type CaptureReason string

const (
	CaptureReasonMicCold             CaptureReason = "mic_cold"
	CaptureReasonRecordingStarted    CaptureReason = "recording_started"
	CaptureReasonSilenceDetected     CaptureReason = "silence_detected"
	CaptureReasonTranscribing        CaptureReason = "transcribing"
	CaptureReasonTranscriptDelivered CaptureReason = "transcript_delivered"
	CaptureReasonNoTranscript        CaptureReason = "no_transcript"
	CaptureReasonTranscriptionFailed CaptureReason = "transcription_failed"
	CaptureReasonRecordingDiscarded  CaptureReason = "recording_discarded"
)

// TranscriptKind identifies whether a stream event is partial or final text.
type TranscriptKind string

const (
	TranscriptKindPartial TranscriptKind = "partial"
	TranscriptKindFinal   TranscriptKind = "final"
)

// TranscriptEvent represents incremental transcription output from a recognizer.
type TranscriptEvent struct {
	Kind          TranscriptKind `json:"kind"`
	Text          string         `json:"text"`
	IsSpeechFinal bool           `json:"isSpeechFinal"`
}

// Recognition is the outcome of a finished capture. The transcriber either
// returns plain text or an already answered question.
type Recognition struct {
	Text     string `json:"text,omitempty"`
	Question string `json:"question,omitempty"`
	Answer   string `json:"answer,omitempty"`
}

// Empty reports whether nothing usable was recognized.
func (r Recognition) Empty() bool {
	return r.Text == "" && r.Question == "" && r.Answer == ""
}

// CaptureStatus summarizes the current capture runtime status.
type CaptureStatus struct {
	State  CaptureState `json:"state"`
	Mode   CaptureMode  `json:"mode,omitempty"`
	Active bool         `json:"active"`
}

// AudioClip is one recorded utterance of s16le PCM.
type AudioClip struct {
	PCM        []byte
	SampleRate int
	Channels   int
}
