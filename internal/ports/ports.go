package ports

import (
	"context"
	"io"

	"supportchat/internal/domain"
)

// AudioConfig describes how the microphone should be captured.
type AudioConfig struct {
	SampleRate  int
	Channels    int
	InputFormat string
	InputDevice string
}

// AudioSession is a live capture session producing s16le PCM.
type AudioSession interface {
	io.ReadCloser
	Stop() error
}

// AudioCapture creates microphone capture sessions.
type AudioCapture interface {
	Start(ctx context.Context, cfg AudioConfig) (AudioSession, error)
}

// StreamingConfig describes provider-agnostic streaming settings.
type StreamingConfig struct {
	SampleRate     int
	Channels       int
	Encoding       string
	Language       string
	InterimResults bool
}

// StreamingSession is an active recognizer session.
type StreamingSession interface {
	SendAudio(chunk []byte) error
	CloseSend() error
	Events() <-chan domain.TranscriptEvent
	Wait() error
	Close() error
}

// TranscriptionProvider starts streaming recognition sessions.
type TranscriptionProvider interface {
	StartStreaming(ctx context.Context, cfg StreamingConfig) (StreamingSession, error)
}

// Transcriber turns one recorded utterance into text.
type Transcriber interface {
	Transcribe(ctx context.Context, clip domain.AudioClip, language string) (domain.Recognition, error)
}

// RulesEngine normalizes recognized speech using deterministic rules.
type RulesEngine interface {
	Apply(text string) (string, error)
}

// StreamListener receives live recognition output in streaming mode.
type StreamListener interface {
	Partial(text string)
	Final(text string)
	SpeechEnded()
}

// Catalog serves menu categories and their FAQs.
type Catalog interface {
	Categories(ctx context.Context) ([]domain.Category, error)
	FAQs(ctx context.Context, categoryID int) ([]domain.FAQ, error)
}

// Assistant answers freeform questions within a chat session.
type Assistant interface {
	CreateSession(ctx context.Context) (string, error)
	Ask(ctx context.Context, sessionID string, question domain.Question) (string, error)
	RecordMessage(ctx context.Context, sessionID string, role string, content string) error
}

// InquirySubmitter accepts a completed inquiry.
type InquirySubmitter interface {
	SubmitInquiry(ctx context.Context, req domain.InquiryRequest) error
}

// CustomerDirectory searches customer records for autofill.
type CustomerDirectory interface {
	SearchCustomers(ctx context.Context, query string) ([]domain.Customer, error)
}

// FeedbackRecorder stores satisfaction ratings.
type FeedbackRecorder interface {
	SendFeedback(ctx context.Context, sessionID string, rating int) error
}

// Backend bundles every backend collaborator.
type Backend interface {
	Catalog
	Assistant
	InquirySubmitter
	CustomerDirectory
	FeedbackRecorder
}

// NoticeSink shows non-fatal notices to the user.
type NoticeSink interface {
	Notice(code domain.ErrorCode, detail string)
}

// CaptureSink receives capture lifecycle updates.
type CaptureSink interface {
	NoticeSink
	CaptureStateChanged(state domain.CaptureState, reason domain.CaptureReason)
}

// View renders the conversation. Calls arrive serialized, in log order.
type View interface {
	CaptureSink
	EntryAppended(index int, entry domain.Entry)
	EntryReplaced(index int, entry domain.Entry)
}

// Conversation is the operation surface exposed to application shells.
type Conversation interface {
	SubmitText(ctx context.Context, text string)
	SelectCategory(category domain.InquiryCategory)
	ChoosePeriod(period domain.SalesPeriod)
	OpenCategory(ctx context.Context, categoryID int)
	SelectFAQ(index int)
	AddAttachment(file domain.Attachment)
	RemoveAttachment(index int)
	ResetToHome()
	StartCapture(ctx context.Context, mode domain.CaptureMode, listener StreamListener) error
	StopCapture(ctx context.Context) error
	Rate(entryKey string, rating int)
	Snapshot() []domain.Entry
}
