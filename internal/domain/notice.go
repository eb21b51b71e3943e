package domain

// ErrorCode identifies a user-visible, non-fatal notice.
type ErrorCode string

const (
	ErrorCodeStartup         ErrorCode = "startup"
	ErrorCodeCategories      ErrorCode = "categories"
	ErrorCodeFAQs            ErrorCode = "faqs"
	ErrorCodeAnswer          ErrorCode = "answer"
	ErrorCodeSession         ErrorCode = "session"
	ErrorCodeInquirySubmit   ErrorCode = "inquiry_submit"
	ErrorCodeInquiryPending  ErrorCode = "inquiry_pending"
	ErrorCodeFeedback        ErrorCode = "feedback"
	ErrorCodeAttachment      ErrorCode = "attachment"
	ErrorCodeAttachmentLimit ErrorCode = "attachment_limit"
	ErrorCodeNoInquiry       ErrorCode = "no_inquiry"
	ErrorCodeCaptureActive   ErrorCode = "capture_active"
	ErrorCodeAudioStart      ErrorCode = "audio_start"
	ErrorCodeAudioStop       ErrorCode = "audio_stop"
	ErrorCodeAudioStream     ErrorCode = "audio_stream"
	ErrorCodeTranscription   ErrorCode = "transcription"
	ErrorCodeRules           ErrorCode = "rules"
)
