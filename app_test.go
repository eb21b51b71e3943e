package main

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"supportchat/internal/domain"
)

func TestCaptureReasonMessage(t *testing.T) {
	t.Parallel()

	cases := map[domain.CaptureReason]string{
		domain.CaptureReasonMicCold:             "마이크 대기 중",
		domain.CaptureReasonRecordingStarted:    "녹음을 시작했습니다",
		domain.CaptureReasonSilenceDetected:     "말씀이 끝나 녹음을 마쳤습니다",
		domain.CaptureReasonTranscribing:        "음성을 변환하는 중입니다...",
		domain.CaptureReasonTranscriptDelivered: "음성이 입력되었습니다",
		domain.CaptureReasonNoTranscript:        "인식된 음성이 없습니다",
		domain.CaptureReasonTranscriptionFailed: "음성 변환에 실패했습니다",
		domain.CaptureReasonRecordingDiscarded:  "녹음이 취소되었습니다",
	}

	for reason, want := range cases {
		reason, want := reason, want
		t.Run(string(reason), func(t *testing.T) {
			t.Parallel()
			require.Equal(t, want, captureReasonMessage(reason))
		})
	}

	require.Empty(t, captureReasonMessage("unknown"))
}

func TestErrorMessage(t *testing.T) {
	t.Parallel()

	cases := map[domain.ErrorCode]string{
		domain.ErrorCodeStartup:       "시작하지 못했습니다",
		domain.ErrorCodeCategories:    "카테고리 목록을 불러오는 중 오류가 발생했습니다.",
		domain.ErrorCodeFAQs:          "FAQ 목록을 불러오는 중 오류가 발생했습니다.",
		domain.ErrorCodeInquirySubmit: "문의 접수에 실패했습니다. 다시 시도해 주세요.",
		domain.ErrorCodeAudioStop:     "마이크 오류",
		domain.ErrorCodeAudioStream:   "마이크 오류",
		domain.ErrorCodeRules:         "음성 보정 규칙 오류",
		domain.ErrorCodeTranscription: "음성 인식 오류",
		domain.ErrorCodeAttachment:    "파일을 첨부하지 못했습니다",
	}
	for code, want := range cases {
		code, want := code, want
		t.Run(string(code), func(t *testing.T) {
			t.Parallel()
			require.Equal(t, want, errorMessage(code, "ignored"))
		})
	}

	require.Equal(t, "첨부 파일은 최대 3개까지", errorMessage(domain.ErrorCodeAttachmentLimit, "첨부 파일은 최대 3개까지"))
	require.Equal(t, "알 수 없는 오류", errorMessage("unknown", ""))
}

func TestRequireReady(t *testing.T) {
	t.Parallel()

	app := NewApp()
	require.Error(t, app.requireReady())

	bootErr := errors.New("boot")
	app.bootErr = bootErr
	require.ErrorIs(t, app.requireReady(), bootErr)
	require.ErrorIs(t, app.SubmitText("안녕하세요"), bootErr)
	_, err := app.StartCapture(string(domain.CaptureModeUtterance))
	require.ErrorIs(t, err, bootErr)
	require.Equal(t, map[string]string{"error": "boot"}, app.GetRuntimeInfo())
}

func TestAccessorsWhenNotInitialized(t *testing.T) {
	t.Parallel()

	app := NewApp()
	require.Equal(t, domain.CaptureStatus{State: domain.CaptureStateIdle}, app.GetStatus())
	require.Nil(t, app.GetSnapshot())
	require.Equal(t, domain.InquirySession{}, app.GetInquiry())

	// Events are dropped until the Wails context exists.
	app.EntryAppended(0, domain.Entry{Key: "bot-1", Kind: domain.EntryBotMessage})
	app.Notice(domain.ErrorCodeSession, "down")
	(&eventListener{app: app}).SpeechEnded()
}
