package main

import (
	"context"
	"errors"

	"github.com/wailsapp/wails/v2/pkg/runtime"
	"go.uber.org/zap"

	"supportchat/internal/bootstrap"
	"supportchat/internal/config"
	"supportchat/internal/domain"
	"supportchat/internal/files"
	"supportchat/internal/usecase"
)

const (
	eventEntryAppended = "supportchat:entry-appended"
	eventEntryReplaced = "supportchat:entry-replaced"
	eventNotice        = "supportchat:notice"
	eventCapture       = "supportchat:capture"
	eventPartial       = "supportchat:partial"
	eventFinal         = "supportchat:final"
	eventSpeechEnded   = "supportchat:speech-ended"
)

// App is the Wails application root. It renders the conversation through
// frontend events and forwards bound calls to the controller.
type App struct {
	ctx context.Context

	services   bootstrap.Services
	controller *usecase.ConversationController
	logger     *zap.Logger
	bootErr    error
}

func NewApp() *App {
	return &App{logger: zap.NewNop()}
}

func (a *App) startup(ctx context.Context) {
	a.ctx = ctx

	services, err := bootstrap.Build(a, config.Options{EnvFile: ".env"})
	if err != nil {
		a.bootErr = err
		a.Notice(domain.ErrorCodeStartup, err.Error())
		_, _ = runtime.MessageDialog(ctx, runtime.MessageDialogOptions{
			Type:    runtime.ErrorDialog,
			Title:   errorMessage(domain.ErrorCodeStartup, ""),
			Message: err.Error(),
		})
		return
	}

	a.services = services
	a.controller = services.Controller
	a.logger = services.Logger
	a.CaptureStateChanged(domain.CaptureStateIdle, domain.CaptureReasonMicCold)

	go func() {
		if err := a.controller.Mount(ctx); err != nil {
			a.logger.Warn("mount finished with errors", zap.Error(err))
		}
	}()
}

func (a *App) shutdown(context.Context) {
	if err := a.services.Shutdown(); err != nil {
		a.logger.Warn("shutdown failed", zap.Error(err))
	}
}

// SubmitText sends typed input.
func (a *App) SubmitText(text string) error {
	if err := a.requireReady(); err != nil {
		return err
	}
	a.controller.SubmitText(a.ctx, text)
	return nil
}

// SelectCategory starts the inquiry wizard for category.
func (a *App) SelectCategory(category string) error {
	if err := a.requireReady(); err != nil {
		return err
	}
	a.controller.SelectCategory(domain.InquiryCategory(category))
	return nil
}

// ChoosePeriod answers the sales period prompt.
func (a *App) ChoosePeriod(period string) error {
	if err := a.requireReady(); err != nil {
		return err
	}
	a.controller.ChoosePeriod(domain.SalesPeriod(period))
	return nil
}

// OpenCategory shows the FAQs of a backend category.
func (a *App) OpenCategory(categoryID int) error {
	if err := a.requireReady(); err != nil {
		return err
	}
	a.controller.OpenCategory(a.ctx, categoryID)
	return nil
}

// SelectFAQ shows the answer of the numbered FAQ of the open submenu.
func (a *App) SelectFAQ(index int) error {
	if err := a.requireReady(); err != nil {
		return err
	}
	a.controller.SelectFAQ(index)
	return nil
}

// PickAttachments opens a file dialog and attaches the chosen files.
func (a *App) PickAttachments() ([]domain.Attachment, error) {
	if err := a.requireReady(); err != nil {
		return nil, err
	}
	paths, err := runtime.OpenMultipleFilesDialog(a.ctx, runtime.OpenDialogOptions{
		Title: "첨부할 파일 선택",
		Filters: []runtime.FileFilter{
			{DisplayName: "이미지 및 문서", Pattern: "*.png;*.jpg;*.jpeg;*.gif;*.pdf;*.txt;*.xlsx;*.csv"},
			{DisplayName: "모든 파일", Pattern: "*.*"},
		},
	})
	if err != nil {
		return nil, err
	}
	return a.attachPaths(paths), nil
}

func (a *App) attachPaths(paths []string) []domain.Attachment {
	for _, path := range paths {
		att, err := files.Describe(path)
		if err != nil {
			a.logger.Warn("attachment rejected", zap.String("path", path), zap.Error(err))
			a.Notice(domain.ErrorCodeAttachment, err.Error())
			continue
		}
		a.controller.AddAttachment(att)
	}
	return a.controller.Attachments()
}

// RemoveAttachment drops the attachment at index.
func (a *App) RemoveAttachment(index int) ([]domain.Attachment, error) {
	if err := a.requireReady(); err != nil {
		return nil, err
	}
	a.controller.RemoveAttachment(index)
	return a.controller.Attachments(), nil
}

// ResetToHome abandons the running inquiry and shows the home menu.
func (a *App) ResetToHome() error {
	if err := a.requireReady(); err != nil {
		return err
	}
	a.controller.ResetToHome()
	return nil
}

// StartCapture starts voice input in "utterance" or "streaming" mode.
func (a *App) StartCapture(mode string) (domain.CaptureStatus, error) {
	if err := a.requireReady(); err != nil {
		return domain.CaptureStatus{}, err
	}
	if err := a.controller.StartCapture(a.ctx, domain.CaptureMode(mode), &eventListener{app: a}); err != nil {
		return a.controller.CaptureStatus(), err
	}
	return a.controller.CaptureStatus(), nil
}

// StopCapture ends voice input and submits what was recognized.
func (a *App) StopCapture() (domain.CaptureStatus, error) {
	if err := a.requireReady(); err != nil {
		return domain.CaptureStatus{}, err
	}
	err := a.controller.StopCapture(a.ctx)
	return a.controller.CaptureStatus(), err
}

// Rate sends the satisfaction rating of a feedback entry.
func (a *App) Rate(entryKey string, rating int) error {
	if err := a.requireReady(); err != nil {
		return err
	}
	a.controller.Rate(entryKey, rating)
	return nil
}

// GetSnapshot returns the whole conversation, used when the UI reloads.
func (a *App) GetSnapshot() []domain.Entry {
	if a.controller == nil {
		return nil
	}
	return a.controller.Snapshot()
}

// GetInquiry returns the running wizard session.
func (a *App) GetInquiry() domain.InquirySession {
	if a.controller == nil {
		return domain.InquirySession{}
	}
	return a.controller.Inquiry()
}

// GetStatus returns the current capture status.
func (a *App) GetStatus() domain.CaptureStatus {
	if a.controller == nil {
		return domain.CaptureStatus{State: domain.CaptureStateIdle}
	}
	return a.controller.CaptureStatus()
}

// GetRuntimeInfo returns non-sensitive config for the UI.
func (a *App) GetRuntimeInfo() map[string]string {
	if a.bootErr != nil {
		return map[string]string{"error": a.bootErr.Error()}
	}

	cfg := a.services.Config
	return map[string]string{
		"backend":          cfg.Backend.BaseURL,
		"streamingModel":   cfg.Deepgram.Model,
		"language":         cfg.Speech.Language,
		"rulesFile":        cfg.Rules.Path,
		"audioInput":       cfg.Audio.InputDevice,
		"audioInputFormat": cfg.Audio.InputFormat,
	}
}

func (a *App) requireReady() error {
	if a.bootErr != nil {
		return a.bootErr
	}
	if a.controller == nil {
		return errors.New("application is not initialized")
	}
	return nil
}

// EntryAppended emits a new conversation entry to the frontend.
func (a *App) EntryAppended(index int, entry domain.Entry) {
	a.emit(eventEntryAppended, map[string]any{"index": index, "entry": entry})
}

// EntryReplaced emits an entry that changed in place.
func (a *App) EntryReplaced(index int, entry domain.Entry) {
	a.emit(eventEntryReplaced, map[string]any{"index": index, "entry": entry})
}

// Notice emits a non-fatal problem to the UI.
func (a *App) Notice(code domain.ErrorCode, detail string) {
	a.emit(eventNotice, map[string]string{
		"code":    string(code),
		"message": errorMessage(code, detail),
		"detail":  detail,
	})
}

// CaptureStateChanged emits microphone lifecycle updates.
func (a *App) CaptureStateChanged(state domain.CaptureState, reason domain.CaptureReason) {
	a.emit(eventCapture, map[string]string{
		"state":   string(state),
		"reason":  string(reason),
		"message": captureReasonMessage(reason),
	})
}

func (a *App) emit(name string, payload any) {
	if a.ctx == nil {
		return
	}
	runtime.EventsEmit(a.ctx, name, payload)
}

// eventListener forwards live streaming results to the frontend.
type eventListener struct {
	app *App
}

func (l *eventListener) Partial(text string) {
	l.app.emit(eventPartial, map[string]string{"text": text})
}

func (l *eventListener) Final(text string) {
	l.app.emit(eventFinal, map[string]string{"text": text})
}

func (l *eventListener) SpeechEnded() {
	l.app.emit(eventSpeechEnded, nil)
}

func captureReasonMessage(reason domain.CaptureReason) string {
	switch reason {
	case domain.CaptureReasonMicCold:
		return "마이크 대기 중"
	case domain.CaptureReasonRecordingStarted:
		return "녹음을 시작했습니다"
	case domain.CaptureReasonSilenceDetected:
		return "말씀이 끝나 녹음을 마쳤습니다"
	case domain.CaptureReasonTranscribing:
		return "음성을 변환하는 중입니다..."
	case domain.CaptureReasonTranscriptDelivered:
		return "음성이 입력되었습니다"
	case domain.CaptureReasonNoTranscript:
		return "인식된 음성이 없습니다"
	case domain.CaptureReasonTranscriptionFailed:
		return "음성 변환에 실패했습니다"
	case domain.CaptureReasonRecordingDiscarded:
		return "녹음이 취소되었습니다"
	default:
		return ""
	}
}

func errorMessage(code domain.ErrorCode, detail string) string {
	switch code {
	case domain.ErrorCodeStartup:
		return "시작하지 못했습니다"
	case domain.ErrorCodeCategories:
		return "카테고리 목록을 불러오는 중 오류가 발생했습니다."
	case domain.ErrorCodeFAQs:
		return "FAQ 목록을 불러오는 중 오류가 발생했습니다."
	case domain.ErrorCodeAnswer:
		return "답변을 받지 못했습니다"
	case domain.ErrorCodeSession:
		return "상담 세션을 만들지 못했습니다"
	case domain.ErrorCodeInquirySubmit:
		return "문의 접수에 실패했습니다. 다시 시도해 주세요."
	case domain.ErrorCodeFeedback:
		return "평가를 전송하지 못했습니다"
	case domain.ErrorCodeAttachment:
		return "파일을 첨부하지 못했습니다"
	case domain.ErrorCodeAudioStart, domain.ErrorCodeAudioStop, domain.ErrorCodeAudioStream:
		return "마이크 오류"
	case domain.ErrorCodeTranscription:
		return "음성 인식 오류"
	case domain.ErrorCodeRules:
		return "음성 보정 규칙 오류"
	default:
		if detail == "" {
			return "알 수 없는 오류"
		}
		return detail
	}
}
