package usecase

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"supportchat/internal/domain"
	"supportchat/internal/ports"
)

type controllerFixture struct {
	c       *ConversationController
	backend *fakeBackend
	view    *fakeView
	timers  *fakeTimers
	mic     *fakeAudioCapture
	stt     *fakeTranscriber
}

func newControllerFixture(t *testing.T, backend *fakeBackend) *controllerFixture {
	t.Helper()

	if backend == nil {
		backend = &fakeBackend{}
	}
	if backend.sessionID == "" {
		backend.sessionID = "sess-1"
	}
	f := &controllerFixture{
		backend: backend,
		view:    &fakeView{},
		timers:  &fakeTimers{},
		mic:     &fakeAudioCapture{},
		stt:     &fakeTranscriber{},
	}
	f.c = NewConversationController(backend, f.view, CaptureDeps{
		Audio:       f.mic,
		Provider:    &fakeProvider{},
		Transcriber: f.stt,
		Rules:       &fakeRules{},
	}, zap.NewNop(), ControllerConfig{
		TopK:    5,
		Capture: CaptureConfig{Audio: ports.AudioConfig{SampleRate: 16000, Channels: 1}, Language: "ko-KR"},
	})
	f.c.feedback.after = f.timers.after
	t.Cleanup(func() { _ = f.c.Close() })
	return f
}

func (f *controllerFixture) mount(t *testing.T) {
	t.Helper()
	require.NoError(t, f.c.Mount(context.Background()))
}

func (f *controllerFixture) submit(text string) {
	f.c.SubmitText(context.Background(), text)
	f.c.Wait()
}

func (f *controllerFixture) last() domain.Entry {
	entries := f.c.Snapshot()
	return entries[len(entries)-1]
}

func stepsVisited(entries []domain.Entry) []domain.StepID {
	var out []domain.StepID
	for _, entry := range entries {
		if entry.Kind == domain.EntryWizardStep && entry.Step != nil {
			out = append(out, entry.Step.Step)
		}
	}
	return out
}

func TestControllerMountRendersHome(t *testing.T) {
	t.Parallel()

	f := newControllerFixture(t, &fakeBackend{categories: []domain.Category{{ID: 7, Name: "결제"}}})
	f.mount(t)

	entries := f.c.Snapshot()
	require.Len(t, entries, 1)
	require.Equal(t, domain.EntryMenuBlock, entries[0].Kind)
	require.Equal(t, []domain.Category{{ID: 7, Name: "결제"}}, entries[0].Menu.Categories)
	require.Empty(t, f.view.snapshotNotices())
	require.Equal(t, 1, f.timers.count())

	require.NoError(t, f.c.Mount(context.Background()))
	require.Len(t, f.c.Snapshot(), 1)
}

func TestControllerMountFailuresStillRenderHome(t *testing.T) {
	t.Parallel()

	f := newControllerFixture(t, &fakeBackend{
		sessionErr:    errors.New("session down"),
		categoriesErr: errors.New("catalog down"),
	})

	err := f.c.Mount(context.Background())
	require.Error(t, err)
	require.True(t, f.view.hasNotice(domain.ErrorCodeSession))
	require.True(t, f.view.hasNotice(domain.ErrorCodeCategories))
	require.Equal(t, domain.EntryMenuBlock, f.last().Kind)
	require.Empty(t, f.last().Menu.Categories)
	require.Len(t, f.last().Menu.Inquiries, 4)
}

func TestControllerRejectsBlankText(t *testing.T) {
	t.Parallel()

	f := newControllerFixture(t, nil)
	f.mount(t)
	f.c.SelectCategory(domain.CategoryPaperRequest)
	before := f.c.Snapshot()
	session := f.c.Inquiry()

	f.submit("   \t ")
	require.Len(t, f.c.Snapshot(), len(before))
	require.Equal(t, session, f.c.Inquiry())
}

func TestControllerPaperRequestScenario(t *testing.T) {
	t.Parallel()

	f := newControllerFixture(t, nil)
	f.mount(t)

	f.c.SelectCategory(domain.CategoryPaperRequest)
	f.submit("1234567890")
	require.Equal(t, domain.StepCompanyName, f.last().Step.Step)
	f.submit("Acme")
	require.Equal(t, domain.StepPhone, f.last().Step.Step)
	f.submit("010-0000-0000")
	require.Equal(t, domain.StepDetail, f.last().Step.Step)
	f.submit("need paper")

	entries := f.c.Snapshot()
	summary := entries[len(entries)-2]
	require.Equal(t, domain.EntryWizardStep, summary.Kind)
	require.Equal(t, domain.StepSubmitted, summary.Step.Step)
	for _, want := range []string{"Acme", "123-45-67890", "010-0000-0000", "need paper"} {
		require.Contains(t, summary.Text, want)
	}
	require.Equal(t, &domain.InquirySummary{
		Category:       domain.CategoryPaperRequest,
		CompanyName:    "Acme",
		BusinessNumber: "1234567890",
		Phone:          "010-0000-0000",
		Detail:         "need paper",
	}, summary.Step.Summary)
	require.Equal(t, domain.EntryFeedbackBlock, entries[len(entries)-1].Kind)

	require.Equal(t, domain.InquirySession{}, f.c.Inquiry())
	inquiries := f.backend.snapshotInquiries()
	require.Len(t, inquiries, 1)
	require.Equal(t, domain.InquiryRequest{
		BusinessName:   "Acme",
		BusinessNumber: "1234567890",
		Phone:          "010-0000-0000",
		Content:        "need paper",
		InquiryType:    domain.CategoryPaperRequest,
	}, inquiries[0])
	require.Equal(t, []string{"1234567890"}, f.backend.searches)
}

func TestControllerSalesAutofillScenario(t *testing.T) {
	t.Parallel()

	f := newControllerFixture(t, &fakeBackend{customers: []domain.Customer{
		{BusinessName: "Acme", BusinessNumber: "123-45-67890", Phone: "010-1111-1111"},
	}})
	f.mount(t)

	f.c.SelectCategory(domain.CategorySalesReport)
	f.c.ChoosePeriod(domain.PeriodFullYear)
	require.Equal(t, domain.StepBusinessNumber, f.c.Inquiry().Step)
	f.submit("1234567890")

	session := f.c.Inquiry()
	require.Equal(t, domain.StepDetail, session.Step)
	require.Equal(t, "Acme", session.CompanyName)
	require.Equal(t, "010-1111-1111", session.Phone)
	require.Equal(t, "전체", *session.SalesPeriod)

	entries := f.c.Snapshot()
	visited := stepsVisited(entries)
	require.NotContains(t, visited, domain.StepCompanyName)
	require.NotContains(t, visited, domain.StepPhone)
	require.Equal(t, domain.StepDetail, visited[len(visited)-1])

	confirm := entries[len(entries)-2]
	require.Equal(t, domain.EntryBotMessage, confirm.Kind)
	require.Contains(t, confirm.Text, "Acme")
	require.Contains(t, confirm.Text, "010-1111-1111")

	f.submit("상반기 매출 부탁드립니다")
	inquiries := f.backend.snapshotInquiries()
	require.Len(t, inquiries, 1)
	require.Equal(t, "[전체] 상반기 매출 부탁드립니다", inquiries[0].Content)
}

func TestControllerResetToHomeIsIdempotent(t *testing.T) {
	t.Parallel()

	f := newControllerFixture(t, &fakeBackend{categories: []domain.Category{{ID: 1, Name: "결제"}}})
	f.mount(t)
	f.c.SelectCategory(domain.CategorySalesReport)
	f.c.ChoosePeriod(domain.PeriodFirstHalf)

	f.c.ResetToHome()
	firstSession := f.c.Inquiry()
	first := f.last()
	f.c.ResetToHome()
	second := f.last()

	require.Equal(t, domain.InquirySession{}, firstSession)
	require.Equal(t, domain.InquirySession{}, f.c.Inquiry())
	require.Nil(t, f.c.Attachments())
	if diff := cmp.Diff(first, second, cmpopts.IgnoreFields(domain.Entry{}, "Key")); diff != "" {
		t.Fatalf("reset rendered a different menu (-first +second):\n%s", diff)
	}
	require.NotEqual(t, first.Key, second.Key)
}

func TestControllerDiscardsLookupAfterReset(t *testing.T) {
	t.Parallel()

	gate := make(chan struct{})
	f := newControllerFixture(t, &fakeBackend{
		searchGate: gate,
		customers:  []domain.Customer{{BusinessName: "Acme", BusinessNumber: "1234567890", Phone: "010"}},
	})
	f.mount(t)

	f.c.SelectCategory(domain.CategoryPaperRequest)
	f.c.SubmitText(context.Background(), "1234567890")
	f.c.ResetToHome()
	count := len(f.c.Snapshot())

	close(gate)
	f.c.Wait()

	require.Equal(t, domain.InquirySession{}, f.c.Inquiry())
	require.Len(t, f.c.Snapshot(), count)
	require.Equal(t, domain.EntryMenuBlock, f.last().Kind)
}

func TestControllerTypedCompanyBeatsLookup(t *testing.T) {
	t.Parallel()

	gate := make(chan struct{})
	f := newControllerFixture(t, &fakeBackend{
		searchGate: gate,
		customers:  []domain.Customer{{BusinessName: "Acme", BusinessNumber: "1234567890", Phone: "010"}},
	})
	f.mount(t)

	f.c.SelectCategory(domain.CategoryOther)
	f.c.SubmitText(context.Background(), "1234567890")
	f.c.SubmitText(context.Background(), "Manual Co")
	close(gate)
	f.c.Wait()

	session := f.c.Inquiry()
	require.Equal(t, domain.StepPhone, session.Step)
	require.Equal(t, "Manual Co", session.CompanyName)
	require.Empty(t, session.Phone)
	require.Equal(t, domain.StepPhone, f.last().Step.Step)
}

func reachDetail(t *testing.T, f *controllerFixture) {
	t.Helper()
	f.c.SelectCategory(domain.CategoryKioskMenuUpdate)
	f.submit("9999")
	f.submit("Cafe")
	f.submit("010-2222-3333")
	require.Equal(t, domain.StepDetail, f.c.Inquiry().Step)
}

func TestControllerAttachments(t *testing.T) {
	t.Parallel()

	f := newControllerFixture(t, nil)
	f.mount(t)

	f.c.AddAttachment(file("early.png"))
	require.True(t, f.view.hasNotice(domain.ErrorCodeNoInquiry))

	reachDetail(t, f)
	editorKey := f.c.Inquiry().EditorKey
	length := len(f.c.Snapshot())

	for _, name := range []string{"a.png", "b.png", "c.png", "d.png"} {
		f.c.AddAttachment(file(name))
	}
	require.True(t, f.view.hasNotice(domain.ErrorCodeAttachmentLimit))
	require.Len(t, f.c.Attachments(), 3)
	require.Len(t, f.c.Snapshot(), length)

	f.c.RemoveAttachment(0)
	f.c.RemoveAttachment(7)
	require.Len(t, f.c.Attachments(), 2)

	entries := f.c.Snapshot()
	pos := -1
	editors := 0
	for i, entry := range entries {
		if entry.Key == editorKey {
			pos = i
			editors++
		}
	}
	require.Equal(t, 1, editors)
	require.Len(t, entries[pos].Step.Attachments, 2)
	require.Equal(t, "b.png", entries[pos].Step.Attachments[0].FileName)

	replaced := f.view.snapshotReplaced()
	require.Len(t, replaced, 4)
	require.Equal(t, pos, replaced[len(replaced)-1].index)

	f.submit("메뉴판 사진 첨부합니다")
	inquiries := f.backend.snapshotInquiries()
	require.Len(t, inquiries, 1)
	require.Len(t, inquiries[0].Files, 2)
	require.Nil(t, f.c.Attachments())
	require.Equal(t, 2, f.c.Snapshot()[len(f.c.Snapshot())-2].Step.Summary.Attachments)
}

func TestControllerAttachmentChangesRearmFeedback(t *testing.T) {
	t.Parallel()

	f := newControllerFixture(t, nil)
	f.mount(t)
	reachDetail(t, f)

	armed := f.timers.count()
	f.c.AddAttachment(file("menu.png"))
	require.Equal(t, armed+1, f.timers.count())

	f.c.RemoveAttachment(0)
	require.Equal(t, armed+2, f.timers.count())

	f.c.RemoveAttachment(3)
	require.Equal(t, armed+2, f.timers.count())
}

func TestControllerSubmissionFailureAllowsRetry(t *testing.T) {
	t.Parallel()

	backend := &fakeBackend{submitErr: errors.New("502 bad gateway")}
	f := newControllerFixture(t, backend)
	f.mount(t)
	reachDetail(t, f)

	f.submit("첫 시도")
	require.True(t, f.view.hasNotice(domain.ErrorCodeInquirySubmit))
	require.Equal(t, domain.StepDetail, f.c.Inquiry().Step)
	require.Equal(t, domain.PendingNone, f.c.Inquiry().Pending)

	backend.mu.Lock()
	backend.submitErr = nil
	backend.mu.Unlock()

	f.submit("두 번째 시도")
	require.Equal(t, domain.InquirySession{}, f.c.Inquiry())
	require.Equal(t, domain.EntryFeedbackBlock, f.last().Kind)
	require.Len(t, backend.snapshotInquiries(), 2)
}

func TestControllerRejectsDetailWhileSubmitting(t *testing.T) {
	t.Parallel()

	gate := make(chan struct{})
	f := newControllerFixture(t, nil)
	f.mount(t)
	reachDetail(t, f)

	f.backend.mu.Lock()
	f.backend.submitGate = gate
	f.backend.mu.Unlock()

	f.c.SubmitText(context.Background(), "first")
	f.c.SubmitText(context.Background(), "second")
	require.True(t, f.view.hasNotice(domain.ErrorCodeInquiryPending))

	close(gate)
	f.c.Wait()
	inquiries := f.backend.snapshotInquiries()
	require.Len(t, inquiries, 1)
	require.Equal(t, "first", inquiries[0].Content)
}

func TestControllerFreeformQuestion(t *testing.T) {
	t.Parallel()

	knowledge := 4
	f := newControllerFixture(t, &fakeBackend{answer: " 재부팅 해 보세요. "})
	f.c.cfg.KnowledgeID = &knowledge
	f.mount(t)

	f.submit("카드 결제가 안 돼요")
	require.Equal(t, domain.EntryBotMessage, f.last().Kind)
	require.Equal(t, "재부팅 해 보세요.", f.last().Text)

	require.Equal(t, []domain.Question{{Text: "카드 결제가 안 돼요", TopK: 5, KnowledgeID: &knowledge}}, f.backend.questions)
	require.Equal(t, []recordedMessage{
		{sessionID: "sess-1", role: roleUser, content: "카드 결제가 안 돼요"},
		{sessionID: "sess-1", role: roleAssistant, content: "재부팅 해 보세요."},
	}, f.backend.messages)
}

func TestControllerFreeformFallbackAndFailure(t *testing.T) {
	t.Parallel()

	backend := &fakeBackend{}
	f := newControllerFixture(t, backend)
	f.mount(t)

	f.submit("아무 질문")
	require.Equal(t, answerFallback, f.last().Text)

	backend.mu.Lock()
	backend.askErr = errors.New("llm down")
	backend.mu.Unlock()
	count := len(f.c.Snapshot())
	f.submit("또 질문")
	require.True(t, f.view.hasNotice(domain.ErrorCodeAnswer))
	require.Len(t, f.c.Snapshot(), count+1)
	require.Equal(t, domain.EntryUserMessage, f.last().Kind)
}

func TestControllerCreatesSessionLazily(t *testing.T) {
	t.Parallel()

	backend := &fakeBackend{sessionErr: errors.New("temporarily down")}
	f := newControllerFixture(t, backend)
	_ = f.c.Mount(context.Background())

	backend.mu.Lock()
	backend.sessionErr = nil
	backend.answer = "네"
	backend.mu.Unlock()

	f.submit("질문")
	require.Equal(t, "네", f.last().Text)
	require.Equal(t, 2, backend.sessions)

	f.submit("질문 둘")
	require.Equal(t, 2, backend.sessions)
}

func TestControllerSubMenuNumberSelectsFAQ(t *testing.T) {
	t.Parallel()

	backend := &fakeBackend{
		categories: []domain.Category{{ID: 7, Name: "결제"}},
		faqs: map[int][]domain.FAQ{7: {
			{ID: 1, Question: "카드 오류", Answer: "재시도"},
			{ID: 2, Question: "영수증 재출력", Answer: "메뉴에서 재출력"},
		}},
	}
	f := newControllerFixture(t, backend)
	f.mount(t)

	f.c.OpenCategory(context.Background(), 7)
	f.c.Wait()
	require.Equal(t, domain.EntrySubMenuBlock, f.last().Kind)
	require.Equal(t, "결제", f.last().SubMenu.Category.Name)

	f.submit("2")
	require.Equal(t, "영수증 재출력\n\n메뉴에서 재출력", f.last().Text)
	require.Empty(t, backend.questions)

	f.c.SelectFAQ(0)
	require.True(t, strings.HasPrefix(f.last().Text, "카드 오류"))

	f.c.ResetToHome()
	f.submit("1")
	require.Len(t, backend.questions, 1)
}

func TestControllerOpenCategoryFailure(t *testing.T) {
	t.Parallel()

	f := newControllerFixture(t, &fakeBackend{faqsErr: errors.New("faq down")})
	f.mount(t)
	count := len(f.c.Snapshot())

	f.c.OpenCategory(context.Background(), 3)
	f.c.Wait()
	require.True(t, f.view.hasNotice(domain.ErrorCodeFAQs))
	require.Len(t, f.c.Snapshot(), count)
}

func TestControllerIdleFeedbackAndRating(t *testing.T) {
	t.Parallel()

	f := newControllerFixture(t, nil)
	f.mount(t)
	f.submit("질문")

	require.True(t, f.timers.fire())
	block := f.last()
	require.Equal(t, domain.EntryFeedbackBlock, block.Kind)
	require.Equal(t, 5, block.Feedback.Scale)

	f.c.Rate(block.Key, 0)
	f.c.Rate(block.Key, 6)
	f.c.Rate(f.c.Snapshot()[0].Key, 4)
	f.c.Wait()
	require.Empty(t, f.backend.snapshotRatings())

	f.c.Rate(block.Key, 5)
	f.c.Wait()
	f.c.Rate(block.Key, 1)
	f.c.Wait()
	require.Equal(t, []int{5}, f.backend.snapshotRatings())
	require.Equal(t, feedbackThanks, f.last().Text)

	f.submit("또 질문")
	require.False(t, f.timers.fire())
}

func TestControllerFeedbackFailureAllowsRetry(t *testing.T) {
	t.Parallel()

	backend := &fakeBackend{feedbackErr: errors.New("nope")}
	f := newControllerFixture(t, backend)
	f.mount(t)
	require.True(t, f.timers.fire())
	key := f.last().Key

	f.c.Rate(key, 3)
	f.c.Wait()
	require.True(t, f.view.hasNotice(domain.ErrorCodeFeedback))

	backend.mu.Lock()
	backend.feedbackErr = nil
	backend.mu.Unlock()
	f.c.Rate(key, 3)
	f.c.Wait()
	require.Equal(t, []int{3, 3}, backend.snapshotRatings())
}

func TestControllerCaptureFunnelsIntoConversation(t *testing.T) {
	t.Parallel()

	f := newControllerFixture(t, &fakeBackend{answer: "용지를 보내드리겠습니다."})
	f.mic.sessions = []ports.AudioSession{newHeldAudioSession(toneChunk(1024, 12000))}
	f.stt.result = domain.Recognition{Text: "영수증 용지가 필요해요"}
	f.mount(t)

	require.NoError(t, f.c.StartCapture(context.Background(), domain.CaptureModeUtterance, nil))
	err := f.c.StartCapture(context.Background(), domain.CaptureModeStreaming, &fakeListener{})
	require.ErrorIs(t, err, ErrCaptureActive)
	require.True(t, f.view.hasNotice(domain.ErrorCodeCaptureActive))
	require.Equal(t, domain.CaptureStateUtteranceRecording, f.c.CaptureStatus().State)

	require.NoError(t, f.c.StopCapture(context.Background()))
	f.c.Wait()

	entries := f.c.Snapshot()
	require.Equal(t, "영수증 용지가 필요해요", entries[len(entries)-2].Text)
	require.Equal(t, domain.EntryUserMessage, entries[len(entries)-2].Kind)
	require.Equal(t, "용지를 보내드리겠습니다.", entries[len(entries)-1].Text)

	require.NoError(t, f.c.StopCapture(context.Background()))
	states := f.view.snapshotStates()
	require.Equal(t, domain.CaptureStateIdle, states[len(states)-1].state)
}

func TestControllerRecognitionVariants(t *testing.T) {
	t.Parallel()

	f := newControllerFixture(t, nil)
	f.mount(t)

	f.c.HandleRecognition(context.Background(), domain.Recognition{Question: "환불 되나요", Answer: "네, 가능합니다."})
	entries := f.c.Snapshot()
	require.Equal(t, domain.EntryUserMessage, entries[len(entries)-2].Kind)
	require.Equal(t, "환불 되나요", entries[len(entries)-2].Text)
	require.Equal(t, "네, 가능합니다.", entries[len(entries)-1].Text)

	f.c.HandleRecognition(context.Background(), domain.Recognition{})
	require.Equal(t, noSpeechText, f.last().Text)
	require.Empty(t, f.backend.questions)
}

func TestControllerRecognizedTextDrivesWizard(t *testing.T) {
	t.Parallel()

	f := newControllerFixture(t, nil)
	f.mount(t)
	f.c.SelectCategory(domain.CategorySalesReport)

	f.c.HandleRecognition(context.Background(), domain.Recognition{Text: "하반기"})
	session := f.c.Inquiry()
	require.Equal(t, domain.StepBusinessNumber, session.Step)
	require.Equal(t, "하반기", *session.SalesPeriod)
}

func TestControllerSpokenQuestionDuringWizardSkipsCannedAnswer(t *testing.T) {
	t.Parallel()

	f := newControllerFixture(t, nil)
	f.mount(t)
	f.c.SelectCategory(domain.CategorySalesReport)

	f.c.HandleRecognition(context.Background(), domain.Recognition{Question: "하반기", Answer: "매출 안내입니다."})
	f.c.Wait()

	session := f.c.Inquiry()
	require.Equal(t, domain.StepBusinessNumber, session.Step)
	require.NotNil(t, session.SalesPeriod)
	require.Equal(t, "하반기", *session.SalesPeriod)
	for _, entry := range f.c.Snapshot() {
		require.NotEqual(t, "매출 안내입니다.", entry.Text)
	}
	require.Empty(t, f.backend.questions)
}

func TestControllerMountKeepsSessionWhenCatalogFails(t *testing.T) {
	t.Parallel()

	backend := &fakeBackend{categoriesErr: errors.New("catalog down"), answer: "네"}
	f := newControllerFixture(t, backend)

	err := f.c.Mount(context.Background())
	require.ErrorContains(t, err, "catalog down")
	require.False(t, f.view.hasNotice(domain.ErrorCodeSession))
	require.True(t, f.view.hasNotice(domain.ErrorCodeCategories))

	f.submit("질문")
	require.Equal(t, "네", f.last().Text)
	require.Equal(t, 1, backend.sessions)
}

func TestControllerCloseStopsEverything(t *testing.T) {
	t.Parallel()

	gate := make(chan struct{})
	defer close(gate)
	f := newControllerFixture(t, &fakeBackend{searchGate: gate})
	f.mic.sessions = []ports.AudioSession{newHeldAudioSession()}
	f.mount(t)

	f.c.SelectCategory(domain.CategoryPaperRequest)
	f.c.SubmitText(context.Background(), "1234567890")
	require.NoError(t, f.c.StartCapture(context.Background(), domain.CaptureModeUtterance, nil))

	done := make(chan struct{})
	go func() {
		_ = f.c.Close()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("close did not return")
	}

	count := len(f.c.Snapshot())
	f.c.SubmitText(context.Background(), "after close")
	f.c.ResetToHome()
	require.Len(t, f.c.Snapshot(), count)
	require.Equal(t, domain.CaptureStateIdle, f.c.CaptureStatus().State)
	require.False(t, f.timers.fire())
}
