package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"supportchat/internal/domain"
	"supportchat/internal/ports"
)

var (
	ErrNotReady = errors.New("chat session is not ready")
	ErrClosed   = errors.New("conversation is closed")
)

const (
	answerFallback   = "응답을 가져올 수 없습니다."
	noSpeechText     = "음성을 인식하지 못했습니다. 다시 말씀해 주세요."
	feedbackThanks   = "소중한 의견 감사합니다."
	attachmentLimit  = "첨부 파일은 최대 3개까지 추가할 수 있습니다."
	noInquiryText    = "문의 내용 입력 단계에서만 파일을 첨부할 수 있습니다."
	captureBusyText  = "이미 음성 입력이 진행 중입니다."
	roleUser         = "user"
	roleAssistant    = "assistant"
	minFeedbackScore = 1
)

// ControllerConfig tunes the conversation controller.
type ControllerConfig struct {
	TopK          int
	KnowledgeID   *int
	FeedbackDelay time.Duration
	Capture       CaptureConfig
}

// CaptureDeps are the collaborators of the capture session the controller owns.
type CaptureDeps struct {
	Audio       ports.AudioCapture
	Provider    ports.TranscriptionProvider
	Transcriber ports.Transcriber
	Rules       ports.RulesEngine
}

// ConversationController composes the log, the wizard, the menus, the feedback
// timer and the capture session. mu serializes every callback, so log
// mutations apply in the order the callbacks run. View methods are called
// with mu held and must not call back into the controller synchronously.
type ConversationController struct {
	backend ports.Backend
	view    ports.View
	logger  *zap.Logger
	cfg     ControllerConfig

	ctx      context.Context
	cancel   context.CancelFunc
	inflight sync.WaitGroup

	capture *CaptureSession

	mu          sync.Mutex
	log         *ContentLog
	attachments *AttachmentManager
	wizard      *InquiryWizard
	session     domain.InquirySession
	menu        *MenuNavigator
	feedback    *FeedbackPrompter
	categories  []domain.Category
	subMenu     *subMenuState
	menuGen     uint64
	ratedKeys   map[string]bool
	mounted     bool
	closed      bool

	sessionMu sync.Mutex
	sessionID string
}

var _ ports.Conversation = (*ConversationController)(nil)

func NewConversationController(
	backend ports.Backend,
	view ports.View,
	deps CaptureDeps,
	logger *zap.Logger,
	cfg ControllerConfig,
) *ConversationController {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.TopK <= 0 {
		cfg.TopK = 3
	}

	ctx, cancel := context.WithCancel(context.Background())
	c := &ConversationController{
		backend:   backend,
		view:      view,
		logger:    logger,
		cfg:       cfg,
		ctx:       ctx,
		cancel:    cancel,
		log:       NewContentLog(),
		wizard:    NewInquiryWizard(),
		menu:      NewMenuNavigator(backend),
		ratedKeys: make(map[string]bool),
	}
	c.attachments = NewAttachmentManager(c.log, c.replacedLocked)
	c.feedback = NewFeedbackPrompter(cfg.FeedbackDelay, c.handleReview)
	c.capture = NewCaptureSession(
		deps.Audio,
		deps.Provider,
		deps.Transcriber,
		deps.Rules,
		serializedSink{c: c},
		c.HandleRecognition,
		logger.Named("capture"),
		cfg.Capture,
	)
	return c
}

// Mount creates the chat session and loads the categories concurrently, then
// renders the home menu and starts the feedback timer. Failures are reported
// as notices; the menu is rendered regardless.
func (c *ConversationController) Mount(ctx context.Context) error {
	var (
		g          errgroup.Group
		sessionID  string
		sessionErr error
		categories []domain.Category
		catalogErr error
	)
	g.Go(func() error {
		sessionID, sessionErr = c.backend.CreateSession(ctx)
		if sessionErr != nil {
			return fmt.Errorf("create chat session: %w", sessionErr)
		}
		return nil
	})
	g.Go(func() error {
		categories, catalogErr = c.menu.LoadCategories(ctx)
		if catalogErr != nil {
			return fmt.Errorf("load categories: %w", catalogErr)
		}
		return nil
	})
	// Neither fetch cancels the other; each failure gets its own notice below.
	waitErr := g.Wait()

	if sessionErr == nil && sessionID != "" {
		c.sessionMu.Lock()
		if c.sessionID == "" {
			c.sessionID = sessionID
		}
		c.sessionMu.Unlock()
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrClosed
	}
	if c.mounted {
		return nil
	}
	c.mounted = true

	if waitErr != nil {
		c.logger.Warn("mount incomplete", zap.Error(waitErr))
	}
	if sessionErr != nil {
		c.view.Notice(domain.ErrorCodeSession, sessionErr.Error())
	}
	if catalogErr != nil {
		c.view.Notice(domain.ErrorCodeCategories, catalogErr.Error())
	}
	c.categories = categories
	c.appendLocked(c.menu.HomeEntry(c.categories))
	c.feedback.Start()

	return errors.Join(sessionErr, catalogErr)
}

// SubmitText handles one line of typed or recognized text.
func (c *ConversationController) SubmitText(ctx context.Context, text string) {
	text = strings.TrimSpace(text)
	if text == "" {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}

	c.appendLocked(userEntry(text))
	if c.session.Active() {
		c.applyLocked(ctx, c.wizard.Handle(c.session, text))
		return
	}
	if index, ok := c.menu.FAQIndex(c.subMenu, text); ok {
		c.selectFAQLocked(index)
		return
	}
	c.askLocked(ctx, text)
}

// SelectCategory starts the inquiry wizard for category.
func (c *ConversationController) SelectCategory(category domain.InquiryCategory) {
	if !category.Valid() {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}

	c.subMenu = nil
	c.menuGen++
	t := c.wizard.Select(category)
	c.attachments.Reset(t.Session.EditorKey, c.renderEditor)
	c.applyLocked(c.ctx, t)
}

// ChoosePeriod answers the sales period prompt.
func (c *ConversationController) ChoosePeriod(period domain.SalesPeriod) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}

	t := c.wizard.ChoosePeriod(c.session, period)
	if t.Stale || len(t.Entries) == 0 {
		return
	}
	c.appendLocked(userEntry(periodLabels[period]))
	c.applyLocked(c.ctx, t)
}

// OpenCategory shows the FAQ list of a backend category. A later navigation
// supersedes a response that is still in flight.
func (c *ConversationController) OpenCategory(ctx context.Context, categoryID int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}

	category := domain.Category{ID: categoryID}
	for _, known := range c.categories {
		if known.ID == categoryID {
			category = known
			break
		}
	}
	c.menuGen++
	gen := c.menuGen

	c.async(ctx, func(ctx context.Context) {
		state, err := c.menu.LoadFAQs(ctx, category)

		c.mu.Lock()
		defer c.mu.Unlock()
		if c.closed || gen != c.menuGen {
			return
		}
		if err != nil {
			c.logger.Warn("load faqs failed", zap.Int("category_id", categoryID), zap.Error(err))
			c.view.Notice(domain.ErrorCodeFAQs, err.Error())
			return
		}
		c.session = domain.InquirySession{}
		c.attachments.Reset("", nil)
		c.subMenu = state
		c.appendLocked(c.menu.SubMenuEntry(state))
	})
}

// SelectFAQ answers the FAQ at the 0-based index of the active submenu.
func (c *ConversationController) SelectFAQ(index int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.selectFAQLocked(index)
}

// AddAttachment attaches file to the inquiry waiting for its detail.
func (c *ConversationController) AddAttachment(file domain.Attachment) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}

	if !c.session.Active() || c.session.Step != domain.StepDetail {
		c.view.Notice(domain.ErrorCodeNoInquiry, noInquiryText)
		return
	}
	if c.session.Pending == domain.PendingSubmit {
		c.view.Notice(domain.ErrorCodeInquiryPending, "문의를 접수하는 중입니다. 잠시만 기다려 주세요.")
		return
	}
	if err := c.attachments.Add(file); err != nil {
		c.view.Notice(domain.ErrorCodeAttachmentLimit, attachmentLimit)
	}
}

// RemoveAttachment drops the attachment at index. Out of range is ignored.
func (c *ConversationController) RemoveAttachment(index int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed || c.session.Pending == domain.PendingSubmit {
		return
	}
	c.attachments.Remove(index)
}

// ResetToHome abandons any wizard run and appends a fresh home menu. Requests
// still in flight are not cancelled; their results are discarded.
func (c *ConversationController) ResetToHome() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}

	c.session = domain.InquirySession{}
	c.attachments.Reset("", nil)
	c.subMenu = nil
	c.menuGen++
	c.appendLocked(c.menu.HomeEntry(c.categories))
}

// StartCapture starts voice input. A second capture is rejected with a notice
// and the running one keeps going.
func (c *ConversationController) StartCapture(ctx context.Context, mode domain.CaptureMode, listener ports.StreamListener) error {
	err := c.capture.Start(ctx, mode, listener)
	if errors.Is(err, ErrCaptureActive) {
		c.notify(domain.ErrorCodeCaptureActive, captureBusyText)
	}
	return err
}

// StopCapture ends voice input. It is a no-op when nothing is recording.
func (c *ConversationController) StopCapture(ctx context.Context) error {
	err := c.capture.Stop(ctx)
	if errors.Is(err, ErrNoActiveCapture) {
		return nil
	}
	return err
}

// HandleRecognition is the single funnel for recognized speech.
func (c *ConversationController) HandleRecognition(ctx context.Context, rec domain.Recognition) {
	switch {
	case rec.Text != "":
		c.SubmitText(ctx, rec.Text)
	case rec.Question != "":
		c.mu.Lock()
		if c.closed {
			c.mu.Unlock()
			return
		}
		// A running inquiry consumes the spoken words; the canned answer is dropped.
		if rec.Answer == "" || c.session.Active() {
			c.mu.Unlock()
			c.SubmitText(ctx, rec.Question)
			return
		}
		c.appendLocked(userEntry(rec.Question))
		c.appendLocked(botEntry(rec.Answer))
		c.mu.Unlock()
	default:
		c.mu.Lock()
		defer c.mu.Unlock()
		if c.closed {
			return
		}
		c.appendLocked(botEntry(noSpeechText))
	}
}

// Rate records rating for the feedback block stored under entryKey. Each block
// is rated at most once.
func (c *ConversationController) Rate(entryKey string, rating int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed || rating < minFeedbackScore || rating > feedbackScale {
		return
	}
	pos := c.log.Index(entryKey)
	if pos < 0 || c.log.At(pos).Kind != domain.EntryFeedbackBlock || c.ratedKeys[entryKey] {
		return
	}
	c.ratedKeys[entryKey] = true

	c.async(c.ctx, func(ctx context.Context) {
		sessionID, err := c.ensureSession(ctx)
		if err == nil {
			err = c.backend.SendFeedback(ctx, sessionID, rating)
		}

		c.mu.Lock()
		defer c.mu.Unlock()
		if c.closed {
			return
		}
		if err != nil {
			c.logger.Warn("send feedback failed", zap.Error(err))
			delete(c.ratedKeys, entryKey)
			c.view.Notice(domain.ErrorCodeFeedback, err.Error())
			return
		}
		c.appendLocked(botEntry(feedbackThanks))
	})
}

// Snapshot returns the ordered log.
func (c *ConversationController) Snapshot() []domain.Entry {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.log.Snapshot()
}

// Inquiry returns the current wizard session.
func (c *ConversationController) Inquiry() domain.InquirySession {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session
}

// Attachments returns the attachments of the running inquiry.
func (c *ConversationController) Attachments() []domain.Attachment {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.attachments.Items()
}

func (c *ConversationController) CaptureStatus() domain.CaptureStatus {
	return c.capture.Status()
}

// Wait blocks until every request in flight has been applied.
func (c *ConversationController) Wait() {
	c.inflight.Wait()
}

// Close releases the microphone, stops the feedback timer and cancels the
// requests in flight.
func (c *ConversationController) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.feedback.Stop()
	c.mu.Unlock()

	err := c.capture.Close()
	c.cancel()
	c.inflight.Wait()
	return err
}

func (c *ConversationController) appendLocked(entry domain.Entry) {
	pos := c.log.Append(entry)
	c.view.EntryAppended(pos, c.log.At(pos))
	c.feedback.Touch()
}

// replacedLocked publishes an entry changed in place. It counts as activity
// for the feedback timer like an append does.
func (c *ConversationController) replacedLocked(pos int, entry domain.Entry) {
	c.view.EntryReplaced(pos, entry)
	c.feedback.Touch()
}

// applyLocked commits a wizard transition and issues its follow-up request.
func (c *ConversationController) applyLocked(ctx context.Context, t Transition) {
	if t.Stale {
		return
	}
	c.session = t.Session
	for _, entry := range t.Entries {
		c.appendLocked(entry)
	}
	if t.Notice != "" {
		c.view.Notice(t.Notice, t.NoticeDetail)
	}

	switch t.Effect {
	case effectLookup:
		c.lookupLocked(ctx, t.Session.Token, t.Lookup)
	case effectSubmit:
		c.submitLocked(ctx, t.Session)
	}
}

func (c *ConversationController) lookupLocked(ctx context.Context, token uint64, digits string) {
	c.async(ctx, func(ctx context.Context) {
		customers, err := c.backend.SearchCustomers(ctx, digits)
		if err != nil {
			c.logger.Debug("customer lookup failed", zap.Error(err))
		}

		c.mu.Lock()
		defer c.mu.Unlock()
		if c.closed {
			return
		}
		c.applyLocked(ctx, c.wizard.ResolveLookup(c.session, token, customers, err))
	})
}

func (c *ConversationController) submitLocked(ctx context.Context, session domain.InquirySession) {
	token := session.Token
	files := c.attachments.Items()
	req := c.wizard.Request(session, files)

	c.async(ctx, func(ctx context.Context) {
		err := c.backend.SubmitInquiry(ctx, req)
		if err != nil {
			c.logger.Warn("submit inquiry failed", zap.String("category", string(req.InquiryType)), zap.Error(err))
		}

		c.mu.Lock()
		defer c.mu.Unlock()
		if c.closed {
			return
		}
		t := c.wizard.ResolveSubmission(c.session, token, len(files), err)
		if !t.Stale && err == nil {
			c.attachments.Reset("", nil)
		}
		c.applyLocked(ctx, t)
	})
}

func (c *ConversationController) askLocked(ctx context.Context, question string) {
	c.async(ctx, func(ctx context.Context) {
		answer, err := c.ask(ctx, question)

		c.mu.Lock()
		defer c.mu.Unlock()
		if c.closed {
			return
		}
		if err != nil {
			code := domain.ErrorCodeAnswer
			if errors.Is(err, ErrNotReady) {
				code = domain.ErrorCodeSession
			}
			c.logger.Warn("answer request failed", zap.Error(err))
			c.view.Notice(code, err.Error())
			return
		}
		c.appendLocked(botEntry(answer))
	})
}

// ask persists the question best-effort and asks the assistant.
func (c *ConversationController) ask(ctx context.Context, question string) (string, error) {
	sessionID, err := c.ensureSession(ctx)
	if err != nil {
		return "", err
	}
	if err := c.backend.RecordMessage(ctx, sessionID, roleUser, question); err != nil {
		c.logger.Debug("record user message failed", zap.Error(err))
	}

	answer, err := c.backend.Ask(ctx, sessionID, domain.Question{
		Text:        question,
		TopK:        c.cfg.TopK,
		KnowledgeID: c.cfg.KnowledgeID,
	})
	if err != nil {
		return "", err
	}
	answer = strings.TrimSpace(answer)
	if answer == "" {
		return answerFallback, nil
	}
	if err := c.backend.RecordMessage(ctx, sessionID, roleAssistant, answer); err != nil {
		c.logger.Debug("record assistant message failed", zap.Error(err))
	}
	return answer, nil
}

// ensureSession returns the chat session, creating it when Mount could not.
func (c *ConversationController) ensureSession(ctx context.Context) (string, error) {
	c.sessionMu.Lock()
	defer c.sessionMu.Unlock()
	if c.sessionID != "" {
		return c.sessionID, nil
	}
	id, err := c.backend.CreateSession(ctx)
	if err != nil {
		return "", errors.Join(ErrNotReady, err)
	}
	if id == "" {
		return "", ErrNotReady
	}
	c.sessionID = id
	return id, nil
}

func (c *ConversationController) selectFAQLocked(index int) {
	entry, ok := c.menu.AnswerEntry(c.subMenu, index)
	if !ok {
		return
	}
	c.appendLocked(entry)
}

// renderEditor runs with mu held, from AttachmentManager refreshes.
func (c *ConversationController) renderEditor(items []domain.Attachment) domain.Entry {
	return c.wizard.EditorEntry(c.session, items)
}

// handleReview runs on the feedback timer goroutine.
func (c *ConversationController) handleReview() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.appendLocked(feedbackEntry())
}

func (c *ConversationController) notify(code domain.ErrorCode, detail string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.view.Notice(code, detail)
}

// async runs fn on its own goroutine with a context that keeps the values of
// ctx but is cancelled by Close rather than by ctx.
func (c *ConversationController) async(ctx context.Context, fn func(ctx context.Context)) {
	if ctx == nil {
		ctx = c.ctx
	}
	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	stop := context.AfterFunc(c.ctx, cancel)

	c.inflight.Add(1)
	go func() {
		defer c.inflight.Done()
		defer cancel()
		defer stop()
		fn(runCtx)
	}()
}

// serializedSink forwards capture updates to the view under the controller lock.
type serializedSink struct {
	c *ConversationController
}

func (s serializedSink) Notice(code domain.ErrorCode, detail string) {
	s.c.notify(code, detail)
}

func (s serializedSink) CaptureStateChanged(state domain.CaptureState, reason domain.CaptureReason) {
	s.c.mu.Lock()
	defer s.c.mu.Unlock()
	s.c.view.CaptureStateChanged(state, reason)
}
