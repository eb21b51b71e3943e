package usecase

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"supportchat/internal/domain"
)

type wizardEffect int

const (
	effectNone wizardEffect = iota
	effectLookup
	effectSubmit
)

// Transition is the result of feeding one event to the wizard. Entries are
// appended to the log in order; Effect names the asynchronous follow-up.
type Transition struct {
	Session      domain.InquirySession
	Entries      []domain.Entry
	Effect       wizardEffect
	Lookup       string
	Notice       domain.ErrorCode
	NoticeDetail string
	Stale        bool
}

var categoryTitles = map[domain.InquiryCategory]string{
	domain.CategoryPaperRequest:    "용지 요청",
	domain.CategorySalesReport:     "매출 내역",
	domain.CategoryKioskMenuUpdate: "메뉴 수정 및 추가",
	domain.CategoryOther:           "기타 문의",
}

var periodLabels = map[domain.SalesPeriod]string{
	domain.PeriodFirstHalf:  "상반기",
	domain.PeriodSecondHalf: "하반기",
	domain.PeriodFullYear:   "전체",
	domain.PeriodCustom:     "직접 입력",
}

const (
	promptPeriod         = "조회할 매출 기간을 선택해 주세요."
	promptCustomDate     = "조회할 기간을 입력해 주세요. (예: 2024-01-01 ~ 2024-03-31)"
	promptBusinessNumber = "사업자 등록번호를 입력해 주세요."
	promptCompanyName    = "상호명을 입력해 주세요."
	promptPhone          = "연락 가능한 전화번호를 입력해 주세요."
	promptDetail         = "문의 내용을 입력해 주세요. 사진이나 파일은 최대 3개까지 첨부할 수 있습니다."
)

// InquiryWizard is the intake state machine. Every transition takes the
// current session and returns the next one; the wizard itself only owns the
// token counter that tells fresh asynchronous results from stale ones.
type InquiryWizard struct {
	tokens uint64
}

func NewInquiryWizard() *InquiryWizard {
	return &InquiryWizard{}
}

// Select starts a new run for category, discarding whatever came before.
func (w *InquiryWizard) Select(category domain.InquiryCategory) Transition {
	session := domain.InquirySession{
		Category:  category,
		Step:      domain.StepBusinessNumber,
		EditorKey: newEntryKey(domain.EntryWizardStep),
	}
	if category == domain.CategorySalesReport {
		session.Step = domain.StepPeriod
	}

	entry := w.promptEntry(session)
	entry.Text = fmt.Sprintf("%s 문의를 접수합니다.\n%s", categoryTitles[category], entry.Text)
	return Transition{Session: session, Entries: []domain.Entry{entry}}
}

// Handle feeds one line of user text to the active step.
func (w *InquiryWizard) Handle(session domain.InquirySession, text string) Transition {
	text = strings.TrimSpace(text)

	switch session.Step {
	case domain.StepPeriod:
		period, ok := parsePeriod(text)
		if !ok {
			return Transition{Session: session, Entries: []domain.Entry{botEntry("선택지 중에서 골라 주세요: " + strings.Join(periodChoices(), ", "))}}
		}
		return w.choosePeriod(session, period)

	case domain.StepCustomDate:
		session.SalesPeriod = &text
		if rng, ok := parseDateRange(text); ok {
			session.CustomDateRange = &rng
		}
		session.Step = domain.StepBusinessNumber
		return w.prompt(session)

	case domain.StepBusinessNumber:
		session.BusinessNumber = text
		session.Step = domain.StepCompanyName
		digits := normalizeDigits(text)
		if digits == "" {
			return w.prompt(session)
		}
		session.Pending = domain.PendingLookup
		session.Token = w.nextToken()
		return Transition{Session: session, Effect: effectLookup, Lookup: digits}

	case domain.StepCompanyName:
		session.CompanyName = text
		session.Pending = domain.PendingNone
		session.Token = 0
		session.Step = domain.StepPhone
		return w.prompt(session)

	case domain.StepPhone:
		session.Phone = text
		session.Step = domain.StepDetail
		return w.prompt(session)

	case domain.StepDetail:
		if session.Pending == domain.PendingSubmit {
			return Transition{Session: session, Notice: domain.ErrorCodeInquiryPending, NoticeDetail: "문의를 접수하는 중입니다. 잠시만 기다려 주세요."}
		}
		session.Detail = text
		session.Pending = domain.PendingSubmit
		session.Token = w.nextToken()
		return Transition{Session: session, Effect: effectSubmit}
	}

	return Transition{Session: session}
}

// ChoosePeriod is the button form of answering the period prompt.
func (w *InquiryWizard) ChoosePeriod(session domain.InquirySession, period domain.SalesPeriod) Transition {
	if session.Step != domain.StepPeriod {
		return Transition{Session: session, Stale: true}
	}
	if _, ok := periodLabels[period]; !ok {
		return Transition{Session: session}
	}
	return w.choosePeriod(session, period)
}

func (w *InquiryWizard) choosePeriod(session domain.InquirySession, period domain.SalesPeriod) Transition {
	if period == domain.PeriodCustom {
		session.Step = domain.StepCustomDate
		return w.prompt(session)
	}
	label := periodLabels[period]
	session.SalesPeriod = &label
	session.Step = domain.StepBusinessNumber
	return w.prompt(session)
}

// ResolveLookup applies the customer search issued under token. Results for a
// token that is no longer pending are reported stale and change nothing.
func (w *InquiryWizard) ResolveLookup(session domain.InquirySession, token uint64, customers []domain.Customer, err error) Transition {
	if session.Pending != domain.PendingLookup || session.Token != token {
		return Transition{Session: session, Stale: true}
	}
	session.Pending = domain.PendingNone
	session.Token = 0

	if err != nil {
		return w.prompt(session)
	}
	match, ok := matchCustomer(customers, normalizeDigits(session.BusinessNumber))
	if !ok {
		return w.prompt(session)
	}

	session.CompanyName = match.BusinessName
	session.Phone = match.Phone
	session.Step = domain.StepDetail

	confirm := botEntry(fmt.Sprintf(
		"등록된 고객 정보를 찾았습니다.\n사업자 등록번호: %s\n상호명: %s\n연락처: %s",
		formatBusinessNumber(session.BusinessNumber), match.BusinessName, match.Phone,
	))
	next := w.prompt(session)
	next.Entries = append([]domain.Entry{confirm}, next.Entries...)
	return next
}

// ResolveSubmission applies the outcome of the submission issued under token.
// Success ends the run; failure leaves the detail step in place for a retry.
func (w *InquiryWizard) ResolveSubmission(session domain.InquirySession, token uint64, attachments int, err error) Transition {
	if session.Pending != domain.PendingSubmit || session.Token != token {
		return Transition{Session: session, Stale: true}
	}
	if err != nil {
		session.Pending = domain.PendingNone
		session.Token = 0
		return Transition{Session: session, Notice: domain.ErrorCodeInquirySubmit, NoticeDetail: err.Error()}
	}

	summary := &domain.InquirySummary{
		Category:       session.Category,
		CompanyName:    session.CompanyName,
		BusinessNumber: session.BusinessNumber,
		Phone:          session.Phone,
		Detail:         session.Detail,
		Attachments:    attachments,
	}
	if session.SalesPeriod != nil {
		summary.SalesPeriod = *session.SalesPeriod
	}

	lines := []string{
		"문의가 접수되었습니다.",
		"상호명: " + summary.CompanyName,
		"사업자 등록번호: " + formatBusinessNumber(summary.BusinessNumber),
		"연락처: " + summary.Phone,
	}
	if summary.SalesPeriod != "" {
		lines = append(lines, "조회 기간: "+summary.SalesPeriod)
	}
	lines = append(lines, "문의 내용: "+summary.Detail)
	if attachments > 0 {
		lines = append(lines, fmt.Sprintf("첨부 파일: %d개", attachments))
	}

	result := domain.Entry{
		Key:  newEntryKey(domain.EntryWizardStep),
		Kind: domain.EntryWizardStep,
		Text: strings.Join(lines, "\n"),
		Step: &domain.StepPayload{
			Category: session.Category,
			Step:     domain.StepSubmitted,
			Ordinal:  session.Category.StepCount(),
			Total:    session.Category.StepCount(),
			Summary:  summary,
		},
	}
	return Transition{Session: domain.InquirySession{}, Entries: []domain.Entry{result, feedbackEntry()}}
}

// Request packages the collected fields for submission.
func (w *InquiryWizard) Request(session domain.InquirySession, files []domain.Attachment) domain.InquiryRequest {
	content := session.Detail
	if session.SalesPeriod != nil && *session.SalesPeriod != "" {
		content = "[" + *session.SalesPeriod + "] " + content
	}
	return domain.InquiryRequest{
		BusinessName:   session.CompanyName,
		BusinessNumber: session.BusinessNumber,
		Phone:          session.Phone,
		Content:        content,
		InquiryType:    session.Category,
		Files:          files,
	}
}

// EditorEntry renders the detail editor with the given attachments.
func (w *InquiryWizard) EditorEntry(session domain.InquirySession, files []domain.Attachment) domain.Entry {
	return domain.Entry{
		Key:  session.EditorKey,
		Kind: domain.EntryWizardStep,
		Text: stepLabel(session.Category, domain.StepDetail) + promptDetail,
		Step: &domain.StepPayload{
			Category:         session.Category,
			Step:             domain.StepDetail,
			Ordinal:          stepOrdinal(session.Category, domain.StepDetail),
			Total:            session.Category.StepCount(),
			AllowAttachments: true,
			Attachments:      files,
		},
	}
}

func (w *InquiryWizard) prompt(session domain.InquirySession) Transition {
	return Transition{Session: session, Entries: []domain.Entry{w.promptEntry(session)}}
}

func (w *InquiryWizard) promptEntry(session domain.InquirySession) domain.Entry {
	if session.Step == domain.StepDetail {
		return w.EditorEntry(session, nil)
	}

	var text string
	var choices []string
	switch session.Step {
	case domain.StepPeriod:
		text, choices = promptPeriod, periodChoices()
	case domain.StepCustomDate:
		text = promptCustomDate
	case domain.StepBusinessNumber:
		text = promptBusinessNumber
	case domain.StepCompanyName:
		text = promptCompanyName
	case domain.StepPhone:
		text = promptPhone
	}

	return domain.Entry{
		Key:  newEntryKey(domain.EntryWizardStep),
		Kind: domain.EntryWizardStep,
		Text: stepLabel(session.Category, session.Step) + text,
		Step: &domain.StepPayload{
			Category: session.Category,
			Step:     session.Step,
			Ordinal:  stepOrdinal(session.Category, session.Step),
			Total:    session.Category.StepCount(),
			Choices:  choices,
		},
	}
}

func (w *InquiryWizard) nextToken() uint64 {
	w.tokens++
	return w.tokens
}

// stepOrdinal is the 1-based progress position of step. The custom date
// prompt shares the ordinal of the period prompt.
func stepOrdinal(category domain.InquiryCategory, step domain.StepID) int {
	offset := 0
	if category == domain.CategorySalesReport {
		offset = 1
	}
	switch step {
	case domain.StepPeriod, domain.StepCustomDate:
		return 1
	case domain.StepBusinessNumber:
		return 1 + offset
	case domain.StepCompanyName:
		return 2 + offset
	case domain.StepPhone:
		return 3 + offset
	case domain.StepDetail:
		return 4 + offset
	}
	return 0
}

func stepLabel(category domain.InquiryCategory, step domain.StepID) string {
	return fmt.Sprintf("[%d/%d] ", stepOrdinal(category, step), category.StepCount())
}

func periodChoices() []string {
	out := make([]string, 0, len(domain.SalesPeriods))
	for _, period := range domain.SalesPeriods {
		out = append(out, periodLabels[period])
	}
	return out
}

// parsePeriod accepts a label, a period key or a 1-based choice number.
func parsePeriod(text string) (domain.SalesPeriod, bool) {
	text = strings.TrimSpace(text)
	for i, period := range domain.SalesPeriods {
		if text == periodLabels[period] || strings.EqualFold(text, string(period)) || text == strconv.Itoa(i+1) {
			return period, true
		}
	}
	return "", false
}

var (
	dateRangePattern = regexp.MustCompile(`(?i)^\s*(\d{4}[-./]\d{1,2}[-./]\d{1,2})\s*(?:~|-|to)\s*(\d{4}[-./]\d{1,2}[-./]\d{1,2})\s*$`)
	dateSeparators   = regexp.MustCompile(`[-./]`)
)

func parseDateRange(text string) (domain.DateRange, bool) {
	match := dateRangePattern.FindStringSubmatch(text)
	if match == nil {
		return domain.DateRange{}, false
	}
	start, ok := normalizeDate(match[1])
	if !ok {
		return domain.DateRange{}, false
	}
	end, ok := normalizeDate(match[2])
	if !ok {
		return domain.DateRange{}, false
	}
	return domain.DateRange{Start: start, End: end}, true
}

func normalizeDate(raw string) (string, bool) {
	parts := dateSeparators.Split(raw, -1)
	if len(parts) != 3 {
		return "", false
	}
	month, err := strconv.Atoi(parts[1])
	if err != nil || month < 1 || month > 12 {
		return "", false
	}
	day, err := strconv.Atoi(parts[2])
	if err != nil || day < 1 || day > 31 {
		return "", false
	}
	return fmt.Sprintf("%s-%02d-%02d", parts[0], month, day), true
}

// normalizeDigits keeps only ASCII digits.
func normalizeDigits(text string) string {
	var b strings.Builder
	for _, r := range text {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func matchCustomer(customers []domain.Customer, digits string) (domain.Customer, bool) {
	if digits == "" {
		return domain.Customer{}, false
	}
	for _, customer := range customers {
		if normalizeDigits(customer.BusinessNumber) == digits {
			return customer, true
		}
	}
	return domain.Customer{}, false
}

// formatBusinessNumber renders ten digits as ddd-dd-ddddd and leaves any other
// input as typed.
func formatBusinessNumber(raw string) string {
	digits := normalizeDigits(raw)
	if len(digits) != 10 {
		return raw
	}
	return digits[:3] + "-" + digits[3:5] + "-" + digits[5:]
}

func botEntry(text string) domain.Entry {
	return domain.Entry{Key: newEntryKey(domain.EntryBotMessage), Kind: domain.EntryBotMessage, Text: text}
}

func userEntry(text string) domain.Entry {
	return domain.Entry{Key: newEntryKey(domain.EntryUserMessage), Kind: domain.EntryUserMessage, Text: text}
}
