package usecase

import (
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	"supportchat/internal/domain"
)

// driveWizard answers every prompt with a manual value and counts the prompts
// answered before submission.
func driveWizard(t *testing.T, w *InquiryWizard, category domain.InquiryCategory) (domain.InquirySession, int) {
	t.Helper()

	tr := w.Select(category)
	session := tr.Session
	answered := 0
	for session.Pending != domain.PendingSubmit {
		answer := "x"
		switch session.Step {
		case domain.StepPeriod:
			answer = "상반기"
		case domain.StepBusinessNumber:
			answer = "1234567890"
		case domain.StepDetail:
			answer = "need paper"
		}
		tr = w.Handle(session, answer)
		answered++
		session = tr.Session
		if tr.Effect == effectLookup {
			tr = w.ResolveLookup(session, session.Token, nil, nil)
			session = tr.Session
		}
		require.Less(t, answered, 10, "wizard did not converge")
	}
	return session, answered
}

func TestWizardStepCountPerCategory(t *testing.T) {
	t.Parallel()

	w := NewInquiryWizard()
	for _, category := range domain.InquiryCategories {
		_, answered := driveWizard(t, w, category)
		require.Equal(t, category.StepCount(), answered, "category %s", category)
	}
}

func TestWizardSelectRoutesSalesThroughPeriod(t *testing.T) {
	t.Parallel()

	w := NewInquiryWizard()

	sales := w.Select(domain.CategorySalesReport)
	require.Equal(t, domain.StepPeriod, sales.Session.Step)
	require.Len(t, sales.Entries, 1)
	require.Equal(t, domain.EntryWizardStep, sales.Entries[0].Kind)
	require.Equal(t, periodChoices(), sales.Entries[0].Step.Choices)
	require.True(t, strings.HasPrefix(sales.Entries[0].Text, "매출 내역"))
	require.Contains(t, sales.Entries[0].Text, "[1/5]")

	paper := w.Select(domain.CategoryPaperRequest)
	require.Equal(t, domain.StepBusinessNumber, paper.Session.Step)
	require.Contains(t, paper.Entries[0].Text, "[1/4]")
	require.NotEqual(t, sales.Session.EditorKey, paper.Session.EditorKey)
}

func TestWizardPeriodChoices(t *testing.T) {
	t.Parallel()

	w := NewInquiryWizard()
	session := w.Select(domain.CategorySalesReport).Session

	retry := w.Handle(session, "지난주")
	require.Equal(t, domain.StepPeriod, retry.Session.Step)
	require.Len(t, retry.Entries, 1)

	full := w.Handle(session, "전체")
	require.Equal(t, domain.StepBusinessNumber, full.Session.Step)
	require.Equal(t, "전체", *full.Session.SalesPeriod)

	byDigit := w.Handle(session, "2")
	require.Equal(t, "하반기", *byDigit.Session.SalesPeriod)

	custom := w.ChoosePeriod(session, domain.PeriodCustom)
	require.Equal(t, domain.StepCustomDate, custom.Session.Step)
	require.Nil(t, custom.Session.SalesPeriod)
	require.Contains(t, custom.Entries[0].Text, "[1/5]")

	dated := w.Handle(custom.Session, "2024.01.01 ~ 2024/3/31")
	require.Equal(t, domain.StepBusinessNumber, dated.Session.Step)
	require.Equal(t, "2024.01.01 ~ 2024/3/31", *dated.Session.SalesPeriod)
	require.Equal(t, &domain.DateRange{Start: "2024-01-01", End: "2024-03-31"}, dated.Session.CustomDateRange)

	loose := w.Handle(custom.Session, "올해 봄")
	require.Equal(t, "올해 봄", *loose.Session.SalesPeriod)
	require.Nil(t, loose.Session.CustomDateRange)

	stale := w.ChoosePeriod(full.Session, domain.PeriodFirstHalf)
	require.True(t, stale.Stale)
}

func TestWizardBusinessNumberDefersCompanyPrompt(t *testing.T) {
	t.Parallel()

	w := NewInquiryWizard()
	session := w.Select(domain.CategoryOther).Session

	tr := w.Handle(session, "123-45-67890")
	require.Equal(t, effectLookup, tr.Effect)
	require.Equal(t, "1234567890", tr.Lookup)
	require.Empty(t, tr.Entries)
	require.Equal(t, domain.StepCompanyName, tr.Session.Step)
	require.Equal(t, domain.PendingLookup, tr.Session.Pending)
	require.Equal(t, "123-45-67890", tr.Session.BusinessNumber)

	noDigits := w.Handle(session, "모름")
	require.Equal(t, effectNone, noDigits.Effect)
	require.Len(t, noDigits.Entries, 1)
	require.Equal(t, domain.StepCompanyName, noDigits.Entries[0].Step.Step)
}

func TestWizardLookupResolution(t *testing.T) {
	t.Parallel()

	w := NewInquiryWizard()
	session := w.Handle(w.Select(domain.CategoryPaperRequest).Session, "1234567890").Session
	token := session.Token

	customers := []domain.Customer{
		{BusinessName: "Other", BusinessNumber: "123456789", Phone: "010-9999-9999"},
		{BusinessName: "Acme", BusinessNumber: "123-45-67890", Phone: "010-1111-1111"},
	}

	stale := w.ResolveLookup(session, token+100, customers, nil)
	require.True(t, stale.Stale)

	hit := w.ResolveLookup(session, token, customers, nil)
	require.False(t, hit.Stale)
	require.Equal(t, domain.StepDetail, hit.Session.Step)
	require.Equal(t, "Acme", hit.Session.CompanyName)
	require.Equal(t, "010-1111-1111", hit.Session.Phone)
	require.Len(t, hit.Entries, 2)
	require.Equal(t, domain.EntryBotMessage, hit.Entries[0].Kind)
	require.Contains(t, hit.Entries[0].Text, "123-45-67890")
	require.Equal(t, session.EditorKey, hit.Entries[1].Key)
	require.True(t, hit.Entries[1].Step.AllowAttachments)

	again := w.ResolveLookup(hit.Session, token, customers, nil)
	require.True(t, again.Stale)

	miss := w.ResolveLookup(session, token, customers[:1], nil)
	require.Equal(t, domain.StepCompanyName, miss.Session.Step)
	require.Len(t, miss.Entries, 1)
	require.Equal(t, domain.StepCompanyName, miss.Entries[0].Step.Step)
	require.Empty(t, miss.Notice)

	failed := w.ResolveLookup(session, token, nil, errors.New("timeout"))
	require.Equal(t, domain.StepCompanyName, failed.Session.Step)
	require.Empty(t, failed.Notice)
}

func TestWizardTypingBeforeLookupWinsOverLookup(t *testing.T) {
	t.Parallel()

	w := NewInquiryWizard()
	session := w.Handle(w.Select(domain.CategoryPaperRequest).Session, "1234567890").Session
	token := session.Token

	typed := w.Handle(session, "Acme Manual")
	require.Equal(t, domain.StepPhone, typed.Session.Step)
	require.Equal(t, "Acme Manual", typed.Session.CompanyName)

	late := w.ResolveLookup(typed.Session, token, []domain.Customer{{BusinessName: "Acme", BusinessNumber: "1234567890"}}, nil)
	require.True(t, late.Stale)
}

func TestWizardSubmission(t *testing.T) {
	t.Parallel()

	w := NewInquiryWizard()
	session, _ := driveWizard(t, w, domain.CategorySalesReport)
	token := session.Token

	dup := w.Handle(session, "again")
	require.Equal(t, domain.ErrorCodeInquiryPending, dup.Notice)
	require.NotEmpty(t, dup.NoticeDetail)
	require.Equal(t, effectNone, dup.Effect)

	files := []domain.Attachment{file("a.png")}
	req := w.Request(session, files)
	want := domain.InquiryRequest{
		BusinessName:   "x",
		BusinessNumber: "1234567890",
		Phone:          "x",
		Content:        "[상반기] need paper",
		InquiryType:    domain.CategorySalesReport,
		Files:          files,
	}
	if diff := cmp.Diff(want, req); diff != "" {
		t.Fatalf("unexpected request (-want +got):\n%s", diff)
	}

	failed := w.ResolveSubmission(session, token, 1, errors.New("502"))
	require.Equal(t, domain.ErrorCodeInquirySubmit, failed.Notice)
	require.Equal(t, "502", failed.NoticeDetail)
	require.Equal(t, domain.StepDetail, failed.Session.Step)
	require.Equal(t, domain.PendingNone, failed.Session.Pending)
	require.Empty(t, failed.Entries)

	done := w.ResolveSubmission(session, token, 1, nil)
	require.Equal(t, domain.InquirySession{}, done.Session)
	require.Len(t, done.Entries, 2)
	require.Equal(t, domain.StepSubmitted, done.Entries[0].Step.Step)
	require.Equal(t, "상반기", done.Entries[0].Step.Summary.SalesPeriod)
	require.Equal(t, 1, done.Entries[0].Step.Summary.Attachments)
	require.Equal(t, domain.EntryFeedbackBlock, done.Entries[1].Kind)
}

func TestFormatBusinessNumber(t *testing.T) {
	t.Parallel()

	require.Equal(t, "123-45-67890", formatBusinessNumber("1234567890"))
	require.Equal(t, "123-45-67890", formatBusinessNumber("123 45 67890"))
	require.Equal(t, "12345", formatBusinessNumber("12345"))
}
