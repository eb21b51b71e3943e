package domain

// InquiryCategory selects the intake flow.
type InquiryCategory string

const (
	CategoryNone            InquiryCategory = ""
	CategoryPaperRequest    InquiryCategory = "paper_request"
	CategorySalesReport     InquiryCategory = "sales_report"
	CategoryKioskMenuUpdate InquiryCategory = "kiosk_menu_update"
	CategoryOther           InquiryCategory = "other"
)

// InquiryCategories lists the selectable categories in menu order.
var InquiryCategories = []InquiryCategory{
	CategoryPaperRequest,
	CategorySalesReport,
	CategoryKioskMenuUpdate,
	CategoryOther,
}

// Valid reports whether c is a selectable category.
func (c InquiryCategory) Valid() bool {
	for _, known := range InquiryCategories {
		if c == known {
			return true
		}
	}
	return false
}

// StepCount is the number of prompts answered before submission.
func (c InquiryCategory) StepCount() int {
	if c == CategorySalesReport {
		return 5
	}
	return 4
}

// StepID identifies a wizard state.
type StepID string

const (
	StepCategorySelected StepID = "0"
	StepBusinessNumber   StepID = "1"
	StepPeriod           StepID = "1a"
	StepCustomDate       StepID = "1b"
	StepCompanyName      StepID = "2"
	StepPhone            StepID = "3"
	StepDetail           StepID = "4"
	StepSubmitted        StepID = "submitted"
)

// SalesPeriod is one of the period choices offered for sales reports.
type SalesPeriod string

const (
	PeriodFirstHalf  SalesPeriod = "first_half"
	PeriodSecondHalf SalesPeriod = "second_half"
	PeriodFullYear   SalesPeriod = "full_year"
	PeriodCustom     SalesPeriod = "custom"
)

// SalesPeriods lists the period choices in display order.
var SalesPeriods = []SalesPeriod{PeriodFirstHalf, PeriodSecondHalf, PeriodFullYear, PeriodCustom}

// DateRange is a parsed custom sales period.
type DateRange struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

// PendingOp marks an asynchronous wizard operation whose result is awaited.
type PendingOp string

const (
	PendingNone   PendingOp = ""
	PendingLookup PendingOp = "lookup"
	PendingSubmit PendingOp = "submit"
)

// InquirySession is the state of one intake wizard run. The zero value means
// no wizard is active.
type InquirySession struct {
	Category        InquiryCategory `json:"category"`
	Step            StepID          `json:"step"`
	BusinessNumber  string          `json:"businessNumber"`
	CompanyName     string          `json:"companyName"`
	Phone           string          `json:"phone"`
	Detail          string          `json:"detail"`
	SalesPeriod     *string         `json:"salesPeriod"`
	CustomDateRange *DateRange      `json:"customDateRange"`

	// EditorKey is the log key of the attachment-enabled detail editor.
	EditorKey string `json:"editorKey"`

	// Pending and Token identify the one asynchronous result that may still
	// change this session. Tokens are never reused.
	Pending PendingOp `json:"pending,omitempty"`
	Token   uint64    `json:"token,omitempty"`
}

// Active reports whether a wizard run is in progress.
func (s InquirySession) Active() bool {
	return s.Category != CategoryNone
}

// Attachment references a file selected by the user.
type Attachment struct {
	URI      string `json:"uri"`
	MimeType string `json:"mimeType"`
	FileName string `json:"fileName"`
	Size     int64  `json:"size"`
}

// MaxAttachments bounds the attachments of one inquiry.
const MaxAttachments = 3

// InquiryRequest is the payload handed to the submission collaborator.
type InquiryRequest struct {
	BusinessName   string
	BusinessNumber string
	Phone          string
	Content        string
	InquiryType    InquiryCategory
	Files          []Attachment
}
