package domain

// EntryKind identifies how a conversation entry is rendered.
type EntryKind string

const (
	EntryUserMessage   EntryKind = "user_message"
	EntryBotMessage    EntryKind = "bot_message"
	EntryMenuBlock     EntryKind = "menu_block"
	EntrySubMenuBlock  EntryKind = "sub_menu_block"
	EntryWizardStep    EntryKind = "wizard_step"
	EntryFeedbackBlock EntryKind = "feedback_block"
)

// Entry is one item of the conversation log. Key is unique among the entries
// held by a log and is the only handle used for in-place replacement.
type Entry struct {
	Key  string    `json:"key"`
	Kind EntryKind `json:"kind"`
	Text string    `json:"text,omitempty"`

	Menu     *MenuPayload     `json:"menu,omitempty"`
	SubMenu  *SubMenuPayload  `json:"subMenu,omitempty"`
	Step     *StepPayload     `json:"step,omitempty"`
	Feedback *FeedbackPayload `json:"feedback,omitempty"`
}

// MenuOption is a fixed inquiry shortcut on the home menu.
type MenuOption struct {
	Category    InquiryCategory `json:"category"`
	Title       string          `json:"title"`
	Description string          `json:"description"`
}

// MenuPayload is the top-level menu.
type MenuPayload struct {
	Inquiries  []MenuOption `json:"inquiries"`
	ShowFAQ    bool         `json:"showFaq"`
	Categories []Category   `json:"categories"`
}

// SubMenuPayload lists the FAQs of one category.
type SubMenuPayload struct {
	Category Category `json:"category"`
	FAQs     []FAQ    `json:"faqs"`
	Hint     string   `json:"hint"`
}

// StepPayload describes a wizard step prompt or its outcome.
type StepPayload struct {
	Category         InquiryCategory `json:"category"`
	Step             StepID          `json:"step"`
	Ordinal          int             `json:"ordinal"`
	Total            int             `json:"total"`
	Choices          []string        `json:"choices,omitempty"`
	AllowAttachments bool            `json:"allowAttachments,omitempty"`
	Attachments      []Attachment    `json:"attachments,omitempty"`
	Summary          *InquirySummary `json:"summary,omitempty"`
}

// InquirySummary is rendered once an inquiry was accepted by the backend.
type InquirySummary struct {
	Category       InquiryCategory `json:"category"`
	CompanyName    string          `json:"companyName"`
	BusinessNumber string          `json:"businessNumber"`
	Phone          string          `json:"phone"`
	Detail         string          `json:"detail"`
	SalesPeriod    string          `json:"salesPeriod,omitempty"`
	Attachments    int             `json:"attachments"`
}

// FeedbackPayload asks for a satisfaction rating.
type FeedbackPayload struct {
	Scale int `json:"scale"`
}
