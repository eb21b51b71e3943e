package main

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"supportchat/internal/domain"
)

// terminalView prints the conversation as plain text. It also serves as the
// stream listener of live voice input.
type terminalView struct {
	mu       sync.Mutex
	out      io.Writer
	feedback string
}

func newTerminalView(out io.Writer) *terminalView {
	return &terminalView{out: out}
}

func (v *terminalView) println(text string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	fmt.Fprintln(v.out, text)
}

func (v *terminalView) lastFeedbackKey() string {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.feedback
}

func (v *terminalView) EntryAppended(_ int, entry domain.Entry) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if entry.Kind == domain.EntryFeedbackBlock {
		v.feedback = entry.Key
	}
	fmt.Fprintln(v.out, renderEntry(entry))
}

func (v *terminalView) EntryReplaced(_ int, entry domain.Entry) {
	if entry.Step == nil || !entry.Step.AllowAttachments {
		return
	}
	v.println(renderAttachments(entry.Step.Attachments))
}

func (v *terminalView) Notice(code domain.ErrorCode, detail string) {
	v.println(fmt.Sprintf("! [%s] %s", code, detail))
}

func (v *terminalView) CaptureStateChanged(state domain.CaptureState, reason domain.CaptureReason) {
	v.println(fmt.Sprintf("~ %s (%s)", state, reason))
}

func (v *terminalView) Partial(text string) {
	v.println("… " + text)
}

func (v *terminalView) Final(text string) {
	v.println("» " + text)
}

func (v *terminalView) SpeechEnded() {}

func renderEntry(entry domain.Entry) string {
	var b strings.Builder
	switch entry.Kind {
	case domain.EntryUserMessage:
		b.WriteString("> " + entry.Text)
	case domain.EntryMenuBlock:
		b.WriteString(entry.Text)
		if entry.Menu != nil {
			for _, option := range entry.Menu.Inquiries {
				fmt.Fprintf(&b, "\n  /inquiry %-18s %s", option.Category, option.Title)
			}
			for _, category := range entry.Menu.Categories {
				fmt.Fprintf(&b, "\n  /category %-17d %s", category.ID, strings.TrimSpace(category.Icon+" "+category.Name))
			}
		}
	case domain.EntrySubMenuBlock:
		b.WriteString(entry.Text)
		if entry.SubMenu != nil {
			for i, faq := range entry.SubMenu.FAQs {
				fmt.Fprintf(&b, "\n  %d. %s", i+1, faq.Question)
			}
			if entry.SubMenu.Hint != "" {
				b.WriteString("\n  " + entry.SubMenu.Hint)
			}
		}
	case domain.EntryWizardStep:
		b.WriteString(entry.Text)
		if entry.Step != nil {
			for i, choice := range entry.Step.Choices {
				fmt.Fprintf(&b, "\n  %d) %s", i+1, choice)
			}
			if entry.Step.AllowAttachments {
				b.WriteString("\n" + renderAttachments(entry.Step.Attachments))
			}
		}
	case domain.EntryFeedbackBlock:
		b.WriteString(entry.Text)
		if entry.Feedback != nil {
			fmt.Fprintf(&b, "\n  /rate 1-%d", entry.Feedback.Scale)
		}
	default:
		b.WriteString(entry.Text)
	}
	return b.String()
}

func renderAttachments(items []domain.Attachment) string {
	names := make([]string, 0, len(items))
	for _, item := range items {
		names = append(names, item.FileName)
	}
	line := fmt.Sprintf("  첨부 %d/%d", len(items), domain.MaxAttachments)
	if len(names) > 0 {
		line += ": " + strings.Join(names, ", ")
	}
	return line
}
