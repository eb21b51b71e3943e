package usecase

import (
	"errors"

	"supportchat/internal/domain"
)

var ErrAttachmentLimit = errors.New("attachment limit reached")

// editorRenderer builds the detail editor entry for the current attachments.
type editorRenderer func(items []domain.Attachment) domain.Entry

// AttachmentManager keeps the ordered attachments of the running inquiry and
// mirrors them into the single detail editor entry of the log.
type AttachmentManager struct {
	log       *ContentLog
	items     []domain.Attachment
	editorKey string
	render    editorRenderer
	onReplace func(index int, entry domain.Entry)
}

// NewAttachmentManager creates a manager writing editor refreshes to log.
// onReplace, when set, is told about every refreshed entry.
func NewAttachmentManager(log *ContentLog, onReplace func(index int, entry domain.Entry)) *AttachmentManager {
	return &AttachmentManager{log: log, onReplace: onReplace}
}

// Reset clears the attachments and binds the manager to a new editor key.
func (m *AttachmentManager) Reset(editorKey string, render editorRenderer) {
	m.items = nil
	m.editorKey = editorKey
	m.render = render
}

// Add appends file. It fails with ErrAttachmentLimit once MaxAttachments are held.
func (m *AttachmentManager) Add(file domain.Attachment) error {
	if len(m.items) >= domain.MaxAttachments {
		return ErrAttachmentLimit
	}
	m.items = append(m.items, file)
	m.refresh()
	return nil
}

// Remove drops the item at index. Out of range indexes are ignored.
func (m *AttachmentManager) Remove(index int) bool {
	if index < 0 || index >= len(m.items) {
		return false
	}
	m.items = append(m.items[:index:index], m.items[index+1:]...)
	m.refresh()
	return true
}

// Items returns a copy of the attachments in selection order.
func (m *AttachmentManager) Items() []domain.Attachment {
	if len(m.items) == 0 {
		return nil
	}
	out := make([]domain.Attachment, len(m.items))
	copy(out, m.items)
	return out
}

func (m *AttachmentManager) Len() int {
	return len(m.items)
}

func (m *AttachmentManager) refresh() {
	if m.editorKey == "" || m.render == nil {
		return
	}
	entry := m.render(m.Items())
	pos := m.log.ReplaceByKey(m.editorKey, entry)
	if pos >= 0 && m.onReplace != nil {
		m.onReplace(pos, m.log.At(pos))
	}
}
