package usecase

import (
	"fmt"

	"github.com/google/uuid"

	"supportchat/internal/domain"
)

// ContentLog is the append-only ordered conversation log. Entries are
// addressable by key for the single in-place replacement it supports.
type ContentLog struct {
	entries []domain.Entry
	index   map[string]int
}

func NewContentLog() *ContentLog {
	return &ContentLog{index: make(map[string]int)}
}

// Append adds entry at the end and returns its position. A duplicate key is a
// programming error and panics.
func (l *ContentLog) Append(entry domain.Entry) int {
	if entry.Key == "" {
		panic("content log: entry key is required")
	}
	if _, exists := l.index[entry.Key]; exists {
		panic(fmt.Sprintf("content log: duplicate entry key %q", entry.Key))
	}
	l.entries = append(l.entries, entry)
	pos := len(l.entries) - 1
	l.index[entry.Key] = pos
	return pos
}

// ReplaceByKey substitutes the entry stored under key at its current position.
// The replacement keeps the original key. It returns -1 when key is unknown.
func (l *ContentLog) ReplaceByKey(key string, entry domain.Entry) int {
	pos, ok := l.index[key]
	if !ok {
		return -1
	}
	entry.Key = key
	l.entries[pos] = entry
	return pos
}

// Index returns the position of key, or -1.
func (l *ContentLog) Index(key string) int {
	if pos, ok := l.index[key]; ok {
		return pos
	}
	return -1
}

// At returns the entry at position i.
func (l *ContentLog) At(i int) domain.Entry {
	return l.entries[i]
}

func (l *ContentLog) Len() int {
	return len(l.entries)
}

// Snapshot returns a copy of the ordered entries.
func (l *ContentLog) Snapshot() []domain.Entry {
	out := make([]domain.Entry, len(l.entries))
	copy(out, l.entries)
	return out
}

// newEntryKey returns a fresh log key for kind.
func newEntryKey(kind domain.EntryKind) string {
	return string(kind) + "-" + uuid.NewString()
}
