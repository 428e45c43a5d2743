// Package history holds the conversation sidebar: summaries from the
// backend, their relative date labels, and which one is active.
package history

import (
	"fmt"
	"sync"
	"time"

	"github.com/zulandar/pyassist/internal/backend"
)

// BackendTimeLayout is the format of updated_at in backend responses.
const BackendTimeLayout = "2006-01-02 15:04:05"

// Fallback labels.
const (
	UntitledLabel = "New conversation"
	EmptyLabel    = "No history yet"
)

// Summary is one conversation in the sidebar.
type Summary struct {
	ID           int64     `json:"id"`
	Title        string    `json:"title"`
	UpdatedAt    time.Time `json:"updated_at"`
	MessageCount int       `json:"message_count"`
}

// DisplayTitle returns the title or the untitled label.
func (s Summary) DisplayTitle() string {
	if s.Title == "" {
		return UntitledLabel
	}
	return s.Title
}

// ParseTime parses a backend timestamp in the local zone, accepting
// RFC 3339 as a fallback.
func ParseTime(s string) (time.Time, error) {
	if t, err := time.ParseInLocation(BackendTimeLayout, s, time.Local); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("history: parse time %q: %w", s, err)
	}
	return t.Local(), nil
}

// FromBackend converts backend summaries, keeping their order. An
// unparseable timestamp leaves UpdatedAt zero.
func FromBackend(in []backend.ConversationSummary) []Summary {
	out := make([]Summary, 0, len(in))
	for _, c := range in {
		t, _ := ParseTime(c.UpdatedAt)
		out = append(out, Summary{
			ID:           c.ID,
			Title:        c.Title,
			UpdatedAt:    t,
			MessageCount: c.MessageCount,
		})
	}
	return out
}

// Labeler formats relative timestamps.
type Labeler struct {
	TimeLayout string // default "15:04"
	DateLayout string // default "2006/1/2"
}

// RelativeLabel labels t as seen at now, by whole days elapsed:
// less than a day is "today HH:MM", one day "yesterday HH:MM", two to six
// days "{n} days ago", and a week or more the date.
func (l Labeler) RelativeLabel(now, t time.Time) string {
	if t.IsZero() {
		return ""
	}
	timeLayout, dateLayout := l.TimeLayout, l.DateLayout
	if timeLayout == "" {
		timeLayout = "15:04"
	}
	if dateLayout == "" {
		dateLayout = "2006/1/2"
	}
	days := int(now.Sub(t) / (24 * time.Hour))
	switch {
	case days <= 0:
		return "today " + t.Format(timeLayout)
	case days == 1:
		return "yesterday " + t.Format(timeLayout)
	case days < 7:
		return fmt.Sprintf("%d days ago", days)
	default:
		return t.Format(dateLayout)
	}
}

// Entry is a sidebar row ready for display.
type Entry struct {
	ID           int64  `json:"id"`
	Title        string `json:"title"`
	Label        string `json:"label"`
	MessageCount int    `json:"message_count"`
	Active       bool   `json:"active"`
}

// Sidebar keeps the summaries in backend order with at most one active.
type Sidebar struct {
	mu      sync.Mutex
	items   []Summary
	active  int64
	hasAct  bool
	labeler Labeler
}

// NewSidebar creates an empty sidebar.
func NewSidebar(l Labeler) *Sidebar {
	return &Sidebar{labeler: l}
}

// SetEntries replaces the list. The active mark survives only if its
// conversation is still present.
func (s *Sidebar) SetEntries(items []Summary) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items = append([]Summary(nil), items...)
	if s.hasAct && s.indexLocked(s.active) < 0 {
		s.hasAct = false
		s.active = 0
	}
}

// MarkActive makes id the single active entry. The mark is kept even if
// id is not listed yet, since a refresh may still be in flight.
func (s *Sidebar) MarkActive(id int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.active = id
	s.hasAct = true
}

// ClearActive removes the active mark.
func (s *Sidebar) ClearActive() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.active = 0
	s.hasAct = false
}

// ActiveID returns the active conversation id.
func (s *Sidebar) ActiveID() (int64, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active, s.hasAct
}

// IsActive reports whether id is the active conversation.
func (s *Sidebar) IsActive(id int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hasAct && s.active == id
}

// Clear empties the sidebar.
func (s *Sidebar) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items = nil
	s.active = 0
	s.hasAct = false
}

// Entries returns display rows labeled relative to now.
func (s *Sidebar) Entries(now time.Time) []Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Entry, 0, len(s.items))
	for _, it := range s.items {
		out = append(out, Entry{
			ID:           it.ID,
			Title:        it.DisplayTitle(),
			Label:        s.labeler.RelativeLabel(now, it.UpdatedAt),
			MessageCount: it.MessageCount,
			Active:       s.hasAct && it.ID == s.active,
		})
	}
	return out
}

// size returns the number of summaries.
func (s *Sidebar) size() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items)
}

func (s *Sidebar) indexLocked(id int64) int {
	for i, it := range s.items {
		if it.ID == id {
			return i
		}
	}
	return -1
}
