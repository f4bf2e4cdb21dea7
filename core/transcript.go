package orchestration

import (
	"sync"
	"time"

	"github.com/jinzhu/copier"

	"github.com/duplexkit/voice-core/core/llms"
)

// TranscriptEntry is one conversation line as shown to frontends.
type TranscriptEntry struct {
	Role      llms.MessageRole `json:"role"`
	Content   string           `json:"content"`
	Timestamp time.Time        `json:"timestamp"`
}

// Transcript is the ordered, append-mostly conversation record. Only the
// most recently appended user entry may be replaced in place, to track live
// recognition correction; assistant entries only ever grow by appended
// deltas, they are never replaced.
type Transcript struct {
	mu      sync.Mutex
	entries []TranscriptEntry
}

func newTranscript() *Transcript {
	return &Transcript{}
}

// AppendUser appends a new user entry and returns its index.
func (t *Transcript) AppendUser(content string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.entries = append(t.entries, TranscriptEntry{
		Role:      llms.MessageRoleUser,
		Content:   content,
		Timestamp: time.Now(),
	})
}

// UpdateLastUser replaces the content of the last entry when it is a user
// entry, otherwise it appends a fresh one. Earlier entries are never
// touched. Final recognizer results go through the same path, so a final
// that matches the last live partial never shows up twice.
func (t *Transcript) UpdateLastUser(content string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if n := len(t.entries); n > 0 && t.entries[n-1].Role == llms.MessageRoleUser {
		t.entries[n-1].Content = content
		return
	}
	t.entries = append(t.entries, TranscriptEntry{
		Role:      llms.MessageRoleUser,
		Content:   content,
		Timestamp: time.Now(),
	})
}

// AppendAssistantDelta grows the current assistant entry by one streamed
// delta, starting a new entry when the previous one is not an assistant
// turn.
func (t *Transcript) AppendAssistantDelta(delta string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if n := len(t.entries); n > 0 && t.entries[n-1].Role == llms.MessageRoleAssistant {
		t.entries[n-1].Content += delta
		return
	}
	t.entries = append(t.entries, TranscriptEntry{
		Role:      llms.MessageRoleAssistant,
		Content:   delta,
		Timestamp: time.Now(),
	})
}

// DropLastAssistant removes a trailing assistant entry, used when a turn is
// cancelled before any text was spoken.
func (t *Transcript) DropLastAssistant() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if n := len(t.entries); n > 0 && t.entries[n-1].Role == llms.MessageRoleAssistant {
		t.entries = t.entries[:n-1]
	}
}

// LastUser returns the content of the most recent user entry.
func (t *Transcript) LastUser() (string, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for i := len(t.entries) - 1; i >= 0; i-- {
		if t.entries[i].Role == llms.MessageRoleUser {
			return t.entries[i].Content, true
		}
	}
	return "", false
}

// Snapshot returns a point-in-time deep copy safe to hand to frontends.
func (t *Transcript) Snapshot() []TranscriptEntry {
	t.mu.Lock()
	defer t.mu.Unlock()

	entries := make([]TranscriptEntry, 0, len(t.entries))
	if err := copier.CopyWithOption(&entries, &t.entries, copier.Option{DeepCopy: true}); err != nil {
		entries = append(entries[:0], t.entries...)
	}
	return entries
}

func (t *Transcript) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.entries)
}
