package orchestration

import (
	"strings"
	"sync"
)

// sentenceBoundaries are the characters a streamed reply is segmented at
// before being handed to synthesis.
const sentenceBoundaries = "。！？.!?\n"

// minSegmentLength keeps synthesis from being fed fragments too short to
// carry prosody, such as a lone "1." in a numbered list.
const minSegmentLength = 6

// segmentBuffer accumulates streamed language-model deltas and hands out
// sentence-sized segments. Producers call AddChunk/TextComplete, a single
// consumer drains Segments; the consumer blocks between segments until more
// text arrives or the buffer is cleared.
type segmentBuffer struct {
	mu           sync.Mutex
	pending      strings.Builder
	segments     []string
	consumed     int
	textComplete bool
	cleared      bool
	updateSignal chan struct{}
}

func newSegmentBuffer() *segmentBuffer {
	return &segmentBuffer{
		updateSignal: make(chan struct{}, 1),
	}
}

// AddChunk appends one streamed delta and cuts any completed sentences off
// the pending text.
func (b *segmentBuffer) AddChunk(chunk string) {
	b.mu.Lock()
	b.pending.WriteString(chunk)
	b.cutSegmentsLocked()
	b.mu.Unlock()
	b.signalUpdate()
}

// TextComplete marks the stream as ended; the remaining pending text is
// flushed as a final segment regardless of length.
func (b *segmentBuffer) TextComplete() {
	b.mu.Lock()
	if rest := strings.TrimSpace(b.pending.String()); rest != "" {
		b.segments = append(b.segments, rest)
	}
	b.pending.Reset()
	b.textComplete = true
	b.mu.Unlock()
	b.signalUpdate()
}

// Segments yields completed segments in order, blocking until the stream
// ends or the buffer is cleared.
func (b *segmentBuffer) Segments(yield func(string) bool) {
	for {
		b.mu.Lock()
		if b.cleared {
			b.mu.Unlock()
			return
		}

		if b.consumed < len(b.segments) {
			segment := b.segments[b.consumed]
			b.consumed++
			b.mu.Unlock()
			if !yield(segment) {
				return
			}
			continue
		}

		if b.textComplete {
			b.mu.Unlock()
			return
		}

		b.mu.Unlock()
		<-b.updateSignal
	}
}

// Consumed reports how many segments the consumer has taken so far.
func (b *segmentBuffer) Consumed() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.consumed
}

// Clear unblocks the consumer and discards everything buffered.
func (b *segmentBuffer) Clear() {
	b.mu.Lock()
	b.cleared = true
	b.mu.Unlock()
	b.signalUpdate()
}

func (b *segmentBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return strings.Join(b.segments, "") + b.pending.String()
}

// cutSegmentsLocked splits the pending text at the last sentence boundary,
// keeping the tail for the next delta. Segments shorter than
// minSegmentLength stay pending so they merge with the next sentence.
func (b *segmentBuffer) cutSegmentsLocked() {
	text := b.pending.String()
	cut := strings.LastIndexAny(text, sentenceBoundaries)
	if cut < 0 {
		return
	}

	boundaryEnd := cut + lastBoundaryLen(text, cut)
	segment := strings.TrimSpace(text[:boundaryEnd])
	if len(segment) < minSegmentLength {
		return
	}

	b.segments = append(b.segments, segment)
	rest := text[boundaryEnd:]
	b.pending.Reset()
	b.pending.WriteString(rest)
}

// lastBoundaryLen returns the byte length of the boundary rune at cut.
func lastBoundaryLen(text string, cut int) int {
	for _, r := range text[cut:] {
		return len(string(r))
	}
	return 1
}

func (b *segmentBuffer) signalUpdate() {
	select {
	case b.updateSignal <- struct{}{}:
	default:
	}
}
