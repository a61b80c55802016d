// Package turnagg coalesces a stream of incremental transcription fragments
// into discrete turns (SPEC_FULL.md §4.1). Two mechanisms decide when a turn
// is ready:
//
//   - A holdback deadline, reset to now+HoldbackDelay on every incoming
//     fragment. Once it elapses without a further fragment arriving, whatever
//     is buffered becomes a turn. This is the common case: a short pause in
//     speech closes the turn.
//   - A size/punctuation bound, checked on every Push: once the buffer
//     reaches MaxBufferChars, or reaches at least MinFlushChars and ends on
//     sentence-ending punctuation, it flushes immediately rather than waiting
//     for the holdback to elapse. A FlushDeadline armed on the first fragment
//     of a buffer bounds how long a continuously-growing buffer (fragments
//     arriving faster than the holdback can elapse) is allowed to wait before
//     it is forced out regardless.
//
// The buffer emitted by either path is split at sentence boundaries if it
// still exceeds MaxBufferChars, so no single turn text is ever larger than
// that bound.
package turnagg

import (
	"strings"
	"time"
	"unicode/utf8"

	"github.com/liveink/liveink/internal/config"
)

// sentenceEnders are the punctuation runes (CJK and ASCII) that close a
// sentence for the purposes of early-flush detection and splitting.
const sentenceEnders = "。！？.!?;；"

// Aggregator coalesces ASR fragments for a single recording into turns. It is
// not safe for concurrent use; callers run it from a single scheduler
// goroutine (internal/pipeline).
type Aggregator struct {
	cfg config.PipelineConfig

	buf strings.Builder

	holdbackDeadline time.Time
	flushDeadline    time.Time
}

// New creates an Aggregator governed by cfg.
func New(cfg config.PipelineConfig) *Aggregator {
	return &Aggregator{cfg: cfg}
}

// Push appends fragment to the pending buffer. If the buffer's size or
// trailing punctuation already warrants an immediate flush, Push returns the
// resulting turn text(s) and true, and the buffer is cleared. Otherwise it
// arms the holdback deadline (and, if this is the first fragment of a new
// buffer, the flush deadline) and returns (nil, false); the caller should
// consult NextDeadline and call Fire once it elapses.
//
// A fragment that alone exceeds MaxBufferChars (a burst of ASR output larger
// than one turn should ever be) is never merged into the pending buffer: the
// pending buffer is flushed as its own turn first — but only if it already
// holds at least MinFlushChars, otherwise it is too small to stand alone and
// is left armed for the next fragment — and the oversized fragment is split
// into turns on its own.
func (a *Aggregator) Push(fragment string) (turns []string, ready bool) {
	fragment = strings.TrimSpace(fragment)
	if fragment == "" {
		return nil, false
	}

	if utf8.RuneCountInString(fragment) > a.cfg.MaxBufferChars {
		if pending := strings.TrimSpace(a.buf.String()); utf8.RuneCountInString(pending) >= a.cfg.MinFlushChars {
			turns = append(turns, pending)
			a.reset()
		}
		turns = append(turns, splitLongSpeech(fragment, a.cfg.MaxBufferChars)...)
		return turns, true
	}

	if a.buf.Len() > 0 {
		a.buf.WriteByte(' ')
	}
	a.buf.WriteString(fragment)

	text := a.buf.String()
	n := utf8.RuneCountInString(text)
	shouldFlush := n >= a.cfg.MaxBufferChars || (n >= a.cfg.MinFlushChars && endsWithSentencePunct(text))
	if shouldFlush {
		turns = splitLongSpeech(text, a.cfg.MaxBufferChars)
		a.reset()
		return turns, true
	}

	now := time.Now()
	a.holdbackDeadline = now.Add(a.cfg.HoldbackDelay)
	if a.flushDeadline.IsZero() {
		a.flushDeadline = now.Add(a.cfg.FlushDeadline)
	}
	return nil, false
}

// NextDeadline returns the earliest of the holdback and flush deadlines
// currently armed, for a scheduler's select loop to wait on. ok is false if
// the buffer is empty and no deadline is armed.
func (a *Aggregator) NextDeadline() (deadline time.Time, ok bool) {
	return a.earliestDeadline()
}

// Fire checks whether now has reached the earliest armed deadline. If so, it
// clears the buffer and returns the resulting turn text(s), split at sentence
// boundaries if still oversized, and true. If no deadline is armed, or now
// has not yet reached it, Fire returns (nil, false) and leaves the buffer
// untouched.
func (a *Aggregator) Fire(now time.Time) (turns []string, fired bool) {
	deadline, ok := a.earliestDeadline()
	if !ok || now.Before(deadline) {
		return nil, false
	}

	text := strings.TrimSpace(a.buf.String())
	a.reset()
	if text == "" {
		return nil, true
	}
	return splitLongSpeech(text, a.cfg.MaxBufferChars), true
}

// Pending reports whether the buffer currently holds unflushed text.
func (a *Aggregator) Pending() bool {
	return a.buf.Len() > 0
}

func (a *Aggregator) reset() {
	a.buf.Reset()
	a.holdbackDeadline = time.Time{}
	a.flushDeadline = time.Time{}
}

func (a *Aggregator) earliestDeadline() (time.Time, bool) {
	switch {
	case a.holdbackDeadline.IsZero() && a.flushDeadline.IsZero():
		return time.Time{}, false
	case a.holdbackDeadline.IsZero():
		return a.flushDeadline, true
	case a.flushDeadline.IsZero():
		return a.holdbackDeadline, true
	case a.holdbackDeadline.Before(a.flushDeadline):
		return a.holdbackDeadline, true
	default:
		return a.flushDeadline, true
	}
}

func endsWithSentencePunct(s string) bool {
	s = strings.TrimRightFunc(s, func(r rune) bool { return r == ' ' || r == '\n' || r == '\t' })
	if s == "" {
		return false
	}
	last, _ := utf8.DecodeLastRuneInString(s)
	return strings.ContainsRune(sentenceEnders, last)
}

// splitLongSpeech trims s and, if it fits within max runes, returns it as the
// sole element. Otherwise it walks s rune by rune, splitting at sentence
// boundaries or at max runes, whichever comes first, and returns the
// non-empty trimmed pieces in order.
func splitLongSpeech(s string, max int) []string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	if utf8.RuneCountInString(s) <= max {
		return []string{s}
	}

	var (
		pieces []string
		buf    strings.Builder
		count  int
	)
	for _, r := range s {
		buf.WriteRune(r)
		count++
		boundary := strings.ContainsRune(sentenceEnders, r) || r == '\n'
		if boundary || count >= max {
			if piece := strings.TrimSpace(buf.String()); piece != "" {
				pieces = append(pieces, piece)
			}
			buf.Reset()
			count = 0
		}
	}
	if piece := strings.TrimSpace(buf.String()); piece != "" {
		pieces = append(pieces, piece)
	}
	return pieces
}
