// Package diffengine parses tagged SEARCH/REPLACE patch blocks out of an LLM
// completion and applies them to document text.
//
// A patch block has the form:
//
//	<<<<<<< SEARCH
//	old text
//	=======
//	new text
//	>>>>>>> REPLACE
//
// [ParseAll] extracts every complete block from a buffer; [Apply] locates the
// search text in a document (exact match first, then a whitespace-normalized
// line match) and splices in the replacement.
package diffengine

import (
	"errors"
	"strings"
)

// Patch is a single parsed SEARCH/REPLACE block.
type Patch struct {
	Search  string
	Replace string
}

// MatchResult locates a patch's search text within a document.
type MatchResult struct {
	Start      int
	End        int
	Confidence float64
}

// ErrNotFound is returned by [Apply] when the patch's search text cannot be
// located in the document by either the exact or normalized matcher.
var ErrNotFound = errors.New("diffengine: search block not found in document")

// parserState is the DiffParser's position within a patch block.
type parserState int

const (
	stateIdle parserState = iota
	stateInSearch
	stateInReplace
)

// Parser is a line-oriented state machine that accumulates SEARCH/REPLACE
// blocks out of a stream of lines. Use [ParseAll] for a one-shot parse of a
// complete buffer; Parser itself is exposed for callers that want to feed
// lines incrementally.
type Parser struct {
	state   parserState
	search  strings.Builder
	replace strings.Builder
}

// NewParser returns a Parser positioned at the start of a buffer.
func NewParser() *Parser {
	return &Parser{}
}

// ProcessLine feeds a single line (with or without its trailing newline) to
// the parser. It returns a completed [Patch] when line closes out a
// REPLACE block, and nil otherwise.
func (p *Parser) ProcessLine(line string) *Patch {
	trimmed := strings.TrimSpace(line)

	switch p.state {
	case stateIdle:
		if isSearchMarker(trimmed) {
			p.state = stateInSearch
			p.search.Reset()
			p.replace.Reset()
		}
	case stateInSearch:
		if isSeparator(trimmed) {
			p.state = stateInReplace
		} else {
			p.search.WriteString(line)
			if !strings.HasSuffix(line, "\n") {
				p.search.WriteByte('\n')
			}
		}
	case stateInReplace:
		if isReplaceMarker(trimmed) {
			p.state = stateIdle
			patch := &Patch{
				Search:  strings.TrimRight(p.search.String(), "\n"),
				Replace: strings.TrimRight(p.replace.String(), "\n"),
			}
			return patch
		}
		p.replace.WriteString(line)
		if !strings.HasSuffix(line, "\n") {
			p.replace.WriteByte('\n')
		}
	}
	return nil
}

// ParseAll extracts every complete SEARCH/REPLACE block from text. Incomplete
// trailing blocks (e.g. a stream cut off mid-REPLACE) are silently dropped —
// callers re-parse the full buffer on each aggregator flush, so a block
// completed by a later chunk is picked up on the next call.
//
// Patches whose replace block itself contains a protocol marker are dropped;
// markers are only valid as delimiters, never as document content.
func ParseAll(text string) []Patch {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")

	parser := NewParser()
	var patches []Patch
	for _, line := range splitInclusive(text, '\n') {
		if patch := parser.ProcessLine(line); patch != nil {
			if !containsMarker(patch.Replace) {
				patches = append(patches, *patch)
			}
		}
	}
	return patches
}

func containsMarker(s string) bool {
	return strings.Contains(s, "<<<<<<< SEARCH") ||
		strings.Contains(s, ">>>>>>> REPLACE") ||
		strings.Contains(s, "=======")
}

// splitInclusive splits s on sep, keeping sep attached to each piece (mirrors
// Rust's str::split_inclusive, which the parser's line-accumulation logic
// depends on to tell whether a line already carries its own newline).
func splitInclusive(s string, sep byte) []string {
	var out []string
	start := 0
	for i := 0; i < len(s); i++ {
		if s[i] == sep {
			out = append(out, s[start:i+1])
			start = i + 1
		}
	}
	if start < len(s) {
		out = append(out, s[start:])
	}
	return out
}

func isSeparator(s string) bool {
	t := strings.TrimSpace(s)
	if len(t) < 3 {
		return false
	}
	for _, c := range t {
		if c != '=' {
			return false
		}
	}
	return true
}

func isSearchMarker(s string) bool {
	t := strings.TrimLeft(s, " \t")
	return strings.Contains(t, "SEARCH") && leadingRunLen(t, '<') >= 3
}

func isReplaceMarker(s string) bool {
	t := strings.TrimLeft(s, " \t")
	return strings.Contains(t, "REPLACE") && leadingRunLen(t, '>') >= 3
}

func leadingRunLen(s string, c byte) int {
	n := 0
	for n < len(s) && s[n] == c {
		n++
	}
	return n
}
