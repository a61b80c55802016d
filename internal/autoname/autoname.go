// Package autoname derives a recording's display title from its document
// content once that content crosses a length threshold (SPEC_FULL.md §4.9),
// grounded on the original implementation's auto-naming pass
// (pipeline/auto_naming.rs, wired from transcript_processor.rs's end-of-turn
// step 5). It adds one behaviour the original did not have: suppressing a
// freshly generated title that is a near-duplicate of the previous
// auto-generated one, using a string-similarity score, so a recording whose
// name keeps getting reset does not repeatedly emit a rename notification for
// what is effectively the same title.
package autoname

import (
	"context"
	"fmt"
	"strings"

	"github.com/antzucaro/matchr"

	"github.com/liveink/liveink/pkg/provider/llm"
	"github.com/liveink/liveink/pkg/types"
)

// triggerChars is the document-length threshold past which auto-naming may
// fire.
const triggerChars = 150

// similarityThreshold is the Jaro-Winkler score above which a new candidate
// title is considered a near-duplicate of the previous one and discarded.
const similarityThreshold = 0.90

// snippetChars bounds how much document content is sent to the naming model.
const snippetChars = 1000

// ShouldTrigger reports whether auto-naming should run for a recording whose
// current display name is currentName and whose document is content. A name
// is a "default" name — eligible for renaming — if it is exactly
// "New Recording", starts with "New Recording (", or equals the recording's
// own id (the id is used as a placeholder name before the first rename).
func ShouldTrigger(currentName, recordingID, content string) bool {
	if len(content) <= triggerChars {
		return false
	}
	return IsDefaultName(currentName, recordingID)
}

// IsDefaultName reports whether name is one of the placeholder names a
// recording is given before it has ever been auto-named or manually renamed.
func IsDefaultName(name, recordingID string) bool {
	return name == "New Recording" || strings.HasPrefix(name, "New Recording (") || name == recordingID
}

// Generate asks flash for a short title summarising content, and compares it
// against previousAutoName (the last title this package generated for the
// same recording, or "" if none has been generated yet). If the new
// candidate is a near-duplicate of previousAutoName, Generate returns
// ("", false, nil) so the caller keeps the existing name and does not emit a
// rename notification. Otherwise it returns the candidate and true.
func Generate(ctx context.Context, flash llm.Provider, content, previousAutoName string) (string, bool, error) {
	snippet := content
	if len(snippet) > snippetChars {
		snippet = snippet[:snippetChars]
	}

	resp, err := flash.Complete(ctx, llm.CompletionRequest{
		Messages: []types.Message{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: fmt.Sprintf(userTemplate, snippet)},
		},
	})
	if err != nil {
		return "", false, fmt.Errorf("autoname: generate: %w", err)
	}

	title := strings.TrimSpace(resp.Content)
	title = strings.Trim(title, "\"")
	title = strings.Trim(title, "#")
	title = strings.TrimSpace(title)
	if title == "" {
		return "", false, fmt.Errorf("autoname: generated title is empty")
	}

	if previousAutoName != "" {
		similarity := matchr.JaroWinkler(strings.ToLower(title), strings.ToLower(previousAutoName), true)
		if similarity >= similarityThreshold {
			return "", false, nil
		}
	}

	return title, true, nil
}

const systemPrompt = `You generate short, descriptive titles for live-edited documents. Respond
with only the title: no quotes, no markdown, no explanation.`

const userTemplate = `Generate a concise title (at most 8 words) for a document that begins:

%s`
