package router

import (
	"fmt"
	"strings"
)

// docPreview truncates doc to at most n characters for prompt inclusion,
// keeping the most recent content since that is what a turn is most likely
// to reference.
func docPreview(doc string, n int) string {
	if len(doc) <= n {
		return doc
	}
	return "…" + doc[len(doc)-n:]
}

func planPrompt(currentDoc, turn string) string {
	return fmt.Sprintf(`You are the document-intent router for a live transcription assistant.
Given the current document and the user's latest spoken turn, output a numbered
plan. Each line must be "N. [INTENT] instruction", where INTENT is one of
NO-OP, APPEND, EDIT, GREP, UNDO, CLEAR.

Current document (may be empty):
%s

User turn:
%s

Plan:`, docPreview(currentDoc, 2000), turn)
}

func retrievalNeedPrompt(currentDoc, focus string, recentCommits []string, todoSummary, turn string) string {
	return fmt.Sprintf(`Decide whether answering the user's latest turn requires retrieving
information not already present below. Answer with exactly "true" or "false".

Current document:
%s

Current focus: %s
Recent changes: %s
Open todos: %s

User turn:
%s

Answer:`, docPreview(currentDoc, 1000), focus, strings.Join(recentCommits, "; "), todoSummary, turn)
}

func toolIntentPrompt(currentDoc, turn string) string {
	return fmt.Sprintf(`Decide whether the user's latest turn requires an external web search to
answer. Answer with exactly "NONE" or "SEARCH".

Current document:
%s

User turn:
%s

Answer:`, docPreview(currentDoc, 500), turn)
}
