package stateupdater

import (
	"fmt"
	"strings"

	"github.com/liveink/liveink/internal/statestore"
)

func focusPrompt(content string) string {
	return fmt.Sprintf(`Summarise what the user is currently working on in this document as a single
sentence of at most 100 characters. Respond with only the sentence.

Document:
%s

Focus:`, truncate(content, 2000))
}

func todoMaintenancePrompt(content string, todos []statestore.Todo, turn, focus string) string {
	var todoLines []string
	for _, t := range todos {
		status := "open"
		if t.Completed {
			status = "completed"
		}
		todoLines = append(todoLines, fmt.Sprintf("- [%s] (%s) %s", t.ID, status, t.Description))
	}

	return fmt.Sprintf(`Maintain the todo list for a live-edited document. Given the document, the
current todo list, the user's latest turn, and the current focus, decide what
todo operations (if any) are needed. Respond with ONLY a JSON object of the
shape:

{"operations": [
  {"action": "complete", "todo_id": "..."},
  {"action": "update", "todo_id": "...", "new_desc": "..."},
  {"action": "delete", "todo_id": "..."},
  {"action": "add", "desc": "..."}
]}

Keep descriptions under 50 characters. If the list exceeds 10 active items,
aggressively complete or delete the least relevant ones. Respond with
{"operations": []} if nothing needs to change.

Document:
%s

Current todos:
%s

Current focus: %s

User turn:
%s

JSON:`, truncate(content, 2000), strings.Join(todoLines, "\n"), focus, turn)
}

// commitMessagePrompt asks for an imperative commit message summarising
// diff, the unified diff between the previous commit and the current
// document. When diff is empty (no prior commit, or the diff exceeds the
// truncation bound with nothing usable left) the full document content is
// shown instead, matching the first-commit case where there is nothing to
// diff against yet.
func commitMessagePrompt(diff, content, previousMessage string) string {
	if strings.TrimSpace(diff) == "" {
		return fmt.Sprintf(`Write a single imperative commit message of at most 72 characters
summarising this document's current state relative to its last recorded
change. Respond with only the message, no quotes.

Previous change: %s

Document:
%s

Commit message:`, previousMessage, truncate(content, 2000))
	}

	return fmt.Sprintf(`Write a single imperative commit message of at most 72 characters
summarising the change below. Respond with only the message, no quotes.

Previous change: %s

Diff:
%s

Commit message:`, previousMessage, truncate(diff, 4000))
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return "…" + s[len(s)-n:]
}
