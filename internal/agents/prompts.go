package agents

import (
	"fmt"
	"strings"

	"github.com/liveink/liveink/internal/statestore"
)

// systemMessage renders the shared system prompt every editing agent builds
// its request on top of: the current document, the recording's focus
// sentence, recent commit messages, and the open todo list. retrievedContext
// and searchResults, when non-empty, are appended as extra grounding. The
// document, focus, recent-changes and todo sections are always present, with
// "[None]" standing in for an empty one.
func systemMessage(doc, focus string, commits []string, todos []statestore.Todo, retrievedContext, searchResults string) string {
	var b strings.Builder
	b.WriteString("You are a live-document editing assistant. A speaker is dictating and you\n")
	b.WriteString("incrementally shape their words into a written document. Follow the current\n")
	b.WriteString("step's instruction exactly; do not invent content the speaker did not say.\n\n")

	b.WriteString("CURRENT DOCUMENT:\n")
	if doc == "" {
		b.WriteString("[None]\n")
	} else {
		b.WriteString(doc)
		b.WriteString("\n")
	}

	if focus == "" {
		focus = "[None]"
	}
	fmt.Fprintf(&b, "\nCURRENT FOCUS: %s\n", focus)

	b.WriteString("\nRECENT CHANGES:\n")
	if len(commits) == 0 {
		b.WriteString("[None]\n")
	}
	for _, c := range commits {
		fmt.Fprintf(&b, "- %s\n", c)
	}

	b.WriteString("\nOPEN TODOS:\n")
	open := 0
	for _, t := range todos {
		if t.Completed {
			continue
		}
		open++
		fmt.Fprintf(&b, "- (%s) %s\n", t.ID, t.Description)
	}
	if open == 0 {
		b.WriteString("[None]\n")
	}

	if retrievedContext != "" {
		b.WriteString("\nRELEVANT HISTORY:\n")
		b.WriteString(retrievedContext)
		b.WriteString("\n")
	}

	if searchResults != "" {
		b.WriteString("\nSEARCH RESULTS:\n")
		b.WriteString(searchResults)
		b.WriteString("\n")
	}

	return b.String()
}

// userMessage renders the turn's transcript, the full plan for context, and
// a highlighted instruction for the step currently being executed.
func userMessage(transcript, planContext, instruction string, stepIndex, stepCount int) string {
	return fmt.Sprintf(`TRANSCRIPT:
%s

PLAN:
%s

YOUR CURRENT ASSIGNMENT (Step %d/%d):
%s`, transcript, planContext, stepIndex+1, stepCount, instruction)
}

const appendSystemSuffix = `
Write the new material directly as it should appear in the document. Do not
wrap it in commentary, headings about what you are doing, or code fences.`

const editSystemSuffix = `
Express every change as one or more SEARCH/REPLACE blocks of the form:

<<<<<<< SEARCH
exact text to find in the document
=======
replacement text
>>>>>>> REPLACE

The SEARCH block must match the document text exactly. Emit nothing outside
SEARCH/REPLACE blocks.`

const grepSystemSuffix = `
Respond with exactly one pair of lines:

FIND: <text or regular expression to locate>
REPLACE: <replacement text>

If nothing in the document needs to change, leave FIND empty.`

func editRetryPrompt(editError string) string {
	return fmt.Sprintf(`The previous SEARCH/REPLACE response failed to apply: %s

The SEARCH block must match the current document text exactly, character for
character. Re-read the document above and try again.`, editError)
}

func undoPrompt(historyText, instruction string) string {
	return fmt.Sprintf(`COMMIT HISTORY (most recent first):
%s

INSTRUCTION: %s

Which commit should the document be rolled back to? Output ONLY the commit
hash string, nothing else. If the user just said something like "undo", "go
back", or "cancel that", return the hash of commit #2 (the commit immediately
before the current one).`, historyText, instruction)
}
