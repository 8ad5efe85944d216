package consolidator

import (
	"fmt"
	"strings"

	"github.com/chrlesur/live-memory/internal/livenote"
)

const systemPrompt = `You maintain a Memory Bank for a collaborative AI workspace, following the rules provided by the user. Your job is to fold the given live notes into the bank files, producing updated or new bank files plus a condensed synthesis of anything not captured in the bank. Return ONLY a JSON object matching the schema you are given — no commentary, no markdown fences unless the schema asks for them.`

const jsonNudge = `Your reply is not valid JSON. Return ONLY a JSON object.`

const responseSchema = `{"bank_files": [{"filename": "...", "content": "...", "action": "created"|"updated"}], "synthesis": "...residual markdown..."}`

// buildPrompt renders spec.md §4.7's user message: rules, previous
// synthesis, enumerated notes, and current bank files, each framed by
// "--- File: X ---" delimiters, closing with the strict schema and the
// instruction that unchanged bank files must be omitted.
func buildPrompt(rules, prevSynthesis string, notes []livenote.Note, bankFiles map[string]string) string {
	var b strings.Builder

	b.WriteString("--- File: _rules.md ---\n")
	b.WriteString(rules)
	b.WriteString("\n\n")

	b.WriteString("--- File: _synthesis.md ---\n")
	if prevSynthesis == "" {
		b.WriteString("(none)")
	} else {
		b.WriteString(prevSynthesis)
	}
	b.WriteString("\n\n")

	b.WriteString("--- Live notes ---\n")
	for _, n := range notes {
		fmt.Fprintf(&b, "[%s] agent=%s category=%s\n%s\n\n", n.Timestamp.Format("2006-01-02T15:04:05Z07:00"), n.Agent, n.Category, n.Content)
	}

	names := make([]string, 0, len(bankFiles))
	for name := range bankFiles {
		names = append(names, name)
	}
	for _, name := range names {
		fmt.Fprintf(&b, "--- File: bank/%s ---\n%s\n\n", name, bankFiles[name])
	}

	b.WriteString("Respond with a single JSON object of this exact shape. Omit any bank file whose content would be unchanged:\n")
	b.WriteString(responseSchema)

	return b.String()
}
