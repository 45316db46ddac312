package rag

import (
	"fmt"
	"strings"

	"github.com/nexobotics/nova/internal/knowledge"
)

// promptPreamble sets the assistant persona and response style.
const promptPreamble = `You are NOVA, a helpful customer service assistant for Nexobotics.`

// promptInstruction constrains the answer to the supplied passages.
// The literal wording is part of the prompt contract and is asserted in tests.
const promptInstruction = `Answer the user's question using only the information provided in the passages below.
If the information needed isn't in the passages, politely explain that you don't have that specific detail and suggest contacting our support team for more help.

Your responses should be:
- Friendly and conversational
- Clear and concise
- Helpful and solution-oriented
- Professional but approachable`

// defaultCategory labels passages that carry no category metadata.
const defaultCategory = "general"

// BuildPrompt assembles the grounded prompt from a question and retrieved
// passages, nearest first. Newlines in the question and passages are
// collapsed to spaces so each section stays on one line.
//
// BuildPrompt is a pure function: identical inputs produce the identical
// prompt string.
func BuildPrompt(question string, passages []knowledge.Result) string {
	var b strings.Builder
	b.WriteString(promptPreamble)
	b.WriteString(" ")
	b.WriteString(promptInstruction)
	b.WriteString("\n\nQUESTION: ")
	b.WriteString(collapseNewlines(question))
	b.WriteString("\n\n")

	for i, p := range passages {
		category := p.Metadata["category"]
		if category == "" {
			category = defaultCategory
		}
		fmt.Fprintf(&b, "PASSAGE %d (%s): %s\n", i+1, category, collapseNewlines(p.Text))
	}

	return b.String()
}

// collapseNewlines replaces line breaks with single spaces.
func collapseNewlines(s string) string {
	s = strings.ReplaceAll(s, "\r\n", " ")
	s = strings.ReplaceAll(s, "\n", " ")
	s = strings.ReplaceAll(s, "\r", " ")
	return s
}
