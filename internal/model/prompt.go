package model

import (
	"strings"

	"llamad/internal/conversation"
)

// Transcript labels. The default stop sequence is the user label, so the
// model ends its turn when it starts writing the next user line.
const (
	userLabel      = "User:"
	assistantLabel = "Assistant:"
)

func label(r conversation.Role) string {
	if r == conversation.RoleAssistant {
		return assistantLabel
	}
	return userLabel
}

// renderTranscript formats prior turns, the new user prompt and an open
// assistant label for the model to complete.
func renderTranscript(history []conversation.Message, prompt string) string {
	var b strings.Builder
	for _, m := range history {
		b.WriteString(label(m.Role))
		b.WriteByte(' ')
		b.WriteString(m.Content)
		b.WriteByte('\n')
	}
	b.WriteString(userLabel)
	b.WriteByte(' ')
	b.WriteString(prompt)
	b.WriteByte('\n')
	b.WriteString(assistantLabel)
	return b.String()
}
