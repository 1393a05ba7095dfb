package export

import (
	"strings"

	"github.com/celeste-app/celeste/backend/internal/model/chat"
)

// Separator divides consecutive turns of a rendered transcript.
const Separator = "\n------------------------\n"

// RenderTranscript writes turns in order, each labelled with its speaker.
func RenderTranscript(turns []chat.Turn, assistantName string) string {
	parts := make([]string, 0, len(turns))
	for _, turn := range turns {
		var b strings.Builder
		b.WriteString(label(turn.Role, assistantName))
		b.WriteString("\n")
		b.WriteString(turn.Content)
		b.WriteString("\n")
		parts = append(parts, b.String())
	}
	return strings.Join(parts, Separator)
}

func label(role chat.Role, assistantName string) string {
	if role == chat.RoleUser {
		return "👤 Tú:"
	}
	return "🤖 " + assistantName + ":"
}
