package advisor

import (
	"encoding/json"
)

// ParseTranscript decodes a stored transcript. Entries with an unknown role or
// empty text are skipped; an unreadable or empty transcript starts over.
func ParseTranscript(data []byte) []Message {
	var raw []Message
	if err := json.Unmarshal(data, &raw); err != nil {
		return InitialTranscript()
	}

	out := make([]Message, 0, len(raw))
	for _, m := range raw {
		if m.Text == "" || (m.Role != RoleUser && m.Role != RoleAssistant) {
			continue
		}
		out = append(out, m)
	}
	if len(out) == 0 {
		return InitialTranscript()
	}
	return out
}
