package chat

// SessionSummary describes a stored conversation for listings.
type SessionSummary struct {
	SessionID    string  `json:"session_id"`
	MessageCount int     `json:"message_count"`
	LastMessage  *string `json:"last_message"`
}

// Summarize builds the listing entry for a stored message sequence.
func Summarize(sessionID string, messages []Message) SessionSummary {
	summary := SessionSummary{
		SessionID:    sessionID,
		MessageCount: len(messages),
	}
	if len(messages) > 0 {
		last := messages[len(messages)-1].Content
		summary.LastMessage = &last
	}
	return summary
}
