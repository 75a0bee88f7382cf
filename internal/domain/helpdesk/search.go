package helpdesk

import "strings"

// MatchesText reports whether any field contains query, ignoring case.
// A blank query matches everything.
func MatchesText(query string, fields ...string) bool {
	needle := strings.ToLower(strings.TrimSpace(query))
	if needle == "" {
		return true
	}
	for _, field := range fields {
		if strings.Contains(strings.ToLower(field), needle) {
			return true
		}
	}
	return false
}

// ConversationText is the searchable text of a conversation: participant
// names and message bodies.
func ConversationText(c Conversation) []string {
	out := make([]string, 0, len(c.Participants)+len(c.Messages)+1)
	if c.Subject != "" {
		out = append(out, c.Subject)
	}
	for _, p := range c.Participants {
		out = append(out, p.Username)
	}
	for _, m := range c.Messages {
		out = append(out, m.SenderName, m.Body)
	}
	return out
}

func TicketText(t Ticket) []string {
	out := []string{t.Title, t.Description}
	if t.Assignee != nil {
		out = append(out, t.Assignee.Name)
	}
	if t.Client != nil {
		out = append(out, t.Client.Username)
	}
	return out
}

func KnowledgeBaseText(k KnowledgeBase) []string {
	return []string{k.Title, k.Content, k.Category}
}

func NotificationText(n Notification) []string {
	return []string{n.Title, n.Message}
}
