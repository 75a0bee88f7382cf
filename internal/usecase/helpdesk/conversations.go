package helpdesk

import (
	"context"
	"strings"

	domainhelpdesk "helpdesk/internal/domain/helpdesk"
	"helpdesk/internal/ports"
	"helpdesk/internal/usecase/rescache"
)

var conversationPopulate = []string{"participants"}

// Conversations are bounded per user and arrive with their messages, so
// search runs over the loaded list.
func conversationOptions(userID func() string, notifier ports.Notifier) rescache.Options[domainhelpdesk.Conversation] {
	return rescache.Options[domainhelpdesk.Conversation]{
		Name:   "conversations",
		Noun:   "conversation",
		Insert: rescache.Prepend,
		Search: rescache.SearchLocal,
		Text:   domainhelpdesk.ConversationText,
		Scope: func(uid string) ports.Query {
			return ports.Query{
				Filters:  []ports.Filter{ports.Eq("participants.documentId", uid)},
				Sort:     []string{"updatedAt:desc"},
				Populate: conversationPopulate,
			}
		},
		Populate: conversationPopulate,
		UserID:   userID,
		Notifier: notifier,
	}
}

func (s *Service) LoadConversations(ctx context.Context) error {
	if err := s.check(ctx); err != nil {
		return err
	}
	return s.conversations.Load(ctx)
}

func (s *Service) SearchConversations(ctx context.Context, text string) ([]domainhelpdesk.Conversation, error) {
	if err := s.check(ctx); err != nil {
		return nil, err
	}
	return s.conversations.Search(ctx, text)
}

// StartConversation creates a conversation between the session user and
// participantIDs, opened with firstMessage.
func (s *Service) StartConversation(ctx context.Context, participantIDs []string, subject string, firstMessage string) (domainhelpdesk.Conversation, error) {
	if err := s.check(ctx); err != nil {
		return domainhelpdesk.Conversation{}, err
	}
	userID, err := s.requireUser()
	if err != nil {
		return domainhelpdesk.Conversation{}, err
	}
	body := strings.TrimSpace(firstMessage)
	if body == "" {
		return domainhelpdesk.Conversation{}, validation(domainhelpdesk.ErrBodyRequired)
	}

	members := []string{userID}
	seen := map[string]struct{}{userID: {}}
	for _, raw := range participantIDs {
		id, err := parseID(raw)
		if err != nil {
			return domainhelpdesk.Conversation{}, err
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		members = append(members, id)
	}
	if len(members) < 2 {
		return domainhelpdesk.Conversation{}, validation(domainhelpdesk.ErrParticipantRequired)
	}

	return s.conversations.Create(ctx, map[string]any{
		"subject":      strings.TrimSpace(subject),
		"participants": refs(members),
		"messages":     []domainhelpdesk.Message{s.newMessage(userID, body)},
	})
}

// SendMessage appends a message and replaces the conversation with the
// server's canonical copy.
func (s *Service) SendMessage(ctx context.Context, conversationID string, body string) (domainhelpdesk.Conversation, error) {
	if err := s.check(ctx); err != nil {
		return domainhelpdesk.Conversation{}, err
	}
	userID, err := s.requireUser()
	if err != nil {
		return domainhelpdesk.Conversation{}, err
	}
	id, err := parseID(conversationID)
	if err != nil {
		return domainhelpdesk.Conversation{}, err
	}
	body = strings.TrimSpace(body)
	if body == "" {
		return domainhelpdesk.Conversation{}, validation(domainhelpdesk.ErrBodyRequired)
	}

	current, err := s.conversation(ctx, id)
	if err != nil {
		return domainhelpdesk.Conversation{}, err
	}
	messages := append(append([]domainhelpdesk.Message(nil), current.Messages...), s.newMessage(userID, body))
	return s.conversations.Update(ctx, id, map[string]any{"messages": messages})
}

// MarkConversationRead marks messages from other participants as read. It
// is a no-op when nothing is unread.
func (s *Service) MarkConversationRead(ctx context.Context, conversationID string) (domainhelpdesk.Conversation, error) {
	if err := s.check(ctx); err != nil {
		return domainhelpdesk.Conversation{}, err
	}
	userID, err := s.requireUser()
	if err != nil {
		return domainhelpdesk.Conversation{}, err
	}
	id, err := parseID(conversationID)
	if err != nil {
		return domainhelpdesk.Conversation{}, err
	}

	current, err := s.conversation(ctx, id)
	if err != nil {
		return domainhelpdesk.Conversation{}, err
	}
	if current.UnreadFor(userID) == 0 {
		return current, nil
	}
	messages := make([]domainhelpdesk.Message, len(current.Messages))
	for i, msg := range current.Messages {
		if msg.SenderID != userID {
			msg.Read = true
		}
		messages[i] = msg
	}
	return s.conversations.Update(ctx, id, map[string]any{"messages": messages})
}

// UnreadMessages counts unread messages across loaded conversations.
func (s *Service) UnreadMessages() int {
	userID := strings.TrimSpace(s.principal.UserID())
	total := 0
	for _, conv := range s.conversations.Items() {
		total += conv.UnreadFor(userID)
	}
	return total
}

func (s *Service) conversation(ctx context.Context, id string) (domainhelpdesk.Conversation, error) {
	if conv, ok := s.conversations.Get(id); ok {
		return conv, nil
	}
	return s.conversations.Fetch(ctx, id, ports.Query{Populate: conversationPopulate})
}

func (s *Service) newMessage(userID string, body string) domainhelpdesk.Message {
	return domainhelpdesk.Message{
		Body:       body,
		SenderID:   userID,
		SenderName: s.principal.Username(),
		SentAt:     s.now().UTC(),
	}
}
