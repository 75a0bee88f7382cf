package helpdesk

import (
	"context"
	"errors"

	domainhelpdesk "helpdesk/internal/domain/helpdesk"
	"helpdesk/internal/ports"
	"helpdesk/internal/usecase/rescache"
)

func notificationOptions(userID func() string, notifier ports.Notifier) rescache.Options[domainhelpdesk.Notification] {
	return rescache.Options[domainhelpdesk.Notification]{
		Name:   "notifications",
		Noun:   "notification",
		Insert: rescache.Prepend,
		Search: rescache.SearchLocal,
		Text:   domainhelpdesk.NotificationText,
		Scope: func(uid string) ports.Query {
			return ports.Query{
				Filters: []ports.Filter{ports.Eq("recipient.documentId", uid)},
				Sort:    []string{"createdAt:desc"},
			}
		},
		UserID:   userID,
		Notifier: notifier,
	}
}

func (s *Service) LoadNotifications(ctx context.Context) error {
	if err := s.check(ctx); err != nil {
		return err
	}
	return s.notifications.Load(ctx)
}

func (s *Service) MarkNotificationRead(ctx context.Context, id string) (domainhelpdesk.Notification, error) {
	if err := s.check(ctx); err != nil {
		return domainhelpdesk.Notification{}, err
	}
	notificationID, err := parseID(id)
	if err != nil {
		return domainhelpdesk.Notification{}, err
	}
	if current, ok := s.notifications.Get(notificationID); ok && current.Read {
		return current, nil
	}
	return s.notifications.Update(ctx, notificationID, map[string]any{"read": true})
}

// MarkAllNotificationsRead updates every unread loaded notification. It
// keeps going after a failure and returns the joined errors.
func (s *Service) MarkAllNotificationsRead(ctx context.Context) (int, error) {
	if err := s.check(ctx); err != nil {
		return 0, err
	}
	marked := 0
	var failures []error
	for _, n := range s.notifications.Items() {
		if n.Read {
			continue
		}
		if _, err := s.notifications.Update(ctx, n.DocumentID, map[string]any{"read": true}); err != nil {
			failures = append(failures, err)
			continue
		}
		marked++
	}
	return marked, errors.Join(failures...)
}

func (s *Service) UnreadCount() int {
	count := 0
	for _, n := range s.notifications.Items() {
		if !n.Read {
			count++
		}
	}
	return count
}
