package helpdesk

import (
	"fmt"
	"strings"
)

type Status string

const (
	StatusOpen       Status = "open"
	StatusInProgress Status = "in-progress"
	StatusPending    Status = "pending"
	StatusResolved   Status = "resolved"
	StatusClosed     Status = "closed"
)

type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
	PriorityUrgent Priority = "urgent"
)

var allowedStatuses = map[Status]struct{}{
	StatusOpen:       {},
	StatusInProgress: {},
	StatusPending:    {},
	StatusResolved:   {},
	StatusClosed:     {},
}

var allowedPriorities = map[Priority]struct{}{
	PriorityLow:    {},
	PriorityMedium: {},
	PriorityHigh:   {},
	PriorityUrgent: {},
}

// NormalizeStatus accepts "In Progress", "in_progress" and similar spellings.
// An empty input yields "".
func NormalizeStatus(raw string) (Status, error) {
	value := normalizeToken(raw)
	if value == "" {
		return "", nil
	}
	status := Status(value)
	if _, ok := allowedStatuses[status]; !ok {
		return "", fmt.Errorf("%w: %q", ErrInvalidStatus, raw)
	}
	return status, nil
}

func NormalizePriority(raw string) (Priority, error) {
	value := normalizeToken(raw)
	if value == "" {
		return "", nil
	}
	priority := Priority(value)
	if _, ok := allowedPriorities[priority]; !ok {
		return "", fmt.Errorf("%w: %q", ErrInvalidPriority, raw)
	}
	return priority, nil
}

// IsActive reports whether a ticket still needs agent attention.
func (s Status) IsActive() bool {
	return s == StatusOpen || s == StatusInProgress || s == StatusPending || s == ""
}

func (p Priority) Rank() int {
	switch p {
	case PriorityUrgent:
		return 4
	case PriorityHigh:
		return 3
	case PriorityMedium:
		return 2
	case PriorityLow:
		return 1
	default:
		return 0
	}
}

// TicketDraft is the caller-validated input of a new ticket.
type TicketDraft struct {
	Title          string
	Description    string
	Priority       string
	Type           string
	AssigneeID     string
	ClientID       string
	OrganisationID string
}

// Validate checks required fields and returns the normalized priority.
func (d TicketDraft) Validate() (Priority, error) {
	if strings.TrimSpace(d.Title) == "" {
		return "", ErrTitleRequired
	}
	if strings.TrimSpace(d.Description) == "" {
		return "", ErrDescriptionRequired
	}
	priority, err := NormalizePriority(d.Priority)
	if err != nil {
		return "", err
	}
	if priority == "" {
		priority = PriorityMedium
	}
	return priority, nil
}

func normalizeToken(raw string) string {
	value := strings.ToLower(strings.TrimSpace(raw))
	value = strings.ReplaceAll(value, "_", "-")
	value = strings.Join(strings.Fields(value), "-")
	return value
}
