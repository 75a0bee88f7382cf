package helpdesk

import "strings"

// Unassigned as TicketFilter.AssigneeID selects tickets without an assignee.
const Unassigned = "-"

type TicketFilter struct {
	Status     Status
	Priority   Priority
	AssigneeID string
	Query      string
}

func (f TicketFilter) IsZero() bool {
	return f.Status == "" && f.Priority == "" && strings.TrimSpace(f.AssigneeID) == "" && strings.TrimSpace(f.Query) == ""
}

func (f TicketFilter) Matches(t Ticket) bool {
	if f.Status != "" && t.Status != f.Status {
		return false
	}
	if f.Priority != "" && t.Priority != f.Priority {
		return false
	}
	switch assignee := strings.TrimSpace(f.AssigneeID); assignee {
	case "":
	case Unassigned:
		if t.AssigneeID() != "" {
			return false
		}
	default:
		if t.AssigneeID() != assignee {
			return false
		}
	}
	return MatchesText(f.Query, TicketText(t)...)
}

// FilterTickets keeps the input order.
func FilterTickets(items []Ticket, filter TicketFilter) []Ticket {
	out := make([]Ticket, 0, len(items))
	for _, item := range items {
		if filter.Matches(item) {
			out = append(out, item)
		}
	}
	return out
}

type TicketStats struct {
	Total      int
	Active     int
	Resolved   int
	Unassigned int
	ByStatus   map[Status]int
	ByPriority map[Priority]int
}

// ComputeTicketStats aggregates the dashboard counters. Resolved counts
// both resolved and closed tickets.
func ComputeTicketStats(items []Ticket) TicketStats {
	stats := TicketStats{
		ByStatus:   make(map[Status]int),
		ByPriority: make(map[Priority]int),
	}
	for _, t := range items {
		stats.Total++
		stats.ByStatus[t.Status]++
		stats.ByPriority[t.Priority]++
		if t.Status.IsActive() {
			stats.Active++
		} else {
			stats.Resolved++
		}
		if t.AssigneeID() == "" {
			stats.Unassigned++
		}
	}
	return stats
}
