package console

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"helpdesk/internal/bootstrap/logging"
	domainhelpdesk "helpdesk/internal/domain/helpdesk"
	"helpdesk/internal/errs"
	"helpdesk/internal/ports"
)

const maxShownComments = 4
const maxAuditLines = 8

// Desk is the part of the helpdesk service the console drives.
type Desk interface {
	LoadAll(ctx context.Context) error
	FilterTickets(filter domainhelpdesk.TicketFilter) []domainhelpdesk.Ticket
	TicketStats() domainhelpdesk.TicketStats
	ListComments(ctx context.Context, ticketID string) ([]domainhelpdesk.Comment, error)
	SetTicketStatus(ctx context.Context, id string, status string) (domainhelpdesk.Ticket, error)
	SearchConversations(ctx context.Context, text string) ([]domainhelpdesk.Conversation, error)
	MarkConversationRead(ctx context.Context, id string) (domainhelpdesk.Conversation, error)
	UnreadMessages() int
	UnreadCount() int
	MarkAllNotificationsRead(ctx context.Context) (int, error)
	SelectTicket(id string) bool
	SelectedTicket() (domainhelpdesk.Ticket, bool)
	ClearTicketSelection()
	Reset()
}

type Options struct {
	UserID          string
	StatusFilter    string
	RefreshInterval time.Duration
	// Notices carries backend notices to the status line. May be nil.
	Notices <-chan ports.Notice
}

type view int

const (
	viewTickets view = iota
	viewInbox
)

// statusCycle is the order the filter key walks through; "" shows all.
var statusCycle = []domainhelpdesk.Status{
	"",
	domainhelpdesk.StatusOpen,
	domainhelpdesk.StatusInProgress,
	domainhelpdesk.StatusPending,
	domainhelpdesk.StatusResolved,
	domainhelpdesk.StatusClosed,
}

type model struct {
	ctx             context.Context
	desk            Desk
	userID          string
	refreshInterval time.Duration
	notices         <-chan ports.Notice

	view          view
	statusFilter  domainhelpdesk.Status
	tickets       []domainhelpdesk.Ticket
	conversations []domainhelpdesk.Conversation
	stats         domainhelpdesk.TicketStats
	unreadInbox   int
	unreadNotices int

	// selectedIndex is the cursor row. In the tickets view the selected
	// ticket itself lives in the tickets cache.
	selectedIndex int
	comments      []domainhelpdesk.Comment
	detailFor     string
	hasDetail     bool

	status    string
	auditLogs []string
}

type loadedMsg struct {
	err error
}

type commentsLoadedMsg struct {
	ticketID string
	comments []domainhelpdesk.Comment
	err      error
}

type tickMsg struct{}

type noticeMsg struct {
	notice ports.Notice
}

type actionDoneMsg struct {
	action string
	target string
	result string
	err    error
}

func NewModel(ctx context.Context, desk Desk, options Options) tea.Model {
	interval := options.RefreshInterval
	if interval <= 0 {
		interval = 30 * time.Second
	}
	filter, err := domainhelpdesk.NormalizeStatus(options.StatusFilter)
	if err != nil {
		filter = ""
	}
	return &model{
		ctx:             logging.WithComponent(ctx, "console"),
		desk:            desk,
		userID:          strings.TrimSpace(options.UserID),
		refreshInterval: interval,
		notices:         options.Notices,
		statusFilter:    filter,
		status:          "loading",
	}
}

func (m *model) Init() tea.Cmd {
	return tea.Batch(m.loadCmd(), m.tickCmd(), m.waitNoticeCmd())
}

func (m *model) Update(message tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := message.(type) {
	case tickMsg:
		return m, tea.Batch(m.loadCmd(), m.tickCmd())
	case noticeMsg:
		m.status = string(msg.notice.Level) + ": " + msg.notice.Message
		return m, m.waitNoticeCmd()
	case loadedMsg:
		if errs.IsUnauthorized(msg.err) {
			// The session ended under a running console; drop the previous
			// user's lists instead of showing them.
			m.desk.Reset()
		}
		m.refreshLists()
		if errs.IsUnauthorized(msg.err) {
			m.status = "session expired, run `helpdesk login`"
		} else if msg.err != nil {
			m.status = "refresh failed: " + msg.err.Error()
		} else {
			m.status = fmt.Sprintf("refreshed, %d tickets, %d conversations", len(m.tickets), len(m.conversations))
		}
		return m, m.loadSelectedDetailCmd()
	case commentsLoadedMsg:
		if !m.isCurrentSelectedTicket(msg.ticketID) {
			return m, nil
		}
		if msg.err != nil {
			m.hasDetail = false
			m.status = "comments failed: " + msg.err.Error()
			return m, nil
		}
		m.comments = msg.comments
		m.detailFor = msg.ticketID
		m.hasDetail = true
		return m, nil
	case actionDoneMsg:
		if msg.err != nil {
			m.status = fmt.Sprintf("%s failed: %v", msg.action, msg.err)
			m.appendAuditLog(msg.action, msg.target, "", msg.err)
		} else {
			m.status = fmt.Sprintf("%s done: %s", msg.action, msg.result)
			m.appendAuditLog(msg.action, msg.target, msg.result, nil)
		}
		m.refreshLists()
		return m, m.loadSelectedDetailCmd()
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		case "g":
			m.status = "refreshing"
			return m, m.loadCmd()
		case "tab":
			if m.view == viewTickets {
				m.view = viewInbox
			} else {
				m.view = viewTickets
			}
			m.selectedIndex = 0
			m.hasDetail = false
			m.syncSelection()
			return m, m.loadSelectedDetailCmd()
		case "up", "k":
			return m, m.moveCursor(-1)
		case "down", "j":
			return m, m.moveCursor(1)
		case "f":
			m.statusFilter = nextFilter(m.statusFilter)
			m.refreshLists()
			return m, m.loadSelectedDetailCmd()
		case "s":
			return m, m.advanceStatusCmd()
		case "x":
			return m, m.setStatusCmd("close", domainhelpdesk.StatusClosed)
		case "r":
			return m, m.markReadCmd()
		case "n":
			return m, m.markNotificationsCmd()
		}
	}
	return m, nil
}

func (m *model) View() string {
	titleStyle := lipgloss.NewStyle().Bold(true)
	sectionStyle := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("63"))
	dimStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	selectedStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("229")).Background(lipgloss.Color("62"))

	var builder strings.Builder
	builder.WriteString(titleStyle.Render("Helpdesk Console"))
	builder.WriteString("\n")
	builder.WriteString(dimStyle.Render(fmt.Sprintf(
		"user=%s filter=%s tickets=%d active=%d unassigned=%d inbox_unread=%d notifications_unread=%d refresh=%s",
		firstNonEmpty(m.userID, "-"),
		firstNonEmpty(string(m.statusFilter), "all"),
		m.stats.Total,
		m.stats.Active,
		m.stats.Unassigned,
		m.unreadInbox,
		m.unreadNotices,
		m.refreshInterval,
	)))
	builder.WriteString("\n\n")

	if m.view == viewTickets {
		builder.WriteString(sectionStyle.Render("Tickets"))
		builder.WriteString("\n")
		if len(m.tickets) == 0 {
			builder.WriteString(dimStyle.Render("- no tickets"))
			builder.WriteString("\n\n")
		} else {
			for index, ticket := range m.tickets {
				line := fmt.Sprintf("%s [%s/%s] assignee=%s title=%s",
					ticket.DocumentID,
					firstNonEmpty(string(ticket.Status), "open"),
					firstNonEmpty(string(ticket.Priority), "-"),
					assigneeName(ticket),
					ticket.Title,
				)
				writeRow(&builder, selectedStyle, index == m.selectedIndex, line)
			}
			builder.WriteString("\n")
		}

		builder.WriteString(sectionStyle.Render("Detail"))
		builder.WriteString("\n")
		if selected, ok := m.selectedTicket(); !ok || !m.hasDetail || m.detailFor != selected.DocumentID {
			builder.WriteString(dimStyle.Render("- no detail"))
			builder.WriteString("\n\n")
		} else {
			builder.WriteString(fmt.Sprintf("Ticket: %s\n", selected.DocumentID))
			builder.WriteString(fmt.Sprintf("Status: %s\n", firstNonEmpty(string(selected.Status), "open")))
			builder.WriteString(fmt.Sprintf("Priority: %s\n", firstNonEmpty(string(selected.Priority), "-")))
			builder.WriteString(fmt.Sprintf("Assignee: %s\n", assigneeName(selected)))
			builder.WriteString(fmt.Sprintf("Description: %s\n", firstNonEmptyLine(selected.Description)))
			builder.WriteString("\nRecent Comments:\n")
			if len(m.comments) == 0 {
				builder.WriteString("- none\n")
			} else {
				start := len(m.comments) - maxShownComments
				if start < 0 {
					start = 0
				}
				for _, comment := range m.comments[start:] {
					author := "-"
					if comment.Author != nil {
						author = firstNonEmpty(comment.Author.Username, comment.Author.DocumentID, "-")
					}
					builder.WriteString(fmt.Sprintf("- %s %s\n", author, firstNonEmptyLine(comment.Body)))
				}
			}
			builder.WriteString("\n")
		}
	} else {
		builder.WriteString(sectionStyle.Render("Inbox"))
		builder.WriteString("\n")
		if len(m.conversations) == 0 {
			builder.WriteString(dimStyle.Render("- no conversations"))
			builder.WriteString("\n\n")
		} else {
			for index, conv := range m.conversations {
				preview := "-"
				if last, ok := conv.LastMessage(); ok {
					preview = firstNonEmpty(last.SenderName, last.SenderID) + ": " + firstNonEmptyLine(last.Body)
				}
				line := fmt.Sprintf("%s unread=%d subject=%s last=%s",
					conv.DocumentID,
					conv.UnreadFor(m.userID),
					firstNonEmpty(conv.Subject, "-"),
					preview,
				)
				writeRow(&builder, selectedStyle, index == m.selectedIndex, line)
			}
			builder.WriteString("\n")
		}
	}

	builder.WriteString(sectionStyle.Render("Status"))
	builder.WriteString("\n")
	builder.WriteString("- " + firstNonEmpty(m.status, "ready"))
	builder.WriteString("\n\n")

	builder.WriteString(sectionStyle.Render("Actions"))
	builder.WriteString("\n")
	builder.WriteString("- s advance ticket status\n")
	builder.WriteString("- x close ticket\n")
	builder.WriteString("- f cycle status filter\n")
	builder.WriteString("- r mark conversation read\n")
	builder.WriteString("- n mark notifications read\n")
	builder.WriteString("\n")

	builder.WriteString(sectionStyle.Render("Audit Log"))
	builder.WriteString("\n")
	if len(m.auditLogs) == 0 {
		builder.WriteString(dimStyle.Render("- no actions"))
		builder.WriteString("\n\n")
	} else {
		for _, line := range m.auditLogs {
			builder.WriteString("- " + line)
			builder.WriteString("\n")
		}
		builder.WriteString("\n")
	}

	builder.WriteString(dimStyle.Render("Keys: up/k down/j move  tab tickets/inbox  g refresh  s/x/f/r/n actions  q quit"))
	return builder.String()
}

func writeRow(builder *strings.Builder, selectedStyle lipgloss.Style, selected bool, line string) {
	if selected {
		builder.WriteString(selectedStyle.Render("> " + line))
	} else {
		builder.WriteString("  " + line)
	}
	builder.WriteString("\n")
}

func (m *model) tickCmd() tea.Cmd {
	return tea.Tick(m.refreshInterval, func(time.Time) tea.Msg {
		return tickMsg{}
	})
}

func (m *model) waitNoticeCmd() tea.Cmd {
	if m.notices == nil {
		return nil
	}
	notices := m.notices
	return func() tea.Msg {
		notice, ok := <-notices
		if !ok {
			return nil
		}
		return noticeMsg{notice: notice}
	}
}

func (m *model) loadCmd() tea.Cmd {
	return func() tea.Msg {
		return loadedMsg{err: m.desk.LoadAll(m.ctx)}
	}
}

// refreshLists re-reads the caches; it performs no remote calls.
func (m *model) refreshLists() {
	m.tickets = m.desk.FilterTickets(domainhelpdesk.TicketFilter{Status: m.statusFilter})
	m.stats = m.desk.TicketStats()
	conversations, err := m.desk.SearchConversations(m.ctx, "")
	if err == nil {
		m.conversations = conversations
	}
	m.unreadInbox = m.desk.UnreadMessages()
	m.unreadNotices = m.desk.UnreadCount()

	m.clampCursor()
	m.syncSelection()
}

func (m *model) clampCursor() {
	if n := m.listLen(); m.selectedIndex >= n {
		m.selectedIndex = n - 1
	}
	if m.selectedIndex < 0 {
		m.selectedIndex = 0
	}
}

// syncSelection reconciles the cursor with the tickets cache selection. A
// selected ticket that is still listed keeps the cursor on its row;
// otherwise the ticket under the cursor becomes the selection.
func (m *model) syncSelection() {
	if m.view != viewTickets || len(m.tickets) == 0 {
		m.desk.ClearTicketSelection()
		return
	}
	if selected, ok := m.desk.SelectedTicket(); ok {
		for index, ticket := range m.tickets {
			if ticket.DocumentID == selected.DocumentID {
				m.selectedIndex = index
				return
			}
		}
	}
	m.clampCursor()
	m.desk.SelectTicket(m.tickets[m.selectedIndex].DocumentID)
}

func (m *model) moveCursor(delta int) tea.Cmd {
	next := m.selectedIndex + delta
	if next < 0 || next >= m.listLen() {
		return nil
	}
	m.selectedIndex = next
	if m.view == viewTickets {
		m.desk.SelectTicket(m.tickets[next].DocumentID)
	}
	return m.loadSelectedDetailCmd()
}

func (m *model) listLen() int {
	if m.view == viewInbox {
		return len(m.conversations)
	}
	return len(m.tickets)
}

func (m *model) loadSelectedDetailCmd() tea.Cmd {
	if m.view != viewTickets {
		return nil
	}
	selected, ok := m.selectedTicket()
	if !ok {
		m.hasDetail = false
		return nil
	}
	ticketID := selected.DocumentID
	return func() tea.Msg {
		comments, err := m.desk.ListComments(m.ctx, ticketID)
		return commentsLoadedMsg{ticketID: ticketID, comments: comments, err: err}
	}
}

func (m *model) advanceStatusCmd() tea.Cmd {
	selected, ok := m.selectedTicket()
	if !ok {
		m.status = "no ticket selected"
		return nil
	}
	next, ok := nextStatus(selected.Status)
	if !ok {
		m.status = fmt.Sprintf("ticket %s is %s", selected.DocumentID, selected.Status)
		return nil
	}
	return m.setStatusCmd("status", next)
}

func (m *model) setStatusCmd(action string, status domainhelpdesk.Status) tea.Cmd {
	selected, ok := m.selectedTicket()
	if !ok {
		m.status = "no ticket selected"
		return nil
	}
	if selected.Status == status {
		m.status = fmt.Sprintf("ticket %s is already %s", selected.DocumentID, status)
		return nil
	}
	m.status = action + " in progress"
	ticketID := selected.DocumentID
	return func() tea.Msg {
		updated, err := m.desk.SetTicketStatus(m.ctx, ticketID, string(status))
		if err != nil {
			return actionDoneMsg{action: action, target: ticketID, err: err}
		}
		return actionDoneMsg{action: action, target: ticketID, result: string(updated.Status)}
	}
}

func (m *model) markReadCmd() tea.Cmd {
	if m.view != viewInbox {
		m.status = "switch to the inbox to mark conversations read"
		return nil
	}
	if m.selectedIndex < 0 || m.selectedIndex >= len(m.conversations) {
		m.status = "no conversation selected"
		return nil
	}
	conv := m.conversations[m.selectedIndex]
	return func() tea.Msg {
		updated, err := m.desk.MarkConversationRead(m.ctx, conv.DocumentID)
		if err != nil {
			return actionDoneMsg{action: "read", target: conv.DocumentID, err: err}
		}
		return actionDoneMsg{action: "read", target: conv.DocumentID, result: fmt.Sprintf("unread=%d", updated.UnreadFor(m.userID))}
	}
}

func (m *model) markNotificationsCmd() tea.Cmd {
	if m.unreadNotices == 0 {
		m.status = "no unread notifications"
		return nil
	}
	return func() tea.Msg {
		marked, err := m.desk.MarkAllNotificationsRead(m.ctx)
		if err != nil {
			return actionDoneMsg{action: "notifications", target: "all", err: fmt.Errorf("marked %d: %w", marked, err)}
		}
		return actionDoneMsg{action: "notifications", target: "all", result: fmt.Sprintf("marked %d", marked)}
	}
}

func (m *model) selectedTicket() (domainhelpdesk.Ticket, bool) {
	if m.view != viewTickets {
		return domainhelpdesk.Ticket{}, false
	}
	return m.desk.SelectedTicket()
}

func (m *model) isCurrentSelectedTicket(ticketID string) bool {
	selected, ok := m.selectedTicket()
	if !ok {
		return false
	}
	return selected.DocumentID == strings.TrimSpace(ticketID)
}

func (m *model) appendAuditLog(action string, target string, result string, opErr error) {
	outcome := strings.TrimSpace(result)
	if opErr != nil {
		outcome = "error: " + opErr.Error()
	}
	if outcome == "" {
		outcome = "ok"
	}

	timestamp := time.Now().UTC().Format(time.RFC3339)
	line := fmt.Sprintf("%s target=%s action=%s result=%s", timestamp, target, action, outcome)
	m.auditLogs = append([]string{line}, m.auditLogs...)
	if len(m.auditLogs) > maxAuditLines {
		m.auditLogs = m.auditLogs[:maxAuditLines]
	}

	logging.Info(m.ctx, "console action",
		slog.String("target", target),
		slog.String("action", action),
		slog.String("result", outcome),
	)
}

// nextStatus is the status the advance key moves a ticket to.
func nextStatus(current domainhelpdesk.Status) (domainhelpdesk.Status, bool) {
	switch current {
	case "", domainhelpdesk.StatusOpen, domainhelpdesk.StatusPending:
		return domainhelpdesk.StatusInProgress, true
	case domainhelpdesk.StatusInProgress:
		return domainhelpdesk.StatusResolved, true
	case domainhelpdesk.StatusResolved:
		return domainhelpdesk.StatusClosed, true
	default:
		return "", false
	}
}

func nextFilter(current domainhelpdesk.Status) domainhelpdesk.Status {
	for i, status := range statusCycle {
		if status == current {
			return statusCycle[(i+1)%len(statusCycle)]
		}
	}
	return ""
}

func assigneeName(ticket domainhelpdesk.Ticket) string {
	if ticket.Assignee == nil {
		return "-"
	}
	return firstNonEmpty(ticket.Assignee.Name, ticket.Assignee.DocumentID, "-")
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		normalized := strings.TrimSpace(value)
		if normalized != "" {
			return normalized
		}
	}
	return ""
}

func firstNonEmptyLine(body string) string {
	for _, raw := range strings.Split(body, "\n") {
		line := strings.TrimSpace(raw)
		if line != "" {
			return line
		}
	}
	return "empty"
}
