package helpdesk

import "time"

// Ref is a relation to another record by document id.
type Ref struct {
	DocumentID string `json:"documentId"`
}

type Role struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

type User struct {
	ID         int    `json:"id,omitempty"`
	DocumentID string `json:"documentId"`
	Username   string `json:"username"`
	Email      string `json:"email,omitempty"`
	Role       *Role  `json:"role,omitempty"`
}

func (u User) GetDocumentID() string { return u.DocumentID }

// RoleName returns the role type, or "" when the role was not populated.
func (u User) RoleName() string {
	if u.Role == nil {
		return ""
	}
	if u.Role.Type != "" {
		return u.Role.Type
	}
	return u.Role.Name
}

type Organisation struct {
	ID         int    `json:"id,omitempty"`
	DocumentID string `json:"documentId"`
	Name       string `json:"name"`
}

func (o Organisation) GetDocumentID() string { return o.DocumentID }

type Agent struct {
	ID           int           `json:"id,omitempty"`
	DocumentID   string        `json:"documentId"`
	Name         string        `json:"name"`
	Email        string        `json:"email,omitempty"`
	Active       bool          `json:"active"`
	User         *Ref          `json:"user,omitempty"`
	Organisation *Organisation `json:"organisation,omitempty"`
}

func (a Agent) GetDocumentID() string { return a.DocumentID }

type Ticket struct {
	ID           int           `json:"id,omitempty"`
	DocumentID   string        `json:"documentId"`
	Title        string        `json:"title"`
	Description  string        `json:"description"`
	Priority     Priority      `json:"priority"`
	Status       Status        `json:"status"`
	Type         string        `json:"type,omitempty"`
	Assignee     *Agent        `json:"assignee,omitempty"`
	Client       *User         `json:"client,omitempty"`
	Organisation *Organisation `json:"organisation,omitempty"`
	CreatedAt    time.Time     `json:"createdAt"`
	UpdatedAt    time.Time     `json:"updatedAt"`
}

func (t Ticket) GetDocumentID() string { return t.DocumentID }

func (t Ticket) AssigneeID() string {
	if t.Assignee == nil {
		return ""
	}
	return t.Assignee.DocumentID
}

type Comment struct {
	ID         int       `json:"id,omitempty"`
	DocumentID string    `json:"documentId"`
	Body       string    `json:"body"`
	Ticket     *Ref      `json:"ticket,omitempty"`
	Author     *User     `json:"author,omitempty"`
	CreatedAt  time.Time `json:"createdAt"`
}

func (c Comment) GetDocumentID() string { return c.DocumentID }

type Activity struct {
	ID         int       `json:"id,omitempty"`
	DocumentID string    `json:"documentId"`
	Action     string    `json:"action"`
	Detail     string    `json:"detail,omitempty"`
	Ticket     *Ref      `json:"ticket,omitempty"`
	Actor      *Ref      `json:"actor,omitempty"`
	CreatedAt  time.Time `json:"createdAt"`
}

func (a Activity) GetDocumentID() string { return a.DocumentID }

type Message struct {
	Body       string    `json:"body"`
	SenderID   string    `json:"senderId"`
	SenderName string    `json:"senderName"`
	SentAt     time.Time `json:"sentAt"`
	Read       bool      `json:"read"`
}

type Conversation struct {
	ID           int       `json:"id,omitempty"`
	DocumentID   string    `json:"documentId"`
	Subject      string    `json:"subject,omitempty"`
	Participants []User    `json:"participants"`
	Messages     []Message `json:"messages"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

func (c Conversation) GetDocumentID() string { return c.DocumentID }

// UnreadFor counts messages not sent by userID that are still unread.
func (c Conversation) UnreadFor(userID string) int {
	count := 0
	for _, msg := range c.Messages {
		if !msg.Read && msg.SenderID != userID {
			count++
		}
	}
	return count
}

func (c Conversation) LastMessage() (Message, bool) {
	if len(c.Messages) == 0 {
		return Message{}, false
	}
	return c.Messages[len(c.Messages)-1], true
}

type KnowledgeBase struct {
	ID         int       `json:"id,omitempty"`
	DocumentID string    `json:"documentId"`
	Title      string    `json:"title"`
	Content    string    `json:"content"`
	Category   string    `json:"category,omitempty"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

func (k KnowledgeBase) GetDocumentID() string { return k.DocumentID }

type Notification struct {
	ID         int       `json:"id,omitempty"`
	DocumentID string    `json:"documentId"`
	Title      string    `json:"title"`
	Message    string    `json:"message"`
	Read       bool      `json:"read"`
	Recipient  *Ref      `json:"recipient,omitempty"`
	CreatedAt  time.Time `json:"createdAt"`
}

func (n Notification) GetDocumentID() string { return n.DocumentID }
