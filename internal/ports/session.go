package ports

// Principal exposes the authenticated identity to collaborators that need
// it without depending on the session implementation.
type Principal interface {
	Token() string
	UserID() string
	Username() string
}
