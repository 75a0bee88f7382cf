package helpdesk

import (
	"fmt"
	"strings"
)

// ParseDocumentID trims id and rejects values that cannot be used as a URL
// path segment.
func ParseDocumentID(id string) (string, error) {
	trimmed := strings.TrimSpace(id)
	if trimmed == "" {
		return "", ErrDocumentIDRequired
	}
	if strings.ContainsAny(trimmed, "/?# \t\n") {
		return "", fmt.Errorf("%w: %q", ErrInvalidDocumentID, id)
	}
	return trimmed, nil
}
