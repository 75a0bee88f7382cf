package cmd

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	domainhelpdesk "helpdesk/internal/domain/helpdesk"
	"helpdesk/internal/errs"
)

func writeOut(cmd *cobra.Command, what string, format string, args ...any) error {
	if _, err := fmt.Fprintf(cmd.OutOrStdout(), format, args...); err != nil {
		return errs.Wrapf(err, "write %s output", what)
	}
	return nil
}

func resolveBody(cmd *cobra.Command, required bool) (string, error) {
	inlineBody, _ := cmd.Flags().GetString("body")
	bodyFile, _ := cmd.Flags().GetString("body-file")

	if strings.TrimSpace(inlineBody) != "" && strings.TrimSpace(bodyFile) != "" {
		return "", errors.New("body and body-file are mutually exclusive")
	}

	if strings.TrimSpace(bodyFile) != "" {
		raw, err := os.ReadFile(bodyFile)
		if err != nil {
			return "", errs.Wrapf(err, "read body file %q", bodyFile)
		}
		inlineBody = string(raw)
	}

	if required && strings.TrimSpace(inlineBody) == "" {
		return "", errors.New("body is required (set --body or --body-file)")
	}
	return inlineBody, nil
}

// optionalString returns nil when the flag was not given.
func optionalString(cmd *cobra.Command, name string) *string {
	if !cmd.Flags().Changed(name) {
		return nil
	}
	value, _ := cmd.Flags().GetString(name)
	return &value
}

func ticketLine(t domainhelpdesk.Ticket) string {
	assignee := "-"
	if t.Assignee != nil {
		assignee = firstNonEmpty(t.Assignee.Name, t.Assignee.DocumentID)
	}
	return fmt.Sprintf("%s status=%s priority=%s assignee=%s title=%s\n", t.DocumentID, t.Status, t.Priority, assignee, t.Title)
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		if strings.TrimSpace(value) != "" {
			return value
		}
	}
	return ""
}

func formatTime(value time.Time) string {
	if value.IsZero() {
		return "-"
	}
	return value.Local().Format(time.DateTime)
}
