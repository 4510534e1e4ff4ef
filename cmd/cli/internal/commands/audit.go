package commands

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/wolfeidau/docsign/internal/client"
	"github.com/wolfeidau/docsign/internal/models"
)

type AuditCmd struct {
	EntityID   int64  `arg:"" help:"Entity ID, e.g. a document ID"`
	EntityType string `help:"Entity type" default:"Document" enum:"Document,DocumentSignatory"`
}

func (a *AuditCmd) Run(ctx context.Context, globals *Globals) error {
	clients, err := globals.loggedInClients()
	if err != nil {
		return err
	}

	return printAuditLogs(ctx, globals.out(), clients, a.EntityType, a.EntityID)
}

func printAuditLogs(ctx context.Context, out io.Writer, clients *client.Clients, entityType string, entityID int64) error {
	logs, err := clients.AuditLogs.List(ctx, entityType, entityID)
	if err != nil {
		return fmt.Errorf("failed to list audit logs: %w", err)
	}

	if len(logs) == 0 {
		fmt.Fprintln(out, "No audit entries.")
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "TIME\tUSER\tACTION\tDETAILS\t")
	for _, entry := range logs {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t\n", formatTime(entry.Timestamp), auditUser(entry), entry.Action, orDash(string(entry.Details)))
	}
	return w.Flush()
}

func auditUser(entry *models.AuditLog) string {
	switch {
	case entry.UserName != "":
		return entry.UserName
	case entry.UserID != nil:
		return fmt.Sprintf("User ID: %d", *entry.UserID)
	default:
		return "system"
	}
}
