package commands

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/wolfeidau/docsign/internal/realtime"
)

type NotificationsCmd struct {
	Timeout time.Duration `help:"Stop after this long (0 runs until interrupted)" default:"0"`
}

func (n *NotificationsCmd) Run(ctx context.Context, globals *Globals) error {
	clients, err := globals.loggedInClients()
	if err != nil {
		return err
	}

	if n.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, n.Timeout)
		defer cancel()
	}

	out := globals.out()
	fmt.Fprintln(out, "Listening for notifications (press Ctrl+C to stop)...")

	err = clients.Realtime.Run(ctx, func(ev realtime.Event) {
		ts := time.Now().Format("15:04:05")
		switch {
		case ev.Notification != nil:
			fmt.Fprintf(out, "[%s] %s: %s\n", ts, ev.Notification.Title, ev.Notification.Message)
		case ev.Document != nil:
			fmt.Fprintf(out, "[%s] document %d is now %s\n", ts, ev.Document.DocumentID, ev.Document.Status)
		default:
			fmt.Fprintf(out, "[%s] %s %s\n", ts, ev.Name, string(ev.Data))
		}
	})
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return nil
	}
	return err
}
