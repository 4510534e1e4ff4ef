package commands

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/wolfeidau/docsign/internal/apierr"
	"github.com/wolfeidau/docsign/internal/models"
	"github.com/wolfeidau/docsign/internal/session"
	"golang.org/x/term"
)

type LoginCmd struct {
	Email    string `help:"Account email" required:""`
	Password string `help:"Account password (read from stdin when omitted)" env:"DOCSIGN_PASSWORD"`
}

func (l *LoginCmd) Run(ctx context.Context, globals *Globals) error {
	clients, err := globals.clients()
	if err != nil {
		return err
	}

	password := l.Password
	if password == "" {
		password, err = readPassword(globals)
		if err != nil {
			return err
		}
	}

	user, err := clients.Session.Login(ctx, models.Credentials{Email: l.Email, Password: password})
	if err != nil {
		return err
	}

	fmt.Fprintf(globals.out(), "Logged in as %s <%s> (%s)\n", user.Name, user.Email, user.Role)
	return nil
}

// readPassword prompts on a terminal with echo disabled and otherwise reads
// a single line, so passwords can be piped in.
func readPassword(globals *Globals) (string, error) {
	fmt.Fprint(globals.out(), "Password: ")
	defer fmt.Fprintln(globals.out())

	if f, ok := globals.in().(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		data, err := term.ReadPassword(int(f.Fd()))
		if err != nil {
			return "", fmt.Errorf("failed to read password: %w", err)
		}
		return string(data), nil
	}

	line, err := bufio.NewReader(globals.in()).ReadString('\n')
	if err != nil && line == "" {
		return "", fmt.Errorf("failed to read password: %w", err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}

type LogoutCmd struct{}

func (l *LogoutCmd) Run(ctx context.Context, globals *Globals) error {
	clients, err := globals.clients()
	if err != nil {
		return err
	}

	clients.Session.Logout()
	fmt.Fprintln(globals.out(), "Logged out.")
	return nil
}

type WhoamiCmd struct{}

func (w *WhoamiCmd) Run(ctx context.Context, globals *Globals) error {
	clients, err := globals.clients()
	if err != nil {
		return err
	}

	user := clients.Session.CurrentUser().Get()
	if user == nil {
		return apierr.New(apierr.ErrAuthentication, "Not logged in. Run 'docsign login' first.")
	}

	out := globals.out()
	fmt.Fprintf(out, "ID:      %d\n", user.ID)
	fmt.Fprintf(out, "Name:    %s\n", user.Name)
	fmt.Fprintf(out, "Email:   %s\n", user.Email)
	fmt.Fprintf(out, "Role:    %s\n", user.Role)
	if user.Sector != nil {
		fmt.Fprintf(out, "Sector:  %s\n", user.Sector.Name)
	} else if id, ok := user.EffectiveSectorID(); ok {
		fmt.Fprintf(out, "Sector:  %d\n", id)
	}

	token, _ := clients.Session.AccessToken()
	if exp, ok := session.TokenExpiry(token); ok {
		remaining := time.Until(exp).Round(time.Second)
		if remaining > 0 {
			fmt.Fprintf(out, "Token:   expires %s (in %s)\n", formatTime(exp), remaining)
		} else {
			fmt.Fprintf(out, "Token:   expired %s, will refresh on next request\n", formatTime(exp))
		}
	}

	return nil
}
