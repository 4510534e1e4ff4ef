package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alecthomas/kong"
	"github.com/rs/zerolog/log"
	"github.com/wolfeidau/docsign/cmd/cli/internal/commands"
	"github.com/wolfeidau/docsign/internal/apierr"
	"github.com/wolfeidau/docsign/internal/logger"
	"github.com/wolfeidau/docsign/internal/telemetry"
)

var (
	version = "dev"
	cli     struct {
		Login         commands.LoginCmd         `cmd:"" help:"Log in and store the session"`
		Logout        commands.LogoutCmd        `cmd:"" help:"Log out and clear the stored session"`
		Whoami        commands.WhoamiCmd        `cmd:"" help:"Show the logged in user"`
		Documents     commands.DocumentsCmd     `cmd:"" aliases:"docs" help:"Manage and sign documents"`
		Audit         commands.AuditCmd         `cmd:"" help:"Show the audit trail of an entity"`
		Users         commands.UsersCmd         `cmd:"" help:"Manage users (admin)"`
		Sectors       commands.SectorsCmd       `cmd:"" help:"Manage sectors (admin)"`
		Notifications commands.NotificationsCmd `cmd:"" help:"Stream realtime notifications"`

		Debug      bool   `help:"Enable debug mode."`
		Server     string `help:"Server URL (overrides the config file)" env:"DOCSIGN_SERVER"`
		Config     string `help:"Config file (default ~/.docsign/config.yaml)" env:"DOCSIGN_CONFIG" type:"path"`
		SessionDir string `help:"Session directory (default ~/.docsign)" env:"DOCSIGN_SESSION_DIR" type:"path"`
		Telemetry  bool   `help:"Export traces and metrics over OTLP." env:"DOCSIGN_TELEMETRY"`
		Version    kong.VersionFlag
	}
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cmd := kong.Parse(&cli,
		kong.Name("docsign"),
		kong.Description("Document signing client."),
		kong.Vars{
			"version": version,
		},
		kong.BindTo(ctx, (*context.Context)(nil)))

	log.Logger = logger.Setup(cli.Debug)

	globals := &commands.Globals{
		Debug:      cli.Debug,
		Version:    version,
		Server:     cli.Server,
		Config:     cli.Config,
		SessionDir: cli.SessionDir,
		Telemetry:  cli.Telemetry,
	}

	if shutdown := setupTelemetry(ctx, globals); shutdown != nil {
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := shutdown(shutdownCtx); err != nil {
				log.Warn().Err(err).Msg("Failed to shutdown telemetry")
			}
		}()
	}

	err := cmd.Run(globals)
	if err != nil {
		log.Debug().Err(err).Msg("command failed")
		fmt.Fprintln(os.Stderr, "Error:", apierr.UserMessage(err))
		if commands.IsAuthError(err) {
			os.Exit(2)
		}
		os.Exit(1)
	}
}

func setupTelemetry(ctx context.Context, globals *commands.Globals) func(context.Context) error {
	cfg, err := globals.LoadConfig()
	if err != nil || !cfg.Telemetry.Enabled {
		return nil
	}

	shutdown, err := telemetry.InitTelemetry(ctx, telemetry.Options{
		ServiceName: cfg.Telemetry.ServiceName,
		Version:     globals.Version,
		ServerURL:   cfg.ServerURL,
		SampleRatio: cfg.Telemetry.SampleRatio,
	})
	if err != nil {
		log.Warn().Err(err).Msg("Failed to initialize telemetry, continuing without metrics")
		return nil
	}
	return shutdown
}
