package commands

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/rs/zerolog"
	"github.com/savaki/apismoke/internal/apiclient"
	"github.com/savaki/apismoke/internal/devserver"
	"github.com/savaki/apismoke/internal/di"
	"github.com/savaki/apismoke/internal/envfile"
	smokeerrors "github.com/savaki/apismoke/internal/errors"
	"github.com/savaki/apismoke/internal/report"
	"github.com/savaki/apismoke/internal/smoke"
	"github.com/urfave/cli/v2"
)

// RunCommand returns the run command that executes the smoke checks
func RunCommand(logger *zerolog.Logger) *cli.Command {
	return &cli.Command{
		Name:    "run",
		Aliases: []string{"r"},
		Usage:   "Run the local API smoke checks",
		Description: `Start the dev server (or attach to one), then exercise the backend API.

Checks, in order:
  POST   /api/telegram/validate     must not expose supabaseAccessToken
  POST   /api/ai/embed              skipped with --skip-ai
  POST   /api/ai/complete           NDJSON stream with meta and done chunks; skipped with --skip-ai
  GET    /api/ai/memory
  DELETE /api/ai/memory             only when embed returned a documentId
  POST   /api/storage/upload-url
  POST   /api/storage/verify-upload only when upload-url returned a path

Any HTTP status >= 400 or contract failure makes the command exit with status 1.

Examples:
  # Start "npm run dev -- --port 3055" in the current directory and run all checks
  apismoke run

  # Reuse a dev server already listening on port 4000
  apismoke run --port 4000 --reuse-server

  # Check a deployed preview without AI endpoints, report as JSON
  apismoke run --base-url https://preview.example.com --skip-ai --format json

  # Fill missing keys from SSM Parameter Store
  apismoke run --ssm-path /dev/miniapp --aws-profile dev`,
		Flags: append([]cli.Flag{
			&cli.IntFlag{
				Name:    "port",
				Aliases: []string{"p"},
				Usage:   "Port for local dev server",
				Value:   devserver.DefaultPort,
				EnvVars: []string{"APISMOKE_PORT"},
			},
			&cli.StringFlag{
				Name:    "base-url",
				Aliases: []string{"u"},
				Usage:   "Existing base URL (when provided, the dev server is not started)",
				EnvVars: []string{"APISMOKE_BASE_URL"},
			},
			&cli.BoolFlag{
				Name:    "reuse-server",
				Usage:   "Use an already running server on --port instead of starting the dev server",
				EnvVars: []string{"APISMOKE_REUSE_SERVER"},
			},
			&cli.StringFlag{
				Name:    "dev-command",
				Usage:   `Dev server shell command; "{port}" is replaced with --port (default: npm run dev -- --port {port})`,
				EnvVars: []string{"APISMOKE_DEV_COMMAND"},
			},
			&cli.StringFlag{
				Name:    "format",
				Aliases: []string{"f"},
				Usage:   "Report format: text, json or yaml",
				Value:   string(report.FormatText),
				EnvVars: []string{"APISMOKE_FORMAT"},
			},
			&cli.DurationFlag{
				Name:    "ready-timeout",
				Usage:   "How long to wait for the server to answer GET /",
				Value:   devserver.DefaultProbe.Timeout,
				EnvVars: []string{"APISMOKE_READY_TIMEOUT"},
			},
			&cli.DurationFlag{
				Name:    "request-timeout",
				Usage:   "Timeout of each API request",
				Value:   apiclient.DefaultTimeout,
				EnvVars: []string{"APISMOKE_REQUEST_TIMEOUT"},
			},
			&cli.DurationFlag{
				Name:    "shutdown-grace",
				Usage:   "How long the dev server gets to exit after each stop signal",
				Value:   devserver.DefaultGracePeriod,
				EnvVars: []string{"APISMOKE_SHUTDOWN_GRACE"},
			},
			&cli.BoolFlag{
				Name:    "verbose",
				Aliases: []string{"v"},
				Usage:   "Enable debug logging",
			},
		}, configFlags()...),
		Before: withLogger(logger),
		Action: runAction,
	}
}

func runAction(c *cli.Context) error {
	ctx := c.Context
	logger := zerolog.Ctx(ctx)
	if c.Bool("verbose") {
		verbose := logger.Level(zerolog.DebugLevel)
		logger = &verbose
		ctx = logger.WithContext(ctx)
	}

	format, err := report.ParseFormat(c.String("format"))
	if err != nil {
		return err
	}

	settings := settingsFromContext(c)
	settings.BaseURL = c.String("base-url")
	settings.ReuseServer = c.Bool("reuse-server")
	settings.ReadyTimeout = c.Duration("ready-timeout")
	settings.RequestTimeout = c.Duration("request-timeout")

	container, err := di.New(settings, di.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("failed to create container: %w", err)
	}

	env, err := di.Get[di.RuntimeEnv](container)
	if err != nil {
		return err
	}

	baseURL := settings.ResolvedBaseURL()

	var server *devserver.Server
	if settings.SpawnServer() {
		server, err = devserver.Start(ctx, devserver.Options{
			Dir:     settings.ProjectRoot,
			Port:    settings.Port,
			Env:     envfile.Environ(os.Environ(), env),
			Command: devCommand(c.String("dev-command"), settings.Port),
			Logger:  logger,
		})
		if err != nil {
			return err
		}
		defer server.Stop(c.Duration("shutdown-grace"))
	}

	probe := devserver.DefaultProbe
	probe.Timeout = settings.ReadyTimeout
	if err := devserver.WaitReady(ctx, baseURL, probe, server.Done()); err != nil {
		return err
	}

	runner, err := di.Get[*smoke.Runner](container)
	if err != nil {
		return err
	}

	result, err := runner.Run(ctx)
	if err != nil {
		return err
	}

	if err := report.Write(c.App.Writer, result, format); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}

	if !result.Passed {
		return fmt.Errorf("%w: %d of %d", smokeerrors.ErrChecksFailed, result.Failures, len(result.Checks))
	}
	return nil
}

// devCommand expands a --dev-command template into a shell invocation; an
// empty template selects the npm default.
func devCommand(template string, port int) []string {
	template = strings.TrimSpace(template)
	if template == "" {
		return nil
	}
	return devserver.ShellCommand(strings.ReplaceAll(template, "{port}", strconv.Itoa(port)))
}
