package commands

import (
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/savaki/apismoke/internal/di"
	"github.com/savaki/apismoke/internal/envfile"
	"github.com/savaki/apismoke/internal/initdata"
	"github.com/urfave/cli/v2"
)

// InitDataCommand returns the command that prints signed Mini-App init data
func InitDataCommand(logger *zerolog.Logger) *cli.Command {
	return &cli.Command{
		Name:  "init-data",
		Usage: "Print init data signed with TELEGRAM_BOT_TOKEN",
		Description: `Sign init data for the local smoke user the same way a smoke run does, for
use with curl or an API client.

Examples:
  # Print the Authorization header value
  apismoke init-data --header

  # Call an endpoint by hand
  curl -H "Authorization: $(apismoke init-data --header)" http://localhost:3055/api/ai/memory`,
		Flags: append([]cli.Flag{
			&cli.BoolFlag{
				Name:  "header",
				Usage: "Print the full Authorization header value (tma <init data>)",
			},
			&cli.Int64Flag{
				Name:  "user-id",
				Usage: "Telegram user id",
				Value: initdata.LocalUser.ID,
			},
			&cli.StringFlag{
				Name:  "first-name",
				Usage: "Telegram user first name",
				Value: initdata.LocalUser.FirstName,
			},
			&cli.StringFlag{
				Name:  "username",
				Usage: "Telegram username",
				Value: initdata.LocalUser.Username,
			},
		}, configFlags()...),
		Before: withLogger(logger),
		Action: initDataAction,
	}
}

// VerifyInitDataCommand returns the command that checks init data against the bot token
func VerifyInitDataCommand(logger *zerolog.Logger) *cli.Command {
	return &cli.Command{
		Name:      "verify-init-data",
		Usage:     "Verify init data against TELEGRAM_BOT_TOKEN",
		ArgsUsage: "<init data | tma init data>",
		Flags: append([]cli.Flag{
			&cli.DurationFlag{
				Name:  "max-age",
				Usage: "Reject init data older than this (0 disables the check)",
			},
		}, configFlags()...),
		Before: withLogger(logger),
		Action: verifyInitDataAction,
	}
}

// botToken resolves TELEGRAM_BOT_TOKEN from the configured sources without
// requiring the rest of the run's keys.
func botToken(c *cli.Context) (string, error) {
	settings := settingsFromContext(c)

	container, err := di.New(settings, di.WithContext(c.Context))
	if err != nil {
		return "", fmt.Errorf("failed to create container: %w", err)
	}

	sources, err := di.Get[[]envfile.Source](container)
	if err != nil {
		return "", err
	}

	values, err := envfile.Load(settings.EnvFilePath())
	if err != nil {
		return "", err
	}

	env, err := envfile.Resolve(c.Context, values, []string{"TELEGRAM_BOT_TOKEN"}, sources...)
	if err != nil {
		return "", err
	}
	return env["TELEGRAM_BOT_TOKEN"], nil
}

func initDataAction(c *cli.Context) error {
	token, err := botToken(c)
	if err != nil {
		return err
	}

	data, err := initdata.New(token, initdata.User{
		ID:        c.Int64("user-id"),
		FirstName: c.String("first-name"),
		Username:  c.String("username"),
	}, time.Now())
	if err != nil {
		return err
	}

	if c.Bool("header") {
		data = initdata.Header(data)
	}
	_, err = fmt.Fprintln(c.App.Writer, data)
	return err
}

func verifyInitDataAction(c *cli.Context) error {
	logger := zerolog.Ctx(c.Context)

	raw := strings.TrimSpace(strings.Join(c.Args().Slice(), " "))
	if raw == "" {
		return fmt.Errorf("init data argument is required")
	}

	token, err := botToken(c)
	if err != nil {
		return err
	}

	params, err := initdata.Validate(raw, token, c.Duration("max-age"), time.Now())
	if err != nil {
		return err
	}

	logger.Info().
		Str("auth_date", params.Get("auth_date")).
		Str("user", params.Get("user")).
		Msg("init data is valid")

	_, err = fmt.Fprintln(c.App.Writer, "valid")
	return err
}
