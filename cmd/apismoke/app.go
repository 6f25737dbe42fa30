package main

import (
	"github.com/rs/zerolog"
	"github.com/savaki/apismoke/cmd/apismoke/commands"
	"github.com/urfave/cli/v2"
)

func newApp(logger *zerolog.Logger) *cli.App {
	return &cli.App{
		Name:  "apismoke",
		Usage: "Local API smoke checks for the Mini-App backend",
		Description: `Starts (or attaches to) the web application's dev server, signs Telegram
Mini-App init data with TELEGRAM_BOT_TOKEN and exercises the backend API:
authentication, AI embedding and completion, memory and file upload.

Configuration is read from .env.local in the project root; required keys missing
there fall back to the process environment, then to AWS SSM Parameter Store
(--ssm-path) and AWS Secrets Manager (--secret-id).`,
		DefaultCommand: "run",
		Commands: []*cli.Command{
			commands.RunCommand(logger),
			commands.InitDataCommand(logger),
			commands.VerifyInitDataCommand(logger),
		},
	}
}
