package commands

import (
	"github.com/rs/zerolog"
	"github.com/savaki/apismoke/internal/devserver"
	"github.com/savaki/apismoke/internal/di"
	"github.com/urfave/cli/v2"
)

// configFlags select where the runtime configuration comes from. They are
// shared by every command that needs the bot token or the other env keys.
func configFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "project-root",
			Aliases: []string{"C"},
			Usage:   "Web application root; the dev server runs here and .env.local is read from here",
			Value:   ".",
			EnvVars: []string{"APISMOKE_PROJECT_ROOT"},
		},
		&cli.StringFlag{
			Name:    "env-file",
			Usage:   "Env file path, relative to --project-root unless absolute (default: .env.local)",
			EnvVars: []string{"APISMOKE_ENV_FILE"},
		},
		&cli.BoolFlag{
			Name:    "skip-ai",
			Usage:   "Skip /api/ai/embed and /api/ai/complete checks (and their env keys)",
			EnvVars: []string{"APISMOKE_SKIP_AI"},
		},
		&cli.StringFlag{
			Name:    "ssm-path",
			Usage:   "AWS SSM Parameter Store path holding missing env keys as {path}/{KEY}",
			EnvVars: []string{"APISMOKE_SSM_PATH"},
		},
		&cli.StringFlag{
			Name:    "secret-id",
			Usage:   "AWS Secrets Manager secret holding missing env keys as a JSON object",
			EnvVars: []string{"APISMOKE_SECRET_ID"},
		},
		&cli.StringFlag{
			Name:    "aws-profile",
			Usage:   "AWS shared config profile for --ssm-path and --secret-id",
			EnvVars: []string{"AWS_PROFILE"},
		},
		&cli.StringFlag{
			Name:    "aws-region",
			Usage:   "AWS region for --ssm-path and --secret-id",
			EnvVars: []string{"AWS_REGION"},
		},
	}
}

func settingsFromContext(c *cli.Context) di.Settings {
	settings := di.Settings{
		Port:        devserver.DefaultPort,
		ProjectRoot: c.String("project-root"),
		EnvFile:     c.String("env-file"),
		SkipAI:      c.Bool("skip-ai"),
		SSMPath:     c.String("ssm-path"),
		SecretID:    c.String("secret-id"),
		AWSProfile:  c.String("aws-profile"),
		AWSRegion:   c.String("aws-region"),
	}
	if c.Int("port") > 0 {
		settings.Port = c.Int("port")
	}
	return settings
}

// withLogger makes logger the context logger of the command's action.
func withLogger(logger *zerolog.Logger) cli.BeforeFunc {
	return func(c *cli.Context) error {
		if logger != nil {
			c.Context = logger.WithContext(c.Context)
		}
		return nil
	}
}
