package di

import (
	"github.com/rs/zerolog"
	"github.com/savaki/apismoke/internal/apiclient"
	"github.com/savaki/apismoke/internal/smoke"
)

func ProvideAPIClient(settings Settings, logger zerolog.Logger) *apiclient.Client {
	return apiclient.New(settings.ResolvedBaseURL(), settings.RequestTimeout, apiclient.WithLogger(logger))
}

func ProvideRunner(client *apiclient.Client, settings Settings, env RuntimeEnv, logger zerolog.Logger) *smoke.Runner {
	return smoke.New(client, smoke.Config{
		BaseURL:  client.BaseURL(),
		BotToken: env["TELEGRAM_BOT_TOKEN"],
		SkipAI:   settings.SkipAI,
	}, logger)
}
