package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/savaki/apismoke/internal/di"
	smokeerrors "github.com/savaki/apismoke/internal/errors"
)

func main() {
	logger := di.ProvideLogger()
	ctx, stop := signal.NotifyContext(logger.WithContext(context.Background()), os.Interrupt, syscall.SIGTERM)

	app := newApp(&logger)
	err := app.RunContext(ctx, os.Args)
	stop()

	if err != nil {
		if errors.Is(err, smokeerrors.ErrChecksFailed) {
			logger.Error().Err(err).Msg("Smoke run failed")
		} else {
			logger.Error().Err(err).Msg("Application error")
		}
		os.Exit(1)
	}
}
