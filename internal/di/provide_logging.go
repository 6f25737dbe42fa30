package di

import (
	"context"
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
)

// ProvideLogger creates a new zerolog.Logger writing to stderr so reports on
// stdout stay machine readable. APISMOKE_LOG_FORMAT=json selects JSON lines,
// otherwise it uses console format with pretty printing.
func ProvideLogger() zerolog.Logger {
	return NewLogger(os.Stderr, os.Getenv("APISMOKE_LOG_FORMAT"))
}

// NewLogger builds the logger ProvideLogger returns for an explicit writer and format.
func NewLogger(w io.Writer, format string) zerolog.Logger {
	if strings.EqualFold(format, "json") {
		return zerolog.New(w).
			Level(zerolog.InfoLevel).
			With().
			Timestamp().
			Logger()
	}

	return zerolog.New(zerolog.ConsoleWriter{Out: w}).
		Level(zerolog.InfoLevel).
		With().
		Timestamp().
		Logger()
}

// ProvideContextLogger returns the logger carried by ctx.
func ProvideContextLogger(ctx context.Context) zerolog.Logger {
	return *zerolog.Ctx(ctx)
}
