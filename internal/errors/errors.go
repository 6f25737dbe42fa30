package errors

import "errors"

var (
	ErrEnvFileNotFound    = errors.New(".env.local not found")
	ErrBotTokenRequired   = errors.New("TELEGRAM_BOT_TOKEN is required")
	ErrServerNotReady     = errors.New("dev server did not become ready in time")
	ErrServerExited       = errors.New("dev server exited before becoming ready")
	ErrChecksFailed       = errors.New("smoke checks failed")
	ErrUnsupportedFormat  = errors.New("unsupported report format")
	ErrInitDataHashAbsent = errors.New("init data has no hash")
	ErrInitDataMismatch   = errors.New("init data hash mismatch")
	ErrInitDataExpired    = errors.New("init data expired")
)
