package di

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/savaki/apismoke/internal/envfile"
)

// Settings are the resolved command line options of a run.
type Settings struct {
	Port           int
	BaseURL        string
	ReuseServer    bool
	SkipAI         bool
	ProjectRoot    string
	EnvFile        string
	SSMPath        string
	SecretID       string
	AWSProfile     string
	AWSRegion      string
	RequestTimeout time.Duration
	ReadyTimeout   time.Duration
}

// ResolvedBaseURL is --base-url when given, else the local dev server URL.
func (s Settings) ResolvedBaseURL() string {
	if baseURL := strings.TrimSpace(s.BaseURL); baseURL != "" {
		return strings.TrimRight(baseURL, "/")
	}
	return fmt.Sprintf("http://localhost:%d", s.Port)
}

// SpawnServer reports whether the run owns the dev server process.
func (s Settings) SpawnServer() bool {
	return !s.ReuseServer && strings.TrimSpace(s.BaseURL) == ""
}

// EnvFilePath is --env-file, or .env.local under the project root. Relative
// paths are resolved against the project root.
func (s Settings) EnvFilePath() string {
	path := s.EnvFile
	if path == "" {
		path = envfile.DefaultFileName
	}
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(s.ProjectRoot, path)
}

// RuntimeEnv is the resolved key/value configuration of a run.
type RuntimeEnv map[string]string

// Option is a function that configures the dependency injection container.
type Option func(*options)

// WithContext sets the context handed to providers; its logger is the run logger.
func WithContext(ctx context.Context) Option {
	return func(opts *options) {
		opts.ctx = ctx
	}
}

// WithProviders adds constructor functions to the dependency injection container.
// Each provider should be a constructor function that returns one or more values.
// Providers can declare dependencies as function parameters, which will be
// automatically resolved by the container.
//
// Example:
//
//	WithProviders(
//	    func() *Database { return &Database{} },
//	    func(db *Database) *Service { return &Service{DB: db} },
//	)
func WithProviders(providers ...any) Option {
	return func(opts *options) {
		opts.providers = append(opts.providers, providers...)
	}
}

type options struct {
	ctx       context.Context
	providers []any
}

func (o options) contextProvider() func() context.Context {
	ctx := o.ctx
	if ctx == nil {
		ctx = context.Background()
	}
	return func() context.Context { return ctx }
}
