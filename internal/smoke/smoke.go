// Package smoke runs the fixed sequence of backend checks and evaluates their
// response contracts.
package smoke

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"
	"github.com/savaki/apismoke/internal/apiclient"
	"github.com/savaki/apismoke/internal/initdata"
	"github.com/segmentio/ksuid"
)

// Routes exercised by a run.
const (
	RouteValidate     = "/api/telegram/validate"
	RouteEmbed        = "/api/ai/embed"
	RouteComplete     = "/api/ai/complete"
	RouteMemory       = "/api/ai/memory"
	RouteUploadURL    = "/api/storage/upload-url"
	RouteVerifyUpload = "/api/storage/verify-upload"

	// LabelMemoryDelete names the DELETE on RouteMemory in reports.
	LabelMemoryDelete = RouteMemory + " (delete)"
)

const (
	embedContent   = "local smoke note"
	embedSource    = "smoke-script"
	completePrompt = "Что я только что сохранил?"
	uploadFileName = "smoke.txt"
)

// API is the subset of apiclient.Client a run needs.
type API interface {
	PostJSON(ctx context.Context, path string, body any, headers http.Header) (apiclient.Response, error)
	GetJSON(ctx context.Context, path string, headers http.Header) (apiclient.Response, error)
	DeleteJSON(ctx context.Context, path string, body any, headers http.Header) (apiclient.Response, error)
	PostStream(ctx context.Context, path string, body any, headers http.Header) (apiclient.Response, error)
}

// Config holds per-run settings.
type Config struct {
	BaseURL  string
	BotToken string
	SkipAI   bool
	User     initdata.User
	// Now defaults to time.Now and is used for auth_date.
	Now func() time.Time
}

// Check is the outcome of one request.
type Check struct {
	Route    string   `json:"route" yaml:"route"`
	Method   string   `json:"method" yaml:"method"`
	Status   int      `json:"status" yaml:"status"`
	Payload  any      `json:"payload,omitempty" yaml:"payload,omitempty"`
	Error    string   `json:"error,omitempty" yaml:"error,omitempty"`
	Failures []string `json:"failures,omitempty" yaml:"failures,omitempty"`
	Elapsed  Duration `json:"elapsed" yaml:"elapsed"`
}

// Failed reports whether the check failed its status or contract.
func (c Check) Failed() bool {
	return c.Error != "" || c.Status >= http.StatusBadRequest || len(c.Failures) > 0
}

// Report is the result of a run.
type Report struct {
	RunID    string    `json:"runId" yaml:"runId"`
	BaseURL  string    `json:"baseUrl" yaml:"baseUrl"`
	SkipAI   bool      `json:"skipAi" yaml:"skipAi"`
	Started  time.Time `json:"started" yaml:"started"`
	Elapsed  Duration  `json:"elapsed" yaml:"elapsed"`
	Checks   []Check   `json:"checks" yaml:"checks"`
	Passed   bool      `json:"passed" yaml:"passed"`
	Failures int       `json:"failures" yaml:"failures"`
}

// Duration renders as a Go duration string in reports.
type Duration time.Duration

func (d Duration) String() string {
	return time.Duration(d).Round(time.Millisecond).String()
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// Runner executes the check sequence against an API.
type Runner struct {
	api    API
	config Config
	logger zerolog.Logger
}

// New returns a Runner for config.
func New(api API, config Config, logger zerolog.Logger) *Runner {
	if config.User == (initdata.User{}) {
		config.User = initdata.LocalUser
	}
	if config.Now == nil {
		config.Now = time.Now
	}

	return &Runner{
		api:    api,
		config: config,
		logger: logger.With().Str("service", "smoke").Logger(),
	}
}

// Run issues every check in order. Failed checks never stop the sequence; it
// ends early only when ctx is done, returning ctx.Err().
func (r *Runner) Run(ctx context.Context) (*Report, error) {
	started := r.config.Now()

	data, err := initdata.New(r.config.BotToken, r.config.User, started)
	if err != nil {
		return nil, fmt.Errorf("failed to build init data: %w", err)
	}

	authHeaders := http.Header{}
	authHeaders.Set("Authorization", initdata.Header(data))
	jsonHeaders := authHeaders.Clone()
	jsonHeaders.Set("Content-Type", "application/json")

	report := &Report{
		RunID:   ksuid.New().String(),
		BaseURL: r.config.BaseURL,
		SkipAI:  r.config.SkipAI,
		Started: started,
	}
	logger := r.logger.With().Str("run_id", report.RunID).Logger()
	logger.Info().Str("base_url", r.config.BaseURL).Bool("skip_ai", r.config.SkipAI).Msg("running smoke checks")

	record := func(check Check) Check {
		check.Failures = Evaluate(check)
		report.Checks = append(report.Checks, check)

		event := logger.Info()
		if check.Failed() {
			event = logger.Warn()
		}
		event.Str("route", check.Route).
			Int("status", check.Status).
			Stringer("elapsed", check.Elapsed).
			Msg("check completed")
		return check
	}

	// step runs one check unless ctx is already done.
	step := func(route, method string, fn func() (apiclient.Response, error)) (Check, error) {
		if err := ctx.Err(); err != nil {
			return Check{}, err
		}
		return record(r.call(ctx, route, method, fn)), nil
	}

	if _, err := step(RouteValidate, http.MethodPost, func() (apiclient.Response, error) {
		return r.api.PostJSON(ctx, RouteValidate, map[string]any{}, authHeaders)
	}); err != nil {
		return nil, err
	}

	var documentID any
	if !r.config.SkipAI {
		embed, err := step(RouteEmbed, http.MethodPost, func() (apiclient.Response, error) {
			return r.api.PostJSON(ctx, RouteEmbed, map[string]any{
				"content": embedContent,
				"metadata": map[string]any{
					"source": embedSource,
					"runId":  report.RunID,
				},
			}, jsonHeaders)
		})
		if err != nil {
			return nil, err
		}
		if embed.Error == "" && embed.Status < http.StatusBadRequest {
			documentID = truthyField(embed.Payload, "documentId")
		}

		if _, err := step(RouteComplete, http.MethodPost, func() (apiclient.Response, error) {
			return r.api.PostStream(ctx, RouteComplete, map[string]any{"prompt": completePrompt}, jsonHeaders)
		}); err != nil {
			return nil, err
		}
	}

	if _, err := step(RouteMemory, http.MethodGet, func() (apiclient.Response, error) {
		return r.api.GetJSON(ctx, RouteMemory, authHeaders)
	}); err != nil {
		return nil, err
	}

	if documentID != nil {
		if _, err := step(LabelMemoryDelete, http.MethodDelete, func() (apiclient.Response, error) {
			return r.api.DeleteJSON(ctx, RouteMemory, map[string]any{"id": documentID}, jsonHeaders)
		}); err != nil {
			return nil, err
		}
	}

	upload, err := step(RouteUploadURL, http.MethodPost, func() (apiclient.Response, error) {
		return r.api.PostJSON(ctx, RouteUploadURL, map[string]any{"fileName": uploadFileName}, jsonHeaders)
	})
	if err != nil {
		return nil, err
	}

	if upload.Error == "" && upload.Status < http.StatusBadRequest {
		if path := truthyField(upload.Payload, "path"); path != nil {
			if _, err := step(RouteVerifyUpload, http.MethodPost, func() (apiclient.Response, error) {
				return r.api.PostJSON(ctx, RouteVerifyUpload, map[string]any{"path": path}, jsonHeaders)
			}); err != nil {
				return nil, err
			}
		}
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	for _, check := range report.Checks {
		if check.Failed() {
			report.Failures++
		}
	}
	report.Passed = report.Failures == 0
	report.Elapsed = Duration(r.config.Now().Sub(started))

	logger.Info().
		Bool("passed", report.Passed).
		Int("checks", len(report.Checks)).
		Int("failures", report.Failures).
		Msg("smoke checks finished")

	return report, nil
}

func (r *Runner) call(ctx context.Context, route, method string, fn func() (apiclient.Response, error)) Check {
	started := time.Now()
	resp, err := fn()
	check := Check{
		Route:   route,
		Method:  method,
		Status:  resp.Status,
		Payload: resp.Payload,
		Elapsed: Duration(time.Since(started)),
	}
	if err != nil {
		check.Error = err.Error()
		zerolog.Ctx(ctx).Debug().Err(err).Str("route", route).Msg("request failed")
	}
	return check
}

// truthyField returns payload[key] when payload is an object and the value is
// set: not null, false, zero, or empty.
func truthyField(payload any, key string) any {
	object, ok := payload.(map[string]any)
	if !ok {
		return nil
	}

	switch value := object[key].(type) {
	case nil:
		return nil
	case string:
		if value == "" {
			return nil
		}
	case bool:
		if !value {
			return nil
		}
	case json.Number:
		if f, err := value.Float64(); err == nil && f == 0 {
			return nil
		}
	case []any:
		if len(value) == 0 {
			return nil
		}
	case map[string]any:
		if len(value) == 0 {
			return nil
		}
	}
	return object[key]
}
