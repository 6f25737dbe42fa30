// Package devserver runs the web application's dev server for the duration of a
// smoke run and waits for it to accept requests.
package devserver

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/exec"
	"strconv"
	"sync"
	"time"

	"github.com/rs/zerolog"
	smokeerrors "github.com/savaki/apismoke/internal/errors"
)

const (
	DefaultPort        = 3055
	DefaultGracePeriod = 8 * time.Second
)

// Options configures Start.
type Options struct {
	// Dir is the project root the command runs in.
	Dir  string
	Port int
	// Env is the complete environment of the child process.
	Env []string
	// Command overrides `npm run dev -- --port {Port}`.
	Command []string
	Stdout  io.Writer
	Stderr  io.Writer
	// Logger defaults to the logger carried by the context passed to Start.
	Logger *zerolog.Logger
}

// DefaultCommand is the npm invocation that serves the app on port.
func DefaultCommand(port int) []string {
	return []string{npmExecutable, "run", "dev", "--", "--port", strconv.Itoa(port)}
}

// Server is a running dev server process.
type Server struct {
	cmd    *exec.Cmd
	logger zerolog.Logger
	done   chan struct{}

	mu  sync.Mutex
	err error
}

// Start spawns the dev server in its own process group.
func Start(ctx context.Context, opts Options) (*Server, error) {
	if opts.Port == 0 {
		opts.Port = DefaultPort
	}
	args := opts.Command
	if len(args) == 0 {
		args = DefaultCommand(opts.Port)
	}
	if opts.Stdout == nil {
		opts.Stdout = os.Stderr
	}
	if opts.Stderr == nil {
		opts.Stderr = os.Stderr
	}

	cmd := exec.Command(args[0], args[1:]...)
	cmd.Dir = opts.Dir
	cmd.Env = opts.Env
	cmd.Stdout = opts.Stdout
	cmd.Stderr = opts.Stderr
	setProcessGroup(cmd)

	base := opts.Logger
	if base == nil {
		base = zerolog.Ctx(ctx)
	}
	logger := base.With().Str("service", "devserver").Logger()

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("failed to start dev server: %w", err)
	}

	logger.Info().
		Int("pid", cmd.Process.Pid).
		Strs("command", args).
		Str("dir", opts.Dir).
		Msg("dev server started")

	s := &Server{
		cmd:    cmd,
		logger: logger,
		done:   make(chan struct{}),
	}
	go func() {
		err := cmd.Wait()
		s.mu.Lock()
		s.err = err
		s.mu.Unlock()
		close(s.done)
	}()

	return s, nil
}

// Done is closed once the process has exited.
func (s *Server) Done() <-chan struct{} {
	if s == nil {
		return nil
	}
	return s.done
}

// Err returns the exit error once Done is closed.
func (s *Server) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Stop terminates the process group, waits up to grace, then kills it and waits
// up to grace again. Stopping a nil or exited server does nothing.
func (s *Server) Stop(grace time.Duration) {
	if s == nil {
		return
	}

	select {
	case <-s.done:
		return
	default:
	}

	if grace <= 0 {
		grace = DefaultGracePeriod
	}

	s.logger.Info().Msg("stopping dev server")
	if err := terminate(s.cmd); err != nil {
		s.logger.Debug().Err(err).Msg("terminate failed")
	}

	select {
	case <-s.done:
		return
	case <-time.After(grace):
	}

	s.logger.Warn().Dur("grace", grace).Msg("dev server ignored terminate, killing")
	if err := kill(s.cmd); err != nil {
		s.logger.Debug().Err(err).Msg("kill failed")
	}

	select {
	case <-s.done:
	case <-time.After(grace):
		s.logger.Error().Int("pid", s.cmd.Process.Pid).Msg("dev server did not exit after kill")
	}
}

// Probe controls WaitReady polling.
type Probe struct {
	// Timeout is the overall deadline.
	Timeout time.Duration
	// Interval separates failed attempts.
	Interval time.Duration
	// Attempt bounds a single request.
	Attempt time.Duration
}

// DefaultProbe waits up to three minutes, probing once a second.
var DefaultProbe = Probe{
	Timeout:  180 * time.Second,
	Interval: time.Second,
	Attempt:  5 * time.Second,
}

// WaitReady polls GET {baseURL}/ until it answers with a status below 400.
// It gives up early when exited is closed or ctx is done.
func WaitReady(ctx context.Context, baseURL string, probe Probe, exited <-chan struct{}) error {
	if probe.Timeout <= 0 {
		probe.Timeout = DefaultProbe.Timeout
	}
	if probe.Interval <= 0 {
		probe.Interval = DefaultProbe.Interval
	}
	if probe.Attempt <= 0 {
		probe.Attempt = DefaultProbe.Attempt
	}

	logger := zerolog.Ctx(ctx)

	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.DisableKeepAlives = true
	client := &http.Client{Timeout: probe.Attempt, Transport: transport}
	defer client.CloseIdleConnections()

	deadline := time.Now().Add(probe.Timeout)
	url := baseURL + "/"
	for attempt := 1; time.Now().Before(deadline); attempt++ {
		if ready(ctx, client, url) {
			logger.Info().Str("url", url).Int("attempts", attempt).Msg("dev server ready")
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-exited:
			return smokeerrors.ErrServerExited
		case <-time.After(probe.Interval):
		}
	}

	return smokeerrors.ErrServerNotReady
}

func ready(ctx context.Context, client *http.Client, url string) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return false
	}

	resp, err := client.Do(req)
	if err != nil {
		return false
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	_ = resp.Body.Close()

	return resp.StatusCode < http.StatusBadRequest
}
