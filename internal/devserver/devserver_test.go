//go:build !windows

package devserver

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	smokeerrors "github.com/savaki/apismoke/internal/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

var fastProbe = Probe{
	Timeout:  2 * time.Second,
	Interval: 20 * time.Millisecond,
	Attempt:  200 * time.Millisecond,
}

func TestDefaultCommand(t *testing.T) {
	assert.Equal(t, []string{"npm", "run", "dev", "--", "--port", "3055"}, DefaultCommand(DefaultPort))
}

func TestStartStop(t *testing.T) {
	server, err := Start(context.Background(), Options{
		Dir:     t.TempDir(),
		Command: []string{"sh", "-c", "sleep 30"},
	})
	require.NoError(t, err)

	started := time.Now()
	server.Stop(5 * time.Second)

	select {
	case <-server.Done():
	default:
		t.Fatal("server still running after Stop")
	}
	assert.Less(t, time.Since(started), 5*time.Second)
}

func TestStop_KillsAfterGrace(t *testing.T) {
	server, err := Start(context.Background(), Options{
		Command: []string{"sh", "-c", `trap "" TERM; sleep 30 & wait`},
	})
	require.NoError(t, err)

	// give the shell time to install the trap
	time.Sleep(200 * time.Millisecond)

	server.Stop(300 * time.Millisecond)

	select {
	case <-server.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("server not killed")
	}
	assert.Error(t, server.Err())
}

func TestStop_ExitedAndNil(t *testing.T) {
	var nilServer *Server
	nilServer.Stop(time.Second)
	assert.Nil(t, nilServer.Done())

	server, err := Start(context.Background(), Options{
		Command: []string{"sh", "-c", "exit 3"},
	})
	require.NoError(t, err)

	<-server.Done()
	server.Stop(time.Second)
	assert.Error(t, server.Err())
}

func TestStart_PassesEnvAndDir(t *testing.T) {
	dir := t.TempDir()
	var out safeBuffer

	server, err := Start(context.Background(), Options{
		Dir:     dir,
		Env:     []string{"SMOKE_VALUE=hello"},
		Command: []string{"sh", "-c", `printf "%s %s" "$SMOKE_VALUE" "$(pwd -P)"`},
		Stdout:  &out,
	})
	require.NoError(t, err)
	<-server.Done()

	require.NoError(t, server.Err())
	assert.Contains(t, out.String(), "hello ")
}

func TestStart_MissingExecutable(t *testing.T) {
	_, err := Start(context.Background(), Options{
		Command: []string{"/nonexistent/apismoke-dev-server"},
	})
	assert.Error(t, err)
}

func TestWaitReady(t *testing.T) {
	t.Run("ready after failures", func(t *testing.T) {
		var calls atomic.Int32
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/", r.URL.Path)
			if calls.Add(1) < 3 {
				w.WriteHeader(http.StatusServiceUnavailable)
				return
			}
			w.WriteHeader(http.StatusOK)
		}))
		defer srv.Close()

		require.NoError(t, WaitReady(context.Background(), srv.URL, fastProbe, nil))
		assert.Equal(t, int32(3), calls.Load())
	})

	t.Run("times out", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		}))
		defer srv.Close()

		probe := fastProbe
		probe.Timeout = 100 * time.Millisecond
		assert.ErrorIs(t, WaitReady(context.Background(), srv.URL, probe, nil), smokeerrors.ErrServerNotReady)
	})

	t.Run("process exited", func(t *testing.T) {
		exited := make(chan struct{})
		close(exited)
		assert.ErrorIs(t, WaitReady(context.Background(), "http://127.0.0.1:1", fastProbe, exited), smokeerrors.ErrServerExited)
	})

	t.Run("context cancelled", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		assert.ErrorIs(t, WaitReady(ctx, "http://127.0.0.1:1", fastProbe, nil), context.Canceled)
	})
}
