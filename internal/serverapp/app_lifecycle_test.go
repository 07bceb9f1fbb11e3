package serverapp

import (
	"context"
	"errors"
	"net/http"
	"os"
	"sync/atomic"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"warehouse-graphql/internal/config"
	"warehouse-graphql/internal/logging"
)

func testLogger() *logging.Logger {
	return logging.NewLogger(logging.Config{Level: "info", Format: "text"})
}

func TestWaitForStop(t *testing.T) {
	t.Run("signal", func(t *testing.T) {
		stop := make(chan os.Signal, 1)
		stop <- syscall.SIGTERM
		reason, err := (&App{logger: testLogger()}).WaitForStop(stop, make(chan error))
		require.NoError(t, err)
		assert.Equal(t, StopSignal, reason)
	})

	t.Run("server error", func(t *testing.T) {
		serverErrors := make(chan error, 1)
		serverErrors <- errors.New("listen tcp :8080: bind: address already in use")
		reason, err := (&App{logger: testLogger()}).WaitForStop(make(chan os.Signal), serverErrors)
		assert.Equal(t, StopServerError, reason)
		assert.ErrorContains(t, err, "address already in use")
	})

	t.Run("closed server channel", func(t *testing.T) {
		serverErrors := make(chan error)
		close(serverErrors)
		reason, err := (&App{logger: testLogger()}).WaitForStop(nil, serverErrors)
		assert.Equal(t, StopServerError, reason)
		assert.ErrorContains(t, err, "stopped unexpectedly")
	})

	t.Run("nothing to wait on", func(t *testing.T) {
		_, err := (&App{logger: testLogger()}).WaitForStop(nil, nil)
		assert.Error(t, err)
	})
}

func TestShutdown_RunsCleanupOnce(t *testing.T) {
	app := &App{logger: testLogger()}
	var calls int32
	app.cleanup.push("database", func(context.Context) error {
		atomic.AddInt32(&calls, 1)
		return nil
	})

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, app.Shutdown(ctx))
	require.NoError(t, app.Shutdown(ctx))
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestStart_RequiresInit(t *testing.T) {
	_, err := (&App{logger: testLogger()}).Start()
	assert.ErrorIs(t, err, errNotInitialized)
}

func TestStartAndShutdown(t *testing.T) {
	srv := &http.Server{Addr: "127.0.0.1:0", Handler: http.NotFoundHandler()}
	app := &App{
		cfg:         &config.Config{},
		logger:      testLogger(),
		serverAddr:  srv.Addr,
		srv:         srv,
		initialized: true,
	}
	app.cleanup.push("HTTP server", srv.Shutdown)

	first, err := app.Start()
	require.NoError(t, err)
	again, err := app.Start()
	require.NoError(t, err)
	assert.Equal(t, first, again, "a second Start reuses the running server")

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, app.Shutdown(ctx))
}

func TestInit_FailureLeavesAppUninitialized(t *testing.T) {
	cfg := &config.Config{
		Database: config.DatabaseConfig{
			Host:                    "127.0.0.1",
			Port:                    1,
			User:                    "inventory",
			Password:                "invalid",
			Database:                "inventory",
			TLS:                     config.DatabaseTLSConfig{Mode: "off"},
			Pool:                    config.PoolConfig{MaxOpen: 1, MaxIdle: 1, MaxLifetime: time.Second},
			ConnectionRetryInterval: 10 * time.Millisecond,
		},
		Server: config.ServerConfig{
			Port:               18089,
			ReadTimeout:        time.Second,
			WriteTimeout:       time.Second,
			IdleTimeout:        time.Second,
			ShutdownTimeout:    time.Second,
			HealthCheckTimeout: time.Second,
		},
		Pagination: config.PaginationConfig{DefaultLimit: 10, MaxLimit: 100},
		Observability: config.ObservabilityConfig{
			ServiceName: "warehouse-graphql",
			Logging:     config.LoggingConfig{Level: "info", Format: "text"},
		},
	}

	app, err := New(cfg, testLogger())
	require.NoError(t, err)
	assert.Error(t, app.Init(context.Background()), "nothing listens on port 1")

	app.stateMu.Lock()
	defer app.stateMu.Unlock()
	assert.False(t, app.initialized)
	assert.Nil(t, app.handler)
}

func TestNew_RequiresConfigAndLogger(t *testing.T) {
	_, err := New(nil, testLogger())
	assert.Error(t, err)
	_, err = New(&config.Config{}, nil)
	assert.Error(t, err)
}

func TestShutdown_AggregatesCleanupErrors(t *testing.T) {
	app := &App{logger: testLogger()}
	var order []string
	app.cleanup.push("database", func(context.Context) error {
		order = append(order, "database")
		return errors.New("close failed")
	})
	app.cleanup.push("tracer provider", func(context.Context) error {
		order = append(order, "tracer provider")
		return nil
	})
	app.cleanup.push("HTTP server", func(context.Context) error {
		order = append(order, "HTTP server")
		return errors.New("shutdown timed out")
	})

	err := app.Shutdown(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "HTTP server: shutdown timed out")
	assert.Contains(t, err.Error(), "database: close failed")
	assert.Equal(t, []string{"HTTP server", "tracer provider", "database"}, order)

	assert.Equal(t, err, app.Shutdown(context.Background()))
	assert.Len(t, order, 3)
}
