package cli

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	applog "kwitansi/internal/log"
)

func bufferLogger(buf *bytes.Buffer) *applog.Logger {
	return applog.New(applog.Config{Component: "test", Handler: slog.NewTextHandler(buf, nil)})
}

func TestRunCleanupRunsStepsInOrder(t *testing.T) {
	var buf bytes.Buffer
	var order []int
	RunCleanup(bufferLogger(&buf), time.Second,
		func(context.Context) error { order = append(order, 1); return nil },
		nil,
		func(context.Context) error { order = append(order, 2); return errors.New("close failed") },
	)

	assert.Equal(t, []int{1, 2}, order)
	assert.Contains(t, buf.String(), "close failed")
	assert.Contains(t, buf.String(), "Shutdown complete")
}

func TestRunCleanupTimeout(t *testing.T) {
	var buf bytes.Buffer
	release := make(chan struct{})
	defer close(release)

	RunCleanup(bufferLogger(&buf), 10*time.Millisecond, func(context.Context) error {
		<-release
		return nil
	})

	assert.Contains(t, buf.String(), "Shutdown timeout reached")
}

func TestSetupLoggerLevel(t *testing.T) {
	t.Setenv("LOG_LEVEL", "debug")
	logger := SetupLogger("kwitansi")
	assert.Equal(t, "kwitansi", logger.Component())
	assert.True(t, logger.Enabled(context.Background(), slog.LevelDebug))
}
