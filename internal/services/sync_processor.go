package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// SyncProcessorConfig holds configuration for the sync processor
type SyncProcessorConfig struct {
	// Schedule is a cron spec or descriptor (default: "@every 30s")
	Schedule string

	// RunTimeout bounds a single sweep (default: 2m)
	RunTimeout time.Duration
}

// DefaultSyncProcessorConfig returns sensible defaults
func DefaultSyncProcessorConfig() SyncProcessorConfig {
	return SyncProcessorConfig{
		Schedule:   "@every 30s",
		RunTimeout: 2 * time.Minute,
	}
}

// SweepFunc syncs one batch of pending receipts and reports how many
// reached the ledger.
type SweepFunc func(ctx context.Context) (int, error)

// SyncStats summarizes the sweeps run so far.
type SyncStats struct {
	Runs      int64
	Synced    int64
	Failures  int64
	LastRun   time.Time
	LastError string
}

// SyncProcessor runs the pending-receipt sweep on a cron schedule. A sweep
// still running when the next one is due is skipped.
type SyncProcessor struct {
	sweep  SweepFunc
	config SyncProcessorConfig

	// Lifecycle management
	mu      sync.Mutex
	cron    *cron.Cron
	cancel  context.CancelFunc
	running bool
	stats   SyncStats
}

// NewSyncProcessor creates a new sync processor
func NewSyncProcessor(sweep SweepFunc, config SyncProcessorConfig) *SyncProcessor {
	def := DefaultSyncProcessorConfig()
	if config.Schedule == "" {
		config.Schedule = def.Schedule
	}
	if config.RunTimeout <= 0 {
		config.RunTimeout = def.RunTimeout
	}
	return &SyncProcessor{sweep: sweep, config: config}
}

// Start schedules the sweep. Returns an error if already running or if the
// schedule does not parse.
func (p *SyncProcessor) Start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.running {
		return fmt.Errorf("sync processor is already running")
	}
	if p.sweep == nil {
		return errors.New("sync processor has no sweep function")
	}

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	logger := cronLogger{}
	c := cron.New(cron.WithLogger(logger), cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)))
	if _, err := c.AddFunc(p.config.Schedule, func() { _, _ = p.RunOnce(runCtx) }); err != nil {
		cancel()
		return fmt.Errorf("invalid sync schedule %q: %w", p.config.Schedule, err)
	}
	c.Start()

	p.cron = c
	p.cancel = cancel
	p.running = true

	slog.InfoContext(ctx, "Sync processor started", "schedule", p.config.Schedule)
	return nil
}

// Stop gracefully stops the processor and waits for a running sweep.
func (p *SyncProcessor) Stop(ctx context.Context) error {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return nil
	}
	c, cancel := p.cron, p.cancel
	p.running = false
	p.mu.Unlock()

	done := c.Stop()
	cancel()

	select {
	case <-done.Done():
		slog.InfoContext(ctx, "Sync processor stopped gracefully")
		return nil
	case <-ctx.Done():
		slog.WarnContext(ctx, "Sync processor stop timed out")
		return ctx.Err()
	}
}

// IsRunning returns whether the processor is currently running
func (p *SyncProcessor) IsRunning() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running
}

// RunOnce runs one sweep now and records its outcome.
func (p *SyncProcessor) RunOnce(ctx context.Context) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, p.config.RunTimeout)
	defer cancel()

	start := time.Now()
	synced, err := p.sweep(ctx)

	p.mu.Lock()
	p.stats.Runs++
	p.stats.Synced += int64(synced)
	p.stats.LastRun = start
	p.stats.LastError = ""
	if err != nil {
		p.stats.Failures++
		p.stats.LastError = err.Error()
	}
	p.mu.Unlock()

	if err != nil {
		slog.ErrorContext(ctx, "Sync sweep failed", "error", err, "duration", time.Since(start))
		return synced, err
	}
	if synced > 0 {
		slog.InfoContext(ctx, "Sync sweep completed", "synced", synced, "duration", time.Since(start))
	}
	return synced, nil
}

// Stats returns a snapshot of the sweep counters.
func (p *SyncProcessor) Stats() SyncStats {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.stats
}

// cronLogger routes cron's own messages to slog.
type cronLogger struct{}

func (cronLogger) Info(msg string, keysAndValues ...interface{}) {
	slog.Debug("cron: "+msg, keysAndValues...)
}

func (cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	slog.Error("cron: "+msg, append(keysAndValues, "error", err)...)
}
