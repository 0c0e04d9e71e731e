// Package worker triggers ingestion runs from a schedule or Pub/Sub.
package worker

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/windforecast/windforecast/internal/ingest"
)

// ErrRunInProgress is returned when a run is requested while another is active.
var ErrRunInProgress = errors.New("an ingestion run is already in progress")

// DefaultRunTimeout bounds a single run.
const DefaultRunTimeout = 9 * time.Minute

// Ingester runs one ingestion pass.
type Ingester interface {
	Run(ctx context.Context, opts ingest.RunOptions) (*ingest.Summary, error)
}

// Runner serializes runs so that the upstream rate limit spacing holds
// across triggers.
type Runner struct {
	ingester Ingester
	timeout  time.Duration
	logger   zerolog.Logger

	mu sync.Mutex
}

// NewRunner wraps ingester. A non-positive timeout uses DefaultRunTimeout.
func NewRunner(ingester Ingester, timeout time.Duration, logger zerolog.Logger) *Runner {
	if timeout <= 0 {
		timeout = DefaultRunTimeout
	}
	return &Runner{
		ingester: ingester,
		timeout:  timeout,
		logger:   logger,
	}
}

// Run starts a run unless one is already active.
func (r *Runner) Run(ctx context.Context, opts ingest.RunOptions) (*ingest.Summary, error) {
	if !r.mu.TryLock() {
		r.logger.Warn().Str("trigger", string(opts.Trigger)).Msg("run requested while another is active")
		return nil, ErrRunInProgress
	}
	defer r.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	return r.ingester.Run(ctx, opts)
}
