package core

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/posfleet/printpool/internal/printer"
	"github.com/posfleet/printpool/internal/transport"
)

const DefaultMaxAttempts = 3

// AdapterFactory builds the transport adapter for a printer config. Tests
// substitute fakes here.
type AdapterFactory func(cfg printer.Config) (transport.Adapter, error)

// Job is a render job submitted for dispatch. Payload is an opaque byte
// stream produced by the rendering collaborator. TargetPrinterID pins the job
// to one printer; empty lets the pool select. Jobs are ephemeral: they live
// only until Submit returns their terminal result.
type Job struct {
	Payload         []byte
	TargetPrinterID string
	MaxAttempts     int
}

// Result is the terminal outcome of a job, delivered exactly once.
// Err == nil means the job completed on PrinterID.
type Result struct {
	PrinterID         string
	Err               error
	AttemptsExhausted bool
}

func (r Result) Completed() bool { return r.Err == nil }

type DispatcherConfig struct {
	MaxAttempts int
	Timeouts    transport.Timeouts
}

// Dispatcher accepts submitted jobs, selects eligible printers from the pool
// and drives the job lifecycle, updating pool status as a side effect.
type Dispatcher struct {
	pool        *Pool
	factory     AdapterFactory
	maxAttempts int
	events      EventSink
	log         *zap.Logger
}

func NewDispatcher(pool *Pool, cfg DispatcherConfig, events EventSink, log *zap.Logger) *Dispatcher {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = DefaultMaxAttempts
	}
	if log == nil {
		log = zap.NewNop()
	}
	timeouts := cfg.Timeouts
	return &Dispatcher{
		pool: pool,
		factory: func(c printer.Config) (transport.Adapter, error) {
			return transport.New(c, timeouts)
		},
		maxAttempts: cfg.MaxAttempts,
		events:      events,
		log:         log,
	}
}

// SetAdapterFactory overrides transport construction; used by tests.
func (d *Dispatcher) SetAdapterFactory(f AdapterFactory) { d.factory = f }

// Submit dispatches a job and blocks until its terminal outcome. A failure
// against one printer is retried against the remaining candidates up to
// MaxAttempts; only exhaustion or an empty candidate set surfaces to the
// caller. Cancelling ctx aborts the job between attempts; an in-flight write
// runs to its bounded transport timeout.
func (d *Dispatcher) Submit(ctx context.Context, job Job) Result {
	jobID := uuid.NewString()
	start := time.Now()

	maxAttempts := job.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = d.maxAttempts
	}

	tried := make(map[string]bool)
	var lastErr error

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			if lastErr == nil {
				lastErr = err
			}
			return d.fail(jobID, lastErr, false)
		}

		e, cfg, err := d.pool.claim(job.TargetPrinterID, tried)
		if err != nil {
			// No candidate at selection time: fail now rather than queue.
			// Mid-retry this reports the last transport error instead.
			if lastErr == nil {
				lastErr = err
			}
			return d.fail(jobID, lastErr, false)
		}
		tried[cfg.ID] = true

		err = d.attempt(ctx, e, cfg, job.Payload)
		if err == nil {
			d.log.Info("job completed",
				zap.String("job_id", jobID),
				zap.String("printer_id", cfg.ID),
				zap.Int("attempt", attempt),
				zap.Duration("elapsed", time.Since(start)))
			if d.events != nil {
				d.events.JobFinished(jobID, cfg.ID, true, "")
			}
			return Result{PrinterID: cfg.ID}
		}

		lastErr = err
		d.log.Warn("dispatch attempt failed",
			zap.String("job_id", jobID),
			zap.String("printer_id", cfg.ID),
			zap.Int("attempt", attempt),
			zap.Error(err))
	}

	return d.fail(jobID, lastErr, true)
}

// attempt runs one transport round-trip against a claimed (busy) printer and
// feeds the outcome back into the status machine. The adapter is closed on
// every exit path.
func (d *Dispatcher) attempt(ctx context.Context, e *entry, cfg printer.Config, payload []byte) error {
	adapter, err := d.factory(cfg)
	if err != nil {
		if ferr := d.pool.finish(e, outcomeOpenFailed); ferr != nil {
			return ferr
		}
		return err
	}
	defer adapter.Close()

	if err := adapter.Open(ctx); err != nil {
		if ferr := d.pool.finish(e, outcomeOpenFailed); ferr != nil {
			return ferr
		}
		return err
	}

	if _, err := adapter.Write(payload); err != nil {
		if ferr := d.pool.finish(e, outcomeWriteFailed); ferr != nil {
			return ferr
		}
		return err
	}

	// A printer removed mid-flight fails the job even though the bytes went
	// out; finish reports that.
	return d.pool.finish(e, outcomeCompleted)
}

func (d *Dispatcher) fail(jobID string, err error, exhausted bool) Result {
	d.log.Warn("job failed",
		zap.String("job_id", jobID),
		zap.Bool("attempts_exhausted", exhausted),
		zap.Error(err))
	if d.events != nil {
		d.events.JobFinished(jobID, "", false, err.Error())
	}
	return Result{Err: err, AttemptsExhausted: exhausted}
}
