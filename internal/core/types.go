package core

import (
	"context"
	"errors"
	"sync"

	"github.com/posfleet/printpool/internal/printer"
)

var (
	ErrPrinterNotFound   = errors.New("printer not found")
	ErrNoEligiblePrinter = errors.New("no eligible printer")
	ErrPrinterRemoved    = errors.New("printer removed")
)

// Entry is an immutable snapshot of one printer's runtime record.
type Entry struct {
	Config        printer.Config `json:"config"`
	Status        printer.Status `json:"status"`
	JobsCompleted int64          `json:"jobs_completed"`
}

// RestoredPrinter carries a persisted printer back into the pool at startup.
type RestoredPrinter struct {
	Config        printer.Config
	JobsCompleted int64
}

// Saver persists the full printer list after pool mutations. Saves are
// fire-and-forget; the pool never depends on them succeeding.
type Saver interface {
	SavePrinters(ctx context.Context, printers []Entry) error
}

// EventSink receives pool and dispatcher events. Implementations must not
// block; they are invoked outside any pool lock.
type EventSink interface {
	PrinterStatusChanged(printerID, name string, oldStatus, newStatus printer.Status)
	JobFinished(jobID, printerID string, success bool, errMsg string)
}

// entry is the mutable runtime record. Membership in the pool is guarded by
// the pool mutex; the fields here are guarded by mu so that dispatch to one
// printer never blocks dispatch to another.
type entry struct {
	mu            sync.Mutex
	cfg           printer.Config
	status        printer.Status
	jobsCompleted int64
	removed       bool
	seq           int64
}
