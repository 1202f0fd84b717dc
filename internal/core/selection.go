package core

import (
	"github.com/posfleet/printpool/internal/printer"
)

// Candidate ranking, lower is better. Idle beats error, and printers this job
// has already tried trail everything untried. An offline printer is only a
// candidate as a re-probe, i.e. when this job already failed against it and
// nothing better is left.
const (
	rankIdle    = 0
	rankError   = 1
	rankOffline = 2
	triedOffset = 10
)

type outcome int

const (
	outcomeCompleted outcome = iota
	outcomeOpenFailed
	outcomeWriteFailed
)

// candidateRank reports whether the locked entry is selectable for a job that
// has already tried the printers in tried, and how it ranks.
func candidateRank(e *entry, tried map[string]bool) (int, bool) {
	if e.removed || !e.cfg.Enabled {
		return 0, false
	}

	var rank int
	switch e.status {
	case printer.StatusIdle:
		rank = rankIdle
	case printer.StatusError:
		rank = rankError
	case printer.StatusOffline:
		if !tried[e.cfg.ID] {
			return 0, false
		}
		rank = rankOffline
	default: // busy
		return 0, false
	}

	if tried[e.cfg.ID] {
		rank += triedOffset
	}
	return rank, true
}

// claim selects an eligible printer and atomically transitions it to busy.
// Entering busy is the mutual-exclusion gate: no two jobs ever occupy the
// same entry. The returned config is a detached copy safe to use without
// locks while the transport blocks on I/O.
func (p *Pool) claim(targetID string, tried map[string]bool) (*entry, printer.Config, error) {
	e, cfg, old, err := p.claimUnderLock(targetID, tried)
	if err != nil {
		return nil, printer.Config{}, err
	}

	// The sink runs after the pool lock is released so it may call back
	// into the pool.
	p.notifyStatus(cfg.ID, cfg.Name, old, printer.StatusBusy)
	return e, cfg, nil
}

func (p *Pool) claimUnderLock(targetID string, tried map[string]bool) (*entry, printer.Config, printer.Status, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if targetID != "" {
		e, ok := p.entries[targetID]
		if !ok {
			return nil, printer.Config{}, "", ErrNoEligiblePrinter
		}
		cfg, old, ok := p.claimEntry(e, tried)
		if !ok {
			return nil, printer.Config{}, "", ErrNoEligiblePrinter
		}
		return e, cfg, old, nil
	}

	// Another dispatch goroutine can win the chosen entry between the scan
	// and the claim; rescan until the claim sticks or nothing is left.
	for {
		best := p.scanLocked(tried)
		if best == nil {
			return nil, printer.Config{}, "", ErrNoEligiblePrinter
		}
		if cfg, old, ok := p.claimEntry(best, tried); ok {
			return best, cfg, old, nil
		}
	}
}

// scanLocked picks the best candidate by (rank, jobsCompleted, insertion
// order). Caller holds the pool read lock.
func (p *Pool) scanLocked(tried map[string]bool) *entry {
	var (
		best     *entry
		bestRank int
		bestJobs int64
	)
	for _, e := range p.order {
		e.mu.Lock()
		rank, ok := candidateRank(e, tried)
		jobs := e.jobsCompleted
		e.mu.Unlock()
		if !ok {
			continue
		}
		if best == nil || rank < bestRank || (rank == bestRank && jobs < bestJobs) {
			best, bestRank, bestJobs = e, rank, jobs
		}
	}
	return best
}

// claimEntry re-checks eligibility under the entry lock and transitions to
// busy, reporting the prior status. Caller holds the pool read lock and is
// responsible for notification once it drops the lock.
func (p *Pool) claimEntry(e *entry, tried map[string]bool) (printer.Config, printer.Status, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if _, ok := candidateRank(e, tried); !ok {
		return printer.Config{}, "", false
	}
	old := e.status
	e.status = printer.StatusBusy
	return e.cfg.Clone(), old, true
}

// finish applies the job outcome to a busy entry per the status machine:
// success returns it to idle and bumps the counter, an open failure marks it
// offline, a write failure marks it error. If the printer was removed while
// the job was in flight the outcome is discarded and ErrPrinterRemoved is
// returned; the removed entry is dead either way.
func (p *Pool) finish(e *entry, out outcome) error {
	e.mu.Lock()
	if e.removed {
		e.mu.Unlock()
		return ErrPrinterRemoved
	}

	switch out {
	case outcomeCompleted:
		e.status = printer.StatusIdle
		e.jobsCompleted++
	case outcomeOpenFailed:
		e.status = printer.StatusOffline
	case outcomeWriteFailed:
		e.status = printer.StatusError
	}
	id, name, next := e.cfg.ID, e.cfg.Name, e.status
	e.mu.Unlock()

	p.notifyStatus(id, name, printer.StatusBusy, next)
	if out == outcomeCompleted {
		// Persist the completed-job counter.
		p.saveAsync()
	}
	return nil
}
