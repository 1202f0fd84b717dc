package core

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/posfleet/printpool/internal/printer"
)

const saveTimeout = 10 * time.Second

// Pool is the registry of configured printers and the single source of truth
// for their configuration and live status. It is constructed once at process
// start and passed by reference to every call site.
type Pool struct {
	mu      sync.RWMutex
	entries map[string]*entry
	order   []*entry
	nextSeq int64

	saver  Saver
	events EventSink
	log    *zap.Logger

	saveCh chan struct{}
	stopCh chan struct{}
	wg     sync.WaitGroup
}

func NewPool(saver Saver, events EventSink, log *zap.Logger) *Pool {
	if log == nil {
		log = zap.NewNop()
	}
	p := &Pool{
		entries: make(map[string]*entry),
		saver:   saver,
		events:  events,
		log:     log,
	}
	if saver != nil {
		p.saveCh = make(chan struct{}, 1)
		p.stopCh = make(chan struct{})
		p.wg.Add(1)
		go p.saveLoop()
	}
	return p
}

// Close stops the save worker after flushing any pending save.
func (p *Pool) Close() {
	if p.saver == nil {
		return
	}
	close(p.stopCh)
	p.wg.Wait()
}

// Restore seeds the pool from persisted state at process start. Every printer
// comes back idle; live status is meaningless across restarts. Invalid
// persisted configs are skipped, not fatal.
func (p *Pool) Restore(printers []RestoredPrinter) {
	p.mu.Lock()
	defer p.mu.Unlock()

	for _, r := range printers {
		cfg := printer.Normalize(r.Config)
		if err := printer.Validate(cfg); err != nil {
			p.log.Warn("skipping persisted printer", zap.String("id", r.Config.ID), zap.Error(err))
			continue
		}
		if _, exists := p.entries[cfg.ID]; exists {
			p.log.Warn("skipping duplicate persisted printer", zap.String("id", cfg.ID))
			continue
		}
		p.insertLocked(cfg, r.JobsCompleted)
	}
}

// AddPrinter validates and registers a printer. It returns false, without
// mutating anything, when validation fails or the id is already taken. The
// new entry starts idle; offline is only reachable via a failed dispatch.
func (p *Pool) AddPrinter(cfg printer.Config) bool {
	cfg = printer.Normalize(cfg)
	if err := printer.Validate(cfg); err != nil {
		p.log.Warn("rejecting printer config", zap.String("name", cfg.Name), zap.Error(err))
		return false
	}

	p.mu.Lock()
	if _, exists := p.entries[cfg.ID]; exists {
		p.mu.Unlock()
		p.log.Warn("rejecting duplicate printer", zap.String("id", cfg.ID))
		return false
	}
	p.insertLocked(cfg, 0)
	p.mu.Unlock()

	p.log.Info("printer added",
		zap.String("id", cfg.ID),
		zap.String("name", cfg.Name),
		zap.String("type", string(cfg.Type)))
	p.saveAsync()
	return true
}

func (p *Pool) insertLocked(cfg printer.Config, jobsCompleted int64) {
	e := &entry{
		cfg:           cfg,
		status:        printer.StatusIdle,
		jobsCompleted: jobsCompleted,
		seq:           p.nextSeq,
	}
	p.nextSeq++
	p.entries[cfg.ID] = e
	p.order = append(p.order, e)
}

// RemovePrinter drops a printer from the pool. A job currently dispatched to
// it fails with ErrPrinterRemoved once its transport attempt returns.
func (p *Pool) RemovePrinter(id string) {
	p.mu.Lock()
	e, ok := p.entries[id]
	if !ok {
		p.mu.Unlock()
		return
	}
	delete(p.entries, id)
	for i, o := range p.order {
		if o == e {
			p.order = append(p.order[:i], p.order[i+1:]...)
			break
		}
	}
	p.mu.Unlock()

	e.mu.Lock()
	e.removed = true
	e.mu.Unlock()

	p.log.Info("printer removed", zap.String("id", id))
	p.saveAsync()
}

// UpdatePrinter re-validates and replaces a printer's configuration in place,
// preserving its status and completed-job counter. Returns false (no-op) when
// the id is absent or the new config is invalid.
func (p *Pool) UpdatePrinter(id string, cfg printer.Config) bool {
	cfg.ID = id
	cfg = printer.Normalize(cfg)
	if err := printer.Validate(cfg); err != nil {
		p.log.Warn("rejecting printer update", zap.String("id", id), zap.Error(err))
		return false
	}

	p.mu.Lock()
	e, ok := p.entries[id]
	if !ok {
		p.mu.Unlock()
		return false
	}
	e.mu.Lock()
	e.cfg = cfg
	e.mu.Unlock()
	p.mu.Unlock()

	p.log.Info("printer updated", zap.String("id", id), zap.String("name", cfg.Name))
	p.saveAsync()
	return true
}

// SetPrinterEnabled toggles dispatch eligibility without touching status.
func (p *Pool) SetPrinterEnabled(id string, enabled bool) {
	p.mu.Lock()
	e, ok := p.entries[id]
	if !ok {
		p.mu.Unlock()
		return
	}
	e.mu.Lock()
	e.cfg.Enabled = enabled
	e.mu.Unlock()
	p.mu.Unlock()

	p.log.Info("printer enabled flag set", zap.String("id", id), zap.Bool("enabled", enabled))
	p.saveAsync()
}

// Printers returns an immutable snapshot in insertion order, safe to read
// concurrently with mutation.
func (p *Pool) Printers() []Entry {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.snapshotLocked()
}

func (p *Pool) snapshotLocked() []Entry {
	out := make([]Entry, 0, len(p.order))
	for _, e := range p.order {
		e.mu.Lock()
		out = append(out, Entry{
			Config:        e.cfg.Clone(),
			Status:        e.status,
			JobsCompleted: e.jobsCompleted,
		})
		e.mu.Unlock()
	}
	return out
}

// GetPrinter returns a snapshot of a single printer.
func (p *Pool) GetPrinter(id string) (Entry, error) {
	p.mu.RLock()
	e, ok := p.entries[id]
	if !ok {
		p.mu.RUnlock()
		return Entry{}, ErrPrinterNotFound
	}
	e.mu.Lock()
	out := Entry{Config: e.cfg.Clone(), Status: e.status, JobsCompleted: e.jobsCompleted}
	e.mu.Unlock()
	p.mu.RUnlock()
	return out, nil
}

// saveAsync marks the persisted state dirty without blocking the caller.
// A single worker snapshots and commits, so the last committed snapshot is
// always the newest one; back-to-back mutations coalesce into one save.
func (p *Pool) saveAsync() {
	if p.saver == nil {
		return
	}
	select {
	case p.saveCh <- struct{}{}:
	default: // a save is already pending and will pick up this state
	}
}

func (p *Pool) saveLoop() {
	defer p.wg.Done()
	for {
		select {
		case <-p.stopCh:
			select {
			case <-p.saveCh:
				p.saveOnce()
			default:
			}
			return
		case <-p.saveCh:
			p.saveOnce()
		}
	}
}

// saveOnce snapshots at commit time, not at mutation time. A save failure is
// logged, never propagated.
func (p *Pool) saveOnce() {
	p.mu.RLock()
	snapshot := p.snapshotLocked()
	p.mu.RUnlock()

	ctx, cancel := context.WithTimeout(context.Background(), saveTimeout)
	defer cancel()
	if err := p.saver.SavePrinters(ctx, snapshot); err != nil {
		p.log.Warn("printer save failed", zap.Error(err))
	}
}

func (p *Pool) notifyStatus(id, name string, old, next printer.Status) {
	if p.events == nil || old == next {
		return
	}
	p.events.PrinterStatusChanged(id, name, old, next)
}
