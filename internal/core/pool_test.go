package core

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/posfleet/printpool/internal/printer"
)

func ethernetConfig(id, name string) printer.Config {
	return printer.Config{
		ID:         id,
		Name:       name,
		Type:       printer.TransportEthernet,
		Enabled:    true,
		Ethernet:   &printer.EthernetParams{IP: "192.168.0.10", Port: 9100},
		PrintWidth: 576,
	}
}

func newTestPool(t *testing.T) *Pool {
	t.Helper()
	return NewPool(nil, nil, zaptest.NewLogger(t))
}

func TestAddPrinterAppliesDefaults(t *testing.T) {
	p := newTestPool(t)

	ok := p.AddPrinter(printer.Config{
		Name:     "Front Counter",
		Type:     printer.TransportEthernet,
		Enabled:  true,
		Ethernet: &printer.EthernetParams{IP: "10.0.0.5"},
	})
	require.True(t, ok)

	entries := p.Printers()
	require.Len(t, entries, 1)
	e := entries[0]
	assert.NotEmpty(t, e.Config.ID)
	assert.Equal(t, printer.DefaultPort, e.Config.Ethernet.Port)
	assert.Equal(t, printer.DefaultPrintWidth, e.Config.PrintWidth)
	assert.Equal(t, printer.StatusIdle, e.Status)
	assert.Zero(t, e.JobsCompleted)
}

func TestAddPrinterRejectsInvalid(t *testing.T) {
	p := newTestPool(t)

	cfg := ethernetConfig("p1", "Broken")
	cfg.Ethernet.IP = "nonsense"
	assert.False(t, p.AddPrinter(cfg))
	assert.Empty(t, p.Printers())
}

func TestAddPrinterRejectsDuplicateID(t *testing.T) {
	p := newTestPool(t)

	require.True(t, p.AddPrinter(ethernetConfig("p1", "First")))
	assert.False(t, p.AddPrinter(ethernetConfig("p1", "Second")))

	entries := p.Printers()
	require.Len(t, entries, 1)
	assert.Equal(t, "First", entries[0].Config.Name)
}

func TestPrintersSnapshotInsertionOrder(t *testing.T) {
	p := newTestPool(t)

	require.True(t, p.AddPrinter(ethernetConfig("a", "A")))
	require.True(t, p.AddPrinter(ethernetConfig("b", "B")))
	require.True(t, p.AddPrinter(ethernetConfig("c", "C")))
	p.RemovePrinter("b")
	require.True(t, p.AddPrinter(ethernetConfig("d", "D")))

	var ids []string
	for _, e := range p.Printers() {
		ids = append(ids, e.Config.ID)
	}
	assert.Equal(t, []string{"a", "c", "d"}, ids)
}

func TestPrintersSnapshotIsDetached(t *testing.T) {
	p := newTestPool(t)
	require.True(t, p.AddPrinter(ethernetConfig("p1", "Original")))

	snap := p.Printers()
	snap[0].Config.Name = "Tampered"
	snap[0].Config.Ethernet.IP = "10.9.9.9"

	got, err := p.GetPrinter("p1")
	require.NoError(t, err)
	assert.Equal(t, "Original", got.Config.Name)
	assert.Equal(t, "192.168.0.10", got.Config.Ethernet.IP)
}

func TestGetPrinterUnknown(t *testing.T) {
	p := newTestPool(t)
	_, err := p.GetPrinter("nope")
	assert.ErrorIs(t, err, ErrPrinterNotFound)
}

func TestUpdatePrinterPreservesStatusAndCounter(t *testing.T) {
	p := newTestPool(t)
	require.True(t, p.AddPrinter(ethernetConfig("p1", "Before")))

	// Run one job through the status machine so there is state to preserve.
	e, _, err := p.claim("", map[string]bool{})
	require.NoError(t, err)
	require.NoError(t, p.finish(e, outcomeCompleted))

	next := ethernetConfig("ignored", "After")
	next.Ethernet.IP = "10.1.2.3"
	require.True(t, p.UpdatePrinter("p1", next))

	got, err := p.GetPrinter("p1")
	require.NoError(t, err)
	assert.Equal(t, "p1", got.Config.ID)
	assert.Equal(t, "After", got.Config.Name)
	assert.Equal(t, "10.1.2.3", got.Config.Ethernet.IP)
	assert.Equal(t, printer.StatusIdle, got.Status)
	assert.Equal(t, int64(1), got.JobsCompleted)
}

func TestUpdatePrinterUnknownOrInvalid(t *testing.T) {
	p := newTestPool(t)
	require.True(t, p.AddPrinter(ethernetConfig("p1", "Keep")))

	assert.False(t, p.UpdatePrinter("missing", ethernetConfig("", "X")))

	bad := ethernetConfig("", "")
	assert.False(t, p.UpdatePrinter("p1", bad))

	got, err := p.GetPrinter("p1")
	require.NoError(t, err)
	assert.Equal(t, "Keep", got.Config.Name)
}

func TestRemovePrinterUnknownIsNoop(t *testing.T) {
	p := newTestPool(t)
	require.True(t, p.AddPrinter(ethernetConfig("p1", "Only")))
	p.RemovePrinter("missing")
	assert.Len(t, p.Printers(), 1)
}

func TestSetPrinterEnabled(t *testing.T) {
	p := newTestPool(t)
	require.True(t, p.AddPrinter(ethernetConfig("p1", "Toggle")))

	p.SetPrinterEnabled("p1", false)
	got, err := p.GetPrinter("p1")
	require.NoError(t, err)
	assert.False(t, got.Config.Enabled)
	assert.Equal(t, printer.StatusIdle, got.Status)

	_, _, err = p.claim("", map[string]bool{})
	assert.ErrorIs(t, err, ErrNoEligiblePrinter)

	p.SetPrinterEnabled("p1", true)
	_, _, err = p.claim("", map[string]bool{})
	assert.NoError(t, err)
}

func TestRestore(t *testing.T) {
	p := newTestPool(t)

	bad := ethernetConfig("bad", "Bad")
	bad.Ethernet = nil
	p.Restore([]RestoredPrinter{
		{Config: ethernetConfig("p1", "First"), JobsCompleted: 42},
		{Config: bad},
		{Config: ethernetConfig("p1", "Duplicate")},
		{Config: ethernetConfig("p2", "Second")},
	})

	entries := p.Printers()
	require.Len(t, entries, 2)
	assert.Equal(t, "First", entries[0].Config.Name)
	assert.Equal(t, int64(42), entries[0].JobsCompleted)
	assert.Equal(t, printer.StatusIdle, entries[0].Status)
	assert.Equal(t, "p2", entries[1].Config.ID)
}

type chanSaver struct {
	saved chan []Entry
}

func (s *chanSaver) SavePrinters(_ context.Context, entries []Entry) error {
	s.saved <- entries
	return nil
}

func TestMutationsPersistAsync(t *testing.T) {
	saver := &chanSaver{saved: make(chan []Entry, 8)}
	p := NewPool(saver, nil, zaptest.NewLogger(t))
	t.Cleanup(p.Close)

	require.True(t, p.AddPrinter(ethernetConfig("p1", "Persisted")))

	select {
	case entries := <-saver.saved:
		require.Len(t, entries, 1)
		assert.Equal(t, "p1", entries[0].Config.ID)
	case <-time.After(2 * time.Second):
		t.Fatal("save never happened")
	}

	p.RemovePrinter("p1")
	select {
	case entries := <-saver.saved:
		assert.Empty(t, entries)
	case <-time.After(2 * time.Second):
		t.Fatal("save never happened after remove")
	}
}

// stallingSaver blocks its first save until gate is closed and records every
// committed snapshot.
type stallingSaver struct {
	gate  chan struct{}
	calls atomic.Int32

	mu   sync.Mutex
	last []Entry
}

func (s *stallingSaver) SavePrinters(_ context.Context, entries []Entry) error {
	if s.calls.Add(1) == 1 {
		<-s.gate
	}
	s.mu.Lock()
	s.last = append([]Entry(nil), entries...)
	s.mu.Unlock()
	return nil
}

func (s *stallingSaver) lastSaved() []Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last
}

func TestStalledSaveNeverOverwritesNewerState(t *testing.T) {
	saver := &stallingSaver{gate: make(chan struct{})}
	p := NewPool(saver, nil, zaptest.NewLogger(t))
	t.Cleanup(p.Close)

	require.True(t, p.AddPrinter(ethernetConfig("p1", "Doomed")))

	// Wait until the add's save is in flight, stalled with a one-entry
	// snapshot, then remove the printer underneath it.
	require.Eventually(t, func() bool { return saver.calls.Load() == 1 },
		2*time.Second, time.Millisecond)
	p.RemovePrinter("p1")
	close(saver.gate)

	assert.Eventually(t, func() bool { return len(saver.lastSaved()) == 0 },
		2*time.Second, time.Millisecond, "stale snapshot committed last: %v", saver.lastSaved())
	assert.GreaterOrEqual(t, saver.calls.Load(), int32(2))
	assert.Empty(t, p.Printers())
}

// mutatingSink re-enters the pool with a write operation from inside the
// status callback.
type mutatingSink struct {
	pool *Pool
}

func (s *mutatingSink) PrinterStatusChanged(id, _ string, _, next printer.Status) {
	if id == "p1" && next == printer.StatusBusy {
		s.pool.SetPrinterEnabled("p2", false)
	}
}

func (s *mutatingSink) JobFinished(_, _ string, _ bool, _ string) {}

func TestStatusEventsFireOutsidePoolLock(t *testing.T) {
	sink := &mutatingSink{}
	p := NewPool(nil, sink, zaptest.NewLogger(t))
	sink.pool = p
	require.True(t, p.AddPrinter(ethernetConfig("p1", "Claimed")))
	require.True(t, p.AddPrinter(ethernetConfig("p2", "Bystander")))

	done := make(chan struct{})
	go func() {
		_, _, err := p.claim("p1", map[string]bool{})
		assert.NoError(t, err)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("claim deadlocked against its own status callback")
	}

	e, err := p.GetPrinter("p2")
	require.NoError(t, err)
	assert.False(t, e.Config.Enabled)
}
