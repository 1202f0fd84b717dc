//go:build !linux

package transport

import (
	"context"
	"fmt"

	"github.com/posfleet/printpool/internal/printer"
)

// RFCOMM sockets are only wired up on Linux. Elsewhere the adapter reports
// every printer as unreachable, which surfaces as an offline status.
type bluetoothAdapter struct {
	mac string
}

func newBluetoothAdapter(p *printer.BluetoothParams, _ Timeouts) Adapter {
	return &bluetoothAdapter{mac: p.MACAddress}
}

func (a *bluetoothAdapter) Open(ctx context.Context) error {
	return fmt.Errorf("%w: bluetooth not supported on this platform", ErrConnectionFailed)
}

func (a *bluetoothAdapter) Write(p []byte) (int, error) {
	return 0, fmt.Errorf("%w: bluetooth not supported on this platform", ErrTransmissionFailed)
}

func (a *bluetoothAdapter) Close() error { return nil }
