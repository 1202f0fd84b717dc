// Package transport provides a uniform adapter over the physical media a
// printer can be reached on: ethernet sockets, USB device handles and
// Bluetooth RFCOMM channels.
package transport

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/posfleet/printpool/internal/printer"
)

var (
	// ErrConnectionFailed marks failures to reach the device: dial timeouts,
	// refused connections, absent devices. Maps to the offline status.
	ErrConnectionFailed = errors.New("connection failed")

	// ErrTransmissionFailed marks write failures after a connection was
	// opened. Maps to the error status.
	ErrTransmissionFailed = errors.New("transmission failed")
)

type Timeouts struct {
	Open  time.Duration
	Write time.Duration
}

const (
	defaultOpenTimeout  = 5 * time.Second
	defaultWriteTimeout = 10 * time.Second
)

func (t Timeouts) withDefaults() Timeouts {
	if t.Open <= 0 {
		t.Open = defaultOpenTimeout
	}
	if t.Write <= 0 {
		t.Write = defaultWriteTimeout
	}
	return t
}

// Adapter is the contract every transport implements. Open failures are
// ErrConnectionFailed, write failures ErrTransmissionFailed; the caller closes
// the adapter on every exit path.
type Adapter interface {
	Open(ctx context.Context) error
	Write(p []byte) (int, error)
	Close() error
}

// New selects the adapter for a config. The switch is exhaustive over the
// transport types; an unknown type is a programming error at the call site
// because validation rejects it before a config enters the pool.
func New(cfg printer.Config, t Timeouts) (Adapter, error) {
	t = t.withDefaults()

	switch cfg.Type {
	case printer.TransportEthernet:
		return newEthernetAdapter(cfg.Ethernet, t), nil
	case printer.TransportUSB:
		return newUSBAdapter(cfg.USB, t), nil
	case printer.TransportBluetooth:
		return newBluetoothAdapter(cfg.Bluetooth, t), nil
	default:
		return nil, fmt.Errorf("unknown transport type %q", cfg.Type)
	}
}
