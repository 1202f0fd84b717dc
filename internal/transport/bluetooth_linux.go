//go:build linux

package transport

import (
	"context"
	"fmt"
	"net"
	"time"

	"golang.org/x/sys/unix"

	"github.com/posfleet/printpool/internal/printer"
)

// Thermal printers expose their serial port service on RFCOMM channel 1.
const rfcommChannel = 1

type bluetoothAdapter struct {
	mac      string
	timeouts Timeouts
	fd       int
	open     bool
}

func newBluetoothAdapter(p *printer.BluetoothParams, t Timeouts) Adapter {
	return &bluetoothAdapter{
		mac:      p.MACAddress,
		timeouts: t,
		fd:       -1,
	}
}

func (a *bluetoothAdapter) Open(ctx context.Context) error {
	if a.open {
		return nil
	}

	hw, err := net.ParseMAC(a.mac)
	if err != nil || len(hw) != 6 {
		return fmt.Errorf("%w: bad MAC %q", ErrConnectionFailed, a.mac)
	}

	fd, err := unix.Socket(unix.AF_BLUETOOTH, unix.SOCK_STREAM, unix.BTPROTO_RFCOMM)
	if err != nil {
		return fmt.Errorf("%w: rfcomm socket: %v", ErrConnectionFailed, err)
	}

	if err := setSocketTimeout(fd, unix.SO_SNDTIMEO, a.timeouts.Open); err != nil {
		unix.Close(fd)
		return fmt.Errorf("%w: set timeout: %v", ErrConnectionFailed, err)
	}

	// SockaddrRFCOMM wants the address in reverse byte order.
	var addr [6]uint8
	for i := 0; i < 6; i++ {
		addr[i] = hw[5-i]
	}

	sa := &unix.SockaddrRFCOMM{Addr: addr, Channel: rfcommChannel}
	if err := unix.Connect(fd, sa); err != nil {
		unix.Close(fd)
		return fmt.Errorf("%w: rfcomm connect %s: %v", ErrConnectionFailed, a.mac, err)
	}

	if err := setSocketTimeout(fd, unix.SO_SNDTIMEO, a.timeouts.Write); err != nil {
		unix.Close(fd)
		return fmt.Errorf("%w: set timeout: %v", ErrConnectionFailed, err)
	}

	a.fd = fd
	a.open = true
	return nil
}

func (a *bluetoothAdapter) Write(p []byte) (int, error) {
	if !a.open {
		return 0, fmt.Errorf("%w: not connected", ErrTransmissionFailed)
	}

	total := 0
	for total < len(p) {
		n, err := unix.Write(a.fd, p[total:])
		if err != nil {
			return total, fmt.Errorf("%w: rfcomm write %s: %v", ErrTransmissionFailed, a.mac, err)
		}
		total += n
	}
	return total, nil
}

func (a *bluetoothAdapter) Close() error {
	if !a.open {
		return nil
	}
	a.open = false
	err := unix.Close(a.fd)
	a.fd = -1
	return err
}

func setSocketTimeout(fd int, opt int, d time.Duration) error {
	tv := unix.NsecToTimeval(d.Nanoseconds())
	return unix.SetsockoptTimeval(fd, unix.SOL_SOCKET, opt, &tv)
}
