package transport

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/posfleet/printpool/internal/printer"
)

type ethernetAdapter struct {
	addr     string
	timeouts Timeouts
	conn     net.Conn
}

func newEthernetAdapter(p *printer.EthernetParams, t Timeouts) *ethernetAdapter {
	return &ethernetAdapter{
		addr:     fmt.Sprintf("%s:%d", p.IP, p.Port),
		timeouts: t,
	}
}

func (a *ethernetAdapter) Open(ctx context.Context) error {
	if a.conn != nil {
		return nil
	}

	timeout := a.timeouts.Open
	if deadline, ok := ctx.Deadline(); ok {
		if remaining := time.Until(deadline); remaining < timeout {
			timeout = remaining
		}
	}

	conn, err := net.DialTimeout("tcp", a.addr, timeout)
	if err != nil {
		return fmt.Errorf("%w: dial %s: %v", ErrConnectionFailed, a.addr, err)
	}

	a.conn = conn
	return nil
}

func (a *ethernetAdapter) Write(p []byte) (int, error) {
	if a.conn == nil {
		return 0, fmt.Errorf("%w: not connected", ErrTransmissionFailed)
	}

	_ = a.conn.SetWriteDeadline(time.Now().Add(a.timeouts.Write))

	n, err := a.conn.Write(p)
	if err != nil {
		if errors.Is(err, net.ErrClosed) {
			return n, fmt.Errorf("%w: %v", ErrTransmissionFailed, err)
		}
		return n, fmt.Errorf("%w: write %s: %v", ErrTransmissionFailed, a.addr, err)
	}
	return n, nil
}

func (a *ethernetAdapter) Close() error {
	if a.conn == nil {
		return nil
	}
	err := a.conn.Close()
	a.conn = nil
	return err
}
