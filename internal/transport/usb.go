package transport

import (
	"context"
	"fmt"
	"runtime"

	"github.com/google/gousb"

	"github.com/posfleet/printpool/internal/printer"
)

// USB printer-class interface code.
// Reference: http://www.usb.org/developers/defined_class
const ifaceClassPrinter = 0x07

type usbAdapter struct {
	vid, pid gousb.ID
	timeouts Timeouts

	ctx    *gousb.Context
	device *gousb.Device
	cfg    *gousb.Config
	iface  *gousb.Interface
	out    *gousb.OutEndpoint
}

func newUSBAdapter(p *printer.USBParams, t Timeouts) *usbAdapter {
	return &usbAdapter{
		vid:      gousb.ID(p.VendorID),
		pid:      gousb.ID(p.ProductID),
		timeouts: t,
	}
}

func (a *usbAdapter) Open(ctx context.Context) error {
	if a.out != nil {
		return nil
	}

	// Device discovery is a sequence of blocking libusb calls; bound the
	// whole walk by the open timeout and bail out between steps.
	ctx, cancel := context.WithTimeout(ctx, a.timeouts.Open)
	defer cancel()
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: usb open: %v", ErrConnectionFailed, err)
	}

	a.ctx = gousb.NewContext()

	device, err := a.ctx.OpenDeviceWithVIDPID(a.vid, a.pid)
	if err != nil || device == nil {
		a.teardown()
		return fmt.Errorf("%w: usb device %04x:%04x not found: %v",
			ErrConnectionFailed, uint16(a.vid), uint16(a.pid), err)
	}
	a.device = device

	if err := ctx.Err(); err != nil {
		a.teardown()
		return fmt.Errorf("%w: usb open: %v", ErrConnectionFailed, err)
	}

	if runtime.GOOS == "linux" {
		_ = device.SetAutoDetach(true)
	}

	cfgNum, err := device.ActiveConfigNum()
	if err != nil {
		a.teardown()
		return fmt.Errorf("%w: active config: %v", ErrConnectionFailed, err)
	}

	cfg, err := device.Config(cfgNum)
	if err != nil {
		a.teardown()
		return fmt.Errorf("%w: config %d: %v", ErrConnectionFailed, cfgNum, err)
	}
	a.cfg = cfg

	if err := ctx.Err(); err != nil {
		a.teardown()
		return fmt.Errorf("%w: usb open: %v", ErrConnectionFailed, err)
	}

	ifaceNum := -1
	for _, iface := range cfg.Desc.Interfaces {
		for _, alt := range iface.AltSettings {
			if alt.Class == ifaceClassPrinter {
				ifaceNum = iface.Number
				break
			}
		}
		if ifaceNum >= 0 {
			break
		}
	}
	if ifaceNum < 0 {
		a.teardown()
		return fmt.Errorf("%w: no printer interface on %04x:%04x",
			ErrConnectionFailed, uint16(a.vid), uint16(a.pid))
	}

	iface, err := cfg.Interface(ifaceNum, 0)
	if err != nil {
		a.teardown()
		return fmt.Errorf("%w: claim interface %d: %v", ErrConnectionFailed, ifaceNum, err)
	}
	a.iface = iface

	for _, epDesc := range iface.Setting.Endpoints {
		if epDesc.Direction == gousb.EndpointDirectionOut {
			ep, err := iface.OutEndpoint(epDesc.Number)
			if err == nil {
				a.out = ep
				break
			}
		}
	}
	if a.out == nil {
		a.teardown()
		return fmt.Errorf("%w: no output endpoint on %04x:%04x",
			ErrConnectionFailed, uint16(a.vid), uint16(a.pid))
	}

	return nil
}

func (a *usbAdapter) Write(p []byte) (int, error) {
	if a.out == nil {
		return 0, fmt.Errorf("%w: device not open", ErrTransmissionFailed)
	}

	ctx, cancel := context.WithTimeout(context.Background(), a.timeouts.Write)
	defer cancel()

	n, err := a.out.WriteContext(ctx, p)
	if err != nil {
		return n, fmt.Errorf("%w: usb write: %v", ErrTransmissionFailed, err)
	}
	return n, nil
}

func (a *usbAdapter) Close() error {
	return a.teardown()
}

func (a *usbAdapter) teardown() error {
	var firstErr error

	a.out = nil
	if a.iface != nil {
		a.iface.Close()
		a.iface = nil
	}
	if a.cfg != nil {
		if err := a.cfg.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		a.cfg = nil
	}
	if a.device != nil {
		if err := a.device.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		a.device = nil
	}
	if a.ctx != nil {
		if err := a.ctx.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		a.ctx = nil
	}
	return firstErr
}
