package printer

import (
	"errors"
	"fmt"
	"net"
	"regexp"
	"strconv"
	"strings"
)

var ErrInvalidConfig = errors.New("invalid printer config")

var macPattern = regexp.MustCompile(`^([0-9A-Fa-f]{2}:){5}[0-9A-Fa-f]{2}$`)

// Validate checks a normalized config. An invalid config must never enter
// the pool.
func Validate(cfg Config) error {
	if strings.TrimSpace(cfg.Name) == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidConfig)
	}
	if cfg.PrintWidth <= 0 {
		return fmt.Errorf("%w: print width must be positive", ErrInvalidConfig)
	}

	switch cfg.Type {
	case TransportEthernet:
		if cfg.Ethernet == nil {
			return fmt.Errorf("%w: ethernet parameters are required", ErrInvalidConfig)
		}
		ip := net.ParseIP(cfg.Ethernet.IP)
		if ip == nil || ip.To4() == nil || !strings.Contains(cfg.Ethernet.IP, ".") {
			return fmt.Errorf("%w: %q is not an IPv4 address", ErrInvalidConfig, cfg.Ethernet.IP)
		}
		if cfg.Ethernet.Port <= 0 || cfg.Ethernet.Port > 65535 {
			return fmt.Errorf("%w: port %d out of range", ErrInvalidConfig, cfg.Ethernet.Port)
		}
	case TransportUSB:
		if cfg.USB == nil {
			return fmt.Errorf("%w: usb parameters are required", ErrInvalidConfig)
		}
		if cfg.USB.VendorID == 0 {
			return fmt.Errorf("%w: usb vendor id is required", ErrInvalidConfig)
		}
		if cfg.USB.ProductID == 0 {
			return fmt.Errorf("%w: usb product id is required", ErrInvalidConfig)
		}
	case TransportBluetooth:
		if cfg.Bluetooth == nil {
			return fmt.Errorf("%w: bluetooth parameters are required", ErrInvalidConfig)
		}
		if !macPattern.MatchString(cfg.Bluetooth.MACAddress) {
			return fmt.Errorf("%w: %q is not a MAC address", ErrInvalidConfig, cfg.Bluetooth.MACAddress)
		}
	default:
		return fmt.Errorf("%w: unknown transport type %q", ErrInvalidConfig, cfg.Type)
	}

	return nil
}

// ParseUSBID parses a vendor or product id given as hex ("0x04b8" or "04b8")
// or decimal.
func ParseUSBID(s string) (uint16, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("%w: usb id is empty", ErrInvalidConfig)
	}
	if v, err := strconv.ParseUint(s, 0, 16); err == nil {
		return uint16(v), nil
	}
	v, err := strconv.ParseUint(s, 16, 16)
	if err != nil {
		return 0, fmt.Errorf("%w: cannot parse usb id %q", ErrInvalidConfig, s)
	}
	return uint16(v), nil
}
