package printer

import (
	"github.com/google/uuid"
)

type TransportType string

const (
	TransportEthernet  TransportType = "ethernet"
	TransportUSB       TransportType = "usb"
	TransportBluetooth TransportType = "bluetooth"
)

type Status string

const (
	StatusIdle    Status = "idle"
	StatusBusy    Status = "busy"
	StatusOffline Status = "offline"
	StatusError   Status = "error"
)

const (
	DefaultPort       = 9100
	DefaultPrintWidth = 576
)

type EthernetParams struct {
	IP   string `json:"ip" yaml:"ip"`
	Port int    `json:"port" yaml:"port"`
}

type USBParams struct {
	VendorID  uint16 `json:"vendor_id" yaml:"vendor_id"`
	ProductID uint16 `json:"product_id" yaml:"product_id"`
}

type BluetoothParams struct {
	MACAddress string `json:"mac_address" yaml:"mac_address"`
}

// Config describes one printer. Exactly one of the param structs is set,
// matching Type.
type Config struct {
	ID         string           `json:"id"`
	Name       string           `json:"name"`
	Type       TransportType    `json:"type"`
	Ethernet   *EthernetParams  `json:"ethernet,omitempty"`
	USB        *USBParams       `json:"usb,omitempty"`
	Bluetooth  *BluetoothParams `json:"bluetooth,omitempty"`
	Enabled    bool             `json:"enabled"`
	PrintWidth int              `json:"print_width"`
}

// Clone returns a copy with its own param structs, so the result never
// aliases the receiver's memory.
func (c Config) Clone() Config {
	if c.Ethernet != nil {
		eth := *c.Ethernet
		c.Ethernet = &eth
	}
	if c.USB != nil {
		usb := *c.USB
		c.USB = &usb
	}
	if c.Bluetooth != nil {
		bt := *c.Bluetooth
		c.Bluetooth = &bt
	}
	return c
}

// Normalize fills in defaults on a cloned copy.
func Normalize(cfg Config) Config {
	cfg = cfg.Clone()
	if cfg.ID == "" {
		cfg.ID = uuid.NewString()
	}
	if cfg.PrintWidth == 0 {
		cfg.PrintWidth = DefaultPrintWidth
	}
	if cfg.Ethernet != nil && cfg.Ethernet.Port == 0 {
		cfg.Ethernet.Port = DefaultPort
	}
	return cfg
}
