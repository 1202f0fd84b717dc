package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/posfleet/printpool/internal/core"
	"github.com/posfleet/printpool/internal/printer"
)

// SavePrinters replaces the persisted printer list with the given snapshot.
// The pool calls this after every successful mutation, fire-and-forget.
func (s *Store) SavePrinters(ctx context.Context, printers []core.Entry) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, deleteAllPrinters); err != nil {
		return fmt.Errorf("failed to clear printers: %w", err)
	}

	for i, e := range printers {
		var (
			ip        sql.NullString
			port      sql.NullInt64
			vendorID  sql.NullInt64
			productID sql.NullInt64
			mac       sql.NullString
		)
		switch {
		case e.Config.Ethernet != nil:
			ip = sql.NullString{String: e.Config.Ethernet.IP, Valid: true}
			port = sql.NullInt64{Int64: int64(e.Config.Ethernet.Port), Valid: true}
		case e.Config.USB != nil:
			vendorID = sql.NullInt64{Int64: int64(e.Config.USB.VendorID), Valid: true}
			productID = sql.NullInt64{Int64: int64(e.Config.USB.ProductID), Valid: true}
		case e.Config.Bluetooth != nil:
			mac = sql.NullString{String: e.Config.Bluetooth.MACAddress, Valid: true}
		}

		_, err := tx.ExecContext(ctx, insertPrinter,
			e.Config.ID, e.Config.Name, string(e.Config.Type),
			ip, port, vendorID, productID, mac,
			e.Config.Enabled, e.Config.PrintWidth, e.JobsCompleted, i)
		if err != nil {
			return fmt.Errorf("failed to insert printer %s: %w", e.Config.ID, err)
		}
	}

	return tx.Commit()
}

// LoadPrinters returns the persisted printers in saved order.
func (s *Store) LoadPrinters(ctx context.Context) ([]core.RestoredPrinter, error) {
	rows, err := s.db.QueryContext(ctx, listPrinters)
	if err != nil {
		return nil, fmt.Errorf("failed to list printers: %w", err)
	}
	defer rows.Close()

	var out []core.RestoredPrinter
	for rows.Next() {
		var (
			cfg       printer.Config
			typ       string
			ip        sql.NullString
			port      sql.NullInt64
			vendorID  sql.NullInt64
			productID sql.NullInt64
			mac       sql.NullString
			completed int64
		)
		if err := rows.Scan(&cfg.ID, &cfg.Name, &typ, &ip, &port,
			&vendorID, &productID, &mac, &cfg.Enabled, &cfg.PrintWidth, &completed); err != nil {
			return nil, fmt.Errorf("failed to scan printer: %w", err)
		}

		cfg.Type = printer.TransportType(typ)
		switch cfg.Type {
		case printer.TransportEthernet:
			cfg.Ethernet = &printer.EthernetParams{IP: ip.String, Port: int(port.Int64)}
		case printer.TransportUSB:
			cfg.USB = &printer.USBParams{VendorID: uint16(vendorID.Int64), ProductID: uint16(productID.Int64)}
		case printer.TransportBluetooth:
			cfg.Bluetooth = &printer.BluetoothParams{MACAddress: mac.String}
		}

		out = append(out, core.RestoredPrinter{Config: cfg, JobsCompleted: completed})
	}
	return out, rows.Err()
}
