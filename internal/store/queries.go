package store

const schemaSQL = `
CREATE TABLE IF NOT EXISTS printers (
	id             TEXT PRIMARY KEY,
	name           TEXT NOT NULL,
	type           TEXT NOT NULL,
	ip_address     TEXT,
	port           INTEGER,
	vendor_id      INTEGER,
	product_id     INTEGER,
	mac_address    TEXT,
	enabled        INTEGER NOT NULL DEFAULT 1,
	print_width    INTEGER NOT NULL,
	jobs_completed INTEGER NOT NULL DEFAULT 0,
	position       INTEGER NOT NULL,
	updated_at     DATETIME DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS settings (
	key        TEXT PRIMARY KEY,
	value      TEXT NOT NULL,
	updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
);
`

const (
	deleteAllPrinters = `DELETE FROM printers`

	insertPrinter = `
		INSERT INTO printers (id, name, type, ip_address, port, vendor_id, product_id, mac_address, enabled, print_width, jobs_completed, position)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	listPrinters = `
		SELECT id, name, type, ip_address, port, vendor_id, product_id, mac_address, enabled, print_width, jobs_completed
		FROM printers ORDER BY position ASC
	`

	getSetting = `SELECT value FROM settings WHERE key = ?`

	setSetting = `
		INSERT INTO settings (key, value, updated_at) VALUES (?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = CURRENT_TIMESTAMP
	`
)
