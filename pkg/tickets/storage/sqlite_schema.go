package storage

// SchemaVersion is the current ticket database schema version.
const SchemaVersion = 1

// Schema contains the SQL statements to create the ticket database schema.
// Money columns are stored as decimal strings; total_fine_num mirrors
// total_fine as REAL for range filters and sorting.
const Schema = `
CREATE TABLE IF NOT EXISTS tickets (
    id TEXT PRIMARY KEY,
    vehicle_id TEXT NOT NULL,
    license_plate TEXT NOT NULL,
    vehicle_type TEXT NOT NULL,
    kind TEXT NOT NULL,
    band TEXT NOT NULL,

    speed REAL NOT NULL,
    speed_limit REAL NOT NULL,

    base_fine TEXT NOT NULL,
    penalty_multiplier TEXT NOT NULL,
    total_fine TEXT NOT NULL,
    total_fine_num REAL NOT NULL,
    clamped BOOLEAN NOT NULL DEFAULT 0,

    stnk_active BOOLEAN NOT NULL,
    sim_active BOOLEAN NOT NULL,

    location TEXT NOT NULL,
    issued_at TIMESTAMP NOT NULL,
    status TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS schema_version (
    version INTEGER PRIMARY KEY,
    applied_at TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_tickets_issued_at ON tickets(issued_at);
CREATE INDEX IF NOT EXISTS idx_tickets_license_plate ON tickets(license_plate);
CREATE INDEX IF NOT EXISTS idx_tickets_kind ON tickets(kind);
CREATE INDEX IF NOT EXISTS idx_tickets_total_fine ON tickets(total_fine_num);
`

// InsertSchemaVersion inserts the schema version into the schema_version table.
const InsertSchemaVersion = `
INSERT INTO schema_version (version, applied_at)
VALUES (?, datetime('now'))
ON CONFLICT(version) DO NOTHING;
`

// GetSchemaVersion retrieves the current schema version from the database.
const GetSchemaVersion = `
SELECT version FROM schema_version ORDER BY version DESC LIMIT 1;
`

const ticketColumns = `id, vehicle_id, license_plate, vehicle_type, kind, band,
	speed, speed_limit, base_fine, penalty_multiplier, total_fine, total_fine_num, clamped,
	stnk_active, sim_active, location, issued_at, status`

const insertTicket = `INSERT INTO tickets (` + ticketColumns + `)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
