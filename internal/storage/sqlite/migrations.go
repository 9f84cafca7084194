package sqlite

const schema = `
-- Saved target lists
CREATE TABLE IF NOT EXISTS target_lists (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    name TEXT NOT NULL UNIQUE,
    description TEXT DEFAULT '',
    created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
    updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
);

-- Spec lines of each list, in file order
CREATE TABLE IF NOT EXISTS target_specs (
    list_id INTEGER NOT NULL,
    position INTEGER NOT NULL,
    spec TEXT NOT NULL,
    PRIMARY KEY (list_id, position),
    FOREIGN KEY (list_id) REFERENCES target_lists(id) ON DELETE CASCADE
);

-- Application settings
CREATE TABLE IF NOT EXISTS settings (
    key TEXT PRIMARY KEY,
    value TEXT NOT NULL,
    updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_target_specs_list_id ON target_specs(list_id);

-- Triggers for updated_at
CREATE TRIGGER IF NOT EXISTS update_target_lists_timestamp AFTER UPDATE ON target_lists
BEGIN
    UPDATE target_lists SET updated_at = CURRENT_TIMESTAMP WHERE id = NEW.id;
END;

CREATE TRIGGER IF NOT EXISTS update_settings_timestamp AFTER UPDATE ON settings
BEGIN
    UPDATE settings SET updated_at = CURRENT_TIMESTAMP WHERE key = NEW.key;
END;
`

// Keys and values mirror config.Defaults.
const defaultData = `
INSERT OR IGNORE INTO settings (key, value) VALUES
    ('probe_interval_ms', '2000'),
    ('probe_timeout_ms', '1000'),
    ('probe_workers', '50'),
    ('probe_strategy', 'icmp'),
    ('tcp_port', '80'),
    ('privileged', 'auto'),
    ('window_size', '20'),
    ('trend_epsilon_ms', '0.5'),
    ('max_addresses', '65536'),
    ('refresh_ms', '250'),
    ('resolve_names', 'true');
`

// runMigrations executes the database schema and default data
func runMigrations(db *DB) error {
	if _, err := db.db.Exec(schema); err != nil {
		return err
	}

	if _, err := db.db.Exec(defaultData); err != nil {
		return err
	}

	return nil
}
