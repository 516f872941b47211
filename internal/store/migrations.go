package store

// runMigrations creates the schema. Statements are idempotent.
func (s *Store) runMigrations() error {
	migrations := []string{
		// One binding per gesture kind: which plugin action runs on open / closed
		`CREATE TABLE IF NOT EXISTS bindings (
			id TEXT PRIMARY KEY,
			kind TEXT NOT NULL UNIQUE CHECK(kind IN ('open', 'closed')),
			plugin_name TEXT NOT NULL,
			action_name TEXT NOT NULL,
			config TEXT NOT NULL DEFAULT '{}',
			enabled INTEGER NOT NULL DEFAULT 1,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,

		// Key-value overrides for tracker settings
		`CREATE TABLE IF NOT EXISTS settings (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL,
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,
	}

	for _, migration := range migrations {
		if _, err := s.db.Exec(migration); err != nil {
			return err
		}
	}

	return nil
}
