package store

// runMigrations executes all database migrations.
func (s *Store) runMigrations() error {
	migrations := []string{
		// Sessions table - one row per tracking run
		`CREATE TABLE IF NOT EXISTS sessions (
			id TEXT PRIMARY KEY,
			jewelry TEXT NOT NULL CHECK(jewelry IN ('ring', 'bracelet', 'necklace')),
			finger TEXT NOT NULL,
			started_at DATETIME NOT NULL,
			ended_at DATETIME,
			placements INTEGER NOT NULL DEFAULT 0,
			lost_events INTEGER NOT NULL DEFAULT 0
		)`,

		// Placements table - published anchors and lost markers in tick order
		`CREATE TABLE IF NOT EXISTS placements (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			session_id TEXT NOT NULL REFERENCES sessions(id) ON DELETE CASCADE,
			tick INTEGER NOT NULL,
			kind TEXT NOT NULL CHECK(kind IN ('finger', 'wrist', 'neck')),
			lost INTEGER NOT NULL DEFAULT 0,
			finger TEXT NOT NULL DEFAULT '',
			x REAL NOT NULL DEFAULT 0,
			y REAL NOT NULL DEFAULT 0,
			z REAL NOT NULL DEFAULT 0,
			width REAL NOT NULL DEFAULT 0,
			length REAL NOT NULL DEFAULT 0,
			angle REAL NOT NULL DEFAULT 0,
			recorded_at DATETIME NOT NULL
		)`,

		// Settings table - stores application settings as key-value pairs
		`CREATE TABLE IF NOT EXISTS settings (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		)`,

		// Indexes for better query performance
		`CREATE INDEX IF NOT EXISTS idx_placements_session_tick ON placements(session_id, tick)`,
		`CREATE INDEX IF NOT EXISTS idx_sessions_started_at ON sessions(started_at)`,
	}

	for _, migration := range migrations {
		if _, err := s.db.Exec(migration); err != nil {
			return err
		}
	}

	return nil
}
