package store

// runMigrations executes all database migrations.
func (s *Store) runMigrations() error {
	migrations := []string{
		// Words table - one row per registered reference shape
		`CREATE TABLE IF NOT EXISTS words (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL UNIQUE,
			samples INTEGER NOT NULL DEFAULT 1,
			image BLOB,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,

		// Word landmarks table - the reference shape matched at runtime
		`CREATE TABLE IF NOT EXISTS word_landmarks (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			word_id TEXT NOT NULL REFERENCES words(id) ON DELETE CASCADE,
			landmark_index INTEGER NOT NULL,
			x REAL NOT NULL,
			y REAL NOT NULL,
			z REAL NOT NULL
		)`,

		// Word samples table - per-image landmarks a reference was averaged from
		`CREATE TABLE IF NOT EXISTS word_samples (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			word_id TEXT NOT NULL REFERENCES words(id) ON DELETE CASCADE,
			sample_index INTEGER NOT NULL,
			data TEXT NOT NULL,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,

		`CREATE INDEX IF NOT EXISTS idx_word_landmarks_word_id ON word_landmarks(word_id)`,
		`CREATE INDEX IF NOT EXISTS idx_word_samples_word_id ON word_samples(word_id)`,
	}

	for _, migration := range migrations {
		if _, err := s.db.Exec(migration); err != nil {
			return err
		}
	}

	return nil
}
