package store

import (
	"fmt"
)

// migrate runs all pending migrations
func (s *Store) migrate() error {
	// Create migrations table if it doesn't exist
	createMigrationsTableSQL := `
		CREATE TABLE IF NOT EXISTS migrations (
			id INTEGER PRIMARY KEY,
			version INTEGER NOT NULL UNIQUE,
			applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
		);
	`

	if _, err := s.db.Exec(createMigrationsTableSQL); err != nil {
		return fmt.Errorf("failed to create migrations table: %w", err)
	}

	// Get the current schema version
	var currentVersion int
	err := s.db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM migrations").Scan(&currentVersion)
	if err != nil {
		return fmt.Errorf("failed to get current migration version: %w", err)
	}

	s.logger.Info("Current schema version", "version", currentVersion)

	// Define all migrations
	migrations := []struct {
		version int
		sql     string
	}{
		{
			version: 1,
			sql: `
				CREATE TABLE build_runs (
					id INTEGER PRIMARY KEY AUTOINCREMENT,
					label TEXT NOT NULL,
					manifest_path TEXT NOT NULL,
					source_dir TEXT NOT NULL,
					overlay_dir TEXT,
					target_dir TEXT NOT NULL,
					start_time DATETIME NOT NULL,
					end_time DATETIME,
					status TEXT DEFAULT 'running',
					failures INTEGER DEFAULT 0,
					error_message TEXT
				);

				CREATE TABLE build_events (
					id INTEGER PRIMARY KEY AUTOINCREMENT,
					run_id INTEGER NOT NULL,
					seq INTEGER NOT NULL,
					kind TEXT NOT NULL,
					subject TEXT,
					path TEXT,
					result TEXT,
					failed BOOLEAN DEFAULT 0,
					created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
					UNIQUE(run_id, seq),
					FOREIGN KEY(run_id) REFERENCES build_runs(id)
				);

				CREATE TABLE transfers (
					id INTEGER PRIMARY KEY AUTOINCREMENT,
					direction TEXT NOT NULL,
					path TEXT NOT NULL,
					label TEXT,
					archive_count INTEGER DEFAULT 0,
					total_size INTEGER DEFAULT 0,
					manifest_hash TEXT,
					status TEXT DEFAULT 'running',
					error_message TEXT,
					start_time DATETIME NOT NULL,
					end_time DATETIME
				);
			`,
		},
		{
			version: 2,
			sql: `
				CREATE TABLE transfer_archives (
					id INTEGER PRIMARY KEY AUTOINCREMENT,
					transfer_id INTEGER NOT NULL,
					archive_name TEXT NOT NULL,
					checksum TEXT NOT NULL,
					size INTEGER DEFAULT 0,
					validated BOOLEAN DEFAULT 0,
					validated_at DATETIME,
					FOREIGN KEY(transfer_id) REFERENCES transfers(id)
				);

				CREATE INDEX idx_build_events_run ON build_events(run_id, seq);
			`,
		},
	}

	// Run pending migrations
	for _, mig := range migrations {
		if mig.version > currentVersion {
			s.logger.Info("Running migration", "version", mig.version)

			if err := s.runMigration(mig.version, mig.sql); err != nil {
				return fmt.Errorf("failed to run migration %d: %w", mig.version, err)
			}

			s.logger.Info("Migration completed", "version", mig.version)
		}
	}

	return nil
}

// runMigration executes a migration and records it
func (s *Store) runMigration(version int, sql string) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	// Execute the migration SQL
	if _, err := tx.Exec(sql); err != nil {
		return fmt.Errorf("failed to execute migration SQL: %w", err)
	}

	// Record the migration
	insertSQL := "INSERT INTO migrations (version) VALUES (?)"
	if _, err := tx.Exec(insertSQL, version); err != nil {
		return fmt.Errorf("failed to record migration: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit migration transaction: %w", err)
	}

	return nil
}
