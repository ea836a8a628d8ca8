package store

import (
	"database/sql"
	"fmt"
	"log/slog"

	_ "modernc.org/sqlite"
)

// Store provides SQLite-backed persistence
type Store struct {
	db     *sql.DB
	logger *slog.Logger
}

// New creates a new Store, opening the SQLite database and running migrations
func New(dbPath string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// The build worker and the front end share one handle; a single
	// connection keeps ":memory:" databases coherent and serialises writes.
	db.SetMaxOpenConns(1)

	// Test the connection
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	s := &Store{
		db:     db,
		logger: logger,
	}

	// Run migrations
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	logger.Debug("Store initialized successfully", "path", dbPath)
	return s, nil
}

// Close closes the database connection
func (s *Store) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("failed to close database: %w", err)
	}
	return nil
}

// ============================================================================
// BuildRun Operations
// ============================================================================

// CreateBuildRun inserts a new BuildRun and sets its ID
func (s *Store) CreateBuildRun(run *BuildRun) error {
	const query = `
		INSERT INTO build_runs (
			label, manifest_path, source_dir, overlay_dir, target_dir,
			start_time, end_time, status, failures, error_message
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	result, err := s.db.Exec(
		query,
		run.Label, run.ManifestPath, run.SourceDir, run.OverlayDir, run.TargetDir,
		run.StartTime, run.EndTime, run.Status, run.Failures, run.ErrorMessage,
	)
	if err != nil {
		return fmt.Errorf("failed to insert build run: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}

	run.ID = id
	return nil
}

// UpdateBuildRun updates an existing BuildRun by ID
func (s *Store) UpdateBuildRun(run *BuildRun) error {
	const query = `
		UPDATE build_runs SET
			label = ?, manifest_path = ?, source_dir = ?, overlay_dir = ?,
			target_dir = ?, start_time = ?, end_time = ?, status = ?,
			failures = ?, error_message = ?
		WHERE id = ?
	`

	result, err := s.db.Exec(
		query,
		run.Label, run.ManifestPath, run.SourceDir, run.OverlayDir, run.TargetDir,
		run.StartTime, run.EndTime, run.Status, run.Failures, run.ErrorMessage,
		run.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update build run: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return fmt.Errorf("build run not found: %d", run.ID)
	}

	return nil
}

// GetBuildRun retrieves a BuildRun by ID
func (s *Store) GetBuildRun(id int64) (*BuildRun, error) {
	const query = `
		SELECT id, label, manifest_path, source_dir, overlay_dir, target_dir,
		       start_time, end_time, status, failures, error_message
		FROM build_runs WHERE id = ?
	`

	run := &BuildRun{}
	err := s.db.QueryRow(query, id).Scan(
		&run.ID, &run.Label, &run.ManifestPath, &run.SourceDir, &run.OverlayDir,
		&run.TargetDir, &run.StartTime, &run.EndTime, &run.Status,
		&run.Failures, &run.ErrorMessage,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("build run not found: %d", id)
		}
		return nil, fmt.Errorf("failed to query build run: %w", err)
	}

	return run, nil
}

// ListBuildRuns retrieves BuildRuns newest first, optionally filtered by status
func (s *Store) ListBuildRuns(status string, limit int) ([]BuildRun, error) {
	query := `
		SELECT id, label, manifest_path, source_dir, overlay_dir, target_dir,
		       start_time, end_time, status, failures, error_message
		FROM build_runs
	`
	var args []interface{}

	if status != "" {
		query += " WHERE status = ?"
		args = append(args, status)
	}

	query += " ORDER BY start_time DESC, id DESC"

	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query build runs: %w", err)
	}
	defer rows.Close()

	var runs []BuildRun
	for rows.Next() {
		run := BuildRun{}
		err := rows.Scan(
			&run.ID, &run.Label, &run.ManifestPath, &run.SourceDir, &run.OverlayDir,
			&run.TargetDir, &run.StartTime, &run.EndTime, &run.Status,
			&run.Failures, &run.ErrorMessage,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan build run: %w", err)
		}
		runs = append(runs, run)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating build runs: %w", err)
	}

	return runs, nil
}

// ============================================================================
// BuildEvent Operations
// ============================================================================

// AddBuildEvent appends an event to a run and sets its ID
func (s *Store) AddBuildEvent(ev *BuildEvent) error {
	const query = `
		INSERT INTO build_events (
			run_id, seq, kind, subject, path, result, failed
		) VALUES (?, ?, ?, ?, ?, ?, ?)
	`

	result, err := s.db.Exec(
		query,
		ev.RunID, ev.Seq, ev.Kind, ev.Subject, ev.Path, ev.Result, ev.Failed,
	)
	if err != nil {
		return fmt.Errorf("failed to insert build event: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}

	ev.ID = id
	return nil
}

// ListBuildEvents retrieves a run's events in emission order
func (s *Store) ListBuildEvents(runID int64) ([]BuildEvent, error) {
	const query = `
		SELECT id, run_id, seq, kind, subject, path, result, failed, created_at
		FROM build_events WHERE run_id = ? ORDER BY seq
	`

	rows, err := s.db.Query(query, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query build events: %w", err)
	}
	defer rows.Close()

	var events []BuildEvent
	for rows.Next() {
		ev := BuildEvent{}
		err := rows.Scan(
			&ev.ID, &ev.RunID, &ev.Seq, &ev.Kind, &ev.Subject,
			&ev.Path, &ev.Result, &ev.Failed, &ev.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan build event: %w", err)
		}
		events = append(events, ev)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating build events: %w", err)
	}

	return events, nil
}

// CountFailedEvents returns how many of a run's events describe a failure
func (s *Store) CountFailedEvents(runID int64) (int, error) {
	const query = "SELECT COUNT(*) FROM build_events WHERE run_id = ? AND failed = 1"

	var count int
	if err := s.db.QueryRow(query, runID).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count failed events: %w", err)
	}

	return count, nil
}

// ============================================================================
// Transfer Operations
// ============================================================================

// CreateTransfer inserts a new Transfer and sets its ID
func (s *Store) CreateTransfer(t *Transfer) error {
	const query = `
		INSERT INTO transfers (
			direction, path, label, archive_count, total_size,
			manifest_hash, status, error_message, start_time, end_time
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	result, err := s.db.Exec(
		query,
		t.Direction, t.Path, t.Label, t.ArchiveCount, t.TotalSize,
		t.ManifestHash, t.Status, t.ErrorMessage, t.StartTime, t.EndTime,
	)
	if err != nil {
		return fmt.Errorf("failed to insert transfer: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}

	t.ID = id
	return nil
}

// UpdateTransfer updates an existing Transfer by ID
func (s *Store) UpdateTransfer(t *Transfer) error {
	const query = `
		UPDATE transfers SET
			direction = ?, path = ?, label = ?, archive_count = ?,
			total_size = ?, manifest_hash = ?, status = ?,
			error_message = ?, start_time = ?, end_time = ?
		WHERE id = ?
	`

	result, err := s.db.Exec(
		query,
		t.Direction, t.Path, t.Label, t.ArchiveCount, t.TotalSize,
		t.ManifestHash, t.Status, t.ErrorMessage, t.StartTime, t.EndTime, t.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update transfer: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return fmt.Errorf("transfer not found: %d", t.ID)
	}

	return nil
}

// ListTransfers retrieves Transfers, optionally limited
func (s *Store) ListTransfers(limit int) ([]Transfer, error) {
	query := `
		SELECT id, direction, path, label, archive_count, total_size,
		       manifest_hash, status, error_message, start_time, end_time
		FROM transfers ORDER BY start_time DESC, id DESC
	`
	var args []interface{}

	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query transfers: %w", err)
	}
	defer rows.Close()

	var transfers []Transfer
	for rows.Next() {
		t := Transfer{}
		err := rows.Scan(
			&t.ID, &t.Direction, &t.Path, &t.Label, &t.ArchiveCount,
			&t.TotalSize, &t.ManifestHash, &t.Status, &t.ErrorMessage,
			&t.StartTime, &t.EndTime,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan transfer: %w", err)
		}
		transfers = append(transfers, t)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating transfers: %w", err)
	}

	return transfers, nil
}

// ============================================================================
// TransferArchive Operations
// ============================================================================

// CreateTransferArchive inserts a new TransferArchive and sets its ID
func (s *Store) CreateTransferArchive(a *TransferArchive) error {
	const query = `
		INSERT INTO transfer_archives (
			transfer_id, archive_name, checksum, size, validated, validated_at
		) VALUES (?, ?, ?, ?, ?, ?)
	`

	result, err := s.db.Exec(
		query,
		a.TransferID, a.ArchiveName, a.Checksum, a.Size,
		a.Validated, a.ValidatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert transfer archive: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}

	a.ID = id
	return nil
}

// ListTransferArchives retrieves all archives for a transfer
func (s *Store) ListTransferArchives(transferID int64) ([]TransferArchive, error) {
	const query = `
		SELECT id, transfer_id, archive_name, checksum, size, validated, validated_at
		FROM transfer_archives WHERE transfer_id = ? ORDER BY archive_name
	`

	rows, err := s.db.Query(query, transferID)
	if err != nil {
		return nil, fmt.Errorf("failed to query transfer archives: %w", err)
	}
	defer rows.Close()

	var archives []TransferArchive
	for rows.Next() {
		a := TransferArchive{}
		err := rows.Scan(
			&a.ID, &a.TransferID, &a.ArchiveName, &a.Checksum,
			&a.Size, &a.Validated, &a.ValidatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan transfer archive: %w", err)
		}
		archives = append(archives, a)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating transfer archives: %w", err)
	}

	return archives, nil
}

// IsArchiveValidated checks whether an archive with the given path, name and
// checksum has been validated by an earlier import.
func (s *Store) IsArchiveValidated(path, archiveName, checksum string) (bool, error) {
	const query = `
		SELECT COUNT(*) FROM transfer_archives ta
		JOIN transfers t ON ta.transfer_id = t.id
		WHERE t.path = ? AND ta.archive_name = ? AND ta.checksum = ? AND ta.validated = 1
	`

	var count int
	if err := s.db.QueryRow(query, path, archiveName, checksum).Scan(&count); err != nil {
		return false, fmt.Errorf("failed to check archive validation: %w", err)
	}

	return count > 0, nil
}
