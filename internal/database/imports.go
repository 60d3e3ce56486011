package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// CreateImportBatch records the start of an archive import and returns the
// new history row's ID. Status starts as processing.
func (d *Database) CreateImportBatch(ctx context.Context, archiveName string, size int64, totalFiles int) (int64, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	res, err := d.db.ExecContext(ctx, `
		INSERT INTO zip_import_history (source_archive_name, size, total_files, status)
		VALUES (?, ?, ?, ?)
	`, archiveName, size, totalFiles, string(BatchProcessing))
	if err != nil {
		return 0, fmt.Errorf("failed to create import batch for %s: %w", archiveName, err)
	}
	return res.LastInsertId()
}

// CompleteImportBatch finalizes a batch with its terminal status and counts.
// errorMessage is recorded only for failed batches.
func (d *Database) CompleteImportBatch(ctx context.Context, id int64, status BatchStatus, imported, failed int, albumID *int64, errorMessage string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var errMsg interface{}
	if status == BatchFailed && errorMessage != "" {
		errMsg = errorMessage
	}
	var album interface{}
	if albumID != nil {
		album = *albumID
	}

	_, err := d.db.ExecContext(ctx, `
		UPDATE zip_import_history
		SET status = ?, imported_count = ?, failed_count = ?, album_id = ?,
			error_message = ?, completed_at = ?
		WHERE id = ?
	`, string(status), imported, failed, album, errMsg, time.Now().Unix(), id)
	if err != nil {
		return fmt.Errorf("failed to finalize import batch %d: %w", id, err)
	}
	return nil
}

// GetImportBatch retrieves one import history row.
func (d *Database) GetImportBatch(ctx context.Context, id int64) (*ImportBatch, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var b ImportBatch
	var status string
	var startedAt int64
	var completedAt, albumID sql.NullInt64
	var errMsg sql.NullString
	err := d.db.QueryRowContext(ctx, `
		SELECT id, source_archive_name, size, total_files, imported_count, failed_count,
			status, started_at, completed_at, error_message, album_id
		FROM zip_import_history WHERE id = ?
	`, id).Scan(&b.ID, &b.SourceArchiveName, &b.Size, &b.TotalFiles, &b.ImportedCount,
		&b.FailedCount, &status, &startedAt, &completedAt, &errMsg, &albumID)
	if err != nil {
		return nil, fmt.Errorf("failed to load import batch %d: %w", id, err)
	}
	b.Status = BatchStatus(status)
	b.StartedAt = unixTime(startedAt)
	if completedAt.Valid {
		t := unixTime(completedAt.Int64)
		b.CompletedAt = &t
	}
	if errMsg.Valid {
		b.ErrorMessage = errMsg.String
	}
	if albumID.Valid {
		b.AlbumID = &albumID.Int64
	}
	return &b, nil
}

// FailStaleProcessingBatches marks every batch still in processing as failed.
// Called once at startup: a batch left processing means the previous process
// died mid-import, and the importer never resumes batches across restarts.
func (d *Database) FailStaleProcessingBatches(ctx context.Context) (int64, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	res, err := d.db.ExecContext(ctx, `
		UPDATE zip_import_history
		SET status = ?, error_message = 'interrupted by restart', completed_at = ?
		WHERE status = ?
	`, string(BatchFailed), time.Now().Unix(), string(BatchProcessing))
	if err != nil {
		return 0, fmt.Errorf("failed to sweep stale import batches: %w", err)
	}
	return res.RowsAffected()
}
