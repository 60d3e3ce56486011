package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// InsertAsset writes one media asset record and returns its new ID.
func (d *Database) InsertAsset(ctx context.Context, a *MediaAsset) (int64, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var capturedAt interface{}
	if a.CapturedAt != nil && !a.CapturedAt.IsZero() {
		capturedAt = a.CapturedAt.Unix()
	}

	res, err := d.db.ExecContext(ctx, `
		INSERT INTO media_files (
			filename, stored_filename, file_path, file_type, mime_type, size,
			content_hash, thumbnail_path, thumbnail_webp_path, rotation,
			title, description, captured_at, gps_latitude, gps_longitude,
			place_name, camera_make, camera_model
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		a.Filename, a.StoredFilename, a.FilePath, string(a.FileType), a.MimeType, a.Size,
		nullableString(a.ContentHash), nullableString(a.ThumbnailPath), nullableString(a.ThumbnailWebPPath), a.Rotation,
		a.Title, a.Description, capturedAt, a.GPSLatitude, a.GPSLongitude,
		nullableString(a.PlaceName), nullableString(a.CameraMake), nullableString(a.CameraModel),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to insert asset %s: %w", a.Filename, err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to read new asset id: %w", err)
	}
	a.ID = id
	return id, nil
}

// FindAssetIDByHash returns the ID of an existing asset with the given
// content hash, or 0 when no asset matches.
func (d *Database) FindAssetIDByHash(ctx context.Context, hash string) (int64, error) {
	if hash == "" {
		return 0, nil
	}

	d.mu.RLock()
	defer d.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var id int64
	err := d.db.QueryRowContext(ctx,
		"SELECT id FROM media_files WHERE content_hash = ? LIMIT 1", hash).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to look up content hash: %w", err)
	}
	return id, nil
}

// GetAsset retrieves one asset by ID.
func (d *Database) GetAsset(ctx context.Context, id int64) (*MediaAsset, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	row := d.db.QueryRowContext(ctx, `
		SELECT id, filename, stored_filename, file_path, file_type, mime_type, size,
			COALESCE(content_hash, ''), COALESCE(thumbnail_path, ''), COALESCE(thumbnail_webp_path, ''),
			rotation, title, description, captured_at, gps_latitude, gps_longitude,
			COALESCE(place_name, ''), COALESCE(camera_make, ''), COALESCE(camera_model, ''), created_at
		FROM media_files WHERE id = ?
	`, id)
	return scanAsset(row)
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanAsset(row rowScanner) (*MediaAsset, error) {
	var a MediaAsset
	var fileType string
	var capturedAt sql.NullInt64
	var createdAt int64
	err := row.Scan(
		&a.ID, &a.Filename, &a.StoredFilename, &a.FilePath, &fileType, &a.MimeType, &a.Size,
		&a.ContentHash, &a.ThumbnailPath, &a.ThumbnailWebPPath,
		&a.Rotation, &a.Title, &a.Description, &capturedAt, &a.GPSLatitude, &a.GPSLongitude,
		&a.PlaceName, &a.CameraMake, &a.CameraModel, &createdAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sql.ErrNoRows
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan asset: %w", err)
	}
	a.FileType = FileType(fileType)
	a.CreatedAt = unixTime(createdAt)
	if capturedAt.Valid {
		t := unixTime(capturedAt.Int64)
		a.CapturedAt = &t
	}
	return &a, nil
}

func nullableString(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
