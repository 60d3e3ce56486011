package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// CreateAlbum creates an album and returns its ID.
func (d *Database) CreateAlbum(ctx context.Context, title, description string) (int64, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	res, err := d.db.ExecContext(ctx,
		"INSERT INTO albums (title, description) VALUES (?, ?)", title, description)
	if err != nil {
		return 0, fmt.Errorf("failed to create album %q: %w", title, err)
	}
	return res.LastInsertId()
}

// GetAlbum retrieves one album by ID.
func (d *Database) GetAlbum(ctx context.Context, id int64) (*Album, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var a Album
	var cover sql.NullInt64
	var createdAt int64
	err := d.db.QueryRowContext(ctx, `
		SELECT id, title, description, cover_media_id, media_count, created_at
		FROM albums WHERE id = ?
	`, id).Scan(&a.ID, &a.Title, &a.Description, &cover, &a.MediaCount, &createdAt)
	if err != nil {
		return nil, fmt.Errorf("failed to load album %d: %w", id, err)
	}
	if cover.Valid {
		a.CoverMediaID = &cover.Int64
	}
	a.CreatedAt = unixTime(createdAt)
	return &a, nil
}

// AddAssetToAlbum appends an asset at the end of the album's display order.
// Adding the same asset twice is a no-op.
func (d *Database) AddAssetToAlbum(ctx context.Context, albumID, mediaID int64) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	_, err := d.db.ExecContext(ctx, `
		INSERT INTO album_media_relations (album_id, media_id, display_order)
		VALUES (?, ?, (
			SELECT COALESCE(MAX(display_order), -1) + 1
			FROM album_media_relations WHERE album_id = ?
		))
		ON CONFLICT(album_id, media_id) DO NOTHING
	`, albumID, mediaID, albumID)
	if err != nil {
		return fmt.Errorf("failed to add asset %d to album %d: %w", mediaID, albumID, err)
	}
	return nil
}

// RefreshAlbum recomputes the denormalized media count and, when the current
// cover is unset or no longer a member, auto-selects a new cover: the first
// image by display order, else the first video.
func (d *Database) RefreshAlbum(ctx context.Context, albumID int64) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin album refresh: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `
		UPDATE albums SET media_count = (
			SELECT COUNT(*) FROM album_media_relations WHERE album_id = ?
		) WHERE id = ?
	`, albumID, albumID); err != nil {
		return fmt.Errorf("failed to recompute album count: %w", err)
	}

	var cover sql.NullInt64
	err = tx.QueryRowContext(ctx, `
		SELECT a.cover_media_id FROM albums a WHERE a.id = ?
	`, albumID).Scan(&cover)
	if err != nil {
		return fmt.Errorf("failed to read album cover: %w", err)
	}

	coverStillMember := false
	if cover.Valid {
		var n int
		err = tx.QueryRowContext(ctx, `
			SELECT COUNT(*) FROM album_media_relations
			WHERE album_id = ? AND media_id = ?
		`, albumID, cover.Int64).Scan(&n)
		if err != nil {
			return fmt.Errorf("failed to check cover membership: %w", err)
		}
		coverStillMember = n > 0
	}

	if !coverStillMember {
		newCover, err := pickCover(ctx, tx, albumID)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx,
			"UPDATE albums SET cover_media_id = ? WHERE id = ?", newCover, albumID); err != nil {
			return fmt.Errorf("failed to set album cover: %w", err)
		}
	}

	return tx.Commit()
}

func pickCover(ctx context.Context, tx *sql.Tx, albumID int64) (interface{}, error) {
	for _, fileType := range []FileType{FileTypeImage, FileTypeVideo} {
		var id int64
		err := tx.QueryRowContext(ctx, `
			SELECT m.id FROM album_media_relations r
			JOIN media_files m ON m.id = r.media_id
			WHERE r.album_id = ? AND m.file_type = ?
			ORDER BY r.display_order LIMIT 1
		`, albumID, string(fileType)).Scan(&id)
		if errors.Is(err, sql.ErrNoRows) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to pick album cover: %w", err)
		}
		return id, nil
	}
	return nil, nil
}
