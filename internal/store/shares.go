package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/cloudvault/cloudvault/internal/metrics"
	"github.com/cloudvault/cloudvault/internal/model"
)

const shareColumns = `id, file_id, share_url, password, expires_at, access_count, max_access, created_at, is_public, qr_code`

// PutShare inserts a new share record. Returns ErrDuplicateKey if the
// identifier already exists.
func (s *Store) PutShare(ctx context.Context, sh *model.ShareRecord) error {
	start := time.Now()
	err := s.putShare(ctx, sh)
	metrics.RecordStoreOperation("shares", "put", time.Since(start), err)
	return err
}

func (s *Store) putShare(ctx context.Context, sh *model.ShareRecord) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO shares (`+shareColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		sh.ID, sh.FileID, sh.ShareURL, sh.Password, sh.ExpiresAt,
		sh.AccessCount, sh.MaxAccess, sh.CreatedAt, sh.IsPublic, sh.QRCode)
	if isConstraintErr(err) {
		return fmt.Errorf("share %s: %w", sh.ID, ErrDuplicateKey)
	}
	if err != nil {
		return fmt.Errorf("put share: %w", err)
	}
	return nil
}

// UpdateShare overwrites a share record by identifier.
func (s *Store) UpdateShare(ctx context.Context, sh *model.ShareRecord) error {
	start := time.Now()
	err := s.updateShare(ctx, sh)
	metrics.RecordStoreOperation("shares", "update", time.Since(start), err)
	return err
}

func (s *Store) updateShare(ctx context.Context, sh *model.ShareRecord) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO shares (`+shareColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		sh.ID, sh.FileID, sh.ShareURL, sh.Password, sh.ExpiresAt,
		sh.AccessCount, sh.MaxAccess, sh.CreatedAt, sh.IsPublic, sh.QRCode)
	if err != nil {
		return fmt.Errorf("update share: %w", err)
	}
	return nil
}

// GetShare returns the share with the given identifier, or ErrNotFound.
func (s *Store) GetShare(ctx context.Context, id string) (*model.ShareRecord, error) {
	start := time.Now()
	sh, err := s.getShare(ctx, id)
	metrics.RecordStoreOperation("shares", "get", time.Since(start), err)
	return sh, err
}

func (s *Store) getShare(ctx context.Context, id string) (*model.ShareRecord, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+shareColumns+` FROM shares WHERE id = ?`, id)
	sh, err := scanShare(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("share %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get share: %w", err)
	}
	return sh, nil
}

// GetAllShares returns every share record, ordered by creation time.
func (s *Store) GetAllShares(ctx context.Context) ([]*model.ShareRecord, error) {
	start := time.Now()
	shares, err := s.queryShares(ctx,
		`SELECT `+shareColumns+` FROM shares ORDER BY created_at`)
	metrics.RecordStoreOperation("shares", "get_all", time.Since(start), err)
	return shares, err
}

// DeleteShare removes a share record. Returns ErrNotFound if absent.
func (s *Store) DeleteShare(ctx context.Context, id string) error {
	start := time.Now()
	err := s.deleteShare(ctx, id)
	metrics.RecordStoreOperation("shares", "delete", time.Since(start), err)
	return err
}

func (s *Store) deleteShare(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM shares WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete share: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return fmt.Errorf("share %s: %w", id, ErrNotFound)
	}
	return nil
}

// SharesByFileID returns shares via the file-id index.
func (s *Store) SharesByFileID(ctx context.Context, fileID string) ([]*model.ShareRecord, error) {
	start := time.Now()
	shares, err := s.queryShares(ctx,
		`SELECT `+shareColumns+` FROM shares WHERE file_id = ? ORDER BY created_at`, fileID)
	metrics.RecordStoreOperation("shares", "by_file_id", time.Since(start), err)
	return shares, err
}

// SharesCreatedBetween returns shares via the creation-time index.
func (s *Store) SharesCreatedBetween(ctx context.Context, start, end time.Time) ([]*model.ShareRecord, error) {
	t := time.Now()
	shares, err := s.queryShares(ctx,
		`SELECT `+shareColumns+` FROM shares WHERE created_at >= ? AND created_at <= ? ORDER BY created_at`,
		start, end)
	metrics.RecordStoreOperation("shares", "by_created_at", time.Since(t), err)
	return shares, err
}

// DeleteSharesByFile removes every share owned by the given file and
// returns the count removed. A single statement, so the removal commits
// atomically.
func (s *Store) DeleteSharesByFile(ctx context.Context, fileID string) (int, error) {
	start := time.Now()
	res, err := s.db.ExecContext(ctx, `DELETE FROM shares WHERE file_id = ?`, fileID)
	metrics.RecordStoreOperation("shares", "delete_by_file", time.Since(start), err)
	if err != nil {
		return 0, fmt.Errorf("delete shares by file: %w", err)
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

// IncrementAccess adds exactly one to the share's access counter,
// atomically. Returns ErrNotFound if the share is absent.
func (s *Store) IncrementAccess(ctx context.Context, id string) error {
	start := time.Now()
	res, err := s.db.ExecContext(ctx,
		`UPDATE shares SET access_count = access_count + 1 WHERE id = ?`, id)
	metrics.RecordStoreOperation("shares", "increment_access", time.Since(start), err)
	if err != nil {
		return fmt.Errorf("increment access: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return fmt.Errorf("share %s: %w", id, ErrNotFound)
	}
	return nil
}

// ResetAccess sets the share's access counter back to zero.
func (s *Store) ResetAccess(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE shares SET access_count = 0 WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("reset access: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return fmt.Errorf("share %s: %w", id, ErrNotFound)
	}
	return nil
}

// DeleteExpiredShares removes every share whose expiry is at or before
// now and returns the count removed.
func (s *Store) DeleteExpiredShares(ctx context.Context, now time.Time) (int, error) {
	start := time.Now()
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM shares WHERE expires_at IS NOT NULL AND expires_at <= ?`, now)
	metrics.RecordStoreOperation("shares", "delete_expired", time.Since(start), err)
	if err != nil {
		return 0, fmt.Errorf("delete expired shares: %w", err)
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

func (s *Store) queryShares(ctx context.Context, query string, args ...interface{}) ([]*model.ShareRecord, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query shares: %w", err)
	}
	defer rows.Close()

	var shares []*model.ShareRecord
	for rows.Next() {
		sh, err := scanShare(rows)
		if err != nil {
			return nil, fmt.Errorf("scan share: %w", err)
		}
		shares = append(shares, sh)
	}
	return shares, rows.Err()
}

func scanShare(sc scanner) (*model.ShareRecord, error) {
	var sh model.ShareRecord
	var expiresAt sql.NullTime
	var maxAccess sql.NullInt64
	if err := sc.Scan(&sh.ID, &sh.FileID, &sh.ShareURL, &sh.Password,
		&expiresAt, &sh.AccessCount, &maxAccess, &sh.CreatedAt,
		&sh.IsPublic, &sh.QRCode); err != nil {
		return nil, err
	}
	if expiresAt.Valid {
		t := expiresAt.Time
		sh.ExpiresAt = &t
	}
	if maxAccess.Valid {
		m := maxAccess.Int64
		sh.MaxAccess = &m
	}
	return &sh, nil
}
