package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/cloudvault/cloudvault/internal/metrics"
	"github.com/cloudvault/cloudvault/internal/model"
)

const fileColumns = `id, name, size, type, upload_time, last_modified, thumbnail, content, tags, description, is_shared`

// checkFileInvariant rejects records whose size disagrees with the owned
// content buffer.
func checkFileInvariant(f *model.FileRecord) error {
	if f.Content != nil && int64(len(f.Content)) != f.Size {
		return fmt.Errorf("file %s: size %d does not match content length %d", f.ID, f.Size, len(f.Content))
	}
	return nil
}

// PutFile inserts a new file record. Returns ErrDuplicateKey if the
// identifier already exists.
func (s *Store) PutFile(ctx context.Context, f *model.FileRecord) error {
	start := time.Now()
	err := s.putFile(ctx, f)
	metrics.RecordStoreOperation("files", "put", time.Since(start), err)
	return err
}

func (s *Store) putFile(ctx context.Context, f *model.FileRecord) error {
	if err := checkFileInvariant(f); err != nil {
		return err
	}
	tags, err := json.Marshal(f.Tags)
	if err != nil {
		return fmt.Errorf("marshal tags: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO files (`+fileColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		f.ID, f.Name, f.Size, f.Type, f.UploadTime, f.LastModified,
		f.Thumbnail, f.Content, string(tags), f.Description, f.IsShared)
	if isConstraintErr(err) {
		return fmt.Errorf("file %s: %w", f.ID, ErrDuplicateKey)
	}
	if err != nil {
		return fmt.Errorf("put file: %w", err)
	}
	return nil
}

// UpdateFile overwrites a file record by identifier. Idempotent: inserts
// when the identifier is absent.
func (s *Store) UpdateFile(ctx context.Context, f *model.FileRecord) error {
	start := time.Now()
	err := s.updateFile(ctx, f)
	metrics.RecordStoreOperation("files", "update", time.Since(start), err)
	return err
}

func (s *Store) updateFile(ctx context.Context, f *model.FileRecord) error {
	if err := checkFileInvariant(f); err != nil {
		return err
	}
	tags, err := json.Marshal(f.Tags)
	if err != nil {
		return fmt.Errorf("marshal tags: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO files (`+fileColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		f.ID, f.Name, f.Size, f.Type, f.UploadTime, f.LastModified,
		f.Thumbnail, f.Content, string(tags), f.Description, f.IsShared)
	if err != nil {
		return fmt.Errorf("update file: %w", err)
	}
	return nil
}

// GetFile returns the file with the given identifier, or ErrNotFound.
func (s *Store) GetFile(ctx context.Context, id string) (*model.FileRecord, error) {
	start := time.Now()
	f, err := s.getFile(ctx, id)
	metrics.RecordStoreOperation("files", "get", time.Since(start), err)
	return f, err
}

func (s *Store) getFile(ctx context.Context, id string) (*model.FileRecord, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+fileColumns+` FROM files WHERE id = ?`, id)
	f, err := scanFile(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("file %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get file: %w", err)
	}
	return f, nil
}

// GetAllFiles returns every file record, ordered by upload time.
func (s *Store) GetAllFiles(ctx context.Context) ([]*model.FileRecord, error) {
	start := time.Now()
	files, err := s.queryFiles(ctx,
		`SELECT `+fileColumns+` FROM files ORDER BY upload_time`)
	metrics.RecordStoreOperation("files", "get_all", time.Since(start), err)
	return files, err
}

// DeleteFile removes a file record. Returns ErrNotFound if absent.
// Shares pointing at the file are not touched; cascading is the share
// lifecycle manager's job.
func (s *Store) DeleteFile(ctx context.Context, id string) error {
	start := time.Now()
	err := s.deleteFile(ctx, id)
	metrics.RecordStoreOperation("files", "delete", time.Since(start), err)
	return err
}

func (s *Store) deleteFile(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM files WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete file: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return fmt.Errorf("file %s: %w", id, ErrNotFound)
	}
	return nil
}

// FilesByType returns files via the type index (exact MIME match).
func (s *Store) FilesByType(ctx context.Context, mimeType string) ([]*model.FileRecord, error) {
	start := time.Now()
	files, err := s.queryFiles(ctx,
		`SELECT `+fileColumns+` FROM files WHERE type = ? ORDER BY upload_time`, mimeType)
	metrics.RecordStoreOperation("files", "by_type", time.Since(start), err)
	return files, err
}

// FilesByName returns files via the name index (exact name match).
func (s *Store) FilesByName(ctx context.Context, name string) ([]*model.FileRecord, error) {
	start := time.Now()
	files, err := s.queryFiles(ctx,
		`SELECT `+fileColumns+` FROM files WHERE name = ? ORDER BY upload_time`, name)
	metrics.RecordStoreOperation("files", "by_name", time.Since(start), err)
	return files, err
}

// FilesUploadedBetween returns files via the upload-time index.
func (s *Store) FilesUploadedBetween(ctx context.Context, start, end time.Time) ([]*model.FileRecord, error) {
	t := time.Now()
	files, err := s.queryFiles(ctx,
		`SELECT `+fileColumns+` FROM files WHERE upload_time >= ? AND upload_time <= ? ORDER BY upload_time`,
		start, end)
	metrics.RecordStoreOperation("files", "by_upload_time", time.Since(t), err)
	return files, err
}

// FilesSizedBetween returns files via the size index.
func (s *Store) FilesSizedBetween(ctx context.Context, min, max int64) ([]*model.FileRecord, error) {
	start := time.Now()
	files, err := s.queryFiles(ctx,
		`SELECT `+fileColumns+` FROM files WHERE size >= ? AND size <= ? ORDER BY size`, min, max)
	metrics.RecordStoreOperation("files", "by_size", time.Since(start), err)
	return files, err
}

// RenameFile updates a file's display name.
func (s *Store) RenameFile(ctx context.Context, id, name string) error {
	return s.updateFileField(ctx, id, "name", name)
}

// SetFileDescription updates a file's free-form description.
func (s *Store) SetFileDescription(ctx context.Context, id, description string) error {
	return s.updateFileField(ctx, id, "description", description)
}

// SetFileTags replaces a file's tag set.
func (s *Store) SetFileTags(ctx context.Context, id string, tags []string) error {
	enc, err := json.Marshal(tags)
	if err != nil {
		return fmt.Errorf("marshal tags: %w", err)
	}
	return s.updateFileField(ctx, id, "tags", string(enc))
}

// SetFileShared updates the share flag.
func (s *Store) SetFileShared(ctx context.Context, id string, shared bool) error {
	return s.updateFileField(ctx, id, "is_shared", shared)
}

func (s *Store) updateFileField(ctx context.Context, id, column string, value interface{}) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE files SET `+column+` = ? WHERE id = ?`, value, id)
	if err != nil {
		return fmt.Errorf("update file %s: %w", column, err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return fmt.Errorf("file %s: %w", id, ErrNotFound)
	}
	return nil
}

// CopyFile duplicates a record under a fresh identifier and a
// "name_copy.ext" display name, with share state cleared.
func (s *Store) CopyFile(ctx context.Context, id, newID string, now time.Time) (*model.FileRecord, error) {
	src, err := s.GetFile(ctx, id)
	if err != nil {
		return nil, err
	}
	dup := *src
	dup.ID = newID
	dup.Name = copyName(src.Name)
	dup.UploadTime = now
	dup.IsShared = false
	dup.Share = nil
	if err := s.PutFile(ctx, &dup); err != nil {
		return nil, err
	}
	return &dup, nil
}

// copyName inserts "_copy" before the extension.
func copyName(name string) string {
	if i := strings.LastIndex(name, "."); i > 0 {
		return name[:i] + "_copy" + name[i:]
	}
	return name + "_copy"
}

// Stats summarizes the collection by MIME category.
func (s *Store) Stats(ctx context.Context) (*model.Stats, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT type, size FROM files`)
	if err != nil {
		return nil, fmt.Errorf("query stats: %w", err)
	}
	defer rows.Close()

	stats := &model.Stats{}
	for rows.Next() {
		var mimeType string
		var size int64
		if err := rows.Scan(&mimeType, &size); err != nil {
			return nil, fmt.Errorf("scan stats row: %w", err)
		}
		stats.TotalFiles++
		stats.TotalSize += size
		switch category(mimeType) {
		case "image":
			stats.ImageCount++
		case "video":
			stats.VideoCount++
		case "audio":
			stats.AudioCount++
		case "application", "text":
			stats.DocumentCount++
		default:
			stats.OtherCount++
		}
	}
	return stats, rows.Err()
}

func category(mimeType string) string {
	if i := strings.Index(mimeType, "/"); i > 0 {
		return mimeType[:i]
	}
	return mimeType
}

func (s *Store) queryFiles(ctx context.Context, query string, args ...interface{}) ([]*model.FileRecord, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query files: %w", err)
	}
	defer rows.Close()

	var files []*model.FileRecord
	for rows.Next() {
		f, err := scanFile(rows)
		if err != nil {
			return nil, fmt.Errorf("scan file: %w", err)
		}
		files = append(files, f)
	}
	return files, rows.Err()
}

// scanner is satisfied by both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...interface{}) error
}

func scanFile(sc scanner) (*model.FileRecord, error) {
	var f model.FileRecord
	var lastModified sql.NullTime
	var tags string
	if err := sc.Scan(&f.ID, &f.Name, &f.Size, &f.Type, &f.UploadTime,
		&lastModified, &f.Thumbnail, &f.Content, &tags, &f.Description, &f.IsShared); err != nil {
		return nil, err
	}
	if lastModified.Valid {
		t := lastModified.Time
		f.LastModified = &t
	}
	if err := json.Unmarshal([]byte(tags), &f.Tags); err != nil {
		return nil, fmt.Errorf("unmarshal tags: %w", err)
	}
	return &f, nil
}
