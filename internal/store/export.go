package store

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/cloudvault/cloudvault/internal/model"
)

// Snapshot is a full dump of both collections.
type Snapshot struct {
	Files  []*model.FileRecord  `json:"files"`
	Shares []*model.ShareRecord `json:"shares"`
}

// Export writes both collections as JSON to w.
func (s *Store) Export(ctx context.Context, w io.Writer) error {
	files, err := s.GetAllFiles(ctx)
	if err != nil {
		return fmt.Errorf("export files: %w", err)
	}
	shares, err := s.GetAllShares(ctx)
	if err != nil {
		return fmt.Errorf("export shares: %w", err)
	}
	enc := json.NewEncoder(w)
	return enc.Encode(&Snapshot{Files: files, Shares: shares})
}

// Import replaces both collections with the snapshot read from r. The
// replacement is a single transaction: either the whole snapshot lands
// or nothing changes.
func (s *Store) Import(ctx context.Context, r io.Reader) error {
	var snap Snapshot
	if err := json.NewDecoder(r).Decode(&snap); err != nil {
		return fmt.Errorf("decode snapshot: %w", err)
	}
	for _, f := range snap.Files {
		if err := checkFileInvariant(f); err != nil {
			return err
		}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin import: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM shares`); err != nil {
		return fmt.Errorf("clear shares: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM files`); err != nil {
		return fmt.Errorf("clear files: %w", err)
	}

	for _, f := range snap.Files {
		tags, err := json.Marshal(f.Tags)
		if err != nil {
			return fmt.Errorf("marshal tags: %w", err)
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO files (`+fileColumns+`)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			f.ID, f.Name, f.Size, f.Type, f.UploadTime, f.LastModified,
			f.Thumbnail, f.Content, string(tags), f.Description, f.IsShared); err != nil {
			return fmt.Errorf("import file %s: %w", f.ID, err)
		}
	}
	for _, sh := range snap.Shares {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO shares (`+shareColumns+`)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			sh.ID, sh.FileID, sh.ShareURL, sh.Password, sh.ExpiresAt,
			sh.AccessCount, sh.MaxAccess, sh.CreatedAt, sh.IsPublic, sh.QRCode); err != nil {
			return fmt.Errorf("import share %s: %w", sh.ID, err)
		}
	}

	return tx.Commit()
}
