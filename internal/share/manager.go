// Package share implements the share lifecycle: creation, access-policy
// validation, access counting, revocation, and the expiry sweep.
package share

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/cloudvault/cloudvault/internal/artifact"
	"github.com/cloudvault/cloudvault/internal/codec"
	"github.com/cloudvault/cloudvault/internal/logging"
	"github.com/cloudvault/cloudvault/internal/metrics"
	"github.com/cloudvault/cloudvault/internal/model"
	"github.com/cloudvault/cloudvault/internal/qrcode"
	"github.com/cloudvault/cloudvault/internal/store"
)

// Policy-failure reasons, in validation priority order. Expiry and the
// access ceiling are checked before the password so a dead share never
// leaks whether a guessed password was right.
const (
	ReasonExpired       = "expired"
	ReasonAccessLimit   = "access limit reached"
	ReasonWrongPassword = "incorrect password"
)

// Validation is the result of an access check. Policy failures are
// values, not errors.
type Validation struct {
	Valid  bool
	Reason string
}

// Stats summarizes the share collection.
type Stats struct {
	Total       int   `json:"total"`
	Active      int   `json:"active"`
	Expired     int   `json:"expired"`
	TotalAccess int64 `json:"total_access"`
}

// Manager owns share records and their access policy.
type Manager struct {
	store       *store.Store
	compressor  codec.Compressor
	baseURL     string
	sizeCeiling int64
	now         func() time.Time
}

// NewManager creates a share lifecycle manager.
func NewManager(st *store.Store, comp codec.Compressor, baseURL string, sizeCeiling int64) *Manager {
	return &Manager{
		store:       st,
		compressor:  comp,
		baseURL:     baseURL,
		sizeCeiling: sizeCeiling,
		now:         time.Now,
	}
}

// Create generates a new share for the file, renders its scannable
// code, persists the record, and marks the file as shared. The file
// must exist; isPublic defaults to true.
func (m *Manager) Create(ctx context.Context, fileID string, opts model.ShareOptions) (*model.ShareRecord, error) {
	file, err := m.store.GetFile(ctx, fileID)
	if err != nil {
		return nil, err
	}

	id := uuid.NewString()
	shareURL := m.baseURL + "/" + id

	qrPNG, err := qrcode.Render(shareURL)
	if err != nil {
		// A missing code only degrades the share, it does not block it.
		logging.Warn("qr rendering failed", zap.String("share_id", id), zap.Error(err))
		qrPNG = nil
	}

	isPublic := true
	if opts.IsPublic != nil {
		isPublic = *opts.IsPublic
	}

	record := &model.ShareRecord{
		ID:          id,
		FileID:      file.ID,
		ShareURL:    shareURL,
		Password:    opts.Password,
		ExpiresAt:   opts.ExpiresAt,
		AccessCount: 0,
		MaxAccess:   opts.MaxAccess,
		CreatedAt:   m.now(),
		IsPublic:    isPublic,
		QRCode:      qrPNG,
	}
	if err := m.store.PutShare(ctx, record); err != nil {
		return nil, err
	}
	if err := m.store.SetFileShared(ctx, file.ID, true); err != nil {
		return nil, fmt.Errorf("mark file shared: %w", err)
	}

	metrics.RecordShareCreated()
	logging.Info("share created",
		zap.String("share_id", id),
		zap.String("file_id", file.ID),
		zap.Bool("password_protected", opts.Password != ""))
	return record, nil
}

// ValidateAccess evaluates the access policy against the current time
// and counters. Checks run in fixed order: expiry, access ceiling,
// password.
func (m *Manager) ValidateAccess(sh *model.ShareRecord, suppliedPassword string) Validation {
	v := m.validate(sh, suppliedPassword)
	if v.Valid {
		metrics.RecordShareValidation("valid")
	} else {
		metrics.RecordShareValidation(v.Reason)
	}
	return v
}

func (m *Manager) validate(sh *model.ShareRecord, suppliedPassword string) Validation {
	if sh.ExpiresAt != nil && !m.now().Before(*sh.ExpiresAt) {
		return Validation{Valid: false, Reason: ReasonExpired}
	}
	if sh.MaxAccess != nil && sh.AccessCount >= *sh.MaxAccess {
		return Validation{Valid: false, Reason: ReasonAccessLimit}
	}
	if sh.Password != "" && sh.Password != suppliedPassword {
		return Validation{Valid: false, Reason: ReasonWrongPassword}
	}
	return Validation{Valid: true}
}

// ValidateAccessByID looks the share up first; a revoked or never-known
// identifier surfaces store.ErrNotFound, not a policy reason.
func (m *Manager) ValidateAccessByID(ctx context.Context, shareID, suppliedPassword string) (Validation, error) {
	sh, err := m.store.GetShare(ctx, shareID)
	if err != nil {
		return Validation{}, err
	}
	return m.ValidateAccess(sh, suppliedPassword), nil
}

// RecordAccess increments the share's access counter by exactly one.
// No deduplication: retry safety is the caller's concern.
func (m *Manager) RecordAccess(ctx context.Context, shareID string) error {
	if err := m.store.IncrementAccess(ctx, shareID); err != nil {
		return err
	}
	metrics.RecordShareAccess()
	return nil
}

// Revoke deletes the share and clears the owning file's share flag.
// Subsequent validation of the identifier reports NotFound.
func (m *Manager) Revoke(ctx context.Context, shareID string) error {
	sh, err := m.store.GetShare(ctx, shareID)
	if err != nil {
		return err
	}
	if err := m.store.DeleteShare(ctx, shareID); err != nil {
		return err
	}
	m.clearSharedFlag(ctx, sh.FileID)
	logging.Info("share revoked", zap.String("share_id", shareID))
	return nil
}

// DeleteFile removes a file and cascades to every share referencing it.
// Shares go first so no orphaned share can outlive the deletion.
func (m *Manager) DeleteFile(ctx context.Context, fileID string) error {
	removed, err := m.store.DeleteSharesByFile(ctx, fileID)
	if err != nil {
		return err
	}
	if err := m.store.DeleteFile(ctx, fileID); err != nil {
		return err
	}
	logging.Info("file deleted", zap.String("file_id", fileID), zap.Int("shares_removed", removed))
	return nil
}

// SweepExpired deletes every share whose expiry is in the past and
// returns the count removed. Validation never triggers this implicitly.
func (m *Manager) SweepExpired(ctx context.Context) (int, error) {
	now := m.now()
	shares, err := m.store.GetAllShares(ctx)
	if err != nil {
		return 0, err
	}
	var affectedFiles []string
	for _, sh := range shares {
		if sh.ExpiresAt != nil && !now.Before(*sh.ExpiresAt) {
			affectedFiles = append(affectedFiles, sh.FileID)
		}
	}

	removed, err := m.store.DeleteExpiredShares(ctx, now)
	if err != nil {
		return 0, err
	}
	for _, fileID := range affectedFiles {
		m.clearSharedFlag(ctx, fileID)
	}

	if removed > 0 {
		metrics.RecordSweep(removed)
		logging.Info("expired shares swept", zap.Int("removed", removed))
	}
	return removed, nil
}

// BuildArtifact produces the self-contained share document for a file.
func (m *Manager) BuildArtifact(ctx context.Context, fileID string) (*artifact.Artifact, error) {
	file, err := m.store.GetFile(ctx, fileID)
	if err != nil {
		return nil, err
	}
	if file.Content == nil {
		return nil, fmt.Errorf("file %s: %w", fileID, artifact.ErrUnreadableSource)
	}
	return artifact.Build(file.Content, file.Type, file.Name, m.sizeCeiling, m.compressor)
}

// ShareByFileID returns the file's current share, or store.ErrNotFound.
func (m *Manager) ShareByFileID(ctx context.Context, fileID string) (*model.ShareRecord, error) {
	shares, err := m.store.SharesByFileID(ctx, fileID)
	if err != nil {
		return nil, err
	}
	if len(shares) == 0 {
		return nil, fmt.Errorf("file %s: %w", fileID, store.ErrNotFound)
	}
	return shares[0], nil
}

// AttachCurrentShare fills each flagged file's embedded share reference
// from the share collection, using the most recently created share.
// Unshared files are left untouched.
func (m *Manager) AttachCurrentShare(ctx context.Context, files ...*model.FileRecord) error {
	for _, f := range files {
		if !f.IsShared {
			continue
		}
		shares, err := m.store.SharesByFileID(ctx, f.ID)
		if err != nil {
			return err
		}
		if len(shares) > 0 {
			f.Share = shares[len(shares)-1]
		}
	}
	return nil
}

// ListActive returns shares whose expiry has not yet passed.
func (m *Manager) ListActive(ctx context.Context) ([]*model.ShareRecord, error) {
	return m.list(ctx, false)
}

// ListExpired returns shares past their expiry.
func (m *Manager) ListExpired(ctx context.Context) ([]*model.ShareRecord, error) {
	return m.list(ctx, true)
}

func (m *Manager) list(ctx context.Context, expired bool) ([]*model.ShareRecord, error) {
	shares, err := m.store.GetAllShares(ctx)
	if err != nil {
		return nil, err
	}
	now := m.now()
	out := shares[:0:len(shares)]
	for _, sh := range shares {
		isExpired := sh.ExpiresAt != nil && !now.Before(*sh.ExpiresAt)
		if isExpired == expired {
			out = append(out, sh)
		}
	}
	return out, nil
}

// Stats summarizes the share collection against the current time.
func (m *Manager) Stats(ctx context.Context) (*Stats, error) {
	shares, err := m.store.GetAllShares(ctx)
	if err != nil {
		return nil, err
	}
	now := m.now()
	stats := &Stats{Total: len(shares)}
	for _, sh := range shares {
		if sh.ExpiresAt != nil && !now.Before(*sh.ExpiresAt) {
			stats.Expired++
		} else {
			stats.Active++
		}
		stats.TotalAccess += sh.AccessCount
	}
	return stats, nil
}

// clearSharedFlag resets the file's share flag once no shares remain
// for it. A missing file is fine, the share may have outlived it.
func (m *Manager) clearSharedFlag(ctx context.Context, fileID string) {
	remaining, err := m.store.SharesByFileID(ctx, fileID)
	if err != nil || len(remaining) > 0 {
		return
	}
	if err := m.store.SetFileShared(ctx, fileID, false); err != nil {
		logging.Debug("clear shared flag", zap.String("file_id", fileID), zap.Error(err))
	}
}
