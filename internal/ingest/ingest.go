// Package ingest reads file content into the vault: it builds the
// FileRecord once content is fully read, generates image thumbnails,
// and reports per-item progress events.
package ingest

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/disintegration/imaging"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/cloudvault/cloudvault/internal/codec"
	"github.com/cloudvault/cloudvault/internal/events"
	"github.com/cloudvault/cloudvault/internal/logging"
	"github.com/cloudvault/cloudvault/internal/metrics"
	"github.com/cloudvault/cloudvault/internal/model"
	"github.com/cloudvault/cloudvault/internal/store"
)

// Item is one file handed to the pipeline.
type Item struct {
	Name         string
	DeclaredType string
	Reader       io.Reader
}

// Pipeline ingests files sequentially: each item is fully durable
// before the next begins, so a crash mid-batch leaves a committed
// prefix and nothing partial.
type Pipeline struct {
	store       *store.Store
	broadcaster *events.Broadcaster
	thumbMaxPx  int
}

// New creates an ingestion pipeline.
func New(st *store.Store, b *events.Broadcaster, thumbMaxPx int) *Pipeline {
	return &Pipeline{store: st, broadcaster: b, thumbMaxPx: thumbMaxPx}
}

// Ingest reads one item to completion and persists its record. The
// final progress event for the item is exactly one of done/failed.
func (p *Pipeline) Ingest(ctx context.Context, item Item) (*model.FileRecord, error) {
	id := uuid.NewString()
	p.publish(id, item.Name, 0, model.StatusPending, nil)
	p.publish(id, item.Name, 10, model.StatusInProgress, nil)

	content, err := io.ReadAll(item.Reader)
	if err != nil {
		err = fmt.Errorf("read content: %w", err)
		p.publish(id, item.Name, 0, model.StatusFailed, err)
		metrics.RecordIngest(0, false)
		return nil, err
	}
	p.publish(id, item.Name, 40, model.StatusInProgress, nil)

	now := time.Now()
	mimeType := codec.ResolveMIMEType(item.DeclaredType, item.Name)
	record := &model.FileRecord{
		ID:         id,
		Name:       item.Name,
		Size:       int64(len(content)),
		Type:       mimeType,
		UploadTime: now,
		Content:    content,
		Tags:       []string{},
	}

	if strings.HasPrefix(mimeType, "image/") {
		record.Thumbnail = p.thumbnail(content)
	}
	p.publish(id, item.Name, 70, model.StatusInProgress, nil)

	if err := p.store.PutFile(ctx, record); err != nil {
		p.publish(id, item.Name, 70, model.StatusFailed, err)
		metrics.RecordIngest(0, false)
		return nil, err
	}

	p.publish(id, item.Name, 100, model.StatusDone, nil)
	metrics.RecordIngest(record.Size, true)
	logging.Info("file ingested",
		zap.String("id", id),
		zap.String("name", item.Name),
		zap.String("type", mimeType),
		zap.Int64("size", record.Size))
	return record, nil
}

// IngestBatch processes items sequentially. A failed item does not stop
// the batch; the successfully ingested records are returned.
func (p *Pipeline) IngestBatch(ctx context.Context, items []Item) []*model.FileRecord {
	var records []*model.FileRecord
	for _, item := range items {
		record, err := p.Ingest(ctx, item)
		if err != nil {
			logging.Error("ingestion failed", zap.String("name", item.Name), zap.Error(err))
			continue
		}
		records = append(records, record)
	}
	return records
}

// thumbnail downscales image content to a JPEG data URI. Decode
// failures are non-fatal: the record simply carries no thumbnail.
func (p *Pipeline) thumbnail(content []byte) string {
	img, err := imaging.Decode(bytes.NewReader(content))
	if err != nil {
		logging.Warn("thumbnail decode failed", zap.Error(err))
		return ""
	}
	thumb := imaging.Fit(img, p.thumbMaxPx, p.thumbMaxPx, imaging.Lanczos)
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, thumb, imaging.JPEG, imaging.JPEGQuality(80)); err != nil {
		logging.Warn("thumbnail encode failed", zap.Error(err))
		return ""
	}
	return "data:image/jpeg;base64," + codec.Encode(buf.Bytes())
}

func (p *Pipeline) publish(id, name string, percent int, status string, err error) {
	if p.broadcaster == nil {
		return
	}
	ev := model.Progress{FileID: id, Name: name, Percent: percent, Status: status}
	if err != nil {
		ev.Error = err.Error()
	}
	p.broadcaster.Publish(ev)
}
