package codec

import (
	"bytes"
	"fmt"
	"io"
	"strings"

	"github.com/klauspost/compress/gzip"

	"github.com/cloudvault/cloudvault/internal/logging"
	"go.uber.org/zap"
)

// Compressor is the injected compression capability. Selected once at
// startup; a failing backend is replaced by NoopCompressor rather than
// probed per call.
type Compressor interface {
	Compress(data []byte) ([]byte, error)
	Decompress(data []byte) ([]byte, error)
}

// GzipCompressor compresses with gzip.
type GzipCompressor struct{}

// Compress gzips data.
func (GzipCompressor) Compress(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	w := gzip.NewWriter(&buf)
	if _, err := w.Write(data); err != nil {
		return nil, fmt.Errorf("gzip write: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("gzip close: %w", err)
	}
	return buf.Bytes(), nil
}

// Decompress reverses Compress.
func (GzipCompressor) Decompress(data []byte) ([]byte, error) {
	r, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("gzip reader: %w", err)
	}
	defer r.Close()
	out, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("gzip read: %w", err)
	}
	return out, nil
}

// NoopCompressor is the fallback when no compression backend is
// available. Compress returns its input unchanged, so the
// size-comparison in ChooseCompression always keeps the original.
type NoopCompressor struct{}

func (NoopCompressor) Compress(data []byte) ([]byte, error)   { return data, nil }
func (NoopCompressor) Decompress(data []byte) ([]byte, error) { return data, nil }

// noCompressTypes are formats that are already compressed; recompressing
// them wastes work and risks growing the payload. Treated as
// configuration: unknown types default to "compress", and the
// never-expand guarantee comes from the size comparison below, not from
// this list.
var noCompressTypes = map[string]struct{}{
	"application/pdf": {},

	"image/jpeg": {},
	"image/jpg":  {},
	"image/png":  {},
	"image/gif":  {},
	"image/webp": {},

	"video/mp4":       {},
	"video/x-msvideo": {},
	"video/quicktime": {},
	"video/x-ms-wmv":  {},

	"audio/mpeg": {},
	"audio/mp3":  {},
	"audio/wav":  {},
	"audio/ogg":  {},

	"application/zip":              {},
	"application/gzip":             {},
	"application/x-rar-compressed": {},
	"application/x-7z-compressed":  {},
	"application/x-tar":            {},

	"application/vnd.openxmlformats-officedocument.wordprocessingml.document":   {},
	"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet":         {},
	"application/vnd.openxmlformats-officedocument.presentationml.presentation": {},
}

// ShouldCompress reports whether compression should be attempted for the
// given MIME type.
func ShouldCompress(mimeType string) bool {
	if mimeType == "" {
		return false
	}
	_, skip := noCompressTypes[strings.ToLower(mimeType)]
	return !skip
}

// ChooseCompression applies the per-type compression policy: skip
// already-compressed formats, otherwise attempt compression and keep
// whichever payload is smaller. A compression failure falls back to the
// original bytes (logged, never fatal).
func ChooseCompression(data []byte, mimeType string, c Compressor) (payload []byte, compressed bool) {
	if !ShouldCompress(mimeType) {
		return data, false
	}
	out, err := c.Compress(data)
	if err != nil {
		logging.Warn("compression backend failed, keeping original payload",
			zap.String("mime_type", mimeType), zap.Error(err))
		return data, false
	}
	if len(out) < len(data) {
		return out, true
	}
	return data, false
}
