package artifact

import (
	"bytes"
	"errors"
	"html"
	"strings"
	"testing"

	"github.com/cloudvault/cloudvault/internal/codec"
)

const ceiling = 100 * 1024

// extractPayload pulls the base64 payload out of the download link's
// href attribute.
func extractPayload(t *testing.T, doc, mimeType string) []byte {
	t.Helper()
	marker := `href="data:` + mimeType + `;base64,`
	i := strings.Index(doc, marker)
	if i < 0 {
		t.Fatalf("document missing %q", marker)
	}
	rest := doc[i+len(marker):]
	end := strings.IndexByte(rest, '"')
	if end < 0 {
		t.Fatal("unterminated data URI")
	}
	// The attribute value is entity-encoded by html/template (e.g. `+`
	// as `&#43;`); a browser entity-decodes it before URL parsing.
	payload, err := codec.Decode(html.UnescapeString(rest[:end]))
	if err != nil {
		t.Fatalf("decode embedded payload: %v", err)
	}
	return payload
}

func TestBuildSizeGate(t *testing.T) {
	content := make([]byte, ceiling+1)
	art, err := Build(content, "text/plain", "big.txt", ceiling, codec.GzipCompressor{})
	if art != nil {
		t.Error("no partial artifact may be produced")
	}
	var tooLarge *PayloadTooLargeError
	if !errors.As(err, &tooLarge) {
		t.Fatalf("expected PayloadTooLargeError, got %v", err)
	}
	if tooLarge.Actual != ceiling+1 || tooLarge.Limit != ceiling {
		t.Errorf("error facts: %+v", tooLarge)
	}
}

func TestBuildAtCeiling(t *testing.T) {
	// Exactly the limit is allowed; the gate applies to the raw size,
	// before any compression.
	content := bytes.Repeat([]byte("a"), ceiling)
	art, err := Build(content, "text/plain", "edge.txt", ceiling, codec.GzipCompressor{})
	if err != nil {
		t.Fatalf("build at ceiling: %v", err)
	}
	if !art.Compressed {
		t.Error("repetitive text should compress")
	}
}

func TestBuildCompressedTextDocument(t *testing.T) {
	content := bytes.Repeat([]byte("The quick brown fox jumps over the lazy dog. "), 1100) // ~50 KB
	art, err := Build(content, "", "story.txt", ceiling, codec.GzipCompressor{})
	if err != nil {
		t.Fatalf("build: %v", err)
	}

	if art.MIMEType != "text/plain" {
		t.Errorf("resolved MIME %q", art.MIMEType)
	}
	if !art.Compressed {
		t.Error("expected text payload to compress")
	}
	if art.PayloadSize >= len(content) {
		t.Errorf("payload %d did not shrink below %d", art.PayloadSize, len(content))
	}

	doc := string(art.Document)
	for _, want := range []string{
		"<!DOCTYPE html>",
		`download="story.txt"`,
		`href="data:text/plain;base64,`,
		"DecompressionStream('gzip')",
		"var compressed = true;",
		"downloadDecompressed(); return false",
	} {
		if !strings.Contains(doc, want) {
			t.Errorf("document missing %q", want)
		}
	}

	// The embedded payload must decode and inflate back to the exact
	// original bytes.
	payload := extractPayload(t, doc, "text/plain")
	original, err := codec.GzipCompressor{}.Decompress(payload)
	if err != nil {
		t.Fatalf("decompress embedded payload: %v", err)
	}
	if !bytes.Equal(original, content) {
		t.Error("embedded payload does not round-trip to the original bytes")
	}
}

func TestBuildUncompressedImageDocument(t *testing.T) {
	content := []byte{0xff, 0xd8, 0xff, 0xe0, 0x01, 0x02, 0x03}
	art, err := Build(content, "", "photo.jpg", ceiling, codec.GzipCompressor{})
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if art.Compressed {
		t.Error("jpeg must bypass compression")
	}
	if art.PayloadSize != len(content) {
		t.Errorf("payload size %d, want %d", art.PayloadSize, len(content))
	}

	doc := string(art.Document)
	if !strings.Contains(doc, "var compressed = false;") {
		t.Error("document must mark the payload uncompressed")
	}
	// An uncompressed payload downloads straight off the anchor, with
	// no click handler in the way.
	if strings.Contains(doc, "downloadDecompressed(); return false") {
		t.Error("uncompressed artifact must not intercept the download click")
	}
	if payload := extractPayload(t, doc, "image/jpeg"); !bytes.Equal(payload, content) {
		t.Error("document must embed the raw payload")
	}
}

func TestBuildNoopCompressor(t *testing.T) {
	content := bytes.Repeat([]byte("text "), 100)
	art, err := Build(content, "text/plain", "a.txt", ceiling, codec.NoopCompressor{})
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if art.Compressed {
		t.Error("noop backend must never mark compressed")
	}
}

func TestPreviewKind(t *testing.T) {
	tests := []struct {
		mimeType string
		want     string
	}{
		{"application/pdf", "pdf"},
		{"image/png", "image"},
		{"text/plain", "text"},
		{"text/csv", "text"},
		{"video/mp4", "none"},
		{"application/zip", "none"},
	}
	for _, tt := range tests {
		if got := previewKind(tt.mimeType); got != tt.want {
			t.Errorf("previewKind(%q) = %q, want %q", tt.mimeType, got, tt.want)
		}
	}
}

func TestPreviewButtonOnlyWhenPreviewable(t *testing.T) {
	withPreview, err := Build([]byte("hello"), "text/plain", "a.txt", ceiling, codec.GzipCompressor{})
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if !strings.Contains(string(withPreview.Document), "previewFile()") {
		t.Error("text artifact should carry a preview button")
	}

	noPreview, err := Build([]byte{0x50, 0x4b}, "application/zip", "a.zip", ceiling, codec.GzipCompressor{})
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if strings.Contains(string(noPreview.Document), `class="button preview-btn"`) {
		t.Error("zip artifact should not carry a preview button")
	}
}
