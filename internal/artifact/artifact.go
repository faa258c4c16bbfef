// Package artifact turns a file's bytes into a single self-contained
// share document: an HTML page embedding the (optionally compressed)
// base64 payload with download and preview affordances.
package artifact

import (
	"bytes"
	"errors"
	"fmt"
	"html/template"

	"github.com/dustin/go-humanize"

	"github.com/cloudvault/cloudvault/internal/codec"
	"github.com/cloudvault/cloudvault/internal/metrics"
)

// ErrUnreadableSource is returned when a file record carries no content
// to build from.
var ErrUnreadableSource = errors.New("file content could not be obtained")

// PayloadTooLargeError is returned when the raw content exceeds the
// artifact size ceiling. No partial artifact is produced.
type PayloadTooLargeError struct {
	Actual int64
	Limit  int64
}

func (e *PayloadTooLargeError) Error() string {
	return fmt.Sprintf("payload too large: %d bytes exceeds limit of %d", e.Actual, e.Limit)
}

// Artifact is the produced share document plus its encoding facts.
type Artifact struct {
	Document    []byte // the self-contained HTML page
	MIMEType    string // resolved MIME type of the original file
	Compressed  bool   // whether the embedded payload is gzip-compressed
	PayloadSize int    // pre-base64 payload length (never exceeds the original)
	EncodedSize int    // base64 text length
}

// Build produces the share document for the given content. Steps, in
// order: size gate, MIME resolution, compression policy, base64
// encoding, document assembly.
func Build(content []byte, declaredType, fileName string, sizeCeiling int64, comp codec.Compressor) (*Artifact, error) {
	if int64(len(content)) > sizeCeiling {
		metrics.RecordArtifactBuilt("too_large", 0)
		return nil, &PayloadTooLargeError{Actual: int64(len(content)), Limit: sizeCeiling}
	}

	mimeType := codec.ResolveMIMEType(declaredType, fileName)
	payload, compressed := codec.ChooseCompression(content, mimeType, comp)
	encoded := codec.Encode(payload)

	doc, err := renderDocument(fileName, mimeType, encoded, int64(len(content)), compressed)
	if err != nil {
		metrics.RecordArtifactBuilt("error", 0)
		return nil, fmt.Errorf("render document: %w", err)
	}

	metrics.RecordArtifactBuilt("ok", len(doc))
	return &Artifact{
		Document:    doc,
		MIMEType:    mimeType,
		Compressed:  compressed,
		PayloadSize: len(payload),
		EncodedSize: len(encoded),
	}, nil
}

// previewKind selects the in-place preview affordance by MIME category;
// everything outside image/PDF/text falls back to download only.
func previewKind(mimeType string) string {
	if mimeType == "application/pdf" {
		return "pdf"
	}
	switch codec.LookupTypeInfo(mimeType).Category {
	case "image":
		return "image"
	}
	if len(mimeType) >= 5 && mimeType[:5] == "text/" {
		return "text"
	}
	return "none"
}

type documentData struct {
	FileName          string
	MIMEType          string
	DataURI           template.URL
	SizeHuman         string
	CompressionStatus string
	Compressed        bool
	Icon              string
	PreviewKind       string
}

func renderDocument(fileName, mimeType, encoded string, originalSize int64, compressed bool) ([]byte, error) {
	status := "encoded as-is"
	if compressed {
		status = "compressed"
	}
	data := documentData{
		FileName:          fileName,
		MIMEType:          mimeType,
		DataURI:           template.URL("data:" + mimeType + ";base64," + encoded),
		SizeHuman:         humanize.Bytes(uint64(originalSize)),
		CompressionStatus: status,
		Compressed:        compressed,
		Icon:              codec.LookupTypeInfo(mimeType).Icon,
		PreviewKind:       previewKind(mimeType),
	}

	var buf bytes.Buffer
	if err := documentTemplate.Execute(&buf, data); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

var documentTemplate = template.Must(template.New("artifact").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
  <meta charset="UTF-8">
  <meta name="viewport" content="width=device-width, initial-scale=1.0">
  <title>Shared file - {{.FileName}}</title>
  <style>
    * { margin: 0; padding: 0; box-sizing: border-box; }
    body {
      font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, sans-serif;
      background: linear-gradient(135deg, #667eea 0%, #764ba2 100%);
      min-height: 100vh; display: flex; align-items: center; justify-content: center;
      padding: 20px;
    }
    .container {
      background: white; border-radius: 20px; padding: 40px; max-width: 400px;
      width: 100%; text-align: center; box-shadow: 0 20px 60px rgba(0,0,0,0.1);
    }
    .file-icon { font-size: 56px; margin-bottom: 24px; }
    .title { font-size: 24px; font-weight: 600; color: #333; margin-bottom: 8px; }
    .file-name { font-size: 16px; color: #666; margin-bottom: 32px; word-break: break-all; }
    .button {
      display: inline-block; padding: 14px 28px; border-radius: 50px;
      text-decoration: none; font-weight: 600; font-size: 16px; margin: 8px;
      cursor: pointer; border: none; color: white;
    }
    .download-btn { background: #6366f1; }
    .preview-btn { background: #10b981; }
    .file-info {
      background: #f8fafc; border-radius: 12px; padding: 16px; margin: 24px 0;
      font-size: 14px; color: #666;
    }
    .info { font-size: 14px; color: #666; margin-top: 24px; }
  </style>
</head>
<body>
  <div class="container">
    <div class="file-icon">{{.Icon}}</div>
    <h1 class="title">Shared file</h1>
    <p class="file-name">{{.FileName}}</p>
    <a id="download-link" href="{{.DataURI}}" download="{{.FileName}}"{{if .Compressed}} onclick="downloadDecompressed(); return false"{{end}} class="button download-btn">Download</a>
{{- if ne .PreviewKind "none"}}
    <button onclick="previewFile()" class="button preview-btn">Preview</button>
{{- end}}
    <div class="file-info">
      <div>Size: {{.SizeHuman}}</div>
      <div>Type: {{.MIMEType}}</div>
    </div>
    <p class="info">Payload {{.CompressionStatus}}; no server required.</p>
  </div>
  <script>
    // The payload lives in the anchor's href attribute: an uncompressed
    // file downloads with no script at all, and the script below reads
    // the same attribute for the compressed and preview paths.
    var link = document.getElementById('download-link');
    var dataUri = link.getAttribute('href');
    var fileName = link.getAttribute('download');
    var mimeType = {{.MIMEType}};
    var compressed = {{if .Compressed}}true{{else}}false{{end}};

    // Reconstructs the exact original bytes locally: the data URI is
    // decoded in place and, when the payload was gzip-compressed,
    // inflated through DecompressionStream.
    async function originalBlob() {
      var resp = await fetch(dataUri);
      if (!compressed) {
        return await resp.blob();
      }
      var stream = resp.body.pipeThrough(new DecompressionStream('gzip'));
      var buf = await new Response(stream).arrayBuffer();
      return new Blob([buf], { type: mimeType });
    }

    async function downloadDecompressed() {
      var blob = await originalBlob();
      var url = URL.createObjectURL(blob);
      var a = document.createElement('a');
      a.href = url;
      a.download = fileName;
      a.click();
      URL.revokeObjectURL(url);
    }

    async function previewFile() {
      var blob = await originalBlob();
      var url = URL.createObjectURL(blob);
      var w = window.open('', '_blank');
      switch ("{{.PreviewKind}}") {
        case "image":
          w.document.write('<body style="margin:0;display:flex;justify-content:center;align-items:center;min-height:100vh;background:#000;">' +
            '<img src="' + url + '" style="max-width:100%;max-height:100%;object-fit:contain;"></body>');
          break;
        case "pdf":
          w.document.write('<body style="margin:0;"><embed src="' + url + '" type="application/pdf" width="100%" height="100%" style="height:100vh;"></body>');
          break;
        case "text":
          var text = await blob.text();
          var pre = w.document.createElement('pre');
          pre.style.cssText = 'white-space:pre-wrap;word-wrap:break-word;font-family:monospace;padding:20px;';
          pre.textContent = text;
          w.document.body.appendChild(pre);
          break;
      }
    }
  </script>
</body>
</html>
`))
