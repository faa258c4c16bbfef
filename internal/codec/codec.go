// Package codec provides the binary-safe content encoding used by share
// artifacts: standard base64, gzip compression with a size-comparison
// fallback, and MIME type inference.
package codec

import (
	"encoding/base64"
	"path/filepath"
	"strings"
)

// DefaultMIMEType is the fallback for unknown extensions.
const DefaultMIMEType = "application/octet-stream"

// mimeByExtension maps file-name extensions to MIME types.
var mimeByExtension = map[string]string{
	// Documents
	".pdf":  "application/pdf",
	".doc":  "application/msword",
	".docx": "application/vnd.openxmlformats-officedocument.wordprocessingml.document",
	".xls":  "application/vnd.ms-excel",
	".xlsx": "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
	".ppt":  "application/vnd.ms-powerpoint",
	".pptx": "application/vnd.openxmlformats-officedocument.presentationml.presentation",

	// Images
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".gif":  "image/gif",
	".webp": "image/webp",
	".bmp":  "image/bmp",
	".svg":  "image/svg+xml",

	// Video
	".mp4": "video/mp4",
	".avi": "video/x-msvideo",
	".mov": "video/quicktime",
	".wmv": "video/x-ms-wmv",
	".flv": "video/x-flv",

	// Audio
	".mp3": "audio/mpeg",
	".wav": "audio/wav",
	".ogg": "audio/ogg",
	".aac": "audio/aac",

	// Text
	".txt":  "text/plain",
	".html": "text/html",
	".css":  "text/css",
	".js":   "text/javascript",
	".json": "application/json",
	".xml":  "text/xml",

	// Archives
	".zip": "application/zip",
	".rar": "application/x-rar-compressed",
	".7z":  "application/x-7z-compressed",
	".tar": "application/x-tar",
	".gz":  "application/gzip",
}

// ResolveMIMEType returns the declared type when present, otherwise
// infers one from the file-name extension, falling back to octet-stream.
func ResolveMIMEType(declared, fileName string) string {
	if declared != "" {
		return declared
	}
	ext := strings.ToLower(filepath.Ext(fileName))
	if mt, ok := mimeByExtension[ext]; ok {
		return mt
	}
	return DefaultMIMEType
}

// Encode produces the standard base64 text form of data, with `=`
// padding for trailing bytes.
func Encode(data []byte) string {
	return base64.StdEncoding.EncodeToString(data)
}

// Decode reverses Encode, byte-exactly.
func Decode(encoded string) ([]byte, error) {
	return base64.StdEncoding.DecodeString(encoded)
}
