package codec

import "strings"

// TypeInfo is the per-MIME display/dispatch record.
type TypeInfo struct {
	Icon     string
	Category string // image, document, video, audio, archive, other
}

// typePatterns is an ordered pattern table; the first match wins and the
// final entry is the explicit default.
var typePatterns = []struct {
	pattern string // exact MIME type or "category/*"
	info    TypeInfo
}{
	{"application/pdf", TypeInfo{Icon: "📄", Category: "document"}},
	{"image/*", TypeInfo{Icon: "🖼️", Category: "image"}},
	{"video/*", TypeInfo{Icon: "🎬", Category: "video"}},
	{"audio/*", TypeInfo{Icon: "🎵", Category: "audio"}},
	{"text/*", TypeInfo{Icon: "📝", Category: "document"}},
	{"application/msword", TypeInfo{Icon: "📝", Category: "document"}},
	{"application/vnd.openxmlformats-officedocument.wordprocessingml.document", TypeInfo{Icon: "📝", Category: "document"}},
	{"application/vnd.ms-excel", TypeInfo{Icon: "📊", Category: "document"}},
	{"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", TypeInfo{Icon: "📊", Category: "document"}},
	{"application/vnd.ms-powerpoint", TypeInfo{Icon: "📽️", Category: "document"}},
	{"application/vnd.openxmlformats-officedocument.presentationml.presentation", TypeInfo{Icon: "📽️", Category: "document"}},
	{"application/json", TypeInfo{Icon: "⚙️", Category: "document"}},
	{"application/zip", TypeInfo{Icon: "🗜️", Category: "archive"}},
	{"application/gzip", TypeInfo{Icon: "🗜️", Category: "archive"}},
	{"application/x-rar-compressed", TypeInfo{Icon: "🗜️", Category: "archive"}},
	{"application/x-7z-compressed", TypeInfo{Icon: "🗜️", Category: "archive"}},
	{"application/x-tar", TypeInfo{Icon: "🗜️", Category: "archive"}},
	{"*", TypeInfo{Icon: "📁", Category: "other"}}, // default
}

// LookupTypeInfo returns the display/dispatch record for a MIME type,
// falling through to the default entry.
func LookupTypeInfo(mimeType string) TypeInfo {
	mt := strings.ToLower(mimeType)
	for _, e := range typePatterns {
		switch {
		case e.pattern == "*":
			return e.info
		case strings.HasSuffix(e.pattern, "/*"):
			if strings.HasPrefix(mt, e.pattern[:len(e.pattern)-1]) {
				return e.info
			}
		case mt == e.pattern:
			return e.info
		}
	}
	return typePatterns[len(typePatterns)-1].info
}
