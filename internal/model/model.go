// Package model defines the domain records shared across the vault.
package model

import "time"

// FileRecord is a file stored in the vault: metadata plus the owned
// content buffer. Size always equals len(Content) when Content is set.
type FileRecord struct {
	ID           string       `json:"id"`
	Name         string       `json:"name"`
	Size         int64        `json:"size"`
	Type         string       `json:"type"` // declared MIME type
	UploadTime   time.Time    `json:"upload_time"`
	LastModified *time.Time   `json:"last_modified,omitempty"`
	Thumbnail    string       `json:"thumbnail,omitempty"` // data URI
	Content      []byte       `json:"content,omitempty"`
	Tags         []string     `json:"tags,omitempty"`
	Description  string       `json:"description,omitempty"`
	IsShared     bool         `json:"is_shared"`
	Share        *ShareRecord `json:"share,omitempty"` // attached on read by the share manager
}

// ShareRecord is a policy-gated pointer to a file. The file reference is
// not ownership: the file can be deleted independently, leaving the share
// orphaned and invalid.
type ShareRecord struct {
	ID          string     `json:"id"`
	FileID      string     `json:"file_id"`
	ShareURL    string     `json:"share_url"`
	Password    string     `json:"password,omitempty"`
	ExpiresAt   *time.Time `json:"expires_at,omitempty"`
	AccessCount int64      `json:"access_count"`
	MaxAccess   *int64     `json:"max_access,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	IsPublic    bool       `json:"is_public"`
	QRCode      []byte     `json:"qr_code,omitempty"` // PNG rendering of ShareURL
}

// ShareOptions are the optional policy knobs for a new share.
type ShareOptions struct {
	Password  string
	ExpiresAt *time.Time
	MaxAccess *int64
	IsPublic  *bool // nil means public
}

// SortField selects the file attribute a listing is ordered by.
type SortField string

const (
	SortByName       SortField = "name"
	SortBySize       SortField = "size"
	SortByUploadTime SortField = "uploadTime"
	SortByType       SortField = "type"
)

// SortOption is a single (field, direction) sort key.
type SortOption struct {
	Field      SortField
	Descending bool
}

// DateRange is an inclusive upload-time window.
type DateRange struct {
	Start time.Time
	End   time.Time
}

// SizeRange is an inclusive byte-size window.
type SizeRange struct {
	Min int64
	Max int64
}

// SearchFilter is a conjunction of optional predicates. A nil or
// zero-value filter matches everything.
type SearchFilter struct {
	Keyword   string
	Types     []string // exact MIME types or "category/*" globs
	DateRange *DateRange
	SizeRange *SizeRange
	Tags      []string
}

// Progress status values. Every ingested item ends in exactly one of
// StatusDone or StatusFailed.
const (
	StatusPending    = "pending"
	StatusInProgress = "in-progress"
	StatusDone       = "done"
	StatusFailed     = "failed"
)

// Progress is one ingestion progress event.
type Progress struct {
	FileID  string `json:"id"`
	Name    string `json:"name"`
	Percent int    `json:"percent"`
	Status  string `json:"status"`
	Error   string `json:"error,omitempty"`
}

// Stats summarizes the file collection by MIME category.
type Stats struct {
	TotalFiles    int   `json:"total_files"`
	TotalSize     int64 `json:"total_size"`
	ImageCount    int   `json:"image_count"`
	DocumentCount int   `json:"document_count"`
	VideoCount    int   `json:"video_count"`
	AudioCount    int   `json:"audio_count"`
	OtherCount    int   `json:"other_count"`
}
