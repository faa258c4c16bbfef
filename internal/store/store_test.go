package store

import (
	"bytes"
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/cloudvault/cloudvault/internal/model"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "vault.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func testFile(id, name string, content []byte) *model.FileRecord {
	return &model.FileRecord{
		ID:         id,
		Name:       name,
		Size:       int64(len(content)),
		Type:       "text/plain",
		UploadTime: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
		Content:    content,
		Tags:       []string{},
	}
}

func TestFilePutGetRoundTrip(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	f := testFile("f1", "notes.txt", []byte("hello vault"))
	f.Tags = []string{"work", "notes"}
	f.Description = "scratch notes"
	if err := s.PutFile(ctx, f); err != nil {
		t.Fatalf("put file: %v", err)
	}

	got, err := s.GetFile(ctx, "f1")
	if err != nil {
		t.Fatalf("get file: %v", err)
	}
	if got.Name != "notes.txt" || got.Type != "text/plain" {
		t.Errorf("unexpected record: %+v", got)
	}
	if !bytes.Equal(got.Content, []byte("hello vault")) {
		t.Errorf("content mismatch: %q", got.Content)
	}
	if len(got.Tags) != 2 || got.Tags[0] != "work" {
		t.Errorf("tags mismatch: %v", got.Tags)
	}
	if got.Size != int64(len(got.Content)) {
		t.Errorf("size %d does not match content length %d", got.Size, len(got.Content))
	}
}

func TestFileDuplicateKey(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	f := testFile("f1", "a.txt", []byte("a"))
	if err := s.PutFile(ctx, f); err != nil {
		t.Fatalf("put file: %v", err)
	}
	err := s.PutFile(ctx, testFile("f1", "b.txt", []byte("b")))
	if !errors.Is(err, ErrDuplicateKey) {
		t.Fatalf("expected ErrDuplicateKey, got %v", err)
	}

	// The original record must be untouched.
	got, err := s.GetFile(ctx, "f1")
	if err != nil {
		t.Fatalf("get file: %v", err)
	}
	if got.Name != "a.txt" {
		t.Errorf("original record modified: %q", got.Name)
	}
}

func TestFileNotFound(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	if _, err := s.GetFile(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("get: expected ErrNotFound, got %v", err)
	}
	if err := s.DeleteFile(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("delete: expected ErrNotFound, got %v", err)
	}
	if err := s.RenameFile(ctx, "missing", "x"); !errors.Is(err, ErrNotFound) {
		t.Errorf("rename: expected ErrNotFound, got %v", err)
	}
}

func TestFileSizeInvariant(t *testing.T) {
	s := openTestStore(t)
	f := testFile("f1", "a.txt", []byte("abc"))
	f.Size = 999
	if err := s.PutFile(context.Background(), f); err == nil {
		t.Fatal("expected size/content mismatch to be rejected")
	}
}

func TestUpdateFileUpsert(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	// Update of an absent id inserts.
	f := testFile("f1", "a.txt", []byte("v1"))
	if err := s.UpdateFile(ctx, f); err != nil {
		t.Fatalf("update (insert) file: %v", err)
	}

	f.Content = []byte("v2-longer")
	f.Size = int64(len(f.Content))
	if err := s.UpdateFile(ctx, f); err != nil {
		t.Fatalf("update file: %v", err)
	}
	got, err := s.GetFile(ctx, "f1")
	if err != nil {
		t.Fatalf("get file: %v", err)
	}
	if string(got.Content) != "v2-longer" {
		t.Errorf("expected updated content, got %q", got.Content)
	}
}

func TestFileIndexQueries(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	files := []*model.FileRecord{
		{ID: "f1", Name: "a.txt", Size: 10, Type: "text/plain", UploadTime: base, Content: make([]byte, 10), Tags: []string{}},
		{ID: "f2", Name: "b.jpg", Size: 200, Type: "image/jpeg", UploadTime: base.Add(24 * time.Hour), Content: make([]byte, 200), Tags: []string{}},
		{ID: "f3", Name: "a.txt", Size: 30, Type: "text/plain", UploadTime: base.Add(48 * time.Hour), Content: make([]byte, 30), Tags: []string{}},
	}
	for _, f := range files {
		if err := s.PutFile(ctx, f); err != nil {
			t.Fatalf("put %s: %v", f.ID, err)
		}
	}

	byType, err := s.FilesByType(ctx, "text/plain")
	if err != nil {
		t.Fatalf("by type: %v", err)
	}
	if len(byType) != 2 {
		t.Errorf("by type: expected 2, got %d", len(byType))
	}

	byName, err := s.FilesByName(ctx, "a.txt")
	if err != nil {
		t.Fatalf("by name: %v", err)
	}
	if len(byName) != 2 {
		t.Errorf("by name: expected 2, got %d", len(byName))
	}

	byTime, err := s.FilesUploadedBetween(ctx, base.Add(12*time.Hour), base.Add(72*time.Hour))
	if err != nil {
		t.Fatalf("by upload time: %v", err)
	}
	if len(byTime) != 2 || byTime[0].ID != "f2" {
		t.Errorf("by upload time: unexpected result %v", ids(byTime))
	}

	bySize, err := s.FilesSizedBetween(ctx, 10, 30)
	if err != nil {
		t.Fatalf("by size: %v", err)
	}
	if len(bySize) != 2 || bySize[0].ID != "f1" || bySize[1].ID != "f3" {
		t.Errorf("by size: unexpected result %v", ids(bySize))
	}
}

func TestCopyFile(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	src := testFile("f1", "report.pdf", []byte("pdf bytes"))
	src.IsShared = true
	if err := s.PutFile(ctx, src); err != nil {
		t.Fatalf("put file: %v", err)
	}

	now := time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)
	dup, err := s.CopyFile(ctx, "f1", "f2", now)
	if err != nil {
		t.Fatalf("copy file: %v", err)
	}
	if dup.ID != "f2" {
		t.Errorf("expected new id f2, got %s", dup.ID)
	}
	if dup.Name != "report_copy.pdf" {
		t.Errorf("expected report_copy.pdf, got %s", dup.Name)
	}
	if dup.IsShared {
		t.Error("copy must not inherit share state")
	}
	got, err := s.GetFile(ctx, "f2")
	if err != nil {
		t.Fatalf("get copy: %v", err)
	}
	if !bytes.Equal(got.Content, src.Content) {
		t.Error("copy content mismatch")
	}
}

func TestCopyName(t *testing.T) {
	tests := []struct{ in, want string }{
		{"report.pdf", "report_copy.pdf"},
		{"README", "README_copy"},
		{"archive.tar.gz", "archive.tar_copy.gz"},
		{".bashrc", ".bashrc_copy"},
	}
	for _, tt := range tests {
		if got := copyName(tt.in); got != tt.want {
			t.Errorf("copyName(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestStats(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	put := func(id, mime string, size int64) {
		t.Helper()
		f := &model.FileRecord{ID: id, Name: id, Size: size, Type: mime,
			UploadTime: time.Now(), Content: make([]byte, size), Tags: []string{}}
		if err := s.PutFile(ctx, f); err != nil {
			t.Fatalf("put %s: %v", id, err)
		}
	}
	put("i1", "image/png", 100)
	put("i2", "image/jpeg", 50)
	put("d1", "application/pdf", 300)
	put("d2", "text/plain", 20)
	put("v1", "video/mp4", 1000)
	put("a1", "audio/mpeg", 500)
	put("o1", "unknown", 7)

	stats, err := s.Stats(ctx)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats.TotalFiles != 7 || stats.TotalSize != 1977 {
		t.Errorf("totals: %d files, %d bytes", stats.TotalFiles, stats.TotalSize)
	}
	if stats.ImageCount != 2 || stats.DocumentCount != 2 || stats.VideoCount != 1 ||
		stats.AudioCount != 1 || stats.OtherCount != 1 {
		t.Errorf("category counts: %+v", stats)
	}
}

func int64p(v int64) *int64 { return &v }

func TestShareLifecycle(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	if err := s.PutFile(ctx, testFile("f1", "a.txt", []byte("a"))); err != nil {
		t.Fatalf("put file: %v", err)
	}
	expiry := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	sh := &model.ShareRecord{
		ID:        "s1",
		FileID:    "f1",
		ShareURL:  "vault://share/s1",
		Password:  "sesame",
		ExpiresAt: &expiry,
		MaxAccess: int64p(3),
		CreatedAt: time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC),
		IsPublic:  true,
	}
	if err := s.PutShare(ctx, sh); err != nil {
		t.Fatalf("put share: %v", err)
	}
	if err := s.PutShare(ctx, sh); !errors.Is(err, ErrDuplicateKey) {
		t.Fatalf("expected ErrDuplicateKey, got %v", err)
	}

	got, err := s.GetShare(ctx, "s1")
	if err != nil {
		t.Fatalf("get share: %v", err)
	}
	if got.Password != "sesame" || got.MaxAccess == nil || *got.MaxAccess != 3 {
		t.Errorf("unexpected share: %+v", got)
	}
	if got.ExpiresAt == nil || !got.ExpiresAt.Equal(expiry) {
		t.Errorf("expiry mismatch: %v", got.ExpiresAt)
	}

	for i := 0; i < 3; i++ {
		if err := s.IncrementAccess(ctx, "s1"); err != nil {
			t.Fatalf("increment %d: %v", i, err)
		}
	}
	got, _ = s.GetShare(ctx, "s1")
	if got.AccessCount != 3 {
		t.Errorf("expected access count 3, got %d", got.AccessCount)
	}

	if err := s.ResetAccess(ctx, "s1"); err != nil {
		t.Fatalf("reset access: %v", err)
	}
	got, _ = s.GetShare(ctx, "s1")
	if got.AccessCount != 0 {
		t.Errorf("expected access count 0 after reset, got %d", got.AccessCount)
	}

	if err := s.DeleteShare(ctx, "s1"); err != nil {
		t.Fatalf("delete share: %v", err)
	}
	if _, err := s.GetShare(ctx, "s1"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound after delete, got %v", err)
	}
}

func TestDeleteFileDoesNotCascade(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	if err := s.PutFile(ctx, testFile("f1", "a.txt", []byte("a"))); err != nil {
		t.Fatalf("put file: %v", err)
	}
	sh := &model.ShareRecord{ID: "s1", FileID: "f1", ShareURL: "u", CreatedAt: time.Now(), IsPublic: true}
	if err := s.PutShare(ctx, sh); err != nil {
		t.Fatalf("put share: %v", err)
	}

	// The store deletes only the file; cascading is the manager's job.
	if err := s.DeleteFile(ctx, "f1"); err != nil {
		t.Fatalf("delete file: %v", err)
	}
	if _, err := s.GetShare(ctx, "s1"); err != nil {
		t.Errorf("share should survive a bare file delete: %v", err)
	}

	n, err := s.DeleteSharesByFile(ctx, "f1")
	if err != nil {
		t.Fatalf("delete shares by file: %v", err)
	}
	if n != 1 {
		t.Errorf("expected 1 share removed, got %d", n)
	}
}

func TestDeleteExpiredShares(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	past := now.Add(-time.Hour)
	atNow := now
	future := now.Add(time.Hour)

	put := func(id string, exp *time.Time) {
		t.Helper()
		sh := &model.ShareRecord{ID: id, FileID: "f", ShareURL: "u", ExpiresAt: exp,
			CreatedAt: now.Add(-24 * time.Hour), IsPublic: true}
		if err := s.PutShare(ctx, sh); err != nil {
			t.Fatalf("put %s: %v", id, err)
		}
	}
	put("s-past", &past)
	put("s-boundary", &atNow)
	put("s-future", &future)
	put("s-forever", nil)

	removed, err := s.DeleteExpiredShares(ctx, now)
	if err != nil {
		t.Fatalf("delete expired: %v", err)
	}
	// Expiry exactly at now counts as expired.
	if removed != 2 {
		t.Errorf("expected 2 removed, got %d", removed)
	}
	if _, err := s.GetShare(ctx, "s-future"); err != nil {
		t.Errorf("future share removed: %v", err)
	}
	if _, err := s.GetShare(ctx, "s-forever"); err != nil {
		t.Errorf("non-expiring share removed: %v", err)
	}
}

func TestExportImportRoundTrip(t *testing.T) {
	src := openTestStore(t)
	dst := openTestStore(t)
	ctx := context.Background()

	f := testFile("f1", "a.txt", []byte("payload"))
	f.Tags = []string{"x"}
	if err := src.PutFile(ctx, f); err != nil {
		t.Fatalf("put file: %v", err)
	}
	sh := &model.ShareRecord{ID: "s1", FileID: "f1", ShareURL: "u", AccessCount: 5,
		CreatedAt: time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC), IsPublic: true}
	if err := src.PutShare(ctx, sh); err != nil {
		t.Fatalf("put share: %v", err)
	}

	// Pre-existing records in the destination must be replaced.
	if err := dst.PutFile(ctx, testFile("stale", "old.txt", []byte("old"))); err != nil {
		t.Fatalf("put stale: %v", err)
	}

	var buf bytes.Buffer
	if err := src.Export(ctx, &buf); err != nil {
		t.Fatalf("export: %v", err)
	}
	if err := dst.Import(ctx, &buf); err != nil {
		t.Fatalf("import: %v", err)
	}

	if _, err := dst.GetFile(ctx, "stale"); !errors.Is(err, ErrNotFound) {
		t.Errorf("stale record survived import: %v", err)
	}
	got, err := dst.GetFile(ctx, "f1")
	if err != nil {
		t.Fatalf("get imported file: %v", err)
	}
	if string(got.Content) != "payload" || len(got.Tags) != 1 {
		t.Errorf("imported file mismatch: %+v", got)
	}
	gotShare, err := dst.GetShare(ctx, "s1")
	if err != nil {
		t.Fatalf("get imported share: %v", err)
	}
	if gotShare.AccessCount != 5 {
		t.Errorf("imported access count %d", gotShare.AccessCount)
	}
}

func TestImportRejectsBadSnapshot(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	if err := s.PutFile(ctx, testFile("keep", "keep.txt", []byte("keep"))); err != nil {
		t.Fatalf("put file: %v", err)
	}

	bad := `{"files":[{"id":"f1","name":"x","size":99,"content":"YQ=="}],"shares":[]}`
	if err := s.Import(ctx, bytes.NewReader([]byte(bad))); err == nil {
		t.Fatal("expected invariant violation to reject the import")
	}

	// Nothing may have changed.
	if _, err := s.GetFile(ctx, "keep"); err != nil {
		t.Errorf("existing record lost on failed import: %v", err)
	}
}

func ids(files []*model.FileRecord) []string {
	out := make([]string, len(files))
	for i, f := range files {
		out[i] = f.ID
	}
	return out
}
