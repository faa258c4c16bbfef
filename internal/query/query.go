// Package query implements the in-memory filter/sort pipeline over a
// snapshot of the file collection.
package query

import (
	"sort"
	"strings"
	"time"

	"github.com/cloudvault/cloudvault/internal/metrics"
	"github.com/cloudvault/cloudvault/internal/model"
)

// Evaluate filters and sorts a snapshot of file records. It is a pure
// function of its inputs: the snapshot is never mutated, and the result
// is a fresh slice. Predicates apply in a fixed order (keyword, type,
// date range, size range, tags) with AND semantics; an empty filter
// yields the full collection, sorted.
func Evaluate(files []*model.FileRecord, filter model.SearchFilter, sortOpt model.SortOption) []*model.FileRecord {
	start := time.Now()
	defer func() { metrics.RecordQuery(time.Since(start)) }()

	result := make([]*model.FileRecord, len(files))
	copy(result, files)

	if filter.Keyword != "" {
		result = narrow(result, func(f *model.FileRecord) bool {
			return matchKeyword(f, filter.Keyword)
		})
	}
	if len(filter.Types) > 0 {
		result = narrow(result, func(f *model.FileRecord) bool {
			return matchType(f.Type, filter.Types)
		})
	}
	if filter.DateRange != nil {
		r := filter.DateRange
		result = narrow(result, func(f *model.FileRecord) bool {
			return !f.UploadTime.Before(r.Start) && !f.UploadTime.After(r.End)
		})
	}
	if filter.SizeRange != nil {
		r := filter.SizeRange
		result = narrow(result, func(f *model.FileRecord) bool {
			return f.Size >= r.Min && f.Size <= r.Max
		})
	}
	if len(filter.Tags) > 0 {
		result = narrow(result, func(f *model.FileRecord) bool {
			return matchTags(f.Tags, filter.Tags)
		})
	}

	sortFiles(result, sortOpt)
	return result
}

func narrow(files []*model.FileRecord, keep func(*model.FileRecord) bool) []*model.FileRecord {
	out := files[:0:len(files)]
	for _, f := range files {
		if keep(f) {
			out = append(out, f)
		}
	}
	return out
}

// matchKeyword is a case-insensitive substring match against name,
// description, and each tag; any hit qualifies the file.
func matchKeyword(f *model.FileRecord, keyword string) bool {
	kw := strings.ToLower(keyword)
	if strings.Contains(strings.ToLower(f.Name), kw) {
		return true
	}
	if strings.Contains(strings.ToLower(f.Description), kw) {
		return true
	}
	for _, tag := range f.Tags {
		if strings.Contains(strings.ToLower(tag), kw) {
			return true
		}
	}
	return false
}

// matchType accepts an exact MIME match or a "category/*" glob, which is
// a prefix match up to and including the slash.
func matchType(mimeType string, patterns []string) bool {
	for _, p := range patterns {
		if strings.HasSuffix(p, "/*") {
			if strings.HasPrefix(mimeType, p[:len(p)-1]) {
				return true
			}
		} else if mimeType == p {
			return true
		}
	}
	return false
}

// matchTags qualifies a file carrying any of the requested tags.
func matchTags(fileTags, wanted []string) bool {
	for _, w := range wanted {
		for _, t := range fileTags {
			if t == w {
				return true
			}
		}
	}
	return false
}

// sortFiles orders by a single key. SliceStable keeps ties in their
// pre-sort relative order, which the contract requires explicitly.
func sortFiles(files []*model.FileRecord, opt model.SortOption) {
	less := lessFunc(opt.Field)
	if less == nil {
		return
	}
	if opt.Descending {
		asc := less
		less = func(a, b *model.FileRecord) bool { return asc(b, a) }
	}
	sort.SliceStable(files, func(i, j int) bool {
		return less(files[i], files[j])
	})
}

func lessFunc(field model.SortField) func(a, b *model.FileRecord) bool {
	switch field {
	case model.SortByName:
		return func(a, b *model.FileRecord) bool { return a.Name < b.Name }
	case model.SortBySize:
		return func(a, b *model.FileRecord) bool { return a.Size < b.Size }
	case model.SortByType:
		return func(a, b *model.FileRecord) bool { return a.Type < b.Type }
	case model.SortByUploadTime:
		return func(a, b *model.FileRecord) bool { return a.UploadTime.Before(b.UploadTime) }
	default:
		return nil
	}
}
