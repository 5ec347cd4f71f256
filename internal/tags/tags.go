// Package tags reads embedded metadata and audio properties from music files.
// The scan pipeline uses it to fill fields the primary analyzer left empty.
package tags

import (
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// ExtMP3 is the extension scanned when none is configured.
const ExtMP3 = ".mp3"

// Tag contains the tag fields the scanner cares about. Empty means absent.
type Tag struct {
	Path   string
	Title  string
	Artist string
	Album  string
	Genre  string
	Date   string // YYYY-MM-DD or YYYY
}

// Year derives the year from the Date field.
// Returns 0 if Date is empty or cannot be parsed.
func (t *Tag) Year() int {
	if t.Date == "" {
		return 0
	}
	year := t.Date
	if len(year) > 4 {
		year = year[:4]
	}
	y, _ := strconv.Atoi(year)
	return y
}

// AudioInfo contains audio stream properties (not tags).
type AudioInfo struct {
	Duration time.Duration
	Bitrate  int // kbps
}

// HasExtension reports whether path ends in one of exts. exts must be
// lowercase with a leading dot; the match is case-insensitive on path.
func HasExtension(path string, exts []string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	if ext == "" {
		return false
	}
	for _, e := range exts {
		if ext == e {
			return true
		}
	}
	return false
}

// taglibTags wraps a taglib result map with helper methods.
type taglibTags map[string][]string

// get returns the first non-blank value for any of the given keys.
func (t taglibTags) get(keys ...string) string {
	for _, key := range keys {
		for _, v := range t[key] {
			if v = strings.TrimSpace(v); v != "" {
				return v
			}
		}
	}
	return ""
}
