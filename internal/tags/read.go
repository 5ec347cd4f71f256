package tags

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/dhowden/tag"
	"go.senan.xyz/taglib"
)

// Read reads tag metadata from a music file. dhowden/tag is tried first;
// TagLib fills whatever it could not read. Missing fields stay empty.
func Read(path string) (*Tag, error) {
	t, primaryErr := readWithTag(path)
	if primaryErr == nil && t.Artist != "" && t.Title != "" {
		return t, nil
	}
	if t == nil {
		t = &Tag{Path: path}
	}

	// dhowden/tag has issues with some UTF-16 ID3 frames and
	// ffmpeg-created containers.
	raw, err := taglib.ReadTags(path)
	if err != nil {
		if primaryErr != nil {
			return nil, fmt.Errorf("read tags: %w", errors.Join(primaryErr, err))
		}
		return t, nil
	}
	merge(t, taglibTags(raw))
	return t, nil
}

func readWithTag(path string) (*Tag, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	m, err := tag.ReadFrom(f)
	if err != nil {
		return nil, err
	}

	return &Tag{
		Path:   path,
		Title:  strings.TrimSpace(m.Title()),
		Artist: strings.TrimSpace(m.Artist()),
		Album:  strings.TrimSpace(m.Album()),
		Genre:  strings.TrimSpace(m.Genre()),
		Date:   yearToDate(m.Year()),
	}, nil
}

// merge fills empty fields of t from TagLib values.
func merge(t *Tag, tags taglibTags) {
	fill := func(dst *string, keys ...string) {
		if *dst == "" {
			*dst = tags.get(keys...)
		}
	}
	fill(&t.Title, taglib.Title, "TITLE")
	fill(&t.Artist, taglib.Artist, "ARTIST", taglib.AlbumArtist)
	fill(&t.Album, taglib.Album, "ALBUM")
	fill(&t.Genre, taglib.Genre, "GENRE")
	fill(&t.Date, taglib.Date, "DATE", "YEAR", taglib.OriginalDate)
}

// yearToDate converts a year integer to a date string.
// Returns empty string for year 0.
func yearToDate(year int) string {
	if year == 0 {
		return ""
	}
	return strconv.Itoa(year)
}
