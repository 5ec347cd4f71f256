// Package musicbrainz provides a client for the MusicBrainz search API.
package musicbrainz

// Artist represents a MusicBrainz artist.
type Artist struct {
	ID             string `json:"id"`
	Name           string `json:"name"`
	SortName       string `json:"sort-name"`
	Type           string `json:"type"` // Person, Group, etc.
	Country        string `json:"country"`
	Score          int    `json:"score"` // Search relevance score (0-100)
	Disambiguation string `json:"disambiguation"`
}

// Release represents a MusicBrainz release (album).
type Release struct {
	ID       string `json:"id"`
	Title    string `json:"title"`
	Artist   string // Extracted from artist-credit
	ArtistID string // First credited artist
	Date     string `json:"date"`
	Score    int    `json:"score"`
}

// Year returns the year portion of the release date, or "".
func (r Release) Year() string {
	if len(r.Date) >= 4 {
		return r.Date[:4]
	}
	return ""
}

type artistSearchResponse struct {
	Artists []Artist `json:"artists"`
}

type releaseSearchResponse struct {
	Releases []releaseResult `json:"releases"`
}

// releaseResult is a single release from search results.
type releaseResult struct {
	ID           string         `json:"id"`
	Title        string         `json:"title"`
	Score        int            `json:"score"`
	Date         string         `json:"date"`
	ArtistCredit []artistCredit `json:"artist-credit"`
}

// artistCredit represents an artist contribution.
type artistCredit struct {
	Name   string `json:"name"`
	Artist struct {
		ID   string `json:"id"`
		Name string `json:"name"`
	} `json:"artist"`
	JoinPhrase string `json:"joinphrase"`
}
