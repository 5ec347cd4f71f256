package musicbrainz

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"
)

const (
	defaultBaseURL   = "https://musicbrainz.org/ws/2"
	defaultUserAgent = "bpmdata/0.1 (https://github.com/llehouerou/bpmdata)"
	rateLimitDur     = time.Second // MusicBrainz requires 1 request per second

	// Retry configuration
	maxRetries   = 3
	initialDelay = 2 * time.Second
	maxDelay     = 30 * time.Second

	searchLimit = "10"
)

// Client provides access to the MusicBrainz API.
type Client struct {
	httpClient  *http.Client
	baseURL     string
	userAgent   string
	lastRequest time.Time
	mu          sync.Mutex
}

// Option configures a Client.
type Option func(*Client)

// WithBaseURL points the client at another server, such as a mirror.
func WithBaseURL(u string) Option {
	return func(c *Client) { c.baseURL = strings.TrimRight(u, "/") }
}

// WithUserAgent overrides the User-Agent header sent with every request.
func WithUserAgent(ua string) Option {
	return func(c *Client) { c.userAgent = ua }
}

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// NewClient creates a new MusicBrainz API client.
func NewClient(opts ...Option) *Client {
	c := &Client{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		baseURL:    defaultBaseURL,
		userAgent:  defaultUserAgent,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// SearchArtists searches for artists by exact name.
func (c *Client) SearchArtists(ctx context.Context, name string) ([]Artist, error) {
	var result artistSearchResponse
	if err := c.search(ctx, "artist", field("artist", name), &result); err != nil {
		return nil, err
	}
	return result.Artists, nil
}

// SearchReleases searches for releases by title, narrowed to an artist
// when one is given.
func (c *Client) SearchReleases(ctx context.Context, artist, title string) ([]Release, error) {
	query := field("release", title)
	if artist != "" {
		query += " AND " + field("artist", artist)
	}

	var result releaseSearchResponse
	if err := c.search(ctx, "release", query, &result); err != nil {
		return nil, err
	}

	releases := make([]Release, 0, len(result.Releases))
	for _, r := range result.Releases {
		rel := Release{
			ID:     r.ID,
			Title:  r.Title,
			Artist: extractArtist(r.ArtistCredit),
			Date:   r.Date,
			Score:  r.Score,
		}
		if len(r.ArtistCredit) > 0 {
			rel.ArtistID = r.ArtistCredit[0].Artist.ID
		}
		releases = append(releases, rel)
	}
	return releases, nil
}

func (c *Client) search(ctx context.Context, entity, query string, out any) error {
	if err := c.waitForRateLimit(ctx); err != nil {
		return err
	}

	params := url.Values{}
	params.Set("query", query)
	params.Set("fmt", "json")
	params.Set("limit", searchLimit)

	reqURL := fmt.Sprintf("%s/%s?%s", c.baseURL, entity, params.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, http.NoBody)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := c.doRequestWithRetry(req)
	if err != nil {
		return fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("API status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// waitForRateLimit ensures we don't exceed MusicBrainz rate limits.
func (c *Client) waitForRateLimit(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if wait := rateLimitDur - time.Since(c.lastRequest); wait > 0 {
		if err := sleep(ctx, wait); err != nil {
			return err
		}
	}
	c.lastRequest = time.Now()
	return nil
}

// doRequestWithRetry executes an HTTP request with exponential backoff retry.
// Retries on 5xx errors and network errors.
func (c *Client) doRequestWithRetry(req *http.Request) (*http.Response, error) {
	ctx := req.Context()
	var lastErr error
	delay := initialDelay

	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt > 0 {
			if err := sleep(ctx, delay); err != nil {
				return nil, err
			}
			delay = min(delay*2, maxDelay)
			if err := c.waitForRateLimit(ctx); err != nil {
				return nil, err
			}
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			lastErr = err
			continue
		}

		// Success or client error (4xx) - don't retry
		if resp.StatusCode < 500 {
			return resp, nil
		}

		resp.Body.Close()
		lastErr = fmt.Errorf("server returned status %d", resp.StatusCode)
	}

	return nil, fmt.Errorf("request failed after %d retries: %w", maxRetries+1, lastErr)
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

var luceneQuote = strings.NewReplacer(`\`, `\\`, `"`, `\"`)

// field builds a quoted Lucene field query.
func field(name, value string) string {
	return name + `:"` + luceneQuote.Replace(value) + `"`
}

func extractArtist(credits []artistCredit) string {
	if len(credits) == 0 {
		return ""
	}

	parts := make([]string, 0, len(credits))
	for _, c := range credits {
		name := c.Name
		if name == "" {
			name = c.Artist.Name
		}
		parts = append(parts, name+c.JoinPhrase)
	}
	return strings.Join(parts, "")
}
