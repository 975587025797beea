// Package mediawiki lists the content pages of a MediaWiki site through its action API.
package mediawiki

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"
)

const (
	// DefaultAPIURL is expanded with the site name.
	DefaultAPIURL   = "https://%s/api.php"
	defaultTimeout  = 30 * time.Second
	defaultMaxPages = 10000
	maxBodySize     = 8 << 20 // 8 MB
	userAgent       = "statsync/1.0 (+https://github.com/bahaipedia/server-scripts)"
)

var (
	// ErrPaginationLoop means the API handed back a continuation token it already sent.
	ErrPaginationLoop = errors.New("mediawiki: continuation token repeated")
	// ErrTooManyPages means the listing did not finish within the page limit.
	ErrTooManyPages = errors.New("mediawiki: page limit reached before listing finished")
)

// APIError is an error payload returned by the API itself.
type APIError struct {
	Code string `json:"code"`
	Info string `json:"info"`
}

func (e *APIError) Error() string {
	if e.Code == "" {
		return "mediawiki: API error: " + e.Info
	}
	return fmt.Sprintf("mediawiki: API error %s: %s", e.Code, e.Info)
}

// StatusError is a non-2xx HTTP response.
type StatusError struct {
	URL        string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("mediawiki: unexpected status %d from %s", e.StatusCode, e.URL)
}

// Client pages through list=allpages.
type Client struct {
	apiURL   string
	maxPages int
	http     *http.Client
	logger   *slog.Logger
}

// Option customizes a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithMaxPages caps the number of API round-trips per listing.
func WithMaxPages(n int) Option {
	return func(c *Client) {
		if n > 0 {
			c.maxPages = n
		}
	}
}

// NewClient creates a client. apiURL is a template holding one %s for the site name.
func NewClient(logger *slog.Logger, apiURL string, timeout time.Duration, opts ...Option) *Client {
	if apiURL == "" {
		apiURL = DefaultAPIURL
	}
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	c := &Client{
		apiURL:   apiURL,
		maxPages: defaultMaxPages,
		http:     &http.Client{Timeout: timeout},
		logger:   logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// APIURL returns the endpoint used for site.
func (c *Client) APIURL(site string) string {
	return fmt.Sprintf(c.apiURL, site)
}

type allPagesResponse struct {
	Error    *APIError      `json:"error"`
	Continue map[string]any `json:"continue"`
	Query    struct {
		AllPages []struct {
			PageID int    `json:"pageid"`
			NS     int    `json:"ns"`
			Title  string `json:"title"`
		} `json:"allpages"`
	} `json:"query"`
}

// AllPages returns the titles of every non-redirect page in the main namespace,
// following continuation tokens until the API stops sending one.
func (c *Client) AllPages(ctx context.Context, site string) ([]string, error) {
	endpoint := c.APIURL(site)
	params := url.Values{
		"action":        {"query"},
		"list":          {"allpages"},
		"aplimit":       {"max"},
		"format":        {"json"},
		"redirects":     {"1"},
		"apfilterredir": {"nonredirects"},
	}

	var titles []string
	seen := make(map[string]struct{})
	for page := 1; ; page++ {
		if page > c.maxPages {
			return nil, fmt.Errorf("%w (%d requests to %s)", ErrTooManyPages, c.maxPages, endpoint)
		}

		resp, err := c.fetch(ctx, endpoint, params)
		if err != nil {
			return nil, err
		}
		if resp.Error != nil {
			return nil, resp.Error
		}
		for _, p := range resp.Query.AllPages {
			titles = append(titles, p.Title)
		}

		if len(resp.Continue) == 0 {
			c.logger.Debug("Fetched page listing",
				slog.String("site", site),
				slog.Int("requests", page),
				slog.Int("titles", len(titles)))
			return titles, nil
		}

		token := continuationKey(resp.Continue)
		if _, dup := seen[token]; dup {
			return nil, fmt.Errorf("%w: %s", ErrPaginationLoop, token)
		}
		seen[token] = struct{}{}
		for k, v := range resp.Continue {
			params.Set(k, fmt.Sprint(v))
		}
	}
}

func (c *Client) fetch(ctx context.Context, endpoint string, params url.Values) (*allPagesResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("mediawiki: creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("mediawiki: request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &StatusError{URL: endpoint, StatusCode: resp.StatusCode}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, fmt.Errorf("mediawiki: reading response: %w", err)
	}

	var out allPagesResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("mediawiki: parsing response from %s: %w", endpoint, err)
	}
	return &out, nil
}

func continuationKey(cont map[string]any) string {
	keys := make([]string, 0, len(cont))
	for k := range cont {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = fmt.Sprintf("%s=%v", k, cont[k])
	}
	return strings.Join(parts, "&")
}
