package scraper

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"
)

const (
	ShowsURL  = "https://comedymothership.com/shows"
	UserAgent = "mothership-events/1.0 (github.com/pfrederiksen/mothership-events)"
	Timeout   = 30 * time.Second

	// maxPageSize bounds the body read from the venue site
	maxPageSize = 16 << 20
)

// Fetcher downloads the shows page
type Fetcher struct {
	client *http.Client
	url    string
}

// New creates a Fetcher for url; an empty url means ShowsURL
func New(url string) *Fetcher {
	if url == "" {
		url = ShowsURL
	}
	return &Fetcher{
		client: &http.Client{
			Timeout: Timeout,
		},
		url: url,
	}
}

// URL returns the page the fetcher downloads
func (f *Fetcher) URL() string {
	return f.url
}

// Fetch downloads the page body
func (f *Fetcher) Fetch(ctx context.Context) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.url, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", UserAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching page: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxPageSize))
	if err != nil {
		return nil, fmt.Errorf("reading page: %w", err)
	}
	return body, nil
}
