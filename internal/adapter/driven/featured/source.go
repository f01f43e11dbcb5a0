// Package featured fetches the curated featured-apps list over HTTP.
package featured

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/ericfisherdev/appdepo/internal/domain/model"
	"github.com/ericfisherdev/appdepo/internal/domain/port/driven"
)

// DefaultURL is the published featured list.
const DefaultURL = "https://raw.githubusercontent.com/eltonkola/AppRepo/main/tv_featured_apps.json"

// maxListSize bounds how much of the response body is decoded.
const maxListSize = 1 << 20

// Compile-time interface satisfaction check.
var _ driven.FeaturedSource = (*Source)(nil)

// Source implements driven.FeaturedSource against a JSON document URL.
type Source struct {
	client *http.Client
	url    string
}

// NewSource creates a Source. A nil client gets a 30 second timeout default.
func NewSource(client *http.Client, url string) *Source {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	if url == "" {
		url = DefaultURL
	}
	return &Source{client: client, url: url}
}

// FetchFeatured downloads and decodes the featured list.
func (s *Source) FetchFeatured(ctx context.Context) ([]model.FeaturedApp, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return nil, fmt.Errorf("creating featured request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching featured apps: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetching featured apps: %w", &driven.APIError{
			StatusCode: resp.StatusCode,
			Message:    http.StatusText(resp.StatusCode),
		})
	}

	var apps []model.FeaturedApp
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxListSize)).Decode(&apps); err != nil {
		return nil, fmt.Errorf("decoding featured apps: %w", err)
	}

	if apps == nil {
		apps = []model.FeaturedApp{}
	}

	return apps, nil
}
