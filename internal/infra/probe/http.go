package probe

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"
)

// HTTPProber checks an HTTP microservice health endpoint. Any 2xx response
// counts as healthy; everything else, including transport errors, is a
// failure.
type HTTPProber struct {
	name       string
	url        string
	httpClient *http.Client
}

// NewHTTPProber creates a prober for a health endpoint URL.
func NewHTTPProber(name, url string) *HTTPProber {
	return &HTTPProber{
		name: name,
		url:  url,
		httpClient: &http.Client{
			Transport: &http.Transport{
				MaxIdleConns:        10,
				MaxIdleConnsPerHost: 2,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
}

func (p *HTTPProber) Name() string { return p.name }

func (p *HTTPProber) Probe(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.url, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("health request: %w", err)
	}
	defer resp.Body.Close()

	// Drain so the connection can be reused
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return nil
}
