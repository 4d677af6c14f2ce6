package probe

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// ClickHouseProber checks the columnar store through its HTTP interface.
// ClickHouse answers "Ok." on /ping when it can serve queries.
type ClickHouseProber struct {
	name       string
	pingURL    string
	httpClient *http.Client
}

// NewClickHouseProber creates a prober against the HTTP interface base URL
// (e.g. http://clickhouse:8123).
func NewClickHouseProber(name, baseURL string) *ClickHouseProber {
	return &ClickHouseProber{
		name:       name,
		pingURL:    strings.TrimRight(baseURL, "/") + "/ping",
		httpClient: &http.Client{},
	}
}

func (p *ClickHouseProber) Name() string { return p.name }

func (p *ClickHouseProber) Probe(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.pingURL, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("ping request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 64))
	if err != nil {
		return fmt.Errorf("read ping response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	if strings.TrimSpace(string(body)) != "Ok." {
		return fmt.Errorf("unexpected ping response: %q", string(body))
	}
	return nil
}
