package backend

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"media-balancer/core/models"
)

// SystemStatsPath is the capability/health endpoint exposed by every backend
const SystemStatsPath = "/system_stats"

// Client talks to backend inference servers
type Client struct {
	httpClient *http.Client
}

// NewClient creates a backend client whose requests never outlive timeout
func NewClient(timeout time.Duration) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
	}
}

// Probe fetches the capability report of the server at baseURL
func (c *Client) Probe(ctx context.Context, baseURL string) (*models.Capabilities, error) {
	endpoint := strings.TrimRight(baseURL, "/") + SystemStatsPath

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("build probe request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("probe %s: %w", endpoint, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, resp.Body)
		return nil, fmt.Errorf("probe %s: unexpected status %d", endpoint, resp.StatusCode)
	}

	var caps models.Capabilities
	if err := json.NewDecoder(resp.Body).Decode(&caps); err != nil {
		return nil, fmt.Errorf("decode system stats: %w", err)
	}

	if caps.Models == nil {
		caps.Models = []string{}
	}
	if caps.Loras == nil {
		caps.Loras = []string{}
	}
	if caps.ControlNets == nil {
		caps.ControlNets = []string{}
	}
	return &caps, nil
}
