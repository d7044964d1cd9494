// Package telemetry fetches train positions from WMATA feeds and turns them
// into board readings.
package telemetry

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/LArkema/dctransistor-project/internal/board"
	"github.com/LArkema/dctransistor-project/internal/topology"
)

// Source produces one batch of readings per call. Readings keep feed order.
type Source interface {
	Fetch(ctx context.Context) ([]board.Reading, error)
}

// DefaultTimeout bounds a single feed request.
const DefaultTimeout = 15 * time.Second

func newHTTPClient() *http.Client {
	return &http.Client{Timeout: DefaultTimeout}
}

// get performs a GET and returns the body of a 200 response.
func get(ctx context.Context, client *http.Client, url string, header http.Header) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch feed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("feed returned status %d: %s", resp.StatusCode, string(body))
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	return body, nil
}

// wmataDirection maps WMATA's direction numbers (1, 2) onto travel
// directions.
func wmataDirection(n int) (topology.Direction, bool) {
	switch n {
	case 1:
		return topology.Forward, true
	case 2:
		return topology.Reverse, true
	}
	return 0, false
}
