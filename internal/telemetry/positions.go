package telemetry

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/LArkema/dctransistor-project/internal/board"
)

// DefaultPositionsURL is WMATA's live train positions endpoint.
const DefaultPositionsURL = "https://api.wmata.com/TrainPositions/TrainPositions?contentType=json"

// PositionsClient reads numeric track circuits from the WMATA train
// positions API.
type PositionsClient struct {
	url    string
	apiKey string
	client *http.Client
}

func NewPositionsClient(url, apiKey string) *PositionsClient {
	if url == "" {
		url = DefaultPositionsURL
	}
	return &PositionsClient{url: url, apiKey: apiKey, client: newHTTPClient()}
}

type trainPositionsResponse struct {
	TrainPositions []struct {
		TrainID      string  `json:"TrainId"`
		CircuitID    int     `json:"CircuitId"`
		DirectionNum int     `json:"DirectionNum"`
		LineCode     *string `json:"LineCode"`
		ServiceType  string  `json:"ServiceType"`
	} `json:"TrainPositions"`
}

// Fetch returns one reading per revenue train. Trains without a line code
// (yard moves, specials) are skipped.
func (c *PositionsClient) Fetch(ctx context.Context) ([]board.Reading, error) {
	header := http.Header{}
	header.Set("api_key", c.apiKey)

	body, err := get(ctx, c.client, c.url, header)
	if err != nil {
		return nil, err
	}

	var data trainPositionsResponse
	if err := json.Unmarshal(body, &data); err != nil {
		return nil, fmt.Errorf("failed to decode train positions: %w", err)
	}

	readings := make([]board.Reading, 0, len(data.TrainPositions))
	for _, p := range data.TrainPositions {
		if p.LineCode == nil || *p.LineCode == "" {
			continue
		}
		d, ok := wmataDirection(p.DirectionNum)
		if !ok {
			continue
		}
		readings = append(readings, board.Reading{
			Line:      *p.LineCode,
			Direction: d,
			Circuit:   p.CircuitID,
		})
	}
	return readings, nil
}
