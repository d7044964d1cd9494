package telemetry

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/LArkema/dctransistor-project/internal/board"
)

// DefaultGISURL is the public WMATA train location feature service, filtered
// to revenue trains.
const DefaultGISURL = "https://gisservices.wmata.com/gisservices/rest/services/Public/TRAIN_LOC_WMS_PUB/MapServer/0/query?f=json&where=TRACKLINE%3C%3E%20%27Non-revenue%27%20and%20TRACKLINE%20is%20not%20null&returnGeometry=false&outFields=*"

// GISClient reads structured track codes ("A01-A2-132") from the WMATA
// train location feature service.
type GISClient struct {
	url    string
	client *http.Client
}

func NewGISClient(url string) *GISClient {
	if url == "" {
		url = DefaultGISURL
	}
	return &GISClient{url: url, client: newHTTPClient()}
}

// flexInt accepts a JSON number or a numeric string.
type flexInt int

func (f *flexInt) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	if s == "" || s == "null" {
		*f = 0
		return nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return fmt.Errorf("not a number: %s", b)
	}
	*f = flexInt(n)
	return nil
}

type gisResponse struct {
	Features []struct {
		Attributes struct {
			ITT           string  `json:"ITT"`
			TrackLine     *string `json:"TRACKLINE"`
			TripDirection flexInt `json:"TRIP_DIRECTION"`
			TrackID       *string `json:"TRKID"`
		} `json:"attributes"`
	} `json:"features"`
	Error *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// Fetch returns one reading per feature that names a line, a direction and a
// track id. TRACKLINE holds the line name ("Red"), which the board resolves
// like a line id.
func (c *GISClient) Fetch(ctx context.Context) ([]board.Reading, error) {
	body, err := get(ctx, c.client, c.url, nil)
	if err != nil {
		return nil, err
	}

	var data gisResponse
	if err := json.Unmarshal(body, &data); err != nil {
		return nil, fmt.Errorf("failed to decode train locations: %w", err)
	}
	// The feature service reports errors in a 200 body.
	if data.Error != nil {
		return nil, fmt.Errorf("feature service error %d: %s", data.Error.Code, data.Error.Message)
	}

	readings := make([]board.Reading, 0, len(data.Features))
	for _, f := range data.Features {
		a := f.Attributes
		if a.TrackLine == nil || a.TrackID == nil || *a.TrackID == "" {
			continue
		}
		d, ok := wmataDirection(int(a.TripDirection))
		if !ok {
			continue
		}
		readings = append(readings, board.Reading{
			Line:      *a.TrackLine,
			Direction: d,
			TrackCode: *a.TrackID,
		})
	}
	return readings, nil
}
