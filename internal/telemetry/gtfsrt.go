package telemetry

import (
	"context"
	"fmt"
	"net/http"
	"regexp"

	"github.com/MobilityData/gtfs-realtime-bindings/golang/gtfs"
	"google.golang.org/protobuf/proto"

	"github.com/LArkema/dctransistor-project/internal/board"
	"github.com/LArkema/dctransistor-project/internal/topology"
)

// stationCodeRegex finds a WMATA station code inside a GTFS stop id
// (e.g. "PF_A01_C" -> "A01").
var stationCodeRegex = regexp.MustCompile(`[A-N]\d{2}`)

// GTFSRTClient reads vehicle positions from a GTFS-Realtime feed. Each
// vehicle's stop id is reduced to a station code and resolved on the
// station-code path.
type GTFSRTClient struct {
	url    string
	apiKey string
	client *http.Client
}

func NewGTFSRTClient(url, apiKey string) *GTFSRTClient {
	return &GTFSRTClient{url: url, apiKey: apiKey, client: newHTTPClient()}
}

func (c *GTFSRTClient) Fetch(ctx context.Context) ([]board.Reading, error) {
	var header http.Header
	if c.apiKey != "" {
		header = http.Header{}
		header.Set("api_key", c.apiKey)
	}

	body, err := get(ctx, c.client, c.url, header)
	if err != nil {
		return nil, err
	}

	feed := &gtfs.FeedMessage{}
	if err := proto.Unmarshal(body, feed); err != nil {
		return nil, fmt.Errorf("failed to parse protobuf: %w", err)
	}

	var readings []board.Reading
	for _, entity := range feed.GetEntity() {
		vehicle := entity.GetVehicle()
		if vehicle == nil {
			continue
		}
		trip := vehicle.GetTrip()
		if trip.GetRouteId() == "" || trip.DirectionId == nil {
			continue
		}
		code := stationCode(vehicle.GetStopId())
		if code == "" {
			continue
		}

		d := topology.Forward
		if trip.GetDirectionId() == 1 {
			d = topology.Reverse
		}
		readings = append(readings, board.Reading{
			Line:      trip.GetRouteId(),
			Direction: d,
			TrackCode: code,
		})
	}
	return readings, nil
}

func stationCode(stopID string) string {
	return stationCodeRegex.FindString(stopID)
}
