package api

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/LArkema/dctransistor-project/internal/board"
	"github.com/LArkema/dctransistor-project/internal/db"
	"github.com/LArkema/dctransistor-project/internal/metrics"
	"github.com/LArkema/dctransistor-project/internal/poller"
	"github.com/LArkema/dctransistor-project/internal/topology"
)

type fakeStatus struct {
	status *poller.Status
	lines  []*topology.Line
}

func (f *fakeStatus) Latest() (poller.Status, bool) {
	if f.status == nil {
		return poller.Status{}, false
	}
	return *f.status, true
}

func (f *fakeStatus) Lines() []*topology.Line { return f.lines }

type fakeStore struct {
	pingErr  error
	cycles   []db.CycleRecord
	limit    int
	baseline *metrics.TrainBaseline
	slot     [2]int
}

func (f *fakeStore) Ping(ctx context.Context) error { return f.pingErr }

func (f *fakeStore) RecentCycles(ctx context.Context, limit int) ([]db.CycleRecord, error) {
	f.limit = limit
	return f.cycles, nil
}

func (f *fakeStore) GetBaseline(ctx context.Context, lineID string, hour, dayOfWeek int) (*metrics.TrainBaseline, error) {
	f.slot = [2]int{hour, dayOfWeek}
	return f.baseline, nil
}

func testLine(t *testing.T) *topology.Line {
	t.Helper()
	line, err := topology.NewLine(topology.LineConfig{
		ID:         "A",
		Name:       "Amber",
		Color:      0xFFBF00,
		Stations:   3,
		Circuits:   [2][]int{{10, 20, 30}, {35, 25, 15}},
		Indicators: [2][]int{{0, 1, 2}, {2, 1, 0}},
	})
	if err != nil {
		t.Fatal(err)
	}
	return line
}

// polled runs one cycle on a fresh board and returns the provider.
func polled(t *testing.T, readings []board.Reading) *fakeStatus {
	t.Helper()
	line := testLine(t)
	b := board.New(&topology.Network{Indicators: 3, Lines: []*topology.Line{line}})
	resolved := b.RunCycle(readings)
	return &fakeStatus{
		lines: []*topology.Line{line},
		status: &poller.Status{
			Board:            b.Snapshot(),
			PolledAt:         time.Date(2026, 3, 4, 17, 30, 0, 0, time.UTC),
			ReadingsReceived: len(readings),
			ReadingsResolved: resolved,
		},
	}
}

func newTestServer(t *testing.T, status *fakeStatus, store *fakeStore) *httptest.Server {
	t.Helper()
	h := NewHandler(status, store)
	h.now = func() time.Time { return time.Date(2026, 3, 4, 17, 45, 0, 0, time.UTC) }
	srv := httptest.NewServer(NewRouter(h, nil, []string{"*"}))
	t.Cleanup(srv.Close)
	return srv
}

func getJSON(t *testing.T, url string, out interface{}) int {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("GET %s failed: %v", url, err)
	}
	defer resp.Body.Close()
	if ct := resp.Header.Get("Content-Type"); ct != "application/json" {
		t.Errorf("GET %s Content-Type = %q", url, ct)
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("GET %s: decode failed: %v", url, err)
		}
	}
	return resp.StatusCode
}

func TestHealth(t *testing.T) {
	status := polled(t, nil)

	var body map[string]interface{}
	srv := newTestServer(t, status, &fakeStore{})
	if code := getJSON(t, srv.URL+"/health", &body); code != http.StatusOK {
		t.Errorf("status = %d, expected 200", code)
	}
	if body["status"] != "ok" || body["database"] != "connected" {
		t.Errorf("body = %v", body)
	}
	if body["lastCycle"] != float64(1) {
		t.Errorf("lastCycle = %v", body["lastCycle"])
	}

	srv = newTestServer(t, status, &fakeStore{pingErr: errors.New("db gone")})
	body = nil
	if code := getJSON(t, srv.URL+"/health", &body); code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, expected 503", code)
	}
	if body["error"] != "db gone" {
		t.Errorf("error = %v", body["error"])
	}
}

func TestGetBoard(t *testing.T) {
	srv := newTestServer(t, &fakeStatus{lines: []*topology.Line{testLine(t)}}, &fakeStore{})
	var errResp ErrorResponse
	if code := getJSON(t, srv.URL+"/api/board", &errResp); code != http.StatusServiceUnavailable {
		t.Errorf("status before first cycle = %d, expected 503", code)
	}

	srv = newTestServer(t, polled(t, []board.Reading{
		{Line: "A", Direction: topology.Forward, Circuit: 19},
		{Line: "A", Direction: topology.Forward, Circuit: 2},
	}), &fakeStore{})

	var got poller.Status
	if code := getJSON(t, srv.URL+"/api/board", &got); code != http.StatusOK {
		t.Fatalf("status = %d", code)
	}
	if got.ReadingsReceived != 2 || got.ReadingsResolved != 1 {
		t.Errorf("readings = %d/%d", got.ReadingsResolved, got.ReadingsReceived)
	}
	if diff := cmp.Diff([]bool{false, true, false}, got.Board.Indicators); diff != "" {
		t.Errorf("indicators mismatch (-want +got):\n%s", diff)
	}
}

func TestGetIndicator(t *testing.T) {
	srv := newTestServer(t, polled(t, []board.Reading{
		{Line: "A", Direction: topology.Reverse, Circuit: 26},
	}), &fakeStore{})

	tests := []struct {
		name     string
		path     string
		code     int
		expected IndicatorResponse
	}{
		{"lit", "/api/indicators/1", http.StatusOK, IndicatorResponse{Index: 1, Occupied: true, Lines: []string{"A"}, Cycle: 1}},
		{"dark", "/api/indicators/2", http.StatusOK, IndicatorResponse{Index: 2, Lines: []string{}, Cycle: 1}},
		{"out of range", "/api/indicators/3", http.StatusNotFound, IndicatorResponse{}},
		{"negative", "/api/indicators/-1", http.StatusNotFound, IndicatorResponse{}},
		{"not a number", "/api/indicators/x", http.StatusBadRequest, IndicatorResponse{}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if tc.code != http.StatusOK {
				var errResp ErrorResponse
				if code := getJSON(t, srv.URL+tc.path, &errResp); code != tc.code {
					t.Errorf("status = %d, expected %d", code, tc.code)
				}
				if errResp.Error == "" {
					t.Error("error message missing")
				}
				return
			}
			var got IndicatorResponse
			if code := getJSON(t, srv.URL+tc.path, &got); code != tc.code {
				t.Fatalf("status = %d, expected %d", code, tc.code)
			}
			if diff := cmp.Diff(tc.expected, got); diff != "" {
				t.Errorf("response mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestGetLines(t *testing.T) {
	srv := newTestServer(t, &fakeStatus{lines: []*topology.Line{testLine(t)}}, &fakeStore{})

	var got LinesResponse
	if code := getJSON(t, srv.URL+"/api/lines", &got); code != http.StatusOK {
		t.Fatalf("status = %d", code)
	}
	expected := LinesResponse{
		Lines: []LineSummary{{ID: "A", Name: "Amber", Color: "#FFBF00", Stations: 3}},
		Count: 1,
	}
	if diff := cmp.Diff(expected, got); diff != "" {
		t.Errorf("response mismatch (-want +got):\n%s", diff)
	}
}

func TestGetLine(t *testing.T) {
	store := &fakeStore{baseline: &metrics.TrainBaseline{LineID: "A", HourOfDay: 17, DayOfWeek: 3, TrainsMean: 1.5, SampleCount: 12}}
	srv := newTestServer(t, polled(t, []board.Reading{
		{Line: "A", Direction: topology.Forward, Circuit: 19},
	}), store)

	var got LineDetailResponse
	if code := getJSON(t, srv.URL+"/api/lines/amber", &got); code != http.StatusOK {
		t.Fatalf("status = %d", code)
	}
	if got.ID != "A" || got.Trains != 1 || got.Stations != 3 {
		t.Errorf("line = %+v", got)
	}
	if diff := cmp.Diff([]int{1}, got.Forward.Stations); diff != "" {
		t.Errorf("forward stations mismatch (-want +got):\n%s", diff)
	}
	if got.Baseline == nil || got.Baseline.TrainsMean != 1.5 {
		t.Errorf("baseline = %+v", got.Baseline)
	}
	// 2026-03-04 is a Wednesday.
	if store.slot != [2]int{17, 3} {
		t.Errorf("baseline slot = %v, expected [17 3]", store.slot)
	}

	var errResp ErrorResponse
	if code := getJSON(t, srv.URL+"/api/lines/ZZ", &errResp); code != http.StatusNotFound {
		t.Errorf("unknown line status = %d, expected 404", code)
	}
	if errResp.Details["lineId"] != "ZZ" {
		t.Errorf("details = %v", errResp.Details)
	}
}

func TestGetCycles(t *testing.T) {
	store := &fakeStore{cycles: []db.CycleRecord{{CycleID: "c2", CycleNumber: 2}, {CycleID: "c1", CycleNumber: 1}}}
	srv := newTestServer(t, polled(t, nil), store)

	var got CyclesResponse
	if code := getJSON(t, srv.URL+"/api/cycles", &got); code != http.StatusOK {
		t.Fatalf("status = %d", code)
	}
	if got.Count != 2 || store.limit != defaultCycleLimit {
		t.Errorf("count = %d, limit = %d", got.Count, store.limit)
	}

	getJSON(t, srv.URL+"/api/cycles?limit=100000", &got)
	if store.limit != maxCycleLimit {
		t.Errorf("limit = %d, expected cap %d", store.limit, maxCycleLimit)
	}

	for _, bad := range []string{"0", "-4", "ten"} {
		var errResp ErrorResponse
		if code := getJSON(t, srv.URL+"/api/cycles?limit="+bad, &errResp); code != http.StatusBadRequest {
			t.Errorf("limit=%s status = %d, expected 400", bad, code)
		}
	}
}

func TestStream(t *testing.T) {
	stream := NewStream()
	defer stream.Close()

	srv := httptest.NewServer(NewRouter(NewHandler(&fakeStatus{}, &fakeStore{}), stream, []string{"*"}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	// Publish until the subscriber sees an event; subscription is asynchronous.
	done := make(chan struct{})
	defer close(done)
	go func() {
		ticker := time.NewTicker(20 * time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				stream.Publish(poller.Status{Board: board.Snapshot{Cycle: 7}})
			case <-done:
				return
			}
		}
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/api/stream", nil)
	if err != nil {
		t.Fatal(err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}

	scanner := bufio.NewScanner(resp.Body)
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "data:") {
			continue
		}
		var got poller.Status
		if err := json.Unmarshal([]byte(strings.TrimSpace(strings.TrimPrefix(line, "data:"))), &got); err != nil {
			t.Fatalf("bad event payload %q: %v", line, err)
		}
		if got.Board.Cycle != 7 {
			t.Errorf("event cycle = %d, expected 7", got.Board.Cycle)
		}
		return
	}
	t.Fatalf("stream ended without an event: %v", scanner.Err())
}
