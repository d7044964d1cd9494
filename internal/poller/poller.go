// Package poller runs the polling cycle: fetch a batch of readings, run it
// through the board, then publish and record the result.
package poller

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/LArkema/dctransistor-project/internal/board"
	"github.com/LArkema/dctransistor-project/internal/db"
	"github.com/LArkema/dctransistor-project/internal/metrics"
	"github.com/LArkema/dctransistor-project/internal/telemetry"
	"github.com/LArkema/dctransistor-project/internal/topology"
)

// Recorder stores the audit trail of each cycle.
type Recorder interface {
	RecordCycle(ctx context.Context, rec db.CycleRecord) (string, error)
}

// Publisher receives every completed cycle, e.g. to stream it to clients.
type Publisher interface {
	Publish(status Status)
}

// Status is the outcome of one cycle.
type Status struct {
	Board            board.Snapshot `json:"board"`
	PolledAt         time.Time      `json:"polledAt"`
	ReadingsReceived int            `json:"readingsReceived"`
	ReadingsResolved int            `json:"readingsResolved"`
	FetchError       string         `json:"fetchError,omitempty"`
}

// Options wires optional collaborators. Nil fields are skipped.
type Options struct {
	Recorder  Recorder
	Learner   *metrics.BaselineLearner
	Publisher Publisher
}

// Poller owns the board. Poll is serialized; Latest may be called from any
// goroutine.
type Poller struct {
	board  *board.Board
	source telemetry.Source
	opts   Options
	now    func() time.Time

	pollMu sync.Mutex

	mu     sync.RWMutex
	latest *Status
}

func New(b *board.Board, source telemetry.Source, opts Options) *Poller {
	return &Poller{board: b, source: source, opts: opts, now: time.Now}
}

// Poll runs one cycle. A fetch failure is logged and the cycle runs with
// zero readings, so held terminals still age. The returned error only
// reports a failure to record the cycle.
func (p *Poller) Poll(ctx context.Context) error {
	p.pollMu.Lock()
	defer p.pollMu.Unlock()

	polledAt := p.now().UTC()

	readings, err := p.source.Fetch(ctx)
	fetchErr := ""
	if err != nil {
		log.Printf("Poller: fetch failed (continuing with zero readings): %v", err)
		readings = nil
		fetchErr = err.Error()
	}

	resolved := p.board.RunCycle(readings)
	status := Status{
		Board:            p.board.Snapshot(),
		PolledAt:         polledAt,
		ReadingsReceived: len(readings),
		ReadingsResolved: resolved,
		FetchError:       fetchErr,
	}

	p.mu.Lock()
	p.latest = &status
	p.mu.Unlock()

	log.Printf("Poller: cycle %d resolved %d of %d readings", status.Board.Cycle, resolved, len(readings))

	if p.opts.Publisher != nil {
		p.opts.Publisher.Publish(status)
	}

	if p.opts.Learner != nil && fetchErr == "" {
		counts := make(map[string]int, len(status.Board.Lines))
		for _, l := range status.Board.Lines {
			counts[l.ID] = l.Trains
		}
		p.opts.Learner.Observe(ctx, counts)
	}

	if p.opts.Recorder != nil {
		if _, err := p.opts.Recorder.RecordCycle(ctx, cycleRecord(status)); err != nil {
			return fmt.Errorf("failed to record cycle %d: %w", status.Board.Cycle, err)
		}
	}
	return nil
}

// Latest returns the most recent cycle, if any has completed.
func (p *Poller) Latest() (Status, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.latest == nil {
		return Status{}, false
	}
	return *p.latest, true
}

// Lines returns the board's line topologies.
func (p *Poller) Lines() []*topology.Line {
	return p.board.Lines()
}

func cycleRecord(s Status) db.CycleRecord {
	rec := db.CycleRecord{
		CycleNumber:      s.Board.Cycle,
		PolledAt:         s.PolledAt,
		ReadingsReceived: s.ReadingsReceived,
		ReadingsResolved: s.ReadingsResolved,
		FetchError:       s.FetchError,
		Lines:            make([]db.LineRecord, 0, len(s.Board.Lines)),
	}
	for _, l := range s.Board.Lines {
		rec.Lines = append(rec.Lines, db.LineRecord{
			LineID:           l.ID,
			Trains:           l.Trains,
			ForwardOccupancy: l.Forward.Occupancy,
			ReverseOccupancy: l.Reverse.Occupancy,
			ForwardDwell:     l.Forward.Dwell,
			ReverseDwell:     l.Reverse.Dwell,
		})
	}
	return rec
}
