// Package board aggregates every line's state onto the shared indicator
// array.
package board

import (
	"errors"
	"fmt"
	"strings"

	"github.com/LArkema/dctransistor-project/internal/linestate"
	"github.com/LArkema/dctransistor-project/internal/topology"
)

var (
	ErrIndicatorOutOfRange = errors.New("indicator index out of range")
	ErrUnknownLine         = errors.New("unknown line")
)

// Reading is one telemetry tuple. A non-empty TrackCode selects the
// station-code path; otherwise Circuit is resolved numerically.
type Reading struct {
	Line      string
	Direction topology.Direction
	Circuit   int
	TrackCode string
}

type entry struct {
	line  *topology.Line
	state *linestate.State
}

// Board owns one state per line. It is not safe for concurrent use; callers
// share it through Snapshot.
type Board struct {
	indicators int
	entries    []entry
	cycle      uint64
}

// New builds a board with empty state for every line of network.
func New(network *topology.Network) *Board {
	b := &Board{indicators: network.Indicators}
	for _, l := range network.Lines {
		b.entries = append(b.entries, entry{line: l, state: linestate.NewState(l)})
	}
	return b
}

func (b *Board) find(key string) (entry, bool) {
	for _, e := range b.entries {
		if strings.EqualFold(e.line.ID(), key) || strings.EqualFold(e.line.Name(), key) {
			return e, true
		}
	}
	return entry{}, false
}

// Indicators is the size of the indicator array.
func (b *Board) Indicators() int {
	return b.indicators
}

// Cycle counts BeginCycle calls since the board was built.
func (b *Board) Cycle() uint64 {
	return b.cycle
}

// Lines returns the lines in configuration order.
func (b *Board) Lines() []*topology.Line {
	out := make([]*topology.Line, len(b.entries))
	for i, e := range b.entries {
		out[i] = e.line
	}
	return out
}

// Update resolves a numeric circuit reading. Unknown lines are a no-match.
func (b *Board) Update(line string, d topology.Direction, circuit int) int {
	e, ok := b.find(line)
	if !ok || !d.Valid() {
		return linestate.NoMatch
	}
	return linestate.Resolve(e.line, e.state, d, circuit)
}

// UpdateCode resolves a structured track code reading.
func (b *Board) UpdateCode(line string, d topology.Direction, trackCode string) int {
	e, ok := b.find(line)
	if !ok || !d.Valid() {
		return linestate.NoMatch
	}
	return linestate.ResolveCode(e.line, e.state, d, trackCode)
}

// Apply feeds readings in order and returns how many resolved to a station.
func (b *Board) Apply(readings []Reading) int {
	resolved := 0
	for _, r := range readings {
		var idx int
		if r.TrackCode != "" {
			idx = b.UpdateCode(r.Line, r.Direction, r.TrackCode)
		} else {
			idx = b.Update(r.Line, r.Direction, r.Circuit)
		}
		if idx != linestate.NoMatch {
			resolved++
		}
	}
	return resolved
}

// BeginCycle clears occupancy and train counts on every line. Dwell counters
// survive.
func (b *Board) BeginCycle() {
	b.cycle++
	for _, e := range b.entries {
		e.state.BeginCycle()
	}
}

// EndCycle ticks dwell counters on every line.
func (b *Board) EndCycle() {
	for _, e := range b.entries {
		e.state.EndCycle()
	}
}

// RunCycle runs one complete polling cycle over readings and returns how many
// resolved. An empty batch still advances dwell expiry.
func (b *Board) RunCycle(readings []Reading) int {
	b.BeginCycle()
	resolved := b.Apply(readings)
	b.EndCycle()
	return resolved
}

// IsOccupied reports whether any line, in either direction, has a train at a
// station drawn on indicator index.
func (b *Board) IsOccupied(index int) (bool, error) {
	if index < 0 || index >= b.indicators {
		return false, fmt.Errorf("%w: %d not in [0, %d)", ErrIndicatorOutOfRange, index, b.indicators)
	}
	for _, e := range b.entries {
		if occupiedAt(e, index) {
			return true, nil
		}
	}
	return false, nil
}

func occupiedAt(e entry, index int) bool {
	for _, d := range topology.Directions {
		for i := 0; i < e.line.Stations(); i++ {
			if e.line.Indicator(d, i) == index && e.state.Occupied(d, i) {
				return true
			}
		}
	}
	return false
}

// TrainCount is the number of readings resolved on line this cycle.
func (b *Board) TrainCount(line string) (int, error) {
	e, ok := b.find(line)
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrUnknownLine, line)
	}
	return e.state.Trains(), nil
}

func (b *Board) Color(line string) (topology.RGB, error) {
	e, ok := b.find(line)
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrUnknownLine, line)
	}
	return e.line.Color(), nil
}
