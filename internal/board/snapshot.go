package board

import (
	"fmt"
	"strings"

	"github.com/LArkema/dctransistor-project/internal/topology"
)

// Snapshot is a copy of the board taken between cycles. Nothing in it aliases
// live state, so it can be handed to renderers and HTTP handlers freely.
type Snapshot struct {
	Cycle      uint64         `json:"cycle"`
	Indicators []bool         `json:"indicators"`
	Lines      []LineSnapshot `json:"lines"`
}

// LineSnapshot is one line's state at snapshot time.
type LineSnapshot struct {
	ID      string            `json:"id"`
	Name    string            `json:"name"`
	Color   string            `json:"color"`
	Trains  int               `json:"trains"`
	Forward DirectionSnapshot `json:"forward"`
	Reverse DirectionSnapshot `json:"reverse"`
}

// DirectionSnapshot is one direction of a line. Stations are directional
// indexes; Indicators are the board positions they light.
type DirectionSnapshot struct {
	Occupancy       uint64 `json:"occupancy"`
	Stations        []int  `json:"stations"`
	Indicators      []int  `json:"indicators"`
	Dwell           int    `json:"dwell"`
	TerminalAwaited bool   `json:"terminalAwaited"`
	Phase           string `json:"phase"`
}

// Snapshot copies the current state of every line and indicator.
func (b *Board) Snapshot() Snapshot {
	s := Snapshot{
		Cycle:      b.cycle,
		Indicators: make([]bool, b.indicators),
		Lines:      make([]LineSnapshot, 0, len(b.entries)),
	}

	for _, e := range b.entries {
		ls := LineSnapshot{
			ID:     e.line.ID(),
			Name:   e.line.Name(),
			Color:  e.line.Color().String(),
			Trains: e.state.Trains(),
		}
		for _, d := range topology.Directions {
			ds := DirectionSnapshot{
				Occupancy:       e.state.Occupancy(d),
				Stations:        e.state.Stations(d),
				Indicators:      []int{},
				Dwell:           e.state.Dwell(d),
				TerminalAwaited: e.state.TerminalAwaited(d),
				Phase:           e.state.Phase(d).String(),
			}
			for _, i := range ds.Stations {
				ind := e.line.Indicator(d, i)
				ds.Indicators = append(ds.Indicators, ind)
				if ind < len(s.Indicators) {
					s.Indicators[ind] = true
				}
			}
			if d == topology.Forward {
				ls.Forward = ds
			} else {
				ls.Reverse = ds
			}
		}
		s.Lines = append(s.Lines, ls)
	}

	return s
}

// Line finds a line in the snapshot by id or name.
func (s Snapshot) Line(key string) (LineSnapshot, bool) {
	for _, l := range s.Lines {
		if strings.EqualFold(l.ID, key) || strings.EqualFold(l.Name, key) {
			return l, true
		}
	}
	return LineSnapshot{}, false
}

// Occupied lists the lit indicator indexes.
func (s Snapshot) Occupied() []int {
	out := []int{}
	for i, on := range s.Indicators {
		if on {
			out = append(out, i)
		}
	}
	return out
}

// IsOccupied reports the indicator's state at snapshot time.
func (s Snapshot) IsOccupied(index int) (bool, error) {
	if index < 0 || index >= len(s.Indicators) {
		return false, fmt.Errorf("%w: %d not in [0, %d)", ErrIndicatorOutOfRange, index, len(s.Indicators))
	}
	return s.Indicators[index], nil
}

// LinesAt lists the ids of lines with a train drawn on indicator index.
func (s Snapshot) LinesAt(index int) []string {
	out := []string{}
	for _, l := range s.Lines {
		if containsInt(l.Forward.Indicators, index) || containsInt(l.Reverse.Indicators, index) {
			out = append(out, l.ID)
		}
	}
	return out
}

func containsInt(values []int, v int) bool {
	for _, x := range values {
		if x == v {
			return true
		}
	}
	return false
}
