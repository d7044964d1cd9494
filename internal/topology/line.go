package topology

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// MaxStations is the largest station count a line may have; occupancy for a
// direction is held in a single uint64.
const MaxStations = 64

// ApproachCircuits is how many circuits before a station's own circuit a train
// already counts as being at that station.
const ApproachCircuits = 2

// ErrInvalidLine is wrapped by every topology construction error.
var ErrInvalidLine = errors.New("invalid line topology")

// Direction of travel along a line. Forward trains generally see increasing
// circuit numbers, reverse trains decreasing ones.
type Direction int

const (
	Forward Direction = 0
	Reverse Direction = 1
)

// Directions lists both directions in index order.
var Directions = [2]Direction{Forward, Reverse}

// Coefficient returns +1 for Forward and -1 for Reverse. Multiplying circuit
// IDs by it makes travel order increasing in both directions.
func (d Direction) Coefficient() int {
	if d == Reverse {
		return -1
	}
	return 1
}

// Opposite returns the other direction.
func (d Direction) Opposite() Direction {
	return 1 - d
}

func (d Direction) Valid() bool {
	return d == Forward || d == Reverse
}

func (d Direction) String() string {
	switch d {
	case Forward:
		return "forward"
	case Reverse:
		return "reverse"
	default:
		return "Direction(" + strconv.Itoa(int(d)) + ")"
	}
}

// ParseDirection accepts "forward"/"reverse" as well as "0"/"1".
func ParseDirection(s string) (Direction, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "forward", "fwd", "0":
		return Forward, nil
	case "reverse", "rev", "1":
		return Reverse, nil
	}
	return 0, fmt.Errorf("unknown direction %q", s)
}

// RGB is a packed 0xRRGGBB colour.
type RGB uint32

// ParseRGB parses "#RRGGBB", "0xRRGGBB" or "RRGGBB". A leading white byte
// (0x00RRGGBB) is accepted and ignored.
func ParseRGB(s string) (RGB, error) {
	h := strings.TrimSpace(s)
	h = strings.TrimPrefix(h, "#")
	h = strings.TrimPrefix(strings.TrimPrefix(h, "0x"), "0X")
	if h == "" || len(h) > 8 {
		return 0, fmt.Errorf("invalid colour %q", s)
	}
	v, err := strconv.ParseUint(h, 16, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid colour %q: %w", s, err)
	}
	return RGB(v & 0xFFFFFF), nil
}

func (c RGB) String() string {
	return fmt.Sprintf("#%06X", uint32(c))
}

// LineConfig carries the static description of one line. Per-direction lists
// are ordered in the direction of travel, so Circuits[Forward][0] and
// Circuits[Reverse][Stations-1] are the same physical station.
type LineConfig struct {
	ID       string
	Name     string
	Color    RGB
	Stations int

	Circuits       [2][]int
	Indicators     [2][]int
	TerminalTracks [2]int

	// Codes are station codes in forward order. Optional; without them the
	// line can only be resolved from numeric circuits.
	Codes []string

	Exceptions  ExceptionTable
	Jumps       JumpTable
	Carveouts   []Carveout
	SkipWindows []int
}

// Line is the immutable topology of a single line. It is safe to share
// between any number of readers.
type Line struct {
	id       string
	name     string
	color    RGB
	stations int

	circuits       [2][]int
	indicators     [2][]int
	terminalTracks [2]int
	codes          []string

	exceptions  ExceptionTable
	jumps       JumpTable
	carveouts   []Carveout
	skipWindows map[int]struct{}
}

// NewLine validates cfg and builds a Line. Every list must hold exactly
// cfg.Stations entries.
func NewLine(cfg LineConfig) (*Line, error) {
	if cfg.ID == "" {
		return nil, fmt.Errorf("%w: missing line id", ErrInvalidLine)
	}
	if cfg.Stations < 2 || cfg.Stations > MaxStations {
		return nil, fmt.Errorf("%w: line %s: station count %d outside [2, %d]", ErrInvalidLine, cfg.ID, cfg.Stations, MaxStations)
	}

	l := &Line{
		id:             cfg.ID,
		name:           cfg.Name,
		color:          cfg.Color,
		stations:       cfg.Stations,
		terminalTracks: cfg.TerminalTracks,
		skipWindows:    make(map[int]struct{}, len(cfg.SkipWindows)),
	}
	if l.name == "" {
		l.name = cfg.ID
	}

	for _, d := range Directions {
		if n := len(cfg.Circuits[d]); n != cfg.Stations {
			return nil, fmt.Errorf("%w: line %s: %s circuit list has %d entries, want %d", ErrInvalidLine, cfg.ID, d, n, cfg.Stations)
		}
		if n := len(cfg.Indicators[d]); n != cfg.Stations {
			return nil, fmt.Errorf("%w: line %s: %s indicator list has %d entries, want %d", ErrInvalidLine, cfg.ID, d, n, cfg.Stations)
		}
		for i, ind := range cfg.Indicators[d] {
			if ind < 0 {
				return nil, fmt.Errorf("%w: line %s: %s indicator %d is negative", ErrInvalidLine, cfg.ID, d, i)
			}
		}
		if cfg.TerminalTracks[d] < 0 {
			return nil, fmt.Errorf("%w: line %s: negative %s terminal track", ErrInvalidLine, cfg.ID, d)
		}
		l.circuits[d] = append([]int(nil), cfg.Circuits[d]...)
		l.indicators[d] = append([]int(nil), cfg.Indicators[d]...)
	}

	if len(cfg.Codes) > 0 {
		if len(cfg.Codes) != cfg.Stations {
			return nil, fmt.Errorf("%w: line %s: code list has %d entries, want %d", ErrInvalidLine, cfg.ID, len(cfg.Codes), cfg.Stations)
		}
		l.codes = append([]string(nil), cfg.Codes...)
	}

	for code, idx := range cfg.Exceptions {
		if idx < 0 || idx >= cfg.Stations {
			return nil, fmt.Errorf("%w: line %s: exception %s maps to station %d", ErrInvalidLine, cfg.ID, code, idx)
		}
	}
	l.exceptions = cfg.Exceptions.clone()

	if err := cfg.Jumps.validate(); err != nil {
		return nil, fmt.Errorf("%w: line %s: %v", ErrInvalidLine, cfg.ID, err)
	}
	l.jumps = cfg.Jumps.clone()

	for _, c := range cfg.Carveouts {
		if err := c.validate(cfg.Stations); err != nil {
			return nil, fmt.Errorf("%w: line %s: %v", ErrInvalidLine, cfg.ID, err)
		}
		l.carveouts = append(l.carveouts, c.clone())
	}

	for _, c := range cfg.SkipWindows {
		l.skipWindows[c] = struct{}{}
	}

	return l, nil
}

func (l *Line) ID() string       { return l.id }
func (l *Line) Name() string     { return l.name }
func (l *Line) Color() RGB       { return l.color }
func (l *Line) Stations() int    { return l.stations }
func (l *Line) HasCodes() bool   { return len(l.codes) > 0 }
func (l *Line) Jumps() JumpTable { return l.jumps }

// Terminal is the index of the last station in a direction's list.
func (l *Line) Terminal() int {
	return l.stations - 1
}

// Penultimate is the index of the second-to-last station.
func (l *Line) Penultimate() int {
	return l.stations - 2
}

func (l *Line) Circuit(d Direction, i int) int {
	return l.circuits[d][i]
}

// Circuits returns a copy of a direction's ordered circuit list.
func (l *Line) Circuits(d Direction) []int {
	return append([]int(nil), l.circuits[d]...)
}

// TerminalCircuit is the circuit of the last station in direction d.
func (l *Line) TerminalCircuit(d Direction) int {
	return l.circuits[d][l.stations-1]
}

// OppositeFirstCircuit is the first circuit of the other direction, i.e. the
// track a train reaching d's terminal reports once it turns around.
func (l *Line) OppositeFirstCircuit(d Direction) int {
	return l.circuits[d.Opposite()][0]
}

func (l *Line) Indicator(d Direction, i int) int {
	return l.indicators[d][i]
}

func (l *Line) Indicators(d Direction) []int {
	return append([]int(nil), l.indicators[d]...)
}

// TerminalTrack is the sub-segment threshold at and past which a train at
// d's terminal is parked. Zero disables the check.
func (l *Line) TerminalTrack(d Direction) int {
	return l.terminalTracks[d]
}

// StationForCode returns the forward index of a station code.
func (l *Line) StationForCode(code string) (int, bool) {
	for i, c := range l.codes {
		if c == code {
			return i, true
		}
	}
	return 0, false
}

// Exception looks code up in the line's exception table.
func (l *Line) Exception(code string) (int, bool) {
	return l.exceptions.Lookup(code)
}

// Carveout returns the station a line-specific carve-out pins circuit to.
func (l *Line) Carveout(d Direction, circuit int) (int, bool) {
	for _, c := range l.carveouts {
		if c.Direction == d && c.Contains(circuit) {
			return c.Station, true
		}
	}
	return 0, false
}

// SkipsWindow reports whether the window starting at a station with this
// circuit is excluded from the generic walk.
func (l *Line) SkipsWindow(circuit int) bool {
	_, ok := l.skipWindows[circuit]
	return ok
}

// ToForward converts a directional station index to its forward index. The
// mapping is its own inverse.
func (l *Line) ToForward(d Direction, i int) int {
	if d == Reverse {
		return l.stations - 1 - i
	}
	return i
}
