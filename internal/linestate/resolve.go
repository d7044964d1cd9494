package linestate

import (
	"strconv"
	"strings"

	"github.com/LArkema/dctransistor-project/internal/topology"
)

// Resolve places a numeric circuit reading on line in direction d and records
// it in st. It returns the directional station index, or NoMatch without
// touching st.
//
// Checks run in order: terminal re-confirmation, the line's carve-outs, then
// the station walk, which consults the jump table wherever two consecutive
// stations are numbered against the direction of travel.
func Resolve(line *topology.Line, st *State, d topology.Direction, circuit int) int {
	cf := d.Coefficient()
	id := circuit * cf
	terminal := line.Terminal()
	terminalStart := line.TerminalCircuit(d)*cf - topology.ApproachCircuits
	terminalEnd := line.TerminalCircuit(d)*cf + TerminalLookahead

	if st.awaited[d] && (circuit == line.OppositeFirstCircuit(d) || (id >= terminalStart && id < terminalEnd)) {
		st.mark(d, terminal)
		return terminal
	}

	if i, ok := line.Carveout(d, circuit); ok {
		st.mark(d, i)
		return i
	}

	jumps := line.Jumps()
	for i := 0; i < terminal; i++ {
		here := line.Circuit(d, i)
		next := line.Circuit(d, i+1)

		lo := here*cf - topology.ApproachCircuits
		hi := next*cf - topology.ApproachCircuits
		if i == terminal-1 {
			// Readings around the terminal belong to the penultimate station
			// until the terminal-awaited flag lets them confirm an arrival.
			hi = terminalEnd
		}
		if id >= lo && id < hi && !line.SkipsWindow(here) {
			st.mark(d, i)
			return i
		}

		if here*cf > next*cf {
			if side, ok := jumps.Match(d, here, circuit); ok {
				idx := i
				if side == topology.Arrival {
					idx = i + 1
				}
				st.mark(d, idx)
				return idx
			}
		}
	}

	return NoMatch
}

// ParseTrackCode splits a structured track identifier such as "A01-A2-132"
// into its station code and the numeric sub-segment in the third field.
// track is -1 when the field is missing or not a number.
func ParseTrackCode(s string) (code string, track int) {
	parts := strings.Split(strings.TrimSpace(s), "-")
	code = parts[0]
	track = -1
	if len(parts) >= 3 {
		if n, err := strconv.Atoi(parts[2]); err == nil {
			track = n
		}
	}
	return code, track
}

// ResolveCode places a structured track code on line in direction d. The
// exception table is consulted before the line's own station codes. A
// station-code match at the direction's terminal whose sub-segment is at or
// past the terminal threshold is a parked train and returns NoMatch.
func ResolveCode(line *topology.Line, st *State, d topology.Direction, trackCode string) int {
	code, track := ParseTrackCode(trackCode)
	if code == "" {
		return NoMatch
	}

	if f, ok := line.Exception(code); ok {
		i := line.ToForward(d, f)
		st.mark(d, i)
		return i
	}

	f, ok := line.StationForCode(code)
	if !ok {
		return NoMatch
	}
	i := line.ToForward(d, f)
	if i == line.Terminal() {
		if limit := line.TerminalTrack(d); limit > 0 && track >= limit {
			return NoMatch
		}
	}
	st.mark(d, i)
	return i
}
