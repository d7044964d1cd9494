// Package linestate resolves train positions to stations and holds the
// per-line occupancy, dwell and terminal bookkeeping between polls.
package linestate

import (
	"math/bits"

	"github.com/LArkema/dctransistor-project/internal/topology"
)

// NoMatch is returned when a reading does not resolve to any station. It is
// the normal result for a train between stations.
const NoMatch = -1

// TerminalLookahead is how many circuits past a terminal's own circuit a
// reading still counts as arriving there.
const TerminalLookahead = 4

// DwellCycles is the dwell counter value at which a held terminal bit is
// released. A confirmation sets the counter to 1, so the bit survives three
// silent cycles after the confirming one.
const DwellCycles = 4

// Phase is the lifecycle state of one direction of a line.
type Phase int

const (
	Empty Phase = iota
	Occupied
	TerminalHeld
)

func (p Phase) String() string {
	switch p {
	case Occupied:
		return "occupied"
	case TerminalHeld:
		return "terminal_held"
	default:
		return "empty"
	}
}

// State is the mutable record for one line. Occupancy and the train count are
// per cycle; dwell counters and terminal-awaited flags persist across cycles.
// A State is not safe for concurrent use.
type State struct {
	stations  int
	occupancy [2]uint64
	dwell     [2]int
	awaited   [2]bool
	confirmed [2]bool
	trains    int
}

// NewState returns an empty state sized for line.
func NewState(line *topology.Line) *State {
	return &State{stations: line.Stations()}
}

func (s *State) terminal() int {
	return s.stations - 1
}

func (s *State) terminalBit() uint64 {
	return uint64(1) << uint(s.terminal())
}

// mark records a resolved reading at station i in direction d.
func (s *State) mark(d topology.Direction, i int) {
	s.occupancy[d] |= uint64(1) << uint(i)
	switch i {
	case s.terminal():
		s.dwell[d] = 1
		s.awaited[d] = false
		s.confirmed[d] = true
	case s.terminal() - 1:
		s.awaited[d] = true
	}
	s.trains++
}

// BeginCycle clears occupancy and the train count. Terminal bits still under
// dwell are kept; dwell counters and awaited flags are untouched.
func (s *State) BeginCycle() {
	for _, d := range topology.Directions {
		var keep uint64
		if s.dwell[d] > 0 {
			keep = s.occupancy[d] & s.terminalBit()
		}
		s.occupancy[d] = keep
		s.confirmed[d] = false
	}
	s.trains = 0
}

// EndCycle advances the dwell counter of every held terminal that was not
// confirmed during the cycle and releases it once the counter reaches
// DwellCycles.
func (s *State) EndCycle() {
	for _, d := range topology.Directions {
		if s.dwell[d] == 0 || s.confirmed[d] {
			continue
		}
		s.dwell[d]++
		if s.dwell[d] >= DwellCycles {
			s.occupancy[d] &^= s.terminalBit()
			s.dwell[d] = 0
		}
	}
}

// Occupancy is the raw bitset for direction d; bit i is station i in d's
// travel order.
func (s *State) Occupancy(d topology.Direction) uint64 {
	return s.occupancy[d]
}

// Occupied reports whether station i (directional index) is occupied.
func (s *State) Occupied(d topology.Direction, i int) bool {
	if i < 0 || i >= s.stations {
		return false
	}
	return s.occupancy[d]&(uint64(1)<<uint(i)) != 0
}

// Stations lists the occupied directional station indexes in ascending order.
func (s *State) Stations(d topology.Direction) []int {
	out := make([]int, 0, bits.OnesCount64(s.occupancy[d]))
	for v := s.occupancy[d]; v != 0; v &= v - 1 {
		out = append(out, bits.TrailingZeros64(v))
	}
	return out
}

func (s *State) Dwell(d topology.Direction) int {
	return s.dwell[d]
}

func (s *State) TerminalAwaited(d topology.Direction) bool {
	return s.awaited[d]
}

// Trains is the number of readings resolved since the last BeginCycle.
func (s *State) Trains() int {
	return s.trains
}

func (s *State) Phase(d topology.Direction) Phase {
	switch {
	case s.dwell[d] > 0 && s.occupancy[d]&s.terminalBit() != 0:
		return TerminalHeld
	case s.occupancy[d] != 0:
		return Occupied
	default:
		return Empty
	}
}
