package topology

import (
	"fmt"
)

// ExceptionTable maps telemetry station codes that match no entry of a
// line's code list (pocket tracks, crossovers, shared junctions) to a
// forward station index.
type ExceptionTable map[string]int

// Lookup is an exact-match lookup on code.
func (t ExceptionTable) Lookup(code string) (int, bool) {
	idx, ok := t[code]
	return idx, ok
}

func (t ExceptionTable) clone() ExceptionTable {
	out := make(ExceptionTable, len(t))
	for k, v := range t {
		out[k] = v
	}
	return out
}

// Side says which station of a jump boundary a circuit belongs to.
type Side int

const (
	Departure Side = iota
	Arrival
)

// JumpDescriptor describes one station boundary where circuit numbering
// breaks the expected monotonic order. All four values are raw circuit IDs
// listed in travel order.
type JumpDescriptor struct {
	BeforeDeparture int // ApproachCircuits before the departure station's circuit
	LastBeforeJump  int
	FirstAfterJump  int
	BeforeArrival   int // ApproachCircuits before the arrival station's circuit
}

// DepartureCircuit is the circuit of the station the descriptor departs from.
func (j JumpDescriptor) DepartureCircuit(d Direction) int {
	return j.BeforeDeparture + d.Coefficient()*ApproachCircuits
}

// Locate reports which side of the jump circuit lies on. The pre-jump run
// [BeforeDeparture, LastBeforeJump] belongs to the departure station and the
// post-jump run [FirstAfterJump, BeforeArrival) to the arrival station, both
// after direction normalisation.
func (j JumpDescriptor) Locate(d Direction, circuit int) (Side, bool) {
	cf := d.Coefficient()
	c := circuit * cf
	if c >= j.BeforeDeparture*cf && c <= j.LastBeforeJump*cf {
		return Departure, true
	}
	if c >= j.FirstAfterJump*cf && c < j.BeforeArrival*cf {
		return Arrival, true
	}
	return 0, false
}

// JumpTable holds a line's jump descriptors per direction.
type JumpTable [2][]JumpDescriptor

// Match finds the descriptor departing from departureCircuit in direction d
// and locates circuit against it.
func (t JumpTable) Match(d Direction, departureCircuit, circuit int) (Side, bool) {
	for _, j := range t[d] {
		if j.DepartureCircuit(d) != departureCircuit {
			continue
		}
		if side, ok := j.Locate(d, circuit); ok {
			return side, true
		}
	}
	return 0, false
}

func (t JumpTable) validate() error {
	for _, d := range Directions {
		cf := d.Coefficient()
		for _, j := range t[d] {
			if j.BeforeDeparture*cf > j.LastBeforeJump*cf {
				return fmt.Errorf("%s jump %v: pre-jump run is reversed", d, j)
			}
			if j.FirstAfterJump*cf > j.BeforeArrival*cf {
				return fmt.Errorf("%s jump %v: post-jump run is reversed", d, j)
			}
		}
	}
	return nil
}

func (t JumpTable) clone() JumpTable {
	var out JumpTable
	for _, d := range Directions {
		out[d] = append([]JumpDescriptor(nil), t[d]...)
	}
	return out
}

// CircuitRange is an inclusive range of circuit IDs.
type CircuitRange struct {
	Lo, Hi int
}

func (r CircuitRange) Contains(circuit int) bool {
	return circuit >= r.Lo && circuit <= r.Hi
}

// Carveout pins fixed circuit ranges to one station. Used for bridge and
// junction segments whose numbering the generic walk cannot place.
type Carveout struct {
	Direction Direction
	Station   int
	Ranges    []CircuitRange
}

func (c Carveout) Contains(circuit int) bool {
	for _, r := range c.Ranges {
		if r.Contains(circuit) {
			return true
		}
	}
	return false
}

func (c Carveout) validate(stations int) error {
	if !c.Direction.Valid() {
		return fmt.Errorf("carve-out has invalid direction %d", c.Direction)
	}
	if c.Station < 0 || c.Station >= stations {
		return fmt.Errorf("carve-out station %d out of range", c.Station)
	}
	for _, r := range c.Ranges {
		if r.Lo > r.Hi {
			return fmt.Errorf("carve-out range [%d, %d] is empty", r.Lo, r.Hi)
		}
	}
	return nil
}

func (c Carveout) clone() Carveout {
	c.Ranges = append([]CircuitRange(nil), c.Ranges...)
	return c
}
