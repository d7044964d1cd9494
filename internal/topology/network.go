package topology

import (
	_ "embed"
	"fmt"
	"os"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// defaultNetworkYAML describes the six WMATA lines and the 104-indicator
// board they are drawn on.
//
//go:embed wmata.yaml
var defaultNetworkYAML []byte

// Network is the full set of lines drawn on one indicator board.
type Network struct {
	Indicators int
	Lines      []*Line
}

// Lookup finds a line by id or by name, ignoring case.
func (n *Network) Lookup(key string) (*Line, bool) {
	for _, l := range n.Lines {
		if strings.EqualFold(l.ID(), key) || strings.EqualFold(l.Name(), key) {
			return l, true
		}
	}
	return nil, false
}

// NetworkFile is the YAML layout of a network file.
type NetworkFile struct {
	Indicators int        `yaml:"indicators" validate:"gt=0"`
	Lines      []LineFile `yaml:"lines" validate:"required,min=1,dive"`
}

// LineFile is the YAML layout of a single line.
type LineFile struct {
	ID       string `yaml:"id" validate:"required"`
	Name     string `yaml:"name"`
	Color    string `yaml:"color" validate:"required"`
	Stations int    `yaml:"stations" validate:"gte=2,lte=64"`

	Circuits       DirectionalInts `yaml:"circuits"`
	Indicators     DirectionalInts `yaml:"indicators"`
	TerminalTracks struct {
		Forward int `yaml:"forward" validate:"gte=0"`
		Reverse int `yaml:"reverse" validate:"gte=0"`
	} `yaml:"terminal_tracks"`

	Codes      []string       `yaml:"codes" validate:"omitempty,dive,required"`
	Exceptions map[string]int `yaml:"exceptions"`
	Jumps      struct {
		Forward [][4]int `yaml:"forward"`
		Reverse [][4]int `yaml:"reverse"`
	} `yaml:"jumps"`
	Carveouts   []CarveoutFile `yaml:"carveouts" validate:"dive"`
	SkipWindows []int          `yaml:"skip_windows"`
}

// DirectionalInts is a pair of per-direction lists.
type DirectionalInts struct {
	Forward []int `yaml:"forward" validate:"required"`
	Reverse []int `yaml:"reverse"`
}

// CarveoutFile is the YAML layout of a carve-out.
type CarveoutFile struct {
	Direction string   `yaml:"direction" validate:"required,oneof=forward reverse"`
	Station   int      `yaml:"station" validate:"gte=0"`
	Ranges    [][2]int `yaml:"ranges" validate:"required,min=1"`
}

// LoadNetwork reads a network file. An empty path loads the embedded WMATA
// network.
func LoadNetwork(path string) (*Network, error) {
	data := defaultNetworkYAML
	if path != "" {
		var err error
		data, err = os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read network file: %w", err)
		}
	}
	return ParseNetwork(data)
}

// ParseNetwork decodes, validates and builds a network from YAML.
func ParseNetwork(data []byte) (*Network, error) {
	var f NetworkFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse network file: %w", err)
	}

	v := validator.New()
	if err := v.Struct(f); err != nil {
		return nil, fmt.Errorf("invalid network file: %w", err)
	}

	network := &Network{Indicators: f.Indicators}
	seen := make(map[string]bool, len(f.Lines))
	for _, lf := range f.Lines {
		if seen[strings.ToUpper(lf.ID)] {
			return nil, fmt.Errorf("%w: duplicate line id %s", ErrInvalidLine, lf.ID)
		}
		seen[strings.ToUpper(lf.ID)] = true

		cfg, err := lf.config()
		if err != nil {
			return nil, err
		}
		line, err := NewLine(cfg)
		if err != nil {
			return nil, err
		}
		for _, d := range Directions {
			for i, ind := range line.indicators[d] {
				if ind >= network.Indicators {
					return nil, fmt.Errorf("%w: line %s: %s station %d uses indicator %d, board has %d", ErrInvalidLine, line.ID(), d, i, ind, network.Indicators)
				}
			}
		}
		network.Lines = append(network.Lines, line)
	}

	return network, nil
}

func (lf LineFile) config() (LineConfig, error) {
	color, err := ParseRGB(lf.Color)
	if err != nil {
		return LineConfig{}, fmt.Errorf("%w: line %s: %v", ErrInvalidLine, lf.ID, err)
	}

	cfg := LineConfig{
		ID:             lf.ID,
		Name:           lf.Name,
		Color:          color,
		Stations:       lf.Stations,
		Circuits:       [2][]int{lf.Circuits.Forward, lf.Circuits.Reverse},
		Indicators:     [2][]int{lf.Indicators.Forward, lf.Indicators.Reverse},
		TerminalTracks: [2]int{lf.TerminalTracks.Forward, lf.TerminalTracks.Reverse},
		Codes:          lf.Codes,
		Exceptions:     ExceptionTable(lf.Exceptions),
		SkipWindows:    lf.SkipWindows,
	}

	// Both lists name the same physical stations, so an omitted reverse
	// indicator list is the forward one mirrored.
	if len(cfg.Indicators[Reverse]) == 0 {
		fwd := cfg.Indicators[Forward]
		rev := make([]int, len(fwd))
		for i, ind := range fwd {
			rev[len(fwd)-1-i] = ind
		}
		cfg.Indicators[Reverse] = rev
	}

	for _, j := range lf.Jumps.Forward {
		cfg.Jumps[Forward] = append(cfg.Jumps[Forward], descriptor(j))
	}
	for _, j := range lf.Jumps.Reverse {
		cfg.Jumps[Reverse] = append(cfg.Jumps[Reverse], descriptor(j))
	}

	for _, cf := range lf.Carveouts {
		d, err := ParseDirection(cf.Direction)
		if err != nil {
			return LineConfig{}, fmt.Errorf("%w: line %s: %v", ErrInvalidLine, lf.ID, err)
		}
		c := Carveout{Direction: d, Station: cf.Station}
		for _, r := range cf.Ranges {
			c.Ranges = append(c.Ranges, CircuitRange{Lo: r[0], Hi: r[1]})
		}
		cfg.Carveouts = append(cfg.Carveouts, c)
	}

	return cfg, nil
}

func descriptor(v [4]int) JumpDescriptor {
	return JumpDescriptor{
		BeforeDeparture: v[0],
		LastBeforeJump:  v[1],
		FirstAfterJump:  v[2],
		BeforeArrival:   v[3],
	}
}
