// Command resolve places readings on a line offline and prints the station
// each one resolves to.
//
//	resolve -line RD -dir forward -circuit 494
//	resolve -line RD -dir reverse -code A01-A2-132
//	resolve -line RD -dir forward -circuit 630,651
//
// Readings given together run in a single cycle, in order, so later readings
// see the terminal-awaited flag raised by earlier ones.
package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/LArkema/dctransistor-project/internal/board"
	"github.com/LArkema/dctransistor-project/internal/linestate"
	"github.com/LArkema/dctransistor-project/internal/topology"
)

func main() {
	if err := run(os.Args[1:], os.Stdout); err != nil {
		log.Fatal(err)
	}
}

func run(args []string, out io.Writer) error {
	fs := flag.NewFlagSet("resolve", flag.ContinueOnError)
	networkPath := fs.String("network", "", "Network YAML file (default: embedded WMATA network)")
	lineKey := fs.String("line", "", "Line id or name, e.g. RD or Red")
	dirName := fs.String("dir", "forward", "Direction: forward or reverse")
	circuits := fs.String("circuit", "", "Comma-separated circuit ids")
	codes := fs.String("code", "", "Comma-separated track codes, e.g. A01-A2-132")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if *lineKey == "" {
		return errors.New("-line is required")
	}
	if (*circuits == "") == (*codes == "") {
		return errors.New("exactly one of -circuit or -code is required")
	}

	d, err := topology.ParseDirection(*dirName)
	if err != nil {
		return err
	}
	network, err := topology.LoadNetwork(*networkPath)
	if err != nil {
		return err
	}
	line, ok := network.Lookup(*lineKey)
	if !ok {
		return fmt.Errorf("%w: %s", board.ErrUnknownLine, *lineKey)
	}

	var readings []board.Reading
	for _, field := range splitList(*circuits) {
		c, err := strconv.Atoi(field)
		if err != nil {
			return fmt.Errorf("bad circuit %q: %w", field, err)
		}
		readings = append(readings, board.Reading{Line: line.ID(), Direction: d, Circuit: c})
	}
	for _, field := range splitList(*codes) {
		readings = append(readings, board.Reading{Line: line.ID(), Direction: d, TrackCode: field})
	}

	b := board.New(network)
	b.BeginCycle()
	for _, r := range readings {
		label := r.TrackCode
		var i int
		if label != "" {
			i = b.UpdateCode(r.Line, r.Direction, r.TrackCode)
		} else {
			label = strconv.Itoa(r.Circuit)
			i = b.Update(r.Line, r.Direction, r.Circuit)
		}

		if i == linestate.NoMatch {
			fmt.Fprintf(out, "%s %s %s: no match\n", line.ID(), d, label)
			continue
		}
		fmt.Fprintf(out, "%s %s %s: station %d (indicator %d)\n", line.ID(), d, label, i, line.Indicator(d, i))
	}
	b.EndCycle()

	occupied := b.Snapshot().Occupied()
	fmt.Fprintf(out, "occupied indicators: %v\n", occupied)
	return nil
}

func splitList(s string) []string {
	var out []string
	for _, f := range strings.Split(s, ",") {
		if f = strings.TrimSpace(f); f != "" {
			out = append(out, f)
		}
	}
	return out
}
