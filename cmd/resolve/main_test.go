package main

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/LArkema/dctransistor-project/internal/board"
)

func TestRun(t *testing.T) {
	tests := []struct {
		name     string
		args     []string
		expected string
	}{
		{
			name: "terminal arrival in one cycle",
			args: []string{"-line", "RD", "-dir", "forward", "-circuit", "630,651"},
			expected: "RD forward 630: station 25 (indicator 25)\n" +
				"RD forward 651: station 26 (indicator 26)\n" +
				"occupied indicators: [25 26]\n",
		},
		{
			name: "track code in reverse",
			args: []string{"-line", "red", "-dir", "reverse", "-code", "A01-A2-132"},
			expected: "RD reverse A01-A2-132: station 12 (indicator 14)\n" +
				"occupied indicators: [14]\n",
		},
		{
			name: "no match",
			args: []string{"-line", "RD", "-circuit", "5000"},
			expected: "RD forward 5000: no match\n" +
				"occupied indicators: []\n",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var out bytes.Buffer
			if err := run(tc.args, &out); err != nil {
				t.Fatalf("run failed: %v", err)
			}
			if out.String() != tc.expected {
				t.Errorf("output:\n%s\nexpected:\n%s", out.String(), tc.expected)
			}
		})
	}
}

func TestRun_Errors(t *testing.T) {
	tests := []struct {
		name string
		args []string
		msg  string
	}{
		{"missing line", []string{"-circuit", "1"}, "-line is required"},
		{"no readings", []string{"-line", "RD"}, "exactly one of"},
		{"both kinds", []string{"-line", "RD", "-circuit", "1", "-code", "A01"}, "exactly one of"},
		{"bad direction", []string{"-line", "RD", "-dir", "up", "-circuit", "1"}, "unknown direction"},
		{"bad circuit", []string{"-line", "RD", "-circuit", "abc"}, "bad circuit"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := run(tc.args, &bytes.Buffer{})
			if err == nil || !strings.Contains(err.Error(), tc.msg) {
				t.Errorf("error = %v, expected to contain %q", err, tc.msg)
			}
		})
	}

	err := run([]string{"-line", "Purple", "-circuit", "1"}, &bytes.Buffer{})
	if !errors.Is(err, board.ErrUnknownLine) {
		t.Errorf("unknown line error = %v", err)
	}
}
