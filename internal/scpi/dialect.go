package scpi

import (
	"fmt"
	"sort"
	"strings"
)

// Dialect is the command set for one instrument family. The bridge selects
// a dialect by name at configuration time; there is no runtime negotiation.
type Dialect struct {
	Name      string
	Identify  string   // identify query, e.g. "*IDN?"
	Keywords  []string // case-sensitive substrings expected in the identify reply
	RateSet   string   // command selecting the fast sampling mode
	RateQuery string   // query verifying the sampling mode
	RateWant  string   // exact trimmed reply proving the mode took
	Setup     []string // best-effort configuration sent after a verified bring-up
}

// DefaultDialect is used when the configuration names none.
const DefaultDialect = "owon-xdm"

var dialects = map[string]Dialect{
	"owon-xdm": {
		Name:      "owon-xdm",
		Identify:  "*IDN?",
		Keywords:  []string{"OWON", "XDM"},
		RateSet:   "RATE F",
		RateQuery: "RATE?",
		RateWant:  "F",
		Setup:     []string{"SYST:REM", "AUTO ON", "DUAL OFF", "*CLS"},
	},
	"keysight-34460a": {
		Name:      "keysight-34460a",
		Identify:  "*IDN?",
		Keywords:  []string{"Keysight", "Agilent"},
		RateSet:   "TRIG:SOUR IMM",
		RateQuery: "TRIG:SOUR?",
		RateWant:  "IMM",
		Setup:     []string{"DISP:TEXT:CLE", "SENS:VOLT:DC:NPLC 0.02", "TRIG:COUN INF"},
	},
	"rigol-dm3068": {
		Name:      "rigol-dm3068",
		Identify:  "*IDN?",
		Keywords:  []string{"Rigol", "DM3068"},
		RateSet:   "TRIG:SOUR IMM",
		RateQuery: "TRIG:SOUR?",
		RateWant:  "IMM",
		Setup:     []string{"RATE:VOLT:DC FAST", "RATE:CURR:DC FAST"},
	},
	"fluke-8845a": {
		Name:      "fluke-8845a",
		Identify:  "*IDN?",
		Keywords:  []string{"FLUKE", "884"},
		RateSet:   "TRIG:SOUR IMM",
		RateQuery: "TRIG:SOUR?",
		RateWant:  "IMM",
		Setup:     []string{"TRIG:COUN INF", "ZERO:AUTO OFF"},
	},
}

// Lookup returns the dialect registered under name.
func Lookup(name string) (Dialect, error) {
	d, ok := dialects[name]
	if !ok {
		return Dialect{}, fmt.Errorf("unknown dialect %q (known: %s)", name, strings.Join(Names(), ", "))
	}
	return d, nil
}

// Names lists the known dialect names, sorted.
func Names() []string {
	names := make([]string, 0, len(dialects))
	for n := range dialects {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
