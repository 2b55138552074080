// Package scpi classifies instrument commands and carries the static
// per-vendor command dialects the bridge can be configured with.
package scpi

import "strings"

// Kind is the command class that drives suppression and empty-response
// accounting in the command path.
type Kind int

const (
	// Other neither reads a value nor switches the measurement function.
	Other Kind = iota
	// Query reads a value from the instrument (trimmed text ends with '?').
	Query
	// ModeSwitch changes the measurement function or range, invalidating
	// the next pending reading.
	ModeSwitch
)

// modeSwitchPrefixes are the command families that change what the
// instrument measures.
var modeSwitchPrefixes = [...]string{"FUNC", "CONF", "SENS"}

// Classify returns the Kind of one raw command line. The trailing '?' test
// wins over the prefix test: FUNC1? reads the current function rather than
// changing it.
func Classify(text string) Kind {
	c := strings.TrimSpace(text)
	if strings.HasSuffix(c, "?") {
		return Query
	}
	upper := strings.ToUpper(c)
	for _, p := range modeSwitchPrefixes {
		if strings.HasPrefix(upper, p) {
			return ModeSwitch
		}
	}
	return Other
}

func (k Kind) String() string {
	switch k {
	case Query:
		return "query"
	case ModeSwitch:
		return "mode-switch"
	default:
		return "other"
	}
}
