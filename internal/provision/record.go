// Package provision captures broker settings on an unconfigured box: a
// small setup portal writes them to a record file the bridge reads on the
// next start, and a captive DNS responder steers browsers to the portal.
package provision

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Record is the broker configuration the portal persists. On disk it is a
// single line: broker;port;username;password.
type Record struct {
	Broker   string
	Port     int
	Username string
	Password string
}

// Load reads the record file. A missing file is not an error; it yields a
// zero Record so callers fall back to their own defaults.
func Load(path string) (Record, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Record{}, nil
		}
		return Record{}, fmt.Errorf("read record %s: %w", path, err)
	}

	line, _, _ := strings.Cut(string(raw), "\n")
	fields := strings.Split(line, ";")
	for len(fields) < 4 {
		fields = append(fields, "")
	}

	rec := Record{
		Broker:   strings.TrimSpace(fields[0]),
		Username: fields[2],
		Password: fields[3],
	}
	if portText := strings.TrimSpace(fields[1]); portText != "" {
		port, err := strconv.Atoi(portText)
		if err != nil {
			return Record{}, fmt.Errorf("record port %q: %w", portText, err)
		}
		rec.Port = port
	}
	return rec, nil
}

// Save writes the record in the single-line format Load reads.
func Save(path string, rec Record) error {
	line := fmt.Sprintf("%s;%d;%s;%s\n", rec.Broker, rec.Port, rec.Username, rec.Password)
	if err := os.WriteFile(path, []byte(line), 0o600); err != nil {
		return fmt.Errorf("write record %s: %w", path, err)
	}
	return nil
}
