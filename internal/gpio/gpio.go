// Package gpio drives sysfs GPIO lines: the status LED and the optional
// RX-sense pin for the idle-line check.
package gpio

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// Direction of a line, as written to the sysfs direction file.
type Direction string

const (
	In  Direction = "in"
	Out Direction = "out"
)

// Root is the sysfs GPIO tree. Tests point it at a scratch directory.
var Root = "/sys/class/gpio"

// Line is one exported GPIO pin with its value file held open.
type Line struct {
	num  int
	file *os.File
}

// Open exports the pin if needed, sets its direction and opens the value
// file for reading and writing.
func Open(num int, dir Direction) (*Line, error) {
	if err := export(num); err != nil {
		return nil, err
	}
	if err := setDirection(num, dir); err != nil {
		return nil, err
	}
	f, err := os.OpenFile(valuePath(num), os.O_RDWR, 0)
	if err != nil {
		return nil, fmt.Errorf("open gpio %d value: %w", num, err)
	}
	return &Line{num: num, file: f}, nil
}

// Value reads the line's current logic level (0 or 1).
func (l *Line) Value() (int, error) {
	var buf [4]byte
	n, err := l.file.ReadAt(buf[:], 0)
	if n == 0 && err != nil && !errors.Is(err, io.EOF) {
		return 0, fmt.Errorf("read gpio %d: %w", l.num, err)
	}
	s := strings.TrimSpace(string(buf[:n]))
	v, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("gpio %d value %q: %w", l.num, s, err)
	}
	return v, nil
}

// SetValue drives the line; any non-zero v writes a logic 1.
func (l *Line) SetValue(v int) error {
	s := "0"
	if v != 0 {
		s = "1"
	}
	if _, err := l.file.WriteAt([]byte(s), 0); err != nil {
		return fmt.Errorf("write gpio %d: %w", l.num, err)
	}
	return nil
}

func (l *Line) Close() error {
	return l.file.Close()
}

// export writes the pin number to the export file unless the pin's node
// already exists. Export is slow: sysfs needs a moment to create the node.
func export(num int) error {
	if _, err := os.Stat(pinPath(num)); err == nil {
		return nil
	}
	f, err := os.OpenFile(filepath.Join(Root, "export"), os.O_WRONLY, 0)
	if err != nil {
		return fmt.Errorf("open gpio export: %w", err)
	}
	defer f.Close()
	if _, err := f.WriteString(strconv.Itoa(num)); err != nil {
		return fmt.Errorf("export gpio %d: %w", num, err)
	}
	time.Sleep(100 * time.Millisecond)
	return nil
}

func setDirection(num int, dir Direction) error {
	f, err := os.OpenFile(filepath.Join(pinPath(num), "direction"), os.O_WRONLY, 0)
	if err != nil {
		return fmt.Errorf("open gpio %d direction: %w", num, err)
	}
	defer f.Close()
	if _, err := f.WriteString(string(dir)); err != nil {
		return fmt.Errorf("set gpio %d direction %s: %w", num, dir, err)
	}
	return nil
}

func pinPath(num int) string {
	return filepath.Join(Root, fmt.Sprintf("gpio%d", num))
}

func valuePath(num int) string {
	return filepath.Join(pinPath(num), "value")
}
