// Package wireless reads the Wi-Fi signal level that feeds the link
// quality topic. On Linux the kernel exposes it in /proc/net/wireless.
package wireless

import (
	"errors"
	"fmt"

	"github.com/prometheus/procfs"
)

// ErrNoReading means no wireless interface reported a signal level.
var ErrNoReading = errors.New("no wireless signal reading")

// Source yields the current received signal strength in dBm.
type Source interface {
	RSSI() (int, error)
}

// Procfs reads RSSI from /proc/net/wireless via prometheus/procfs.
type Procfs struct {
	fs    procfs.FS
	iface string
}

var _ Source = (*Procfs)(nil)

// NewProcfs opens the proc tree at mount (empty means /proc). If iface is
// empty the first wireless interface found is used.
func NewProcfs(mount, iface string) (*Procfs, error) {
	if mount == "" {
		mount = procfs.DefaultMountPoint
	}
	fs, err := procfs.NewFS(mount)
	if err != nil {
		return nil, fmt.Errorf("open procfs %s: %w", mount, err)
	}
	return &Procfs{fs: fs, iface: iface}, nil
}

func (p *Procfs) RSSI() (int, error) {
	stats, err := p.fs.Wireless()
	if err != nil {
		return 0, fmt.Errorf("read wireless stats: %w", err)
	}
	for _, w := range stats {
		if p.iface == "" || w.Name == p.iface {
			return w.QualityLevel, nil
		}
	}
	return 0, ErrNoReading
}

// Unavailable is used on boxes without Wi-Fi; every read fails.
type Unavailable struct{}

var _ Source = Unavailable{}

func (Unavailable) RSSI() (int, error) { return 0, ErrNoReading }
