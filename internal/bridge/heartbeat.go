package bridge

import (
	"strconv"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/cyberglitchlabs/owon-xdm-remote/internal/bus"
	"github.com/cyberglitchlabs/owon-xdm-remote/internal/clock"
	"github.com/cyberglitchlabs/owon-xdm-remote/internal/metrics"
	"github.com/cyberglitchlabs/owon-xdm-remote/internal/wireless"
)

const heartbeatInterval = 60 * time.Second

// Heartbeat publishes the liveness marker and the retained link quality.
// Cadence is measured from the last successful emission, so it is
// insensitive to loop jitter.
type Heartbeat struct {
	pub    Publisher
	topics bus.Topics
	rssi   wireless.Source
	clk    clock.Clock
	met    *metrics.Metrics
	last   time.Time
}

func NewHeartbeat(pub Publisher, topics bus.Topics, rssi wireless.Source, clk clock.Clock, met *metrics.Metrics) *Heartbeat {
	return &Heartbeat{pub: pub, topics: topics, rssi: rssi, clk: clk, met: met}
}

// Start emits the initial heartbeat.
func (h *Heartbeat) Start() {
	h.emit()
}

// Tick emits when the interval has elapsed since the last successful
// emission. A failed emission leaves the timestamp alone, so the next tick
// retries immediately.
func (h *Heartbeat) Tick() {
	if h.clk.Now().Sub(h.last) < heartbeatInterval {
		return
	}
	h.emit()
}

func (h *Heartbeat) emit() {
	if err := h.pub.Publish(h.topics.Heartbeat, []byte("alive"), false); err != nil {
		log.Error().Err(err).Msg("heartbeat publish failed")
		return
	}
	h.last = h.clk.Now()
	h.met.Heartbeats.Inc()

	rssi, err := h.rssi.RSSI()
	if err != nil {
		log.Debug().Err(err).Msg("no rssi reading, skipping link quality")
		return
	}
	quality := Quality(rssi)
	h.met.LinkQuality.Set(float64(quality))
	if err := h.pub.Publish(h.topics.LinkQuality, []byte(strconv.Itoa(quality)), true); err != nil {
		log.Error().Err(err).Msg("link quality publish failed")
		return
	}
	log.Debug().Int("rssi", rssi).Int("quality", quality).Msg("heartbeat emitted")
}

// Quality maps an RSSI reading in dBm onto the 0..100 scale published on
// the link-quality topic: -100 dBm and below is 0, -50 dBm and above 100.
func Quality(rssi int) int {
	q := (rssi + 100) * 2
	if q < 0 {
		q = 0
	}
	if q > 100 {
		q = 100
	}
	return q
}
