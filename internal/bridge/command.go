package bridge

import (
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/cyberglitchlabs/owon-xdm-remote/internal/bus"
	"github.com/cyberglitchlabs/owon-xdm-remote/internal/clock"
	"github.com/cyberglitchlabs/owon-xdm-remote/internal/metrics"
	"github.com/cyberglitchlabs/owon-xdm-remote/internal/scpi"
	"github.com/cyberglitchlabs/owon-xdm-remote/internal/serial"
)

const (
	// dedupWindow absorbs the duplicate deliveries some brokers and
	// clients produce for a single publish.
	dedupWindow = 20 * time.Millisecond
	// exchangeWindow is how long an answering instrument gets to finish.
	exchangeWindow = time.Second
)

// CommandBridge turns one inbound command into one serial exchange and at
// most one response publish, applying the dedup, offline and suppression
// gates in that order.
type CommandBridge struct {
	tr      serial.Transport
	session *Session
	health  *Monitor
	pub     Publisher
	topics  bus.Topics
	clk     clock.Clock
	met     *metrics.Metrics
}

func NewCommandBridge(tr serial.Transport, session *Session, health *Monitor, pub Publisher, topics bus.Topics, clk clock.Clock, met *metrics.Metrics) *CommandBridge {
	return &CommandBridge{tr: tr, session: session, health: health, pub: pub, topics: topics, clk: clk, met: met}
}

// Handle processes one command delivery start to finish. It blocks the
// loop for the settle and drain windows; the transport has exactly one
// user, so that is the intended backpressure.
func (b *CommandBridge) Handle(msg bus.Message) {
	cmd := strings.TrimSpace(msg.Text)

	// Dropped duplicates do not refresh the timestamp; a steady stream of
	// repeats is measured against the first delivery.
	if cmd == b.session.LastCommand && msg.ReceivedAt.Sub(b.session.LastCommandAt) < dedupWindow {
		log.Debug().Str("cmd", cmd).Msg("duplicate delivery dropped")
		b.met.Commands.WithLabelValues("deduped").Inc()
		return
	}
	b.session.LastCommand = cmd
	b.session.LastCommandAt = msg.ReceivedAt

	log.Info().Str("cmd", cmd).Msg("command received")

	if !b.session.Online {
		log.Warn().Str("cmd", cmd).Msg("instrument offline, dropping command")
		b.met.Commands.WithLabelValues("dropped_offline").Inc()
		return
	}

	kind := scpi.Classify(cmd)
	if kind == scpi.ModeSwitch {
		// The reading already in flight belongs to the old mode.
		b.session.SkipNextQuery = true
	}

	resp := b.exchange(cmd)

	if kind == scpi.Query && resp == "" {
		b.met.Commands.WithLabelValues("empty").Inc()
		b.health.RecordEmpty()
		return
	}
	b.health.ResetEmpty()

	if b.session.SkipNextQuery && kind == scpi.Query {
		log.Info().Str("cmd", cmd).Msg("stale reading after mode switch suppressed")
		b.session.SkipNextQuery = false
		b.met.Commands.WithLabelValues("suppressed").Inc()
		return
	}

	if err := b.pub.Publish(b.topics.Response, []byte(resp), false); err != nil {
		log.Error().Err(err).Str("cmd", cmd).Msg("response publish failed")
		return
	}
	b.met.Commands.WithLabelValues("published").Inc()
	log.Debug().Str("cmd", cmd).Str("resp", resp).Msg("response published")
}

// exchange writes cmd and collects everything the instrument says inside
// the response window. A write failure reads as an empty response; the
// empty-response escalation is the error path.
func (b *CommandBridge) exchange(cmd string) string {
	b.met.Exchanges.Inc()
	if err := b.tr.WriteLine(cmd); err != nil {
		log.Error().Err(err).Str("cmd", cmd).Msg("serial write failed")
		return ""
	}
	b.clk.Sleep(settleDelay)
	data, err := b.tr.Drain(b.clk.Now().Add(exchangeWindow))
	if err != nil {
		log.Error().Err(err).Msg("serial drain failed")
	}
	return strings.TrimSpace(string(data))
}
