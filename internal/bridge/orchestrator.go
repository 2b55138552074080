package bridge

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog/log"

	"github.com/cyberglitchlabs/owon-xdm-remote/internal/bus"
	"github.com/cyberglitchlabs/owon-xdm-remote/internal/clock"
	"github.com/cyberglitchlabs/owon-xdm-remote/internal/indicator"
	"github.com/cyberglitchlabs/owon-xdm-remote/internal/metrics"
	"github.com/cyberglitchlabs/owon-xdm-remote/internal/scpi"
	"github.com/cyberglitchlabs/owon-xdm-remote/internal/serial"
	"github.com/cyberglitchlabs/owon-xdm-remote/internal/wireless"
)

const loopTick = 100 * time.Millisecond

// Config wires the orchestrator's collaborators.
type Config struct {
	Transport serial.Transport
	Commands  <-chan bus.Message
	Publisher Publisher
	Topics    bus.Topics
	Dialect   scpi.Dialect
	Probe     LevelProbe
	Indicator indicator.Indicator
	RSSI      wireless.Source
	Clock     clock.Clock
	Metrics   *metrics.Metrics
}

// Orchestrator owns the transport and the session and runs every bridge
// component from one cooperative loop.
type Orchestrator struct {
	cfg     Config
	session *Session
	health  *Monitor
	seq     *Sequencer
	cmd     *CommandBridge
	beat    *Heartbeat
	ind     indicator.Indicator
}

func New(cfg Config) *Orchestrator {
	if cfg.Indicator == nil {
		cfg.Indicator = indicator.Nop{}
	}
	if cfg.RSSI == nil {
		cfg.RSSI = wireless.Unavailable{}
	}
	if cfg.Metrics == nil {
		cfg.Metrics = metrics.New(prometheus.NewRegistry())
	}

	session := NewSession()
	health := NewMonitor(session, cfg.Publisher, cfg.Topics, cfg.Metrics)
	return &Orchestrator{
		cfg:     cfg,
		session: session,
		health:  health,
		seq:     NewSequencer(cfg.Transport, cfg.Probe, cfg.Dialect, cfg.Clock),
		cmd:     NewCommandBridge(cfg.Transport, session, health, cfg.Publisher, cfg.Topics, cfg.Clock, cfg.Metrics),
		beat:    NewHeartbeat(cfg.Publisher, cfg.Topics, cfg.RSSI, cfg.Clock, cfg.Metrics),
		ind:     cfg.Indicator,
	}
}

// Run drives the bridge: one bring-up pass, the initial heartbeat, then
// the loop. Each iteration handles at most one command, feeds background
// bytes to the reset scanner and ticks the heartbeat. Returns nil once ctx
// is cancelled and the transport is closed.
func (o *Orchestrator) Run(ctx context.Context) error {
	o.bringUp()
	o.beat.Start()
	log.Info().Msg("listening for commands")

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("shutting down")
			if err := o.cfg.Transport.Close(); err != nil {
				log.Warn().Err(err).Msg("closing transport failed")
			}
			return nil
		default:
		}

		select {
		case msg := <-o.cfg.Commands:
			o.cmd.Handle(msg)
		default:
		}

		data, err := o.cfg.Transport.ReadAvailable()
		if err != nil {
			log.Debug().Err(err).Msg("background read failed")
		} else if o.health.Feed(data) {
			ok := o.seq.VerifyRate()
			log.Info().Bool("ok", ok).Msg("sampling rate re-verified after reset")
		}

		o.beat.Tick()
		o.cfg.Clock.Sleep(loopTick)
	}
}

// bringUp runs the sequencer once and reports the verdict: indicator blink
// pattern for a human, retained status for the broker. A busy abort
// publishes nothing; the line's real owner decides what online means.
func (o *Orchestrator) bringUp() {
	outcome := o.seq.Run()
	o.cfg.Metrics.BringupOutcomes.WithLabelValues(outcome.String()).Inc()
	log.Info().Str("outcome", outcome.String()).Bool("degraded", outcome.Degraded()).Msg("bring-up finished")

	switch outcome {
	case Ready:
		o.ind.Success()
	case Busy:
		o.ind.Busy()
	default:
		o.ind.NotReady()
	}
	if outcome != Busy {
		o.health.MarkOnline()
	}
}
