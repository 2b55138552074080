package bridge

import (
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/cyberglitchlabs/owon-xdm-remote/internal/clock"
	"github.com/cyberglitchlabs/owon-xdm-remote/internal/scpi"
	"github.com/cyberglitchlabs/owon-xdm-remote/internal/serial"
)

// Bring-up timing, fixed to match the instrument's boot behavior.
const (
	idleWindow       = 2 * time.Second
	idleSampleEvery  = 10 * time.Millisecond
	identifyAttempts = 10
	identifyWait     = time.Second
	rateAttempts     = 10
	retryBackoff     = time.Second
	// settleDelay follows every write; the meter needs a beat before it
	// starts answering.
	settleDelay = 200 * time.Millisecond
	// lineTimeout bounds a single identify or verify read.
	lineTimeout = 500 * time.Millisecond
)

// Outcome is the bring-up verdict.
type Outcome int

const (
	// Ready means identified and sampling at the verified rate.
	Ready Outcome = iota
	// Busy means the line had traffic before we transmitted anything;
	// some other master owns the instrument and must not be disturbed.
	Busy
	// NotReady means the instrument never identified.
	NotReady
	// RateNotVerified means it identified but the sampling rate could not
	// be confirmed.
	RateNotVerified
)

func (o Outcome) String() string {
	switch o {
	case Ready:
		return "ready"
	case Busy:
		return "busy"
	case NotReady:
		return "not-ready"
	case RateNotVerified:
		return "rate-not-verified"
	default:
		return "unknown"
	}
}

// Degraded reports whether the bridge runs without a verified instrument.
func (o Outcome) Degraded() bool { return o != Ready }

// Sequencer runs the three-stage bring-up: idle-line check, identify poll,
// rate set and verify.
type Sequencer struct {
	tr      serial.Transport
	probe   LevelProbe
	dialect scpi.Dialect
	clk     clock.Clock
}

func NewSequencer(tr serial.Transport, probe LevelProbe, dialect scpi.Dialect, clk clock.Clock) *Sequencer {
	return &Sequencer{tr: tr, probe: probe, dialect: dialect, clk: clk}
}

// Run executes the full bring-up and returns the verdict. No outcome is
// fatal; the command path keeps retrying a degraded instrument.
func (s *Sequencer) Run() Outcome {
	log.Info().Str("dialect", s.dialect.Name).Msg("bring-up started")
	if !s.idleLine() {
		return Busy
	}
	if !s.identify() {
		return NotReady
	}
	if !s.VerifyRate() {
		return RateNotVerified
	}
	s.setup()
	return Ready
}

// idleLine samples the probe for the quiet window and reports whether the
// line stayed at its initial level. Probe read errors count as no-change;
// startup must not hang on a miswired sense pin.
func (s *Sequencer) idleLine() bool {
	log.Debug().Str("stage", "idle-check").Msg("bring-up stage")
	deadline := s.clk.Now().Add(idleWindow)

	var level int
	have := false
	warned := false
	if v, err := s.probe.Level(); err == nil {
		level, have = v, true
	} else {
		log.Warn().Err(err).Msg("idle probe read failed")
		warned = true
	}

	for s.clk.Now().Before(deadline) {
		s.clk.Sleep(idleSampleEvery)
		cur, err := s.probe.Level()
		if err != nil {
			if !warned {
				log.Warn().Err(err).Msg("idle probe read failed")
				warned = true
			}
			continue
		}
		if !have {
			level, have = cur, true
			continue
		}
		if cur != level {
			log.Warn().Int("initial", level).Int("sampled", cur).Msg("serial line busy, leaving it alone")
			return false
		}
	}
	log.Debug().Msg("serial line idle")
	return true
}

// identify reopens the transport to flush boot noise, then polls the
// dialect's identify query until a reply carries an expected keyword.
func (s *Sequencer) identify() bool {
	log.Debug().Str("stage", "identify").Msg("bring-up stage")
	if err := s.tr.Reopen(); err != nil {
		log.Error().Err(err).Msg("reopen before identify failed")
	}
	for attempt := 1; attempt <= identifyAttempts; attempt++ {
		if line, ok := s.tryIdentify(); ok {
			log.Info().Str("idn", line).Int("attempt", attempt).Msg("instrument identified")
			return true
		}
		s.clk.Sleep(retryBackoff)
	}
	return false
}

func (s *Sequencer) tryIdentify() (string, bool) {
	if err := s.tr.WriteLine(s.dialect.Identify); err != nil {
		log.Error().Err(err).Msg("identify write failed")
		return "", false
	}
	s.clk.Sleep(identifyWait)
	line, err := s.tr.ReadLine(lineTimeout)
	if err != nil {
		log.Error().Err(err).Msg("identify read failed")
		return "", false
	}
	for _, kw := range s.dialect.Keywords {
		if strings.Contains(line, kw) {
			return line, true
		}
	}
	if line != "" {
		log.Debug().Str("idn", line).Msg("unexpected identify reply")
	}
	return line, false
}

// VerifyRate selects the fast sampling mode and confirms it took. Exported
// separately from Run because a detected instrument reset re-runs only
// this stage.
func (s *Sequencer) VerifyRate() bool {
	log.Debug().Str("stage", "rate-verify").Msg("bring-up stage")
	for attempt := 1; attempt <= rateAttempts; attempt++ {
		if s.tryRate() {
			log.Info().Int("attempt", attempt).Msg("sampling rate verified")
			return true
		}
		s.clk.Sleep(retryBackoff)
	}
	return false
}

func (s *Sequencer) tryRate() bool {
	if err := s.tr.WriteLine(s.dialect.RateSet); err != nil {
		log.Error().Err(err).Msg("rate set write failed")
		return false
	}
	s.clk.Sleep(settleDelay)
	if err := s.tr.WriteLine(s.dialect.RateQuery); err != nil {
		log.Error().Err(err).Msg("rate query write failed")
		return false
	}
	s.clk.Sleep(settleDelay)
	line, err := s.tr.ReadLine(lineTimeout)
	if err != nil {
		log.Error().Err(err).Msg("rate verify read failed")
		return false
	}
	if line != s.dialect.RateWant {
		if line != "" {
			log.Debug().Str("resp", line).Msg("unexpected rate reply")
		}
		return false
	}
	return true
}

// setup sends the dialect's remaining configuration best-effort. Failures
// are logged and ignored; the Ready verdict stands.
func (s *Sequencer) setup() {
	for _, cmd := range s.dialect.Setup {
		log.Debug().Str("cmd", cmd).Msg("setup command")
		if err := s.tr.WriteLine(cmd); err != nil {
			log.Warn().Err(err).Str("cmd", cmd).Msg("setup write failed")
			continue
		}
		s.clk.Sleep(settleDelay)
		if _, err := s.tr.Drain(s.clk.Now().Add(settleDelay)); err != nil {
			log.Warn().Err(err).Str("cmd", cmd).Msg("setup drain failed")
		}
	}
}
