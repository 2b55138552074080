package bridge

import (
	"bytes"

	"github.com/rs/zerolog/log"

	"github.com/cyberglitchlabs/owon-xdm-remote/internal/bus"
	"github.com/cyberglitchlabs/owon-xdm-remote/internal/metrics"
)

// resetSignature is the byte pattern the instrument emits while booting.
// Seeing it on the idle line means the meter power-cycled behind our back.
var resetSignature = []byte{0x00, 0x01, 0x00}

const (
	// scanWindow caps the rolling buffer the signature is searched in.
	scanWindow = 64
	// offlineThreshold is the run of empty query responses that parks
	// the session.
	offlineThreshold = 2
)

// Monitor owns the session health verdicts: empty-response escalation,
// reset-signature detection and the retained status topic.
type Monitor struct {
	session *Session
	pub     Publisher
	topics  bus.Topics
	met     *metrics.Metrics
	window  []byte
}

func NewMonitor(session *Session, pub Publisher, topics bus.Topics, met *metrics.Metrics) *Monitor {
	return &Monitor{session: session, pub: pub, topics: topics, met: met}
}

// RecordEmpty counts one empty query response. At the threshold the
// session goes offline and the retained status flips. A single empty
// response never transitions.
func (m *Monitor) RecordEmpty() {
	m.session.EmptyResponses++
	m.met.EmptyResponses.Inc()
	if m.session.EmptyResponses < offlineThreshold {
		return
	}
	log.Warn().Int("count", m.session.EmptyResponses).Msg("instrument stopped answering, marking offline")
	m.session.MarkOffline()
	m.publishStatus(StatusOffline)
}

// ResetEmpty clears the empty-response run after any answered command.
func (m *Monitor) ResetEmpty() {
	m.session.EmptyResponses = 0
}

// Feed scans unsolicited transport bytes for the reset signature,
// accumulating them so a signature split across reads is still found. On a
// match the window is cleared, the session is forced online and the caller
// should re-verify the sampling rate. Reports whether a signature was seen.
func (m *Monitor) Feed(data []byte) bool {
	if len(data) == 0 {
		return false
	}
	m.window = append(m.window, data...)
	if n := len(m.window); n > scanWindow {
		keep := make([]byte, scanWindow)
		copy(keep, m.window[n-scanWindow:])
		m.window = keep
	}
	if !bytes.Contains(m.window, resetSignature) {
		return false
	}
	log.Info().Msg("reset signature on serial line, instrument rebooted")
	m.window = nil
	m.met.ResetSignatures.Inc()
	m.MarkOnline()
	return true
}

// MarkOnline forces the session online and publishes the retained status.
func (m *Monitor) MarkOnline() {
	m.session.MarkOnline()
	m.publishStatus(StatusOnline)
}

func (m *Monitor) publishStatus(state string) {
	if err := m.pub.Publish(m.topics.Status, []byte(state), true); err != nil {
		log.Error().Err(err).Str("state", state).Msg("status publish failed")
	}
	m.met.StatusTransitions.WithLabelValues(state).Inc()
	if state == StatusOnline {
		m.met.SessionOnline.Set(1)
	} else {
		m.met.SessionOnline.Set(0)
	}
}
