// Package bridge is the core of the MQTT to serial bridge: the bring-up
// sequencer, the command exchange path, session health accounting and the
// cooperative loop that owns the transport.
package bridge

import "time"

// Retained payloads on the status topic. The connection's last will
// publishes StatusOffline if the process dies.
const (
	StatusOnline  = "online"
	StatusOffline = "offline"
)

// Publisher is the slice of the MQTT client the bridge needs.
type Publisher interface {
	Publish(topic string, payload []byte, retain bool) error
}

// Session is the instrument-facing state. A fresh session is online: the
// instrument is assumed present until empty responses prove otherwise.
// The orchestrator loop is the only mutator; nothing here is locked.
type Session struct {
	Online         bool
	EmptyResponses int
	SkipNextQuery  bool
	LastCommand    string
	LastCommandAt  time.Time
}

func NewSession() *Session {
	return &Session{Online: true}
}

// MarkOnline restores the online state and clears the counters that are
// only meaningful against a live instrument.
func (s *Session) MarkOnline() {
	s.Online = true
	s.EmptyResponses = 0
	s.SkipNextQuery = false
}

// MarkOffline parks the session. Command handling stops doing serial I/O
// until a reset signature or a restart revives it.
func (s *Session) MarkOffline() {
	s.Online = false
	s.EmptyResponses = 0
}
