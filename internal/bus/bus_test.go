package bus

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestTopicsFor(t *testing.T) {
	topics := TopicsFor("xdm1041")

	require.Equal(t, "xdm1041/cmd", topics.Command)
	require.Equal(t, "xdm1041/resp", topics.Response)
	require.Equal(t, "xdm1041/status", topics.Status)
	require.Equal(t, "xdm1041/heartbeat", topics.Heartbeat)
	require.Equal(t, "xdm1041/wifiquality", topics.LinkQuality)
}

func TestBrokerURL(t *testing.T) {
	require.Equal(t, "tcp://broker.lan:1883", brokerURL("broker.lan", 1883))
}

func TestClientIDHasRandomSuffix(t *testing.T) {
	a := clientID("owon-xdm-remote")
	b := clientID("owon-xdm-remote")

	require.Regexp(t, `^owon-xdm-remote-[0-9a-f]{8}$`, a)
	require.NotEqual(t, a, b)
}

func TestForwardDropsWhenBufferFull(t *testing.T) {
	ch := make(chan Message, 1)
	first := Message{Text: "MEAS?", ReceivedAt: time.Unix(0, 0)}
	second := Message{Text: "MEAS:VOLT:DC?", ReceivedAt: time.Unix(1, 0)}

	forward(ch, "xdm1041/cmd", first)
	forward(ch, "xdm1041/cmd", second) // buffer full, dropped

	require.Len(t, ch, 1)
	got := <-ch
	require.Equal(t, first, got)
}
