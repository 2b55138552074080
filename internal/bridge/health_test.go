package bridge

import (
	"bytes"
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func newTestMonitor() (*Monitor, *Session, *fakePublisher) {
	session := NewSession()
	pub := &fakePublisher{}
	return NewMonitor(session, pub, testTopics, newTestMetrics()), session, pub
}

func TestRecordEmptyGoesOfflineAtThreshold(t *testing.T) {
	m, session, pub := newTestMonitor()

	m.RecordEmpty()
	require.True(t, session.Online)
	require.Equal(t, 1, session.EmptyResponses)
	require.Empty(t, pub.byTopic(testTopics.Status))

	m.RecordEmpty()
	require.False(t, session.Online)
	require.Equal(t, 0, session.EmptyResponses)

	status := pub.byTopic(testTopics.Status)
	require.Len(t, status, 1)
	require.Equal(t, StatusOffline, status[0].payload)
	require.True(t, status[0].retain)
}

func TestResetEmptyBreaksTheRun(t *testing.T) {
	m, session, _ := newTestMonitor()

	m.RecordEmpty()
	m.ResetEmpty()
	m.RecordEmpty()

	require.True(t, session.Online)
	require.Equal(t, 1, session.EmptyResponses)
}

func TestFeedFindsSignatureSplitAcrossReads(t *testing.T) {
	m, session, pub := newTestMonitor()
	session.Online = false

	require.False(t, m.Feed([]byte{0x00}))
	require.False(t, m.Feed([]byte{0x01}))
	require.True(t, m.Feed([]byte{0x00}))

	require.True(t, session.Online)
	require.Equal(t, 1.0, testutil.ToFloat64(m.met.ResetSignatures))

	status := pub.byTopic(testTopics.Status)
	require.Len(t, status, 1)
	require.Equal(t, StatusOnline, status[0].payload)
	require.True(t, status[0].retain)
}

func TestFeedScansAcrossTheWindowCap(t *testing.T) {
	m, _, _ := newTestMonitor()

	chunk := bytes.Repeat([]byte{0xff}, scanWindow-1)
	chunk = append(chunk, 0x00)
	require.False(t, m.Feed(chunk))

	// The window slides by two; the trailing 0x00 survives the trim and
	// completes the signature.
	require.True(t, m.Feed([]byte{0x01, 0x00}))
}

func TestFeedForgetsScrolledOutBytes(t *testing.T) {
	m, _, _ := newTestMonitor()

	require.False(t, m.Feed([]byte{0x00, 0x01}))
	require.False(t, m.Feed(bytes.Repeat([]byte{0xff}, scanWindow)))
	require.False(t, m.Feed([]byte{0x00}))
}

func TestFeedIgnoresEmptyReads(t *testing.T) {
	m, _, _ := newTestMonitor()

	require.False(t, m.Feed(nil))
	require.False(t, m.Feed([]byte{}))
	require.Empty(t, m.window)
}

func TestMarkOnlineClearsSuppression(t *testing.T) {
	m, session, pub := newTestMonitor()
	session.Online = false
	session.SkipNextQuery = true
	session.EmptyResponses = 1

	m.MarkOnline()

	require.True(t, session.Online)
	require.False(t, session.SkipNextQuery)
	require.Equal(t, 0, session.EmptyResponses)
	require.Len(t, pub.byTopic(testTopics.Status), 1)
	require.Equal(t, 1.0, testutil.ToFloat64(m.met.SessionOnline))
}

func TestStatusPublishFailureStillTransitions(t *testing.T) {
	m, session, pub := newTestMonitor()
	pub.setErr(errors.New("broker gone"))

	m.RecordEmpty()
	m.RecordEmpty()

	require.False(t, session.Online)
	require.Equal(t, 1.0, testutil.ToFloat64(m.met.StatusTransitions.WithLabelValues(StatusOffline)))
}
