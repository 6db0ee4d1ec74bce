package agent

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRegisteredSession(t *testing.T, hub *Hub) (*Session, *fakeConn) {
	t.Helper()
	conn := newFakeConn()
	sess := NewSession(conn, &fakeSnapshotWriter{}, &fakeRouter{}, testConfig(), func(s *Session) {
		hub.Unregister(s)
	})
	hub.Register(sess)
	sess.Activate()
	return sess, conn
}

func TestHubCurrentReturnsNoPeerWhenEmpty(t *testing.T) {
	hub := NewHub(time.Second, time.Hour)
	_, err := hub.Current()
	assert.ErrorIs(t, err, ErrNoPeer)
}

func TestHubCurrentSelectsMostRecentlyActive(t *testing.T) {
	hub := NewHub(time.Hour, time.Hour)
	cfg := testConfig()
	cfg.PingInterval = time.Hour // keep liveness probing out of this test

	// Hub's close-and-replace policy would evict `first` the moment a
	// second session registers, so both are placed in the session table
	// directly; then drive activity on `first` to prove most-recent-wins
	// among co-existing active sessions.
	first := NewSession(newFakeConn(), &fakeSnapshotWriter{}, &fakeRouter{}, cfg, nil)
	second := NewSession(newFakeConn(), &fakeSnapshotWriter{}, &fakeRouter{}, cfg, nil)
	hub.sessions[first.ID] = first
	hub.sessions[second.ID] = second
	first.Activate()
	second.Activate()
	defer first.Evict()
	defer second.Evict()

	time.Sleep(time.Millisecond)
	first.touchActivity()
	cur, err := hub.Current()
	require.NoError(t, err)
	assert.Equal(t, first.ID, cur.ID)
}

func TestHubRegisterEvictsPreviousSession(t *testing.T) {
	hub := NewHub(time.Hour, time.Hour)
	first, _ := newRegisteredSession(t, hub)
	second, _ := newRegisteredSession(t, hub)
	defer second.Evict()

	require.Eventually(t, func() bool {
		return first.State() == StateEvicting || first.State() == StateClosed
	}, time.Second, 10*time.Millisecond)

	assert.Equal(t, 1, hub.ActiveCount())

	cur, err := hub.Current()
	require.NoError(t, err)
	assert.Equal(t, second.ID, cur.ID)
}

func TestHubUnregisterRemovesSession(t *testing.T) {
	hub := NewHub(time.Hour, time.Hour)
	sess, _ := newRegisteredSession(t, hub)
	assert.Equal(t, 1, hub.Count())

	hub.Unregister(sess)
	assert.Equal(t, 0, hub.Count())
}

func TestHubSweepEvictsStaleSessions(t *testing.T) {
	hub := NewHub(50*time.Millisecond, time.Hour)
	// A long ping interval keeps the session's own liveness probe from
	// evicting it before the sweep under test runs.
	cfg := testConfig()
	cfg.PingInterval = time.Hour
	sess := NewSession(newFakeConn(), &fakeSnapshotWriter{}, &fakeRouter{}, cfg, func(s *Session) {
		hub.Unregister(s)
	})
	hub.Register(sess)
	sess.Activate()
	defer sess.Evict()

	time.Sleep(100 * time.Millisecond)
	evicted := hub.Sweep()
	assert.Equal(t, 1, evicted)

	require.Eventually(t, func() bool {
		return sess.State() == StateEvicting || sess.State() == StateClosed
	}, time.Second, 10*time.Millisecond)
}

func TestHubSweepIgnoresFreshSessions(t *testing.T) {
	hub := NewHub(time.Hour, time.Hour)
	sess, _ := newRegisteredSession(t, hub)
	defer sess.Evict()

	evicted := hub.Sweep()
	assert.Equal(t, 0, evicted)
	assert.Equal(t, StateActive, sess.State())
}

func TestHubRunStopsOnStop(t *testing.T) {
	hub := NewHub(time.Hour, 10*time.Millisecond)
	done := make(chan struct{})
	go func() {
		hub.Run()
		close(done)
	}()

	hub.Stop()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after Stop")
	}
}
