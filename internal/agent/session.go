// Package agent implements the agent session of spec §4.E: ownership of
// exactly one WebSocket peer, its reader/writer tasks, liveness probing,
// and eviction. Grounded on streamspace's api/internal/handlers/
// agent_websocket.go readPump/writePump pattern and api/internal/websocket/
// agent_hub.go's registry, retargeted at this spec's own lifecycle states
// and message kinds (spec §3 Agent message, §4.E, §6.2).
package agent

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"

	"github.com/agentbridge/devtools-bridge/internal/agentproto"
	"github.com/agentbridge/devtools-bridge/internal/logging"
)

// State is a session's lifecycle state (spec §4.E: accepting -> active ->
// evicting -> closed; closed is absorbing).
type State int32

const (
	StateAccepting State = iota
	StateActive
	StateEvicting
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateAccepting:
		return "accepting"
	case StateActive:
		return "active"
	case StateEvicting:
		return "evicting"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// ErrPeerCongested is returned by Send when the writer queue does not
// drain within the configured write timeout (spec §4.E Writer backpressure).
var ErrPeerCongested = errors.New("peer congested")

// ErrSessionNotActive is returned by Send once the session has left the
// active state.
var ErrSessionNotActive = errors.New("session is not active")

// Conn is the subset of *websocket.Conn a Session needs; it exists so
// tests can substitute a fake transport.
type Conn interface {
	ReadMessage() (messageType int, p []byte, err error)
	WriteMessage(messageType int, data []byte) error
	Close() error
}

// SnapshotWriter is D's write surface, as consumed by the reader task
// when classifying browser-data / devtools / debugger frames (spec §4.E
// Classification).
type SnapshotWriter interface {
	ApplyContentUpdate(tabID int, payload json.RawMessage) error
	ApplyDebuggerEvent(tabID int, kind string, payload any)
}

// ReplyRouter is F's inbound surface: the reader task hands response/
// error frames to it by correlation id (spec §4.E Classification, §4.F).
type ReplyRouter interface {
	Resolve(correlationID string, ok bool, data json.RawMessage, agentErr string)
}

// Config carries the liveness/backpressure knobs of spec §4.E.
type Config struct {
	PingInterval   time.Duration
	PingTimeout    time.Duration
	HealthFailures int
	WriteTimeout   time.Duration
	WriteQueueCap  int
}

// Session owns exactly one WebSocket peer (spec §4.E).
type Session struct {
	ID string

	conn     Conn
	snapshot SnapshotWriter
	router   ReplyRouter
	cfg      Config

	state         atomic.Int32
	lastActivity  atomic.Int64 // unix nano
	lastPong      atomic.Int64 // unix nano
	failures      atomic.Int32
	writeQueue    chan []byte
	writeLimiter  *rate.Limiter
	stopOnce      sync.Once
	stopped       chan struct{}
	onEvict       func(*Session)
}

// NewSession wraps conn into an accepting Session. Call Activate once
// registration with the Hub completes; Activate spawns its tasks.
func NewSession(conn Conn, snap SnapshotWriter, router ReplyRouter, cfg Config, onEvict func(*Session)) *Session {
	s := &Session{
		ID:           uuid.NewString(),
		conn:         conn,
		snapshot:     snap,
		router:       router,
		cfg:          cfg,
		writeQueue:   make(chan []byte, cfg.WriteQueueCap),
		writeLimiter: rate.NewLimiter(rate.Every(time.Second/50), 10),
		stopped:      make(chan struct{}),
		onEvict:      onEvict,
	}
	s.state.Store(int32(StateAccepting))
	s.touchActivity()
	return s
}

// Identity satisfies mux.Sender, letting the dispatcher tag a pending
// call with the session it was routed to (so a later eviction only fails
// calls belonging to that session, not every in-flight call).
func (s *Session) Identity() string { return s.ID }

func (s *Session) State() State { return State(s.state.Load()) }

func (s *Session) setState(st State) { s.state.Store(int32(st)) }

// Activate transitions accepting -> active and starts the reader/writer
// tasks plus the liveness ping ticker (spec §4.E Initial: active).
func (s *Session) Activate() {
	s.setState(StateActive)
	go s.readPump()
	go s.writePump()
}

func (s *Session) touchActivity() {
	s.lastActivity.Store(time.Now().UnixNano())
}

func (s *Session) LastActivity() time.Time {
	return time.Unix(0, s.lastActivity.Load())
}

func (s *Session) lastPongTime() time.Time {
	return time.Unix(0, s.lastPong.Load())
}

// Send enqueues an action frame for delivery (spec §4.E Writer
// backpressure). A single-consumer queue; if it stays full for
// WriteTimeout the send fails with ErrPeerCongested and is never
// retried inside this package — the caller's own deadline will fire.
func (s *Session) Send(frame agentproto.ActionFrame) error {
	if s.State() != StateActive {
		return ErrSessionNotActive
	}
	b, err := json.Marshal(frame)
	if err != nil {
		return err
	}
	select {
	case s.writeQueue <- b:
		return nil
	case <-time.After(s.cfg.WriteTimeout):
		return ErrPeerCongested
	case <-s.stopped:
		return ErrSessionNotActive
	}
}

// Evict transitions active -> evicting (spec §4.E transitions a-d). Safe
// to call more than once; only the first call has effect.
func (s *Session) Evict() {
	for {
		cur := s.state.Load()
		if State(cur) == StateEvicting || State(cur) == StateClosed {
			return
		}
		if s.state.CompareAndSwap(cur, int32(StateEvicting)) {
			break
		}
	}
	logging.Agent().Warn().Str("session_id", s.ID).Msg("session evicting")
	if s.onEvict != nil {
		s.onEvict(s)
	}
	s.stopOnce.Do(func() { close(s.stopped) })
	_ = s.conn.Close()
}

func (s *Session) close() {
	s.setState(StateClosed)
}

func (s *Session) readPump() {
	defer func() {
		s.Evict()
		s.close()
	}()
	for {
		_, raw, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logging.Agent().Warn().Str("session_id", s.ID).Err(err).Msg("unexpected close")
			}
			return
		}
		s.touchActivity()
		s.handleFrame(raw)
	}
}

func (s *Session) handleFrame(raw []byte) {
	var f agentproto.InboundFrame
	if err := json.Unmarshal(raw, &f); err != nil {
		logging.Agent().Debug().Str("session_id", s.ID).Err(err).Msg("dropping malformed frame")
		return
	}

	switch f.Type {
	case agentproto.KindConnection:
		// informational, no response expected (spec §6.2).
	case agentproto.KindPing:
		s.enqueuePong(f.Timestamp)
	case agentproto.KindPong:
		if s.State() == StateEvicting || s.State() == StateClosed {
			return // pongs arriving after eviction begins are discarded (§4.E)
		}
		s.lastPong.Store(time.Now().UnixNano())
		s.failures.Store(0)
	case agentproto.KindBrowserData:
		s.applyBrowserData(f)
	case "response":
		if s.router != nil {
			s.router.Resolve(f.RequestID, true, f.Data, "")
		}
	case "error":
		if s.router != nil {
			s.router.Resolve(f.RequestID, false, nil, f.Error)
		}
	case agentproto.KindDevtoolsMsg, agentproto.KindDebuggerEvent:
		s.applyDebuggerEvent(f)
	default:
		logging.Agent().Debug().Str("session_id", s.ID).Str("type", f.Type).Msg("unknown frame kind, dropped")
	}
}

func (s *Session) applyBrowserData(f agentproto.InboundFrame) {
	if s.snapshot == nil {
		return
	}
	if err := s.snapshot.ApplyContentUpdate(f.TabID, f.Data); err != nil {
		logging.Agent().Warn().Str("session_id", s.ID).Err(err).Msg("failed to apply browser-data")
	}
}

func (s *Session) applyDebuggerEvent(f agentproto.InboundFrame) {
	if s.snapshot == nil {
		return
	}
	var payload any
	_ = json.Unmarshal(f.Data, &payload)
	s.snapshot.ApplyDebuggerEvent(f.TabID, f.Type, payload)
}

func (s *Session) enqueuePong(originalTimestamp int64) {
	pong := agentproto.PongFrame{Type: "pong", Timestamp: time.Now().UnixMilli(), OriginalTimestamp: originalTimestamp}
	b, _ := json.Marshal(pong)
	select {
	case s.writeQueue <- b:
	default:
		// writer congested; liveness ping on the next tick will notice.
	}
}

func (s *Session) writePump() {
	ticker := time.NewTicker(s.cfg.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case b, ok := <-s.writeQueue:
			if !ok {
				return
			}
			// Pace outbound frames so a single session cannot be driven to
			// flood the peer faster than it can plausibly consume frames;
			// golang.org/x/time/rate is repurposed here from the teacher's
			// per-IP HTTP throttling into per-session write pacing.
			_ = s.writeLimiter.Wait(context.Background())
			if err := s.conn.WriteMessage(websocket.TextMessage, b); err != nil {
				s.Evict()
				return
			}
		case <-ticker.C:
			if s.State() != StateActive {
				return
			}
			if s.probeLiveness() {
				s.Evict()
				return
			}
		case <-s.stopped:
			return
		}
	}
}

// probeLiveness implements spec §4.E's liveness protocol: emit a ping,
// and on this tick count a failure if the last pong is stale or never
// arrived. After HealthFailures consecutive failures, return true so the
// caller evicts. It also schedules the independent, shorter-fused
// PING_TIMEOUT check ("a ping with no pong within PING_TIMEOUT also counts
// as a failure") that fires well before the next PingInterval tick.
func (s *Session) probeLiveness() bool {
	sentAt := time.Now()
	ping := agentproto.PingFrame{Type: agentproto.KindPing, Timestamp: sentAt.UnixMilli()}
	b, _ := json.Marshal(ping)
	_ = s.conn.WriteMessage(websocket.TextMessage, b)
	s.schedulePingTimeoutCheck(sentAt)

	threshold := time.Duration(float64(s.cfg.PingInterval) * 1.5)
	sincePong := time.Since(s.lastPongTime())
	if s.lastPong.Load() == 0 {
		sincePong = time.Since(s.LastActivity())
	}
	if sincePong > threshold {
		n := s.failures.Add(1)
		return int(n) >= s.cfg.HealthFailures
	}
	s.failures.Store(0)
	return false
}

// schedulePingTimeoutCheck counts a failure if no pong has arrived since
// sentAt by the time PingTimeout elapses, independent of the next
// PingInterval tick's own staleness check (spec §4.E: "A ping with no pong
// within PING_TIMEOUT also counts as a failure").
func (s *Session) schedulePingTimeoutCheck(sentAt time.Time) {
	if s.cfg.PingTimeout <= 0 {
		return
	}
	time.AfterFunc(s.cfg.PingTimeout, func() {
		if s.State() != StateActive {
			return
		}
		if s.lastPongTime().Before(sentAt) {
			n := s.failures.Add(1)
			if int(n) >= s.cfg.HealthFailures {
				s.Evict()
			}
		}
	})
}

// StaleSince reports how long the session has been inactive, for the
// shared stale-session sweep (spec §4.E Stale-peer sweep).
func (s *Session) StaleSince() time.Duration {
	return time.Since(s.LastActivity())
}
