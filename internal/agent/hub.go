package agent

import (
	"sync"
	"time"

	"github.com/agentbridge/devtools-bridge/internal/logging"
)

// ErrNoPeer mirrors spec §7's NO-PEER tag at the package boundary; the
// mux package maps it onto mcp.ErrNoPeer.
var ErrNoPeer = noPeerErr("no healthy agent session")

type noPeerErr string

func (e noPeerErr) Error() string { return string(e) }

// Hub is the registry of agent sessions (spec §4.E/§5: "Sessions list and
// current session selection... updated only by I on accept and E on
// state change"). Grounded on streamspace's AgentHub register/unregister/
// stale-sweep event loop, simplified to this spec's single-peer-at-a-time
// policy (§9 open question (a)).
type Hub struct {
	mu             sync.RWMutex
	sessions       map[string]*Session
	staleThreshold time.Duration
	sweepInterval  time.Duration
	stop           chan struct{}
	stopOnce       sync.Once
}

func NewHub(staleThreshold, sweepInterval time.Duration) *Hub {
	return &Hub{
		sessions:       make(map[string]*Session),
		staleThreshold: staleThreshold,
		sweepInterval:  sweepInterval,
		stop:           make(chan struct{}),
	}
}

// Register adds a newly-activated session to the hub. Per §9 open
// question (a), the deployment expects at most one agent: any
// previously-registered session is proactively evicted, matching
// AgentHub.handleRegister's close-and-replace behavior.
func (h *Hub) Register(s *Session) {
	h.mu.Lock()
	var previous []*Session
	for _, existing := range h.sessions {
		previous = append(previous, existing)
	}
	h.sessions[s.ID] = s
	h.mu.Unlock()

	for _, p := range previous {
		logging.Server().Info().Str("session_id", p.ID).Str("new_session_id", s.ID).Msg("evicting previous session on new attach")
		p.Evict()
	}
}

// Unregister removes a session from the hub (called once its reader/
// writer tasks have fully stopped).
func (h *Hub) Unregister(s *Session) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.sessions, s.ID)
}

// Current selects the current agent session (spec §4.F step 1): among
// sessions in active state, the one with the most recent last-activity.
// Returns ErrNoPeer if none.
func (h *Hub) Current() (*Session, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	var best *Session
	for _, s := range h.sessions {
		if s.State() != StateActive {
			continue
		}
		if best == nil || s.LastActivity().After(best.LastActivity()) {
			best = s
		}
	}
	if best == nil {
		return nil, ErrNoPeer
	}
	return best, nil
}

// Count returns the number of sessions currently registered, regardless
// of state (reported by GET /health as totalSessions).
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.sessions)
}

// ActiveCount returns the number of sessions in the active state.
func (h *Hub) ActiveCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	n := 0
	for _, s := range h.sessions {
		if s.State() == StateActive {
			n++
		}
	}
	return n
}

// Sweep forces every active session whose last-activity exceeds the
// stale threshold into evicting (spec §4.E Stale-peer sweep). Returns the
// number of sessions evicted, and is exposed both to the periodic sweep
// goroutine and to POST /cleanup-connections as an operational aid.
func (h *Hub) Sweep() int {
	h.mu.RLock()
	var stale []*Session
	for _, s := range h.sessions {
		if s.State() == StateActive && s.StaleSince() > h.staleThreshold {
			stale = append(stale, s)
		}
	}
	h.mu.RUnlock()

	for _, s := range stale {
		s.Evict()
	}
	return len(stale)
}

// Run starts the periodic stale-session sweep. Blocks until Stop is
// called; intended to be run in its own goroutine.
func (h *Hub) Run() {
	ticker := time.NewTicker(h.sweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			if n := h.Sweep(); n > 0 {
				logging.Server().Info().Int("evicted", n).Msg("stale-session sweep")
			}
		case <-h.stop:
			return
		}
	}
}

func (h *Hub) Stop() {
	h.stopOnce.Do(func() { close(h.stop) })
}
