// Package mux implements the request multiplexer of spec §4.F: the heart
// of the core. Client-initiated actions are turned into agent frames,
// correlated to their asynchronous reply by a fresh correlation id, and
// resolved through a one-shot reply sink exactly once. Grounded on spec
// §9's design note (a single demultiplexing reader owning the correlation
// map, delivering through one-shot sinks) rather than the MCP devtools
// bridge pack's broadcast-channel CommandDispatcher (internal/capture/
// commands.go), which the design note calls out as leak-prone.
package mux

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/agentbridge/devtools-bridge/internal/agentproto"
	"github.com/agentbridge/devtools-bridge/internal/logging"
	"github.com/agentbridge/devtools-bridge/internal/mcp"
)

// Sender is the send surface Dispatcher needs from the current agent
// session, and SessionSelector picks that session. *agent.Session
// implements Sender; *agent.Hub is adapted to SessionSelector by the
// server package's hubSelector, since Hub.Current returns the concrete
// *agent.Session. Both are expressed as interfaces here so mux does not
// import agent (agent already depends on nothing in mux, avoiding an
// import cycle) and so tests can substitute a fake.
type Sender interface {
	Send(frame agentproto.ActionFrame) error
	Identity() string
}

type SessionSelector interface {
	Current() (Sender, error)
}

// SnapshotWriter is D's write surface for the post-reply cache seed step
// (spec §4.F step 7: "if the reply corresponds to an action whose output
// seeds D, F performs that write before returning").
type SnapshotWriter interface {
	ApplyActionReply(tabID int, action string, data json.RawMessage) error
}

// reply is what a one-shot pending call is resolved with.
type reply struct {
	ok   bool
	data json.RawMessage
	err  *mcp.StructuredError
}

type pendingCall struct {
	id        string
	action    string
	tabID     int
	sessionID string
	sink      chan reply
	resolved  atomic
}

// atomic is a tiny compare-and-swap-once guard, replacing a sync.Once
// whose Do would otherwise have to be re-imported per pendingCall; kept
// local so the single-delivery invariant (spec §3 Pending call, §8
// property 1) is enforced at the type itself rather than by caller
// discipline.
type atomic struct {
	mu   sync.Mutex
	done bool
}

func (a *atomic) tryOnce() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.done {
		return false
	}
	a.done = true
	return true
}

// Dispatcher is the F component.
type Dispatcher struct {
	selector SessionSelector
	snapshot SnapshotWriter
	timeouts TimeoutPolicy

	mu      sync.Mutex
	pending map[string]*pendingCall
}

// TimeoutPolicy supplies per-action default deadlines and the clamp for a
// caller-supplied override (spec §4.F step 3).
type TimeoutPolicy interface {
	ActionTimeout(action string) time.Duration
	ClampActionTimeout(d time.Duration) time.Duration
}

func NewDispatcher(selector SessionSelector, snapshot SnapshotWriter, timeouts TimeoutPolicy) *Dispatcher {
	return &Dispatcher{
		selector: selector,
		snapshot: snapshot,
		timeouts: timeouts,
		pending:  make(map[string]*pendingCall),
	}
}

// Dispatch implements spec §4.F's algorithm end to end.
func (d *Dispatcher) Dispatch(ctx context.Context, action string, params map[string]any, tabID *int, callerTimeout *time.Duration) (json.RawMessage, *mcp.StructuredError) {
	sender, err := d.selector.Current()
	if err != nil {
		return nil, mcp.NewError(mcp.ErrNoPeer, "no browser extensions connected")
	}

	correlationID := uuid.NewString()

	deadline := d.timeouts.ActionTimeout(action)
	if callerTimeout != nil {
		deadline = d.timeouts.ClampActionTimeout(*callerTimeout)
	}

	pc := &pendingCall{id: correlationID, action: action, sessionID: sender.Identity()}
	if tabID != nil {
		pc.tabID = *tabID
	}
	pc.sink = make(chan reply, 1)

	d.mu.Lock()
	d.pending[correlationID] = pc
	d.mu.Unlock()

	frame := agentproto.ActionFrame{Action: action, RequestID: correlationID, TabID: tabID, Params: params}
	if err := sender.Send(frame); err != nil {
		d.removePending(correlationID)
		return nil, mcp.NewError(mcp.ErrPeerCongested, "the browser agent connection is congested")
	}

	timer := time.NewTimer(deadline)
	defer timer.Stop()

	select {
	case r := <-pc.sink:
		if r.err != nil {
			return nil, r.err
		}
		if d.snapshot != nil && r.ok {
			if err := d.snapshot.ApplyActionReply(pc.tabID, action, r.data); err != nil {
				logging.Mux().Warn().Str("action", action).Err(err).Msg("failed to seed snapshot cache from reply")
			}
		}
		return r.data, nil

	case <-timer.C:
		d.removePending(correlationID)
		return nil, mcp.NewError(mcp.ErrTimeout, timeoutMessage(action, deadline))

	case <-ctx.Done():
		d.removePending(correlationID)
		return nil, mcp.NewError(mcp.ErrPeerGone, "request was cancelled")
	}
}

func timeoutMessage(action string, deadline time.Duration) string {
	return "timed out waiting for " + action + " after " + deadline.String()
}

// Resolve implements agent.ReplyRouter: the session reader hands a
// response/error frame here by correlation id. A correlation id unknown
// to F (already timed out, cancelled, or never issued) is dropped
// silently (spec §4.E Classification).
func (d *Dispatcher) Resolve(correlationID string, ok bool, data json.RawMessage, agentErrText string) {
	pc := d.removePending(correlationID)
	if pc == nil {
		return
	}
	if !pc.resolved.tryOnce() {
		return
	}
	if ok {
		pc.sink <- reply{ok: true, data: data}
		return
	}
	pc.sink <- reply{err: mcp.NewError(mcp.ErrAgentError, agentErrText)}
}

// Cancel implements spec §4.F Cancellation: removes the pending entry so
// a subsequently-arriving reply is not delivered and does not update D
// (spec §8 property 3).
func (d *Dispatcher) Cancel(correlationID string) {
	d.removePending(correlationID)
}

// EvictSession fails every pending call routed to sessionID, with
// PEER-GONE (spec §4.F step 6c, §8 property 8: eviction vacates pending
// within bounded time).
func (d *Dispatcher) EvictSession(sessionID string) {
	d.mu.Lock()
	var toFail []*pendingCall
	for id, pc := range d.pending {
		if pc.sessionID != sessionID {
			continue
		}
		toFail = append(toFail, pc)
		delete(d.pending, id)
	}
	d.mu.Unlock()

	for _, pc := range toFail {
		if pc.resolved.tryOnce() {
			pc.sink <- reply{err: mcp.NewError(mcp.ErrPeerGone, "the browser agent session was evicted")}
		}
	}
}

func (d *Dispatcher) removePending(correlationID string) *pendingCall {
	d.mu.Lock()
	defer d.mu.Unlock()
	pc, ok := d.pending[correlationID]
	if !ok {
		return nil
	}
	delete(d.pending, correlationID)
	return pc
}

// PendingCount reports the number of in-flight calls, for diagnostics.
func (d *Dispatcher) PendingCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.pending)
}
