// Package server implements the listener/router component of spec §4.I:
// gin-based HTTP routing for POST /mcp, GET /health, POST
// /cleanup-connections, and the GET /ws WebSocket upgrade, wiring every
// other component together. Grounded on streamspace's api/cmd/main.go
// wiring order and api/internal/handlers/agent_websocket.go's
// RegisterRoutes.
package server

import (
	"github.com/agentbridge/devtools-bridge/internal/agent"
	"github.com/agentbridge/devtools-bridge/internal/mux"
)

// hubSelector narrows *agent.Hub.Current()'s concrete *agent.Session
// return to the mux.Sender interface mux.SessionSelector requires. Go
// does not allow covariant return types to satisfy an interface, so this
// small adapter is the cleanest fix rather than changing Hub's exported
// signature (which other callers rely on for *agent.Session-specific
// methods like Evict).
type hubSelector struct{ hub *agent.Hub }

func newHubSelector(h *agent.Hub) mux.SessionSelector {
	return hubSelector{hub: h}
}

func (h hubSelector) Current() (mux.Sender, error) {
	s, err := h.hub.Current()
	if err != nil {
		return nil, err
	}
	return s, nil
}
