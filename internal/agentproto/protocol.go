// Package agentproto defines the wire types exchanged with the browser
// agent over the WebSocket connection (spec §6.2).
package agentproto

import "encoding/json"

// Inbound message kinds, browser agent -> server.
const (
	KindConnection     = "connection"
	KindPing           = "ping"
	KindPong           = "pong"
	KindBrowserData    = "browser-data"
	KindResponse       = "response"
	KindError          = "error"
	KindDevtoolsMsg    = "devtools-message"
	KindDebuggerEvent  = "debugger-event"
)

// Action names, the closed set the server may ask the agent to perform
// (spec §6.2). Tool schemas in internal/rpc map onto exactly these.
const (
	ActionGetPageContent       = "getPageContent"
	ActionGetDOMSnapshot       = "getDOMSnapshot"
	ActionExecuteScript        = "executeScript"
	ActionGetConsoleMessages   = "getConsoleMessages"
	ActionGetNetworkData       = "getNetworkData"
	ActionCaptureScreenshot    = "captureScreenshot"
	ActionGetPerformanceMetrics = "getPerformanceMetrics"
	ActionGetAccessibilityTree = "getAccessibilityTree"
	ActionGetAllTabs           = "getAllTabs"
	ActionAttachDebugger       = "attachDebugger"
	ActionDetachDebugger       = "detachDebugger"
	ActionGetCookies           = "getCookies"
	ActionGetStorageData       = "getStorageData"
	ActionEmulateDevice        = "emulateDevice"
	ActionSetUserAgent         = "setUserAgent"
)

// Sources for a browser-data update (spec §3 Agent message, §4.D).
const (
	SourceContent  = "content"
	SourceDevtools = "devtools"
	SourceDebugger = "debugger"
)

// InboundFrame is the envelope every frame read off the agent socket is
// decoded into before being classified and dispatched by its Type.
type InboundFrame struct {
	Type              string          `json:"type"`
	Timestamp         int64           `json:"timestamp,omitempty"`
	OriginalTimestamp int64           `json:"originalTimestamp,omitempty"`
	RequestID         string          `json:"requestId,omitempty"`
	Data              json.RawMessage `json:"data,omitempty"`
	Error             string          `json:"error,omitempty"`
	Source            string          `json:"source,omitempty"`
	TabID             int             `json:"tabId,omitempty"`
	URL               string          `json:"url,omitempty"`
}

// BrowserData is the payload of a browser-data frame, merged into the
// snapshot cache (spec §4.D apply-content-update).
type BrowserData struct {
	Source string          `json:"source"`
	TabID  int             `json:"tabId"`
	URL    string          `json:"url"`
	Data   json.RawMessage `json:"data"`
}

// ActionFrame is the outbound envelope for a dispatched action (spec §3
// Action frame). The server is the sole generator of RequestID values.
type ActionFrame struct {
	Action    string         `json:"action"`
	RequestID string         `json:"requestId"`
	TabID     *int           `json:"tabId,omitempty"`
	Params    map[string]any `json:"-"`
}

// MarshalJSON flattens Params alongside the fixed fields, matching the
// agent wire shape `{action, requestId, ...params}`.
func (f ActionFrame) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(f.Params)+3)
	for k, v := range f.Params {
		out[k] = v
	}
	out["action"] = f.Action
	out["requestId"] = f.RequestID
	if f.TabID != nil {
		out["tabId"] = *f.TabID
	}
	return json.Marshal(out)
}

// PongFrame is sent in direct reply to an inbound ping (spec §6.2).
type PongFrame struct {
	Type              string `json:"type"`
	Timestamp         int64  `json:"timestamp"`
	OriginalTimestamp int64  `json:"originalTimestamp"`
}

// PingFrame is the liveness probe the writer emits every PING_INTERVAL.
// §4.E and §6.2 describe the same frame; the wire discriminator is "type"
// throughout, matching every other frame on the socket.
type PingFrame struct {
	Type      string `json:"type"`
	Timestamp int64  `json:"timestamp"`
}
