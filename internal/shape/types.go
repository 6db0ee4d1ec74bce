// Package shape implements the filter/shape engine of spec §4.C: stateless
// pure functions over console messages, network requests, and DOM
// snapshots. Grounded on the filter-then-sort shape of the MCP devtools
// bridge pack's internal/capture/websocket.go (GetWebSocketEvents).
package shape

import (
	"encoding/json"
	"time"
)

// ConsoleMessage is one entry of a tab's console log buffer (spec §4.C).
type ConsoleMessage struct {
	Level     string    `json:"level"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
	Source    string    `json:"source,omitempty"`
}

// NetworkRequest is one entry of a tab's network activity buffer (spec §4.C).
type NetworkRequest struct {
	Method       string          `json:"method"`
	Status       int             `json:"status"`
	URL          string          `json:"url"`
	ResourceType string          `json:"resourceType"`
	RequestBody  json.RawMessage `json:"requestBody,omitempty"`
	ResponseBody json.RawMessage `json:"responseBody,omitempty"`
	Timestamp    time.Time       `json:"timestamp"`
}

// OmittedBody replaces a request/response body that was not asked for
// (spec §4.C Body shaping).
type OmittedBody struct {
	Omitted      bool `json:"omitted"`
	OriginalSize int  `json:"originalSize"`
}

// DOMNode is a serialized DOM tree node (spec §4.C DOM snapshot, §4.A
// TruncateTree's TreeNode interface).
type DOMNode struct {
	Tag      string            `json:"tag"`
	Attrs    map[string]string `json:"attrs,omitempty"`
	Text     string            `json:"text,omitempty"`
	Children []*DOMNode        `json:"children,omitempty"`
	Computed map[string]string `json:"computedStyle,omitempty"`

	Truncated         bool `json:"truncated,omitempty"`
	RemainingSiblings int  `json:"remainingSiblings,omitempty"`
}
