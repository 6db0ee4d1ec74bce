// Package snapshot implements the per-tab snapshot cache of spec §4.D:
// state keyed by tab id, safe for concurrent readers and a single
// concurrent writer stream, with whole-record replacement so no reader
// ever observes a partially-updated snapshot (spec §3 invariants, §8
// property 7).
package snapshot

import (
	"time"

	"github.com/agentbridge/devtools-bridge/internal/shape"
)

// DebuggerEvent is one entry appended to a tab's debugger ring buffer
// (spec §4.D, source=debugger).
type DebuggerEvent struct {
	Kind      string `json:"kind"`
	Payload   any    `json:"payload"`
	Timestamp time.Time `json:"timestamp"`
}

// Tab is the immutable-after-construction record for one browser tab
// (spec §3 Tab snapshot). Every field is independently optional. Readers
// take a reference and never mutate it; updates install a whole new Tab.
type Tab struct {
	TabID int

	PageContent        string
	IncludeHTML        bool
	DOMSnapshot         *shape.DOMNode
	ConsoleLogBuffer    []shape.ConsoleMessage
	NetworkActivity     []shape.NetworkRequest
	PerformanceMetrics  map[string]any
	AccessibilityTree   any
	ScreenshotBlob      string
	DebuggerEvents      []DebuggerEvent

	URL         string
	Title       string
	LastUpdated time.Time
}

// ResourceDescriptor describes one resource derived from a Tab, for
// enumeration by H (spec §4.H, §6.1 resources/list).
type ResourceDescriptor struct {
	TabID int
	Kind  string // content, dom, console
	URI   string
}

const debuggerRingCap = 100
