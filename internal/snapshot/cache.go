package snapshot

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/agentbridge/devtools-bridge/internal/agentproto"
	"github.com/agentbridge/devtools-bridge/internal/shape"
)

// Cache is the D component: tab-id -> Tab mapping. Writable only by the
// agent session's reader task (plus the one post-reply write F performs
// after a successful dispatch, spec §4.F step 7); everything else is a
// read-only consumer (spec §5 Shared resources & mutation discipline).
type Cache struct {
	mu   sync.RWMutex
	tabs map[int]*Tab
}

func NewCache() *Cache {
	return &Cache{tabs: make(map[int]*Tab)}
}

// Get returns the current snapshot for tabID, or nil if none exists.
func (c *Cache) Get(tabID int) *Tab {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.tabs[tabID]
}

// ListAvailable returns one ResourceDescriptor per (tab, kind) that the
// cache currently has data for (spec §4.D list-available, used by H).
func (c *Cache) ListAvailable() []ResourceDescriptor {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var out []ResourceDescriptor
	for id, t := range c.tabs {
		if t.PageContent != "" {
			out = append(out, ResourceDescriptor{TabID: id, Kind: "content", URI: fmt.Sprintf("tab/%d/content", id)})
		}
		if t.DOMSnapshot != nil {
			out = append(out, ResourceDescriptor{TabID: id, Kind: "dom", URI: fmt.Sprintf("tab/%d/dom", id)})
		}
		if len(t.ConsoleLogBuffer) > 0 {
			out = append(out, ResourceDescriptor{TabID: id, Kind: "console", URI: fmt.Sprintf("tab/%d/console", id)})
		}
	}
	return out
}

// cloneOrNew returns a shallow copy of the current record for tabID (for
// installing a new whole record on top of), or a fresh zero record.
func (c *Cache) cloneOrNew(tabID int) Tab {
	c.mu.RLock()
	existing, ok := c.tabs[tabID]
	c.mu.RUnlock()
	if !ok {
		return Tab{TabID: tabID}
	}
	cp := *existing
	return cp
}

func (c *Cache) install(tabID int, t Tab) {
	t.TabID = tabID
	t.LastUpdated = time.Now()
	c.mu.Lock()
	c.tabs[tabID] = &t
	c.mu.Unlock()
}

// contentUpdate is the recognized shape of a source=content browser-data
// payload (spec §4.D apply-content-update).
type contentUpdate struct {
	PageContent        string                 `json:"pageContent"`
	DOMSnapshot        *shape.DOMNode         `json:"domSnapshot"`
	ConsoleLogBuffer   []shape.ConsoleMessage `json:"consoleLogBuffer"`
	NetworkActivity    []shape.NetworkRequest `json:"networkActivity"`
	PerformanceMetrics map[string]any         `json:"performanceMetrics"`
	AccessibilityTree  any                    `json:"accessibilityTree"`
	URL                string                 `json:"url"`
	Title              string                 `json:"title"`
}

// ApplyContentUpdate merges a source=content browser-data payload into
// the named tab's snapshot (spec §4.D). Unset fields in payload leave the
// prior value untouched; this is a merge, not a replace, though the
// installed record itself is a whole new value (spec §3 invariant:
// snapshot updates apply atomically).
func (c *Cache) ApplyContentUpdate(tabID int, payload json.RawMessage) error {
	var u contentUpdate
	if len(payload) > 0 {
		if err := json.Unmarshal(payload, &u); err != nil {
			return fmt.Errorf("decoding content update: %w", err)
		}
	}

	t := c.cloneOrNew(tabID)
	if u.PageContent != "" {
		t.PageContent = u.PageContent
	}
	if u.DOMSnapshot != nil {
		t.DOMSnapshot = u.DOMSnapshot
	}
	if u.ConsoleLogBuffer != nil {
		t.ConsoleLogBuffer = u.ConsoleLogBuffer
	}
	if u.NetworkActivity != nil {
		t.NetworkActivity = u.NetworkActivity
	}
	if u.PerformanceMetrics != nil {
		t.PerformanceMetrics = u.PerformanceMetrics
	}
	if u.AccessibilityTree != nil {
		t.AccessibilityTree = u.AccessibilityTree
	}
	if u.URL != "" {
		t.URL = u.URL
	}
	if u.Title != "" {
		t.Title = u.Title
	}
	c.install(tabID, t)
	return nil
}

// ApplyDebuggerEvent appends an event to the tab's debugger ring buffer,
// capped at the most recent 100 entries (spec §4.D, §4.D Ring buffer).
func (c *Cache) ApplyDebuggerEvent(tabID int, kind string, payload any) {
	t := c.cloneOrNew(tabID)
	events := append(t.DebuggerEvents, DebuggerEvent{Kind: kind, Payload: payload, Timestamp: time.Now()})
	if len(events) > debuggerRingCap {
		events = events[len(events)-debuggerRingCap:]
	}
	t.DebuggerEvents = events
	c.install(tabID, t)
}

// ApplyActionReply caches an action-specific field from a successful
// agent reply (spec §4.D apply-action-reply): e.g. get-page-content
// caches page-content, get-dom-snapshot caches dom-snapshot.
func (c *Cache) ApplyActionReply(tabID int, action string, data json.RawMessage) error {
	t := c.cloneOrNew(tabID)

	switch action {
	case agentproto.ActionGetPageContent:
		var payload struct {
			Content string `json:"content"`
			URL     string `json:"url"`
			Title   string `json:"title"`
		}
		if err := json.Unmarshal(data, &payload); err != nil {
			return err
		}
		t.PageContent = payload.Content
		if payload.URL != "" {
			t.URL = payload.URL
		}
		if payload.Title != "" {
			t.Title = payload.Title
		}
	case agentproto.ActionGetDOMSnapshot:
		var node shape.DOMNode
		if err := json.Unmarshal(data, &node); err != nil {
			return err
		}
		t.DOMSnapshot = &node
	case agentproto.ActionGetConsoleMessages:
		var msgs []shape.ConsoleMessage
		if err := json.Unmarshal(data, &msgs); err != nil {
			return err
		}
		t.ConsoleLogBuffer = msgs
	case agentproto.ActionGetNetworkData:
		var reqs []shape.NetworkRequest
		if err := json.Unmarshal(data, &reqs); err != nil {
			return err
		}
		t.NetworkActivity = reqs
	case agentproto.ActionGetPerformanceMetrics:
		var m map[string]any
		if err := json.Unmarshal(data, &m); err != nil {
			return err
		}
		t.PerformanceMetrics = m
	case agentproto.ActionGetAccessibilityTree:
		var tree any
		if err := json.Unmarshal(data, &tree); err != nil {
			return err
		}
		t.AccessibilityTree = tree
	case agentproto.ActionCaptureScreenshot:
		var payload struct {
			Data string `json:"data"`
		}
		if err := json.Unmarshal(data, &payload); err != nil {
			return err
		}
		t.ScreenshotBlob = payload.Data
	default:
		// Actions that do not seed the cache (executeScript, getAllTabs,
		// attach/detachDebugger, cookies, storage, emulate, user-agent)
		// are intentionally not switched on here.
		return nil
	}

	c.install(tabID, t)
	return nil
}

// Delete removes a tab's snapshot, used by an operational cleanup and by
// tests; process exit also implicitly discards everything (spec §3 Tab
// snapshot lifecycle).
func (c *Cache) Delete(tabID int) {
	c.mu.Lock()
	delete(c.tabs, tabID)
	c.mu.Unlock()
}
