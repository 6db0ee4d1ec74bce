package rpc

import (
	"github.com/agentbridge/devtools-bridge/internal/agentproto"
	"github.com/agentbridge/devtools-bridge/internal/mcp"
)

// toolDescriptors is the static list returned by tools/list (spec §6.1,
// §6.3). Input schemas are intentionally loose JSON Schema — each tool
// function in tools_impl.go checks its own arguments at dispatch time,
// not a generic schema validator: missing required fields and
// out-of-range enumerated values (screenshot format and quality) are
// rejected as invalid params, while numeric limits such as maxDepth and
// the accessibility-tree timeout are clamped rather than rejected.
func toolDescriptors() []mcp.Tool {
	return []mcp.Tool{
		{
			Name:        "get_page_content",
			Description: "Return the currently-cached or freshly-captured page content for a tab.",
			InputSchema: objectSchema(map[string]any{
				"tabId":           intProp(),
				"includeMetadata": boolProp(),
				"includeHtml":     boolProp(),
				"maxTextLength":   intProp(),
			}, nil),
		},
		{
			Name:        "get_dom_snapshot",
			Description: "Return a filtered, truncated DOM snapshot for a tab.",
			InputSchema: objectSchema(map[string]any{
				"tabId":          intProp(),
				"selector":       stringProp(),
				"maxDepth":       intProp(),
				"maxNodes":       intProp(),
				"includeStyles":  boolProp(),
				"excludeScripts": boolProp(),
				"excludeStyles":  boolProp(),
			}, nil),
		},
		{
			Name:        "get_console_messages",
			Description: "Return filtered, paginated console messages for a tab.",
			InputSchema: objectSchema(map[string]any{
				"tabId":      intProp(),
				"logLevels":  arrayProp("string"),
				"searchTerm": stringProp(),
				"since":      stringProp(),
				"pageSize":   intProp(),
				"cursor":     stringProp(),
			}, nil),
		},
		{
			Name:        "get_network_requests",
			Description: "Return filtered, paginated network requests for a tab.",
			InputSchema: objectSchema(map[string]any{
				"tabId":                 intProp(),
				"method":                stringProp(),
				"status":                arrayProp("integer"),
				"resourceType":          arrayProp("string"),
				"domain":                stringProp(),
				"failedOnly":            boolProp(),
				"pageSize":              intProp(),
				"cursor":                stringProp(),
				"includeResponseBodies": boolProp(),
				"includeRequestBodies":  boolProp(),
			}, nil),
		},
		{
			Name:        "capture_screenshot",
			Description: "Capture a screenshot of a tab.",
			InputSchema: objectSchema(map[string]any{
				"tabId":   intProp(),
				"format":  stringProp(),
				"quality": intProp(),
			}, nil),
		},
		{
			Name:        "execute_javascript",
			Description: "Execute JavaScript in a tab and return the result.",
			InputSchema: objectSchema(map[string]any{
				"tabId": intProp(),
				"code":  stringProp(),
			}, []string{"code"}),
		},
		{
			Name:        "get_performance_metrics",
			Description: "Return performance metrics for a tab.",
			InputSchema: objectSchema(map[string]any{"tabId": intProp()}, nil),
		},
		{
			Name:        "get_accessibility_tree",
			Description: "Return the accessibility tree for a tab.",
			InputSchema: objectSchema(map[string]any{
				"tabId":   intProp(),
				"timeout": intProp(),
			}, nil),
		},
		{
			Name:        "get_browser_tabs",
			Description: "List all open browser tabs.",
			InputSchema: objectSchema(map[string]any{"tabId": intProp()}, nil),
		},
		{
			Name:        "attach_debugger",
			Description: "Attach the debugger to a tab.",
			InputSchema: objectSchema(map[string]any{"tabId": intProp()}, []string{"tabId"}),
		},
		{
			Name:        "detach_debugger",
			Description: "Detach the debugger from a tab.",
			InputSchema: objectSchema(map[string]any{"tabId": intProp()}, []string{"tabId"}),
		},
	}
}

func objectSchema(props map[string]any, required []string) map[string]any {
	s := map[string]any{"type": "object", "properties": props}
	if len(required) > 0 {
		s["required"] = required
	}
	return s
}

func intProp() map[string]any    { return map[string]any{"type": "integer"} }
func stringProp() map[string]any { return map[string]any{"type": "string"} }
func boolProp() map[string]any   { return map[string]any{"type": "boolean"} }
func arrayProp(itemType string) map[string]any {
	return map[string]any{"type": "array", "items": map[string]any{"type": itemType}}
}

// actionForTool maps a tool name to its agent action name, the closed set
// of spec §6.2. Tools that are not a 1:1 action dispatch (none, currently
// — every tool round-trips through F) are not special-cased here.
var actionForTool = map[string]string{
	"get_page_content":        agentproto.ActionGetPageContent,
	"get_dom_snapshot":        agentproto.ActionGetDOMSnapshot,
	"get_console_messages":    agentproto.ActionGetConsoleMessages,
	"get_network_requests":    agentproto.ActionGetNetworkData,
	"capture_screenshot":      agentproto.ActionCaptureScreenshot,
	"execute_javascript":      agentproto.ActionExecuteScript,
	"get_performance_metrics": agentproto.ActionGetPerformanceMetrics,
	"get_accessibility_tree":  agentproto.ActionGetAccessibilityTree,
	"get_browser_tabs":        agentproto.ActionGetAllTabs,
	"attach_debugger":         agentproto.ActionAttachDebugger,
	"detach_debugger":         agentproto.ActionDetachDebugger,
}
