// Package rpc implements the client-facing JSON-RPC 2.0 surface of spec
// §4.G: method dispatch for initialize/tools/list/resources/list/
// resources/read/tools/call, argument validation, and the glue that
// drives a tool call through F (internal/mux), shapes the raw agent
// reply through C (internal/shape) and B (internal/pagination), and
// returns a JSON-RPC result.
package rpc

import (
	"context"
	"encoding/json"
	"time"

	"github.com/agentbridge/devtools-bridge/internal/agentproto"
	"github.com/agentbridge/devtools-bridge/internal/logging"
	"github.com/agentbridge/devtools-bridge/internal/mcp"
	"github.com/agentbridge/devtools-bridge/internal/pagination"
	"github.com/agentbridge/devtools-bridge/internal/resource"
	"github.com/agentbridge/devtools-bridge/internal/shape"
)

const protocolVersion = "2024-11-05"

// Dispatcher is the subset of *mux.Dispatcher the handler needs.
type Dispatcher interface {
	Dispatch(ctx context.Context, action string, params map[string]any, tabID *int, callerTimeout *time.Duration) (json.RawMessage, *mcp.StructuredError)
}

// SizeCaps is the subset of *config.Config this package needs for
// default page/body/text limits (spec §6.3).
type SizeCaps struct {
	MaxHTML         int
	MaxText         int
	MaxDOMNodes     int
	MaxRequestBody  int
	MaxResponseBody int
}

// Handler is the G component.
type Handler struct {
	dispatcher Dispatcher
	reader     *resource.Reader
	caps       SizeCaps

	consolePager *pagination.Store[shape.ConsoleMessage]
	networkPager *pagination.Store[map[string]any]
}

func NewHandler(dispatcher Dispatcher, reader *resource.Reader, caps SizeCaps) *Handler {
	return &Handler{
		dispatcher:   dispatcher,
		reader:       reader,
		caps:         caps,
		consolePager: pagination.NewStore[shape.ConsoleMessage](),
		networkPager: pagination.NewStore[map[string]any](),
	}
}

// Handle decodes and dispatches a single JSON-RPC request. A notification
// (per spec §6.1, "notifications/initialized" has no id and produces no
// response) returns a nil Response; the caller must send HTTP 202/204 in
// that case rather than a body.
func (h *Handler) Handle(ctx context.Context, raw json.RawMessage) *mcp.Response {
	var req mcp.Request
	if err := json.Unmarshal(raw, &req); err != nil {
		return mcp.ErrorResponse(nil, mcp.NewError(mcp.ErrInvalidParams, "malformed JSON-RPC request"))
	}

	switch req.Method {
	case "initialize":
		return mcp.ResultResponse(req.ID, h.initialize())
	case "notifications/initialized":
		return nil
	case "tools/list":
		return mcp.ResultResponse(req.ID, mcp.ToolsListResult{Tools: toolDescriptors()})
	case "resources/list":
		return mcp.ResultResponse(req.ID, mcp.ResourcesListResult{Resources: h.reader.Available()})
	case "resources/read":
		result, serr := h.resourcesRead(req.Params)
		if serr != nil {
			return mcp.ErrorResponse(req.ID, serr)
		}
		return mcp.ResultResponse(req.ID, result)
	case "tools/call":
		result, serr := h.toolsCall(ctx, req.Params)
		if serr != nil {
			return mcp.ErrorResponse(req.ID, serr)
		}
		return mcp.ResultResponse(req.ID, result)
	default:
		return mcp.ErrorResponse(req.ID, mcp.NewError(mcp.ErrUnknownMethod, "unknown method: "+req.Method))
	}
}

func (h *Handler) initialize() mcp.InitializeResult {
	return mcp.InitializeResult{
		ProtocolVersion: protocolVersion,
		ServerInfo:      mcp.ServerInfo{Name: "devtools-bridge", Version: "0.1.0"},
		Capabilities: mcp.Capabilities{
			Tools:     map[string]any{},
			Resources: map[string]any{},
		},
	}
}

type resourceReadParams struct {
	URI string `json:"uri"`
}

func (h *Handler) resourcesRead(raw json.RawMessage) (*mcp.ResourceReadResult, *mcp.StructuredError) {
	var p resourceReadParams
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, mcp.NewError(mcp.ErrInvalidParams, "resources/read requires a uri string", mcp.WithParam("uri"))
		}
	}
	if p.URI == "" {
		return nil, mcp.NewError(mcp.ErrInvalidParams, "uri is required", mcp.WithParam("uri"))
	}

	parsed, serr := resource.ParseURI(p.URI)
	if serr != nil {
		return nil, serr
	}
	data, serr := h.reader.Read(parsed)
	if serr != nil {
		return nil, serr
	}
	return &mcp.ResourceReadResult{Contents: []mcp.ResourceContent{{
		URI:      p.URI,
		MimeType: "application/json",
		Text:     string(data),
	}}}, nil
}

type toolCallParams struct {
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments"`
}

func (h *Handler) toolsCall(ctx context.Context, raw json.RawMessage) (*mcp.ToolResult, *mcp.StructuredError) {
	var p toolCallParams
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, mcp.NewError(mcp.ErrInvalidParams, "malformed tools/call params")
		}
	}
	if p.Name == "" {
		return nil, mcp.NewError(mcp.ErrInvalidParams, "name is required", mcp.WithParam("name"))
	}

	fn, ok := dispatchTable[p.Name]
	if !ok {
		return nil, mcp.NewError(mcp.ErrUnknownMethod, "unknown tool: "+p.Name)
	}

	args := p.Arguments
	if len(args) == 0 {
		args = json.RawMessage(`{}`)
	}
	result, serr := fn(h, ctx, args)
	if serr != nil {
		logging.RPC().Debug().Str("tool", p.Name).Str("code", serr.Tag).Msg("tool call failed")
		return nil, serr
	}
	return result, nil
}

// dispatchTable maps a tool name to its implementation. Declared after
// Handler so each toolXxx method can be referenced by value.
var dispatchTable = map[string]func(*Handler, context.Context, json.RawMessage) (*mcp.ToolResult, *mcp.StructuredError){
	"get_page_content":        (*Handler).toolGetPageContent,
	"get_dom_snapshot":        (*Handler).toolGetDOMSnapshot,
	"get_console_messages":    (*Handler).toolGetConsoleMessages,
	"get_network_requests":    (*Handler).toolGetNetworkRequests,
	"capture_screenshot":      (*Handler).toolCaptureScreenshot,
	"execute_javascript":      (*Handler).toolExecuteJavascript,
	"get_performance_metrics": (*Handler).toolGetPerformanceMetrics,
	"get_accessibility_tree":  (*Handler).toolGetAccessibilityTree,
	"get_browser_tabs":        (*Handler).toolGetBrowserTabs,
	"attach_debugger":         (*Handler).toolAttachDebugger,
	"detach_debugger":         (*Handler).toolDetachDebugger,
}

// dispatchAction is the common plumbing every tool uses: send action to F,
// optionally overriding the default timeout.
func (h *Handler) dispatchAction(ctx context.Context, action string, params map[string]any, tabID *int, timeout *time.Duration) (json.RawMessage, *mcp.StructuredError) {
	return h.dispatcher.Dispatch(ctx, action, params, tabID, timeout)
}
