package rpc

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/agentbridge/devtools-bridge/internal/agentproto"
	"github.com/agentbridge/devtools-bridge/internal/buffers"
	"github.com/agentbridge/devtools-bridge/internal/mcp"
	"github.com/agentbridge/devtools-bridge/internal/shape"
)

// intOrSlice and stringOrSlice decode a tool argument the schema documents
// as "scalar or list" (spec §6.3: status?, resourceType?) — a client may
// send either `404` or `[404, 500]`.
type intOrSlice []int

func (l *intOrSlice) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || string(trimmed) == "null" {
		*l = nil
		return nil
	}
	if trimmed[0] == '[' {
		var vs []int
		if err := json.Unmarshal(data, &vs); err != nil {
			return err
		}
		*l = vs
		return nil
	}
	var v int
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*l = []int{v}
	return nil
}

type stringOrSlice []string

func (l *stringOrSlice) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || string(trimmed) == "null" {
		*l = nil
		return nil
	}
	if trimmed[0] == '[' {
		var vs []string
		if err := json.Unmarshal(data, &vs); err != nil {
			return err
		}
		*l = vs
		return nil
	}
	var v string
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*l = []string{v}
	return nil
}

// jsonResult marshals v and wraps it as a single text content block, the
// shape every tool in this file returns its payload as (spec §6.1 tools/
// call result: content is an array of blocks).
func jsonResult(v any) (*mcp.ToolResult, *mcp.StructuredError) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, mcp.NewError(mcp.ErrAgentError, "failed to encode tool result")
	}
	return mcp.TextResult(string(b)), nil
}

// pagedResult assembles the common shape every paginated tool returns
// (spec.md §6.3/S2): the page's items under itemsKey, plus count, total,
// hasMore, nextCursor, the filters that produced this page, and a
// human-readable summary message.
func pagedResult[T any](itemsKey string, items []T, total int, hasMore bool, nextCursor string, filters map[string]any) (*mcp.ToolResult, *mcp.StructuredError) {
	var nc any
	if nextCursor != "" {
		nc = nextCursor
	}
	message := fmt.Sprintf("returned %d of %d", len(items), total)
	if hasMore {
		message += ", more available"
	}
	return jsonResult(map[string]any{
		itemsKey:     items,
		"count":      len(items),
		"total":      total,
		"hasMore":    hasMore,
		"nextCursor": nc,
		"filters":    filters,
		"message":    message,
	})
}

func dispatchAndDecode(h *Handler, ctx context.Context, action string, params map[string]any, tabID *int, timeout *time.Duration, out any) *mcp.StructuredError {
	data, serr := h.dispatchAction(ctx, action, params, tabID, timeout)
	if serr != nil {
		return serr
	}
	if out == nil || len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return mcp.NewError(mcp.ErrAgentError, "malformed reply from browser agent for "+action)
	}
	return nil
}

// --- get_page_content ---

type pageContentArgs struct {
	TabID           *int  `json:"tabId"`
	IncludeMetadata *bool `json:"includeMetadata"`
	IncludeHTML     *bool `json:"includeHtml"`
	MaxTextLength   *int  `json:"maxTextLength"`
}

type pageContentReply struct {
	Content string `json:"content"`
	URL     string `json:"url"`
	Title   string `json:"title"`
}

func (h *Handler) toolGetPageContent(ctx context.Context, raw json.RawMessage) (*mcp.ToolResult, *mcp.StructuredError) {
	var a pageContentArgs
	if err := json.Unmarshal(raw, &a); err != nil {
		return nil, mcp.NewError(mcp.ErrInvalidParams, "malformed arguments")
	}
	includeHTML := a.IncludeHTML != nil && *a.IncludeHTML
	maxLen := h.caps.MaxText
	if includeHTML {
		maxLen = h.caps.MaxHTML
	}
	if a.MaxTextLength != nil && *a.MaxTextLength > 0 {
		maxLen = *a.MaxTextLength
	}

	var reply pageContentReply
	if serr := dispatchAndDecode(h, ctx, agentproto.ActionGetPageContent,
		map[string]any{"includeHtml": includeHTML}, a.TabID, nil, &reply); serr != nil {
		return nil, serr
	}

	text, originalLen, truncated := buffers.TruncateText(reply.Content, maxLen)
	out := map[string]any{
		"content":         text,
		"url":             reply.URL,
		"title":           reply.Title,
		"truncated":       truncated,
		"originalLength":  originalLen,
	}
	if a.IncludeMetadata != nil && !*a.IncludeMetadata {
		delete(out, "url")
		delete(out, "title")
	}
	return jsonResult(out)
}

// --- get_dom_snapshot ---

type domSnapshotArgs struct {
	TabID          *int   `json:"tabId"`
	Selector       string `json:"selector"`
	MaxDepth       int    `json:"maxDepth"`
	MaxNodes       int    `json:"maxNodes"`
	IncludeStyles  bool   `json:"includeStyles"`
	ExcludeScripts *bool  `json:"excludeScripts"`
	ExcludeStyles  *bool  `json:"excludeStyles"`
}

func (h *Handler) toolGetDOMSnapshot(ctx context.Context, raw json.RawMessage) (*mcp.ToolResult, *mcp.StructuredError) {
	var a domSnapshotArgs
	if err := json.Unmarshal(raw, &a); err != nil {
		return nil, mcp.NewError(mcp.ErrInvalidParams, "malformed arguments")
	}
	maxDepth := a.MaxDepth
	if maxDepth <= 0 {
		maxDepth = 5
	}
	if maxDepth > 15 {
		maxDepth = 15
	}
	excludeScripts := a.ExcludeScripts == nil || *a.ExcludeScripts
	excludeStyles := a.ExcludeStyles == nil || *a.ExcludeStyles

	var root shape.DOMNode
	if serr := dispatchAndDecode(h, ctx, agentproto.ActionGetDOMSnapshot, nil, a.TabID, nil, &root); serr != nil {
		return nil, serr
	}

	filtered, visited, truncated, err := shape.FilterDOM(&root, shape.DOMFilter{
		Selector:       a.Selector,
		ExcludeScripts: excludeScripts,
		ExcludeStyles:  excludeStyles,
		StripComputed:  !a.IncludeStyles,
		MaxDepth:       maxDepth,
		MaxNodes:       a.MaxNodes,
	})
	if err != nil {
		return nil, mcp.NewError(mcp.ErrNotFound, err.Error(), mcp.WithParam("selector"))
	}

	return jsonResult(map[string]any{
		"dom":          filtered,
		"nodesVisited": visited,
		"truncated":    truncated,
	})
}

// --- get_console_messages ---

type consoleMessagesArgs struct {
	TabID      *int     `json:"tabId"`
	LogLevels  []string `json:"logLevels"`
	SearchTerm string   `json:"searchTerm"`
	Since      string   `json:"since"`
	PageSize   int      `json:"pageSize"`
	Cursor     string   `json:"cursor"`
}

func (h *Handler) toolGetConsoleMessages(ctx context.Context, raw json.RawMessage) (*mcp.ToolResult, *mcp.StructuredError) {
	var a consoleMessagesArgs
	if err := json.Unmarshal(raw, &a); err != nil {
		return nil, mcp.NewError(mcp.ErrInvalidParams, "malformed arguments")
	}
	pageSize := a.PageSize
	if pageSize <= 0 {
		pageSize = 50
	}

	if a.Cursor != "" {
		page, err := h.consolePager.Next(a.Cursor, pageSize)
		if err != nil {
			return nil, mcp.NewError(mcp.ErrNotFound, "unknown or expired cursor", mcp.WithParam("cursor"), mcp.WithHint("re-query without a cursor"))
		}
		return pagedResult("messages", page.Items, page.Total, page.HasMore, page.NextCursor, nil)
	}

	var since *time.Time
	if a.Since != "" {
		t, err := time.Parse(time.RFC3339, a.Since)
		if err != nil {
			return nil, mcp.NewError(mcp.ErrInvalidParams, "since must be RFC3339", mcp.WithParam("since"))
		}
		since = &t
	}

	var messages []shape.ConsoleMessage
	if serr := dispatchAndDecode(h, ctx, agentproto.ActionGetConsoleMessages, nil, a.TabID, nil, &messages); serr != nil {
		return nil, serr
	}

	filtered := shape.FilterConsole(messages, shape.ConsoleFilter{
		Levels:     a.LogLevels,
		SearchTerm: a.SearchTerm,
		Since:      since,
	})

	page := h.consolePager.Open(filtered, pageSize)
	filters := map[string]any{"logLevels": a.LogLevels, "searchTerm": a.SearchTerm, "since": a.Since}
	return pagedResult("messages", page.Items, page.Total, page.HasMore, page.NextCursor, filters)
}

// --- get_network_requests ---

type networkRequestsArgs struct {
	TabID                 *int          `json:"tabId"`
	Method                string        `json:"method"`
	Status                intOrSlice    `json:"status"`
	ResourceType          stringOrSlice `json:"resourceType"`
	Domain                string        `json:"domain"`
	FailedOnly            bool          `json:"failedOnly"`
	PageSize              int           `json:"pageSize"`
	Cursor                string        `json:"cursor"`
	IncludeRequestBodies  bool          `json:"includeRequestBodies"`
	IncludeResponseBodies bool          `json:"includeResponseBodies"`
}

func (h *Handler) toolGetNetworkRequests(ctx context.Context, raw json.RawMessage) (*mcp.ToolResult, *mcp.StructuredError) {
	var a networkRequestsArgs
	if err := json.Unmarshal(raw, &a); err != nil {
		return nil, mcp.NewError(mcp.ErrInvalidParams, "malformed arguments")
	}
	pageSize := a.PageSize
	if pageSize <= 0 {
		pageSize = 50
	}

	if a.Cursor != "" {
		page, err := h.networkPager.Next(a.Cursor, pageSize)
		if err != nil {
			return nil, mcp.NewError(mcp.ErrNotFound, "unknown or expired cursor", mcp.WithParam("cursor"), mcp.WithHint("re-query without a cursor"))
		}
		return pagedResult("requests", page.Items, page.Total, page.HasMore, page.NextCursor, nil)
	}

	var requests []shape.NetworkRequest
	if serr := dispatchAndDecode(h, ctx, agentproto.ActionGetNetworkData, nil, a.TabID, nil, &requests); serr != nil {
		return nil, serr
	}

	shaped := shape.FilterNetwork(requests, shape.NetworkFilter{
		Method:                a.Method,
		Status:                []int(a.Status),
		ResourceType:          []string(a.ResourceType),
		Domain:                a.Domain,
		FailedOnly:            a.FailedOnly,
		IncludeRequestBodies:  a.IncludeRequestBodies,
		IncludeResponseBodies: a.IncludeResponseBodies,
		BodyByteLimit:         h.caps.MaxRequestBody,
	})

	page := h.networkPager.Open(shaped, pageSize)
	filters := map[string]any{
		"method":       a.Method,
		"status":       []int(a.Status),
		"resourceType": []string(a.ResourceType),
		"domain":       a.Domain,
		"failedOnly":   a.FailedOnly,
	}
	return pagedResult("requests", page.Items, page.Total, page.HasMore, page.NextCursor, filters)
}

// --- capture_screenshot ---

type screenshotArgs struct {
	TabID   *int   `json:"tabId"`
	Format  string `json:"format"`
	Quality int    `json:"quality"`
}

func (h *Handler) toolCaptureScreenshot(ctx context.Context, raw json.RawMessage) (*mcp.ToolResult, *mcp.StructuredError) {
	var a screenshotArgs
	if err := json.Unmarshal(raw, &a); err != nil {
		return nil, mcp.NewError(mcp.ErrInvalidParams, "malformed arguments")
	}
	format := a.Format
	if format == "" {
		format = "png"
	}
	if format != "png" && format != "jpeg" {
		return nil, mcp.NewError(mcp.ErrInvalidParams, "format must be png or jpeg", mcp.WithParam("format"))
	}
	if a.Quality < 0 || a.Quality > 100 {
		return nil, mcp.NewError(mcp.ErrInvalidParams, "quality must be between 0 and 100", mcp.WithParam("quality"))
	}

	var reply struct {
		Data string `json:"data"`
	}
	if serr := dispatchAndDecode(h, ctx, agentproto.ActionCaptureScreenshot,
		map[string]any{"format": format, "quality": a.Quality}, a.TabID, nil, &reply); serr != nil {
		return nil, serr
	}

	return &mcp.ToolResult{Content: []mcp.ContentBlock{{Type: "image", Text: reply.Data}}}, nil
}

// --- execute_javascript ---

type executeJavascriptArgs struct {
	TabID *int   `json:"tabId"`
	Code  string `json:"code"`
}

func (h *Handler) toolExecuteJavascript(ctx context.Context, raw json.RawMessage) (*mcp.ToolResult, *mcp.StructuredError) {
	var a executeJavascriptArgs
	if err := json.Unmarshal(raw, &a); err != nil {
		return nil, mcp.NewError(mcp.ErrInvalidParams, "malformed arguments")
	}
	if a.Code == "" {
		return nil, mcp.NewError(mcp.ErrInvalidParams, "code is required", mcp.WithParam("code"))
	}

	data, serr := h.dispatchAction(ctx, agentproto.ActionExecuteScript, map[string]any{"code": a.Code}, a.TabID, nil)
	if serr != nil {
		return nil, serr
	}
	return mcp.TextResult(string(data)), nil
}

// --- get_performance_metrics ---

type tabIDOnlyArgs struct {
	TabID *int `json:"tabId"`
}

func (h *Handler) toolGetPerformanceMetrics(ctx context.Context, raw json.RawMessage) (*mcp.ToolResult, *mcp.StructuredError) {
	var a tabIDOnlyArgs
	if err := json.Unmarshal(raw, &a); err != nil {
		return nil, mcp.NewError(mcp.ErrInvalidParams, "malformed arguments")
	}
	data, serr := h.dispatchAction(ctx, agentproto.ActionGetPerformanceMetrics, nil, a.TabID, nil)
	if serr != nil {
		return nil, serr
	}
	return mcp.TextResult(string(data)), nil
}

// --- get_accessibility_tree ---

type accessibilityTreeArgs struct {
	TabID   *int `json:"tabId"`
	Timeout *int `json:"timeout"`
}

func (h *Handler) toolGetAccessibilityTree(ctx context.Context, raw json.RawMessage) (*mcp.ToolResult, *mcp.StructuredError) {
	var a accessibilityTreeArgs
	if err := json.Unmarshal(raw, &a); err != nil {
		return nil, mcp.NewError(mcp.ErrInvalidParams, "malformed arguments")
	}
	var timeout *time.Duration
	if a.Timeout != nil && *a.Timeout > 0 {
		// timeout is documented in milliseconds (spec.md S3: timeout:5000
		// means 5s), not seconds.
		d := time.Duration(*a.Timeout) * time.Millisecond
		timeout = &d
	}
	data, serr := h.dispatchAction(ctx, agentproto.ActionGetAccessibilityTree, nil, a.TabID, timeout)
	if serr != nil {
		return nil, serr
	}
	return mcp.TextResult(string(data)), nil
}

// --- get_browser_tabs ---

func (h *Handler) toolGetBrowserTabs(ctx context.Context, raw json.RawMessage) (*mcp.ToolResult, *mcp.StructuredError) {
	var a tabIDOnlyArgs
	if err := json.Unmarshal(raw, &a); err != nil {
		return nil, mcp.NewError(mcp.ErrInvalidParams, "malformed arguments")
	}
	data, serr := h.dispatchAction(ctx, agentproto.ActionGetAllTabs, nil, a.TabID, nil)
	if serr != nil {
		return nil, serr
	}
	return mcp.TextResult(string(data)), nil
}

// --- attach_debugger / detach_debugger ---

type requiredTabIDArgs struct {
	TabID *int `json:"tabId"`
}

func (h *Handler) toolAttachDebugger(ctx context.Context, raw json.RawMessage) (*mcp.ToolResult, *mcp.StructuredError) {
	return h.dispatchDebuggerAction(ctx, raw, agentproto.ActionAttachDebugger)
}

func (h *Handler) toolDetachDebugger(ctx context.Context, raw json.RawMessage) (*mcp.ToolResult, *mcp.StructuredError) {
	return h.dispatchDebuggerAction(ctx, raw, agentproto.ActionDetachDebugger)
}

func (h *Handler) dispatchDebuggerAction(ctx context.Context, raw json.RawMessage, action string) (*mcp.ToolResult, *mcp.StructuredError) {
	var a requiredTabIDArgs
	if err := json.Unmarshal(raw, &a); err != nil {
		return nil, mcp.NewError(mcp.ErrInvalidParams, "malformed arguments")
	}
	if a.TabID == nil {
		return nil, mcp.NewError(mcp.ErrInvalidParams, "tabId is required", mcp.WithParam("tabId"))
	}
	data, serr := h.dispatchAction(ctx, action, nil, a.TabID, nil)
	if serr != nil {
		return nil, serr
	}
	return mcp.TextResult(string(data)), nil
}
