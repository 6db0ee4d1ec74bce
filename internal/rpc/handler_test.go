package rpc

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentbridge/devtools-bridge/internal/mcp"
	"github.com/agentbridge/devtools-bridge/internal/resource"
	"github.com/agentbridge/devtools-bridge/internal/snapshot"
)

type fakeDispatcher struct {
	reply json.RawMessage
	err   *mcp.StructuredError
	calls []string
}

func (f *fakeDispatcher) Dispatch(ctx context.Context, action string, params map[string]any, tabID *int, timeout *time.Duration) (json.RawMessage, *mcp.StructuredError) {
	f.calls = append(f.calls, action)
	if f.err != nil {
		return nil, f.err
	}
	return f.reply, nil
}

func newTestHandler(d *fakeDispatcher) *Handler {
	cache := snapshot.NewCache()
	reader := resource.NewReader(cache, 50000, 500)
	return NewHandler(d, reader, SizeCaps{MaxHTML: 50000, MaxText: 30000, MaxDOMNodes: 500, MaxRequestBody: 10000, MaxResponseBody: 10000})
}

func TestHandleInitialize(t *testing.T) {
	h := newTestHandler(&fakeDispatcher{})
	resp := h.Handle(context.Background(), json.RawMessage(`{"jsonrpc":"2.0","id":1,"method":"initialize"}`))
	require.NotNil(t, resp)
	require.Nil(t, resp.Error)
	result, ok := resp.Result.(mcp.InitializeResult)
	require.True(t, ok)
	assert.Equal(t, "devtools-bridge", result.ServerInfo.Name)
}

func TestHandleNotificationReturnsNil(t *testing.T) {
	h := newTestHandler(&fakeDispatcher{})
	resp := h.Handle(context.Background(), json.RawMessage(`{"jsonrpc":"2.0","method":"notifications/initialized"}`))
	assert.Nil(t, resp)
}

func TestHandleToolsList(t *testing.T) {
	h := newTestHandler(&fakeDispatcher{})
	resp := h.Handle(context.Background(), json.RawMessage(`{"jsonrpc":"2.0","id":1,"method":"tools/list"}`))
	result, ok := resp.Result.(mcp.ToolsListResult)
	require.True(t, ok)
	assert.Len(t, result.Tools, 11)
}

func TestHandleUnknownMethod(t *testing.T) {
	h := newTestHandler(&fakeDispatcher{})
	resp := h.Handle(context.Background(), json.RawMessage(`{"jsonrpc":"2.0","id":1,"method":"bogus"}`))
	require.NotNil(t, resp.Error)
	assert.Equal(t, mcp.CodeUnknownMethod, resp.Error.Code)
}

func TestHandleToolsCallGetBrowserTabs(t *testing.T) {
	d := &fakeDispatcher{reply: json.RawMessage(`[{"id":7,"url":"https://example.com"}]`)}
	h := newTestHandler(d)
	resp := h.Handle(context.Background(), json.RawMessage(`{"jsonrpc":"2.0","id":1,"method":"tools/call","params":{"name":"get_browser_tabs","arguments":{}}}`))
	require.Nil(t, resp.Error)
	result, ok := resp.Result.(*mcp.ToolResult)
	require.True(t, ok)
	require.Len(t, result.Content, 1)
	assert.JSONEq(t, `[{"id":7,"url":"https://example.com"}]`, result.Content[0].Text)
	assert.Equal(t, []string{"getAllTabs"}, d.calls)
}

func TestHandleToolsCallUnknownTool(t *testing.T) {
	h := newTestHandler(&fakeDispatcher{})
	resp := h.Handle(context.Background(), json.RawMessage(`{"jsonrpc":"2.0","id":1,"method":"tools/call","params":{"name":"no_such_tool"}}`))
	require.NotNil(t, resp.Error)
	assert.Equal(t, mcp.CodeUnknownMethod, resp.Error.Code)
}

func TestHandleToolsCallPropagatesDispatchError(t *testing.T) {
	d := &fakeDispatcher{err: mcp.NewError(mcp.ErrNoPeer, "no browser extensions connected")}
	h := newTestHandler(d)
	resp := h.Handle(context.Background(), json.RawMessage(`{"jsonrpc":"2.0","id":1,"method":"tools/call","params":{"name":"get_browser_tabs","arguments":{}}}`))
	require.NotNil(t, resp.Error)
	assert.Equal(t, "NO-PEER", resp.Error.Data.(map[string]any)["code"])
}

func TestHandleToolsCallExecuteJavascriptRequiresCode(t *testing.T) {
	h := newTestHandler(&fakeDispatcher{})
	resp := h.Handle(context.Background(), json.RawMessage(`{"jsonrpc":"2.0","id":1,"method":"tools/call","params":{"name":"execute_javascript","arguments":{}}}`))
	require.NotNil(t, resp.Error)
	assert.Equal(t, mcp.CodeInvalidParams, resp.Error.Code)
}

func TestConsoleMessagesPagination(t *testing.T) {
	messages := `[`
	for i := 0; i < 10; i++ {
		if i > 0 {
			messages += ","
		}
		messages += `{"level":"error","text":"m"}`
	}
	messages += `]`
	d := &fakeDispatcher{reply: json.RawMessage(messages)}
	h := newTestHandler(d)

	resp := h.Handle(context.Background(), json.RawMessage(`{"jsonrpc":"2.0","id":1,"method":"tools/call","params":{"name":"get_console_messages","arguments":{"pageSize":4}}}`))
	require.Nil(t, resp.Error)
	result := resp.Result.(*mcp.ToolResult)
	var page struct {
		Messages   []map[string]any `json:"messages"`
		Count      int              `json:"count"`
		Total      int              `json:"total"`
		NextCursor string           `json:"nextCursor"`
		HasMore    bool             `json:"hasMore"`
	}
	require.NoError(t, json.Unmarshal([]byte(result.Content[0].Text), &page))
	assert.Len(t, page.Messages, 4)
	assert.Equal(t, 4, page.Count)
	assert.Equal(t, 10, page.Total)
	assert.True(t, page.HasMore)
	assert.NotEmpty(t, page.NextCursor)

	resp2 := h.Handle(context.Background(), json.RawMessage(`{"jsonrpc":"2.0","id":2,"method":"tools/call","params":{"name":"get_console_messages","arguments":{"pageSize":4,"cursor":"`+page.NextCursor+`"}}}`))
	require.Nil(t, resp2.Error)
	result2 := resp2.Result.(*mcp.ToolResult)
	var page2 struct {
		Messages []map[string]any `json:"messages"`
		Total    int              `json:"total"`
		HasMore  bool             `json:"hasMore"`
	}
	require.NoError(t, json.Unmarshal([]byte(result2.Content[0].Text), &page2))
	assert.Len(t, page2.Messages, 4)
	assert.Equal(t, 10, page2.Total)
	assert.True(t, page2.HasMore)
}

func TestResourcesReadRequiresURI(t *testing.T) {
	h := newTestHandler(&fakeDispatcher{})
	resp := h.Handle(context.Background(), json.RawMessage(`{"jsonrpc":"2.0","id":1,"method":"resources/read","params":{}}`))
	require.NotNil(t, resp.Error)
	assert.Equal(t, mcp.CodeInvalidParams, resp.Error.Code)
}
