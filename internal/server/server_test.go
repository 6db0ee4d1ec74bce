package server

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentbridge/devtools-bridge/internal/agentproto"
	"github.com/agentbridge/devtools-bridge/internal/config"
)

func testConfig() *config.Config {
	c := config.Defaults()
	c.PingInterval = 200 * time.Millisecond
	c.HealthFailures = 2
	c.DefaultActionTimeout = 2 * time.Second
	return &c
}

// dialAgent connects a fake browser agent to /ws and returns the raw
// websocket connection for the test to drive.
func dialAgent(t *testing.T, httpURL string) *websocket.Conn {
	t.Helper()
	wsURL := "ws" + strings.TrimPrefix(httpURL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	return conn
}

// TestEndToEndToolCallHappyPath exercises S1: a tool call over POST /mcp
// is relayed to the attached agent over /ws, answered, and shaped back as
// a JSON-RPC result.
func TestEndToEndToolCallHappyPath(t *testing.T) {
	srv := New(testConfig())
	ts := httptest.NewServer(srv.Engine())
	defer ts.Close()

	agentConn := dialAgent(t, ts.URL)
	defer agentConn.Close()

	// Give the hub a moment to register+activate the session.
	require.Eventually(t, func() bool { return srv.hub.ActiveCount() == 1 }, time.Second, 10*time.Millisecond)

	// Drive the agent side in a goroutine: read the dispatched action
	// frame, reply with a response frame carrying the same requestId.
	done := make(chan struct{})
	go func() {
		defer close(done)
		_, raw, err := agentConn.ReadMessage()
		if err != nil {
			return
		}
		var frame map[string]any
		_ = json.Unmarshal(raw, &frame)
		if frame["action"] != agentproto.ActionGetAllTabs {
			return
		}
		reply := map[string]any{
			"type":      "response",
			"requestId": frame["requestId"],
			"data":      []map[string]any{{"id": 1, "url": "https://example.com"}},
		}
		b, _ := json.Marshal(reply)
		_ = agentConn.WriteMessage(websocket.TextMessage, b)
	}()

	body := `{"jsonrpc":"2.0","id":1,"method":"tools/call","params":{"name":"get_browser_tabs","arguments":{}}}`
	resp, err := http.Post(ts.URL+"/mcp", "application/json", bytes.NewBufferString(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var decoded struct {
		Result struct {
			Content []struct {
				Text string `json:"text"`
			} `json:"content"`
		} `json:"result"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&decoded))
	require.Len(t, decoded.Result.Content, 1)
	assert.Contains(t, decoded.Result.Content[0].Text, "example.com")

	<-done
}

func TestEndToEndNoPeerReturnsStructuredError(t *testing.T) {
	srv := New(testConfig())
	ts := httptest.NewServer(srv.Engine())
	defer ts.Close()

	body := `{"jsonrpc":"2.0","id":1,"method":"tools/call","params":{"name":"get_browser_tabs","arguments":{}}}`
	resp, err := http.Post(ts.URL+"/mcp", "application/json", bytes.NewBufferString(body))
	require.NoError(t, err)
	defer resp.Body.Close()

	var decoded struct {
		Error struct {
			Data map[string]any `json:"data"`
		} `json:"error"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&decoded))
	assert.Equal(t, "NO-PEER", decoded.Error.Data["code"])
}

func TestHealthEndpoint(t *testing.T) {
	srv := New(testConfig())
	ts := httptest.NewServer(srv.Engine())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var decoded map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&decoded))
	assert.Equal(t, "ok", decoded["status"])
	assert.Equal(t, float64(0), decoded["connections"])
	assert.Equal(t, "8787", decoded["port"])
	assert.NotEmpty(t, decoded["timestamp"])
}

func TestCleanupConnectionsReportsActiveSessions(t *testing.T) {
	srv := New(testConfig())
	ts := httptest.NewServer(srv.Engine())
	defer ts.Close()

	agentConn := dialAgent(t, ts.URL)
	defer agentConn.Close()
	require.Eventually(t, func() bool { return srv.hub.ActiveCount() == 1 }, time.Second, 10*time.Millisecond)

	resp, err := http.Post(ts.URL+"/cleanup-connections", "application/json", nil)
	require.NoError(t, err)
	defer resp.Body.Close()

	var decoded map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&decoded))
	assert.Equal(t, float64(0), decoded["evicted"])
	assert.Equal(t, float64(1), decoded["activeSessions"])
}

func TestReconnectEvictsPriorSession(t *testing.T) {
	srv := New(testConfig())
	ts := httptest.NewServer(srv.Engine())
	defer ts.Close()

	first := dialAgent(t, ts.URL)
	defer first.Close()
	require.Eventually(t, func() bool { return srv.hub.ActiveCount() == 1 }, time.Second, 10*time.Millisecond)

	second := dialAgent(t, ts.URL)
	defer second.Close()

	require.Eventually(t, func() bool {
		_, _, err := first.ReadMessage()
		return err != nil
	}, time.Second, 10*time.Millisecond)

	require.Eventually(t, func() bool { return srv.hub.ActiveCount() == 1 }, time.Second, 10*time.Millisecond)
}
