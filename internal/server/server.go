package server

import (
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/agentbridge/devtools-bridge/internal/agent"
	"github.com/agentbridge/devtools-bridge/internal/config"
	"github.com/agentbridge/devtools-bridge/internal/middleware"
	"github.com/agentbridge/devtools-bridge/internal/mux"
	"github.com/agentbridge/devtools-bridge/internal/resource"
	"github.com/agentbridge/devtools-bridge/internal/rpc"
	"github.com/agentbridge/devtools-bridge/internal/snapshot"
)

// Server owns every component and exposes the HTTP/WebSocket surface of
// spec §6.3.
type Server struct {
	cfg        *config.Config
	hub        *agent.Hub
	cache      *snapshot.Cache
	dispatcher *mux.Dispatcher
	reader     *resource.Reader
	rpcHandler *rpc.Handler
	engine     *gin.Engine
	upgrader   websocket.Upgrader
}

// New wires every component per spec §5's dependency graph: D and the hub
// are independent; F depends on the hub (as a Sender source) and D (as a
// post-reply write sink); G depends on F and H; I depends on all of them.
func New(cfg *config.Config) *Server {
	cache := snapshot.NewCache()
	hub := agent.NewHub(cfg.StaleThreshold, cfg.SweepInterval)
	dispatcher := mux.NewDispatcher(newHubSelector(hub), cache, cfg)
	reader := resource.NewReader(cache, cfg.MaxHTML, cfg.MaxDOMNodes)
	rpcHandler := rpc.NewHandler(dispatcher, reader, rpc.SizeCaps{
		MaxHTML:         cfg.MaxHTML,
		MaxText:         cfg.MaxText,
		MaxDOMNodes:     cfg.MaxDOMNodes,
		MaxRequestBody:  cfg.MaxRequestBody,
		MaxResponseBody: cfg.MaxResponseBody,
	})

	s := &Server{
		cfg:        cfg,
		hub:        hub,
		cache:      cache,
		dispatcher: dispatcher,
		reader:     reader,
		rpcHandler: rpcHandler,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
	s.engine = s.newEngine()
	return s
}

func (s *Server) newEngine() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestID())
	r.Use(middleware.StructuredLogger())
	// The request timeout must outlast the longest (clamped) action deadline.
	tc := middleware.DefaultTimeoutConfig()
	tc.Timeout = s.cfg.MaxActionTimeout + 5*time.Second
	r.Use(middleware.Timeout(tc))
	r.Use(middleware.DefaultSizeLimiter())

	r.POST("/mcp", s.handleMCP)
	r.GET("/health", s.handleHealth)
	r.POST("/cleanup-connections", s.handleCleanup)
	r.GET("/ws", s.handleWebSocket)
	return r
}

// Engine exposes the underlying gin engine, e.g. for httptest.Server in
// end-to-end tests.
func (s *Server) Engine() *gin.Engine { return s.engine }

// HTTPServer builds the *http.Server cmd/devtools-bridge drives directly,
// so it owns ListenAndServe/Shutdown and can do graceful shutdown on a
// signal the way streamspace's api/cmd/main.go does (security timeouts
// included, matching that file's "prevent slow loris" rationale).
func (s *Server) HTTPServer() *http.Server {
	return &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.engine,
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      s.cfg.MaxActionTimeout + 10*time.Second, // outlasts the longest clamped action deadline
		IdleTimeout:       120 * time.Second,
		MaxHeaderBytes:    1 << 20,
	}
}

// RunSweepLoop starts the hub's stale-session sweep loop; intended to be
// run in its own goroutine alongside the HTTP server.
func (s *Server) RunSweepLoop() { s.hub.Run() }

// Shutdown stops the background sweep loop. The HTTP listener itself is
// torn down by the caller via (*http.Server).Shutdown.
func (s *Server) Shutdown() {
	s.hub.Stop()
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":         "ok",
		"connections":    s.hub.ActiveCount(),
		"port":           addrPort(s.cfg.Addr),
		"activeSessions": s.hub.ActiveCount(),
		"totalSessions":  s.hub.Count(),
		"pendingCalls":   s.dispatcher.PendingCount(),
		"timestamp":      time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) handleCleanup(c *gin.Context) {
	evicted := s.hub.Sweep()
	c.JSON(http.StatusOK, gin.H{
		"evicted":        evicted,
		"activeSessions": s.hub.ActiveCount(),
	})
}

// addrPort extracts the port from a listen address like ":8787" or
// "0.0.0.0:8787", for GET /health's documented port field (spec §6.1).
func addrPort(addr string) string {
	_, port, err := net.SplitHostPort(addr)
	if err != nil {
		return addr
	}
	return port
}
