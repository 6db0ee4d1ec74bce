package server

import (
	"github.com/gin-gonic/gin"

	"github.com/agentbridge/devtools-bridge/internal/agent"
	"github.com/agentbridge/devtools-bridge/internal/logging"
)

// handleWebSocket implements GET /ws: upgrades to a WebSocket, wraps the
// connection in an agent.Session, registers it with the hub, and hands
// control to the session's own reader/writer tasks (spec §4.E, §4.I).
func (s *Server) handleWebSocket(c *gin.Context) {
	conn, err := s.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logging.Server().Warn().Err(err).Msg("websocket upgrade failed")
		return
	}

	sessCfg := agent.Config{
		PingInterval:   s.cfg.PingInterval,
		PingTimeout:    s.cfg.PingTimeout,
		HealthFailures: s.cfg.HealthFailures,
		WriteTimeout:   s.cfg.WriteTimeout,
		WriteQueueCap:  s.cfg.WriteQueueDepth,
	}

	sess := agent.NewSession(conn, s.cache, s.dispatcher, sessCfg, func(evicted *agent.Session) {
		s.hub.Unregister(evicted)
		s.dispatcher.EvictSession(evicted.Identity())
	})

	s.hub.Register(sess)
	sess.Activate()
	logging.Server().Info().Str("session_id", sess.ID).Str("remote_addr", c.Request.RemoteAddr).Msg("agent session attached")
}
