package server

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/agentbridge/devtools-bridge/internal/logging"
)

// handleMCP implements POST /mcp: one JSON-RPC 2.0 request in, one
// response out (spec §6.1). Only the notifications/initialized
// notification yields no body and a 204; every other request, with or
// without an id, receives a JSON-RPC response body.
func (s *Server) handleMCP(c *gin.Context) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "failed to read request body"})
		return
	}

	resp := s.rpcHandler.Handle(c.Request.Context(), body)
	if resp == nil {
		c.Status(http.StatusNoContent)
		return
	}
	if resp.Error != nil {
		logging.RPC().Debug().Int("code", resp.Error.Code).Str("message", resp.Error.Message).Msg("mcp request failed")
	}
	c.JSON(http.StatusOK, resp)
}
