package httpapi

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/MrEthical07/goTrust/middleware"
	"github.com/MrEthical07/goTrust/realtime"
)

// wsToken accepts the same sources as the REST routes plus the token and
// access_token query parameters, since browsers cannot set headers on a
// websocket handshake.
func wsToken(c *gin.Context) string {
	if t := middleware.AccessToken(c.Request); t != "" {
		return t
	}
	if t := strings.TrimSpace(c.Query("token")); t != "" {
		return t
	}
	return strings.TrimSpace(c.Query("access_token"))
}

// websocket authenticates, registers the connection and reads until the peer
// or a forced logout closes it. Unauthenticated sockets are closed with 4401.
func (s *Server) websocket(c *gin.Context) {
	ctx := c.Request.Context()
	token := wsToken(c)

	ws, err := s.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.logger.Warn(ctx, "websocket upgrade failed", "error", err)
		return
	}
	conn := realtime.NewWebsocketConn(ws, s.cfg.WSWriteTimeout)

	if token == "" {
		_ = conn.Close(realtime.CloseForceLogout, "unauthorized")
		return
	}
	res, err := s.engine.ValidateAccess(ctx, token)
	if err != nil {
		_, code := middleware.ErrorStatus(err)
		_ = conn.Close(realtime.CloseForceLogout, code)
		return
	}

	if err := s.registry.Connect(res.AccountID, conn); err != nil {
		_ = conn.Close(realtime.CloseGoingAway, "shutting down")
		return
	}
	defer s.registry.Disconnect(res.AccountID, conn)

	// A ban committed after ValidateAccess kicked before this connection was
	// registered, so check again now that a kick would reach it.
	ban, err := s.engine.ActiveBan(ctx, res.AccountID)
	if err != nil {
		s.logger.Warn(ctx, "websocket ban check failed", "account_id", res.AccountID, "error", err)
		_, code := middleware.ErrorStatus(err)
		_ = conn.Close(realtime.CloseGoingAway, code)
		return
	}
	if ban != nil {
		s.registry.Kick(ctx, res.AccountID, ban.Reason)
		return
	}

	_ = conn.Drain()
	_ = conn.Close(realtime.CloseGoingAway, "")
}
