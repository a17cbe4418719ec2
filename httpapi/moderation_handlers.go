package httpapi

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	goTrust "github.com/MrEthical07/goTrust"
)

type banRequest struct {
	Reason string `json:"reason" binding:"required,max=500"`
	// Until is RFC 3339; omitted means permanent.
	Until *time.Time `json:"until"`
}

type warnRequest struct {
	Reason string `json:"reason" binding:"required,max=500"`
}

type banResponse struct {
	ID          string     `json:"id"`
	AccountID   string     `json:"user_id"`
	ModeratorID string     `json:"moderator_id"`
	Reason      string     `json:"reason"`
	Until       *time.Time `json:"until"`
	CreatedAt   time.Time  `json:"created_at"`
	RevokedAt   *time.Time `json:"revoked_at,omitempty"`
}

func toBanResponse(b *goTrust.Ban) banResponse {
	return banResponse{
		ID:          b.ID,
		AccountID:   b.AccountID,
		ModeratorID: b.ModeratorID,
		Reason:      b.Reason,
		Until:       b.Until,
		CreatedAt:   b.CreatedAt,
		RevokedAt:   b.RevokedAt,
	}
}

func (s *Server) ban(c *gin.Context) {
	var req banRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c)
		return
	}
	b, err := s.engine.Ban(c.Request.Context(), c.Param("id"), accountID(c), req.Reason, req.Until)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, toBanResponse(b))
}

func (s *Server) revokeBan(c *gin.Context) {
	b, err := s.engine.RevokeBan(c.Request.Context(), c.Param("id"), accountID(c))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, toBanResponse(b))
}

func (s *Server) warn(c *gin.Context) {
	var req warnRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c)
		return
	}
	w, err := s.engine.Warn(c.Request.Context(), c.Param("id"), accountID(c), req.Reason)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"id":           w.ID,
		"user_id":      w.AccountID,
		"moderator_id": w.ModeratorID,
		"reason":       w.Reason,
		"created_at":   w.CreatedAt,
	})
}
