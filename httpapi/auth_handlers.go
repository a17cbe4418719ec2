package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"

	goTrust "github.com/MrEthical07/goTrust"
	"github.com/MrEthical07/goTrust/middleware"
)

type registerRequest struct {
	Username string `json:"username" binding:"required,min=3,max=80"`
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=8,max=128"`
}

type loginRequest struct {
	UsernameOrEmail string `json:"username_or_email" binding:"required"`
	Password        string `json:"password" binding:"required"`
}

type loginTwoFARequest struct {
	Ticket string `json:"ticket" binding:"required"`
	TOTP   string `json:"totp" binding:"required"`
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type tokensResponse struct {
	AccessToken   string       `json:"access_token"`
	RefreshToken  string       `json:"refresh_token"`
	TokenType     string       `json:"token_type"`
	RequiresTwoFA bool         `json:"requires_2fa"`
	Role          goTrust.Role `json:"role"`
	UserID        string       `json:"user_id"`
}

type challengeResponse struct {
	RequiresTwoFA bool   `json:"requires_2fa"`
	Ticket        string `json:"ticket"`
}

func (s *Server) issued(c *gin.Context, res *goTrust.LoginResult) {
	if res.RequiresTwoFA {
		c.JSON(http.StatusOK, challengeResponse{RequiresTwoFA: true, Ticket: res.Ticket})
		return
	}
	s.setAuthCookies(c, res)
	c.JSON(http.StatusOK, tokensResponse{
		AccessToken:  res.AccessToken,
		RefreshToken: res.RefreshToken,
		TokenType:    "bearer",
		Role:         res.Role,
		UserID:       res.AccountID,
	})
}

func (s *Server) register(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c)
		return
	}
	res, err := s.engine.Register(c.Request.Context(), req.Username, req.Email, req.Password)
	if err != nil {
		s.fail(c, err)
		return
	}
	s.issued(c, res)
}

func (s *Server) login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c)
		return
	}
	res, err := s.engine.LoginStep1(c.Request.Context(), req.UsernameOrEmail, req.Password)
	if err != nil {
		s.fail(c, err)
		return
	}
	s.issued(c, res)
}

func (s *Server) loginTwoFA(c *gin.Context) {
	var req loginTwoFARequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c)
		return
	}
	res, err := s.engine.LoginStep2Totp(c.Request.Context(), req.Ticket, req.TOTP)
	if err != nil {
		s.fail(c, err)
		return
	}
	s.issued(c, res)
}

// refreshToken reads the token from an optional JSON body, falling back to
// the refresh cookie.
func refreshToken(c *gin.Context) string {
	var req refreshRequest
	if c.Request.ContentLength != 0 {
		_ = c.ShouldBindJSON(&req)
	}
	if req.RefreshToken != "" {
		return req.RefreshToken
	}
	if v, err := c.Cookie(middleware.RefreshCookie); err == nil {
		return v
	}
	return ""
}

func (s *Server) refresh(c *gin.Context) {
	token := refreshToken(c)
	if token == "" {
		s.fail(c, goTrust.ErrInvalidToken)
		return
	}
	res, err := s.engine.Refresh(c.Request.Context(), token)
	if err != nil {
		s.fail(c, err)
		return
	}
	s.issued(c, res)
}

func (s *Server) logout(c *gin.Context) {
	if token := refreshToken(c); token != "" {
		s.engine.Logout(c.Request.Context(), token)
	}
	s.clearAuthCookies(c)
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
