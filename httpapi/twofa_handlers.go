package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"

	goTrust "github.com/MrEthical07/goTrust"
	"github.com/MrEthical07/goTrust/middleware"
)

type codeRequest struct {
	Code string `json:"code" binding:"required"`
}

type tokenRequest struct {
	Token string `json:"token" form:"token" binding:"required"`
}

type forgotRequest struct {
	Email string `json:"email" binding:"required,email"`
}

type resetRequest struct {
	Token       string `json:"token" binding:"required"`
	NewPassword string `json:"new_password" binding:"required,min=8"`
}

func accountID(c *gin.Context) string {
	res, _ := middleware.AuthResult(c)
	return res.AccountID
}

// mailed reports a 2FA-disable request. The caller is authenticated, so
// delivery status is safe to share.
func (s *Server) mailed(c *gin.Context, res *goTrust.MailResult) {
	body := gin.H{"status": "sent", "email_sent": res.EmailSent}
	if s.cfg.DebugEchoToken && res.Token != "" {
		body["token"] = res.Token
	}
	c.JSON(http.StatusOK, body)
}

func (s *Server) setupTwoFA(c *gin.Context) {
	setup, err := s.engine.Enable2FA(c.Request.Context(), accountID(c))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"secret": setup.Secret, "otpauth_url": setup.URI})
}

func (s *Server) verifyTwoFA(c *gin.Context) {
	var req codeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c)
		return
	}
	ok, err := s.engine.Verify2FA(c.Request.Context(), accountID(c), req.Code)
	if err != nil {
		s.fail(c, err)
		return
	}
	if !ok {
		s.fail(c, goTrust.ErrInvalidCode)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) disableTwoFA(c *gin.Context) {
	var req codeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c)
		return
	}
	if err := s.engine.Disable2FA(c.Request.Context(), accountID(c), req.Code); err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "disabled"})
}

func (s *Server) requestTwoFADisable(c *gin.Context) {
	res, err := s.engine.RequestTwoFADisable(c.Request.Context(), accountID(c))
	if err != nil {
		s.fail(c, err)
		return
	}
	s.mailed(c, res)
}

// confirmTwoFADisable serves both the emailed GET link and the POST form.
func (s *Server) confirmTwoFADisable(c *gin.Context) {
	var req tokenRequest
	var err error
	if c.Request.Method == http.MethodGet {
		err = c.ShouldBindQuery(&req)
	} else {
		err = c.ShouldBindJSON(&req)
	}
	if err != nil {
		badRequest(c)
		return
	}
	if err := s.engine.ConfirmTwoFADisable(c.Request.Context(), req.Token); err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "disabled"})
}

// forgotPassword answers the same way for known and unknown addresses.
func (s *Server) forgotPassword(c *gin.Context) {
	var req forgotRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c)
		return
	}
	res, err := s.engine.RequestPasswordReset(c.Request.Context(), req.Email)
	if err != nil {
		s.fail(c, err)
		return
	}
	body := gin.H{"status": "sent"}
	if s.cfg.DebugEchoToken && res.Token != "" {
		body["token"] = res.Token
	}
	c.JSON(http.StatusOK, body)
}

func (s *Server) resetPassword(c *gin.Context) {
	var req resetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c)
		return
	}
	if err := s.engine.ConfirmPasswordReset(c.Request.Context(), req.Token, req.NewPassword); err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
