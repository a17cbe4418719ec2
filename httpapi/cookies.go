package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"

	goTrust "github.com/MrEthical07/goTrust"
	"github.com/MrEthical07/goTrust/middleware"
)

func (s *Server) setCookie(c *gin.Context, name, value string, maxAge int) {
	http.SetCookie(c.Writer, &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		Domain:   s.cfg.CookieDomain,
		MaxAge:   maxAge,
		Secure:   s.cfg.CookieSecure,
		HttpOnly: true,
		SameSite: s.cfg.sameSite(),
	})
}

func (s *Server) setAuthCookies(c *gin.Context, res *goTrust.LoginResult) {
	s.setCookie(c, middleware.AccessCookie, res.AccessToken, int(s.cfg.AccessCookieMaxAge.Seconds()))
	s.setCookie(c, middleware.RefreshCookie, res.RefreshToken, int(s.cfg.RefreshCookieMaxAge.Seconds()))
}

func (s *Server) clearAuthCookies(c *gin.Context) {
	s.setCookie(c, middleware.AccessCookie, "", -1)
	s.setCookie(c, middleware.RefreshCookie, "", -1)
}
