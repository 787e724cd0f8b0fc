package auth

import (
	"errors"
	"net/http"
	"time"

	"github.com/NordCoder/CropSense/internal/obs"
	"github.com/NordCoder/CropSense/internal/services/web/httpx"
	"github.com/NordCoder/CropSense/internal/services/web/ui"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type CookieConfig struct {
	Name   string
	Secure bool
}

// Session resolves the caller from the session cookie, or a bearer token,
// and stores the user on the context. It never rejects a request.
func (h *Handler) Session() gin.HandlerFunc {
	return func(c *gin.Context) {
		token, _ := c.Cookie(h.cookie.Name)
		fromCookie := token != ""
		if !fromCookie {
			token = httpx.BearerToken(c.Request)
		}
		if token == "" {
			c.Next()
			return
		}

		u, err := h.uc.Resolve(c.Request.Context(), token)
		switch {
		case err == nil:
			ui.SetUser(c, u)
		case errors.Is(err, ErrUnauthenticated):
			if fromCookie {
				h.clearCookie(c)
			}
		default:
			obs.WithTrace(c.Request.Context(), h.log).Error("resolve session", zap.Error(err))
		}
		c.Next()
	}
}

// RequireUser redirects anonymous visitors to the login page.
func RequireUser() gin.HandlerFunc {
	return func(c *gin.Context) {
		if ui.CurrentUser(c) == nil {
			ui.SetFlash(c, "warning", "Please log in to access dashboard.")
			c.Redirect(http.StatusFound, "/login")
			c.Abort()
			return
		}
		c.Next()
	}
}

func (h *Handler) setCookie(c *gin.Context, token string) {
	http.SetCookie(c.Writer, &http.Cookie{
		Name:     h.cookie.Name,
		Value:    token,
		Path:     "/",
		Expires:  time.Now().Add(h.uc.TTL()),
		MaxAge:   int(h.uc.TTL().Seconds()),
		HttpOnly: true,
		Secure:   h.cookie.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}

func (h *Handler) clearCookie(c *gin.Context) {
	http.SetCookie(c.Writer, &http.Cookie{
		Name:     h.cookie.Name,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.cookie.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}
