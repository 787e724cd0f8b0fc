package auth

import (
	"errors"
	"net/http"

	"github.com/NordCoder/CropSense/internal/obs"
	"github.com/NordCoder/CropSense/internal/services/web/ui"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Handler serves the account pages of the HTML surface.
type Handler struct {
	uc     *Usecase
	cookie CookieConfig
	log    *zap.Logger
}

func NewHandler(uc *Usecase, cookie CookieConfig, log *zap.Logger) *Handler {
	if cookie.Name == "" {
		cookie.Name = "cropsense_session"
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Handler{uc: uc, cookie: cookie, log: log.With(zap.String("component", "web.auth"))}
}

func (h *Handler) RegisterRoutes(r gin.IRouter) {
	r.GET("/register", h.registerPage)
	r.POST("/register", h.register)
	r.GET("/login", h.loginPage)
	r.POST("/login", h.login)
	r.GET("/logout", h.logout)
}

func (h *Handler) registerPage(c *gin.Context) {
	ui.Render(c, http.StatusOK, "register.html", gin.H{"Title": "Register"})
}

func (h *Handler) register(c *gin.Context) {
	_, err := h.uc.Register(c.Request.Context(), RegisterInput{
		Name:     c.PostForm("name"),
		Email:    c.PostForm("email"),
		Phone:    c.PostForm("phone"),
		Password: c.PostForm("password"),
	})
	if err != nil {
		ui.SetFlash(c, "danger", h.message(c, err))
		c.Redirect(http.StatusFound, "/register")
		return
	}
	ui.SetFlash(c, "success", "Account created. Please login.")
	c.Redirect(http.StatusFound, "/login")
}

func (h *Handler) loginPage(c *gin.Context) {
	ui.Render(c, http.StatusOK, "login.html", gin.H{"Title": "Login"})
}

func (h *Handler) login(c *gin.Context) {
	_, token, err := h.uc.Login(c.Request.Context(), c.PostForm("email"), c.PostForm("password"))
	if err != nil {
		ui.SetFlash(c, "danger", h.message(c, err))
		ui.Render(c, http.StatusOK, "login.html", gin.H{"Title": "Login"})
		return
	}
	h.setCookie(c, token)
	ui.SetFlash(c, "success", "Logged in successfully.")
	c.Redirect(http.StatusFound, "/dashboard")
}

func (h *Handler) logout(c *gin.Context) {
	h.clearCookie(c)
	ui.SetFlash(c, "info", "Logged out.")
	c.Redirect(http.StatusFound, "/")
}

// message maps an account error to the text shown to the user.
func (h *Handler) message(c *gin.Context, err error) string {
	switch {
	case errors.Is(err, ErrEmailExists):
		return "Email already registered."
	case errors.Is(err, ErrInvalidCredentials):
		return "Invalid credentials."
	case errors.Is(err, ErrWeakPassword):
		return "Password must be at least 8 characters."
	case errors.Is(err, ErrInvalidInput):
		return "Please enter your name and a valid email."
	default:
		obs.WithTrace(c.Request.Context(), h.log).Error("account request failed", zap.Error(err))
		return "Something went wrong. Please try again."
	}
}
