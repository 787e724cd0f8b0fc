package diagnosis

import (
	"errors"
	"net/http"

	"github.com/NordCoder/CropSense/internal/obs"
	"github.com/NordCoder/CropSense/internal/services/web/ui"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Handler serves the dashboard: history on GET, upload on POST.
type Handler struct {
	uc        *Usecase
	maxUpload int64
	log       *zap.Logger
}

func NewHandler(uc *Usecase, maxUpload int64, log *zap.Logger) *Handler {
	if maxUpload <= 0 {
		maxUpload = DefaultMaxUpload
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Handler{uc: uc, maxUpload: maxUpload, log: log.With(zap.String("component", "web.diagnosis"))}
}

// RegisterRoutes mounts the dashboard behind guard, which must reject
// anonymous visitors.
func (h *Handler) RegisterRoutes(r gin.IRouter, guard gin.HandlerFunc) {
	r.GET("/dashboard", guard, h.dashboard)
	r.POST("/dashboard", guard, h.upload)
}

func (h *Handler) dashboard(c *gin.Context) {
	u := ui.CurrentUser(c)
	q := Query{
		Crop:     c.Query("crop"),
		Disease:  c.Query("disease"),
		DateFrom: c.Query("date_from"),
		DateTo:   c.Query("date_to"),
	}
	hist, err := h.uc.History(c.Request.Context(), u.ID, q)
	if err != nil {
		obs.WithTrace(c.Request.Context(), h.log).Error("load history", zap.Int64("user_id", u.ID), zap.Error(err))
		c.String(http.StatusInternalServerError, "Something went wrong. Please try again.")
		return
	}
	ui.Render(c, http.StatusOK, "dashboard.html", gin.H{
		"Title":   "Dashboard",
		"Stats":   hist.Stats,
		"Alerts":  hist.Alerts,
		"History": hist.Items,
		"Query":   hist.Query,
	})
}

func (h *Handler) upload(c *gin.Context) {
	limitBody(c.Writer, c.Request, h.maxUpload)
	up, err := readUpload(c.Request, h.maxUpload)
	if err == nil {
		var out *Outcome
		out, err = h.uc.Predict(c.Request.Context(), ui.CurrentUser(c), up)
		if err == nil {
			ui.Render(c, http.StatusOK, "result.html", gin.H{
				"Title":          "Result",
				"ImagePath":      out.Prediction.ImagePath,
				"Label":          out.Prediction.Disease,
				"Certainty":      out.Prediction.Certainty,
				"Recommendation": out.Advisory.Email,
			})
			return
		}
	}

	switch {
	case errors.Is(err, ErrNoFile):
		ui.SetFlash(c, "danger", "No file uploaded.")
	case errors.Is(err, ErrNotImage):
		ui.SetFlash(c, "danger", "Please upload a JPEG, PNG, GIF, WebP or BMP image.")
	case errors.Is(err, ErrTooLarge):
		ui.SetFlash(c, "danger", "File is too large.")
	default:
		obs.WithTrace(c.Request.Context(), h.log).Error("prediction failed", zap.Error(err))
		ui.SetFlash(c, "danger", "Something went wrong. Please try again.")
	}
	c.Redirect(http.StatusFound, "/dashboard")
}
