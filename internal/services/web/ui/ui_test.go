package ui

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/NordCoder/CropSense/internal/domain/prediction"
	"github.com/NordCoder/CropSense/internal/domain/user"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
)

func init() { gin.SetMode(gin.TestMode) }

func TestTemplatesRender(t *testing.T) {
	tmpl, err := Templates()
	require.NoError(t, err)

	at := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	pages := map[string]gin.H{
		"index.html":    {},
		"register.html": {},
		"login.html":    {},
		"crops.html":    {},
		"about.html":    {},
		"result.html": {
			"ImagePath": "/static/uploads/abc_leaf.jpg", "Label": "Tomato Late Blight",
			"Certainty": 87, "Recommendation": "Hello Farmer,",
		},
		"dashboard.html": {
			"CurrentUser": &user.User{Name: "Asha"},
			"Stats":       prediction.Stats{Healthy: 1, Diseased: 2},
			"Alerts":      []*prediction.Prediction{{Disease: "Tomato Late Blight", Certainty: 87, CreatedAt: at}},
			"History": []*prediction.Prediction{
				{Disease: "Tomato Healthy", Certainty: 95, CreatedAt: at},
				{Disease: "Tomato Late Blight", Certainty: 87, CreatedAt: at},
			},
			"Query": struct{ Crop, Disease, DateFrom, DateTo string }{Crop: "tomato"},
		},
	}
	for name, data := range pages {
		var buf bytes.Buffer
		require.NoError(t, tmpl.ExecuteTemplate(&buf, name, data), name)
		require.Contains(t, buf.String(), "</html>", name)
	}

	var buf bytes.Buffer
	require.NoError(t, tmpl.ExecuteTemplate(&buf, "dashboard.html", pages["dashboard.html"]))
	require.Contains(t, buf.String(), "2024-03-01 15:30:00 IST")
	require.Contains(t, buf.String(), "Tomato Healthy ✅")
	require.Contains(t, buf.String(), "<td>Tomato Late Blight</td>")
}

func TestFlashRoundTrip(t *testing.T) {
	r := gin.New()
	r.GET("/set", func(c *gin.Context) {
		SetFlash(c, "danger", "No file uploaded.")
		SetFlash(c, "info", "second")
		c.Status(http.StatusNoContent)
	})
	r.GET("/pop", func(c *gin.Context) {
		c.JSON(http.StatusOK, PopFlashes(c))
	})

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/set", nil))
	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 2)

	req := httptest.NewRequest(http.MethodGet, "/pop", nil)
	req.AddCookie(cookies[len(cookies)-1])
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	require.JSONEq(t, `[{"c":"danger","m":"No file uploaded."},{"c":"info","m":"second"}]`, rec.Body.String())

	var cleared bool
	for _, c := range rec.Result().Cookies() {
		if c.Name == flashCookie && c.MaxAge < 0 {
			cleared = true
		}
	}
	require.True(t, cleared)
}

func TestCurrentUser(t *testing.T) {
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	require.Nil(t, CurrentUser(c))
	SetUser(c, &user.User{ID: 3})
	require.Equal(t, int64(3), CurrentUser(c).ID)
}
