package ui

import (
	"encoding/base64"
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"
)

const flashCookie = "cropsense_flash"

type Flash struct {
	Category string `json:"c"`
	Message  string `json:"m"`
}

// SetFlash queues a message for the next rendered page. Messages set during
// the same request accumulate.
func SetFlash(c *gin.Context, category, message string) {
	pending := readFlashes(c)
	if v, ok := c.Get(flashCookie); ok {
		pending, _ = v.([]Flash)
	}
	pending = append(pending, Flash{Category: category, Message: message})
	c.Set(flashCookie, pending)

	raw, err := json.Marshal(pending)
	if err != nil {
		return
	}
	http.SetCookie(c.Writer, &http.Cookie{
		Name:     flashCookie,
		Value:    base64.RawURLEncoding.EncodeToString(raw),
		Path:     "/",
		MaxAge:   60,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

// PopFlashes returns and clears the queued messages.
func PopFlashes(c *gin.Context) []Flash {
	out := readFlashes(c)
	if v, ok := c.Get(flashCookie); ok {
		out, _ = v.([]Flash)
	}
	if len(out) > 0 {
		http.SetCookie(c.Writer, &http.Cookie{Name: flashCookie, Value: "", Path: "/", MaxAge: -1, HttpOnly: true})
		c.Set(flashCookie, []Flash(nil))
	}
	return out
}

func readFlashes(c *gin.Context) []Flash {
	v, err := c.Cookie(flashCookie)
	if err != nil || v == "" {
		return nil
	}
	raw, err := base64.RawURLEncoding.DecodeString(v)
	if err != nil {
		return nil
	}
	var out []Flash
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil
	}
	return out
}
