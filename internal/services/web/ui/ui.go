// Package ui holds the server-rendered HTML surface: embedded templates, flash
// messages and the signed-in user carried on the gin context.
package ui

import (
	"embed"
	"html/template"
	"strings"
	"time"

	"github.com/NordCoder/CropSense/internal/advisory"
	"github.com/NordCoder/CropSense/internal/domain/user"
	"github.com/gin-gonic/gin"
)

//go:embed templates/*.html
var files embed.FS

var funcs = template.FuncMap{
	"ist":    func(t time.Time) string { return advisory.LocalTime(t) },
	"remote": func(ref string) bool { return strings.HasPrefix(ref, "http://") || strings.HasPrefix(ref, "https://") },
}

// Templates parses every page. Pages are addressed by file name, e.g. "login.html".
func Templates() (*template.Template, error) {
	return template.New("").Funcs(funcs).ParseFS(files, "templates/*.html")
}

const userKey = "cropsense.user"

func SetUser(c *gin.Context, u *user.User) { c.Set(userKey, u) }

// CurrentUser returns the signed-in user or nil.
func CurrentUser(c *gin.Context) *user.User {
	v, ok := c.Get(userKey)
	if !ok {
		return nil
	}
	u, _ := v.(*user.User)
	return u
}

// Render executes a page with the user and pending flashes merged into data.
func Render(c *gin.Context, code int, name string, data gin.H) {
	if data == nil {
		data = gin.H{}
	}
	data["CurrentUser"] = CurrentUser(c)
	data["Flashes"] = PopFlashes(c)
	c.HTML(code, name, data)
}
