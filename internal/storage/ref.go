package storage

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
	"golang.org/x/text/unicode/norm"
)

// Ref is a durable image reference: a public URL for remote objects or a
// web path (e.g. /static/uploads/<key>) for local ones.
type Ref string

func (r Ref) String() string { return string(r) }

func (r Ref) Remote() bool {
	s := strings.ToLower(string(r))
	return strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://")
}

// Key is the last path element of the reference.
func (r Ref) Key() string {
	s := string(r)
	if i := strings.IndexAny(s, "?#"); i >= 0 {
		s = s[:i]
	}
	if i := strings.LastIndex(s, "/"); i >= 0 {
		s = s[i+1:]
	}
	return s
}

var unsafeFilenameChars = regexp.MustCompile(`[^A-Za-z0-9_.-]`)

// SanitizeFilename reduces a client-supplied name to a safe ASCII file name.
func SanitizeFilename(name string) string {
	decomposed := norm.NFKD.String(name)
	var b strings.Builder
	for _, r := range decomposed {
		if r < utf8.RuneSelf {
			b.WriteRune(r)
		}
	}
	s := strings.NewReplacer("/", " ", "\\", " ").Replace(b.String())
	s = strings.Join(strings.Fields(s), "_")
	s = unsafeFilenameChars.ReplaceAllString(s, "")
	s = strings.Trim(s, "._")
	if s == "" {
		return "upload"
	}
	return s
}

// NewKey builds a collision-resistant object key: 32 hex chars, underscore, sanitized name.
func NewKey(filename string) string {
	return strings.ReplaceAll(uuid.NewString(), "-", "") + "_" + SanitizeFilename(filename)
}
