package inference

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Labels maps classifier output indices to class names. It is read-only after
// construction and safe for concurrent use.
type Labels struct {
	names map[int]string
}

func NewLabels(names map[int]string) *Labels {
	cp := make(map[int]string, len(names))
	for k, v := range names {
		cp[k] = v
	}
	return &Labels{names: cp}
}

// LoadLabels reads a JSON label table. Both the Keras class_indices form
// ({"Tomato___Late_blight": 29}) and the index form ({"29": "Tomato___Late_blight"})
// are accepted.
func LoadLabels(path string) (*Labels, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read labels: %w", err)
	}
	return ParseLabels(raw)
}

func ParseLabels(raw []byte) (*Labels, error) {
	var table map[string]json.RawMessage
	if err := json.Unmarshal(raw, &table); err != nil {
		return nil, fmt.Errorf("parse labels: %w", err)
	}

	names := make(map[int]string, len(table))
	for k, v := range table {
		var idx int
		if err := json.Unmarshal(v, &idx); err == nil {
			names[idx] = k
			continue
		}
		var name string
		if err := json.Unmarshal(v, &name); err != nil {
			return nil, fmt.Errorf("label %q: value is neither index nor name", k)
		}
		idx, err := strconv.Atoi(strings.TrimSpace(k))
		if err != nil {
			return nil, fmt.Errorf("label %q: key is not an index", k)
		}
		names[idx] = name
	}
	return &Labels{names: names}, nil
}

func (l *Labels) Len() int {
	if l == nil {
		return 0
	}
	return len(l.names)
}

// Raw returns the stored class name, or class_<idx> for unknown indices.
func (l *Labels) Raw(idx int) string {
	if l != nil {
		if n, ok := l.names[idx]; ok {
			return n
		}
	}
	return "class_" + strconv.Itoa(idx)
}

// Resolve returns the human-readable label for idx.
func (l *Labels) Resolve(idx int) string {
	return Pretty(l.Raw(idx))
}

// Pretty turns a raw class name into display form: underscores become spaces,
// whitespace runs collapse and every word is title-cased.
func Pretty(raw string) string {
	s := strings.Join(strings.Fields(strings.ReplaceAll(raw, "_", " ")), " ")
	// cases.Caser keeps state, a fresh one per call.
	return cases.Title(language.English).String(s)
}
