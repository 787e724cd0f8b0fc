// Package advisory turns a diagnosis into the SMS and email texts sent to growers.
package advisory

import (
	"fmt"
	"strings"
	"time"
	"unicode"

	"github.com/NordCoder/CropSense/internal/domain/prediction"
)

// IST is the fixed UTC+5:30 zone every advisory timestamp is rendered in.
var IST = time.FixedZone("IST", 5*60*60+30*60)

const (
	TimeLayout    = "2006-01-02 15:04:05 IST"
	Subject       = "Crop Disease Alert"
	DefaultAction = "Consult your local agriculture expert for guidance."
)

var actions = map[string]string{
	"pepper bell bacterial spot":                  "Remove infected leaves, use copper-based bactericide.",
	"potato early blight":                         "Apply fungicide and remove infected leaves.",
	"potato late blight":                          "Use fungicide promptly and ensure good drainage.",
	"tomato bacterial spot":                       "Remove infected fruits/leaves, apply copper spray.",
	"tomato early blight":                         "Apply fungicide, remove affected leaves, rotate crops.",
	"tomato late blight":                          "Apply fungicide, avoid overhead irrigation, remove infected plants.",
	"tomato leaf mold":                            "Improve air circulation, remove affected leaves, use fungicide.",
	"tomato septoria leaf spot":                   "Remove infected leaves, apply fungicide.",
	"tomato spider mites two spotted spider mite": "Spray miticide and maintain humidity.",
	"tomato target spot":                          "Remove infected areas and use appropriate fungicide.",
	"tomato yellowleaf curl virus":                "Control whitefly vector and remove infected plants.",
	"tomato mosaic virus":                         "Remove infected plants and disinfect tools.",
	"powdery mildew":                              "Spray neem oil or suitable fungicide. Avoid wetting leaves.",
	"rust":                                        "Remove infected leaves and apply fungicide.",
	"blight":                                      "Ensure proper spacing and apply copper-based fungicide.",
}

type Advisory struct {
	Label     string    `json:"label"`
	Certainty int       `json:"certainty"`
	Healthy   bool      `json:"healthy"`
	Action    string    `json:"action,omitempty"`
	SMS       string    `json:"sms"`
	Email     string    `json:"email"`
	CheckedAt time.Time `json:"checked_at"`
}

// Compose builds the advisory for a diagnosis made at the given instant.
func Compose(label string, certainty int, at time.Time) Advisory {
	ts := LocalTime(at)
	a := Advisory{
		Label:     label,
		Certainty: certainty,
		Healthy:   prediction.IsHealthy(label),
		CheckedAt: at,
	}

	if a.Healthy {
		a.SMS = fmt.Sprintf("Your plant looks healthy! Keep monitoring regularly. Certainty: %d%%.", certainty)
		a.Email = "Hello Farmer,\n\n" +
			"🌱 Your plant is healthy! ✅\n\n" +
			"Checked at: " + ts + "\n\n" +
			"Keep monitoring your crops regularly."
		return a
	}

	a.Action = Recommend(label)
	a.SMS = fmt.Sprintf("Crop Alert: %s detected. Certainty: %d%%. Recommended action: %s", label, certainty, a.Action)
	a.Email = "Hello Farmer,\n\n" +
		"🌱 Plant Disease Alert ⚠️\n\n" +
		"Disease Detected: " + label + "\n" +
		fmt.Sprintf("Certainty: %d%%\n\n", certainty) +
		"Recommended Action:\n" + a.Action + "\n\n" +
		"Checked at: " + ts + "\n\n" +
		"Stay safe and monitor your crops regularly."
	return a
}

// Recommend returns the treatment for a disease label, or DefaultAction.
func Recommend(label string) string {
	if act, ok := actions[Key(label)]; ok {
		return act
	}
	return DefaultAction
}

// Key normalizes a label for lookup: lowercase letters and digits separated by single spaces.
func Key(label string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(label) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
			continue
		}
		b.WriteByte(' ')
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

func LocalTime(t time.Time) string {
	return t.In(IST).Format(TimeLayout)
}
