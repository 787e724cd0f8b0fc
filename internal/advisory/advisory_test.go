package advisory

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

var checkedAt = time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)

func TestCompose_Healthy(t *testing.T) {
	a := Compose("Tomato Healthy", 95, checkedAt)

	require.True(t, a.Healthy)
	require.Empty(t, a.Action)
	require.Equal(t, "Your plant looks healthy! Keep monitoring regularly. Certainty: 95%.", a.SMS)
	require.Equal(t, "Hello Farmer,\n\n🌱 Your plant is healthy! ✅\n\nChecked at: 2024-03-01 15:30:00 IST\n\nKeep monitoring your crops regularly.", a.Email)
}

func TestCompose_HealthyIsCaseInsensitive(t *testing.T) {
	require.True(t, Compose("HEALTHY", 10, checkedAt).Healthy)
	require.True(t, Compose("Potato healthy leaf", 10, checkedAt).Healthy)
	require.False(t, Compose("Potato Late Blight", 10, checkedAt).Healthy)
}

func TestCompose_KnownDisease(t *testing.T) {
	a := Compose("Tomato Late Blight", 87, checkedAt)

	require.False(t, a.Healthy)
	require.Equal(t, "Apply fungicide, avoid overhead irrigation, remove infected plants.", a.Action)
	require.Equal(t, "Crop Alert: Tomato Late Blight detected. Certainty: 87%. Recommended action: Apply fungicide, avoid overhead irrigation, remove infected plants.", a.SMS)
	require.Equal(t,
		"Hello Farmer,\n\n🌱 Plant Disease Alert ⚠️\n\nDisease Detected: Tomato Late Blight\nCertainty: 87%\n\n"+
			"Recommended Action:\nApply fungicide, avoid overhead irrigation, remove infected plants.\n\n"+
			"Checked at: 2024-03-01 15:30:00 IST\n\nStay safe and monitor your crops regularly.",
		a.Email)
}

func TestCompose_UnmappedDiseaseFallsBack(t *testing.T) {
	a := Compose("Grape Black Rot", 61, checkedAt)
	require.Equal(t, DefaultAction, a.Action)
	require.True(t, strings.HasSuffix(a.SMS, DefaultAction))
}

func TestRecommend_NormalizesPunctuation(t *testing.T) {
	require.Equal(t, "Remove infected leaves, use copper-based bactericide.", Recommend("Pepper, Bell Bacterial Spot"))
	require.Equal(t, "Spray neem oil or suitable fungicide. Avoid wetting leaves.", Recommend("POWDERY  MILDEW"))
	require.Equal(t, "Spray miticide and maintain humidity.", Recommend("Tomato Spider Mites Two-Spotted Spider Mite"))
}

func TestCompose_Deterministic(t *testing.T) {
	require.Equal(t, Compose("Rust", 40, checkedAt), Compose("Rust", 40, checkedAt))
}

func TestLocalTime(t *testing.T) {
	require.Equal(t, "2024-12-31 23:59:00 IST", LocalTime(time.Date(2024, 12, 31, 18, 29, 0, 0, time.UTC)))
}
