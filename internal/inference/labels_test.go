package inference

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPretty(t *testing.T) {
	cases := map[string]string{
		"Tomato___Late_blight":          "Tomato Late Blight",
		"Pepper,_bell___Bacterial_spot": "Pepper, Bell Bacterial Spot",
		"Potato___healthy":              "Potato Healthy",
		"class_7":                       "Class 7",
		"  ":                            "",
	}
	for in, want := range cases {
		require.Equal(t, want, Pretty(in), in)
	}
}

func TestParseLabels_ClassIndicesForm(t *testing.T) {
	l, err := ParseLabels([]byte(`{"Apple___Apple_scab": 0, "Tomato___Late_blight": 29}`))
	require.NoError(t, err)
	require.Equal(t, 2, l.Len())
	require.Equal(t, "Tomato Late Blight", l.Resolve(29))
	require.Equal(t, "Apple Apple Scab", l.Resolve(0))
}

func TestParseLabels_IndexForm(t *testing.T) {
	l, err := ParseLabels([]byte(`{"0": "Potato___healthy", "3": "Potato___Early_blight"}`))
	require.NoError(t, err)
	require.Equal(t, "Potato Early Blight", l.Resolve(3))
}

func TestParseLabels_Invalid(t *testing.T) {
	_, err := ParseLabels([]byte(`{"x": "y"}`))
	require.Error(t, err)

	_, err = ParseLabels([]byte(`[1,2]`))
	require.Error(t, err)
}

func TestLabels_UnknownIndexAndIdempotence(t *testing.T) {
	l := NewLabels(map[int]string{1: "Corn___Common_rust"})
	require.Equal(t, "class_42", l.Raw(42))
	require.Equal(t, "Class 42", l.Resolve(42))

	first := l.Resolve(1)
	for i := 0; i < 10; i++ {
		require.Equal(t, first, l.Resolve(1))
	}

	var empty *Labels
	require.Equal(t, "class_3", empty.Raw(3))
}

func TestLoadLabels(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "class_indices.json")
	require.NoError(t, os.WriteFile(p, []byte(`{"Grape___healthy": 2}`), 0o600))

	l, err := LoadLabels(p)
	require.NoError(t, err)
	require.Equal(t, "Grape Healthy", l.Resolve(2))

	_, err = LoadLabels(filepath.Join(dir, "missing.json"))
	require.Error(t, err)
}
