package prediction

import (
	"errors"
	"strings"
	"time"
)

var ErrNotFound = errors.New("prediction not found")

const (
	MinCertainty = 0
	MaxCertainty = 100
)

// Prediction is one classification event. It is written once and never updated.
type Prediction struct {
	ID        int64     `json:"id"`
	UserID    int64     `json:"user_id,omitempty"` // 0 when anonymous
	ImagePath string    `json:"image_path"`
	Disease   string    `json:"disease"`
	Certainty int       `json:"certainty"`
	CreatedAt time.Time `json:"created_at"`
}

// IsHealthy reports whether a label names a healthy plant.
func IsHealthy(label string) bool {
	return strings.Contains(strings.ToLower(label), "healthy")
}

func (p *Prediction) Healthy() bool { return IsHealthy(p.Disease) }

// ClampCertainty forces a certainty into [MinCertainty, MaxCertainty].
func ClampCertainty(c int) int {
	if c < MinCertainty {
		return MinCertainty
	}
	if c > MaxCertainty {
		return MaxCertainty
	}
	return c
}

// Filter selects a user's predictions. Zero values mean "no bound".
// Crop and Disease are case-insensitive substrings of the disease label.
// To is exclusive.
type Filter struct {
	UserID  int64
	Crop    string
	Disease string
	From    time.Time
	To      time.Time
	Limit   int
}

type Stats struct {
	Healthy  int `json:"healthy_count"`
	Diseased int `json:"diseased_count"`
}
