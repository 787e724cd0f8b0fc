package prediction

// RecordedEvent is the published form of a persisted prediction. CreatedAt is
// an ISO-8601 timestamp in the UTC+5:30 zone.
type RecordedEvent struct {
	ID        int64  `json:"id"`
	UserID    *int64 `json:"user_id"`
	UserEmail string `json:"user_email,omitempty"`
	ImagePath string `json:"image_path"`
	Disease   string `json:"disease"`
	Certainty int    `json:"certainty"`
	CreatedAt string `json:"created_at"`
}
