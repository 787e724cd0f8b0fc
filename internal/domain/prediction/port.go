package prediction

import "context"

type Repo interface {
	Create(ctx context.Context, p *Prediction) error
	GetByID(ctx context.Context, id int64) (*Prediction, error)
	List(ctx context.Context, f Filter) ([]*Prediction, error)
	Stats(ctx context.Context, userID int64) (Stats, error)
	RecentAlerts(ctx context.Context, userID int64, limit int) ([]*Prediction, error)
}

// Events receives every persisted prediction. Implementations run inside the
// transaction that wrote the row.
type Events interface {
	Recorded(ctx context.Context, p *Prediction, userEmail string) error
}
