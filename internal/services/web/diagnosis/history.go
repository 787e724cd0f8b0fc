package diagnosis

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/NordCoder/CropSense/internal/advisory"
	"github.com/NordCoder/CropSense/internal/domain/prediction"
	"golang.org/x/sync/errgroup"
)

const (
	HistoryLimit = 20
	AlertsLimit  = 5
)

// Query holds the raw history filters as the user typed them.
type Query struct {
	Crop     string `json:"crop,omitempty"`
	Disease  string `json:"disease,omitempty"`
	DateFrom string `json:"date_from,omitempty"`
	DateTo   string `json:"date_to,omitempty"`
}

type History struct {
	Items  []*prediction.Prediction `json:"items"`
	Stats  prediction.Stats         `json:"stats"`
	Alerts []*prediction.Prediction `json:"alerts"`
	Query  Query                    `json:"query"`
}

// Filter converts the query for userID. Dates are calendar days in IST, or
// full RFC 3339 instants; date_to covers its whole day. Unparsable dates are
// dropped.
func (q Query) Filter(userID int64) prediction.Filter {
	f := prediction.Filter{
		UserID:  userID,
		Crop:    strings.TrimSpace(q.Crop),
		Disease: strings.TrimSpace(q.Disease),
		Limit:   HistoryLimit,
	}
	if t, _, ok := parseDate(q.DateFrom); ok {
		f.From = t
	}
	if t, day, ok := parseDate(q.DateTo); ok {
		if day {
			f.To = t.AddDate(0, 0, 1)
		} else {
			f.To = t.Add(time.Nanosecond)
		}
	}
	return f
}

// parseDate returns the instant and whether s was a bare calendar day.
func parseDate(s string) (t time.Time, day, ok bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false, false
	}
	if t, err := time.ParseInLocation(time.DateOnly, s, advisory.IST); err == nil {
		return t.UTC(), true, true
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.UTC(), false, true
	}
	return time.Time{}, false, false
}

// History returns the filtered listing plus the user's unfiltered aggregates.
func (uc *Usecase) History(ctx context.Context, userID int64, q Query) (*History, error) {
	out := &History{Query: q}
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		items, err := uc.d.Predictions.List(gctx, q.Filter(userID))
		if err != nil {
			return fmt.Errorf("list predictions: %w", err)
		}
		out.Items = items
		return nil
	})
	g.Go(func() error {
		st, err := uc.d.Predictions.Stats(gctx, userID)
		if err != nil {
			return fmt.Errorf("prediction stats: %w", err)
		}
		out.Stats = st
		return nil
	})
	g.Go(func() error {
		alerts, err := uc.d.Predictions.RecentAlerts(gctx, userID, AlertsLimit)
		if err != nil {
			return fmt.Errorf("recent alerts: %w", err)
		}
		out.Alerts = alerts
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if out.Items == nil {
		out.Items = []*prediction.Prediction{}
	}
	if out.Alerts == nil {
		out.Alerts = []*prediction.Prediction{}
	}
	return out, nil
}
