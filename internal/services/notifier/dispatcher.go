package notifier

import (
	"context"
	"time"

	"github.com/NordCoder/CropSense/internal/domain/notification"
	"github.com/NordCoder/CropSense/internal/obs"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

var notificationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "cropsense_notifications_total",
	Help: "Notification attempts by channel and status.",
}, []string{"channel", "status"})

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// Alert is what a dispatch delivers. Empty Email or Phone skips that channel.
type Alert struct {
	UserID       int64
	PredictionID int64
	Email        string
	Phone        string
	Subject      string
	EmailBody    string
	SMSBody      string
}

// Delivery reports the outcome per channel. Attempted is false when the
// recipient had no contact info for it.
type Delivery struct {
	EmailAttempted bool
	EmailSent      bool
	SMSAttempted   bool
	SMSSent        bool
}

// Dispatcher sends an alert over every reachable channel. Channels run
// independently and every attempt is stored as a Notification.
type Dispatcher struct {
	Email   notification.EmailSender
	SMS     notification.SMSSender
	Store   notification.Repo
	Clock   notification.Clock
	Log     *zap.Logger
	Timeout time.Duration
}

func (d *Dispatcher) Dispatch(ctx context.Context, a Alert) Delivery {
	if d.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.Timeout)
		defer cancel()
	}

	var out Delivery
	var g errgroup.Group

	if a.Email != "" && d.Email != nil {
		out.EmailAttempted = true
		g.Go(func() error {
			err := d.Email.Send(ctx, a.Email, a.Subject, a.EmailBody)
			out.EmailSent = d.settle(ctx, a, notification.ChannelEmail, err)
			return nil
		})
	}
	if a.Phone != "" && d.SMS != nil {
		out.SMSAttempted = true
		g.Go(func() error {
			err := d.SMS.Send(ctx, a.Phone, a.SMSBody)
			out.SMSSent = d.settle(ctx, a, notification.ChannelSMS, err)
			return nil
		})
	}
	_ = g.Wait()
	return out
}

func (d *Dispatcher) settle(ctx context.Context, a Alert, ch notification.Channel, sendErr error) bool {
	status := notification.StatusSent
	if sendErr != nil {
		status = notification.StatusFailed
		d.logger(ctx).Warn("notification not delivered",
			zap.String("channel", string(ch)),
			zap.Int64("prediction_id", a.PredictionID),
			zap.Error(sendErr),
		)
	}
	notificationsTotal.WithLabelValues(string(ch), string(status)).Inc()

	if d.Store != nil {
		n := &notification.Notification{
			UserID:       a.UserID,
			PredictionID: a.PredictionID,
			Channel:      ch,
			Status:       status,
			CreatedAt:    d.now().UTC(),
		}
		if err := d.Store.Create(context.WithoutCancel(ctx), n); err != nil {
			d.logger(ctx).Error("store notification", zap.String("channel", string(ch)), zap.Error(err))
		}
	}
	return sendErr == nil
}

func (d *Dispatcher) now() time.Time {
	if d.Clock == nil {
		return systemClock{}.Now()
	}
	return d.Clock.Now()
}

func (d *Dispatcher) logger(ctx context.Context) *zap.Logger {
	if d.Log == nil {
		return zap.NewNop()
	}
	return obs.WithTrace(ctx, d.Log)
}
