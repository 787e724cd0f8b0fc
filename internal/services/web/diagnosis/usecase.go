// Package diagnosis runs an uploaded leaf image through storage, inference,
// advisory, persistence and notification, and serves prediction history.
package diagnosis

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/NordCoder/CropSense/internal/advisory"
	"github.com/NordCoder/CropSense/internal/domain/notification"
	"github.com/NordCoder/CropSense/internal/domain/prediction"
	"github.com/NordCoder/CropSense/internal/domain/user"
	"github.com/NordCoder/CropSense/internal/inference"
	"github.com/NordCoder/CropSense/internal/obs"
	"github.com/NordCoder/CropSense/internal/services/notifier"
	"github.com/NordCoder/CropSense/internal/storage"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

var (
	ErrNoFile   = errors.New("no file uploaded")
	ErrNotImage = errors.New("upload is not a supported image")
)

const AlertSubject = "Crop Disease Alert"

var predictionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "cropsense_predictions_total",
	Help: "Persisted predictions by outcome (healthy, diseased, sentinel).",
}, []string{"outcome"})

type Transactor interface {
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error
}

type ImageStore interface {
	Put(ctx context.Context, filename string, data []byte) (storage.Ref, error)
	Materialize(ctx context.Context, ref storage.Ref, data []byte) (string, func(), error)
}

type Classifier interface {
	Classify(ctx context.Context, path string) inference.Result
}

type Dispatcher interface {
	Dispatch(ctx context.Context, a notifier.Alert) notifier.Delivery
}

type Deps struct {
	Store         ImageStore
	Engine        Classifier
	Predictions   prediction.Repo
	Notifications notification.Repo
	Events        prediction.Events
	Tx            Transactor
	Dispatcher    Dispatcher
	Log           *zap.Logger
	Now           func() time.Time
}

type Options struct {
	// AsyncNotify moves dispatch off the request onto a detached context.
	AsyncNotify bool
}

type Upload struct {
	Filename string
	Data     []byte
}

// Outcome is what the caller sees. Delivery results are deliberately absent.
type Outcome struct {
	Prediction *prediction.Prediction `json:"prediction"`
	Advisory   advisory.Advisory      `json:"advisory"`
}

type Usecase struct {
	d     Deps
	async bool
	wg    sync.WaitGroup
	log   *zap.Logger
}

func New(d Deps, opts Options) *Usecase {
	if d.Now == nil {
		d.Now = func() time.Time { return time.Now().UTC() }
	}
	if d.Log == nil {
		d.Log = zap.NewNop()
	}
	return &Usecase{d: d, async: opts.AsyncNotify, log: d.Log.With(zap.String("component", "diagnosis"))}
}

// Predict stores the upload, classifies it and persists the result. Only
// validation and persistence errors are returned: storage falls back to local
// disk, inference to a sentinel, and notification failures are swallowed.
// u may be nil for anonymous callers; they are never notified.
func (uc *Usecase) Predict(ctx context.Context, u *user.User, up Upload) (*Outcome, error) {
	if strings.TrimSpace(up.Filename) == "" {
		return nil, ErrNoFile
	}
	if _, err := inference.Format(up.Data); err != nil {
		return nil, ErrNotImage
	}

	ctx, span := obs.Tracer().Start(ctx, "diagnosis.predict")
	defer span.End()
	log := obs.WithTrace(ctx, uc.log)

	ref, err := uc.d.Store.Put(ctx, up.Filename, up.Data)
	if err != nil {
		obs.Fail(span, err)
		return nil, err
	}

	res := uc.classify(ctx, ref, up.Data)
	at := uc.d.Now().UTC()
	adv := advisory.Compose(res.Label, res.Certainty, at)

	p := &prediction.Prediction{
		ImagePath: ref.String(),
		Disease:   res.Label,
		Certainty: res.Certainty,
		CreatedAt: at,
	}
	var email string
	if u != nil {
		p.UserID = u.ID
		email = u.Email
	}

	err = uc.d.Tx.WithTx(ctx, func(ctx context.Context) error {
		if err := uc.d.Predictions.Create(ctx, p); err != nil {
			return err
		}
		return uc.d.Events.Recorded(ctx, p, email)
	})
	if err != nil {
		obs.Fail(span, err)
		return nil, fmt.Errorf("persist prediction: %w", err)
	}

	outcome := outcomeOf(res)
	predictionsTotal.WithLabelValues(outcome).Inc()
	span.SetAttributes(
		attribute.Int64("prediction.id", p.ID),
		attribute.String("prediction.outcome", outcome),
	)
	log.Info("prediction recorded",
		zap.Int64("prediction_id", p.ID),
		zap.String("label", p.Disease),
		zap.Int("certainty", p.Certainty),
		zap.Bool("remote_image", ref.Remote()),
	)

	if outcome == "diseased" && u != nil {
		uc.notify(ctx, alertFor(u, p, adv))
	}
	return &Outcome{Prediction: p, Advisory: adv}, nil
}

// classify runs the engine on a local copy of the stored image. The scratch
// copy of a remote object is removed whatever the result.
func (uc *Usecase) classify(ctx context.Context, ref storage.Ref, data []byte) inference.Result {
	path, release, err := uc.d.Store.Materialize(ctx, ref, data)
	defer release()
	if err != nil {
		obs.WithTrace(ctx, uc.log).Warn("image not readable for inference", zap.String("ref", ref.String()), zap.Error(err))
		return inference.Result{Label: inference.LabelInferenceFailed, Index: -1}
	}
	return uc.d.Engine.Classify(ctx, path)
}

func (uc *Usecase) notify(ctx context.Context, a notifier.Alert) {
	if !uc.async {
		uc.d.Dispatcher.Dispatch(ctx, a)
		return
	}
	detached := context.WithoutCancel(ctx)
	uc.wg.Add(1)
	go func() {
		defer uc.wg.Done()
		uc.d.Dispatcher.Dispatch(detached, a)
	}()
}

// Wait blocks until background dispatches finish.
func (uc *Usecase) Wait() { uc.wg.Wait() }

func outcomeOf(res inference.Result) string {
	switch {
	case res.Sentinel():
		return "sentinel"
	case prediction.IsHealthy(res.Label):
		return "healthy"
	default:
		return "diseased"
	}
}

func alertFor(u *user.User, p *prediction.Prediction, adv advisory.Advisory) notifier.Alert {
	return notifier.Alert{
		UserID:       u.ID,
		PredictionID: p.ID,
		Email:        u.Email,
		Phone:        u.Phone,
		Subject:      AlertSubject,
		EmailBody:    adv.Email,
		SMSBody:      adv.SMS,
	}
}

// Detail is one prediction with its delivery attempts.
type Detail struct {
	Prediction    *prediction.Prediction       `json:"prediction"`
	Notifications []*notification.Notification `json:"notifications"`
}

// Get returns a prediction owned by userID. Other users' predictions are
// reported as not found.
func (uc *Usecase) Get(ctx context.Context, userID, id int64) (*Detail, error) {
	p, err := uc.d.Predictions.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if p.UserID != userID {
		return nil, prediction.ErrNotFound
	}
	ns, err := uc.d.Notifications.ListByPrediction(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("list notifications: %w", err)
	}
	if ns == nil {
		ns = []*notification.Notification{}
	}
	return &Detail{Prediction: p, Notifications: ns}, nil
}
