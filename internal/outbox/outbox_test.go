package outbox

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/NordCoder/CropSense/internal/domain/outbox"
	"github.com/NordCoder/CropSense/internal/domain/prediction"
	"github.com/NordCoder/CropSense/internal/obs/retry"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type memRepo struct {
	mu      sync.Mutex
	pending []outbox.Message
	done    []string
	pickErr error
}

func (m *memRepo) Enqueue(_ context.Context, msg outbox.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.pending {
		if p.IdempotencyKey == msg.IdempotencyKey {
			return nil
		}
	}
	msg.Status = outbox.StatusCreated
	m.pending = append(m.pending, msg)
	return nil
}

func (m *memRepo) PickBatch(_ context.Context, batch int, _ time.Duration) ([]outbox.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.pickErr != nil {
		return nil, m.pickErr
	}
	var out []outbox.Message
	for i := range m.pending {
		if len(out) == batch {
			break
		}
		if m.pending[i].Status == outbox.StatusCreated {
			m.pending[i].Status = outbox.StatusInProgress
			out = append(out, m.pending[i])
		}
	}
	return out, nil
}

func (m *memRepo) MarkSuccess(_ context.Context, keys []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.done = append(m.done, keys...)
	return nil
}

type fakePublisher struct {
	mu    sync.Mutex
	calls int
	fail  int
	got   []prediction.RecordedEvent
}

func (f *fakePublisher) PublishPredictionRecorded(_ context.Context, ev prediction.RecordedEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.calls <= f.fail {
		return errors.New("broker unavailable")
	}
	f.got = append(f.got, ev)
	return nil
}

var recorded = &prediction.Prediction{
	ID:        42,
	UserID:    7,
	ImagePath: "https://store/x.jpg",
	Disease:   "Tomato Late Blight",
	Certainty: 87,
	CreatedAt: time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC),
}

func fastPolicy(attempts int) retry.Policy {
	return retry.Policy{Attempts: attempts, Backoff: retry.ExpoJitter{Base: time.Millisecond}}
}

func TestRecordedEvent(t *testing.T) {
	ev := RecordedEvent(recorded, "farmer@example.com")
	require.Equal(t, int64(42), ev.ID)
	require.NotNil(t, ev.UserID)
	require.Equal(t, int64(7), *ev.UserID)
	require.Equal(t, "2024-03-01T15:30:00+05:30", ev.CreatedAt)

	anon := *recorded
	anon.UserID = 0
	require.Nil(t, RecordedEvent(&anon, "").UserID)
}

func TestPredictionEnqueuer(t *testing.T) {
	repo := &memRepo{}
	e := NewPredictionEnqueuer(repo)

	require.NoError(t, e.Recorded(context.Background(), recorded, "farmer@example.com"))
	require.NoError(t, e.Recorded(context.Background(), recorded, "farmer@example.com"))
	require.Len(t, repo.pending, 1)

	m := repo.pending[0]
	require.Equal(t, "prediction.recorded:42", m.IdempotencyKey)
	require.Equal(t, outbox.KindPredictionRecorded, m.Kind)

	var ev prediction.RecordedEvent
	require.NoError(t, json.Unmarshal(m.Data, &ev))
	require.Equal(t, "farmer@example.com", ev.UserEmail)
	require.Equal(t, "Tomato Late Blight", ev.Disease)

	require.NoError(t, Discard().Recorded(context.Background(), recorded, ""))
}

func TestGlobalHandler(t *testing.T) {
	pub := &fakePublisher{fail: 2}
	dispatch := MakeGlobalOutboxHandler(pub, fastPolicy(3))

	h, err := dispatch(outbox.KindPredictionRecorded)
	require.NoError(t, err)

	data, _ := json.Marshal(RecordedEvent(recorded, ""))
	require.NoError(t, h(context.Background(), data))
	require.Equal(t, 3, pub.calls)
	require.Equal(t, "Tomato Late Blight", pub.got[0].Disease)

	calls := pub.calls
	err = h(context.Background(), []byte("{not json"))
	require.Error(t, err)
	require.True(t, retry.IsPermanent(err))
	require.Equal(t, calls, pub.calls)

	_, err = dispatch(outbox.Kind(99))
	require.Error(t, err)
}

func TestRunnerTick(t *testing.T) {
	repo := &memRepo{}
	e := NewPredictionEnqueuer(repo)
	require.NoError(t, e.Recorded(context.Background(), recorded, ""))
	second := *recorded
	second.ID = 43
	require.NoError(t, e.Recorded(context.Background(), &second, ""))
	require.NoError(t, repo.Enqueue(context.Background(), outbox.Message{IdempotencyKey: "unknown:1", Kind: 99, Data: []byte("{}")}))

	pub := &fakePublisher{}
	r := NewOutboxRunner(zap.NewNop(), repo, MakeGlobalOutboxHandler(pub, fastPolicy(1)), RunnerConfig{BatchSize: 10})

	require.Equal(t, 2, r.tick(context.Background()))
	require.ElementsMatch(t, []string{"prediction.recorded:42", "prediction.recorded:43"}, repo.done)
	require.Len(t, pub.got, 2)

	require.Equal(t, 0, r.tick(context.Background()))

	repo.pickErr = errors.New("db down")
	require.Equal(t, 0, r.tick(context.Background()))
}

func TestRunnerStartStop(t *testing.T) {
	repo := &memRepo{}
	require.NoError(t, NewPredictionEnqueuer(repo).Recorded(context.Background(), recorded, ""))
	pub := &fakePublisher{}
	r := NewOutboxRunner(zap.NewNop(), repo, MakeGlobalOutboxHandler(pub, fastPolicy(1)),
		RunnerConfig{Workers: 2, Wait: 5 * time.Millisecond})

	ctx, cancel := context.WithCancel(context.Background())
	r.Start(ctx)
	require.Eventually(t, func() bool {
		pub.mu.Lock()
		defer pub.mu.Unlock()
		return len(pub.got) == 1
	}, 2*time.Second, 5*time.Millisecond)
	cancel()
	r.Wait()
}

func TestRunnerDropsUndecodablePayload(t *testing.T) {
	repo := &memRepo{}
	require.NoError(t, repo.Enqueue(context.Background(), outbox.Message{
		IdempotencyKey: "prediction.recorded:9",
		Kind:           outbox.KindPredictionRecorded,
		Data:           []byte("{truncated"),
	}))
	pub := &fakePublisher{}
	r := NewOutboxRunner(zap.NewNop(), repo, MakeGlobalOutboxHandler(pub, fastPolicy(5)), RunnerConfig{BatchSize: 10})

	require.Equal(t, 0, r.tick(context.Background()))
	require.Equal(t, []string{"prediction.recorded:9"}, repo.done)
	require.Zero(t, pub.calls)
}
