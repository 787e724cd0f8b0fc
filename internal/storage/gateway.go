package storage

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"

	"github.com/NordCoder/CropSense/internal/obs"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"
)

var storageWrites = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "cropsense_storage_writes_total",
	Help: "Stored uploads by backend (remote, local, failed).",
}, []string{"backend"})

// Gateway stores uploads remotely when it can and on local disk otherwise,
// and resolves any reference it produced back to bytes.
type Gateway struct {
	remote ObjectStore
	local  *LocalDisk
	log    *zap.Logger
}

func NewGateway(remote ObjectStore, local *LocalDisk, log *zap.Logger) *Gateway {
	if remote == nil {
		remote = Disabled()
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Gateway{remote: remote, local: local, log: log.With(zap.String("component", "storage.gateway"))}
}

// Put stores data and returns its durable reference. It only fails when the
// local fallback cannot be written either.
func (g *Gateway) Put(ctx context.Context, filename string, data []byte) (Ref, error) {
	key := NewKey(filename)

	ref, err := g.remote.Put(ctx, key, data, http.DetectContentType(data))
	if err == nil {
		storageWrites.WithLabelValues("remote").Inc()
		return ref, nil
	}
	if !errors.Is(err, ErrRemoteDisabled) {
		obs.WithTrace(ctx, g.log).Warn("remote upload failed, using local disk", zap.String("key", key), zap.Error(err))
	}

	ref, err = g.local.Put(key, data)
	if err != nil {
		storageWrites.WithLabelValues("failed").Inc()
		return "", fmt.Errorf("store image: %w", err)
	}
	storageWrites.WithLabelValues("local").Inc()
	return ref, nil
}

// Fetch returns the bytes behind a reference.
func (g *Gateway) Fetch(ctx context.Context, ref Ref) ([]byte, error) {
	if ref.Remote() {
		return g.remote.Fetch(ctx, ref)
	}
	return g.local.Read(ref)
}

// Materialize returns a local file holding the referenced image. For remote
// references a scratch copy is written from data (or fetched when data is nil);
// release removes it. For local references release is a no-op.
func (g *Gateway) Materialize(ctx context.Context, ref Ref, data []byte) (string, func(), error) {
	if !ref.Remote() {
		p, err := g.local.Path(ref)
		if err != nil {
			return "", func() {}, err
		}
		if _, err := os.Stat(p); err != nil {
			return "", func() {}, fmt.Errorf("materialize %s: %w", ref, err)
		}
		return p, func() {}, nil
	}

	if data == nil {
		var err error
		if data, err = g.Fetch(ctx, ref); err != nil {
			return "", func() {}, fmt.Errorf("materialize %s: %w", ref.Key(), err)
		}
	}
	return g.local.TempCopy(ref.Key(), data)
}
