package storage

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

type fakeStore struct {
	putErr  error
	fetched []byte
	puts    []string
}

func (f *fakeStore) Put(_ context.Context, key string, _ []byte, _ string) (Ref, error) {
	if f.putErr != nil {
		return "", f.putErr
	}
	f.puts = append(f.puts, key)
	return Ref("https://store/" + key), nil
}

func (f *fakeStore) Fetch(context.Context, Ref) ([]byte, error) {
	if f.fetched == nil {
		return nil, errors.New("gone")
	}
	return f.fetched, nil
}

func TestGateway_RemoteSuccess(t *testing.T) {
	remote := &fakeStore{}
	g := NewGateway(remote, newLocal(t), nil)

	ref, err := g.Put(context.Background(), "leaf.jpg", []byte("jpegbytes"))
	require.NoError(t, err)
	require.True(t, ref.Remote())
	require.Len(t, remote.puts, 1)
	require.True(t, strings.HasSuffix(remote.puts[0], "_leaf.jpg"))
}

func TestGateway_FallsBackToLocal(t *testing.T) {
	local := newLocal(t)
	for name, remote := range map[string]ObjectStore{
		"failing":  &fakeStore{putErr: errors.New("503")},
		"disabled": Disabled(),
		"nil":      nil,
	} {
		t.Run(name, func(t *testing.T) {
			g := NewGateway(remote, local, nil)
			ref, err := g.Put(context.Background(), "leaf.jpg", []byte("jpegbytes"))
			require.NoError(t, err)
			require.False(t, ref.Remote())
			require.Regexp(t, `^/static/uploads/[0-9a-f]{32}_leaf\.jpg$`, string(ref))

			data, err := g.Fetch(context.Background(), ref)
			require.NoError(t, err)
			require.Equal(t, []byte("jpegbytes"), data)
		})
	}
}

func TestGateway_LocalFailureIsAnError(t *testing.T) {
	local := newLocal(t)
	require.NoError(t, os.RemoveAll(local.Dir()))
	require.NoError(t, os.WriteFile(local.Dir(), []byte("file, not dir"), 0o600))

	g := NewGateway(Disabled(), local, nil)
	_, err := g.Put(context.Background(), "leaf.jpg", []byte("x"))
	require.Error(t, err)
}

func TestGateway_MaterializeLocal(t *testing.T) {
	g := NewGateway(Disabled(), newLocal(t), nil)
	ref, err := g.Put(context.Background(), "leaf.jpg", []byte("x"))
	require.NoError(t, err)

	p, release, err := g.Materialize(context.Background(), ref, nil)
	require.NoError(t, err)
	release()
	require.FileExists(t, p, "local originals survive release")
}

func TestGateway_MaterializeRemote(t *testing.T) {
	local := newLocal(t)
	remote := &fakeStore{fetched: []byte("from-store")}
	g := NewGateway(remote, local, nil)
	ref := Ref("https://store/abc_leaf.jpg")

	p, release, err := g.Materialize(context.Background(), ref, []byte("in-hand"))
	require.NoError(t, err)
	data, err := os.ReadFile(p)
	require.NoError(t, err)
	require.Equal(t, "in-hand", string(data))
	release()
	require.NoFileExists(t, p)

	p, release, err = g.Materialize(context.Background(), ref, nil)
	require.NoError(t, err)
	data, err = os.ReadFile(p)
	require.NoError(t, err)
	require.Equal(t, "from-store", string(data))
	release()
	require.NoFileExists(t, p)

	remote.fetched = nil
	_, release, err = g.Materialize(context.Background(), ref, nil)
	require.Error(t, err)
	release()
}

func TestSupabase_PutAndFetch(t *testing.T) {
	var gotAuth, gotKey, gotType, gotBody string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/storage/v1/object/plant-images/abc_leaf.jpg":
			gotAuth = r.Header.Get("Authorization")
			gotKey = r.Header.Get("apikey")
			gotType = r.Header.Get("Content-Type")
			b, _ := io.ReadAll(r.Body)
			gotBody = string(b)
			_, _ = w.Write([]byte(`{"Key":"plant-images/abc_leaf.jpg"}`))
		case r.Method == http.MethodGet && r.URL.Path == "/storage/v1/object/public/plant-images/abc_leaf.jpg":
			_, _ = w.Write([]byte("stored"))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	s := NewSupabase(SupabaseConfig{URL: srv.URL + "/", Key: "service-key", Bucket: "plant-images"})

	ref, err := s.Put(context.Background(), "abc_leaf.jpg", []byte("payload"), "image/jpeg")
	require.NoError(t, err)
	require.Equal(t, Ref(srv.URL+"/storage/v1/object/public/plant-images/abc_leaf.jpg"), ref)
	require.Equal(t, "Bearer service-key", gotAuth)
	require.Equal(t, "service-key", gotKey)
	require.Equal(t, "image/jpeg", gotType)
	require.Equal(t, "payload", gotBody)

	data, err := s.Fetch(context.Background(), ref)
	require.NoError(t, err)
	require.Equal(t, "stored", string(data))
}

func TestSupabase_UploadErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, `{"error":"Duplicate"}`, http.StatusConflict)
	}))
	defer srv.Close()

	s := NewSupabase(SupabaseConfig{URL: srv.URL, Key: "k", Bucket: "b"})
	_, err := s.Put(context.Background(), "x.jpg", []byte("p"), "image/jpeg")
	require.ErrorContains(t, err, "status 409")

	_, err = s.Fetch(context.Background(), Ref("/static/uploads/x.jpg"))
	require.Error(t, err)
}
