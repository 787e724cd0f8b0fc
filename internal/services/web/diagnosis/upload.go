package diagnosis

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
)

const DefaultMaxUpload = 10 << 20

var ErrTooLarge = errors.New("upload too large")

// readUpload pulls the "file" part out of a multipart request whose body is
// already capped by http.MaxBytesReader.
func readUpload(r *http.Request, max int64) (Upload, error) {
	if err := r.ParseMultipartForm(max); err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			return Upload{}, ErrTooLarge
		}
		return Upload{}, ErrNoFile
	}
	f, fh, err := r.FormFile("file")
	if err != nil {
		return Upload{}, ErrNoFile
	}
	defer f.Close()
	return readPart(f, fh, max)
}

func readPart(f multipart.File, fh *multipart.FileHeader, max int64) (Upload, error) {
	if fh.Size > max {
		return Upload{}, ErrTooLarge
	}
	data, err := io.ReadAll(io.LimitReader(f, max+1))
	if err != nil {
		return Upload{}, fmt.Errorf("read upload: %w", err)
	}
	if int64(len(data)) > max {
		return Upload{}, ErrTooLarge
	}
	return Upload{Filename: fh.Filename, Data: data}, nil
}

func limitBody(w http.ResponseWriter, r *http.Request, max int64) {
	// multipart framing needs headroom beyond the file itself
	r.Body = http.MaxBytesReader(w, r.Body, max+1<<20)
}
