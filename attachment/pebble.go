package attachment

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"strings"

	"github.com/cockroachdb/pebble"
	"github.com/cockroachdb/pebble/vfs"

	"github.com/habiliai/lodgechat/errors"
)

const (
	blobPrefix = "blob:"
	typePrefix = "type:"
)

// PebbleStorage keeps attachment bytes in an embedded pebble store and serves them
// itself under /files/{key}.
type PebbleStorage struct {
	db            *pebble.DB
	publicBaseUrl string
}

var (
	_ Storage      = (*PebbleStorage)(nil)
	_ http.Handler = (*PebbleStorage)(nil)
)

// OpenPebbleStorage opens the store at path, or an in-memory store when path is empty.
func OpenPebbleStorage(path string, publicBaseUrl string) (*PebbleStorage, error) {
	opts := &pebble.Options{}
	if path == "" {
		opts.FS = vfs.NewMem()
	} else if err := os.MkdirAll(path, 0700); err != nil {
		return nil, errors.Wrapf(err, "failed to create storage directory")
	}

	db, err := pebble.Open(path, opts)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open pebble storage")
	}

	return &PebbleStorage{
		db:            db,
		publicBaseUrl: strings.TrimRight(publicBaseUrl, "/"),
	}, nil
}

func (s *PebbleStorage) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *PebbleStorage) Put(_ context.Context, key string, data []byte, contentType string) (string, error) {
	if _, closer, err := s.db.Get([]byte(blobPrefix + key)); err == nil {
		closer.Close()
		return "", errors.Errorf("object %s already exists", key)
	} else if !errors.Is(err, pebble.ErrNotFound) {
		return "", errors.Wrapf(err, "failed to check object")
	}

	batch := s.db.NewBatch()
	defer batch.Close()

	if err := batch.Set([]byte(blobPrefix+key), data, nil); err != nil {
		return "", errors.Wrapf(err, "failed to stage object")
	}
	if err := batch.Set([]byte(typePrefix+key), []byte(contentType), nil); err != nil {
		return "", errors.Wrapf(err, "failed to stage content type")
	}
	if err := batch.Commit(pebble.Sync); err != nil {
		return "", errors.Wrapf(err, "failed to write object")
	}

	return key, nil
}

func (s *PebbleStorage) URL(_ context.Context, ref string) (string, error) {
	return fmt.Sprintf("%s/files/%s", s.publicBaseUrl, escapeKey(ref)), nil
}

// Get returns a copy of the stored object and its content type.
func (s *PebbleStorage) Get(key string) ([]byte, string, error) {
	data, err := s.get(blobPrefix + key)
	if err != nil {
		return nil, "", err
	}
	contentType, err := s.get(typePrefix + key)
	if err != nil && !errors.Is(err, errors.ErrNotFound) {
		return nil, "", err
	}

	return data, string(contentType), nil
}

func (s *PebbleStorage) get(key string) ([]byte, error) {
	v, closer, err := s.db.Get([]byte(key))
	if errors.Is(err, pebble.ErrNotFound) {
		return nil, errors.Wrapf(errors.ErrNotFound, "object %s", key)
	} else if err != nil {
		return nil, errors.Wrapf(err, "failed to read object")
	}
	defer closer.Close()

	out := make([]byte, len(v))
	copy(out, v)
	return out, nil
}

// ServeHTTP serves the object named by the request path. Mount it behind
// http.StripPrefix("/files/", ...).
func (s *PebbleStorage) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		w.Header().Set("Allow", "GET, HEAD")
		http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
		return
	}

	key := strings.TrimPrefix(r.URL.Path, "/")
	if key == "" {
		http.NotFound(w, r)
		return
	}

	data, contentType, err := s.Get(key)
	if errors.Is(err, errors.ErrNotFound) {
		http.NotFound(w, r)
		return
	} else if err != nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	if contentType == "" {
		contentType = "application/octet-stream"
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.Header().Set("Cache-Control", "public, max-age=31536000, immutable")
	w.WriteHeader(http.StatusOK)
	if r.Method == http.MethodGet {
		_, _ = w.Write(data)
	}
}
