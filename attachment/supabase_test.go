package attachment_test

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/habiliai/lodgechat/attachment"
)

func TestSupabaseStoragePut(t *testing.T) {
	var (
		gotPath   string
		gotAuth   string
		gotType   string
		gotUpsert string
		gotBody   []byte
	)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.EscapedPath()
		gotAuth = r.Header.Get("Authorization")
		gotType = r.Header.Get("Content-Type")
		gotUpsert = r.Header.Get("x-upsert")
		gotBody, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"Key":"attachments/tenant-1/a b.txt"}`))
	}))
	defer server.Close()

	storage := attachment.NewSupabaseStorage(server.URL+"/", "service-key", "attachments")

	ref, err := storage.Put(context.Background(), "tenant-1/a b.txt", []byte("hello"), "text/plain")
	require.NoError(t, err)
	require.Equal(t, "tenant-1/a b.txt", ref)
	require.Equal(t, "/storage/v1/object/attachments/tenant-1/a%20b.txt", gotPath)
	require.Equal(t, "Bearer service-key", gotAuth)
	require.Equal(t, "text/plain", gotType)
	require.Equal(t, "false", gotUpsert)
	require.Equal(t, "hello", string(gotBody))

	url, err := storage.URL(context.Background(), ref)
	require.NoError(t, err)
	require.Equal(t, server.URL+"/storage/v1/object/public/attachments/tenant-1/a%20b.txt", url)
}

func TestSupabaseStoragePutFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"Duplicate"}`, http.StatusConflict)
	}))
	defer server.Close()

	storage := attachment.NewSupabaseStorage(server.URL, "service-key", "attachments")

	_, err := storage.Put(context.Background(), "tenant-1/a.txt", []byte("hello"), "text/plain")
	require.Error(t, err)
	require.Contains(t, err.Error(), "409")
}
