package attachment

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/habiliai/lodgechat/errors"
)

// SupabaseStorage talks to the Supabase Storage REST object API of one bucket.
type SupabaseStorage struct {
	BaseURL        string
	ServiceRoleKey string
	BucketName     string

	client *http.Client
}

var (
	_ Storage = (*SupabaseStorage)(nil)
)

func NewSupabaseStorage(baseUrl, serviceRoleKey, bucketName string) *SupabaseStorage {
	return &SupabaseStorage{
		BaseURL:        strings.TrimRight(baseUrl, "/"),
		ServiceRoleKey: serviceRoleKey,
		BucketName:     bucketName,
		client:         &http.Client{Timeout: 30 * time.Second},
	}
}

func (s *SupabaseStorage) Put(ctx context.Context, key string, data []byte, contentType string) (string, error) {
	endpoint := fmt.Sprintf("%s/storage/v1/object/%s/%s", s.BaseURL, s.BucketName, escapeKey(key))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(data))
	if err != nil {
		return "", errors.Wrapf(err, "failed to create request")
	}

	req.Header.Set("Authorization", "Bearer "+s.ServiceRoleKey)
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("x-upsert", "false")

	resp, err := s.client.Do(req)
	if err != nil {
		return "", errors.Wrapf(err, "failed to upload object")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
		return "", errors.Errorf("upload failed with status %d: %s", resp.StatusCode, string(body))
	}

	return key, nil
}

func (s *SupabaseStorage) URL(_ context.Context, ref string) (string, error) {
	return fmt.Sprintf("%s/storage/v1/object/public/%s/%s", s.BaseURL, s.BucketName, escapeKey(ref)), nil
}

func escapeKey(key string) string {
	parts := strings.Split(key, "/")
	for i, part := range parts {
		parts[i] = url.PathEscape(part)
	}
	return strings.Join(parts, "/")
}
