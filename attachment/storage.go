package attachment

import (
	"context"
)

// Storage keeps attachment bytes outside the database. Put returns the reference
// recorded on the attachment row; URL turns that reference into a fetchable url.
type Storage interface {
	Put(ctx context.Context, key string, data []byte, contentType string) (string, error)
	URL(ctx context.Context, ref string) (string, error)
}
