package storage

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"io"
)

// ObjectStorage defines the object operations the API server needs,
// implemented by the MinIO and GCS backends.
type ObjectStorage interface {
	EnsureBucket(ctx context.Context) error
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error
	Get(ctx context.Context, key string) (io.ReadCloser, error)
	Delete(ctx context.Context, key string) error
	Bucket() string
}

// ImageKey builds a collision-resistant object key for a user's
// uploaded plant image, e.g. "users/42/9f8a...c1.jpg".
func ImageKey(userID int, ext string) string {
	buf := make([]byte, 16)
	_, _ = rand.Read(buf)
	return fmt.Sprintf("users/%d/%s%s", userID, hex.EncodeToString(buf), ext)
}
