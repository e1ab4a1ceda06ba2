package port

import "context"

// ImageStore keeps the uploaded source images referenced by entries
type ImageStore interface {
	Save(ctx context.Context, key string, content []byte) error
	Read(ctx context.Context, key string) ([]byte, error)
	Exists(ctx context.Context, key string) bool
	Delete(ctx context.Context, key string) error
	GetFullPath(key string) string
}
