package interfaces

import "context"

type AttachmentStorage interface {
	ListFiles(ctx context.Context) ([]string, error)
	ReadFile(ctx context.Context, name string) ([]byte, error)
	Upload(ctx context.Context, name string, data []byte, contentType string) error
	Delete(ctx context.Context, name string) error
}
