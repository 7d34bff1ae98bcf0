package interfaces

import "context"

// AIProvider turns a prompt into raw model text.
type AIProvider interface {
	Generate(ctx context.Context, prompt string) (string, error)
}
