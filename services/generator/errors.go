package generator

import "fmt"

type GenerationStage string

const (
	StageProvider GenerationStage = "provider"
	StageParse    GenerationStage = "parse"
)

// GenerationError says which step of candidate generation failed.
type GenerationError struct {
	Stage GenerationStage
	Err   error
}

func (e *GenerationError) Error() string {
	return fmt.Sprintf("generation failed at %s stage: %v", e.Stage, e.Err)
}

func (e *GenerationError) Unwrap() error {
	return e.Err
}
