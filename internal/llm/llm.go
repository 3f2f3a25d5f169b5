// ABOUTME: Inference capability interface consumed by the pipeline
// ABOUTME: Two shapes: structured classification and free-text answering

package llm

import "context"

// Classification is the structured result of a classify call.
// Raw preserves the model's unparsed output for logging and debugging.
type Classification struct {
	Categories []string
	Reasoning  string
	Raw        string
}

// Inference is the opaque language-inference capability. Both calls may
// fail or time out; callers degrade rather than abort when they do.
type Inference interface {
	// Classify asks the model to map a prompt onto category tags.
	Classify(ctx context.Context, prompt string) (*Classification, error)

	// Answer asks the model for a free-text answer to a prompt.
	Answer(ctx context.Context, prompt string) (string, error)
}
