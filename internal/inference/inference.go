// Package inference wraps the external vision-capable model. The rest of
// the pipeline only sees the Adapter interface, so the provider can be
// swapped without touching the orchestrator.
package inference

import (
	"context"
	"errors"
)

var (
	// ErrAuth means the provider rejected the user's API key.
	ErrAuth = errors.New("provider rejected API key")
	// ErrProvider covers every other upstream failure: timeout, quota,
	// malformed request, empty response.
	ErrProvider = errors.New("provider request failed")
)

// Adapter sends a chart image to an external model and returns its raw,
// unstructured text response. Implementations must not retry internally;
// retry policy belongs to the caller.
type Adapter interface {
	Infer(ctx context.Context, apiKey string, image []byte, mimeType, mode string) (string, error)
}
