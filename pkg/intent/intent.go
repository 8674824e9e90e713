// Package intent defines the structured intents produced by
// classification and the executor that dispatches them to registered
// handlers. Handlers own the business logic for a single intent; the
// executor owns everything around the call: conversation context
// hydration, panic containment, latency measurement and metrics.
package intent

import "context"

// Intent is a structured interpretation of a user utterance.
type Intent struct {
	Name         string         `json:"name"`
	Slots        map[string]any `json:"slots,omitempty"`
	Confidence   float64        `json:"confidence"`
	Tier         int            `json:"tier"`
	OriginalText string         `json:"original_text,omitempty"`
}

// Result is what a handler returns to the executor.
type Result struct {
	Success bool           `json:"success"`
	Message string         `json:"message"`
	Data    map[string]any `json:"data,omitempty"`
}

// Handler executes a single intent. convContext carries the caller's
// conversation context as a plain map; it may be empty but is never nil.
type Handler interface {
	Handle(ctx context.Context, it *Intent, userID string, convContext map[string]any) (Result, error)
}

// HandlerFunc adapts a function to the Handler interface.
type HandlerFunc func(ctx context.Context, it *Intent, userID string, convContext map[string]any) (Result, error)

func (f HandlerFunc) Handle(ctx context.Context, it *Intent, userID string, convContext map[string]any) (Result, error) {
	return f(ctx, it, userID, convContext)
}

// ExecutionResult is the executor's outward-facing outcome. Handler
// errors and panics are converted into generic user-safe messages and
// never propagate past the executor.
type ExecutionResult struct {
	Success   bool           `json:"success"`
	Message   string         `json:"message"`
	Data      map[string]any `json:"data,omitempty"`
	LatencyMS int64          `json:"latency_ms"`
}
