package intent

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"
	"go.opentelemetry.io/otel/attribute"

	"github.com/zoe-assistant/zoe/pkg/convctx"
	"github.com/zoe-assistant/zoe/pkg/logger"
	"github.com/zoe-assistant/zoe/pkg/metrics"
	"github.com/zoe-assistant/zoe/pkg/telemetry"
)

const (
	msgUnknownIntent = "I don't know how to handle that yet."
	msgHandlerError  = "Sorry, I encountered an error."
)

// Executor dispatches intents to registered handlers. All failure
// modes surface as an ExecutionResult with a user-safe message; the
// executor itself never returns an error to the caller.
type Executor struct {
	mu       sync.RWMutex
	handlers map[string]Handler

	contexts  convctx.Store
	collector metrics.Collector
}

// NewExecutor creates an executor. Both stores are optional; pass nil
// to skip context hydration or metrics recording.
func NewExecutor(contexts convctx.Store, collector metrics.Collector) *Executor {
	if collector == nil {
		collector = metrics.NopCollector{}
	}
	return &Executor{
		handlers:  make(map[string]Handler),
		contexts:  contexts,
		collector: collector,
	}
}

// Register binds a handler to an intent name, replacing any previous
// handler for that name.
func (e *Executor) Register(name string, handler Handler) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.handlers[name] = handler
}

// Handlers returns the registered intent names.
func (e *Executor) Handlers() []string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	names := make([]string, 0, len(e.handlers))
	for name := range e.handlers {
		names = append(names, name)
	}
	return names
}

// Execute runs the handler for it.Name and reports the outcome.
// A nil or unnamed intent fails immediately with zero latency.
func (e *Executor) Execute(ctx context.Context, it *Intent, userID, sessionID string) ExecutionResult {
	return e.ExecuteWithContext(ctx, it, userID, sessionID, nil)
}

// ExecuteWithContext is Execute with extra context entries merged into
// the map the handler receives, on top of the stored conversation
// context. The router uses this to attach retrieved long-term context.
func (e *Executor) ExecuteWithContext(ctx context.Context, it *Intent, userID, sessionID string, extra map[string]any) ExecutionResult {
	if it == nil || it.Name == "" {
		return ExecutionResult{Success: false, Message: msgUnknownIntent}
	}

	ctx, span := telemetry.Tracer("intent").Start(ctx, "intent.execute")
	defer span.End()
	span.SetAttributes(
		attribute.String("intent.name", it.Name),
		attribute.Int("intent.tier", it.Tier),
	)

	start := time.Now()

	e.mu.RLock()
	handler, ok := e.handlers[it.Name]
	e.mu.RUnlock()

	var result ExecutionResult
	if !ok {
		logger.G(ctx).WithField("intent", it.Name).Debug("no handler registered for intent")
		result = ExecutionResult{Success: false, Message: msgUnknownIntent}
	} else {
		result = e.runHandler(ctx, handler, it, userID, sessionID, extra)
	}
	result.LatencyMS = time.Since(start).Milliseconds()

	if err := e.collector.RecordExecution(ctx, metrics.Record{
		UserID:     userID,
		Intent:     it.Name,
		Tier:       it.Tier,
		Confidence: it.Confidence,
		LatencyMS:  result.LatencyMS,
		Success:    result.Success,
		InputText:  it.OriginalText,
		Source:     "intent_executor",
	}); err != nil {
		logger.G(ctx).WithError(err).Warn("failed to record intent metrics")
	}

	return result
}

// runHandler hydrates conversation context, invokes the handler with
// panic containment, and persists slot updates on success.
func (e *Executor) runHandler(ctx context.Context, handler Handler, it *Intent, userID, sessionID string, extra map[string]any) (out ExecutionResult) {
	log := logger.G(ctx).WithField("intent", it.Name)

	convContext := map[string]any{}
	if e.contexts != nil {
		cc, err := e.contexts.Context(ctx, userID, sessionID)
		if err != nil {
			log.WithError(err).Warn("failed to load conversation context, continuing without it")
		} else {
			convContext = cc.AsMap()
		}
	}
	for k, v := range extra {
		convContext[k] = v
	}

	defer func() {
		if r := recover(); r != nil {
			log.WithField("panic", r).Error("intent handler panicked")
			telemetry.RecordError(ctx, errors.Errorf("intent handler panic: %v", r))
			out = ExecutionResult{Success: false, Message: msgHandlerError}
		}
	}()

	result, err := handler.Handle(ctx, it, userID, convContext)
	if err != nil {
		log.WithError(err).Error("intent handler failed")
		return ExecutionResult{Success: false, Message: msgHandlerError}
	}

	if result.Success && e.contexts != nil {
		if err := e.contexts.UpdateFromIntent(ctx, userID, sessionID, it.Name, it.Slots); err != nil {
			log.WithError(err).Warn("failed to update conversation context")
		}
	}

	return ExecutionResult{Success: result.Success, Message: result.Message, Data: result.Data}
}
