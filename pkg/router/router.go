// Package router wires the chat pipeline together: skill triggers are
// checked first, then pattern classification with deterministic intent
// execution, and finally the LLM responder as a fallback. Each stage
// is optional; the router degrades to a polite canned reply when
// nothing downstream can serve the message.
package router

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/zoe-assistant/zoe/pkg/classifier"
	"github.com/zoe-assistant/zoe/pkg/intent"
	"github.com/zoe-assistant/zoe/pkg/llm"
	"github.com/zoe-assistant/zoe/pkg/logger"
	"github.com/zoe-assistant/zoe/pkg/retrieval"
	"github.com/zoe-assistant/zoe/pkg/skills"
	"github.com/zoe-assistant/zoe/pkg/telemetry"
)

// response sources
const (
	SourceIntent   = "intent"
	SourceSkill    = "skill"
	SourceLLM      = "llm"
	SourceFallback = "fallback"
)

const fallbackMessage = "I'm not sure how to help with that yet."

const baseSystemPrompt = "You are Zoe, a helpful home assistant. Keep replies short and practical."

// Retriever fetches long-term context of the given types for a user.
// The returned string is prepended to the LLM system prompt.
type Retriever interface {
	Retrieve(ctx context.Context, userID string, contextTypes []string) (string, error)
}

// Response is the outcome of routing one message.
type Response struct {
	Message   string         `json:"message"`
	Intent    *intent.Intent `json:"intent,omitempty"`
	Source    string         `json:"source"`
	LatencyMS int64          `json:"latency_ms"`
}

// Router routes chat messages. Registry and executor are required;
// classifier, responder and retriever are optional.
type Router struct {
	registry   *skills.Registry
	executor   *intent.Executor
	classifier classifier.Classifier
	responder  llm.Responder
	retriever  Retriever
}

// Option configures optional router collaborators.
type Option func(*Router)

func WithClassifier(c classifier.Classifier) Option {
	return func(r *Router) { r.classifier = c }
}

func WithResponder(responder llm.Responder) Option {
	return func(r *Router) { r.responder = responder }
}

func WithRetriever(retriever Retriever) Option {
	return func(r *Router) { r.retriever = retriever }
}

func New(registry *skills.Registry, executor *intent.Executor, opts ...Option) *Router {
	r := &Router{registry: registry, executor: executor}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Route handles one user message end to end.
func (r *Router) Route(ctx context.Context, userID, sessionID, message string) Response {
	ctx, span := telemetry.Tracer("router").Start(ctx, "router.route")
	defer span.End()

	start := time.Now()
	response := r.route(ctx, userID, sessionID, message)
	response.LatencyMS = time.Since(start).Milliseconds()

	span.SetAttributes(
		attribute.String("route.source", response.Source),
		attribute.Int64("route.latency_ms", response.LatencyMS),
	)
	return response
}

func (r *Router) route(ctx context.Context, userID, sessionID, message string) Response {
	log := logger.G(ctx).WithField("user_id", userID)

	if skill := r.registry.MatchTriggers(message); skill != nil {
		log.WithField("skill", skill.Name).Info("message matched skill trigger")
		return r.routeSkill(ctx, userID, skill, message)
	}

	var it *intent.Intent
	if r.classifier != nil {
		it = r.classifier.Classify(message)
	}

	retrieve := retrieval.ShouldRetrieveContext(it, message)
	telemetry.SetAttributes(ctx, attribute.Bool("route.retrieve_context", retrieve))

	if it != nil {
		log.WithField("intent", it.Name).Debug("message classified")
		result := r.executor.ExecuteWithContext(ctx, it, userID, sessionID, r.retrieveFor(ctx, userID, it, retrieve))
		return Response{Message: result.Message, Intent: it, Source: SourceIntent}
	}

	return r.routeLLM(ctx, userID, message, retrieve, it)
}

// retrieveFor fetches the context types a classified intent needs and
// packages them for the handler's context map. Returns nil when
// retrieval is skipped, unconfigured, failed or empty; handlers treat
// a missing "retrieved_context" key as no long-term context.
func (r *Router) retrieveFor(ctx context.Context, userID string, it *intent.Intent, retrieve bool) map[string]any {
	if !retrieve || r.retriever == nil {
		return nil
	}
	types := retrieval.RequiredContextTypes(it.Name)
	retrieved, err := r.retriever.Retrieve(ctx, userID, types)
	if err != nil {
		logger.G(ctx).WithError(err).WithField("intent", it.Name).Warn("context retrieval failed, executing without it")
		return nil
	}
	if retrieved == "" {
		return nil
	}
	return map[string]any{"retrieved_context": retrieved}
}

// routeSkill answers a trigger-matched message. With a responder the
// skill's instructions become the system prompt; without one the user
// gets an acknowledgment naming the skill.
func (r *Router) routeSkill(ctx context.Context, userID string, skill *skills.Skill, message string) Response {
	if r.responder == nil {
		return Response{
			Message: fmt.Sprintf("The %s skill can help with that, but no language model is configured.", skill.Name),
			Source:  SourceSkill,
		}
	}

	prompt := baseSystemPrompt + "\n\n" + skillPrompt(skill)
	reply, err := r.responder.Respond(ctx, prompt, message)
	if err != nil {
		logger.G(ctx).WithError(err).WithField("skill", skill.Name).Error("skill responder failed")
		return Response{Message: fallbackMessage, Source: SourceFallback}
	}
	return Response{Message: reply, Source: SourceSkill}
}

// routeLLM is the final fallback for unclassified messages.
func (r *Router) routeLLM(ctx context.Context, userID, message string, retrieve bool, it *intent.Intent) Response {
	if r.responder == nil {
		return Response{Message: fallbackMessage, Source: SourceFallback}
	}

	var sb strings.Builder
	sb.WriteString(baseSystemPrompt)

	if retrieve && r.retriever != nil {
		types := retrieval.RequiredContextTypes(intentName(it))
		retrieved, err := r.retriever.Retrieve(ctx, userID, types)
		if err != nil {
			logger.G(ctx).WithError(err).Warn("context retrieval failed, responding without it")
		} else if retrieved != "" {
			sb.WriteString("\n\n# Context\n")
			sb.WriteString(retrieved)
		}
	}

	if skillContext := r.registry.LLMContext(); skillContext != "" {
		sb.WriteString("\n\n")
		sb.WriteString(skillContext)
	}

	reply, err := r.responder.Respond(ctx, sb.String(), message)
	if err != nil {
		logger.G(ctx).WithError(err).Error("llm responder failed")
		return Response{Message: fallbackMessage, Source: SourceFallback}
	}
	return Response{Message: reply, Source: SourceLLM}
}

func skillPrompt(skill *skills.Skill) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "## Skill: %s\n\n%s\n", skill.Name, skill.Description)
	if len(skill.AllowedEndpoints) > 0 {
		fmt.Fprintf(&sb, "\nAllowed endpoints: %s\n", strings.Join(skill.AllowedEndpoints, ", "))
	}
	if skill.Instructions != "" {
		sb.WriteString("\n### Instructions\n\n")
		sb.WriteString(skill.Instructions)
	}
	return sb.String()
}

func intentName(it *intent.Intent) string {
	if it == nil {
		return ""
	}
	return it.Name
}
