package router

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zoe-assistant/zoe/pkg/classifier"
	"github.com/zoe-assistant/zoe/pkg/convctx"
	"github.com/zoe-assistant/zoe/pkg/intent"
	"github.com/zoe-assistant/zoe/pkg/skills"
)

type fakeResponder struct {
	reply      string
	err        error
	gotSystem  string
	gotMessage string
}

func (f *fakeResponder) Respond(_ context.Context, systemPrompt, message string) (string, error) {
	f.gotSystem = systemPrompt
	f.gotMessage = message
	return f.reply, f.err
}

type fakeRetriever struct {
	context  string
	err      error
	called   bool
	gotTypes []string
}

func (f *fakeRetriever) Retrieve(_ context.Context, _ string, contextTypes []string) (string, error) {
	f.called = true
	f.gotTypes = contextTypes
	return f.context, f.err
}

const groceriesSkill = `---
name: groceries
description: Manage grocery lists.
triggers:
  - grocery
allowed_endpoints:
  - POST /api/lists/add
---

Call the lists API to add items.
`

func newRegistry(t *testing.T, skillFiles map[string]string) *skills.Registry {
	t.Helper()
	dir := t.TempDir()

	userDir := filepath.Join(dir, "user")
	for name, content := range skillFiles {
		skillDir := filepath.Join(userDir, name)
		require.NoError(t, os.MkdirAll(skillDir, 0o755))
		require.NoError(t, os.WriteFile(filepath.Join(skillDir, "SKILL.md"), []byte(content), 0o644))
	}

	registry := skills.NewRegistry(skills.RegistryConfig{
		UserDir:      userDir,
		LockfilePath: filepath.Join(dir, "skills.lock.json"),
	})
	require.NoError(t, registry.Load(context.Background()))
	return registry
}

func newIntentExecutor() *intent.Executor {
	executor := intent.NewExecutor(convctx.NewMemoryStore(), nil)
	executor.Register("ListAdd", intent.HandlerFunc(func(_ context.Context, it *intent.Intent, _ string, _ map[string]any) (intent.Result, error) {
		return intent.Result{Success: true, Message: "Added " + it.Slots["item"].(string) + "."}, nil
	}))
	executor.Register("Greeting", intent.HandlerFunc(func(context.Context, *intent.Intent, string, map[string]any) (intent.Result, error) {
		return intent.Result{Success: true, Message: "Hello!"}, nil
	}))
	return executor
}

func TestRouteSkillTrigger(t *testing.T) {
	registry := newRegistry(t, map[string]string{"groceries": groceriesSkill})
	responder := &fakeResponder{reply: "Added milk to your grocery list."}

	router := New(registry, newIntentExecutor(), WithClassifier(classifier.NewPatternClassifier()), WithResponder(responder))

	resp := router.Route(context.Background(), "alice", "sess-1", "put milk on the grocery please")
	assert.Equal(t, SourceSkill, resp.Source)
	assert.Equal(t, "Added milk to your grocery list.", resp.Message)
	assert.Contains(t, responder.gotSystem, "## Skill: groceries")
	assert.Contains(t, responder.gotSystem, "POST /api/lists/add")
	assert.Contains(t, responder.gotSystem, "Call the lists API")
}

func TestRouteSkillTriggerWithoutResponder(t *testing.T) {
	registry := newRegistry(t, map[string]string{"groceries": groceriesSkill})

	router := New(registry, newIntentExecutor())

	resp := router.Route(context.Background(), "alice", "sess-1", "grocery time")
	assert.Equal(t, SourceSkill, resp.Source)
	assert.Contains(t, resp.Message, "groceries")
}

func TestRouteIntent(t *testing.T) {
	registry := newRegistry(t, nil)
	responder := &fakeResponder{reply: "should not be called"}

	router := New(registry, newIntentExecutor(), WithClassifier(classifier.NewPatternClassifier()), WithResponder(responder))

	resp := router.Route(context.Background(), "alice", "sess-1", "add bread to shopping list")
	assert.Equal(t, SourceIntent, resp.Source)
	assert.Equal(t, "Added bread.", resp.Message)
	require.NotNil(t, resp.Intent)
	assert.Equal(t, "ListAdd", resp.Intent.Name)
	assert.Empty(t, responder.gotMessage)
}

func TestRouteLLMFallback(t *testing.T) {
	registry := newRegistry(t, map[string]string{"groceries": groceriesSkill})
	responder := &fakeResponder{reply: "How about pasta tonight?"}
	retriever := &fakeRetriever{context: "User likes Italian food."}

	router := New(registry, newIntentExecutor(),
		WithClassifier(classifier.NewPatternClassifier()),
		WithResponder(responder),
		WithRetriever(retriever))

	resp := router.Route(context.Background(), "alice", "sess-1", "what should I cook for dinner")
	assert.Equal(t, SourceLLM, resp.Source)
	assert.Equal(t, "How about pasta tonight?", resp.Message)
	assert.Nil(t, resp.Intent)

	// system prompt carries retrieved context and the skills overview
	assert.Contains(t, responder.gotSystem, "User likes Italian food.")
	assert.Contains(t, responder.gotSystem, "# Available Skills")
	assert.Equal(t, []string{"memory", "temporal", "calendar"}, retriever.gotTypes)
}

func TestRouteRetrieverFailureStillResponds(t *testing.T) {
	registry := newRegistry(t, nil)
	responder := &fakeResponder{reply: "Sure."}
	retriever := &fakeRetriever{err: errors.New("store offline")}

	router := New(registry, newIntentExecutor(), WithResponder(responder), WithRetriever(retriever))

	resp := router.Route(context.Background(), "alice", "sess-1", "tell me something")
	assert.Equal(t, SourceLLM, resp.Source)
	assert.Equal(t, "Sure.", resp.Message)
	assert.False(t, strings.Contains(responder.gotSystem, "# Context"))
}

func TestRouteNoResponderFallback(t *testing.T) {
	registry := newRegistry(t, nil)

	router := New(registry, newIntentExecutor())

	resp := router.Route(context.Background(), "alice", "sess-1", "tell me a joke")
	assert.Equal(t, SourceFallback, resp.Source)
	assert.Equal(t, fallbackMessage, resp.Message)
}

func TestRouteResponderErrorFallback(t *testing.T) {
	registry := newRegistry(t, nil)
	responder := &fakeResponder{err: errors.New("model offline")}

	router := New(registry, newIntentExecutor(), WithResponder(responder))

	resp := router.Route(context.Background(), "alice", "sess-1", "tell me a joke")
	assert.Equal(t, SourceFallback, resp.Source)
	assert.Equal(t, fallbackMessage, resp.Message)
	assert.NotContains(t, resp.Message, "model offline")
}

func TestRouteIntentEndToEnd(t *testing.T) {
	ctx := context.Background()
	registry := newRegistry(t, nil)
	store := convctx.NewMemoryStore()

	executor := intent.NewExecutor(store, nil)
	executor.Register("ListAdd", intent.HandlerFunc(func(_ context.Context, it *intent.Intent, _ string, _ map[string]any) (intent.Result, error) {
		return intent.Result{Success: true, Message: "Added " + it.Slots["item"].(string) + " to " + it.Slots["list"].(string) + "."}, nil
	}))

	router := New(registry, executor, WithClassifier(classifier.NewPatternClassifier()))

	resp := router.Route(ctx, "alice", "sess-1", "add bread to shopping list")
	assert.Equal(t, SourceIntent, resp.Source)
	assert.Equal(t, "Added bread to shopping.", resp.Message)

	cc, err := store.Context(ctx, "alice", "sess-1")
	require.NoError(t, err)
	assert.Equal(t, []string{"bread"}, cc.LastItems)
	assert.Equal(t, "shopping", cc.LastList)
	assert.Equal(t, "ListAdd", cc.LastIntent)
}

func TestRouteIntentRetrievesContext(t *testing.T) {
	// data-fetching intents consult the retriever and hand the result
	// to the handler under retrieved_context
	registry := newRegistry(t, nil)
	retriever := &fakeRetriever{context: "shopping: milk, eggs"}

	var gotContext map[string]any
	executor := intent.NewExecutor(convctx.NewMemoryStore(), nil)
	executor.Register("ListShow", intent.HandlerFunc(func(_ context.Context, _ *intent.Intent, _ string, convContext map[string]any) (intent.Result, error) {
		gotContext = convContext
		return intent.Result{Success: true, Message: "Here is your list."}, nil
	}))

	router := New(registry, executor, WithClassifier(classifier.NewPatternClassifier()), WithRetriever(retriever))

	resp := router.Route(context.Background(), "alice", "sess-1", "show me the shopping list")
	assert.Equal(t, SourceIntent, resp.Source)
	assert.True(t, retriever.called)
	assert.Equal(t, []string{"lists"}, retriever.gotTypes)
	assert.Equal(t, "shopping: milk, eggs", gotContext["retrieved_context"])
}

func TestRouteConversationalIntentSkipsRetrieval(t *testing.T) {
	registry := newRegistry(t, nil)
	retriever := &fakeRetriever{context: "unused"}

	router := New(registry, newIntentExecutor(), WithClassifier(classifier.NewPatternClassifier()), WithRetriever(retriever))

	resp := router.Route(context.Background(), "alice", "sess-1", "hello")
	assert.Equal(t, SourceIntent, resp.Source)
	assert.False(t, retriever.called)
}

func TestRouteIntentRetrieverFailureStillExecutes(t *testing.T) {
	registry := newRegistry(t, nil)
	retriever := &fakeRetriever{err: errors.New("store offline")}

	var gotContext map[string]any
	executor := intent.NewExecutor(convctx.NewMemoryStore(), nil)
	executor.Register("ListShow", intent.HandlerFunc(func(_ context.Context, _ *intent.Intent, _ string, convContext map[string]any) (intent.Result, error) {
		gotContext = convContext
		return intent.Result{Success: true, Message: "Here is your list."}, nil
	}))

	router := New(registry, executor, WithClassifier(classifier.NewPatternClassifier()), WithRetriever(retriever))

	resp := router.Route(context.Background(), "alice", "sess-1", "show me the shopping list")
	assert.Equal(t, SourceIntent, resp.Source)
	assert.Equal(t, "Here is your list.", resp.Message)
	_, ok := gotContext["retrieved_context"]
	assert.False(t, ok)
}

func TestRouteSkillBeatsIntent(t *testing.T) {
	// a message matching both a trigger and an intent pattern goes to the skill
	registry := newRegistry(t, map[string]string{"groceries": groceriesSkill})
	responder := &fakeResponder{reply: "On it."}

	router := New(registry, newIntentExecutor(), WithClassifier(classifier.NewPatternClassifier()), WithResponder(responder))

	resp := router.Route(context.Background(), "alice", "sess-1", "add bread to grocery list")
	assert.Equal(t, SourceSkill, resp.Source)
}
