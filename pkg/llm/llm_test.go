package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewResponderProviderSelection(t *testing.T) {
	r, err := NewResponder(Config{})
	require.NoError(t, err)
	assert.IsType(t, &openaiResponder{}, r)

	r, err = NewResponder(Config{Provider: "ollama"})
	require.NoError(t, err)
	assert.IsType(t, &openaiResponder{}, r)

	r, err = NewResponder(Config{Provider: "openai", APIKey: "sk-test"})
	require.NoError(t, err)
	assert.IsType(t, &openaiResponder{}, r)

	r, err = NewResponder(Config{Provider: "anthropic", APIKey: "sk-test"})
	require.NoError(t, err)
	assert.IsType(t, &anthropicResponder{}, r)

	_, err = NewResponder(Config{Provider: "bard"})
	assert.Error(t, err)
}

func TestOllamaDefaults(t *testing.T) {
	r, err := NewResponder(Config{Provider: "ollama"})
	require.NoError(t, err)
	or := r.(*openaiResponder)
	assert.Equal(t, defaultOllamaModel, or.model)
	assert.Equal(t, defaultMaxTokens, or.maxTokens)
}

func TestOpenAIResponderAgainstCompatibleServer(t *testing.T) {
	var gotSystem, gotUser, gotModel string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1/chat/completions", r.URL.Path)

		var req struct {
			Model    string `json:"model"`
			Messages []struct {
				Role    string `json:"role"`
				Content string `json:"content"`
			} `json:"messages"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		gotModel = req.Model
		for _, m := range req.Messages {
			switch m.Role {
			case "system":
				gotSystem = m.Content
			case "user":
				gotUser = m.Content
			}
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{
				{"message": map[string]any{"role": "assistant", "content": "Hello from the model."}},
			},
		})
	}))
	defer server.Close()

	r, err := NewResponder(Config{Provider: "ollama", BaseURL: server.URL + "/v1", Model: "llama3.2"})
	require.NoError(t, err)

	reply, err := r.Respond(context.Background(), "You are Zoe.", "hello")
	require.NoError(t, err)
	assert.Equal(t, "Hello from the model.", reply)
	assert.Equal(t, "llama3.2", gotModel)
	assert.Equal(t, "You are Zoe.", gotSystem)
	assert.Equal(t, "hello", gotUser)
}

func TestOpenAIResponderNoChoices(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"choices": []}`))
	}))
	defer server.Close()

	r := newOpenAIResponder(Config{BaseURL: server.URL + "/v1", Model: "test"})
	_, err := r.Respond(context.Background(), "system", "user")
	assert.Error(t, err)
}
