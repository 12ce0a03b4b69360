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

func TestOpenAIClientComplete(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		var req openAIRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "test-model", req.Model)
		require.Len(t, req.Messages, 2)

		_ = json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{
				{"message": map[string]any{"content": `{"type":"informative","message":"hi"}`}},
			},
			"usage": map[string]int{"prompt_tokens": 12, "completion_tokens": 8},
		})
	}))
	defer srv.Close()

	c := NewOpenAIClient(srv.URL, "test-key", "test-model")
	got, err := c.Complete(context.Background(), []Message{
		{Role: RoleSystem, Content: "You are Steward."},
		{Role: RoleUser, Content: "hello"},
	}, nil)
	require.NoError(t, err)
	assert.Contains(t, got.Content, "informative")
	assert.Equal(t, 12, got.Usage.PromptTokens)
}

func TestOpenAIClientErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	c := NewOpenAIClient(srv.URL, "k", "m")
	_, err := c.Complete(context.Background(), []Message{{Role: RoleUser, Content: "x"}}, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "429")
}

func TestScriptedClientReplaysInOrder(t *testing.T) {
	c := NewScriptedClient("one", "two")

	first, err := c.Complete(context.Background(), nil, nil)
	require.NoError(t, err)
	assert.Equal(t, "one", first.Content)

	second, err := c.Complete(context.Background(), nil, nil)
	require.NoError(t, err)
	assert.Equal(t, "two", second.Content)

	_, err = c.Complete(context.Background(), nil, nil)
	assert.Error(t, err)
	assert.Equal(t, 2, c.Calls())
}
