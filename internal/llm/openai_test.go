package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"metropulse/internal/config"
)

func newTestServer(t *testing.T, handler http.HandlerFunc) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return srv
}

func completionJSON(content string) string {
	return `{"id":"chatcmpl-1","choices":[{"index":0,"message":{"role":"assistant","content":"` + content + `"},"finish_reason":"stop"}],"usage":{"prompt_tokens":10,"completion_tokens":5,"total_tokens":15}}`
}

func TestOpenAICompleteWithSystem(t *testing.T) {
	var gotReq openAIRequest
	srv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotReq))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(completionJSON("Invest in workforce training.")))
	})

	cfg := DefaultOpenAIConfig("test-key")
	cfg.BaseURL = srv.URL
	client := NewOpenAIClientWithConfig(cfg)

	resp, err := client.CompleteWithSystem(context.Background(), "You are a policy expert.", "How to improve resilience?")
	require.NoError(t, err)
	assert.Equal(t, "Invest in workforce training.", resp)

	require.Len(t, gotReq.Messages, 2)
	assert.Equal(t, "system", gotReq.Messages[0].Role)
	assert.Equal(t, "user", gotReq.Messages[1].Role)
	assert.Equal(t, "gpt-4o-mini", gotReq.Model)
	assert.Equal(t, 500, gotReq.MaxTokens)
	assert.InDelta(t, 0.7, gotReq.Temperature, 1e-9)
}

func TestOpenAIOmitsEmptySystemMessage(t *testing.T) {
	var gotReq openAIRequest
	srv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotReq))
		w.Write([]byte(completionJSON("ok")))
	})

	cfg := DefaultOpenAIConfig("test-key")
	cfg.BaseURL = srv.URL
	client := NewOpenAIClientWithConfig(cfg)

	_, err := client.Complete(context.Background(), "hello")
	require.NoError(t, err)
	require.Len(t, gotReq.Messages, 1)
	assert.Equal(t, "user", gotReq.Messages[0].Role)
}

func TestOpenAIRetriesOnRateLimit(t *testing.T) {
	var calls int32
	srv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.Write([]byte(completionJSON("recovered")))
	})

	cfg := DefaultOpenAIConfig("test-key")
	cfg.BaseURL = srv.URL
	client := NewOpenAIClientWithConfig(cfg)

	resp, err := client.CompleteWithSystem(context.Background(), "", "hello")
	require.NoError(t, err)
	assert.Equal(t, "recovered", resp)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestOpenAIServerErrorDoesNotRetry(t *testing.T) {
	var calls int32
	srv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"error":{"message":"boom"}}`))
	})

	cfg := DefaultOpenAIConfig("test-key")
	cfg.BaseURL = srv.URL
	client := NewOpenAIClientWithConfig(cfg)

	_, err := client.Complete(context.Background(), "hello")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 500")
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestOpenAIMissingAPIKey(t *testing.T) {
	client := NewOpenAIClient("")
	_, err := client.Complete(context.Background(), "hello")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "API key not configured")
}

func TestOpenAIEmptyChoices(t *testing.T) {
	srv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"id":"chatcmpl-1","choices":[]}`))
	})

	cfg := DefaultOpenAIConfig("test-key")
	cfg.BaseURL = srv.URL
	client := NewOpenAIClientWithConfig(cfg)

	_, err := client.Complete(context.Background(), "hello")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no completion returned")
}

func TestNewClientProviderSelection(t *testing.T) {
	t.Run("explicit openai", func(t *testing.T) {
		c, err := NewClient(config.LLMConfig{Provider: "openai", APIKey: "k", Model: "gpt-4o"})
		require.NoError(t, err)
		assert.Equal(t, "gpt-4o", c.Model())
	})

	t.Run("env openai wins", func(t *testing.T) {
		t.Setenv("OPENAI_API_KEY", "k")
		t.Setenv("GEMINI_API_KEY", "g")
		c, err := NewClient(config.LLMConfig{})
		require.NoError(t, err)
		_, ok := c.(*OpenAIClient)
		assert.True(t, ok)
	})

	t.Run("no credentials", func(t *testing.T) {
		t.Setenv("OPENAI_API_KEY", "")
		t.Setenv("GEMINI_API_KEY", "")
		_, err := NewClient(config.LLMConfig{})
		assert.ErrorIs(t, err, ErrNotConfigured)
	})

	t.Run("unknown provider", func(t *testing.T) {
		_, err := NewClient(config.LLMConfig{Provider: "bedrock", APIKey: "k"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "unknown LLM provider")
	})
}
