package api

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewOpenAIClient(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")

	_, err := NewOpenAIClient(OpenAIConfig{})
	require.Error(t, err)

	client, err := NewOpenAIClient(OpenAIConfig{APIKey: "sk-test"})
	require.NoError(t, err)
	assert.Equal(t, DefaultOpenAIModel, client.Model())
	assert.Equal(t, "openai", client.Name())
}

func TestOpenAIClient_Complete(t *testing.T) {
	var got struct {
		Model    string `json:"model"`
		Messages []struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"messages"`
		MaxTokens   int      `json:"max_tokens"`
		Temperature *float64 `json:"temperature"`
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &got)
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{
			"id": "chatcmpl-1",
			"object": "chat.completion",
			"created": 1,
			"model": "gpt-4o-mini",
			"choices": [{"index": 0, "message": {"role": "assistant", "content": "  def add(a, b): return a + b  "}, "finish_reason": "stop"}],
			"usage": {"prompt_tokens": 9, "completion_tokens": 4, "total_tokens": 13}
		}`)
	}))
	defer srv.Close()

	client, err := NewOpenAIClient(OpenAIConfig{APIKey: "sk-test", BaseURL: srv.URL + "/"})
	require.NoError(t, err)

	text, err := client.Complete(context.Background(), CompletionRequest{
		System:    "sys",
		User:      "usr",
		MaxTokens: 100,
	})
	require.NoError(t, err)
	assert.Equal(t, "def add(a, b): return a + b", text)

	assert.Equal(t, "gpt-4o-mini", got.Model)
	require.Len(t, got.Messages, 2)
	assert.Equal(t, "system", got.Messages[0].Role)
	assert.Equal(t, "usr", got.Messages[1].Content)
	assert.Equal(t, 100, got.MaxTokens)
	require.NotNil(t, got.Temperature, "zero temperature must be sent explicitly")
	assert.InDelta(t, 0, *got.Temperature, 1e-6)

	in, out := client.Tracker().Total()
	assert.Equal(t, int64(9), in)
	assert.Equal(t, int64(4), out)
}

func TestOpenAIClient_Complete_Temperature(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &got)
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"choices": [{"index": 0, "message": {"role": "assistant", "content": "ok"}}]}`)
	}))
	defer srv.Close()

	client, err := NewOpenAIClient(OpenAIConfig{APIKey: "sk-test", BaseURL: srv.URL})
	require.NoError(t, err)

	_, err = client.Complete(context.Background(), CompletionRequest{User: "x", Temperature: 0.7})
	require.NoError(t, err)
	require.Contains(t, got, "temperature")
	assert.InDelta(t, 0.7, got["temperature"], 1e-6)
}

func TestOpenAIClient_Complete_Transient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = io.WriteString(w, `{"error": {"message": "overloaded", "type": "server_error"}}`)
	}))
	defer srv.Close()

	client, err := NewOpenAIClient(OpenAIConfig{APIKey: "sk-test", BaseURL: srv.URL})
	require.NoError(t, err)

	_, err = client.Complete(context.Background(), CompletionRequest{User: "x"})
	require.Error(t, err)
	assert.True(t, IsTransient(err))
	assert.Equal(t, http.StatusServiceUnavailable, StatusCode(err))
}
