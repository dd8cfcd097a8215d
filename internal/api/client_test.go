package api

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewClient_WithAPIKey(t *testing.T) {
	client, err := NewClient(ClientConfig{
		APIKey: "test-key-123",
		Model:  anthropic.ModelClaudeSonnet4_20250514,
	})
	require.NoError(t, err)

	assert.Equal(t, string(anthropic.ModelClaudeSonnet4_20250514), client.Model())
	assert.Equal(t, "anthropic", client.Name())
	assert.NotNil(t, client.Tracker())
	assert.False(t, client.Bedrock())
}

func TestClient_Bedrock(t *testing.T) {
	t.Setenv("AWS_CONFIG_FILE", filepath.Join(t.TempDir(), "config"))
	t.Setenv("AWS_SHARED_CREDENTIALS_FILE", filepath.Join(t.TempDir(), "credentials"))

	custom := anthropic.Model("arn:aws:bedrock:us-west-2:123456789012:custom-model/claude")
	client, err := NewClient(ClientConfig{
		Model:         custom,
		UseAWSBedrock: true,
		AWSRegion:     "us-west-2",
	})
	require.NoError(t, err)
	assert.True(t, client.Bedrock())
	assert.Equal(t, string(custom), client.Model())

	// A Bedrock-style model name alone does not imply Bedrock.
	direct, err := NewClient(ClientConfig{
		APIKey: "test-key",
		Model:  "us.anthropic.claude-sonnet-4-20250514-v1:0",
	})
	require.NoError(t, err)
	assert.False(t, direct.Bedrock())
}

func TestNewClient_NoAPIKey(t *testing.T) {
	t.Setenv("ANTHROPIC_API_KEY", "")

	_, err := NewClient(ClientConfig{})
	require.Error(t, err)
	assert.Equal(t, "ANTHROPIC_API_KEY environment variable is not set", err.Error())
}

func TestNewClient_DefaultModel(t *testing.T) {
	client, err := NewClient(ClientConfig{APIKey: "test-key"})
	require.NoError(t, err)
	assert.Equal(t, string(DefaultAnthropicModel), client.Model())
}

func TestTranslateModelForBedrock(t *testing.T) {
	assert.Equal(t,
		anthropic.Model("us.anthropic.claude-sonnet-4-20250514-v1:0"),
		translateModelForBedrock(anthropic.ModelClaudeSonnet4_20250514))
	assert.Equal(t, anthropic.Model("custom-model"), translateModelForBedrock("custom-model"))
}

func TestClient_Complete(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &got)
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{
			"id": "msg_01",
			"type": "message",
			"role": "assistant",
			"model": "claude-sonnet-4-20250514",
			"content": [{"type": "text", "text": "`+"```python\\nprint(1)\\n```"+`"}],
			"stop_reason": "end_turn",
			"stop_sequence": null,
			"usage": {"input_tokens": 12, "output_tokens": 7}
		}`)
	}))
	defer srv.Close()

	client, err := NewClient(ClientConfig{
		APIKey:  "test-key",
		Options: []option.RequestOption{option.WithBaseURL(srv.URL)},
	})
	require.NoError(t, err)

	text, err := client.Complete(context.Background(), CompletionRequest{
		System:      "write code",
		User:        "add two numbers",
		MaxTokens:   256,
		Temperature: 0.2,
	})
	require.NoError(t, err)
	assert.Equal(t, "```python\nprint(1)\n```", text)

	in, out := client.Tracker().Total()
	assert.Equal(t, int64(12), in)
	assert.Equal(t, int64(7), out)
	assert.Equal(t, 1, client.Tracker().Calls())

	assert.EqualValues(t, 256, got["max_tokens"])
	assert.Equal(t, 0.2, got["temperature"])
}

func TestClient_Complete_ErrorClassification(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		transient bool
	}{
		{"overloaded", 529, true},
		{"rate limited", 429, true},
		{"unauthorized", 401, false},
		{"bad request", 400, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(tt.status)
				_, _ = io.WriteString(w, `{"type":"error","error":{"type":"api_error","message":"nope"}}`)
			}))
			defer srv.Close()

			client, err := NewClient(ClientConfig{
				APIKey:  "test-key",
				Options: []option.RequestOption{option.WithBaseURL(srv.URL)},
			})
			require.NoError(t, err)

			_, err = client.Complete(context.Background(), CompletionRequest{User: "x", MaxTokens: 16})
			require.Error(t, err)
			assert.Equal(t, tt.transient, IsTransient(err))
			assert.Equal(t, tt.status, StatusCode(err))
		})
	}
}

func TestTokenTracker(t *testing.T) {
	tracker := NewTokenTracker()

	tracker.Add(100, 50)
	tracker.Add(200, 100)

	input, output := tracker.Total()
	assert.Equal(t, int64(300), input)
	assert.Equal(t, int64(150), output)
	assert.Equal(t, 2, tracker.Calls())

	tracker.Reset()
	input, output = tracker.Total()
	assert.Zero(t, input)
	assert.Zero(t, output)
	assert.Zero(t, tracker.Calls())
}
