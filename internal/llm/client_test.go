package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"call-insights-go/internal/config"
	"call-insights-go/internal/logger"
)

func testConfig(apiURL string) config.Config {
	return config.Config{
		OpenRouterAPIURL: apiURL,
		OpenRouterAPIKey: "test-key",
		Model:            "test-model",
		HTTPTimeout:      5 * time.Second,
	}
}

func completionBody(content string) string {
	b, _ := json.Marshal(map[string]any{
		"choices": []map[string]any{
			{"message": map[string]string{"content": content}},
		},
	})
	return string(b)
}

func TestCompleteReturnsContent(t *testing.T) {
	var gotPayload struct {
		Model       string              `json:"model"`
		Messages    []map[string]string `json:"messages"`
		Temperature float64             `json:"temperature"`
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotPayload))
		w.Write([]byte(completionBody(`{"score": 1}`)))
	}))
	defer srv.Close()

	c := NewClient(testConfig(srv.URL), logger.NewWith("test", "error"))
	out, err := c.Complete(context.Background(), "you are an analyst", "analyze this")

	require.NoError(t, err)
	assert.Equal(t, `{"score": 1}`, out)
	assert.Equal(t, "test-model", gotPayload.Model)
	require.Len(t, gotPayload.Messages, 2)
	assert.Equal(t, "system", gotPayload.Messages[0]["role"])
	assert.Equal(t, "user", gotPayload.Messages[1]["role"])
	assert.Equal(t, 0.1, gotPayload.Temperature)
}

func TestCompleteOmitsEmptySystemPrompt(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var payload struct {
			Messages []map[string]string `json:"messages"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		require.Len(t, payload.Messages, 1)
		assert.Equal(t, "user", payload.Messages[0]["role"])
		w.Write([]byte(completionBody("ok")))
	}))
	defer srv.Close()

	c := NewClient(testConfig(srv.URL), logger.NewWith("test", "error"))
	_, err := c.Complete(context.Background(), "", "hello")
	require.NoError(t, err)
}

func TestCompleteMissingAPIKey(t *testing.T) {
	cfg := testConfig("http://unused")
	cfg.OpenRouterAPIKey = ""
	c := NewClient(cfg, logger.NewWith("test", "error"))

	_, err := c.Complete(context.Background(), "", "hello")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "OPENROUTER_API_KEY")
}

func TestCompleteNoChoices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"choices": []}`))
	}))
	defer srv.Close()

	c := NewClient(testConfig(srv.URL), logger.NewWith("test", "error"))
	_, err := c.Complete(context.Background(), "", "hello")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "no choices")
}

func TestCompleteClientErrorNotRetried(t *testing.T) {
	var requests int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&requests, 1)
		http.Error(w, "bad model", http.StatusBadRequest)
	}))
	defer srv.Close()

	c := NewClient(testConfig(srv.URL), logger.NewWith("test", "error"))
	_, err := c.Complete(context.Background(), "", "hello")

	require.Error(t, err)
	assert.Equal(t, int32(1), atomic.LoadInt32(&requests))
	assert.Contains(t, err.Error(), "llm service error: 400")
}
