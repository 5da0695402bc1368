// Package llm is the completion-service client used by the analysis stage.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"call-insights-go/internal/apierr"
	"call-insights-go/internal/config"
	"call-insights-go/internal/logger"
	"call-insights-go/internal/retry"
)

// Client calls an OpenRouter-style chat completions endpoint.
type Client struct {
	apiURL string
	apiKey string
	model  string

	http *http.Client
	exec *retry.Executor
	log  *logger.Logger
}

func NewClient(cfg config.Config, log *logger.Logger) *Client {
	return &Client{
		apiURL: cfg.OpenRouterAPIURL,
		apiKey: cfg.OpenRouterAPIKey,
		model:  cfg.Model,
		http:   &http.Client{Timeout: cfg.HTTPTimeout},
		exec:   retry.New(log, 3, 2*time.Second, 60*time.Second),
		log:    log,
	}
}

// Complete sends the prompts and returns the model's free-form text reply.
func (c *Client) Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	if c.apiKey == "" {
		return "", apierr.New("OPENROUTER_API_KEY not configured", http.StatusInternalServerError)
	}

	messages := []map[string]string{}
	if systemPrompt != "" {
		messages = append(messages, map[string]string{"role": "system", "content": systemPrompt})
	}
	messages = append(messages, map[string]string{"role": "user", "content": userPrompt})

	payload, _ := json.Marshal(map[string]any{
		"model":       c.model,
		"messages":    messages,
		"temperature": 0.1,
		"max_tokens":  4096,
	})

	start := time.Now()
	var parsed struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}

	err := c.exec.Do(ctx, "llm complete", func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiURL, bytes.NewReader(payload))
		if err != nil {
			return err
		}
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.http.Do(req)
		if err != nil {
			return apierr.Transient("llm request failed", err)
		}
		defer resp.Body.Close()

		body, _ := io.ReadAll(resp.Body)
		if resp.StatusCode >= 400 {
			return apierr.FromResponse(
				fmt.Sprintf("llm service error: %d - %s", resp.StatusCode, truncateBody(body)), resp)
		}
		if err := json.Unmarshal(body, &parsed); err != nil {
			return apierr.Transient("llm service returned malformed JSON", err)
		}
		return nil
	})
	if err != nil {
		return "", err
	}

	if len(parsed.Choices) == 0 {
		return "", apierr.New("llm response contained no choices", http.StatusBadGateway)
	}

	content := parsed.Choices[0].Message.Content
	c.log.WithField("component", "llm").
		WithField("duration_ms", time.Since(start).Milliseconds()).
		WithField("response_length", len(content)).
		Debug("completion finished")
	return content, nil
}

func truncateBody(b []byte) string {
	const max = 300
	if len(b) <= max {
		return string(b)
	}
	return string(b[:max]) + "..."
}
