package transcription

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"call-insights-go/internal/apierr"
	"call-insights-go/internal/config"
	"call-insights-go/internal/jobpoll"
	"call-insights-go/internal/logger"
	"call-insights-go/internal/retry"
)

// Client talks to a Replicate-style predictions API: POST the job, then GET
// the returned status URL until the job terminates.
type Client struct {
	apiURL  string
	apiKey  string
	version string

	http   *http.Client
	poller *jobpoll.Poller
	log    *logger.Logger
}

func NewClient(cfg config.Config, log *logger.Logger) *Client {
	submit := retry.New(log, 3, 2*time.Second, 60*time.Second)
	check := retry.New(log, 2, 1*time.Second, 60*time.Second)
	return &Client{
		apiURL:  cfg.ReplicateAPIURL,
		apiKey:  cfg.ReplicateAPIKey,
		version: cfg.WhisperVersion,
		http:    &http.Client{Timeout: cfg.HTTPTimeout},
		poller:  jobpoll.New(log, submit, check, cfg.PollInterval, cfg.MaxPolls, cfg.ProgressEvery),
		log:     log,
	}
}

// Transcribe reads the audio file, submits the transcription job and waits
// for its result. language is a code like "en", or "auto" for detection.
func (c *Client) Transcribe(ctx context.Context, audioPath, language string) (*Transcript, error) {
	start := time.Now()
	log := c.log.WithField("component", "transcription").WithField("audio_path", audioPath)

	if c.apiKey == "" {
		return nil, apierr.New("REPLICATE_API_KEY not configured", http.StatusInternalServerError)
	}

	data, err := os.ReadFile(audioPath)
	if err != nil {
		return nil, fmt.Errorf("read audio file: %w", err)
	}

	ext := strings.TrimPrefix(filepath.Ext(audioPath), ".")
	audioURI := fmt.Sprintf("data:audio/%s;base64,%s", ext, base64.StdEncoding.EncodeToString(data))

	input := map[string]any{
		"audio":                       audioURI,
		"model":                       "large-v3",
		"translate":                   false,
		"temperature":                 0,
		"transcription":               "plain text",
		"suppress_tokens":             "-1",
		"logprob_threshold":           -1,
		"no_speech_threshold":         0.6,
		"condition_on_previous_text":  true,
		"compression_ratio_threshold": 2.4,
	}
	if language != "" && language != "auto" {
		input["language"] = language
	}
	payload, _ := json.Marshal(map[string]any{
		"version": c.version,
		"input":   input,
	})

	log.WithField("file_size_bytes", len(data)).Info("starting transcription")

	output, err := c.poller.Run(ctx, &predictionJob{client: c, payload: payload})
	if err != nil {
		return nil, err
	}

	t, err := decodeOutput(output)
	if err != nil {
		return nil, err
	}
	t.Validate()

	log.WithField("duration_ms", time.Since(start).Milliseconds()).
		WithField("text_length", len(t.Text)).
		WithField("segments", len(t.Segments)).
		Info("transcription completed")
	if t.Warning != "" {
		log.WithField("warning", t.Warning).Warn("transcript validation warning")
	}
	return t, nil
}

// predictionJob adapts one transcription request to the jobpoll.Service
// protocol. The handle is the prediction's status URL.
type predictionJob struct {
	client  *Client
	payload []byte
}

func (j *predictionJob) Submit(ctx context.Context) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, j.client.apiURL, bytes.NewReader(j.payload))
	if err != nil {
		return "", err
	}

	var resp struct {
		URLs struct {
			Get string `json:"get"`
		} `json:"urls"`
	}
	if err := j.client.doJSON(req, &resp); err != nil {
		return "", err
	}
	if resp.URLs.Get == "" {
		return "", apierr.New("no prediction URL returned from transcription service", http.StatusBadGateway)
	}
	return resp.URLs.Get, nil
}

func (j *predictionJob) Poll(ctx context.Context, handle string) (jobpoll.Update, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, handle, nil)
	if err != nil {
		return jobpoll.Update{}, err
	}

	var resp struct {
		Status string          `json:"status"`
		Output json.RawMessage `json:"output"`
		Error  string          `json:"error"`
	}
	if err := j.client.doJSON(req, &resp); err != nil {
		return jobpoll.Update{}, err
	}
	return jobpoll.Update{Status: resp.Status, Output: resp.Output, Error: resp.Error}, nil
}

// doJSON performs one request and decodes the body, classifying failures so
// the retry layer can tell transient from fatal.
func (c *Client) doJSON(req *http.Request, target any) error {
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return apierr.Transient("transcription service request failed", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode >= 400 {
		return apierr.FromResponse(
			fmt.Sprintf("transcription service error: %d - %s", resp.StatusCode, truncateBody(body)), resp)
	}
	if err := json.Unmarshal(body, target); err != nil {
		return apierr.Transient("transcription service returned malformed JSON", err)
	}
	return nil
}

// decodeOutput handles both payload shapes the job service produces: a bare
// string, or an object with alternate text field names plus segments.
func decodeOutput(raw json.RawMessage) (*Transcript, error) {
	if len(raw) == 0 {
		return &Transcript{}, nil
	}

	var s string
	if json.Unmarshal(raw, &s) == nil {
		return &Transcript{Text: s}, nil
	}

	var obj struct {
		Transcription    string    `json:"transcription"`
		Text             string    `json:"text"`
		Segments         []Segment `json:"segments"`
		DetectedLanguage string    `json:"detected_language"`
	}
	if err := json.Unmarshal(raw, &obj); err != nil {
		return nil, fmt.Errorf("unexpected transcription output shape: %w", err)
	}

	text := obj.Transcription
	if text == "" {
		text = obj.Text
	}
	return &Transcript{
		Text:             text,
		Segments:         obj.Segments,
		DetectedLanguage: obj.DetectedLanguage,
	}, nil
}

func truncateBody(b []byte) string {
	const max = 300
	if len(b) <= max {
		return string(b)
	}
	return string(b[:max]) + "..."
}
