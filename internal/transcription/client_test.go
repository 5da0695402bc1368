package transcription

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"call-insights-go/internal/config"
	"call-insights-go/internal/logger"
)

func writeTempAudio(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "call.mp3")
	require.NoError(t, os.WriteFile(path, []byte("fake audio bytes"), 0o644))
	return path
}

func testConfig(apiURL string) config.Config {
	return config.Config{
		ReplicateAPIURL: apiURL,
		ReplicateAPIKey: "test-key",
		WhisperVersion:  "v1",
		HTTPTimeout:     5 * time.Second,
		PollInterval:    time.Millisecond,
		MaxPolls:        5,
		ProgressEvery:   0,
	}
}

// jobServer fakes the predictions API: one submit endpoint and a status
// endpoint that reports in-progress for the first polls, then a terminal body.
func jobServer(t *testing.T, pollsUntilDone int32, terminal string) *httptest.Server {
	t.Helper()

	var polls int32
	mux := http.NewServeMux()
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	mux.HandleFunc("POST /", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		var payload struct {
			Version string         `json:"version"`
			Input   map[string]any `json:"input"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		assert.Equal(t, "v1", payload.Version)
		audio, _ := payload.Input["audio"].(string)
		assert.True(t, strings.HasPrefix(audio, "data:audio/mp3;base64,"))

		json.NewEncoder(w).Encode(map[string]any{
			"urls": map[string]string{"get": srv.URL + "/status"},
		})
	})
	mux.HandleFunc("GET /status", func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&polls, 1) <= pollsUntilDone {
			w.Write([]byte(`{"status": "processing"}`))
			return
		}
		w.Write([]byte(terminal))
	})
	return srv
}

func TestTranscribeStringOutput(t *testing.T) {
	srv := jobServer(t, 2, `{"status": "succeeded", "output": "hello world"}`)
	c := NewClient(testConfig(srv.URL), logger.NewWith("test", "error"))

	tr, err := c.Transcribe(context.Background(), writeTempAudio(t), "auto")

	require.NoError(t, err)
	assert.Equal(t, "hello world", tr.Text)
	assert.Equal(t, 2, tr.WordCount)
	assert.False(t, tr.IsEmpty)
	assert.False(t, tr.IsShort)
}

func TestTranscribeObjectOutput(t *testing.T) {
	srv := jobServer(t, 0, `{"status": "succeeded", "output": {
		"transcription": "good afternoon, thanks for calling",
		"segments": [{"start": 0, "end": 2.5, "text": "good afternoon"}],
		"detected_language": "en"}}`)
	c := NewClient(testConfig(srv.URL), logger.NewWith("test", "error"))

	tr, err := c.Transcribe(context.Background(), writeTempAudio(t), "en")

	require.NoError(t, err)
	assert.Equal(t, "good afternoon, thanks for calling", tr.Text)
	require.Len(t, tr.Segments, 1)
	assert.Equal(t, 2.5, tr.Segments[0].End)
	assert.Equal(t, "en", tr.DetectedLanguage)
}

func TestTranscribeJobFailed(t *testing.T) {
	srv := jobServer(t, 0, `{"status": "failed", "error": "audio could not be decoded"}`)
	c := NewClient(testConfig(srv.URL), logger.NewWith("test", "error"))

	_, err := c.Transcribe(context.Background(), writeTempAudio(t), "auto")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "audio could not be decoded")
}

func TestTranscribeMissingAPIKey(t *testing.T) {
	cfg := testConfig("http://unused")
	cfg.ReplicateAPIKey = ""
	c := NewClient(cfg, logger.NewWith("test", "error"))

	_, err := c.Transcribe(context.Background(), writeTempAudio(t), "auto")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "REPLICATE_API_KEY")
}

func TestTranscribeMissingAudioFile(t *testing.T) {
	c := NewClient(testConfig("http://unused"), logger.NewWith("test", "error"))

	_, err := c.Transcribe(context.Background(), filepath.Join(t.TempDir(), "missing.mp3"), "auto")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "read audio file")
}

func TestDecodeOutputShapes(t *testing.T) {
	tr, err := decodeOutput(json.RawMessage(`"just a string"`))
	require.NoError(t, err)
	assert.Equal(t, "just a string", tr.Text)

	// the transcription field wins over text when both are present
	tr, err = decodeOutput(json.RawMessage(`{"transcription": "primary", "text": "secondary"}`))
	require.NoError(t, err)
	assert.Equal(t, "primary", tr.Text)

	tr, err = decodeOutput(json.RawMessage(`{"text": "fallback"}`))
	require.NoError(t, err)
	assert.Equal(t, "fallback", tr.Text)

	tr, err = decodeOutput(nil)
	require.NoError(t, err)
	assert.Empty(t, tr.Text)

	_, err = decodeOutput(json.RawMessage(`[1, 2, 3]`))
	require.Error(t, err)
}

func TestTranscriptValidateMetadata(t *testing.T) {
	tr := &Transcript{Text: "   "}
	tr.Validate()
	assert.True(t, tr.IsEmpty)
	assert.Contains(t, tr.Warning, "empty")

	tr = &Transcript{Text: "yes"}
	tr.Validate()
	assert.False(t, tr.IsEmpty)
	assert.True(t, tr.IsShort)
	assert.Equal(t, 1, tr.WordCount)

	tr = &Transcript{Text: "thank you for calling us today"}
	tr.Validate()
	assert.False(t, tr.IsEmpty)
	assert.False(t, tr.IsShort)
	assert.Equal(t, 6, tr.WordCount)
	assert.Empty(t, tr.Warning)
}
