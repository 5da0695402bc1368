package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"call-insights-go/internal/analysis"
	"call-insights-go/internal/config"
	"call-insights-go/internal/events"
	"call-insights-go/internal/llm"
	"call-insights-go/internal/logger"
	"call-insights-go/internal/pipeline"
	"call-insights-go/internal/report"
	"call-insights-go/internal/store"
	"call-insights-go/internal/transcription"
)

var audioExtensions = map[string]bool{
	".mp3": true, ".wav": true, ".m4a": true,
	".ogg": true, ".flac": true, ".webm": true,
}

var defaultProducts = []string{
	"Premium Subscription",
	"Standard Subscription",
	"Enterprise License",
	"Support Package",
	"Training Workshop",
}

func main() {
	_ = godotenv.Load() // loads .env

	cfg := config.Load()
	log := logger.NewWith(cfg.Environment, cfg.LogLevel)
	log.WithField("service", "call-insights-go").Info("starting service")

	st, err := store.Open(cfg.DatabasePath)
	if err != nil {
		log.WithError(err).Fatal("failed to open database")
	}
	defer st.Close()
	if err := st.SeedProducts(context.Background(), defaultProducts); err != nil {
		log.WithError(err).Fatal("failed to seed product catalog")
	}

	var publisher pipeline.Publisher
	if cfg.AMQPURL != "" {
		pub, err := events.Connect(cfg.AMQPURL, cfg.AMQPQueue, log)
		if err != nil {
			log.WithError(err).Fatal("failed to connect to AMQP broker")
		}
		defer pub.Close()
		publisher = pub
	}

	stt := transcription.NewClient(cfg, log)
	analyzer := analysis.New(llm.NewClient(cfg, log), cfg, log)
	orch := pipeline.New(st, stt, analyzer, publisher, log)
	exporter := report.NewExporter(st, log)

	mux := http.NewServeMux()

	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "ok")
	})
	mux.Handle("GET /metrics", promhttp.Handler())

	// register a new call for processing
	mux.HandleFunc("POST /calls", func(w http.ResponseWriter, r *http.Request) {
		reqLog := log.WithRequest(r).WithField("handler", "create_call")

		var req struct {
			FilePath        string  `json:"file_path"`
			Filename        string  `json:"filename"`
			DurationSeconds float64 `json:"duration_seconds"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid JSON body", http.StatusBadRequest)
			return
		}
		if req.FilePath == "" {
			http.Error(w, "missing file_path", http.StatusBadRequest)
			return
		}
		ext := strings.ToLower(filepath.Ext(req.FilePath))
		if !audioExtensions[ext] {
			http.Error(w, fmt.Sprintf("unsupported audio format %q", ext), http.StatusBadRequest)
			return
		}
		info, err := os.Stat(req.FilePath)
		if err != nil {
			reqLog.WithError(err).Warn("audio file not accessible")
			http.Error(w, "audio file not accessible", http.StatusBadRequest)
			return
		}
		if req.Filename == "" {
			req.Filename = filepath.Base(req.FilePath)
		}

		call := &store.Call{
			Filename:        req.Filename,
			FilePath:        req.FilePath,
			FileSize:        info.Size(),
			DurationSeconds: req.DurationSeconds,
		}
		if err := st.CreateCall(r.Context(), call); err != nil {
			reqLog.WithError(err).Error("failed to create call")
			http.Error(w, "failed to create call", http.StatusInternalServerError)
			return
		}
		reqLog.WithField("call_id", call.ID).Info("call registered")
		writeJSON(w, http.StatusCreated, call)
	})

	mux.HandleFunc("GET /calls", func(w http.ResponseWriter, r *http.Request) {
		limit := queryInt(r, "limit", 50)
		offset := queryInt(r, "offset", 0)
		calls, err := st.ListCalls(r.Context(), r.URL.Query().Get("status"), limit, offset)
		if err != nil {
			writeStoreError(w, log.WithRequest(r), err)
			return
		}
		if calls == nil {
			calls = []store.Call{}
		}
		writeJSON(w, http.StatusOK, calls)
	})

	mux.HandleFunc("GET /calls/{id}", func(w http.ResponseWriter, r *http.Request) {
		call, err := st.GetCall(r.Context(), r.PathValue("id"))
		if err != nil {
			writeStoreError(w, log.WithRequest(r), err)
			return
		}
		writeJSON(w, http.StatusOK, call)
	})

	// kick off the full pipeline in the background
	mux.HandleFunc("POST /calls/{id}/process", func(w http.ResponseWriter, r *http.Request) {
		id := r.PathValue("id")
		reqLog := log.WithRequest(r).WithField("call_id", id)

		task, err := orch.Start(r.Context(), id)
		if err != nil {
			writeStoreError(w, reqLog, err)
			return
		}
		reqLog.Info("pipeline run started")
		writeJSON(w, http.StatusAccepted, map[string]string{
			"call_id": task.CallID,
			"status":  string(store.StatusTranscribing),
		})
	})

	// single-stage operations for targeted reprocessing
	mux.HandleFunc("POST /calls/{id}/transcribe", func(w http.ResponseWriter, r *http.Request) {
		id := r.PathValue("id")
		if err := orch.Transcribe(r.Context(), id); err != nil {
			writeStoreError(w, log.WithRequest(r).WithField("call_id", id), err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"call_id": id, "status": string(store.StatusTranscribed)})
	})

	mux.HandleFunc("POST /calls/{id}/analyze", func(w http.ResponseWriter, r *http.Request) {
		id := r.PathValue("id")
		if err := orch.Analyze(r.Context(), id); err != nil {
			writeStoreError(w, log.WithRequest(r).WithField("call_id", id), err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"call_id": id, "status": string(store.StatusAnalyzed)})
	})

	mux.HandleFunc("GET /calls/{id}/status", func(w http.ResponseWriter, r *http.Request) {
		id := r.PathValue("id")
		reqLog := log.WithRequest(r).WithField("call_id", id)

		call, err := st.GetCall(r.Context(), id)
		if err != nil {
			writeStoreError(w, reqLog, err)
			return
		}
		hasTranscript := true
		if _, err := st.GetTranscript(r.Context(), id); err != nil {
			if !errors.Is(err, store.ErrNotFound) {
				writeStoreError(w, reqLog, err)
				return
			}
			hasTranscript = false
		}
		hasAnalysis := true
		if _, err := st.GetAnalysis(r.Context(), id); err != nil {
			if !errors.Is(err, store.ErrNotFound) {
				writeStoreError(w, reqLog, err)
				return
			}
			hasAnalysis = false
		}
		itemCount, err := st.ActionItemCount(r.Context(), id)
		if err != nil {
			writeStoreError(w, reqLog, err)
			return
		}

		writeJSON(w, http.StatusOK, map[string]any{
			"call_id":            call.ID,
			"status":             string(call.Status),
			"has_transcript":     hasTranscript,
			"has_analysis":       hasAnalysis,
			"action_items_count": itemCount,
			"is_processing":      call.Status == store.StatusTranscribing || call.Status == store.StatusAnalyzing,
			"is_complete":        call.Status == store.StatusAnalyzed,
			"is_failed":          call.Status == store.StatusFailed,
			"updated_at":         call.UpdatedAt,
		})
	})

	mux.HandleFunc("GET /calls/{id}/transcript", func(w http.ResponseWriter, r *http.Request) {
		t, err := st.GetTranscript(r.Context(), r.PathValue("id"))
		if err != nil {
			writeStoreError(w, log.WithRequest(r), err)
			return
		}
		writeJSON(w, http.StatusOK, t)
	})

	mux.HandleFunc("GET /calls/{id}/analysis", func(w http.ResponseWriter, r *http.Request) {
		res, err := st.GetAnalysis(r.Context(), r.PathValue("id"))
		if err != nil {
			writeStoreError(w, log.WithRequest(r), err)
			return
		}
		writeJSON(w, http.StatusOK, res)
	})

	mux.HandleFunc("GET /calls/{id}/action-items", func(w http.ResponseWriter, r *http.Request) {
		items, err := st.ActionItems(r.Context(), r.PathValue("id"))
		if err != nil {
			writeStoreError(w, log.WithRequest(r), err)
			return
		}
		if items == nil {
			items = []store.StoredActionItem{}
		}
		writeJSON(w, http.StatusOK, items)
	})

	mux.HandleFunc("GET /report.xlsx", func(w http.ResponseWriter, r *http.Request) {
		reqLog := log.WithRequest(r).WithField("handler", "report")
		w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
		w.Header().Set("Content-Disposition", `attachment; filename="call-insights.xlsx"`)
		if err := exporter.WriteXLSX(r.Context(), w); err != nil {
			reqLog.WithError(err).Error("report export failed")
		}
	})

	addr := fmt.Sprintf(":%s", cfg.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}
	log.WithField("addr", addr).Info("listening")
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.WithError(err).Fatal("server terminated")
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.Encode(v)
}

// writeStoreError maps domain errors to HTTP statuses: missing records are
// 404, status-machine violations are 409, everything else is 500.
func writeStoreError(w http.ResponseWriter, log interface{ Warn(...any) }, err error) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, pipeline.ErrInvalidStatus), errors.Is(err, pipeline.ErrMissingTranscript):
		http.Error(w, err.Error(), http.StatusConflict)
	default:
		log.Warn("request failed: " + err.Error())
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}

func queryInt(r *http.Request, key string, def int) int {
	if v := r.URL.Query().Get(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			return n
		}
	}
	return def
}
