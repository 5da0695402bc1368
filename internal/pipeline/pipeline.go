// Package pipeline drives a call through the status state machine:
// pending -> transcribing -> transcribed -> analyzing -> analyzed, with
// failed reachable from the two in-flight states. Every transition is
// committed to the store before the next stage starts, so an observer
// polling status always sees a state consistent with completed work.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"call-insights-go/internal/analysis"
	"call-insights-go/internal/logger"
	"call-insights-go/internal/metrics"
	"call-insights-go/internal/store"
	"call-insights-go/internal/transcription"
)

// ErrInvalidStatus is a caller error: the call's current status does not
// allow the requested operation. It is never a pipeline failure.
var ErrInvalidStatus = errors.New("call status does not allow this operation")

// ErrMissingTranscript is a caller error: analysis was requested for a call
// that has no transcript.
var ErrMissingTranscript = errors.New("call must be transcribed first")

// Store is the durable collaborator. Commits must be atomic per record and
// read-after-write visible.
type Store interface {
	GetCall(ctx context.Context, id string) (*store.Call, error)
	CommitStatus(ctx context.Context, id string, status store.Status) error
	SaveTranscript(ctx context.Context, id string, t *transcription.Transcript) error
	GetTranscript(ctx context.Context, id string) (*transcription.Transcript, error)
	SaveAnalysis(ctx context.Context, id string, res *analysis.Result) error
	ProductNames(ctx context.Context) ([]string, error)
}

// Transcriber is the transcription stage.
type Transcriber interface {
	Transcribe(ctx context.Context, audioPath, language string) (*transcription.Transcript, error)
}

// Analyzer is the analysis stage.
type Analyzer interface {
	Run(ctx context.Context, transcript string, availableProducts []string) (*analysis.Result, error)
}

// Publisher receives status-transition events. Implementations must never
// block or fail the pipeline.
type Publisher interface {
	PublishStatus(callID string, status string)
}

// Orchestrator owns a call's status during processing; it is the only writer.
// It does not enforce mutual exclusion across runs: starting two concurrent
// runs for the same call is a caller error.
type Orchestrator struct {
	store    Store
	stt      Transcriber
	analyzer Analyzer
	events   Publisher
	log      *logger.Logger
}

func New(st Store, stt Transcriber, an Analyzer, events Publisher, log *logger.Logger) *Orchestrator {
	if events == nil {
		events = nopPublisher{}
	}
	return &Orchestrator{store: st, stt: stt, analyzer: an, events: events, log: log}
}

// Process runs the full pipeline for one call synchronously. The call must be
// pending or failed. Stage failures commit a failed checkpoint and are
// returned to the caller; the call stays resumable.
func (o *Orchestrator) Process(ctx context.Context, callID string) (err error) {
	log := o.log.WithField("call_id", callID)

	call, err := o.store.GetCall(ctx, callID)
	if err != nil {
		return err
	}
	if call.Status != store.StatusPending && call.Status != store.StatusFailed {
		return fmt.Errorf("%w: cannot process call in status %q", ErrInvalidStatus, call.Status)
	}

	// Anything escaping the stages' own handling must not strand the call in
	// a non-terminal status.
	defer func() {
		if r := recover(); r != nil {
			log.WithField("panic", r).Error("pipeline panicked")
			o.commit(ctx, callID, store.StatusFailed)
			metrics.PipelineRuns.WithLabelValues(string(store.StatusFailed)).Inc()
			err = fmt.Errorf("pipeline panic: %v", r)
		}
	}()

	log.Info("pipeline started")
	if err := o.runTranscription(ctx, call); err != nil {
		metrics.PipelineRuns.WithLabelValues(string(store.StatusFailed)).Inc()
		return err
	}
	if err := o.runAnalysis(ctx, callID); err != nil {
		metrics.PipelineRuns.WithLabelValues(string(store.StatusFailed)).Inc()
		return err
	}
	metrics.PipelineRuns.WithLabelValues(string(store.StatusAnalyzed)).Inc()
	log.Info("pipeline completed")
	return nil
}

// Transcribe runs only the transcription stage. The call must be pending or
// failed.
func (o *Orchestrator) Transcribe(ctx context.Context, callID string) error {
	call, err := o.store.GetCall(ctx, callID)
	if err != nil {
		return err
	}
	if call.Status != store.StatusPending && call.Status != store.StatusFailed {
		return fmt.Errorf("%w: cannot transcribe call in status %q", ErrInvalidStatus, call.Status)
	}
	return o.runTranscription(ctx, call)
}

// Analyze runs only the analysis stage. The call must be transcribed or
// failed, and must already have a transcript.
func (o *Orchestrator) Analyze(ctx context.Context, callID string) error {
	call, err := o.store.GetCall(ctx, callID)
	if err != nil {
		return err
	}
	if call.Status != store.StatusTranscribed && call.Status != store.StatusFailed {
		return fmt.Errorf("%w: cannot analyze call in status %q", ErrInvalidStatus, call.Status)
	}
	if _, err := o.store.GetTranscript(ctx, callID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrMissingTranscript
		}
		return err
	}
	return o.runAnalysis(ctx, callID)
}

func (o *Orchestrator) runTranscription(ctx context.Context, call *store.Call) error {
	log := o.log.WithField("call_id", call.ID)
	start := time.Now()

	if err := o.commit(ctx, call.ID, store.StatusTranscribing); err != nil {
		return err
	}

	t, err := o.stt.Transcribe(ctx, call.FilePath, "auto")
	if err != nil {
		log.WithError(err).Error("transcription failed")
		o.commit(ctx, call.ID, store.StatusFailed)
		return fmt.Errorf("transcription failed: %w", err)
	}

	if err := o.store.SaveTranscript(ctx, call.ID, t); err != nil {
		log.WithError(err).Error("persisting transcript failed")
		o.commit(ctx, call.ID, store.StatusFailed)
		return fmt.Errorf("persist transcript: %w", err)
	}
	if err := o.commit(ctx, call.ID, store.StatusTranscribed); err != nil {
		return err
	}

	metrics.StageDuration.WithLabelValues("transcription").Observe(time.Since(start).Seconds())
	log.WithField("duration_ms", time.Since(start).Milliseconds()).Info("transcription stage completed")
	return nil
}

func (o *Orchestrator) runAnalysis(ctx context.Context, callID string) error {
	log := o.log.WithField("call_id", callID)
	start := time.Now()

	if err := o.commit(ctx, callID, store.StatusAnalyzing); err != nil {
		return err
	}

	t, err := o.store.GetTranscript(ctx, callID)
	if err != nil {
		log.WithError(err).Error("loading transcript failed")
		o.commit(ctx, callID, store.StatusFailed)
		return fmt.Errorf("load transcript: %w", err)
	}

	products, err := o.store.ProductNames(ctx)
	if err != nil {
		// The catalog is advisory context for one sub-analysis; analysis
		// proceeds without it.
		log.WithError(err).Warn("loading product catalog failed")
		products = nil
	}

	res, err := o.analyzer.Run(ctx, t.Text, products)
	if err != nil {
		log.WithError(err).Error("analysis failed")
		o.commit(ctx, callID, store.StatusFailed)
		return fmt.Errorf("analysis failed: %w", err)
	}

	if err := o.store.SaveAnalysis(ctx, callID, res); err != nil {
		log.WithError(err).Error("persisting analysis failed")
		o.commit(ctx, callID, store.StatusFailed)
		return fmt.Errorf("persist analysis: %w", err)
	}
	if err := o.commit(ctx, callID, store.StatusAnalyzed); err != nil {
		return err
	}

	metrics.StageDuration.WithLabelValues("analysis").Observe(time.Since(start).Seconds())
	log.WithField("duration_ms", time.Since(start).Milliseconds()).
		WithField("action_items", len(res.ActionItems)).
		Info("analysis stage completed")
	return nil
}

// commit durably records a status checkpoint and publishes the transition.
func (o *Orchestrator) commit(ctx context.Context, callID string, status store.Status) error {
	if err := o.store.CommitStatus(ctx, callID, status); err != nil {
		o.log.WithField("call_id", callID).WithField("status", string(status)).
			WithError(err).Error("status checkpoint failed")
		return fmt.Errorf("commit status %s: %w", status, err)
	}
	o.log.WithField("call_id", callID).WithField("status", string(status)).Info("status committed")
	o.events.PublishStatus(callID, string(status))
	return nil
}

type nopPublisher struct{}

func (nopPublisher) PublishStatus(string, string) {}
