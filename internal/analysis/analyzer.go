package analysis

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"call-insights-go/internal/config"
	"call-insights-go/internal/llmjson"
	"call-insights-go/internal/logger"
	"call-insights-go/internal/metrics"
)

// Sub-task names recorded in analysis_errors when a task falls back.
const (
	taskPerformance       = "performance_analysis"
	taskBuying            = "buying_analysis"
	taskClassification    = "classification"
	taskProducts          = "product_analysis"
	taskSalesIntelligence = "sales_intelligence"
	taskActionItems       = "action_items"
)

// taskOrder fixes the order of analysis_errors regardless of which goroutine
// finished first.
var taskOrder = []string{
	taskPerformance, taskBuying, taskClassification,
	taskProducts, taskSalesIntelligence, taskActionItems,
}

// Completer is the LLM collaborator the sub-analyses run against.
type Completer interface {
	Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}

// Analyzer orchestrates the six sub-analyses. The first five are independent
// and run concurrently; action items run last because their prompt embeds a
// summary of the other results.
type Analyzer struct {
	llm                 Completer
	minTranscriptChars  int
	confidenceThreshold float64
	log                 *logger.Logger
}

func New(llm Completer, cfg config.Config, log *logger.Logger) *Analyzer {
	return &Analyzer{
		llm:                 llm,
		minTranscriptChars:  cfg.MinTranscriptChars,
		confidenceThreshold: cfg.LowConfidenceThreshold,
		log:                 log,
	}
}

// Run produces the merged, validated analysis record for a transcript. A
// sub-task failure never fails the stage; it contributes its documented
// defaults and is listed in analysis_errors.
func (a *Analyzer) Run(ctx context.Context, transcript string, availableProducts []string) (*Result, error) {
	log := a.log.WithField("component", "analysis")

	if len(strings.TrimSpace(transcript)) < a.minTranscriptChars {
		log.Warn("transcript is empty or very short, returning minimal analysis")
		return minimalResult(), nil
	}

	var (
		mu     sync.Mutex
		failed = map[string]bool{}
	)
	record := func(task string, err error) {
		log.WithError(err).WithField("task", task).Error("sub-analysis failed")
		metrics.SubAnalysisFailures.WithLabelValues(task).Inc()
		mu.Lock()
		failed[task] = true
		mu.Unlock()
	}

	var (
		perf  performanceResult
		buy   buyingResult
		cls   classificationResult
		prod  productsResult
		intel salesIntelResult
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		r, err := a.analyzePerformance(gctx, transcript)
		if err != nil {
			record(taskPerformance, err)
			r = performanceResult{
				PerformanceExplanation: fmt.Sprintf("Analysis failed: %v", err),
			}
		}
		perf = r
		return nil
	})
	g.Go(func() error {
		r, err := a.analyzeBuyingPotential(gctx, transcript)
		if err != nil {
			record(taskBuying, err)
			r = buyingResult{InterestLevel: string(InterestUnknown)}
		}
		buy = r
		return nil
	})
	g.Go(func() error {
		r, err := a.analyzeClassification(gctx, transcript)
		if err != nil {
			record(taskClassification, err)
			r = classificationResult{
				CallReason:  string(ReasonUnknown),
				CallOutcome: string(OutcomeUnknown),
			}
		}
		cls = r
		return nil
	})
	g.Go(func() error {
		r, err := a.analyzeProducts(gctx, transcript, availableProducts)
		if err != nil {
			record(taskProducts, err)
			r = productsResult{}
		}
		prod = r
		return nil
	})
	g.Go(func() error {
		r, err := a.analyzeSalesIntelligence(gctx, transcript)
		if err != nil {
			record(taskSalesIntelligence, err)
			r = salesIntelResult{}
		}
		intel = r
		return nil
	})
	_ = g.Wait() // sub-tasks never propagate errors

	summary := buildSummary(perf, buy, cls, intel)
	items, err := a.generateActionItems(ctx, transcript, summary)
	if err != nil {
		record(taskActionItems, err)
		items = nil
	}

	// Merge: each sub-task owns a disjoint set of record fields, so the
	// assignments below cannot clobber one another.
	res := &Result{
		PerformanceScore:       perf.PerformanceScore,
		CommunicationClarity:   perf.CommunicationClarity,
		Responsiveness:         perf.Responsiveness,
		ObjectionHandlingScore: perf.ObjectionHandlingScore,
		ListeningRatio:         perf.ListeningRatio,
		PerformanceExplanation: perf.PerformanceExplanation,

		InterestLevel:         normalizeInterestLevel(buy.InterestLevel),
		BuyingSignalsDetected: emptyIfNil(buy.BuyingSignalsDetected),
		SentimentProgression:  buy.SentimentProgression,
		ConversionLikelihood:  buy.ConversionLikelihood,

		CallReason:            normalizeCallReason(cls.CallReason),
		CallReasonConfidence:  cls.CallReasonConfidence,
		CallOutcome:           normalizeCallOutcome(cls.CallOutcome),
		CallOutcomeConfidence: cls.CallOutcomeConfidence,

		ProductsDiscussed:   prod.ProductsDiscussed,
		RecommendedProducts: prod.RecommendedProducts,

		ObjectionsDetected:    intel.ObjectionsDetected,
		MissedOpportunities:   intel.MissedOpportunities,
		MissedOpportunityFlag: intel.MissedOpportunityFlag,

		ActionItems: items,
	}

	for _, task := range taskOrder {
		if failed[task] {
			res.AnalysisErrors = append(res.AnalysisErrors, task)
		}
	}

	a.validate(res)

	if len(res.AnalysisErrors) > 0 {
		res.AnalysisWarnings = append(res.AnalysisWarnings,
			fmt.Sprintf("Some analysis components failed: %s", strings.Join(res.AnalysisErrors, ", ")))
	}

	log.WithField("performance_score", formatScore(res.PerformanceScore)).
		WithField("overall_confidence", res.OverallConfidence).
		WithField("errors", len(res.AnalysisErrors)).
		WithField("warnings", len(res.AnalysisWarnings)).
		Info("analysis complete")
	return res, nil
}

// Per-task response shapes; each owns a disjoint slice of the final record.

type performanceResult struct {
	PerformanceScore       *float64 `json:"performance_score"`
	CommunicationClarity   float64  `json:"communication_clarity"`
	Responsiveness         float64  `json:"responsiveness"`
	ObjectionHandlingScore float64  `json:"objection_handling_score"`
	ListeningRatio         float64  `json:"listening_ratio"`
	PerformanceExplanation string   `json:"performance_explanation"`
}

type buyingResult struct {
	InterestLevel         string           `json:"interest_level"`
	BuyingSignalsDetected []string         `json:"buying_signals_detected"`
	SentimentProgression  []SentimentPhase `json:"sentiment_progression"`
	ConversionLikelihood  float64          `json:"conversion_likelihood"`
}

type classificationResult struct {
	CallReason            string   `json:"call_reason"`
	CallReasonConfidence  *float64 `json:"call_reason_confidence"`
	CallOutcome           string   `json:"call_outcome"`
	CallOutcomeConfidence *float64 `json:"call_outcome_confidence"`
}

type productsResult struct {
	ProductsDiscussed   []ProductMention        `json:"products_discussed"`
	RecommendedProducts []ProductRecommendation `json:"recommended_products"`
}

type salesIntelResult struct {
	ObjectionsDetected    []Objection         `json:"objections_detected"`
	MissedOpportunities   []MissedOpportunity `json:"missed_opportunities"`
	MissedOpportunityFlag bool                `json:"missed_opportunity_flag"`
}

func (a *Analyzer) analyzePerformance(ctx context.Context, transcript string) (performanceResult, error) {
	var out performanceResult
	resp, err := a.llm.Complete(ctx, systemPrompt, performancePrompt(transcript))
	if err != nil {
		return out, err
	}
	llmjson.Parse(resp, &out) // malformed output degrades to zero values
	return out, nil
}

func (a *Analyzer) analyzeBuyingPotential(ctx context.Context, transcript string) (buyingResult, error) {
	var out buyingResult
	resp, err := a.llm.Complete(ctx, systemPrompt, buyingPrompt(transcript))
	if err != nil {
		return out, err
	}
	llmjson.Parse(resp, &out)
	return out, nil
}

func (a *Analyzer) analyzeClassification(ctx context.Context, transcript string) (classificationResult, error) {
	var out classificationResult
	resp, err := a.llm.Complete(ctx, systemPrompt, classificationPrompt(transcript))
	if err != nil {
		return out, err
	}
	llmjson.Parse(resp, &out)
	return out, nil
}

func (a *Analyzer) analyzeProducts(ctx context.Context, transcript string, available []string) (productsResult, error) {
	var out productsResult
	resp, err := a.llm.Complete(ctx, systemPrompt, productsPrompt(transcript, available))
	if err != nil {
		return out, err
	}
	llmjson.Parse(resp, &out)
	return out, nil
}

func (a *Analyzer) analyzeSalesIntelligence(ctx context.Context, transcript string) (salesIntelResult, error) {
	var out salesIntelResult
	resp, err := a.llm.Complete(ctx, systemPrompt, salesIntelligencePrompt(transcript))
	if err != nil {
		return out, err
	}
	llmjson.Parse(resp, &out)
	return out, nil
}

func (a *Analyzer) generateActionItems(ctx context.Context, transcript, summary string) ([]ActionItem, error) {
	resp, err := a.llm.Complete(ctx, systemPrompt, actionItemsPrompt(transcript, summary))
	if err != nil {
		return nil, err
	}

	var out struct {
		ActionItems []struct {
			Category    string `json:"category"`
			Priority    string `json:"priority"`
			Description string `json:"description"`
		} `json:"action_items"`
	}
	llmjson.Parse(resp, &out)

	items := make([]ActionItem, 0, len(out.ActionItems))
	for _, it := range out.ActionItems {
		items = append(items, ActionItem{
			Category:    normalizeCategory(it.Category),
			Priority:    normalizePriority(it.Priority),
			Description: it.Description,
		})
	}
	return items, nil
}

// buildSummary assembles the short textual digest the action-item prompt
// consumes.
func buildSummary(perf performanceResult, buy buyingResult, cls classificationResult, intel salesIntelResult) string {
	return fmt.Sprintf(`
Performance Score: %s
Interest Level: %s
Call Reason: %s
Call Outcome: %s
Missed Opportunities: %d
`,
		formatScore(perf.PerformanceScore),
		orNA(buy.InterestLevel),
		orNA(cls.CallReason),
		orNA(cls.CallOutcome),
		len(intel.MissedOpportunities))
}

// minimalResult is the fixed record returned when the transcript is too short
// to be worth any model calls.
func minimalResult() *Result {
	return &Result{
		PerformanceScore:       ptr(0),
		PerformanceExplanation: "Unable to analyze: transcript is empty or too short",
		InterestLevel:          InterestUnknown,
		BuyingSignalsDetected:  []string{},
		SentimentProgression:   []SentimentPhase{},
		ConversionLikelihood:   0,
		CallReason:             ReasonUnknown,
		CallReasonConfidence:   ptr(0),
		CallOutcome:            OutcomeUnknown,
		CallOutcomeConfidence:  ptr(0),
		ProductsDiscussed:      []ProductMention{},
		RecommendedProducts:    []ProductRecommendation{},
		ObjectionsDetected:     []Objection{},
		MissedOpportunities:    []MissedOpportunity{},
		ActionItems:            []ActionItem{},
		OverallConfidence:      0,
		AnalysisWarnings:       []string{"Transcript too short for meaningful analysis"},
	}
}

func formatScore(f *float64) string {
	if f == nil {
		return "N/A"
	}
	return fmt.Sprintf("%.0f", *f)
}

func orNA(s string) string {
	if s == "" {
		return "N/A"
	}
	return s
}

func emptyIfNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
