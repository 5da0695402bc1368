// Package analysis runs the six model-driven sub-analyses against a
// transcript and merges their results into one confidence-scored record.
package analysis

import "fmt"

// InterestLevel is the customer's buying interest.
type InterestLevel string

const (
	InterestLow     InterestLevel = "low"
	InterestMedium  InterestLevel = "medium"
	InterestHigh    InterestLevel = "high"
	InterestUnknown InterestLevel = "unknown"
)

// CallReason classifies why the call happened.
type CallReason string

const (
	ReasonProductInquiry   CallReason = "product_inquiry"
	ReasonPricingQuestion  CallReason = "pricing_question"
	ReasonComplaintSupport CallReason = "complaint_support"
	ReasonFollowupRenewal  CallReason = "followup_renewal"
	ReasonOther            CallReason = "other"
	ReasonUnknown          CallReason = "unknown"
)

// CallOutcome classifies how the call ended.
type CallOutcome string

const (
	OutcomeSuccessfulSale         CallOutcome = "successful_sale"
	OutcomeInterestedNotConverted CallOutcome = "interested_not_converted"
	OutcomeNotInterested          CallOutcome = "not_interested"
	OutcomeSupportComplaint       CallOutcome = "support_complaint"
	OutcomeUnknown                CallOutcome = "unknown"
)

// Category buckets an action item.
type Category string

const (
	CategoryFollowup Category = "followup"
	CategoryTraining Category = "training"
	CategoryCoaching Category = "coaching"
	CategoryOther    Category = "other"
)

// Priority ranks an action item.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

// ParseCategory validates a stored category value.
func ParseCategory(s string) (Category, error) {
	switch Category(s) {
	case CategoryFollowup, CategoryTraining, CategoryCoaching, CategoryOther:
		return Category(s), nil
	}
	return "", fmt.Errorf("unknown action item category %q", s)
}

// ParsePriority validates a stored priority value.
func ParsePriority(s string) (Priority, error) {
	switch Priority(s) {
	case PriorityLow, PriorityMedium, PriorityHigh:
		return Priority(s), nil
	}
	return "", fmt.Errorf("unknown action item priority %q", s)
}

// normalize* map whatever the model emitted onto the closed sets. The empty
// string stays empty so the validation layer can flag a missing field.

func normalizeInterestLevel(s string) InterestLevel {
	switch InterestLevel(s) {
	case InterestLow, InterestMedium, InterestHigh, InterestUnknown:
		return InterestLevel(s)
	}
	return InterestUnknown
}

func normalizeCallReason(s string) CallReason {
	switch CallReason(s) {
	case ReasonProductInquiry, ReasonPricingQuestion, ReasonComplaintSupport,
		ReasonFollowupRenewal, ReasonOther, ReasonUnknown:
		return CallReason(s)
	case "":
		return ""
	}
	return ReasonOther
}

func normalizeCallOutcome(s string) CallOutcome {
	switch CallOutcome(s) {
	case OutcomeSuccessfulSale, OutcomeInterestedNotConverted, OutcomeNotInterested,
		OutcomeSupportComplaint, OutcomeUnknown:
		return CallOutcome(s)
	case "":
		return ""
	}
	return OutcomeUnknown
}

func normalizeCategory(s string) Category {
	if c, err := ParseCategory(s); err == nil {
		return c
	}
	return CategoryOther
}

func normalizePriority(s string) Priority {
	if p, err := ParsePriority(s); err == nil {
		return p
	}
	return PriorityMedium
}

// SentimentPhase is one step of the customer's sentiment over the call.
type SentimentPhase struct {
	Phase     string `json:"phase"`
	Sentiment string `json:"sentiment"`
	Notes     string `json:"notes"`
}

// ProductMention is a product the customer and agent actually discussed.
type ProductMention struct {
	Name       string  `json:"name"`
	Context    string  `json:"context"`
	Confidence float64 `json:"confidence"`
}

// ProductRecommendation is a product the model suggests pitching.
type ProductRecommendation struct {
	Name       string  `json:"name"`
	Reason     string  `json:"reason"`
	Confidence float64 `json:"confidence"`
}

// Objection is a customer objection and how the agent handled it.
type Objection struct {
	Type          string  `json:"type"`
	Quote         string  `json:"quote"`
	AgentResponse string  `json:"agent_response"`
	HandlingScore float64 `json:"handling_score"`
}

// MissedOpportunity is a sales chance the agent did not take.
type MissedOpportunity struct {
	Description       string `json:"description"`
	CustomerSignal    string `json:"customer_signal"`
	RecommendedAction string `json:"recommended_action"`
}

// ActionItem is one follow-up recommendation generated from the analysis.
type ActionItem struct {
	Category    Category `json:"category"`
	Priority    Priority `json:"priority"`
	Description string   `json:"description"`
	IsCompleted bool     `json:"is_completed"`
}

// Result is the flat merged record produced by the analysis stage. Pointer
// fields distinguish "the model gave 0" from "the model gave nothing".
type Result struct {
	// Employee performance.
	PerformanceScore       *float64 `json:"performance_score"`
	CommunicationClarity   float64  `json:"communication_clarity"`
	Responsiveness         float64  `json:"responsiveness"`
	ObjectionHandlingScore float64  `json:"objection_handling_score"`
	ListeningRatio         float64  `json:"listening_ratio"`
	PerformanceExplanation string   `json:"performance_explanation"`

	// Buying potential.
	InterestLevel         InterestLevel    `json:"interest_level"`
	BuyingSignalsDetected []string         `json:"buying_signals_detected"`
	SentimentProgression  []SentimentPhase `json:"sentiment_progression"`
	ConversionLikelihood  float64          `json:"conversion_likelihood"`

	// Classification.
	CallReason            CallReason  `json:"call_reason"`
	CallReasonConfidence  *float64    `json:"call_reason_confidence"`
	CallReasonUncertain   bool        `json:"call_reason_uncertain,omitempty"`
	CallOutcome           CallOutcome `json:"call_outcome"`
	CallOutcomeConfidence *float64    `json:"call_outcome_confidence"`
	CallOutcomeUncertain  bool        `json:"call_outcome_uncertain,omitempty"`

	// Products.
	ProductsDiscussed   []ProductMention        `json:"products_discussed"`
	RecommendedProducts []ProductRecommendation `json:"recommended_products"`

	// Sales intelligence.
	ObjectionsDetected    []Objection         `json:"objections_detected"`
	MissedOpportunities   []MissedOpportunity `json:"missed_opportunities"`
	MissedOpportunityFlag bool                `json:"missed_opportunity_flag"`

	ActionItems []ActionItem `json:"action_items"`

	// Derived by the validation layer.
	OverallConfidence float64  `json:"overall_confidence"`
	AnalysisWarnings  []string `json:"analysis_warnings"`
	AnalysisErrors    []string `json:"analysis_errors,omitempty"`
}

func ptr(f float64) *float64 { return &f }
