package analysis

import (
	"fmt"
	"strings"
)

const systemPrompt = `You are an expert call center analyst specializing in sales performance evaluation.
Analyze call transcripts and provide structured insights in JSON format.
Be objective, specific, and provide actionable insights.
All scores should be on a 0-100 scale.`

func performancePrompt(transcript string) string {
	return fmt.Sprintf(`Analyze this call center transcript for employee performance.

TRANSCRIPT:
%s

Provide a JSON response with:
{
    "performance_score": <0-100 overall score>,
    "communication_clarity": <0-100 score for clear communication>,
    "responsiveness": <0-100 score for responding to customer needs>,
    "objection_handling_score": <0-100 score for handling objections>,
    "listening_ratio": <0.0-1.0 estimated ratio of listening vs talking>,
    "performance_explanation": "<detailed explanation of scores and areas for improvement>"
}`, transcript)
}

func buyingPrompt(transcript string) string {
	return fmt.Sprintf(`Analyze this call transcript for customer buying potential.

TRANSCRIPT:
%s

Provide a JSON response with:
{
    "interest_level": "<low|medium|high|unknown>",
    "buying_signals_detected": ["<list of specific buying signals found>"],
    "sentiment_progression": [
        {"phase": "opening", "sentiment": "<positive|neutral|negative>", "notes": "..."},
        {"phase": "middle", "sentiment": "...", "notes": "..."},
        {"phase": "closing", "sentiment": "...", "notes": "..."}
    ],
    "conversion_likelihood": <0-100 probability of conversion>
}`, transcript)
}

func classificationPrompt(transcript string) string {
	return fmt.Sprintf(`Classify this call transcript.

TRANSCRIPT:
%s

Provide a JSON response with:
{
    "call_reason": "<product_inquiry|pricing_question|complaint_support|followup_renewal|other>",
    "call_reason_confidence": <0-100>,
    "call_outcome": "<successful_sale|interested_not_converted|not_interested|support_complaint|unknown>",
    "call_outcome_confidence": <0-100>
}`, transcript)
}

func productsPrompt(transcript string, availableProducts []string) string {
	products := "Unknown products"
	if len(availableProducts) > 0 {
		products = strings.Join(availableProducts, ", ")
	}
	return fmt.Sprintf(`Analyze products discussed in this call.

AVAILABLE PRODUCTS: %s

TRANSCRIPT:
%s

Provide a JSON response with:
{
    "products_discussed": [
        {"name": "<product name>", "context": "<how it was discussed>", "confidence": <0-100>}
    ],
    "recommended_products": [
        {"name": "<product name>", "reason": "<why recommended based on customer needs>", "confidence": <0-100>}
    ]
}`, products, transcript)
}

func salesIntelligencePrompt(transcript string) string {
	return fmt.Sprintf(`Analyze this call for sales intelligence.

TRANSCRIPT:
%s

Provide a JSON response with:
{
    "objections_detected": [
        {
            "type": "<price|features|trust|timing|other>",
            "quote": "<relevant customer quote>",
            "agent_response": "<how agent handled it>",
            "handling_score": <0-100>
        }
    ],
    "missed_opportunities": [
        {
            "description": "<what opportunity was missed>",
            "customer_signal": "<what the customer said/did>",
            "recommended_action": "<what agent should have done>"
        }
    ],
    "missed_opportunity_flag": <true if significant opportunities were missed>
}`, transcript)
}

func actionItemsPrompt(transcript, analysisSummary string) string {
	return fmt.Sprintf(`Based on this call transcript and analysis, generate action items.

TRANSCRIPT:
%s

ANALYSIS SUMMARY:
%s

Provide a JSON response with:
{
    "action_items": [
        {
            "category": "<followup|training|coaching|other>",
            "priority": "<low|medium|high>",
            "description": "<specific actionable recommendation>"
        }
    ]
}`, transcript, analysisSummary)
}
