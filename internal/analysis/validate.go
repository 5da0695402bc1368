package analysis

import "fmt"

// Validate post-processes a merged record: it flags missing required fields,
// marks low-confidence classifications uncertain, and computes the overall
// confidence (missing confidences count as neutral 50, not zero). It reports
// validity, defined strictly as "no missing required fields" — low confidence
// alone never invalidates a result.
func Validate(res *Result, lowConfidenceThreshold float64) bool {
	missing := 0
	if res.PerformanceScore == nil {
		res.AnalysisWarnings = append(res.AnalysisWarnings, "Missing analysis field: performance_score")
		missing++
	}
	if res.CallReason == "" {
		res.AnalysisWarnings = append(res.AnalysisWarnings, "Missing analysis field: call_reason")
		missing++
	}
	if res.CallOutcome == "" {
		res.AnalysisWarnings = append(res.AnalysisWarnings, "Missing analysis field: call_outcome")
		missing++
	}

	checkConfidence := func(conf *float64, field string) bool {
		if conf == nil || *conf == 0 || *conf >= lowConfidenceThreshold {
			return false
		}
		res.AnalysisWarnings = append(res.AnalysisWarnings,
			fmt.Sprintf("Low confidence (%.0f%%) for %s. Result may be uncertain.", *conf, field))
		return true
	}
	res.CallReasonUncertain = checkConfidence(res.CallReasonConfidence, "call_reason")
	res.CallOutcomeUncertain = checkConfidence(res.CallOutcomeConfidence, "call_outcome")

	res.OverallConfidence = (confidenceOr(res.CallReasonConfidence, 50) +
		confidenceOr(res.CallOutcomeConfidence, 50)) / 2

	return missing == 0
}

func (a *Analyzer) validate(res *Result) {
	Validate(res, a.confidenceThreshold)
}

func confidenceOr(conf *float64, def float64) float64 {
	if conf == nil {
		return def
	}
	return *conf
}
