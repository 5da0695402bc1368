package analysis

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validResult() *Result {
	return &Result{
		PerformanceScore:      ptr(80),
		CallReason:            ReasonPricingQuestion,
		CallReasonConfidence:  ptr(90),
		CallOutcome:           OutcomeSuccessfulSale,
		CallOutcomeConfidence: ptr(80),
	}
}

func TestValidateComputesOverallConfidence(t *testing.T) {
	res := validResult()
	res.CallReasonConfidence = ptr(30)
	res.CallOutcomeConfidence = ptr(90)

	ok := Validate(res, 50)

	assert.True(t, ok, "low confidence alone must not invalidate the result")
	assert.Equal(t, 60.0, res.OverallConfidence)
	assert.True(t, res.CallReasonUncertain)
	assert.False(t, res.CallOutcomeUncertain)

	require.Len(t, res.AnalysisWarnings, 1)
	assert.Contains(t, res.AnalysisWarnings[0], "Low confidence (30%) for call_reason")
}

func TestValidateFlagsMissingRequiredFields(t *testing.T) {
	res := &Result{}

	ok := Validate(res, 50)

	assert.False(t, ok)
	assert.Contains(t, res.AnalysisWarnings, "Missing analysis field: performance_score")
	assert.Contains(t, res.AnalysisWarnings, "Missing analysis field: call_reason")
	assert.Contains(t, res.AnalysisWarnings, "Missing analysis field: call_outcome")
	// missing confidences count as neutral 50, not zero
	assert.Equal(t, 50.0, res.OverallConfidence)
}

func TestValidateZeroConfidenceNotFlaggedUncertain(t *testing.T) {
	res := validResult()
	res.CallReasonConfidence = ptr(0)
	res.CallOutcomeConfidence = ptr(0)

	ok := Validate(res, 50)

	assert.True(t, ok)
	assert.False(t, res.CallReasonUncertain)
	assert.False(t, res.CallOutcomeUncertain)
	assert.Empty(t, res.AnalysisWarnings)
	assert.Equal(t, 0.0, res.OverallConfidence)
}

func TestValidateHighConfidenceClean(t *testing.T) {
	res := validResult()

	ok := Validate(res, 50)

	assert.True(t, ok)
	assert.Empty(t, res.AnalysisWarnings)
	assert.Equal(t, 85.0, res.OverallConfidence)
	assert.False(t, res.CallReasonUncertain)
	assert.False(t, res.CallOutcomeUncertain)
}
