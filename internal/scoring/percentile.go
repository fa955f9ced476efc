package scoring

import "math"

// percentileExponent shapes the fixed reference curve. Fitted once against
// historical mock-test distributions; not a statistical model.
const percentileExponent = 1.87

// EstimatePercentile maps a raw total score to an estimated percentile in
// [0,100] using a fixed curve anchored at the test's 99-percentile
// reference score. Scores above the anchor clamp to the anchor and
// negative totals (net negative marking) clamp to zero, so the
// exponentiation base stays in [0,1]. Callers must treat the output as an
// estimate, not a fitted percentile.
func EstimatePercentile(totalScore, referenceScore99 float64) float64 {
	if referenceScore99 <= 0 {
		return 0
	}
	effective := math.Min(math.Max(totalScore, 0), referenceScore99)
	term := (referenceScore99 - effective) / referenceScore99
	return 100 * (1 - math.Pow(term, percentileExponent))
}
