package engine

// Confidence scoring weights. Policy constants, not tunables: changing them
// changes what every reported confidence means.
const (
	failurePenalty   = 0.3
	emptyDataPenalty = 0.1
	retryPenalty     = 0.1
)

// computeConfidence scores the turn from its execution history. Each record
// starts at 1.0 and loses weight for failure and for empty data; the
// per-record scores are averaged, a retry penalty applies when more
// attempts ran than history records, and the result clamps to [0, 1]. An
// empty history scores zero.
func computeConfidence(history []Record, attempts int) float64 {
	if len(history) == 0 {
		return 0.0
	}

	total := 0.0
	for _, record := range history {
		score := 1.0
		if !record.Success {
			score -= failurePenalty
		}
		if len(record.Data) == 0 {
			score -= emptyDataPenalty
		}
		total += score
	}
	confidence := total / float64(len(history))

	if attempts > len(history) {
		confidence -= retryPenalty
	}

	if confidence < 0 {
		return 0.0
	}
	if confidence > 1 {
		return 1.0
	}
	return confidence
}
