package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestComputeConfidence_EmptyHistory(t *testing.T) {
	assert.Equal(t, 0.0, computeConfidence(nil, 0))
	assert.Equal(t, 0.0, computeConfidence([]Record{}, 3))
}

func TestComputeConfidence_SingleCleanSuccess(t *testing.T) {
	history := []Record{
		{Success: true, Data: map[string]any{"total_transactions": 5}},
	}
	assert.Equal(t, 1.0, computeConfidence(history, 1))
}

func TestComputeConfidence_FailurePenalties(t *testing.T) {
	withData := []Record{
		{Success: false, Data: map[string]any{"detail": "partial"}},
	}
	assert.InDelta(t, 0.7, computeConfidence(withData, 1), 1e-9)

	withoutData := []Record{{Success: false}}
	assert.InDelta(t, 0.6, computeConfidence(withoutData, 1), 1e-9)
}

func TestComputeConfidence_AveragesAcrossRecords(t *testing.T) {
	history := []Record{
		{Success: true, Data: map[string]any{"a": 1.0}},
		{Success: false},
	}
	assert.InDelta(t, 0.8, computeConfidence(history, 2), 1e-9)

	mixed := []Record{
		{Success: true, Data: map[string]any{"a": 1.0}},
		{Success: true, Data: map[string]any{"b": 2.0}},
		{Success: false},
	}
	assert.InDelta(t, 0.8667, computeConfidence(mixed, 3), 1e-4)
}

func TestComputeConfidence_RetryPenalty(t *testing.T) {
	history := []Record{
		{Success: true, Data: map[string]any{"a": 1.0}},
	}
	// Two attempts ran but only one record survived, so a retry happened.
	assert.InDelta(t, 0.9, computeConfidence(history, 2), 1e-9)
}

func TestComputeConfidence_ClampsToZero(t *testing.T) {
	history := []Record{
		{Success: false},
		{Success: false},
	}
	score := computeConfidence(history, 5)
	assert.GreaterOrEqual(t, score, 0.0)
	assert.InDelta(t, 0.5, score, 1e-9)

	// All penalties stacked can never go below zero.
	assert.Equal(t, 0.0, computeConfidence([]Record{}, 99))
}
