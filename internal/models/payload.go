// Package models defines the shared core data structures used throughout tracepayload.
package models

import (
	"encoding/json"
	"time"
)

// DateLayout is the calendar-date format used in queries, requests and file names.
const DateLayout = "2006-01-02"

// CorrelationKey identifies one logical transaction across the trace store.
type CorrelationKey struct {
	TransactionID string    `json:"transactionId"`
	ReferenceDate time.Time `json:"transactionDate"`
}

// Day returns the reference date truncated to its calendar day.
func (k CorrelationKey) Day() time.Time {
	y, m, d := k.ReferenceDate.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// TimeWindow represents the exclusive time range a query is bounded by.
type TimeWindow struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// NewTimeWindow returns the window from the day before to the day after ref.
func NewTimeWindow(ref time.Time) TimeWindow {
	y, m, d := ref.Date()
	day := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	return TimeWindow{
		Start: day.AddDate(0, 0, -1),
		End:   day.AddDate(0, 0, 1),
	}
}

// RawLogRow is a single (timestamp, message) row returned by the trace store.
type RawLogRow struct {
	Timestamp time.Time `json:"timestamp"`
	Message   string    `json:"message"`
}

// StagePair holds the request and response fragments of one stage occurrence.
// A nil side means the fragment was never seen.
type StagePair struct {
	Request  json.RawMessage `json:"request,omitempty"`
	Response json.RawMessage `json:"response,omitempty"`
}

// AssembledPayload is the export document reconstructed from matched log rows.
type AssembledPayload struct {
	TimestampUTC      time.Time   `json:"timestamp_utc"`
	Transaction       []StagePair `json:"transaction"`
	EvaluateDiscounts []StagePair `json:"evaluate_discounts"`
}

// NewAssembledPayload returns a payload with empty, non-nil sequences.
func NewAssembledPayload() *AssembledPayload {
	return &AssembledPayload{
		Transaction:       []StagePair{},
		EvaluateDiscounts: []StagePair{},
	}
}

// IsEmpty reports whether no stage produced any pair.
func (p *AssembledPayload) IsEmpty() bool {
	return len(p.Transaction) == 0 && len(p.EvaluateDiscounts) == 0
}

// PairCount returns the total number of pairs across both stages.
func (p *AssembledPayload) PairCount() int {
	return len(p.Transaction) + len(p.EvaluateDiscounts)
}
