package query

import (
	"fmt"
	"strings"
	"time"

	"tracepayload/internal/models"
)

// ParseKey turns user input into a validated correlation key. rawDate is a
// YYYY-MM-DD date or an RFC3339 timestamp; a timestamp keeps the calendar day
// of its own offset. Dates later than today, in that same zone, are rejected.
func ParseKey(id, rawDate string, now time.Time) (models.CorrelationKey, error) {
	rawDate = strings.TrimSpace(rawDate)
	if rawDate == "" {
		return models.CorrelationKey{}, fmt.Errorf("%w: transaction date is required", ErrInvalidInput)
	}

	loc := time.UTC
	day, err := time.Parse(models.DateLayout, rawDate)
	if err != nil {
		ts, tsErr := time.Parse(time.RFC3339, rawDate)
		if tsErr != nil {
			return models.CorrelationKey{}, fmt.Errorf("%w: transaction date must be YYYY-MM-DD: %q", ErrInvalidInput, rawDate)
		}
		loc = ts.Location()
		y, m, d := ts.Date()
		day = time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	}

	y, m, d := now.In(loc).Date()
	if day.After(time.Date(y, m, d, 0, 0, 0, 0, time.UTC)) {
		return models.CorrelationKey{}, fmt.Errorf("%w: transaction date cannot be in the future", ErrInvalidInput)
	}

	key := models.CorrelationKey{TransactionID: strings.TrimSpace(id), ReferenceDate: day}
	if err := Validate(key); err != nil {
		return models.CorrelationKey{}, err
	}
	return key, nil
}
