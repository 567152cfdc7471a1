package query

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var parseNow = time.Date(2024, 3, 20, 12, 0, 0, 0, time.UTC)

func TestParseKey(t *testing.T) {
	tests := []struct {
		name string
		date string
		day  string
	}{
		{"calendar date", "2024-03-15", "2024-03-15"},
		{"utc timestamp", "2024-03-15T23:30:00Z", "2024-03-15"},
		{"positive offset midnight", "2024-03-15T00:00:00+05:30", "2024-03-15"},
		{"negative offset evening", "2024-03-15T22:00:00-08:00", "2024-03-15"},
		{"today", "2024-03-20", "2024-03-20"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			key, err := ParseKey(" TX1 ", tt.date, parseNow)
			require.NoError(t, err)
			assert.Equal(t, "TX1", key.TransactionID)
			assert.Equal(t, tt.day, key.Day().Format("2006-01-02"))
			assert.Equal(t, key.Day(), key.ReferenceDate)
		})
	}
}

func TestParseKeyLocalToday(t *testing.T) {
	// 20:00 UTC on the 20th is already the 21st in India.
	now := time.Date(2024, 3, 20, 20, 0, 0, 0, time.UTC)

	_, err := ParseKey("TX1", "2024-03-21T01:00:00+05:30", now)
	assert.NoError(t, err)

	_, err = ParseKey("TX1", "2024-03-21", now)
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestParseKeyInvalid(t *testing.T) {
	tests := []struct {
		name string
		id   string
		date string
	}{
		{"missing id", "", "2024-03-15"},
		{"missing date", "TX1", ""},
		{"bad date", "TX1", "15/03/2024"},
		{"future date", "TX1", "2024-03-21"},
		{"multi-line id", "TX\n1", "2024-03-15"},
		{"backslash run", `TX\\42`, "2024-03-15"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseKey(tt.id, tt.date, parseNow)
			assert.ErrorIs(t, err, ErrInvalidInput)
		})
	}
}
