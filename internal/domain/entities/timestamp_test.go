package entities

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsValidTimestamp(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected bool
	}{
		{name: "well formed", input: "2020-01-01_10-00-00", expected: true},
		{name: "leap day", input: "2024-02-29_23-59-59", expected: true},
		{name: "out of range fields", input: "2020-13-40_99-99-99", expected: false},
		{name: "not a leap year", input: "2023-02-29_00-00-00", expected: false},
		{name: "null literal", input: "null", expected: false},
		{name: "empty", input: "", expected: false},
		{name: "iso format", input: "2020-01-01T10:00:00", expected: false},
		{name: "missing seconds", input: "2020-01-01_10-00", expected: false},
		{name: "trailing garbage", input: "2020-01-01_10-00-00x", expected: false},
		{name: "single digit month", input: "2020-1-01_10-00-00", expected: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.NotPanics(t, func() {
				assert.Equal(t, tt.expected, IsValidTimestamp(tt.input))
			})
		})
	}
}

func TestParseTimestamp_ErrorIsValidation(t *testing.T) {
	_, err := ParseTimestamp("2020-13-40_99-99-99")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrValidation))
	assert.Contains(t, err.Error(), "not parseable")
}

func TestFormatTimestamp_RoundTrip(t *testing.T) {
	in := time.Date(2021, 7, 4, 8, 9, 10, 0, time.UTC)
	s := FormatTimestamp(in)
	assert.Equal(t, "2021-07-04_08-09-10", s)

	out, err := ParseTimestamp(s)
	require.NoError(t, err)
	assert.True(t, in.Equal(out))
}

func TestFormatTimestamp_LexicalOrderIsChronological(t *testing.T) {
	earlier := FormatTimestamp(time.Date(2021, 9, 30, 23, 59, 59, 0, time.UTC))
	later := FormatTimestamp(time.Date(2021, 10, 1, 0, 0, 0, 0, time.UTC))
	assert.Less(t, earlier, later)
}

func TestNextTimestamp(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 500_000_000, time.UTC)

	t.Run("no history uses now", func(t *testing.T) {
		assert.Equal(t, "2024-05-01_12-00-00", NextTimestamp(now, ""))
	})

	t.Run("earlier history uses now", func(t *testing.T) {
		assert.Equal(t, "2024-05-01_12-00-00", NextTimestamp(now, "2024-05-01_11-59-59"))
	})

	t.Run("same second is pushed forward", func(t *testing.T) {
		assert.Equal(t, "2024-05-01_12-00-01", NextTimestamp(now, "2024-05-01_12-00-00"))
	})

	t.Run("clock behind latest is pushed past it", func(t *testing.T) {
		assert.Equal(t, "2024-05-01_12-00-06", NextTimestamp(now, "2024-05-01_12-00-05"))
	})

	t.Run("malformed latest is ignored", func(t *testing.T) {
		assert.Equal(t, "2024-05-01_12-00-00", NextTimestamp(now, "garbage"))
	})

	t.Run("non utc clock is normalized", func(t *testing.T) {
		loc := time.FixedZone("plus2", 2*60*60)
		local := time.Date(2024, 5, 1, 14, 0, 0, 0, loc)
		assert.Equal(t, "2024-05-01_12-00-00", NextTimestamp(local, ""))
	})
}
