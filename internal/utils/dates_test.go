package utils

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSameDay(t *testing.T) {
	tokyo, err := time.LoadLocation("Asia/Tokyo")
	require.NoError(t, err)

	a := time.Date(2025, 3, 10, 23, 30, 0, 0, time.UTC)
	b := time.Date(2025, 3, 10, 1, 0, 0, 0, time.UTC)

	assert.True(t, SameDay(a, b, time.UTC))
	// 23:30 UTC is already the 11th in Tokyo
	assert.False(t, SameDay(a, b, tokyo))
	assert.False(t, SameDay(a, a.Add(24*time.Hour), time.UTC))
}

func TestParseDate(t *testing.T) {
	d, err := ParseDate("2025-04-01", time.UTC)
	require.NoError(t, err)
	assert.Equal(t, 2025, d.Year())
	assert.Equal(t, time.April, d.Month())

	ts, err := ParseDate("2025-04-01T10:00:00Z", time.UTC)
	require.NoError(t, err)
	assert.Equal(t, 10, ts.Hour())

	_, err = ParseDate("tomorrow", time.UTC)
	assert.Error(t, err)
}

func TestParseDateUsesLocationForPlainDates(t *testing.T) {
	ny, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)

	d, err := ParseDate("2025-06-02", ny)
	require.NoError(t, err)
	assert.True(t, d.Equal(time.Date(2025, 6, 2, 0, 0, 0, 0, ny)))
	assert.True(t, SameDay(d, time.Date(2025, 6, 2, 10, 0, 0, 0, ny), ny))

	// timestamps keep their own offset
	ts, err := ParseDate("2025-06-02T23:00:00Z", ny)
	require.NoError(t, err)
	assert.True(t, ts.Equal(time.Date(2025, 6, 2, 23, 0, 0, 0, time.UTC)))
}
