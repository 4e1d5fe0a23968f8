package util

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestIsValidGranularity(t *testing.T) {
	assert.True(t, IsValidGranularity(GranularityHour))
	assert.True(t, IsValidGranularity(GranularityDay))
	assert.True(t, IsValidGranularity(GranularityWeek))
	assert.False(t, IsValidGranularity("month"))
	assert.False(t, IsValidGranularity(""))
}

func TestBucketStartUnix(t *testing.T) {
	// 2024-01-03 13:45:10 UTC, a Wednesday.
	timestamp := time.Date(2024, 1, 3, 13, 45, 10, 0, time.UTC).Unix()

	hourStart := BucketStartUnix(timestamp, GranularityHour)
	assert.Equal(t, time.Date(2024, 1, 3, 13, 0, 0, 0, time.UTC).Unix(), hourStart)

	dayStart := BucketStartUnix(timestamp, GranularityDay)
	assert.Equal(t, time.Date(2024, 1, 3, 0, 0, 0, 0, time.UTC).Unix(), dayStart)

	weekStart := BucketStartUnix(timestamp, GranularityWeek)
	assert.True(t, weekStart <= dayStart)
	assert.Equal(t, int64(0), (dayStart-weekStart)%SecondsInDay)

	// Timestamps already on the boundary map to themselves.
	assert.Equal(t, dayStart, BucketStartUnix(dayStart, GranularityDay))
}
