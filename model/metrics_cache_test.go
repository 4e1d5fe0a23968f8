package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCacheEntryExpired(t *testing.T) {
	writtenAt := int64(1704067200)
	entry := &CacheEntry{
		CacheKey:  FunnelReportCacheKey(1, 100, 200, "day", ""),
		ExpiresAt: writtenAt + 30,
		Version:   1,
	}

	// Fresh immediately, stale once the TTL elapses.
	assert.False(t, entry.Expired(writtenAt))
	assert.False(t, entry.Expired(writtenAt+29))
	assert.True(t, entry.Expired(writtenAt+30))
	assert.True(t, entry.Expired(writtenAt+31))
}

func TestReportCacheKeys(t *testing.T) {
	assert.Equal(t, "funnel:report:1:100:200:day:device",
		FunnelReportCacheKey(1, 100, 200, "day", "device"))
	assert.Equal(t, "cohort:report:7:retention,revenue",
		CohortReportCacheKey(7, "retention,revenue"))

	// Distinct query scopes never share a key.
	assert.NotEqual(t,
		FunnelReportCacheKey(1, 100, 200, "day", ""),
		FunnelReportCacheKey(1, 100, 200, "hour", ""))
	assert.NotEqual(t,
		FunnelReportCacheKey(1, 100, 200, "", ""),
		FunnelReportCacheKey(2, 100, 200, "", ""))
}
