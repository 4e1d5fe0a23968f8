package model

import (
	"fmt"
	"time"

	"github.com/jinzhu/gorm/dialects/postgres"
)

// Cache TTLs in seconds. Highly volatile counts get tens of seconds,
// slower-moving distributions get minutes. Staleness is bounded purely
// by TTL; there is no invalidation on writes to the event log.
const (
	CacheTTLTrendingInSecs     int64 = 30
	CacheTTLFunnelReportInSecs int64 = 300
	CacheTTLCohortReportInSecs int64 = 600
)

// CacheEntry memoizes one expensive aggregate for dashboards. Version
// increments on every refresh so concurrent writers converge instead
// of losing an update. The cache is never a system of record.
type CacheEntry struct {
	CacheKey    string         `gorm:"primary_key:true" json:"cache_key"`
	Data        postgres.Jsonb `json:"data"`
	ExpiresAt   int64          `json:"expires_at"`
	LastUpdated time.Time      `json:"last_updated"`
	Version     int64          `json:"version"`
}

func (entry *CacheEntry) Expired(nowTimestamp int64) bool {
	return nowTimestamp >= entry.ExpiresAt
}

func FunnelReportCacheKey(funnelID uint64, from, to int64, granularity, segmentBy string) string {
	return fmt.Sprintf("funnel:report:%d:%d:%d:%s:%s", funnelID, from, to, granularity, segmentBy)
}

func CohortReportCacheKey(cohortID uint64, families string) string {
	return fmt.Sprintf("cohort:report:%d:%s", cohortID, families)
}
