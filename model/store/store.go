package store

import (
	"pitchmetrics/model"
	storePostgres "pitchmetrics/model/store/postgres"
)

// Store - Thin storage-access layer feeding the pure computation
// layer: ordered event fetches in, derived rows out.
type Store interface {
	CreateEvent(event *model.Event) (*model.Event, int)
	// Event reads return rows ordered ascending by timestamp, ties
	// broken by event id, so replays are reproducible.
	GetEventsInRange(from, to int64) ([]model.Event, int)
	GetEventsByTypesInRange(eventTypes []string, from, to int64) ([]model.Event, int)
	GetIdentityProfile(identityKey string) (*model.IdentityProfile, int)

	CreateFunnel(funnel *model.FunnelDefinition) (*model.FunnelDefinition, int)
	GetFunnel(id uint64) (*model.FunnelDefinition, int)
	UpdateFunnel(id uint64, fields map[string]interface{}) int
	ReplaceFunnelProgress(funnelID uint64, from, to int64, records []model.FunnelProgressRecord) int
	GetFunnelProgress(funnelID uint64, from, to int64) ([]model.FunnelProgressRecord, int)

	CreateCohort(cohort *model.Cohort) (*model.Cohort, int)
	GetCohort(id uint64) (*model.Cohort, int)
	UpdateCohortCounts(id uint64, totalUsers, activeUsers int) int
	ReplaceCohortMemberships(cohortID uint64, memberships []model.CohortMembership) int
	GetCohortMemberships(cohortID uint64) ([]model.CohortMembership, int)

	GetCacheEntry(cacheKey string) (*model.CacheEntry, int)
	UpsertCacheEntry(cacheKey string, data []byte, ttlInSecs int64) (*model.CacheEntry, int)
}

// GetStore - Should decide on which store implementation to use by
// configuration and return it.
func GetStore() Store {
	return &storePostgres.Postgres{}
}
