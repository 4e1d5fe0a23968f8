package model

import (
	"encoding/json"
	"errors"
	"sort"
	"time"

	"github.com/jinzhu/gorm/dialects/postgres"

	U "pitchmetrics/util"
)

// Cohort types name the event whose first occurrence inside the
// period window defines "joined".
const (
	CohortTypeRegistration = "registration"
	CohortTypeFirstPayment = "payment_completed"
	CohortTypeFirstNDA     = "nda_signed"
)

var (
	ErrMissingCohortName   = errors.New("cohort name is required")
	ErrMissingCohortType   = errors.New("cohort type is required")
	ErrInvalidCohortPeriod = errors.New("cohort period window is invalid")
)

// Cohort is an immutable population definition. The user counts are
// derived snapshots, refreshed on every rebuild.
type Cohort struct {
	ID         uint64 `gorm:"primary_key:true" json:"id"`
	Name       string `json:"name"`
	CohortType string `json:"cohort_type"`
	// unix epoch timestamps bounding the join-date window.
	PeriodStart int64 `json:"period_start"`
	PeriodEnd   int64 `json:"period_end"`
	// Optional []PropertyFilter as JsonB over the qualifying event.
	Filters     postgres.Jsonb `json:"filters,omitempty"`
	TotalUsers  int            `json:"total_users"`
	ActiveUsers int            `json:"active_users"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
}

// CohortMembership is one derived row per (cohort, identity),
// recomputed in place on refresh, never duplicated.
type CohortMembership struct {
	ID           string `gorm:"primary_key:true;type:uuid;default:uuid_generate_v4()" json:"id"`
	CohortID     uint64 `json:"cohort_id"`
	IdentityKey  string `json:"identity_key"`
	JoinedAt     int64  `json:"joined_at"`
	LastActiveAt int64  `json:"last_active_at"`
	// Active within the trailing 30 days of the last recomputation.
	IsRetained bool `json:"is_retained"`

	RetainedDay1   bool `json:"retained_day_1"`
	RetainedDay7   bool `json:"retained_day_7"`
	RetainedDay30  bool `json:"retained_day_30"`
	RetainedDay90  bool `json:"retained_day_90"`
	RetainedDay365 bool `json:"retained_day_365"`

	LifetimeValue float64   `json:"lifetime_value"`
	TotalEvents   int       `json:"total_events"`
	TotalSessions int       `json:"total_sessions"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// Fixed retention offsets in days.
var RetentionOffsetsInDays = []int{1, 7, 30, 90, 365}

func (cohort *Cohort) CohortFilters() ([]PropertyFilter, error) {
	if cohort.Filters.RawMessage == nil {
		return nil, nil
	}

	var filters []PropertyFilter
	if err := json.Unmarshal(cohort.Filters.RawMessage, &filters); err != nil {
		return nil, err
	}
	return filters, nil
}

func EncodeCohortFilters(filters []PropertyFilter) (*postgres.Jsonb, error) {
	return U.EncodeToPostgresJsonb(filters)
}

func ValidateCohortDefinition(name, cohortType string, periodStart, periodEnd int64,
	filters []PropertyFilter) error {

	if name == "" {
		return ErrMissingCohortName
	}

	if cohortType == "" {
		return ErrMissingCohortType
	}

	if periodStart <= 0 || periodEnd <= 0 || periodStart > periodEnd {
		return ErrInvalidCohortPeriod
	}

	return validateFilters(filters)
}

// BuildCohortMembers selects the identities whose first qualifying
// event falls inside [periodStart, periodEnd] and passes the cohort
// filters. joinedAt is the timestamp of that first qualifying event.
// Events must already be filtered to the cohort's qualifying type.
func BuildCohortMembers(cohort *Cohort, filters []PropertyFilter,
	qualifyingEvents []Event) []CohortMembership {

	byIdentity := GroupEventsByIdentity(qualifyingEvents)

	identityKeys := make([]string, 0, len(byIdentity))
	for identityKey := range byIdentity {
		identityKeys = append(identityKeys, identityKey)
	}
	// Deterministic membership order across rebuilds.
	sort.Strings(identityKeys)

	members := make([]CohortMembership, 0)
	for _, identityKey := range identityKeys {
		events := byIdentity[identityKey]

		var qualified *Event
		for i := range events {
			if events[i].Timestamp >= cohort.PeriodStart &&
				events[i].Timestamp <= cohort.PeriodEnd &&
				MatchesFilters(&events[i], filters) {
				qualified = &events[i]
				break
			}
		}
		if qualified == nil {
			continue
		}

		members = append(members, CohortMembership{
			CohortID:    cohort.ID,
			IdentityKey: identityKey,
			JoinedAt:    qualified.Timestamp,
		})
	}

	return members
}
