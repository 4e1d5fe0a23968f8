package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateCohortDefinition(t *testing.T) {
	assert.Nil(t, ValidateCohortDefinition("Jan signups",
		CohortTypeRegistration, 100, 200, nil))

	assert.Equal(t, ErrMissingCohortName,
		ValidateCohortDefinition("", CohortTypeRegistration, 100, 200, nil))
	assert.Equal(t, ErrMissingCohortType,
		ValidateCohortDefinition("Jan signups", "", 100, 200, nil))
	assert.Equal(t, ErrInvalidCohortPeriod,
		ValidateCohortDefinition("Jan signups", CohortTypeRegistration, 200, 100, nil))
	assert.Equal(t, ErrInvalidCohortPeriod,
		ValidateCohortDefinition("Jan signups", CohortTypeRegistration, 0, 200, nil))
	assert.NotNil(t, ValidateCohortDefinition("Jan signups", CohortTypeRegistration,
		100, 200, []PropertyFilter{{Property: "country", Operator: "like"}}))
}

func TestBuildCohortMembersWindowAndFilters(t *testing.T) {
	cohort := &Cohort{ID: 1, CohortType: CohortTypeRegistration,
		PeriodStart: 1000, PeriodEnd: 2000}
	filters := []PropertyFilter{
		{Property: "country", Operator: FilterOpEquals, Value: "GB"}}

	events := []Event{
		// Inside window, passes filter: member, joined at 1100.
		{ID: "e1", EventType: EventTypeRegistration, UserID: "u1", Country: "GB", Timestamp: 1100},
		// Before window: not a member.
		{ID: "e2", EventType: EventTypeRegistration, UserID: "u2", Country: "GB", Timestamp: 900},
		// Inside window, fails filter: not a member.
		{ID: "e3", EventType: EventTypeRegistration, UserID: "u3", Country: "US", Timestamp: 1200},
		// Window boundaries are inclusive.
		{ID: "e4", EventType: EventTypeRegistration, UserID: "u4", Country: "GB", Timestamp: 2000},
	}

	members := BuildCohortMembers(cohort, filters, events)
	assert.Len(t, members, 2)

	// Stable alphabetical order by identity key.
	assert.Equal(t, "user:u1", members[0].IdentityKey)
	assert.Equal(t, int64(1100), members[0].JoinedAt)
	assert.Equal(t, "user:u4", members[1].IdentityKey)
	assert.Equal(t, uint64(1), members[0].CohortID)
}

func TestBuildCohortMembersFirstQualifyingEventWins(t *testing.T) {
	cohort := &Cohort{ID: 1, CohortType: CohortTypeRegistration,
		PeriodStart: 1000, PeriodEnd: 2000}

	events := []Event{
		{ID: "e2", EventType: EventTypeRegistration, UserID: "u1", Timestamp: 1500},
		{ID: "e1", EventType: EventTypeRegistration, UserID: "u1", Timestamp: 1100},
	}

	members := BuildCohortMembers(cohort, nil, events)
	assert.Len(t, members, 1)
	assert.Equal(t, int64(1100), members[0].JoinedAt)
}

func TestBuildCohortMembersEmpty(t *testing.T) {
	cohort := &Cohort{ID: 1, CohortType: CohortTypeRegistration,
		PeriodStart: 1000, PeriodEnd: 2000}

	members := BuildCohortMembers(cohort, nil, nil)
	assert.NotNil(t, members)
	assert.Len(t, members, 0)
}

func TestCohortFiltersRoundTrip(t *testing.T) {
	filters := []PropertyFilter{
		{Property: "country", Operator: FilterOpEquals, Value: "GB"}}

	filtersJsonb, err := EncodeCohortFilters(filters)
	assert.Nil(t, err)

	cohort := &Cohort{Filters: *filtersJsonb}
	decoded, err := cohort.CohortFilters()
	assert.Nil(t, err)
	assert.Equal(t, filters, decoded)

	// Empty column decodes to no filters, not an error.
	emptyCohort := &Cohort{}
	decoded, err = emptyCohort.CohortFilters()
	assert.Nil(t, err)
	assert.Nil(t, decoded)
}
