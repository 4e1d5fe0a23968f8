package model

import (
	"fmt"
	"sort"

	U "pitchmetrics/util"
)

// Metric families selectable on cohort analysis, so callers bound the
// cost of a request to what they render.
const (
	MetricFamilyRetention  = "retention"
	MetricFamilyRevenue    = "revenue"
	MetricFamilyEngagement = "engagement"
	MetricFamilyActivity   = "activity"
)

// WeeklyActivityMaxWeeks - Weekly histogram covers weeks 0..12 since
// each member's join date.
const WeeklyActivityMaxWeeks = 12

type CohortRetentionResult struct {
	Period        string  `json:"period"`
	OffsetInDays  int     `json:"offset_in_days"`
	RetainedUsers int     `json:"retained_users"`
	RetentionRate float64 `json:"retention_rate"`
}

type CohortRevenueResult struct {
	TotalLifetimeValue   float64 `json:"total_lifetime_value"`
	AverageLifetimeValue float64 `json:"average_lifetime_value"`
	PayingUsers          int     `json:"paying_users"`
	PayingConversionRate float64 `json:"paying_conversion_rate"`
}

type CohortEngagementResult struct {
	AverageEventsPerMember   float64 `json:"average_events_per_member"`
	AverageSessionsPerMember float64 `json:"average_sessions_per_member"`
	RetainedFraction         float64 `json:"retained_fraction"`
}

// WeeklyActivityBucket - Sparse: weeks with no active members are not
// emitted at all, they are not zero-filled.
type WeeklyActivityBucket struct {
	Week          int `json:"week"`
	ActiveMembers int `json:"active_members"`
	TotalEvents   int `json:"total_events"`
}

type CohortReport struct {
	CohortID    uint64                  `json:"cohort_id"`
	TotalUsers  int                     `json:"total_users"`
	ActiveUsers int                     `json:"active_users"`
	Retention   []CohortRetentionResult `json:"retention,omitempty"`
	Revenue     *CohortRevenueResult    `json:"revenue,omitempty"`
	Engagement  *CohortEngagementResult `json:"engagement,omitempty"`
	Activity    []WeeklyActivityBucket  `json:"activity,omitempty"`
}

func IsValidMetricFamily(family string) bool {
	switch family {
	case MetricFamilyRetention, MetricFamilyRevenue,
		MetricFamilyEngagement, MetricFamilyActivity:
		return true
	}
	return false
}

// BuildCohortRetention computes the retention rate per fixed offset.
// An empty member set yields zero rates, never an error.
func BuildCohortRetention(members []CohortMembership, offsetsInDays []int) []CohortRetentionResult {
	if len(offsetsInDays) == 0 {
		offsetsInDays = RetentionOffsetsInDays
	}

	results := make([]CohortRetentionResult, 0, len(offsetsInDays))
	for _, offset := range offsetsInDays {
		retained := 0
		for i := range members {
			if RetentionFlagForOffset(&members[i], offset) {
				retained++
			}
		}

		result := CohortRetentionResult{
			Period:        fmt.Sprintf("day%d", offset),
			OffsetInDays:  offset,
			RetainedUsers: retained,
		}
		if len(members) > 0 {
			result.RetentionRate = float64(retained) / float64(len(members)) * 100
		}
		results = append(results, result)
	}

	return results
}

func BuildCohortRevenue(members []CohortMembership) *CohortRevenueResult {
	result := &CohortRevenueResult{}

	for i := range members {
		result.TotalLifetimeValue += members[i].LifetimeValue
		if members[i].LifetimeValue > 0 {
			result.PayingUsers++
		}
	}

	if len(members) > 0 {
		result.AverageLifetimeValue = result.TotalLifetimeValue / float64(len(members))
		result.PayingConversionRate = float64(result.PayingUsers) / float64(len(members)) * 100
	}

	return result
}

func BuildCohortEngagement(members []CohortMembership) *CohortEngagementResult {
	result := &CohortEngagementResult{}
	if len(members) == 0 {
		return result
	}

	totalEvents := 0
	totalSessions := 0
	retained := 0
	for i := range members {
		totalEvents += members[i].TotalEvents
		totalSessions += members[i].TotalSessions
		if members[i].IsRetained {
			retained++
		}
	}

	memberCount := float64(len(members))
	result.AverageEventsPerMember = float64(totalEvents) / memberCount
	result.AverageSessionsPerMember = float64(totalSessions) / memberCount
	result.RetainedFraction = float64(retained) / memberCount

	return result
}

// BuildWeeklyActivity counts, for weeks 0..12 since each member's join
// date, the distinct members active in that week and the events they
// generated. eventsByIdentity carries each member's events keyed by
// identity.
func BuildWeeklyActivity(members []CohortMembership,
	eventsByIdentity map[string][]Event) []WeeklyActivityBucket {

	activeMembers := make(map[int]map[string]bool)
	eventCounts := make(map[int]int)

	for i := range members {
		member := &members[i]
		for _, event := range eventsByIdentity[member.IdentityKey] {
			if event.Timestamp < member.JoinedAt {
				continue
			}

			week := int((event.Timestamp - member.JoinedAt) / (7 * U.SecondsInDay))
			if week > WeeklyActivityMaxWeeks {
				continue
			}

			if activeMembers[week] == nil {
				activeMembers[week] = make(map[string]bool)
			}
			activeMembers[week][member.IdentityKey] = true
			eventCounts[week]++
		}
	}

	weeks := make([]int, 0, len(activeMembers))
	for week := range activeMembers {
		weeks = append(weeks, week)
	}
	sort.Ints(weeks)

	buckets := make([]WeeklyActivityBucket, 0, len(weeks))
	for _, week := range weeks {
		buckets = append(buckets, WeeklyActivityBucket{
			Week:          week,
			ActiveMembers: len(activeMembers[week]),
			TotalEvents:   eventCounts[week],
		})
	}
	return buckets
}
