package model

import (
	"testing"

	"github.com/stretchr/testify/assert"

	U "pitchmetrics/util"
)

func TestComputeMemberMetricsRetentionFlags(t *testing.T) {
	joinedAt := int64(1704067200)
	member := &CohortMembership{IdentityKey: "user:u1", JoinedAt: joinedAt}

	// One event an hour into the day7 window, nothing near day30.
	events := []Event{
		{ID: "e1", EventType: EventTypeRegistration, UserID: "u1", Timestamp: joinedAt},
		{ID: "e2", EventType: EventTypePitchView, UserID: "u1",
			Timestamp: joinedAt + 7*U.SecondsInDay + 3600},
	}

	ComputeMemberMetrics(member, events, joinedAt+10*U.SecondsInDay)
	assert.True(t, member.RetainedDay7)
	assert.False(t, member.RetainedDay1)
	assert.False(t, member.RetainedDay30)

	// The same event at day8 no longer counts for day7. The window is
	// exactly 24 hours from the offset.
	member = &CohortMembership{IdentityKey: "user:u1", JoinedAt: joinedAt}
	events[1].Timestamp = joinedAt + 8*U.SecondsInDay
	ComputeMemberMetrics(member, events, joinedAt+10*U.SecondsInDay)
	assert.False(t, member.RetainedDay7)
}

func TestComputeMemberMetricsLifetimeValue(t *testing.T) {
	joinedAt := int64(1704067200)
	member := &CohortMembership{IdentityKey: "user:u1", JoinedAt: joinedAt}

	// Two payments of 50 and 75, no deal revenue: lifetime value 125.
	events := []Event{
		{ID: "e1", EventType: EventTypeRegistration, UserID: "u1", Timestamp: joinedAt},
		{ID: "e2", EventType: EventTypePaymentCompleted, UserID: "u1",
			Amount: 50, Timestamp: joinedAt + 100},
		{ID: "e3", EventType: EventTypePaymentCompleted, UserID: "u1",
			Amount: 75, Timestamp: joinedAt + 200},
		{ID: "e4", EventType: EventTypePitchView, UserID: "u1", Timestamp: joinedAt + 300},
	}

	ComputeMemberMetrics(member, events, joinedAt+400)
	assert.Equal(t, float64(125), member.LifetimeValue)

	// Non-monetary events never contribute, whatever their amount.
	member = &CohortMembership{IdentityKey: "user:u1", JoinedAt: joinedAt}
	events = append(events, Event{ID: "e5", EventType: EventTypePitchView,
		UserID: "u1", Amount: 999, Timestamp: joinedAt + 500})
	ComputeMemberMetrics(member, events, joinedAt+600)
	assert.Equal(t, float64(125), member.LifetimeValue)
}

func TestComputeMemberMetricsLifetimeValueUnboundedByCohortWindow(t *testing.T) {
	// An identity qualifies for an nda_signed cohort a day into the
	// window; a payment made a day before the window still counts
	// toward lifetime value.
	periodStart := int64(1704067200)
	cohort := &Cohort{ID: 1, CohortType: CohortTypeFirstNDA,
		PeriodStart: periodStart, PeriodEnd: periodStart + 30*U.SecondsInDay}

	qualifying := []Event{
		{ID: "e2", EventType: EventTypeNDASigned, UserID: "u1",
			Timestamp: periodStart + U.SecondsInDay},
	}
	members := BuildCohortMembers(cohort, nil, qualifying)
	assert.Len(t, members, 1)

	activity := []Event{
		{ID: "e1", EventType: EventTypePaymentCompleted, UserID: "u1",
			Amount: 50, Timestamp: periodStart - U.SecondsInDay},
		qualifying[0],
		{ID: "e3", EventType: EventTypePaymentCompleted, UserID: "u1",
			Amount: 75, Timestamp: periodStart + 2*U.SecondsInDay},
	}

	ComputeMemberMetrics(&members[0], activity, periodStart+3*U.SecondsInDay)
	assert.Equal(t, float64(125), members[0].LifetimeValue)
	// Pre-join activity stays out of the engagement counts.
	assert.Equal(t, 2, members[0].TotalEvents)
}

func TestComputeMemberMetricsActivityCounts(t *testing.T) {
	joinedAt := int64(1704067200)
	member := &CohortMembership{IdentityKey: "user:u1", JoinedAt: joinedAt}

	events := []Event{
		// Before joining: excluded from event/session counts.
		{ID: "e0", EventType: EventTypePitchView, UserID: "u1",
			SessionID: "s0", Timestamp: joinedAt - 100},
		{ID: "e1", EventType: EventTypeRegistration, UserID: "u1",
			SessionID: "s1", Timestamp: joinedAt},
		{ID: "e2", EventType: EventTypePitchView, UserID: "u1",
			SessionID: "s1", Timestamp: joinedAt + 100},
		{ID: "e3", EventType: EventTypePitchView, UserID: "u1",
			SessionID: "s2", Timestamp: joinedAt + 200},
	}

	ComputeMemberMetrics(member, events, joinedAt+300)
	assert.Equal(t, 3, member.TotalEvents)
	assert.Equal(t, 2, member.TotalSessions)
	assert.Equal(t, joinedAt+200, member.LastActiveAt)
}

func TestComputeMemberMetricsIsRetained(t *testing.T) {
	joinedAt := int64(1704067200)
	events := []Event{
		{ID: "e1", EventType: EventTypeRegistration, UserID: "u1", Timestamp: joinedAt},
	}

	// Last activity inside the trailing 30 days.
	member := &CohortMembership{IdentityKey: "user:u1", JoinedAt: joinedAt}
	ComputeMemberMetrics(member, events, joinedAt+29*U.SecondsInDay)
	assert.True(t, member.IsRetained)

	// Last activity beyond the trailing window.
	member = &CohortMembership{IdentityKey: "user:u1", JoinedAt: joinedAt}
	ComputeMemberMetrics(member, events, joinedAt+31*U.SecondsInDay)
	assert.False(t, member.IsRetained)

	// No activity at all.
	member = &CohortMembership{IdentityKey: "user:u1", JoinedAt: joinedAt}
	ComputeMemberMetrics(member, nil, joinedAt)
	assert.False(t, member.IsRetained)
}

func TestRetentionFlagForOffset(t *testing.T) {
	member := &CohortMembership{RetainedDay7: true, RetainedDay90: true}

	assert.False(t, RetentionFlagForOffset(member, 1))
	assert.True(t, RetentionFlagForOffset(member, 7))
	assert.False(t, RetentionFlagForOffset(member, 30))
	assert.True(t, RetentionFlagForOffset(member, 90))
	assert.False(t, RetentionFlagForOffset(member, 365))
	assert.False(t, RetentionFlagForOffset(member, 14))
}
