package model

import (
	U "pitchmetrics/util"
)

// TrailingRetentionWindowInSecs - isRetained means active within this
// trailing window of the recomputation time.
const TrailingRetentionWindowInSecs = 30 * U.SecondsInDay

// activeInOffsetWindow reports whether at least one event falls within
// the 24-hour window starting at joinedAt + offset days.
func activeInOffsetWindow(events []Event, joinedAt int64, offsetInDays int) bool {
	windowStart := joinedAt + int64(offsetInDays)*U.SecondsInDay
	windowEnd := windowStart + U.SecondsInDay

	for i := range events {
		if events[i].Timestamp >= windowStart && events[i].Timestamp < windowEnd {
			return true
		}
	}
	return false
}

// ComputeMemberMetrics fills one member's derived metrics from the
// identity's events. Each member is independent of all others, so
// callers may run this concurrently across members.
//
// Lifetime value sums all completed monetary transactions without
// time bound. Activity counts cover events since joining. isRetained
// depends on the recomputation time and is never carried over from a
// previous run.
func ComputeMemberMetrics(member *CohortMembership, events []Event, nowTimestamp int64) {
	member.RetainedDay1 = activeInOffsetWindow(events, member.JoinedAt, 1)
	member.RetainedDay7 = activeInOffsetWindow(events, member.JoinedAt, 7)
	member.RetainedDay30 = activeInOffsetWindow(events, member.JoinedAt, 30)
	member.RetainedDay90 = activeInOffsetWindow(events, member.JoinedAt, 90)
	member.RetainedDay365 = activeInOffsetWindow(events, member.JoinedAt, 365)

	var lifetimeValue float64
	var lastActiveAt int64
	totalEvents := 0
	sessions := make(map[string]bool)

	for i := range events {
		event := &events[i]

		if IsMonetaryEvent(event) {
			lifetimeValue += event.Amount
		}

		if event.Timestamp > lastActiveAt {
			lastActiveAt = event.Timestamp
		}

		if event.Timestamp < member.JoinedAt {
			continue
		}

		totalEvents++
		if event.SessionID != "" {
			sessions[event.SessionID] = true
		}
	}

	member.LifetimeValue = lifetimeValue
	member.LastActiveAt = lastActiveAt
	member.TotalEvents = totalEvents
	member.TotalSessions = len(sessions)
	member.IsRetained = lastActiveAt > 0 &&
		nowTimestamp-lastActiveAt <= TrailingRetentionWindowInSecs
}

// RetentionFlagForOffset reads the member's flag for a fixed offset.
func RetentionFlagForOffset(member *CohortMembership, offsetInDays int) bool {
	switch offsetInDays {
	case 1:
		return member.RetainedDay1
	case 7:
		return member.RetainedDay7
	case 30:
		return member.RetainedDay30
	case 90:
		return member.RetainedDay90
	case 365:
		return member.RetainedDay365
	}
	return false
}
