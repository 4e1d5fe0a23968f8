package model

import (
	"testing"

	"github.com/stretchr/testify/assert"

	U "pitchmetrics/util"
)

func progressFixture(funnelID uint64, identityKey, sessionID string,
	maxStage int, stageCount int, startTimestamp, conversionSecs int64) []FunnelProgressRecord {

	records := make([]FunnelProgressRecord, 0, maxStage)
	for order := 1; order <= maxStage; order++ {
		record := FunnelProgressRecord{
			FunnelID:        funnelID,
			StageOrder:      order,
			IdentityKey:     identityKey,
			FunnelSessionID: sessionID,
			Timestamp:       startTimestamp,
		}
		if order == maxStage && maxStage == stageCount {
			record.IsCompleted = true
			record.SecondsSinceFunnelStart = conversionSecs
			record.Timestamp = startTimestamp + conversionSecs
		}
		records = append(records, record)
	}
	return records
}

func analyticsFixtureStages() []FunnelStage {
	return []FunnelStage{
		{StageID: "s1", Name: "View", EventType: EventTypePitchView},
		{StageID: "s2", Name: "NDA", EventType: EventTypeNDASigned},
		{StageID: "s3", Name: "Payment", EventType: EventTypePaymentCompleted},
	}
}

func TestBuildFunnelReportOverall(t *testing.T) {
	funnel := &FunnelDefinition{ID: 1, TimeWindowInSecs: 86400}
	stages := analyticsFixtureStages()
	baseTime := int64(1704067200)

	// 4 attempts: 2 complete, 1 reaches stage 2, 1 stops at stage 1.
	records := progressFixture(1, "user:u1", "a1", 3, 3, baseTime, 600)
	records = append(records, progressFixture(1, "user:u2", "a2", 3, 3, baseTime, 1200)...)
	records = append(records, progressFixture(1, "user:u3", "a3", 2, 3, baseTime, 0)...)
	records = append(records, progressFixture(1, "user:u4", "a4", 1, 3, baseTime, 0)...)

	report := BuildFunnelReport(funnel, stages, records, baseTime, baseTime+86400, "", "", nil)

	assert.Equal(t, uint64(1), report.FunnelID)
	assert.Equal(t, NoGroupValue, report.Overall.Segment)
	assert.Nil(t, report.Buckets)

	overall := report.Overall.Stages
	assert.Len(t, overall, 3)

	assert.Equal(t, 4, overall[0].Count)
	assert.Equal(t, float64(100), overall[0].ConversionRate)
	assert.Equal(t, 0, overall[0].DropOff)

	assert.Equal(t, 3, overall[1].Count)
	assert.Equal(t, float64(75), overall[1].ConversionRate)
	assert.Equal(t, 1, overall[1].DropOff)

	assert.Equal(t, 2, overall[2].Count)
	assert.InDelta(t, 66.666, overall[2].ConversionRate, 0.01)
	assert.Equal(t, 1, overall[2].DropOff)

	// Monotonically non-increasing counts, rates within [0, 100].
	for i := 1; i < len(overall); i++ {
		assert.True(t, overall[i].Count <= overall[i-1].Count)
		assert.True(t, overall[i].ConversionRate >= 0 && overall[i].ConversionRate <= 100)
	}

	timing := report.Overall.Timing
	assert.Equal(t, 2, timing.CompletedCount)
	assert.Equal(t, float64(900), timing.MeanInSecs)
	assert.True(t, timing.MedianInSecs <= timing.P90InSecs)
	assert.True(t, timing.P90InSecs <= timing.P95InSecs)
}

func TestBuildFunnelReportEmptyRange(t *testing.T) {
	// No matching events produce a zero-count result, not an error.
	funnel := &FunnelDefinition{ID: 1, TimeWindowInSecs: 86400}
	stages := analyticsFixtureStages()

	report := BuildFunnelReport(funnel, stages, nil, 100, 200, "", "", nil)

	assert.Len(t, report.Overall.Stages, 3)
	for _, stage := range report.Overall.Stages {
		assert.Equal(t, 0, stage.Count)
		assert.Equal(t, float64(0), stage.ConversionRate)
		assert.False(t, stage.ConversionRate != stage.ConversionRate) // not NaN
	}
	assert.Equal(t, 0, report.Overall.Timing.CompletedCount)
	assert.Equal(t, float64(0), report.Overall.Timing.MeanInSecs)
}

func TestBuildFunnelReportDayBuckets(t *testing.T) {
	funnel := &FunnelDefinition{ID: 1, TimeWindowInSecs: 86400}
	stages := analyticsFixtureStages()

	// 2024-01-01 00:00:00 UTC and the following day.
	day1 := int64(1704067200)
	day2 := day1 + 86400

	records := progressFixture(1, "user:u1", "a1", 3, 3, day1, 600)
	records = append(records, progressFixture(1, "user:u2", "a2", 1, 3, day2, 0)...)

	report := BuildFunnelReport(funnel, stages, records, day1, day2+86400,
		U.GranularityDay, "", nil)

	assert.Len(t, report.Buckets, 2)
	assert.True(t, report.Buckets[0].BucketStart < report.Buckets[1].BucketStart)
	assert.Equal(t, 1, report.Buckets[0].Stages[0].Count)
	assert.Equal(t, 1, report.Buckets[0].Timing.CompletedCount)
	assert.Equal(t, 0, report.Buckets[1].Timing.CompletedCount)

	// Overall is present alongside buckets.
	assert.Equal(t, 2, report.Overall.Stages[0].Count)
}

func TestBuildFunnelReportBucketsTruncatedAttempt(t *testing.T) {
	// An attempt whose stage-1 record falls before the analyzed range
	// buckets by its earliest in-range record, not by the epoch.
	funnel := &FunnelDefinition{ID: 1, TimeWindowInSecs: 7 * 86400}
	stages := analyticsFixtureStages()

	day2 := int64(1704067200 + 86400)
	records := []FunnelProgressRecord{
		{FunnelID: 1, StageOrder: 2, IdentityKey: "user:u1",
			FunnelSessionID: "a1", Timestamp: day2 + 3600},
		{FunnelID: 1, StageOrder: 3, IdentityKey: "user:u1",
			FunnelSessionID: "a1", IsCompleted: true,
			SecondsSinceFunnelStart: 90000, Timestamp: day2 + 7200},
	}

	report := BuildFunnelReport(funnel, stages, records, day2, day2+86400,
		U.GranularityDay, "", nil)

	assert.Len(t, report.Buckets, 1)
	assert.Equal(t, U.BucketStartUnix(day2+3600, U.GranularityDay),
		report.Buckets[0].BucketStart)
}

func TestBuildFunnelReportSegmented(t *testing.T) {
	funnel := &FunnelDefinition{ID: 1, TimeWindowInSecs: 86400}
	stages := analyticsFixtureStages()
	baseTime := int64(1704067200)

	records := progressFixture(1, "user:u1", "a1", 3, 3, baseTime, 600)
	records = append(records, progressFixture(1, "user:u2", "a2", 1, 3, baseTime, 0)...)
	records = append(records, progressFixture(1, "user:u3", "a3", 1, 3, baseTime, 0)...)

	segments := map[string]string{"user:u1": "mobile", "user:u2": "desktop"}
	segmentOf := func(identityKey string) string { return segments[identityKey] }

	report := BuildFunnelReport(funnel, stages, records, baseTime, baseTime+86400,
		"", SegmentByDevice, segmentOf)

	assert.Len(t, report.Buckets, 3)

	bySegment := make(map[string]FunnelBucketResult)
	for _, bucket := range report.Buckets {
		bySegment[bucket.Segment] = bucket
	}

	assert.Equal(t, 1, bySegment["mobile"].Stages[2].Count)
	assert.Equal(t, 1, bySegment["desktop"].Stages[0].Count)
	assert.Equal(t, 0, bySegment["desktop"].Stages[2].Count)

	// Identities without a segment value land under the placeholder.
	assert.Contains(t, bySegment, PropertyValueNone)
	assert.Equal(t, 1, bySegment[PropertyValueNone].Stages[0].Count)
}

func TestPercentileFromSorted(t *testing.T) {
	assert.Equal(t, float64(0), PercentileFromSorted(nil, 0.5))

	single := []float64{42}
	assert.Equal(t, float64(42), PercentileFromSorted(single, 0))
	assert.Equal(t, float64(42), PercentileFromSorted(single, 0.5))
	assert.Equal(t, float64(42), PercentileFromSorted(single, 1))

	values := []float64{10, 20, 30, 40, 50, 60, 70, 80, 90, 100}
	assert.Equal(t, float64(60), PercentileFromSorted(values, 0.5))
	assert.Equal(t, float64(100), PercentileFromSorted(values, 0.9))
	assert.Equal(t, float64(100), PercentileFromSorted(values, 1))

	// Percentiles are monotonic in p.
	previous := float64(0)
	for _, p := range []float64{0, 0.25, 0.5, 0.75, 0.9, 0.95, 1} {
		current := PercentileFromSorted(values, p)
		assert.True(t, current >= previous)
		previous = current
	}
}

func TestIsValidSegmentDimension(t *testing.T) {
	assert.True(t, IsValidSegmentDimension(SegmentByDevice))
	assert.True(t, IsValidSegmentDimension(SegmentByCountry))
	assert.True(t, IsValidSegmentDimension(SegmentByUserType))
	assert.False(t, IsValidSegmentDimension("plan"))
	assert.False(t, IsValidSegmentDimension(""))
}
