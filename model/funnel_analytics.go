package model

import (
	"math"
	"sort"

	U "pitchmetrics/util"
)

// Placeholder group values on aggregate results.
const (
	NoGroupValue      = "$no_group"
	PropertyValueNone = "$none"
)

// Segment dimensions supported on funnel analysis.
const (
	SegmentByDevice   = "device"
	SegmentByCountry  = "country"
	SegmentByUserType = "user_type"
)

type FunnelStageResult struct {
	StageOrder     int     `json:"stage_order"`
	Name           string  `json:"name"`
	Count          int     `json:"count"`
	ConversionRate float64 `json:"conversion_rate"`
	DropOff        int     `json:"drop_off"`
}

// ConversionTiming summarizes seconds-to-convert over completed
// attempts only.
type ConversionTiming struct {
	CompletedCount int     `json:"completed_count"`
	MeanInSecs     float64 `json:"mean_in_secs"`
	MedianInSecs   float64 `json:"median_in_secs"`
	P90InSecs      float64 `json:"p90_in_secs"`
	P95InSecs      float64 `json:"p95_in_secs"`
}

type FunnelBucketResult struct {
	BucketStart int64               `json:"bucket_start,omitempty"`
	Segment     string              `json:"segment,omitempty"`
	Stages      []FunnelStageResult `json:"stages"`
	Timing      ConversionTiming    `json:"timing"`
}

type FunnelReport struct {
	FunnelID    uint64               `json:"funnel_id"`
	From        int64                `json:"from"`
	To          int64                `json:"to"`
	Granularity string               `json:"granularity,omitempty"`
	SegmentBy   string               `json:"segment_by,omitempty"`
	Overall     FunnelBucketResult   `json:"overall"`
	Buckets     []FunnelBucketResult `json:"buckets,omitempty"`
}

func IsValidSegmentDimension(dimension string) bool {
	return dimension == SegmentByDevice || dimension == SegmentByCountry ||
		dimension == SegmentByUserType
}

// PercentileFromSorted - Lower-bound nearest-rank percentile: the
// value at index floor(p * count) of the ascending sample, p in [0,1].
// Callers needing interpolation must build it explicitly.
func PercentileFromSorted(sortedValues []float64, p float64) float64 {
	if len(sortedValues) == 0 {
		return 0
	}

	index := int(math.Floor(p * float64(len(sortedValues))))
	if index >= len(sortedValues) {
		index = len(sortedValues) - 1
	}
	return sortedValues[index]
}

// attemptSummary collapses one attempt's progression records.
type attemptSummary struct {
	identityKey       string
	startTimestamp    int64
	maxStage          int
	completed         bool
	conversionSeconds int64
}

func summarizeAttempts(records []FunnelProgressRecord) []*attemptSummary {
	byAttempt := make(map[string]*attemptSummary)
	order := make([]string, 0)

	for i := range records {
		record := &records[i]

		summary, exists := byAttempt[record.FunnelSessionID]
		if !exists {
			// Seeded with the earliest row seen, so an attempt whose
			// stage-1 record falls outside the analyzed range still
			// buckets by a real timestamp.
			summary = &attemptSummary{
				identityKey:    record.IdentityKey,
				startTimestamp: record.Timestamp,
			}
			byAttempt[record.FunnelSessionID] = summary
			order = append(order, record.FunnelSessionID)
		}

		if record.StageOrder == 1 {
			summary.startTimestamp = record.Timestamp
		}
		if record.StageOrder > summary.maxStage {
			summary.maxStage = record.StageOrder
		}
		if record.IsCompleted {
			summary.completed = true
			summary.conversionSeconds = record.SecondsSinceFunnelStart
		}
	}

	summaries := make([]*attemptSummary, 0, len(order))
	for _, sessionID := range order {
		summaries = append(summaries, byAttempt[sessionID])
	}
	return summaries
}

func conversionRate(previousCount, currentCount int) float64 {
	if previousCount == 0 {
		return 0
	}
	return float64(currentCount) / float64(previousCount) * 100
}

func aggregateAttempts(stages []FunnelStage, attempts []*attemptSummary) FunnelBucketResult {
	stageResults := make([]FunnelStageResult, 0, len(stages))

	for s := range stages {
		stageOrder := s + 1

		count := 0
		for _, attempt := range attempts {
			if attempt.maxStage >= stageOrder {
				count++
			}
		}

		result := FunnelStageResult{
			StageOrder: stageOrder,
			Name:       stages[s].Name,
			Count:      count,
		}

		if s == 0 {
			if count > 0 {
				result.ConversionRate = 100
			}
		} else {
			previousCount := stageResults[s-1].Count
			result.ConversionRate = conversionRate(previousCount, count)
			result.DropOff = previousCount - count
		}

		stageResults = append(stageResults, result)
	}

	conversionSamples := make([]float64, 0)
	for _, attempt := range attempts {
		if attempt.completed {
			conversionSamples = append(conversionSamples, float64(attempt.conversionSeconds))
		}
	}
	sort.Float64s(conversionSamples)

	timing := ConversionTiming{CompletedCount: len(conversionSamples)}
	if len(conversionSamples) > 0 {
		var sum float64
		for _, sample := range conversionSamples {
			sum += sample
		}
		timing.MeanInSecs = sum / float64(len(conversionSamples))
		timing.MedianInSecs = PercentileFromSorted(conversionSamples, 0.50)
		timing.P90InSecs = PercentileFromSorted(conversionSamples, 0.90)
		timing.P95InSecs = PercentileFromSorted(conversionSamples, 0.95)
	}

	return FunnelBucketResult{Stages: stageResults, Timing: timing}
}

type bucketKey struct {
	bucketStart int64
	segment     string
}

// BuildFunnelReport turns progression records into conversion rates,
// drop-off counts and time-to-convert distributions. The overall
// result is always present; bucketed/segmented rows are added when a
// granularity or segment dimension was requested. segmentOf is the
// side lookup from identity key to segment value and may be nil.
func BuildFunnelReport(funnel *FunnelDefinition, stages []FunnelStage,
	records []FunnelProgressRecord, from, to int64, granularity string,
	segmentBy string, segmentOf func(identityKey string) string) *FunnelReport {

	report := &FunnelReport{
		FunnelID:    funnel.ID,
		From:        from,
		To:          to,
		Granularity: granularity,
		SegmentBy:   segmentBy,
	}

	attempts := summarizeAttempts(records)
	report.Overall = aggregateAttempts(stages, attempts)
	report.Overall.Segment = NoGroupValue

	if granularity == "" && segmentOf == nil {
		return report
	}

	grouped := make(map[bucketKey][]*attemptSummary)
	for _, attempt := range attempts {
		key := bucketKey{segment: NoGroupValue}
		if granularity != "" {
			key.bucketStart = U.BucketStartUnix(attempt.startTimestamp, granularity)
		}
		if segmentOf != nil {
			key.segment = segmentOf(attempt.identityKey)
			if key.segment == "" {
				key.segment = PropertyValueNone
			}
		}
		grouped[key] = append(grouped[key], attempt)
	}

	keys := make([]bucketKey, 0, len(grouped))
	for key := range grouped {
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].bucketStart != keys[j].bucketStart {
			return keys[i].bucketStart < keys[j].bucketStart
		}
		return keys[i].segment < keys[j].segment
	})

	for _, key := range keys {
		bucketResult := aggregateAttempts(stages, grouped[key])
		bucketResult.BucketStart = key.bucketStart
		bucketResult.Segment = key.segment
		report.Buckets = append(report.Buckets, bucketResult)
	}

	return report
}
