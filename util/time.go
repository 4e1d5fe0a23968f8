package util

import (
	"time"

	"github.com/jinzhu/now"
)

// Bucket granularities supported on aggregate queries.
const (
	GranularityHour = "hour"
	GranularityDay  = "day"
	GranularityWeek = "week"
)

const SecondsInDay int64 = 86400

func TimeNowUnix() int64 {
	return time.Now().UTC().Unix()
}

func IsValidGranularity(granularity string) bool {
	return granularity == GranularityHour || granularity == GranularityDay ||
		granularity == GranularityWeek
}

// BucketStartUnix - Returns the unix timestamp of the bucket boundary
// containing the given timestamp. Unknown granularity buckets by day.
func BucketStartUnix(timestamp int64, granularity string) int64 {
	t := time.Unix(timestamp, 0).UTC()

	switch granularity {
	case GranularityHour:
		return now.New(t).BeginningOfHour().Unix()
	case GranularityWeek:
		return now.New(t).BeginningOfWeek().Unix()
	default:
		return now.New(t).BeginningOfDay().Unix()
	}
}
