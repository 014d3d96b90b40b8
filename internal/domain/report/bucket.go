package report

import "time"

// Granularity is the calendar period of a trend bucket
type Granularity string

const (
	GranularityDay   Granularity = "day"
	GranularityWeek  Granularity = "week"
	GranularityMonth Granularity = "month"
)

// IsValid reports whether g is a known granularity
func (g Granularity) IsValid() bool {
	switch g {
	case GranularityDay, GranularityWeek, GranularityMonth:
		return true
	default:
		return false
	}
}

// BucketStart returns the start of the bucket containing t.
// Weeks start on Monday; everything is computed in UTC.
func BucketStart(t time.Time, g Granularity) time.Time {
	d := Day(t)
	switch g {
	case GranularityWeek:
		offset := (int(d.Weekday()) + 6) % 7
		return d.AddDate(0, 0, -offset)
	case GranularityMonth:
		return time.Date(d.Year(), d.Month(), 1, 0, 0, 0, 0, time.UTC)
	default:
		return d
	}
}

// NextBucket returns the start of the bucket after the one starting at b
func NextBucket(b time.Time, g Granularity) time.Time {
	switch g {
	case GranularityWeek:
		return b.AddDate(0, 0, 7)
	case GranularityMonth:
		return b.AddDate(0, 1, 0)
	default:
		return b.AddDate(0, 0, 1)
	}
}

// Buckets lists every bucket start from the bucket holding start to the one holding end, ascending
func Buckets(start, end time.Time, g Granularity) []time.Time {
	last := BucketStart(end, g)
	var out []time.Time
	for b := BucketStart(start, g); !b.After(last); b = NextBucket(b, g) {
		out = append(out, b)
	}
	return out
}
