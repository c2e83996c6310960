package ranking

import (
	"math"
	"sort"
)

// BucketWidth is the composite-score span of one histogram bucket.
const BucketWidth = 5.0

// BucketFor returns the histogram bucket index a composite score falls into.
func BucketFor(composite float64) int {
	if composite < 0 {
		return 0
	}
	return int(math.Floor(composite / BucketWidth))
}

// BuildHistogram counts records into buckets, returning them sorted by bucket
// index. Empty buckets are omitted.
func BuildHistogram(records []Record) []HistogramBucket {
	counts := make(map[int]int)
	for _, r := range records {
		counts[BucketFor(r.CompositeScore)]++
	}
	out := make([]HistogramBucket, 0, len(counts))
	for bucket, count := range counts {
		out = append(out, HistogramBucket{Bucket: bucket, Count: count})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Bucket < out[j].Bucket })
	return out
}

// Quantile returns the q-th quantile (q in [0,1]) of the composite scores of
// records, using linear interpolation between closest ranks. Records need not
// be sorted. Returns 0 for an empty set.
func Quantile(records []Record, q float64) float64 {
	if len(records) == 0 {
		return 0
	}
	scores := make([]float64, len(records))
	for i, r := range records {
		scores[i] = r.CompositeScore
	}
	sort.Float64s(scores)

	pos := q * float64(len(scores)-1)
	lo := int(math.Floor(pos))
	hi := int(math.Ceil(pos))
	if lo == hi {
		return scores[lo]
	}
	frac := pos - float64(lo)
	return scores[lo] + frac*(scores[hi]-scores[lo])
}

// Summarize computes the global statistics of a record set.
// The timestamp is left to the caller.
func Summarize(records []Record) GlobalStats {
	stats := GlobalStats{TotalStudents: len(records)}
	if len(records) == 0 {
		return stats
	}
	var sum float64
	for _, r := range records {
		sum += r.CompositeScore
	}
	stats.MeanComposite = round2(sum / float64(len(records)))
	stats.P50 = round2(Quantile(records, 0.50))
	stats.P90 = round2(Quantile(records, 0.90))
	stats.P99 = round2(Quantile(records, 0.99))
	return stats
}

// EstimatePercentile estimates where a composite score sits in the population
// from the bucketed histogram alone: all students in lower buckets count as
// below, and the score's position inside its own bucket is linearly
// interpolated. The result is a percentage in [0,100]. An empty histogram
// yields 0.
//
// The estimate is what the read API serves between aggregation passes, when
// the exact per-record percentile may be stale.
func EstimatePercentile(buckets []HistogramBucket, composite float64) float64 {
	var total int
	for _, b := range buckets {
		total += b.Count
	}
	if total == 0 {
		return 0
	}

	target := BucketFor(composite)
	var below, within int
	for _, b := range buckets {
		switch {
		case b.Bucket < target:
			below += b.Count
		case b.Bucket == target:
			within = b.Count
		}
	}

	frac := (composite - float64(target)*BucketWidth) / BucketWidth
	denom := total - 1
	if denom < 1 {
		denom = 1
	}
	est := (float64(below) + frac*float64(within)) / float64(denom) * 100
	return round2(clampPct(est))
}

func clampPct(v float64) float64 {
	return math.Max(0, math.Min(100, v))
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
