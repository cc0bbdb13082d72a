// internal/scoring/distribution.go
package scoring

import (
	"fmt"
	"math"
)

// Bucket is one histogram range of the officer dashboard.
type Bucket struct {
	Range string `json:"range"`
	From  int    `json:"from"`
	To    int    `json:"to"`
	Count int    `json:"count"`
}

type Distribution struct {
	Total        int      `json:"total"`
	AverageScore float64  `json:"averageScore"`
	Buckets      []Bucket `json:"buckets"`
}

// DistributionBuckets returns empty buckets of width 100 from 300 to 900.
// Each bucket is half-open except the last, which includes 900.
func DistributionBuckets() []Bucket {
	buckets := make([]Bucket, 0, 6)
	for from := MinScore; from < MaxScore; from += 100 {
		buckets = append(buckets, Bucket{
			Range: rangeLabel(from, from+100),
			From:  from,
			To:    from + 100,
		})
	}
	return buckets
}

// ScoreDistribution builds the dashboard histogram. Scores outside
// [300,900] are counted in the total and average but in no bucket.
func ScoreDistribution(scores []int) Distribution {
	d := Distribution{Buckets: DistributionBuckets()}
	if len(scores) == 0 {
		return d
	}

	sum := 0
	for _, s := range scores {
		sum += s
		for i := range d.Buckets {
			last := i == len(d.Buckets)-1
			if s >= d.Buckets[i].From && (s < d.Buckets[i].To || (last && s == d.Buckets[i].To)) {
				d.Buckets[i].Count++
				break
			}
		}
	}

	d.Total = len(scores)
	d.AverageScore = RoundTo2(float64(sum) / float64(len(scores)))
	return d
}

func RoundTo2(v float64) float64 {
	return math.RoundToEven(v*100) / 100
}

func rangeLabel(from, to int) string {
	return fmt.Sprintf("%d-%d", from, to)
}
