// Package scoring holds the weighted-mean formula shared by the evaluator
// and the digest composer, so the two can never disagree on ranking.
package scoring

import "math"

// Clamp bounds a final score to [1.0, 5.0].
func Clamp(score float64) float64 {
	if score < 1.0 {
		return 1.0
	}
	if score > 5.0 {
		return 5.0
	}
	return score
}

// ClampInt bounds a per-metric score to [1, 5].
func ClampInt(score int) int {
	if score < 1 {
		return 1
	}
	if score > 5 {
		return 5
	}
	return score
}

// WeightedMean computes the weighted mean of the per-metric scores, using
// only metrics with weight > 0. When the total positive weight is zero, it
// falls back to the arithmetic mean of all present scores. The result is
// clamped to [1.0, 5.0] and rounded to two decimals.
func WeightedMean(scores map[string]int, weights map[string]float64) float64 {
	var sum, total float64
	for key, score := range scores {
		w := weights[key]
		if w <= 0 {
			continue
		}
		sum += float64(score) * w
		total += w
	}

	if total <= 0 {
		if len(scores) == 0 {
			return 1.0
		}
		for _, score := range scores {
			sum += float64(score)
		}
		total = float64(len(scores))
	}

	return round2(Clamp(sum / total))
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
