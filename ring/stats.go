package ring

import (
	"math"
)

// Stats summarizes a set of per-node values.
type Stats struct {
	StdDeviation float64 `json:"std_deviation"`
	Min          float64 `json:"min"`
	Max          float64 `json:"max"`
	Mean         float64 `json:"mean"`
	MinMaxRatio  float64 `json:"min_max_ratio"`
}

// NewStats computes population standard deviation, min, max, mean and the
// min/max ratio of values. An empty slice yields the zero Stats.
func NewStats(values []float64) Stats {
	if len(values) == 0 {
		return Stats{}
	}

	lo, hi := values[0], values[0]
	var sum float64
	for _, v := range values {
		sum += v
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}
	mean := sum / float64(len(values))

	var sq float64
	for _, v := range values {
		d := v - mean
		sq += d * d
	}

	ratio := 1.0
	if hi > 0 {
		ratio = lo / hi
	}
	return Stats{
		StdDeviation: math.Sqrt(sq / float64(len(values))),
		Min:          lo,
		Max:          hi,
		Mean:         mean,
		MinMaxRatio:  ratio,
	}
}

// LoadStats describes how a key sample spreads over the ring's nodes.
type LoadStats struct {
	Stats
	// Quality is in [0,1]; 1 means every node got the same number of keys.
	// It averages (1 - coefficient of variation) and the min/max ratio.
	Quality float64 `json:"distribution_quality"`
	// Keys maps node id to the number of sampled keys it owns.
	Keys map[string]int `json:"keys"`
}

// Distribution resolves every key and reports the per-node load.
// Nodes that own none of the keys are included with a count of zero.
func (r *Ring) Distribution(keys []string) LoadStats {
	counts := make(map[string]int)
	for _, id := range r.Nodes() {
		counts[id] = 0
	}
	for _, k := range keys {
		if id, err := r.GetNode(k); err == nil {
			counts[id]++
		}
	}

	values := make([]float64, 0, len(counts))
	for _, c := range counts {
		values = append(values, float64(c))
	}
	st := NewStats(values)

	var cv float64
	if st.Mean > 0 {
		cv = st.StdDeviation / st.Mean
	}
	return LoadStats{
		Stats:   st,
		Quality: (1.0-math.Min(1.0, cv))*0.5 + st.MinMaxRatio*0.5,
		Keys:    counts,
	}
}

// Moved returns the fraction of keys whose owner differs between two rings.
// Keys that cannot be resolved on either ring count as moved.
func Moved(before, after *Ring, keys []string) float64 {
	if len(keys) == 0 {
		return 0
	}
	moved := 0
	for _, k := range keys {
		a, errA := before.GetNode(k)
		b, errB := after.GetNode(k)
		if errA != nil || errB != nil || a != b {
			moved++
		}
	}
	return float64(moved) / float64(len(keys))
}
