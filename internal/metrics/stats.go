package metrics

import "math"

// Add folds value into the running statistic using Welford's online algorithm.
func (rs *RunningStat) Add(value float64) {
	rs.Count++
	if rs.Count == 1 {
		rs.Min = value
		rs.Max = value
	} else {
		if value < rs.Min {
			rs.Min = value
		}
		if value > rs.Max {
			rs.Max = value
		}
	}

	delta := value - rs.Mean
	rs.Mean += delta / float64(rs.Count)
	delta2 := value - rs.Mean
	rs.M2 += delta * delta2
}

// Variance returns the population variance, or 0 with fewer than two samples.
func (rs RunningStat) Variance() float64 {
	if rs.Count < 2 {
		return 0
	}
	return rs.M2 / float64(rs.Count)
}

// StdDev returns the population standard deviation.
func (rs RunningStat) StdDev() float64 {
	return math.Sqrt(rs.Variance())
}
