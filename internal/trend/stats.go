package trend

import "math"

// Mean returns the arithmetic mean, 0 for an empty series.
func Mean(series []float64) float64 {
	if len(series) == 0 {
		return 0
	}
	var sum float64
	for _, v := range series {
		sum += v
	}
	return sum / float64(len(series))
}

// StdDev returns the population standard deviation.
func StdDev(series []float64) float64 {
	if len(series) == 0 {
		return 0
	}
	mean := Mean(series)
	var sum float64
	for _, v := range series {
		d := v - mean
		sum += d * d
	}
	return math.Sqrt(sum / float64(len(series)))
}

// CoefficientOfVariation returns stddev/mean, a scale-free volatility
// measure. 0 when the mean is 0.
func CoefficientOfVariation(series []float64) float64 {
	mean := Mean(series)
	if mean == 0 {
		return 0
	}
	return StdDev(series) / mean
}

// LinearRegression fits y against index 0..n-1 by ordinary least squares
// and returns the slope and R². Fewer than 2 points, or zero x-variance,
// degenerate to (0, 0).
func LinearRegression(series []float64) (slope, r2 float64) {
	n := float64(len(series))
	if len(series) < 2 {
		return 0, 0
	}

	var sumX, sumY, sumXY, sumXX float64
	for i, y := range series {
		x := float64(i)
		sumX += x
		sumY += y
		sumXY += x * y
		sumXX += x * x
	}

	denom := n*sumXX - sumX*sumX
	if denom == 0 {
		return 0, 0
	}
	slope = (n*sumXY - sumX*sumY) / denom
	intercept := (sumY - slope*sumX) / n

	meanY := sumY / n
	var ssTot, ssRes float64
	for i, y := range series {
		fit := intercept + slope*float64(i)
		ssRes += (y - fit) * (y - fit)
		ssTot += (y - meanY) * (y - meanY)
	}
	if ssTot == 0 {
		return slope, 0
	}
	r2 = 1 - ssRes/ssTot
	if r2 < 0 {
		r2 = 0
	}
	return slope, r2
}
