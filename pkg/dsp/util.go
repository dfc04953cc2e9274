package dsp

import "slices"

// Mean returns the arithmetic mean of x, or 0 for an empty slice.
func Mean(x []float64) float64 {
	if len(x) == 0 {
		return 0
	}
	var sum float64
	for _, v := range x {
		sum += v
	}
	return sum / float64(len(x))
}

// Median returns the median of x, averaging the two middle values for even
// lengths. x is not modified. An empty slice yields 0.
func Median(x []float64) float64 {
	n := len(x)
	if n == 0 {
		return 0
	}
	s := slices.Clone(x)
	slices.Sort(s)
	if n%2 == 1 {
		return s[n/2]
	}
	return (s[n/2-1] + s[n/2]) / 2
}

// MeanMatrix returns the mean over every cell of m.
func MeanMatrix(m Matrix) float64 {
	var sum float64
	var n int
	for _, row := range m {
		for _, v := range row {
			sum += v
		}
		n += len(row)
	}
	if n == 0 {
		return 0
	}
	return sum / float64(n)
}
