package testutil

import (
	"io"
	"log/slog"
)

// Trapezoid integrates ys sampled at xs with the trapezoidal rule.
// xs must be increasing and the same length as ys.
func Trapezoid(xs, ys []float64) float64 {
	sum := 0.0
	for i := 1; i < len(xs) && i < len(ys); i++ {
		sum += 0.5 * (ys[i] + ys[i-1]) * (xs[i] - xs[i-1])
	}
	return sum
}

// Linspace returns n evenly spaced points from lo to hi inclusive.
func Linspace(lo, hi float64, n int) []float64 {
	out := make([]float64, n)
	if n == 1 {
		out[0] = lo
		return out
	}
	step := (hi - lo) / float64(n-1)
	for i := range out {
		out[i] = lo + float64(i)*step
	}
	return out
}

// DiscardLogger returns a logger that drops everything.
func DiscardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
