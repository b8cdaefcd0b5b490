// Package util holds small price arithmetic helpers shared by the strategy.
package util

import "math"

// RoundToTick snaps a price to the nearest multiple of the exchange tick, so
// stop levels computed from percentages stay submittable. A non-positive tick
// leaves the price untouched.
func RoundToTick(x, tick float64) float64 {
	if tick <= 0 {
		return x
	}
	return math.Round(x/tick) * tick
}
