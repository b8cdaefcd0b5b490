package util

import (
	"math"
	"testing"
)

func TestRoundToTick(t *testing.T) {
	tests := []struct {
		name string
		x    float64
		tick float64
		want float64
	}{
		{"exact multiple", 10.30, 0.05, 10.30},
		{"rounds up", 10.327, 0.05, 10.35},
		{"rounds down", 10.31, 0.05, 10.30},
		{"penny tick", 1.2345, 0.01, 1.23},
		{"zero tick returns input", 1.2345, 0, 1.2345},
		{"negative tick returns input", 1.2345, -0.05, 1.2345},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := RoundToTick(tt.x, tt.tick)
			if math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("RoundToTick(%v, %v) = %v, want %v", tt.x, tt.tick, got, tt.want)
			}
		})
	}
}
