package geometry

import (
	"math"
	"testing"
)

func TestDistNM(t *testing.T) {
	// SBGR (Guarulhos) to SBGL (Galeão): roughly 183 nm.
	d := DistNM(-23.4356, -46.4731, -22.8100, -43.2506)
	if math.Abs(d-183) > 5 {
		t.Errorf("SBGR-SBGL distance = %.1f nm, want ~183", d)
	}
	if DistNM(10, 20, 10, 20) != 0 {
		t.Error("distance to self should be zero")
	}
}

func TestIsPointInPolygon(t *testing.T) {
	square := [][2]float64{{0, 0}, {0, 10}, {10, 10}, {10, 0}}
	if !IsPointInPolygon(5, 5, square) {
		t.Error("centre of square not inside")
	}
	if IsPointInPolygon(15, 5, square) {
		t.Error("point above square reported inside")
	}
	if IsPointInPolygon(5, 5, square[:2]) {
		t.Error("degenerate polygon should contain nothing")
	}
}

func TestRoughAreaOrdering(t *testing.T) {
	small := [][2]float64{{0, 0}, {0, 1}, {1, 1}, {1, 0}}
	big := [][2]float64{{0, 0}, {0, 10}, {10, 10}, {10, 0}}
	if CalculateRoughArea(small) >= CalculateRoughArea(big) {
		t.Error("smaller polygon should have smaller rough area")
	}
}
