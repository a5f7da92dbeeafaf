package telemetry

import (
	"math"
	"testing"

	"drivesafe/internal/types"
)

func TestHaversineKm_KnownDistances(t *testing.T) {
	tests := []struct {
		name      string
		a, b      types.Point
		wantKm    float64
		tolerance float64
	}{
		{
			name:      "same point",
			a:         types.Point{Lat: 12.9716, Lng: 77.5946},
			b:         types.Point{Lat: 12.9716, Lng: 77.5946},
			wantKm:    0,
			tolerance: 0.001,
		},
		{
			name:      "MG Road to Koramangala (~5km)",
			a:         types.Point{Lat: 12.9756, Lng: 77.6067},
			b:         types.Point{Lat: 12.9352, Lng: 77.6245},
			wantKm:    4.9,
			tolerance: 0.5,
		},
		{
			name:      "New York to Los Angeles (~3944km)",
			a:         types.Point{Lat: 40.7128, Lng: -74.0060},
			b:         types.Point{Lat: 34.0522, Lng: -118.2437},
			wantKm:    3944,
			tolerance: 50,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := HaversineKm(tt.a, tt.b)
			if math.Abs(got-tt.wantKm) > tt.tolerance {
				t.Errorf("HaversineKm() = %f, want %f (±%f)", got, tt.wantKm, tt.tolerance)
			}
		})
	}
}

func TestHaversineKm_Symmetry(t *testing.T) {
	a := types.Point{Lat: 25.0, Lng: 121.0}
	b := types.Point{Lat: 26.0, Lng: 122.0}
	if d1, d2 := HaversineKm(a, b), HaversineKm(b, a); math.Abs(d1-d2) > 0.0001 {
		t.Errorf("haversine is not symmetric: %f vs %f", d1, d2)
	}
}

func TestLegKm(t *testing.T) {
	start := types.Point{Lat: 12.9716, Lng: 77.5946}
	near := types.Point{Lat: 12.9726, Lng: 77.5946} // ~111m north

	if got := LegKm(start, near); math.Abs(got-0.111) > 0.005 {
		t.Errorf("LegKm(start, near) = %f, want ~0.111", got)
	}
	if got := LegKm(types.Point{}, near); got != 0 {
		t.Errorf("leg from missing fix = %f, want 0", got)
	}
	if got := LegKm(start, types.Point{}); got != 0 {
		t.Errorf("leg to missing fix = %f, want 0", got)
	}
	far := types.Point{Lat: 13.5, Lng: 77.5946}
	if got := LegKm(start, far); got != 0 {
		t.Errorf("implausible jump = %f, want 0", got)
	}
}
