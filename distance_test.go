package main

import (
	"math"
	"testing"
)

func TestDistanceKnownGeodesics(t *testing.T) {
	tests := []struct {
		name string
		a, b Location
		want float64
		tol  float64
	}{
		{"same point", Location{52.52, 13.405}, Location{52.52, 13.405}, 0, 0},
		{"one degree of longitude on the equator", Location{0, 0}, Location{0, 1}, 111319.49, 0.01},
		{"one degree of latitude from the equator", Location{0, 0}, Location{1, 0}, 110574.39, 1},
		{
			"Flinders Peak to Buninyong",
			Location{-(37 + 57.0/60 + 3.72030/3600), 144 + 25.0/60 + 29.52440/3600},
			Location{-(37 + 39.0/60 + 10.15610/3600), 143 + 55.0/60 + 35.38390/3600},
			54972.271, 0.01,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := distance(tt.a, tt.b)
			if math.Abs(got-tt.want) > tt.tol {
				t.Fatalf("distance(%v, %v) = %f, want %f ± %f", tt.a, tt.b, got, tt.want, tt.tol)
			}
		})
	}
}

func TestDistanceSymmetric(t *testing.T) {
	home := Location{Lat: 52.5200, Lon: 13.4050}
	scooter := Location{Lat: 52.5230, Lon: 13.4110}

	d1 := distance(home, scooter)
	d2 := distance(scooter, home)
	if math.Abs(d1-d2) > 1e-6 {
		t.Fatalf("distance not symmetric: %f vs %f", d1, d2)
	}
	if d1 < 400 || d1 > 600 {
		t.Fatalf("expected roughly 500m, got %f", d1)
	}
}

func TestDistanceNearlyAntipodal(t *testing.T) {
	got := distance(Location{0, 0}, Location{0.5, 179.7})
	if math.IsNaN(got) || got < 19_000_000 || got > 20_100_000 {
		t.Fatalf("unexpected near-antipodal distance %f", got)
	}
}

func TestRoundTo(t *testing.T) {
	tests := []struct {
		in     float64
		places int
		want   float64
	}{
		{52.123456, 5, 52.12346},
		{52.123455, 5, 52.12345},
		{13.000004, 5, 13.0},
		{-4.890315, 5, -4.89032},
		{79.5, 0, 80},
		{80.5, 0, 80},
		{80.1, 0, 80},
	}
	for _, tt := range tests {
		if got := roundTo(tt.in, tt.places); got != tt.want {
			t.Errorf("roundTo(%v, %d) = %v, want %v", tt.in, tt.places, got, tt.want)
		}
	}
}
