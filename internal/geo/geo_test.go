package geo

import (
	"math"
	"testing"
)

func TestHaversineZero(t *testing.T) {
	p := Point{Latitude: 0.3476, Longitude: 32.5825}
	if d := HaversineKm(p, p); d != 0 {
		t.Fatalf("expected 0, got %f", d)
	}
}

func TestHaversineKnownDistance(t *testing.T) {
	// Kampala city centre to Entebbe, roughly 33-34 km.
	kampala := Point{Latitude: 0.3476, Longitude: 32.5825}
	entebbe := Point{Latitude: 0.0512, Longitude: 32.4637}

	d := HaversineKm(kampala, entebbe)
	if d < 33 || d > 36 {
		t.Fatalf("unexpected distance: %f km", d)
	}
}

func TestEquirectangularSmallDisplacement(t *testing.T) {
	a := Point{Latitude: 0.3476, Longitude: 32.5825}
	// ~1.1m north
	b := Point{Latitude: a.Latitude + 1e-5, Longitude: a.Longitude}

	d := EquirectangularMeters(a, b)
	if math.Abs(d-1.11) > 0.05 {
		t.Fatalf("expected ~1.11m, got %f", d)
	}
}

func TestPointValid(t *testing.T) {
	tests := []struct {
		name string
		p    Point
		want bool
	}{
		{"origin", Point{0, 0}, true},
		{"bounds", Point{90, 180}, true},
		{"negative bounds", Point{-90, -180}, true},
		{"lat too high", Point{90.01, 0}, false},
		{"lat too low", Point{-91, 0}, false},
		{"lon too high", Point{0, 180.5}, false},
		{"lon too low", Point{0, -181}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.p.Valid(); got != tt.want {
				t.Fatalf("Valid(%v) = %v, want %v", tt.p, got, tt.want)
			}
		})
	}
}
