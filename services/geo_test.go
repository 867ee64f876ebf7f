package services

import (
	"math"
	"testing"
)

func TestFlatMiles(t *testing.T) {
	// One degree of latitude.
	if got := FlatMiles(36.0, -95.9, 37.0, -95.9); math.Abs(got-69.0) > 1e-6 {
		t.Fatalf("one degree = %v miles, want 69", got)
	}
	// 3-4-5 triangle in degrees.
	if got := FlatMiles(0, 0, 3, 4); math.Abs(got-345.0) > 1e-6 {
		t.Fatalf("3-4-5 degrees = %v miles, want 345", got)
	}
	if got := FlatMiles(10, 20, 10, 20); got != 0 {
		t.Fatalf("same point = %v miles, want 0", got)
	}
}

func TestHaversineMiles(t *testing.T) {
	if got := HaversineMiles(36.1, -95.9, 36.1, -95.9); got != 0 {
		t.Fatalf("same point = %v miles, want 0", got)
	}
	// One degree of latitude along a meridian is about 69.1 miles.
	got := HaversineMiles(36.0, -95.9, 37.0, -95.9)
	if got < 68.5 || got > 69.5 {
		t.Fatalf("one degree of latitude = %v miles, want ~69.1", got)
	}
}

func TestValidCoordinates(t *testing.T) {
	valid := [][2]float64{{0, 0}, {90, 180}, {-90, -180}, {36.1, -95.9}}
	for _, c := range valid {
		if !ValidCoordinates(c[0], c[1]) {
			t.Errorf("(%v, %v) should be valid", c[0], c[1])
		}
	}
	invalid := [][2]float64{{90.1, 0}, {-90.1, 0}, {0, 180.1}, {0, -180.1}}
	for _, c := range invalid {
		if ValidCoordinates(c[0], c[1]) {
			t.Errorf("(%v, %v) should be invalid", c[0], c[1])
		}
	}
}
