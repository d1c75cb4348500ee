package core

import "testing"

func TestBounds_Center(t *testing.T) {
	tests := []struct {
		name   string
		bounds Bounds
		wantX  int
		wantY  int
	}{
		{"from corners", BoundsFromCorners(100, 200, 300, 400), 200, 300},
		{"origin", Bounds{X: 0, Y: 0, Width: 10, Height: 20}, 5, 10},
		{"odd size rounds down", Bounds{X: 1, Y: 1, Width: 3, Height: 3}, 2, 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			x, y := tt.bounds.Center()
			if x != tt.wantX || y != tt.wantY {
				t.Errorf("Center() = (%d, %d), want (%d, %d)", x, y, tt.wantX, tt.wantY)
			}
		})
	}
}

func TestBounds_Contains(t *testing.T) {
	b := BoundsFromCorners(10, 10, 20, 20)

	if !b.Contains(10, 10) {
		t.Error("expected top-left corner to be inside")
	}
	if b.Contains(20, 20) {
		t.Error("expected bottom-right corner to be outside")
	}
	if b.Contains(5, 15) {
		t.Error("expected point left of bounds to be outside")
	}
}

func TestBounds_IsEmpty(t *testing.T) {
	if !(Bounds{}).IsEmpty() {
		t.Error("zero bounds should be empty")
	}
	if BoundsFromCorners(0, 0, 1, 1).IsEmpty() {
		t.Error("1x1 bounds should not be empty")
	}
}

func TestBounds_String(t *testing.T) {
	b := BoundsFromCorners(100, 200, 300, 400)
	if got := b.String(); got != "[100,200][300,400]" {
		t.Errorf("String() = %q, want %q", got, "[100,200][300,400]")
	}
}
