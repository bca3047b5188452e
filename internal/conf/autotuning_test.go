package conf

import (
	"runtime"
	"testing"
)

func TestSysCPUCount(t *testing.T) {
	got := sysCPUCount()
	want := runtime.NumCPU()
	if got != want {
		t.Errorf("sysCPUCount() = %d, want %d", got, want)
	}
	if got < 1 {
		t.Errorf("sysCPUCount() = %d, want >= 1", got)
	}
}

func TestClampInt(t *testing.T) {
	tests := []struct {
		v, lo, hi, want int
	}{
		{5, 1, 10, 5},     // within range
		{0, 1, 10, 1},     // below min
		{15, 1, 10, 10},   // above max
		{1, 1, 10, 1},     // at min
		{10, 1, 10, 10},   // at max
		{-5, -10, -1, -5}, // negative range
	}
	for _, tt := range tests {
		got := clampInt(tt.v, tt.lo, tt.hi)
		if got != tt.want {
			t.Errorf("clampInt(%d, %d, %d) = %d, want %d", tt.v, tt.lo, tt.hi, got, tt.want)
		}
	}
}
