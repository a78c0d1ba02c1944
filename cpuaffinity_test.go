package falldetect

import (
	"testing"
)

func TestCPUCoreMask(t *testing.T) {

	tests := []struct {
		name  string
		cores []int
		want  uintptr
	}{
		{"first two cores", []int{0, 1}, 0b11},
		{"rk3588 fast cores", []int{4, 5, 6, 7}, RK3588FastCores},
		{"rk3568 all cores", []int{0, 1, 2, 3}, RK3568AllCores},
		{"single core", []int{2}, 0b100},
		{"no cores", nil, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := CPUCoreMask(tt.cores)

			if got != tt.want {
				t.Errorf("CPUCoreMask(%v) = %#b, want %#b", tt.cores, got, tt.want)
			}
		})
	}
}

func TestSetCPUAffinityByPlatformUnknown(t *testing.T) {

	err := SetCPUAffinityByPlatform("rk9999", FastCores)

	if err == nil {
		t.Error("expected error for unknown platform")
	}
}

func TestGetCPUAffinity(t *testing.T) {

	mask, err := GetCPUAffinity()

	if err != nil {
		t.Fatalf("GetCPUAffinity failed: %v", err)
	}

	if mask == 0 {
		t.Error("expected non-zero affinity mask")
	}
}
