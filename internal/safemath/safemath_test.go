package safemath

import (
	"math"
	"testing"
)

func TestAdd_uint64(t *testing.T) {
	tests := []struct {
		name    string
		a, b    uint64
		want    uint64
		wantErr bool
	}{
		{"zero plus zero", 0, 0, 0, false},
		{"small values", 5_000_000, 10_000_000, 15_000_000, false},
		{"at boundary", math.MaxUint64 - 1, 1, math.MaxUint64, false},
		{"overflow max plus one", math.MaxUint64, 1, 0, true},
		{"overflow max plus max", math.MaxUint64, math.MaxUint64, 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := Add(tt.a, tt.b)
			if ok == tt.wantErr {
				t.Errorf("Add(%d, %d) ok = %v, wantErr %v", tt.a, tt.b, ok, tt.wantErr)
				return
			}
			if !tt.wantErr && got != tt.want {
				t.Errorf("Add(%d, %d) = %d, want %d", tt.a, tt.b, got, tt.want)
			}
		})
	}
}

func TestAdd_int64(t *testing.T) {
	tests := []struct {
		name    string
		a, b    int64
		want    int64
		wantErr bool
	}{
		{"positive plus negative", 10, -3, 7, false},
		{"negative plus negative", -100, -200, -300, false},
		{"positive at boundary", math.MaxInt64 - 1, 1, math.MaxInt64, false},
		{"negative at boundary", math.MinInt64 + 1, -1, math.MinInt64, false},
		{"overflow max plus one", math.MaxInt64, 1, 0, true},
		{"overflow min minus one", math.MinInt64, -1, 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := Add(tt.a, tt.b)
			if ok == tt.wantErr {
				t.Errorf("Add(%d, %d) ok = %v, wantErr %v", tt.a, tt.b, ok, tt.wantErr)
				return
			}
			if !tt.wantErr && got != tt.want {
				t.Errorf("Add(%d, %d) = %d, want %d", tt.a, tt.b, got, tt.want)
			}
		})
	}
}

func TestSub_uint64(t *testing.T) {
	tests := []struct {
		name    string
		a, b    uint64
		want    uint64
		wantErr bool
	}{
		{"equal values", 7, 7, 0, false},
		{"deposit minus refund", 10_000_000, 8_000_000, 2_000_000, false},
		{"underflow", 0, 1, 0, true},
		{"underflow large", 1, math.MaxUint64, 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := Sub(tt.a, tt.b)
			if ok == tt.wantErr {
				t.Errorf("Sub(%d, %d) ok = %v, wantErr %v", tt.a, tt.b, ok, tt.wantErr)
				return
			}
			if !tt.wantErr && got != tt.want {
				t.Errorf("Sub(%d, %d) = %d, want %d", tt.a, tt.b, got, tt.want)
			}
		})
	}
}

func TestSub_int64(t *testing.T) {
	tests := []struct {
		name    string
		a, b    int64
		want    int64
		wantErr bool
	}{
		{"positive result", 10, 3, 7, false},
		{"negative result", 3, 10, -7, false},
		{"minus negative", 3, -10, 13, false},
		{"overflow min minus one", math.MinInt64, 1, 0, true},
		{"overflow max minus negative", math.MaxInt64, -1, 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := Sub(tt.a, tt.b)
			if ok == tt.wantErr {
				t.Errorf("Sub(%d, %d) ok = %v, wantErr %v", tt.a, tt.b, ok, tt.wantErr)
				return
			}
			if !tt.wantErr && got != tt.want {
				t.Errorf("Sub(%d, %d) = %d, want %d", tt.a, tt.b, got, tt.want)
			}
		})
	}
}

func TestMul_uint64(t *testing.T) {
	tests := []struct {
		name    string
		a, b    uint64
		want    uint64
		wantErr bool
	}{
		{"zero times max", 0, math.MaxUint64, 0, false},
		{"one times max", 1, math.MaxUint64, math.MaxUint64, false},
		{"deposit times sessions", 10_000_000_000, 365, 3_650_000_000_000, false},
		{"sqrt max approx", 4294967295, 4294967295, 18446744065119617025, false},
		{"overflow max times two", math.MaxUint64, 2, 0, true},
		{"overflow sqrt max plus one", 4294967296, 4294967296, 0, true},
		{"high bit boundary safe", 1 << 63, 1, 1 << 63, false},
		{"high bit boundary overflow", 1 << 63, 2, 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := Mul(tt.a, tt.b)
			if ok == tt.wantErr {
				t.Errorf("Mul(%d, %d) ok = %v, wantErr %v", tt.a, tt.b, ok, tt.wantErr)
				return
			}
			if !tt.wantErr && got != tt.want {
				t.Errorf("Mul(%d, %d) = %d, want %d", tt.a, tt.b, got, tt.want)
			}
		})
	}
}

func TestMul_int64(t *testing.T) {
	tests := []struct {
		name    string
		a, b    int64
		want    int64
		wantErr bool
	}{
		{"mixed signs", 7, -8, -56, false},
		{"negative square", -2, -2, 4, false},
		{"neg one times max", -1, math.MaxInt64, -math.MaxInt64, false},
		{"min div 2 times 2", math.MinInt64 / 2, 2, math.MinInt64, false},
		{"neg one times min overflow", -1, math.MinInt64, 0, true},
		{"min times neg one overflow", math.MinInt64, -1, 0, true},
		{"overflow max times two", math.MaxInt64, 2, 0, true},
		{"overflow boundary negative", math.MinInt64/2 - 1, 2, 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := Mul(tt.a, tt.b)
			if ok == tt.wantErr {
				t.Errorf("Mul(%d, %d) ok = %v, wantErr %v", tt.a, tt.b, ok, tt.wantErr)
				return
			}
			if !tt.wantErr && got != tt.want {
				t.Errorf("Mul(%d, %d) = %d, want %d", tt.a, tt.b, got, tt.want)
			}
		})
	}
}

func TestMul_uint8(t *testing.T) {
	if got, ok := Mul[uint8](16, 15); !ok || got != 240 {
		t.Errorf("Mul(16, 15) = %d, %v", got, ok)
	}
	if _, ok := Mul[uint8](16, 16); ok {
		t.Error("Mul(16, 16) should overflow uint8")
	}
}

func TestMul_int8(t *testing.T) {
	tests := []struct {
		a, b int8
		want int8
		ok   bool
	}{
		{-1, 127, -127, true},
		{127, -1, -127, true},
		{-1, -128, 0, false},
		{-128, -1, 0, false},
		{-1, -1, 1, true},
		{-16, 8, -128, true},
		{-16, 9, 0, false},
	}
	for _, tt := range tests {
		got, ok := Mul(tt.a, tt.b)
		if ok != tt.ok || (ok && got != tt.want) {
			t.Errorf("Mul(%d, %d) = %d, %v, want %d, %v", tt.a, tt.b, got, ok, tt.want, tt.ok)
		}
	}
}

func TestMul_uint64_max(t *testing.T) {
	// The all-ones pattern is MaxUint64 for unsigned types, not -1.
	if got, ok := Mul[uint64](math.MaxUint64, 1); !ok || got != math.MaxUint64 {
		t.Errorf("Mul(MaxUint64, 1) = %d, %v", got, ok)
	}
	if _, ok := Mul[uint64](math.MaxUint64, 2); ok {
		t.Error("Mul(MaxUint64, 2) should overflow")
	}
}

func TestSaturatingSub_uint8(t *testing.T) {
	if got := SaturatingSub[uint8](3, 200); got != 0 {
		t.Errorf("SaturatingSub(3, 200) = %d, want 0", got)
	}
	if got := SaturatingSub[uint8](255, 1); got != 254 {
		t.Errorf("SaturatingSub(255, 1) = %d, want 254", got)
	}
}

func TestSaturatingSub(t *testing.T) {
	tests := []struct {
		name string
		a, b uint64
		want uint64
	}{
		{"vault above reserve", 1_000, 400, 600},
		{"vault equals reserve", 400, 400, 0},
		{"vault below reserve floors at zero", 100, 400, 0},
		{"max reserve", 5, math.MaxUint64, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := SaturatingSub(tt.a, tt.b); got != tt.want {
				t.Errorf("SaturatingSub(%d, %d) = %d, want %d", tt.a, tt.b, got, tt.want)
			}
		})
	}
}
