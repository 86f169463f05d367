package lrc

import (
	"errors"
	"math"
	"testing"
)

func TestDecode(t *testing.T) {
	tests := []struct {
		in   string
		want float64
	}{
		{"00:00.00", 0},
		{"00:11.77", 11.77},
		{"01:05.50", 65.5},
		{"10:00.01", 600.01},
		{"120:30.25", 7230.25},
	}
	for _, tt := range tests {
		got, err := Decode(tt.in)
		if err != nil {
			t.Errorf("Decode(%q) unexpected error: %v", tt.in, err)
			continue
		}
		if got != tt.want {
			t.Errorf("Decode(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestDecodeRejectsMalformed(t *testing.T) {
	for _, in := range []string{"", "1:05.50", "01:5.50", "01:05.5", "01:05.500", "01:05", "aa:bb.cc", "[01:05.50]", " 01:05.50"} {
		_, err := Decode(in)
		if err == nil {
			t.Errorf("Decode(%q) expected error", in)
			continue
		}
		var fe *FormatError
		if !errors.As(err, &fe) {
			t.Errorf("Decode(%q) error %T, want *FormatError", in, err)
		} else if fe.Input != in {
			t.Errorf("FormatError.Input = %q, want %q", fe.Input, in)
		}
	}
}

func TestEncode(t *testing.T) {
	tests := []struct {
		in   float64
		want string
	}{
		{0, "00:00.00"},
		{11.77, "00:11.77"},
		{65.5, "01:05.50"},
		{59.999, "01:00.00"},
		{3.004, "00:03.00"},
		{3.006, "00:03.01"},
		{6000, "100:00.00"},
		{-4, "00:00.00"},
	}
	for _, tt := range tests {
		if got := Encode(tt.in); got != tt.want {
			t.Errorf("Encode(%v) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestTimecodeInverse(t *testing.T) {
	for h := 0; h < 20000; h += 7 {
		x := float64(h) / 100
		got, err := Decode(Encode(x))
		if err != nil {
			t.Fatalf("Decode(Encode(%v)) error: %v", x, err)
		}
		if got != x {
			t.Fatalf("Decode(Encode(%v)) = %v", x, got)
		}
	}

	for _, x := range []float64{0.001, 1.234, 12.345678, 61.999, 3599.996} {
		got, _ := Decode(Encode(x))
		if got != Round(x) {
			t.Errorf("Decode(Encode(%v)) = %v, want %v", x, got, Round(x))
		}
	}
}

func TestTimestampOption(t *testing.T) {
	if None().IsSet() {
		t.Error("None() should be unset")
	}
	zero := Some(0)
	if v, ok := zero.Get(); !ok || v != 0 {
		t.Errorf("Some(0).Get() = %v, %v", v, ok)
	}
	if zero == None() {
		t.Error("Some(0) must differ from None()")
	}
	if v, _ := Some(1.236).Get(); v != 1.24 {
		t.Errorf("Some(1.236) = %v, want 1.24", v)
	}
	if v, _ := Some(-3).Get(); v != 0 {
		t.Errorf("Some(-3) = %v, want 0", v)
	}
	if s := None().String(); s != "--:--" {
		t.Errorf("None().String() = %q", s)
	}
}

func TestDecodeMinutesRange(t *testing.T) {
	const max = "187649984472:59.99"
	v, err := Decode(max)
	if err != nil {
		t.Fatalf("Decode(%q): %v", max, err)
	}
	if v != MaxSeconds {
		t.Errorf("Decode(%q) = %v, want MaxSeconds %v", max, v, MaxSeconds)
	}
	if got := Encode(v); got != max {
		t.Errorf("Encode(Decode(%q)) = %q", max, got)
	}

	for _, in := range []string{"187649984473:00.00", "999999999999999999:00.00"} {
		_, err := Decode(in)
		var fe *FormatError
		if !errors.As(err, &fe) {
			t.Errorf("Decode(%q) err = %v, want *FormatError", in, err)
		}
	}
}

func TestEncodeClampsOutOfRange(t *testing.T) {
	const max = "187649984472:59.99"
	tests := []struct {
		name string
		in   float64
		want string
	}{
		{"PosInf", math.Inf(1), max},
		{"Huge", 1e300, max},
		{"Int64Overflow", 1e17, max},
		{"NegInf", math.Inf(-1), "00:00.00"},
		{"NaN", math.NaN(), "00:00.00"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Encode(tt.in); got != tt.want {
				t.Errorf("Encode(%v) = %q, want %q", tt.in, got, tt.want)
			}
			if r := Round(tt.in); r < 0 || r > MaxSeconds {
				t.Errorf("Round(%v) = %v, outside [0, MaxSeconds]", tt.in, r)
			}
		})
	}
}
