package timeline

import (
	"errors"
	"math"
	"math/rand"
	"testing"

	"lrcsync/pkg/lrc"
)

func mixed() *Timeline {
	return New([]lrc.Line{
		lrc.Timed(1.0, "one"),
		lrc.Plain("two"),
		lrc.Timed(3.0, "three"),
	})
}

func TestActiveLineIndex(t *testing.T) {
	tl := mixed()
	tests := []struct {
		name     string
		position float64
		want     int
		ok       bool
	}{
		{"BeforeFirst", 0.5, -1, false},
		{"AtFirst", 1.0, 0, true},
		{"UntimedLineIsTransparent", 2.0, 0, true},
		{"AtLastTimed", 3.0, 2, true},
		{"AfterLast", 100, 2, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := tl.ActiveLineIndex(tt.position)
			if got != tt.want || ok != tt.ok {
				t.Errorf("ActiveLineIndex(%v) = %d, %v; want %d, %v", tt.position, got, ok, tt.want, tt.ok)
			}
		})
	}
}

func TestActiveLineIndexEdgeCases(t *testing.T) {
	t.Run("Empty", func(t *testing.T) {
		if i, ok := New(nil).ActiveLineIndex(5); ok || i != -1 {
			t.Errorf("got %d, %v", i, ok)
		}
	})

	t.Run("NoTimestamps", func(t *testing.T) {
		tl := New([]lrc.Line{lrc.Plain("a"), lrc.Plain("b")})
		if i, ok := tl.ActiveLineIndex(5); ok || i != -1 {
			t.Errorf("got %d, %v", i, ok)
		}
	})

	t.Run("LeadingUntimedLines", func(t *testing.T) {
		tl := New([]lrc.Line{lrc.Plain("a"), lrc.Plain("b"), lrc.Timed(2, "c"), lrc.Plain("d")})
		if i, ok := tl.ActiveLineIndex(2.5); !ok || i != 2 {
			t.Errorf("got %d, %v; want 2", i, ok)
		}
	})

	t.Run("DuplicateTimestamps", func(t *testing.T) {
		tl := New([]lrc.Line{lrc.Timed(1, "a"), lrc.Timed(1, "b"), lrc.Timed(4, "c")})
		if i, ok := tl.ActiveLineIndex(1); !ok || i != 1 {
			t.Errorf("got %d, %v; want 1", i, ok)
		}
	})
}

func TestActiveLineIndexNonMonotonic(t *testing.T) {
	lines := []lrc.Line{
		lrc.Timed(5, "a"),
		lrc.Timed(10, "b"),
		lrc.Timed(2, "c"),
		lrc.Timed(8, "d"),
	}

	// position 6: a qualifies (5<=6<10), c qualifies (2<=6<8); d does not (8>6)
	latest := New(lines)
	if i, ok := latest.ActiveLineIndex(6); !ok || i != 2 {
		t.Errorf("latest policy: got %d, %v; want 2", i, ok)
	}

	first := New(lines, WithPolicy(PolicyFirst))
	if i, ok := first.ActiveLineIndex(6); !ok || i != 0 {
		t.Errorf("first policy: got %d, %v; want 0", i, ok)
	}

	// position 9: a qualifies (next is 10), c fails (8 <= 9), d qualifies (last timed line)
	if i, ok := latest.ActiveLineIndex(9); !ok || i != 3 {
		t.Errorf("latest policy at 9: got %d, %v; want 3", i, ok)
	}
	if i, ok := first.ActiveLineIndex(9); !ok || i != 0 {
		t.Errorf("first policy at 9: got %d, %v; want 0", i, ok)
	}
}

func TestSetTimestamp(t *testing.T) {
	tl := mixed()
	if err := tl.SetTimestamp(1, 2.346); err != nil {
		t.Fatalf("SetTimestamp: %v", err)
	}
	line, _ := tl.Line(1)
	if v, ok := line.Timestamp.Get(); !ok || v != 2.35 {
		t.Errorf("timestamp = %v, %v; want 2.35", v, ok)
	}

	if err := tl.SetTimestamp(0, -1); err != nil {
		t.Fatalf("SetTimestamp negative: %v", err)
	}
	line, _ = tl.Line(0)
	if v, _ := line.Timestamp.Get(); v != 0 {
		t.Errorf("negative timestamp stored as %v, want 0", v)
	}

	if err := tl.SetTimestamp(0, math.NaN()); !errors.Is(err, ErrInvalidTime) {
		t.Errorf("SetTimestamp(NaN) err = %v, want ErrInvalidTime", err)
	}
}

func TestOutOfRangeMutationLeavesTimelineUnchanged(t *testing.T) {
	tl := mixed()
	before := tl.String()

	err := tl.SetTimestamp(99, 1.0)
	if err == nil {
		t.Fatal("expected error")
	}
	if !errors.Is(err, ErrIndexOutOfRange) {
		t.Errorf("errors.Is(err, ErrIndexOutOfRange) = false for %v", err)
	}
	var ie *IndexError
	if !errors.As(err, &ie) || ie.Index != 99 || ie.Len != 3 {
		t.Errorf("unexpected error %#v", err)
	}

	if err := tl.ClearTimestamp(-1); !errors.Is(err, ErrIndexOutOfRange) {
		t.Errorf("ClearTimestamp(-1) = %v", err)
	}
	if _, err := tl.NudgeTimestamp(3, 1); !errors.Is(err, ErrIndexOutOfRange) {
		t.Errorf("NudgeTimestamp(3) = %v", err)
	}
	if _, err := tl.Line(3); !errors.Is(err, ErrIndexOutOfRange) {
		t.Errorf("Line(3) = %v", err)
	}

	if after := tl.String(); after != before {
		t.Errorf("timeline changed:\n%s\nvs\n%s", after, before)
	}
}

func TestClearTimestamp(t *testing.T) {
	tl := mixed()
	if err := tl.ClearTimestamp(2); err != nil {
		t.Fatal(err)
	}
	line, _ := tl.Line(2)
	if line.Timestamp.IsSet() {
		t.Error("timestamp should be cleared")
	}
	if tl.TimedCount() != 1 {
		t.Errorf("TimedCount = %d, want 1", tl.TimedCount())
	}
	if i, ok := tl.ActiveLineIndex(50); !ok || i != 0 {
		t.Errorf("after clear, active = %d, %v; want 0", i, ok)
	}
}

func TestNudgeTimestamp(t *testing.T) {
	t.Run("Floor", func(t *testing.T) {
		tl := New([]lrc.Line{lrc.Timed(0.5, "a")})
		ts, err := tl.NudgeTimestamp(0, -100)
		if err != nil {
			t.Fatal(err)
		}
		if v, ok := ts.Get(); !ok || v != 0 {
			t.Errorf("nudged = %v, %v; want 0", v, ok)
		}
	})

	t.Run("Rounding", func(t *testing.T) {
		tl := New([]lrc.Line{lrc.Timed(1.2, "a")})
		for i := 0; i < 3; i++ {
			if _, err := tl.NudgeTimestamp(0, 0.1); err != nil {
				t.Fatal(err)
			}
		}
		line, _ := tl.Line(0)
		if v, _ := line.Timestamp.Get(); v != 1.5 {
			t.Errorf("after three +0.1 nudges = %v, want 1.5", v)
		}
	})

	t.Run("UntimedIsNoop", func(t *testing.T) {
		tl := New([]lrc.Line{lrc.Plain("a")})
		ts, err := tl.NudgeTimestamp(0, 5)
		if err != nil {
			t.Fatal(err)
		}
		if ts.IsSet() {
			t.Error("nudge must not set a timestamp on an untimed line")
		}
		line, _ := tl.Line(0)
		if line.Timestamp.IsSet() {
			t.Error("line should stay untimed")
		}
	})
}

func TestNewCopiesInput(t *testing.T) {
	lines := []lrc.Line{lrc.Timed(1, "a")}
	tl := New(lines)
	lines[0].Text = "changed"
	if l, _ := tl.Line(0); l.Text != "a" {
		t.Error("New must copy its input")
	}
	out := tl.Lines()
	out[0].Text = "changed"
	if l, _ := tl.Line(0); l.Text != "a" {
		t.Error("Lines must return a copy")
	}
}

func TestFromTextAndString(t *testing.T) {
	tl := FromText("[ar:x]\n[00:01.00] a\nb")
	if tl.Len() != 2 || tl.IsEmpty() {
		t.Fatalf("Len = %d", tl.Len())
	}
	if got := tl.String(); got != "[00:01.00] a\nb" {
		t.Errorf("String() = %q", got)
	}
	if New(nil).String() != "" {
		t.Error("empty timeline must serialize to empty string")
	}
}

func TestParsePolicy(t *testing.T) {
	if p, err := ParsePolicy("first"); err != nil || p != PolicyFirst {
		t.Errorf("ParsePolicy(first) = %v, %v", p, err)
	}
	if p, err := ParsePolicy(""); err != nil || p != PolicyLatest {
		t.Errorf("ParsePolicy('') = %v, %v", p, err)
	}
	if _, err := ParsePolicy("middle"); err == nil {
		t.Error("expected error")
	}
}

func TestRejectsUnrepresentableTimes(t *testing.T) {
	tests := []struct {
		name  string
		apply func(tl *Timeline) error
	}{
		{"SetHuge", func(tl *Timeline) error { return tl.SetTimestamp(0, 1e300) }},
		{"SetAboveMax", func(tl *Timeline) error { return tl.SetTimestamp(0, lrc.MaxSeconds+1) }},
		{"SetNegInf", func(tl *Timeline) error { return tl.SetTimestamp(0, math.Inf(-1)) }},
		{"NudgePosInf", func(tl *Timeline) error { _, err := tl.NudgeTimestamp(0, math.Inf(1)); return err }},
		{"NudgeNaN", func(tl *Timeline) error { _, err := tl.NudgeTimestamp(0, math.NaN()); return err }},
		{"NudgeHuge", func(tl *Timeline) error { _, err := tl.NudgeTimestamp(0, 1e300); return err }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tl := mixed()
			before := tl.String()
			if err := tt.apply(tl); !errors.Is(err, ErrInvalidTime) {
				t.Fatalf("err = %v, want ErrInvalidTime", err)
			}
			if after := tl.String(); after != before {
				t.Errorf("timeline changed:\n%s\nvs\n%s", after, before)
			}
			line, _ := tl.Line(0)
			if v, ok := line.Timestamp.Get(); !ok || v != 1.0 {
				t.Errorf("line 0 timestamp = %v, %v; want 1", v, ok)
			}
		})
	}
}

func TestSetTimestampAtMax(t *testing.T) {
	tl := mixed()
	if err := tl.SetTimestamp(0, lrc.MaxSeconds); err != nil {
		t.Fatal(err)
	}
	line, _ := tl.Line(0)
	if v, _ := line.Timestamp.Get(); v != lrc.MaxSeconds {
		t.Errorf("stored %v, want %v", v, lrc.MaxSeconds)
	}
	if i, ok := tl.ActiveLineIndex(5); !ok || i != 2 {
		t.Errorf("active = %d, %v; want 2", i, ok)
	}
}

// activeByDefinition 逐行检查“下一个有时间戳的行”，用于对照
func activeByDefinition(lines []lrc.Line, position float64, policy Policy) int {
	active := -1
	for i, line := range lines {
		ti, ok := line.Timestamp.Get()
		if !ok || position < ti {
			continue
		}
		qualifies := true
		for _, later := range lines[i+1:] {
			if v, ok := later.Timestamp.Get(); ok {
				qualifies = v > position
				break
			}
		}
		if !qualifies {
			continue
		}
		active = i
		if policy == PolicyFirst {
			break
		}
	}
	return active
}

func TestActiveLineIndexMatchesDefinition(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	for round := 0; round < 200; round++ {
		n := rng.Intn(30)
		lines := make([]lrc.Line, n)
		for i := range lines {
			if rng.Intn(3) == 0 {
				lines[i] = lrc.Plain("x")
			} else {
				lines[i] = lrc.Timed(float64(rng.Intn(20)), "x")
			}
		}
		for _, policy := range []Policy{PolicyLatest, PolicyFirst} {
			tl := New(lines, WithPolicy(policy))
			for pos := -0.5; pos < 21; pos += 0.5 {
				want := activeByDefinition(lines, pos, policy)
				got, ok := tl.ActiveLineIndex(pos)
				if got != want || ok != (want >= 0) {
					t.Fatalf("round %d %s pos %v: got %d, %v; want %d\n%s", round, policy, pos, got, ok, want, tl)
				}
			}
		}
	}
}
