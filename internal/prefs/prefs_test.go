package prefs

import (
	"errors"
	"fmt"
	"testing"
)

func TestParseClock(t *testing.T) {
	t.Parallel()
	cases := []struct {
		in      string
		want    Clock
		wantErr bool
	}{
		{in: "09:30", want: Clock{9, 30}},
		{in: "0:0", want: Clock{0, 0}},
		{in: "23:59", want: Clock{23, 59}},
		{in: " 7:05 ", want: Clock{7, 5}},
		{in: "24:00", wantErr: true},
		{in: "12:60", wantErr: true},
		{in: "-1:30", wantErr: true},
		{in: "12", wantErr: true},
		{in: "12:30:00", wantErr: true},
		{in: "ab:cd", wantErr: true},
		{in: "", wantErr: true},
	}
	for _, tc := range cases {
		got, err := ParseClock(tc.in)
		if tc.wantErr {
			if err == nil {
				t.Errorf("ParseClock(%q): expected error, got %v", tc.in, got)
			} else if !errors.Is(err, ErrBadTime) {
				t.Errorf("ParseClock(%q): error is not ErrBadTime: %v", tc.in, err)
			}
			continue
		}
		if err != nil {
			t.Errorf("ParseClock(%q): %v", tc.in, err)
			continue
		}
		if got != tc.want {
			t.Errorf("ParseClock(%q) = %v, want %v", tc.in, got, tc.want)
		}
	}
}

func TestNormalizeDifficulty(t *testing.T) {
	t.Parallel()
	for in, want := range map[string]string{
		"easy": "easy", "Easy": "easy", " HARD ": "hard",
		"medium": "medium", "DEFAULT": "default",
	} {
		got, err := NormalizeDifficulty(in)
		if err != nil || got != want {
			t.Errorf("NormalizeDifficulty(%q) = %q, %v; want %q", in, got, err, want)
		}
	}
	for _, in := range []string{"impossible", "", "ez", "hardcore"} {
		if _, err := NormalizeDifficulty(in); !errors.Is(err, ErrBadDifficulty) {
			t.Errorf("NormalizeDifficulty(%q): expected ErrBadDifficulty, got %v", in, err)
		}
	}
}

func TestStoreDefaults(t *testing.T) {
	t.Parallel()
	s := NewStore(Clock{9, 0})

	snap := s.GetOrCreate(7)
	if snap.Difficulty != DifficultyDefault {
		t.Errorf("new user difficulty = %q, want default", snap.Difficulty)
	}
	if snap.DeliveryTime != (Clock{9, 0}) {
		t.Errorf("new user time = %v, want 09:00", snap.DeliveryTime)
	}
	if len(snap.Excluded) != 0 {
		t.Errorf("new user exclusions = %d, want none", len(snap.Excluded))
	}
	if snap.Filter() != "" {
		t.Errorf("default difficulty must not filter, got %q", snap.Filter())
	}
}

func TestSetDefaultTimeOnlyAffectsNewUsers(t *testing.T) {
	t.Parallel()
	s := NewStore(Clock{9, 0})
	_ = s.GetOrCreate(1)

	s.SetDefaultTime(Clock{20, 15})
	if got := s.GetOrCreate(1).DeliveryTime; got != (Clock{9, 0}) {
		t.Errorf("existing user time changed to %v", got)
	}
	if got := s.GetOrCreate(2).DeliveryTime; got != (Clock{20, 15}) {
		t.Errorf("new user time = %v, want 20:15", got)
	}
}

func TestValidationFailureDoesNotMutate(t *testing.T) {
	t.Parallel()
	s := NewStore(Clock{9, 0})
	if _, err := s.SetDifficulty(1, "hard"); err != nil {
		t.Fatal(err)
	}
	if _, err := s.SetDeliveryTime(1, "18:45"); err != nil {
		t.Fatal(err)
	}

	if _, err := s.SetDifficulty(1, "brutal"); err == nil {
		t.Fatal("expected difficulty rejection")
	}
	if _, err := s.SetDeliveryTime(1, "25:99"); err == nil {
		t.Fatal("expected time rejection")
	}

	snap := s.GetOrCreate(1)
	if snap.Difficulty != "hard" || snap.DeliveryTime != (Clock{18, 45}) {
		t.Errorf("rejected input mutated state: %+v", snap)
	}
}

func TestRecencyWindowEvictsOldest(t *testing.T) {
	t.Parallel()
	s := NewStore(Clock{9, 0})

	for i := 0; i <= recentWindow; i++ {
		s.RecordDelivery(1, fmt.Sprintf("item%d", i))
	}

	ex := s.ExcludedIDs(1)
	if _, ok := ex["item0"]; ok {
		t.Error("oldest delivery still excluded after window overflow")
	}
	if _, ok := ex["item1"]; !ok {
		t.Error("second delivery fell out of the window too early")
	}
	if _, ok := ex[fmt.Sprintf("item%d", recentWindow)]; !ok {
		t.Error("latest delivery missing from exclusions")
	}
	if len(ex) != recentWindow {
		t.Errorf("excluded %d ids, want %d", len(ex), recentWindow)
	}
}

func TestMarkResolvedIsPermanent(t *testing.T) {
	t.Parallel()
	s := NewStore(Clock{9, 0})
	s.MarkResolved(1, "keep")

	// Flood the recency window; the completed set must be unaffected.
	for i := 0; i < recentWindow*2; i++ {
		s.RecordDelivery(1, fmt.Sprintf("r%d", i))
	}
	if _, ok := s.ExcludedIDs(1)["keep"]; !ok {
		t.Error("resolved item dropped from exclusions")
	}
}

func TestStoreIsolatesUsers(t *testing.T) {
	t.Parallel()
	s := NewStore(Clock{9, 0})
	if _, err := s.SetDifficulty(1, "easy"); err != nil {
		t.Fatal(err)
	}
	s.MarkResolved(1, "a")

	snap := s.GetOrCreate(2)
	if snap.Difficulty != DifficultyDefault || len(snap.Excluded) != 0 {
		t.Errorf("user 2 inherited user 1 state: %+v", snap)
	}
}
