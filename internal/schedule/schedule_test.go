package schedule

import (
	"context"
	"testing"

	"dailydsa/internal/prefs"
	logx "dailydsa/pkg/logx"
)

func newTestScheduler(t *testing.T) *Scheduler {
	t.Helper()
	s, err := New("UTC", func(context.Context, int64) {}, logx.Nop())
	if err != nil {
		t.Fatal(err)
	}
	return s
}

func TestNewRejectsBadTimezone(t *testing.T) {
	t.Parallel()
	if _, err := New("Mars/Olympus_Mons", func(context.Context, int64) {}, logx.Nop()); err == nil {
		t.Fatal("expected error for unknown timezone")
	}
}

func TestInstallOrReplaceKeepsOneJobPerUser(t *testing.T) {
	t.Parallel()
	s := newTestScheduler(t)

	if err := s.InstallOrReplace(1, prefs.Clock{Hour: 9, Minute: 0}); err != nil {
		t.Fatal(err)
	}
	if err := s.InstallOrReplace(1, prefs.Clock{Hour: 21, Minute: 30}); err != nil {
		t.Fatal(err)
	}
	if got := s.Jobs(); got != 1 {
		t.Fatalf("jobs = %d after replace, want 1", got)
	}

	if err := s.InstallOrReplace(2, prefs.Clock{Hour: 8, Minute: 15}); err != nil {
		t.Fatal(err)
	}
	if got := s.Jobs(); got != 2 {
		t.Fatalf("jobs = %d for two users, want 2", got)
	}
}

func TestRemove(t *testing.T) {
	t.Parallel()
	s := newTestScheduler(t)

	if s.Remove(1) {
		t.Fatal("removing an absent job reported true")
	}
	if err := s.InstallOrReplace(1, prefs.Clock{Hour: 9, Minute: 0}); err != nil {
		t.Fatal(err)
	}
	if !s.Remove(1) {
		t.Fatal("removing an installed job reported false")
	}
	if got := s.Jobs(); got != 0 {
		t.Fatalf("jobs = %d after remove, want 0", got)
	}
}

func TestNextFireHonorsReplacedTime(t *testing.T) {
	t.Parallel()
	s := newTestScheduler(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := s.InstallOrReplace(1, prefs.Clock{Hour: 6, Minute: 0}); err != nil {
		t.Fatal(err)
	}
	s.Start(ctx)
	defer s.Stop(context.Background())

	if err := s.InstallOrReplace(1, prefs.Clock{Hour: 23, Minute: 45}); err != nil {
		t.Fatal(err)
	}
	next, ok := s.NextFire(1)
	if !ok {
		t.Fatal("no next fire for installed job")
	}
	if next.Hour() != 23 || next.Minute() != 45 {
		t.Fatalf("next fire at %02d:%02d, want 23:45", next.Hour(), next.Minute())
	}
	if _, ok := s.NextFire(99); ok {
		t.Fatal("next fire reported for a user without a job")
	}
}
