package scheduler

import (
	"context"
	"errors"
	"testing"
)

func TestNewRejectsBadSpec(t *testing.T) {
	if _, err := New("not a cron spec", "test", func(context.Context) error { return nil }); err == nil {
		t.Fatalf("expected error for invalid cron spec")
	}
}

func TestRunOnceExecutesJob(t *testing.T) {
	ran := 0
	s, err := New("@hourly", "test", func(context.Context) error {
		ran++
		return nil
	})
	if err != nil {
		t.Fatalf("new: %v", err)
	}

	s.RunOnce()
	s.RunOnce()
	if ran != 2 {
		t.Fatalf("job ran %d times, want 2", ran)
	}
}

func TestRunOnceSurvivesJobError(t *testing.T) {
	s, err := New("@hourly", "test", func(context.Context) error {
		return errors.New("source unreachable")
	})
	if err != nil {
		t.Fatalf("new: %v", err)
	}

	// Must log and return, never propagate or panic.
	s.RunOnce()
}

func TestRunOnceRecoversPanic(t *testing.T) {
	s, err := New("@hourly", "test", func(context.Context) error {
		panic("boom")
	})
	if err != nil {
		t.Fatalf("new: %v", err)
	}

	s.RunOnce()
}
