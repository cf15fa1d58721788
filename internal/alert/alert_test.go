package alert

import (
	"context"
	"errors"
	"testing"
)

type fakeSender struct {
	sent []string
	fail bool
}

func (f *fakeSender) Send(_ context.Context, subject, _ string) error {
	if f.fail {
		return errors.New("smtp down")
	}
	f.sent = append(f.sent, subject)
	return nil
}

func TestGateFiresOnceAtThreshold(t *testing.T) {
	s := &fakeSender{}
	g := NewGate(s, 3)
	ctx := context.Background()

	g.Failure(ctx, "a", "x")
	g.Failure(ctx, "b", "x")
	if len(s.sent) != 0 {
		t.Fatalf("alert fired below threshold: %v", s.sent)
	}
	g.Failure(ctx, "c", "x")
	if len(s.sent) != 1 || s.sent[0] != "c" {
		t.Fatalf("expected one alert at threshold, got %v", s.sent)
	}
	// Más fallos sin éxito intermedio no re-alertan.
	g.Failure(ctx, "d", "x")
	g.Failure(ctx, "e", "x")
	if len(s.sent) != 1 {
		t.Fatalf("gate re-fired without recovery: %v", s.sent)
	}
}

func TestGateResetsOnSuccess(t *testing.T) {
	s := &fakeSender{}
	g := NewGate(s, 2)
	ctx := context.Background()

	g.Failure(ctx, "a", "x")
	g.Success()
	g.Failure(ctx, "b", "x")
	if len(s.sent) != 0 {
		t.Fatalf("streak not reset by success: %v", s.sent)
	}
	g.Failure(ctx, "c", "x")
	if len(s.sent) != 1 {
		t.Fatalf("expected alert after fresh streak, got %v", s.sent)
	}
	if g.Streak() != 2 {
		t.Fatalf("streak = %d, want 2", g.Streak())
	}
}

func TestGateRetriesAfterSendFailure(t *testing.T) {
	s := &fakeSender{fail: true}
	g := NewGate(s, 1)
	ctx := context.Background()

	g.Failure(ctx, "a", "x")
	s.fail = false
	g.Failure(ctx, "b", "x")
	if len(s.sent) != 1 || s.sent[0] != "b" {
		t.Fatalf("expected retry on next failure, got %v", s.sent)
	}
}
