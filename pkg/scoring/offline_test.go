package scoring

import (
	"context"
	"testing"
	"time"

	"github.com/cachesim/cachesim/pkg/models"
)

func TestOfflineDeterministic(t *testing.T) {
	s := NewOffline("gpt-4o")
	rec := models.Record{Title: "Why is the sky blue?", BestAnswer: "Rayleigh scattering"}
	ctx := context.Background()

	a, err := s.Score(ctx, rec)
	if err != nil {
		t.Fatal(err)
	}
	b, err := s.Score(ctx, rec)
	if err != nil {
		t.Fatal(err)
	}

	if a != b {
		t.Errorf("expected identical judgments, got %+v and %+v", a, b)
	}
}

func TestOfflineScoreStaysInModelBand(t *testing.T) {
	titles := []string{
		"How do I bake sourdough?",
		"What is a goroutine?",
		"Why is the sky blue?",
		"Best way to learn chess openings",
	}

	for model, prof := range modelProfiles {
		s := NewOffline(model)
		for _, title := range titles {
			j, err := s.Score(context.Background(), models.Record{Title: title})
			if err != nil {
				t.Fatal(err)
			}
			if j.Score < prof.minScore || j.Score > prof.maxScore {
				t.Errorf("%s scored %q at %.1f, want within [%.0f, %.0f]", model, title, j.Score, prof.minScore, prof.maxScore)
			}
			if j.Quality != models.QualityForScore(j.Score) {
				t.Errorf("quality %q does not match score %.1f", j.Quality, j.Score)
			}
			if j.Model != model {
				t.Errorf("expected model %s, got %s", model, j.Model)
			}
		}
	}
}

func TestOfflineUnknownModelFallsBack(t *testing.T) {
	s := NewOffline("gpt-17-turbo")
	if s.Model() != defaultModel {
		t.Errorf("expected fallback to %s, got %s", defaultModel, s.Model())
	}
}

func TestOfflineElapsedWithinJitterBand(t *testing.T) {
	s := NewOffline("gpt-4o-mini")

	j, err := s.Score(context.Background(), models.Record{Title: "What is a monad?"})
	if err != nil {
		t.Fatal(err)
	}

	nominal := modelProfiles["gpt-4o-mini"].latency
	lo := time.Duration(float64(nominal) * 0.8)
	hi := time.Duration(float64(nominal) * 1.2)
	if j.Elapsed < lo || j.Elapsed > hi {
		t.Errorf("expected elapsed within [%v, %v], got %v", lo, hi, j.Elapsed)
	}
}

func TestOfflineAnswers(t *testing.T) {
	s := NewOffline("gpt-4o")

	j, _ := s.Score(context.Background(), models.Record{Title: "Why is the sky blue?", BestAnswer: "Rayleigh scattering"})
	if j.Answer != "Rayleigh scattering" {
		t.Errorf("expected corpus answer, got %q", j.Answer)
	}

	j, _ = s.Score(context.Background(), models.Record{Title: "How do I bake sourdough?"})
	if j.Answer == "" {
		t.Error("expected canned answer for record without one")
	}
}

func TestOfflineCancelledContext(t *testing.T) {
	s := NewOffline("gpt-4o")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := s.Score(ctx, models.Record{Title: "anything"}); err == nil {
		t.Error("expected error for cancelled context")
	}
}
