package domain

import (
	"testing"
	"time"
)

func TestResolutionStrategy_IsValid(t *testing.T) {
	t.Parallel()

	tests := []struct {
		strategy ResolutionStrategy
		want     bool
	}{
		{StrategyLocalWins, true},
		{StrategyServerWins, true},
		{StrategyLatestWins, true},
		{StrategyMerge, true},
		{StrategyManual, true},
		{ResolutionStrategy("NEWEST"), false},
		{ResolutionStrategy(""), false},
	}
	for _, tt := range tests {
		t.Run(string(tt.strategy), func(t *testing.T) {
			t.Parallel()
			if got := tt.strategy.IsValid(); got != tt.want {
				t.Errorf("ResolutionStrategy(%q).IsValid() = %v, want %v", tt.strategy, got, tt.want)
			}
		})
	}
}

func TestConflictRecord_IsResolved(t *testing.T) {
	t.Parallel()

	rec := ConflictRecord{
		LocalVersion:  Payload{"title": "a"},
		ServerVersion: Payload{"title": "b"},
	}
	if rec.IsResolved() {
		t.Error("record without ResolvedVersion should be open")
	}

	now := time.Now()
	strategy := StrategyMerge
	rec.Strategy = &strategy
	rec.ResolvedVersion = Payload{"title": "a"}
	rec.ResolvedAt = &now

	if !rec.IsResolved() {
		t.Error("record with ResolvedVersion should be resolved")
	}
}
