package projector

import (
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/radieske/lucky-wheel-platform/internal/round-service/repo"
	"github.com/radieske/lucky-wheel-platform/internal/round-service/wheel"
)

func testProjector(t *testing.T) *Projector {
	t.Helper()
	w, err := wheel.New([]int64{2, 3, 5, 10, 15, 20, 45, 60},
		[]int64{500, 333, 200, 100, 66, 50, 22, 16})
	if err != nil {
		t.Fatal(err)
	}
	return &Projector{Log: zap.NewNop(), Wheel: w}
}

func TestBuild(t *testing.T) {
	p := testProjector(t)
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	round := repo.Round{
		Track:         "coins",
		Number:        42,
		Phase:         repo.PhaseBetting,
		PhaseDeadline: now.Add(13 * time.Second),
	}
	aggs := []repo.OptionAggregate{
		{Option: 0},
		{Option: 1},
		{Option: 2, TotalCents: 150, PlayerCount: 2, TopStakers: []repo.TopStaker{
			{DisplayName: "alice", AmountCents: 100},
			{DisplayName: "bob", AmountCents: 50},
		}},
	}

	snap := p.Build(round, aggs, 3, []int{4, 2, 2}, now)

	if snap.RoundNumber != 42 || snap.Phase != repo.PhaseBetting {
		t.Fatalf("snapshot header: %+v", snap)
	}
	if snap.TimeLeftMs != 13000 {
		t.Errorf("TimeLeftMs = %d, want 13000", snap.TimeLeftMs)
	}
	if snap.WinningOption != nil {
		t.Error("winningOption must be null before the draw")
	}
	if len(snap.Options) != 8 {
		t.Fatalf("options = %d, want 8 (one view per option, bets or not)", len(snap.Options))
	}
	if snap.Options[2].TotalCents != 150 || snap.Options[2].PlayerCount != 2 {
		t.Errorf("option 2 aggregate: %+v", snap.Options[2])
	}
	if snap.Options[2].Multiplier != 5 {
		t.Errorf("option 2 multiplier = %d, want 5", snap.Options[2].Multiplier)
	}
	if len(snap.Options[2].TopStakers) != 2 || snap.Options[2].TopStakers[0].DisplayName != "alice" {
		t.Errorf("top stakers: %+v", snap.Options[2].TopStakers)
	}
	if snap.Options[7].TotalCents != 0 || len(snap.Options[7].TopStakers) != 0 {
		t.Errorf("empty option must be zeroed: %+v", snap.Options[7])
	}
	if snap.TotalPlayers != 3 {
		t.Errorf("totalPlayers = %d, want 3", snap.TotalPlayers)
	}
	if len(snap.RecentOutcomes) != 3 {
		t.Errorf("recentOutcomes = %v", snap.RecentOutcomes)
	}
}

func TestBuildClampsTimeLeft(t *testing.T) {
	p := testProjector(t)
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	round := repo.Round{
		Track: "coins", Number: 1, Phase: repo.PhaseResult,
		PhaseDeadline: now.Add(-3 * time.Second),
	}

	snap := p.Build(round, nil, 0, nil, now)
	if snap.TimeLeftMs != 0 {
		t.Errorf("TimeLeftMs = %d, want clamped 0", snap.TimeLeftMs)
	}
	if snap.RecentOutcomes == nil {
		t.Error("recentOutcomes must serialize as [], not null")
	}
}

func TestBuildExposesWinnerAfterDraw(t *testing.T) {
	p := testProjector(t)
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	winner := 6
	round := repo.Round{
		Track: "coins", Number: 9, Phase: repo.PhaseSpinning,
		PhaseDeadline: now.Add(8 * time.Second),
		WinningOption: &winner,
	}

	snap := p.Build(round, nil, 0, []int{6}, now)
	if snap.WinningOption == nil || *snap.WinningOption != 6 {
		t.Fatalf("winningOption = %v, want 6", snap.WinningOption)
	}
}
