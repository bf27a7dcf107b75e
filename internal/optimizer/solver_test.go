package optimizer

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cfldfs/lineup-optimizer/internal/types"
)

// testPool returns an 11-entry pool with a hand-verifiable optimum.
// The best unconstrained lineup is QB1, WR1, WR2, RB1, RB2, WR3 in the flex
// slot, and DEF1, for 87.0 points at a 58000 salary.
func testPool() []types.Player {
	return []types.Player{
		// Quarterbacks
		{ID: "qb1", Name: "Adams", Position: "QB", Team: "CGY", Salary: 12000, ProjectedPoints: 20.0},
		{ID: "qb2", Name: "Collaros", Position: "QB", Team: "WPG", Salary: 10000, ProjectedPoints: 15.0},
		// Wide receivers
		{ID: "wr1", Name: "Lewis", Position: "WR", Team: "TOR", Salary: 9000, ProjectedPoints: 14.0},
		{ID: "wr2", Name: "Begelton", Position: "WR", Team: "HAM", Salary: 8000, ProjectedPoints: 12.0},
		{ID: "wr3", Name: "Acklin", Position: "WR", Team: "OTT", Salary: 7000, ProjectedPoints: 10.0},
		// Running backs
		{ID: "rb1", Name: "Oliveira", Position: "RB", Team: "BC", Salary: 9000, ProjectedPoints: 13.0},
		{ID: "rb2", Name: "Ouellette", Position: "RB", Team: "SSK", Salary: 8000, ProjectedPoints: 11.0},
		{ID: "rb3", Name: "Harris", Position: "RB", Team: "MTL", Salary: 7000, ProjectedPoints: 9.0},
		// Tight end
		{ID: "te1", Name: "Hatcher", Position: "TE", Team: "EDM", Salary: 6000, ProjectedPoints: 8.0},
		// Defenses
		{ID: "def1", Name: "WPG Defense", Position: "DEF", Team: "WPG", Salary: 5000, ProjectedPoints: 7.0},
		{ID: "def2", Name: "TOR Defense", Position: "DEF", Team: "TOR", Salary: 4000, ProjectedPoints: 5.0},
	}
}

func testModel(t *testing.T, cfg ModelConfig) *Model {
	t.Helper()
	if cfg.SalaryCap == 0 {
		cfg.SalaryCap = 70000
	}
	if cfg.MaxPerTeam == 0 {
		cfg.MaxPerTeam = 3
	}
	model, err := NewModel(testPool(), cfg)
	require.NoError(t, err)
	return model
}

func testLogger() *logrus.Entry {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return logrus.NewEntry(log)
}

func selectedIDs(pool []types.Player, selected []int) []string {
	ids := make([]string, 0, len(selected))
	for _, idx := range selected {
		ids = append(ids, pool[idx].ID)
	}
	return ids
}

func TestSolve_FindsOptimalLineup(t *testing.T) {
	model := testModel(t, ModelConfig{})

	sol, err := model.Solve(context.Background(), model.BaseScores())
	require.NoError(t, err)
	require.Len(t, sol.Selected, 7)

	assert.InDelta(t, 87.0, sol.Objective, 1e-9)
	assert.ElementsMatch(t,
		[]string{"qb1", "wr1", "wr2", "wr3", "rb1", "rb2", "def1"},
		selectedIDs(model.Players(), sol.Selected))
}

func TestSolve_RespectsSalaryCap(t *testing.T) {
	// At 52000 the only affordable way to keep qb1 is the cheapest flex
	// group plus the cheapest defense, which beats every qb2 lineup.
	model := testModel(t, ModelConfig{SalaryCap: 52000})

	sol, err := model.Solve(context.Background(), model.BaseScores())
	require.NoError(t, err)

	assert.InDelta(t, 75.0, sol.Objective, 1e-9)
	assert.ElementsMatch(t,
		[]string{"qb1", "wr2", "wr3", "rb2", "rb3", "te1", "def2"},
		selectedIDs(model.Players(), sol.Selected))

	totalSalary := 0
	for _, idx := range sol.Selected {
		totalSalary += model.Players()[idx].Salary
	}
	assert.LessOrEqual(t, totalSalary, 52000)
}

func TestSolve_InfeasibleSalaryCap(t *testing.T) {
	// The cheapest possible roster costs 50000.
	model := testModel(t, ModelConfig{SalaryCap: 45000})

	_, err := model.Solve(context.Background(), model.BaseScores())
	assert.ErrorIs(t, err, ErrInfeasibleModel)
}

func TestSolve_RespectsTeamCap(t *testing.T) {
	// Put four of the optimal seven on the same team; the cheapest fix is
	// swapping def1 for def2, losing 2 points.
	pool := testPool()
	for i := range pool {
		switch pool[i].ID {
		case "qb1", "wr1", "rb1", "def1":
			pool[i].Team = "CGY"
		}
	}
	model, err := NewModel(pool, ModelConfig{SalaryCap: 70000, MaxPerTeam: 3})
	require.NoError(t, err)

	sol, err := model.Solve(context.Background(), model.BaseScores())
	require.NoError(t, err)

	assert.InDelta(t, 85.0, sol.Objective, 1e-9)

	perTeam := make(map[string]int)
	for _, idx := range sol.Selected {
		perTeam[pool[idx].Team]++
	}
	for team, count := range perTeam {
		assert.LessOrEqual(t, count, 3, "team %s over the limit", team)
	}
}

func TestSolve_EnforcesPositionalCounts(t *testing.T) {
	model := testModel(t, ModelConfig{})

	sol, err := model.Solve(context.Background(), model.BaseScores())
	require.NoError(t, err)

	counts := make(map[string]int)
	for _, idx := range sol.Selected {
		counts[model.Players()[idx].Position]++
	}
	assert.Equal(t, 1, counts[types.PositionQB])
	assert.Equal(t, 1, counts[types.PositionDEF])
	assert.GreaterOrEqual(t, counts[types.PositionWR], 2)
	assert.GreaterOrEqual(t, counts[types.PositionRB], 2)
	assert.Equal(t, 5, counts[types.PositionWR]+counts[types.PositionRB]+counts[types.PositionTE])
}

func TestSolve_Deterministic(t *testing.T) {
	model := testModel(t, ModelConfig{})

	first, err := model.Solve(context.Background(), model.BaseScores())
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		again, err := model.Solve(context.Background(), model.BaseScores())
		require.NoError(t, err)
		assert.Equal(t, first.Selected, again.Selected, "run %d diverged", i)
	}
}

func TestSolve_CancelledContext(t *testing.T) {
	model := testModel(t, ModelConfig{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := model.Solve(ctx, model.BaseScores())
	assert.Error(t, err)
}

func TestNewModel_RejectsUnknownPosition(t *testing.T) {
	pool := testPool()
	pool[0].Position = "kicker"

	_, err := NewModel(pool, ModelConfig{SalaryCap: 70000, MaxPerTeam: 3})
	assert.Error(t, err)
}

func TestNewModel_DetectsStructuralShortfall(t *testing.T) {
	// Drop every RB; two RB slots can never be filled.
	var pool []types.Player
	for _, p := range testPool() {
		if p.Position != types.PositionRB {
			pool = append(pool, p)
		}
	}

	_, err := NewModel(pool, ModelConfig{SalaryCap: 70000, MaxPerTeam: 3})
	assert.ErrorIs(t, err, ErrInfeasibleModel)
}

func TestAddExclusion_ForcesDifferentLineup(t *testing.T) {
	model := testModel(t, ModelConfig{})

	first, err := model.Solve(context.Background(), model.BaseScores())
	require.NoError(t, err)

	// At most 6 of the first lineup's 7 players may repeat.
	model.AddExclusion(first.Selected, 6)

	second, err := model.Solve(context.Background(), model.BaseScores())
	require.NoError(t, err)

	assert.NotEqual(t, first.Selected, second.Selected)
	assert.LessOrEqual(t, second.Objective, first.Objective)

	shared := 0
	firstSet := make(map[int]bool)
	for _, idx := range first.Selected {
		firstSet[idx] = true
	}
	for _, idx := range second.Selected {
		if firstSet[idx] {
			shared++
		}
	}
	assert.LessOrEqual(t, shared, 6)
}

func TestSolveBase_TimesOut(t *testing.T) {
	model := testModel(t, ModelConfig{})

	_, err := model.SolveBase(context.Background(), time.Nanosecond)
	assert.Error(t, err)
}

func BenchmarkSolveBase(b *testing.B) {
	model, err := NewModel(testPool(), ModelConfig{SalaryCap: 70000, MaxPerTeam: 3})
	if err != nil {
		b.Fatal(err)
	}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := model.SolveBase(context.Background(), time.Second); err != nil {
			b.Fatal(err)
		}
	}
}
