package optimizer

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cfldfs/lineup-optimizer/internal/types"
)

func testConfig() Config {
	return Config{
		SalaryCap:           70000,
		MaxPerTeam:          3,
		Requirements:        types.DefaultRosterRequirements(),
		UseCaptain:          true,
		NumLineups:          1,
		MinDifferentPlayers: 1,
		SolveTimeout:        time.Second,
	}
}

func lineupIDs(lineup types.LineupResult) map[string]bool {
	ids := make(map[string]bool, len(lineup.Players))
	for _, p := range lineup.Players {
		ids[p.ID] = true
	}
	return ids
}

func TestOptimizeLineups_SingleLineup(t *testing.T) {
	result, err := OptimizeLineups(context.Background(), testPool(), testConfig(), testLogger(), nil)
	require.NoError(t, err)
	require.Len(t, result.Lineups, 1)

	lineup := result.Lineups[0]
	assert.Len(t, lineup.Players, 7)
	assert.Equal(t, "qb1", lineup.CaptainID)
	assert.InDelta(t, 107.0, lineup.ProjectedPoints, 1e-9)
	assert.InDelta(t, 20.0, lineup.CaptainBonusPoints, 1e-9)
	assert.LessOrEqual(t, lineup.TotalSalary, lineup.SalaryCap)
	assert.Equal(t, lineup.SalaryCap-lineup.TotalSalary, lineup.RemainingCap)
}

func TestOptimizeLineups_WithoutCaptain(t *testing.T) {
	cfg := testConfig()
	cfg.UseCaptain = false

	result, err := OptimizeLineups(context.Background(), testPool(), cfg, testLogger(), nil)
	require.NoError(t, err)
	require.Len(t, result.Lineups, 1)

	lineup := result.Lineups[0]
	assert.Empty(t, lineup.CaptainID)
	assert.Zero(t, lineup.CaptainBonusPoints)
	assert.InDelta(t, 87.0, lineup.ProjectedPoints, 1e-9)
	for _, p := range lineup.Players {
		assert.False(t, p.IsCaptain)
	}
}

func TestOptimizeLineups_MultipleDistinctLineups(t *testing.T) {
	cfg := testConfig()
	cfg.NumLineups = 3

	result, err := OptimizeLineups(context.Background(), testPool(), cfg, testLogger(), nil)
	require.NoError(t, err)
	require.Len(t, result.Lineups, 3)

	for i := 1; i < len(result.Lineups); i++ {
		assert.LessOrEqual(t, result.Lineups[i].ProjectedPoints, result.Lineups[i-1].ProjectedPoints,
			"lineup %d scores above its predecessor", i)
	}

	seen := make([]map[string]bool, len(result.Lineups))
	for i, lineup := range result.Lineups {
		seen[i] = lineupIDs(lineup)
	}
	for i := 0; i < len(seen); i++ {
		for j := i + 1; j < len(seen); j++ {
			assert.NotEqual(t, seen[i], seen[j], "lineups %d and %d are identical", i, j)
		}
	}
}

func TestOptimizeLineups_MinDifferentPlayers(t *testing.T) {
	cfg := testConfig()
	cfg.NumLineups = 2
	cfg.MinDifferentPlayers = 3

	result, err := OptimizeLineups(context.Background(), testPool(), cfg, testLogger(), nil)
	require.NoError(t, err)
	require.Len(t, result.Lineups, 2)

	first := lineupIDs(result.Lineups[0])
	shared := 0
	for _, p := range result.Lineups[1].Players {
		if first[p.ID] {
			shared++
		}
	}
	assert.LessOrEqual(t, shared, 7-3)
}

func TestOptimizeLineups_StopsEarlyWhenExhausted(t *testing.T) {
	// An 11-entry pool cannot supply many lineups differing in 6 of 7
	// players; running dry after the first is not an error.
	cfg := testConfig()
	cfg.NumLineups = 10
	cfg.MinDifferentPlayers = 6

	result, err := OptimizeLineups(context.Background(), testPool(), cfg, testLogger(), nil)
	require.NoError(t, err)
	assert.NotEmpty(t, result.Lineups)
	assert.Less(t, len(result.Lineups), 10)
}

func TestOptimizeLineups_FirstLineupInfeasibleFails(t *testing.T) {
	cfg := testConfig()
	cfg.SalaryCap = 45000

	_, err := OptimizeLineups(context.Background(), testPool(), cfg, testLogger(), nil)
	assert.ErrorIs(t, err, ErrInfeasibleModel)
}

func TestOptimizeLineups_ForwardsProgress(t *testing.T) {
	cfg := testConfig()
	cfg.NumLineups = 2

	var mu sync.Mutex
	var updates []types.ProgressUpdate
	progress := func(update types.ProgressUpdate) {
		mu.Lock()
		defer mu.Unlock()
		updates = append(updates, update)
	}

	_, err := OptimizeLineups(context.Background(), testPool(), cfg, testLogger(), progress)
	require.NoError(t, err)

	mu.Lock()
	defer mu.Unlock()
	require.NotEmpty(t, updates)

	for _, update := range updates {
		assert.GreaterOrEqual(t, update.Progress, 0.0)
		assert.LessOrEqual(t, update.Progress, 1.0)
		assert.Equal(t, 2, update.TotalSteps)
	}
}

func TestOptimizeLineups_AggregatesStats(t *testing.T) {
	cfg := testConfig()
	cfg.NumLineups = 2

	result, err := OptimizeLineups(context.Background(), testPool(), cfg, testLogger(), nil)
	require.NoError(t, err)

	// Two captain searches: each runs a base solve plus nine candidates.
	assert.Equal(t, 20, result.Stats.SolverInvocations)
	assert.GreaterOrEqual(t, result.Stats.CandidatesEvaluated, 2)
}
