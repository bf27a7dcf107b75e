package optimizer

import (
	"context"
	"errors"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/cfldfs/lineup-optimizer/internal/types"
)

// Config carries the per-request optimization settings after defaults have
// been applied.
type Config struct {
	SalaryCap           int
	MaxPerTeam          int
	Requirements        types.RosterRequirements
	UseCaptain          bool
	NumLineups          int
	MinDifferentPlayers int
	SolveTimeout        time.Duration
}

// Result is the outcome of one optimization request.
type Result struct {
	Lineups []types.LineupResult
	Stats   SearchStats
}

// OptimizeLineups runs the full pipeline for an already-normalized pool:
// build the model, then produce up to NumLineups lineups, each via a full
// captain search. After each lineup an exclusion constraint forces the next
// solution to differ in at least MinDifferentPlayers players, so the default
// of 1 forbids repeating an exact seven-player set. The loop stops early when
// the constrained model runs dry; having fewer distinct lineups than
// requested is not an error, but a first-lineup failure is.
func OptimizeLineups(ctx context.Context, pool []types.Player, cfg Config, log *logrus.Entry, progress func(update types.ProgressUpdate)) (*Result, error) {
	model, err := NewModel(pool, ModelConfig{
		SalaryCap:    cfg.SalaryCap,
		MaxPerTeam:   cfg.MaxPerTeam,
		Requirements: cfg.Requirements,
	})
	if err != nil {
		return nil, err
	}

	result := &Result{}
	maxShared := model.RosterSize() - cfg.MinDifferentPlayers
	if maxShared < 0 {
		maxShared = 0
	}

	for k := 0; k < cfg.NumLineups; k++ {
		candidate, stats, err := solveNextLineup(ctx, model, cfg, log, lineupProgress(progress, k, cfg.NumLineups))
		result.Stats.SolverInvocations += stats.SolverInvocations
		result.Stats.CandidatesEvaluated += stats.CandidatesEvaluated
		result.Stats.CandidatesSkipped += stats.CandidatesSkipped

		if err != nil {
			if k > 0 && (errors.Is(err, ErrInfeasibleModel) || errors.Is(err, ErrNoCaptainLineup)) {
				log.WithFields(logrus.Fields{
					"lineups_found":     k,
					"lineups_requested": cfg.NumLineups,
				}).Info("Diversity constraints exhausted the pool, returning lineups found so far")
				break
			}
			return nil, err
		}

		lineup, err := FormatLineup(pool, candidate, cfg.SalaryCap, model.RosterSize())
		if err != nil {
			return nil, err
		}
		result.Lineups = append(result.Lineups, *lineup)
		model.AddExclusion(candidate.Selected, maxShared)
	}

	return result, nil
}

func solveNextLineup(ctx context.Context, model *Model, cfg Config, log *logrus.Entry, progress func(done, total int)) (*LineupCandidate, SearchStats, error) {
	if cfg.UseCaptain {
		return model.SearchCaptain(ctx, cfg.SolveTimeout, log, progress)
	}

	candidate, err := model.SolveBase(ctx, cfg.SolveTimeout)
	stats := SearchStats{SolverInvocations: 1}
	if err != nil {
		return nil, stats, err
	}
	return candidate, stats, nil
}

// lineupProgress scales per-candidate progress of lineup k into the overall
// request range and forwards it to the caller's sink.
func lineupProgress(progress func(update types.ProgressUpdate), lineup, totalLineups int) func(done, total int) {
	if progress == nil {
		return nil
	}
	return func(done, total int) {
		fraction := 1.0
		if total > 0 {
			fraction = float64(done) / float64(total)
		}
		progress(types.ProgressUpdate{
			Type:        "optimization",
			Progress:    (float64(lineup) + fraction) / float64(totalLineups),
			Message:     "Evaluating captain candidates",
			CurrentStep: "captain_search",
			TotalSteps:  totalLineups,
			Timestamp:   time.Now(),
		})
	}
}
