package optimizer

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/cfldfs/lineup-optimizer/internal/types"
)

// LineupCandidate is one solved selection. CaptainIdx is the pool index of
// the captain, or -1 when captain scoring is disabled. TotalScore is
// captain-adjusted: the captain's base score counts twice.
type LineupCandidate struct {
	Selected   []int
	CaptainIdx int
	TotalScore float64
}

// SearchStats counts the work one search performed.
type SearchStats struct {
	SolverInvocations   int
	CandidatesEvaluated int
	CandidatesSkipped   int
}

// candidateOutcome is the map step's result for one captain candidate.
type candidateOutcome struct {
	lineup *LineupCandidate
	err    error
}

// SolveBase finds the optimal lineup with no captain multiplier. An
// infeasible result here is pool-level: no scoring vector can do better, so
// the caller should fail the request.
func (m *Model) SolveBase(ctx context.Context, solveTimeout time.Duration) (*LineupCandidate, error) {
	solveCtx, cancel := context.WithTimeout(ctx, solveTimeout)
	defer cancel()

	sol, err := m.Solve(solveCtx, m.BaseScores())
	if err != nil {
		return nil, err
	}
	return &LineupCandidate{
		Selected:   sol.Selected,
		CaptainIdx: -1,
		TotalScore: sol.Objective,
	}, nil
}

// SearchCaptain finds the lineup maximizing total score when exactly one
// non-DEF selected player scores double. Candidates are solved independently
// across a worker pool; each solve gets its own immutable scoring vector, so
// no shared state is mutated during the search. The reduce step is
// deterministic: max by score, ties broken by candidate input order.
//
// Per-candidate infeasibility and solver timeouts skip that candidate only.
// A base-solve failure, including infeasibility, fails the whole search.
func (m *Model) SearchCaptain(ctx context.Context, solveTimeout time.Duration, log *logrus.Entry, progress func(done, total int)) (*LineupCandidate, SearchStats, error) {
	stats := SearchStats{}

	// The base solve proves the pool feasible before burning a solve per
	// candidate on a structurally impossible problem.
	stats.SolverInvocations++
	if _, err := m.SolveBase(ctx, solveTimeout); err != nil {
		return nil, stats, fmt.Errorf("base solve: %w", err)
	}

	base := m.BaseScores()
	var candidates []int
	for i, p := range m.players {
		if p.Position != types.PositionDEF {
			candidates = append(candidates, i)
		}
	}
	if len(candidates) == 0 {
		return nil, stats, ErrNoCaptainLineup
	}

	workers := runtime.GOMAXPROCS(0)
	if workers > len(candidates) {
		workers = len(candidates)
	}

	outcomes := make([]candidateOutcome, len(candidates))
	jobs := make(chan int)
	var done int64
	var wg sync.WaitGroup

	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for pos := range jobs {
				outcomes[pos] = m.solveCandidate(ctx, solveTimeout, base, candidates[pos])
				completed := atomic.AddInt64(&done, 1)
				if progress != nil {
					progress(int(completed), len(candidates))
				}
			}
		}()
	}

	for pos := range candidates {
		jobs <- pos
	}
	close(jobs)
	wg.Wait()

	if err := ctx.Err(); err != nil {
		// Request-level timeout or cancellation: partial results are
		// discarded, never returned as a best-effort lineup.
		return nil, stats, err
	}

	// Deterministic reduce: scanning outcomes in candidate input order with a
	// strict comparison makes the first candidate win ties regardless of
	// which worker finished first.
	var best *LineupCandidate
	for pos, outcome := range outcomes {
		stats.SolverInvocations++
		if outcome.err != nil {
			stats.CandidatesSkipped++
			candidate := m.players[candidates[pos]]
			switch {
			case errors.Is(outcome.err, ErrInfeasibleModel):
				log.WithField("captain_id", candidate.ID).Debug("Captain candidate infeasible, skipping")
			default:
				log.WithError(outcome.err).WithField("captain_id", candidate.ID).Warn("Captain candidate solve failed, skipping")
			}
			continue
		}
		if outcome.lineup == nil {
			// Solver left the doubled candidate on the bench; doubling a
			// non-selected player is not a valid captain assignment.
			stats.CandidatesSkipped++
			continue
		}
		stats.CandidatesEvaluated++
		if best == nil || outcome.lineup.TotalScore > best.TotalScore {
			best = outcome.lineup
		}
	}

	if best == nil {
		return nil, stats, ErrNoCaptainLineup
	}
	return best, stats, nil
}

// solveCandidate runs the map step for one captain candidate: copy the base
// scoring vector, double the candidate, solve. Returns a nil lineup with nil
// error when the solver did not select the candidate.
func (m *Model) solveCandidate(ctx context.Context, solveTimeout time.Duration, base []float64, candidateIdx int) candidateOutcome {
	scores := make([]float64, len(base))
	copy(scores, base)
	scores[candidateIdx] *= 2

	solveCtx, cancel := context.WithTimeout(ctx, solveTimeout)
	defer cancel()

	sol, err := m.Solve(solveCtx, scores)
	if err != nil {
		return candidateOutcome{err: err}
	}

	selected := false
	for _, i := range sol.Selected {
		if i == candidateIdx {
			selected = true
			break
		}
	}
	if !selected {
		return candidateOutcome{}
	}

	total := 0.0
	for _, i := range sol.Selected {
		total += base[i]
	}
	total += base[candidateIdx]

	return candidateOutcome{lineup: &LineupCandidate{
		Selected:   sol.Selected,
		CaptainIdx: candidateIdx,
		TotalScore: total,
	}}
}
