package optimizer

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/cfldfs/lineup-optimizer/internal/types"
)

// FormatLineup turns a solved candidate into the caller-facing result with
// its summary statistics. It is a pure function of the candidate and pool;
// a violation of the lineup contract surfaces as ErrMalformedLineup, which
// indicates a bug upstream rather than bad user input.
func FormatLineup(pool []types.Player, candidate *LineupCandidate, salaryCap int, rosterSize int) (*types.LineupResult, error) {
	if candidate == nil {
		return nil, fmt.Errorf("%w: nil candidate", ErrMalformedLineup)
	}
	if len(candidate.Selected) != rosterSize {
		return nil, fmt.Errorf("%w: expected %d players, got %d", ErrMalformedLineup, rosterSize, len(candidate.Selected))
	}

	captainInLineup := candidate.CaptainIdx < 0
	totalSalary := 0
	basePoints := 0.0
	players := make([]types.LineupPlayer, 0, len(candidate.Selected))

	for _, idx := range candidate.Selected {
		if idx < 0 || idx >= len(pool) {
			return nil, fmt.Errorf("%w: selection index %d outside pool of %d", ErrMalformedLineup, idx, len(pool))
		}
		p := pool[idx]
		if p.ID == "" {
			return nil, fmt.Errorf("%w: selected player at index %d has no id", ErrMalformedLineup, idx)
		}

		isCaptain := idx == candidate.CaptainIdx
		if isCaptain {
			if p.Position == types.PositionDEF {
				return nil, fmt.Errorf("%w: captain %s is a DEF entry", ErrMalformedLineup, p.ID)
			}
			captainInLineup = true
		}

		totalSalary += p.Salary
		basePoints += p.ProjectedPoints
		players = append(players, types.LineupPlayer{
			ID:              p.ID,
			Name:            p.Name,
			Position:        p.Position,
			Team:            p.Team,
			Salary:          p.Salary,
			ProjectedPoints: p.ProjectedPoints,
			Ownership:       p.Ownership,
			IsCaptain:       isCaptain,
		})
	}

	if !captainInLineup {
		return nil, fmt.Errorf("%w: captain index %d not among selected players", ErrMalformedLineup, candidate.CaptainIdx)
	}
	if totalSalary > salaryCap {
		return nil, fmt.Errorf("%w: total salary %d exceeds cap %d", ErrMalformedLineup, totalSalary, salaryCap)
	}

	result := &types.LineupResult{
		ID:              "lineup_" + uuid.New().String()[:8],
		Players:         players,
		TotalSalary:     totalSalary,
		SalaryCap:       salaryCap,
		RemainingCap:    salaryCap - totalSalary,
		ProjectedPoints: basePoints,
	}

	if candidate.CaptainIdx >= 0 {
		captain := pool[candidate.CaptainIdx]
		// Doubling adds exactly one extra base-score unit.
		result.CaptainID = captain.ID
		result.CaptainBonusPoints = captain.ProjectedPoints
		result.ProjectedPoints = basePoints + captain.ProjectedPoints
	}

	return result, nil
}
