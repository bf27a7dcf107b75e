package pool

import (
	"errors"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/cfldfs/lineup-optimizer/internal/types"
)

// Pool-level failures. Both are fatal for the request: the pool structurally
// cannot fill the roster, so no scoring vector can produce a lineup.
var (
	ErrInsufficientPlayers = errors.New("player pool is empty after filtering")
	ErrInfeasiblePool      = errors.New("player pool cannot fill all roster slots")
)

// positionAliases maps platform position strings to the canonical set.
var positionAliases = map[string]string{
	"quarterback":   types.PositionQB,
	"qb":            types.PositionQB,
	"wide_receiver": types.PositionWR,
	"wr":            types.PositionWR,
	"running_back":  types.PositionRB,
	"rb":            types.PositionRB,
	"tight_end":     types.PositionTE,
	"te":            types.PositionTE,
	"defense":       types.PositionDEF,
	"def":           types.PositionDEF,
}

// Normalize converts raw platform records into the canonical player pool used
// by the optimizer. Teams are appended as DEF pseudo-players. Players that are
// locked, unavailable, or on bye are excluded unless their id appears in
// ownedIDs, which keeps an already-rostered pick valid.
func Normalize(players []types.RawPlayer, teams []types.RawTeam, gameweeks []types.Gameweek, ownedIDs []string, log *logrus.Entry) ([]types.Player, error) {
	owned := make(map[string]bool, len(ownedIDs))
	for _, id := range ownedIDs {
		owned[id] = true
	}

	byeTeams := findByeTeams(teams, gameweeks, log)

	pool := make([]types.Player, 0, len(players)+len(teams))
	droppedPosition := 0
	droppedUnavailable := 0

	for _, raw := range players {
		if !isEligible(raw, owned, byeTeams) {
			droppedUnavailable++
			continue
		}

		position, ok := canonicalPosition(raw.Position)
		if !ok {
			droppedPosition++
			log.WithFields(logrus.Fields{
				"player_id": raw.ID,
				"position":  raw.Position,
			}).Warn("Dropping player with unrecognized position")
			continue
		}

		pool = append(pool, types.Player{
			ID:              raw.ID,
			Name:            strings.TrimSpace(raw.FirstName + " " + raw.LastName),
			Position:        position,
			Team:            raw.Squad.Abbr,
			Salary:          raw.Cost,
			ProjectedPoints: raw.Stats.ProjectedScores,
			Ownership:       raw.Ownership,
			Status:          status(raw),
		})
	}

	for _, team := range teams {
		pool = append(pool, types.Player{
			ID:              "DEF_" + team.ID,
			Name:            team.Abbreviation + " Defense",
			Position:        types.PositionDEF,
			Team:            team.Abbreviation,
			Salary:          team.Cost,
			ProjectedPoints: team.ProjectedScores,
			Ownership:       team.Ownership,
			Status:          types.StatusAvailable,
		})
	}

	log.WithFields(logrus.Fields{
		"pool_size":           len(pool),
		"dropped_unavailable": droppedUnavailable,
		"dropped_position":    droppedPosition,
		"bye_teams":           len(byeTeams),
	}).Info("Player pool normalized")

	if len(pool) == 0 {
		return nil, ErrInsufficientPlayers
	}

	return pool, nil
}

// ValidateCoverage checks that the pool has enough eligible players for every
// mandatory roster bucket. A shortfall makes every model infeasible by
// construction, so it is surfaced before any solve.
func ValidateCoverage(pool []types.Player, requirements types.RosterRequirements) error {
	counts := make(map[string]int)
	flexEligible := 0
	for _, p := range pool {
		counts[p.Position]++
		if p.FlexEligible() {
			flexEligible++
		}
	}

	checks := []struct {
		bucket string
		have   int
		need   int
	}{
		{types.PositionQB, counts[types.PositionQB], requirements[types.PositionQB]},
		{types.PositionWR, counts[types.PositionWR], requirements[types.PositionWR]},
		{types.PositionRB, counts[types.PositionRB], requirements[types.PositionRB]},
		{types.PositionDEF, counts[types.PositionDEF], requirements[types.PositionDEF]},
		{"FLEX-eligible", flexEligible, requirements[types.PositionWR] + requirements[types.PositionRB] + requirements[types.PositionTE] + requirements["FLEX"]},
	}

	for _, check := range checks {
		if check.have < check.need {
			return fmt.Errorf("%w: %s requires %d players, pool has %d", ErrInfeasiblePool, check.bucket, check.need, check.have)
		}
	}

	return nil
}

// isEligible is the pure eligibility predicate: locked, unavailable, and
// bye-week players are out unless the caller already owns them.
func isEligible(raw types.RawPlayer, owned map[string]bool, byeTeams map[string]bool) bool {
	if owned[raw.ID] {
		return true
	}
	if raw.Status == types.StatusUnavailable {
		return false
	}
	if raw.IsLocked {
		return false
	}
	if byeTeams[raw.Squad.Abbr] {
		return false
	}
	return true
}

func status(raw types.RawPlayer) string {
	if raw.Status == types.StatusUnavailable || raw.IsLocked {
		return types.StatusUnavailable
	}
	return types.StatusAvailable
}

func canonicalPosition(position string) (string, bool) {
	mapped, ok := positionAliases[strings.ToLower(strings.TrimSpace(position))]
	return mapped, ok
}

// findByeTeams returns team abbreviations with no match in the active
// gameweek. Without schedule data no team is considered on bye.
func findByeTeams(teams []types.RawTeam, gameweeks []types.Gameweek, log *logrus.Entry) map[string]bool {
	byes := make(map[string]bool)
	if len(gameweeks) == 0 {
		return byes
	}

	current := activeGameweek(gameweeks)
	if current == nil {
		log.Warn("No active gameweek found, skipping bye-week filtering")
		return byes
	}

	playing := make(map[string]bool)
	for _, match := range current.Matches {
		if match.HomeSquad.Abbr != "" {
			playing[match.HomeSquad.Abbr] = true
		}
		if match.AwaySquad.Abbr != "" {
			playing[match.AwaySquad.Abbr] = true
		}
	}

	for _, team := range teams {
		if !playing[team.Abbreviation] {
			byes[team.Abbreviation] = true
		}
	}

	return byes
}

// activeGameweek picks the gameweek marked active, falling back to the first
// incomplete one.
func activeGameweek(gameweeks []types.Gameweek) *types.Gameweek {
	for i := range gameweeks {
		if gameweeks[i].Status == "active" {
			return &gameweeks[i]
		}
	}
	for i := range gameweeks {
		if gameweeks[i].Status != "complete" {
			return &gameweeks[i]
		}
	}
	return nil
}

// Stats summarizes the normalized pool for the validate endpoint.
func Stats(pool []types.Player) types.PoolStats {
	stats := types.PoolStats{
		TotalPlayers: len(pool),
		Positions:    make(map[string]int),
	}
	if len(pool) == 0 {
		return stats
	}

	salaryMin, salaryMax, salarySum := pool[0].Salary, pool[0].Salary, 0
	projMin, projMax, projSum := pool[0].ProjectedPoints, pool[0].ProjectedPoints, 0.0

	for _, p := range pool {
		stats.Positions[p.Position]++
		if p.Salary < salaryMin {
			salaryMin = p.Salary
		}
		if p.Salary > salaryMax {
			salaryMax = p.Salary
		}
		salarySum += p.Salary
		if p.ProjectedPoints < projMin {
			projMin = p.ProjectedPoints
		}
		if p.ProjectedPoints > projMax {
			projMax = p.ProjectedPoints
		}
		projSum += p.ProjectedPoints
	}

	stats.SalaryRange = types.RangeStats{
		Min: float64(salaryMin),
		Max: float64(salaryMax),
		Avg: float64(salarySum) / float64(len(pool)),
	}
	stats.ProjectionRange = types.RangeStats{
		Min: projMin,
		Max: projMax,
		Avg: projSum / float64(len(pool)),
	}
	return stats
}
