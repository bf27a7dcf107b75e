package optimizer

import (
	"fmt"

	"github.com/cfldfs/lineup-optimizer/internal/types"
)

// ModelConfig carries the structural parameters of the selection problem.
type ModelConfig struct {
	SalaryCap    int
	MaxPerTeam   int
	Requirements types.RosterRequirements
}

// teamGroup indexes the pool entries belonging to one team, in input order.
type teamGroup struct {
	abbr    string
	indices []int
}

// exclusion caps how many players of a previously returned lineup may appear
// in a new solution.
type exclusion struct {
	indices   []int
	maxShared int
}

// Model is the binary selection problem over a fixed player pool: one 0/1
// variable per pool entry, positional counts, salary cap, and per-team cap.
// The scoring vector is supplied per solve, so one Model serves every captain
// candidate of a request. A Model is immutable during solves and safe for
// concurrent use once built.
type Model struct {
	players    []types.Player
	salaryCap  int
	maxPerTeam int

	reqQB      int
	reqDEF     int
	minWR      int
	minRB      int
	minTE      int
	flexTotal  int
	rosterSize int

	qbIdx   []int
	defIdx  []int
	wrIdx   []int
	rbIdx   []int
	teIdx   []int
	flexIdx []int // WR, RB, and TE entries
	teams   []teamGroup

	exclusions []exclusion
}

// NewModel builds the selection model for a pool. It fails with
// ErrInfeasibleModel when the pool cannot satisfy the positional counts, so
// an impossible problem never reaches the solver.
func NewModel(players []types.Player, cfg ModelConfig) (*Model, error) {
	if cfg.SalaryCap <= 0 {
		return nil, fmt.Errorf("salary cap must be positive, got %d", cfg.SalaryCap)
	}
	if cfg.MaxPerTeam <= 0 {
		return nil, fmt.Errorf("max players per team must be positive, got %d", cfg.MaxPerTeam)
	}
	req := cfg.Requirements
	if len(req) == 0 {
		req = types.DefaultRosterRequirements()
	}

	m := &Model{
		players:    players,
		salaryCap:  cfg.SalaryCap,
		maxPerTeam: cfg.MaxPerTeam,
		reqQB:      req[types.PositionQB],
		reqDEF:     req[types.PositionDEF],
		minWR:      req[types.PositionWR],
		minRB:      req[types.PositionRB],
		minTE:      req[types.PositionTE],
	}
	m.flexTotal = m.minWR + m.minRB + m.minTE + req["FLEX"]
	m.rosterSize = m.reqQB + m.reqDEF + m.flexTotal

	teamOrder := make(map[string]int)
	for i, p := range players {
		switch p.Position {
		case types.PositionQB:
			m.qbIdx = append(m.qbIdx, i)
		case types.PositionDEF:
			m.defIdx = append(m.defIdx, i)
		case types.PositionWR:
			m.wrIdx = append(m.wrIdx, i)
			m.flexIdx = append(m.flexIdx, i)
		case types.PositionRB:
			m.rbIdx = append(m.rbIdx, i)
			m.flexIdx = append(m.flexIdx, i)
		case types.PositionTE:
			m.teIdx = append(m.teIdx, i)
			m.flexIdx = append(m.flexIdx, i)
		default:
			return nil, fmt.Errorf("player %s has non-canonical position %q", p.ID, p.Position)
		}

		pos, seen := teamOrder[p.Team]
		if !seen {
			pos = len(m.teams)
			teamOrder[p.Team] = pos
			m.teams = append(m.teams, teamGroup{abbr: p.Team})
		}
		m.teams[pos].indices = append(m.teams[pos].indices, i)
	}

	if err := m.checkStructure(); err != nil {
		return nil, err
	}
	return m, nil
}

// checkStructure detects models infeasible by construction: positional counts
// the pool cannot meet regardless of scores or budget.
func (m *Model) checkStructure() error {
	if len(m.qbIdx) < m.reqQB {
		return fmt.Errorf("%w: need %d QB, pool has %d", ErrInfeasibleModel, m.reqQB, len(m.qbIdx))
	}
	if len(m.defIdx) < m.reqDEF {
		return fmt.Errorf("%w: need %d DEF, pool has %d", ErrInfeasibleModel, m.reqDEF, len(m.defIdx))
	}
	if len(m.wrIdx) < m.minWR {
		return fmt.Errorf("%w: need %d WR, pool has %d", ErrInfeasibleModel, m.minWR, len(m.wrIdx))
	}
	if len(m.rbIdx) < m.minRB {
		return fmt.Errorf("%w: need %d RB, pool has %d", ErrInfeasibleModel, m.minRB, len(m.rbIdx))
	}
	if len(m.flexIdx) < m.flexTotal {
		return fmt.Errorf("%w: need %d FLEX-eligible, pool has %d", ErrInfeasibleModel, m.flexTotal, len(m.flexIdx))
	}
	return nil
}

// AddExclusion constrains future solves to share at most maxShared players
// with the given selection. Used by the diversifier between lineups; not safe
// to call concurrently with Solve.
func (m *Model) AddExclusion(indices []int, maxShared int) {
	set := make([]int, len(indices))
	copy(set, indices)
	m.exclusions = append(m.exclusions, exclusion{indices: set, maxShared: maxShared})
}

// Players returns the pool backing the model.
func (m *Model) Players() []types.Player { return m.players }

// RosterSize returns the number of players a solution selects.
func (m *Model) RosterSize() int { return m.rosterSize }

// SalaryCap returns the model's salary cap.
func (m *Model) SalaryCap() int { return m.salaryCap }

// BaseScores returns the projected points of the pool as a scoring vector.
func (m *Model) BaseScores() []float64 {
	scores := make([]float64, len(m.players))
	for i, p := range m.players {
		scores[i] = p.ProjectedPoints
	}
	return scores
}
