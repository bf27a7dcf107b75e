package types

import "time"

// Canonical roster positions. FLEX is a slot, not a position: it is filled by
// a WR, RB, or TE beyond the fixed slot counts.
const (
	PositionQB  = "QB"
	PositionWR  = "WR"
	PositionRB  = "RB"
	PositionTE  = "TE"
	PositionDEF = "DEF"
)

// Player availability states.
const (
	StatusAvailable   = "available"
	StatusUnavailable = "unavailable"
)

// Player is the canonical pool entry produced by the normalizer. A team's
// defense unit is represented as a Player with Position == DEF.
type Player struct {
	ID              string  `json:"id"`
	Name            string  `json:"name"`
	Position        string  `json:"position"`
	Team            string  `json:"team"`
	Salary          int     `json:"salary"`
	ProjectedPoints float64 `json:"projected_points"`
	Ownership       float64 `json:"ownership"`
	Status          string  `json:"status"`
}

// FlexEligible reports whether the player can fill the FLEX slot.
func (p Player) FlexEligible() bool {
	switch p.Position {
	case PositionWR, PositionRB, PositionTE:
		return true
	}
	return false
}

// Squad identifies a CFL team inside a raw record.
type Squad struct {
	ID   string `json:"id"`
	Abbr string `json:"abbr"`
	Name string `json:"name,omitempty"`
}

// RawStats carries the projection block of a raw player record.
type RawStats struct {
	ProjectedScores float64 `json:"projectedScores"`
}

// RawPlayer mirrors the player record shape delivered by the fantasy platform.
type RawPlayer struct {
	ID        string   `json:"id"`
	FirstName string   `json:"firstName"`
	LastName  string   `json:"lastName"`
	Position  string   `json:"position"`
	Squad     Squad    `json:"squad"`
	Cost      int      `json:"cost"`
	Stats     RawStats `json:"stats"`
	Status    string   `json:"status"`
	IsLocked  bool     `json:"isLocked"`
	Ownership float64  `json:"ownership,omitempty"`
}

// RawTeam mirrors the team record shape; each team also competes for the DEF
// slot with its own cost and projection.
type RawTeam struct {
	ID              string  `json:"id"`
	Name            string  `json:"name"`
	Abbreviation    string  `json:"abbreviation"`
	Cost            int     `json:"cost"`
	ProjectedScores float64 `json:"projectedScores"`
	Ownership       float64 `json:"ownership,omitempty"`
}

// Match is a single game inside a gameweek.
type Match struct {
	HomeSquad Squad `json:"homeSquad"`
	AwaySquad Squad `json:"awaySquad"`
}

// Gameweek carries the schedule used for bye-week filtering. A team with no
// match in the active gameweek is on bye.
type Gameweek struct {
	ID      string  `json:"id"`
	Status  string  `json:"status"` // "active", "complete", or upcoming
	Matches []Match `json:"matches"`
}

// RosterRequirements defines how many players each slot bucket needs.
type RosterRequirements map[string]int

// DefaultRosterRequirements returns the standard 7-slot CFL roster.
func DefaultRosterRequirements() RosterRequirements {
	return RosterRequirements{
		PositionQB:  1,
		PositionWR:  2,
		PositionRB:  2,
		"FLEX":      1,
		PositionDEF: 1,
	}
}

// TotalPlayers returns the roster size implied by the requirements.
func (rr RosterRequirements) TotalPlayers() int {
	total := 0
	for _, count := range rr {
		total += count
	}
	return total
}

// OptimizationConfig carries the caller-facing knobs for one request.
// Zero values are replaced by defaults via ApplyDefaults.
type OptimizationConfig struct {
	SalaryCap           int                `json:"salary_cap"`
	MaxPerTeam          int                `json:"max_per_team"`
	UseCaptain          *bool              `json:"use_captain,omitempty"`
	NumLineups          int                `json:"num_lineups"`
	MinDifferentPlayers int                `json:"min_different_players"`
	RosterRequirements  RosterRequirements `json:"roster_requirements,omitempty"`
}

// ApplyDefaults fills in unset fields with the documented defaults.
func (c *OptimizationConfig) ApplyDefaults() {
	if c.SalaryCap <= 0 {
		c.SalaryCap = 70000
	}
	if c.MaxPerTeam <= 0 {
		c.MaxPerTeam = 3
	}
	if c.NumLineups <= 0 {
		c.NumLineups = 1
	}
	if c.MinDifferentPlayers <= 0 {
		c.MinDifferentPlayers = 1
	}
	if len(c.RosterRequirements) == 0 {
		c.RosterRequirements = DefaultRosterRequirements()
	}
}

// CaptainEnabled reports whether captain search is on (default true).
func (c OptimizationConfig) CaptainEnabled() bool {
	return c.UseCaptain == nil || *c.UseCaptain
}

// OptimizationRequest is the body of POST /api/v1/optimize.
type OptimizationRequest struct {
	Players          []RawPlayer        `json:"players"`
	Teams            []RawTeam          `json:"teams"`
	Gameweeks        []Gameweek         `json:"gameweeks,omitempty"`
	CurrentLineupIDs []string           `json:"current_lineup_ids,omitempty"`
	Config           OptimizationConfig `json:"config"`
}

// LineupPlayer is one of the seven selected players in a result.
type LineupPlayer struct {
	ID              string  `json:"id"`
	Name            string  `json:"name"`
	Position        string  `json:"position"`
	Team            string  `json:"team"`
	Salary          int     `json:"salary"`
	ProjectedPoints float64 `json:"projected_points"`
	Ownership       float64 `json:"ownership"`
	IsCaptain       bool    `json:"is_captain"`
}

// LineupResult is a complete optimized lineup with its summary statistics.
// ProjectedPoints is captain-adjusted: sum of base scores plus the captain's
// base score counted once more.
type LineupResult struct {
	ID                 string         `json:"id"`
	Players            []LineupPlayer `json:"players"`
	TotalSalary        int            `json:"total_salary"`
	SalaryCap          int            `json:"salary_cap"`
	RemainingCap       int            `json:"remaining_cap"`
	ProjectedPoints    float64        `json:"projected_points"`
	CaptainID          string         `json:"captain_id,omitempty"`
	CaptainBonusPoints float64        `json:"captain_bonus_points"`
}

// OptimizationMetadata describes how a response was produced.
type OptimizationMetadata struct {
	ExecutionTimeMs     int64 `json:"execution_time_ms"`
	PoolSize            int   `json:"pool_size"`
	CandidatesEvaluated int   `json:"candidates_evaluated"`
	SolverInvocations   int   `json:"solver_invocations"`
	LineupsRequested    int   `json:"lineups_requested"`
}

// OptimizationResponse is the body returned by POST /api/v1/optimize.
type OptimizationResponse struct {
	Lineups  []LineupResult       `json:"lineups"`
	Metadata OptimizationMetadata `json:"metadata"`
}

// RangeStats summarizes min/max/avg for a pool dimension.
type RangeStats struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
	Avg float64 `json:"avg"`
}

// PoolStats summarizes a normalized player pool.
type PoolStats struct {
	TotalPlayers    int            `json:"total_players"`
	Positions       map[string]int `json:"positions"`
	SalaryRange     RangeStats     `json:"salary_range"`
	ProjectionRange RangeStats     `json:"projection_range"`
}

// ProgressUpdate is streamed over the websocket hub during a request.
type ProgressUpdate struct {
	Type        string    `json:"type"`
	Progress    float64   `json:"progress"` // 0.0 to 1.0
	Message     string    `json:"message"`
	CurrentStep string    `json:"current_step"`
	TotalSteps  int       `json:"total_steps"`
	Timestamp   time.Time `json:"timestamp"`
}

// ErrorResponse is the standard error payload.
type ErrorResponse struct {
	Error   string            `json:"error"`
	Code    string            `json:"code,omitempty"`
	Details map[string]string `json:"details,omitempty"`
}

// SuccessResponse is the standard non-error payload for auxiliary endpoints.
type SuccessResponse struct {
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// HealthStatus reports service health.
type HealthStatus struct {
	Status    string            `json:"status"`
	Service   string            `json:"service"`
	Timestamp time.Time         `json:"timestamp"`
	Checks    map[string]string `json:"checks,omitempty"`
}
