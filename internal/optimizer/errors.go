package optimizer

import "errors"

// Error taxonomy for the optimization core.
//
// InfeasibleModel is recoverable at the captain-search level: the candidate
// whose scoring vector produced it is skipped. Solver is retried once at the
// point of origin; SolverTimeout is not, since the deadline has already
// passed. On the base (non-captain) solve either one fails the whole request.
// NoCaptainLineup and MalformedLineup are fatal; the latter signals an
// internal contract violation, not bad user input.
var (
	ErrInfeasibleModel = errors.New("no feasible selection for scoring vector")
	ErrSolver          = errors.New("solver failure")
	ErrSolverTimeout   = errors.New("solver timeout")
	ErrNoCaptainLineup = errors.New("no captain candidate produced a feasible lineup")
	ErrMalformedLineup = errors.New("malformed lineup candidate")
)
