package optimizer

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/optimize/convex/lp"

	"github.com/cfldfs/lineup-optimizer/internal/types"
)

const (
	// integralityTol decides when an LP value counts as 0 or 1.
	integralityTol = 1e-6
	// boundTol guards incumbent comparisons against simplex round-off.
	boundTol = 1e-9
	// simplexTol is the pivot tolerance handed to gonum's simplex.
	simplexTol = 1e-10
	// maxNodes bounds the branch-and-bound tree per solve.
	maxNodes = 50000
)

// Solution is an optimal 0/1 assignment. Selected holds pool indices in
// ascending order; Objective is recomputed from the scoring vector, not taken
// from the LP, so it is exact up to float64 summation.
type Solution struct {
	Selected  []int
	Objective float64
}

// Solve finds the optimal selection for the given scoring vector, or reports
// infeasibility via ErrInfeasibleModel. The solve is deterministic for a
// fixed model and scoring vector. A transient solver failure is retried once;
// hitting the context deadline surfaces ErrSolverTimeout and is not retried
// since the deadline has already passed.
func (m *Model) Solve(ctx context.Context, scores []float64) (*Solution, error) {
	if len(scores) != len(m.players) {
		return nil, fmt.Errorf("%w: scoring vector has %d entries for %d players", ErrSolver, len(scores), len(m.players))
	}

	sol, err := m.solveBranchAndBound(ctx, scores)
	if err != nil && errors.Is(err, ErrSolver) && ctx.Err() == nil {
		sol, err = m.solveBranchAndBound(ctx, scores)
	}
	return sol, err
}

// searchState carries the mutable state of one branch-and-bound run. The
// order slices hold each positional group sorted by descending score, lowest
// pool index first on ties; picked, pickBuf, and aData are scratch buffers
// reused across nodes so a deep tree does not churn the allocator.
type searchState struct {
	scores  []float64
	fixed   []int8 // -1 free, 0 excluded, 1 included
	nodes   int
	best    float64
	bestSel []int
	hasBest bool

	qbOrder   []int
	defOrder  []int
	wrOrder   []int
	rbOrder   []int
	teOrder   []int
	flexOrder []int

	teamOf []int   // team group per player, -1 when the team has one entry
	exclOf [][]int // exclusion groups per player

	picked  []bool
	pickBuf []int
	aData   []float64
}

func (m *Model) newSearchState(scores []float64) *searchState {
	st := &searchState{
		scores: scores,
		fixed:  make([]int8, len(m.players)),
		best:   math.Inf(-1),
		picked: make([]bool, len(m.players)),
	}
	for i := range st.fixed {
		st.fixed[i] = -1
	}

	order := func(indices []int) []int {
		out := append([]int(nil), indices...)
		sort.SliceStable(out, func(a, b int) bool {
			return scores[out[a]] > scores[out[b]]
		})
		return out
	}
	st.qbOrder = order(m.qbIdx)
	st.defOrder = order(m.defIdx)
	st.wrOrder = order(m.wrIdx)
	st.rbOrder = order(m.rbIdx)
	st.teOrder = order(m.teIdx)
	st.flexOrder = order(m.flexIdx)

	st.teamOf = make([]int, len(m.players))
	for i := range st.teamOf {
		st.teamOf[i] = -1
	}
	for t, team := range m.teams {
		for _, i := range team.indices {
			st.teamOf[i] = t
		}
	}
	st.exclOf = make([][]int, len(m.players))
	for e, excl := range m.exclusions {
		for _, i := range excl.indices {
			st.exclOf[i] = append(st.exclOf[i], e)
		}
	}
	return st
}

func (m *Model) solveBranchAndBound(ctx context.Context, scores []float64) (*Solution, error) {
	select {
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w: %v", ErrSolverTimeout, ctx.Err())
		}
		return nil, ctx.Err()
	default:
	}

	st := m.newSearchState(scores)

	// The positional relaxation keeps only the count constraints, so its
	// greedy optimum is exact for that subproblem. When it also satisfies
	// the salary, team, and exclusion caps it is the optimum of the full
	// problem and no LP is needed; otherwise a greedy feasible roster seeds
	// the incumbent so the tree prunes from the first node.
	picks, bound, ok := m.positionalBound(st)
	if !ok {
		return nil, ErrInfeasibleModel
	}
	selected := append([]int(nil), picks...)
	if m.sideConstraintsOK(selected) {
		sort.Ints(selected)
		return &Solution{Selected: selected, Objective: bound}, nil
	}
	m.greedySeed(st)

	if err := m.branch(ctx, st); err != nil {
		return nil, err
	}
	if !st.hasBest {
		return nil, ErrInfeasibleModel
	}

	selected = make([]int, len(st.bestSel))
	copy(selected, st.bestSel)
	sort.Ints(selected)

	objective := 0.0
	for _, i := range selected {
		objective += scores[i]
	}
	return &Solution{Selected: selected, Objective: objective}, nil
}

// positionalBound solves the relaxation that keeps only the positional count
// constraints under the current fixings. Top scorers per group are exact for
// that subproblem, so the returned value bounds every completion of the node.
// The pick slice excludes fixed players and is a scratch buffer, valid until
// the next positionalBound or greedySeed call. ok is false when the free pool
// cannot meet the residual counts.
func (m *Model) positionalBound(st *searchState) ([]int, float64, bool) {
	needQB := m.reqQB
	needDEF := m.reqDEF
	needWR := m.minWR
	needRB := m.minRB
	needTE := m.minTE
	flexNeed := m.flexTotal
	fixedScore := 0.0
	for i, f := range st.fixed {
		if f != 1 {
			continue
		}
		fixedScore += st.scores[i]
		switch m.players[i].Position {
		case types.PositionQB:
			needQB--
		case types.PositionDEF:
			needDEF--
		case types.PositionWR:
			needWR--
			flexNeed--
		case types.PositionRB:
			needRB--
			flexNeed--
		case types.PositionTE:
			needTE--
			flexNeed--
		}
	}
	if needQB < 0 || needDEF < 0 || flexNeed < 0 {
		return nil, 0, false
	}
	if needWR < 0 {
		needWR = 0
	}
	if needRB < 0 {
		needRB = 0
	}
	if needTE < 0 {
		needTE = 0
	}
	if needWR+needRB+needTE > flexNeed {
		return nil, 0, false
	}

	st.pickBuf = st.pickBuf[:0]
	for i := range st.picked {
		st.picked[i] = false
	}
	take := func(order []int, n int) bool {
		for _, i := range order {
			if n == 0 {
				break
			}
			if st.fixed[i] != -1 || st.picked[i] {
				continue
			}
			st.picked[i] = true
			st.pickBuf = append(st.pickBuf, i)
			n--
		}
		return n == 0
	}
	if !take(st.qbOrder, needQB) || !take(st.defOrder, needDEF) ||
		!take(st.wrOrder, needWR) || !take(st.rbOrder, needRB) ||
		!take(st.teOrder, needTE) ||
		!take(st.flexOrder, flexNeed-needWR-needRB-needTE) {
		return nil, 0, false
	}

	bound := fixedScore
	for _, i := range st.pickBuf {
		bound += st.scores[i]
	}
	return st.pickBuf, bound, true
}

// sideConstraintsOK reports whether a full selection honors the constraints
// the positional relaxation drops: salary cap, per-team cap, and exclusions.
func (m *Model) sideConstraintsOK(selected []int) bool {
	salary := 0
	inSel := make(map[int]bool, len(selected))
	for _, i := range selected {
		salary += m.players[i].Salary
		inSel[i] = true
	}
	if salary > m.salaryCap {
		return false
	}
	for _, team := range m.teams {
		n := 0
		for _, i := range team.indices {
			if inSel[i] {
				n++
			}
		}
		if n > m.maxPerTeam {
			return false
		}
	}
	for _, excl := range m.exclusions {
		n := 0
		for _, i := range excl.indices {
			if inSel[i] {
				n++
			}
		}
		if n > excl.maxShared {
			return false
		}
	}
	return true
}

// greedySeed builds a feasible roster at the root by greedy selection,
// skipping players that would exceed a team or exclusion cap, and seeds the
// incumbent when the result fits the salary cap. Runs before the search, so
// every fixing is still free.
func (m *Model) greedySeed(st *searchState) {
	teamCount := make([]int, len(m.teams))
	exclCount := make([]int, len(m.exclusions))
	st.pickBuf = st.pickBuf[:0]
	for i := range st.picked {
		st.picked[i] = false
	}

	admissible := func(i int) bool {
		if t := st.teamOf[i]; t >= 0 && teamCount[t] >= m.maxPerTeam {
			return false
		}
		for _, e := range st.exclOf[i] {
			if exclCount[e] >= m.exclusions[e].maxShared {
				return false
			}
		}
		return true
	}
	take := func(order []int, n int) bool {
		for _, i := range order {
			if n == 0 {
				break
			}
			if st.picked[i] || !admissible(i) {
				continue
			}
			st.picked[i] = true
			if t := st.teamOf[i]; t >= 0 {
				teamCount[t]++
			}
			for _, e := range st.exclOf[i] {
				exclCount[e]++
			}
			st.pickBuf = append(st.pickBuf, i)
			n--
		}
		return n == 0
	}
	if !take(st.qbOrder, m.reqQB) || !take(st.defOrder, m.reqDEF) ||
		!take(st.wrOrder, m.minWR) || !take(st.rbOrder, m.minRB) ||
		!take(st.teOrder, m.minTE) ||
		!take(st.flexOrder, m.flexTotal-m.minWR-m.minRB-m.minTE) {
		return
	}

	salary := 0
	objective := 0.0
	for _, i := range st.pickBuf {
		salary += m.players[i].Salary
		objective += st.scores[i]
	}
	if salary > m.salaryCap {
		return
	}
	st.best = objective
	st.bestSel = append([]int(nil), st.pickBuf...)
	st.hasBest = true
}

// branch explores one node: solve the LP relaxation under the current
// fixings, prune on infeasibility or a dominated bound, accept integral
// solutions, otherwise split on the most fractional variable (1-branch
// first, lowest pool index on ties, keeping the search deterministic).
func (m *Model) branch(ctx context.Context, st *searchState) error {
	select {
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return fmt.Errorf("%w: %v", ErrSolverTimeout, ctx.Err())
		}
		return ctx.Err()
	default:
	}

	st.nodes++
	if st.nodes > maxNodes {
		return fmt.Errorf("%w: node budget of %d exhausted", ErrSolver, maxNodes)
	}

	// The positional bound dominates the LP bound, so a node it prunes
	// would have been pruned after the simplex run anyway. Checking it
	// first skips the matrix build for most of the tree.
	if _, posBound, ok := m.positionalBound(st); !ok || posBound <= st.best+boundTol {
		return nil
	}

	rel, status := m.buildRelaxation(st)
	switch status {
	case nodeInfeasible:
		return nil
	case nodeComplete:
		if rel.fixedScore > st.best+boundTol {
			st.best = rel.fixedScore
			st.bestSel = fixedSelection(st.fixed)
			st.hasBest = true
		}
		return nil
	}

	optF, optX, err := lp.Simplex(rel.c, rel.a, rel.b, simplexTol, nil)
	if err != nil {
		if errors.Is(err, lp.ErrInfeasible) {
			return nil
		}
		return fmt.Errorf("%w: simplex: %v", ErrSolver, err)
	}

	// Simplex minimized the negated scores of the free variables.
	bound := rel.fixedScore - optF
	if bound <= st.best+boundTol {
		return nil
	}

	branchVar := -1
	worstFrac := integralityTol
	for col, playerIdx := range rel.cols {
		frac := math.Abs(optX[col] - math.Round(optX[col]))
		if frac > worstFrac {
			worstFrac = frac
			branchVar = playerIdx
		}
	}

	if branchVar < 0 {
		// Integral relaxation: the node's LP optimum is a valid selection.
		if bound > st.best+boundTol {
			selected := fixedSelection(st.fixed)
			for col, playerIdx := range rel.cols {
				if math.Round(optX[col]) == 1 {
					selected = append(selected, playerIdx)
				}
			}
			objective := 0.0
			for _, i := range selected {
				objective += st.scores[i]
			}
			if objective > st.best+boundTol {
				st.best = objective
				st.bestSel = selected
				st.hasBest = true
			}
		}
		return nil
	}

	st.fixed[branchVar] = 1
	if err := m.branch(ctx, st); err != nil {
		st.fixed[branchVar] = -1
		return err
	}
	st.fixed[branchVar] = 0
	err = m.branch(ctx, st)
	st.fixed[branchVar] = -1
	return err
}

type nodeStatus int

const (
	nodeOpen nodeStatus = iota
	nodeInfeasible
	nodeComplete
)

// relaxation is the standard-form LP of one node: minimize c'x subject to
// Ax = b, x >= 0. Columns are the free players followed by slack, surplus,
// and upper-bound slack variables; fixed players are folded into the right
// hand sides.
type relaxation struct {
	cols       []int // pool index per free-player column
	c          []float64
	a          *mat.Dense
	b          []float64
	fixedScore float64
}

// ubRow is a <= constraint row awaiting a slack variable.
type ubRow struct {
	coeff map[int]float64
	rhs   float64
}

// buildRelaxation folds the node's fixings into the model constraints. A
// negative residual right hand side means the fixings already violate a
// constraint; a node with no free variables is complete when every equality
// residual reached zero.
func (m *Model) buildRelaxation(st *searchState) (*relaxation, nodeStatus) {
	colOf := make(map[int]int)
	var cols []int
	for i, f := range st.fixed {
		if f == -1 {
			colOf[i] = len(cols)
			cols = append(cols, i)
		}
	}

	fixedScore := 0.0
	fixedSalary := 0
	for i, f := range st.fixed {
		if f == 1 {
			fixedScore += st.scores[i]
			fixedSalary += m.players[i].Salary
		}
	}

	// Upper-bound rows: salary cap, per-team caps, diversity exclusions.
	// A row no subset of the free variables can violate is vacuous and
	// dropped, which keeps the matrix small near the leaves.
	var ubRows []ubRow
	capRHS := m.salaryCap - fixedSalary
	if capRHS < 0 {
		return nil, nodeInfeasible
	}
	freeSalary := 0
	for _, i := range cols {
		freeSalary += m.players[i].Salary
	}
	if freeSalary > capRHS {
		capCoeff := make(map[int]float64, len(cols))
		for _, i := range cols {
			capCoeff[colOf[i]] = float64(m.players[i].Salary)
		}
		ubRows = append(ubRows, ubRow{coeff: capCoeff, rhs: float64(capRHS)})
	}

	for _, team := range m.teams {
		rhs := m.maxPerTeam
		coeff := make(map[int]float64)
		for _, i := range team.indices {
			switch st.fixed[i] {
			case 1:
				rhs--
			case -1:
				coeff[colOf[i]] = 1
			}
		}
		if rhs < 0 {
			return nil, nodeInfeasible
		}
		if len(coeff) > rhs {
			ubRows = append(ubRows, ubRow{coeff: coeff, rhs: float64(rhs)})
		}
	}

	for _, excl := range m.exclusions {
		rhs := excl.maxShared
		coeff := make(map[int]float64)
		for _, i := range excl.indices {
			switch st.fixed[i] {
			case 1:
				rhs--
			case -1:
				coeff[colOf[i]] = 1
			}
		}
		if rhs < 0 {
			return nil, nodeInfeasible
		}
		if len(coeff) > rhs {
			ubRows = append(ubRows, ubRow{coeff: coeff, rhs: float64(rhs)})
		}
	}

	// >= rows (minimum WR/RB/TE counts) become equalities with a surplus
	// variable; residuals at or below zero are vacuous and dropped.
	var geRows []ubRow
	for _, group := range []struct {
		indices []int
		min     int
	}{
		{m.wrIdx, m.minWR},
		{m.rbIdx, m.minRB},
		{m.teIdx, m.minTE},
	} {
		rhs := group.min
		coeff := make(map[int]float64)
		for _, i := range group.indices {
			switch st.fixed[i] {
			case 1:
				rhs--
			case -1:
				coeff[colOf[i]] = 1
			}
		}
		if rhs <= 0 {
			continue
		}
		if len(coeff) < rhs {
			return nil, nodeInfeasible
		}
		geRows = append(geRows, ubRow{coeff: coeff, rhs: float64(rhs)})
	}

	// Equality rows: QB count, DEF count, and the WR+RB+TE group total,
	// which jointly enforce the roster size since every canonical position
	// falls in exactly one of the three groups. An explicit roster-size row
	// would be linearly dependent on these and is deliberately omitted.
	var eqRows []ubRow
	for _, group := range []struct {
		indices []int
		req     int
	}{
		{m.qbIdx, m.reqQB},
		{m.defIdx, m.reqDEF},
		{m.flexIdx, m.flexTotal},
	} {
		rhs := group.req
		coeff := make(map[int]float64)
		for _, i := range group.indices {
			switch st.fixed[i] {
			case 1:
				rhs--
			case -1:
				coeff[colOf[i]] = 1
			}
		}
		if rhs < 0 || len(coeff) < rhs {
			return nil, nodeInfeasible
		}
		if len(coeff) == 0 {
			continue // 0 == 0, satisfied by the fixings alone
		}
		eqRows = append(eqRows, ubRow{coeff: coeff, rhs: float64(rhs)})
	}

	if len(cols) == 0 {
		return &relaxation{fixedScore: fixedScore}, nodeComplete
	}

	nFree := len(cols)
	nUB := len(ubRows)
	nGE := len(geRows)
	nEQ := len(eqRows)
	rows := nUB + nGE + nEQ + nFree
	colsTotal := nFree + nUB + nGE + nFree

	need := rows * colsTotal
	if cap(st.aData) < need {
		st.aData = make([]float64, need)
	}
	data := st.aData[:need]
	for i := range data {
		data[i] = 0
	}
	a := mat.NewDense(rows, colsTotal, data)
	b := make([]float64, rows)
	c := make([]float64, colsTotal)
	for col, i := range cols {
		c[col] = -st.scores[i]
	}

	row := 0
	for r, ub := range ubRows {
		for col, v := range ub.coeff {
			a.Set(row, col, v)
		}
		a.Set(row, nFree+r, 1) // slack
		b[row] = ub.rhs
		row++
	}
	for r, ge := range geRows {
		for col, v := range ge.coeff {
			a.Set(row, col, v)
		}
		a.Set(row, nFree+nUB+r, -1) // surplus
		b[row] = ge.rhs
		row++
	}
	for _, eq := range eqRows {
		for col, v := range eq.coeff {
			a.Set(row, col, v)
		}
		b[row] = eq.rhs
		row++
	}
	// Binary upper bounds: x_i + u_i = 1 for every free variable.
	for col := 0; col < nFree; col++ {
		a.Set(row, col, 1)
		a.Set(row, nFree+nUB+nGE+col, 1)
		b[row] = 1
		row++
	}

	return &relaxation{cols: cols, c: c, a: a, b: b, fixedScore: fixedScore}, nodeOpen
}

func fixedSelection(fixed []int8) []int {
	var selected []int
	for i, f := range fixed {
		if f == 1 {
			selected = append(selected, i)
		}
	}
	return selected
}
