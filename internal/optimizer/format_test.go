package optimizer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatLineup_CaptainedResult(t *testing.T) {
	pool := testPool()
	candidate := &LineupCandidate{
		// qb1, wr1, wr2, wr3, rb1, rb2, def1
		Selected:   []int{0, 2, 3, 4, 5, 6, 9},
		CaptainIdx: 0,
		TotalScore: 107.0,
	}

	result, err := FormatLineup(pool, candidate, 70000, 7)
	require.NoError(t, err)

	assert.Len(t, result.Players, 7)
	assert.Equal(t, 58000, result.TotalSalary)
	assert.Equal(t, 70000, result.SalaryCap)
	assert.Equal(t, 12000, result.RemainingCap)
	assert.Equal(t, "qb1", result.CaptainID)
	assert.InDelta(t, 20.0, result.CaptainBonusPoints, 1e-9)
	assert.InDelta(t, 107.0, result.ProjectedPoints, 1e-9)
	assert.NotEmpty(t, result.ID)

	captains := 0
	for _, p := range result.Players {
		if p.IsCaptain {
			captains++
			assert.Equal(t, "qb1", p.ID)
		}
	}
	assert.Equal(t, 1, captains)
}

func TestFormatLineup_NoCaptain(t *testing.T) {
	pool := testPool()
	candidate := &LineupCandidate{
		Selected:   []int{0, 2, 3, 4, 5, 6, 9},
		CaptainIdx: -1,
		TotalScore: 87.0,
	}

	result, err := FormatLineup(pool, candidate, 70000, 7)
	require.NoError(t, err)

	assert.Empty(t, result.CaptainID)
	assert.Zero(t, result.CaptainBonusPoints)
	assert.InDelta(t, 87.0, result.ProjectedPoints, 1e-9)
}

func TestFormatLineup_Malformed(t *testing.T) {
	pool := testPool()

	tests := []struct {
		name      string
		candidate *LineupCandidate
		salaryCap int
	}{
		{
			name:      "nil candidate",
			candidate: nil,
			salaryCap: 70000,
		},
		{
			name: "wrong roster size",
			candidate: &LineupCandidate{
				Selected:   []int{0, 2, 3},
				CaptainIdx: -1,
			},
			salaryCap: 70000,
		},
		{
			name: "index outside pool",
			candidate: &LineupCandidate{
				Selected:   []int{0, 2, 3, 4, 5, 6, 42},
				CaptainIdx: -1,
			},
			salaryCap: 70000,
		},
		{
			name: "captain is a defense",
			candidate: &LineupCandidate{
				Selected:   []int{0, 2, 3, 4, 5, 6, 9},
				CaptainIdx: 9,
			},
			salaryCap: 70000,
		},
		{
			name: "captain not selected",
			candidate: &LineupCandidate{
				Selected:   []int{0, 2, 3, 4, 5, 6, 9},
				CaptainIdx: 1,
			},
			salaryCap: 70000,
		},
		{
			name: "over the cap",
			candidate: &LineupCandidate{
				Selected:   []int{0, 2, 3, 4, 5, 6, 9},
				CaptainIdx: -1,
			},
			salaryCap: 50000,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := FormatLineup(pool, tt.candidate, tt.salaryCap, 7)
			assert.ErrorIs(t, err, ErrMalformedLineup)
		})
	}
}

func TestFormatLineup_EmptyPlayerID(t *testing.T) {
	pool := testPool()
	pool[2].ID = ""

	candidate := &LineupCandidate{
		Selected:   []int{0, 2, 3, 4, 5, 6, 9},
		CaptainIdx: -1,
	}

	_, err := FormatLineup(pool, candidate, 70000, 7)
	assert.ErrorIs(t, err, ErrMalformedLineup)
}
