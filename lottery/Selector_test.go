package lottery

import (
	"testing"
	"time"

	"github.com/bigfishlaker/points-lotto/model"

	"github.com/stretchr/testify/assert"
)

func TestSelectWinnerDeterministic(t *testing.T) {
	a := assert.New(t)
	qualified := []model.Candidate{
		{Username: "carol", TotalPoints: 300, Gain: 12},
		{Username: "alice", TotalPoints: 150, Gain: 5},
		{Username: "bob", TotalPoints: 90, Gain: 3},
	}
	fetchedAt := time.Date(2026, 8, 29, 0, 5, 12, 0, time.UTC)

	first, err := SelectWinner(qualified, "2026-08-29", fetchedAt)
	a.NoError(err)
	second, err := SelectWinner(qualified, "2026-08-29", fetchedAt)
	a.NoError(err)

	a.Equal(first.Winner.Username, second.Winner.Username)
	a.Equal(first.RandomSeed, second.RandomSeed)
	a.Equal(first.SelectionHash, second.SelectionHash)
	a.Equal(3, first.TotalEligible)
	a.Len(first.SelectionHash, 16)
	a.GreaterOrEqual(first.RandomSeed, int64(0))
	a.Less(first.RandomSeed, int64(1000000))
}

func TestSelectWinnerInputOrderIrrelevant(t *testing.T) {
	a := assert.New(t)
	fetchedAt := time.Date(2026, 8, 29, 0, 5, 12, 0, time.UTC)
	forward := []model.Candidate{
		{Username: "alice", TotalPoints: 150, Gain: 5},
		{Username: "bob", TotalPoints: 90, Gain: 3},
		{Username: "carol", TotalPoints: 300, Gain: 12},
	}
	reversed := []model.Candidate{forward[2], forward[1], forward[0]}

	fromForward, err := SelectWinner(forward, "2026-08-29", fetchedAt)
	a.NoError(err)
	fromReversed, err := SelectWinner(reversed, "2026-08-29", fetchedAt)
	a.NoError(err)

	a.Equal(fromForward.Winner.Username, fromReversed.Winner.Username)
	a.Equal(fromForward.SelectionHash, fromReversed.SelectionHash)
	// The caller's slice must stay untouched.
	a.Equal("carol", reversed[0].Username)
}

func TestSelectWinnerSeedMaterial(t *testing.T) {
	a := assert.New(t)
	qualified := []model.Candidate{
		{Username: "alice", TotalPoints: 150, Gain: 5},
		{Username: "bob", TotalPoints: 90, Gain: 3},
	}
	fetchedAt := time.Date(2026, 8, 29, 0, 5, 12, 0, time.UTC)

	selection, err := SelectWinner(qualified, "2026-08-29", fetchedAt)
	a.NoError(err)
	a.Equal("2026-08-292026-08-29T00:05:122", selection.SeedMaterial)
}

func TestSelectWinnerDifferentDatesDiffer(t *testing.T) {
	a := assert.New(t)
	qualified := []model.Candidate{
		{Username: "alice", TotalPoints: 150, Gain: 5},
		{Username: "bob", TotalPoints: 90, Gain: 3},
	}
	fetchedAt := time.Date(2026, 8, 29, 0, 5, 12, 0, time.UTC)

	first, err := SelectWinner(qualified, "2026-08-29", fetchedAt)
	a.NoError(err)
	second, err := SelectWinner(qualified, "2026-08-30", fetchedAt)
	a.NoError(err)
	a.NotEqual(first.SeedMaterial, second.SeedMaterial)
	a.NotEqual(first.SelectionHash, second.SelectionHash)
}

func TestSelectWinnerSingleCandidate(t *testing.T) {
	a := assert.New(t)
	qualified := []model.Candidate{{Username: "only_one", TotalPoints: 7, Gain: 7}}

	selection, err := SelectWinner(qualified, "2026-08-29", time.Date(2026, 8, 29, 0, 5, 0, 0, time.UTC))
	a.NoError(err)
	a.Equal("only_one", selection.Winner.Username)
	a.Equal(1, selection.TotalEligible)
}

func TestQualifyAndSelectFlow(t *testing.T) {
	a := assert.New(t)
	reference := &Reference{Entries: map[string]int64{"alice": 50, "bob": 0}}
	current := map[string]int64{"alice": 51, "bob": 0, "carol": 3}

	qualified := ComputeQualified(current, reference)
	gains := candidateGains(qualified)
	a.Len(qualified, 2)
	a.Equal(int64(1), gains["alice"])
	a.Equal(int64(3), gains["carol"])
	a.NotContains(gains, "bob")

	fetchedAt := time.Date(2025, 10, 31, 5, 5, 0, 0, time.UTC)
	selection, err := SelectWinner(qualified, "2025-10-31", fetchedAt)
	a.NoError(err)
	a.Equal("2025-10-312025-10-31T05:05:002", selection.SeedMaterial)
	a.Equal(2, selection.TotalEligible)
	a.Contains([]string{"alice", "carol"}, selection.Winner.Username)

	replay, err := SelectWinner(qualified, "2025-10-31", fetchedAt)
	a.NoError(err)
	a.Equal(selection.Winner.Username, replay.Winner.Username)
	a.Equal(selection.SelectionHash, replay.SelectionHash)
}

func TestSelectWinnerEmptySet(t *testing.T) {
	a := assert.New(t)
	selection, err := SelectWinner(nil, "2026-08-29", time.Now())
	a.Nil(selection)
	a.ErrorIs(err, ErrNoQualifiedCandidates)
}
