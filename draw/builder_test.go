package draw

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/solarchallenge/draw-server/models"
)

func TestBuildRejectsTooFewSeeds(t *testing.T) {
	_, err := NewBracketBuilder().Build(1, nil)
	assert.ErrorIs(t, err, ErrInsufficientSeeds)
	_, err = NewBracketBuilder().Build(1, []int{42})
	assert.ErrorIs(t, err, ErrInsufficientSeeds)
}

func TestBuildTwoSeeds(t *testing.T) {
	br, err := NewBracketBuilder().Build(1, []int{10, 20})
	require.NoError(t, err)

	// One winners match, no losers bracket, grand final and decider.
	require.Len(t, br.Matches, 3)
	w0 := br.Matches[0]
	assert.Equal(t, models.BracketWinners, w0.Side)
	assert.Equal(t, models.MatchScheduled, w0.State)
	assert.Equal(t, 10, w0.SeedA.CarID)
	assert.Equal(t, 20, w0.SeedB.CarID)

	// Loser of the only winners match goes straight to the grand final.
	assert.Equal(t, br.Matches[1].Index, w0.LoserTo)
	assert.Equal(t, 2, w0.LoserToSlot)
	assert.Equal(t, []string{"P1", "GF"}, br.PlayOrder())
}

func TestBuildFiveSeedsPadsWithByes(t *testing.T) {
	br, err := NewBracketBuilder().Build(1, []int{1, 2, 3, 4, 5})
	require.NoError(t, err)

	firstRound := make([]*models.BracketMatch, 0, 4)
	byeMatches := 0
	for _, m := range br.Matches {
		if m.Side == models.BracketWinners && m.Round == 0 {
			firstRound = append(firstRound, m)
			if m.IsByeMatch() {
				byeMatches++
				assert.Equal(t, models.MatchResolved, m.State, "bye matches resolve without a race")
			}
		}
	}
	require.Len(t, firstRound, 4)
	assert.Equal(t, 3, byeMatches)

	// Top two seeds start in different halves of the draw.
	var seed1Match, seed2Match *models.BracketMatch
	for _, m := range firstRound {
		if m.HasCar(1) {
			seed1Match = m
		}
		if m.HasCar(2) {
			seed2Match = m
		}
	}
	require.NotNil(t, seed1Match)
	require.NotNil(t, seed2Match)
	assert.NotEqual(t, seed1Match.Index, seed2Match.Index)
	assert.NotEqual(t, seed1Match.Slot/2, seed2Match.Slot/2)
}

func TestBuildSeedPairsSumConstant(t *testing.T) {
	br, err := NewBracketBuilder().Build(1, []int{1, 2, 3, 4, 5, 6, 7, 8})
	require.NoError(t, err)

	for _, m := range br.Matches {
		if m.Side != models.BracketWinners || m.Round != 0 {
			continue
		}
		require.True(t, m.SeedA.IsCar())
		require.True(t, m.SeedB.IsCar())
		// Standard seeding: every first-round pairing sums to size+1.
		assert.Equal(t, 9, m.SeedA.CarID+m.SeedB.CarID)
	}
}

func TestBuildRaceNumbersContiguousInPlayOrder(t *testing.T) {
	for _, k := range []int{2, 3, 5, 8, 11} {
		seeds := make([]int, k)
		for i := range seeds {
			seeds[i] = (i + 1) * 10
		}
		br, err := NewBracketBuilder().Build(1, seeds)
		require.NoError(t, err)

		numbers := make(map[int]bool, len(br.Matches))
		for _, m := range br.Matches {
			assert.False(t, numbers[m.RaceNumber], "race number %d reused", m.RaceNumber)
			numbers[m.RaceNumber] = true
		}
		for n := 1; n <= len(br.Matches); n++ {
			assert.True(t, numbers[n], "race number %d missing with %d seeds", n, k)
		}
	}
}

func TestBuildPlayOrderEight(t *testing.T) {
	br, err := NewBracketBuilder().Build(1, []int{1, 2, 3, 4, 5, 6, 7, 8})
	require.NoError(t, err)
	assert.Equal(t, []string{"P1", "SC1", "P2", "SC2", "SC3", "P3", "SC4", "GF"}, br.PlayOrder())
}

func TestRestoreBracketRoundTrip(t *testing.T) {
	br, err := NewBracketBuilder().Build(3, []int{10, 20, 30, 40})
	require.NoError(t, err)
	require.NoError(t, br.RecordResult(1, 10))
	require.NoError(t, br.RecordResult(2, 20))

	snapshot := br.Snapshot()
	stored := make([]*models.BracketMatch, len(snapshot))
	for i := range snapshot {
		stored[i] = &snapshot[i]
	}

	restored, err := RestoreBracket(3, stored)
	require.NoError(t, err)
	assert.Equal(t, br.Snapshot(), restored.Snapshot())

	// The restored draw keeps accepting results exactly where the original
	// left off.
	originalNext := br.ScheduledRaces()
	restoredNext := restored.ScheduledRaces()
	require.Equal(t, len(originalNext), len(restoredNext))
	for i := range originalNext {
		assert.Equal(t, originalNext[i].RaceNumber, restoredNext[i].RaceNumber)
	}
}

func TestRestoreBracketRejectsGaps(t *testing.T) {
	br, err := NewBracketBuilder().Build(1, []int{10, 20, 30, 40})
	require.NoError(t, err)
	snapshot := br.Snapshot()
	stored := make([]*models.BracketMatch, 0, len(snapshot)-1)
	for i := range snapshot {
		if i == 2 {
			continue
		}
		stored = append(stored, &snapshot[i])
	}

	_, err = RestoreBracket(1, stored)
	assert.ErrorIs(t, err, ErrValidation)
}
