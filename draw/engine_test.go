package draw

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/solarchallenge/draw-server/models"
)

func TestRecordResultUnknownRace(t *testing.T) {
	br, err := NewBracketBuilder().Build(1, []int{10, 20})
	require.NoError(t, err)
	assert.ErrorIs(t, br.RecordResult(99, 10), ErrMatchNotFound)
}

func TestRecordResultPendingMatch(t *testing.T) {
	br, err := NewBracketBuilder().Build(1, []int{10, 20, 30, 40})
	require.NoError(t, err)

	// The winners final has no seeds yet.
	var winnersFinal *models.BracketMatch
	for _, m := range br.Matches {
		if m.Side == models.BracketWinners && m.Round == 1 {
			winnersFinal = m
		}
	}
	require.NotNil(t, winnersFinal)
	require.Equal(t, models.MatchPending, winnersFinal.State)
	assert.ErrorIs(t, br.RecordResult(winnersFinal.RaceNumber, 10), ErrInvalidTransition)
}

func TestRecordResultUnknownSeed(t *testing.T) {
	br, err := NewBracketBuilder().Build(1, []int{10, 20})
	require.NoError(t, err)
	assert.ErrorIs(t, br.RecordResult(1, 77), ErrUnknownSeed)
}

func TestRecordResultTwiceRejected(t *testing.T) {
	br, err := NewBracketBuilder().Build(1, []int{10, 20, 30, 40})
	require.NoError(t, err)
	require.NoError(t, br.RecordResult(1, 10))
	assert.ErrorIs(t, br.RecordResult(1, 40), ErrInvalidTransition)
}

// Full four-car playthrough where the winners-bracket champion takes the
// grand final outright.
func TestFourCarPlaythroughWinnersChampion(t *testing.T) {
	br, err := NewBracketBuilder().Build(1, []int{10, 20, 30, 40})
	require.NoError(t, err)

	require.NoError(t, br.RecordResult(1, 10)) // 10 over 40
	require.NoError(t, br.RecordResult(2, 20)) // 20 over 30
	require.NoError(t, br.RecordResult(3, 40)) // losers: 40 over 30
	assert.True(t, br.Eliminated(30), "second loss eliminates")
	require.NoError(t, br.RecordResult(4, 10)) // winners final: 10 over 20
	assert.False(t, br.Eliminated(20), "one loss does not eliminate")
	require.NoError(t, br.RecordResult(5, 20)) // losers final: 20 over 40
	assert.True(t, br.Eliminated(40))
	assert.False(t, br.Complete())

	require.NoError(t, br.RecordResult(6, 10)) // grand final: 10 over 20
	require.True(t, br.Complete())

	podium := br.Podium()
	require.NotNil(t, podium.First)
	assert.Equal(t, 10, *podium.First)
	assert.Equal(t, 20, *podium.Second)
	assert.Equal(t, 40, *podium.Third)
	assert.Equal(t, 30, *podium.Fourth)
	assert.Empty(t, br.ScheduledRaces(), "no decider when the undefeated car wins")
}

// When the losers-bracket champion wins the grand final both cars stand at
// one loss, forcing the decider.
func TestFourCarPlaythroughDecider(t *testing.T) {
	br, err := NewBracketBuilder().Build(1, []int{10, 20, 30, 40})
	require.NoError(t, err)

	require.NoError(t, br.RecordResult(1, 10))
	require.NoError(t, br.RecordResult(2, 20))
	require.NoError(t, br.RecordResult(3, 40))
	require.NoError(t, br.RecordResult(4, 10))
	require.NoError(t, br.RecordResult(5, 20))

	require.NoError(t, br.RecordResult(6, 20)) // losers champion wins GF
	require.False(t, br.Complete())

	scheduled := br.ScheduledRaces()
	require.Len(t, scheduled, 1)
	decider := scheduled[0]
	assert.Equal(t, models.BracketFinal, decider.Side)
	assert.True(t, decider.HasCar(10))
	assert.True(t, decider.HasCar(20))

	require.NoError(t, br.RecordResult(decider.RaceNumber, 20))
	require.True(t, br.Complete())
	podium := br.Podium()
	assert.Equal(t, 20, *podium.First)
	assert.Equal(t, 10, *podium.Second)
}

func TestByeCascadeThreeSeeds(t *testing.T) {
	// Three seeds pad to four: seed 1 sits the first round out and its losers
	// bracket slot is a bye as well.
	br, err := NewBracketBuilder().Build(1, []int{10, 20, 30})
	require.NoError(t, err)

	scheduled := br.ScheduledRaces()
	require.Len(t, scheduled, 1)
	first := scheduled[0]
	assert.True(t, first.HasCar(20))
	assert.True(t, first.HasCar(30))

	require.NoError(t, br.RecordResult(first.RaceNumber, 20)) // 20 over 30
	// Winners final 10 vs 20 becomes runnable; 30 drops past the bye straight
	// into the losers final.
	require.NoError(t, br.RecordResult(4, 10)) // winners final race
	require.False(t, br.Complete())

	scheduled = br.ScheduledRaces()
	require.Len(t, scheduled, 1)
	losersFinal := scheduled[0]
	assert.Equal(t, models.BracketLosers, losersFinal.Side)
	assert.True(t, losersFinal.HasCar(20))
	assert.True(t, losersFinal.HasCar(30))
	require.NoError(t, br.RecordResult(losersFinal.RaceNumber, 20))
	assert.True(t, br.Eliminated(30))

	scheduled = br.ScheduledRaces()
	require.Len(t, scheduled, 1)
	assert.Equal(t, models.BracketFinal, scheduled[0].Side)
	assert.True(t, scheduled[0].HasCar(10))
	assert.True(t, scheduled[0].HasCar(20))

	require.NoError(t, br.RecordResult(scheduled[0].RaceNumber, 10))
	assert.True(t, br.Complete())
	assert.Equal(t, 10, *br.Champion())
	podium := br.Podium()
	assert.Equal(t, 20, *podium.Second)
	assert.Equal(t, 30, *podium.Third)
	assert.Nil(t, podium.Fourth, "only three real entrants")
}

func TestEliminationRequiresTwoLosses(t *testing.T) {
	seeds := []int{1, 2, 3, 4, 5, 6, 7, 8}
	br, err := NewBracketBuilder().Build(1, seeds)
	require.NoError(t, err)

	losses := make(map[int]int)
	for {
		scheduled := br.ScheduledRaces()
		if len(scheduled) == 0 {
			break
		}
		m := scheduled[0]
		// Lower car id always wins, so seed 1 goes through undefeated.
		winner, loser := m.SeedA.CarID, m.SeedB.CarID
		if winner > loser {
			winner, loser = loser, winner
		}
		require.NoError(t, br.RecordResult(m.RaceNumber, winner))
		losses[loser]++

		for _, id := range seeds {
			if losses[id] >= 2 {
				assert.True(t, br.Eliminated(id), "car %d has two losses", id)
			} else {
				assert.False(t, br.Eliminated(id), "car %d eliminated early", id)
			}
		}
	}

	require.True(t, br.Complete())
	assert.Equal(t, 1, *br.Champion())
	podium := br.Podium()
	assert.Equal(t, 2, *podium.Second)
	assert.Equal(t, 3, *podium.Third)
	assert.Equal(t, 4, *podium.Fourth)
}
