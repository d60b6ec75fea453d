package draw

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/solarchallenge/draw-server/models"
)

func testEvent() *models.Event {
	return &models.Event{
		ID:    1,
		Date:  time.Date(2026, time.March, 14, 0, 0, 0, 0, time.UTC),
		Name:  "Autumn Challenge",
		Phase: models.PhaseRegistration,
	}
}

func testController(t *testing.T, carIDs ...int) *Controller {
	t.Helper()
	c := NewController(testEvent(), DefaultPolicy)
	for _, id := range carIDs {
		require.NoError(t, c.RegisterCar(&models.Car{
			CarID:             id,
			SchoolID:          id,
			Name:              "car",
			Scrutineered:      true,
			PresentRoundRobin: true,
			PresentKnockout:   true,
		}))
	}
	return c
}

// recordAllRoundRobin records every qualification race, giving each lane
// 5 minus its car id so lower ids rank higher with distinct totals.
func recordAllRoundRobin(t *testing.T, c *Controller) {
	t.Helper()
	for _, race := range c.Schedule() {
		res := RoundRobinResult{Race: race.Race}
		if race.Lane1 != nil {
			res.Lane1Points = 5 - *race.Lane1
		}
		if race.Lane2 != nil {
			res.Lane2Points = 5 - *race.Lane2
		}
		require.NoError(t, c.RecordResult(Result{Kind: ResultRoundRobin, RoundRobin: &res}))
	}
}

func TestControllerPhaseGates(t *testing.T) {
	c := testController(t, 1, 2, 3, 4)

	_, err := c.FreezeStandings()
	assert.ErrorIs(t, err, ErrInvalidPhase)
	_, err = c.BuildBracket()
	assert.ErrorIs(t, err, ErrInvalidPhase)
	err = c.RecordResult(Result{Kind: ResultRoundRobin, RoundRobin: &RoundRobinResult{Race: 1}})
	assert.ErrorIs(t, err, ErrInvalidPhase)

	_, err = c.GenerateSchedule()
	require.NoError(t, err)
	assert.Equal(t, models.PhaseRoundRobin, c.Phase())

	_, err = c.GenerateSchedule()
	assert.ErrorIs(t, err, ErrInvalidPhase, "schedule generation is one-shot")
	err = c.RecordResult(Result{Kind: ResultBracket, Bracket: &BracketResult{Race: 1, Winner: 1}})
	assert.ErrorIs(t, err, ErrInvalidPhase)
}

func TestControllerRegisterCar(t *testing.T) {
	c := testController(t, 1)

	assert.ErrorIs(t, c.RegisterCar(nil), ErrValidation)
	assert.ErrorIs(t, c.RegisterCar(&models.Car{CarID: 0}), ErrValidation)
	assert.ErrorIs(t, c.RegisterCar(&models.Car{CarID: 7, EventID: 99}), ErrValidation)
	assert.ErrorIs(t, c.RegisterCar(&models.Car{CarID: 1}), ErrDuplicateCar)

	car := &models.Car{CarID: 2, Scrutineered: true, PresentRoundRobin: true}
	require.NoError(t, c.RegisterCar(car))
	assert.Equal(t, 1, car.EventID, "event id is stamped on admission")

	_, err := c.GenerateSchedule()
	require.NoError(t, err)
	assert.ErrorIs(t, c.RegisterCar(&models.Car{CarID: 3}), ErrInvalidPhase)
}

func TestControllerWithdrawCar(t *testing.T) {
	c := testController(t, 1, 2, 3)

	assert.ErrorIs(t, c.WithdrawCar(9), ErrCarNotFound)
	require.NoError(t, c.WithdrawCar(3))

	cars := c.Cars()
	require.Len(t, cars, 3)
	assert.False(t, cars[2].PresentRoundRobin)
	assert.False(t, cars[2].PresentKnockout)
	assert.True(t, cars[2].Scrutineered, "withdrawal does not unscrutineer")

	_, err := c.GenerateSchedule()
	require.NoError(t, err)
	assert.Len(t, c.Schedule(), 1, "withdrawn car is not scheduled")
	assert.ErrorIs(t, c.WithdrawCar(2), ErrInvalidPhase)
}

func TestControllerUpdateEligibility(t *testing.T) {
	c := testController(t, 1, 2, 3, 4)

	assert.ErrorIs(t, c.UpdateEligibility(9, true, true, true), ErrCarNotFound)
	require.NoError(t, c.UpdateEligibility(4, true, false, true))
	cars := c.Cars()
	assert.False(t, cars[3].PresentRoundRobin)

	_, err := c.GenerateSchedule()
	require.NoError(t, err)

	// Once racing, only knockout presence may still move.
	assert.ErrorIs(t, c.UpdateEligibility(1, false, true, true), ErrInvalidPhase)
	assert.ErrorIs(t, c.UpdateEligibility(1, true, false, true), ErrInvalidPhase)
	require.NoError(t, c.UpdateEligibility(1, true, true, false))
	assert.False(t, c.Cars()[0].PresentKnockout)

	recordAllRoundRobin(t, c)
	_, err = c.FreezeStandings()
	require.NoError(t, err)
	assert.ErrorIs(t, c.UpdateEligibility(2, true, true, false), ErrInvalidPhase)
}

func TestControllerRecordResultValidation(t *testing.T) {
	c := testController(t, 1, 2, 3)
	_, err := c.GenerateSchedule()
	require.NoError(t, err)

	assert.ErrorIs(t, c.RecordResult(Result{Kind: ResultRoundRobin}), ErrValidation)
	assert.ErrorIs(t, c.RecordResult(Result{Kind: ResultBracket}), ErrValidation)
	assert.ErrorIs(t, c.RecordResult(Result{Kind: "freeform"}), ErrValidation)

	err = c.RecordResult(Result{Kind: ResultRoundRobin, RoundRobin: &RoundRobinResult{Race: 42, Lane1Points: 1}})
	assert.ErrorIs(t, err, ErrRaceNotFound)
	err = c.RecordResult(Result{Kind: ResultRoundRobin, RoundRobin: &RoundRobinResult{Race: 1, Lane1Points: -1}})
	assert.ErrorIs(t, err, ErrValidation)

	require.NoError(t, c.RecordResult(Result{Kind: ResultRoundRobin, RoundRobin: &RoundRobinResult{Race: 1, Lane1Points: 2, Lane2Points: 4}}))
	err = c.RecordResult(Result{Kind: ResultRoundRobin, RoundRobin: &RoundRobinResult{Race: 1, Lane1Points: 0, Lane2Points: 0}})
	assert.ErrorIs(t, err, ErrResultRecorded)
}

func TestControllerFreezeRequiresAllResults(t *testing.T) {
	c := testController(t, 1, 2, 3, 4)
	_, err := c.GenerateSchedule()
	require.NoError(t, err)

	require.NoError(t, c.RecordResult(Result{Kind: ResultRoundRobin, RoundRobin: &RoundRobinResult{Race: 1, Lane1Points: 3, Lane2Points: 1}}))
	_, err = c.FreezeStandings()
	assert.ErrorIs(t, err, ErrScheduleIncomplete)
	assert.Equal(t, models.PhaseRoundRobin, c.Phase(), "failed freeze does not advance the phase")
}

func TestControllerStandingsFrozenAreStable(t *testing.T) {
	c := testController(t, 1, 2, 3, 4)
	_, err := c.GenerateSchedule()
	require.NoError(t, err)
	recordAllRoundRobin(t, c)

	live := c.Standings()
	frozen, err := c.FreezeStandings()
	require.NoError(t, err)
	assert.Equal(t, live, frozen, "freezing captures the live ranking")
	assert.Equal(t, frozen, c.Standings(), "reads after the freeze serve the frozen copy")
	assert.Equal(t, models.PhaseStandingsFrozen, c.Phase())
}

func TestControllerFullDrawFlow(t *testing.T) {
	c := testController(t, 1, 2, 3, 4)

	races, err := c.GenerateSchedule()
	require.NoError(t, err)
	assert.Len(t, races, 6)
	recordAllRoundRobin(t, c)

	standings, err := c.FreezeStandings()
	require.NoError(t, err)
	require.Len(t, standings, 4)
	for i, st := range standings {
		assert.Equal(t, i+1, st.CarID, "lower car ids scored more points")
	}

	matches, err := c.BuildBracket()
	require.NoError(t, err)
	assert.Len(t, matches, 7)
	assert.Equal(t, models.PhaseKnockout, c.Phase())

	// Run the knockout out, lower car id winning every race.
	for {
		scheduled := c.ScheduledKnockoutRaces()
		if len(scheduled) == 0 {
			break
		}
		m := scheduled[0]
		winner := m.SeedA.CarID
		if m.SeedB.CarID < winner {
			winner = m.SeedB.CarID
		}
		require.NoError(t, c.RecordResult(Result{
			Kind:    ResultBracket,
			Bracket: &BracketResult{Race: m.RaceNumber, Winner: winner},
		}))
	}

	assert.Equal(t, models.PhaseComplete, c.Phase())
	assert.Equal(t, models.PhaseComplete, c.Event().Phase)
	podium := c.Podium()
	require.NotNil(t, podium.First)
	assert.Equal(t, 1, *podium.First)
	assert.Equal(t, 2, *podium.Second)
	assert.Equal(t, 3, *podium.Third)
	assert.Equal(t, 4, *podium.Fourth)
}

func TestControllerBuildBracketSkipsWithdrawnCars(t *testing.T) {
	c := testController(t, 1, 2, 3, 4)
	_, err := c.GenerateSchedule()
	require.NoError(t, err)
	require.NoError(t, c.UpdateEligibility(2, true, true, false))
	recordAllRoundRobin(t, c)
	_, err = c.FreezeStandings()
	require.NoError(t, err)

	matches, err := c.BuildBracket()
	require.NoError(t, err)
	for _, m := range matches {
		assert.False(t, m.HasCar(2), "withdrawn car must not be seeded")
	}
}

func TestRestoreControllerRoundTrip(t *testing.T) {
	c := testController(t, 1, 2, 3, 4)
	_, err := c.GenerateSchedule()
	require.NoError(t, err)
	recordAllRoundRobin(t, c)
	_, err = c.FreezeStandings()
	require.NoError(t, err)
	_, err = c.BuildBracket()
	require.NoError(t, err)

	first := c.ScheduledKnockoutRaces()[0]
	winner := first.SeedA.CarID
	require.NoError(t, c.RecordResult(Result{
		Kind:    ResultBracket,
		Bracket: &BracketResult{Race: first.RaceNumber, Winner: winner},
	}))

	// Persisted state is what the repositories would hand back.
	ev := c.Event()
	var cars []*models.Car
	for _, car := range c.Cars() {
		cp := car
		cars = append(cars, &cp)
	}
	var races []*models.RoundRobinRace
	for _, race := range c.Schedule() {
		cp := race
		races = append(races, &cp)
	}
	var matches []*models.BracketMatch
	for _, m := range c.BracketView() {
		cp := m
		matches = append(matches, &cp)
	}

	restored, err := RestoreController(&ev, cars, races, matches, DefaultPolicy)
	require.NoError(t, err)

	assert.Equal(t, c.Phase(), restored.Phase())
	assert.Equal(t, c.Standings(), restored.Standings())
	assert.Equal(t, c.Schedule(), restored.Schedule())
	assert.Equal(t, c.BracketView(), restored.BracketView())
	assert.Equal(t, c.ScheduledKnockoutRaces(), restored.ScheduledKnockoutRaces())
	assert.Equal(t, c.PlayOrder(), restored.PlayOrder())
}

func TestRestoreControllerRejectsBadState(t *testing.T) {
	ev := testEvent()
	car := &models.Car{EventID: 1, CarID: 1}

	_, err := RestoreController(ev, []*models.Car{car, car}, nil, nil, DefaultPolicy)
	assert.ErrorIs(t, err, ErrDuplicateCar)

	stray := &models.RoundRobinRace{EventID: 2, Race: 1}
	_, err = RestoreController(ev, nil, []*models.RoundRobinRace{stray}, nil, DefaultPolicy)
	assert.ErrorIs(t, err, ErrValidation)
}
