package draw

import (
	"fmt"
	"sort"
	"sync"

	"github.com/solarchallenge/draw-server/models"
)

// legalTransitions is the explicit phase table. Phases only ever move
// forward; any operation whose phase requirement does not match the current
// phase fails with ErrInvalidPhase rather than being reordered.
var legalTransitions = map[models.Phase]models.Phase{
	models.PhaseRegistration:    models.PhaseRoundRobin,
	models.PhaseRoundRobin:      models.PhaseStandingsFrozen,
	models.PhaseStandingsFrozen: models.PhaseKnockout,
	models.PhaseKnockout:        models.PhaseComplete,
}

// ResultKind tags the single result-recording entry point.
type ResultKind string

const (
	ResultRoundRobin ResultKind = "round_robin"
	ResultBracket    ResultKind = "bracket"
)

// RoundRobinResult carries the lane points of one qualification race.
type RoundRobinResult struct {
	Race        int `json:"race"`
	Lane1Points int `json:"car_lane_1_points"`
	Lane2Points int `json:"car_lane_2_points"`
}

// BracketResult names the winner of one knockout race.
type BracketResult struct {
	Race   int `json:"race"`
	Winner int `json:"winner"`
}

// Result is the tagged variant consumed by Controller.RecordResult.
type Result struct {
	Kind       ResultKind        `json:"kind"`
	RoundRobin *RoundRobinResult `json:"round_robin,omitempty"`
	Bracket    *BracketResult    `json:"bracket,omitempty"`
}

// Controller owns the authoritative draw state of one event and is its sole
// mutator. All mutating operations serialize behind the lock; reads return
// snapshots so they never observe a partial update.
type Controller struct {
	mu sync.RWMutex

	event      *models.Event
	policy     Policy
	scheduler  *RoundRobinScheduler
	calculator *StandingsCalculator
	builder    *BracketBuilder

	phase        models.Phase
	cars         map[int]*models.Car
	races        []*models.RoundRobinRace
	raceByNumber map[int]*models.RoundRobinRace
	frozen       []models.Standing
	bracket      *Bracket
}

func NewController(event *models.Event, policy Policy) *Controller {
	return &Controller{
		event:        event,
		policy:       policy,
		scheduler:    NewRoundRobinScheduler(),
		calculator:   NewStandingsCalculator(policy),
		builder:      NewBracketBuilder(),
		phase:        models.PhaseRegistration,
		cars:         make(map[int]*models.Car),
		raceByNumber: make(map[int]*models.RoundRobinRace),
	}
}

// RestoreController rebuilds a controller from persisted state so an event
// survives a process restart in any phase.
func RestoreController(event *models.Event, cars []*models.Car, races []*models.RoundRobinRace, bracketMatches []*models.BracketMatch, policy Policy) (*Controller, error) {
	c := NewController(event, policy)
	if event.Phase != "" {
		c.phase = event.Phase
	}
	for _, car := range cars {
		if _, ok := c.cars[car.CarID]; ok {
			return nil, fmt.Errorf("restoring event %d: car %d stored twice: %w", event.ID, car.CarID, ErrDuplicateCar)
		}
		c.cars[car.CarID] = car
	}
	for _, race := range races {
		if err := race.Validate(event.ID); err != nil {
			return nil, fmt.Errorf("%v: %w", err, ErrValidation)
		}
		c.races = append(c.races, race)
		c.raceByNumber[race.Race] = race
	}
	sort.Slice(c.races, func(i, j int) bool { return c.races[i].Race < c.races[j].Race })

	switch c.phase {
	case models.PhaseStandingsFrozen, models.PhaseKnockout, models.PhaseComplete:
		c.frozen = c.calculator.Standings(c.roundRobinCars(), c.races)
	}
	if len(bracketMatches) > 0 {
		br, err := RestoreBracket(event.ID, bracketMatches)
		if err != nil {
			return nil, err
		}
		c.bracket = br
	}
	return c, nil
}

// Phase returns the current draw phase.
func (c *Controller) Phase() models.Phase {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.phase
}

func (c *Controller) transition(to models.Phase) error {
	if legalTransitions[c.phase] != to {
		return fmt.Errorf("no transition from %s to %s: %w", c.phase, to, ErrInvalidTransition)
	}
	c.phase = to
	c.event.Phase = to
	return nil
}

func (c *Controller) requirePhase(p models.Phase) error {
	if c.phase != p {
		return fmt.Errorf("operation requires phase %s, event is in %s: %w", p, c.phase, ErrInvalidPhase)
	}
	return nil
}

// RegisterCar admits a car to the entry registry. Legal only during
// registration.
func (c *Controller) RegisterCar(car *models.Car) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.requirePhase(models.PhaseRegistration); err != nil {
		return err
	}
	if car == nil || car.CarID <= 0 {
		return fmt.Errorf("car id must be positive: %w", ErrValidation)
	}
	if car.EventID != 0 && car.EventID != c.event.ID {
		return fmt.Errorf("car %d belongs to event %d: %w", car.CarID, car.EventID, ErrValidation)
	}
	if _, ok := c.cars[car.CarID]; ok {
		return fmt.Errorf("car %d: %w", car.CarID, ErrDuplicateCar)
	}
	car.EventID = c.event.ID
	c.cars[car.CarID] = car
	return nil
}

// WithdrawCar flips a car's presence flags to false; the row itself is never
// deleted. Legal only during registration (later withdrawal is eligibility).
func (c *Controller) WithdrawCar(carID int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.requirePhase(models.PhaseRegistration); err != nil {
		return err
	}
	car, ok := c.cars[carID]
	if !ok {
		return fmt.Errorf("car %d: %w", carID, ErrCarNotFound)
	}
	car.PresentRoundRobin = false
	car.PresentKnockout = false
	return nil
}

// UpdateEligibility adjusts a car's flags. All flags are mutable during
// registration; once the round robin is underway only knockout presence may
// still change (a car can withdraw from, or be cleared for, the knockout up
// to the moment standings freeze).
func (c *Controller) UpdateEligibility(carID int, scrutineered, presentRoundRobin, presentKnockout bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	car, ok := c.cars[carID]
	if !ok {
		return fmt.Errorf("car %d: %w", carID, ErrCarNotFound)
	}
	switch c.phase {
	case models.PhaseRegistration:
		car.Scrutineered = scrutineered
		car.PresentRoundRobin = presentRoundRobin
		car.PresentKnockout = presentKnockout
		return nil
	case models.PhaseRoundRobin:
		if scrutineered != car.Scrutineered || presentRoundRobin != car.PresentRoundRobin {
			return fmt.Errorf("only knockout presence may change after scheduling: %w", ErrInvalidPhase)
		}
		car.PresentKnockout = presentKnockout
		return nil
	default:
		return fmt.Errorf("eligibility is locked in phase %s: %w", c.phase, ErrInvalidPhase)
	}
}

// Cars returns all registered cars in id order.
func (c *Controller) Cars() []models.Car {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]models.Car, 0, len(c.cars))
	for _, car := range c.cars {
		out = append(out, *car)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CarID < out[j].CarID })
	return out
}

func (c *Controller) roundRobinCars() []*models.Car {
	var out []*models.Car
	for _, car := range c.cars {
		if car.EligibleRoundRobin() {
			out = append(out, car)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CarID < out[j].CarID })
	return out
}

// GenerateSchedule builds the round-robin schedule and opens the
// qualification phase. Legal exactly once, from registration.
func (c *Controller) GenerateSchedule() ([]models.RoundRobinRace, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.requirePhase(models.PhaseRegistration); err != nil {
		return nil, err
	}
	races, err := c.scheduler.Schedule(c.event.ID, c.roundRobinCars())
	if err != nil {
		return nil, err
	}
	c.races = races
	c.raceByNumber = make(map[int]*models.RoundRobinRace, len(races))
	for _, race := range races {
		c.raceByNumber[race.Race] = race
	}
	if err := c.transition(models.PhaseRoundRobin); err != nil {
		return nil, err
	}
	return c.scheduleLocked(), nil
}

// Schedule returns a snapshot of the round-robin races.
func (c *Controller) Schedule() []models.RoundRobinRace {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.scheduleLocked()
}

func (c *Controller) scheduleLocked() []models.RoundRobinRace {
	out := make([]models.RoundRobinRace, len(c.races))
	for i, race := range c.races {
		out[i] = *race
	}
	return out
}

// RecordResult is the single result-recording entry point, dispatched by the
// variant tag. Round-robin results are legal only during the round robin,
// bracket results only during the knockout.
func (c *Controller) RecordResult(res Result) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	switch res.Kind {
	case ResultRoundRobin:
		if res.RoundRobin == nil {
			return fmt.Errorf("round-robin result payload missing: %w", ErrValidation)
		}
		if err := c.requirePhase(models.PhaseRoundRobin); err != nil {
			return err
		}
		return c.recordRoundRobin(res.RoundRobin)
	case ResultBracket:
		if res.Bracket == nil {
			return fmt.Errorf("bracket result payload missing: %w", ErrValidation)
		}
		if err := c.requirePhase(models.PhaseKnockout); err != nil {
			return err
		}
		return c.recordBracket(res.Bracket)
	default:
		return fmt.Errorf("unknown result kind %q: %w", res.Kind, ErrValidation)
	}
}

func (c *Controller) recordRoundRobin(res *RoundRobinResult) error {
	race, ok := c.raceByNumber[res.Race]
	if !ok {
		return fmt.Errorf("race %d: %w", res.Race, ErrRaceNotFound)
	}
	if race.Recorded() {
		return fmt.Errorf("race %d: %w", res.Race, ErrResultRecorded)
	}
	if res.Lane1Points < 0 || res.Lane2Points < 0 {
		return fmt.Errorf("lane points must not be negative: %w", ErrValidation)
	}
	l1, l2 := res.Lane1Points, res.Lane2Points
	race.Lane1Points = &l1
	race.Lane2Points = &l2
	return nil
}

func (c *Controller) recordBracket(res *BracketResult) error {
	if c.bracket == nil {
		return fmt.Errorf("no bracket built: %w", ErrMatchNotFound)
	}
	if err := c.bracket.RecordResult(res.Race, res.Winner); err != nil {
		return err
	}
	if c.bracket.Complete() {
		if err := c.transition(models.PhaseComplete); err != nil {
			return err
		}
	}
	return nil
}

// Standings returns the current ranking: the frozen one once standings have
// been frozen, otherwise a live recomputation over the recorded races.
func (c *Controller) Standings() []models.Standing {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.frozen != nil {
		return append([]models.Standing(nil), c.frozen...)
	}
	return c.calculator.Standings(c.roundRobinCars(), c.races)
}

// FreezeStandings closes the qualification phase. Every scheduled race must
// have a recorded result first; partially raced standings are not a fair
// seeding basis.
func (c *Controller) FreezeStandings() ([]models.Standing, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.requirePhase(models.PhaseRoundRobin); err != nil {
		return nil, err
	}
	for _, race := range c.races {
		if !race.Recorded() {
			return nil, fmt.Errorf("race %d has no result: %w", race.Race, ErrScheduleIncomplete)
		}
	}
	frozen := c.calculator.Standings(c.roundRobinCars(), c.races)
	if err := c.transition(models.PhaseStandingsFrozen); err != nil {
		return nil, err
	}
	c.frozen = frozen
	return append([]models.Standing(nil), frozen...), nil
}

// BuildBracket seeds the knockout from the frozen standings, restricted to
// cars present for the knockout, and opens the knockout phase.
func (c *Controller) BuildBracket() ([]models.BracketMatch, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.requirePhase(models.PhaseStandingsFrozen); err != nil {
		return nil, err
	}
	var seeds []int
	for _, st := range c.frozen {
		if car, ok := c.cars[st.CarID]; ok && car.EligibleKnockout() {
			seeds = append(seeds, st.CarID)
		}
	}
	bracket, err := c.builder.Build(c.event.ID, seeds)
	if err != nil {
		return nil, err
	}
	if err := c.transition(models.PhaseKnockout); err != nil {
		return nil, err
	}
	c.bracket = bracket
	return bracket.Snapshot(), nil
}

// BracketView returns a snapshot of the knockout matches.
func (c *Controller) BracketView() []models.BracketMatch {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.bracket == nil {
		return nil
	}
	return c.bracket.Snapshot()
}

// ScheduledKnockoutRaces lists the knockout races ready to run.
func (c *Controller) ScheduledKnockoutRaces() []models.BracketMatch {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.bracket == nil {
		return nil
	}
	matches := c.bracket.ScheduledRaces()
	out := make([]models.BracketMatch, len(matches))
	for i, m := range matches {
		out[i] = *m
	}
	return out
}

// PlayOrder returns the knockout round labels in running order.
func (c *Controller) PlayOrder() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.bracket == nil {
		return nil
	}
	return c.bracket.PlayOrder()
}

// Podium returns the placings decided so far.
func (c *Controller) Podium() Podium {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.bracket == nil {
		return Podium{}
	}
	return c.bracket.Podium()
}

// Event returns a copy of the event row including the current phase.
func (c *Controller) Event() models.Event {
	c.mu.RLock()
	defer c.mu.RUnlock()
	ev := *c.event
	ev.Phase = c.phase
	return ev
}
