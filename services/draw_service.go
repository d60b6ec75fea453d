package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/solarchallenge/draw-server/draw"
	"github.com/solarchallenge/draw-server/models"
	"github.com/solarchallenge/draw-server/repositories"
)

// DrawService orchestrates the draw of every event: one in-memory controller
// per event is the authority, the repositories keep a durable copy so the
// controller can be rebuilt after a restart.
type DrawService interface {
	CreateEvent(ctx context.Context, name string, date time.Time) (*models.Event, error)
	ListEvents(ctx context.Context) ([]models.Event, error)
	GetEvent(ctx context.Context, eventID int) (*models.Event, error)
	FullDraw(ctx context.Context, eventID int) (*models.Event, error)
	DeleteEvent(ctx context.Context, eventID int) error

	RegisterCar(ctx context.Context, eventID int, row models.RosterRow) (*models.Car, error)
	RegisterCars(ctx context.Context, eventID int, rows []models.RosterRow) ([]*models.Car, error)
	WithdrawCar(ctx context.Context, eventID, carID int) error
	UpdateEligibility(ctx context.Context, eventID, carID int, scrutineered, presentRoundRobin, presentKnockout bool) error
	Cars(ctx context.Context, eventID int) ([]models.Car, error)

	GenerateSchedule(ctx context.Context, eventID int) ([]models.RoundRobinRace, error)
	Schedule(ctx context.Context, eventID int) ([]models.RoundRobinRace, error)
	RecordResult(ctx context.Context, eventID int, result draw.Result) error
	Standings(ctx context.Context, eventID int) ([]models.Standing, error)
	FreezeStandings(ctx context.Context, eventID int) ([]models.Standing, error)

	BuildBracket(ctx context.Context, eventID int) ([]models.BracketMatch, error)
	BracketView(ctx context.Context, eventID int) ([]models.BracketMatch, error)
	ScheduledKnockoutRaces(ctx context.Context, eventID int) ([]models.BracketMatch, error)
	PlayOrder(ctx context.Context, eventID int) ([]string, error)
	Podium(ctx context.Context, eventID int) (draw.Podium, error)

	Invalidate(eventID int)
}

type drawService struct {
	db          *sql.DB
	eventRepo   repositories.EventRepository
	carRepo     repositories.CarRepository
	raceRepo    repositories.RaceRepository
	bracketRepo repositories.BracketRepository
	hub         *draw.Hub
	policy      draw.Policy

	mu          sync.Mutex
	controllers map[int]*draw.Controller
	locks       map[int]*sync.Mutex
}

func NewDrawService(
	db *sql.DB,
	eventRepo repositories.EventRepository,
	carRepo repositories.CarRepository,
	raceRepo repositories.RaceRepository,
	bracketRepo repositories.BracketRepository,
	hub *draw.Hub,
	policy draw.Policy,
) DrawService {
	return &drawService{
		db:          db,
		eventRepo:   eventRepo,
		carRepo:     carRepo,
		raceRepo:    raceRepo,
		bracketRepo: bracketRepo,
		hub:         hub,
		policy:      policy,
		controllers: make(map[int]*draw.Controller),
		locks:       make(map[int]*sync.Mutex),
	}
}

// eventLock serializes the mutate-then-persist sequence per event so a later
// controller state can never be overwritten in the database by an earlier
// snapshot.
func (s *drawService) eventLock(eventID int) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.locks[eventID]
	if !ok {
		l = &sync.Mutex{}
		s.locks[eventID] = l
	}
	return l
}

func (s *drawService) CreateEvent(ctx context.Context, name string, date time.Time) (*models.Event, error) {
	if name == "" {
		return nil, ErrEventNameRequired
	}
	event := &models.Event{Name: name, Date: date, Phase: models.PhaseRegistration}
	if err := s.eventRepo.Create(ctx, event); err != nil {
		return nil, fmt.Errorf("failed to create event: %w", err)
	}
	return event, nil
}

func (s *drawService) ListEvents(ctx context.Context) ([]models.Event, error) {
	return s.eventRepo.List(ctx)
}

func (s *drawService) GetEvent(ctx context.Context, eventID int) (*models.Event, error) {
	event, err := s.eventRepo.GetByID(ctx, eventID)
	if err != nil {
		if errors.Is(err, repositories.ErrEventNotFound) {
			return nil, ErrEventNotFound
		}
		return nil, err
	}
	return event, nil
}

// FullDraw loads the event with its cars, schedule and bracket in one shot,
// fanning the queries out concurrently.
func (s *drawService) FullDraw(ctx context.Context, eventID int) (*models.Event, error) {
	event, err := s.GetEvent(ctx, eventID)
	if err != nil {
		return nil, err
	}

	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		cars, err := s.carRepo.ListByEvent(gCtx, eventID)
		if err != nil {
			log.Printf("Error fetching cars for event %d in FullDraw: %v", eventID, err)
			return fmt.Errorf("failed to fetch cars: %w", err)
		}
		event.Cars = make([]models.Car, len(cars))
		for i, car := range cars {
			event.Cars[i] = *car
		}
		return nil
	})

	g.Go(func() error {
		races, err := s.raceRepo.ListByEvent(gCtx, eventID)
		if err != nil {
			log.Printf("Error fetching races for event %d in FullDraw: %v", eventID, err)
			return fmt.Errorf("failed to fetch races: %w", err)
		}
		event.Races = make([]models.RoundRobinRace, len(races))
		for i, race := range races {
			event.Races[i] = *race
		}
		return nil
	})

	g.Go(func() error {
		matches, err := s.bracketRepo.ListByEvent(gCtx, eventID)
		if err != nil {
			log.Printf("Error fetching bracket for event %d in FullDraw: %v", eventID, err)
			return fmt.Errorf("failed to fetch bracket: %w", err)
		}
		event.Bracket = make([]models.BracketMatch, len(matches))
		for i, m := range matches {
			event.Bracket[i] = *m
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return event, nil
}

// DeleteEvent removes the event with all of its cars, races and bracket rows
// in one transaction, then drops the cached controller.
func (s *drawService) DeleteEvent(ctx context.Context, eventID int) error {
	l := s.eventLock(eventID)
	l.Lock()
	defer l.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := s.bracketRepo.DeleteByEvent(ctx, tx, eventID); err != nil {
		return fmt.Errorf("failed to delete bracket for event %d: %w", eventID, err)
	}
	if err := s.raceRepo.DeleteByEvent(ctx, tx, eventID); err != nil {
		return fmt.Errorf("failed to delete races for event %d: %w", eventID, err)
	}
	if err := s.carRepo.DeleteByEvent(ctx, tx, eventID); err != nil {
		return fmt.Errorf("failed to delete cars for event %d: %w", eventID, err)
	}
	if err := s.eventRepo.Delete(ctx, tx, eventID); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit event deletion: %w", err)
	}
	s.Invalidate(eventID)
	return nil
}

// controller returns the cached controller for the event, rebuilding it from
// the repositories on first use.
func (s *drawService) controller(ctx context.Context, eventID int) (*draw.Controller, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c, ok := s.controllers[eventID]; ok {
		return c, nil
	}

	event, err := s.GetEvent(ctx, eventID)
	if err != nil {
		return nil, err
	}
	cars, err := s.carRepo.ListByEvent(ctx, eventID)
	if err != nil {
		return nil, fmt.Errorf("failed to load cars for event %d: %w", eventID, err)
	}
	races, err := s.raceRepo.ListByEvent(ctx, eventID)
	if err != nil {
		return nil, fmt.Errorf("failed to load races for event %d: %w", eventID, err)
	}
	matches, err := s.bracketRepo.ListByEvent(ctx, eventID)
	if err != nil {
		return nil, fmt.Errorf("failed to load bracket for event %d: %w", eventID, err)
	}

	c, err := draw.RestoreController(event, cars, races, matches, s.policy)
	if err != nil {
		return nil, fmt.Errorf("failed to restore draw state for event %d: %w", eventID, err)
	}
	s.controllers[eventID] = c
	return c, nil
}

// Invalidate drops the cached controller so the next operation reloads it
// from the database. Called after writes that bypass the controller, like a
// roster upload.
func (s *drawService) Invalidate(eventID int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.controllers, eventID)
}

func (s *drawService) RegisterCar(ctx context.Context, eventID int, row models.RosterRow) (*models.Car, error) {
	l := s.eventLock(eventID)
	l.Lock()
	defer l.Unlock()

	c, err := s.controller(ctx, eventID)
	if err != nil {
		return nil, err
	}
	car := row.Car(eventID)
	if err := c.RegisterCar(car); err != nil {
		return nil, err
	}
	if err := s.carRepo.Create(ctx, nil, car); err != nil {
		// Хранилище отвергло машину: откатываем её из контроллера.
		s.Invalidate(eventID)
		return nil, err
	}
	return car, nil
}

// RegisterCars admits a whole roster through the controller, so a bulk
// upload obeys the same phase gate and duplicate checks as single
// registration. Nothing is persisted unless every row is admitted.
func (s *drawService) RegisterCars(ctx context.Context, eventID int, rows []models.RosterRow) ([]*models.Car, error) {
	l := s.eventLock(eventID)
	l.Lock()
	defer l.Unlock()

	c, err := s.controller(ctx, eventID)
	if err != nil {
		return nil, err
	}
	cars := make([]*models.Car, len(rows))
	for i, row := range rows {
		car := row.Car(eventID)
		if err := c.RegisterCar(car); err != nil {
			// Часть ростера уже попала в контроллер: сбрасываем кэш.
			s.Invalidate(eventID)
			return nil, fmt.Errorf("car %d: %w", row.CarID, err)
		}
		cars[i] = car
	}
	if err := s.carRepo.CreateBatch(ctx, cars); err != nil {
		s.Invalidate(eventID)
		return nil, fmt.Errorf("failed to store roster: %w", err)
	}
	return cars, nil
}

func (s *drawService) WithdrawCar(ctx context.Context, eventID, carID int) error {
	l := s.eventLock(eventID)
	l.Lock()
	defer l.Unlock()

	c, err := s.controller(ctx, eventID)
	if err != nil {
		return err
	}
	if err := c.WithdrawCar(carID); err != nil {
		return err
	}
	car, err := s.carRepo.GetByID(ctx, eventID, carID)
	if err != nil {
		return err
	}
	car.PresentRoundRobin = false
	car.PresentKnockout = false
	if err := s.carRepo.UpdateFlags(ctx, car); err != nil {
		s.Invalidate(eventID)
		return err
	}
	return nil
}

func (s *drawService) UpdateEligibility(ctx context.Context, eventID, carID int, scrutineered, presentRoundRobin, presentKnockout bool) error {
	l := s.eventLock(eventID)
	l.Lock()
	defer l.Unlock()

	c, err := s.controller(ctx, eventID)
	if err != nil {
		return err
	}
	if err := c.UpdateEligibility(carID, scrutineered, presentRoundRobin, presentKnockout); err != nil {
		return err
	}
	car, err := s.carRepo.GetByID(ctx, eventID, carID)
	if err != nil {
		return err
	}
	car.Scrutineered = scrutineered
	car.PresentRoundRobin = presentRoundRobin
	car.PresentKnockout = presentKnockout
	if err := s.carRepo.UpdateFlags(ctx, car); err != nil {
		s.Invalidate(eventID)
		return err
	}
	return nil
}

func (s *drawService) Cars(ctx context.Context, eventID int) ([]models.Car, error) {
	c, err := s.controller(ctx, eventID)
	if err != nil {
		return nil, err
	}
	return c.Cars(), nil
}

func (s *drawService) GenerateSchedule(ctx context.Context, eventID int) ([]models.RoundRobinRace, error) {
	l := s.eventLock(eventID)
	l.Lock()
	defer l.Unlock()

	c, err := s.controller(ctx, eventID)
	if err != nil {
		return nil, err
	}
	races, err := c.GenerateSchedule()
	if err != nil {
		return nil, err
	}

	stored := make([]*models.RoundRobinRace, len(races))
	for i := range races {
		stored[i] = &races[i]
	}
	if err := s.raceRepo.CreateBatch(ctx, stored); err != nil {
		s.Invalidate(eventID)
		return nil, fmt.Errorf("failed to store schedule for event %d: %w", eventID, err)
	}
	if err := s.eventRepo.UpdatePhase(ctx, nil, eventID, models.PhaseRoundRobin); err != nil {
		s.Invalidate(eventID)
		return nil, err
	}
	s.hub.BroadcastEvent(eventID, draw.MsgScheduleGenerated, races)
	return races, nil
}

func (s *drawService) Schedule(ctx context.Context, eventID int) ([]models.RoundRobinRace, error) {
	c, err := s.controller(ctx, eventID)
	if err != nil {
		return nil, err
	}
	return c.Schedule(), nil
}

func (s *drawService) RecordResult(ctx context.Context, eventID int, result draw.Result) error {
	l := s.eventLock(eventID)
	l.Lock()
	defer l.Unlock()

	c, err := s.controller(ctx, eventID)
	if err != nil {
		return err
	}
	if err := c.RecordResult(result); err != nil {
		return err
	}

	switch result.Kind {
	case draw.ResultRoundRobin:
		rr := result.RoundRobin
		if err := s.raceRepo.UpdatePoints(ctx, eventID, rr.Race, rr.Lane1Points, rr.Lane2Points); err != nil {
			s.Invalidate(eventID)
			return fmt.Errorf("failed to store result for race %d: %w", rr.Race, err)
		}
		s.hub.BroadcastEvent(eventID, draw.MsgRoundRobinResult, rr)
	case draw.ResultBracket:
		if err := s.bracketRepo.ReplaceForEvent(ctx, eventID, c.BracketView()); err != nil {
			s.Invalidate(eventID)
			return fmt.Errorf("failed to store bracket for event %d: %w", eventID, err)
		}
		if c.Phase() == models.PhaseComplete {
			if err := s.eventRepo.UpdatePhase(ctx, nil, eventID, models.PhaseComplete); err != nil {
				s.Invalidate(eventID)
				return err
			}
			s.hub.BroadcastEvent(eventID, draw.MsgDrawComplete, c.Podium())
		} else {
			s.hub.BroadcastEvent(eventID, draw.MsgBracketUpdated, result.Bracket)
		}
	}
	return nil
}

func (s *drawService) Standings(ctx context.Context, eventID int) ([]models.Standing, error) {
	c, err := s.controller(ctx, eventID)
	if err != nil {
		return nil, err
	}
	return c.Standings(), nil
}

func (s *drawService) FreezeStandings(ctx context.Context, eventID int) ([]models.Standing, error) {
	l := s.eventLock(eventID)
	l.Lock()
	defer l.Unlock()

	c, err := s.controller(ctx, eventID)
	if err != nil {
		return nil, err
	}
	standings, err := c.FreezeStandings()
	if err != nil {
		return nil, err
	}
	if err := s.eventRepo.UpdatePhase(ctx, nil, eventID, models.PhaseStandingsFrozen); err != nil {
		s.Invalidate(eventID)
		return nil, err
	}
	s.hub.BroadcastEvent(eventID, draw.MsgStandingsFrozen, standings)
	return standings, nil
}

func (s *drawService) BuildBracket(ctx context.Context, eventID int) ([]models.BracketMatch, error) {
	l := s.eventLock(eventID)
	l.Lock()
	defer l.Unlock()

	c, err := s.controller(ctx, eventID)
	if err != nil {
		return nil, err
	}
	matches, err := c.BuildBracket()
	if err != nil {
		return nil, err
	}
	if err := s.bracketRepo.ReplaceForEvent(ctx, eventID, matches); err != nil {
		s.Invalidate(eventID)
		return nil, fmt.Errorf("failed to store bracket for event %d: %w", eventID, err)
	}
	if err := s.eventRepo.UpdatePhase(ctx, nil, eventID, models.PhaseKnockout); err != nil {
		s.Invalidate(eventID)
		return nil, err
	}
	s.hub.BroadcastEvent(eventID, draw.MsgBracketBuilt, matches)
	return matches, nil
}

func (s *drawService) BracketView(ctx context.Context, eventID int) ([]models.BracketMatch, error) {
	c, err := s.controller(ctx, eventID)
	if err != nil {
		return nil, err
	}
	return c.BracketView(), nil
}

func (s *drawService) ScheduledKnockoutRaces(ctx context.Context, eventID int) ([]models.BracketMatch, error) {
	c, err := s.controller(ctx, eventID)
	if err != nil {
		return nil, err
	}
	return c.ScheduledKnockoutRaces(), nil
}

func (s *drawService) PlayOrder(ctx context.Context, eventID int) ([]string, error) {
	c, err := s.controller(ctx, eventID)
	if err != nil {
		return nil, err
	}
	return c.PlayOrder(), nil
}

func (s *drawService) Podium(ctx context.Context, eventID int) (draw.Podium, error) {
	c, err := s.controller(ctx, eventID)
	if err != nil {
		return draw.Podium{}, err
	}
	return c.Podium(), nil
}
