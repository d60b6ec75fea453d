package services

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/solarchallenge/draw-server/draw"
	"github.com/solarchallenge/draw-server/models"
	"github.com/solarchallenge/draw-server/repositories"
)

// Заглушка драйвера: DeleteEvent открывает транзакцию, сами запросы идут
// через фейковые репозитории.
type stubSQLDriver struct{}

func (stubSQLDriver) Open(string) (driver.Conn, error) { return stubConn{}, nil }

type stubConn struct{}

func (stubConn) Prepare(string) (driver.Stmt, error) { return nil, errors.New("not supported") }
func (stubConn) Close() error                        { return nil }
func (stubConn) Begin() (driver.Tx, error)           { return stubTx{}, nil }

type stubTx struct{}

func (stubTx) Commit() error   { return nil }
func (stubTx) Rollback() error { return nil }

var registerStubDriver sync.Once

func openStubDB(t *testing.T) *sql.DB {
	t.Helper()
	registerStubDriver.Do(func() { sql.Register("drawservicestub", stubSQLDriver{}) })
	db, err := sql.Open("drawservicestub", "")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

type fakeEventRepo struct {
	mu             sync.Mutex
	nextID         int
	events         map[int]models.Event
	updatePhaseErr error
}

func newFakeEventRepo() *fakeEventRepo {
	return &fakeEventRepo{nextID: 1, events: make(map[int]models.Event)}
}

func (f *fakeEventRepo) Create(_ context.Context, event *models.Event) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	event.ID = f.nextID
	f.nextID++
	f.events[event.ID] = *event
	return nil
}

func (f *fakeEventRepo) GetByID(_ context.Context, id int) (*models.Event, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	event, ok := f.events[id]
	if !ok {
		return nil, repositories.ErrEventNotFound
	}
	return &event, nil
}

func (f *fakeEventRepo) List(_ context.Context) ([]models.Event, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	events := make([]models.Event, 0, len(f.events))
	for _, event := range f.events {
		events = append(events, event)
	}
	return events, nil
}

func (f *fakeEventRepo) UpdatePhase(_ context.Context, _ repositories.SQLExecutor, id int, phase models.Phase) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.updatePhaseErr != nil {
		return f.updatePhaseErr
	}
	event, ok := f.events[id]
	if !ok {
		return repositories.ErrEventNotFound
	}
	event.Phase = phase
	f.events[id] = event
	return nil
}

func (f *fakeEventRepo) Delete(_ context.Context, _ repositories.SQLExecutor, id int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.events[id]; !ok {
		return repositories.ErrEventNotFound
	}
	delete(f.events, id)
	return nil
}

type carKey struct{ eventID, carID int }

type fakeCarRepo struct {
	mu    sync.Mutex
	cars  map[carKey]models.Car
	order []carKey
}

func newFakeCarRepo() *fakeCarRepo {
	return &fakeCarRepo{cars: make(map[carKey]models.Car)}
}

func (f *fakeCarRepo) Create(_ context.Context, _ repositories.SQLExecutor, car *models.Car) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := carKey{car.EventID, car.CarID}
	if _, ok := f.cars[key]; ok {
		return repositories.ErrCarConflict
	}
	f.cars[key] = *car
	f.order = append(f.order, key)
	return nil
}

func (f *fakeCarRepo) CreateBatch(ctx context.Context, cars []*models.Car) error {
	for _, car := range cars {
		if err := f.Create(ctx, nil, car); err != nil {
			return err
		}
	}
	return nil
}

func (f *fakeCarRepo) GetByID(_ context.Context, eventID, carID int) (*models.Car, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	car, ok := f.cars[carKey{eventID, carID}]
	if !ok {
		return nil, repositories.ErrCarNotFound
	}
	return &car, nil
}

func (f *fakeCarRepo) ListByEvent(_ context.Context, eventID int) ([]*models.Car, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var cars []*models.Car
	for _, key := range f.order {
		if key.eventID != eventID {
			continue
		}
		car := f.cars[key]
		cars = append(cars, &car)
	}
	return cars, nil
}

func (f *fakeCarRepo) UpdateFlags(_ context.Context, car *models.Car) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := carKey{car.EventID, car.CarID}
	if _, ok := f.cars[key]; !ok {
		return repositories.ErrCarNotFound
	}
	f.cars[key] = *car
	return nil
}

func (f *fakeCarRepo) DeleteByEvent(_ context.Context, _ repositories.SQLExecutor, eventID int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	kept := f.order[:0]
	for _, key := range f.order {
		if key.eventID == eventID {
			delete(f.cars, key)
			continue
		}
		kept = append(kept, key)
	}
	f.order = kept
	return nil
}

type raceKey struct{ eventID, race int }

type fakeRaceRepo struct {
	mu    sync.Mutex
	races map[raceKey]models.RoundRobinRace
	order []raceKey
}

func newFakeRaceRepo() *fakeRaceRepo {
	return &fakeRaceRepo{races: make(map[raceKey]models.RoundRobinRace)}
}

func (f *fakeRaceRepo) CreateBatch(_ context.Context, races []*models.RoundRobinRace) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, race := range races {
		key := raceKey{race.EventID, race.Race}
		if _, ok := f.races[key]; !ok {
			f.order = append(f.order, key)
		}
		f.races[key] = *race
	}
	return nil
}

func (f *fakeRaceRepo) ListByEvent(_ context.Context, eventID int) ([]*models.RoundRobinRace, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var races []*models.RoundRobinRace
	for _, key := range f.order {
		if key.eventID != eventID {
			continue
		}
		race := f.races[key]
		races = append(races, &race)
	}
	return races, nil
}

func (f *fakeRaceRepo) UpdatePoints(_ context.Context, eventID, race, lane1Points, lane2Points int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := raceKey{eventID, race}
	stored, ok := f.races[key]
	if !ok {
		return repositories.ErrRaceNotFound
	}
	stored.Lane1Points = &lane1Points
	stored.Lane2Points = &lane2Points
	f.races[key] = stored
	return nil
}

func (f *fakeRaceRepo) DeleteByEvent(_ context.Context, _ repositories.SQLExecutor, eventID int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	kept := f.order[:0]
	for _, key := range f.order {
		if key.eventID == eventID {
			delete(f.races, key)
			continue
		}
		kept = append(kept, key)
	}
	f.order = kept
	return nil
}

type fakeBracketRepo struct {
	mu      sync.Mutex
	matches map[int][]models.BracketMatch
}

func newFakeBracketRepo() *fakeBracketRepo {
	return &fakeBracketRepo{matches: make(map[int][]models.BracketMatch)}
}

func (f *fakeBracketRepo) ReplaceForEvent(_ context.Context, eventID int, matches []models.BracketMatch) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	stored := make([]models.BracketMatch, len(matches))
	copy(stored, matches)
	f.matches[eventID] = stored
	return nil
}

func (f *fakeBracketRepo) ListByEvent(_ context.Context, eventID int) ([]*models.BracketMatch, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var matches []*models.BracketMatch
	for i := range f.matches[eventID] {
		m := f.matches[eventID][i]
		matches = append(matches, &m)
	}
	return matches, nil
}

func (f *fakeBracketRepo) DeleteByEvent(_ context.Context, _ repositories.SQLExecutor, eventID int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.matches, eventID)
	return nil
}

type drawServiceFakes struct {
	events   *fakeEventRepo
	cars     *fakeCarRepo
	races    *fakeRaceRepo
	brackets *fakeBracketRepo
}

func newTestDrawService(t *testing.T) (DrawService, *drawServiceFakes) {
	t.Helper()
	fakes := &drawServiceFakes{
		events:   newFakeEventRepo(),
		cars:     newFakeCarRepo(),
		races:    newFakeRaceRepo(),
		brackets: newFakeBracketRepo(),
	}
	svc := NewDrawService(openStubDB(t), fakes.events, fakes.cars, fakes.races, fakes.brackets, draw.NewHub(), draw.DefaultPolicy)
	return svc, fakes
}

func serviceRosterRow(carID int) models.RosterRow {
	return models.RosterRow{
		CarID:             carID,
		SchoolID:          1,
		CarName:           fmt.Sprintf("car %d", carID),
		Scrutineered:      true,
		PresentRoundRobin: true,
		PresentKnockout:   true,
	}
}

func createTestEvent(t *testing.T, svc DrawService) int {
	t.Helper()
	event, err := svc.CreateEvent(context.Background(), "State Final", time.Date(2026, 9, 12, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	return event.ID
}

func TestRegisterCarsAdmitsRoster(t *testing.T) {
	svc, fakes := newTestDrawService(t)
	ctx := context.Background()
	eventID := createTestEvent(t, svc)

	cars, err := svc.RegisterCars(ctx, eventID, []models.RosterRow{
		serviceRosterRow(10), serviceRosterRow(20), serviceRosterRow(30),
	})
	require.NoError(t, err)
	require.Len(t, cars, 3)
	for _, car := range cars {
		assert.Equal(t, eventID, car.EventID)
	}

	stored, err := fakes.cars.ListByEvent(ctx, eventID)
	require.NoError(t, err)
	assert.Len(t, stored, 3)

	loaded, err := svc.Cars(ctx, eventID)
	require.NoError(t, err)
	assert.Len(t, loaded, 3)
}

// Загрузка ростера после заморозки не должна ни пройти, ни раздуть
// замороженную таблицу очков.
func TestRegisterCarsRejectedOnceStandingsFrozen(t *testing.T) {
	svc, fakes := newTestDrawService(t)
	ctx := context.Background()

	three, two := 3, 2
	ten, twenty := 10, 20
	fakes.events.events[1] = models.Event{
		ID:    1,
		Name:  "State Final",
		Date:  time.Date(2026, 9, 12, 0, 0, 0, 0, time.UTC),
		Phase: models.PhaseStandingsFrozen,
	}
	fakes.events.nextID = 2
	require.NoError(t, fakes.cars.CreateBatch(ctx, []*models.Car{
		serviceRosterRow(10).Car(1),
		serviceRosterRow(20).Car(1),
	}))
	require.NoError(t, fakes.races.CreateBatch(ctx, []*models.RoundRobinRace{
		{EventID: 1, Race: 1, Round: 1, Lane1: &ten, Lane2: &twenty, Lane1Points: &three, Lane2Points: &two},
	}))

	frozen, err := svc.Standings(ctx, 1)
	require.NoError(t, err)
	require.Len(t, frozen, 2)

	_, err = svc.RegisterCars(ctx, 1, []models.RosterRow{serviceRosterRow(30)})
	require.ErrorIs(t, err, draw.ErrInvalidPhase)

	standings, err := svc.Standings(ctx, 1)
	require.NoError(t, err)
	require.Len(t, standings, 2)
	assert.Equal(t, 10, standings[0].CarID)
	assert.Equal(t, 20, standings[1].CarID)

	stored, err := fakes.cars.ListByEvent(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, stored, 2)
}

func TestRegisterCarsDuplicateRollsBack(t *testing.T) {
	svc, fakes := newTestDrawService(t)
	ctx := context.Background()
	eventID := createTestEvent(t, svc)

	_, err := svc.RegisterCars(ctx, eventID, []models.RosterRow{
		serviceRosterRow(10), serviceRosterRow(20),
	})
	require.NoError(t, err)

	// Машина 30 проходит в контроллер раньше дубликата, но без записи в
	// хранилище она должна исчезнуть вместе со сброшенным кэшем.
	_, err = svc.RegisterCars(ctx, eventID, []models.RosterRow{
		serviceRosterRow(30), serviceRosterRow(20),
	})
	require.ErrorIs(t, err, draw.ErrDuplicateCar)

	stored, err := fakes.cars.ListByEvent(ctx, eventID)
	require.NoError(t, err)
	assert.Len(t, stored, 2)

	loaded, err := svc.Cars(ctx, eventID)
	require.NoError(t, err)
	require.Len(t, loaded, 2)
	for _, car := range loaded {
		assert.NotEqual(t, 30, car.CarID)
	}
}

func TestGenerateScheduleInvalidatesOnPhasePersistFailure(t *testing.T) {
	svc, fakes := newTestDrawService(t)
	ctx := context.Background()
	eventID := createTestEvent(t, svc)

	_, err := svc.RegisterCars(ctx, eventID, []models.RosterRow{
		serviceRosterRow(10), serviceRosterRow(20), serviceRosterRow(30),
	})
	require.NoError(t, err)

	fakes.events.updatePhaseErr = errors.New("phase write refused")
	_, err = svc.GenerateSchedule(ctx, eventID)
	require.Error(t, err)
	fakes.events.updatePhaseErr = nil

	event, err := fakes.events.GetByID(ctx, eventID)
	require.NoError(t, err)
	assert.Equal(t, models.PhaseRegistration, event.Phase)

	// Контроллер обязан перечитаться из базы: событие всё ещё в фазе
	// регистрации, значит новая машина принимается.
	_, err = svc.RegisterCar(ctx, eventID, serviceRosterRow(40))
	require.NoError(t, err)
}

func TestDeleteEventRemovesAllState(t *testing.T) {
	svc, fakes := newTestDrawService(t)
	ctx := context.Background()
	eventID := createTestEvent(t, svc)

	_, err := svc.RegisterCars(ctx, eventID, []models.RosterRow{
		serviceRosterRow(10), serviceRosterRow(20), serviceRosterRow(30),
	})
	require.NoError(t, err)

	schedule, err := svc.GenerateSchedule(ctx, eventID)
	require.NoError(t, err)
	for _, race := range schedule {
		lower := *race.Lane1
		if *race.Lane2 < lower {
			lower = *race.Lane2
		}
		result := draw.RoundRobinResult{Race: race.Race, Lane1Points: 3, Lane2Points: 2}
		if *race.Lane2 == lower {
			result.Lane1Points, result.Lane2Points = 2, 3
		}
		require.NoError(t, svc.RecordResult(ctx, eventID, draw.Result{
			Kind:       draw.ResultRoundRobin,
			RoundRobin: &result,
		}))
	}
	_, err = svc.FreezeStandings(ctx, eventID)
	require.NoError(t, err)
	_, err = svc.BuildBracket(ctx, eventID)
	require.NoError(t, err)

	require.NoError(t, svc.DeleteEvent(ctx, eventID))

	_, err = fakes.events.GetByID(ctx, eventID)
	assert.ErrorIs(t, err, repositories.ErrEventNotFound)
	cars, err := fakes.cars.ListByEvent(ctx, eventID)
	require.NoError(t, err)
	assert.Empty(t, cars)
	races, err := fakes.races.ListByEvent(ctx, eventID)
	require.NoError(t, err)
	assert.Empty(t, races)
	matches, err := fakes.brackets.ListByEvent(ctx, eventID)
	require.NoError(t, err)
	assert.Empty(t, matches)

	_, err = svc.GetEvent(ctx, eventID)
	assert.ErrorIs(t, err, ErrEventNotFound)
}

func TestDeleteEventUnknownEvent(t *testing.T) {
	svc, _ := newTestDrawService(t)
	err := svc.DeleteEvent(context.Background(), 99)
	assert.ErrorIs(t, err, repositories.ErrEventNotFound)
}

// Ростер идёт через тот же фазовый шлюз, что и одиночная регистрация.
func TestLoadRosterRejectedOnceStandingsFrozen(t *testing.T) {
	svc, fakes := newTestDrawService(t)
	ctx := context.Background()

	three, two := 3, 2
	ten, twenty := 10, 20
	fakes.events.events[1] = models.Event{
		ID:    1,
		Name:  "State Final",
		Date:  time.Date(2026, 9, 12, 0, 0, 0, 0, time.UTC),
		Phase: models.PhaseStandingsFrozen,
	}
	fakes.events.nextID = 2
	require.NoError(t, fakes.cars.CreateBatch(ctx, []*models.Car{
		serviceRosterRow(10).Car(1),
		serviceRosterRow(20).Car(1),
	}))
	require.NoError(t, fakes.races.CreateBatch(ctx, []*models.RoundRobinRace{
		{EventID: 1, Race: 1, Round: 1, Lane1: &ten, Lane2: &twenty, Lane1Points: &three, Lane2Points: &two},
	}))

	roster := NewRosterService(svc, nil)
	csv := rosterHeader + "\n30,1,Late Entry,true,true,true"
	_, err := roster.LoadRoster(ctx, 1, strings.NewReader(csv), RosterLoadOptions{AllowUnknownSchools: true})
	require.ErrorIs(t, err, draw.ErrInvalidPhase)

	standings, err := svc.Standings(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, standings, 2)
}
