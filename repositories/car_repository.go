package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"
	"github.com/solarchallenge/draw-server/models"
)

var (
	ErrCarNotFound      = errors.New("car not found")
	ErrCarConflict      = errors.New("car already registered for this event")
	ErrCarInvalidSchool = errors.New("invalid school reference")
	ErrCarInvalidEvent  = errors.New("invalid event reference")
)

type CarRepository interface {
	Create(ctx context.Context, exec SQLExecutor, car *models.Car) error
	CreateBatch(ctx context.Context, cars []*models.Car) error
	GetByID(ctx context.Context, eventID, carID int) (*models.Car, error)
	ListByEvent(ctx context.Context, eventID int) ([]*models.Car, error)
	UpdateFlags(ctx context.Context, car *models.Car) error
	DeleteByEvent(ctx context.Context, exec SQLExecutor, eventID int) error
}

type postgresCarRepository struct {
	db *sql.DB
}

func NewPostgresCarRepository(db *sql.DB) CarRepository {
	return &postgresCarRepository{db: db}
}

func (r *postgresCarRepository) getExecutor(exec SQLExecutor) SQLExecutor {
	if exec != nil {
		return exec
	}
	return r.db
}

func (r *postgresCarRepository) Create(ctx context.Context, exec SQLExecutor, car *models.Car) error {
	executor := r.getExecutor(exec)
	query := `
		INSERT INTO car (
			event_id, car_id, school_id, car_name,
			car_scruitineered, present_round_robin, present_knockout, seed_points
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`
	_, err := executor.ExecContext(ctx, query,
		car.EventID, car.CarID, car.SchoolID, car.Name,
		car.Scrutineered, car.PresentRoundRobin, car.PresentKnockout, car.SeedPoints,
	)
	return handleCarError(err)
}

// CreateBatch inserts a full roster atomically: either every row lands or
// none do.
func (r *postgresCarRepository) CreateBatch(ctx context.Context, cars []*models.Car) error {
	if len(cars) == 0 {
		return nil
	}
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin car batch transaction: %w", err)
	}
	defer tx.Rollback()

	for _, car := range cars {
		if err := r.Create(ctx, tx, car); err != nil {
			return fmt.Errorf("car %d: %w", car.CarID, err)
		}
	}
	return tx.Commit()
}

func (r *postgresCarRepository) GetByID(ctx context.Context, eventID, carID int) (*models.Car, error) {
	query := `
		SELECT
			c.event_id, c.car_id, c.school_id, c.car_name,
			c.car_scruitineered, c.present_round_robin, c.present_knockout, c.seed_points,
			s.school_id, s.school_name
		FROM car c
		JOIN school s ON s.school_id = c.school_id
		WHERE c.event_id = $1 AND c.car_id = $2`
	car := &models.Car{School: &models.School{}}
	err := r.db.QueryRowContext(ctx, query, eventID, carID).Scan(
		&car.EventID, &car.CarID, &car.SchoolID, &car.Name,
		&car.Scrutineered, &car.PresentRoundRobin, &car.PresentKnockout, &car.SeedPoints,
		&car.School.ID, &car.School.Name,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrCarNotFound
		}
		return nil, err
	}
	return car, nil
}

func (r *postgresCarRepository) ListByEvent(ctx context.Context, eventID int) ([]*models.Car, error) {
	query := `
		SELECT
			c.event_id, c.car_id, c.school_id, c.car_name,
			c.car_scruitineered, c.present_round_robin, c.present_knockout, c.seed_points,
			s.school_id, s.school_name
		FROM car c
		JOIN school s ON s.school_id = c.school_id
		WHERE c.event_id = $1
		ORDER BY c.car_id`
	rows, err := r.db.QueryContext(ctx, query, eventID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	cars := make([]*models.Car, 0)
	for rows.Next() {
		car := &models.Car{School: &models.School{}}
		if scanErr := rows.Scan(
			&car.EventID, &car.CarID, &car.SchoolID, &car.Name,
			&car.Scrutineered, &car.PresentRoundRobin, &car.PresentKnockout, &car.SeedPoints,
			&car.School.ID, &car.School.Name,
		); scanErr != nil {
			return nil, scanErr
		}
		cars = append(cars, car)
	}
	if err = rows.Err(); err != nil {
		return nil, err
	}
	return cars, nil
}

func (r *postgresCarRepository) UpdateFlags(ctx context.Context, car *models.Car) error {
	query := `
		UPDATE car SET
			car_scruitineered = $1,
			present_round_robin = $2,
			present_knockout = $3
		WHERE event_id = $4 AND car_id = $5`
	result, err := r.db.ExecContext(ctx, query,
		car.Scrutineered, car.PresentRoundRobin, car.PresentKnockout,
		car.EventID, car.CarID,
	)
	if err != nil {
		return handleCarError(err)
	}
	return checkAffectedRows(result, ErrCarNotFound)
}

func (r *postgresCarRepository) DeleteByEvent(ctx context.Context, exec SQLExecutor, eventID int) error {
	executor := r.getExecutor(exec)
	query := `DELETE FROM car WHERE event_id = $1`
	_, err := executor.ExecContext(ctx, query, eventID)
	return handleCarError(err)
}

func handleCarError(err error) error {
	if err == nil {
		return nil
	}
	if pqErr, ok := err.(*pq.Error); ok {
		switch pqErr.Code {
		case "23505":
			return ErrCarConflict
		case "23503":
			switch pqErr.Constraint {
			case "car_school_id_fkey":
				return ErrCarInvalidSchool
			case "car_event_id_fkey":
				return ErrCarInvalidEvent
			}
		}
	}
	return err
}
