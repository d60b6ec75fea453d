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
	ErrRaceNotFound        = errors.New("round robin race not found")
	ErrRaceConflict        = errors.New("race number already used for this event")
	ErrRaceInvalidCar      = errors.New("invalid car reference in race")
	ErrRaceAlreadyRecorded = errors.New("race result already recorded")
)

type RaceRepository interface {
	CreateBatch(ctx context.Context, races []*models.RoundRobinRace) error
	ListByEvent(ctx context.Context, eventID int) ([]*models.RoundRobinRace, error)
	UpdatePoints(ctx context.Context, eventID, race, lane1Points, lane2Points int) error
	DeleteByEvent(ctx context.Context, exec SQLExecutor, eventID int) error
}

type postgresRaceRepository struct {
	db *sql.DB
}

func NewPostgresRaceRepository(db *sql.DB) RaceRepository {
	return &postgresRaceRepository{db: db}
}

func (r *postgresRaceRepository) getExecutor(exec SQLExecutor) SQLExecutor {
	if exec != nil {
		return exec
	}
	return r.db
}

// CreateBatch stores the whole generated schedule atomically.
func (r *postgresRaceRepository) CreateBatch(ctx context.Context, races []*models.RoundRobinRace) error {
	if len(races) == 0 {
		return nil
	}
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin race batch transaction: %w", err)
	}
	defer tx.Rollback()

	query := `
		INSERT INTO round_robin_race (
			event_id, race, round, car_lane_1, car_lane_2, car_lane_1_points, car_lane_2_points
		) VALUES ($1, $2, $3, $4, $5, $6, $7)`
	for _, race := range races {
		if _, err := tx.ExecContext(ctx, query,
			race.EventID, race.Race, race.Round,
			race.Lane1, race.Lane2, race.Lane1Points, race.Lane2Points,
		); err != nil {
			return fmt.Errorf("race %d: %w", race.Race, handleRaceError(err))
		}
	}
	return tx.Commit()
}

func (r *postgresRaceRepository) ListByEvent(ctx context.Context, eventID int) ([]*models.RoundRobinRace, error) {
	query := `
		SELECT event_id, race, round, car_lane_1, car_lane_2, car_lane_1_points, car_lane_2_points
		FROM round_robin_race
		WHERE event_id = $1
		ORDER BY race`
	rows, err := r.db.QueryContext(ctx, query, eventID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	races := make([]*models.RoundRobinRace, 0)
	for rows.Next() {
		race := &models.RoundRobinRace{}
		if scanErr := rows.Scan(
			&race.EventID, &race.Race, &race.Round,
			&race.Lane1, &race.Lane2, &race.Lane1Points, &race.Lane2Points,
		); scanErr != nil {
			return nil, scanErr
		}
		races = append(races, race)
	}
	if err = rows.Err(); err != nil {
		return nil, err
	}
	return races, nil
}

// UpdatePoints records a result exactly once: the guard on NULL points makes
// a second write for the same race report ErrRaceAlreadyRecorded instead of
// silently overwriting.
func (r *postgresRaceRepository) UpdatePoints(ctx context.Context, eventID, race, lane1Points, lane2Points int) error {
	query := `
		UPDATE round_robin_race SET
			car_lane_1_points = $1,
			car_lane_2_points = $2
		WHERE event_id = $3 AND race = $4
		AND car_lane_1_points IS NULL AND car_lane_2_points IS NULL`
	result, err := r.db.ExecContext(ctx, query, lane1Points, lane2Points, eventID, race)
	if err != nil {
		return handleRaceError(err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check affected rows: %w", err)
	}
	if rowsAffected == 0 {
		var exists bool
		checkQuery := `SELECT EXISTS(SELECT 1 FROM round_robin_race WHERE event_id = $1 AND race = $2)`
		if checkErr := r.db.QueryRowContext(ctx, checkQuery, eventID, race).Scan(&exists); checkErr != nil {
			return checkErr
		}
		if exists {
			return ErrRaceAlreadyRecorded
		}
		return ErrRaceNotFound
	}
	return nil
}

func (r *postgresRaceRepository) DeleteByEvent(ctx context.Context, exec SQLExecutor, eventID int) error {
	executor := r.getExecutor(exec)
	query := `DELETE FROM round_robin_race WHERE event_id = $1`
	_, err := executor.ExecContext(ctx, query, eventID)
	return err
}

func handleRaceError(err error) error {
	if err == nil {
		return nil
	}
	if pqErr, ok := err.(*pq.Error); ok {
		switch pqErr.Code {
		case "23505":
			return ErrRaceConflict
		case "23503":
			return ErrRaceInvalidCar
		}
	}
	return err
}
