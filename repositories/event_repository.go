package repositories

import (
	"context"
	"database/sql"
	"errors"

	"github.com/lib/pq"
	"github.com/solarchallenge/draw-server/models"
)

var (
	ErrEventNotFound     = errors.New("event not found")
	ErrEventNameConflict = errors.New("event name conflict for this date")
)

type EventRepository interface {
	Create(ctx context.Context, event *models.Event) error
	GetByID(ctx context.Context, id int) (*models.Event, error)
	List(ctx context.Context) ([]models.Event, error)
	UpdatePhase(ctx context.Context, exec SQLExecutor, id int, phase models.Phase) error
	Delete(ctx context.Context, exec SQLExecutor, id int) error
}

type postgresEventRepository struct {
	db *sql.DB
}

func NewPostgresEventRepository(db *sql.DB) EventRepository {
	return &postgresEventRepository{db: db}
}

func (r *postgresEventRepository) getExecutor(exec SQLExecutor) SQLExecutor {
	if exec != nil {
		return exec
	}
	return r.db
}

func (r *postgresEventRepository) Create(ctx context.Context, e *models.Event) error {
	if e.Phase == "" {
		e.Phase = models.PhaseRegistration
	}
	query := `
		INSERT INTO event (event_date, event_name, phase)
		VALUES ($1, $2, $3)
		RETURNING event_id`
	err := r.db.QueryRowContext(ctx, query, e.Date, e.Name, e.Phase).Scan(&e.ID)
	return handleEventError(err)
}

func (r *postgresEventRepository) GetByID(ctx context.Context, id int) (*models.Event, error) {
	query := `SELECT event_id, event_date, event_name, phase FROM event WHERE event_id = $1`
	e := &models.Event{}
	err := r.db.QueryRowContext(ctx, query, id).Scan(&e.ID, &e.Date, &e.Name, &e.Phase)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrEventNotFound
		}
		return nil, err
	}
	return e, nil
}

func (r *postgresEventRepository) List(ctx context.Context) ([]models.Event, error) {
	query := `SELECT event_id, event_date, event_name, phase FROM event ORDER BY event_date DESC, event_id DESC`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	events := make([]models.Event, 0)
	for rows.Next() {
		var e models.Event
		if scanErr := rows.Scan(&e.ID, &e.Date, &e.Name, &e.Phase); scanErr != nil {
			return nil, scanErr
		}
		events = append(events, e)
	}
	if err = rows.Err(); err != nil {
		return nil, err
	}
	return events, nil
}

func (r *postgresEventRepository) UpdatePhase(ctx context.Context, exec SQLExecutor, id int, phase models.Phase) error {
	executor := r.getExecutor(exec)
	query := `UPDATE event SET phase = $1 WHERE event_id = $2`
	result, err := executor.ExecContext(ctx, query, phase, id)
	if err != nil {
		return handleEventError(err)
	}
	return checkAffectedRows(result, ErrEventNotFound)
}

func (r *postgresEventRepository) Delete(ctx context.Context, exec SQLExecutor, id int) error {
	executor := r.getExecutor(exec)
	query := `DELETE FROM event WHERE event_id = $1`
	result, err := executor.ExecContext(ctx, query, id)
	if err != nil {
		return handleEventError(err)
	}
	return checkAffectedRows(result, ErrEventNotFound)
}

func handleEventError(err error) error {
	if err == nil {
		return nil
	}
	if pqErr, ok := err.(*pq.Error); ok {
		if pqErr.Code == "23505" {
			return ErrEventNameConflict
		}
	}
	return err
}
