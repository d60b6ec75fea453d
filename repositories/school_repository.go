package repositories

import (
	"context"
	"database/sql"
	"errors"

	"github.com/lib/pq"
	"github.com/solarchallenge/draw-server/models"
)

var (
	ErrSchoolNotFound     = errors.New("school not found")
	ErrSchoolNameConflict = errors.New("school name conflict")
	ErrSchoolInUse        = errors.New("school is in use (cars exist)")
)

type SchoolRepository interface {
	Create(ctx context.Context, school *models.School) error
	GetByID(ctx context.Context, id int) (*models.School, error)
	List(ctx context.Context) ([]models.School, error)
	Update(ctx context.Context, school *models.School) error
	Delete(ctx context.Context, id int) error
}

type postgresSchoolRepository struct {
	db *sql.DB
}

func NewPostgresSchoolRepository(db *sql.DB) SchoolRepository {
	return &postgresSchoolRepository{db: db}
}

func (r *postgresSchoolRepository) Create(ctx context.Context, s *models.School) error {
	query := `INSERT INTO school (school_name) VALUES ($1) RETURNING school_id`
	err := r.db.QueryRowContext(ctx, query, s.Name).Scan(&s.ID)
	return handleSchoolError(err)
}

func (r *postgresSchoolRepository) GetByID(ctx context.Context, id int) (*models.School, error) {
	query := `SELECT school_id, school_name FROM school WHERE school_id = $1`
	s := &models.School{}
	err := r.db.QueryRowContext(ctx, query, id).Scan(&s.ID, &s.Name)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrSchoolNotFound
		}
		return nil, err
	}
	return s, nil
}

func (r *postgresSchoolRepository) List(ctx context.Context) ([]models.School, error) {
	query := `SELECT school_id, school_name FROM school ORDER BY school_name`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	schools := make([]models.School, 0)
	for rows.Next() {
		var s models.School
		if scanErr := rows.Scan(&s.ID, &s.Name); scanErr != nil {
			return nil, scanErr
		}
		schools = append(schools, s)
	}
	if err = rows.Err(); err != nil {
		return nil, err
	}
	return schools, nil
}

func (r *postgresSchoolRepository) Update(ctx context.Context, s *models.School) error {
	query := `UPDATE school SET school_name = $1 WHERE school_id = $2`
	result, err := r.db.ExecContext(ctx, query, s.Name, s.ID)
	if err != nil {
		return handleSchoolError(err)
	}
	return checkAffectedRows(result, ErrSchoolNotFound)
}

func (r *postgresSchoolRepository) Delete(ctx context.Context, id int) error {
	query := `DELETE FROM school WHERE school_id = $1`
	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return handleSchoolError(err)
	}
	return checkAffectedRows(result, ErrSchoolNotFound)
}

func handleSchoolError(err error) error {
	if err == nil {
		return nil
	}
	if pqErr, ok := err.(*pq.Error); ok {
		switch pqErr.Code {
		case "23505":
			return ErrSchoolNameConflict
		case "23503":
			return ErrSchoolInUse
		}
	}
	return err
}
