package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/solarchallenge/draw-server/models"
	"github.com/solarchallenge/draw-server/repositories"
)

// SchoolService manages the shared school directory the car rosters
// reference.
type SchoolService interface {
	CreateSchool(ctx context.Context, name string) (*models.School, error)
	GetSchool(ctx context.Context, id int) (*models.School, error)
	ListSchools(ctx context.Context) ([]models.School, error)
	RenameSchool(ctx context.Context, id int, name string) (*models.School, error)
	DeleteSchool(ctx context.Context, id int) error
}

type schoolService struct {
	schoolRepo repositories.SchoolRepository
}

func NewSchoolService(schoolRepo repositories.SchoolRepository) SchoolService {
	return &schoolService{schoolRepo: schoolRepo}
}

func (s *schoolService) CreateSchool(ctx context.Context, name string) (*models.School, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("school name is required: %w", ErrValidationFailed)
	}
	school := &models.School{Name: name}
	if err := s.schoolRepo.Create(ctx, school); err != nil {
		return nil, fmt.Errorf("failed to create school: %w", err)
	}
	return school, nil
}

func (s *schoolService) GetSchool(ctx context.Context, id int) (*models.School, error) {
	return s.schoolRepo.GetByID(ctx, id)
}

func (s *schoolService) ListSchools(ctx context.Context) ([]models.School, error) {
	return s.schoolRepo.List(ctx)
}

func (s *schoolService) RenameSchool(ctx context.Context, id int, name string) (*models.School, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("school name is required: %w", ErrValidationFailed)
	}
	school := &models.School{ID: id, Name: name}
	if err := s.schoolRepo.Update(ctx, school); err != nil {
		return nil, fmt.Errorf("failed to rename school %d: %w", id, err)
	}
	return school, nil
}

func (s *schoolService) DeleteSchool(ctx context.Context, id int) error {
	if err := s.schoolRepo.Delete(ctx, id); err != nil {
		return fmt.Errorf("failed to delete school %d: %w", id, err)
	}
	return nil
}
