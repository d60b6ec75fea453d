package repositories

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/solarchallenge/draw-server/models"
)

type BracketRepository interface {
	ReplaceForEvent(ctx context.Context, eventID int, matches []models.BracketMatch) error
	ListByEvent(ctx context.Context, eventID int) ([]*models.BracketMatch, error)
	DeleteByEvent(ctx context.Context, exec SQLExecutor, eventID int) error
}

type postgresBracketRepository struct {
	db *sql.DB
}

func NewPostgresBracketRepository(db *sql.DB) BracketRepository {
	return &postgresBracketRepository{db: db}
}

func (r *postgresBracketRepository) getExecutor(exec SQLExecutor) SQLExecutor {
	if exec != nil {
		return exec
	}
	return r.db
}

func seedColumns(s models.Seed) (carID *int, bye bool) {
	if s.Bye {
		return nil, true
	}
	if s.Known {
		id := s.CarID
		return &id, false
	}
	return nil, false
}

func seedFromColumns(carID *int, bye bool) models.Seed {
	if bye {
		return models.ByeSeed()
	}
	if carID != nil {
		return models.CarSeed(*carID)
	}
	return models.NoSeed
}

// ReplaceForEvent persists the full bracket arena as one transaction. The
// arena is small, so rewriting all rows after every recorded result keeps the
// stored state trivially consistent with the in-memory one.
func (r *postgresBracketRepository) ReplaceForEvent(ctx context.Context, eventID int, matches []models.BracketMatch) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin bracket transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM bracket_match WHERE event_id = $1`, eventID); err != nil {
		return fmt.Errorf("failed to clear bracket for event %d: %w", eventID, err)
	}

	query := `
		INSERT INTO bracket_match (
			event_id, idx, bracket, round, slot, race_number,
			seed_a, seed_a_bye, seed_b, seed_b_bye,
			winner, loser, state,
			winner_to, winner_to_slot, loser_to, loser_to_slot
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)`
	for _, m := range matches {
		seedA, seedABye := seedColumns(m.SeedA)
		seedB, seedBBye := seedColumns(m.SeedB)
		if _, err := tx.ExecContext(ctx, query,
			m.EventID, m.Index, m.Side, m.Round, m.Slot, m.RaceNumber,
			seedA, seedABye, seedB, seedBBye,
			m.Winner, m.Loser, m.State,
			m.WinnerTo, m.WinnerToSlot, m.LoserTo, m.LoserToSlot,
		); err != nil {
			return fmt.Errorf("bracket match %d: %w", m.Index, err)
		}
	}
	return tx.Commit()
}

func (r *postgresBracketRepository) ListByEvent(ctx context.Context, eventID int) ([]*models.BracketMatch, error) {
	query := `
		SELECT
			event_id, idx, bracket, round, slot, race_number,
			seed_a, seed_a_bye, seed_b, seed_b_bye,
			winner, loser, state,
			winner_to, winner_to_slot, loser_to, loser_to_slot
		FROM bracket_match
		WHERE event_id = $1
		ORDER BY idx`
	rows, err := r.db.QueryContext(ctx, query, eventID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	matches := make([]*models.BracketMatch, 0)
	for rows.Next() {
		m := &models.BracketMatch{}
		var seedA, seedB *int
		var seedABye, seedBBye bool
		if scanErr := rows.Scan(
			&m.EventID, &m.Index, &m.Side, &m.Round, &m.Slot, &m.RaceNumber,
			&seedA, &seedABye, &seedB, &seedBBye,
			&m.Winner, &m.Loser, &m.State,
			&m.WinnerTo, &m.WinnerToSlot, &m.LoserTo, &m.LoserToSlot,
		); scanErr != nil {
			return nil, scanErr
		}
		m.SeedA = seedFromColumns(seedA, seedABye)
		m.SeedB = seedFromColumns(seedB, seedBBye)
		matches = append(matches, m)
	}
	if err = rows.Err(); err != nil {
		return nil, err
	}
	return matches, nil
}

func (r *postgresBracketRepository) DeleteByEvent(ctx context.Context, exec SQLExecutor, eventID int) error {
	executor := r.getExecutor(exec)
	_, err := executor.ExecContext(ctx, `DELETE FROM bracket_match WHERE event_id = $1`, eventID)
	return err
}
