package db

import (
	"database/sql"
	"fmt"
)

// CreateSchema creates all tables needed for the application.
// Safe to call multiple times - uses IF NOT EXISTS.
func CreateSchema(db *sql.DB) error {
	_, err := db.Exec(schema)
	if err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}

	return nil
}

const schema = `
-- Schools
CREATE TABLE IF NOT EXISTS school (
    school_id SERIAL PRIMARY KEY,
    school_name TEXT NOT NULL UNIQUE
);

-- Events
CREATE TABLE IF NOT EXISTS event (
    event_id SERIAL PRIMARY KEY,
    event_date DATE NOT NULL,
    event_name TEXT NOT NULL,
    phase TEXT NOT NULL DEFAULT 'registration'
        CHECK (phase IN ('registration', 'round_robin', 'standings_frozen', 'knockout', 'complete')),
    UNIQUE (event_date, event_name)
);

-- Cars (the historical column spelling car_scruitineered is kept as is)
CREATE TABLE IF NOT EXISTS car (
    event_id INTEGER NOT NULL REFERENCES event(event_id) ON DELETE CASCADE,
    car_id INTEGER NOT NULL,
    school_id INTEGER NOT NULL REFERENCES school(school_id),
    car_name TEXT NOT NULL,
    car_scruitineered BOOLEAN NOT NULL DEFAULT FALSE,
    present_round_robin BOOLEAN NOT NULL DEFAULT FALSE,
    present_knockout BOOLEAN NOT NULL DEFAULT FALSE,
    seed_points INTEGER,
    PRIMARY KEY (event_id, car_id)
);

CREATE INDEX IF NOT EXISTS idx_car_school_id ON car(school_id);

-- Round robin races
CREATE TABLE IF NOT EXISTS round_robin_race (
    event_id INTEGER NOT NULL REFERENCES event(event_id) ON DELETE CASCADE,
    race INTEGER NOT NULL,
    round INTEGER NOT NULL,
    car_lane_1 INTEGER,
    car_lane_2 INTEGER,
    car_lane_1_points INTEGER,
    car_lane_2_points INTEGER,
    PRIMARY KEY (event_id, race),
    FOREIGN KEY (event_id, car_lane_1) REFERENCES car(event_id, car_id),
    FOREIGN KEY (event_id, car_lane_2) REFERENCES car(event_id, car_id),
    CHECK (car_lane_1 IS DISTINCT FROM car_lane_2)
);

CREATE INDEX IF NOT EXISTS idx_round_robin_race_round ON round_robin_race(event_id, round);

-- Knockout bracket arena, one row per match
CREATE TABLE IF NOT EXISTS bracket_match (
    event_id INTEGER NOT NULL REFERENCES event(event_id) ON DELETE CASCADE,
    idx INTEGER NOT NULL,
    bracket TEXT NOT NULL CHECK (bracket IN ('winners', 'losers', 'final')),
    round INTEGER NOT NULL,
    slot INTEGER NOT NULL,
    race_number INTEGER NOT NULL,
    seed_a INTEGER,
    seed_a_bye BOOLEAN NOT NULL DEFAULT FALSE,
    seed_b INTEGER,
    seed_b_bye BOOLEAN NOT NULL DEFAULT FALSE,
    winner INTEGER,
    loser INTEGER,
    state TEXT NOT NULL CHECK (state IN ('pending', 'scheduled', 'resolved')),
    winner_to INTEGER NOT NULL,
    winner_to_slot INTEGER NOT NULL,
    loser_to INTEGER NOT NULL,
    loser_to_slot INTEGER NOT NULL,
    PRIMARY KEY (event_id, idx)
);

CREATE INDEX IF NOT EXISTS idx_bracket_match_race ON bracket_match(event_id, race_number);
`
