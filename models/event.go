package models

import "time"

// Phase represents the draw phases of an event, matching the phase ENUM in the DB.
type Phase string

const (
	PhaseRegistration    Phase = "registration"
	PhaseRoundRobin      Phase = "round_robin"
	PhaseStandingsFrozen Phase = "standings_frozen"
	PhaseKnockout        Phase = "knockout"
	PhaseComplete        Phase = "complete"
)

// Event owns all cars, races and bracket matches for one race day.
type Event struct {
	ID    int       `json:"event_id" db:"event_id"`
	Date  time.Time `json:"event_date" db:"event_date"`
	Name  string    `json:"event_name" db:"event_name"`
	Phase Phase     `json:"phase" db:"phase"`

	// Optional linked entities, populated by the service layer.
	Cars    []Car            `json:"cars,omitempty" db:"-"`
	Races   []RoundRobinRace `json:"races,omitempty" db:"-"`
	Bracket []BracketMatch   `json:"bracket,omitempty" db:"-"`
}
