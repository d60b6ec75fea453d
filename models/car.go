package models

// Car is an entrant. Composite identity (event_id, car_id); the eligibility
// flags gate which phases the car can be scheduled into. Withdrawal mid-event
// is modeled by flipping presence flags, never by deleting the row.
type Car struct {
	EventID           int    `json:"event_id" db:"event_id"`
	CarID             int    `json:"car_id" db:"car_id"`
	SchoolID          int    `json:"school_id" db:"school_id"`
	Name              string `json:"car_name" db:"car_name"`
	Scrutineered      bool   `json:"car_scruitineered" db:"car_scruitineered"`
	PresentRoundRobin bool   `json:"present_round_robin" db:"present_round_robin"`
	PresentKnockout   bool   `json:"present_knockout" db:"present_knockout"`

	// SeedPoints optionally preloads qualification points from the roster,
	// used only when an event seeds a knockout without a round robin.
	SeedPoints *int `json:"seed_points,omitempty" db:"seed_points"`

	School *School `json:"school,omitempty" db:"-"`
}

// EligibleRoundRobin reports whether the car may be scheduled into a
// round-robin lane. An unscrutineered car never races.
func (c *Car) EligibleRoundRobin() bool {
	return c.Scrutineered && c.PresentRoundRobin
}

// EligibleKnockout reports whether the car may be seeded into the knockout.
func (c *Car) EligibleKnockout() bool {
	return c.Scrutineered && c.PresentKnockout
}
