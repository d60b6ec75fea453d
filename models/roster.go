package models

// RosterRow is one validated line of an ingested car roster.
type RosterRow struct {
	CarID             int    `json:"car_id"`
	SchoolID          int    `json:"school_id"`
	CarName           string `json:"car_name"`
	Scrutineered      bool   `json:"car_scruitineered"`
	PresentRoundRobin bool   `json:"present_round_robin"`
	PresentKnockout   bool   `json:"present_knockout"`
	SeedPoints        *int   `json:"seed_points,omitempty"`
}

// Car converts the roster row into a car owned by the given event.
func (r RosterRow) Car(eventID int) *Car {
	return &Car{
		EventID:           eventID,
		CarID:             r.CarID,
		SchoolID:          r.SchoolID,
		Name:              r.CarName,
		Scrutineered:      r.Scrutineered,
		PresentRoundRobin: r.PresentRoundRobin,
		PresentKnockout:   r.PresentKnockout,
		SeedPoints:        r.SeedPoints,
	}
}
