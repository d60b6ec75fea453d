package models

// Standing is one row of the qualification ranking. It is derived data,
// recomputed from the round-robin races; it is never stored.
type Standing struct {
	Rank   int `json:"rank"`
	CarID  int `json:"car_id"`
	Points int `json:"points"`

	// GroupPoints are the points earned in races among cars tied on total
	// points; used as the head-to-head tie-break key.
	GroupPoints int `json:"group_points"`

	Car *Car `json:"car,omitempty"`
}
