package models

import "fmt"

// RoundRobinRace is one paired qualification race. Lane references are car
// ids; a nil lane is a bye. Points move from unset to set exactly once when
// the result is recorded.
type RoundRobinRace struct {
	EventID     int  `json:"event_id" db:"event_id"`
	Race        int  `json:"race" db:"race"`
	Round       int  `json:"round" db:"round"`
	Lane1       *int `json:"car_lane_1,omitempty" db:"car_lane_1"`
	Lane2       *int `json:"car_lane_2,omitempty" db:"car_lane_2"`
	Lane1Points *int `json:"car_lane_1_points,omitempty" db:"car_lane_1_points"`
	Lane2Points *int `json:"car_lane_2_points,omitempty" db:"car_lane_2_points"`
}

// Recorded reports whether the race result has been recorded.
func (r *RoundRobinRace) Recorded() bool {
	if r.Lane1 != nil && r.Lane1Points == nil {
		return false
	}
	if r.Lane2 != nil && r.Lane2Points == nil {
		return false
	}
	return true
}

// Involves reports whether the car occupies either lane.
func (r *RoundRobinRace) Involves(carID int) bool {
	if r.Lane1 != nil && *r.Lane1 == carID {
		return true
	}
	if r.Lane2 != nil && *r.Lane2 == carID {
		return true
	}
	return false
}

// Validate enforces the pairing invariant: when both lanes are occupied the
// occupants must differ, and the race must belong to the given event.
func (r *RoundRobinRace) Validate(eventID int) error {
	if r.EventID != eventID {
		return fmt.Errorf("race %d belongs to event %d, not %d", r.Race, r.EventID, eventID)
	}
	if r.Lane1 != nil && r.Lane2 != nil && *r.Lane1 == *r.Lane2 {
		return fmt.Errorf("race %d pairs car %d against itself", r.Race, *r.Lane1)
	}
	return nil
}
