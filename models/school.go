package models

// School is shared between events: many cars reference one school.
type School struct {
	ID   int    `json:"school_id" db:"school_id"`
	Name string `json:"school_name" db:"school_name"`
}
