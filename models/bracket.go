package models

// BracketSide identifies which half of the double-elimination draw a match
// belongs to.
type BracketSide string

const (
	BracketWinners BracketSide = "winners"
	BracketLosers  BracketSide = "losers"
	BracketFinal   BracketSide = "final"
)

// MatchState is the per-match state machine.
type MatchState string

const (
	MatchPending   MatchState = "pending"   // waiting on one or both seeds
	MatchScheduled MatchState = "scheduled" // both seeds known, not yet run
	MatchResolved  MatchState = "resolved"  // winner and loser recorded
)

// Seed is a bracket slot occupant: a car, an explicit bye, or not yet known.
type Seed struct {
	Known bool `json:"known"`
	Bye   bool `json:"bye,omitempty"`
	CarID int  `json:"car_id,omitempty"`
}

// NoSeed marks a slot still waiting on an upstream result.
var NoSeed = Seed{}

func CarSeed(carID int) Seed { return Seed{Known: true, CarID: carID} }
func ByeSeed() Seed          { return Seed{Known: true, Bye: true} }

// IsCar reports whether the seed is a real entrant.
func (s Seed) IsCar() bool { return s.Known && !s.Bye }

// BracketMatch is one node of the knockout draw. Matches are stored in a flat
// arena slice per event; WinnerTo and LoserTo are arena indices (-1 when the
// winner/loser leaves the bracket).
type BracketMatch struct {
	EventID    int         `json:"event_id" db:"event_id"`
	Index      int         `json:"idx" db:"idx"`
	Side       BracketSide `json:"bracket" db:"bracket"`
	Round      int         `json:"round" db:"round"`
	Slot       int         `json:"slot" db:"slot"`
	RaceNumber int         `json:"race_number" db:"race_number"`

	SeedA Seed       `json:"seed_a"`
	SeedB Seed       `json:"seed_b"`
	State MatchState `json:"state" db:"state"`

	Winner *int `json:"winner,omitempty" db:"winner"`
	Loser  *int `json:"loser,omitempty" db:"loser"`

	WinnerTo     int `json:"winner_to" db:"winner_to"`
	WinnerToSlot int `json:"winner_to_slot" db:"winner_to_slot"`
	LoserTo      int `json:"loser_to" db:"loser_to"`
	LoserToSlot  int `json:"loser_to_slot" db:"loser_to_slot"`
}

// HasCar reports whether the car is seeded into this match.
func (m *BracketMatch) HasCar(carID int) bool {
	if m.SeedA.IsCar() && m.SeedA.CarID == carID {
		return true
	}
	if m.SeedB.IsCar() && m.SeedB.CarID == carID {
		return true
	}
	return false
}

// IsByeMatch reports whether at least one known seed is a bye.
func (m *BracketMatch) IsByeMatch() bool {
	return (m.SeedA.Known && m.SeedA.Bye) || (m.SeedB.Known && m.SeedB.Bye)
}
