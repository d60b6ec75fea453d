package draw

import "errors"

// Ошибки ядра жеребьёвки. The engine never retries or silently corrects:
// every error here is a deterministic function of caller input.
var (
	// Validation and roster errors
	ErrValidation   = errors.New("validation failed")
	ErrDuplicateCar = errors.New("duplicate car id in eligible set")
	ErrCarNotFound  = errors.New("car is not registered for this event")

	// Scheduling errors
	ErrInsufficientEntrants = errors.New("at least two eligible cars are required to schedule a round robin")
	ErrRaceNotFound         = errors.New("round-robin race not found")
	ErrResultRecorded       = errors.New("race result has already been recorded")
	ErrScheduleIncomplete   = errors.New("round-robin races remain unrecorded")

	// Bracket errors
	ErrInsufficientSeeds = errors.New("at least two knockout-eligible cars are required to build a bracket")
	ErrMatchNotFound     = errors.New("bracket match not found")
	ErrInvalidTransition = errors.New("match is not in a state that accepts a result")
	ErrUnknownSeed       = errors.New("car is not seeded into this match")

	// Phase errors
	ErrInvalidPhase = errors.New("operation is not legal in the current phase")
)
