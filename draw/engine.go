package draw

import (
	"fmt"
	"sort"

	"github.com/solarchallenge/draw-server/models"
)

// RecordResult records the outcome of a scheduled knockout race by the
// winning car and propagates both cars through the draw: the winner along its
// winners link, the loser into the losers bracket or out of the tournament.
// Recording against a match that is not Scheduled fails with
// ErrInvalidTransition; naming a car not seeded into the match fails with
// ErrUnknownSeed. Neither error mutates anything.
func (b *Bracket) RecordResult(raceNumber, winnerCarID int) error {
	idx, ok := b.byRace[raceNumber]
	if !ok {
		return fmt.Errorf("knockout race %d: %w", raceNumber, ErrMatchNotFound)
	}
	m := b.Matches[idx]
	if m.State != models.MatchScheduled {
		return fmt.Errorf("knockout race %d is %s: %w", raceNumber, m.State, ErrInvalidTransition)
	}
	if !m.HasCar(winnerCarID) {
		return fmt.Errorf("car %d in knockout race %d: %w", winnerCarID, raceNumber, ErrUnknownSeed)
	}
	winner, loser := m.SeedA, m.SeedB
	if winner.CarID != winnerCarID {
		winner, loser = m.SeedB, m.SeedA
	}
	b.resolve(m, winner, loser)
	return nil
}

func (b *Bracket) resolve(m *models.BracketMatch, winner, loser models.Seed) {
	m.State = models.MatchResolved
	if winner.IsCar() {
		c := winner.CarID
		m.Winner = &c
	}
	if loser.IsCar() {
		c := loser.CarID
		m.Loser = &c
	}

	if m.Side == models.BracketFinal {
		b.resolveFinal(m, winner, loser)
		return
	}

	if m.Index == b.losersFinal && loser.IsCar() {
		c := loser.CarID
		b.third = &c
	}
	if m.Index == b.losersSemi && loser.IsCar() {
		c := loser.CarID
		b.fourth = &c
	}

	if m.WinnerTo >= 0 {
		b.placeSeed(m.WinnerTo, m.WinnerToSlot, winner)
	}
	if m.LoserTo >= 0 {
		b.placeSeed(m.LoserTo, m.LoserToSlot, loser)
	} else if loser.IsCar() {
		// A loss in the losers bracket is the second loss.
		b.eliminated[loser.CarID] = true
	}
}

// placeSeed writes a propagated seed into a downstream slot, promoting the
// match to Scheduled once both occupants are known, or auto-resolving it when
// one of them is a bye.
func (b *Bracket) placeSeed(idx, slot int, seed models.Seed) {
	t := b.Matches[idx]
	if slot == 1 {
		t.SeedA = seed
	} else {
		t.SeedB = seed
	}
	if !t.SeedA.Known || !t.SeedB.Known {
		return
	}
	if t.IsByeMatch() {
		b.autoResolve(t)
	} else if t.State == models.MatchPending {
		t.State = models.MatchScheduled
	}
}

// autoResolve advances the real seed of a bye match without a race being run.
// When both seeds are byes (possible deep in the losers bracket of a heavily
// padded draw) the bye itself advances so downstream matches learn the slot
// is empty.
func (b *Bracket) autoResolve(m *models.BracketMatch) {
	var winner, loser models.Seed
	switch {
	case m.SeedA.Bye && m.SeedB.Bye:
		winner, loser = models.ByeSeed(), models.ByeSeed()
	case m.SeedA.Bye:
		winner, loser = m.SeedB, m.SeedA
	default:
		winner, loser = m.SeedA, m.SeedB
	}
	b.resolve(m, winner, loser)
}

// resolveFinal applies the grand-final rule: the winners-bracket champion
// arrives in slot A with zero losses, so a win of theirs ends the tournament
// immediately, while a win by the losers-bracket champion levels both cars at
// one loss and forces the decider.
func (b *Bracket) resolveFinal(m *models.BracketMatch, winner, loser models.Seed) {
	if m.Index == b.grandFinal {
		if winner.IsCar() && m.SeedA.IsCar() && winner.CarID == m.SeedA.CarID {
			b.crown(winner.CarID, m.Loser)
			return
		}
		dec := b.Matches[b.decider]
		dec.SeedA = m.SeedA
		dec.SeedB = m.SeedB
		dec.State = models.MatchScheduled
		return
	}
	if winner.IsCar() {
		b.crown(winner.CarID, m.Loser)
	}
}

func (b *Bracket) crown(champion int, runnerUp *int) {
	c := champion
	b.champion = &c
	if runnerUp != nil {
		r := *runnerUp
		b.runnerUp = &r
		b.eliminated[r] = true
	}
}

// Complete reports whether an undefeated champion has been determined.
func (b *Bracket) Complete() bool { return b.champion != nil }

// Champion returns the winning car once the tournament is complete.
func (b *Bracket) Champion() *int {
	if b.champion == nil {
		return nil
	}
	c := *b.champion
	return &c
}

// Eliminated reports whether the car has taken its second loss.
func (b *Bracket) Eliminated(carID int) bool { return b.eliminated[carID] }

// Podium returns the placings decided so far.
func (b *Bracket) Podium() Podium {
	cp := func(p *int) *int {
		if p == nil {
			return nil
		}
		c := *p
		return &c
	}
	return Podium{First: cp(b.champion), Second: cp(b.runnerUp), Third: cp(b.third), Fourth: cp(b.fourth)}
}

// ScheduledRaces lists the matches ready to run, in race-number order.
func (b *Bracket) ScheduledRaces() []*models.BracketMatch {
	var out []*models.BracketMatch
	for _, m := range b.Matches {
		if m.State == models.MatchScheduled {
			out = append(out, m)
		}
	}
	// arena order follows race numbering within a round but not across
	// rounds, so sort explicitly
	sort.Slice(out, func(i, j int) bool { return out[i].RaceNumber < out[j].RaceNumber })
	return out
}

// Snapshot returns a deep copy of the match arena for concurrent readers.
func (b *Bracket) Snapshot() []models.BracketMatch {
	out := make([]models.BracketMatch, len(b.Matches))
	for i, m := range b.Matches {
		out[i] = *m
		if m.Winner != nil {
			w := *m.Winner
			out[i].Winner = &w
		}
		if m.Loser != nil {
			l := *m.Loser
			out[i].Loser = &l
		}
	}
	return out
}
