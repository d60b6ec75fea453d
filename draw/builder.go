package draw

import (
	"fmt"
	"math/bits"
	"sort"

	"github.com/solarchallenge/draw-server/models"
)

// Bracket is the materialized double-elimination draw for one event: a flat
// arena of matches with index links, mutated race by race as results arrive.
type Bracket struct {
	EventID int
	Matches []*models.BracketMatch

	winnersRounds int
	grandFinal    int
	decider       int
	losersFinal   int // -1 when the draw has no losers rounds (2 entrants)
	losersSemi    int // feeds 4th place; -1 when absent

	champion   *int
	runnerUp   *int
	third      *int
	fourth     *int
	eliminated map[int]bool
	byRace     map[int]int // race number -> arena index
}

// Podium holds the final placings. Entries are nil until decided (or when the
// draw is too small to award them).
type Podium struct {
	First  *int `json:"first,omitempty"`
	Second *int `json:"second,omitempty"`
	Third  *int `json:"third,omitempty"`
	Fourth *int `json:"fourth,omitempty"`
}

type BracketBuilder struct{}

func NewBracketBuilder() *BracketBuilder {
	return &BracketBuilder{}
}

// Build constructs the whole knockout skeleton up front from the ranked seed
// list: winners bracket with standard seeding, losers bracket with repecharge
// rounds interleaved against consolidation rounds, grand final and a decider
// that only runs if the losers-bracket champion wins the first final. Seeds
// are car ids in rank order; the count is padded to the next power of two
// with byes, which auto-resolve without a race being run.
func (b *BracketBuilder) Build(eventID int, seeds []int) (*Bracket, error) {
	k := len(seeds)
	if k < 2 {
		return nil, fmt.Errorf("found %d seeds: %w", k, ErrInsufficientSeeds)
	}
	size := 1
	for size < k {
		size <<= 1
	}
	rounds := bits.Len(uint(size)) - 1

	br := &Bracket{
		EventID:       eventID,
		winnersRounds: rounds,
		losersFinal:   -1,
		losersSemi:    -1,
		eliminated:    make(map[int]bool),
		byRace:        make(map[int]int),
	}
	add := func(side models.BracketSide, round, slot int) *models.BracketMatch {
		m := &models.BracketMatch{
			EventID:  eventID,
			Index:    len(br.Matches),
			Side:     side,
			Round:    round,
			Slot:     slot,
			State:    models.MatchPending,
			WinnerTo: -1,
			LoserTo:  -1,
		}
		br.Matches = append(br.Matches, m)
		return m
	}

	winners := make([][]*models.BracketMatch, rounds)
	for r := 0; r < rounds; r++ {
		count := size >> (r + 1)
		winners[r] = make([]*models.BracketMatch, count)
		for s := 0; s < count; s++ {
			winners[r][s] = add(models.BracketWinners, r, s)
		}
	}

	losersRounds := 0
	if rounds > 1 {
		losersRounds = 2 * (rounds - 1)
	}
	losers := make([][]*models.BracketMatch, losersRounds)
	for l := 0; l < losersRounds; l++ {
		count := losersRoundSize(size, l)
		losers[l] = make([]*models.BracketMatch, count)
		for s := 0; s < count; s++ {
			losers[l][s] = add(models.BracketLosers, l, s)
		}
	}

	grandFinal := add(models.BracketFinal, 0, 0)
	decider := add(models.BracketFinal, 1, 0)
	br.grandFinal = grandFinal.Index
	br.decider = decider.Index
	if losersRounds > 0 {
		br.losersFinal = losers[losersRounds-1][0].Index
		br.losersSemi = losers[losersRounds-2][0].Index
	}

	for r := 0; r < rounds; r++ {
		for s, m := range winners[r] {
			if r < rounds-1 {
				m.WinnerTo = winners[r+1][s/2].Index
				m.WinnerToSlot = 1 + s%2
			} else {
				m.WinnerTo = grandFinal.Index
				m.WinnerToSlot = 1
			}
			switch {
			case rounds == 1:
				m.LoserTo = grandFinal.Index
				m.LoserToSlot = 2
			case r == 0:
				m.LoserTo = losers[0][s/2].Index
				m.LoserToSlot = 1 + s%2
			default:
				target := losers[2*r-1]
				t := s
				if r >= 2 && r%2 == 0 {
					// Reverse the drop order on even winners rounds so a car
					// does not immediately meet the opponent it just lost to.
					t = len(target) - 1 - s
				}
				m.LoserTo = target[t].Index
				m.LoserToSlot = 1
			}
		}
	}

	for l := 0; l < losersRounds; l++ {
		for s, m := range losers[l] {
			switch {
			case l == losersRounds-1:
				m.WinnerTo = grandFinal.Index
				m.WinnerToSlot = 2
			case l%2 == 0:
				// First-losers and consolidation winners face the next
				// winners-round loser in the following repecharge.
				m.WinnerTo = losers[l+1][s].Index
				m.WinnerToSlot = 2
			default:
				// Repecharge winners pair off in a consolidation round.
				m.WinnerTo = losers[l+1][s/2].Index
				m.WinnerToSlot = 1 + s%2
			}
		}
	}

	order := seedOrder(size)
	seedAt := func(rank int) models.Seed {
		if rank <= k {
			return models.CarSeed(seeds[rank-1])
		}
		return models.ByeSeed()
	}
	for s, m := range winners[0] {
		m.SeedA = seedAt(order[2*s])
		m.SeedB = seedAt(order[2*s+1])
	}

	br.numberRaces(winners, losers)

	for _, m := range winners[0] {
		if m.IsByeMatch() {
			br.autoResolve(m)
		} else {
			m.State = models.MatchScheduled
		}
	}

	return br, nil
}

// losersRoundSize gives the match count of losers round l for a full bracket
// of the given size. Odd rounds are repecharges fed by winners round (l+1)/2,
// even rounds pair survivors among themselves.
func losersRoundSize(size, l int) int {
	switch {
	case l == 0:
		return size / 4
	case l%2 == 1:
		return size >> ((l+1)/2 + 1)
	default:
		return size >> (l/2 + 2)
	}
}

// seedOrder returns the first-round placement for a bracket of the given
// size (a power of two): seed 1 meets the lowest seed, seed 2 the second
// lowest, recursively, so the top seeds can only meet late. Every adjacent
// pair sums to size+1.
func seedOrder(size int) []int {
	order := []int{1}
	for len(order) < size {
		next := make([]int, 0, len(order)*2)
		for _, s := range order {
			next = append(next, s, 2*len(order)+1-s)
		}
		order = next
	}
	return order
}

// numberRaces assigns race numbers in play order, which interleaves winners
// (P) and losers (SC) rounds so the two halves of the draw stay roughly in
// sync: P1, SC1, P2, SC2, SC3, P3, SC4, ... GF.
func (b *Bracket) numberRaces(winners, losers [][]*models.BracketMatch) {
	n := 1
	for _, round := range b.playSequence(winners, losers) {
		for _, m := range round {
			m.RaceNumber = n
			b.byRace[n] = m.Index
			n++
		}
	}
}

func (b *Bracket) playSequence(winners, losers [][]*models.BracketMatch) [][]*models.BracketMatch {
	seq := [][]*models.BracketMatch{winners[0]}
	if len(losers) > 0 {
		seq = append(seq, losers[0])
	}
	for r := 1; r < len(winners); r++ {
		seq = append(seq, winners[r], losers[2*r-1])
		if 2*r < len(losers) {
			seq = append(seq, losers[2*r])
		}
	}
	seq = append(seq,
		[]*models.BracketMatch{b.Matches[b.grandFinal]},
		[]*models.BracketMatch{b.Matches[b.decider]},
	)
	return seq
}

// PlayOrder returns the round labels in running order, P for the winners
// bracket, SC for the losers bracket, GF for the final races.
func (b *Bracket) PlayOrder() []string {
	labels := []string{"P1"}
	losersRounds := 0
	if b.winnersRounds > 1 {
		losersRounds = 2 * (b.winnersRounds - 1)
		labels = append(labels, "SC1")
	}
	for r := 1; r < b.winnersRounds; r++ {
		labels = append(labels, fmt.Sprintf("P%d", r+1), fmt.Sprintf("SC%d", 2*r))
		if 2*r < losersRounds {
			labels = append(labels, fmt.Sprintf("SC%d", 2*r+1))
		}
	}
	return append(labels, "GF")
}

// RestoreBracket rebuilds the in-memory draw from persisted matches, so an
// event survives a process restart mid-knockout.
func RestoreBracket(eventID int, matches []*models.BracketMatch) (*Bracket, error) {
	if len(matches) == 0 {
		return nil, fmt.Errorf("no bracket matches stored for event %d: %w", eventID, ErrMatchNotFound)
	}
	br := &Bracket{
		EventID:     eventID,
		Matches:     append([]*models.BracketMatch(nil), matches...),
		losersFinal: -1,
		losersSemi:  -1,
		eliminated:  make(map[int]bool),
		byRace:      make(map[int]int),
	}
	sort.Slice(br.Matches, func(i, j int) bool { return br.Matches[i].Index < br.Matches[j].Index })

	maxLosers := -1
	for i, m := range br.Matches {
		if m.Index != i {
			return nil, fmt.Errorf("bracket arena for event %d is not contiguous at index %d: %w", eventID, m.Index, ErrValidation)
		}
		br.byRace[m.RaceNumber] = m.Index
		switch m.Side {
		case models.BracketWinners:
			if m.Round+1 > br.winnersRounds {
				br.winnersRounds = m.Round + 1
			}
		case models.BracketLosers:
			if m.Round > maxLosers {
				maxLosers = m.Round
			}
		case models.BracketFinal:
			if m.Round == 0 {
				br.grandFinal = m.Index
			} else {
				br.decider = m.Index
			}
		}
	}
	for _, m := range br.Matches {
		if m.Side == models.BracketLosers && m.Slot == 0 {
			if m.Round == maxLosers {
				br.losersFinal = m.Index
			}
			if m.Round == maxLosers-1 {
				br.losersSemi = m.Index
			}
		}
	}

	// Replay the resolved results to recover eliminations and placings.
	for _, m := range br.Matches {
		if m.State != models.MatchResolved {
			continue
		}
		if m.Side != models.BracketFinal && m.LoserTo < 0 && m.Loser != nil {
			br.eliminated[*m.Loser] = true
		}
		if m.Index == br.losersFinal && m.Loser != nil {
			c := *m.Loser
			br.third = &c
		}
		if m.Index == br.losersSemi && m.Loser != nil {
			c := *m.Loser
			br.fourth = &c
		}
	}
	gf := br.Matches[br.grandFinal]
	dec := br.Matches[br.decider]
	if gf.State == models.MatchResolved && gf.Winner != nil {
		if gf.SeedA.IsCar() && *gf.Winner == gf.SeedA.CarID {
			br.crown(*gf.Winner, gf.Loser)
		} else if dec.State == models.MatchResolved && dec.Winner != nil {
			br.crown(*dec.Winner, dec.Loser)
		}
	}
	return br, nil
}
