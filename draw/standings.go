package draw

import (
	"sort"

	"github.com/solarchallenge/draw-server/models"
)

type StandingsCalculator struct {
	policy Policy
}

func NewStandingsCalculator(policy Policy) *StandingsCalculator {
	return &StandingsCalculator{policy: policy}
}

// Standings ranks the given cars from the recorded round-robin races. The
// order is a strict total order: total points, then points earned in races
// among the cars tied on total, then car id. Computing the head-to-head key
// per tied group keeps the comparison transitive even when direct results
// form a cycle. The function is pure; calling it twice on the same races
// yields the same ranking.
//
// When no races exist (an event seeding a knockout straight from the roster)
// the preloaded seed points stand in for race totals.
func (c *StandingsCalculator) Standings(cars []*models.Car, races []*models.RoundRobinRace) []models.Standing {
	byID := make(map[int]*models.Car, len(cars))
	ids := make([]int, 0, len(cars))
	totals := make(map[int]int, len(cars))
	for _, car := range cars {
		byID[car.CarID] = car
		ids = append(ids, car.CarID)
		totals[car.CarID] = 0
	}

	if len(races) == 0 {
		for _, car := range cars {
			if car.SeedPoints != nil {
				totals[car.CarID] = *car.SeedPoints
			}
		}
	}

	rounds := 0
	raced := make(map[int]int, len(cars))
	for _, race := range races {
		if race.Round > rounds {
			rounds = race.Round
		}
		if race.Lane1 != nil {
			raced[*race.Lane1]++
			if race.Lane1Points != nil {
				totals[*race.Lane1] += *race.Lane1Points
			}
		}
		if race.Lane2 != nil {
			raced[*race.Lane2]++
			if race.Lane2Points != nil {
				totals[*race.Lane2] += *race.Lane2Points
			}
		}
	}
	if len(races) > 0 && c.policy.ByePoints != 0 {
		for _, id := range ids {
			if byes := rounds - raced[id]; byes > 0 {
				totals[id] += byes * c.policy.ByePoints
			}
		}
	}

	sort.Slice(ids, func(i, j int) bool {
		if totals[ids[i]] != totals[ids[j]] {
			return totals[ids[i]] > totals[ids[j]]
		}
		return ids[i] < ids[j]
	})

	groupPoints := make(map[int]int, len(ids))
	for start := 0; start < len(ids); {
		end := start + 1
		for end < len(ids) && totals[ids[end]] == totals[ids[start]] {
			end++
		}
		if end-start > 1 {
			group := make(map[int]bool, end-start)
			for _, id := range ids[start:end] {
				group[id] = true
			}
			for _, race := range races {
				if race.Lane1 == nil || race.Lane2 == nil {
					continue
				}
				if !group[*race.Lane1] || !group[*race.Lane2] {
					continue
				}
				if race.Lane1Points != nil {
					groupPoints[*race.Lane1] += *race.Lane1Points
				}
				if race.Lane2Points != nil {
					groupPoints[*race.Lane2] += *race.Lane2Points
				}
			}
			tied := ids[start:end]
			sort.Slice(tied, func(i, j int) bool {
				if groupPoints[tied[i]] != groupPoints[tied[j]] {
					return groupPoints[tied[i]] > groupPoints[tied[j]]
				}
				return tied[i] < tied[j]
			})
		}
		start = end
	}

	standings := make([]models.Standing, len(ids))
	for i, id := range ids {
		standings[i] = models.Standing{
			Rank:        i + 1,
			CarID:       id,
			Points:      totals[id],
			GroupPoints: groupPoints[id],
			Car:         byID[id],
		}
	}
	return standings
}
