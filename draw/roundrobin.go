package draw

import (
	"fmt"
	"math"
	"sort"

	"github.com/solarchallenge/draw-server/models"
)

// Policy carries the draw rules that are convention rather than hard fact.
type Policy struct {
	// ByePoints is what a car earns for each round-robin round it sits out.
	ByePoints int
}

var DefaultPolicy = Policy{ByePoints: 0}

// byeEntrant pads an odd roster so the rotation works over an even circle.
const byeEntrant = -1

// padVertex anchors the lane-balancing pad edges; it must never collide with
// a car id or the bye marker.
const padVertex = math.MinInt

type RoundRobinScheduler struct{}

func NewRoundRobinScheduler() *RoundRobinScheduler {
	return &RoundRobinScheduler{}
}

// Schedule generates the complete round-robin schedule for the cars eligible
// for the qualification phase. Every eligible car races every other exactly
// once; with an odd roster each car additionally sits out exactly one round.
// Lane sides are balanced so that no car's lane 1 and lane 2 counts differ by
// more than one.
func (s *RoundRobinScheduler) Schedule(eventID int, cars []*models.Car) ([]*models.RoundRobinRace, error) {
	ids := make([]int, 0, len(cars))
	seen := make(map[int]bool, len(cars))
	for _, car := range cars {
		if !car.EligibleRoundRobin() {
			continue
		}
		if seen[car.CarID] {
			return nil, fmt.Errorf("car %d listed twice: %w", car.CarID, ErrDuplicateCar)
		}
		seen[car.CarID] = true
		ids = append(ids, car.CarID)
	}
	if len(ids) < 2 {
		return nil, fmt.Errorf("found %d eligible cars: %w", len(ids), ErrInsufficientEntrants)
	}
	sort.Ints(ids)

	entrants := ids
	if len(entrants)%2 == 1 {
		entrants = append(append([]int(nil), ids...), byeEntrant)
	}

	rounds := schedulePairs(entrants)
	lane1 := balanceLanes(rounds)

	races := make([]*models.RoundRobinRace, 0, len(ids)*(len(ids)-1)/2)
	raceNumber := 1
	for r, round := range rounds {
		for _, p := range round {
			if p.a == byeEntrant || p.b == byeEntrant {
				// The real entrant of this pairing sits the round out.
				continue
			}
			first := lane1[keyOf(p.a, p.b)]
			second := p.a
			if first == p.a {
				second = p.b
			}
			l1, l2 := first, second
			races = append(races, &models.RoundRobinRace{
				EventID: eventID,
				Race:    raceNumber,
				Round:   r + 1,
				Lane1:   &l1,
				Lane2:   &l2,
			})
			raceNumber++
		}
	}
	return races, nil
}

type pairing struct{ a, b int }

// schedulePairs runs the circular rotation method over an even-sized roster:
// the entrant in position 0 stays fixed, everyone else rotates one position
// per round, and each round pairs opposite ends of the circle. No pairing
// repeats across the len(entrants)-1 rounds.
func schedulePairs(entrants []int) [][]pairing {
	m := len(entrants)
	arr := append([]int(nil), entrants...)
	rounds := make([][]pairing, 0, m-1)
	for r := 0; r < m-1; r++ {
		round := make([]pairing, 0, m/2)
		for i := 0; i < m/2; i++ {
			round = append(round, pairing{arr[i], arr[m-1-i]})
		}
		rounds = append(rounds, round)

		last := arr[m-1]
		copy(arr[2:], arr[1:m-1])
		arr[1] = last
	}
	return rounds
}

type pairKey struct{ lo, hi int }

func keyOf(a, b int) pairKey {
	if a < b {
		return pairKey{a, b}
	}
	return pairKey{b, a}
}

// balanceLanes decides which car of every pairing takes lane 1. The pairings
// form a graph with one vertex per car; orienting the edges along an Eulerian
// circuit gives every vertex equal in- and out-degree. Vertices of odd degree
// first get a pad edge to a virtual vertex, which is where the single allowed
// unit of lane imbalance per car ends up. The result maps each pairing to the
// car taking lane 1 and is deterministic for a given schedule.
func balanceLanes(rounds [][]pairing) map[pairKey]int {
	type edge struct {
		a, b int
		pad  bool
		used bool
	}

	var edges []*edge
	degree := make(map[int]int)
	var vertices []int
	for _, round := range rounds {
		for _, p := range round {
			if p.a == byeEntrant || p.b == byeEntrant {
				continue
			}
			edges = append(edges, &edge{a: p.a, b: p.b})
			for _, v := range []int{p.a, p.b} {
				if degree[v] == 0 {
					vertices = append(vertices, v)
				}
				degree[v]++
			}
		}
	}
	sort.Ints(vertices)

	for _, v := range vertices {
		if degree[v]%2 == 1 {
			edges = append(edges, &edge{a: padVertex, b: v, pad: true})
		}
	}

	adj := make(map[int][]*edge, len(vertices)+1)
	for _, e := range edges {
		adj[e.a] = append(adj[e.a], e)
		adj[e.b] = append(adj[e.b], e)
	}

	firstUnused := func(v int) *edge {
		for _, e := range adj[v] {
			if !e.used {
				return e
			}
		}
		return nil
	}

	lane1 := make(map[pairKey]int, len(edges))
	starts := append([]int{padVertex}, vertices...)
	for _, start := range starts {
		for firstUnused(start) != nil {
			// Every vertex has even degree, so a greedy walk from start
			// always closes back on it; orient edges in walk order.
			v := start
			for {
				e := firstUnused(v)
				if e == nil {
					break
				}
				e.used = true
				to := e.b
				if v == e.b {
					to = e.a
				}
				if !e.pad {
					lane1[keyOf(e.a, e.b)] = v
				}
				v = to
			}
		}
	}
	return lane1
}
