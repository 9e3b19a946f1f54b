// Package roster produces the ordered queue of legs a session will fly.
package roster

import (
	"fmt"
	"math/rand"
	"time"

	"github.com/google/uuid"

	"github.com/curbz/skylink/internal/airports"
	"github.com/curbz/skylink/internal/model"
)

const (
	// Gap between scheduled departures in a generated chain.
	departureInterval = 2 * time.Hour

	fuelPerNM      = 8.5    // pounds, planning heuristic
	reserveFuelLbs = 2500.0 // pounds
	cargoPerPaxLbs = 40.0   // baggage baseline, randomly topped up
)

// Generator builds connected leg chains from the airport seed data.
type Generator struct {
	rng      *rand.Rand
	db       *airports.DB
	callsign string
}

// New returns a Generator seeded with the current time.
func New(db *airports.DB, callsign string) *Generator {
	return NewSeeded(db, callsign, time.Now().UnixNano())
}

// NewSeeded returns a Generator with a fixed seed for reproducible output.
func NewSeeded(db *airports.DB, callsign string, seed int64) *Generator {
	if callsign == "" {
		callsign = "SKY"
	}
	return &Generator{
		rng:      rand.New(rand.NewSource(seed)),
		db:       db,
		callsign: callsign,
	}
}

// Generate produces n legs starting at origin for the given aircraft, as a
// connected chain: each leg departs where the previous one arrived. All legs
// are returned pending; the session decides which one becomes current.
func (g *Generator) Generate(origin string, n int, ac model.Aircraft, start time.Time) []model.RosterLeg {
	legs := make([]model.RosterLeg, 0, n)
	cursor := origin

	for i := 0; i < n; i++ {
		dest := g.pickDestination(cursor)
		if dest == "" {
			break
		}

		pax := g.paxCount(ac.MaxPax)
		legs = append(legs, model.RosterLeg{
			ID:           uuid.NewString(),
			FlightNumber: fmt.Sprintf("%s%d", g.callsign, 100+g.rng.Intn(900)),
			Origin:       cursor,
			Destination:  dest,
			DistanceNM:   g.db.DistanceNM(cursor, dest),
			Departure:    start.Add(time.Duration(i) * departureInterval),
			Status:       model.LegPending,
			Pax:          pax,
			CargoLbs:     float64(pax) * (cargoPerPaxLbs * (1 + g.rng.Float64()*0.5)),
			MinFuelLbs:   g.db.DistanceNM(cursor, dest)*fuelPerNM + reserveFuelLbs,
			AircraftID:   ac.ID,
		})

		cursor = dest
	}

	return legs
}

// pickDestination selects the next airport for the cursor: a curated route
// when one exists, otherwise a uniform pick from the cursor's operating
// region, resampling on a collision with the cursor itself so origin and
// destination always differ.
func (g *Generator) pickDestination(cursor string) string {
	if curated := g.db.CuratedRoutes(cursor); len(curated) > 0 {
		candidates := make([]string, 0, len(curated))
		for _, c := range curated {
			if c == cursor {
				continue
			}
			if _, ok := g.db.Get(c); ok {
				candidates = append(candidates, c)
			}
		}
		if len(candidates) > 0 {
			return candidates[g.rng.Intn(len(candidates))]
		}
	}

	pool := g.db.RegionPool(cursor)
	if len(pool) == 0 || (len(pool) == 1 && pool[0].ICAO == cursor) {
		return ""
	}
	for {
		pick := pool[g.rng.Intn(len(pool))]
		if pick.ICAO != cursor {
			return pick.ICAO
		}
	}
}

// paxCount is a random 50-100% fill of the aircraft's capacity. The lower
// bound rounds up so odd capacities cannot fill below half.
func (g *Generator) paxCount(maxPax int) int {
	if maxPax <= 0 {
		return 0
	}
	half := (maxPax + 1) / 2
	return half + g.rng.Intn(maxPax-half+1)
}
