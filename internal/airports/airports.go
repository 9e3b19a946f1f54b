// Package airports loads the airport, operating-region, and curated-route
// seed data the roster generator draws from. A default set ships embedded;
// a data file configured by the application overrides it.
package airports

import (
	_ "embed"
	"fmt"

	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"github.com/curbz/skylink/pkg/geometry"
	"github.com/curbz/skylink/pkg/util"
)

//go:embed airports.yaml
var defaultSeed []byte

// Airport is one seed entry.
type Airport struct {
	ICAO string  `yaml:"icao"`
	Name string  `yaml:"name"`
	Lat  float64 `yaml:"lat"`
	Lon  float64 `yaml:"lon"`
}

// Region is a named operating area. Polygon points are [lat, lon] pairs.
type Region struct {
	Name    string       `yaml:"name"`
	Polygon [][2]float64 `yaml:"polygon"`
}

type seedFile struct {
	Airports []Airport           `yaml:"airports"`
	Regions  []Region            `yaml:"regions"`
	Routes   map[string][]string `yaml:"routes"`
}

// DB is the loaded seed data with lookup indexes.
type DB struct {
	byICAO  map[string]Airport
	ordered []Airport
	regions []Region
	routes  map[string][]string
}

// Load reads seed data from path, or the embedded default when path is empty.
func Load(path string) (*DB, error) {
	var seed *seedFile
	var err error
	if path == "" {
		seed = &seedFile{}
		if err = yaml.Unmarshal(defaultSeed, seed); err != nil {
			return nil, fmt.Errorf("failed to unmarshal embedded airport seed: %w", err)
		}
	} else {
		seed, err = util.LoadConfig[seedFile](path)
		if err != nil {
			return nil, fmt.Errorf("error reading airport data file %s: %w", path, err)
		}
	}

	if len(seed.Airports) == 0 {
		return nil, fmt.Errorf("airport seed contains no airports")
	}

	db := &DB{
		byICAO: make(map[string]Airport, len(seed.Airports)),
		routes: seed.Routes,
	}
	for _, a := range seed.Airports {
		if a.ICAO == "" {
			continue
		}
		// A seed file repeating a code must not inflate the region pools;
		// the last entry wins, matching the map.
		if _, dup := db.byICAO[a.ICAO]; dup {
			logrus.WithField("icao", a.ICAO).Warn("duplicate airport entry in seed, keeping the last")
			db.byICAO[a.ICAO] = a
			for i := range db.ordered {
				if db.ordered[i].ICAO == a.ICAO {
					db.ordered[i] = a
					break
				}
			}
			continue
		}
		db.byICAO[a.ICAO] = a
		db.ordered = append(db.ordered, a)
	}
	db.regions = seed.Regions

	logrus.WithFields(logrus.Fields{
		"airports": len(db.ordered),
		"regions":  len(db.regions),
		"routes":   len(db.routes),
	}).Info("airport seed data loaded")

	return db, nil
}

// Get returns the airport for an ICAO code.
func (db *DB) Get(icao string) (Airport, bool) {
	a, ok := db.byICAO[icao]
	return a, ok
}

// DistanceNM returns the great-circle distance between two known airports,
// or 0 when either code is unknown.
func (db *DB) DistanceNM(from, to string) float64 {
	a, okA := db.byICAO[from]
	b, okB := db.byICAO[to]
	if !okA || !okB {
		return 0
	}
	return geometry.DistNM(a.Lat, a.Lon, b.Lat, b.Lon)
}

// RegionOf resolves the operating region containing the point. When several
// regions overlap, the smallest wins, so a sub-region beats the country-wide
// polygon that encloses it.
func (db *DB) RegionOf(lat, lon float64) *Region {
	var best *Region
	smallestArea := 0.0
	for i := range db.regions {
		r := &db.regions[i]
		if !geometry.IsPointInPolygon(lat, lon, r.Polygon) {
			continue
		}
		area := geometry.CalculateRoughArea(r.Polygon)
		if best == nil || area < smallestArea {
			best = r
			smallestArea = area
		}
	}
	return best
}

// RegionPool returns the airports that fall inside the operating region of
// the given airport. The anchor itself is included; callers exclude it when
// picking destinations. An airport outside every region gets the whole pool.
func (db *DB) RegionPool(icao string) []Airport {
	anchor, ok := db.byICAO[icao]
	if !ok {
		return db.ordered
	}
	region := db.RegionOf(anchor.Lat, anchor.Lon)
	if region == nil {
		return db.ordered
	}

	var pool []Airport
	for _, a := range db.ordered {
		if geometry.IsPointInPolygon(a.Lat, a.Lon, region.Polygon) {
			pool = append(pool, a)
		}
	}
	if len(pool) == 0 {
		return db.ordered
	}
	return pool
}

// CuratedRoutes returns the curated destination list for a cursor airport,
// or nil when none exists.
func (db *DB) CuratedRoutes(icao string) []string {
	return db.routes[icao]
}
