package network

import (
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geo"

	"tourplanner/internal/domain/entity"
)

const kmPerDegreeLat = 111.0

// GridIndex implements a simple grid-based spatial index over intersections
type GridIndex struct {
	intersections []entity.Intersection
	grid          map[gridKey][]int // maps grid cell to intersection indices
	cellSizeKm    float64
	cellSizeLat   float64 // grid cell size in latitude degrees
	cellSizeLng   float64 // grid cell size in longitude degrees
	bound         orb.Bound
}

type gridKey struct {
	latCell int
	lngCell int
}

// NewGridIndex creates a new grid-based spatial index
// cellSizeKm determines the grid cell size (smaller = more cells, faster lookup but more memory)
func NewGridIndex(cellSizeKm float64) *GridIndex {
	if cellSizeKm <= 0 {
		cellSizeKm = 1
	}

	return &GridIndex{
		grid:       make(map[gridKey][]int),
		cellSizeKm: cellSizeKm,
	}
}

// Build constructs the grid index from intersections
func (g *GridIndex) Build(intersections []entity.Intersection) {
	g.intersections = intersections
	g.grid = make(map[gridKey][]int)

	if len(intersections) == 0 {
		return
	}

	g.bound = intersections[0].Point().Bound()
	for _, intersection := range intersections {
		g.bound = g.bound.Extend(intersection.Point())
	}

	// Longitude degrees shrink with latitude; size cells at the box center.
	centerLat := g.bound.Center().Lat()
	g.cellSizeLat = g.cellSizeKm / kmPerDegreeLat
	g.cellSizeLng = g.cellSizeKm / (kmPerDegreeLat * math.Max(math.Cos(centerLat*math.Pi/180), 0.01))

	for idx, intersection := range intersections {
		key := g.getGridKey(intersection.Lat, intersection.Lng)
		g.grid[key] = append(g.grid[key], idx)
	}
}

// Nearest finds the index of the intersection nearest to the coordinate
func (g *GridIndex) Nearest(lat, lng float64) (int, bool) {
	if len(g.intersections) == 0 {
		return -1, false
	}

	key := g.getGridKey(lat, lng)
	bestIdx := -1
	bestDistSq := math.MaxFloat64

	for ring := 0; ring <= g.maxSearchRing(key); ring++ {
		g.searchRing(lat, lng, key, ring, &bestIdx, &bestDistSq)

		// Stop once the next ring cannot contain a closer point
		if bestIdx >= 0 && g.minDistanceToRingSq(ring+1) >= bestDistSq {
			break
		}
	}

	return bestIdx, bestIdx >= 0
}

// Size returns the number of intersections in the index
func (g *GridIndex) Size() int {
	return len(g.intersections)
}

func (g *GridIndex) getGridKey(lat, lng float64) gridKey {
	return gridKey{
		latCell: int(math.Floor((lat - g.bound.Min.Lat()) / g.cellSizeLat)),
		lngCell: int(math.Floor((lng - g.bound.Min.Lon()) / g.cellSizeLng)),
	}
}

func (g *GridIndex) searchRing(lat, lng float64, centerKey gridKey, ring int, bestIdx *int, bestDistSq *float64) bool {
	if ring == 0 {
		return g.searchCell(lat, lng, centerKey, bestIdx, bestDistSq)
	}

	found := false
	for dLat := -ring; dLat <= ring; dLat++ {
		for dLng := -ring; dLng <= ring; dLng++ {
			// Only process cells on the perimeter of this ring
			if abs(dLat) != ring && abs(dLng) != ring {
				continue
			}
			cellKey := gridKey{latCell: centerKey.latCell + dLat, lngCell: centerKey.lngCell + dLng}
			if g.searchCell(lat, lng, cellKey, bestIdx, bestDistSq) {
				found = true
			}
		}
	}

	return found
}

func (g *GridIndex) searchCell(lat, lng float64, key gridKey, bestIdx *int, bestDistSq *float64) bool {
	indices, exists := g.grid[key]
	if !exists {
		return false
	}

	found := false
	for _, idx := range indices {
		intersection := g.intersections[idx]
		distSq := g.squaredDistance(lat, lng, intersection.Lat, intersection.Lng)
		if distSq < *bestDistSq {
			*bestDistSq = distSq
			*bestIdx = idx
			found = true
		}
	}

	return found
}

// maxSearchRing covers the whole bounding box even from a query outside it
func (g *GridIndex) maxSearchRing(key gridKey) int {
	latCells := int(math.Ceil((g.bound.Max.Lat() - g.bound.Min.Lat()) / g.cellSizeLat))
	lngCells := int(math.Ceil((g.bound.Max.Lon() - g.bound.Min.Lon()) / g.cellSizeLng))
	outside := max(abs(key.latCell), abs(key.lngCell), abs(key.latCell-latCells), abs(key.lngCell-lngCells))

	return max(latCells, lngCells, outside) + 1
}

// minDistanceToRingSq is a lower bound, in cell units, of the distance to
// any point of the ring.
func (g *GridIndex) minDistanceToRingSq(ring int) float64 {
	d := float64(ring - 1)
	if d < 0 {
		return 0
	}

	return d * d
}

// squaredDistance measures in cell units so both axes are comparable
func (g *GridIndex) squaredDistance(lat1, lng1, lat2, lng2 float64) float64 {
	dLat := (lat2 - lat1) / g.cellSizeLat
	dLng := (lng2 - lng1) / g.cellSizeLng

	return dLat*dLat + dLng*dLng
}

func abs(x int) int {
	if x < 0 {
		return -x
	}

	return x
}

func distanceMeters(lat, lng float64, intersection entity.Intersection) float64 {
	return geo.DistanceHaversine(orb.Point{lng, lat}, intersection.Point())
}
