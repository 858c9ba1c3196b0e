package service

import (
	"time"

	"tourplanner/internal/domain/entity"
)

// PathFinder defines the interface for shortest path queries on a road network
type PathFinder interface {
	// ShortestPath returns the fastest path between two intersections
	ShortestPath(from, to entity.IntersectionID) (entity.Path, error)

	// TravelTime returns the duration of the fastest path between two intersections
	TravelTime(from, to entity.IntersectionID) (time.Duration, error)

	// Contains reports whether the intersection belongs to the network
	Contains(id entity.IntersectionID) bool
}
