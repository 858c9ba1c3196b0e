// Package entity contains the core business objects of the project.
package entity

import (
	"time"

	"github.com/paulmach/orb"
)

// IntersectionID identifies a node of the road network.
type IntersectionID int64

// Intersection is a road network node. It is immutable once loaded.
type Intersection struct {
	ID  IntersectionID // Identifier as given by the network description.
	Lat float64        // The geographic latitude.
	Lng float64        // The geographic longitude.
}

// Point returns the intersection as an orb point (lng, lat order).
func (i Intersection) Point() orb.Point {
	return orb.Point{i.Lng, i.Lat}
}

// Segment is a directed road section between two intersections.
type Segment struct {
	From       IntersectionID // Origin intersection.
	To         IntersectionID // Destination intersection.
	StreetName string         // Street name, may be blank.
	Length     float64        // Length in meters.
	Duration   time.Duration  // Traversal time derived from length and speed.
}

// Path is the result of a shortest path query.
type Path struct {
	From          IntersectionID
	To            IntersectionID
	Duration      time.Duration    // Total traversal time.
	Length        float64          // Total length in meters.
	Intersections []IntersectionID // Visited intersections, both ends included.
	Segments      []Segment        // Traversed segments in order.
}

// Streets returns the distinct consecutive street names along the path.
func (p Path) Streets() []string {
	var streets []string
	for _, seg := range p.Segments {
		if seg.StreetName == "" {
			continue
		}
		if len(streets) > 0 && streets[len(streets)-1] == seg.StreetName {
			continue
		}
		streets = append(streets, seg.StreetName)
	}

	return streets
}
