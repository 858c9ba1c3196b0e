// Package entity contains the core business objects of the project.
package entity

import (
	"slices"
	"time"
)

// Stop is one visit of the tour. The depot stops carry no demand.
type Stop struct {
	Intersection IntersectionID
	Demand       *Demand // nil at the depot
	Arrival      time.Time
	Departure    time.Time
}

// IsDepot reports whether the stop is the start or the end of the tour.
func (s Stop) IsDepot() bool {
	return s.Demand == nil
}

// Tour is an ordered, timestamped sequence of stops that starts and ends at
// the depot.
type Tour struct {
	Depot    IntersectionID
	Start    time.Time
	Stops    []Stop
	Total    time.Duration // Return time minus start time.
	Feasible bool          // Precedence holds and every deadline is met.
	Late     []RequestID   // Requests whose delivery misses its deadline.
}

// End returns the time the vehicle is back at the depot.
func (t *Tour) End() time.Time {
	if len(t.Stops) == 0 {
		return t.Start
	}

	return t.Stops[len(t.Stops)-1].Arrival
}

// Order returns the demand ids of the intermediate stops.
func (t *Tour) Order() []DemandID {
	order := make([]DemandID, 0, len(t.Stops))
	for _, stop := range t.Stops {
		if stop.Demand != nil {
			order = append(order, stop.Demand.ID)
		}
	}

	return order
}

// Demands returns the demands of the intermediate stops in visiting order.
func (t *Tour) Demands() []Demand {
	demands := make([]Demand, 0, len(t.Stops))
	for _, stop := range t.Stops {
		if stop.Demand != nil {
			demands = append(demands, *stop.Demand)
		}
	}

	return demands
}

// IndexOf returns the stop index of a demand, or -1.
func (t *Tour) IndexOf(id DemandID) int {
	return slices.IndexFunc(t.Stops, func(s Stop) bool {
		return s.Demand != nil && s.Demand.ID == id
	})
}

// Len returns the number of intermediate stops.
func (t *Tour) Len() int {
	if len(t.Stops) < 2 {
		return 0
	}

	return len(t.Stops) - 2
}

// Clone returns a deep copy of the tour.
func (t *Tour) Clone() *Tour {
	if t == nil {
		return nil
	}
	out := *t
	out.Stops = make([]Stop, len(t.Stops))
	for i, stop := range t.Stops {
		out.Stops[i] = stop
		if stop.Demand != nil {
			demand := *stop.Demand
			out.Stops[i].Demand = &demand
		}
	}
	out.Late = slices.Clone(t.Late)

	return &out
}
