// Package entity contains the core business objects of the project.
package entity

import (
	"time"
)

// RequestID identifies a pickup/delivery request.
type RequestID int64

// DemandID identifies a single pickup or delivery obligation.
type DemandID int64

// DemandKind tells whether a demand is a pickup or a delivery.
type DemandKind string

const (
	// DemandPickup is the collection half of a request.
	DemandPickup DemandKind = "pickup"
	// DemandDelivery is the drop-off half of a request.
	DemandDelivery DemandKind = "delivery"
)

// String returns the string representation of the DemandKind.
func (k DemandKind) String() string {
	return string(k)
}

// Demand is one pickup or delivery obligation at an intersection.
type Demand struct {
	ID           DemandID
	RequestID    RequestID      // Owning request.
	Kind         DemandKind     // Pickup or delivery.
	Intersection IntersectionID // Where the vehicle must stop.
	Service      time.Duration  // Time spent at the stop.
}

// IsPickup reports whether the demand is the pickup half of its request.
func (d Demand) IsPickup() bool {
	return d.Kind == DemandPickup
}

// Request links exactly one pickup demand and one delivery demand.
type Request struct {
	ID       RequestID
	Pickup   Demand
	Delivery Demand
	Deadline *time.Time // Latest acceptable arrival at the delivery, nil when unconstrained.
}

// Sibling returns the other demand of the request.
func (r *Request) Sibling(id DemandID) (Demand, bool) {
	switch id {
	case r.Pickup.ID:
		return r.Delivery, true
	case r.Delivery.ID:
		return r.Pickup, true
	default:
		return Demand{}, false
	}
}

// Demand returns the demand of the request with the given id.
func (r *Request) Demand(id DemandID) (Demand, bool) {
	switch id {
	case r.Pickup.ID:
		return r.Pickup, true
	case r.Delivery.ID:
		return r.Delivery, true
	default:
		return Demand{}, false
	}
}

// HasDeadline reports whether the delivery must be reached before a deadline.
func (r *Request) HasDeadline() bool {
	return r.Deadline != nil
}

// WithService returns a copy of the request with the service duration of one
// demand replaced. The receiver is left untouched.
func (r *Request) WithService(id DemandID, service time.Duration) (*Request, bool) {
	out := *r
	switch id {
	case r.Pickup.ID:
		out.Pickup.Service = service
	case r.Delivery.ID:
		out.Delivery.Service = service
	default:
		return nil, false
	}
	if r.Deadline != nil {
		deadline := *r.Deadline
		out.Deadline = &deadline
	}

	return &out, true
}
