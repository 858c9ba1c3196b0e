// Package entity contains the core business objects of the project.
package entity

import (
	"fmt"
	"slices"
	"time"

	domainerrors "tourplanner/internal/domain/errors"
)

// RequestSet holds the requests of a session in insertion order.
// Identifiers are allocated monotonically and never reused, so a request
// restored by an undo keeps the identifiers it had before.
type RequestSet struct {
	order      []*Request
	byID       map[RequestID]*Request
	byDemand   map[DemandID]RequestID
	nextReq    RequestID
	nextDemand DemandID
	version    uint64
}

// NewRequestSet creates an empty request set.
func NewRequestSet() *RequestSet {
	return &RequestSet{
		byID:       make(map[RequestID]*Request),
		byDemand:   make(map[DemandID]RequestID),
		nextReq:    1,
		nextDemand: 1,
	}
}

// NewRequest describes a request before identifiers are allocated.
type NewRequest struct {
	Pickup           IntersectionID
	Delivery         IntersectionID
	PickupDuration   time.Duration
	DeliveryDuration time.Duration
	Deadline         *time.Time
}

// Add creates a request and its two demands. contains reports whether an
// intersection exists in the road network.
func (s *RequestSet) Add(req NewRequest, contains func(IntersectionID) bool) (*Request, error) {
	if contains != nil {
		if !contains(req.Pickup) {
			return nil, domainerrors.ErrInvalidReference.WithDetails(fmt.Sprintf("pickup intersection %d", req.Pickup))
		}
		if !contains(req.Delivery) {
			return nil, domainerrors.ErrInvalidReference.WithDetails(fmt.Sprintf("delivery intersection %d", req.Delivery))
		}
	}
	if req.PickupDuration < 0 || req.DeliveryDuration < 0 {
		return nil, domainerrors.ErrValidationFailed.WithDetails("service durations must not be negative")
	}

	id := s.nextReq
	request := &Request{
		ID: id,
		Pickup: Demand{
			ID:           s.nextDemand,
			RequestID:    id,
			Kind:         DemandPickup,
			Intersection: req.Pickup,
			Service:      req.PickupDuration,
		},
		Delivery: Demand{
			ID:           s.nextDemand + 1,
			RequestID:    id,
			Kind:         DemandDelivery,
			Intersection: req.Delivery,
			Service:      req.DeliveryDuration,
		},
	}
	if req.Deadline != nil {
		deadline := *req.Deadline
		request.Deadline = &deadline
	}
	s.nextReq++
	s.nextDemand += 2
	s.insertAt(len(s.order), request)

	return request, nil
}

// Remove deletes a request and both of its demands.
func (s *RequestSet) Remove(id RequestID) (*Request, int, error) {
	idx := s.IndexOf(id)
	if idx < 0 {
		return nil, -1, domainerrors.ErrNotFound.WithDetails(fmt.Sprintf("request %d", id))
	}
	request := s.order[idx]
	s.order = slices.Delete(s.order, idx, idx+1)
	delete(s.byID, id)
	delete(s.byDemand, request.Pickup.ID)
	delete(s.byDemand, request.Delivery.ID)
	s.version++

	return request, idx, nil
}

// Restore puts a previously removed request back at its former position.
func (s *RequestSet) Restore(request *Request, idx int) {
	if idx < 0 || idx > len(s.order) {
		idx = len(s.order)
	}
	s.insertAt(idx, request)
}

// Replace swaps a request for an updated copy with the same identifier.
func (s *RequestSet) Replace(request *Request) error {
	idx := s.IndexOf(request.ID)
	if idx < 0 {
		return domainerrors.ErrNotFound.WithDetails(fmt.Sprintf("request %d", request.ID))
	}
	s.order[idx] = request
	s.byID[request.ID] = request
	s.version++

	return nil
}

func (s *RequestSet) insertAt(idx int, request *Request) {
	s.order = slices.Insert(s.order, idx, request)
	s.byID[request.ID] = request
	s.byDemand[request.Pickup.ID] = request.ID
	s.byDemand[request.Delivery.ID] = request.ID
	s.version++
}

// Get returns the request with the given id.
func (s *RequestSet) Get(id RequestID) (*Request, bool) {
	request, ok := s.byID[id]

	return request, ok
}

// Demand returns the demand with the given id together with its request.
func (s *RequestSet) Demand(id DemandID) (Demand, *Request, bool) {
	reqID, ok := s.byDemand[id]
	if !ok {
		return Demand{}, nil, false
	}
	request := s.byID[reqID]
	demand, ok := request.Demand(id)

	return demand, request, ok
}

// IndexOf returns the insertion position of a request, or -1.
func (s *RequestSet) IndexOf(id RequestID) int {
	return slices.IndexFunc(s.order, func(r *Request) bool { return r.ID == id })
}

// Requests returns the requests in insertion order.
func (s *RequestSet) Requests() []*Request {
	return slices.Clone(s.order)
}

// Len returns the number of requests.
func (s *RequestSet) Len() int {
	return len(s.order)
}

// HasDeadlines reports whether any request carries a deadline.
func (s *RequestSet) HasDeadlines() bool {
	return slices.ContainsFunc(s.order, (*Request).HasDeadline)
}

// Version is incremented on every mutation.
func (s *RequestSet) Version() uint64 {
	return s.version
}

// Clone returns a copy sharing the immutable requests. Mutations of either
// set do not affect the other.
func (s *RequestSet) Clone() *RequestSet {
	out := &RequestSet{
		order:      slices.Clone(s.order),
		byID:       make(map[RequestID]*Request, len(s.byID)),
		byDemand:   make(map[DemandID]RequestID, len(s.byDemand)),
		nextReq:    s.nextReq,
		nextDemand: s.nextDemand,
		version:    s.version,
	}
	for id, request := range s.byID {
		out.byID[id] = request
	}
	for id, reqID := range s.byDemand {
		out.byDemand[id] = reqID
	}

	return out
}
