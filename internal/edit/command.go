// Package edit applies reversible edits to a computed tour.
package edit

import (
	"fmt"
	"slices"
	"time"

	"tourplanner/internal/domain/entity"
	domainerrors "tourplanner/internal/domain/errors"
)

// Kind tags a command variant.
type Kind string

const (
	KindRemoveDemand       Kind = "remove-demand"
	KindRemoveRequest      Kind = "remove-request"
	KindReorder            Kind = "reorder"
	KindAddRequest         Kind = "add-request"
	KindSetServiceDuration Kind = "set-service-duration"
)

// ReorderMode selects how a reorder moves stops.
type ReorderMode string

const (
	// ReorderMove takes the stop at From out and reinserts it at To.
	ReorderMove ReorderMode = "move"
	// ReorderSwap exchanges the stops at From and To.
	ReorderSwap ReorderMode = "swap"
)

// Command is one reversible edit. Only the fields of its Kind are used.
// The unexported fields are filled on first application and let undo and
// redo reproduce the exact same state, identifiers included.
type Command struct {
	Kind Kind

	DemandID   entity.DemandID   // remove-demand, set-service-duration
	RequestID  entity.RequestID  // remove-request
	From, To   int               // reorder, tour stop indices (depot is 0)
	Mode       ReorderMode       // reorder
	NewRequest entity.NewRequest // add-request
	Service    time.Duration     // set-service-duration

	request     *entity.Request // removed or added request
	setIndex    int             // position of request in the request set
	pickupPos   int             // order positions before removal / after insertion
	deliveryPos int
	previous    time.Duration // service duration before set-service-duration
	applied     bool
}

// RemoveDemand removes a demand. Its sibling cannot stay alone, so the whole
// request leaves the tour.
func RemoveDemand(id entity.DemandID) *Command {
	return &Command{Kind: KindRemoveDemand, DemandID: id}
}

// RemoveRequest removes both demands of a request.
func RemoveRequest(id entity.RequestID) *Command {
	return &Command{Kind: KindRemoveRequest, RequestID: id}
}

// Reorder moves or swaps two intermediate stops.
func Reorder(from, to int, mode ReorderMode) *Command {
	if mode == "" {
		mode = ReorderMove
	}

	return &Command{Kind: KindReorder, From: from, To: to, Mode: mode}
}

// AddRequest inserts a new request with cheapest insertion.
func AddRequest(req entity.NewRequest) *Command {
	return &Command{Kind: KindAddRequest, NewRequest: req}
}

// SetServiceDuration changes the time spent at one demand.
func SetServiceDuration(id entity.DemandID, service time.Duration) *Command {
	return &Command{Kind: KindSetServiceDuration, DemandID: id, Service: service}
}

// String implements fmt.Stringer.
func (c *Command) String() string {
	switch c.Kind {
	case KindRemoveDemand, KindSetServiceDuration:
		return fmt.Sprintf("%s(%d)", c.Kind, c.DemandID)
	case KindRemoveRequest:
		return fmt.Sprintf("%s(%d)", c.Kind, c.RequestID)
	case KindReorder:
		return fmt.Sprintf("%s(%s %d->%d)", c.Kind, c.Mode, c.From, c.To)
	default:
		return string(c.Kind)
	}
}

// Request returns the request removed or added by the command, once applied.
func (c *Command) Request() *entity.Request {
	return c.request
}

// working is the scratch copy a command is applied to.
type working struct {
	requests *entity.RequestSet
	order    []entity.DemandID
	insert   func(requests *entity.RequestSet, order []entity.DemandID, request *entity.Request) ([]entity.DemandID, error)
	contains func(entity.IntersectionID) bool
}

func (c *Command) apply(w *working) error {
	switch c.Kind {
	case KindRemoveDemand:
		_, request, ok := w.requests.Demand(c.DemandID)
		if !ok || !slices.Contains(w.order, c.DemandID) {
			return domainerrors.ErrNotFound.WithDetails(fmt.Sprintf("demand %d is not in the tour", c.DemandID))
		}

		return c.remove(w, request.ID)
	case KindRemoveRequest:
		return c.remove(w, c.RequestID)
	case KindReorder:
		return c.reorder(w, c.From, c.To)
	case KindAddRequest:
		if err := c.add(w); err != nil {
			return err
		}
	case KindSetServiceDuration:
		if c.Service < 0 {
			return domainerrors.ErrValidationFailed.WithDetails("service duration must not be negative")
		}
		previous, err := setService(w, c.DemandID, c.Service)
		if err != nil {
			return err
		}
		if !c.applied {
			c.previous = previous
		}
	default:
		return domainerrors.ErrValidationFailed.WithDetails(fmt.Sprintf("unknown edit %q", c.Kind))
	}
	c.applied = true

	return nil
}

func (c *Command) revert(w *working) error {
	switch c.Kind {
	case KindRemoveDemand, KindRemoveRequest:
		w.requests.Restore(c.request, c.setIndex)
		w.order = slices.Insert(w.order, c.pickupPos, c.request.Pickup.ID)
		w.order = slices.Insert(w.order, c.deliveryPos, c.request.Delivery.ID)
	case KindReorder:
		if c.Mode == ReorderSwap {
			return c.reorder(w, c.From, c.To)
		}
		// Moving back from the destination restores the original order.
		return c.reorder(w, c.To, c.From)
	case KindAddRequest:
		if _, _, err := w.requests.Remove(c.request.ID); err != nil {
			return err
		}
		w.order = slices.DeleteFunc(w.order, func(id entity.DemandID) bool {
			return id == c.request.Pickup.ID || id == c.request.Delivery.ID
		})
	case KindSetServiceDuration:
		if _, err := setService(w, c.DemandID, c.previous); err != nil {
			return err
		}
	}

	return nil
}

func (c *Command) remove(w *working, id entity.RequestID) error {
	request, setIndex, err := w.requests.Remove(id)
	if err != nil {
		return err
	}
	pickupPos := slices.Index(w.order, request.Pickup.ID)
	deliveryPos := slices.Index(w.order, request.Delivery.ID)
	if pickupPos < 0 || deliveryPos < 0 {
		return domainerrors.ErrNotFound.WithDetails(fmt.Sprintf("request %d is not in the tour", id))
	}
	w.order = slices.DeleteFunc(w.order, func(d entity.DemandID) bool {
		return d == request.Pickup.ID || d == request.Delivery.ID
	})

	c.request = request
	c.setIndex = setIndex
	// Committed orders keep pickups first, so reinsertion in ascending
	// position order rebuilds the original list.
	c.pickupPos = pickupPos
	c.deliveryPos = deliveryPos
	c.applied = true

	return nil
}

func (c *Command) reorder(w *working, from, to int) error {
	stops := len(w.order)
	if from < 1 || from > stops || to < 1 || to > stops {
		return domainerrors.ErrNotFound.WithDetails(fmt.Sprintf("stop positions must be within 1..%d", stops))
	}
	if from == to {
		return domainerrors.ErrValidationFailed.WithDetails("reorder needs two different positions")
	}
	i, j := from-1, to-1

	order := slices.Clone(w.order)
	switch c.Mode {
	case ReorderSwap:
		order[i], order[j] = order[j], order[i]
	default:
		item := order[i]
		order = slices.Delete(order, i, i+1)
		order = slices.Insert(order, j, item)
	}
	w.order = order

	return nil
}

func (c *Command) add(w *working) error {
	if c.applied {
		// Redo restores the very same request and positions.
		w.requests.Restore(c.request, c.setIndex)
		w.order = slices.Insert(w.order, c.pickupPos, c.request.Pickup.ID)
		w.order = slices.Insert(w.order, c.deliveryPos, c.request.Delivery.ID)

		return nil
	}

	request, err := w.requests.Add(c.NewRequest, w.contains)
	if err != nil {
		return err
	}
	order, err := w.insert(w.requests, w.order, request)
	if err != nil {
		return err
	}
	w.order = order

	c.request = request
	c.setIndex = w.requests.IndexOf(request.ID)
	c.pickupPos = slices.Index(order, request.Pickup.ID)
	c.deliveryPos = slices.Index(order, request.Delivery.ID)

	return nil
}

func setService(w *working, id entity.DemandID, service time.Duration) (time.Duration, error) {
	demand, request, ok := w.requests.Demand(id)
	if !ok || !slices.Contains(w.order, id) {
		return 0, domainerrors.ErrNotFound.WithDetails(fmt.Sprintf("demand %d is not in the tour", id))
	}
	updated, _ := request.WithService(id, service)
	if err := w.requests.Replace(updated); err != nil {
		return 0, err
	}

	return demand.Service, nil
}
