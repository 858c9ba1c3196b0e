// Package planner builds, improves and schedules pickup and delivery tours.
package planner

import (
	"fmt"
	"time"

	"tourplanner/internal/domain/entity"
	domainerrors "tourplanner/internal/domain/errors"
	"tourplanner/internal/domain/service"
	"tourplanner/internal/errors"
)

// Problem is the fixed input of a tour computation.
type Problem struct {
	Depot    entity.IntersectionID
	Start    time.Time
	Requests *entity.RequestSet
}

func (p Problem) deadline(id entity.RequestID) *time.Time {
	request, ok := p.Requests.Get(id)
	if !ok {
		return nil
	}

	return request.Deadline
}

// Simulator turns a stop ordering into a timestamped tour.
type Simulator struct {
	paths service.PathFinder
}

// NewSimulator creates a simulator backed by the given path finder.
func NewSimulator(paths service.PathFinder) *Simulator {
	return &Simulator{paths: paths}
}

// Simulate validates order against the request set and schedules it. Service
// durations are read from the request set, so an unchanged order picks up
// edited durations.
func (s *Simulator) Simulate(problem Problem, order []entity.DemandID) (*entity.Tour, error) {
	demands, err := Resolve(problem.Requests, order)
	if err != nil {
		return nil, err
	}
	if err := CheckOrder(problem.Requests, demands); err != nil {
		return nil, err
	}

	return s.schedule(problem, demands)
}

// schedule walks the stops left to right. It does not require every request
// to be present, which lets the builder evaluate partial tours.
func (s *Simulator) schedule(problem Problem, demands []entity.Demand) (*entity.Tour, error) {
	tour := &entity.Tour{
		Depot:    problem.Depot,
		Start:    problem.Start,
		Stops:    make([]entity.Stop, 0, len(demands)+2),
		Feasible: true,
	}
	tour.Stops = append(tour.Stops, entity.Stop{
		Intersection: problem.Depot,
		Arrival:      problem.Start,
		Departure:    problem.Start,
	})

	current := problem.Start
	previous := problem.Depot
	for idx := range demands {
		demand := demands[idx]
		travel, err := s.paths.TravelTime(previous, demand.Intersection)
		if err != nil {
			return nil, stopError(err, idx+1, demand.Intersection)
		}
		arrival := current.Add(travel)
		departure := arrival.Add(demand.Service)
		tour.Stops = append(tour.Stops, entity.Stop{
			Intersection: demand.Intersection,
			Demand:       &demand,
			Arrival:      arrival,
			Departure:    departure,
		})
		if !demand.IsPickup() {
			if deadline := problem.deadline(demand.RequestID); deadline != nil && arrival.After(*deadline) {
				tour.Feasible = false
				tour.Late = append(tour.Late, demand.RequestID)
			}
		}
		current = departure
		previous = demand.Intersection
	}

	travel, err := s.paths.TravelTime(previous, problem.Depot)
	if err != nil {
		return nil, stopError(err, len(demands)+1, problem.Depot)
	}
	end := current.Add(travel)
	tour.Stops = append(tour.Stops, entity.Stop{
		Intersection: problem.Depot,
		Arrival:      end,
		Departure:    end,
	})
	tour.Total = end.Sub(problem.Start)

	return tour, nil
}

func stopError(err error, stop int, intersection entity.IntersectionID) error {
	if errors.Is(err, domainerrors.ErrUnreachable) {
		return domainerrors.ErrUnreachable.WithDetails(fmt.Sprintf("stop %d (intersection %d) cannot be reached", stop, intersection))
	}

	return err
}

// Resolve maps demand ids to the demands of the request set.
func Resolve(requests *entity.RequestSet, order []entity.DemandID) ([]entity.Demand, error) {
	demands := make([]entity.Demand, 0, len(order))
	for _, id := range order {
		demand, _, ok := requests.Demand(id)
		if !ok {
			return nil, domainerrors.ErrInvalidReference.WithDetails(fmt.Sprintf("demand %d", id))
		}
		demands = append(demands, demand)
	}

	return demands, nil
}

// CheckOrder verifies that every request appears exactly once with its pickup
// before its delivery.
func CheckOrder(requests *entity.RequestSet, demands []entity.Demand) error {
	seen := make(map[entity.DemandID]bool, len(demands))
	pickedUp := make(map[entity.RequestID]bool, requests.Len())
	for _, demand := range demands {
		if seen[demand.ID] {
			return domainerrors.ErrValidationFailed.WithDetails(fmt.Sprintf("demand %d appears twice", demand.ID))
		}
		seen[demand.ID] = true
		if demand.IsPickup() {
			pickedUp[demand.RequestID] = true
		} else if !pickedUp[demand.RequestID] {
			return domainerrors.ErrPrecedenceViolation.WithDetails(fmt.Sprintf("request %d delivered before pickup", demand.RequestID))
		}
	}
	if len(demands) != 2*requests.Len() {
		return domainerrors.ErrValidationFailed.WithDetails(
			fmt.Sprintf("tour visits %d demands, request set has %d", len(demands), 2*requests.Len()))
	}

	return nil
}

// precedenceHolds is the allocation-light check used inside search loops.
func precedenceHolds(demands []entity.Demand) bool {
	picked := make(map[entity.RequestID]struct{}, len(demands)/2)
	for _, demand := range demands {
		if demand.IsPickup() {
			picked[demand.RequestID] = struct{}{}

			continue
		}
		if _, ok := picked[demand.RequestID]; !ok {
			return false
		}
	}

	return true
}
