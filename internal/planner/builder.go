package planner

import (
	"cmp"
	"context"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"tourplanner/internal/domain/entity"
	domainerrors "tourplanner/internal/domain/errors"
	"tourplanner/internal/domain/service"
	"tourplanner/internal/errors"
)

// Builder constructs an initial tour by cheapest insertion.
type Builder struct {
	paths     service.PathFinder
	simulator *Simulator
	logger    *slog.Logger
}

// NewBuilder creates a builder backed by the given path finder.
func NewBuilder(paths service.PathFinder, logger *slog.Logger) *Builder {
	if logger == nil {
		logger = slog.Default()
	}

	return &Builder{
		paths:     paths,
		simulator: NewSimulator(paths),
		logger:    logger,
	}
}

// insertion places a pickup after gap p and a delivery after gap q of the
// current stop list, q >= p. Gap g lies between stop g and stop g+1 where
// stop 0 is the depot.
type insertion struct {
	p, q int
	cost time.Duration
}

// Build inserts the requests one by one in insertion order. The context is
// checked before each request; a cancelled build returns no tour.
func (b *Builder) Build(ctx context.Context, problem Problem) (*entity.Tour, error) {
	var demands []entity.Demand
	for _, request := range problem.Requests.Requests() {
		if err := ctx.Err(); err != nil {
			return nil, errors.Wrap(err, "tour construction cancelled")
		}

		placed, err := b.insert(problem, demands, request)
		if err != nil {
			return nil, err
		}
		demands = placed
	}

	tour, err := b.simulator.schedule(problem, demands)
	if err != nil {
		return nil, err
	}
	b.logger.Debug("Initial tour built",
		"requests", problem.Requests.Len(),
		"total", tour.Total,
	)

	return tour, nil
}

// Insert adds one request to an existing ordering with the same rule as
// Build. The request must already belong to the problem's request set.
func (b *Builder) Insert(problem Problem, order []entity.DemandID, request *entity.Request) ([]entity.DemandID, error) {
	known := slices.DeleteFunc(slices.Clone(order), func(id entity.DemandID) bool {
		return id == request.Pickup.ID || id == request.Delivery.ID
	})
	demands, err := Resolve(problem.Requests, known)
	if err != nil {
		return nil, err
	}

	placed, err := b.insert(problem, demands, request)
	if err != nil {
		return nil, err
	}

	out := make([]entity.DemandID, len(placed))
	for idx, demand := range placed {
		out[idx] = demand.ID
	}

	return out, nil
}

func (b *Builder) insert(problem Problem, demands []entity.Demand, request *entity.Request) ([]entity.Demand, error) {
	candidates, err := b.candidates(problem.Depot, demands, request)
	if err != nil {
		return nil, err
	}
	if len(candidates) == 0 {
		return nil, domainerrors.ErrInfeasible.WithDetails(fmt.Sprintf("request %d cannot be reached from the tour", request.ID))
	}

	// Candidates come in (p, q) scan order; a stable sort by cost keeps the
	// smallest p then smallest q first among equal costs.
	slices.SortStableFunc(candidates, func(a, b insertion) int { return cmp.Compare(a.cost, b.cost) })

	checkDeadlines := problem.Requests.HasDeadlines()
	for _, candidate := range candidates {
		placed := apply(demands, request, candidate)
		if !checkDeadlines {
			return placed, nil
		}
		tour, simErr := b.simulator.schedule(problem, placed)
		if simErr != nil {
			if errors.Is(simErr, domainerrors.ErrUnreachable) {
				continue
			}

			return nil, simErr
		}
		if tour.Feasible {
			return placed, nil
		}
	}

	return nil, domainerrors.ErrInfeasible.WithDetails(fmt.Sprintf("request %d cannot meet its deadline", request.ID))
}

// candidates lists every reachable (p, q) pair with its marginal travel time.
func (b *Builder) candidates(depot entity.IntersectionID, demands []entity.Demand, request *entity.Request) ([]insertion, error) {
	nodes := make([]entity.IntersectionID, 0, len(demands)+2)
	nodes = append(nodes, depot)
	for _, demand := range demands {
		nodes = append(nodes, demand.Intersection)
	}
	nodes = append(nodes, depot)

	travel := func(from, to entity.IntersectionID) (time.Duration, bool, error) {
		d, err := b.paths.TravelTime(from, to)
		if err != nil {
			if errors.Is(err, domainerrors.ErrUnreachable) {
				return 0, false, nil
			}

			return 0, false, err
		}

		return d, true, nil
	}

	pickup := request.Pickup.Intersection
	delivery := request.Delivery.Intersection
	gaps := len(nodes) - 1

	// Single-stop detour costs per gap, unreachable gaps are marked absent.
	detour := func(stop entity.IntersectionID) ([]time.Duration, []bool, error) {
		costs := make([]time.Duration, gaps)
		ok := make([]bool, gaps)
		for g := range gaps {
			in, reachIn, err := travel(nodes[g], stop)
			if err != nil {
				return nil, nil, err
			}
			out, reachOut, err := travel(stop, nodes[g+1])
			if err != nil {
				return nil, nil, err
			}
			base, reachBase, err := travel(nodes[g], nodes[g+1])
			if err != nil {
				return nil, nil, err
			}
			if reachIn && reachOut && reachBase {
				costs[g] = in + out - base
				ok[g] = true
			}
		}

		return costs, ok, nil
	}

	pickupCost, pickupOK, err := detour(pickup)
	if err != nil {
		return nil, err
	}
	deliveryCost, deliveryOK, err := detour(delivery)
	if err != nil {
		return nil, err
	}
	between, betweenOK, err := travel(pickup, delivery)
	if err != nil {
		return nil, err
	}

	var out []insertion
	for p := range gaps {
		for q := p; q < gaps; q++ {
			if q == p {
				// pickup and delivery become adjacent inside the same gap
				in, reachIn, inErr := travel(nodes[p], pickup)
				if inErr != nil {
					return nil, inErr
				}
				back, reachBack, backErr := travel(delivery, nodes[p+1])
				if backErr != nil {
					return nil, backErr
				}
				base, reachBase, baseErr := travel(nodes[p], nodes[p+1])
				if baseErr != nil {
					return nil, baseErr
				}
				if reachIn && reachBack && reachBase && betweenOK {
					out = append(out, insertion{p: p, q: q, cost: in + between + back - base})
				}

				continue
			}
			if pickupOK[p] && deliveryOK[q] {
				out = append(out, insertion{p: p, q: q, cost: pickupCost[p] + deliveryCost[q]})
			}
		}
	}

	return out, nil
}

// apply returns a new stop list with the request inserted.
func apply(demands []entity.Demand, request *entity.Request, at insertion) []entity.Demand {
	out := make([]entity.Demand, 0, len(demands)+2)
	out = append(out, demands[:at.p]...)
	out = append(out, request.Pickup)
	out = append(out, demands[at.p:at.q]...)
	out = append(out, request.Delivery)
	out = append(out, demands[at.q:]...)

	return out
}
