package planner

import (
	"context"
	"log/slog"
	"time"

	"tourplanner/internal/domain/entity"
	domainerrors "tourplanner/internal/domain/errors"
	"tourplanner/internal/domain/service"
	"tourplanner/internal/errors"
)

// OptimizerConfig bounds the local search.
type OptimizerConfig struct {
	MaxPasses  int           // 0 means unlimited
	TimeBudget time.Duration // 0 means unlimited
}

// DefaultOptimizerConfig returns the defaults used by the service.
func DefaultOptimizerConfig() OptimizerConfig {
	return OptimizerConfig{
		MaxPasses:  100,
		TimeBudget: 5 * time.Second,
	}
}

// Stats describes one optimisation run.
type Stats struct {
	Passes          int
	Accepted        int
	Cancelled       bool
	BudgetExhausted bool
	Initial         time.Duration
	Final           time.Duration
}

// Optimizer improves a feasible tour by pairwise swaps and single-stop
// relocations. The scan order is fixed and the first improving move is
// taken, so runs are reproducible.
type Optimizer struct {
	simulator *Simulator
	config    OptimizerConfig
	logger    *slog.Logger
	now       func() time.Time
}

// NewOptimizer creates an optimizer backed by the given path finder.
func NewOptimizer(paths service.PathFinder, config OptimizerConfig, logger *slog.Logger) *Optimizer {
	if logger == nil {
		logger = slog.Default()
	}

	return &Optimizer{
		simulator: NewSimulator(paths),
		config:    config,
		logger:    logger,
		now:       time.Now,
	}
}

type searchState struct {
	problem  Problem
	demands  []entity.Demand
	best     *entity.Tour
	accepted int
}

// Optimize runs passes until one accepts nothing, the budget is spent or ctx
// is cancelled. Cancellation is not an error: the last accepted tour is
// returned. The input tour is never modified.
func (o *Optimizer) Optimize(ctx context.Context, problem Problem, tour *entity.Tour) (*entity.Tour, Stats, error) {
	stats := Stats{Initial: tour.Total, Final: tour.Total}
	if !tour.Feasible {
		return nil, stats, domainerrors.ErrInfeasible.WithDetails("optimisation needs a feasible tour")
	}

	demands, err := Resolve(problem.Requests, tour.Order())
	if err != nil {
		return nil, stats, err
	}
	state := &searchState{problem: problem, demands: demands, best: tour.Clone()}

	deadline := time.Time{}
	if o.config.TimeBudget > 0 {
		deadline = o.now().Add(o.config.TimeBudget)
	}
	stop := func() bool {
		if ctx.Err() != nil {
			stats.Cancelled = true

			return true
		}
		if !deadline.IsZero() && !o.now().Before(deadline) {
			stats.BudgetExhausted = true

			return true
		}

		return false
	}

	for {
		if stop() {
			break
		}
		if o.config.MaxPasses > 0 && stats.Passes >= o.config.MaxPasses {
			stats.BudgetExhausted = true

			break
		}
		stats.Passes++

		before := state.accepted
		if err := o.swapPass(state, stop); err != nil {
			return nil, stats, err
		}
		if !stats.Cancelled && !stats.BudgetExhausted {
			if err := o.relocatePass(state, stop); err != nil {
				return nil, stats, err
			}
		}
		if state.accepted == before || stats.Cancelled || stats.BudgetExhausted {
			break
		}
	}

	stats.Accepted = state.accepted
	stats.Final = state.best.Total
	o.logger.Debug("Local search finished",
		"passes", stats.Passes,
		"accepted", stats.Accepted,
		"initial", stats.Initial,
		"final", stats.Final,
		"cancelled", stats.Cancelled,
		"budget_exhausted", stats.BudgetExhausted,
	)

	return state.best, stats, nil
}

// swapPass exchanges every pair (i, j), i < j.
func (o *Optimizer) swapPass(state *searchState, stop func() bool) error {
	n := len(state.demands)
	for i := 0; i < n-1; i++ {
		if stop() {
			return nil
		}
		for j := i + 1; j < n; j++ {
			candidate := make([]entity.Demand, n)
			copy(candidate, state.demands)
			candidate[i], candidate[j] = candidate[j], candidate[i]
			if err := o.consider(state, candidate); err != nil {
				return err
			}
		}
	}

	return nil
}

// relocatePass moves every stop i to every other position j.
func (o *Optimizer) relocatePass(state *searchState, stop func() bool) error {
	n := len(state.demands)
	for i := range n {
		if stop() {
			return nil
		}
		for j := range n {
			if j == i {
				continue
			}
			if err := o.consider(state, move(state.demands, i, j)); err != nil {
				return err
			}
		}
	}

	return nil
}

// consider accepts candidate when it keeps precedence, meets every deadline
// and strictly shortens the tour.
func (o *Optimizer) consider(state *searchState, candidate []entity.Demand) error {
	if !precedenceHolds(candidate) {
		return nil
	}
	tour, err := o.simulator.schedule(state.problem, candidate)
	if err != nil {
		if errors.Is(err, domainerrors.ErrUnreachable) {
			return nil
		}

		return err
	}
	if !tour.Feasible || tour.Total >= state.best.Total {
		return nil
	}
	state.demands = candidate
	state.best = tour
	state.accepted++

	return nil
}

// move returns a copy of demands with the element at from placed at index to.
func move(demands []entity.Demand, from, to int) []entity.Demand {
	out := make([]entity.Demand, 0, len(demands))
	item := demands[from]
	for idx, demand := range demands {
		if idx == from {
			continue
		}
		out = append(out, demand)
	}
	out = append(out, entity.Demand{})
	copy(out[to+1:], out[to:])
	out[to] = item

	return out
}
