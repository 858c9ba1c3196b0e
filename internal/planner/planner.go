package planner

import (
	"context"
	"log/slog"

	"tourplanner/internal/domain/entity"
	"tourplanner/internal/domain/service"
)

// Planner chains construction and local search.
type Planner struct {
	builder   *Builder
	optimizer *Optimizer
	simulator *Simulator
}

// New creates a planner for one road network.
func New(paths service.PathFinder, config OptimizerConfig, logger *slog.Logger) *Planner {
	return &Planner{
		builder:   NewBuilder(paths, logger),
		optimizer: NewOptimizer(paths, config, logger),
		simulator: NewSimulator(paths),
	}
}

// Compute builds a tour and improves it. A cancelled construction returns an
// error and no tour; a cancelled optimisation returns the best tour found.
func (p *Planner) Compute(ctx context.Context, problem Problem) (*entity.Tour, Stats, error) {
	initial, err := p.builder.Build(ctx, problem)
	if err != nil {
		return nil, Stats{}, err
	}

	return p.optimizer.Optimize(ctx, problem, initial)
}

// Builder returns the construction heuristic.
func (p *Planner) Builder() *Builder {
	return p.builder
}

// Simulator returns the schedule simulator.
func (p *Planner) Simulator() *Simulator {
	return p.simulator
}
