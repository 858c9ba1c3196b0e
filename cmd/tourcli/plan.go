package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"text/tabwriter"
	"time"

	"github.com/pkg/errors"

	"tourplanner/internal/domain/entity"
	"tourplanner/internal/infra/routing/loader"
	"tourplanner/internal/infra/routing/network"
	"tourplanner/internal/planner"
	"tourplanner/internal/util"
)

type planOptions struct {
	NetworkDir   string
	RequestsFile string
	MaxPasses    int
	TimeBudget   time.Duration
	SpeedKmh     float64
}

// runPlan computes a tour without a server. Interrupting the search prints
// the best tour found so far.
func runPlan(ctx context.Context, opts planOptions) error {
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))

	data, err := loader.NewCSVLoader(opts.NetworkDir).Load()
	if err != nil {
		return errors.Wrap(err, "failed to load network")
	}

	cfg := network.DefaultConfig()
	if opts.SpeedKmh > 0 {
		cfg.DefaultSpeedKmh = opts.SpeedKmh
	}
	roads, err := network.FromGraph(data, cfg, network.WithLogger(logger))
	if err != nil {
		return errors.Wrap(err, "failed to build network")
	}

	plan, err := loader.LoadRequests(opts.RequestsFile, time.Now())
	if err != nil {
		return errors.Wrap(err, "failed to load requests")
	}
	if !roads.Contains(plan.Depot) {
		return errors.Errorf("depot %d is not part of the network", plan.Depot)
	}

	requests := entity.NewRequestSet()
	for i, req := range plan.Requests {
		if _, err := requests.Add(req, roads.Contains); err != nil {
			return errors.Wrapf(err, "request %d", i+1)
		}
	}

	p := planner.New(roads, planner.OptimizerConfig{
		MaxPasses:  opts.MaxPasses,
		TimeBudget: opts.TimeBudget,
	}, logger)

	tour, stats, err := p.Compute(ctx, planner.Problem{
		Depot:    plan.Depot,
		Start:    plan.Start,
		Requests: requests,
	})
	if err != nil {
		return errors.Wrap(err, "failed to compute tour")
	}

	printTour(os.Stdout, roads, tour)
	fmt.Printf("\nTotal: %s (initial %s, %d passes, %d moves accepted)\n",
		util.FormatDuration(tour.Total),
		util.FormatDuration(stats.Initial),
		stats.Passes,
		stats.Accepted,
	)
	if stats.Cancelled {
		fmt.Println("Search interrupted, showing the best tour found.")
	}
	if !tour.Feasible {
		fmt.Printf("Deadlines missed by %d request(s)\n", len(tour.Late))
	}

	return nil
}

func printTour(w io.Writer, roads *network.Network, tour *entity.Tour) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	defer tw.Flush()

	fmt.Fprintln(tw, "#\tSTOP\tINTERSECTION\tARRIVAL\tDEPARTURE")
	for idx, stop := range tour.Stops {
		kind := "depot"
		if stop.Demand != nil {
			kind = fmt.Sprintf("%s r%d", stop.Demand.Kind, stop.Demand.RequestID)
		}
		fmt.Fprintf(tw, "%d\t%s\t%d %s\t%s\t%s\n",
			idx,
			kind,
			stop.Intersection,
			roads.IntersectionName(stop.Intersection),
			util.FormatClock(stop.Arrival),
			util.FormatClock(stop.Departure),
		)
	}
}
