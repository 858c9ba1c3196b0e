package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pkg/errors"
)

// Supported subcommands:
// - plan:     Compute a tour offline and print its schedule
// - validate: Check a network directory against its metadata
// - metadata: Write metadata.json for a network directory

func main() {
	planCmd := flag.NewFlagSet("plan", flag.ExitOnError)
	validateCmd := flag.NewFlagSet("validate", flag.ExitOnError)
	metadataCmd := flag.NewFlagSet("metadata", flag.ExitOnError)

	// plan parameters
	planNetwork := planCmd.String("network", "./data/network", "Network directory with intersections.csv and segments.csv")
	planRequests := planCmd.String("requests", "", "Request description (YAML)")
	planPasses := planCmd.Int("passes", 100, "Maximum local search passes, 0 for unlimited")
	planBudget := planCmd.Duration("budget", 5*time.Second, "Local search time budget, 0 for unlimited")
	planSpeed := planCmd.Float64("speed", 15, "Default speed in km/h for segments without their own")

	// validate parameters
	validateDir := validateCmd.String("dir", "./data/network", "Directory to validate")

	// metadata parameters
	metadataDir := metadataCmd.String("dir", "./data/network", "Network directory")
	metadataRegion := metadataCmd.String("region", "", "Region the network covers")
	metadataSource := metadataCmd.String("source", "", "URL the network was exported from")

	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	flags := cliFlags{
		Plan: planFlags{
			cmd:      planCmd,
			network:  planNetwork,
			requests: planRequests,
			passes:   planPasses,
			budget:   planBudget,
			speed:    planSpeed,
		},
		Validate: validateFlags{
			cmd: validateCmd,
			dir: validateDir,
		},
		Metadata: metadataFlags{
			cmd:    metadataCmd,
			dir:    metadataDir,
			region: metadataRegion,
			source: metadataSource,
		},
	}

	if err := runSubcommand(ctx, &flags); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

type cliFlags struct {
	Plan     planFlags
	Validate validateFlags
	Metadata metadataFlags
}

type planFlags struct {
	cmd      *flag.FlagSet
	network  *string
	requests *string
	passes   *int
	budget   *time.Duration
	speed    *float64
}

type validateFlags struct {
	cmd *flag.FlagSet
	dir *string
}

type metadataFlags struct {
	cmd    *flag.FlagSet
	dir    *string
	region *string
	source *string
}

func runSubcommand(ctx context.Context, flags *cliFlags) error {
	switch os.Args[1] {
	case "plan":
		return handlePlan(ctx, flags)
	case "validate":
		return handleValidate(flags)
	case "metadata":
		return handleMetadata(flags)
	default:
		printUsage()

		return errors.New("unknown subcommand")
	}
}

func handlePlan(ctx context.Context, flags *cliFlags) error {
	if err := flags.Plan.cmd.Parse(os.Args[2:]); err != nil {
		return errors.Wrap(err, "failed to parse plan flags")
	}

	if *flags.Plan.requests == "" {
		return errors.New("--requests flag is required for plan command")
	}

	return runPlan(ctx, planOptions{
		NetworkDir:   *flags.Plan.network,
		RequestsFile: *flags.Plan.requests,
		MaxPasses:    *flags.Plan.passes,
		TimeBudget:   *flags.Plan.budget,
		SpeedKmh:     *flags.Plan.speed,
	})
}

func handleValidate(flags *cliFlags) error {
	if err := flags.Validate.cmd.Parse(os.Args[2:]); err != nil {
		return errors.Wrap(err, "failed to parse validate flags")
	}

	return runValidate(*flags.Validate.dir)
}

func handleMetadata(flags *cliFlags) error {
	if err := flags.Metadata.cmd.Parse(os.Args[2:]); err != nil {
		return errors.Wrap(err, "failed to parse metadata flags")
	}

	if *flags.Metadata.region == "" {
		return errors.New("--region flag is required for metadata command")
	}

	return runMetadata(*flags.Metadata.dir, *flags.Metadata.region, *flags.Metadata.source)
}

func printUsage() {
	fmt.Println("Usage: tourcli <command> [options]")
	fmt.Println("")
	fmt.Println("Commands:")
	fmt.Println("  plan        Compute a tour and print its schedule")
	fmt.Println("  validate    Validate a network directory")
	fmt.Println("  metadata    Write metadata.json for a network directory")
	fmt.Println("")
	fmt.Println("Use 'tourcli <command> -h' for more information about a command.")
}
