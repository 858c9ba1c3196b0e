package main

import (
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"

	pkgerrors "github.com/pkg/errors"

	"tourplanner/internal/infra/routing/loader"
	"tourplanner/internal/infra/routing/network"
	"tourplanner/internal/util"
)

func runValidate(dir string) error {
	fmt.Printf("Validating network in directory: %s\n", dir)

	if err := validateNetwork(dir); err != nil {
		fmt.Printf("❌ Validation failed: %v\n", err)

		return err
	}

	fmt.Println("✅ Validation passed!")

	return nil
}

func validateNetwork(dir string) error {
	fmt.Println("Loading network files...")
	data, err := loader.NewCSVLoader(dir).Load()
	if err != nil {
		return pkgerrors.Wrap(err, "failed to load network")
	}
	fmt.Printf("  ✅ %s: %d intersections\n", loader.IntersectionsFile, len(data.Intersections))
	fmt.Printf("  ✅ %s: %d segments\n", loader.SegmentsFile, len(data.Segments))

	roads, err := network.FromGraph(data, network.DefaultConfig())
	if err != nil {
		return pkgerrors.Wrap(err, "failed to build network")
	}

	fmt.Println("\nChecking connectivity...")
	if len(data.Intersections) > 0 {
		origin := data.Intersections[0].ID
		reachable, err := roads.Reachable(origin)
		if err != nil {
			return pkgerrors.Wrap(err, "failed to explore network")
		}
		if len(reachable) < len(data.Intersections) {
			fmt.Printf("  ⚠️  Warning: only %d of %d intersections reachable from %d\n",
				len(reachable), len(data.Intersections), origin)
		} else {
			fmt.Printf("  ✅ All intersections reachable from %d\n", origin)
		}
	}

	fmt.Println("\nValidating metadata...")
	metadata, err := loader.LoadMetadata(dir)
	if errors.Is(err, fs.ErrNotExist) {
		fmt.Println("  ⚠️  Warning: no metadata.json")

		return nil
	}
	if err != nil {
		return err
	}
	if err := metadata.Validate(); err != nil {
		return pkgerrors.Wrap(err, "invalid metadata")
	}
	if err := metadata.CheckCounts(data); err != nil {
		return err
	}
	fmt.Printf("  ✅ Version: %s\n", metadata.Version)
	fmt.Printf("  ✅ Region: %s\n", metadata.Source.Region)
	fmt.Printf("  ✅ Generated: %s\n", metadata.Processing.GeneratedAt.Format("2006-01-02 15:04:05"))

	return checkFiles(dir, metadata.Output.Files)
}

// checkFiles compares sizes and checksums with the ones recorded in the
// metadata.
func checkFiles(dir string, files map[string]*loader.FileInfo) error {
	for filename, fileMeta := range files {
		digest, err := util.FileDigest(filepath.Join(dir, filename))
		if err != nil {
			return pkgerrors.Wrapf(err, "output file %s", filename)
		}
		if digest.Size != fileMeta.SizeBytes {
			return pkgerrors.Errorf("file size mismatch for %s: expected %d, got %d",
				filename, fileMeta.SizeBytes, digest.Size)
		}
		if fileMeta.SHA256 != "" && digest.SHA256 != fileMeta.SHA256 {
			return pkgerrors.Errorf("checksum mismatch for %s", filename)
		}

		fmt.Printf("  ✅ %s (%s)\n", filename, util.FormatBytes(digest.Size))
	}

	return nil
}
