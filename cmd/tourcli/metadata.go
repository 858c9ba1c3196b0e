package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/pkg/errors"

	"tourplanner/internal/infra/routing/loader"
	"tourplanner/internal/util"
)

const metadataVersion = "1.0"

func runMetadata(dir, region, source string) error {
	metadata, err := generateMetadata(dir, region, source, time.Now())
	if err != nil {
		return err
	}

	path := filepath.Join(dir, loader.MetadataFile)
	if err := writeMetadata(metadata, path); err != nil {
		return err
	}

	fmt.Printf("Metadata written to: %s\n", path)

	return nil
}

// generateMetadata describes the network files of dir.
func generateMetadata(dir, region, source string, now time.Time) (*loader.NetworkMetadata, error) {
	data, err := loader.NewCSVLoader(dir).Load()
	if err != nil {
		return nil, errors.Wrap(err, "failed to load network")
	}

	metadata := &loader.NetworkMetadata{
		Version: metadataVersion,
		Source: loader.SourceInfo{
			Region: region,
			URL:    source,
		},
		Processing: loader.ProcessingInfo{
			GeneratedAt: now.UTC(),
			Profile:     "bike",
		},
		Output: loader.OutputInfo{
			IntersectionsCount: int64(len(data.Intersections)),
			SegmentsCount:      int64(len(data.Segments)),
			Files:              make(map[string]*loader.FileInfo),
		},
	}

	for _, filename := range []string{loader.IntersectionsFile, loader.SegmentsFile} {
		digest, err := util.FileDigest(filepath.Join(dir, filename))
		if err != nil {
			return nil, errors.Wrapf(err, "failed to digest %s", filename)
		}
		metadata.Output.Files[filename] = &loader.FileInfo{
			SizeBytes: digest.Size,
			SHA256:    digest.SHA256,
		}
	}

	return metadata, nil
}

func writeMetadata(metadata *loader.NetworkMetadata, path string) error {
	data, err := json.MarshalIndent(metadata, "", "  ")
	if err != nil {
		return errors.Wrap(err, "failed to marshal metadata")
	}

	if err := os.WriteFile(path, data, 0o600); err != nil {
		return errors.Wrap(err, "failed to write metadata file")
	}

	return nil
}
