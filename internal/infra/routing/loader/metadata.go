package loader

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/pkg/errors"
)

// MetadataFile is the optional provenance file of a network directory.
const MetadataFile = "metadata.json"

// NetworkMetadata represents the metadata for road network files
// This tracks where the network came from and how it was exported
type NetworkMetadata struct {
	Version    string         `json:"version"`
	Source     SourceInfo     `json:"source"`
	Processing ProcessingInfo `json:"processing"`
	Output     OutputInfo     `json:"output"`
}

// SourceInfo contains information about the source map
type SourceInfo struct {
	Region   string `json:"region"`
	URL      string `json:"url,omitempty"`
	Filename string `json:"filename,omitempty"`
	SHA256   string `json:"sha256,omitempty"`
}

// ProcessingInfo contains information about the export run
type ProcessingInfo struct {
	GeneratedAt time.Time `json:"generated_at"`
	CLIVersion  string    `json:"cli_version,omitempty"`
	Profile     string    `json:"profile,omitempty"`
}

// OutputInfo contains information about the generated output files
type OutputInfo struct {
	IntersectionsCount int64                `json:"intersections_count"`
	SegmentsCount      int64                `json:"segments_count"`
	Files              map[string]*FileInfo `json:"files,omitempty"`
}

// FileInfo contains checksum information for a single output file
type FileInfo struct {
	SizeBytes int64  `json:"size_bytes"`
	SHA256    string `json:"sha256,omitempty"`
}

// LoadMetadata loads and parses the metadata.json file from the given directory
func LoadMetadata(dataDir string) (*NetworkMetadata, error) {
	metadataPath := filepath.Join(dataDir, MetadataFile)

	data, err := os.ReadFile(metadataPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.Wrap(err, "metadata.json not found in network directory")
		}

		return nil, errors.Wrap(err, "failed to read metadata.json")
	}

	var metadata NetworkMetadata
	if err := json.Unmarshal(data, &metadata); err != nil {
		return nil, errors.Wrap(err, "failed to parse metadata.json")
	}

	return &metadata, nil
}

// Validate checks if the metadata is valid and complete
func (m *NetworkMetadata) Validate() error {
	if m.Version == "" {
		return errors.New("metadata version is required")
	}

	if m.Source.Region == "" {
		return errors.New("source region is required")
	}

	if m.Processing.GeneratedAt.IsZero() {
		return errors.New("processing generated_at timestamp is required")
	}

	if m.Output.IntersectionsCount <= 0 {
		return errors.New("output intersections_count must be positive")
	}

	if m.Output.SegmentsCount <= 0 {
		return errors.New("output segments_count must be positive")
	}

	return nil
}

// CheckCounts compares the declared counts with the loaded data.
func (m *NetworkMetadata) CheckCounts(data *GraphData) error {
	if got := int64(len(data.Intersections)); got != m.Output.IntersectionsCount {
		return errors.Errorf("metadata declares %d intersections, loaded %d", m.Output.IntersectionsCount, got)
	}
	if got := int64(len(data.Segments)); got != m.Output.SegmentsCount {
		return errors.Errorf("metadata declares %d segments, loaded %d", m.Output.SegmentsCount, got)
	}

	return nil
}

// GetAge returns the age of the network data since generation
func (m *NetworkMetadata) GetAge() time.Duration {
	return time.Since(m.Processing.GeneratedAt)
}

// Summary returns a brief summary of the metadata for logging
func (m *NetworkMetadata) Summary() map[string]any {
	return map[string]any{
		"region":              m.Source.Region,
		"generated_at":        m.Processing.GeneratedAt,
		"profile":             m.Processing.Profile,
		"intersections_count": m.Output.IntersectionsCount,
		"segments_count":      m.Output.SegmentsCount,
	}
}
