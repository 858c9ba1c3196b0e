package loader

import (
	"encoding/csv"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"tourplanner/internal/domain/entity"
)

const (
	// IntersectionsFile holds one intersection per line.
	IntersectionsFile = "intersections.csv"
	// SegmentsFile holds one directed segment per line.
	SegmentsFile = "segments.csv"
)

// SegmentRecord is a directed road section as described on disk. The
// traversal duration is derived later from the length and the speed.
type SegmentRecord struct {
	From       entity.IntersectionID
	To         entity.IntersectionID
	StreetName string
	LengthM    float64 // Length in meters
	SpeedKmh   float64 // Optional, 0 means the configured default speed
}

// GraphData holds all loaded network data
type GraphData struct {
	Intersections []entity.Intersection
	Segments      []SegmentRecord
}

// CSVLoader handles loading of road network data from CSV files
type CSVLoader struct {
	dataDir string
}

// NewCSVLoader creates a new CSV loader for the given data directory
func NewCSVLoader(dataDir string) *CSVLoader {
	return &CSVLoader{dataDir: dataDir}
}

// Load loads all network data from CSV files
func (l *CSVLoader) Load() (*GraphData, error) {
	intersections, err := l.LoadIntersections()
	if err != nil {
		return nil, errors.WithStack(err)
	}

	segments, err := l.LoadSegments()
	if err != nil {
		return nil, errors.WithStack(err)
	}

	return &GraphData{
		Intersections: intersections,
		Segments:      segments,
	}, nil
}

// LoadIntersections loads intersections from intersections.csv
// Expected CSV format: id,lat,lng
func (l *CSVLoader) LoadIntersections() ([]entity.Intersection, error) {
	var intersections []entity.Intersection
	err := l.readRecords(IntersectionsFile, 3, func(record []string, lineNum int) error {
		intersection, parseErr := parseIntersection(record, lineNum)
		if parseErr != nil {
			return parseErr
		}
		intersections = append(intersections, intersection)

		return nil
	})
	if err != nil {
		return nil, err
	}

	return intersections, nil
}

// LoadSegments loads segments from segments.csv
// Expected CSV format: from,to,street_name,length_m[,speed_kmh]
func (l *CSVLoader) LoadSegments() ([]SegmentRecord, error) {
	var segments []SegmentRecord
	err := l.readRecords(SegmentsFile, 4, func(record []string, lineNum int) error {
		segment, parseErr := parseSegment(record, lineNum)
		if parseErr != nil {
			return parseErr
		}
		segments = append(segments, segment)

		return nil
	})
	if err != nil {
		return nil, err
	}

	return segments, nil
}

func (l *CSVLoader) readRecords(name string, minColumns int, handle func(record []string, lineNum int) error) error {
	path := filepath.Join(l.dataDir, name)
	file, err := os.Open(path)
	if err != nil {
		return errors.WithStack(err)
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.FieldsPerRecord = -1

	// Skip header row
	if _, err := reader.Read(); err != nil {
		return errors.Wrapf(err, "failed to read %s header", name)
	}

	lineNum := 1 // Start at 1 because we skipped header

	for {
		record, readErr := reader.Read()
		if errors.Is(readErr, io.EOF) {
			break
		}
		if readErr != nil {
			return errors.WithStack(readErr)
		}
		lineNum++

		if len(record) < minColumns {
			return errors.Errorf("invalid %s format at line %d: expected %d columns, got %d", name, lineNum, minColumns, len(record))
		}

		if err := handle(record, lineNum); err != nil {
			return err
		}
	}

	return nil
}

func parseIntersection(record []string, lineNum int) (entity.Intersection, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(record[0]), 10, 64)
	if err != nil {
		return entity.Intersection{}, errors.Wrapf(err, "intersections.csv line %d: id", lineNum)
	}

	lat, err := strconv.ParseFloat(strings.TrimSpace(record[1]), 64)
	if err != nil {
		return entity.Intersection{}, errors.Wrapf(err, "intersections.csv line %d: lat", lineNum)
	}

	lng, err := strconv.ParseFloat(strings.TrimSpace(record[2]), 64)
	if err != nil {
		return entity.Intersection{}, errors.Wrapf(err, "intersections.csv line %d: lng", lineNum)
	}

	return entity.Intersection{
		ID:  entity.IntersectionID(id),
		Lat: lat,
		Lng: lng,
	}, nil
}

func parseSegment(record []string, lineNum int) (SegmentRecord, error) {
	from, err := strconv.ParseInt(strings.TrimSpace(record[0]), 10, 64)
	if err != nil {
		return SegmentRecord{}, errors.Wrapf(err, "segments.csv line %d: from", lineNum)
	}

	toID, err := strconv.ParseInt(strings.TrimSpace(record[1]), 10, 64)
	if err != nil {
		return SegmentRecord{}, errors.Wrapf(err, "segments.csv line %d: to", lineNum)
	}

	length, err := strconv.ParseFloat(strings.TrimSpace(record[3]), 64)
	if err != nil {
		return SegmentRecord{}, errors.Wrapf(err, "segments.csv line %d: length_m", lineNum)
	}
	if length < 0 {
		return SegmentRecord{}, errors.Errorf("segments.csv line %d: negative length %.2f", lineNum, length)
	}

	var speed float64
	if len(record) > 4 && strings.TrimSpace(record[4]) != "" {
		speed, err = strconv.ParseFloat(strings.TrimSpace(record[4]), 64)
		if err != nil {
			return SegmentRecord{}, errors.Wrapf(err, "segments.csv line %d: speed_kmh", lineNum)
		}
		if speed <= 0 {
			return SegmentRecord{}, errors.Errorf("segments.csv line %d: speed must be positive", lineNum)
		}
	}

	return SegmentRecord{
		From:       entity.IntersectionID(from),
		To:         entity.IntersectionID(toID),
		StreetName: strings.TrimSpace(record[2]),
		LengthM:    length,
		SpeedKmh:   speed,
	}, nil
}
