package loader

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tourplanner/internal/domain/entity"
)

func TestCSVLoader_LoadIntersections(t *testing.T) {
	tmpDir := t.TempDir()

	intersectionsCSV := `id,lat,lng
25175791,45.7502,4.8757
2129259178,45.7503,4.8747
26086130,45.7467,4.8622
`
	err := os.WriteFile(filepath.Join(tmpDir, IntersectionsFile), []byte(intersectionsCSV), 0644)
	require.NoError(t, err)

	loader := NewCSVLoader(tmpDir)
	intersections, err := loader.LoadIntersections()
	require.NoError(t, err)

	assert.Len(t, intersections, 3)
	assert.Equal(t, entity.IntersectionID(25175791), intersections[0].ID)
	assert.InDelta(t, 45.7502, intersections[0].Lat, 0.0001)
	assert.InDelta(t, 4.8757, intersections[0].Lng, 0.0001)
	assert.Equal(t, entity.IntersectionID(26086130), intersections[2].ID)
}

func TestCSVLoader_LoadSegments(t *testing.T) {
	tmpDir := t.TempDir()

	segmentsCSV := `from,to,street_name,length_m,speed_kmh
25175791,2129259178,Rue Danton,69.98,
2129259178,25175791,Rue Danton,69.98,30
26086130,25175791,,120.5
`
	err := os.WriteFile(filepath.Join(tmpDir, SegmentsFile), []byte(segmentsCSV), 0644)
	require.NoError(t, err)

	loader := NewCSVLoader(tmpDir)
	segments, err := loader.LoadSegments()
	require.NoError(t, err)

	assert.Len(t, segments, 3)
	assert.Equal(t, entity.IntersectionID(25175791), segments[0].From)
	assert.Equal(t, entity.IntersectionID(2129259178), segments[0].To)
	assert.Equal(t, "Rue Danton", segments[0].StreetName)
	assert.InDelta(t, 69.98, segments[0].LengthM, 0.001)
	assert.Zero(t, segments[0].SpeedKmh)
	assert.InDelta(t, 30.0, segments[1].SpeedKmh, 0.001)
	assert.Empty(t, segments[2].StreetName)
}

func TestCSVLoader_Load_Full(t *testing.T) {
	tmpDir := t.TempDir()

	intersectionsCSV := `id,lat,lng
1,45.75,4.87
2,45.76,4.88
`
	segmentsCSV := `from,to,street_name,length_m
1,2,Avenue Lacassagne,1000
2,1,Avenue Lacassagne,1000
`

	require.NoError(t, os.WriteFile(filepath.Join(tmpDir, IntersectionsFile), []byte(intersectionsCSV), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(tmpDir, SegmentsFile), []byte(segmentsCSV), 0644))

	loader := NewCSVLoader(tmpDir)
	data, err := loader.Load()
	require.NoError(t, err)

	assert.Len(t, data.Intersections, 2)
	assert.Len(t, data.Segments, 2)
}

func TestCSVLoader_LoadSegments_InvalidFormat(t *testing.T) {
	tmpDir := t.TempDir()

	segmentsCSV := `from,to,street_name
1,2,Rue Danton
`
	err := os.WriteFile(filepath.Join(tmpDir, SegmentsFile), []byte(segmentsCSV), 0644)
	require.NoError(t, err)

	loader := NewCSVLoader(tmpDir)
	_, err = loader.LoadSegments()
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "expected 4 columns")
}

func TestCSVLoader_LoadSegments_NegativeLength(t *testing.T) {
	tmpDir := t.TempDir()

	segmentsCSV := `from,to,street_name,length_m
1,2,Rue Danton,-3
`
	err := os.WriteFile(filepath.Join(tmpDir, SegmentsFile), []byte(segmentsCSV), 0644)
	require.NoError(t, err)

	loader := NewCSVLoader(tmpDir)
	_, err = loader.LoadSegments()
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "negative length")
}

func TestCSVLoader_LoadIntersections_InvalidNumber(t *testing.T) {
	tmpDir := t.TempDir()

	intersectionsCSV := `id,lat,lng
1,invalid,4.87
`
	err := os.WriteFile(filepath.Join(tmpDir, IntersectionsFile), []byte(intersectionsCSV), 0644)
	require.NoError(t, err)

	loader := NewCSVLoader(tmpDir)
	_, err = loader.LoadIntersections()
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "line 2: lat")
}

func TestCSVLoader_LoadIntersections_FileNotFound(t *testing.T) {
	tmpDir := t.TempDir()

	loader := NewCSVLoader(tmpDir)
	_, err := loader.LoadIntersections()
	assert.Error(t, err)
}
