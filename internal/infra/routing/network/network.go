package network

import (
	"cmp"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/pkg/errors"

	"tourplanner/internal/domain/entity"
	domainerrors "tourplanner/internal/domain/errors"
	"tourplanner/internal/infra/routing/loader"
)

// Config holds configuration for a road network
type Config struct {
	DefaultSpeedKmh float64 // Speed used for segments without their own
	GridCellSizeKm  float64 // Grid cell size for the spatial index
	WarmupWorkers   int     // Concurrent workers used by Warm
}

// DefaultConfig returns sensible defaults for an urban delivery bike
func DefaultConfig() Config {
	return Config{
		DefaultSpeedKmh: 15,
		GridCellSizeKm:  0.5,
		WarmupWorkers:   4,
	}
}

// CacheObserver is notified of every shortest-path-tree lookup.
type CacheObserver interface {
	ObservePathCache(hit bool)
}

// Option customises a Network
type Option func(*Network)

// WithLogger sets the logger
func WithLogger(logger *slog.Logger) Option {
	return func(n *Network) {
		if logger != nil {
			n.logger = logger
		}
	}
}

// WithCacheObserver registers an observer of cache hits and misses
func WithCacheObserver(observer CacheObserver) Option {
	return func(n *Network) {
		n.cache.observer = observer
	}
}

// arc is an outgoing segment in dense index space
type arc struct {
	to       int
	duration time.Duration
	segment  int // index into Network.segments
}

// Network is a directed road graph. It is immutable once built; the only
// mutable state is the shortest path cache.
type Network struct {
	config        Config
	logger        *slog.Logger
	intersections []entity.Intersection // sorted by id
	index         map[entity.IntersectionID]int
	segments      []entity.Segment
	adjList       [][]arc
	spatial       *GridIndex
	cache         *treeCache
}

// New builds a network from intersections and segments with known durations.
func New(intersections []entity.Intersection, segments []entity.Segment, config Config, opts ...Option) (*Network, error) {
	if len(intersections) == 0 {
		return nil, errors.WithStack(domainerrors.ErrLoadFailed.WithDetails("network has no intersections"))
	}

	n := &Network{
		config:        config,
		logger:        slog.Default(),
		intersections: slices.Clone(intersections),
		index:         make(map[entity.IntersectionID]int, len(intersections)),
		segments:      slices.Clone(segments),
	}
	n.cache = newTreeCache(n)
	for _, opt := range opts {
		opt(n)
	}

	slices.SortFunc(n.intersections, func(a, b entity.Intersection) int { return cmp.Compare(a.ID, b.ID) })
	for idx, intersection := range n.intersections {
		if _, dup := n.index[intersection.ID]; dup {
			return nil, errors.WithStack(domainerrors.ErrLoadFailed.WithDetails(fmt.Sprintf("duplicate intersection %d", intersection.ID)))
		}
		n.index[intersection.ID] = idx
	}

	if err := n.buildAdjacencyList(); err != nil {
		return nil, err
	}

	n.spatial = NewGridIndex(config.GridCellSizeKm)
	n.spatial.Build(n.intersections)

	n.logger.Info("Road network built",
		"intersections", len(n.intersections),
		"segments", len(n.segments),
	)

	return n, nil
}

// FromGraph builds a network from loaded CSV data, deriving segment
// durations from length and speed.
func FromGraph(data *loader.GraphData, config Config, opts ...Option) (*Network, error) {
	if data == nil {
		return nil, errors.New("graph data is nil")
	}

	segments := make([]entity.Segment, 0, len(data.Segments))
	for _, record := range data.Segments {
		speed := record.SpeedKmh
		if speed <= 0 {
			speed = config.DefaultSpeedKmh
		}
		duration, err := travelDuration(record.LengthM, speed)
		if err != nil {
			return nil, errors.Wrapf(err, "segment %d -> %d", record.From, record.To)
		}
		segments = append(segments, entity.Segment{
			From:       record.From,
			To:         record.To,
			StreetName: record.StreetName,
			Length:     record.LengthM,
			Duration:   duration,
		})
	}

	return New(data.Intersections, segments, config, opts...)
}

func travelDuration(lengthM, speedKmh float64) (time.Duration, error) {
	if speedKmh <= 0 {
		return 0, errors.Errorf("speed must be positive, got %.2f", speedKmh)
	}
	// time (seconds) = (distance_m / 1000) / speed_kmh * 3600
	speedMps := speedKmh * 1000 / 3600
	seconds := lengthM / speedMps

	return time.Duration(seconds * float64(time.Second)).Round(time.Millisecond), nil
}

func (n *Network) buildAdjacencyList() error {
	n.adjList = make([][]arc, len(n.intersections))
	for idx, segment := range n.segments {
		from, ok := n.index[segment.From]
		if !ok {
			return errors.WithStack(domainerrors.ErrLoadFailed.WithDetails(fmt.Sprintf("segment origin %d is not an intersection", segment.From)))
		}
		to, ok := n.index[segment.To]
		if !ok {
			return errors.WithStack(domainerrors.ErrLoadFailed.WithDetails(fmt.Sprintf("segment destination %d is not an intersection", segment.To)))
		}
		if segment.Duration < 0 {
			return errors.WithStack(domainerrors.ErrLoadFailed.WithDetails(fmt.Sprintf("segment %d -> %d has a negative duration", segment.From, segment.To)))
		}
		n.adjList[from] = append(n.adjList[from], arc{to: to, duration: segment.Duration, segment: idx})
	}

	// Dense indexes follow id order, so this fixes the relaxation order to
	// lowest destination id first.
	for _, arcs := range n.adjList {
		slices.SortStableFunc(arcs, func(a, b arc) int {
			if c := cmp.Compare(a.to, b.to); c != 0 {
				return c
			}

			return cmp.Compare(a.duration, b.duration)
		})
	}

	return nil
}

// Contains reports whether the intersection exists.
func (n *Network) Contains(id entity.IntersectionID) bool {
	_, ok := n.index[id]

	return ok
}

// Intersection returns the intersection with the given id.
func (n *Network) Intersection(id entity.IntersectionID) (entity.Intersection, bool) {
	idx, ok := n.index[id]
	if !ok {
		return entity.Intersection{}, false
	}

	return n.intersections[idx], true
}

// Intersections returns all intersections sorted by id.
func (n *Network) Intersections() []entity.Intersection {
	return slices.Clone(n.intersections)
}

// Outgoing returns the segments leaving an intersection.
func (n *Network) Outgoing(id entity.IntersectionID) []entity.Segment {
	idx, ok := n.index[id]
	if !ok {
		return nil
	}
	out := make([]entity.Segment, 0, len(n.adjList[idx]))
	for _, a := range n.adjList[idx] {
		out = append(out, n.segments[a.segment])
	}

	return out
}

// IntersectionName names an intersection after the first outgoing segment
// that has a street name.
func (n *Network) IntersectionName(id entity.IntersectionID) string {
	idx, ok := n.index[id]
	if !ok {
		return ""
	}
	for _, a := range n.adjList[idx] {
		if name := strings.TrimSpace(n.segments[a.segment].StreetName); name != "" {
			return name
		}
	}

	return fmt.Sprintf("#%d", id)
}

// Size returns the number of intersections and segments.
func (n *Network) Size() (intersections, segments int) {
	return len(n.intersections), len(n.segments)
}

// Nearest returns the intersection closest to a coordinate and its distance
// in meters.
func (n *Network) Nearest(lat, lng float64) (entity.Intersection, float64, bool) {
	idx, ok := n.spatial.Nearest(lat, lng)
	if !ok {
		return entity.Intersection{}, 0, false
	}
	intersection := n.intersections[idx]

	return intersection, distanceMeters(lat, lng, intersection), true
}
