package network

import (
	"container/heap"
	"fmt"
	"slices"
	"time"

	"tourplanner/internal/domain/entity"
	domainerrors "tourplanner/internal/domain/errors"
)

const unreached = time.Duration(-1)

// pathTree is a single-source shortest path tree in dense index space.
type pathTree struct {
	origin   int
	duration []time.Duration // unreached when not reachable
	length   []float64
	via      []int // arc segment index used to reach the node, -1 at origin
	parent   []int
}

// queueItem represents a node in the priority queue
type queueItem struct {
	node     int
	duration time.Duration
}

// priorityQueue implements heap.Interface ordered by (duration, node). Dense
// node indexes follow intersection id order, so equal durations settle the
// lowest id first.
type priorityQueue []queueItem

func (pq priorityQueue) Len() int { return len(pq) }

func (pq priorityQueue) Less(i, j int) bool {
	if pq[i].duration != pq[j].duration {
		return pq[i].duration < pq[j].duration
	}

	return pq[i].node < pq[j].node
}

func (pq priorityQueue) Swap(i, j int) { pq[i], pq[j] = pq[j], pq[i] }

func (pq *priorityQueue) Push(x any) {
	*pq = append(*pq, x.(queueItem))
}

func (pq *priorityQueue) Pop() any {
	old := *pq
	n := len(old)
	item := old[n-1]
	*pq = old[:n-1]

	return item
}

// dijkstra computes the full shortest path tree of origin.
func (n *Network) dijkstra(origin int) *pathTree {
	size := len(n.intersections)
	tree := &pathTree{
		origin:   origin,
		duration: make([]time.Duration, size),
		length:   make([]float64, size),
		via:      make([]int, size),
		parent:   make([]int, size),
	}
	for idx := range size {
		tree.duration[idx] = unreached
		tree.via[idx] = -1
		tree.parent[idx] = -1
	}
	tree.duration[origin] = 0

	settled := make([]bool, size)
	queue := priorityQueue{{node: origin, duration: 0}}

	for queue.Len() > 0 {
		current := heap.Pop(&queue).(queueItem)
		if settled[current.node] {
			continue
		}
		settled[current.node] = true

		for _, a := range n.adjList[current.node] {
			if settled[a.to] {
				continue
			}
			candidate := current.duration + a.duration
			// Strictly shorter only: the first settled predecessor wins ties.
			if tree.duration[a.to] == unreached || candidate < tree.duration[a.to] {
				tree.duration[a.to] = candidate
				tree.length[a.to] = tree.length[current.node] + n.segments[a.segment].Length
				tree.via[a.to] = a.segment
				tree.parent[a.to] = current.node
				heap.Push(&queue, queueItem{node: a.to, duration: candidate})
			}
		}
	}

	return tree
}

// path rebuilds the path from the tree origin to target.
func (n *Network) path(tree *pathTree, target int) entity.Path {
	result := entity.Path{
		From:     n.intersections[tree.origin].ID,
		To:       n.intersections[target].ID,
		Duration: tree.duration[target],
		Length:   tree.length[target],
	}

	nodes := []entity.IntersectionID{n.intersections[target].ID}
	var segments []entity.Segment
	for node := target; node != tree.origin; node = tree.parent[node] {
		segments = append(segments, n.segments[tree.via[node]])
		nodes = append(nodes, n.intersections[tree.parent[node]].ID)
	}
	slices.Reverse(nodes)
	slices.Reverse(segments)
	result.Intersections = nodes
	result.Segments = segments

	return result
}

func (n *Network) resolve(from, to entity.IntersectionID) (int, int, error) {
	src, ok := n.index[from]
	if !ok {
		return 0, 0, domainerrors.ErrInvalidReference.WithDetails(fmt.Sprintf("intersection %d", from))
	}
	dst, ok := n.index[to]
	if !ok {
		return 0, 0, domainerrors.ErrInvalidReference.WithDetails(fmt.Sprintf("intersection %d", to))
	}

	return src, dst, nil
}

// ShortestPath returns the fastest path between two intersections. Repeated
// calls on the same network return identical paths.
func (n *Network) ShortestPath(from, to entity.IntersectionID) (entity.Path, error) {
	src, dst, err := n.resolve(from, to)
	if err != nil {
		return entity.Path{}, err
	}

	tree := n.cache.get(src)
	if tree.duration[dst] == unreached {
		return entity.Path{}, domainerrors.ErrUnreachable.WithDetails(fmt.Sprintf("from %d to %d", from, to))
	}

	return n.path(tree, dst), nil
}

// TravelTime returns only the duration of the shortest path.
func (n *Network) TravelTime(from, to entity.IntersectionID) (time.Duration, error) {
	src, dst, err := n.resolve(from, to)
	if err != nil {
		return 0, err
	}

	tree := n.cache.get(src)
	if tree.duration[dst] == unreached {
		return 0, domainerrors.ErrUnreachable.WithDetails(fmt.Sprintf("from %d to %d", from, to))
	}

	return tree.duration[dst], nil
}

// Reachable returns the ids reachable from origin, origin included.
func (n *Network) Reachable(origin entity.IntersectionID) ([]entity.IntersectionID, error) {
	src, ok := n.index[origin]
	if !ok {
		return nil, domainerrors.ErrInvalidReference.WithDetails(fmt.Sprintf("intersection %d", origin))
	}

	tree := n.cache.get(src)
	var out []entity.IntersectionID
	for idx, duration := range tree.duration {
		if duration != unreached {
			out = append(out, n.intersections[idx].ID)
		}
	}

	return out, nil
}
