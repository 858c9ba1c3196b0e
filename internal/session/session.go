// Package session holds the state of one planning session: the road network,
// the requests, the current tour, its edit history and the phase machine that
// decides which operations are legal.
package session

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"tourplanner/internal/domain/entity"
	domainerrors "tourplanner/internal/domain/errors"
	"tourplanner/internal/domain/service"
	"tourplanner/internal/edit"
	"tourplanner/internal/errors"
	"tourplanner/internal/planner"
)

const subscriberBuffer = 16

// Event describes a committed change.
type Event struct {
	Version uint64
	Action  Action
	Phase   Phase
	Tour    *entity.Tour
	At      time.Time
}

// Selection is the demand currently highlighted by a client.
type Selection struct {
	Demand    entity.Demand
	Sibling   entity.Demand
	StopIndex int // -1 when no tour is computed
}

// View is a consistent read of the session state.
type View struct {
	ID        string
	Phase     Phase
	Version   uint64
	Depot     entity.IntersectionID
	Start     time.Time
	Requests  []*entity.Request
	Tour      *entity.Tour
	Selection *Selection
	CanUndo   bool
	CanRedo   bool
	Computing bool
	Allowed   []Action
}

// Session is the explicit context every operation runs against. All methods
// are safe for concurrent use; a tour computation runs outside the lock and
// blocks edits until it commits.
type Session struct {
	id     string
	logger *slog.Logger

	mu        sync.Mutex
	roads     service.PathFinder
	planner   *planner.Planner
	config    planner.OptimizerConfig
	phase     Phase
	resume    Phase
	depot     entity.IntersectionID
	start     time.Time
	requests  *entity.RequestSet
	tour      *entity.Tour
	stack     *edit.Stack
	selection *Selection
	stats     planner.Stats
	version   uint64
	cancel    context.CancelFunc

	computing atomic.Bool

	subMu       sync.Mutex
	subscribers map[int]chan Event
	nextSub     int
	closed      bool
}

// New creates a session on a loaded road network. A nil network is a
// programming error.
func New(id string, roads service.PathFinder, config planner.OptimizerConfig, logger *slog.Logger) *Session {
	if roads == nil {
		panic("session: nil road network")
	}
	if logger == nil {
		logger = slog.Default()
	}

	s := &Session{
		id:          id,
		logger:      logger.With("session_id", id),
		config:      config,
		phase:       PhaseInitial,
		requests:    entity.NewRequestSet(),
		subscribers: make(map[int]chan Event),
	}
	s.install(roads)
	s.phase, _ = Next(s.phase, ActionLoadNetwork)

	return s
}

// ID returns the session identifier.
func (s *Session) ID() string {
	return s.id
}

func (s *Session) install(roads service.PathFinder) {
	s.roads = roads
	s.planner = planner.New(roads, s.config, s.logger)
	s.stack = edit.NewStack(s.planner.Simulator(), s.planner.Builder())
}

// LoadNetwork replaces the road network. Requests and tour are discarded.
func (s *Session) LoadNetwork(roads service.PathFinder) error {
	if roads == nil {
		return domainerrors.ErrLoadFailed.WithDetails("road network is missing")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	next, err := s.guard(ActionLoadNetwork)
	if err != nil {
		return err
	}
	s.install(roads)
	s.requests = entity.NewRequestSet()
	s.tour = nil
	s.selection = nil
	s.phase = next
	s.commit(ActionLoadNetwork)

	return nil
}

// LoadRequests replaces the request set. Either every request is accepted or
// the session is left unchanged.
func (s *Session) LoadRequests(depot entity.IntersectionID, start time.Time, requests []entity.NewRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	next, err := s.guard(ActionLoadRequests)
	if err != nil {
		return err
	}
	if !s.roads.Contains(depot) {
		return domainerrors.ErrInvalidReference.WithDetails(fmt.Sprintf("depot intersection %d", depot))
	}

	set := entity.NewRequestSet()
	for idx, req := range requests {
		if _, err := set.Add(req, s.roads.Contains); err != nil {
			return errors.Wrapf(err, "request %d", idx+1)
		}
	}

	s.depot = depot
	s.start = start
	s.requests = set
	s.tour = nil
	s.selection = nil
	s.stack.Clear()
	s.phase = next
	s.commit(ActionLoadRequests)
	s.logger.Info("Requests loaded", "requests", set.Len(), "depot", depot, "start", start)

	return nil
}

// Recompute builds and optimises a tour from the current requests. The
// computation works on a snapshot; edits are rejected until it commits. A
// cancelled construction keeps the previous tour (nil if none) and is not an
// error; a cancelled optimisation commits the best tour found. The edit
// history is cleared whenever a new tour is committed.
func (s *Session) Recompute(ctx context.Context) (*entity.Tour, planner.Stats, error) {
	s.mu.Lock()
	next, err := s.guard(ActionCompute)
	if err != nil {
		s.mu.Unlock()

		return nil, planner.Stats{}, err
	}
	problem := planner.Problem{Depot: s.depot, Start: s.start, Requests: s.requests.Clone()}
	compute := s.planner
	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.resume = s.phase
	s.phase = next
	s.computing.Store(true)
	s.commit(ActionCompute)
	s.mu.Unlock()

	started := time.Now()
	tour, stats, err := compute.Compute(ctx, problem)
	cancel()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.computing.Store(false)
	s.cancel = nil
	if err != nil {
		s.phase = s.resume
		s.commit(ActionComputeDone)
		if errors.IsCancellation(err) {
			s.logger.Info("Tour construction cancelled, previous tour kept", "elapsed", time.Since(started))

			return s.tour.Clone(), planner.Stats{Cancelled: true}, nil
		}
		s.logger.Warn("Tour computation failed", "error", err, "elapsed", time.Since(started))

		return nil, stats, err
	}

	s.phase, _ = Next(s.phase, ActionComputeDone)
	s.tour = tour
	s.stats = stats
	s.stack.Clear()
	s.refreshSelection()
	s.commit(ActionComputeDone)
	s.logger.Info("Tour computed",
		"requests", problem.Requests.Len(),
		"total", tour.Total,
		"passes", stats.Passes,
		"cancelled", stats.Cancelled,
		"elapsed", time.Since(started),
	)

	return tour.Clone(), stats, nil
}

// CancelComputation asks a running computation to stop.
func (s *Session) CancelComputation() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := Next(s.phase, ActionCancelComputation); err != nil {
		return err
	}
	if s.cancel != nil {
		s.cancel()
	}

	return nil
}

// Apply pushes an edit command onto the history.
func (s *Session) Apply(cmd *edit.Command) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	action := actionFor(cmd.Kind)
	next, err := s.guard(action)
	if err != nil {
		return err
	}

	if s.tour == nil && cmd.Kind == edit.KindAddRequest {
		// Before the first computation a request only joins the set.
		set := s.requests.Clone()
		if _, err := set.Add(cmd.NewRequest, s.roads.Contains); err != nil {
			return err
		}
		s.requests = set
		s.phase = next
		s.commit(action)

		return nil
	}

	target := s.target()
	if err := s.stack.Push(target, cmd); err != nil {
		return err
	}
	s.accept(target, next, action)
	s.logger.Debug("Edit applied", "edit", cmd.String(), "total", s.tour.Total)

	return nil
}

// Undo reverts the last edit.
func (s *Session) Undo() (*edit.Command, error) {
	return s.replay(ActionUndo, (*edit.Stack).Undo)
}

// Redo reapplies the last undone edit.
func (s *Session) Redo() (*edit.Command, error) {
	return s.replay(ActionRedo, (*edit.Stack).Redo)
}

func (s *Session) replay(action Action, step func(*edit.Stack, *edit.Target) (*edit.Command, error)) (*edit.Command, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	next, err := s.guard(action)
	if err != nil {
		return nil, err
	}
	target := s.target()
	cmd, err := step(s.stack, target)
	if err != nil {
		return nil, err
	}
	s.accept(target, next, action)

	return cmd, nil
}

// BeginAddRequest enters the request creation phase.
func (s *Session) BeginAddRequest() error {
	return s.move(ActionBeginAddRequest)
}

// CancelAddRequest leaves the request creation phase without changes.
func (s *Session) CancelAddRequest() error {
	return s.move(ActionCancelAddRequest)
}

func (s *Session) move(action Action) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	next, err := s.guard(action)
	if err != nil {
		return err
	}
	s.phase = next
	s.commit(action)

	return nil
}

// Select highlights a demand and its sibling. A zero id clears the
// selection.
func (s *Session) Select(id entity.DemandID) (*Selection, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := Next(s.phase, ActionSelect); err != nil {
		return nil, err
	}
	if id == 0 {
		s.selection = nil

		return nil, nil
	}
	demand, request, ok := s.requests.Demand(id)
	if !ok {
		return nil, domainerrors.ErrNotFound.WithDetails(fmt.Sprintf("demand %d", id))
	}
	sibling, _ := request.Sibling(id)
	s.selection = &Selection{Demand: demand, Sibling: sibling, StopIndex: -1}
	s.refreshSelection()
	selection := *s.selection

	return &selection, nil
}

// Snapshot returns a consistent copy of the session state.
func (s *Session) Snapshot() View {
	s.mu.Lock()
	defer s.mu.Unlock()

	view := View{
		ID:        s.id,
		Phase:     s.phase,
		Version:   s.version,
		Depot:     s.depot,
		Start:     s.start,
		Requests:  s.requests.Requests(),
		Tour:      s.tour.Clone(),
		CanUndo:   s.stack.CanUndo(),
		CanRedo:   s.stack.CanRedo(),
		Computing: s.computing.Load(),
		Allowed:   Allowed(s.phase),
	}
	if s.selection != nil {
		selection := *s.selection
		view.Selection = &selection
	}

	return view
}

// Tour returns a copy of the current tour, or ErrNoTour.
func (s *Session) Tour() (*entity.Tour, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.tour == nil {
		return nil, domainerrors.ErrNoTour
	}

	return s.tour.Clone(), nil
}

// Path returns the road path between two stops of the current tour.
func (s *Session) Path(from, to int) (entity.Path, error) {
	s.mu.Lock()
	tour, roads := s.tour, s.roads
	s.mu.Unlock()

	if tour == nil {
		return entity.Path{}, domainerrors.ErrNoTour
	}
	if from < 0 || to < 0 || from >= len(tour.Stops) || to >= len(tour.Stops) {
		return entity.Path{}, domainerrors.ErrNotFound.WithDetails(fmt.Sprintf("stop positions must be within 0..%d", len(tour.Stops)-1))
	}

	return roads.ShortestPath(tour.Stops[from].Intersection, tour.Stops[to].Intersection)
}

// Phase returns the current phase.
func (s *Session) Phase() Phase {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.phase
}

// Version returns a counter bumped by every committed change.
func (s *Session) Version() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.version
}

// Stats returns the statistics of the last successful computation.
func (s *Session) Stats() planner.Stats {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.stats
}

// Subscribe registers for change events. Events are dropped for a subscriber
// whose buffer is full; the version lets it detect the gap. The returned
// function unsubscribes and closes the channel.
func (s *Session) Subscribe() (<-chan Event, func()) {
	s.subMu.Lock()
	defer s.subMu.Unlock()

	ch := make(chan Event, subscriberBuffer)
	if s.closed {
		close(ch)

		return ch, func() {}
	}
	id := s.nextSub
	s.nextSub++
	s.subscribers[id] = ch

	var once sync.Once

	return ch, func() {
		once.Do(func() {
			s.subMu.Lock()
			defer s.subMu.Unlock()
			if sub, ok := s.subscribers[id]; ok {
				delete(s.subscribers, id)
				close(sub)
			}
		})
	}
}

// Close cancels any running computation and closes every subscription.
func (s *Session) Close() {
	s.mu.Lock()
	if s.cancel != nil {
		s.cancel()
	}
	s.mu.Unlock()

	s.subMu.Lock()
	defer s.subMu.Unlock()
	s.closed = true
	for id, ch := range s.subscribers {
		delete(s.subscribers, id)
		close(ch)
	}
}

// guard rejects everything but cancellation while a computation runs, then
// consults the transition table.
func (s *Session) guard(action Action) (Phase, error) {
	if s.computing.Load() && action != ActionCancelComputation && action != ActionSelect {
		return s.phase, domainerrors.ErrComputationInProgress
	}

	return Next(s.phase, action)
}

func (s *Session) target() *edit.Target {
	return &edit.Target{
		Depot:    s.depot,
		Start:    s.start,
		Requests: s.requests,
		Tour:     s.tour,
		Contains: s.roads.Contains,
	}
}

func (s *Session) accept(target *edit.Target, next Phase, action Action) {
	s.requests = target.Requests
	s.tour = target.Tour
	s.phase = next
	s.refreshSelection()
	s.commit(action)
}

// refreshSelection drops a selection whose demand is gone and updates its
// stop index.
func (s *Session) refreshSelection() {
	if s.selection == nil {
		return
	}
	if _, _, ok := s.requests.Demand(s.selection.Demand.ID); !ok {
		s.selection = nil

		return
	}
	s.selection.StopIndex = -1
	if s.tour != nil {
		s.selection.StopIndex = s.tour.IndexOf(s.selection.Demand.ID)
	}
}

// commit bumps the version and notifies subscribers. Callers hold s.mu.
func (s *Session) commit(action Action) {
	s.version++
	event := Event{Version: s.version, Action: action, Phase: s.phase, Tour: s.tour.Clone(), At: time.Now()}

	s.subMu.Lock()
	defer s.subMu.Unlock()
	for _, ch := range s.subscribers {
		select {
		case ch <- event:
		default:
		}
	}
}
