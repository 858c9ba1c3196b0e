// Package impl contains the application-specific business rules implementations.
package impl

import (
	"cmp"
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"path/filepath"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.uber.org/fx"

	"tourplanner/config"
	deliverycontext "tourplanner/internal/delivery/context"
	"tourplanner/internal/domain/entity"
	domainerrors "tourplanner/internal/domain/errors"
	"tourplanner/internal/domain/service"
	"tourplanner/internal/edit"
	"tourplanner/internal/infra/metrics"
	"tourplanner/internal/infra/routing/loader"
	"tourplanner/internal/infra/routing/network"
	"tourplanner/internal/planner"
	"tourplanner/internal/session"
	"tourplanner/internal/usecase"
)

const (
	eventQueueSize = 256
	publishTimeout = 5 * time.Second
)

// sessionEntry is a registered session and the network it runs on.
type sessionEntry struct {
	session *session.Session
	created time.Time

	mu      sync.RWMutex
	roads   *network.Network
	network usecase.NetworkSummary

	// requestID tags forwarded events with the request that last touched
	// the session.
	requestID atomic.Pointer[string]
}

func (e *sessionEntry) current() (*network.Network, usecase.NetworkSummary) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	return e.roads, e.network
}

func (e *sessionEntry) touch(ctx context.Context) {
	id := deliverycontext.GetRequestIDFromContext(ctx)
	e.requestID.Store(&id)
}

// tourService implements the TourUsecase interface.
type tourService struct {
	routing   *config.RoutingConfig
	planner   planner.OptimizerConfig
	limit     int
	logger    *slog.Logger
	metrics   *metrics.Metrics
	publisher service.EventPublisher
	now       func() time.Time

	mu       sync.RWMutex
	sessions map[string]*sessionEntry
	closed   bool

	events     chan *service.TourChangedEvent
	forwarders sync.WaitGroup
	done       chan struct{}
}

// TourServiceParams holds dependencies for the tour service, injected by Fx
type TourServiceParams struct {
	fx.In

	Lc        fx.Lifecycle
	Config    *config.Config
	Logger    *slog.Logger
	Metrics   *metrics.Metrics
	Publisher service.EventPublisher
}

// NewTourService is the constructor for tourService.
func NewTourService(params TourServiceParams) usecase.TourUsecase {
	srv := newTourService(params.Config, params.Logger, params.Metrics, params.Publisher)

	params.Lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			params.Logger.Info("Closing planning sessions")
			srv.Close()

			return nil
		},
	})

	return srv
}

func newTourService(cfg *config.Config, logger *slog.Logger, m *metrics.Metrics, publisher service.EventPublisher) *tourService {
	routing := cfg.Routing
	if routing == nil {
		routing = &config.RoutingConfig{DataPath: "."}
	}
	optimizer := planner.DefaultOptimizerConfig()
	limit := 0
	if cfg.Planner != nil {
		optimizer = planner.OptimizerConfig{MaxPasses: cfg.Planner.MaxPasses, TimeBudget: cfg.Planner.TimeBudget}
		limit = cfg.Planner.MaxSessions
	}

	srv := &tourService{
		routing:   routing,
		planner:   optimizer,
		limit:     limit,
		logger:    logger,
		metrics:   m,
		publisher: publisher,
		now:       time.Now,
		sessions:  make(map[string]*sessionEntry),
		events:    make(chan *service.TourChangedEvent, eventQueueSize),
		done:      make(chan struct{}),
	}
	go srv.publishLoop()

	return srv
}

// log returns a request-scoped logger if available, otherwise falls back to the service's logger.
func (srv *tourService) log(ctx context.Context) *slog.Logger {
	return deliverycontext.GetLoggerOrDefault(ctx, srv.logger)
}

// Close ends every session and flushes the event queue.
func (srv *tourService) Close() {
	srv.mu.Lock()
	if srv.closed {
		srv.mu.Unlock()

		return
	}
	srv.closed = true
	entries := srv.sessions
	srv.sessions = make(map[string]*sessionEntry)
	srv.mu.Unlock()

	for _, e := range entries {
		e.session.Close()
	}
	srv.forwarders.Wait()
	close(srv.events)
	<-srv.done
	srv.metrics.SetSessions(0)
}

// CreateSession loads a network, and optionally requests, into a new session.
func (srv *tourService) CreateSession(ctx context.Context, input *usecase.CreateSessionInput) (*usecase.SessionSummary, error) {
	roads, summary, err := srv.loadNetwork(ctx, input.NetworkDir)
	if err != nil {
		return nil, err
	}

	id := uuid.NewString()
	entry := &sessionEntry{
		session: session.New(id, roads, srv.planner, srv.logger),
		created: srv.now(),
		roads:   roads,
		network: summary,
	}
	entry.touch(ctx)

	if err := srv.register(entry); err != nil {
		entry.session.Close()

		return nil, err
	}

	if input.RequestsFile != "" {
		if err := srv.loadRequests(ctx, entry, input.RequestsFile); err != nil {
			_ = srv.DeleteSession(ctx, id)

			return nil, err
		}
	}

	srv.log(ctx).Info("Session created",
		slog.String("session_id", id),
		slog.String("network", summary.Dir),
		slog.Int("intersections", summary.Intersections),
	)

	return srv.summary(entry), nil
}

func (srv *tourService) register(entry *sessionEntry) error {
	srv.mu.Lock()
	defer srv.mu.Unlock()

	if srv.closed {
		return errors.Wrap(domainerrors.ErrInternalError, "service is shutting down")
	}
	if srv.limit > 0 && len(srv.sessions) >= srv.limit {
		return domainerrors.ErrSessionLimitReached
	}
	srv.sessions[entry.session.ID()] = entry
	srv.forward(entry)
	srv.metrics.SetSessions(len(srv.sessions))

	return nil
}

// GetSession returns the state of a session.
func (srv *tourService) GetSession(ctx context.Context, id string) (*usecase.SessionSummary, error) {
	entry, err := srv.lookup(id)
	if err != nil {
		return nil, err
	}

	return srv.summary(entry), nil
}

// ListSessions returns every open session, oldest first.
func (srv *tourService) ListSessions(ctx context.Context) ([]*usecase.SessionSummary, error) {
	srv.mu.RLock()
	entries := make([]*sessionEntry, 0, len(srv.sessions))
	for _, e := range srv.sessions {
		entries = append(entries, e)
	}
	srv.mu.RUnlock()

	slices.SortFunc(entries, func(a, b *sessionEntry) int {
		if c := a.created.Compare(b.created); c != 0 {
			return c
		}

		return cmp.Compare(a.session.ID(), b.session.ID())
	})

	out := make([]*usecase.SessionSummary, 0, len(entries))
	for _, e := range entries {
		out = append(out, srv.summary(e))
	}

	return out, nil
}

// DeleteSession closes a session and cancels its computation, if any.
func (srv *tourService) DeleteSession(ctx context.Context, id string) error {
	srv.mu.Lock()
	entry, ok := srv.sessions[id]
	if ok {
		delete(srv.sessions, id)
	}
	count := len(srv.sessions)
	srv.mu.Unlock()

	if !ok {
		return domainerrors.ErrSessionNotFound
	}
	entry.session.Close()
	srv.metrics.SetSessions(count)
	srv.log(ctx).Info("Session deleted", slog.String("session_id", id))

	return nil
}

// LoadNetwork replaces the road network of a session.
func (srv *tourService) LoadNetwork(ctx context.Context, id string, input *usecase.LoadNetworkInput) (*usecase.SessionSummary, error) {
	entry, err := srv.lookup(id)
	if err != nil {
		return nil, err
	}
	roads, summary, err := srv.loadNetwork(ctx, input.NetworkDir)
	if err != nil {
		return nil, err
	}

	entry.touch(ctx)
	entry.mu.Lock()
	defer entry.mu.Unlock()
	if err := entry.session.LoadNetwork(roads); err != nil {
		return nil, err
	}
	entry.roads = roads
	entry.network = summary

	return srv.summaryLocked(entry, roads, summary), nil
}

// LoadRequests replaces the requests of a session from a description file.
func (srv *tourService) LoadRequests(ctx context.Context, id string, input *usecase.LoadRequestsInput) (*usecase.SessionSummary, error) {
	entry, err := srv.lookup(id)
	if err != nil {
		return nil, err
	}
	if err := srv.loadRequests(ctx, entry, input.RequestsFile); err != nil {
		return nil, err
	}

	return srv.summary(entry), nil
}

// ListRequests returns the live request set.
func (srv *tourService) ListRequests(ctx context.Context, id string) ([]*usecase.RequestView, error) {
	entry, err := srv.lookup(id)
	if err != nil {
		return nil, err
	}
	roads, _ := entry.current()
	view := entry.session.Snapshot()

	out := make([]*usecase.RequestView, 0, len(view.Requests))
	for _, r := range view.Requests {
		out = append(out, requestView(roads, r))
	}

	return out, nil
}

// GetTour returns the current schedule.
func (srv *tourService) GetTour(ctx context.Context, id string) (*usecase.TourView, error) {
	entry, err := srv.lookup(id)
	if err != nil {
		return nil, err
	}
	view := entry.session.Snapshot()
	if view.Tour == nil {
		return nil, domainerrors.ErrNoTour
	}
	roads, _ := entry.current()

	return tourView(roads, id, view.Version, view.Tour), nil
}

// GetLeg returns the road path between two stops of the tour.
func (srv *tourService) GetLeg(ctx context.Context, id string, from, to int) (*usecase.LegView, error) {
	entry, err := srv.lookup(id)
	if err != nil {
		return nil, err
	}
	path, err := entry.session.Path(from, to)
	if err != nil {
		return nil, err
	}

	return legView(from, to, path), nil
}

// Recompute builds and optimises a tour. It blocks until the computation
// finishes or is cancelled.
func (srv *tourService) Recompute(ctx context.Context, id string) (*usecase.ComputeResult, error) {
	entry, err := srv.lookup(id)
	if err != nil {
		return nil, err
	}
	entry.touch(ctx)

	started := time.Now()
	tour, stats, err := entry.session.Recompute(ctx)
	elapsed := time.Since(started)
	if err != nil {
		srv.metrics.ObserveComputation(metrics.OutcomeFailed, elapsed, 0, stats.Passes)
		srv.log(ctx).Warn("Tour computation failed",
			slog.String("session_id", id),
			slog.Any("error", err),
		)

		return nil, err
	}

	outcome := metrics.OutcomeOK
	if stats.Cancelled {
		outcome = metrics.OutcomeCancelled
	}
	result := &usecase.ComputeResult{
		Passes:          stats.Passes,
		Accepted:        stats.Accepted,
		Cancelled:       stats.Cancelled,
		BudgetExhausted: stats.BudgetExhausted,
		InitialSeconds:  stats.Initial.Seconds(),
		FinalSeconds:    stats.Final.Seconds(),
	}
	var total time.Duration
	if tour != nil {
		roads, _ := entry.current()
		result.Tour = tourView(roads, id, entry.session.Version(), tour)
		total = tour.Total
	}
	srv.metrics.ObserveComputation(outcome, elapsed, total, stats.Passes)
	srv.log(ctx).Info("Tour computation finished",
		slog.String("session_id", id),
		slog.String("outcome", outcome),
		slog.Duration("elapsed", elapsed),
		slog.Duration("total", total),
	)

	return result, nil
}

// CancelComputation stops a running computation of the session.
func (srv *tourService) CancelComputation(ctx context.Context, id string) error {
	entry, err := srv.lookup(id)
	if err != nil {
		return err
	}

	return entry.session.CancelComputation()
}

// BeginAddRequest enters the request creation phase.
func (srv *tourService) BeginAddRequest(ctx context.Context, id string) (*usecase.SessionSummary, error) {
	return srv.move(ctx, id, (*session.Session).BeginAddRequest)
}

// CancelAddRequest leaves the request creation phase.
func (srv *tourService) CancelAddRequest(ctx context.Context, id string) (*usecase.SessionSummary, error) {
	return srv.move(ctx, id, (*session.Session).CancelAddRequest)
}

func (srv *tourService) move(ctx context.Context, id string, step func(*session.Session) error) (*usecase.SessionSummary, error) {
	entry, err := srv.lookup(id)
	if err != nil {
		return nil, err
	}
	entry.touch(ctx)
	if err := step(entry.session); err != nil {
		return nil, err
	}

	return srv.summary(entry), nil
}

// AddRequest adds a pickup/delivery pair and inserts it into the tour, if
// one is computed.
func (srv *tourService) AddRequest(ctx context.Context, id string, input *usecase.AddRequestInput) (*usecase.EditResult, error) {
	entry, err := srv.lookup(id)
	if err != nil {
		return nil, err
	}
	roads, _ := entry.current()
	pickup, err := srv.resolveIntersection(roads, input.Pickup, input.PickupAt)
	if err != nil {
		return nil, err
	}
	delivery, err := srv.resolveIntersection(roads, input.Delivery, input.DeliveryAt)
	if err != nil {
		return nil, err
	}

	return srv.apply(ctx, id, edit.AddRequest(entity.NewRequest{
		Pickup:           pickup,
		Delivery:         delivery,
		PickupDuration:   seconds(input.PickupSeconds),
		DeliveryDuration: seconds(input.DeliverySeconds),
		Deadline:         input.Deadline,
	}))
}

// resolveIntersection returns id, or the intersection nearest to at when no
// id is given.
func (srv *tourService) resolveIntersection(roads *network.Network, id int64, at *usecase.Location) (entity.IntersectionID, error) {
	if id != 0 || at == nil {
		return entity.IntersectionID(id), nil
	}
	nearest, distance, ok := roads.Nearest(at.Lat, at.Lng)
	if !ok {
		return 0, domainerrors.ErrInvalidReference.WithDetails("the network has no intersections")
	}
	if limit := srv.routing.MaxSnapMeters; limit > 0 && distance > limit {
		return 0, domainerrors.ErrInvalidReference.WithDetails(
			fmt.Sprintf("no intersection within %.0f m of %.5f,%.5f", limit, at.Lat, at.Lng))
	}

	return nearest.ID, nil
}

// RemoveRequest removes both demands of a request from the tour.
func (srv *tourService) RemoveRequest(ctx context.Context, id string, requestID int64) (*usecase.EditResult, error) {
	return srv.apply(ctx, id, edit.RemoveRequest(entity.RequestID(requestID)))
}

// RemoveDemand removes a demand, and with it its request, from the tour.
func (srv *tourService) RemoveDemand(ctx context.Context, id string, demandID int64) (*usecase.EditResult, error) {
	return srv.apply(ctx, id, edit.RemoveDemand(entity.DemandID(demandID)))
}

// SetServiceDuration changes the time spent at one stop.
func (srv *tourService) SetServiceDuration(ctx context.Context, id string, demandID int64, input *usecase.ServiceDurationInput) (*usecase.EditResult, error) {
	if input.ServiceSeconds == nil {
		return nil, domainerrors.ErrValidationFailed.WithDetails("serviceSeconds is required")
	}

	return srv.apply(ctx, id, edit.SetServiceDuration(entity.DemandID(demandID), seconds(*input.ServiceSeconds)))
}

// Reorder moves or swaps two stops of the tour.
func (srv *tourService) Reorder(ctx context.Context, id string, input *usecase.ReorderInput) (*usecase.EditResult, error) {
	mode := edit.ReorderMove
	if input.Swap {
		mode = edit.ReorderSwap
	}

	return srv.apply(ctx, id, edit.Reorder(input.From, input.To, mode))
}

func (srv *tourService) apply(ctx context.Context, id string, cmd *edit.Command) (*usecase.EditResult, error) {
	entry, err := srv.lookup(id)
	if err != nil {
		return nil, err
	}
	entry.touch(ctx)

	err = entry.session.Apply(cmd)
	srv.metrics.ObserveEdit(string(cmd.Kind), err)
	if err != nil {
		srv.log(ctx).Debug("Edit rejected",
			slog.String("session_id", id),
			slog.String("edit", cmd.String()),
			slog.Any("error", err),
		)

		return nil, err
	}

	return srv.editResult(entry, cmd), nil
}

// Undo reverts the last edit.
func (srv *tourService) Undo(ctx context.Context, id string) (*usecase.EditResult, error) {
	return srv.replay(ctx, id, session.ActionUndo, (*session.Session).Undo)
}

// Redo reapplies the last undone edit.
func (srv *tourService) Redo(ctx context.Context, id string) (*usecase.EditResult, error) {
	return srv.replay(ctx, id, session.ActionRedo, (*session.Session).Redo)
}

func (srv *tourService) replay(ctx context.Context, id string, action session.Action, step func(*session.Session) (*edit.Command, error)) (*usecase.EditResult, error) {
	entry, err := srv.lookup(id)
	if err != nil {
		return nil, err
	}
	entry.touch(ctx)

	cmd, err := step(entry.session)
	srv.metrics.ObserveEdit(string(action), err)
	if err != nil {
		return nil, err
	}

	return srv.editResult(entry, cmd), nil
}

// Select highlights a demand and its sibling. A zero id clears the
// selection.
func (srv *tourService) Select(ctx context.Context, id string, demandID int64) (*usecase.SessionSummary, error) {
	entry, err := srv.lookup(id)
	if err != nil {
		return nil, err
	}
	if _, err := entry.session.Select(entity.DemandID(demandID)); err != nil {
		return nil, err
	}

	return srv.summary(entry), nil
}

func (srv *tourService) lookup(id string) (*sessionEntry, error) {
	srv.mu.RLock()
	defer srv.mu.RUnlock()

	entry, ok := srv.sessions[id]
	if !ok {
		return nil, domainerrors.ErrSessionNotFound
	}

	return entry, nil
}

// resolve places a client supplied path under the data directory.
func (srv *tourService) resolve(rel string) (string, error) {
	if !filepath.IsLocal(rel) {
		return "", domainerrors.ErrValidationFailed.WithDetails("path must be relative to the data directory: " + rel)
	}

	return filepath.Join(srv.routing.DataPath, rel), nil
}

func (srv *tourService) networkConfig() network.Config {
	cfg := network.DefaultConfig()
	if srv.routing.DefaultSpeedKmh > 0 {
		cfg.DefaultSpeedKmh = srv.routing.DefaultSpeedKmh
	}
	if srv.routing.GridCellSizeKm > 0 {
		cfg.GridCellSizeKm = srv.routing.GridCellSizeKm
	}
	if srv.routing.WarmupWorkers > 0 {
		cfg.WarmupWorkers = srv.routing.WarmupWorkers
	}

	return cfg
}

// loadNetwork reads the CSV files of a network directory. A metadata file,
// when present, must match the loaded data.
func (srv *tourService) loadNetwork(ctx context.Context, dir string) (*network.Network, usecase.NetworkSummary, error) {
	path, err := srv.resolve(dir)
	if err != nil {
		return nil, usecase.NetworkSummary{}, err
	}

	data, err := loader.NewCSVLoader(path).Load()
	if err != nil {
		return nil, usecase.NetworkSummary{}, domainerrors.ErrLoadFailed.WithDetails(err.Error())
	}

	summary := usecase.NetworkSummary{Dir: dir}
	metadata, err := loader.LoadMetadata(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
	case err != nil:
		return nil, usecase.NetworkSummary{}, domainerrors.ErrLoadFailed.WithDetails(err.Error())
	default:
		if err := metadata.Validate(); err != nil {
			return nil, usecase.NetworkSummary{}, domainerrors.ErrLoadFailed.WithDetails(err.Error())
		}
		if err := metadata.CheckCounts(data); err != nil {
			return nil, usecase.NetworkSummary{}, domainerrors.ErrLoadFailed.WithDetails(err.Error())
		}
		summary.Region = metadata.Source.Region
	}

	roads, err := network.FromGraph(data, srv.networkConfig(),
		network.WithLogger(srv.log(ctx)),
		network.WithCacheObserver(srv.metrics),
	)
	if err != nil {
		return nil, usecase.NetworkSummary{}, domainerrors.ErrLoadFailed.WithDetails(err.Error())
	}
	summary.Intersections, summary.Segments = roads.Size()

	return roads, summary, nil
}

// loadRequests reads a request description into the session and warms the
// path cache for every stop.
func (srv *tourService) loadRequests(ctx context.Context, entry *sessionEntry, file string) error {
	path, err := srv.resolve(file)
	if err != nil {
		return err
	}
	plan, err := loader.LoadRequests(path, srv.now())
	if err != nil {
		return domainerrors.ErrLoadFailed.WithDetails(err.Error())
	}

	entry.touch(ctx)
	if err := entry.session.LoadRequests(plan.Depot, plan.Start, plan.Requests); err != nil {
		return err
	}

	origins := make([]entity.IntersectionID, 0, 2*len(plan.Requests)+1)
	origins = append(origins, plan.Depot)
	for _, r := range plan.Requests {
		origins = append(origins, r.Pickup, r.Delivery)
	}
	roads, _ := entry.current()
	if err := roads.Warm(ctx, origins); err != nil {
		srv.log(ctx).Warn("Path cache warm-up failed", slog.Any("error", err))
	}

	return nil
}

func (srv *tourService) summary(entry *sessionEntry) *usecase.SessionSummary {
	roads, summary := entry.current()

	return srv.summaryLocked(entry, roads, summary)
}

func (srv *tourService) summaryLocked(entry *sessionEntry, roads *network.Network, summary usecase.NetworkSummary) *usecase.SessionSummary {
	view := entry.session.Snapshot()

	out := &usecase.SessionSummary{
		ID:        view.ID,
		Phase:     string(view.Phase),
		Version:   view.Version,
		Network:   summary,
		Requests:  len(view.Requests),
		HasTour:   view.Tour != nil,
		CanUndo:   view.CanUndo,
		CanRedo:   view.CanRedo,
		Computing: view.Computing,
		Allowed:   make([]string, 0, len(view.Allowed)),
	}
	for _, action := range view.Allowed {
		out.Allowed = append(out.Allowed, string(action))
	}
	if !view.Start.IsZero() {
		depot := intersectionView(roads, view.Depot)
		start := view.Start
		out.Depot = &depot
		out.Start = &start
	}
	if view.Selection != nil {
		out.Selection = &usecase.SelectionView{
			Demand:    demandView(roads, view.Selection.Demand),
			Sibling:   demandView(roads, view.Selection.Sibling),
			StopIndex: view.Selection.StopIndex,
		}
	}

	return out
}

func (srv *tourService) editResult(entry *sessionEntry, cmd *edit.Command) *usecase.EditResult {
	roads, _ := entry.current()
	view := entry.session.Snapshot()

	result := &usecase.EditResult{
		Edit:    cmd.String(),
		Version: view.Version,
		CanUndo: view.CanUndo,
		CanRedo: view.CanRedo,
	}
	if view.Tour != nil {
		result.Tour = tourView(roads, view.ID, view.Version, view.Tour)
	}

	return result
}

func seconds(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}
