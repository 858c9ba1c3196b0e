package impl

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"tourplanner/config"
	deliverycontext "tourplanner/internal/delivery/context"
	domainerrors "tourplanner/internal/domain/errors"
	"tourplanner/internal/domain/service"
	"tourplanner/internal/infra/metrics"
	mockService "tourplanner/internal/mocks/service"
	"tourplanner/internal/usecase"
)

var eight = time.Date(2026, 3, 4, 8, 0, 0, 0, time.UTC)

const (
	intersectionsCSV = `id,lat,lng
1,45.7500,4.8500
2,45.7600,4.8500
3,45.7700,4.8500
`
	// 250 m take one minute at 15 km/h.
	segmentsCSV = `from,to,street_name,length_m,speed_kmh
1,2,Rue de la Charité,1250,
2,3,Rue Victor Hugo,750,
3,1,Quai Perrache,1000,
2,1,Rue de la Charité,1250,
`
	planYAML = `depot: 1
startTime: "08:00"
date: "2026-03-04"
requests:
  - pickup: 2
    delivery: 3
`
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()

	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func writeFixture(t *testing.T) string {
	t.Helper()

	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "lyon", "intersections.csv"), intersectionsCSV)
	writeFile(t, filepath.Join(dir, "lyon", "segments.csv"), segmentsCSV)
	writeFile(t, filepath.Join(dir, "plan.yaml"), planYAML)

	return dir
}

func quietPublisher(t *testing.T) *mockService.MockEventPublisher {
	t.Helper()

	publisher := mockService.NewMockEventPublisher(t)
	publisher.EXPECT().PublishTourChanged(mock.Anything, mock.Anything).Return(nil).Maybe()

	return publisher
}

func newTestService(t *testing.T, publisher service.EventPublisher, limit int) (*tourService, string) {
	t.Helper()

	dir := writeFixture(t)
	cfg := &config.Config{
		Routing: &config.RoutingConfig{DataPath: dir, DefaultSpeedKmh: 15},
		Planner: &config.PlannerConfig{MaxPasses: 10, TimeBudget: time.Second, MaxSessions: limit},
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	srv := newTourService(cfg, logger, metrics.New(), publisher)
	srv.now = func() time.Time { return eight }
	t.Cleanup(srv.Close)

	return srv, dir
}

func createComputed(t *testing.T, srv *tourService) string {
	t.Helper()

	ctx := context.Background()
	summary, err := srv.CreateSession(ctx, &usecase.CreateSessionInput{NetworkDir: "lyon", RequestsFile: "plan.yaml"})
	require.NoError(t, err)
	_, err = srv.Recompute(ctx, summary.ID)
	require.NoError(t, err)

	return summary.ID
}

func TestTourService_CreateSession(t *testing.T) {
	srv, _ := newTestService(t, quietPublisher(t), 0)

	summary, err := srv.CreateSession(context.Background(), &usecase.CreateSessionInput{NetworkDir: "lyon", RequestsFile: "plan.yaml"})
	require.NoError(t, err)

	assert.NotEmpty(t, summary.ID)
	assert.Equal(t, "requests-loaded", summary.Phase)
	assert.Equal(t, 1, summary.Requests)
	assert.False(t, summary.HasTour)
	assert.Equal(t, usecase.NetworkSummary{Dir: "lyon", Intersections: 3, Segments: 4}, summary.Network)
	require.NotNil(t, summary.Depot)
	assert.Equal(t, "Rue de la Charité", summary.Depot.Name)
	assert.Equal(t, eight, *summary.Start)
	assert.Contains(t, summary.Allowed, "compute")

	sessions, err := srv.ListSessions(context.Background())
	require.NoError(t, err)
	require.Len(t, sessions, 1)
	assert.Equal(t, summary.ID, sessions[0].ID)
}

func TestTourService_CreateSessionWithoutRequests(t *testing.T) {
	srv, _ := newTestService(t, quietPublisher(t), 0)

	summary, err := srv.CreateSession(context.Background(), &usecase.CreateSessionInput{NetworkDir: "lyon"})
	require.NoError(t, err)
	assert.Equal(t, "network-loaded", summary.Phase)
	assert.Nil(t, summary.Depot)

	summary, err = srv.LoadRequests(context.Background(), summary.ID, &usecase.LoadRequestsInput{RequestsFile: "plan.yaml"})
	require.NoError(t, err)
	assert.Equal(t, "requests-loaded", summary.Phase)
}

func TestTourService_RecomputeAndTour(t *testing.T) {
	srv, _ := newTestService(t, quietPublisher(t), 0)
	id := createComputed(t, srv)

	tour, err := srv.GetTour(context.Background(), id)
	require.NoError(t, err)

	assert.Equal(t, 720.0, tour.TotalSeconds)
	assert.Equal(t, "12m0s", tour.Total)
	assert.True(t, tour.Feasible)
	assert.Equal(t, eight.Add(12*time.Minute), tour.End)
	require.Len(t, tour.Stops, 4)
	assert.Equal(t, eight.Add(5*time.Minute), tour.Stops[1].Arrival)
	assert.Equal(t, "pickup", tour.Stops[1].Demand.Kind)
	assert.Equal(t, "Quai Perrache", tour.Stops[2].Intersection.Name)
	assert.Nil(t, tour.Stops[3].Demand)

	requests, err := srv.ListRequests(context.Background(), id)
	require.NoError(t, err)
	require.Len(t, requests, 1)
	assert.Equal(t, int64(2), requests[0].Pickup.Intersection.ID)

	computations, err := testutil.GatherAndCount(srv.metrics.Registry(), "tourplanner_tour_computations_total")
	require.NoError(t, err)
	assert.Equal(t, 1, computations)
}

func TestTourService_GetLeg(t *testing.T) {
	srv, _ := newTestService(t, quietPublisher(t), 0)
	id := createComputed(t, srv)

	leg, err := srv.GetLeg(context.Background(), id, 0, 1)
	require.NoError(t, err)
	assert.Equal(t, 300.0, leg.Seconds)
	assert.Equal(t, []string{"Rue de la Charité"}, leg.Streets)
	assert.Equal(t, []int64{1, 2}, leg.Intersections)

	_, err = srv.GetLeg(context.Background(), id, 0, 9)
	assert.ErrorIs(t, err, domainerrors.ErrNotFound)
}

func TestTourService_EditUndoRedo(t *testing.T) {
	srv, _ := newTestService(t, quietPublisher(t), 0)
	id := createComputed(t, srv)
	ctx := context.Background()

	tour, err := srv.GetTour(ctx, id)
	require.NoError(t, err)
	pickup := tour.Stops[1].Demand.ID

	result, err := srv.RemoveDemand(ctx, id, pickup)
	require.NoError(t, err)
	assert.Equal(t, "remove-demand(1)", result.Edit)
	assert.True(t, result.CanUndo)
	require.NotNil(t, result.Tour)
	assert.Len(t, result.Tour.Stops, 2)
	assert.Equal(t, 0.0, result.Tour.TotalSeconds)

	result, err = srv.Undo(ctx, id)
	require.NoError(t, err)
	assert.Len(t, result.Tour.Stops, 4)
	assert.True(t, result.CanRedo)

	result, err = srv.Redo(ctx, id)
	require.NoError(t, err)
	assert.Len(t, result.Tour.Stops, 2)

	_, err = srv.Redo(ctx, id)
	assert.ErrorIs(t, err, domainerrors.ErrNothingToRedo)
}

func TestTourService_RejectedEditsLeaveTourUnchanged(t *testing.T) {
	srv, _ := newTestService(t, quietPublisher(t), 0)
	id := createComputed(t, srv)
	ctx := context.Background()

	before, err := srv.GetTour(ctx, id)
	require.NoError(t, err)

	negative := -5.0
	tests := []struct {
		name string
		run  func() error
		want error
	}{
		{
			name: "swap pickup and delivery",
			run: func() error {
				_, err := srv.Reorder(ctx, id, &usecase.ReorderInput{From: 1, To: 2, Swap: true})

				return err
			},
			want: domainerrors.ErrPrecedenceViolation,
		},
		{
			name: "unknown request",
			run: func() error {
				_, err := srv.RemoveRequest(ctx, id, 42)

				return err
			},
			want: domainerrors.ErrNotFound,
		},
		{
			name: "negative service",
			run: func() error {
				_, err := srv.SetServiceDuration(ctx, id, 1, &usecase.ServiceDurationInput{ServiceSeconds: &negative})

				return err
			},
			want: domainerrors.ErrValidationFailed,
		},
		{
			name: "unknown intersection",
			run: func() error {
				_, err := srv.AddRequest(ctx, id, &usecase.AddRequestInput{Pickup: 2, Delivery: 99})

				return err
			},
			want: domainerrors.ErrInvalidReference,
		},
		{
			name: "nothing to undo",
			run: func() error {
				_, err := srv.Undo(ctx, id)

				return err
			},
			want: domainerrors.ErrNothingToUndo,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, tt.run(), tt.want)

			after, err := srv.GetTour(ctx, id)
			require.NoError(t, err)
			assert.Equal(t, before, after)
		})
	}
}

func TestTourService_AddRequestPhases(t *testing.T) {
	srv, _ := newTestService(t, quietPublisher(t), 0)
	id := createComputed(t, srv)
	ctx := context.Background()

	summary, err := srv.BeginAddRequest(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "adding-request", summary.Phase)

	_, err = srv.RemoveRequest(ctx, id, 1)
	assert.ErrorIs(t, err, domainerrors.ErrIllegalAction)

	result, err := srv.AddRequest(ctx, id, &usecase.AddRequestInput{Pickup: 3, Delivery: 1, PickupSeconds: 60})
	require.NoError(t, err)
	assert.Len(t, result.Tour.Stops, 6)

	summary, err = srv.GetSession(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "tour-computed", summary.Phase)
	assert.Equal(t, 2, summary.Requests)
}

func TestTourService_AddRequestAtLocations(t *testing.T) {
	srv, _ := newTestService(t, quietPublisher(t), 0)
	srv.routing.MaxSnapMeters = 100
	id := createComputed(t, srv)
	ctx := context.Background()

	result, err := srv.AddRequest(ctx, id, &usecase.AddRequestInput{
		PickupAt:   &usecase.Location{Lat: 45.7702, Lng: 4.8501},
		DeliveryAt: &usecase.Location{Lat: 45.7499, Lng: 4.8500},
	})
	require.NoError(t, err)
	require.Len(t, result.Tour.Stops, 6)

	placed := map[string]int64{}
	for _, stop := range result.Tour.Stops {
		if stop.Demand != nil && stop.Demand.RequestID == 2 {
			placed[stop.Demand.Kind] = stop.Intersection.ID
		}
	}
	assert.Equal(t, map[string]int64{"pickup": 3, "delivery": 1}, placed)

	// An explicit id wins over a location.
	result, err = srv.AddRequest(ctx, id, &usecase.AddRequestInput{
		Pickup:     2,
		PickupAt:   &usecase.Location{Lat: 45.7702, Lng: 4.8501},
		DeliveryAt: &usecase.Location{Lat: 45.7702, Lng: 4.8501},
	})
	require.NoError(t, err)
	assert.Len(t, result.Tour.Stops, 8)

	_, err = srv.AddRequest(ctx, id, &usecase.AddRequestInput{
		PickupAt: &usecase.Location{Lat: 46.0, Lng: 4.85},
		Delivery: 3,
	})
	assert.ErrorIs(t, err, domainerrors.ErrInvalidReference)

	summary, err := srv.GetSession(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, 3, summary.Requests)
}

func TestTourService_Select(t *testing.T) {
	srv, _ := newTestService(t, quietPublisher(t), 0)
	id := createComputed(t, srv)

	summary, err := srv.Select(context.Background(), id, 2)
	require.NoError(t, err)
	require.NotNil(t, summary.Selection)
	assert.Equal(t, "delivery", summary.Selection.Demand.Kind)
	assert.Equal(t, int64(1), summary.Selection.Sibling.ID)
	assert.Equal(t, 2, summary.Selection.StopIndex)

	summary, err = srv.Select(context.Background(), id, 0)
	require.NoError(t, err)
	assert.Nil(t, summary.Selection)
}

func TestTourService_LoadErrors(t *testing.T) {
	srv, dir := newTestService(t, quietPublisher(t), 0)
	writeFile(t, filepath.Join(dir, "broken", "intersections.csv"), intersectionsCSV)
	writeFile(t, filepath.Join(dir, "broken", "segments.csv"), segmentsCSV)
	writeFile(t, filepath.Join(dir, "broken", "metadata.json"), `{
  "version": "1",
  "source": {"region": "lyon"},
  "processing": {"generated_at": "2026-01-01T00:00:00Z"},
  "output": {"intersections_count": 99, "segments_count": 4}
}`)
	writeFile(t, filepath.Join(dir, "bad-depot.yaml"), "depot: 77\nstartTime: \"08:00\"\n")

	tests := []struct {
		name  string
		input *usecase.CreateSessionInput
		want  error
	}{
		{name: "escaping path", input: &usecase.CreateSessionInput{NetworkDir: "../lyon"}, want: domainerrors.ErrValidationFailed},
		{name: "missing network", input: &usecase.CreateSessionInput{NetworkDir: "paris"}, want: domainerrors.ErrLoadFailed},
		{name: "metadata mismatch", input: &usecase.CreateSessionInput{NetworkDir: "broken"}, want: domainerrors.ErrLoadFailed},
		{name: "missing requests", input: &usecase.CreateSessionInput{NetworkDir: "lyon", RequestsFile: "none.yaml"}, want: domainerrors.ErrLoadFailed},
		{name: "unknown depot", input: &usecase.CreateSessionInput{NetworkDir: "lyon", RequestsFile: "bad-depot.yaml"}, want: domainerrors.ErrInvalidReference},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := srv.CreateSession(context.Background(), tt.input)
			assert.ErrorIs(t, err, tt.want)

			sessions, err := srv.ListSessions(context.Background())
			require.NoError(t, err)
			assert.Empty(t, sessions)
		})
	}
}

func TestTourService_MetadataRegion(t *testing.T) {
	srv, dir := newTestService(t, quietPublisher(t), 0)
	writeFile(t, filepath.Join(dir, "lyon", "metadata.json"), `{
  "version": "1",
  "source": {"region": "lyon"},
  "processing": {"generated_at": "2026-01-01T00:00:00Z"},
  "output": {"intersections_count": 3, "segments_count": 4}
}`)

	summary, err := srv.CreateSession(context.Background(), &usecase.CreateSessionInput{NetworkDir: "lyon"})
	require.NoError(t, err)
	assert.Equal(t, "lyon", summary.Network.Region)
}

func TestTourService_SessionLifecycle(t *testing.T) {
	srv, _ := newTestService(t, quietPublisher(t), 1)
	ctx := context.Background()

	summary, err := srv.CreateSession(ctx, &usecase.CreateSessionInput{NetworkDir: "lyon"})
	require.NoError(t, err)

	_, err = srv.CreateSession(ctx, &usecase.CreateSessionInput{NetworkDir: "lyon"})
	assert.ErrorIs(t, err, domainerrors.ErrSessionLimitReached)

	require.NoError(t, srv.DeleteSession(ctx, summary.ID))
	assert.ErrorIs(t, srv.DeleteSession(ctx, summary.ID), domainerrors.ErrSessionNotFound)

	_, err = srv.GetTour(ctx, summary.ID)
	assert.ErrorIs(t, err, domainerrors.ErrSessionNotFound)

	_, err = srv.CreateSession(ctx, &usecase.CreateSessionInput{NetworkDir: "lyon"})
	require.NoError(t, err)
}

func TestTourService_GetTourBeforeCompute(t *testing.T) {
	srv, _ := newTestService(t, quietPublisher(t), 0)

	summary, err := srv.CreateSession(context.Background(), &usecase.CreateSessionInput{NetworkDir: "lyon", RequestsFile: "plan.yaml"})
	require.NoError(t, err)

	_, err = srv.GetTour(context.Background(), summary.ID)
	assert.ErrorIs(t, err, domainerrors.ErrNoTour)
}

func TestTourService_PublishesCommittedChanges(t *testing.T) {
	var (
		mu     sync.Mutex
		events []*service.TourChangedEvent
	)
	publisher := mockService.NewMockEventPublisher(t)
	publisher.EXPECT().
		PublishTourChanged(mock.Anything, mock.AnythingOfType("*service.TourChangedEvent")).
		Run(func(ctx context.Context, event *service.TourChangedEvent) {
			mu.Lock()
			defer mu.Unlock()
			events = append(events, event)
		}).
		Return(nil)

	srv, _ := newTestService(t, publisher, 0)
	ctx := deliverycontext.WithRequestID(context.Background(), "req-1")
	summary, err := srv.CreateSession(ctx, &usecase.CreateSessionInput{NetworkDir: "lyon", RequestsFile: "plan.yaml"})
	require.NoError(t, err)
	_, err = srv.Recompute(ctx, summary.ID)
	require.NoError(t, err)

	srv.Close()

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, events, 3)
	assert.Equal(t, []string{"load-requests", "compute", "compute-done"},
		[]string{events[0].Action, events[1].Action, events[2].Action})
	for i, event := range events {
		assert.Equal(t, summary.ID, event.SessionID)
		assert.Equal(t, "req-1", event.RequestID)
		assert.Equal(t, uint64(i+1), event.Version)
	}
	assert.Equal(t, 720.0, events[2].TotalSeconds)
	assert.Len(t, events[2].Stops, 4)
	assert.Equal(t, "depot", events[2].Stops[0].Kind)
}

func TestTourService_Subscribe(t *testing.T) {
	srv, _ := newTestService(t, quietPublisher(t), 0)
	id := createComputed(t, srv)
	ctx := context.Background()

	events, unsubscribe, err := srv.Subscribe(ctx, id)
	require.NoError(t, err)
	defer unsubscribe()

	_, err = srv.RemoveRequest(ctx, id, 1)
	require.NoError(t, err)

	select {
	case event := <-events:
		assert.Equal(t, "remove-request", event.Action)
		assert.Len(t, event.Stops, 2)
	case <-time.After(time.Second):
		t.Fatal("no event received")
	}

	require.NoError(t, srv.DeleteSession(ctx, id))
	select {
	case _, ok := <-events:
		assert.False(t, ok)
	case <-time.After(time.Second):
		t.Fatal("subscription not closed")
	}

	_, _, err = srv.Subscribe(ctx, id)
	assert.ErrorIs(t, err, domainerrors.ErrSessionNotFound)
}
