package edit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tourplanner/internal/domain/entity"
	domainerrors "tourplanner/internal/domain/errors"
	"tourplanner/internal/errors"
	"tourplanner/internal/infra/routing/network"
	"tourplanner/internal/planner"
)

var eight = time.Date(2024, 3, 4, 8, 0, 0, 0, time.UTC)

// lineNetwork connects intersections 1..5 pairwise, |i-j| minutes apart.
func lineNetwork(t *testing.T) *network.Network {
	t.Helper()

	var intersections []entity.Intersection
	var segments []entity.Segment
	for i := 1; i <= 5; i++ {
		intersections = append(intersections, entity.Intersection{ID: entity.IntersectionID(i), Lat: 45.75 + float64(i)*0.001, Lng: 4.85})
		for j := 1; j <= 5; j++ {
			if i == j {
				continue
			}
			gap := i - j
			if gap < 0 {
				gap = -gap
			}
			segments = append(segments, entity.Segment{
				From:       entity.IntersectionID(i),
				To:         entity.IntersectionID(j),
				StreetName: "Cours Lafayette",
				Length:     float64(gap) * 250,
				Duration:   time.Duration(gap) * time.Minute,
			})
		}
	}
	roads, err := network.New(intersections, segments, network.DefaultConfig())
	require.NoError(t, err)

	return roads
}

type fixture struct {
	stack  *Stack
	target *Target
}

// newFixture plans R1 (2 -> 4) and R2 (3 -> 5) from depot 1. The resulting
// order is P1 P2 D2 D1, demand ids [1 3 4 2].
func newFixture(t *testing.T, deadline *time.Time) *fixture {
	t.Helper()

	roads := lineNetwork(t)
	set := entity.NewRequestSet()
	_, err := set.Add(entity.NewRequest{Pickup: 2, Delivery: 4}, roads.Contains)
	require.NoError(t, err)
	_, err = set.Add(entity.NewRequest{Pickup: 3, Delivery: 5, Deadline: deadline}, roads.Contains)
	require.NoError(t, err)

	p := planner.New(roads, planner.DefaultOptimizerConfig(), nil)
	target := &Target{Depot: 1, Start: eight, Requests: set, Contains: roads.Contains}
	tour, err := p.Builder().Build(context.Background(), target.problem(set))
	require.NoError(t, err)
	require.Equal(t, []entity.DemandID{1, 3, 4, 2}, tour.Order())
	target.Tour = tour

	return &fixture{stack: NewStack(p.Simulator(), p.Builder()), target: target}
}

func TestStack_RemoveThenUndoRestoresTour(t *testing.T) {
	f := newFixture(t, nil)
	before := f.target.Tour.Clone()
	requestsBefore := f.target.Requests.Requests()

	require.NoError(t, f.stack.Push(f.target, RemoveDemand(3)))
	assert.Equal(t, []entity.DemandID{1, 2}, f.target.Tour.Order())
	assert.Equal(t, 1, f.target.Requests.Len())
	assert.Equal(t, 6*time.Minute, f.target.Tour.Total)

	cmd, err := f.stack.Undo(f.target)
	require.NoError(t, err)
	assert.Equal(t, KindRemoveDemand, cmd.Kind)
	assert.Equal(t, before, f.target.Tour)
	assert.Equal(t, requestsBefore, f.target.Requests.Requests())
	assert.True(t, f.stack.CanRedo())
	assert.False(t, f.stack.CanUndo())
}

func TestStack_RemoveOnlyRequestLeavesTrivialTour(t *testing.T) {
	f := newFixture(t, nil)

	require.NoError(t, f.stack.Push(f.target, RemoveRequest(1)))
	require.NoError(t, f.stack.Push(f.target, RemoveRequest(2)))

	tour := f.target.Tour
	assert.Equal(t, 0, f.target.Requests.Len())
	assert.Len(t, tour.Stops, 2)
	assert.Equal(t, time.Duration(0), tour.Total)
	assert.Equal(t, eight, tour.End())
	assert.True(t, tour.Feasible)
}

func TestStack_NotFoundLeavesTourUnchanged(t *testing.T) {
	f := newFixture(t, nil)
	tour := f.target.Tour
	requests := f.target.Requests

	tests := []struct {
		name string
		cmd  *Command
		want error
	}{
		{name: "unknown demand", cmd: RemoveDemand(99), want: domainerrors.ErrNotFound},
		{name: "unknown request", cmd: RemoveRequest(42), want: domainerrors.ErrNotFound},
		{name: "position out of range", cmd: Reorder(1, 5, ReorderSwap), want: domainerrors.ErrNotFound},
		{name: "depot position", cmd: Reorder(0, 2, ReorderMove), want: domainerrors.ErrNotFound},
		{name: "unknown service demand", cmd: SetServiceDuration(7, time.Minute), want: domainerrors.ErrNotFound},
		{name: "negative service", cmd: SetServiceDuration(1, -time.Minute), want: domainerrors.ErrValidationFailed},
		{name: "unknown intersection", cmd: AddRequest(entity.NewRequest{Pickup: 2, Delivery: 77}), want: domainerrors.ErrInvalidReference},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := f.stack.Push(f.target, tt.cmd)
			assert.True(t, errors.Is(err, tt.want), "got %v", err)
			assert.Same(t, tour, f.target.Tour)
			assert.Same(t, requests, f.target.Requests)
			assert.False(t, f.stack.CanUndo())
		})
	}
}

func TestStack_ReorderPrecedenceViolation(t *testing.T) {
	f := newFixture(t, nil)
	tour := f.target.Tour

	// D1 sits at stop 4, moving it first puts it before P1.
	err := f.stack.Push(f.target, Reorder(4, 1, ReorderMove))
	assert.True(t, errors.Is(err, domainerrors.ErrPrecedenceViolation))
	assert.Same(t, tour, f.target.Tour)
}

func TestStack_ReorderAndUndo(t *testing.T) {
	tests := []struct {
		name     string
		cmd      *Command
		expected []entity.DemandID
		wantErr  error
	}{
		{name: "swap pickups", cmd: Reorder(1, 2, ReorderSwap), expected: []entity.DemandID{3, 1, 4, 2}},
		{name: "swap deliveries", cmd: Reorder(3, 4, ReorderSwap), expected: []entity.DemandID{1, 3, 2, 4}},
		{name: "move pickup later", cmd: Reorder(1, 2, ReorderMove), expected: []entity.DemandID{3, 1, 4, 2}},
		{name: "move delivery earlier", cmd: Reorder(4, 3, ReorderMove), expected: []entity.DemandID{1, 3, 2, 4}},
		{name: "pickup after its delivery", cmd: Reorder(2, 4, ReorderMove), wantErr: domainerrors.ErrPrecedenceViolation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, nil)
			before := f.target.Tour.Clone()

			err := f.stack.Push(f.target, tt.cmd)
			if tt.wantErr != nil {
				assert.True(t, errors.Is(err, tt.wantErr))
				assert.Equal(t, before, f.target.Tour)

				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, f.target.Tour.Order())

			_, err = f.stack.Undo(f.target)
			require.NoError(t, err)
			assert.Equal(t, before, f.target.Tour)
		})
	}
}

func TestStack_AddRequestUndoRedoKeepsIdentifiers(t *testing.T) {
	f := newFixture(t, nil)
	before := f.target.Tour.Clone()

	cmd := AddRequest(entity.NewRequest{Pickup: 4, Delivery: 5, PickupDuration: time.Minute})
	require.NoError(t, f.stack.Push(f.target, cmd))
	added := cmd.Request()
	require.NotNil(t, added)
	assert.Equal(t, entity.RequestID(3), added.ID)
	assert.Equal(t, 3, f.target.Requests.Len())
	after := f.target.Tour.Clone()
	assert.GreaterOrEqual(t, f.target.Tour.IndexOf(added.Delivery.ID), f.target.Tour.IndexOf(added.Pickup.ID))

	_, err := f.stack.Undo(f.target)
	require.NoError(t, err)
	assert.Equal(t, before, f.target.Tour)
	assert.Equal(t, 2, f.target.Requests.Len())

	_, err = f.stack.Redo(f.target)
	require.NoError(t, err)
	assert.Equal(t, after, f.target.Tour)
	restored, ok := f.target.Requests.Get(added.ID)
	require.True(t, ok)
	assert.Equal(t, added, restored)
}

func TestStack_RedoChainAfterAddRequest(t *testing.T) {
	f := newFixture(t, nil)

	add := AddRequest(entity.NewRequest{Pickup: 4, Delivery: 5, PickupDuration: time.Minute})
	require.NoError(t, f.stack.Push(f.target, add))
	added := add.Request()
	require.NotNil(t, added)
	afterAdd := f.target.Tour.Clone()

	require.NoError(t, f.stack.Push(f.target, RemoveDemand(added.Pickup.ID)))
	afterRemove := f.target.Tour.Clone()
	assert.Equal(t, 2, f.target.Requests.Len())

	for range 2 {
		_, err := f.stack.Undo(f.target)
		require.NoError(t, err)
	}
	assert.False(t, f.stack.CanUndo())

	cmd, err := f.stack.Redo(f.target)
	require.NoError(t, err)
	assert.Equal(t, KindAddRequest, cmd.Kind)
	assert.Equal(t, afterAdd, f.target.Tour)
	restored, ok := f.target.Requests.Get(added.ID)
	require.True(t, ok)
	assert.Equal(t, added.Pickup.ID, restored.Pickup.ID)
	assert.Equal(t, added.Delivery.ID, restored.Delivery.ID)

	cmd, err = f.stack.Redo(f.target)
	require.NoError(t, err)
	assert.Equal(t, KindRemoveDemand, cmd.Kind)
	assert.Equal(t, afterRemove, f.target.Tour)
	_, ok = f.target.Requests.Get(added.ID)
	assert.False(t, ok)
	assert.False(t, f.stack.CanRedo())
}

func TestStack_SetServiceDurationShiftsLaterStops(t *testing.T) {
	f := newFixture(t, nil)
	before := f.target.Tour.Clone()

	require.NoError(t, f.stack.Push(f.target, SetServiceDuration(3, 2*time.Minute)))
	tour := f.target.Tour
	assert.Equal(t, before.Order(), tour.Order())
	assert.Equal(t, before.Stops[2].Arrival, tour.Stops[2].Arrival)
	assert.Equal(t, before.Stops[2].Departure.Add(2*time.Minute), tour.Stops[2].Departure)
	assert.Equal(t, before.Stops[3].Arrival.Add(2*time.Minute), tour.Stops[3].Arrival)
	assert.Equal(t, before.Total+2*time.Minute, tour.Total)

	_, err := f.stack.Undo(f.target)
	require.NoError(t, err)
	assert.Equal(t, before, f.target.Tour)
}

func TestStack_EditMissingDeadlineIsRejected(t *testing.T) {
	// D2 is reached at 08:04 in the planned order.
	deadline := eight.Add(10 * time.Minute)
	f := newFixture(t, &deadline)
	tour := f.target.Tour
	require.True(t, tour.Feasible)

	err := f.stack.Push(f.target, SetServiceDuration(1, 10*time.Minute))
	assert.True(t, errors.Is(err, domainerrors.ErrInfeasible))
	assert.Same(t, tour, f.target.Tour)

	require.NoError(t, f.stack.Push(f.target, SetServiceDuration(1, 5*time.Minute)))
	assert.True(t, f.target.Tour.Feasible)
}

func TestStack_HistoryRules(t *testing.T) {
	f := newFixture(t, nil)

	_, err := f.stack.Undo(f.target)
	assert.True(t, errors.Is(err, domainerrors.ErrNothingToUndo))
	_, err = f.stack.Redo(f.target)
	assert.True(t, errors.Is(err, domainerrors.ErrNothingToRedo))

	require.NoError(t, f.stack.Push(f.target, Reorder(1, 2, ReorderSwap)))
	require.NoError(t, f.stack.Push(f.target, RemoveRequest(1)))
	assert.Len(t, f.stack.History(), 2)

	_, err = f.stack.Undo(f.target)
	require.NoError(t, err)
	assert.True(t, f.stack.CanRedo())

	// A new edit discards the redo history.
	require.NoError(t, f.stack.Push(f.target, SetServiceDuration(1, time.Minute)))
	assert.False(t, f.stack.CanRedo())
	assert.Len(t, f.stack.History(), 2)

	f.stack.Clear()
	assert.False(t, f.stack.CanUndo())
	assert.False(t, f.stack.CanRedo())
}

func TestStack_PushWithoutTour(t *testing.T) {
	stack := NewStack(nil, nil)
	err := stack.Push(&Target{Requests: entity.NewRequestSet()}, RemoveRequest(1))
	assert.True(t, errors.Is(err, domainerrors.ErrNoTour))
}

func TestCommand_String(t *testing.T) {
	assert.Equal(t, "remove-demand(3)", RemoveDemand(3).String())
	assert.Equal(t, "remove-request(2)", RemoveRequest(2).String())
	assert.Equal(t, "reorder(swap 1->2)", Reorder(1, 2, ReorderSwap).String())
	assert.Equal(t, "reorder(move 1->2)", Reorder(1, 2, "").String())
	assert.Equal(t, "add-request", AddRequest(entity.NewRequest{}).String())
}
