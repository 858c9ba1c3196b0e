package edit

import (
	"time"

	"tourplanner/internal/domain/entity"
	domainerrors "tourplanner/internal/domain/errors"
	"tourplanner/internal/planner"
)

// Scheduler re-derives a timestamped tour from an ordering.
type Scheduler interface {
	Simulate(problem planner.Problem, order []entity.DemandID) (*entity.Tour, error)
}

// Inserter places a request into an existing ordering.
type Inserter interface {
	Insert(problem planner.Problem, order []entity.DemandID, request *entity.Request) ([]entity.DemandID, error)
}

// Target is the state commands operate on. Push, Undo and Redo replace
// Requests and Tour together or leave both untouched.
type Target struct {
	Depot    entity.IntersectionID
	Start    time.Time
	Requests *entity.RequestSet
	Tour     *entity.Tour
	Contains func(entity.IntersectionID) bool
}

func (t *Target) problem(requests *entity.RequestSet) planner.Problem {
	return planner.Problem{Depot: t.Depot, Start: t.Start, Requests: requests}
}

// Stack keeps the undo and redo history of applied commands.
type Stack struct {
	scheduler Scheduler
	inserter  Inserter
	undo      []*Command
	redo      []*Command
}

// NewStack creates an empty history.
func NewStack(scheduler Scheduler, inserter Inserter) *Stack {
	return &Stack{scheduler: scheduler, inserter: inserter}
}

// Push applies cmd to target. On success the command joins the undo history
// and the redo history is discarded. On failure target is unchanged.
func (s *Stack) Push(target *Target, cmd *Command) error {
	if target.Tour == nil {
		return domainerrors.ErrNoTour
	}
	if err := s.run(target, cmd.apply); err != nil {
		return err
	}
	s.undo = append(s.undo, cmd)
	s.redo = nil

	return nil
}

// Undo reverts the most recent command.
func (s *Stack) Undo(target *Target) (*Command, error) {
	if len(s.undo) == 0 {
		return nil, domainerrors.ErrNothingToUndo
	}
	cmd := s.undo[len(s.undo)-1]
	if err := s.run(target, cmd.revert); err != nil {
		return nil, err
	}
	s.undo = s.undo[:len(s.undo)-1]
	s.redo = append(s.redo, cmd)

	return cmd, nil
}

// Redo reapplies the most recently undone command.
func (s *Stack) Redo(target *Target) (*Command, error) {
	if len(s.redo) == 0 {
		return nil, domainerrors.ErrNothingToRedo
	}
	cmd := s.redo[len(s.redo)-1]
	if err := s.run(target, cmd.apply); err != nil {
		return nil, err
	}
	s.redo = s.redo[:len(s.redo)-1]
	s.undo = append(s.undo, cmd)

	return cmd, nil
}

// run applies step to a scratch copy of target and commits the copy only if
// the resulting ordering schedules into a feasible tour.
func (s *Stack) run(target *Target, step func(*working) error) error {
	w := &working{
		requests: target.Requests.Clone(),
		order:    target.Tour.Order(),
		contains: target.Contains,
		insert: func(requests *entity.RequestSet, order []entity.DemandID, request *entity.Request) ([]entity.DemandID, error) {
			return s.inserter.Insert(target.problem(requests), order, request)
		},
	}
	if err := step(w); err != nil {
		return err
	}

	tour, err := s.scheduler.Simulate(target.problem(w.requests), w.order)
	if err != nil {
		return err
	}
	if !tour.Feasible {
		return domainerrors.ErrInfeasible.WithDetails("the edit would miss a deadline")
	}

	target.Requests = w.requests
	target.Tour = tour

	return nil
}

// CanUndo reports whether Undo has a command to revert.
func (s *Stack) CanUndo() bool {
	return len(s.undo) > 0
}

// CanRedo reports whether Redo has a command to reapply.
func (s *Stack) CanRedo() bool {
	return len(s.redo) > 0
}

// History lists the undoable commands, oldest first.
func (s *Stack) History() []*Command {
	out := make([]*Command, len(s.undo))
	copy(out, s.undo)

	return out
}

// Clear drops both histories.
func (s *Stack) Clear() {
	s.undo = nil
	s.redo = nil
}
