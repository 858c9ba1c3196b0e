package session

import (
	"fmt"

	domainerrors "tourplanner/internal/domain/errors"
	"tourplanner/internal/edit"
)

// Phase is the state of a session.
type Phase string

const (
	PhaseInitial        Phase = "initial"
	PhaseNetworkLoaded  Phase = "network-loaded"
	PhaseRequestsLoaded Phase = "requests-loaded"
	PhaseTourComputed   Phase = "tour-computed"
	PhaseAddingRequest  Phase = "adding-request"
	PhaseComputing      Phase = "computing"
)

// Action is an operation requested on a session.
type Action string

const (
	ActionLoadNetwork        Action = "load-network"
	ActionLoadRequests       Action = "load-requests"
	ActionCompute            Action = "compute"
	ActionComputeDone        Action = "compute-done"
	ActionCancelComputation  Action = "cancel-computation"
	ActionBeginAddRequest    Action = "begin-add-request"
	ActionAddRequest         Action = "add-request"
	ActionCancelAddRequest   Action = "cancel-add-request"
	ActionRemoveDemand       Action = "remove-demand"
	ActionRemoveRequest      Action = "remove-request"
	ActionReorder            Action = "reorder"
	ActionSetServiceDuration Action = "set-service-duration"
	ActionUndo               Action = "undo"
	ActionRedo               Action = "redo"
	ActionSelect             Action = "select"
)

// transitions maps (phase, action) to the next phase. Missing pairs are
// illegal.
var transitions = map[Phase]map[Action]Phase{
	PhaseInitial: {
		ActionLoadNetwork: PhaseNetworkLoaded,
	},
	PhaseNetworkLoaded: {
		ActionLoadNetwork:  PhaseNetworkLoaded,
		ActionLoadRequests: PhaseRequestsLoaded,
	},
	PhaseRequestsLoaded: {
		ActionLoadNetwork:  PhaseNetworkLoaded,
		ActionLoadRequests: PhaseRequestsLoaded,
		ActionAddRequest:   PhaseRequestsLoaded,
		ActionCompute:      PhaseComputing,
		ActionSelect:       PhaseRequestsLoaded,
	},
	PhaseComputing: {
		ActionComputeDone:       PhaseTourComputed,
		ActionCancelComputation: PhaseComputing,
		ActionSelect:            PhaseComputing,
	},
	PhaseTourComputed: {
		ActionLoadNetwork:        PhaseNetworkLoaded,
		ActionLoadRequests:       PhaseRequestsLoaded,
		ActionCompute:            PhaseComputing,
		ActionBeginAddRequest:    PhaseAddingRequest,
		ActionAddRequest:         PhaseTourComputed,
		ActionRemoveDemand:       PhaseTourComputed,
		ActionRemoveRequest:      PhaseTourComputed,
		ActionReorder:            PhaseTourComputed,
		ActionSetServiceDuration: PhaseTourComputed,
		ActionUndo:               PhaseTourComputed,
		ActionRedo:               PhaseTourComputed,
		ActionSelect:             PhaseTourComputed,
	},
	PhaseAddingRequest: {
		ActionAddRequest:       PhaseTourComputed,
		ActionCancelAddRequest: PhaseTourComputed,
		ActionSelect:           PhaseAddingRequest,
	},
}

// Next returns the phase reached by applying action in phase.
func Next(phase Phase, action Action) (Phase, error) {
	next, ok := transitions[phase][action]
	if !ok {
		return phase, domainerrors.ErrIllegalAction.WithDetails(fmt.Sprintf("%s is not allowed while %s", action, phase))
	}

	return next, nil
}

// Allowed lists the actions legal in phase.
func Allowed(phase Phase) []Action {
	out := make([]Action, 0, len(transitions[phase]))
	for _, action := range actionOrder {
		if _, ok := transitions[phase][action]; ok {
			out = append(out, action)
		}
	}

	return out
}

var actionOrder = []Action{
	ActionLoadNetwork, ActionLoadRequests, ActionCompute, ActionComputeDone,
	ActionCancelComputation, ActionBeginAddRequest, ActionAddRequest,
	ActionCancelAddRequest, ActionRemoveDemand, ActionRemoveRequest, ActionReorder,
	ActionSetServiceDuration, ActionUndo, ActionRedo, ActionSelect,
}

func actionFor(kind edit.Kind) Action {
	switch kind {
	case edit.KindRemoveDemand:
		return ActionRemoveDemand
	case edit.KindRemoveRequest:
		return ActionRemoveRequest
	case edit.KindReorder:
		return ActionReorder
	case edit.KindAddRequest:
		return ActionAddRequest
	default:
		return ActionSetServiceDuration
	}
}
