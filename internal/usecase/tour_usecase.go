// Package usecase contains the application-specific business rules.
package usecase

import (
	"context"
	"time"

	"tourplanner/internal/domain/service"
)

// CreateSessionInput names the files a new session is loaded from. Paths are
// relative to the configured data directory.
type CreateSessionInput struct {
	NetworkDir   string `json:"networkDir" validate:"required"`
	RequestsFile string `json:"requestsFile,omitempty"`
}

// LoadNetworkInput replaces the road network of a session.
type LoadNetworkInput struct {
	NetworkDir string `json:"networkDir" validate:"required"`
}

// LoadRequestsInput replaces the requests of a session.
type LoadRequestsInput struct {
	RequestsFile string `json:"requestsFile" validate:"required"`
}

// Location is a map position, snapped to the nearest intersection.
type Location struct {
	Lat float64 `json:"lat" validate:"gte=-90,lte=90"`
	Lng float64 `json:"lng" validate:"gte=-180,lte=180"`
}

// AddRequestInput describes a pickup/delivery pair to add. Each end is given
// either as an intersection id or as a location.
type AddRequestInput struct {
	Pickup          int64      `json:"pickup,omitempty" validate:"required_without=PickupAt"`
	Delivery        int64      `json:"delivery,omitempty" validate:"required_without=DeliveryAt"`
	PickupAt        *Location  `json:"pickupAt,omitempty"`
	DeliveryAt      *Location  `json:"deliveryAt,omitempty"`
	PickupSeconds   float64    `json:"pickupSeconds" validate:"gte=0"`
	DeliverySeconds float64    `json:"deliverySeconds" validate:"gte=0"`
	Deadline        *time.Time `json:"deadline,omitempty"`
}

// ServiceDurationInput changes the time spent at one stop.
type ServiceDurationInput struct {
	ServiceSeconds *float64 `json:"serviceSeconds" validate:"required,gte=0"`
}

// ReorderInput moves or swaps two stops, given by 1-based tour positions.
type ReorderInput struct {
	From int  `json:"from" validate:"required,gte=1"`
	To   int  `json:"to" validate:"required,gte=1"`
	Swap bool `json:"swap"`
}

// IntersectionView is an intersection as shown to clients.
type IntersectionView struct {
	ID   int64   `json:"id"`
	Name string  `json:"name"`
	Lat  float64 `json:"lat"`
	Lng  float64 `json:"lng"`
}

// DemandView is one half of a request.
type DemandView struct {
	ID             int64            `json:"id"`
	RequestID      int64            `json:"requestId"`
	Kind           string           `json:"kind"`
	Intersection   IntersectionView `json:"intersection"`
	ServiceSeconds float64          `json:"serviceSeconds"`
}

// RequestView is a pickup/delivery pair.
type RequestView struct {
	ID       int64      `json:"id"`
	Pickup   DemandView `json:"pickup"`
	Delivery DemandView `json:"delivery"`
	Deadline *time.Time `json:"deadline,omitempty"`
}

// StopView is one visit of the tour.
type StopView struct {
	Position     int              `json:"position"`
	Intersection IntersectionView `json:"intersection"`
	Demand       *DemandView      `json:"demand,omitempty"`
	Arrival      time.Time        `json:"arrival"`
	Departure    time.Time        `json:"departure"`
	Late         bool             `json:"late,omitempty"`
}

// TourView is the computed schedule of a session.
type TourView struct {
	SessionID    string     `json:"sessionId"`
	Version      uint64     `json:"version"`
	Depot        int64      `json:"depot"`
	Start        time.Time  `json:"start"`
	End          time.Time  `json:"end"`
	TotalSeconds float64    `json:"totalSeconds"`
	Total        string     `json:"total"`
	Feasible     bool       `json:"feasible"`
	Late         []int64    `json:"late,omitempty"`
	Stops        []StopView `json:"stops"`
}

// LegView is the road path between two stops.
type LegView struct {
	From          int      `json:"from"`
	To            int      `json:"to"`
	Seconds       float64  `json:"seconds"`
	LengthM       float64  `json:"lengthM"`
	Streets       []string `json:"streets"`
	Intersections []int64  `json:"intersections"`
}

// SelectionView is the highlighted demand and its sibling.
type SelectionView struct {
	Demand    DemandView `json:"demand"`
	Sibling   DemandView `json:"sibling"`
	StopIndex int        `json:"stopIndex"`
}

// NetworkSummary describes the loaded road network.
type NetworkSummary struct {
	Dir           string `json:"dir"`
	Intersections int    `json:"intersections"`
	Segments      int    `json:"segments"`
	Region        string `json:"region,omitempty"`
}

// SessionSummary is the state of a session without its tour.
type SessionSummary struct {
	ID        string            `json:"id"`
	Phase     string            `json:"phase"`
	Version   uint64            `json:"version"`
	Network   NetworkSummary    `json:"network"`
	Depot     *IntersectionView `json:"depot,omitempty"`
	Start     *time.Time        `json:"start,omitempty"`
	Requests  int               `json:"requests"`
	HasTour   bool              `json:"hasTour"`
	CanUndo   bool              `json:"canUndo"`
	CanRedo   bool              `json:"canRedo"`
	Computing bool              `json:"computing"`
	Allowed   []string          `json:"allowed"`
	Selection *SelectionView    `json:"selection,omitempty"`
}

// ComputeResult reports a tour computation.
type ComputeResult struct {
	Tour            *TourView `json:"tour"`
	Passes          int       `json:"passes"`
	Accepted        int       `json:"accepted"`
	Cancelled       bool      `json:"cancelled"`
	BudgetExhausted bool      `json:"budgetExhausted"`
	InitialSeconds  float64   `json:"initialSeconds"`
	FinalSeconds    float64   `json:"finalSeconds"`
}

// EditResult reports an applied, undone or redone edit.
type EditResult struct {
	Edit    string    `json:"edit"`
	Version uint64    `json:"version"`
	CanUndo bool      `json:"canUndo"`
	CanRedo bool      `json:"canRedo"`
	Tour    *TourView `json:"tour,omitempty"`
}

// TourUsecase defines the operations on planning sessions.
type TourUsecase interface {
	CreateSession(ctx context.Context, input *CreateSessionInput) (*SessionSummary, error)
	GetSession(ctx context.Context, id string) (*SessionSummary, error)
	ListSessions(ctx context.Context) ([]*SessionSummary, error)
	DeleteSession(ctx context.Context, id string) error

	LoadNetwork(ctx context.Context, id string, input *LoadNetworkInput) (*SessionSummary, error)
	LoadRequests(ctx context.Context, id string, input *LoadRequestsInput) (*SessionSummary, error)
	ListRequests(ctx context.Context, id string) ([]*RequestView, error)
	GetTour(ctx context.Context, id string) (*TourView, error)
	GetLeg(ctx context.Context, id string, from, to int) (*LegView, error)

	Recompute(ctx context.Context, id string) (*ComputeResult, error)
	CancelComputation(ctx context.Context, id string) error

	BeginAddRequest(ctx context.Context, id string) (*SessionSummary, error)
	CancelAddRequest(ctx context.Context, id string) (*SessionSummary, error)
	AddRequest(ctx context.Context, id string, input *AddRequestInput) (*EditResult, error)
	RemoveRequest(ctx context.Context, id string, requestID int64) (*EditResult, error)
	RemoveDemand(ctx context.Context, id string, demandID int64) (*EditResult, error)
	SetServiceDuration(ctx context.Context, id string, demandID int64, input *ServiceDurationInput) (*EditResult, error)
	Reorder(ctx context.Context, id string, input *ReorderInput) (*EditResult, error)
	Undo(ctx context.Context, id string) (*EditResult, error)
	Redo(ctx context.Context, id string) (*EditResult, error)
	Select(ctx context.Context, id string, demandID int64) (*SessionSummary, error)

	// Subscribe streams the change events of a session until the returned
	// function is called or the session is deleted.
	Subscribe(ctx context.Context, id string) (<-chan *service.TourChangedEvent, func(), error)
}
