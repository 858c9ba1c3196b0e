package service

import (
	"context"
	"time"
)

// StopView is the published form of a tour stop
type StopView struct {
	Intersection int64     `json:"intersection"`
	DemandID     int64     `json:"demand_id,omitempty"`
	RequestID    int64     `json:"request_id,omitempty"`
	Kind         string    `json:"kind"`
	Arrival      time.Time `json:"arrival"`
	Departure    time.Time `json:"departure"`
}

// TourChangedEvent is emitted after every committed change of a session
type TourChangedEvent struct {
	RequestID    string     `json:"request_id,omitempty"` // For distributed tracing
	SessionID    string     `json:"session_id"`
	Version      uint64     `json:"version"`
	Action       string     `json:"action"`
	Phase        string     `json:"phase"`
	TotalSeconds float64    `json:"total_seconds"`
	Feasible     bool       `json:"feasible"`
	Stops        []StopView `json:"stops,omitempty"`
	OccurredAt   time.Time  `json:"occurred_at"`
}

// EventPublisher defines the interface for publishing events to a message queue
type EventPublisher interface {
	// PublishTourChanged publishes a tour change for downstream consumers
	PublishTourChanged(ctx context.Context, event *TourChangedEvent) error

	// Close releases any resources held by the publisher
	Close() error
}
