package impl

import (
	"context"
	"log/slog"

	"github.com/pkg/errors"

	"tourplanner/internal/domain/entity"
	"tourplanner/internal/domain/service"
	"tourplanner/internal/session"
	"tourplanner/internal/usecase"
)

var errEventQueueFull = errors.New("event queue full")

// forward relays the change events of a session to the publish queue until
// the session is closed. Callers hold srv.mu.
func (srv *tourService) forward(entry *sessionEntry) {
	events, _ := entry.session.Subscribe()

	srv.forwarders.Add(1)
	go func() {
		defer srv.forwarders.Done()
		for event := range events {
			requestID := ""
			if id := entry.requestID.Load(); id != nil {
				requestID = *id
			}
			srv.enqueue(toEvent(entry.session.ID(), requestID, event))
		}
	}()
}

func (srv *tourService) enqueue(event *service.TourChangedEvent) {
	select {
	case srv.events <- event:
	default:
		srv.metrics.ObservePublish(errEventQueueFull)
		srv.logger.Warn("Dropping tour event",
			slog.String("session_id", event.SessionID),
			slog.Uint64("version", event.Version),
		)
	}
}

// publishLoop hands queued events to the publisher one at a time, which
// keeps the per-session order.
func (srv *tourService) publishLoop() {
	defer close(srv.done)

	for event := range srv.events {
		ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
		err := srv.publisher.PublishTourChanged(ctx, event)
		cancel()

		srv.metrics.ObservePublish(err)
		if err != nil {
			srv.logger.Warn("Failed to publish tour event",
				slog.String("session_id", event.SessionID),
				slog.Uint64("version", event.Version),
				slog.Any("error", err),
			)
		}
	}
}

// Subscribe streams the change events of a session.
func (srv *tourService) Subscribe(ctx context.Context, id string) (<-chan *service.TourChangedEvent, func(), error) {
	entry, err := srv.lookup(id)
	if err != nil {
		return nil, nil, err
	}

	events, unsubscribe := entry.session.Subscribe()
	out := make(chan *service.TourChangedEvent, cap(events))
	go func() {
		defer close(out)
		for event := range events {
			select {
			case out <- toEvent(id, "", event):
			case <-ctx.Done():
				unsubscribe()
			}
		}
	}()

	return out, unsubscribe, nil
}

func toEvent(sessionID, requestID string, event session.Event) *service.TourChangedEvent {
	out := &service.TourChangedEvent{
		RequestID:  requestID,
		SessionID:  sessionID,
		Version:    event.Version,
		Action:     string(event.Action),
		Phase:      string(event.Phase),
		OccurredAt: event.At,
	}
	if event.Tour == nil {
		return out
	}

	out.TotalSeconds = event.Tour.Total.Seconds()
	out.Feasible = event.Tour.Feasible
	out.Stops = make([]service.StopView, 0, len(event.Tour.Stops))
	for _, stop := range event.Tour.Stops {
		out.Stops = append(out.Stops, stopView(stop))
	}

	return out
}

func stopView(stop entity.Stop) service.StopView {
	view := service.StopView{
		Intersection: int64(stop.Intersection),
		Kind:         "depot",
		Arrival:      stop.Arrival,
		Departure:    stop.Departure,
	}
	if stop.Demand != nil {
		view.DemandID = int64(stop.Demand.ID)
		view.RequestID = int64(stop.Demand.RequestID)
		view.Kind = stop.Demand.Kind.String()
	}

	return view
}

var _ usecase.TourUsecase = (*tourService)(nil)
