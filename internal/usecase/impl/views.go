package impl

import (
	"slices"

	"tourplanner/internal/domain/entity"
	"tourplanner/internal/infra/routing/network"
	"tourplanner/internal/usecase"
	"tourplanner/internal/util"
)

func intersectionView(roads *network.Network, id entity.IntersectionID) usecase.IntersectionView {
	view := usecase.IntersectionView{ID: int64(id), Name: roads.IntersectionName(id)}
	if intersection, ok := roads.Intersection(id); ok {
		view.Lat = intersection.Lat
		view.Lng = intersection.Lng
	}

	return view
}

func demandView(roads *network.Network, d entity.Demand) usecase.DemandView {
	return usecase.DemandView{
		ID:             int64(d.ID),
		RequestID:      int64(d.RequestID),
		Kind:           d.Kind.String(),
		Intersection:   intersectionView(roads, d.Intersection),
		ServiceSeconds: d.Service.Seconds(),
	}
}

func requestView(roads *network.Network, r *entity.Request) *usecase.RequestView {
	view := &usecase.RequestView{
		ID:       int64(r.ID),
		Pickup:   demandView(roads, r.Pickup),
		Delivery: demandView(roads, r.Delivery),
	}
	if r.Deadline != nil {
		deadline := *r.Deadline
		view.Deadline = &deadline
	}

	return view
}

func tourView(roads *network.Network, sessionID string, version uint64, tour *entity.Tour) *usecase.TourView {
	view := &usecase.TourView{
		SessionID:    sessionID,
		Version:      version,
		Depot:        int64(tour.Depot),
		Start:        tour.Start,
		End:          tour.End(),
		TotalSeconds: tour.Total.Seconds(),
		Total:        util.FormatDuration(tour.Total),
		Feasible:     tour.Feasible,
		Stops:        make([]usecase.StopView, 0, len(tour.Stops)),
	}
	for _, id := range tour.Late {
		view.Late = append(view.Late, int64(id))
	}

	for idx, stop := range tour.Stops {
		sv := usecase.StopView{
			Position:     idx,
			Intersection: intersectionView(roads, stop.Intersection),
			Arrival:      stop.Arrival,
			Departure:    stop.Departure,
		}
		if stop.Demand != nil {
			demand := demandView(roads, *stop.Demand)
			sv.Demand = &demand
			sv.Late = !stop.Demand.IsPickup() && slices.Contains(tour.Late, stop.Demand.RequestID)
		}
		view.Stops = append(view.Stops, sv)
	}

	return view
}

func legView(from, to int, path entity.Path) *usecase.LegView {
	view := &usecase.LegView{
		From:          from,
		To:            to,
		Seconds:       path.Duration.Seconds(),
		LengthM:       path.Length,
		Streets:       path.Streets(),
		Intersections: make([]int64, 0, len(path.Intersections)),
	}
	for _, id := range path.Intersections {
		view.Intersections = append(view.Intersections, int64(id))
	}

	return view
}
