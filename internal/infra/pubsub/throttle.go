package pubsub

import (
	"context"

	"github.com/pkg/errors"
	"golang.org/x/time/rate"

	"tourplanner/internal/domain/service"
)

// throttledPublisher limits the publication rate of the wrapped publisher.
// Publish waits for a token and gives up when ctx is done.
type throttledPublisher struct {
	next    service.EventPublisher
	limiter *rate.Limiter
}

// Throttle wraps publisher so that at most perSecond events are sent per
// second, with bursts of up to burst events. A non-positive rate disables
// throttling.
func Throttle(publisher service.EventPublisher, perSecond float64, burst int) service.EventPublisher {
	if perSecond <= 0 {
		return publisher
	}
	if burst < 1 {
		burst = 1
	}

	return &throttledPublisher{next: publisher, limiter: rate.NewLimiter(rate.Limit(perSecond), burst)}
}

func (p *throttledPublisher) PublishTourChanged(ctx context.Context, event *service.TourChangedEvent) error {
	if err := p.limiter.Wait(ctx); err != nil {
		return errors.Wrap(err, "publish rate limit")
	}

	return p.next.PublishTourChanged(ctx, event)
}

func (p *throttledPublisher) Close() error {
	return p.next.Close()
}
