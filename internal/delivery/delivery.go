// Package delivery contains the inbound adapters of the service.
package delivery

import "context"

// Delivery is a server started by the application, such as the HTTP API.
type Delivery interface {
	Serve(ctx context.Context) error
}
