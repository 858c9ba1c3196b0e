// Package lifecycle holds constants shared by start and stop hooks.
package lifecycle

import "time"

// DefaultTimeout bounds graceful shutdown of servers and publishers.
const DefaultTimeout = 10 * time.Second
