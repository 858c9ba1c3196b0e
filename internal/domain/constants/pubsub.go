package constants

// Pub/Sub providers selectable in configuration
const (
	PubSubProviderNoop   = "noop"
	PubSubProviderLocal  = "local"
	PubSubProviderGoogle = "google"
	PubSubProviderRedis  = "redis"
)

// Message attribute keys shared by every provider
const (
	AttributeSessionID = "session_id"
	AttributeVersion   = "version"
	AttributeAction    = "action"
	AttributeRequestID = "request_id"
)
