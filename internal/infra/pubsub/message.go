package pubsub

import (
	"encoding/json"
	"strconv"

	"github.com/pkg/errors"

	"tourplanner/internal/domain/constants"
	"tourplanner/internal/domain/service"
)

// encodeEvent serializes an event and builds the attributes used for
// filtering and tracing.
func encodeEvent(event *service.TourChangedEvent) ([]byte, map[string]string, error) {
	data, err := json.Marshal(event)
	if err != nil {
		return nil, nil, errors.WithStack(err)
	}

	attributes := map[string]string{
		constants.AttributeSessionID: event.SessionID,
		constants.AttributeVersion:   strconv.FormatUint(event.Version, 10),
		constants.AttributeAction:    event.Action,
	}
	if event.RequestID != "" {
		attributes[constants.AttributeRequestID] = event.RequestID
	}

	return data, attributes, nil
}

// messageID identifies one committed version of a session.
func messageID(event *service.TourChangedEvent) string {
	return event.SessionID + "-" + strconv.FormatUint(event.Version, 10)
}
