package loader

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"tourplanner/internal/domain/entity"
)

const (
	clockLayout = "15:04"
	dateLayout  = "2006-01-02"
)

// Duration accepts either a Go duration string ("5m30s") or a plain number
// of seconds.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind != yaml.ScalarNode {
		return errors.Errorf("line %d: duration must be a scalar", value.Line)
	}
	raw := strings.TrimSpace(value.Value)
	if seconds, err := strconv.ParseFloat(raw, 64); err == nil {
		*d = Duration(time.Duration(seconds * float64(time.Second)))

		return nil
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return errors.Wrapf(err, "line %d: invalid duration %q", value.Line, raw)
	}
	*d = Duration(parsed)

	return nil
}

// RequestsFile is the on-disk request description.
type RequestsFile struct {
	Depot     entity.IntersectionID `yaml:"depot"`
	StartTime string                `yaml:"startTime"`
	Date      string                `yaml:"date,omitempty"`
	Requests  []RequestEntry        `yaml:"requests"`
}

// RequestEntry is a single pickup/delivery pair.
type RequestEntry struct {
	Pickup           entity.IntersectionID `yaml:"pickup"`
	Delivery         entity.IntersectionID `yaml:"delivery"`
	PickupDuration   Duration              `yaml:"pickupDuration"`
	DeliveryDuration Duration              `yaml:"deliveryDuration"`
	Deadline         string                `yaml:"deadline,omitempty"`
}

// RequestPlan is a request description resolved against a calendar day.
type RequestPlan struct {
	Depot    entity.IntersectionID
	Start    time.Time
	Requests []entity.NewRequest
}

// LoadRequests reads a request description. Clock times without a date are
// placed on the day of now.
func LoadRequests(path string, now time.Time) (*RequestPlan, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read request description")
	}

	return ParseRequests(data, now)
}

// ParseRequests decodes a YAML request description.
func ParseRequests(data []byte, now time.Time) (*RequestPlan, error) {
	var file RequestsFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, errors.Wrap(err, "failed to parse request description")
	}

	day := now
	if file.Date != "" {
		parsed, err := time.ParseInLocation(dateLayout, file.Date, now.Location())
		if err != nil {
			return nil, errors.Wrapf(err, "invalid date %q", file.Date)
		}
		day = parsed
	}

	if file.StartTime == "" {
		return nil, errors.New("startTime is required")
	}
	start, err := resolveTime(file.StartTime, day)
	if err != nil {
		return nil, errors.Wrap(err, "invalid startTime")
	}

	plan := &RequestPlan{
		Depot:    file.Depot,
		Start:    start,
		Requests: make([]entity.NewRequest, 0, len(file.Requests)),
	}
	for idx, entry := range file.Requests {
		req := entity.NewRequest{
			Pickup:           entry.Pickup,
			Delivery:         entry.Delivery,
			PickupDuration:   time.Duration(entry.PickupDuration),
			DeliveryDuration: time.Duration(entry.DeliveryDuration),
		}
		if req.PickupDuration < 0 || req.DeliveryDuration < 0 {
			return nil, errors.Errorf("request %d: negative service duration", idx+1)
		}
		if entry.Deadline != "" {
			deadline, err := resolveTime(entry.Deadline, start)
			if err != nil {
				return nil, errors.Wrapf(err, "request %d: invalid deadline", idx+1)
			}
			req.Deadline = &deadline
		}
		plan.Requests = append(plan.Requests, req)
	}

	return plan, nil
}

// resolveTime accepts "HH:MM" on the day of ref, or a full RFC 3339 value.
func resolveTime(value string, ref time.Time) (time.Time, error) {
	value = strings.TrimSpace(value)
	if clock, err := time.Parse(clockLayout, value); err == nil {
		year, month, day := ref.Date()

		return time.Date(year, month, day, clock.Hour(), clock.Minute(), 0, 0, ref.Location()), nil
	}

	parsed, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return time.Time{}, errors.Errorf("expected HH:MM or RFC 3339, got %q", value)
	}

	return parsed, nil
}
