// Package forklift implements the failure inspection side of the pipeline
// monitor: looking up and polling failure events, aggregating them per owner
// and marking them as remediated.
package forklift

import (
	"time"

	"github.com/bascanada/forklift-ops/pkg/search"
	"github.com/bascanada/forklift-ops/pkg/ty"
)

const (
	// StepError is the step value the pipeline writes on failure.
	StepError = "Error"

	// UnknownOwner keys hits that carry neither a role nor a queue.
	UnknownOwner = "unknown"

	fieldStep  = "step"
	fieldRole  = "role"
	fieldQueue = "queue"
	fieldTime  = "time"
	fieldID    = "_id"
)

// LogRecord is one failure event as stored by the pipeline.
type LogRecord struct {
	ID        string    `json:"id"`
	Index     string    `json:"index"`
	Timestamp time.Time `json:"timestamp"`
	Step      string    `json:"step"`
	Role      string    `json:"role,omitempty"`
	Queue     string    `json:"queue,omitempty"`
	Source    ty.MI     `json:"source"`
}

// Owner is the role when set, else the queue.
func (r LogRecord) Owner() string {
	return ownerOf(r.Source)
}

func ownerOf(source ty.MI) string {
	if role := source.GetString(fieldRole); role != "" {
		return role
	}
	if queue := source.GetString(fieldQueue); queue != "" {
		return queue
	}
	return UnknownOwner
}

func recordFromHit(h search.Hit) LogRecord {
	source := h.Source
	if source == nil {
		source = ty.MI{}
	}

	return LogRecord{
		ID:        h.Id,
		Index:     h.Index,
		Timestamp: parseTime(source[fieldTime]),
		Step:      source.GetString(fieldStep),
		Role:      source.GetString(fieldRole),
		Queue:     source.GetString(fieldQueue),
		Source:    source,
	}
}

// parseTime accepts RFC3339 strings and epoch milliseconds.
func parseTime(v interface{}) time.Time {
	switch value := v.(type) {
	case string:
		if t, err := time.Parse(time.RFC3339Nano, value); err == nil {
			return t
		}
		if t, err := time.Parse("2006-01-02T15:04:05.000-0700", value); err == nil {
			return t
		}
	case float64:
		return time.UnixMilli(int64(value)).UTC()
	}
	return time.Time{}
}
