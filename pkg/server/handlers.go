package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/bascanada/forklift-ops/pkg/dispatch"
	"github.com/bascanada/forklift-ops/pkg/forklift"
)

type HealthResponse struct {
	Status string `json:"status"`
	Search bool   `json:"search"`
}

// Response for /poll/{service}
type LogsResponse struct {
	Logs []forklift.LogRecord `json:"logs"`
	Meta QueryMetadata        `json:"meta"`
}

type QueryMetadata struct {
	QueryTime   string `json:"queryTime"`
	ResultCount int    `json:"resultCount"`
	Service     string `json:"service"`
	Role        string `json:"role,omitempty"`
}

// StatsResponse carries both families; Errors lists the sides that failed.
type StatsResponse struct {
	forklift.Stats
	Errors []string `json:"errors,omitempty"`
}

type StepRequest struct {
	Step string `json:"step"`
}

type AcceptedResponse struct {
	Status string `json:"status"`
}

var accepted = AcceptedResponse{Status: "accepted"}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, HealthResponse{
		Status: "ok",
		Search: s.monitor.Ping(r.Context()),
	})
}

func (s *Server) getLogHandler(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	strict, err := boolParam(r.URL.Query(), "strict")
	if err != nil {
		s.writeError(w, http.StatusBadRequest, ErrCodeValidationError, err.Error())
		return
	}

	if !strict {
		record, ok := s.monitor.Get(r.Context(), id)
		if !ok {
			s.writeError(w, http.StatusNotFound, ErrCodeNotFound, "log record not found")
			return
		}
		s.writeJSON(w, http.StatusOK, record)
		return
	}

	record, err := s.monitor.Lookup(r.Context(), id)
	switch {
	case errors.Is(err, forklift.ErrNotFound):
		s.writeError(w, http.StatusNotFound, ErrCodeNotFound, "log record not found")
	case err != nil:
		s.logger.Error("lookup failed", "id", id, "err", err)
		s.writeError(w, http.StatusBadGateway, ErrCodeBackendError, "Failed to query the search backend")
	default:
		s.writeJSON(w, http.StatusOK, record)
	}
}

func (s *Server) pollHandler(w http.ResponseWriter, r *http.Request) {
	service := r.PathValue("service")

	role, size, err := pollParams(r.URL.Query())
	if err != nil {
		s.writeError(w, http.StatusBadRequest, ErrCodeValidationError, err.Error())
		return
	}

	startTime := time.Now()

	records, err := s.monitor.Poll(r.Context(), service, role, size)
	if err != nil {
		if errors.Is(err, forklift.ErrInvalidService) {
			s.writeError(w, http.StatusBadRequest, ErrCodeValidationError, err.Error())
			return
		}
		s.writeError(w, http.StatusBadGateway, ErrCodeBackendError, "Failed to poll the search backend")
		return
	}
	if records == nil {
		records = []forklift.LogRecord{}
	}

	s.writeJSON(w, http.StatusOK, LogsResponse{
		Logs: records,
		Meta: QueryMetadata{
			QueryTime:   time.Since(startTime).String(),
			ResultCount: len(records),
			Service:     service,
			Role:        role.OrElse(""),
		},
	})
}

func (s *Server) statsHandler(w http.ResponseWriter, r *http.Request) {
	stats, err := s.monitor.Stats(r.Context())

	resp := StatsResponse{Stats: stats}
	if err != nil {
		resp.Errors = splitJoined(err)
		if stats.Retry == nil && stats.Replay == nil {
			s.writeErrorDetails(w, http.StatusBadGateway, ErrCodeBackendError, "Failed to compute stats",
				map[string]interface{}{"errors": resp.Errors})
			return
		}
	}

	s.writeJSON(w, http.StatusOK, resp)
}

func (s *Server) updateStepHandler(w http.ResponseWriter, r *http.Request) {
	index, id := r.PathValue("index"), r.PathValue("id")

	var req StepRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, ErrCodeInvalidBody, "Invalid request body")
		return
	}
	if err := validateStep(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, ErrCodeValidationError, err.Error())
		return
	}

	s.monitor.Update(r.Context(), index, id, req.Step)

	s.eventBroker.Broadcast(Event{
		Type: EventRecordUpdated,
		Data: map[string]interface{}{"index": index, "id": id, "step": req.Step},
	})
	s.writeJSON(w, http.StatusAccepted, accepted)
}

func (s *Server) dispatchHandler(w http.ResponseWriter, r *http.Request) {
	kind, err := dispatch.ParseKind(r.PathValue("sink"))
	if err != nil {
		s.writeError(w, http.StatusBadRequest, ErrCodeUnknownSink, err.Error())
		return
	}

	var msg dispatch.Message
	if err := json.NewDecoder(r.Body).Decode(&msg); err != nil {
		s.writeError(w, http.StatusBadRequest, ErrCodeInvalidBody, "Invalid request body")
		return
	}
	if err := validateMessage(&msg); err != nil {
		s.writeError(w, http.StatusBadRequest, ErrCodeValidationError, err.Error())
		return
	}

	if err := s.dispatcher.Submit(r.Context(), kind, msg); err != nil {
		code := ErrCodeValidationError
		if errors.Is(err, dispatch.ErrUnknownSink) {
			code = ErrCodeUnknownSink
		}
		s.writeError(w, http.StatusBadRequest, code, err.Error())
		return
	}

	s.eventBroker.Broadcast(Event{
		Type: EventMessageDispatched,
		Data: map[string]interface{}{
			"sink":          string(kind),
			"destination":   msg.Destination,
			"correlationId": msg.Correlation(),
		},
	})
	s.writeJSON(w, http.StatusAccepted, accepted)
}

func (s *Server) openapiHandler(w http.ResponseWriter, _ *http.Request) {
	if len(s.openapiSpec) == 0 {
		s.writeError(w, http.StatusNotFound, ErrCodeNotFound, "OpenAPI document not available")
		return
	}
	w.Header().Set("Content-Type", "application/yaml")
	_, _ = w.Write(s.openapiSpec)
}

// splitJoined unwraps an errors.Join result into one message per cause.
func splitJoined(err error) []string {
	var joined interface{ Unwrap() []error }
	if errors.As(err, &joined) {
		msgs := []string{}
		for _, e := range joined.Unwrap() {
			msgs = append(msgs, e.Error())
		}
		return msgs
	}
	return []string{err.Error()}
}
