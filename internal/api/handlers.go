package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/docrouter/internal/model"
	"github.com/sells-group/docrouter/internal/report"
	"github.com/sells-group/docrouter/internal/router"
	"github.com/sells-group/docrouter/internal/store"
)

// RouteBody is the request body of the route endpoint. Every member is
// optional.
type RouteBody struct {
	Snapshot  *model.ExtractionSnapshot `json:"snapshot,omitempty"`
	Metadata  model.DocumentMetadata    `json:"metadata,omitempty"`
	ForceMode string                    `json:"force_mode,omitempty"`
}

// OutcomeList is the response of the outcome listing endpoint.
type OutcomeList struct {
	Outcomes []model.RoutingOutcome `json:"outcomes"`
	Count    int                    `json:"count"`
}

// Health is the response of the health endpoint.
type Health struct {
	Status   string            `json:"status"`
	Store    string            `json:"store,omitempty"`
	Breakers map[string]string `json:"breakers,omitempty"`
}

func (s *Server) handleRoute(w http.ResponseWriter, r *http.Request) {
	var body RouteBody
	if err := s.decode(w, r, &body); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	outcome, err := s.router.Route(r.Context(), router.RouteRequest{
		DocumentID: chi.URLParam(r, "documentID"),
		Snapshot:   body.Snapshot,
		Metadata:   body.Metadata,
		ForceMode:  body.ForceMode,
	})
	if err != nil {
		writeError(w, routeErrorStatus(err), err.Error())
		return
	}

	if s.store != nil {
		if err := s.store.SaveOutcome(r.Context(), outcome); err != nil {
			zap.L().Error("api: save outcome failed",
				zap.String("outcome_id", outcome.ID),
				zap.String("document_id", outcome.DocumentID),
				zap.Error(err),
			)
		}
	}

	writeJSON(w, http.StatusOK, outcome)
}

func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	var body RouteBody
	if err := s.decode(w, r, &body); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, s.router.Analyze(body.Snapshot, body.Metadata))
}

func (s *Server) handleStatistics(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.router.Statistics())
}

func (s *Server) handleListOutcomes(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		writeError(w, http.StatusNotImplemented, "outcome store not configured")
		return
	}

	filter, err := parseFilter(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	outcomes, err := s.store.ListOutcomes(r.Context(), filter)
	if err != nil {
		zap.L().Error("api: list outcomes failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "list outcomes failed")
		return
	}
	if outcomes == nil {
		outcomes = []model.RoutingOutcome{}
	}
	writeJSON(w, http.StatusOK, OutcomeList{Outcomes: outcomes, Count: len(outcomes)})
}

func (s *Server) handleGetOutcome(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		writeError(w, http.StatusNotImplemented, "outcome store not configured")
		return
	}

	id := chi.URLParam(r, "id")
	outcome, err := s.store.GetOutcome(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, fmt.Sprintf("outcome %s not found", id))
		return
	}
	if err != nil {
		zap.L().Error("api: get outcome failed", zap.String("outcome_id", id), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "get outcome failed")
		return
	}
	writeJSON(w, http.StatusOK, outcome)
}

func (s *Server) handleExportOutcomes(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		writeError(w, http.StatusNotImplemented, "outcome store not configured")
		return
	}

	filter, err := parseFilter(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	outcomes, err := store.ListAll(r.Context(), s.store, filter)
	if err != nil {
		zap.L().Error("api: export outcomes failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "export outcomes failed")
		return
	}

	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", `attachment; filename="outcomes.xlsx"`)
	if err := report.WriteXLSX(w, outcomes); err != nil {
		zap.L().Error("api: write xlsx failed", zap.Error(err))
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	h := Health{Status: "ok"}
	status := http.StatusOK

	if s.store != nil {
		h.Store = "ok"
		if err := s.store.Ping(r.Context()); err != nil {
			zap.L().Warn("api: store ping failed", zap.Error(err))
			h.Store = "unavailable"
			h.Status = "degraded"
			status = http.StatusServiceUnavailable
		}
	}
	if s.breakers != nil {
		h.Breakers = s.breakers.States()
	}

	writeJSON(w, status, h)
}

// decode reads an optional JSON body. An empty body leaves v untouched.
func (s *Server) decode(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, s.maxBody)
	err := json.NewDecoder(r.Body).Decode(v)
	if err == nil || errors.Is(err, io.EOF) {
		return nil
	}
	return eris.Wrap(err, "invalid request body")
}

func routeErrorStatus(err error) int {
	switch {
	case errors.Is(err, router.ErrMissingDocumentID), errors.Is(err, model.ErrInvalidProcessingMode):
		return http.StatusBadRequest
	case errors.Is(err, router.ErrModeUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusBadGateway
	}
}

func parseFilter(r *http.Request) (store.OutcomeFilter, error) {
	q := r.URL.Query()
	f := store.OutcomeFilter{DocumentID: q.Get("document_id")}

	if v := q.Get("mode"); v != "" {
		m, err := model.ParseProcessingMode(v)
		if err != nil {
			return f, err
		}
		f.Mode = m
	}
	if v := q.Get("fallback"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return f, eris.Errorf("invalid fallback %q", v)
		}
		f.FallbackOnly = b
	}
	if v := q.Get("since"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return f, eris.Errorf("invalid since %q: want RFC 3339", v)
		}
		f.Since = t
	}
	for name, dst := range map[string]*int{"limit": &f.Limit, "offset": &f.Offset} {
		if v := q.Get(name); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil || n < 0 {
				return f, eris.Errorf("invalid %s %q", name, v)
			}
			*dst = n
		}
	}
	return f, nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.L().Debug("api: encode response", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
