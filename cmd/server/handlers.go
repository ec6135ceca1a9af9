package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/liamcoop/marches/internal/logger"
	"github.com/liamcoop/marches/procedures"
	"github.com/liamcoop/marches/rules"
)

// Health check handler
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.db == nil {
		respondJSON(w, http.StatusOK, HealthResponse{Status: "healthy", Store: "memory"})
		return
	}

	if err := s.db.PingContext(r.Context()); err != nil {
		respondJSON(w, http.StatusServiceUnavailable, HealthResponse{
			Status: "unhealthy",
			Store:  "postgres",
			Error:  err.Error(),
		})
		return
	}

	respondJSON(w, http.StatusOK, HealthResponse{Status: "healthy", Store: "postgres"})
}

func (s *Server) handleListStatuses(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, StatusesResponse{Statuses: rules.Statuses()})
}

func (s *Server) handleListRules(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, RulesResponse{Rules: s.service.Engine().Rules()})
}

// Status computation handler, for records that are not stored
func (s *Server) handleComputeStatus(w http.ResponseWriter, r *http.Request) {
	req, now, ok := s.decodeStatusRequest(w, r)
	if !ok {
		return
	}

	start := time.Now()
	status := s.service.Engine().ComputeStatus(req.Record, now)

	respondJSON(w, http.StatusOK, StatusResponse{
		Statut:         status,
		AsOf:           now,
		EvaluationTime: time.Since(start).String(),
	})
}

// Explain handler: evaluates every rule, not only up to the first match
func (s *Server) handleExplainStatus(w http.ResponseWriter, r *http.Request) {
	req, now, ok := s.decodeStatusRequest(w, r)
	if !ok {
		return
	}

	start := time.Now()
	results := s.service.Engine().EvaluateAll(req.Record, now)
	evaluationTime := time.Since(start)

	response := ExplainResponse{
		Statut:         rules.FirstMatch(results),
		AsOf:           now,
		Results:        make([]RuleResultResponse, 0, len(results)),
		EvaluationTime: evaluationTime.String(),
	}
	for _, res := range results {
		rr := RuleResultResponse{
			Rank:       res.Rank,
			Status:     res.Status,
			Expression: res.Expression,
			Matched:    res.Matched,
		}
		if res.Error != nil {
			msg := res.Error.Error()
			rr.Error = &msg
			logger.Warn("Status rule evaluation failed", "rank", res.Rank, "status", res.Status, "error", res.Error)
		}
		response.Results = append(response.Results, rr)
	}

	respondJSON(w, http.StatusOK, response)
}

func (s *Server) decodeStatusRequest(w http.ResponseWriter, r *http.Request) (StatusRequest, time.Time, bool) {
	var req StatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err)
		return req, time.Time{}, false
	}

	if req.Record == nil {
		respondError(w, http.StatusBadRequest, "record is required", nil)
		return req, time.Time{}, false
	}

	now := s.service.Now()
	if req.AsOf != nil {
		asOf, err := s.parseAsOf(req.AsOf)
		if err != nil {
			respondError(w, http.StatusBadRequest, "invalid asOf", err)
			return req, time.Time{}, false
		}
		now = asOf
	}

	return req, now, true
}

// parseAsOf reads an evaluation date. Dates parse as UTC when they carry no
// offset; their wall clock is then placed in the engine timezone.
func (s *Server) parseAsOf(value any) (time.Time, error) {
	t, ok := rules.ParseDate(value)
	if !ok {
		return time.Time{}, fmt.Errorf("%v is not a recognised date", value)
	}
	if t.Location() == time.UTC {
		t = time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), s.location)
	}
	return t, nil
}

// List procedures handler, with optional ?q= search
func (s *Server) handleListProcedures(w http.ResponseWriter, r *http.Request) {
	views, err := s.service.Search(r.Context(), r.URL.Query().Get("q"))
	if err != nil {
		respondServiceError(w, "failed to list procedures", err)
		return
	}

	if views == nil {
		views = []*procedures.View{}
	}
	respondJSON(w, http.StatusOK, ProceduresListResponse{
		Procedures: views,
		Count:      len(views),
	})
}

func (s *Server) handleCreateProcedure(w http.ResponseWriter, r *http.Request) {
	var req ProcedureRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}

	view, err := s.service.Create(r.Context(), req.Data)
	if err != nil {
		respondServiceError(w, "failed to create procedure", err)
		return
	}

	respondJSON(w, http.StatusCreated, view)
}

func (s *Server) handleBulkImport(w http.ResponseWriter, r *http.Request) {
	var req BulkImportRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}

	n, err := s.service.BulkImport(r.Context(), req.Procedures)
	if err != nil {
		respondServiceError(w, "failed to import procedures", err)
		return
	}

	logger.Info("Procedures imported", "count", n)
	respondJSON(w, http.StatusCreated, BulkImportResponse{Imported: n})
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	now := s.service.Now()
	summary, err := s.service.SummaryAt(r.Context(), now)
	if err != nil {
		respondServiceError(w, "failed to summarise procedures", err)
		return
	}

	total := 0
	for _, n := range summary {
		total += n
	}
	respondJSON(w, http.StatusOK, SummaryResponse{
		Summary: summary,
		Total:   total,
		AsOf:    now,
	})
}

func (s *Server) handleGetProcedure(w http.ResponseWriter, r *http.Request) {
	view, err := s.service.Get(r.Context(), chi.URLParam(r, "procedureId"))
	if err != nil {
		respondServiceError(w, "failed to get procedure", err)
		return
	}

	respondJSON(w, http.StatusOK, view)
}

func (s *Server) handleUpdateProcedure(w http.ResponseWriter, r *http.Request) {
	var req ProcedureRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}

	view, err := s.service.Update(r.Context(), chi.URLParam(r, "procedureId"), req.Data)
	if err != nil {
		respondServiceError(w, "failed to update procedure", err)
		return
	}

	respondJSON(w, http.StatusOK, view)
}

func (s *Server) handleDeleteProcedure(w http.ResponseWriter, r *http.Request) {
	if err := s.service.Delete(r.Context(), chi.URLParam(r, "procedureId")); err != nil {
		respondServiceError(w, "failed to delete procedure", err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleProcedureStatus(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "procedureId")
	now := s.service.Now()

	view, err := s.service.GetAt(r.Context(), id, now)
	if err != nil {
		respondServiceError(w, "failed to compute procedure status", err)
		return
	}

	respondJSON(w, http.StatusOK, ProcedureStatusResponse{
		ID:     view.ID,
		Statut: view.Statut,
		AsOf:   now,
	})
}

// Helper functions
func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string, err error) {
	response := ErrorResponse{Error: message}
	if err != nil {
		response.Details = err.Error()
	}
	respondJSON(w, status, response)
}

// respondServiceError maps service sentinels to HTTP status codes
func respondServiceError(w http.ResponseWriter, message string, err error) {
	switch {
	case errors.Is(err, procedures.ErrInvalidRecord):
		respondError(w, http.StatusBadRequest, message, err)
	case errors.Is(err, procedures.ErrNotFound):
		respondError(w, http.StatusNotFound, message, err)
	case errors.Is(err, procedures.ErrAlreadyExists):
		respondError(w, http.StatusConflict, message, err)
	default:
		logger.Error(message, "error", err)
		respondError(w, http.StatusInternalServerError, message, err)
	}
}
