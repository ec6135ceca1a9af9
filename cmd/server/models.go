package main

import (
	"time"

	"github.com/liamcoop/marches/procedures"
	"github.com/liamcoop/marches/rules"
)

// API request and response models

// StatusRequest is the body of a one-off status computation.
// AsOf replaces the current date; it accepts the same formats as record
// dates and a value without an offset is read in the engine timezone.
type StatusRequest struct {
	Record rules.Record `json:"record"`
	AsOf   any          `json:"asOf,omitempty" example:"15/03/2024"`
}

// StatusResponse is the computed status of a record
type StatusResponse struct {
	Statut         rules.StatusLabel `json:"statut" example:"Publiée"`
	AsOf           time.Time         `json:"asOf" example:"2024-03-15T00:00:00+01:00"`
	EvaluationTime string            `json:"evaluationTime" example:"41µs"`
}

// RuleResultResponse is the outcome of one rule in an explanation
type RuleResultResponse struct {
	Rank       int               `json:"rank" example:"6"`
	Status     rules.StatusLabel `json:"status" example:"Publiée"`
	Expression string            `json:"expression"`
	Matched    bool              `json:"matched" example:"true"`
	Error      *string           `json:"error,omitempty"`
}

// ExplainResponse lists every rule outcome in priority order
type ExplainResponse struct {
	Statut         rules.StatusLabel    `json:"statut" example:"Publiée"`
	AsOf           time.Time            `json:"asOf"`
	Results        []RuleResultResponse `json:"results"`
	EvaluationTime string               `json:"evaluationTime" example:"180µs"`
}

// StatusesResponse lists the status labels in priority order
type StatusesResponse struct {
	Statuses []rules.StatusLabel `json:"statuses"`
}

// RulesResponse describes the status rule table
type RulesResponse struct {
	Rules []rules.RuleDescription `json:"rules"`
}

// ProcedureRequest is the body for creating or replacing a procedure
type ProcedureRequest struct {
	Data rules.Record `json:"data" binding:"required"`
}

// BulkImportRequest is the body of a bulk import
type BulkImportRequest struct {
	Procedures []rules.Record `json:"procedures" binding:"required"`
}

// BulkImportResponse reports how many procedures were imported
type BulkImportResponse struct {
	Imported int `json:"imported" example:"250"`
}

// ProceduresListResponse is a list of procedures with their statuses
type ProceduresListResponse struct {
	Procedures []*procedures.View `json:"procedures"`
	Count      int                `json:"count" example:"2"`
}

// ProcedureStatusResponse is the current status of a stored procedure
type ProcedureStatusResponse struct {
	ID     string            `json:"id" example:"8f14e45f-ceea-4e7a-9c1b-3f1e2d4a5b6c"`
	Statut rules.StatusLabel `json:"statut" example:"Analyse"`
	AsOf   time.Time         `json:"asOf"`
}

// SummaryResponse counts procedures per status
type SummaryResponse struct {
	Summary map[rules.StatusLabel]int `json:"summary"`
	Total   int                       `json:"total" example:"42"`
	AsOf    time.Time                 `json:"asOf"`
}

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error   string `json:"error" example:"invalid request body"`
	Details string `json:"details,omitempty"`
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status string `json:"status" example:"healthy"`
	Store  string `json:"store" example:"postgres"`
	Error  string `json:"error,omitempty"`
}
