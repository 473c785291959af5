package api

import (
	"github.com/starford/jdt/internal/exceptions"
	"github.com/starford/jdt/internal/index"
	"github.com/starford/jdt/internal/journalservice"
	"github.com/starford/jdt/internal/models"
)

// Report is the render context returned by GET /report (aliased from the domain layer).
type Report = journalservice.Report

// SubmitRequest is the JSON body of POST /exceptions.
type SubmitRequest = exceptions.Submission

// UpdateRequest is the JSON body of PUT /exceptions/{id}.
type UpdateRequest = exceptions.Fields

// ExceptionListResponse wraps the stored exception records.
type ExceptionListResponse struct {
	Exceptions []models.ExceptionRecord `json:"exceptions" validate:"required"`
	Version    string                   `json:"version" example:"9f86d081884c7d65..." validate:"required"`
}

// SearchResponse wraps search results.
type SearchResponse struct {
	Results []index.SearchResult `json:"results" validate:"required"`
}
