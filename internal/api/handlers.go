package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"mime"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/starford/jdt/internal/apperr"
	"github.com/starford/jdt/internal/exceptions"
	"github.com/starford/jdt/internal/github"
	"github.com/starford/jdt/internal/journalservice"
)

const maxBodyBytes = 1 << 20

// Handler holds API route handlers.
type Handler struct {
	svc *journalservice.Service
}

// NewHandler creates a new Handler.
func NewHandler(svc *journalservice.Service) *Handler {
	return &Handler{svc: svc}
}

// writeError maps domain errors to HTTP statuses.
func writeError(w http.ResponseWriter, op string, err error) {
	var fe *github.FetchError
	switch {
	case errors.Is(err, apperr.ErrInvalid):
		writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
	case errors.Is(err, apperr.ErrNotFound):
		writeJSON(w, http.StatusNotFound, errorBody(err.Error()))
	case errors.Is(err, apperr.ErrConflict):
		writeJSON(w, http.StatusConflict, errorBody("exceptions changed since they were read"))
	case errors.As(err, &fe):
		slog.Warn(op+" failed upstream", slog.Int("status", fe.StatusCode), slog.String("error", err.Error()))
		writeJSON(w, http.StatusBadGateway, errorBody(err.Error()))
	default:
		slog.Error(op+" failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
	}
}

// ifMatch returns the If-Match header without ETag quotes.
func ifMatch(r *http.Request) string {
	return strings.Trim(r.Header.Get("If-Match"), `"`)
}

// Report handles GET /api/report.
//
//	@Summary		Build the work journal of a repository
//	@Tags			report
//	@Produce		json
//	@Param			repo	query		string	false	"Repository URL"
//	@Param			branch	query		string	false	"Branch"
//	@Param			since	query		string	false	"Lower bound date"
//	@Param			strict	query		bool	false	"Fail on unknown branch"
//	@Success		200		{object}	Report
//	@Failure		400		{object}	errResponse
//	@Failure		502		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/report [get]
func (h *Handler) Report(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	strict, _ := strconv.ParseBool(q.Get("strict"))
	rep, err := h.svc.Report(r.Context(), journalservice.Query{
		RepoURL:      q.Get("repo"),
		Branch:       q.Get("branch"),
		Since:        q.Get("since"),
		StrictBranch: strict,
	})
	if err != nil {
		writeError(w, "report", err)
		return
	}
	writeJSON(w, http.StatusOK, rep)
}

// ListExceptions handles GET /api/exceptions.
//
//	@Summary		List stored exceptions
//	@Tags			exceptions
//	@Produce		json
//	@Success		200	{object}	ExceptionListResponse
//	@Security		BearerAuth
//	@Router			/exceptions [get]
func (h *Handler) ListExceptions(w http.ResponseWriter, r *http.Request) {
	records, version, err := h.svc.Exceptions(r.Context())
	if err != nil {
		writeError(w, "list exceptions", err)
		return
	}
	w.Header().Set("ETag", strconv.Quote(version))
	writeJSON(w, http.StatusOK, ExceptionListResponse{Exceptions: records, Version: version})
}

// SubmitException handles POST /api/exceptions. The body is either a JSON
// submission or the urlencoded form of the journal page.
//
//	@Summary		Create a commitless entry, patch a commit or edit an exception
//	@Tags			exceptions
//	@Accept			json
//	@Accept			x-www-form-urlencoded
//	@Produce		json
//	@Param			body	body		SubmitRequest	true	"Submission"
//	@Success		201		{object}	models.ExceptionRecord
//	@Success		200		{object}	models.ExceptionRecord
//	@Failure		400		{object}	errResponse
//	@Failure		404		{object}	errResponse
//	@Failure		409		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/exceptions [post]
func (h *Handler) SubmitException(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)

	var sub exceptions.Submission
	if isForm(r) {
		if err := r.ParseForm(); err != nil {
			writeJSON(w, http.StatusBadRequest, errorBody("invalid form body"))
			return
		}
		sub = exceptions.DecodeLegacyForm(r.PostForm)
	} else if err := json.NewDecoder(r.Body).Decode(&sub); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}
	sub.IfMatch = ifMatch(r)

	rec, created, err := h.svc.Submit(r.Context(), sub)
	if err != nil {
		writeError(w, "submit exception", err)
		return
	}
	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	writeJSON(w, status, rec)
}

// UpdateException handles PUT /api/exceptions/{id}.
//
//	@Summary		Edit an exception with optimistic concurrency
//	@Tags			exceptions
//	@Accept			json
//	@Produce		json
//	@Param			id			path		string			true	"Exception id"
//	@Param			If-Match	header		string			false	"Store version the edit is based on"
//	@Param			body		body		UpdateRequest	true	"New field values"
//	@Success		200			{object}	models.ExceptionRecord
//	@Failure		400			{object}	errResponse
//	@Failure		404			{object}	errResponse
//	@Failure		409			{object}	errResponse
//	@Security		BearerAuth
//	@Router			/exceptions/{id} [put]
func (h *Handler) UpdateException(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)

	var fields exceptions.Fields
	if err := json.NewDecoder(r.Body).Decode(&fields); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}

	rec, _, err := h.svc.Submit(r.Context(), exceptions.Submission{
		Kind:    exceptions.SubmitEdit,
		ID:      chi.URLParam(r, "id"),
		IfMatch: ifMatch(r),
		Fields:  fields,
	})
	if err != nil {
		writeError(w, "update exception", err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

// Search handles GET /api/search.
//
//	@Summary		Full-text search across indexed journal entries
//	@Tags			search
//	@Produce		json
//	@Param			q		query		string	true	"Search query"
//	@Param			limit	query		int		false	"Max results"
//	@Success		200		{object}	SearchResponse
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/search [get]
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	if q == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("query parameter 'q' is required"))
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	results, err := h.svc.Search(r.Context(), q, limit)
	if err != nil {
		writeError(w, "search", err)
		return
	}
	writeJSON(w, http.StatusOK, SearchResponse{Results: results})
}

func isForm(r *http.Request) bool {
	mt, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if err != nil {
		return false
	}
	return mt == "application/x-www-form-urlencoded"
}
