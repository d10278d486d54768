package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"sort"
	"time"

	"github.com/go-chi/chi/v5/middleware"

	"articleforge/internal/core"
	"articleforge/internal/logger"
)

type envelope struct {
	Success    bool            `json:"success"`
	Message    string          `json:"message"`
	Data       any             `json:"data"`
	Pagination *paginationBody `json:"pagination,omitempty"`
	Timestamp  string          `json:"timestamp"`
}

type paginationBody struct {
	CurrentPage  int  `json:"currentPage"`
	TotalPages   int  `json:"totalPages"`
	TotalItems   int  `json:"totalItems"`
	ItemsPerPage int  `json:"itemsPerPage"`
	HasNextPage  bool `json:"hasNextPage"`
	HasPrevPage  bool `json:"hasPrevPage"`
}

type errorEnvelope struct {
	Success   bool         `json:"success"`
	Message   string       `json:"message"`
	Code      string       `json:"code"`
	Errors    []fieldError `json:"errors,omitempty"`
	Timestamp string       `json:"timestamp"`
}

type fieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// apiError is an error with an HTTP status and a machine readable code
type apiError struct {
	status  int
	code    string
	message string
}

func (e *apiError) Error() string { return e.message }

func badRequest(message string) *apiError {
	return &apiError{status: http.StatusBadRequest, code: "BAD_REQUEST", message: message}
}

func timestamp() string {
	return time.Now().UTC().Format(time.RFC3339Nano)
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		logger.Error("Failed to encode JSON response", err)
	}
}

func respondSuccess(w http.ResponseWriter, status int, message string, data any) {
	respondJSON(w, status, envelope{Success: true, Message: message, Data: data, Timestamp: timestamp()})
}

func respondPaginated(w http.ResponseWriter, message string, data any, p core.Pagination) {
	respondJSON(w, http.StatusOK, envelope{
		Success: true,
		Message: message,
		Data:    data,
		Pagination: &paginationBody{
			CurrentPage:  p.Page,
			TotalPages:   p.TotalPages,
			TotalItems:   p.TotalItems,
			ItemsPerPage: p.Limit,
			HasNextPage:  p.Page < p.TotalPages,
			HasPrevPage:  p.Page > 1,
		},
		Timestamp: timestamp(),
	})
}

// respondError maps store errors onto HTTP statuses
func respondError(w http.ResponseWriter, r *http.Request, err error) {
	body := errorEnvelope{Timestamp: timestamp()}
	status := http.StatusInternalServerError

	var (
		apiErr *apiError
		valErr *core.ValidationError
	)
	switch {
	case errors.As(err, &apiErr):
		status, body.Code, body.Message = apiErr.status, apiErr.code, apiErr.message
	case errors.As(err, &valErr):
		status, body.Code, body.Message = http.StatusUnprocessableEntity, "VALIDATION_ERROR", "Validation failed"
		body.Errors = fieldErrors(valErr)
	case errors.Is(err, core.ErrInvalidID):
		status, body.Code, body.Message = http.StatusBadRequest, "INVALID_ID", err.Error()
	case errors.Is(err, core.ErrNotFound):
		status, body.Code, body.Message = http.StatusNotFound, "NOT_FOUND", "Article not found"
	case errors.Is(err, core.ErrConflict):
		status, body.Code, body.Message = http.StatusConflict, "DUPLICATE_KEY", err.Error()
	default:
		body.Code, body.Message = "INTERNAL_SERVER_ERROR", "Internal server error"
		logger.Error("Request failed", err, "path", r.URL.Path, "request_id", middleware.GetReqID(r.Context()))
	}

	respondJSON(w, status, body)
}

func fieldErrors(e *core.ValidationError) []fieldError {
	out := make([]fieldError, 0, len(e.Fields))
	for field, msg := range e.Fields {
		out = append(out, fieldError{Field: field, Message: msg})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Field < out[j].Field })
	return out
}
