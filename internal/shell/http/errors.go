package http

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"

	"insights-export/internal/core/domain"
)

// ErrorObject represents a simplified JSON:API error object
type ErrorObject struct {
	Status string `json:"status"`
	Title  string `json:"title"`
	Detail string `json:"detail"`
}

// ErrorResponse is the top-level JSON:API error response
type ErrorResponse struct {
	Errors []ErrorObject `json:"errors"`
}

// respondWithErrors sends JSON:API errors
func respondWithErrors(w http.ResponseWriter, statusCode int, errs []ErrorObject) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	for i := range errs {
		if errs[i].Status == "" {
			errs[i].Status = strconv.Itoa(statusCode)
		}
	}

	if err := json.NewEncoder(w).Encode(ErrorResponse{Errors: errs}); err != nil {
		log.Printf("[DEBUG] HTTP - failed to encode error response: %v", err)
	}
}

// respondWithServiceError maps an export service error onto a status code.
// Failure kinds are reported with their caller-facing message only.
func respondWithServiceError(w http.ResponseWriter, id string, err error) {
	switch {
	case errors.Is(err, domain.ErrJobNotFound), errors.Is(err, domain.ErrRunNotFound):
		respondWithErrors(w, http.StatusNotFound, []ErrorObject{errorNotFound("export", id)})
	case errors.Is(err, domain.ErrInvalidFormat),
		errors.Is(err, domain.ErrInvalidChunkSize),
		errors.Is(err, domain.ErrInvalidRowCap),
		errors.Is(err, domain.ErrInvalidQuery),
		errors.Is(err, domain.ErrInvalidOrgID),
		errors.Is(err, domain.ErrUnknownSource):
		respondWithErrors(w, http.StatusBadRequest, []ErrorObject{errorBadRequest(err)})
	case errors.Is(err, domain.ErrJobIncomplete):
		respondWithErrors(w, http.StatusConflict, []ErrorObject{errorConflict("Export Incomplete", "The export still has rows to process")})
	case errors.Is(err, domain.ErrJobAlreadyFinal):
		respondWithErrors(w, http.StatusConflict, []ErrorObject{errorConflict("Export Finalized", "The export has already been finalized")})
	case errors.Is(err, domain.ErrLockNotAcquirable):
		respondWithErrors(w, http.StatusConflict, []ErrorObject{errorConflict("Export Busy", "The export is being processed by another worker")})
	case errors.Is(err, domain.ErrAccessDenied):
		respondWithErrors(w, http.StatusForbidden, []ErrorObject{{
			Status: "403",
			Title:  "Access Denied",
			Detail: domain.KindAccessDenied.UserMessage(),
		}})
	case errors.Is(err, domain.ErrJobFailed):
		respondWithErrors(w, http.StatusConflict, []ErrorObject{errorConflict("Export Failed", "The export has failed")})
	case errors.Is(err, domain.ErrArtifactMissing):
		respondWithErrors(w, http.StatusGone, []ErrorObject{{
			Status: "410",
			Title:  "Artifact Missing",
			Detail: domain.KindArtifactMissing.UserMessage(),
		}})
	default:
		if kind, ok := domain.KindOf(err); ok {
			respondWithErrors(w, http.StatusInternalServerError, []ErrorObject{{
				Status: "500",
				Title:  "Export Failed",
				Detail: kind.UserMessage(),
			}})
			return
		}
		respondWithErrors(w, http.StatusInternalServerError, []ErrorObject{errorInternalServer()})
	}
}

func errorNotFound(resourceType, id string) ErrorObject {
	return ErrorObject{
		Status: "404",
		Title:  "Not Found",
		Detail: "The " + resourceType + " with ID '" + id + "' could not be found",
	}
}

func errorInvalidIdentity() ErrorObject {
	return ErrorObject{
		Status: "400",
		Title:  "Invalid Identity",
		Detail: "The X-Rh-Identity header is missing or contains invalid data",
	}
}

func errorInvalidJSON(err error) ErrorObject {
	detail := "The request body contains invalid JSON"
	if err != nil {
		detail = "Invalid JSON: " + err.Error()
	}
	return ErrorObject{
		Status: "400",
		Title:  "Invalid JSON",
		Detail: detail,
	}
}

func errorInvalidField(field, reason string) ErrorObject {
	return ErrorObject{
		Status: "400",
		Title:  "Invalid Field",
		Detail: "The field '" + field + "' is invalid: " + reason,
	}
}

func errorBadRequest(err error) ErrorObject {
	return ErrorObject{
		Status: "400",
		Title:  "Bad Request",
		Detail: err.Error(),
	}
}

func errorConflict(title, detail string) ErrorObject {
	return ErrorObject{
		Status: "409",
		Title:  title,
		Detail: detail,
	}
}

func errorInternalServer() ErrorObject {
	return ErrorObject{
		Status: "500",
		Title:  "Internal Server Error",
		Detail: "An unexpected error occurred while processing your request",
	}
}
