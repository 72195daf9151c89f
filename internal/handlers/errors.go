package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	"musicez/internal/handlers/render"
	"musicez/internal/repositories"
	"musicez/internal/search"
	"musicez/internal/services"
)

// FieldError is one failed validation rule
type FieldError struct {
	Field   string `json:"field"`
	Reason  string `json:"reason"`
	Param   string `json:"param,omitempty"`
	Message string `json:"message,omitempty"`
}

// bindingError answers a request whose body or query could not be bound
func bindingError(c *gin.Context, err error) {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		details := make([]FieldError, 0, len(verrs))
		for _, fe := range verrs {
			details = append(details, FieldError{
				Field:  fe.Field(),
				Reason: fe.Tag(),
				Param:  fe.Param(),
			})
		}
		render.Error(c, http.StatusBadRequest, render.CodeValidation, "Request validation failed", details)
		return
	}
	render.Error(c, http.StatusBadRequest, render.CodeValidation, "Malformed request", err.Error())
}

// writeError maps a service error onto the error envelope
func writeError(c *gin.Context, err error) {
	var verr *search.ValidationError
	switch {
	case errors.As(err, &verr):
		render.Error(c, http.StatusBadRequest, render.CodeValidation, verr.Error(), FieldError{
			Field:   verr.Field,
			Reason:  string(verr.Reason),
			Message: verr.Detail,
		})
	case errors.Is(err, services.ErrInvalidTrackID):
		// A reference that names no track is reported like an unknown track
		render.Error(c, http.StatusNotFound, render.CodeImportNotFound, "Unsupported Spotify track reference", nil)
	case errors.Is(err, services.ErrImportNotFound):
		render.Error(c, http.StatusNotFound, render.CodeImportNotFound, "Track not found on Spotify", nil)
	case errors.Is(err, repositories.ErrNotFound):
		render.Error(c, http.StatusNotFound, render.CodeNotFound, "Song not found", nil)
	case errors.Is(err, services.ErrRecommendationsDisabled):
		render.Error(c, http.StatusServiceUnavailable, render.CodeProviderUnavailable, "Recommendations are not configured", nil)
	case errors.Is(err, search.ErrCatalogUnavailable):
		slog.Error("Catalog unavailable", "path", c.FullPath(), "error", err, "requestID", GetRequestID(c))
		render.Error(c, http.StatusServiceUnavailable, render.CodeCatalogUnavailable, "Song catalog is temporarily unavailable", nil)
	case isProviderError(err):
		slog.Warn("Provider call failed", "path", c.FullPath(), "error", err, "requestID", GetRequestID(c))
		render.Error(c, http.StatusBadGateway, render.CodeProviderUnavailable, "Music provider is unavailable", nil)
	default:
		slog.Error("Request failed", "path", c.FullPath(), "error", err, "requestID", GetRequestID(c))
		render.Error(c, http.StatusInternalServerError, render.CodeInternal, "Internal server error", nil)
	}
}

func isProviderError(err error) bool {
	var pe *services.ProviderError
	return errors.As(err, &pe) ||
		errors.Is(err, services.ErrProviderUnavailable) ||
		errors.Is(err, services.ErrNotConnected) ||
		errors.Is(err, services.ErrTrackNotFound)
}
