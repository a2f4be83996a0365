package httputil

import (
	"encoding/json"
	"errors"
	"io"
	"mime"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/ignite/campaign-dashboard/internal/pkg/apperr"
	"github.com/ignite/campaign-dashboard/internal/pkg/logger"
)

// MaxBodyBytes bounds JSON request bodies.
const MaxBodyBytes = 1 << 20

// ErrorResponse is the standard error envelope for all API errors.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details any    `json:"details,omitempty"`
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// JSON writes a JSON response with the given status code.
func JSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		logger.Error("httputil: JSON encode failed", "error", err)
	}
}

// OK writes a 200 response with the given data.
func OK(w http.ResponseWriter, data any) {
	JSON(w, http.StatusOK, data)
}

// Created writes a 201 response with the given data.
func Created(w http.ResponseWriter, data any) {
	JSON(w, http.StatusCreated, data)
}

// NoContent writes a 204 response with no body.
func NoContent(w http.ResponseWriter) {
	w.WriteHeader(http.StatusNoContent)
}

// Error writes a JSON error envelope.
func Error(w http.ResponseWriter, status int, code, details string) {
	JSON(w, status, ErrorResponse{Error: code, Details: details})
}

// BadRequest writes a 400 validation error.
func BadRequest(w http.ResponseWriter, details string) {
	Error(w, http.StatusBadRequest, apperr.CodeValidation, details)
}

// NotFound writes a 404 error.
func NotFound(w http.ResponseWriter, details string) {
	Error(w, http.StatusNotFound, apperr.CodeNotFound, details)
}

// WriteError maps err to a status and envelope. Internal errors are logged
// in full and reported with a generic message.
func WriteError(w http.ResponseWriter, r *http.Request, err error) {
	ae, ok := apperr.As(err)
	if !ok {
		ae = apperr.Internal(err)
	}
	switch ae.Kind {
	case apperr.KindInternal:
		logger.Error("internal error", "path", r.URL.Path, "error", err)
		Error(w, http.StatusInternalServerError, apperr.CodeInternal, "internal server error")
		return
	case apperr.KindProvider:
		logger.Warn("provider error", "path", r.URL.Path, "error", err)
	case apperr.KindRateLimited:
		if ae.RetryAfter > 0 {
			secs := int(ae.RetryAfter.Seconds())
			if secs < 1 {
				secs = 1
			}
			w.Header().Set("Retry-After", strconv.Itoa(secs))
		}
	}
	Error(w, ae.Kind.Status(), ae.Code, ae.Error())
}

// mediaType returns the lower-cased media type of the request body, or ""
// when no Content-Type was sent. An unparsable header yields "invalid".
func mediaType(r *http.Request) string {
	ct := r.Header.Get("Content-Type")
	if ct == "" {
		return ""
	}
	mt, _, err := mime.ParseMediaType(ct)
	if err != nil {
		return "invalid"
	}
	return mt
}

// IsJSON reports whether the request body is declared as JSON. A missing
// Content-Type counts as JSON.
func IsJSON(r *http.Request) bool {
	mt := mediaType(r)
	return mt == "" || mt == "application/json" || strings.HasSuffix(mt, "+json")
}

// IsMultipart reports whether the request body is a multipart form.
func IsMultipart(r *http.Request) bool {
	return strings.HasPrefix(mediaType(r), "multipart/")
}

// Decode reads a JSON body into dst and runs struct validation. A body
// declared as anything other than JSON gets 415; other failures get 400.
// It returns false after writing the error.
func Decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if !IsJSON(r) {
		Error(w, http.StatusUnsupportedMediaType, apperr.CodeUnsupportedMedia,
			"Content-Type must be application/json")
		return false
	}
	dec := json.NewDecoder(io.LimitReader(r.Body, MaxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		BadRequest(w, "invalid JSON: "+err.Error())
		return false
	}
	if err := Validate(dst); err != nil {
		WriteError(w, r, err)
		return false
	}
	return true
}

// Validate runs the `validate` struct tags on v and converts failures into
// a validation error naming the first offending field.
func Validate(v any) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}
	var ves validator.ValidationErrors
	if errors.As(err, &ves) && len(ves) > 0 {
		fe := ves[0]
		return apperr.Validation(apperr.CodeValidation, "field %q failed %q validation", fe.Field(), fe.Tag())
	}
	return apperr.Validation(apperr.CodeValidation, "%s", err.Error())
}
