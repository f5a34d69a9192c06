package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/sawdustofmind/matchcenter/internal/apperr"
	"github.com/sawdustofmind/matchcenter/internal/log"
)

const (
	CodeNotFound   = "NOT_FOUND"
	CodeValidation = "VALIDATION_ERROR"
	CodeInternal   = "INTERNAL_ERROR"
)

type DataResponse struct {
	Data any `json:"data"`
}

type ErrorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type ErrorResponse struct {
	Error ErrorBody `json:"error"`
}

type HealthResponse struct {
	Status string `json:"status"`
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Error("Failed to write response", zap.Error(err))
	}
}

func writeData(w http.ResponseWriter, status int, data any) {
	writeJSON(w, status, DataResponse{Data: data})
}

// writeError maps the error taxonomy onto HTTP statuses.
func writeError(w http.ResponseWriter, err error) {
	switch {
	case apperr.IsNotFound(err):
		writeJSON(w, http.StatusNotFound, ErrorResponse{Error: ErrorBody{Code: CodeNotFound, Message: err.Error()}})
	case apperr.IsValidation(err):
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: ErrorBody{Code: CodeValidation, Message: err.Error()}})
	default:
		log.Error("Request failed", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, ErrorResponse{Error: ErrorBody{Code: CodeInternal, Message: "internal server error"}})
	}
}

// pathID reads a UUID path variable.
func pathID(r *http.Request, name string) (string, error) {
	raw := mux.Vars(r)[name]
	if _, err := uuid.Parse(raw); err != nil {
		return "", apperr.Validationf("%s must be a UUID, got %q", name, raw)
	}
	return raw, nil
}

// decode reads a JSON body into dst and validates it.
func (s *Server) decode(r *http.Request, dst any) error {
	defer func() {
		if err := r.Body.Close(); err != nil {
			log.Error("Failed to close request body", zap.Error(err))
		}
	}()

	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return apperr.Validationf("malformed JSON body: %v", err)
	}
	if err := s.validate.Struct(dst); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return apperr.Validationf("%s failed on %s", fe.Field(), describeTag(fe))
		}
		return apperr.Validationf("%v", err)
	}
	return nil
}

func describeTag(fe validator.FieldError) string {
	if fe.Param() == "" {
		return fe.Tag()
	}
	return fmt.Sprintf("%s=%s", fe.Tag(), fe.Param())
}
