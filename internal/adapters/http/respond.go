package httpadapter

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"homeward/internal/domain"
)

const maxJSONBody = 1 << 20

type errorBody struct {
	Code    string   `json:"code"`
	Message string   `json:"message"`
	Allowed []string `json:"allowed,omitempty"`
	Missing []string `json:"missing,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func statusFor(code domain.Code) int {
	switch code {
	case domain.CodeNotFound:
		return http.StatusNotFound
	case domain.CodeConflict:
		return http.StatusConflict
	case domain.CodeIllegalTransition, domain.CodeGateBlocked, domain.CodeValidation,
		domain.CodeInvalidState, domain.CodeInvalidOperation:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var de *domain.Error
	if !errors.As(err, &de) {
		s.log.Error("request failed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, errorBody{Code: "INTERNAL", Message: "internal error"})
		return
	}
	writeJSON(w, statusFor(de.Code), errorBody{
		Code:    string(de.Code),
		Message: de.Error(),
		Allowed: de.Allowed,
		Missing: de.Missing,
	})
}

// decode reads a JSON body into dst and runs the struct's validate tags.
func (s *Server) decode(r *http.Request, dst any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxJSONBody))
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return domain.Validation("request body is required")
		}
		return domain.Validation("invalid JSON body: %v", err)
	}
	if err := s.validate.Struct(dst); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return domain.Validation("field %s failed %s", fe.Namespace(), validationRule(fe))
		}
		return domain.Validation("%v", err)
	}
	return nil
}

func validationRule(fe validator.FieldError) string {
	if fe.Param() == "" {
		return fe.Tag()
	}
	return fmt.Sprintf("%s=%s", fe.Tag(), fe.Param())
}

// pathID reads a UUID path parameter. Malformed ids cannot name anything,
// so they are reported as not found.
func pathID(r *http.Request, name, kind string) (string, error) {
	raw := chi.URLParam(r, name)
	id, err := uuid.Parse(raw)
	if err != nil {
		return "", domain.NotFound(kind, raw)
	}
	return id.String(), nil
}
