package hubapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"reflect"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/kobe-finance/voice-orchestrate-hub-sub000/internal/catalog"
	"github.com/kobe-finance/voice-orchestrate-hub-sub000/internal/store"
	"github.com/kobe-finance/voice-orchestrate-hub-sub000/pkg/apierr"
	"github.com/kobe-finance/voice-orchestrate-hub-sub000/pkg/installs"
	"github.com/kobe-finance/voice-orchestrate-hub-sub000/pkg/middleware"
	"github.com/kobe-finance/voice-orchestrate-hub-sub000/pkg/models"
	"github.com/kobe-finance/voice-orchestrate-hub-sub000/pkg/problems"
)

// Error codes beyond the generic ones.
const (
	CodeUniqueViolation       = store.CodeUniqueViolation
	CodeCredentialInUse       = "credential_in_use"
	CodeCredentialNotVerified = "credential_not_verified"
	CodeCredentialMismatch    = "credential_mismatch"
	CodeAlreadyInstalled      = "already_installed"
	CodeInstallInactive       = "install_inactive"
	CodeInvalidTransition     = "invalid_transition"
)

func writeJSON(w http.ResponseWriter, v any, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// decode reads a JSON body into dst and validates it. It writes the error
// response itself and reports whether the handler may continue.
func (a *App) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		problems.Write(w, http.StatusBadRequest, "invalid_json", "Request body is not valid JSON", nil)
		return false
	}
	if err := a.validate.Struct(dst); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			problems.Write(w, http.StatusBadRequest, "invalid_request", err.Error(), nil)
			return false
		}
		fields := make([]apierr.FieldError, 0, len(verrs))
		for _, fe := range verrs {
			fields = append(fields, apierr.FieldError{
				Field:   fe.Field(),
				Message: fe.Field() + " failed " + fe.Tag(),
				Code:    fe.Tag(),
			})
		}
		problems.Validation(w, "Request is invalid", fields)
		return false
	}
	return true
}

// fail maps an error to a problem response.
func (a *App) fail(w http.ResponseWriter, r *http.Request, err error) {
	var ae *apierr.Error
	switch {
	case errors.Is(err, store.ErrNotFound), errors.Is(err, catalog.ErrNotFound):
		problems.Write(w, http.StatusNotFound, "not_found", err.Error(), nil)
	case errors.Is(err, store.ErrDuplicate):
		problems.Write(w, http.StatusConflict, CodeUniqueViolation, err.Error(), nil)
	case errors.Is(err, installs.ErrInvalidTransition):
		problems.Write(w, http.StatusConflict, CodeInvalidTransition, err.Error(), nil)
	case errors.As(err, &ae) && ae.Kind == apierr.KindValidation:
		problems.Validation(w, ae.Message, ae.Fields)
	case errors.As(err, &ae) && ae.StatusCode > 0:
		problems.Write(w, ae.StatusCode, ae.Code, ae.Message, ae.Details)
	default:
		a.log.Errorw("request failed", "err", err, "path", r.URL.Path,
			"request_id", middleware.RequestIDFrom(r.Context()))
		problems.Write(w, http.StatusInternalServerError, "internal_error", "Internal server error", nil)
	}
}

func principal(r *http.Request) middleware.Principal {
	p, _ := middleware.PrincipalFrom(r.Context())
	return p
}

func listParams(r *http.Request) models.ListParams {
	q := r.URL.Query()
	page, _ := strconv.Atoi(q.Get("page"))
	limit, _ := strconv.Atoi(q.Get("limit"))
	return models.ListParams{Page: page, Limit: limit, Cursor: q.Get("cursor")}
}

func boolParam(r *http.Request, key string) bool {
	b, _ := strconv.ParseBool(r.URL.Query().Get(key))
	return b
}
