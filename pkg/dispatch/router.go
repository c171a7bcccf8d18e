// Package dispatch is the client side of the generic provider RPC.
//
// Two failure channels are kept apart: a provider failure is returned as a
// DispatchResponse with Success=false and a nil error, while transport
// failures (bad credential id, no access, server down) are returned as
// *apierr.Error.
package dispatch

import (
	"context"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/kobe-finance/voice-orchestrate-hub-sub000/pkg/apierr"
	"github.com/kobe-finance/voice-orchestrate-hub-sub000/pkg/models"
	"github.com/kobe-finance/voice-orchestrate-hub-sub000/pkg/quota"
)

// ErrQuotaExceeded is the provider-failure text for a pre-flight quota rejection.
const ErrQuotaExceeded = "quota exceeded"

// API is the slice of the integrations surface the router needs.
type API interface {
	Dispatch(ctx context.Context, req models.DispatchRequest) (*models.DispatchResponse, error)
}

// QuotaChecker reports the first exhausted quota period for a credential.
type QuotaChecker interface {
	Check(ctx context.Context, credentialID string) (*models.QuotaUsage, error)
}

type Router struct {
	api      API
	quotas   QuotaChecker
	validate *validator.Validate
	now      func() time.Time
	log      *zap.SugaredLogger
}

type Option func(*Router)

// WithQuotaPreflight checks the credential's quota before each dispatch.
func WithQuotaPreflight(q QuotaChecker) Option { return func(r *Router) { r.quotas = q } }

func WithLogger(l *zap.SugaredLogger) Option {
	return func(r *Router) {
		if l != nil {
			r.log = l
		}
	}
}

func WithClock(now func() time.Time) Option { return func(r *Router) { r.now = now } }

func NewRouter(api API, opts ...Option) *Router {
	r := &Router{
		api:      api,
		validate: validator.New(),
		now:      time.Now,
		log:      zap.NewNop().Sugar(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Dispatch sends operation to provider. response_time_ms is always set on a
// returned response.
func (r *Router) Dispatch(ctx context.Context, provider, operation string, payload map[string]any, credentialID string) (*models.DispatchResponse, error) {
	req := models.DispatchRequest{
		Provider:     provider,
		Operation:    operation,
		Payload:      payload,
		CredentialID: credentialID,
	}
	if err := r.validate.Struct(req); err != nil {
		return nil, validationError(err)
	}

	start := r.now()
	if r.quotas != nil && credentialID != "" {
		over, err := r.quotas.Check(ctx, credentialID)
		if err != nil {
			return nil, err
		}
		if over != nil {
			r.log.Infow("dispatch blocked by quota",
				"provider", provider, "credential_id", credentialID, "period", over.Period, "used", over.Used, "limit", over.Limit)
			return &models.DispatchResponse{
				Success:        false,
				Error:          ErrQuotaExceeded,
				ResponseTimeMs: elapsedMs(start, r.now()),
			}, nil
		}
	}

	resp, err := r.api.Dispatch(ctx, req)
	if err != nil {
		r.log.Debugw("dispatch transport failure", "provider", provider, "operation", operation, "err", err)
		return nil, err
	}
	if resp.ResponseTimeMs <= 0 {
		resp.ResponseTimeMs = elapsedMs(start, r.now())
	}
	if !resp.Success {
		r.log.Debugw("provider reported failure", "provider", provider, "operation", operation, "error", resp.Error)
	}
	return resp, nil
}

func elapsedMs(start, end time.Time) int64 {
	ms := end.Sub(start).Milliseconds()
	if ms < 1 {
		return 1
	}
	return ms
}

func validationError(err error) error {
	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return apierr.NewValidationError(err.Error(), nil)
	}
	fields := make([]apierr.FieldError, 0, len(verrs))
	for _, fe := range verrs {
		fields = append(fields, apierr.FieldError{
			Field:   jsonName(fe.Field()),
			Message: jsonName(fe.Field()) + " is " + fe.Tag(),
			Code:    fe.Tag(),
		})
	}
	return apierr.NewValidationError("dispatch request is invalid", fields)
}

func jsonName(field string) string {
	switch field {
	case "Provider":
		return "provider"
	case "Operation":
		return "operation"
	}
	return field
}

var _ QuotaChecker = (*quota.Service)(nil)
