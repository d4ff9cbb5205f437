package http

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/go-playground/validator"

	"github.com/aussiebroadwan/streamtab/internal/identity/domain"
	"github.com/aussiebroadwan/streamtab/pkg/httpx"
	"github.com/aussiebroadwan/streamtab/pkg/idx"
	"github.com/aussiebroadwan/streamtab/pkg/slogx"
)

var validate = validator.New()

var (
	errMalformedBody = domain.Validation("Malformed request body")
	errInvalidEmail  = domain.Validation("Invalid email address")
)

func statusFor(k domain.Kind) int {
	switch k {
	case domain.KindValidation:
		return http.StatusBadRequest
	case domain.KindConflict:
		return http.StatusConflict
	case domain.KindAuth:
		return http.StatusUnauthorized
	case domain.KindNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// writeError maps a service error onto the envelope. Internal causes are
// logged and never sent; auth causes are sent outside prod.
func (r *Router) writeError(w http.ResponseWriter, req *http.Request, err error) {
	var de *domain.Error
	if !errors.As(err, &de) {
		de = domain.Internal(err)
	}

	status := statusFor(de.Kind)
	msg := de.Message
	switch {
	case de.Kind == domain.KindInternal:
		slogx.FromContext(req.Context()).Error("request failed", "error", err)
		msg = "Internal server error"
	case de.Kind == domain.KindAuth && de.Err != nil && !r.opts.hardened():
		msg = de.Error()
	}

	httpx.WriteError(w, status, msg)
}

// decodeJSON reads a JSON body into dst. An empty body leaves dst as is
// when allowEmpty is set.
func decodeJSON(req *http.Request, dst any, allowEmpty bool) error {
	if req.Body == nil {
		if allowEmpty {
			return nil
		}
		return errMalformedBody
	}
	err := json.NewDecoder(req.Body).Decode(dst)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, io.EOF) && allowEmpty:
		return nil
	case errors.Is(err, io.EOF):
		return domain.ErrMissingFields
	default:
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return domain.WithCause(domain.Validation("Request body too large"), err)
		}
		return domain.WithCause(errMalformedBody, err)
	}
}

// validateRequest runs the struct tags of a request DTO.
func validateRequest(v any) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}
	var fields validator.ValidationErrors
	if !errors.As(err, &fields) {
		return domain.WithCause(errMalformedBody, err)
	}
	for _, f := range fields {
		if f.Tag() == "required" {
			return domain.ErrMissingFields
		}
	}
	if fields[0].Field() == "Username" {
		return domain.ErrInvalidUsername
	}
	return errInvalidEmail
}

// userID returns the authenticated subject set by the authn middleware.
func userID(req *http.Request) (idx.ID, error) {
	raw, ok := httpx.UserIDFromContext(req.Context())
	if !ok {
		return idx.Zero, domain.ErrUnauthenticated
	}
	id, err := idx.Parse(raw)
	if err != nil {
		return idx.Zero, domain.WithCause(domain.ErrUnauthenticated, err)
	}
	return id, nil
}
