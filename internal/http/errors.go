package httpx

import (
	"errors"
	"net/http"

	apperrors "github.com/target/hotelease-portal/internal/errors"
	"github.com/target/hotelease-portal/internal/ports"
	"github.com/target/hotelease-portal/internal/service"
)

// writeServiceError maps service-layer errors to status codes and stable error codes.
func writeServiceError(w http.ResponseWriter, err error) {
	WriteError(w, classifyError(err))
}

func classifyError(err error) ErrorParams {
	switch {
	case errors.Is(err, service.ErrViewNotPermitted):
		return ErrorParams{Code: http.StatusForbidden, ErrCode: "view_not_permitted", Err: err}
	case errors.Is(err, ports.ErrInvalidCredentials):
		return ErrorParams{Code: http.StatusUnauthorized, ErrCode: "invalid_credentials", Err: err}
	case errors.Is(err, service.ErrAccountSuspended):
		return ErrorParams{Code: http.StatusForbidden, ErrCode: "account_suspended", Err: err}
	case errors.Is(err, service.ErrNoRoleAssigned):
		return ErrorParams{Code: http.StatusForbidden, ErrCode: "no_role_assigned", Err: err}
	case errors.Is(err, service.ErrAccountExists):
		return ErrorParams{Code: http.StatusConflict, ErrCode: "account_exists", Err: err}
	case errors.Is(err, service.ErrReservedEventType):
		return ErrorParams{Code: http.StatusBadRequest, ErrCode: "reserved_event_type", Err: err}
	case errors.Is(err, ports.ErrIdentityUnavailable), errors.Is(err, service.ErrRegistryClosed):
		return ErrorParams{Code: http.StatusServiceUnavailable, ErrCode: "identity_unavailable", Err: err}
	}

	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		return ErrorParams{Code: apperrors.HTTPStatus(appErr.Code), ErrCode: string(appErr.Code), Err: err}
	}
	return ErrorParams{Code: http.StatusInternalServerError, ErrCode: "internal", Err: err}
}
