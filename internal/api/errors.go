package api

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/npezzotti/go-gameportal/internal/accounts"
	"github.com/npezzotti/go-gameportal/internal/notify"
	"github.com/npezzotti/go-gameportal/internal/servers"
	"github.com/npezzotti/go-gameportal/internal/types"
)

type ApiError struct {
	StatusCode int            `json:"status_code"`
	Message    string         `json:"message"`
	Severity   types.Severity `json:"severity"`
	Err        error          `json:"-"`
}

func (e *ApiError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s", e.Message, e.Err.Error())
	}

	return e.Message
}

func (e *ApiError) Unwrap() error {
	return e.Err
}

func lower(s string) string {
	return strings.ToLower(s)
}

func newStatusError(code int) *ApiError {
	return &ApiError{
		StatusCode: code,
		Message:    lower(http.StatusText(code)),
		Severity:   types.SeverityError,
	}
}

func NewBadRequestError() *ApiError {
	return newStatusError(http.StatusBadRequest)
}

func NewNotFoundError() *ApiError {
	return newStatusError(http.StatusNotFound)
}

func NewInternalServerError(err error) *ApiError {
	e := newStatusError(http.StatusInternalServerError)
	e.Err = err
	return e
}

func NewUnauthorizedError() *ApiError {
	return newStatusError(http.StatusUnauthorized)
}

func NewTooManyRequestsError() *ApiError {
	e := newStatusError(http.StatusTooManyRequests)
	e.Severity = types.SeverityWarning
	return e
}

func NewServiceUnavailableError(err error) *ApiError {
	e := newStatusError(http.StatusServiceUnavailable)
	e.Err = err
	return e
}

// NewUserError carries a user-facing failure through with its own text and
// severity.
func NewUserError(ue *types.UserError) *ApiError {
	return &ApiError{
		StatusCode: userErrorStatus(ue),
		Message:    ue.Message,
		Severity:   ue.Severity,
		Err:        ue,
	}
}

func userErrorStatus(ue *types.UserError) int {
	switch ue {
	case accounts.ErrInvalidCredentials, accounts.ErrNotLoggedIn, servers.ErrNotLoggedIn:
		return http.StatusUnauthorized
	case accounts.ErrUsernameTaken, accounts.ErrEmailTaken, servers.ErrServerFull:
		return http.StatusConflict
	case accounts.ErrAccountNotFound, servers.ErrServerNotFound, notify.ErrNotificationNotFound:
		return http.StatusNotFound
	default:
		return http.StatusBadRequest
	}
}

// errorFromService maps a service error to its response.
func errorFromService(err error) *ApiError {
	var ue *types.UserError
	if errors.As(err, &ue) {
		return NewUserError(ue)
	}
	return NewInternalServerError(err)
}
