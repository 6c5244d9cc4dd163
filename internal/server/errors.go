package server

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"genprovider/internal/provider"
)

type requestError struct {
	Status    int
	Message   string
	Type      string
	Retryable bool
}

func (e requestError) Error() string {
	return e.Message
}

type errorBody struct {
	Error struct {
		Message   string `json:"message"`
		Type      string `json:"type"`
		Retryable bool   `json:"retryable"`
	} `json:"error"`
}

func writeError(c echo.Context, status int, message, errType string, retryable bool) error {
	var payload errorBody
	payload.Error.Message = message
	payload.Error.Type = errType
	payload.Error.Retryable = retryable
	return c.JSON(status, payload)
}

func jsonErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	var reqErr requestError
	if errors.As(err, &reqErr) {
		_ = writeError(c, reqErr.Status, reqErr.Message, reqErr.Type, reqErr.Retryable)
		return
	}

	var he *echo.HTTPError
	if errors.As(err, &he) {
		message := http.StatusText(he.Code)
		if text, ok := he.Message.(string); ok {
			message = text
		}
		_ = writeError(c, he.Code, message, "invalid_request_error", false)
		return
	}

	_ = writeError(c, http.StatusInternalServerError, "internal server error", "server_error", false)
}

// toHTTPError maps a domain error to a status and a message that is safe to
// return to clients.
func toHTTPError(err error) error {
	var reqErr requestError
	if errors.As(err, &reqErr) {
		return reqErr
	}

	kind := provider.KindOf(err)
	return requestError{
		Status:    statusForKind(kind),
		Message:   provider.UserMessage(err),
		Type:      kind.String(),
		Retryable: provider.IsRetryable(err),
	}
}

func statusForKind(kind provider.Kind) int {
	switch kind {
	case provider.KindProviderNotInitialized:
		return http.StatusServiceUnavailable
	case provider.KindConfiguration:
		return http.StatusInternalServerError
	case provider.KindInvalidRequest:
		return http.StatusBadRequest
	case provider.KindModelNotFound:
		return http.StatusNotFound
	case provider.KindRateLimit:
		return http.StatusTooManyRequests
	case provider.KindQuotaExceeded:
		return http.StatusPaymentRequired
	case provider.KindTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusBadGateway
	}
}
