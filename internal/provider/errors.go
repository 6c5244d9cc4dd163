package provider

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
)

// Kind classifies a provider failure.
type Kind int

const (
	KindProvider Kind = iota
	KindProviderNotInitialized
	KindConfiguration
	KindNetwork
	KindAuthentication
	KindRateLimit
	KindInvalidRequest
	KindModelNotFound
	KindQuotaExceeded
	KindTimeout
	KindStreaming
	KindParsing
)

var kindNames = [...]string{
	KindProvider:               "provider_error",
	KindProviderNotInitialized: "provider_not_initialized",
	KindConfiguration:          "configuration_error",
	KindNetwork:                "network_error",
	KindAuthentication:         "authentication_error",
	KindRateLimit:              "rate_limit_error",
	KindInvalidRequest:         "invalid_request",
	KindModelNotFound:          "model_not_found",
	KindQuotaExceeded:          "quota_exceeded",
	KindTimeout:                "timeout_error",
	KindStreaming:              "streaming_error",
	KindParsing:                "parsing_error",
}

func (k Kind) String() string {
	if int(k) >= 0 && int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "unknown_error"
}

// Retryable reports whether a failure of this kind may succeed when repeated.
func (k Kind) Retryable() bool {
	switch k {
	case KindNetwork, KindRateLimit, KindTimeout:
		return true
	}
	return false
}

// Error is the domain error returned by every adapter.
type Error struct {
	Kind       Kind
	Provider   string
	StatusCode int
	Message    string
	Err        error
}

func (e *Error) Error() string {
	var b strings.Builder
	if e.Provider != "" {
		b.WriteString(e.Provider)
		b.WriteString(": ")
	}
	b.WriteString(e.Kind.String())
	if e.StatusCode != 0 {
		fmt.Fprintf(&b, " (status %d)", e.StatusCode)
	}
	if e.Message != "" {
		b.WriteString(": ")
		b.WriteString(e.Message)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches any *Error of the same kind, so the kind sentinels below work
// with errors.Is.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Kind == e.Kind && t.Provider == "" && t.Message == "" && t.StatusCode == 0 && t.Err == nil
}

// Kind sentinels for errors.Is.
var (
	ErrProvider               = &Error{Kind: KindProvider}
	ErrProviderNotInitialized = &Error{Kind: KindProviderNotInitialized}
	ErrConfiguration          = &Error{Kind: KindConfiguration}
	ErrNetwork                = &Error{Kind: KindNetwork}
	ErrAuthentication         = &Error{Kind: KindAuthentication}
	ErrRateLimit              = &Error{Kind: KindRateLimit}
	ErrInvalidRequest         = &Error{Kind: KindInvalidRequest}
	ErrModelNotFound          = &Error{Kind: KindModelNotFound}
	ErrQuotaExceeded          = &Error{Kind: KindQuotaExceeded}
	ErrTimeout                = &Error{Kind: KindTimeout}
	ErrStreaming              = &Error{Kind: KindStreaming}
	ErrParsing                = &Error{Kind: KindParsing}
)

// NewError builds a domain error of the given kind.
func NewError(kind Kind, providerName, message string) *Error {
	return &Error{Kind: kind, Provider: providerName, Message: message}
}

// WrapError builds a domain error of the given kind around cause.
func WrapError(kind Kind, providerName, message string, cause error) *Error {
	return &Error{Kind: kind, Provider: providerName, Message: message, Err: cause}
}

// KindOf extracts the kind of err. Context deadline and cancellation are
// reported as timeouts; anything unclassified is a provider error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return KindTimeout
	}
	return KindProvider
}

// IsRetryable classifies err. Unclassified transport failures (net.Error)
// are retryable; authentication, configuration and validation errors are not.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Kind.Retryable()
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}

// UserMessage returns text that is safe to show to an end user; it never
// includes upstream bodies or credentials.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	switch KindOf(err) {
	case KindProviderNotInitialized:
		return "No generation provider is configured yet."
	case KindConfiguration:
		return "The generation provider is misconfigured. Check the provider settings."
	case KindNetwork:
		return "Could not reach the generation service. Check your connection and try again."
	case KindAuthentication:
		return "The generation service rejected the credentials. Check the API key."
	case KindRateLimit:
		return "The generation service is rate limiting requests. Please wait and try again."
	case KindInvalidRequest:
		return "The generation request was invalid."
	case KindModelNotFound:
		return "The requested model is not available."
	case KindQuotaExceeded:
		return "The account quota for the generation service has been exhausted."
	case KindTimeout:
		return "The generation service took too long to respond."
	case KindStreaming:
		return "The response stream was interrupted."
	case KindParsing:
		return "The generation service returned an unreadable response."
	default:
		return "The generation service returned an error."
	}
}

// FromStatus maps a non-2xx HTTP status to a domain error. apiMessage is
// the backend's structured error message if one could be parsed.
func FromStatus(providerName string, status int, body []byte, apiMessage string) *Error {
	text := strings.TrimSpace(apiMessage)
	if text == "" {
		text = strings.TrimSpace(string(body))
	}
	if text == "" {
		text = http.StatusText(status)
	}

	kind := KindProvider
	switch status {
	case http.StatusUnauthorized:
		kind = KindAuthentication
	case http.StatusTooManyRequests:
		kind = KindRateLimit
	case http.StatusBadRequest:
		kind = KindInvalidRequest
	case http.StatusPaymentRequired:
		kind = KindQuotaExceeded
	}
	return &Error{Kind: kind, Provider: providerName, StatusCode: status, Message: text}
}

// FromTransport maps an http.Client failure (connect, DNS, TLS, deadline).
func FromTransport(providerName string, err error) *Error {
	if errors.Is(err, context.DeadlineExceeded) {
		return WrapError(KindTimeout, providerName, "request timed out", err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return WrapError(KindTimeout, providerName, "request timed out", err)
	}
	return WrapError(KindNetwork, providerName, "transport failure", err)
}
