// Package apierr defines the closed error taxonomy shared by decoding
// providers, the resolver and the enrichment stage.
package apierr

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"syscall"
)

// Kind is a stable, caller-branchable error category.
type Kind string

const (
	InvalidVinFormat     Kind = "INVALID_VIN_FORMAT"
	AuthenticationFailed Kind = "AUTHENTICATION_FAILED"
	RateLimited          Kind = "RATE_LIMITED"
	NotFound             Kind = "NOT_FOUND"
	Timeout              Kind = "TIMEOUT"
	ConnectionError      Kind = "CONNECTION_ERROR"
	MalformedResponse    Kind = "MALFORMED_RESPONSE"
	AllProvidersFailed   Kind = "ALL_PROVIDERS_FAILED"
	CredentialsMissing   Kind = "CREDENTIALS_MISSING"
	UnknownProviderError Kind = "UNKNOWN_PROVIDER_ERROR"
)

// Kinds lists every member of the taxonomy.
var Kinds = []Kind{
	InvalidVinFormat,
	AuthenticationFailed,
	RateLimited,
	NotFound,
	Timeout,
	ConnectionError,
	MalformedResponse,
	AllProvidersFailed,
	CredentialsMissing,
	UnknownProviderError,
}

// Code returns the stable code string.
func (k Kind) Code() string { return string(k) }

// HTTPStatus returns the HTTP-equivalent status used for logging and by the
// HTTP surface.
func (k Kind) HTTPStatus() int {
	switch k {
	case InvalidVinFormat:
		return http.StatusBadRequest
	case AuthenticationFailed:
		return http.StatusUnauthorized
	case RateLimited:
		return http.StatusTooManyRequests
	case NotFound:
		return http.StatusNotFound
	case Timeout:
		return http.StatusGatewayTimeout
	case ConnectionError:
		return http.StatusServiceUnavailable
	case MalformedResponse, AllProvidersFailed:
		return http.StatusBadGateway
	case CredentialsMissing:
		return http.StatusPreconditionFailed
	default:
		return http.StatusInternalServerError
	}
}

// Error is the single error type of the taxonomy. Detail carries optional
// vendor-specific context (status text, vendor error code).
type Error struct {
	Kind     Kind
	Provider string
	Status   int // upstream HTTP status when one was received
	Detail   string
	Err      error
}

func (e *Error) Error() string {
	var b strings.Builder
	if e.Provider != "" {
		b.WriteString(e.Provider)
		b.WriteString(": ")
	}
	b.WriteString(strings.ToLower(strings.ReplaceAll(string(e.Kind), "_", " ")))
	if e.Status != 0 {
		fmt.Fprintf(&b, " (status %d)", e.Status)
	}
	if e.Detail != "" {
		b.WriteString(": ")
		b.WriteString(e.Detail)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches another *Error by Kind, so errors.Is(err, &Error{Kind: k}) works.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && (t.Provider == "" || t.Provider == e.Provider)
}

// New builds an Error of the given kind.
func New(kind Kind, provider, detail string) *Error {
	return &Error{Kind: kind, Provider: provider, Detail: detail}
}

// Wrap builds an Error of the given kind around cause.
func Wrap(kind Kind, provider string, cause error) *Error {
	return &Error{Kind: kind, Provider: provider, Err: cause}
}

// KindOf returns the kind of the first *Error in err's chain. Errors outside
// the taxonomy are classified by Classify.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return Classify(err)
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// FromStatus maps an upstream HTTP status to a kind. 2xx maps to "".
func FromStatus(status int) Kind {
	switch {
	case status >= 200 && status < 300:
		return ""
	case status == http.StatusUnauthorized, status == http.StatusForbidden:
		return AuthenticationFailed
	case status == http.StatusNotFound:
		return NotFound
	case status == http.StatusTooManyRequests:
		return RateLimited
	case status == http.StatusRequestTimeout, status == http.StatusGatewayTimeout:
		return Timeout
	default:
		return UnknownProviderError
	}
}

// Classify maps transport-level errors (timeouts, refused connections, DNS)
// to a kind. Anything unrecognized is UnknownProviderError.
func Classify(err error) Kind {
	if err == nil {
		return ""
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return Timeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return Timeout
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return ConnectionError
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return ConnectionError
	}
	if errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ECONNABORTED) {
		return ConnectionError
	}

	// String heuristics for errors wrapped without their chain.
	msg := strings.ToLower(err.Error())
	for _, p := range []string{"i/o timeout", "tls handshake timeout", "deadline exceeded"} {
		if strings.Contains(msg, p) {
			return Timeout
		}
	}
	for _, p := range []string{
		"connection reset by peer",
		"connection refused",
		"broken pipe",
		"no such host",
		"temporary failure in name resolution",
		"server closed idle connection",
	} {
		if strings.Contains(msg, p) {
			return ConnectionError
		}
	}
	return UnknownProviderError
}

// FromTransport wraps a failed http.Client.Do error in the taxonomy.
func FromTransport(provider string, err error) *Error {
	return Wrap(Classify(err), provider, err)
}
