package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"
)

var (
	// ErrUnauthorized is returned for 401 responses. The API key is wrong or
	// has been revoked.
	ErrUnauthorized = errors.New("authentication failed (401)")

	// ErrNotFound is returned for 404 responses on a per-item call.
	ErrNotFound = errors.New("item not found (404)")
)

// StatusError reports a non-2xx response that has no more specific class.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("unexpected status %d", e.Code)
	}
	return fmt.Sprintf("unexpected status %d: %s", e.Code, e.Body)
}

// AuthWallError reports an HTML payload where JSON was expected. A reverse
// proxy or SSO layer is intercepting the request before it reaches the server.
type AuthWallError struct {
	// LoginURL is the base href of the intercepting page, when one could be
	// extracted.
	LoginURL string
}

func (e *AuthWallError) Error() string {
	if e.LoginURL != "" {
		return "received HTML instead of JSON; request redirected to an authentication page at " + e.LoginURL
	}
	return "received HTML instead of JSON; request redirected to an authentication page"
}

// IsTimeout reports whether err is a request timeout, including a deadline
// carried by the request context.
func IsTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}

// IsConnectionError reports whether err is a transport-level failure such as
// a refused connection or DNS lookup error, as opposed to an HTTP-level one.
func IsConnectionError(err error) bool {
	if IsTimeout(err) {
		return false
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return true
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return true
	}
	var urlErr *url.Error
	return errors.As(err, &urlErr)
}
