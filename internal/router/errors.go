package router

import "fmt"

// UnknownServiceError means the logical service name has no route.
// A correctly configured deployment never produces one.
type UnknownServiceError struct {
	Service string
}

func (e *UnknownServiceError) Error() string {
	return fmt.Sprintf("router: unknown service %q", e.Service)
}

// UnavailableError means the forward call failed at the transport level
// (connection refused, timeout, DNS failure) after any retries.
type UnavailableError struct {
	Service string
	Err     error
}

func (e *UnavailableError) Error() string {
	return fmt.Sprintf("router: service %s unavailable: %v", e.Service, e.Err)
}

func (e *UnavailableError) Unwrap() error { return e.Err }

// UpstreamError means the downstream service answered with a non-success
// status. It may be a client-caused 4xx passed through, so it is never
// retried.
type UpstreamError struct {
	Service    string
	StatusCode int
	Body       string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("router: %s returned HTTP %d", e.Service, e.StatusCode)
}
