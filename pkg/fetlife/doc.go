// Package fetlife provides the rate-limited HTTP client for the target
// site. All outbound requests pass through a shared interval gate, GETs are
// retried with exponential backoff on transient failures, and session state
// (cookies, CSRF token, authenticated flag) is owned by the client.
package fetlife
