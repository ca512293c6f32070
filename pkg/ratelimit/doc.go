// Package ratelimit provides the request gate that spaces outbound HTTP
// requests by a minimum delay. The gate is safe for concurrent use and is
// shared across all workers driving the same client.
package ratelimit
