// Package httputil provides shared HTTP response/request utilities for handlers.
//
// Handlers write every response through these helpers so that success bodies
// and the {error, details} envelope look the same on every endpoint.
package httputil
