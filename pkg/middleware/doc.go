// Package middleware provides the HTTP middleware chain shared by the kardex
// binaries: request id propagation and role identity extraction.
//
// Authentication itself lives in the fronting proxy. This service receives
// the already-authenticated role id in the X-Kardex-Role header, puts it on
// the request context, and lets the permission gate decide what that role
// may do.
package middleware
