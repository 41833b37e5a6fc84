// Package client talks to the varejo backend.
//
// GRPCClient wraps a connection to varejo.v1.RetailService. It injects the
// access token into every call, refreshes it transparently once when the
// server reports it expired, and maps gRPC statuses back to the sentinel and
// structured errors of package common, so callers can use errors.Is and
// errors.As on the results.
//
// Tokens are guarded by a mutex: the permission watch runs on its own
// goroutine while commands are issued.
package client
