// Package request defines the request configuration and the response envelope
// shared by the client pipeline and its transports.
//
// Config is a plain value. Configs are combined by the Merge function,
// which never mutates its inputs, see the merge strategies in merge.go.
//
// BuildURL serializes query parameters into a URL.
//
// Response is the envelope produced by the client for each completed HTTP exchange,
// RawResponse is what a transport returns before the envelope is built.
package request
