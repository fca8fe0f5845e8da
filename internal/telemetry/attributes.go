// SPDX-License-Identifier: MIT

// Package telemetry provides OpenTelemetry tracing utilities for the cuesync daemon.
package telemetry

import (
	"go.opentelemetry.io/otel/attribute"
)

// Common attribute keys for consistent tracing across the application.
const (
	// HTTP attributes
	HTTPMethodKey     = "http.method"
	HTTPStatusCodeKey = "http.status_code"
	HTTPRouteKey      = "http.route"
	HTTPURLKey        = "http.url"

	// Cue source attributes
	SourceRoleKey  = "source.role"
	SourceURLKey   = "source.url"
	SourceBytesKey = "source.bytes"

	// Cue track attributes
	TrackCuesKey    = "track.cues"
	TrackDroppedKey = "track.dropped"

	// Error attributes
	ErrorKey     = "error"
	ErrorTypeKey = "error.type"
)

// HTTPAttributes creates common HTTP span attributes.
func HTTPAttributes(method, route, url string, statusCode int) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(HTTPMethodKey, method),
		attribute.String(HTTPRouteKey, route),
		attribute.String(HTTPURLKey, url),
		attribute.Int(HTTPStatusCodeKey, statusCode),
	}
}

// SourceAttributes creates cue-source span attributes. Empty values are omitted.
func SourceAttributes(role, url string, bytes int) []attribute.KeyValue {
	attrs := make([]attribute.KeyValue, 0, 3)
	if role != "" {
		attrs = append(attrs, attribute.String(SourceRoleKey, role))
	}
	if url != "" {
		attrs = append(attrs, attribute.String(SourceURLKey, url))
	}
	if bytes > 0 {
		attrs = append(attrs, attribute.Int(SourceBytesKey, bytes))
	}
	return attrs
}

// TrackAttributes creates span attributes describing a parsed track.
func TrackAttributes(cues, dropped int) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.Int(TrackCuesKey, cues),
		attribute.Int(TrackDroppedKey, dropped),
	}
}

// ErrorAttributes creates error-related span attributes.
func ErrorAttributes(_ error, errorType string) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.Bool(ErrorKey, true),
		attribute.String(ErrorTypeKey, errorType),
	}
}
