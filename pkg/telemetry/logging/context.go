package logging

import (
	"context"
	"log/slog"
)

// Context keys for common log fields.
type contextKey string

const (
	// RequestIDKey is the context key for HTTP request IDs.
	RequestIDKey contextKey = "request_id"

	// BatchIDKey is the context key for source batch IDs.
	BatchIDKey contextKey = "batch_id"

	// VehicleIDKey is the context key for the vehicle being checked.
	VehicleIDKey contextKey = "vehicle_id"
)

var contextKeys = []contextKey{RequestIDKey, BatchIDKey, VehicleIDKey}

// WithRequestID adds a request ID to the context.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, RequestIDKey, requestID)
}

// GetRequestID retrieves the request ID from the context.
func GetRequestID(ctx context.Context) string {
	return getString(ctx, RequestIDKey)
}

// WithBatchID adds a batch ID to the context.
func WithBatchID(ctx context.Context, batchID string) context.Context {
	return context.WithValue(ctx, BatchIDKey, batchID)
}

// GetBatchID retrieves the batch ID from the context.
func GetBatchID(ctx context.Context) string {
	return getString(ctx, BatchIDKey)
}

// WithVehicleID adds a vehicle ID to the context.
func WithVehicleID(ctx context.Context, vehicleID string) context.Context {
	return context.WithValue(ctx, VehicleIDKey, vehicleID)
}

// GetVehicleID retrieves the vehicle ID from the context.
func GetVehicleID(ctx context.Context) string {
	return getString(ctx, VehicleIDKey)
}

func getString(ctx context.Context, key contextKey) string {
	if v, ok := ctx.Value(key).(string); ok {
		return v
	}
	return ""
}

// contextAttrs returns the non-empty identifiers stored in ctx.
func contextAttrs(ctx context.Context) []slog.Attr {
	var attrs []slog.Attr
	for _, key := range contextKeys {
		if v := getString(ctx, key); v != "" {
			attrs = append(attrs, slog.String(string(key), v))
		}
	}
	return attrs
}
