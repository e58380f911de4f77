package services

import "context"

type contextKey int

const (
	postIDKey contextKey = iota
	correlationIDKey
)

// WithPostID annotates context with the post being processed.
func WithPostID(ctx context.Context, id string) context.Context {
	return withValue(ctx, postIDKey, id)
}

// PostIDFromContext extracts the post identifier if present.
func PostIDFromContext(ctx context.Context) (string, bool) {
	return valueOf(ctx, postIDKey)
}

// WithCorrelationID tags context with the id shared by every log line of one
// task or API request.
func WithCorrelationID(ctx context.Context, id string) context.Context {
	return withValue(ctx, correlationIDKey, id)
}

// CorrelationIDFromContext extracts the correlation id if present.
func CorrelationIDFromContext(ctx context.Context) (string, bool) {
	return valueOf(ctx, correlationIDKey)
}

// withValue leaves ctx untouched for blank values.
func withValue(ctx context.Context, key contextKey, value string) context.Context {
	if value == "" {
		return ctx
	}
	return context.WithValue(ctx, key, value)
}

func valueOf(ctx context.Context, key contextKey) (string, bool) {
	v, ok := ctx.Value(key).(string)
	return v, ok && v != ""
}
