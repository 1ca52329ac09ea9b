package core

import "context"

type contextKey string

const ctxKeyRequestMetadata contextKey = "request_metadata"

// RequestMetadata identifies the client that started an analysis. The job
// runs on its own context, so StartAnalysis copies this over for logging.
type RequestMetadata struct {
	ClientIP  string
	UserAgent string
}

// ContextWithRequestMetadata attaches md to ctx.
func ContextWithRequestMetadata(ctx context.Context, md RequestMetadata) context.Context {
	return context.WithValue(ctx, ctxKeyRequestMetadata, md)
}

// RequestMetadataFromContext returns the metadata on ctx, or the zero value.
func RequestMetadataFromContext(ctx context.Context) RequestMetadata {
	if md, ok := ctx.Value(ctxKeyRequestMetadata).(RequestMetadata); ok {
		return md
	}
	return RequestMetadata{}
}

// logAttrs returns the set fields as slog key/value pairs.
func (md RequestMetadata) logAttrs() []any {
	var attrs []any
	if md.ClientIP != "" {
		attrs = append(attrs, "client_ip", md.ClientIP)
	}
	if md.UserAgent != "" {
		attrs = append(attrs, "user_agent", md.UserAgent)
	}
	return attrs
}
