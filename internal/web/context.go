package web

import (
	"context"
	"net/http"

	"github.com/JonMunkholm/apdupes/internal/core"
)

// withRequestMetadata adds the client IP and User-Agent to the context so
// analysis jobs can log who started them.
func withRequestMetadata(r *http.Request) context.Context {
	return core.ContextWithRequestMetadata(r.Context(), core.RequestMetadata{
		ClientIP:  r.RemoteAddr, // already rewritten by TrustedRealIP
		UserAgent: r.UserAgent(),
	})
}
