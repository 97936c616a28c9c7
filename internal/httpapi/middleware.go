package httpapi

import (
	"net/http"

	"github.com/google/uuid"

	"storefront/internal/correlation"
)

// Correlation applies the correlation allow-list filter once at the ingress
// boundary and guarantees a request id: one is generated when the caller
// supplied none. The effective id is echoed back to the caller.
func Correlation(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		keys := correlation.FromRequest(r)
		if keys.RequestID == "" {
			keys.RequestID = uuid.NewString()
		}
		w.Header().Set(correlation.HeaderRequestID, keys.RequestID)
		ctx := correlation.NewContext(r.Context(), keys)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
