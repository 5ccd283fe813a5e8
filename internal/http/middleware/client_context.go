package middleware

import (
	"net/http"
	"strings"

	"github.com/myclarix/lumina/internal/tenancy"
)

const (
	HeaderClientID  = "X-Client-Id"
	HeaderCompanyID = "X-Company-Id"
)

// ClientContext copies the X-Client-Id and X-Company-Id headers (or the
// clientId / companyId query params) into the request context.
func ClientContext(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if clientID := firstNonEmpty(r.Header.Get(HeaderClientID), r.URL.Query().Get("clientId")); clientID != "" {
			ctx = tenancy.WithClientID(ctx, clientID)
		}
		if companyID := firstNonEmpty(r.Header.Get(HeaderCompanyID), r.URL.Query().Get("companyId")); companyID != "" {
			ctx = tenancy.WithCompanyID(ctx, companyID)
		}
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
