// Package tenancy carries the caller's client and company identifiers
// through request contexts.
package tenancy

import "context"

type ctxKey string

const (
	clientKey  ctxKey = "lumina.client_id"
	companyKey ctxKey = "lumina.company_id"
)

// WithClientID stores the client id in context.
func WithClientID(ctx context.Context, clientID string) context.Context {
	return context.WithValue(ctx, clientKey, clientID)
}

// ClientIDFromContext extracts the client id if present.
func ClientIDFromContext(ctx context.Context) (string, bool) {
	return stringValue(ctx, clientKey)
}

// WithCompanyID stores the company id in context.
func WithCompanyID(ctx context.Context, companyID string) context.Context {
	return context.WithValue(ctx, companyKey, companyID)
}

// CompanyIDFromContext extracts the company id if present.
func CompanyIDFromContext(ctx context.Context) (string, bool) {
	return stringValue(ctx, companyKey)
}

func stringValue(ctx context.Context, key ctxKey) (string, bool) {
	val := ctx.Value(key)
	if val == nil {
		return "", false
	}
	s, ok := val.(string)
	return s, ok && s != ""
}
