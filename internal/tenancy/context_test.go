package tenancy

import (
	"context"
	"testing"
)

func TestWithClientIDAndClientIDFromContext(t *testing.T) {
	ctx := WithClientID(context.Background(), "mobile_client_1")

	got, ok := ClientIDFromContext(ctx)
	if !ok {
		t.Fatalf("expected client id to be present")
	}
	if got != "mobile_client_1" {
		t.Fatalf("expected mobile_client_1, got %s", got)
	}
	if _, ok := CompanyIDFromContext(ctx); ok {
		t.Fatalf("expected company id to be absent")
	}
}

func TestWithCompanyID(t *testing.T) {
	ctx := WithCompanyID(WithClientID(context.Background(), "c1"), "acme")
	if got, ok := CompanyIDFromContext(ctx); !ok || got != "acme" {
		t.Fatalf("expected acme, got %q (%v)", got, ok)
	}
	if got, _ := ClientIDFromContext(ctx); got != "c1" {
		t.Fatalf("expected c1, got %q", got)
	}
}

func TestClientIDFromContext_EmptyOrMissing(t *testing.T) {
	ctx := context.Background()
	if _, ok := ClientIDFromContext(ctx); ok {
		t.Fatalf("expected missing client id to return false")
	}

	ctx = context.WithValue(ctx, clientKey, 42)
	if _, ok := ClientIDFromContext(ctx); ok {
		t.Fatalf("expected non-string client id to return false")
	}

	ctx = WithClientID(context.Background(), "")
	if _, ok := ClientIDFromContext(ctx); ok {
		t.Fatalf("expected empty client id to return false")
	}
}
