package main

import (
	"context"
	"testing"

	appconfig "github.com/myclarix/lumina/internal/config"
	"github.com/myclarix/lumina/pkg/logging"
)

func TestRunRequiresProvider(t *testing.T) {
	cfg := &appconfig.Config{LLMProvider: "none"}
	if err := run(context.Background(), cfg, logging.New("error"), "web", "hola"); err == nil {
		t.Fatal("expected error without a provider")
	}
}
