package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"

	appconfig "github.com/myclarix/lumina/internal/config"
	httpmiddleware "github.com/myclarix/lumina/internal/http/middleware"
)

// admintoken prints a bearer token for the /admin routes, signed with
// ADMIN_JWT_SECRET.
func main() {
	_ = godotenv.Load()

	subject := flag.String("sub", "ops", "token subject")
	ttl := flag.Duration("ttl", 12*time.Hour, "token lifetime")
	flag.Parse()

	cfg := appconfig.Load()
	token, err := httpmiddleware.IssueAdminToken(cfg.AdminJWTSecret, *subject, *ttl)
	if err != nil {
		fmt.Fprintln(os.Stderr, "ADMIN_JWT_SECRET must be set:", err)
		os.Exit(1)
	}
	fmt.Println(token)
}
