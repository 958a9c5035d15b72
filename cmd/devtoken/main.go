// Command devtoken mints a signed access token for local testing.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/spec-kit/messaging-service/internal/auth"
	"github.com/spec-kit/messaging-service/internal/config"
	"github.com/spec-kit/messaging-service/internal/domain"
)

func main() {
	var (
		subject = flag.String("sub", "dev-user", "token subject (user id)")
		email   = flag.String("email", "dev@example.com", "email claim")
		role    = flag.String("role", string(domain.RoleUser), "role claim: user or admin")
		ttl     = flag.Duration("ttl", 0, "token lifetime; defaults to AUTH_ACCESS_TOKEN_TTL_MINUTES")
	)
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	r := domain.Role(*role)
	if !r.Valid() {
		log.Fatalf("unknown role %q", *role)
	}

	lifetime := cfg.Auth.AccessTokenTTL()
	if *ttl > 0 {
		lifetime = *ttl
	}

	issuer := auth.NewTokenIssuer(cfg.Auth.JWTSecret, lifetime, auth.SystemClock{})
	token, exp, err := issuer.Issue(domain.Identity{ID: *subject, Email: domain.NormalizeEmail(*email), Role: r})
	if err != nil {
		log.Fatalf("sign token: %v", err)
	}

	fmt.Fprintln(os.Stdout, token)
	fmt.Fprintf(os.Stderr, "expires %s\n", exp.Format(time.RFC3339))
}
