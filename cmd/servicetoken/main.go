// Command servicetoken mints a token for the internal endpoints, signed
// with the same key configuration the service runs with.
//
//	AUTH_SIGNING_KEYS=... servicetoken -name gateway -ttl 60
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/aussiebroadwan/tollgate/internal/auth/app"
	"github.com/aussiebroadwan/tollgate/internal/auth/service"
	"github.com/aussiebroadwan/tollgate/pkg/jwtx"
	"github.com/aussiebroadwan/tollgate/pkg/slogx"
)

func main() {
	name := flag.String("name", "", "calling service name (token subject)")
	ttl := flag.Int("ttl", int(service.DefaultServiceTokenTTL/time.Minute), "lifetime in minutes (1 to 1440)")
	verbose := flag.Bool("v", false, "print the token claims on stderr")
	flag.Parse()

	cfg := app.LoadConfig()
	if cfg.SigningKeys == "" {
		log.Fatal("AUTH_SIGNING_KEYS must be set; an ephemeral key would not be trusted by the service")
	}

	logger := slogx.Discard()
	if *verbose {
		logger = slogx.New(slogx.Config{Service: "servicetoken", Env: cfg.Env, Level: "info", Format: "text", Output: os.Stderr})
	}

	keys, err := app.LoadSigningKeys(cfg, logger)
	if err != nil {
		log.Fatalf("load signing keys: %v", err)
	}

	tokens := &service.ServiceTokens{
		Issuer: jwtx.NewIssuer(keys, jwtx.IssuerConfig{
			Issuer:   cfg.Issuer,
			Audience: cfg.Audience,
		}),
	}

	issued, err := tokens.Mint(*name, time.Duration(*ttl)*time.Minute)
	if err != nil {
		log.Fatalf("mint: %v", err)
	}

	if *verbose {
		fmt.Fprintf(os.Stderr, "sub=%s jti=%s exp=%s\n",
			issued.Claims.Subject, issued.Claims.ID, issued.Claims.ExpiresAt.Time.Format(time.RFC3339))
	}
	fmt.Println(issued.Token)
}
