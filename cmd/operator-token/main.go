// Command operator-token mints a bearer token for the refresh and status
// endpoints, signed with OPERATOR_JWT_SECRET.
package main

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/windforecast/windforecast/internal/auth"
	"github.com/windforecast/windforecast/internal/config"
)

func main() {
	operatorID := flag.String("operator", "", "operator identifier embedded in the token (required)")
	ttl := flag.Duration("ttl", auth.DefaultTokenTTL, "token lifetime")
	flag.Parse()

	if err := run(*operatorID, *ttl); err != nil {
		fmt.Fprintf(os.Stderr, "operator-token: %v\n", err)
		os.Exit(1)
	}
}

func run(operatorID string, ttl time.Duration) error {
	if operatorID == "" {
		return errors.New("-operator is required")
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if cfg.Auth.OperatorJWTSecret == "" {
		return errors.New("OPERATOR_JWT_SECRET is not set")
	}

	tokens, err := auth.NewTokenService(auth.TokenConfig{SigningKey: cfg.Auth.OperatorJWTSecret})
	if err != nil {
		return err
	}

	token, expiresAt, err := tokens.GenerateOperatorToken(operatorID, ttl)
	if err != nil {
		return err
	}

	fmt.Fprintf(os.Stderr, "expires %s\n", expiresAt.UTC().Format(time.RFC3339))
	fmt.Println(token)
	return nil
}
