// Command token issues identity tokens for local testing. The secret and
// issuer are read from the same environment as the server.
package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"

	"github.com/omochice/roomcast/internal/auth"
	"github.com/omochice/roomcast/internal/chat"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Fatal error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	_ = godotenv.Load()

	userID := flag.String("user", "", "user id (required)")
	name := flag.String("name", "", "display name (default: user id)")
	avatar := flag.String("avatar", "", "avatar reference")
	ttl := flag.Duration("ttl", 24*time.Hour, "token lifetime")
	issuer := flag.String("issuer", envOr("JWT_ISSUER", "roomcast"), "token issuer")
	flag.Parse()

	if !chat.ValidUserID(*userID) {
		return fmt.Errorf("invalid user id %q", *userID)
	}
	if *name == "" {
		*name = *userID
	}

	v, err := auth.NewJWTVerifier(os.Getenv("JWT_SECRET"), *issuer)
	if err != nil {
		return fmt.Errorf("JWT_SECRET: %w", err)
	}
	token, err := v.Issue(chat.Identity{UserID: *userID, DisplayName: *name, AvatarRef: *avatar}, *ttl)
	if err != nil {
		return err
	}
	fmt.Println(token)
	return nil
}

func envOr(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}
