// Command token mints a capability token for a user, standing in for the
// sign-in provider in development.
//
//	token -user <uuid> -role owner
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/joho/godotenv"

	"github.com/alkuinvito/kasirin/internal/auth"
	"github.com/alkuinvito/kasirin/internal/config"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()

	user := flag.String("user", "", "user id (uuid)")
	role := flag.String("role", string(auth.RoleEmployee), "owner | manager | employee")
	ttl := flag.Duration("ttl", cfg.TokenTTL, "token lifetime")
	flag.Parse()

	tok, err := auth.NewTokens(cfg.JWTSecret, *ttl).Issue(auth.Principal{UserID: *user, Role: auth.Role(*role)})
	if err != nil {
		fmt.Fprintln(os.Stderr, "token:", err)
		os.Exit(2)
	}
	fmt.Println(tok)
}
