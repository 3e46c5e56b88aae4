// Command devtoken prints a bearer token for local development.  It signs
// with JWT_SECRET (read the same way the server reads it) unless -secret is
// given.
//
//	go run ./cmd/devtoken -user 7 -role ADMIN
package main

import (
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/iliyamo/ticket-booking/internal/config"
	"github.com/iliyamo/ticket-booking/internal/middleware"
	"github.com/iliyamo/ticket-booking/internal/utils"
)

func main() {
	user := flag.Uint64("user", 1, "user id placed in the subject claim")
	role := flag.String("role", middleware.RoleCustomer, "CUSTOMER or ADMIN")
	ttl := flag.Duration("ttl", time.Hour, "token lifetime")
	secret := flag.String("secret", "", "signing secret (default: JWT_SECRET)")
	flag.Parse()

	key := *secret
	if key == "" {
		cfg, err := config.Load()
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		key = cfg.JWT.Secret
	}

	tok, err := utils.NewAccessToken(key, *user, strings.ToUpper(*role), *ttl)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	fmt.Println(tok.Token)
}
