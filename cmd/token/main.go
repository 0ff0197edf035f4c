// Command token prints an access token signed with AUTH_ACCESS_SECRET.
// It bootstraps the first operator; later tokens can be issued over the API.
package main

import (
	"flag"
	"fmt"
	"log"

	"github.com/alfanzaky/txqueue/config"
	"github.com/alfanzaky/txqueue/internal/domain"
	"github.com/alfanzaky/txqueue/pkg/auth"
)

func main() {
	subject := flag.String("subject", "", "token subject (operator name)")
	role := flag.String("role", domain.RoleOperator, "OPERATOR or VIEWER")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if cfg.Auth.AccessSecret == "" {
		log.Fatal("AUTH_ACCESS_SECRET is not set")
	}

	token, err := auth.NewJWTAuthService(cfg.Auth).GenerateAccessToken(*subject, *role)
	if err != nil {
		log.Fatalf("Failed to generate token: %v", err)
	}

	fmt.Println(token)
}
