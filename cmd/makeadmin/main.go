// Command makeadmin grants the admin flag to an existing account.
//
//	go run ./cmd/makeadmin -email someone@example.com
package main

import (
	"context"
	"flag"
	"log"
	"time"

	"service_finder/internal/app/service"
	"service_finder/internal/common/security"
	"service_finder/internal/platform/config"
	"service_finder/internal/platform/database"
)

func main() {
	email := flag.String("email", "", "email of the user to promote")
	flag.Parse()
	if *email == "" {
		log.Fatal("usage: makeadmin -email <address>")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	store, closeStore, err := database.OpenStore(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to open %s store: %v", cfg.StoreDriver, err)
	}
	defer closeStore()

	users := service.NewUserService(store.Users, security.NewPasswordHasher(cfg.BcryptCost))
	user, err := users.PromoteByEmail(ctx, *email)
	if err != nil {
		closeStore()
		log.Fatalf("Failed to promote %s: %v", *email, err)
	}
	log.Printf("User %s (%s) is now an admin", user.Name, user.Email)
}
