package main

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/joho/godotenv"

	"github.com/artztall/user-service/config"
	"github.com/artztall/user-service/internal/application"
	"github.com/artztall/user-service/internal/container"
	"github.com/artztall/user-service/internal/domain/entity"
	"github.com/artztall/user-service/pkg/helpers"
)

// demoAccounts are created on every run. Existing emails are skipped.
var demoAccounts = []application.SignupInput{
	{
		Name:              "Demo Artisan",
		Email:             "artisan@artztall.dev",
		Password:          "password123",
		Phone:             "+16502530010",
		UserType:          entity.KindArtisan.String(),
		Bio:               "Wheel-thrown stoneware and porcelain.",
		ArtworkCategories: []string{"ceramics", "pottery"},
	},
	{
		Name:     "Demo Buyer",
		Email:    "buyer@artztall.dev",
		Password: "password123",
		Phone:    "+16502530011",
		UserType: entity.KindBuyer.String(),
		Address: &entity.Address{
			Street:    "1 Market St",
			City:      "San Francisco",
			State:     "CA",
			Country:   "US",
			IsDefault: true,
		},
	},
}

func main() {
	_ = godotenv.Load()
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		log.Fatalf("invalid configuration: %v", err)
	}
	// Seeding must not send welcome emails.
	cfg.MailSendEnabled = false
	logger := helpers.NewLogger(cfg.AppName+"-seed", cfg.Env)

	ctx := context.Background()
	c, err := container.New(ctx, cfg, logger)
	if err != nil {
		log.Fatalf("startup failed: %v", err)
	}
	defer c.Close()

	for _, in := range demoAccounts {
		res, err := c.Auth.Signup(ctx, in)
		switch {
		case errors.Is(err, application.ErrEmailAlreadyExists):
			fmt.Printf("exists: %s (%s)\n", in.Email, in.UserType)
		case err != nil:
			log.Fatalf("seed %s: %v", in.Email, err)
		default:
			b := res.Account.Base()
			fmt.Printf("seeded %s: id=%s email=%s password=%s\n", b.Kind, b.ID, b.Email, in.Password)
		}
	}
}
