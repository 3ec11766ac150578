// Command seed creates a user with a transaction PIN and a funded wallet for
// local testing, and prints an access token for it.
package main

import (
	"context"
	"flag"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/opticash/opticash-api/internal/config"
	"github.com/opticash/opticash-api/internal/domain/user"
	"github.com/opticash/opticash-api/internal/domain/wallet"
	"github.com/opticash/opticash-api/internal/pkg/database"
	"github.com/opticash/opticash-api/internal/pkg/jwt"
	"github.com/opticash/opticash-api/internal/pkg/logger"
)

func main() {
	name := flag.String("name", "Demo User", "display name")
	emailAddr := flag.String("email", "demo@opticash.io", "email address, reused if it exists")
	pin := flag.String("pin", "1234", "transaction PIN")
	amount := flag.Int64("fund", 50000, "amount in minor units to deposit")
	currency := flag.String("currency", wallet.DefaultCurrency, "wallet currency code")
	flag.Parse()

	cfg := config.Load()
	if err := logger.Init(logger.Config{Level: cfg.LogLevel, Environment: cfg.Env}); err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize logger")
	}

	db, err := database.NewPostgres(cfg.DatabaseURL, database.DefaultPoolConfig())
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer database.ClosePostgres(db)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	userRepo := user.NewRepository(db)
	userService := user.NewService(userRepo)
	walletService := wallet.NewService(wallet.NewRepository(db))

	u, err := userRepo.GetByEmail(ctx, *emailAddr)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to look up user")
	}
	if u == nil {
		u = &user.User{ID: uuid.New(), Name: *name, Email: *emailAddr}
		if err := userRepo.Create(ctx, u); err != nil {
			log.Fatal().Err(err).Msg("Failed to create user")
		}
		log.Info().Str("user_id", u.ID.String()).Msg("user created")
	}

	if err := userService.SetPin(ctx, u.ID, *pin); err != nil {
		log.Fatal().Err(err).Msg("Failed to set PIN")
	}

	if _, err := walletService.Activate(ctx, u.ID, *currency); err != nil {
		log.Fatal().Err(err).Msg("Failed to activate wallet")
	}

	w, err := walletService.Get(ctx, u.ID)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load wallet")
	}
	if *amount > 0 {
		if w, err = walletService.Fund(ctx, u.ID, *amount); err != nil {
			log.Fatal().Err(err).Msg("Failed to fund wallet")
		}
	}

	token, err := jwt.NewService(cfg.JWTSecret, 24*time.Hour).GenerateAccessToken(u.ID)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to sign access token")
	}

	fmt.Printf("user_id=%s\nwallet_id=%s\nbalance=%d %s\ntoken=%s\n", u.ID, w.ID, w.Balance, w.CurrencyCode, token)
}
