package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/forum-api/internal/config"
	"github.com/forum-api/internal/infrastructure/dynamo"
	jwtinfra "github.com/forum-api/internal/infrastructure/jwt"
	"github.com/forum-api/internal/infrastructure/notify"
	"github.com/forum-api/internal/infrastructure/smtp"
	"github.com/forum-api/internal/infrastructure/sns"
	"github.com/forum-api/internal/pkg/clock"
	"github.com/forum-api/internal/pkg/password"
	transporthttp "github.com/forum-api/internal/transport/http"
	"github.com/joho/godotenv"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, reading from environment")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	// Bootstrap DynamoDB tables (creates them if they don't exist).
	dynamoClient := dynamo.NewClient(cfg)
	dynamo.Bootstrap(context.Background(), dynamoClient, cfg.DynamoTables)

	// Signing keys are not optional: an auth service that cannot mint
	// tokens has no business accepting traffic.
	jwtProvider, err := jwtinfra.NewProvider(cfg)
	if err != nil {
		log.Fatalf("jwt provider: %v", err)
	}

	hasher, err := password.New(cfg.BcryptCost)
	if err != nil {
		log.Fatalf("password hasher: %v", err)
	}

	mailer := smtp.NewMailer(cfg)

	// SNS SMS sender (optional — codes fall back to email delivery).
	var smsSender sns.SMSSender
	if sender, err := sns.NewSender(cfg); err == nil {
		smsSender = sender
	} else {
		log.Printf("WARN: SNS sender not available: %v", err)
	}

	dispatcher := notify.NewDispatcher(mailer, smsSender, cfg.NotifyQueueSize)
	defer dispatcher.Close()

	deps := &transporthttp.Deps{
		UserRepo:         dynamo.NewUserRepo(dynamoClient, cfg.DynamoTables.Users, clock.Real{}),
		VerificationRepo: dynamo.NewVerificationRepo(dynamoClient, cfg.DynamoTables.Verifications),
		RefreshTokenRepo: dynamo.NewRefreshTokenRepo(dynamoClient, cfg.DynamoTables.RefreshTokens),
		TxRepo:           dynamo.NewTxRepo(dynamoClient, cfg.DynamoTables.Users, cfg.DynamoTables.Verifications, clock.Real{}),
		JWTProvider:      jwtProvider,
		Hasher:           hasher,
		Dispatcher:       dispatcher,
		Clock:            clock.Real{},
	}

	router := transporthttp.NewRouter(cfg, deps)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.AppPort),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("Server starting on :%s (env=%s)", cfg.AppPort, cfg.AppEnv)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Fatalf("forced shutdown: %v", err)
	}
	log.Println("Server stopped")
}
