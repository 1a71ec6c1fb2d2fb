package server

import (
	"context"
	"log"

	"monetize-service/internal/config"
	hrest "monetize-service/internal/handler/rest"
	publisher "monetize-service/internal/pub"
	"monetize-service/internal/repository"
	"monetize-service/internal/service"
	"monetize-service/internal/usecase"
	"monetize-service/pkg/id"
	"monetize-service/pkg/utils"

	"github.com/jonboulle/clockwork"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// NewMonetizeServer wires the whole service and blocks serving HTTP
func NewMonetizeServer(ctx context.Context, cfg config.AppConfig) {
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})

	// --- DB connection ---
	dbpool, err := config.ConnectDB()
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}

	if err := config.MigrateUp(); err != nil {
		log.Fatalf("failed to run migrations: %v", err)
	}

	sf, err := id.NewSnowflake(41)
	if err != nil {
		log.Fatalf("failed to init snowflake: %v", err)
	}
	codeGen := utils.NewCodeGenerator(sf)
	clock := clockwork.NewRealClock()

	// --- Redis client ---
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPass,
		DB:       0,
	})

	// --- Publishers ---
	events := publisher.NewEarningEventPublisher(rdb)
	analytics := publisher.NewAnalyticsPublisher(cfg.KafkaBrokers, cfg.KafkaTopic)
	defer analytics.Close()

	// --- External service clients ---
	directory := service.NewDirectory(cfg.UserServiceURL, cfg.ContentServiceURL, rdb)

	// --- Repositories ---
	walletRepo := repository.NewWalletRepo(dbpool)
	ledgerRepo := repository.NewLedgerRepo(dbpool)
	adRepo := repository.NewAdRevenueRepo(dbpool)
	referralRepo := repository.NewReferralRepo(dbpool)
	streakRepo := repository.NewStreakRepo(dbpool)
	distRepo := repository.NewDistributionRepo(
		dbpool, walletRepo, ledgerRepo, adRepo, referralRepo, streakRepo,
		cfg.Monetization.DailyCaps, codeGen, clock,
	)

	// --- Services ---
	calc := service.NewRevenueCalculator(cfg.Monetization, clock)

	// --- Usecases ---
	walletUC := usecase.NewWalletUsecase(walletRepo, ledgerRepo, distRepo, rdb, events, cfg.Monetization, clock, logger)
	referralUC := usecase.NewReferralUsecase(referralRepo, ledgerRepo, distRepo, walletUC, calc, codeGen, events, cfg.Monetization, clock, logger)
	bonusUC := usecase.NewBonusUsecase(distRepo, walletUC, events, cfg.Monetization, logger)
	streakUC := usecase.NewStreakUsecase(streakRepo, distRepo, walletUC, calc, events, cfg.Monetization, logger)
	revenueUC := usecase.NewRevenueUsecase(
		calc, adRepo, distRepo, walletUC, referralUC,
		directory, directory, codeGen, events, analytics, cfg.Monetization, logger,
	)

	// --- Scheduled jobs ---
	jobs := service.NewJobRunner(ledgerRepo, distRepo, adRepo, referralUC, events, cfg.Monetization, clock, logger)
	jobs.Start(ctx)

	// --- REST handler ---
	handler := hrest.NewMonetizeRestHandler(revenueUC, walletUC, bonusUC, referralUC, streakUC)
	handler.Start(cfg.HTTPAddr)
}
