package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"monetize-service/internal/domain"

	"github.com/shopspring/decimal"
)

type AppConfig struct {
	HTTPAddr     string
	RedisAddr    string
	RedisPass    string
	KafkaBrokers []string
	KafkaTopic   string

	// Collaborator services
	UserServiceURL    string
	ContentServiceURL string

	Monetization MonetizationConfig
}

// MonetizationConfig holds every revenue-share percentage, cap and bonus
// table. Built once at startup and injected; nothing reads these from
// ambient global state so tests can run with varied configurations.
type MonetizationConfig struct {
	// Ad revenue eligibility
	MinViewDuration   float64 // seconds
	MinViewPercentage float64

	// Split percentages. App share is never computed from its own
	// percentage: it is the remainder, so the three shares always sum
	// exactly to the reported revenue.
	CreatorShare    decimal.Decimal
	ViewerShare     decimal.Decimal
	MinPayoutAmount decimal.Decimal

	// Per-category same-day earning ceilings
	DailyCaps map[domain.TransactionSubType]decimal.Decimal

	// Server-side ceilings for client-reported fixed bonuses
	BonusLimits map[domain.TransactionSubType]decimal.Decimal

	// Referral program
	ReferrerBonus       decimal.Decimal // fraction of referee ad earnings
	MinRevenueForBonus  decimal.Decimal
	TrackingDuration    time.Duration
	SignupBonusReferrer decimal.Decimal
	SignupBonusReferee  decimal.Decimal
	CodeMaxAttempts     int
	ShareLinkBase       string

	// Streak program
	StreakBaseBonus     decimal.Decimal
	StreakCapMultiplier int

	// Background jobs
	SettlementDelay    time.Duration
	SettlementInterval time.Duration
	CleanupRetention   time.Duration
	CleanupInterval    time.Duration
	RepairInterval     time.Duration
	JobPageSize        int
}

func Load() AppConfig {
	return AppConfig{
		HTTPAddr:     getEnv("HTTP_ADDR", ":8041"),
		RedisAddr:    getEnv("REDIS_ADDR", "redis:6379"),
		RedisPass:    getEnv("REDIS_PASS", ""),
		KafkaBrokers: getEnvSlice("KAFKA_BROKERS", []string{"kafka:9092"}),
		KafkaTopic:   getEnv("KAFKA_TOPIC", "monetization_events"),

		UserServiceURL:    getEnv("USER_SERVICE_URL", "http://user-service:8001"),
		ContentServiceURL: getEnv("CONTENT_SERVICE_URL", "http://content-service:8013"),

		Monetization: LoadMonetization(),
	}
}

func LoadMonetization() MonetizationConfig {
	return MonetizationConfig{
		MinViewDuration:   getEnvFloat("MIN_VIEW_DURATION", 30),
		MinViewPercentage: getEnvFloat("MIN_VIEW_PERCENTAGE", 0.7),

		CreatorShare:    getEnvDecimal("CREATOR_SHARE", "0.60"),
		ViewerShare:     getEnvDecimal("VIEWER_SHARE", "0.20"),
		MinPayoutAmount: getEnvDecimal("MIN_PAYOUT_AMOUNT", "0.001"),

		DailyCaps: map[domain.TransactionSubType]decimal.Decimal{
			domain.SubTypeAdRevenue:       getEnvDecimal("DAILY_CAP_AD_REVENUE", "10.00"),
			domain.SubTypeWatch:           getEnvDecimal("DAILY_CAP_WATCH", "5.00"),
			domain.SubTypeCreate:          getEnvDecimal("DAILY_CAP_CREATE", "2.00"),
			domain.SubTypeLikeBonus:       getEnvDecimal("DAILY_CAP_LIKE_BONUS", "0.50"),
			domain.SubTypeShareBonus:      getEnvDecimal("DAILY_CAP_SHARE_BONUS", "0.50"),
			domain.SubTypeReferralRevenue: getEnvDecimal("DAILY_CAP_REFERRAL_REVENUE", "5.00"),
		},

		BonusLimits: map[domain.TransactionSubType]decimal.Decimal{
			domain.SubTypeCreate:         getEnvDecimal("BONUS_LIMIT_CREATE", "0.10"),
			domain.SubTypeReferralSignup: getEnvDecimal("BONUS_LIMIT_REFERRAL_SIGNUP", "2.00"),
			domain.SubTypeDailyStreak:    getEnvDecimal("BONUS_LIMIT_DAILY_STREAK", "5.00"),
			domain.SubTypeLikeBonus:      getEnvDecimal("BONUS_LIMIT_LIKE_BONUS", "0.05"),
			domain.SubTypeShareBonus:     getEnvDecimal("BONUS_LIMIT_SHARE_BONUS", "0.05"),
		},

		ReferrerBonus:       getEnvDecimal("REFERRER_BONUS", "0.05"),
		MinRevenueForBonus:  getEnvDecimal("MIN_REVENUE_FOR_BONUS", "0.01"),
		TrackingDuration:    getEnvDuration("REFERRAL_TRACKING_DURATION", 90*24*time.Hour),
		SignupBonusReferrer: getEnvDecimal("SIGNUP_BONUS_REFERRER", "1.00"),
		SignupBonusReferee:  getEnvDecimal("SIGNUP_BONUS_REFEREE", "0.50"),
		CodeMaxAttempts:     getEnvInt("REFERRAL_CODE_MAX_ATTEMPTS", 5),
		ShareLinkBase:       getEnv("SHARE_LINK_BASE", "https://reels.example.com/invite"),

		StreakBaseBonus:     getEnvDecimal("STREAK_BASE_BONUS", "1.00"),
		StreakCapMultiplier: getEnvInt("STREAK_CAP_MULTIPLIER", 5),

		SettlementDelay:    getEnvDuration("SETTLEMENT_DELAY", 24*time.Hour),
		SettlementInterval: getEnvDuration("SETTLEMENT_INTERVAL", 24*time.Hour),
		CleanupRetention:   getEnvDuration("CLEANUP_RETENTION", 90*24*time.Hour),
		CleanupInterval:    getEnvDuration("CLEANUP_INTERVAL", 24*time.Hour),
		RepairInterval:     getEnvDuration("REFERRAL_REPAIR_INTERVAL", time.Hour),
		JobPageSize:        getEnvInt("JOB_PAGE_SIZE", 500),
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvSlice(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		return strings.Split(value, ",")
	}
	return defaultValue
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func getEnvDecimal(key, fallback string) decimal.Decimal {
	if v := os.Getenv(key); v != "" {
		if d, err := decimal.NewFromString(v); err == nil {
			return d
		}
	}
	return decimal.RequireFromString(fallback)
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
