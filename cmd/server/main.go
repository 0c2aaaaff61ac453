package main

import (
	"context"                             // context package is needed for Redis operations
	"log"                                 // log package is needed for logging
	"referral_system/internal/api"        // Custom package for API handlers
	"referral_system/internal/config"     // Custom package for configuration
	"referral_system/internal/ledger"     // Referral ledger service
	"referral_system/internal/middleware" // Custom package for middleware
	"referral_system/internal/store"      // Data-access layer
	"time"                                // Cleanup interval

	"github.com/gin-gonic/gin"     // Gin web framework
	"github.com/redis/go-redis/v9" // Redis client
	"github.com/sirupsen/logrus"   // Logrus for structured logging
	"gorm.io/driver/mysql"         // MySQL driver for GORM
	"gorm.io/gorm"                 // GORM ORM library
)

// Main function to set up and run the server
func main() {
	cfg := config.LoadConfig() // Load configuration

	// Setup logger
	logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	// Setup Data Source Name (DSN) and connect to the database.
	// TranslateError is required: the store maps duplicate key errors to
	// retry referral code claims.
	dsn := cfg.DBUser + ":" + cfg.DBPassword + "@tcp(" + cfg.DBHost + ":" + cfg.DBPort + ")/" + cfg.DBName + "?parseTime=true"
	db, err := gorm.Open(mysql.Open(dsn), &gorm.Config{TranslateError: true})
	if err != nil {
		logrus.Fatalf("failed to connect to DB: %v", err) // Fatal error if DB connection fails
	}

	// Setup Redis client
	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr, // Redis server address
		Password: cfg.RedisPass, // Redis password
		DB:       cfg.RedisDB,   // Redis database number
	})

	// Test Redis connection
	_, err = redisClient.Ping(context.Background()).Result()
	if err != nil {
		logrus.Fatalf("failed to connect to Redis: %v", err)
	}

	// Referral ledger over the gorm-backed account store
	ledgerSvc := ledger.NewService(store.NewGormStore(db))

	// Rate limiter for write endpoints, with periodic cleanup of elapsed windows
	writeLimit := middleware.NewRateLimiter(cfg.RateLimitWindow, cfg.RateLimitMax)
	writeLimit.StartCleanup(5 * time.Minute)

	// Set Mode to Release if in production
	if cfg.IsProd {
		gin.SetMode(gin.ReleaseMode)
	}

	// Setup Gin
	r := gin.Default() // Gin router instance

	// Set trusted proxies for Gin
	if err := r.SetTrustedProxies([]string{"127.0.0.1"}); err != nil {
		logrus.Fatalf("failed to set trusted proxies: %v", err)
	}

	// Referral read routes (protected by wallet signature)
	referralGroup := r.Group("/referral")
	referralGroup.Use(middleware.WalletAuth(cfg))
	referralGroup.GET("/code", api.GetReferralCodeHandler(db, ledgerSvc))             // Referral code endpoint
	referralGroup.GET("/stats", api.ReferralStatsHandler(db, ledgerSvc, redisClient)) // Referral stats endpoint

	// Write routes: the rate limiter runs ahead of authentication, so
	// over-ceiling clients are turned away before any signature recovery
	// and failed-auth attempts still count against the window
	r.POST("/referral/claim", writeLimit.Handler(), middleware.WalletAuth(cfg), api.ClaimReferralHandler(db, ledgerSvc, redisClient)) // Claim endpoint, rate limited
	r.POST("/burn", writeLimit.Handler(), middleware.WalletAuth(cfg), api.BurnHandler(db))                                            // Burn endpoint, rate limited

	// Admin login issues the session token
	r.POST("/admin/login", api.AdminLoginHandler(cfg))

	// Admin read routes (protected, allow-listed admins only)
	adminGroup := r.Group("/admin")
	adminGroup.Use(middleware.AdminAuth(cfg))
	adminGroup.GET("/accounts", api.ListAccountsHandler(db, redisClient))                  // List accounts endpoint
	adminGroup.GET("/accounts/by-address/:address", api.GetAccountByAddressHandler(db))    // Account lookup by wallet address
	adminGroup.POST("/moderation", api.ModerationHandler())                                // Moderation intake endpoint

	// Admin write routes, rate limited ahead of token verification
	r.POST("/admin/accounts/:id/adjust", writeLimit.Handler(), middleware.AdminAuth(cfg), api.AdjustBalanceHandler(db))         // Balance adjustment
	r.POST("/admin/withdrawals/:id/approve", writeLimit.Handler(), middleware.AdminAuth(cfg), api.ApproveWithdrawalHandler(db)) // Withdrawal approval

	log.Println("Server running on " + cfg.AppPort) // Log server start
	r.Run(":" + cfg.AppPort)                        // Start the server on port cfg.AppPort
}
