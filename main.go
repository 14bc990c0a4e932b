package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"spin-tournament-engine/handlers"
	"spin-tournament-engine/middleware"
	"spin-tournament-engine/models"
	"spin-tournament-engine/services"
	"spin-tournament-engine/utils"
	"spin-tournament-engine/workers"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/joho/godotenv"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("⚠️  No .env file found, reading environment variables directly")
	}

	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		log.Fatal("DATABASE_URL environment variable not set")
	}

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		log.Fatal("failed to connect to database:", err)
	}

	if err := db.AutoMigrate(
		&models.User{},
		&models.Tournament{},
		&models.UserTournamentStat{},
	); err != nil {
		log.Fatal("failed to migrate database:", err)
	}
	if err := services.EnsureIndexes(db); err != nil {
		log.Fatal("failed to create indexes:", err)
	}

	if err := utils.InitR2(); err != nil {
		log.Fatal("failed to initialize R2 client:", err)
	}

	gameTopicID, err := strconv.ParseInt(os.Getenv("GAME_TOPIC_ID"), 10, 64)
	if err != nil {
		log.Fatal("GAME_TOPIC_ID must be a numeric topic id")
	}

	// The bot token is optional in development; without it every outbound
	// message is dropped and the subscription bonus is zero.
	var notifier services.Notifier
	var subs services.SubscriptionChecker
	if os.Getenv("BOT_TOKEN") != "" {
		tg := services.NewTelegramNotifier()
		notifier, subs = tg, tg
	} else {
		log.Println("⚠️  BOT_TOKEN not set, notifications disabled")
		notifier, subs = services.NopNotifier{}, services.NopNotifier{}
	}

	// Redis is optional too; a nil cache serves leaderboards from the store.
	var cache *services.LeaderboardCache
	if addr := os.Getenv("REDIS_ADDR"); addr != "" {
		cache, err = services.NewLeaderboardCache(addr, os.Getenv("REDIS_PASSWORD"))
		if err != nil {
			log.Fatal("failed to connect to Redis:", err)
		}
		defer cache.Close()
	} else {
		log.Println("⚠️  REDIS_ADDR not set, leaderboard cache disabled")
	}

	rng := services.NewRandomSource()
	ledgerService := services.NewLedgerService(db, cache)
	spinService := services.NewSpinService(db, ledgerService, notifier, rng, gameTopicID)
	userService := services.NewUserService(db, notifier)
	quotaService := services.NewQuotaService(db, notifier, subs)
	warningService := services.NewWarningService(db, notifier)
	exportService := services.NewExportService(db)
	tournamentService := services.NewTournamentService(db, notifier, cache, rng, exportService, gameTopicID)

	if err := userService.SeedFakeUsers(); err != nil {
		log.Fatal("failed to seed synthetic players:", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sched, err := services.StartScheduler(quotaService, warningService, tournamentService, exportService)
	if err != nil {
		log.Fatal("failed to start scheduler:", err)
	}
	defer func() {
		if err := sched.Shutdown(); err != nil {
			log.Printf("⚠️  scheduler shutdown: %v", err)
		}
	}()

	autospinWorker := workers.NewAutospinWorker(db, spinService, rng)
	autospinWorker.Start(ctx)

	app := fiber.New(fiber.Config{AppName: "spin-tournament-engine"})
	app.Use(middleware.ServiceAuthMiddleware())

	allowedOrigins := os.Getenv("ALLOWED_ORIGINS")
	if allowedOrigins == "" {
		allowedOrigins = "http://localhost:3000"
	}
	app.Use(cors.New(cors.Config{
		AllowOrigins: strings.TrimSpace(allowedOrigins),
		AllowMethods: "GET,POST,PATCH,OPTIONS",
		AllowHeaders: "Origin, Content-Type, Accept, Authorization",
	}))

	handlers.SetupSpinRoutes(app, userService, spinService)
	handlers.SetupTournamentRoutes(app, tournamentService)

	go func() {
		if err := app.Listen(":5200"); err != nil {
			log.Printf("Server error: %v", err)
		}
	}()

	log.Println("✅ Server running on http://localhost:5200")
	log.Println("✅ Scheduler running")
	log.Println("✅ Autospin worker running (every 1m)")

	<-ctx.Done()
	log.Println("Shutting down server...")
	if err := app.Shutdown(); err != nil {
		log.Printf("⚠️  server shutdown: %v", err)
	}
}
