package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"eco-engage-system/handlers"
	"eco-engage-system/middleware"
	"eco-engage-system/models"
	"eco-engage-system/services"
	"eco-engage-system/utils"
	"eco-engage-system/workers"

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

	app := fiber.New(fiber.Config{
		BodyLimit: 32 * 1024 * 1024, // icons only, nothing bigger comes through
	})

	// 🔐 GLOBAL: Only Gateway requests allowed — no exceptions
	app.Use(middleware.GatewayAuthMiddleware())

	allowedOriginsEnv := os.Getenv("ALLOWED_ORIGINS")
	if allowedOriginsEnv == "" {
		log.Println("⚠️  ALLOWED_ORIGINS environment variable not set, using default: http://localhost:3000")
		allowedOriginsEnv = "http://localhost:3000"
	}
	allowedOriginsList := strings.Split(allowedOriginsEnv, ",")
	for i, origin := range allowedOriginsList {
		allowedOriginsList[i] = strings.TrimSpace(origin)
	}

	app.Use(cors.New(cors.Config{
		AllowOrigins:     strings.Join(allowedOriginsList, ","),
		AllowMethods:     "GET,POST,PUT,DELETE,OPTIONS,PATCH,HEAD",
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization, X-Requested-With, X-Request-ID, User-Agent, Cache-Control, X-Service-Token, X-User-ID, X-User-Roles",
		ExposeHeaders:    "Content-Length, Content-Type, Authorization, X-Request-ID",
		AllowCredentials: true,
		MaxAge:           86400,
	}))

	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		log.Fatal("DATABASE_URL environment variable not set")
	}

	// TranslateError: the award path depends on unique violations surfacing
	// as gorm.ErrDuplicatedKey.
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{TranslateError: true})
	if err != nil {
		log.Fatal("failed to connect to database:", err)
	}

	if err := db.AutoMigrate(
		&models.PointsLedger{},
		&models.PeriodReset{},
		&models.DigestLog{},
		&models.AchievementDefinition{},
		&models.AchievementUnlock{},
		&models.ChallengeDefinition{},
		&models.ChallengeParticipation{},
		&models.MirroredUser{},
	); err != nil {
		log.Fatal("failed to migrate database:", err)
	}

	if err := utils.InitObjectStore(); err != nil {
		log.Fatal("failed to initialize object store:", err)
	}

	profileServiceURL := os.Getenv("PROFILE_SERVICE_URL")
	if profileServiceURL == "" {
		log.Fatal("PROFILE_SERVICE_URL environment variable not set")
	}
	serviceToken := os.Getenv("ECO_SERVICE_TOKEN")
	if serviceToken == "" {
		log.Fatal("ECO_SERVICE_TOKEN environment variable not set")
	}
	carbonServiceURL := os.Getenv("CARBON_SERVICE_URL") // optional: carbon criteria degrade without it
	notifyServiceURL := os.Getenv("NOTIFY_SERVICE_URL") // optional: events are logged without it

	notifier := services.NewNotifier(notifyServiceURL, serviceToken)
	identity := services.NewIdentityClient(db, profileServiceURL, serviceToken)
	carbon := services.NewCarbonClient(carbonServiceURL, serviceToken)

	awardService := services.NewAwardService(db, notifier)
	achievementService := services.NewAchievementService(db, awardService, identity, carbon)
	challengeService := services.NewChallengeService(db, awardService, achievementService)
	leaderboardService := services.NewLeaderboardService(db, identity)

	if err := achievementService.SeedCatalog(); err != nil {
		log.Fatal("failed to seed achievement catalog:", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	syncWorker := workers.NewIdentitySyncWorker(db, profileServiceURL, "/api/v1/public/profiles", serviceToken)
	go syncWorker.Start(ctx)

	sched, err := services.StartScheduler(db, identity, notifier)
	if err != nil {
		log.Fatal("failed to start scheduler:", err)
	}
	defer func() { _ = sched.Shutdown() }()

	handlers.SetupAchievementRoutes(app, achievementService)
	handlers.SetupChallengeRoutes(app, challengeService)
	handlers.SetupLeaderboardRoutes(app, leaderboardService)

	go func() {
		if err := app.Listen(":5300"); err != nil {
			log.Printf("Server error: %v", err)
		}
	}()

	log.Println("✅ Server running on http://localhost:5300")
	log.Println("✅ Identity Sync Worker running")
	log.Println("✅ Scheduler running (period resets hourly, digest daily)")

	<-ctx.Done()
	log.Println("Shutting down server...")
	if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
		log.Printf("Shutdown error: %v", err)
	}
}
