package main

import (
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/logger"
	recoverer "github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/spf13/viper"
	"github.com/streadway/amqp"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"stockmaster/internal/handlers"
	"stockmaster/internal/middleware"
	"stockmaster/internal/models"
	"stockmaster/internal/repositories"
	"stockmaster/internal/services"
	"stockmaster/pkg/rabbitmq"
)

func main() {
	// --- Configuration ---
	viper.SetDefault("APP_PORT", ":8080")
	viper.SetDefault("APP_ENV", "development")
	viper.SetDefault("DB_DRIVER", "sqlite")
	viper.SetDefault("DB_DSN", "stockmaster.db")
	viper.SetDefault("JWT_SECRET", "supersecretkey")
	viper.SetDefault("RABBITMQ_URL", "")
	viper.AutomaticEnv()

	appPort := viper.GetString("APP_PORT")
	environment := viper.GetString("APP_ENV")

	// --- Database ---
	db, err := openDatabase(viper.GetString("DB_DRIVER"), viper.GetString("DB_DSN"))
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	if err := db.AutoMigrate(&models.Product{}, &models.User{}); err != nil {
		log.Fatalf("Failed to migrate database: %v", err)
	}

	// --- RabbitMQ (optional: stock alerts are disabled when unavailable) ---
	var mqClient *rabbitmq.Client
	if url := viper.GetString("RABBITMQ_URL"); url != "" {
		mqClient, err = rabbitmq.NewClient(rabbitmq.Config{URL: url})
		if err != nil {
			log.Printf("Warning: RabbitMQ unavailable, stock alerts disabled: %v", err)
			mqClient = nil
		} else {
			defer mqClient.Close()
		}
	}
	var events rabbitmq.Publisher
	if mqClient != nil {
		events = mqClient
	}

	app := NewApp(db, events, environment, viper.GetString("JWT_SECRET"))

	// --- Stock alert consumer ---
	if mqClient != nil {
		log.Println("Starting stock alert consumer...")
		err := mqClient.ConsumeStockAlerts(func(msg amqp.Delivery) error {
			log.Printf("Stock alert (tag %d): %s", msg.DeliveryTag, string(msg.Body))
			return nil
		})
		if err != nil {
			log.Printf("Failed to start stock alert consumer: %v", err)
		}
	}

	// --- Start HTTP server with graceful shutdown ---
	log.Printf("Starting server on %s (env: %s)", appPort, environment)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		if err := app.Listen(appPort); err != nil {
			log.Fatalf("Server failed to start: %v", err)
		}
	}()

	<-quit
	log.Println("Shutting down server...")
	if err := app.Shutdown(); err != nil {
		log.Printf("Error during Fiber shutdown: %v", err)
	}
	log.Println("Server gracefully stopped")
}

// openDatabase opens a GORM handle for the configured driver. SQLite is the
// default for local use; set DB_DRIVER=postgres with a matching DB_DSN in
// production.
func openDatabase(driver, dsn string) (*gorm.DB, error) {
	if driver == "postgres" {
		return gorm.Open(postgres.Open(dsn), &gorm.Config{})
	}
	return gorm.Open(sqlite.Open(dsn), &gorm.Config{})
}

// NewApp wires repositories, services, handlers, and middleware into a Fiber
// app. events may be nil to disable stock alert publishing.
func NewApp(db *gorm.DB, events rabbitmq.Publisher, environment, jwtSecret string) *fiber.App {
	// Repositories
	productRepo := repositories.NewGORMProductRepository(db)
	userRepo := repositories.NewGORMUserRepository(db)

	// Services
	productService := services.NewProductService(productRepo, events)
	analyticsService := services.NewAnalyticsService(productRepo)
	authService := services.NewAuthService(userRepo, jwtSecret)

	// Handlers
	authGate := middleware.AuthRequired(authService)
	productHandler := handlers.NewProductHandler(productService, authGate)
	analyticsHandler := handlers.NewAnalyticsHandler(analyticsService, authGate)
	authHandler := handlers.NewAuthHandler(authService, authGate)
	systemHandler := handlers.NewSystemHandler(db, environment)

	app := fiber.New()

	// Middleware
	app.Use(logger.New())
	app.Use(recoverer.New())
	app.Use(cors.New(cors.Config{
		AllowHeaders: "Content-Type, Authorization",
		AllowMethods: "GET, POST, PUT, DELETE, OPTIONS",
	}))
	app.Use(limiter.New(limiter.Config{
		Max:        100,
		Expiration: 15 * time.Minute,
		LimitReached: func(c *fiber.Ctx) error {
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"error": "Too many requests from this IP, please try again later.",
			})
		},
	}))

	// Routes
	systemHandler.RegisterRoutes(app)
	api := app.Group("/api")
	productHandler.RegisterRoutes(api)
	analyticsHandler.RegisterRoutes(api)
	authHandler.RegisterRoutes(api)

	app.Use(handlers.NotFound)
	return app
}
