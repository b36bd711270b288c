/**
 * @description
 * This is the main entry point for the booking-service. It is responsible for
 * initializing all components of the service, including configuration, database connection,
 * external API clients, message brokers, repositories, the core application services,
 * the cron scheduler, and the HTTP server. It wires everything together and starts the service.
 *
 * @dependencies
 * - log, log/slog, net/http: Standard Go libraries for logging and HTTP server functionality.
 * - github.com/go-chi/chi/v5: For HTTP routing.
 * - github.com/jackc/pgx/v5: PostgreSQL driver.
 * - github.com/joho/godotenv: Optional .env loading for local development.
 * - internal/api, internal/app, internal/config, internal/store: Internal packages for the service.
 * - pkg/paymentclient, pkg/availabilityclient, pkg/rabbitmq: External service clients.
 */

package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"github.com/rossostudios/maidconnect-booking/internal/api"
	"github.com/rossostudios/maidconnect-booking/internal/app"
	"github.com/rossostudios/maidconnect-booking/internal/config"
	"github.com/rossostudios/maidconnect-booking/internal/store"
	"github.com/rossostudios/maidconnect-booking/pkg/availabilityclient"
	"github.com/rossostudios/maidconnect-booking/pkg/paymentclient"
	rmrabbit "github.com/rossostudios/maidconnect-booking/pkg/rabbitmq"
)

func main() {
	// Load .env if present; real environments inject variables directly.
	_ = godotenv.Load()

	cfg, err := config.LoadConfig(".")
	if err != nil {
		log.Fatalf("level=fatal component=bootstrap msg=\"config load failed\" err=%v", err)
	}
	if strings.TrimSpace(cfg.InternalAPIKey) == "" {
		log.Fatalf("level=fatal component=bootstrap msg=\"internal api key must be configured\" env=INTERNAL_API_KEY")
	}

	log.Printf("level=info component=bootstrap msg=\"starting booking-service\" port=%s", cfg.ServerPort)

	// Establish a connection pool to the PostgreSQL database.
	poolConfig, err := pgxpool.ParseConfig(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("level=fatal component=bootstrap msg=\"database url parse failed\" err=%v", err)
	}

	poolConfig.MaxConns = 100
	poolConfig.MinConns = 20
	poolConfig.MaxConnLifetime = 30 * time.Minute
	poolConfig.MaxConnIdleTime = 5 * time.Minute

	// Disable prepared statement caching to prevent conflicts
	poolConfig.ConnConfig.DefaultQueryExecMode = pgx.QueryExecModeSimpleProtocol

	dbpool, err := pgxpool.NewWithConfig(context.Background(), poolConfig)
	if err != nil {
		log.Fatalf("level=fatal component=bootstrap msg=\"database connection failed\" err=%v", err)
	}
	defer dbpool.Close()
	log.Println("level=info component=bootstrap msg=\"database connected\"")

	// Initialize the RabbitMQ producer; fall back to a no-op publisher so a
	// broker outage never blocks bookings.
	var producer rmrabbit.Publisher
	eventProducer, err := rmrabbit.NewEventProducer(cfg.RabbitMQURL)
	if err != nil {
		log.Printf("level=warn component=bootstrap msg=\"rabbitmq producer unavailable; using fallback\" err=%v", err)
		producer = &rmrabbit.EventProducerFallback{}
	} else {
		defer eventProducer.Close()
		producer = eventProducer
		log.Println("level=info component=bootstrap msg=\"rabbitmq producer connected\"")
	}

	// External collaborators.
	paymentClient := paymentclient.NewClient(cfg.PaymentAPIBaseURL, cfg.PaymentAPIKey)
	availabilityClient := availabilityclient.NewClient(cfg.AvailabilityServiceURL, cfg.AvailabilityServiceAPIKey)

	// Optional Redis for booking-create rate limiting.
	var redisClient *redis.Client
	if cfg.BookingCreateRateLimitPerMinute > 0 {
		if strings.TrimSpace(cfg.RedisURL) == "" {
			log.Println("level=warn component=bootstrap msg=\"redis url missing; booking rate limiting disabled\" env=REDIS_URL")
		} else {
			redisOptions, parseErr := redis.ParseURL(cfg.RedisURL)
			if parseErr != nil {
				log.Printf("level=warn component=bootstrap msg=\"redis url parse failed; booking rate limiting disabled\" err=%v", parseErr)
			} else {
				redisClient = redis.NewClient(redisOptions)
				pingCtx, cancelPing := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancelPing()
				if pingErr := redisClient.Ping(pingCtx).Err(); pingErr != nil {
					log.Printf("level=warn component=bootstrap msg=\"redis ping failed; booking rate limiting disabled\" err=%v", pingErr)
					redisClient.Close()
					redisClient = nil
				} else {
					defer redisClient.Close()
					log.Println("level=info component=bootstrap msg=\"redis connected\"")
				}
			}
		}
	}

	location, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		log.Printf("level=warn component=bootstrap msg=\"invalid timezone; using UTC\" tz=%s err=%v", cfg.Timezone, err)
		location = time.UTC
	}

	// Initialize the data access layer (repository).
	repository := store.NewPostgresRepository(dbpool)

	// Initialize the core application services.
	pricingResolver := app.NewPricingResolver(repository, time.Duration(cfg.PricingCacheTTLMinutes)*time.Minute)
	creditService := app.NewCreditService(repository, producer, cfg.DirectHireFee)
	bookingService := app.NewBookingService(repository, paymentClient, availabilityClient, creditService, pricingResolver, producer, cfg.Currency)
	planService := app.NewPlanService(repository, bookingService, producer, location, cfg.ResumeCutoffHour)
	bookingService.SetPlanNotifier(planService)

	var rateLimiter *app.RedisBookingRateLimiter
	if redisClient != nil {
		rateLimiter = app.NewRedisBookingRateLimiter(redisClient, cfg.RedisRateLimitPrefix)
	}

	// Initialize the API handlers and router.
	bookingHandlers := api.NewBookingHandlers(bookingService, creditService, rateLimiter, cfg.BookingCreateRateLimitPerMinute)
	planHandlers := api.NewPlanHandlers(planService)
	pricingHandlers := api.NewPricingHandlers(pricingResolver)
	authConfig := api.AuthConfig{
		JWKSURL:  cfg.ClerkJWKSURL,
		Audience: cfg.ClerkAudience,
		Issuer:   cfg.ClerkIssuer,
	}
	router := api.NewRouter(bookingHandlers, planHandlers, pricingHandlers, authConfig, cfg.InternalAPIKey)

	// Wire up the payment webhook consumer.
	paymentConsumer := app.NewPaymentEventConsumer(repository, bookingService)
	rabbitConsumer, err := rmrabbit.NewConsumer(cfg.RabbitMQURL)
	if err != nil {
		log.Printf("level=warn component=bootstrap msg=\"rabbitmq consumer unavailable; payment webhooks will not be consumed\" err=%v", err)
	} else {
		defer rabbitConsumer.Close()
		paymentBindings := map[string]func([]byte) bool{
			"payment.intent.requires_capture": paymentConsumer.HandleMessage,
			"payment.intent.succeeded":        paymentConsumer.HandleMessage,
			"payment.intent.failed":           paymentConsumer.HandleMessage,
			"payment.intent.cancelled":        paymentConsumer.HandleMessage,
		}
		if err := rabbitConsumer.ConsumeWithBindings("payment.events", cfg.PaymentEventQueue, paymentBindings); err != nil {
			log.Fatalf("level=fatal component=bootstrap msg=\"payment consumer start failed\" err=%v", err)
		}
	}

	// Start the cron scheduler for plan firing and payment reconciliation.
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	jobs := app.NewJobs(planService, bookingService, logger, time.Duration(cfg.ReconcileStaleAfterHours)*time.Hour, 100)
	scheduler := app.NewScheduler(jobs, logger, cfg)
	scheduler.Start()

	serverAddr := fmt.Sprintf(":%s", cfg.ServerPort)
	log.Printf("level=info component=http msg=\"server listening\" addr=%s", serverAddr)

	server := &http.Server{
		Addr:    serverAddr,
		Handler: router,
	}

	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("level=fatal component=http msg=\"server stopped unexpectedly\" err=%v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop
	log.Println("level=info component=http msg=\"shutdown started\"")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	<-scheduler.Stop().Done()
	if err := server.Shutdown(ctx); err != nil {
		log.Printf("level=error component=http msg=\"shutdown failed\" err=%v", err)
	}

	log.Println("level=info component=http msg=\"shutdown complete\"")
}
