package main

import (
	"context"
	"log"
	"strings"
	"time"

	"github.com/Conceptual-Machines/magda-markov/internal/api"
	"github.com/Conceptual-Machines/magda-markov/internal/config"
	"github.com/Conceptual-Machines/magda-markov/internal/database"
	"github.com/Conceptual-Machines/magda-markov/internal/metrics"
	"github.com/Conceptual-Machines/magda-markov/internal/services"
	"github.com/Conceptual-Machines/magda-markov/internal/store"
	"github.com/getsentry/sentry-go"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
)

const (
	sentryFlushTimeout    = 2 * time.Second
	environmentProduction = "production"
)

// releaseVersion is set via ldflags during build
var releaseVersion = "dev"

// GetVersion returns the current release version
func GetVersion() string {
	return releaseVersion
}

func main() {
	// Load environment variables
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	// Load configuration
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		log.Fatal("Invalid configuration:", err)
	}

	// Initialize Sentry
	if cfg.SentryDSN != "" {
		if err := sentry.Init(sentry.ClientOptions{
			Dsn:              cfg.SentryDSN,
			Environment:      cfg.Environment,
			Release:          "magda-markov@" + releaseVersion,
			EnableTracing:    true,
			TracesSampleRate: 1.0,
			EnableLogs:       true,
			Debug:            cfg.Environment != environmentProduction,
			BeforeSend: func(event *sentry.Event, _ *sentry.EventHint) *sentry.Event {
				// Filter out sensitive data
				if event.Request != nil {
					event.Request.Headers = filterSensitiveHeaders(event.Request.Headers)
				}
				return event
			},
		}); err != nil {
			log.Printf("Failed to initialize Sentry: %v", err)
		} else {
			log.Printf("✅ Sentry initialized (environment: %s, release: %s)", cfg.Environment, releaseVersion)
			defer sentry.Flush(sentryFlushTimeout)
		}
	} else {
		log.Println("⚠️  Sentry not configured (SENTRY_DSN not set)")
	}

	chainStore, err := openStore(cfg)
	if err != nil {
		sentry.CaptureException(err)
		log.Fatal("Failed to open chain store:", err)
	}

	cloudwatch, err := metrics.NewClient(context.Background(), cfg.Environment)
	if err != nil {
		log.Fatal("Failed to create metrics client:", err)
	}
	recorder := metrics.Multi{metrics.NewSentryMetrics(), cloudwatch}

	limits := services.Limits{
		MaxStates:           cfg.MaxStates,
		MaxGenerationLength: cfg.MaxGenerationLength,
	}
	chains := services.NewChainService(chainStore, recorder, limits)
	composer := services.NewComposer(chains, recorder, limits, cfg.DefaultVelocity)

	// Set Gin mode
	if cfg.Environment == environmentProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	router := api.SetupRouter(cfg, api.Deps{
		Chains:   chains,
		Composer: composer,
		Recorder: recorder,
	}, GetVersion())

	log.Printf("🚀 Starting server on port %s (store: %s, auth: %s)", cfg.Port, chainStore.Name(), cfg.AuthMode)
	if err := router.Run(":" + cfg.Port); err != nil {
		sentry.CaptureException(err)
		log.Fatal("Failed to start server:", err)
	}
}

// openStore returns the postgres store when DATABASE_URL is set and the
// in-memory store otherwise.
func openStore(cfg *config.Config) (store.Store, error) {
	if !cfg.UsesDatabase() {
		log.Println("⚠️  DATABASE_URL not set, chains are kept in memory")
		return store.NewMemoryStore(), nil
	}

	db, err := database.Connect(cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}
	if err := database.Migrate(db); err != nil {
		return nil, err
	}
	return store.NewGormStore(db), nil
}

func filterSensitiveHeaders(headers map[string]string) map[string]string {
	filtered := make(map[string]string)
	sensitiveKeys := map[string]bool{
		"authorization": true,
		"cookie":        true,
		"x-api-key":     true,
		"x-user-email":  true,
	}

	for k, v := range headers {
		if sensitiveKeys[strings.ToLower(k)] {
			filtered[k] = "[REDACTED]"
		} else {
			filtered[k] = v
		}
	}
	return filtered
}
