// cmd/main.go is the application entry point.
// It wires together all layers and starts the HTTP server.
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

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"golang.org/x/time/rate"

	"github.com/Shivanand-hulikatti/slot-booking/internal/cache"
	"github.com/Shivanand-hulikatti/slot-booking/internal/config"
	"github.com/Shivanand-hulikatti/slot-booking/internal/database"
	"github.com/Shivanand-hulikatti/slot-booking/internal/handler"
	"github.com/Shivanand-hulikatti/slot-booking/internal/model"
	"github.com/Shivanand-hulikatti/slot-booking/internal/repository"
	"github.com/Shivanand-hulikatti/slot-booking/internal/service"
	"github.com/Shivanand-hulikatti/slot-booking/internal/tracing"
)

func main() {
	ctx := context.Background()

	// ── 1. Load configuration ────────────────────────────────────────────
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	shutdownTracing, err := tracing.Setup(ctx, cfg.Tracing)
	if err != nil {
		log.Fatalf("tracing: %v", err)
	}
	defer func() {
		if err := shutdownTracing(context.Background()); err != nil {
			log.Printf("tracing shutdown: %v", err)
		}
	}()

	// ── 2. Open the store ────────────────────────────────────────────────
	var svc *service.BookingService
	switch cfg.StoreDriver {
	case config.DriverMemory:
		store := repository.NewMemoryStore()
		svc = service.NewBookingService(store.Centers(), store.Users(), store.Registrations())
		log.Println("✓ Using in-memory store")
	default:
		pool, err := database.NewPool(ctx, cfg.DB)
		if err != nil {
			log.Fatalf("database: %v", err)
		}
		defer pool.Close()
		log.Println("✓ Connected to PostgreSQL")

		if cfg.DB.Migrate {
			if err := database.Migrate(cfg.DB); err != nil {
				log.Fatalf("migrate: %v", err)
			}
		}

		svc = service.NewBookingService(
			repository.NewCenterRepository(pool),
			repository.NewUserRepository(pool),
			repository.NewRegistrationRepository(pool, cfg.Register.MaxAttempts),
		)
	}

	// ── 3. Wire up handlers ──────────────────────────────────────────────
	bookingHandler := handler.NewBookingHandler(
		svc,
		cache.New[model.Availability]("availability", cfg.Cache.TTL, cfg.Cache.CleanupInterval),
		cache.New[model.EligibilityResult]("eligibility", cfg.Cache.TTL, cfg.Cache.CleanupInterval),
	)
	registerLimit := handler.RateLimit(
		rate.Limit(cfg.Register.RatePerSecond),
		cfg.Register.RateBurst,
		cfg.Register.LimiterIdle,
	)

	// ── 4. Build the router ──────────────────────────────────────────────
	r := chi.NewRouter()

	// Global middleware stack
	r.Use(chimiddleware.Recoverer) // recover from panics, return 500
	r.Use(chimiddleware.RequestID) // attach request IDs
	r.Use(chimiddleware.RealIP)    // trust X-Forwarded-For
	r.Use(handler.Logger)          // access log
	r.Use(handler.CORS)

	bookingHandler.Routes(r, registerLimit)

	// ── 5. Start server with graceful shutdown ───────────────────────────
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Port),
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Run in background goroutine so we can listen for shutdown signal.
	go func() {
		log.Printf("✓ Server listening on http://localhost:%s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	// Block until SIGINT or SIGTERM.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("shutting down server…")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("graceful shutdown failed: %v", err)
		return
	}
	log.Println("server stopped")
}
