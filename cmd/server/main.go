package main // Entry point package

import (
	"context"
	"log"

	"github.com/joho/godotenv"    // loads .env files into the environment
	"github.com/labstack/echo/v4" // Echo web framework

	"github.com/iliyamo/train-seat-reservation/internal/config"
	"github.com/iliyamo/train-seat-reservation/internal/database"
	"github.com/iliyamo/train-seat-reservation/internal/engine"
	"github.com/iliyamo/train-seat-reservation/internal/handler"
	"github.com/iliyamo/train-seat-reservation/internal/ledger"
	"github.com/iliyamo/train-seat-reservation/internal/queue"
	"github.com/iliyamo/train-seat-reservation/internal/repository"
	"github.com/iliyamo/train-seat-reservation/internal/router"
)

func main() {
	_ = godotenv.Load() // .env is optional; real env vars win
	cfg := config.Load()

	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		log.Fatalf("database: %v", err)
	}
	if err := database.Migrate(context.Background(), db); err != nil {
		log.Fatalf("migrate: %v", err)
	}

	// Repositories over the shared pool.
	userRepo := repository.NewUserRepo(db)
	trainRepo := repository.NewTrainRepo(db)
	bookingRepo := repository.NewBookingRepo(db)

	// Reservation core: ledger derives occupancy from booking rows,
	// the engine orchestrates claims and persistence.
	seatLedger := ledger.New(bookingRepo)
	eng := engine.New(userRepo, trainRepo, bookingRepo, seatLedger)

	// Redis is optional; the rate limiter fails open without it.
	rdb := config.NewRedisClient()
	if rdb == nil {
		log.Println("redis unavailable; rate limiting disabled")
	}
	rlCfg := config.LoadRateLimitConfig()

	e := echo.New()
	router.RegisterRoutes(e)
	router.RegisterAuth(e, handler.NewAuthHandler(cfg, userRepo), cfg.JWTSecret)
	router.RegisterTrains(e, handler.NewTrainHandler(trainRepo, eng), cfg.AdminAPIKey)
	router.RegisterBookings(e, handler.NewBookingHandler(eng, bookingRepo, trainRepo, cfg.BookTimeout), cfg.JWTSecret, rlCfg, rdb)

	// Background consumer appends booking events to logs/booking.log.
	go func() {
		if err := queue.StartBookingConsumer(); err != nil {
			log.Printf("booking consumer stopped: %v", err)
		}
	}()

	addr := ":" + cfg.Port
	log.Printf("listening on %s (env=%s)", addr, cfg.Env)

	if err := e.Start(addr); err != nil {
		log.Fatal(err)
	}
}
