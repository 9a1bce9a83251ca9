package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"

	"github.com/duohabit/duohabit/internal/cache"
	"github.com/duohabit/duohabit/internal/config"
	"github.com/duohabit/duohabit/internal/database"
	"github.com/duohabit/duohabit/internal/handler"
	"github.com/duohabit/duohabit/internal/queue"
	"github.com/duohabit/duohabit/internal/repository"
	"github.com/duohabit/duohabit/internal/router"
)

func main() {
	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()
	cfg := config.Load()

	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		log.Fatalf("database: %v", err)
	}
	defer db.Close()

	// Redis backs the view cache; without it the cache degrades to an
	// in-process map, correct but not shared across instances.
	var backend cache.Backend
	if rdb := config.NewRedisClient(); rdb != nil {
		backend = cache.NewRedisBackend(rdb)
		log.Printf("view cache: redis")
	} else {
		backend = cache.NewMemoryBackend()
		log.Printf("view cache: redis unavailable, using in-process memory")
	}
	views := cache.NewView(backend, cfg.CachePrefix, cfg.CacheTTL)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.AMQPURL != "" {
		go queue.StartRowChangeConsumer(ctx, cfg.AMQPURL, views)
	} else {
		log.Printf("row-change consumer disabled: RABBITMQ_URL not set")
	}

	users := repository.NewUserRepo(db)
	tokens := repository.NewTokenRepo(db)
	couples := repository.NewCoupleRepo(db)
	habits := repository.NewHabitRepo(db)
	completions := repository.NewCompletionRepo(db)
	notes := repository.NewNoteRepo(db)

	auth := handler.NewAuthHandler(cfg, users, tokens, views)
	partner := handler.NewPartnerHandler(cfg, users, couples, views)
	habit := handler.NewHabitHandler(cfg, habits, completions, couples, views)
	detail := handler.NewHabitDetailHandler(cfg, habits, completions, couples, views)
	note := handler.NewNoteHandler(cfg, notes, couples, views)

	e := echo.New()
	e.HideBanner = true
	router.RegisterPublic(e, auth)
	router.RegisterAPI(e, cfg.JWTSecret, auth, partner, habit, detail, note)

	addr := ":" + cfg.Port
	log.Printf("listening on %s (env=%s)", addr, cfg.Env)

	go func() {
		<-ctx.Done()
		_ = e.Shutdown(context.Background())
	}()
	if err := e.Start(addr); err != nil {
		log.Printf("server stopped: %v", err)
	}
}
