package main

import (
	"log"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"

	"github.com/sdeskhq/support-desk/internal/auth"
	"github.com/sdeskhq/support-desk/internal/config"
	"github.com/sdeskhq/support-desk/internal/database"
	"github.com/sdeskhq/support-desk/internal/handler"
	"github.com/sdeskhq/support-desk/internal/middleware"
	"github.com/sdeskhq/support-desk/internal/queue"
	"github.com/sdeskhq/support-desk/internal/repository"
	"github.com/sdeskhq/support-desk/internal/router"
	"github.com/sdeskhq/support-desk/internal/service"
)

func main() {
	_ = godotenv.Load() // .env is optional; real env wins

	cfg := config.Load()

	db, err := database.Open(cfg)
	if err != nil {
		log.Fatalf("database: %v", err)
	}

	users := repository.NewUserRepo(db)
	roles := repository.NewRoleRepo(db)
	tokens := repository.NewTokenRepo(db)
	tickets := repository.NewTicketRepo(db)

	authority := auth.NewAuthority(cfg.JWTSecret, cfg.AccessTTL, cfg.RefreshTTL, tokens, users)

	// Background pieces: audit-log consumer and the expired-token
	// sweep. Neither touches the request path.
	go func() {
		if err := queue.StartAuditConsumer(); err != nil {
			log.Printf("audit-consumer stopped: %v", err)
		}
	}()
	sweeper, err := service.StartSweeper(cfg.SweepSchedule, authority)
	if err != nil {
		log.Fatalf("token-sweeper: %v", err)
	}
	defer sweeper.Stop()

	e := echo.New()
	router.RegisterRoutes(e)
	router.RegisterAPI(e, router.Deps{
		Auth:       handler.NewAuthHandler(cfg, authority, users),
		UserAdmin:  handler.NewUserAdminHandler(cfg, users, roles),
		RoleAdmin:  handler.NewRoleAdminHandler(cfg, roles, users),
		Tickets:    handler.NewTicketHandler(cfg, tickets),
		Gate:       middleware.Authenticate(authority, users, cfg.RequestTimeout),
		LoginLimit: middleware.LoginRateLimit(config.LoadLoginRateLimitConfig(), config.NewRedisClient()),
	})

	addr := ":" + cfg.Port
	log.Printf("listening on %s (env=%s)", addr, cfg.Env)
	if err := e.Start(addr); err != nil {
		log.Fatal(err)
	}
}
