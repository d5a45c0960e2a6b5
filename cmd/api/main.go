package main

import (
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/nimasrn/outreach-engine/internal/config"
	"github.com/nimasrn/outreach-engine/internal/events"
	"github.com/nimasrn/outreach-engine/internal/handlers"
	"github.com/nimasrn/outreach-engine/internal/repository"
	"github.com/nimasrn/outreach-engine/internal/services"
	"github.com/nimasrn/outreach-engine/internal/unsubscribe"
	xhttp "github.com/nimasrn/outreach-engine/pkg/http"
	"github.com/nimasrn/outreach-engine/pkg/logger"
	"github.com/nimasrn/outreach-engine/pkg/pg"
	"github.com/nimasrn/outreach-engine/pkg/redis"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {

	err := config.Load(argContainsEnvPath())
	if err != nil {
		logger.Error("failed to load config", "error", err)
		return
	}
	logger.Info("starting api", "version", version, "commit", commit, "date", date)

	// transport (tcp for now)
	s := xhttp.NewServer(xhttp.DefaultServerOption)
	s.Server.ReadBufferSize = 1024 * 16
	s.Server.WriteBufferSize = 1024 * 16
	s.Use(xhttp.CompressMiddleware(6))
	s.Use(xhttp.TimeoutMiddleware(time.Second * 5))
	s.Use(xhttp.RequestLoggerMiddleware)
	s.Use(xhttp.RecoverMiddleware)
	s.Router = xhttp.CreateDefaultRouter()

	readConf := pg.Config{
		User:     config.Get().PostgresReadUser,
		Host:     config.Get().PostgresReadHost,
		Port:     config.Get().PostgresReadPort,
		Password: config.Get().PostgresReadPassword,
		Database: config.Get().PostgresReadDatabase,
	}
	writeConf := pg.Config{
		User:     config.Get().PostgresWriteUser,
		Host:     config.Get().PostgresWriteHost,
		Port:     config.Get().PostgresWritePort,
		Password: config.Get().PostgresWritePassword,
		Database: config.Get().PostgresWriteDatabase,
	}

	pgDebug := false
	if config.Get().AppEnv == "dev" {
		pgDebug = true
	}
	db, err := pg.CreateReadWrite(readConf, writeConf, pgDebug)
	if err != nil {
		logger.Error("failed connecting to pg", "error", err)
		return
	}

	redisAdap, err := redis.NewRedisAdapter("default", config.Get().RedisUniversalKeyPrefix, &redis.Options{
		Addrs:      []string{config.Get().RedisAddr},
		ClientName: "default",
		DB:         config.Get().RedisDatabase,
		Username:   config.Get().RedisUsername,
		Password:   config.Get().RedisPassword,
	})
	if err != nil {
		logger.Error("failed connecting to redis", "error", err)
		return
	}

	issuer, err := unsubscribe.NewIssuer(config.Get().UnsubscribeSecret, config.Get().UnsubscribeTTL)
	if err != nil {
		logger.Error("failed to create unsubscribe issuer", "error", err)
		return
	}

	leadRepo := repository.NewLeadRepository(db)
	linkRepo := repository.NewCampaignLeadRepository(db)
	sentRepo := repository.NewSentEmailRepository(db)
	suppressionRepo := repository.NewSuppressionRepository(db)

	// services
	healthService := services.NewHealthService(db, redisAdap)
	statsService := services.NewStatsService(events.NewStatsProjector(redisAdap), sentRepo)
	unsubscribeService := services.NewUnsubscribeService(issuer, suppressionRepo, leadRepo, linkRepo)

	// v1 handlers
	healthHandler := handlers.NewHealthHandler(healthService)
	statsHandler := handlers.NewStatsHandler(statsService)
	unsubscribeHandler := handlers.NewUnsubscribeHandler(unsubscribeService)

	g := s.Router.Group("/api/v1")
	handlers.RegisterHealthRoutes(g, healthHandler)
	handlers.RegisterStatsRoutes(g, statsHandler)
	handlers.RegisterUnsubscribeRoutes(g, unsubscribeHandler)

	// Create new server
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)

	go func() {
		var err = s.ListenAndServe(config.Get().HttpListenAddr)
		if err != nil {
			logger.Error("error in running http-server", "error", err)
		}
	}()

	select {
	case <-c:
		s.Shutdown()
	}
}

func argContainsEnvPath() string {
	for _, v := range os.Args {
		if strings.Contains(v, "--env=") {
			s := strings.Split(v, "=")
			if _, err := os.Open(s[1]); err != nil {
				logger.Error("failed to open the passed env file, got error" + err.Error())
				return ""
			}
			return s[1]
		}
	}
	return ""
}
