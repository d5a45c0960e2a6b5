package main

import (
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/nimasrn/outreach-engine/internal/allocator"
	"github.com/nimasrn/outreach-engine/internal/config"
	"github.com/nimasrn/outreach-engine/internal/events"
	"github.com/nimasrn/outreach-engine/internal/mailer"
	"github.com/nimasrn/outreach-engine/internal/render"
	"github.com/nimasrn/outreach-engine/internal/repository"
	"github.com/nimasrn/outreach-engine/internal/scheduler"
	"github.com/nimasrn/outreach-engine/internal/sequencer"
	"github.com/nimasrn/outreach-engine/internal/unsubscribe"
	"github.com/nimasrn/outreach-engine/internal/warmup"
	"github.com/nimasrn/outreach-engine/pkg/logger"
	"github.com/nimasrn/outreach-engine/pkg/pg"
	"github.com/nimasrn/outreach-engine/pkg/prom"
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
	cfg := config.Get()
	logger.Info("starting dispatcher", "version", version, "commit", commit, "date", date)

	readConf := pg.Config{
		User:     cfg.PostgresReadUser,
		Host:     cfg.PostgresReadHost,
		Port:     cfg.PostgresReadPort,
		Password: cfg.PostgresReadPassword,
		Database: cfg.PostgresReadDatabase,
	}
	writeConf := pg.Config{
		User:     cfg.PostgresWriteUser,
		Host:     cfg.PostgresWriteHost,
		Port:     cfg.PostgresWritePort,
		Password: cfg.PostgresWritePassword,
		Database: cfg.PostgresWriteDatabase,
	}

	db, err := pg.CreateReadWrite(readConf, writeConf, cfg.AppEnv == "dev")
	if err != nil {
		logger.Error("failed connecting to pg", "error", err)
		return
	}

	redisAdap, err := redis.NewRedisAdapter("default", cfg.RedisUniversalKeyPrefix, &redis.Options{
		Addrs:      []string{cfg.RedisAddr},
		ClientName: "default",
		DB:         cfg.RedisDatabase,
		Username:   cfg.RedisUsername,
		Password:   cfg.RedisPassword,
	})
	if err != nil {
		logger.Error("failed connecting to redis", "error", err)
		return
	}

	relayConf := mailer.DefaultConfig(cfg.MailRelayPrimaryUrl, cfg.MailRelaySecondaryUrl)
	relayConf.Timeout = cfg.MailRelayTimeout
	transport, err := mailer.NewRelayClient(relayConf)
	if err != nil {
		logger.Error("failed to create mail relay client", "error", err)
		return
	}
	defer transport.Close()

	issuer, err := unsubscribe.NewIssuer(cfg.UnsubscribeSecret, cfg.UnsubscribeTTL)
	if err != nil {
		logger.Error("failed to create unsubscribe issuer", "error", err)
		return
	}

	stream, err := events.NewStream(redisAdap, events.StreamConfig{
		Name:          cfg.EventsStream,
		ConsumerGroup: cfg.EventsConsumerGroup,
		ConsumerName:  cfg.EventsConsumerName,
		MaxLen:        cfg.EventsMaxLen,
	})
	if err != nil {
		logger.Error("failed creating event stream", "error", err)
		return
	}

	campaignRepo := repository.NewCampaignRepository(db)
	accountRepo := repository.NewAccountRepository(db)
	leadRepo := repository.NewLeadRepository(db)
	linkRepo := repository.NewCampaignLeadRepository(db)
	sentRepo := repository.NewSentEmailRepository(db)
	suppressionRepo := repository.NewSuppressionRepository(db)
	warmupLogRepo := repository.NewWarmupLogRepository(db)

	seq := sequencer.New(sequencer.Deps{
		Campaigns:   campaignRepo,
		Accounts:    accountRepo,
		Leads:       leadRepo,
		Links:       linkRepo,
		Sent:        sentRepo,
		Suppression: suppressionRepo,
		Transport:   transport,
		Allocator:   allocator.New(nil),
		Renderer:    render.NewRenderer(nil),
		Tokens:      issuer,
	}, sequencer.Config{
		FrontendURL: cfg.FrontendURL,
		SendTimeout: cfg.DispatchSendTimeout,
	})

	guard := scheduler.NewGuard(redisAdap, scheduler.GuardConfig{
		LockTTL:     cfg.DispatchLeadLockTTL,
		FailureTTL:  cfg.DispatchFailureCounterTTL,
		MaxFailures: cfg.DispatchMaxTransientFailures,
	})

	dispatch := scheduler.NewDispatchService(linkRepo, accountRepo, seq, guard, stream, scheduler.Config{
		BatchSize:      cfg.DispatchBatchSize,
		PacingMin:      cfg.DispatchPacingMin,
		PacingMax:      cfg.DispatchPacingMax,
		IdleInterval:   cfg.DispatchIdleInterval,
		ErrorBackoff:   cfg.DispatchErrorBackoff,
		ReportInterval: cfg.DispatchMetricsReportInterval,
		MaxPages:       cfg.DispatchMaxScanPages,
	})

	var warm *warmup.WarmupService
	if cfg.WarmupEnabled {
		warm = warmup.NewWarmupService(accountRepo, warmupLogRepo, transport, stream, warmup.Config{
			Interval:         cfg.WarmupInterval,
			MaxPerCycle:      cfg.WarmupMaxPerCycle,
			PacingMin:        cfg.WarmupPacingMin,
			PacingMax:        cfg.WarmupPacingMax,
			ReplyProbability: cfg.WarmupReplyProbability,
			SendTimeout:      cfg.DispatchSendTimeout,
		})
	}

	hostname, err := os.Hostname()
	if err != nil {
		hostname = "unknown"
	}
	err = prom.Create(hostname, cfg.AppEnv, cfg.PromNamespace)
	if err != nil {
		logger.Error("failed to create prometheus metrics", "error", err)
		return
	}

	go func() {
		prom.ListenAndServer(cfg.AppDebugMetricsAddr, cfg.AppDebugMetricsURI)
	}()

	projector := events.NewStatsProjector(redisAdap)
	if err := stream.Consume(projector.Handle); err != nil {
		logger.Error("failed to start stats projector", "error", err)
		return
	}

	if err := dispatch.Start(); err != nil {
		logger.Error("failed to start dispatch scheduler", "error", err)
		return
	}
	if warm != nil {
		if err := warm.Start(); err != nil {
			logger.Error("failed to start warmup scheduler", "error", err)
		}
	}

	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)
	<-c

	logger.Info("shutting down dispatcher")
	dispatch.Stop()
	if warm != nil {
		warm.Stop()
	}
	if err := stream.Stop(10 * time.Second); err != nil {
		logger.Warn("event stream did not stop cleanly", "error", err)
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
