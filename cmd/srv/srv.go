package main

import (
	"context"
	"log"

	"github.com/bwmarrin/snowflake"
	"github.com/raffleworks/backend/config"
	"github.com/raffleworks/backend/internal/client"
	"github.com/raffleworks/backend/internal/domain"
	"github.com/raffleworks/backend/internal/repository"
	"github.com/raffleworks/backend/pkg/api/telegram"
	"github.com/raffleworks/backend/pkg/cache"
	"github.com/raffleworks/backend/pkg/logger"
	"github.com/raffleworks/backend/pkg/sqlitepool"
	"github.com/raffleworks/backend/pkg/storage"
	"github.com/raffleworks/backend/pkg/xcontext"
	"github.com/urfave/cli/v2"
)

type srv struct {
	ctx context.Context
	app *cli.App

	pool  *sqlitepool.Pool
	cache *cache.Cache

	storage     storage.Storage
	idGenerator *snowflake.Node

	participantRepo repository.ParticipantRepository
	lotteryRepo     repository.LotteryRepository
	broadcastRepo   repository.BroadcastRepository
	fraudLogRepo    repository.FraudLogRepository
	stateRepo       repository.RegistrationStateRepository

	fraudDomain        domain.FraudDomain
	drawDomain         domain.DrawDomain
	broadcastDomain    domain.BroadcastDomain
	registrationDomain domain.RegistrationDomain
	broadcastWorker    *domain.BroadcastWorker
}

func (s *srv) loadConfig(cctx *cli.Context) {
	configs, err := config.Load(cctx.String("config"))
	if err != nil {
		log.Fatal(err)
	}

	s.ctx = xcontext.WithConfigs(context.Background(), configs)
}

func (s *srv) loadLogger() {
	level := logger.ParseLevel(xcontext.Configs(s.ctx).LogLevel)
	s.ctx = xcontext.WithLogger(s.ctx, logger.NewLogger(level))
}

func (s *srv) loadDatabase() {
	cfg := xcontext.Configs(s.ctx).Database
	db, err := sqlitepool.Open(cfg)
	if err != nil {
		log.Fatal(err)
	}

	s.ctx = xcontext.WithDB(s.ctx, db)
	s.pool = sqlitepool.New(db, cfg)
}

func (s *srv) loadCache() {
	s.cache = cache.New(xcontext.Configs(s.ctx).Cache)
}

func (s *srv) loadStorage() {
	s.storage = storage.NewS3Storage(xcontext.Configs(s.ctx).Storage)
}

func (s *srv) loadRepos() {
	s.participantRepo = repository.NewParticipantRepository(s.cache)
	s.lotteryRepo = repository.NewLotteryRepository()
	s.broadcastRepo = repository.NewBroadcastRepository()
	s.fraudLogRepo = repository.NewFraudLogRepository()
	s.stateRepo = repository.NewRegistrationStateRepository()
}

func (s *srv) loadDomains() {
	var err error
	s.idGenerator, err = snowflake.NewNode(1)
	if err != nil {
		log.Fatal(err)
	}

	configs := xcontext.Configs(s.ctx)
	deliverer := client.NewTelegramDeliverer(telegram.New(configs.Telegram))

	s.fraudDomain = domain.NewFraudDomain(s.fraudLogRepo, s.pool)
	s.drawDomain = domain.NewDrawDomain(s.lotteryRepo, s.participantRepo, s.pool, s.cache)
	s.broadcastDomain = domain.NewBroadcastDomain(s.broadcastRepo, s.pool, s.idGenerator)
	s.registrationDomain = domain.NewRegistrationDomain(
		s.participantRepo, s.stateRepo, s.fraudLogRepo, s.fraudDomain, s.pool, s.storage)
	s.broadcastWorker = domain.NewBroadcastWorker(
		s.broadcastRepo, s.pool, deliverer, configs.Broadcast)
}
