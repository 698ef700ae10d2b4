package main

import (
	"log"
	"time"

	"github.com/DataDog/datadog-go/statsd"
	"github.com/hibiken/asynq"
	"github.com/sirupsen/logrus"

	"github.com/takes-mobile/takes-server/api"
	"github.com/takes-mobile/takes-server/config"
	"github.com/takes-mobile/takes-server/internal/scheduler"
	"github.com/takes-mobile/takes-server/storage"
	"github.com/takes-mobile/takes-server/storage/postgres"
)

func main() {
	cfg, err := config.ReadConfig("config")
	if err != nil {
		log.Fatalf("failed to read config: %v", err)
	}

	redisAddr := cfg.Redis.Host + ":" + cfg.Redis.Port
	redisOpts := asynq.RedisClientOpt{
		Addr:     redisAddr,
		Username: cfg.Redis.User,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	}

	redisStorage, err := storage.NewRedisStorage(cfg)
	if err != nil {
		log.Fatalf("failed to connect to redis: %v", err)
	}
	db, err := postgres.NewPostgresBackend(cfg.Database.DSN)
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}
	blockStorage, err := storage.NewBlockStorage(cfg)
	if err != nil {
		log.Fatalf("failed to initialize block storage: %v", err)
	}

	sdClient, err := statsd.New("127.0.0.1:8125")
	if err != nil {
		log.Fatalf("failed to initialize statsd client: %v", err)
	}

	client := asynq.NewClient(redisOpts)
	inspector := asynq.NewInspector(redisOpts)

	schedulerService, err := scheduler.NewSchedulerService(
		db,
		logrus.WithField("service", "scheduler").Logger,
		client,
		time.Duration(cfg.Scheduler.Interval)*time.Second,
		cfg.Scheduler.ArchiveSchedule,
	)
	if err != nil {
		log.Fatalf("failed to initialize scheduler: %v", err)
	}
	schedulerService.Start()
	defer schedulerService.Stop()

	server := api.NewServer(cfg, redisStorage, client, inspector, sdClient, db, blockStorage)
	if err := server.StartServer(); err != nil {
		log.Fatalf("server exited: %v", err)
	}
}
