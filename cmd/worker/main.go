package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/hibiken/asynq"
	"github.com/sirupsen/logrus"

	"github.com/takes-mobile/takes-server/common"
	"github.com/takes-mobile/takes-server/config"
	"github.com/takes-mobile/takes-server/internal/bets"
	"github.com/takes-mobile/takes-server/internal/logging"
	"github.com/takes-mobile/takes-server/internal/tasks"
	"github.com/takes-mobile/takes-server/pkg/jupiter"
	"github.com/takes-mobile/takes-server/storage"
	"github.com/takes-mobile/takes-server/storage/postgres"
)

type worker struct {
	cfg          *config.Config
	db           storage.DatabaseStorage
	redis        *storage.RedisStorage
	blockStorage *storage.BlockStorage
	jupiter      *jupiter.Client
	client       *asynq.Client
}

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

	db, err := postgres.NewPostgresBackend(cfg.Database.DSN)
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}
	redisStorage, err := storage.NewRedisStorage(cfg)
	if err != nil {
		log.Fatalf("failed to connect to redis: %v", err)
	}
	blockStorage, err := storage.NewBlockStorage(cfg)
	if err != nil {
		log.Fatalf("failed to initialize block storage: %v", err)
	}

	w := &worker{
		cfg:          cfg,
		db:           db,
		redis:        redisStorage,
		blockStorage: blockStorage,
		jupiter:      jupiter.NewClient(cfg.Jupiter.PriceURL),
		client:       asynq.NewClient(redisOpts),
	}

	srv := asynq.NewServer(
		redisOpts,
		asynq.Config{
			Concurrency: 10,
			Queues: map[string]int{
				tasks.QUEUE_NAME: 10,
			},
		},
	)

	logging.Logger.WithFields(logrus.Fields{
		"redis": redisAddr,
	}).Info("Starting worker")

	mux := asynq.NewServeMux()
	mux.HandleFunc(tasks.TypeWinnerDraw, w.HandleWinnerDraw)
	mux.HandleFunc(tasks.TypeBetArchive, w.HandleBetArchive)

	if err := srv.Run(mux); err != nil {
		log.Fatalf("could not run worker: %v", err)
	}
}

// HandleWinnerDraw resolves one expired bet. The draw is guarded in the
// database, so replays and races with the API's draw endpoint collapse into
// a no-op here.
func (w *worker) HandleWinnerDraw(ctx context.Context, t *asynq.Task) error {
	var p tasks.WinnerDrawPayload
	if err := json.Unmarshal(t.Payload(), &p); err != nil {
		return fmt.Errorf("json.Unmarshal failed: %v: %w", err, asynq.SkipRetry)
	}
	logging.Logger.WithFields(logrus.Fields{
		"bet": p.BetID,
	}).Info("Drawing winner")

	bet, err := w.db.GetBet(ctx, p.BetID)
	if err != nil {
		if errors.Is(err, storage.ErrBetNotFound) {
			return fmt.Errorf("bet %s not found: %w", p.BetID, asynq.SkipRetry)
		}
		return fmt.Errorf("fail to get bet, err: %w", err)
	}
	if bet.Winner != nil {
		return nil
	}

	winnerIndex, err := w.jupiter.BestPerformingOption(ctx, bet.TokenAddresses)
	if err != nil {
		return fmt.Errorf("fail to rank option tokens, err: %w", err)
	}

	updated, err := w.db.DrawWinner(ctx, p.BetID, winnerIndex, time.Now())
	if err != nil {
		if errors.Is(err, bets.ErrAlreadyResolved) {
			return nil
		}
		return fmt.Errorf("fail to draw winner, err: %w", err)
	}
	if err := w.redis.DeleteBetCacheItem(ctx, p.BetID.String()); err != nil {
		logging.Logger.Errorf("fail to drop bet cache, err: %v", err)
	}

	logging.Logger.WithFields(logrus.Fields{
		"bet":    p.BetID,
		"winner": *updated.Winner,
		"pool":   updated.TotalPool,
	}).Info("Winner drawn")

	archive := tasks.BetArchivePayload{BetID: p.BetID}
	task, err := archive.Task()
	if err != nil {
		return fmt.Errorf("fail to build archive task, err: %w", err)
	}
	_, err = w.client.Enqueue(task,
		asynq.TaskID("archive-"+p.BetID.String()),
		asynq.Queue(tasks.QUEUE_NAME),
		asynq.Timeout(2*time.Minute),
		asynq.Retention(time.Hour))
	if err != nil && !errors.Is(err, asynq.ErrTaskIDConflict) {
		logging.Logger.Errorf("fail to enqueue archive task, err: %v", err)
	}
	return nil
}

// HandleBetArchive snapshots a completed bet with its participant list to
// block storage and marks the row archived.
func (w *worker) HandleBetArchive(ctx context.Context, t *asynq.Task) error {
	var p tasks.BetArchivePayload
	if err := json.Unmarshal(t.Payload(), &p); err != nil {
		return fmt.Errorf("json.Unmarshal failed: %v: %w", err, asynq.SkipRetry)
	}

	bet, err := w.db.GetBet(ctx, p.BetID)
	if err != nil {
		if errors.Is(err, storage.ErrBetNotFound) {
			return fmt.Errorf("bet %s not found: %w", p.BetID, asynq.SkipRetry)
		}
		return fmt.Errorf("fail to get bet, err: %w", err)
	}
	if bet.Winner == nil {
		return fmt.Errorf("bet %s has no winner yet: %w", p.BetID, asynq.SkipRetry)
	}

	snapshot, err := json.Marshal(bet)
	if err != nil {
		return fmt.Errorf("fail to marshal bet snapshot, err: %w", err)
	}
	compressed, err := common.CompressData(snapshot)
	if err != nil {
		return fmt.Errorf("fail to compress bet snapshot, err: %w", err)
	}
	content := compressed
	if w.cfg.Archive.EncryptionPassword != "" {
		content, err = common.EncryptGCM(w.cfg.Archive.EncryptionPassword, compressed)
		if err != nil {
			return fmt.Errorf("fail to encrypt bet snapshot, err: %w", err)
		}
	}

	fileName := storage.ArchiveFileName(p.BetID.String())
	if err := w.blockStorage.UploadFileWithRetry(content, fileName, 3); err != nil {
		return fmt.Errorf("fail to upload bet snapshot, err: %w", err)
	}
	if err := w.db.MarkBetArchived(ctx, p.BetID, time.Now()); err != nil {
		return fmt.Errorf("fail to mark bet archived, err: %w", err)
	}

	logging.Logger.WithFields(logrus.Fields{
		"bet":  p.BetID,
		"file": fileName,
	}).Info("Bet archived")
	return nil
}
