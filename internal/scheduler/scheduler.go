package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"github.com/takes-mobile/takes-server/internal/tasks"
	"github.com/takes-mobile/takes-server/storage"
)

// SchedulerService sweeps the bet table on an interval: expired unresolved
// bets get a winner-draw task, completed unarchived bets get an archive task
// on the configured cron schedule.
type SchedulerService struct {
	db               storage.DatabaseStorage
	logger           *logrus.Logger
	client           *asynq.Client
	interval         time.Duration
	archiveSchedule  cron.Schedule
	lastArchiveSweep time.Time
	done             chan struct{}
}

func NewSchedulerService(db storage.DatabaseStorage, logger *logrus.Logger, client *asynq.Client, interval time.Duration, archiveSpec string) (*SchedulerService, error) {
	if db == nil {
		return nil, fmt.Errorf("database storage is nil")
	}
	schedule, err := cron.ParseStandard(archiveSpec)
	if err != nil {
		return nil, fmt.Errorf("failed to parse archive schedule %q: %w", archiveSpec, err)
	}
	return &SchedulerService{
		db:               db,
		logger:           logger,
		client:           client,
		interval:         interval,
		archiveSchedule:  schedule,
		lastArchiveSweep: time.Now(),
		done:             make(chan struct{}),
	}, nil
}

func (s *SchedulerService) Start() {
	go s.run()
}

func (s *SchedulerService) Stop() {
	close(s.done)
}

func (s *SchedulerService) run() {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.logger.Info("Scheduler service started")

	for {
		select {
		case <-ticker.C:
			if err := s.enqueueExpiredBets(); err != nil {
				s.logger.Errorf("Failed to enqueue expired bets: %v", err)
			}
			if time.Now().After(s.archiveSchedule.Next(s.lastArchiveSweep)) {
				s.lastArchiveSweep = time.Now()
				if err := s.enqueueArchiveSweep(); err != nil {
					s.logger.Errorf("Failed to enqueue archive sweep: %v", err)
				}
			}
		case <-s.done:
			return
		}
	}
}

func (s *SchedulerService) enqueueExpiredBets() error {
	ctx := context.Background()
	expired, err := s.db.GetExpiredUnresolvedBets(ctx, time.Now())
	if err != nil {
		return fmt.Errorf("failed to get expired bets: %w", err)
	}

	for _, bet := range expired {
		payload := tasks.WinnerDrawPayload{
			BetID:          bet.ID,
			TokenAddresses: bet.TokenAddresses,
		}
		task, err := payload.Task()
		if err != nil {
			s.logger.Errorf("Failed to build winner draw task: %v", err)
			continue
		}
		// the task id makes re-enqueuing the same bet a no-op until the
		// draw completes and the sweep stops returning it
		_, err = s.client.Enqueue(task,
			asynq.TaskID("draw-"+bet.ID.String()),
			asynq.Queue(tasks.QUEUE_NAME),
			asynq.Timeout(2*time.Minute),
			asynq.Retention(time.Hour))
		if err != nil {
			if errors.Is(err, asynq.ErrTaskIDConflict) {
				continue
			}
			s.logger.Errorf("Failed to enqueue winner draw for bet %s: %v", bet.ID, err)
			continue
		}
		s.logger.WithFields(logrus.Fields{
			"bet":      bet.ID,
			"end_time": bet.EndTime,
		}).Info("Enqueued winner draw")
	}
	return nil
}

func (s *SchedulerService) enqueueArchiveSweep() error {
	ctx := context.Background()
	completed, err := s.db.GetUnarchivedCompletedBets(ctx, 100)
	if err != nil {
		return fmt.Errorf("failed to get unarchived bets: %w", err)
	}

	for _, bet := range completed {
		payload := tasks.BetArchivePayload{BetID: bet.ID}
		task, err := payload.Task()
		if err != nil {
			s.logger.Errorf("Failed to build archive task: %v", err)
			continue
		}
		_, err = s.client.Enqueue(task,
			asynq.TaskID("archive-"+bet.ID.String()),
			asynq.Queue(tasks.QUEUE_NAME),
			asynq.Timeout(2*time.Minute),
			asynq.Retention(time.Hour))
		if err != nil && !errors.Is(err, asynq.ErrTaskIDConflict) {
			s.logger.Errorf("Failed to enqueue archive for bet %s: %v", bet.ID, err)
		}
	}
	return nil
}
