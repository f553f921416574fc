package sweeper

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"go.uber.org/zap"
)

// Queue is the asynq queue purge and sweep tasks run on.
const Queue = "maintenance"

// purgeDelay gives a transient storage failure a moment before the retry.
const purgeDelay = 5 * time.Second

// Enqueuer queues purge tasks on asynq.
type Enqueuer struct {
	client *asynq.Client
}

// NewEnqueuer connects to the Redis behind redisURL.
func NewEnqueuer(redisURL string) (*Enqueuer, error) {
	opt, err := asynq.ParseRedisURI(redisURL)
	if err != nil {
		return nil, fmt.Errorf("asynq: parse REDIS_URL: %w", err)
	}
	return &Enqueuer{client: asynq.NewClient(opt)}, nil
}

// SchedulePurge queues one purge per conversation; scheduling a conversation
// that already has a pending task is a no-op.
func (e *Enqueuer) SchedulePurge(ctx context.Context, conversationID uuid.UUID) error {
	task, err := NewPurgeTask(conversationID)
	if err != nil {
		return err
	}
	_, err = e.client.EnqueueContext(ctx, task,
		asynq.Queue(Queue),
		asynq.TaskID("purge:"+conversationID.String()),
		asynq.ProcessIn(purgeDelay),
		asynq.MaxRetry(10),
	)
	if errors.Is(err, asynq.ErrTaskIDConflict) || errors.Is(err, asynq.ErrDuplicateTask) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("enqueue purge: %w", err)
	}
	return nil
}

func (e *Enqueuer) Close() error {
	return e.client.Close()
}

// Worker runs the asynq server that handles purge tasks and the scheduler
// that enqueues the periodic sweep.
type Worker struct {
	server    *asynq.Server
	scheduler *asynq.Scheduler
	mux       *asynq.ServeMux
	interval  time.Duration
	logger    *zap.Logger
}

func NewWorker(redisURL string, sweeper *Sweeper, interval time.Duration, logger *zap.Logger) (*Worker, error) {
	opt, err := asynq.ParseRedisURI(redisURL)
	if err != nil {
		return nil, fmt.Errorf("asynq: parse REDIS_URL: %w", err)
	}

	sugar := logger.Sugar()
	srv := asynq.NewServer(opt, asynq.Config{
		Concurrency: 4,
		Queues:      map[string]int{Queue: 1},
		Logger:      sugar,
		ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
			logger.Error("maintenance task failed",
				zap.String("type", task.Type()),
				zap.Error(err),
			)
		}),
	})

	mux := asynq.NewServeMux()
	mux.HandleFunc(TypePurge, sweeper.HandlePurge)
	mux.HandleFunc(TypeSweep, sweeper.HandleSweep)

	scheduler := asynq.NewScheduler(opt, &asynq.SchedulerOpts{
		Location: time.UTC,
		Logger:   sugar,
	})
	_, err = scheduler.Register(
		fmt.Sprintf("@every %s", interval),
		asynq.NewTask(TypeSweep, nil),
		asynq.Queue(Queue),
		asynq.Unique(interval),
	)
	if err != nil {
		return nil, fmt.Errorf("register sweep: %w", err)
	}

	return &Worker{server: srv, scheduler: scheduler, mux: mux, interval: interval, logger: logger}, nil
}

// Run starts the server and the scheduler and blocks until ctx is done,
// then shuts both down.
func (w *Worker) Run(ctx context.Context) error {
	if err := w.server.Start(w.mux); err != nil {
		return fmt.Errorf("start asynq server: %w", err)
	}
	if err := w.scheduler.Start(); err != nil {
		w.server.Shutdown()
		return fmt.Errorf("start asynq scheduler: %w", err)
	}
	w.logger.Info("sweeper worker started", zap.Duration("interval", w.interval))

	<-ctx.Done()

	w.scheduler.Shutdown()
	w.server.Shutdown()
	w.logger.Info("sweeper worker stopped")
	return nil
}
