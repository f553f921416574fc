package sweeper

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Loop sweeps in-process on a ticker. It stands in for the asynq worker when
// no Redis is configured.
type Loop struct {
	sweeper  *Sweeper
	interval time.Duration
	logger   *zap.Logger
}

func NewLoop(sweeper *Sweeper, interval time.Duration, logger *zap.Logger) *Loop {
	return &Loop{sweeper: sweeper, interval: interval, logger: logger}
}

// Run sweeps every interval until ctx is done.
func (l *Loop) Run(ctx context.Context) {
	ticker := time.NewTicker(l.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := l.sweeper.Sweep(ctx); err != nil && ctx.Err() == nil {
				l.logger.Warn("sweep failed", zap.Error(err))
			}
		}
	}
}

// NextSweep schedules purges by leaving them to the next periodic sweep;
// marked conversations are exactly what a sweep collects. Pair it with Loop.
type NextSweep struct {
	logger *zap.Logger
}

func NewNextSweep(logger *zap.Logger) *NextSweep {
	return &NextSweep{logger: logger}
}

func (n *NextSweep) SchedulePurge(_ context.Context, conversationID uuid.UUID) error {
	n.logger.Debug("purge deferred to next sweep", zap.String("conversation_id", conversationID.String()))
	return nil
}
