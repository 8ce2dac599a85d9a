package sync

import (
	"context"
	"errors"
	"time"

	"github.com/go-co-op/gocron"
)

// Schedule runs the syncer every interval until the returned scheduler is
// stopped. Runs never overlap.
func (s *Syncer) Schedule(ctx context.Context, interval time.Duration) (*gocron.Scheduler, error) {
	scheduler := gocron.NewScheduler(time.UTC)
	scheduler.SingletonModeAll()

	_, err := scheduler.Every(interval).Do(func() {
		if _, err := s.Run(ctx); err != nil && !errors.Is(err, ErrInProgress) {
			s.logger.Error("scheduled sync failed", "error", err)
		}
	})
	if err != nil {
		return nil, err
	}

	scheduler.StartAsync()
	return scheduler, nil
}
