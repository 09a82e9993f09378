package memory

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/strainwise/convmem/pkg/eventbus"
)

// RetentionSweeper deletes conversations older than each user's
// RetentionDays. A RetentionDays of zero keeps history forever.
type RetentionSweeper struct {
	conversations *ConversationStore
	settings      *SettingsStore
	logger        hubLogger
	recorder      Recorder
	events        emitter
	now           func() time.Time
	loop          *intervalLoop
}

// NewRetentionSweeper creates a sweeper running every interval once started.
// A zero interval never sweeps in the background.
func NewRetentionSweeper(conversations *ConversationStore, settings *SettingsStore, interval time.Duration, logger hubLogger) *RetentionSweeper {
	if logger == nil {
		logger = &nopHubLogger{}
	}
	return &RetentionSweeper{
		conversations: conversations,
		settings:      settings,
		logger:        logger,
		recorder:      nopRecorder{},
		events:        emitter{logger: logger},
		now:           time.Now,
		loop:          newIntervalLoop(interval),
	}
}

// SweepUser applies the retention policy of one user.
func (s *RetentionSweeper) SweepUser(ctx context.Context, userID string) (int, error) {
	settings, err := s.settings.Get(ctx, userID)
	if err != nil {
		return 0, err
	}
	if settings.RetentionDays <= 0 {
		return 0, nil
	}
	cutoff := s.now().UTC().AddDate(0, 0, -settings.RetentionDays)
	return s.conversations.DeleteOlderThan(ctx, userID, cutoff)
}

// Sweep applies retention to every user with stored history, using the
// default settings for users who never changed theirs.
func (s *RetentionSweeper) Sweep(ctx context.Context) (int, error) {
	users, err := s.conversations.Users(ctx)
	if err != nil {
		s.recorder.RecordRetentionSweep("error", 0)
		return 0, err
	}

	var (
		deleted int
		errs    []error
	)
	for _, userID := range users {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		n, err := s.SweepUser(ctx, userID)
		deleted += n
		if err != nil {
			errs = append(errs, fmt.Errorf("sweep %s: %w", userID, err))
		}
	}

	err = errors.Join(errs...)
	status := "success"
	if err != nil {
		status = "error"
	}
	s.recorder.RecordRetentionSweep(status, deleted)
	if deleted > 0 {
		s.logger.Info("retention sweep removed conversations", "users", len(users), "deleted", deleted)
	}
	s.events.system(ctx, eventbus.EventRetentionSwept, eventbus.RetentionSweptPayload{Users: len(users), Deleted: deleted})
	return deleted, err
}

// Start begins background sweeping.
func (s *RetentionSweeper) Start(ctx context.Context) {
	s.loop.start(ctx, func(ctx context.Context) error {
		_, err := s.Sweep(ctx)
		return err
	}, func(err error) {
		s.logger.Warn("retention sweep incomplete", "error", err)
	})
}

// Stop halts background sweeping.
func (s *RetentionSweeper) Stop() {
	s.loop.stop()
}
