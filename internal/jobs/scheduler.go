package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/dzlearn/masar/pkg/models"
	"github.com/dzlearn/masar/pkg/repository"
)

// ErrorLogRetention is how long resolved error logs are kept.
const ErrorLogRetention = 30 * 24 * time.Hour

// InactivityThreshold is how long a learner can be idle before a reminder.
const InactivityThreshold = 3 * 24 * time.Hour

// MaintenanceStore is the persistence surface of the periodic tasks.
type MaintenanceStore interface {
	repository.ResourceRepo
	repository.RoadmapRepo
	repository.TelemetryRepo
}

// Scheduler runs the recurring maintenance tasks: daily quality recompute,
// progress snapshots and inactivity scans, plus a weekly error-log purge.
type Scheduler struct {
	store  MaintenanceStore
	logger *slog.Logger

	daily  time.Duration
	weekly time.Duration

	stop chan struct{}
	wg   sync.WaitGroup
}

func NewScheduler(store MaintenanceStore, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		store:  store,
		logger: logger,
		daily:  24 * time.Hour,
		weekly: 7 * 24 * time.Hour,
		stop:   make(chan struct{}),
	}
}

// Start launches the ticker loop.
func (s *Scheduler) Start(ctx context.Context) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		dailyTick := time.NewTicker(s.daily)
		weeklyTick := time.NewTicker(s.weekly)
		defer dailyTick.Stop()
		defer weeklyTick.Stop()

		for {
			select {
			case <-s.stop:
				return
			case <-ctx.Done():
				return
			case <-dailyTick.C:
				s.runDaily(ctx)
			case <-weeklyTick.C:
				if _, err := s.PurgeResolvedErrors(ctx); err != nil {
					s.logger.Error("error log purge failed", "err", err)
				}
			}
		}
	}()
}

// Stop halts the loop and waits for it.
func (s *Scheduler) Stop() {
	close(s.stop)
	s.wg.Wait()
}

func (s *Scheduler) runDaily(ctx context.Context) {
	if n, err := s.RecomputeQualityScores(ctx); err != nil {
		s.logger.Error("quality recompute failed", "err", err)
	} else {
		s.logger.Info("quality scores recomputed", "resources", n)
	}

	if n, err := s.SnapshotProgress(ctx); err != nil {
		s.logger.Error("progress snapshots failed", "err", err)
	} else {
		s.logger.Info("progress snapshots written", "roadmaps", n)
	}

	if users, err := s.ScanInactiveLearners(ctx); err != nil {
		s.logger.Error("inactivity scan failed", "err", err)
	} else if len(users) > 0 {
		s.logger.Info("inactive learners due a reminder", "count", len(users))
	}
}

// RecomputeQualityScores recalculates each voted resource's quality score as
// the upvote share. Unvoted resources keep their seeded score.
func (s *Scheduler) RecomputeQualityScores(ctx context.Context) (int, error) {
	resources, err := s.store.ListActiveResources(ctx)
	if err != nil {
		return 0, fmt.Errorf("list resources: %w", err)
	}

	updated := 0
	for _, r := range resources {
		total := r.Upvotes + r.Downvotes
		if total == 0 {
			continue
		}
		score := float64(r.Upvotes) / float64(total)
		if err := s.store.UpdateQualityScore(ctx, r.ID, score); err != nil {
			return updated, fmt.Errorf("update quality score for resource %d: %w", r.ID, err)
		}
		updated++
	}

	return updated, nil
}

// SnapshotProgress writes today's progress snapshot for every active
// roadmap. Re-running on the same day overwrites that day's snapshot.
func (s *Scheduler) SnapshotProgress(ctx context.Context) (int, error) {
	roadmaps, err := s.store.ListActiveRoadmaps(ctx)
	if err != nil {
		return 0, fmt.Errorf("list active roadmaps: %w", err)
	}

	today := time.Now().UTC().Format("2006-01-02")
	written := 0
	for _, rm := range roadmaps {
		steps, err := s.store.ListSteps(ctx, rm.ID)
		if err != nil {
			return written, fmt.Errorf("list steps for roadmap %d: %w", rm.ID, err)
		}

		completed := 0
		for _, st := range steps {
			if st.Status == models.StepCompleted {
				completed++
			}
		}

		if _, err := s.store.CreateSnapshot(ctx, &models.ProgressSnapshot{
			UserID:         rm.UserID,
			RoadmapID:      rm.ID,
			StepsCompleted: completed,
			TotalSteps:     len(steps),
			SnapshotDate:   today,
		}); err != nil {
			return written, fmt.Errorf("snapshot roadmap %d: %w", rm.ID, err)
		}
		written++
	}

	return written, nil
}

// PurgeResolvedErrors deletes resolved error logs past the retention window.
func (s *Scheduler) PurgeResolvedErrors(ctx context.Context) (int64, error) {
	cutoff := time.Now().UTC().Add(-ErrorLogRetention).UnixMilli()
	return s.store.PurgeResolvedErrorLogs(ctx, cutoff)
}

// ScanInactiveLearners returns the users with an active roadmap and no
// recorded activity within the inactivity threshold.
func (s *Scheduler) ScanInactiveLearners(ctx context.Context) ([]int64, error) {
	roadmaps, err := s.store.ListActiveRoadmaps(ctx)
	if err != nil {
		return nil, fmt.Errorf("list active roadmaps: %w", err)
	}

	cutoff := time.Now().UTC().Add(-InactivityThreshold).UnixMilli()

	seen := make(map[int64]bool)
	var inactive []int64
	for _, rm := range roadmaps {
		if seen[rm.UserID] {
			continue
		}
		seen[rm.UserID] = true

		last, err := s.store.LastActivityByUser(ctx, rm.UserID)
		if err != nil {
			return inactive, fmt.Errorf("last activity for user %d: %w", rm.UserID, err)
		}
		if last == nil || last.Created < cutoff {
			inactive = append(inactive, rm.UserID)
		}
	}

	return inactive, nil
}
