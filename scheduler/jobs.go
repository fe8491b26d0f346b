package scheduler

import (
	"context"
	"log"
	"time"

	"watchlist_backend/services"

	"github.com/go-co-op/gocron"
)

// Scheduler manages scheduled jobs
type Scheduler struct {
	cron   *gocron.Scheduler
	alerts *services.AlertService
}

// NewScheduler creates a new scheduler instance
func NewScheduler(alerts *services.AlertService) *Scheduler {
	return &Scheduler{
		cron:   gocron.NewScheduler(time.UTC),
		alerts: alerts,
	}
}

// Start starts all scheduled jobs
func (s *Scheduler) Start() {
	log.Println("Starting scheduler...")

	// Re-snapshot alert price fields every 15 minutes so stored snapshots
	// stay meaningfully fresh. This never evaluates or triggers alerts.
	s.cron.Every(15).Minutes().Do(func() {
		s.refreshAlertSnapshots()
	})

	s.cron.StartBlocking()
}

// Stop stops all scheduled jobs
func (s *Scheduler) Stop() {
	log.Println("Stopping scheduler...")
	s.cron.Stop()
}

// refreshAlertSnapshots refreshes price snapshots on every stored alert
func (s *Scheduler) refreshAlertSnapshots() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	refreshed, err := s.alerts.RefreshSnapshots(ctx)
	if err != nil {
		log.Printf("Alert snapshot refresh failed: %v", err)
		return
	}

	log.Printf("Alert snapshot refresh completed: refreshed=%d", refreshed)
}
