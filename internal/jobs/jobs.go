package jobs

import (
	"context"
	"log"
	"time"

	"github.com/go-co-op/gocron"
)

// JobMarketRefresh is the scheduled marketplace re-fetch that powers the
// update-available notifications.
const JobMarketRefresh = "market-refresh"

// RegisterJobs wires the background tasks into the manager.
func RegisterJobs(jm *JobManager) {
	jm.Register(JobMarketRefresh, func(ctx context.Context, app JobContext) {
		app.Page().BackgroundRefresh(ctx)
	})
}

// StartJobs starts the background job scheduler.
func StartJobs(app JobContext) {
	s := gocron.NewScheduler(time.UTC)
	s.SingletonModeAll()

	startMarketRefreshJob(s, app)

	log.Println("Starting background job scheduler...")
	s.StartAsync()
}

func startMarketRefreshJob(s *gocron.Scheduler, app JobContext) {
	interval := app.Config().Market.RefreshIntervalMinutes
	if interval == 0 {
		log.Println("Market refresh interval is 0, scheduled refresh is disabled.")
		return
	}

	jobId := JobMarketRefresh
	log.Printf("Scheduling job: '%s' to run every %d minutes.", jobId, interval)

	_, err := s.Every(interval).Minutes().Do(func() {
		log.Println("Scheduler is triggering job:", jobId)
		// Submit through the manager so scheduled runs cannot collide with
		// manually triggered ones.
		err := app.JobManager().RunJob(jobId, app)
		if err != nil {
			log.Printf("Scheduled job '%s' could not start: %v", jobId, err)
		}
	})
	if err != nil {
		log.Printf("Error scheduling '%s' job: %v", jobId, err)
	}
}
