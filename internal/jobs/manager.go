package jobs

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/astrbot-devs/console-go/internal/config"
	"github.com/astrbot-devs/console-go/internal/page"
)

// JobContext provides the dependencies a background job needs. The core.App
// struct implements this interface.
type JobContext interface {
	Config() *config.Config
	Page() *page.Orchestrator
	JobManager() *JobManager
}

type jobTask func(ctx context.Context, app JobContext)

type JobStatus struct {
	Name      string    `json:"name"`
	Status    string    `json:"status"` // "idle", "running", "success", "failed"
	Message   string    `json:"message"`
	StartTime time.Time `json:"start_time,omitempty"`
	EndTime   time.Time `json:"end_time,omitempty"`
}

// JobManager tracks registered background jobs and serializes their runs:
// only one job executes at a time, whether triggered manually or on
// schedule.
type JobManager struct {
	mu      sync.Mutex
	jobs    map[string]jobTask
	status  map[string]*JobStatus
	running bool
	appCtx  JobContext
}

func NewManager(appCtx JobContext) *JobManager {
	return &JobManager{
		jobs:   make(map[string]jobTask),
		status: make(map[string]*JobStatus),
		appCtx: appCtx,
	}
}

func (jm *JobManager) Register(name string, task jobTask) {
	jm.mu.Lock()
	defer jm.mu.Unlock()
	jm.jobs[name] = task
	jm.status[name] = &JobStatus{Name: name, Status: "idle"}
}

// RunJob starts the named job in the background. Returns an error when a job
// is already running or the name is unknown.
func (jm *JobManager) RunJob(name string, app JobContext) error {
	jm.mu.Lock()
	if jm.running {
		jm.mu.Unlock()
		return fmt.Errorf("a job is already running")
	}

	task, ok := jm.jobs[name]
	if !ok {
		jm.mu.Unlock()
		return fmt.Errorf("job '%s' not found", name)
	}

	jm.running = true
	status := jm.status[name]
	status.Status = "running"
	status.StartTime = time.Now()
	status.Message = "Job started..."
	jm.mu.Unlock()

	log.Printf("Starting job: %s", name)
	go func() {
		defer func() {
			r := recover()
			if r != nil {
				log.Printf("Job '%s' panicked: %v", name, r)
			}

			jm.mu.Lock()
			if r != nil {
				status.Status = "failed"
				status.Message = fmt.Sprintf("Job panicked: %v", r)
			}
			status.EndTime = time.Now()
			if status.Status == "running" {
				status.Status = "success"
				status.Message = "Job completed successfully."
			}
			jm.running = false
			jm.mu.Unlock()
			log.Printf("Finished job: %s", name)
		}()

		task(context.Background(), app)
	}()
	return nil
}

func (jm *JobManager) GetStatus() []*JobStatus {
	jm.mu.Lock()
	defer jm.mu.Unlock()

	// Copies, so callers never read a status struct the job goroutine is
	// still writing.
	statuses := make([]*JobStatus, 0, len(jm.status))
	for _, s := range jm.status {
		c := *s
		statuses = append(statuses, &c)
	}
	return statuses
}
