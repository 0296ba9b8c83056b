package jobs_test

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/astrbot-devs/console-go/internal/config"
	"github.com/astrbot-devs/console-go/internal/jobs"
	"github.com/astrbot-devs/console-go/internal/page"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeJobContext struct {
	cfg    *config.Config
	jobMgr *jobs.JobManager
}

func (f *fakeJobContext) Config() *config.Config       { return f.cfg }
func (f *fakeJobContext) Page() *page.Orchestrator     { return nil }
func (f *fakeJobContext) JobManager() *jobs.JobManager { return f.jobMgr }

func TestManagerRegisterAndStatus(t *testing.T) {
	ctx := &fakeJobContext{cfg: &config.Config{}}
	mgr := jobs.NewManager(ctx)
	assert.Empty(t, mgr.GetStatus())

	mgr.Register("jobA", func(ctx context.Context, app jobs.JobContext) {})
	mgr.Register("jobB", func(ctx context.Context, app jobs.JobContext) {})

	statuses := mgr.GetStatus()
	require.Len(t, statuses, 2)
	for _, s := range statuses {
		assert.Equal(t, "idle", s.Status)
	}
}

func TestManagerRunsJob(t *testing.T) {
	ctx := &fakeJobContext{cfg: &config.Config{}}
	mgr := jobs.NewManager(ctx)

	var ran atomic.Bool
	mgr.Register("jobA", func(ctx context.Context, app jobs.JobContext) {
		ran.Store(true)
	})

	require.NoError(t, mgr.RunJob("jobA", ctx))

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if ran.Load() {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	assert.True(t, ran.Load())
}

func TestManagerRejectsConcurrentRuns(t *testing.T) {
	ctx := &fakeJobContext{cfg: &config.Config{}}
	mgr := jobs.NewManager(ctx)

	release := make(chan struct{})
	mgr.Register("slow", func(ctx context.Context, app jobs.JobContext) {
		<-release
	})
	mgr.Register("other", func(ctx context.Context, app jobs.JobContext) {})

	require.NoError(t, mgr.RunJob("slow", ctx))
	err := mgr.RunJob("other", ctx)
	assert.Error(t, err, "only one job may run at a time")

	close(release)
}

func TestManagerUnknownJob(t *testing.T) {
	mgr := jobs.NewManager(nil)
	assert.Error(t, mgr.RunJob("nope", nil))
}

func TestManagerRecoversFromPanic(t *testing.T) {
	ctx := &fakeJobContext{cfg: &config.Config{}}
	mgr := jobs.NewManager(ctx)

	mgr.Register("bad", func(ctx context.Context, app jobs.JobContext) {
		panic("boom")
	})
	require.NoError(t, mgr.RunJob("bad", ctx))

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		statuses := mgr.GetStatus()
		if len(statuses) == 1 && statuses[0].Status == "failed" {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("expected panicking job to be marked failed")
}
