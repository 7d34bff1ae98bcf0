package cron

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/pkg/errors"
	cronv3 "github.com/robfig/cron/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	cron_config "github.com/customeros/replydesk/internal/cron/config"
	"github.com/customeros/replydesk/internal/logger"
	"github.com/customeros/replydesk/internal/utils"
)

type countingRefresher struct {
	calls     atomic.Int32
	appSource atomic.Value
	err       error
}

func (r *countingRefresher) Refresh(ctx context.Context) (bool, error) {
	r.calls.Add(1)
	r.appSource.Store(utils.GetAppSourceFromContext(ctx))
	return true, r.err
}

func getLogger() logger.Logger {
	appLogger := logger.NewAppLogger(&logger.Config{
		DevMode: true,
	})
	appLogger.InitLogger()
	return appLogger
}

func TestNewCronManager(t *testing.T) {
	cfg := &cron_config.Config{}
	log := getLogger()
	refresher := &countingRefresher{}

	cm := NewCronManager(cfg, log, refresher)

	assert.NotNil(t, cm)
	assert.Equal(t, cfg, cm.cfg)
	assert.Equal(t, log, cm.log)
	assert.NotNil(t, cm.jobIDs)
}

func TestCronManager_RegisterJobs(t *testing.T) {
	cm := NewCronManager(&cron_config.Config{
		CronScheduleHeartbeat:      "0 * * * * *",
		CronScheduleRefreshThreads: "@every 90s",
	}, getLogger(), &countingRefresher{})

	c, err := cm.newCron()

	require.NoError(t, err)
	assert.Len(t, c.Entries(), 2)
	assert.Contains(t, cm.jobIDs, JobHeartbeat)
	assert.Contains(t, cm.jobIDs, JobRefreshThreads)
}

func TestCronManager_InvalidSchedule(t *testing.T) {
	cm := NewCronManager(&cron_config.Config{CronScheduleRefreshThreads: "every now and then"}, getLogger(), &countingRefresher{})

	err := cm.Start()

	assert.Error(t, err)
	assert.Nil(t, cm.cron)
}

func TestCronManager_RefreshOnStart(t *testing.T) {
	refresher := &countingRefresher{err: errors.New("gmail unavailable")}
	cm := NewCronManager(&cron_config.Config{
		CronScheduleRefreshThreads: "@every 1h",
		RefreshOnStart:             true,
	}, getLogger(), refresher)

	require.NoError(t, cm.Start())
	defer cm.Stop()

	assert.Eventually(t, func() bool { return refresher.calls.Load() == 1 }, time.Second, 10*time.Millisecond)
	assert.Equal(t, appSourceCron, refresher.appSource.Load())
}

func TestCronManager_Stop(t *testing.T) {
	cm := NewCronManager(&cron_config.Config{}, getLogger(), nil)

	mockCron := cronv3.New()
	mockCron.Start()
	cm.cron = mockCron

	cm.Stop()

	select {
	case <-cm.stopCh:
		// Channel is closed as expected
	default:
		t.Error("Stop channel was not closed")
	}
}
