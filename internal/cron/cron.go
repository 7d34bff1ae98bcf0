package cron

import (
	"context"
	"os"

	cronv3 "github.com/robfig/cron/v3"

	"github.com/customeros/replydesk/interfaces"
	cron_config "github.com/customeros/replydesk/internal/cron/config"
	"github.com/customeros/replydesk/internal/logger"
	"github.com/customeros/replydesk/internal/tracing"
	"github.com/customeros/replydesk/internal/utils"
)

const (
	JobHeartbeat      = "heartbeat"
	JobRefreshThreads = "refresh_threads"

	appSourceCron = "cron"
)

type CronManager struct {
	cfg       *cron_config.Config
	log       logger.Logger
	cron      *cronv3.Cron
	stopCh    chan struct{}
	jobIDs    map[string]cronv3.EntryID
	refresher interfaces.ThreadRefresher
}

func NewCronManager(cfg *cron_config.Config, log logger.Logger, refresher interfaces.ThreadRefresher) *CronManager {
	return &CronManager{
		cfg:       cfg,
		log:       log,
		stopCh:    make(chan struct{}),
		jobIDs:    make(map[string]cronv3.EntryID),
		refresher: refresher,
	}
}

// Start schedules the jobs and, when configured, kicks off a first refresh
// without waiting for the schedule.
func (cm *CronManager) Start() error {
	c, err := cm.newCron()
	if err != nil {
		return err
	}
	cm.log.Info("Starting cron manager")
	c.Start()
	cm.cron = c

	if cm.cfg.RefreshOnStart && cm.refresher != nil {
		go func() {
			defer tracing.RecoverAndLogToJaeger(cm.log)
			cm.refreshThreads()
		}()
	}
	return nil
}

// Stop gracefully stops the cron manager
func (cm *CronManager) Stop() {
	if cm.cron != nil {
		cm.log.Info("Stopping cron manager")
		ctx := cm.cron.Stop()
		// Wait for jobs to finish
		<-ctx.Done()
	}
	close(cm.stopCh)
}

func (cm *CronManager) newCron() (*cronv3.Cron, error) {
	c := cronv3.New(
		cronv3.WithSeconds(),
		cronv3.WithChain(
			cronv3.SkipIfStillRunning(cronv3.DefaultLogger),
			cronv3.Recover(cronv3.DefaultLogger),
		),
	)
	if err := cm.registerJobs(c); err != nil {
		return nil, err
	}
	return c, nil
}

// registerJobs adds all cron jobs to the scheduler
func (cm *CronManager) registerJobs(c *cronv3.Cron) error {
	if cm.cfg.CronScheduleHeartbeat != "" {
		hostname, _ := os.Hostname()
		id, err := c.AddFunc(cm.cfg.CronScheduleHeartbeat, func() {
			defer tracing.RecoverAndLogToJaeger(cm.log)
			cm.log.Debugf("Cron heartbeat from %s", hostname)
		})
		if err != nil {
			cm.log.Errorf("Could not add heartbeat cron job: %v", err)
			return err
		}
		cm.jobIDs[JobHeartbeat] = id
		cm.log.Infof("Registered heartbeat job with schedule: %s", cm.cfg.CronScheduleHeartbeat)
	}

	if cm.cfg.CronScheduleRefreshThreads != "" && cm.refresher != nil {
		id, err := c.AddFunc(cm.cfg.CronScheduleRefreshThreads, func() {
			defer tracing.RecoverAndLogToJaeger(cm.log)
			cm.refreshThreads()
		})
		if err != nil {
			cm.log.Errorf("Could not add thread refresh cron job: %v", err)
			return err
		}
		cm.jobIDs[JobRefreshThreads] = id
		cm.log.Infof("Registered thread refresh job with schedule: %s", cm.cfg.CronScheduleRefreshThreads)
	}
	return nil
}

func (cm *CronManager) refreshThreads() {
	ctx := utils.WithCustomContext(context.Background(), &utils.CustomContext{AppSource: appSourceCron})

	span, ctx := tracing.StartTracerSpan(ctx, "CronManager.refreshThreads")
	defer span.Finish()
	tracing.TagComponentCronJob(span)

	ran, err := cm.refresher.Refresh(ctx)
	if err != nil {
		tracing.TraceErr(span, err)
		cm.log.Errorf("Scheduled thread refresh failed: %v", err)
		return
	}
	if !ran {
		cm.log.Debug("Scheduled thread refresh skipped, another refresh is running")
	}
}
