package cron_config

type Config struct {
	// Heartbeat check, every minute
	CronScheduleHeartbeat string `env:"CRON_SCHEDULE_HEARTBEAT" envDefault:"0 * * * * *"`
	// Thread cache refresh
	CronScheduleRefreshThreads string `env:"CRON_SCHEDULE_REFRESH_THREADS" envDefault:"@every 90s"`
	// Refresh once as soon as the scheduler starts
	RefreshOnStart bool `env:"CRON_REFRESH_ON_START" envDefault:"true"`
}
