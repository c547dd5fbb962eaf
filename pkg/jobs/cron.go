package jobs

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/dealerreach/backend/pkg/logger"
)

// CronManager manages scheduled jobs
type CronManager struct {
	cron    *cron.Cron
	sweeper *Sweeper
	log     logger.Logger
}

// NewCronManager creates a new cron manager
func NewCronManager(sweeper *Sweeper, log logger.Logger) *CronManager {
	if log == nil {
		log = logger.Nop()
	}
	return &CronManager{
		cron:    cron.New(),
		sweeper: sweeper,
		log:     log,
	}
}

// SetupJobs configures all scheduled jobs
func (cm *CronManager) SetupJobs() error {
	// Hourly: cancel pending touches for leads whose consent was
	// revoked after scheduling.
	_, err := cm.cron.AddFunc("0 * * * *", func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
		defer cancel()

		cancelled, err := cm.sweeper.SweepRevokedConsent(ctx)
		if err != nil {
			cm.log.Error("revoked consent sweep failed", "error", err)
			return
		}
		if cancelled > 0 {
			cm.log.Info("revoked consent sweep done", "touches_cancelled", cancelled)
		}
	})
	if err != nil {
		return err
	}

	// Daily at 2 AM: complete campaigns with nothing left to send.
	_, err = cm.cron.AddFunc("0 2 * * *", func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
		defer cancel()

		completed, err := cm.sweeper.CompleteFinishedCampaigns(ctx)
		if err != nil {
			cm.log.Error("campaign completion sweep failed", "error", err)
			return
		}
		if completed > 0 {
			cm.log.Info("campaign completion sweep done", "campaigns_completed", completed)
		}
	})
	if err != nil {
		return err
	}

	// Daily at 4 AM: log outreach statistics.
	_, err = cm.cron.AddFunc("0 4 * * *", func() {
		ctx, cancel := context.WithTimeout(context.Background(), 1*time.Minute)
		defer cancel()

		if err := cm.sweeper.LogOutreachStats(ctx); err != nil {
			cm.log.Error("stats logging failed", "error", err)
		}
	})
	if err != nil {
		return err
	}

	cm.log.Info("cron jobs configured",
		"hourly", "revoked consent sweep",
		"daily_2am", "campaign completion sweep",
		"daily_4am", "outreach stats")
	return nil
}

// Start starts the cron scheduler
func (cm *CronManager) Start() {
	cm.cron.Start()
}

// Stop stops the cron scheduler
func (cm *CronManager) Stop() {
	cm.cron.Stop()
}

// GetSweeper returns the sweeper (for manual triggers)
func (cm *CronManager) GetSweeper() *Sweeper {
	return cm.sweeper
}
