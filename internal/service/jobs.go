package service

import (
	"context"
	"time"

	"monetize-service/internal/config"
	publisher "monetize-service/internal/pub"
	"monetize-service/internal/repository"

	"github.com/jonboulle/clockwork"
	"github.com/sirupsen/logrus"
)

// ReferralRepairer retries cascades that failed after their primary earning
// committed
type ReferralRepairer interface {
	RepairUnprocessed(ctx context.Context, pageSize int) (int, error)
}

// JobRunner owns the time-triggered batch jobs: withdrawal settlement,
// stale-distribution cleanup and referral cascade repair. Every job scans bounded
// pages and is idempotent by construction: each write advances a status
// field that excludes the record from the next scan, so re-running after a
// partial failure only touches not-yet-processed records.
type JobRunner struct {
	ledgerRepo repository.LedgerRepository
	distRepo   repository.DistributionRepository
	adRepo     repository.AdRevenueRepository
	repairer   ReferralRepairer
	events     *publisher.EarningEventPublisher
	cfg        config.MonetizationConfig
	clock      clockwork.Clock
	log        *logrus.Logger
}

func NewJobRunner(
	ledgerRepo repository.LedgerRepository,
	distRepo repository.DistributionRepository,
	adRepo repository.AdRevenueRepository,
	repairer ReferralRepairer,
	events *publisher.EarningEventPublisher,
	cfg config.MonetizationConfig,
	clock clockwork.Clock,
	log *logrus.Logger,
) *JobRunner {
	return &JobRunner{
		ledgerRepo: ledgerRepo,
		distRepo:   distRepo,
		adRepo:     adRepo,
		repairer:   repairer,
		events:     events,
		cfg:        cfg,
		clock:      clock,
		log:        log,
	}
}

// Start launches all jobs; they stop when the context is cancelled
func (j *JobRunner) Start(ctx context.Context) {
	go j.runEvery(ctx, "withdrawal-settlement", j.cfg.SettlementInterval, func(ctx context.Context) {
		if n, err := j.SettlePendingWithdrawals(ctx); err != nil {
			j.log.WithError(err).Error("withdrawal settlement run failed")
		} else if n > 0 {
			j.log.WithField("settled", n).Info("withdrawal settlement run complete")
		}
	})

	go j.runEvery(ctx, "distribution-cleanup", j.cfg.CleanupInterval, func(ctx context.Context) {
		if n, err := j.CleanupStaleDistributions(ctx); err != nil {
			j.log.WithError(err).Error("distribution cleanup run failed")
		} else if n > 0 {
			j.log.WithField("pruned", n).Info("distribution cleanup run complete")
		}
	})

	go j.runEvery(ctx, "referral-repair", j.cfg.RepairInterval, func(ctx context.Context) {
		if n, err := j.repairer.RepairUnprocessed(ctx, j.cfg.JobPageSize); err != nil {
			j.log.WithError(err).Error("referral repair run failed")
		} else if n > 0 {
			j.log.WithField("repaired", n).Info("referral repair run complete")
		}
	})
}

func (j *JobRunner) runEvery(ctx context.Context, name string, interval time.Duration, fn func(context.Context)) {
	ticker := j.clock.NewTicker(interval)
	defer ticker.Stop()

	j.log.WithFields(logrus.Fields{"job": name, "interval": interval}).Info("job scheduled")

	for {
		select {
		case <-ctx.Done():
			j.log.WithField("job", name).Info("job stopped")
			return
		case <-ticker.Chan():
			fn(ctx)
		}
	}
}

// SettlePendingWithdrawals completes pending withdrawals older than the
// settlement delay. One record's failure never aborts the rest of the batch.
func (j *JobRunner) SettlePendingWithdrawals(ctx context.Context) (int, error) {
	cutoff := j.clock.Now().Add(-j.cfg.SettlementDelay)
	pending, err := j.ledgerRepo.ListPendingWithdrawals(ctx, cutoff, j.cfg.JobPageSize)
	if err != nil {
		return 0, err
	}

	settled := 0
	for _, txn := range pending {
		if err := j.distRepo.SettleWithdrawal(ctx, txn); err != nil {
			j.log.WithError(err).WithField("txn_id", txn.ID).Warn("failed to settle withdrawal")
			continue
		}
		settled++

		if err := j.events.PublishWithdrawalCompleted(ctx, txn); err != nil {
			j.log.WithError(err).WithField("ref", txn.Ref).Warn("failed to publish settlement event")
		}
	}

	return settled, nil
}

// CleanupStaleDistributions prunes distribution analytics records past the
// retention window. The ledger and the impression dedup rows are never
// pruned.
func (j *JobRunner) CleanupStaleDistributions(ctx context.Context) (int64, error) {
	cutoff := j.clock.Now().Add(-j.cfg.CleanupRetention)
	return j.adRepo.DeleteDistributionsOlderThan(ctx, cutoff, j.cfg.JobPageSize)
}
