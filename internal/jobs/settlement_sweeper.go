package jobs

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"blink-market/internal/logger"
	"blink-market/internal/models"
	"blink-market/internal/resolution"
	"blink-market/internal/services"
)

// SweepReport summarises one pass.
type SweepReport struct {
	Checked   int
	Settled   int
	Cancelled int
	Pending   int
	Failed    int
}

// SettlementSweeper settles markets whose deadline has passed. A market the
// resolver cannot decide is left alone until GracePeriod after its
// deadline, then cancelled and refunded.
type SettlementSweeper struct {
	markets     *services.MarketService
	settlement  *services.SettlementService
	resolver    resolution.Resolver
	gracePeriod time.Duration
	batchSize   int
	now         func() time.Time
	log         *zap.Logger

	cron *cron.Cron
}

// SweeperOptions configures a SettlementSweeper.
type SweeperOptions struct {
	GracePeriod time.Duration
	BatchSize   int
	Now         func() time.Time
}

// NewSettlementSweeper creates a new sweeper job
func NewSettlementSweeper(markets *services.MarketService, settlement *services.SettlementService, resolver resolution.Resolver, opts SweeperOptions, log *zap.Logger) *SettlementSweeper {
	if opts.BatchSize <= 0 {
		opts.BatchSize = 100
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &SettlementSweeper{
		markets:     markets,
		settlement:  settlement,
		resolver:    resolver,
		gracePeriod: opts.GracePeriod,
		batchSize:   opts.BatchSize,
		now:         opts.Now,
		log:         logger.OrNop(log).Named("sweeper"),
	}
}

// Start schedules Sweep on spec (standard cron syntax or "@every 1m"). A
// pass still running when the next one is due causes that one to be skipped.
func (s *SettlementSweeper) Start(ctx context.Context, spec string) error {
	s.cron = cron.New(cron.WithChain(
		cron.Recover(cron.DefaultLogger),
		cron.SkipIfStillRunning(cron.DefaultLogger),
	))
	if _, err := s.cron.AddFunc(spec, func() { s.Sweep(ctx) }); err != nil {
		return fmt.Errorf("invalid sweeper schedule %q: %w", spec, err)
	}
	s.cron.Start()
	s.log.Info("settlement sweeper started", zap.String("schedule", spec), zap.Duration("grace_period", s.gracePeriod))
	return nil
}

// Stop waits for a running pass to finish.
func (s *SettlementSweeper) Stop() {
	if s.cron == nil {
		return
	}
	<-s.cron.Stop().Done()
	s.log.Info("settlement sweeper stopped")
}

// Sweep makes one pass over due markets.
func (s *SettlementSweeper) Sweep(ctx context.Context) SweepReport {
	var report SweepReport

	due, err := s.markets.DueMarkets(ctx, s.batchSize)
	if err != nil {
		s.log.Error("failed to fetch due markets", zap.Error(err))
		return report
	}

	for i := range due {
		if ctx.Err() != nil {
			break
		}
		report.Checked++
		switch s.sweepOne(ctx, &due[i]) {
		case sweepSettled:
			report.Settled++
		case sweepCancelled:
			report.Cancelled++
		case sweepPending:
			report.Pending++
		case sweepFailed:
			report.Failed++
		}
	}

	if report.Checked > 0 {
		s.log.Info("sweep finished",
			zap.Int("checked", report.Checked),
			zap.Int("settled", report.Settled),
			zap.Int("cancelled", report.Cancelled),
			zap.Int("pending", report.Pending),
			zap.Int("failed", report.Failed),
		)
	}
	return report
}

type sweepResult int

const (
	sweepPending sweepResult = iota
	sweepSettled
	sweepCancelled
	sweepFailed
)

func (s *SettlementSweeper) sweepOne(ctx context.Context, m *models.Market) sweepResult {
	log := s.log.With(zap.Uint("market_id", m.ID), zap.Stringer("type", m.PredictionType))

	res, err := s.resolver.Resolve(ctx, m)
	if err != nil {
		// Provider outages never trigger refunds.
		log.Warn("resolver failed", zap.Error(err))
		return sweepFailed
	}

	if res.Resolved {
		_, err := s.settlement.Settle(ctx, services.SettleRequest{
			MarketID: m.ID,
			Outcome:  res.Outcome,
			Reason:   fmt.Sprintf("resolved automatically at value %d", res.Value),
		})
		switch {
		case errors.Is(err, services.ErrAlreadyFinalized):
			return sweepPending
		case err != nil:
			log.Error("settle failed", zap.Error(err))
			return sweepFailed
		}
		return sweepSettled
	}

	if s.now().Before(m.Deadline.Add(s.gracePeriod)) {
		log.Debug("outcome not yet available", zap.String("reason", res.Reason))
		return sweepPending
	}

	_, err = s.settlement.Cancel(ctx, m.ID, "no resolution after grace period: "+res.Reason)
	switch {
	case errors.Is(err, services.ErrAlreadyFinalized):
		return sweepPending
	case err != nil:
		log.Error("cancel failed", zap.Error(err))
		return sweepFailed
	}
	log.Info("market cancelled for lack of resolution", zap.String("reason", res.Reason))
	return sweepCancelled
}
