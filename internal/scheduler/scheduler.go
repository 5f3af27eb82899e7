// Package scheduler runs the periodic order sync sweep across every
// active account.
package scheduler

import (
	"context"
	"sync"

	"github.com/go-co-op/gocron/v2"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/semaphore"

	"example.com/backstage/services/marketsync/config"
	"example.com/backstage/services/marketsync/internal/metrics"
	"example.com/backstage/services/marketsync/internal/models"
	"example.com/backstage/services/marketsync/internal/repositories"
	"example.com/backstage/services/marketsync/internal/services"
)

// Scheduler sweeps active accounts on a fixed interval. Accounts are
// processed in sequential batches; inside a batch a bounded number of
// syncs run concurrently. One account failing never stops the sweep.
type Scheduler struct {
	cfg      config.SchedulerConfig
	accounts *repositories.AccountRepository
	orders   *services.OrderService
	metrics  *metrics.Metrics
}

// New creates the sweep scheduler.
func New(cfg config.SchedulerConfig, accounts *repositories.AccountRepository, orders *services.OrderService, m *metrics.Metrics) *Scheduler {
	return &Scheduler{
		cfg:      cfg,
		accounts: accounts,
		orders:   orders,
		metrics:  m,
	}
}

// Run starts the periodic sweep and blocks until the context ends.
func (s *Scheduler) Run(ctx context.Context) error {
	if !s.cfg.Enabled {
		log.Info().Msg("Order sync sweep is disabled")
		<-ctx.Done()
		return nil
	}

	scheduler, err := gocron.NewScheduler()
	if err != nil {
		return errors.Wrap(err, "failed to create scheduler")
	}

	_, err = scheduler.NewJob(
		gocron.DurationJob(s.cfg.Interval),
		gocron.NewTask(func() {
			if err := s.Sweep(ctx); err != nil {
				log.Error().Err(err).Msg("Order sync sweep failed")
			}
		}),
	)
	if err != nil {
		return errors.Wrap(err, "failed to schedule sweep job")
	}

	log.Info().Dur("interval", s.cfg.Interval).Int("batch_size", s.cfg.BatchSize).Msg("Starting order sync sweep")

	scheduler.Start()

	<-ctx.Done()

	return scheduler.Shutdown()
}

// Sweep syncs every active account once.
func (s *Scheduler) Sweep(ctx context.Context) error {
	accounts, err := s.accounts.ListActive(ctx)
	if err != nil {
		return errors.Wrap(err, "failed to list accounts for sweep")
	}

	s.metrics.SetGauge(metrics.GaugeAccountsSwept, int64(len(accounts)))

	if len(accounts) == 0 {
		return nil
	}

	log.Info().Int("accounts", len(accounts)).Msg("Sweeping accounts")

	for _, batch := range chunkAccounts(accounts, s.cfg.BatchSize) {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		s.syncBatch(ctx, batch)
	}

	return nil
}

// syncBatch runs one batch with bounded concurrency, waiting for the
// whole batch before the next one starts.
func (s *Scheduler) syncBatch(ctx context.Context, batch []models.Account) {
	concurrency := int64(s.cfg.MaxConcurrency)
	if concurrency < 1 {
		concurrency = 1
	}

	sem := semaphore.NewWeighted(concurrency)
	var wg sync.WaitGroup

	for i := range batch {
		account := batch[i]

		if err := sem.Acquire(ctx, 1); err != nil {
			break
		}

		wg.Add(1)
		go func() {
			defer wg.Done()
			defer sem.Release(1)

			if err := s.orders.SyncAccount(ctx, &account); err != nil {
				log.Error().Err(err).
					Str("account_id", account.AccountID).
					Str("store_id", account.StoreID).
					Msg("Account sync failed")
			}
		}()
	}

	wg.Wait()
}

func chunkAccounts(accounts []models.Account, size int) [][]models.Account {
	if size < 1 {
		size = 1
	}

	var batches [][]models.Account
	for start := 0; start < len(accounts); start += size {
		end := start + size
		if end > len(accounts) {
			end = len(accounts)
		}
		batches = append(batches, accounts[start:end])
	}
	return batches
}
