package db

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// MintCleaner periodically deletes prepared mints that were never confirmed.
// A prepared transaction stops being submittable once its blockhash expires,
// so pending rows older than the retention period can no longer change.
type MintCleaner struct {
	journal         *Journal
	ticker          *time.Ticker
	logger          zerolog.Logger
	stopCh          chan struct{}
	cleanupInterval time.Duration
	retentionPeriod time.Duration
}

// NewMintCleaner creates a cleaner over journal.
func NewMintCleaner(journal *Journal, cleanupInterval, retentionPeriod time.Duration, logger zerolog.Logger) *MintCleaner {
	return &MintCleaner{
		journal:         journal,
		cleanupInterval: cleanupInterval,
		retentionPeriod: retentionPeriod,
		logger:          logger.With().Str("component", "mint_cleaner").Logger(),
		stopCh:          make(chan struct{}),
	}
}

// Start runs one cleanup immediately, then one per interval until ctx is
// cancelled or Stop is called.
func (mc *MintCleaner) Start(ctx context.Context) {
	mc.logger.Info().
		Dur("cleanup_interval", mc.cleanupInterval).
		Dur("retention_period", mc.retentionPeriod).
		Msg("starting mint cleaner")

	if _, err := mc.performCleanup(); err != nil {
		mc.logger.Error().Err(err).Msg("failed to perform initial cleanup")
	}

	mc.ticker = time.NewTicker(mc.cleanupInterval)

	go func() {
		defer mc.ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				mc.logger.Info().Msg("context cancelled, stopping mint cleaner")
				return
			case <-mc.stopCh:
				mc.logger.Info().Msg("stop signal received, stopping mint cleaner")
				return
			case <-mc.ticker.C:
				if _, err := mc.performCleanup(); err != nil {
					mc.logger.Error().Err(err).Msg("failed to perform scheduled cleanup")
				}
			}
		}
	}()
}

// Stop ends the cleanup loop. It must be called at most once.
func (mc *MintCleaner) Stop() {
	close(mc.stopCh)
}

func (mc *MintCleaner) performCleanup() (int64, error) {
	start := time.Now()

	deleted, err := mc.journal.DeleteStaleMints(mc.retentionPeriod)
	if err != nil {
		return 0, err
	}

	if deleted == 0 {
		mc.logger.Debug().Dur("duration", time.Since(start)).Msg("mint cleanup completed - nothing to delete")
		return 0, nil
	}

	if err := mc.journal.DB().Checkpoint(); err != nil {
		mc.logger.Warn().Err(err).Msg("failed to checkpoint WAL")
	}

	mc.logger.Info().
		Int64("deleted_count", deleted).
		Dur("duration", time.Since(start)).
		Msg("mint cleanup completed")
	return deleted, nil
}
