package db

import (
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/smartpassport/passport-node/issuer/store"
)

// Journal records prepared mints and treasury withdrawals.
type Journal struct {
	database *DB
}

// NewJournal creates a journal over database.
func NewJournal(database *DB) *Journal {
	return &Journal{database: database}
}

// DB returns the database the journal writes to.
func (j *Journal) DB() *DB {
	return j.database
}

// Close closes the journal's database.
func (j *Journal) Close() error {
	if j.database == nil {
		return nil
	}
	return j.database.Close()
}

// RecordPreparedMint stores a pending mint. Preparing the same mint address
// twice is an error.
func (j *Journal) RecordPreparedMint(mint *store.PassportMint) error {
	if j.database == nil {
		return fmt.Errorf("database is nil")
	}
	if mint.Status == "" {
		mint.Status = store.MintStatusPending
	}
	if err := j.database.Client().Create(mint).Error; err != nil {
		return fmt.Errorf("failed to record prepared mint: %w", err)
	}
	return nil
}

// GetMint returns the record for mintAddress, or nil when none exists.
func (j *Journal) GetMint(mintAddress string) (*store.PassportMint, error) {
	if j.database == nil {
		return nil, fmt.Errorf("database is nil")
	}

	var mint store.PassportMint
	err := j.database.Client().Where("mint_address = ?", mintAddress).First(&mint).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get mint: %w", err)
	}
	return &mint, nil
}

// UpdateMintStatus moves a mint out of a non-confirmed status. A confirmed
// mint is never changed. It returns the number of rows updated.
func (j *Journal) UpdateMintStatus(mintAddress, status, signature string) (int64, error) {
	if j.database == nil {
		return 0, fmt.Errorf("database is nil")
	}

	result := j.database.Client().
		Model(&store.PassportMint{}).
		Where("mint_address = ? AND status <> ?", mintAddress, store.MintStatusConfirmed).
		Updates(map[string]any{"status": status, "signature": signature})
	if result.Error != nil {
		return 0, fmt.Errorf("failed to update mint status: %w", result.Error)
	}
	return result.RowsAffected, nil
}

// DeleteStaleMints permanently removes unconfirmed mints that have not
// changed for longer than retention. Confirmed mints are kept since they
// back the collected fee total.
func (j *Journal) DeleteStaleMints(retention time.Duration) (int64, error) {
	if j.database == nil {
		return 0, fmt.Errorf("database is nil")
	}

	cutoff := time.Now().Add(-retention)
	result := j.database.Client().
		Unscoped().
		Where("status <> ? AND updated_at < ?", store.MintStatusConfirmed, cutoff).
		Delete(&store.PassportMint{})
	if result.Error != nil {
		return 0, fmt.Errorf("failed to delete stale mints: %w", result.Error)
	}
	return result.RowsAffected, nil
}

// TotalCollectedFees sums the service fees of confirmed mints.
func (j *Journal) TotalCollectedFees() (uint64, error) {
	if j.database == nil {
		return 0, fmt.Errorf("database is nil")
	}

	var total int64
	err := j.database.Client().
		Model(&store.PassportMint{}).
		Where("status = ?", store.MintStatusConfirmed).
		Select("COALESCE(SUM(service_fee), 0)").
		Scan(&total).Error
	if err != nil {
		return 0, fmt.Errorf("failed to sum collected fees: %w", err)
	}
	return uint64(total), nil
}

// RecordWithdrawal stores a withdrawal attempt.
func (j *Journal) RecordWithdrawal(w *store.TreasuryWithdrawal) error {
	if j.database == nil {
		return fmt.Errorf("database is nil")
	}
	if w.Status == "" {
		w.Status = store.WithdrawalStatusPending
	}
	if err := j.database.Client().Create(w).Error; err != nil {
		return fmt.Errorf("failed to record withdrawal: %w", err)
	}
	return nil
}

// FinishWithdrawal sets the outcome of a journaled withdrawal.
func (j *Journal) FinishWithdrawal(id uint, status, signature, errMsg string) error {
	if j.database == nil {
		return fmt.Errorf("database is nil")
	}

	err := j.database.Client().
		Model(&store.TreasuryWithdrawal{}).
		Where("id = ?", id).
		Updates(map[string]any{"status": status, "signature": signature, "error_msg": errMsg}).Error
	if err != nil {
		return fmt.Errorf("failed to update withdrawal: %w", err)
	}
	return nil
}

// RecentWithdrawals returns up to limit withdrawals, newest first.
func (j *Journal) RecentWithdrawals(limit int) ([]store.TreasuryWithdrawal, error) {
	if j.database == nil {
		return nil, fmt.Errorf("database is nil")
	}

	var withdrawals []store.TreasuryWithdrawal
	err := j.database.Client().Order("id DESC").Limit(limit).Find(&withdrawals).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list withdrawals: %w", err)
	}
	return withdrawals, nil
}
