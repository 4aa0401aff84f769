// Package store contains GORM-backed SQLite models used by the passport node.
//
// Database Structure (database file: passports.db):
//
//	databases/
//	└── passports.db
//	    ├── passport_mints
//	    └── treasury_withdrawals
package store

import (
	"gorm.io/gorm"
)

// Mint statuses.
const (
	MintStatusPending   = "pending"
	MintStatusConfirmed = "confirmed"
	MintStatusTimedOut  = "timed_out"
	MintStatusFailed    = "failed"
)

// Withdrawal statuses.
const (
	WithdrawalStatusPending   = "pending"
	WithdrawalStatusConfirmed = "confirmed"
	WithdrawalStatusTimedOut  = "timed_out"
	WithdrawalStatusFailed    = "failed"
)

// PassportMint tracks a prepared mint transaction and the service fee it
// transfers to the treasury once confirmed.
type PassportMint struct {
	gorm.Model
	MintAddress string `gorm:"uniqueIndex;not null"` // Asset (mint) address, base58
	FeePayer    string `gorm:"index;not null"`       // Wallet that pays and signs
	Kind        string `gorm:"not null"`             // "nft" or "collection"
	Name        string
	MetadataURI string
	ServiceFee  uint64                       // Lamports transferred to the treasury
	Status      string `gorm:"index;not null"` // "pending", "confirmed", "timed_out", "failed"
	Signature   string `gorm:"index"`          // Empty until submitted
}

// TreasuryWithdrawal journals a withdrawal attempt from the treasury.
type TreasuryWithdrawal struct {
	gorm.Model
	Amount    uint64 `gorm:"not null"`
	Recipient string `gorm:"index;not null"`
	Status    string `gorm:"index;not null"` // "pending", "confirmed", "timed_out", "failed"
	Signature string
	ErrorMsg  string `gorm:"type:text"`
}
