package api

import (
	"context"

	"github.com/smartpassport/passport-node/issuer/core"
	"github.com/smartpassport/passport-node/issuer/cost"
	"github.com/smartpassport/passport-node/issuer/treasury"
)

// PassportService defines the operations needed by the API server
type PassportService interface {
	Healthy(ctx context.Context) bool
	Quote(ctx context.Context) (cost.Quote, error)
	QuoteCollection(ctx context.Context) (cost.Quote, error)
	PrepareMint(ctx context.Context, in core.MintInput) (*core.Prepared, error)
	PrepareCollection(ctx context.Context, in core.MintInput) (*core.Prepared, error)
	Submit(ctx context.Context, encoded, txType string) (*core.Submitted, error)
	UploadImage(ctx context.Context, data []byte, contentType string) (string, error)
	TreasuryInfo(ctx context.Context) (*treasury.Info, error)
	TreasuryWithdrawals(ctx context.Context, limit int) ([]treasury.Withdrawal, error)
	Withdraw(ctx context.Context, in core.WithdrawInput) (*core.Withdrawn, error)
}
