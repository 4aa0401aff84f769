package core

import (
	"context"

	"github.com/gagliardetto/solana-go"

	"github.com/smartpassport/passport-node/issuer/assemble"
	"github.com/smartpassport/passport-node/issuer/cost"
	"github.com/smartpassport/passport-node/issuer/keys"
	"github.com/smartpassport/passport-node/issuer/store"
	"github.com/smartpassport/passport-node/issuer/treasury"
)

// Estimator quotes mint costs.
type Estimator interface {
	Estimate(ctx context.Context) (cost.CostBreakdown, error)
}

// Assembler turns instructions into an encoded, partially signed envelope.
type Assembler interface {
	Assemble(ctx context.Context, instructions []solana.Instruction, feePayer solana.PublicKey, asset *keys.AssetIdentity) (*assemble.Envelope, error)
}

// Submitter broadcasts a signed transaction and waits for confirmation.
type Submitter interface {
	SubmitTransaction(ctx context.Context, tx *solana.Transaction) (solana.Signature, error)
}

// Treasury exposes the custodial fee account.
type Treasury interface {
	Info(ctx context.Context) (*treasury.Info, error)
	Withdraw(ctx context.Context, req treasury.WithdrawRequest) (*treasury.WithdrawResult, error)
	Withdrawals(ctx context.Context, limit int) ([]treasury.Withdrawal, error)
}

// MintJournal persists prepared mints and their outcome.
type MintJournal interface {
	RecordPreparedMint(mint *store.PassportMint) error
	GetMint(mintAddress string) (*store.PassportMint, error)
	UpdateMintStatus(mintAddress, status, signature string) (int64, error)
}

// HealthChecker reports ledger RPC reachability.
type HealthChecker interface {
	IsHealthy(ctx context.Context) bool
}
