// Package treasury manages the custodial account that collects service fees.
package treasury

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/programs/system"
	"github.com/rs/zerolog"

	"github.com/smartpassport/passport-node/issuer/cost"
	"github.com/smartpassport/passport-node/issuer/errors"
	"github.com/smartpassport/passport-node/issuer/store"
)

// Ledger reads treasury state from the network.
type Ledger interface {
	Balance(ctx context.Context, account solana.PublicKey) (uint64, error)
	LatestBlockhash(ctx context.Context) (solana.Hash, uint64, error)
}

// Sender submits a signed transaction and waits for confirmation.
type Sender interface {
	SubmitTransaction(ctx context.Context, tx *solana.Transaction) (solana.Signature, error)
}

// Journal persists withdrawal attempts and reports collected fees.
type Journal interface {
	RecordWithdrawal(w *store.TreasuryWithdrawal) error
	FinishWithdrawal(id uint, status, signature, errMsg string) error
	TotalCollectedFees() (uint64, error)
	RecentWithdrawals(limit int) ([]store.TreasuryWithdrawal, error)
}

// Info is a snapshot of the treasury.
type Info struct {
	Address            string  `json:"address"`
	Balance            uint64  `json:"balance"`
	BalanceSOL         float64 `json:"balance_sol"`
	TotalCollectedFees uint64  `json:"total_collected_fees"`
	OwnerAddress       string  `json:"owner_address"`
}

// WithdrawRequest asks to move Amount lamports to Recipient. OwnerProof is
// opaque here; it is checked against the owner by the caller.
type WithdrawRequest struct {
	Amount     uint64
	Recipient  solana.PublicKey
	OwnerProof string
}

// WithdrawResult is the outcome of a confirmed withdrawal.
type WithdrawResult struct {
	Signature     solana.Signature `json:"signature"`
	BalanceBefore uint64           `json:"balance_before"`
	// BalanceAfter is nil when the post-withdrawal read failed.
	BalanceAfter *uint64 `json:"balance_after,omitempty"`
}

// Withdrawal is a journaled withdrawal attempt.
type Withdrawal struct {
	ID        uint      `json:"id"`
	Amount    uint64    `json:"amount"`
	Recipient string    `json:"recipient"`
	Status    string    `json:"status"`
	Signature string    `json:"signature,omitempty"`
	Error     string    `json:"error,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Manager exposes treasury balance queries and withdrawals.
type Manager struct {
	account *Account
	ledger  Ledger
	sender  Sender
	journal Journal
	logger  zerolog.Logger

	// withdrawMu serializes check-balance through confirmation within this
	// process. Separate processes sharing the treasury key can still race.
	withdrawMu sync.Mutex
}

// NewManager creates a Manager. journal may be nil.
func NewManager(account *Account, ledger Ledger, sender Sender, journal Journal, logger zerolog.Logger) *Manager {
	return &Manager{
		account: account,
		ledger:  ledger,
		sender:  sender,
		journal: journal,
		logger:  logger.With().Str("component", "treasury").Str("address", account.Address().String()).Logger(),
	}
}

// Address returns the treasury address.
func (m *Manager) Address() solana.PublicKey {
	return m.account.Address()
}

// Balance reads the treasury balance from the network.
func (m *Manager) Balance(ctx context.Context) (uint64, error) {
	balance, err := m.ledger.Balance(ctx, m.account.Address())
	if err != nil {
		return 0, errors.WrapKind(err, errors.KindNetwork, "treasury_balance", "failed to read treasury balance")
	}
	return balance, nil
}

// Info returns the treasury address, balance, collected fees and owner.
func (m *Manager) Info(ctx context.Context) (*Info, error) {
	balance, err := m.Balance(ctx)
	if err != nil {
		return nil, err
	}

	var collected uint64
	if m.journal != nil {
		collected, err = m.journal.TotalCollectedFees()
		if err != nil {
			return nil, errors.NewDatabaseError("treasury_info", "failed to sum collected fees", err)
		}
	}

	balanceSOL, _ := cost.LamportsToSOL(balance).Float64()
	info := &Info{
		Address:            m.account.Address().String(),
		Balance:            balance,
		BalanceSOL:         balanceSOL,
		TotalCollectedFees: collected,
	}
	if owner := m.account.Owner(); !owner.IsZero() {
		info.OwnerAddress = owner.String()
	}
	return info, nil
}

// Withdrawals returns up to limit journaled withdrawals, newest first. It is
// empty when the manager has no journal.
func (m *Manager) Withdrawals(ctx context.Context, limit int) ([]Withdrawal, error) {
	if m.journal == nil {
		return []Withdrawal{}, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, errors.NewNetworkError("treasury_withdrawals", "request cancelled", err)
	}

	rows, err := m.journal.RecentWithdrawals(limit)
	if err != nil {
		return nil, errors.NewDatabaseError("treasury_withdrawals", "failed to list withdrawals", err)
	}
	out := make([]Withdrawal, 0, len(rows))
	for _, row := range rows {
		out = append(out, Withdrawal{
			ID:        row.ID,
			Amount:    row.Amount,
			Recipient: row.Recipient,
			Status:    row.Status,
			Signature: row.Signature,
			Error:     row.ErrorMsg,
			CreatedAt: row.CreatedAt,
		})
	}
	return out, nil
}

// Withdraw transfers req.Amount from the treasury to req.Recipient. It fails
// with an insufficient funds error, without sending anything, when the
// balance is below the amount. Concurrent calls are processed one at a time.
func (m *Manager) Withdraw(ctx context.Context, req WithdrawRequest) (*WithdrawResult, error) {
	const op = "treasury_withdraw"

	if strings.TrimSpace(req.OwnerProof) == "" {
		return nil, errors.NewUnauthorizedError(op, "owner authorization is required")
	}
	if req.Amount == 0 {
		return nil, errors.NewInputError(op, "amount must be greater than zero")
	}
	if req.Recipient.IsZero() {
		return nil, errors.NewInputError(op, "recipient is required")
	}
	if req.Recipient.Equals(m.account.Address()) {
		return nil, errors.NewInputError(op, "recipient must differ from the treasury")
	}

	m.withdrawMu.Lock()
	defer m.withdrawMu.Unlock()

	entry := m.journalStart(req)

	balance, err := m.Balance(ctx)
	if err != nil {
		m.journalFinish(entry, store.WithdrawalStatusFailed, "", err)
		return nil, err
	}
	if balance < req.Amount {
		err := errors.NewInsufficientFundsError(op, balance, req.Amount)
		m.journalFinish(entry, store.WithdrawalStatusFailed, "", err)
		return nil, err
	}

	tx, err := m.buildWithdrawal(ctx, req)
	if err != nil {
		m.journalFinish(entry, store.WithdrawalStatusFailed, "", err)
		return nil, err
	}

	m.logger.Info().
		Uint64("amount", req.Amount).
		Str("recipient", req.Recipient.String()).
		Uint64("balance", balance).
		Msg("withdrawing from treasury")

	sig, err := m.sender.SubmitTransaction(ctx, tx)
	if err != nil {
		status := store.WithdrawalStatusFailed
		if errors.IsKind(err, errors.KindConfirmationTimeout) {
			status = store.WithdrawalStatusTimedOut
		}
		m.journalFinish(entry, status, signatureString(sig), err)
		return nil, err
	}
	m.journalFinish(entry, store.WithdrawalStatusConfirmed, sig.String(), nil)

	result := &WithdrawResult{Signature: sig, BalanceBefore: balance}
	if after, err := m.ledger.Balance(ctx, m.account.Address()); err == nil {
		result.BalanceAfter = &after
	} else {
		m.logger.Warn().Err(err).Msg("failed to read balance after withdrawal")
	}

	m.logger.Info().
		Str("signature", sig.String()).
		Uint64("amount", req.Amount).
		Msg("treasury withdrawal confirmed")
	return result, nil
}

func (m *Manager) buildWithdrawal(ctx context.Context, req WithdrawRequest) (*solana.Transaction, error) {
	const op = "treasury_withdraw"

	blockhash, _, err := m.ledger.LatestBlockhash(ctx)
	if err != nil {
		return nil, errors.WrapKind(err, errors.KindNetwork, op, "failed to fetch blockhash")
	}

	tx, err := solana.NewTransaction(
		[]solana.Instruction{
			system.NewTransferInstruction(req.Amount, m.account.Address(), req.Recipient).Build(),
		},
		blockhash,
		solana.TransactionPayer(m.account.Address()),
	)
	if err != nil {
		return nil, errors.NewInternalError(op, "failed to build withdrawal", err)
	}
	if _, err := tx.Sign(m.account.signer); err != nil {
		return nil, errors.NewInternalError(op, "failed to sign withdrawal", err)
	}
	return tx, nil
}

func (m *Manager) journalStart(req WithdrawRequest) *store.TreasuryWithdrawal {
	if m.journal == nil {
		return nil
	}
	entry := &store.TreasuryWithdrawal{Amount: req.Amount, Recipient: req.Recipient.String()}
	if err := m.journal.RecordWithdrawal(entry); err != nil {
		m.logger.Error().Err(err).Msg("failed to journal withdrawal")
		return nil
	}
	return entry
}

func (m *Manager) journalFinish(entry *store.TreasuryWithdrawal, status, signature string, cause error) {
	if m.journal == nil || entry == nil {
		return
	}
	var msg string
	if cause != nil {
		msg = cause.Error()
	}
	if err := m.journal.FinishWithdrawal(entry.ID, status, signature, msg); err != nil {
		m.logger.Error().Err(err).Uint("withdrawal_id", entry.ID).Msg("failed to update withdrawal journal")
	}
}

func signatureString(sig solana.Signature) string {
	if sig == (solana.Signature{}) {
		return ""
	}
	return sig.String()
}
