package treasury

import (
	"context"
	"encoding/binary"
	stderrors "errors"
	"sync"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/smartpassport/passport-node/issuer/db"
	"github.com/smartpassport/passport-node/issuer/errors"
	"github.com/smartpassport/passport-node/issuer/store"
)

type MockLedger struct {
	mock.Mock
}

func (m *MockLedger) Balance(ctx context.Context, account solana.PublicKey) (uint64, error) {
	args := m.Called(ctx, account)
	return args.Get(0).(uint64), args.Error(1)
}

func (m *MockLedger) LatestBlockhash(ctx context.Context) (solana.Hash, uint64, error) {
	args := m.Called(ctx)
	return args.Get(0).(solana.Hash), args.Get(1).(uint64), args.Error(2)
}

type MockSender struct {
	mock.Mock
}

func (m *MockSender) SubmitTransaction(ctx context.Context, tx *solana.Transaction) (solana.Signature, error) {
	args := m.Called(ctx, tx)
	return args.Get(0).(solana.Signature), args.Error(1)
}

type fixture struct {
	account *Account
	ledger  *MockLedger
	sender  *MockSender
	journal *db.Journal
	manager *Manager
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	account, err := NewAccount(solana.NewWallet().PrivateKey, solana.NewWallet().PublicKey())
	require.NoError(t, err)

	database, err := db.OpenInMemoryDB(true)
	require.NoError(t, err)
	t.Cleanup(func() { _ = database.Close() })
	journal := db.NewJournal(database)

	ledger := new(MockLedger)
	sender := new(MockSender)
	return &fixture{
		account: account,
		ledger:  ledger,
		sender:  sender,
		journal: journal,
		manager: NewManager(account, ledger, sender, journal, zerolog.New(zerolog.NewTestWriter(t))),
	}
}

func randomSignature() solana.Signature {
	var sig solana.Signature
	copy(sig[:], solana.NewWallet().PrivateKey)
	return sig
}

func TestWithdrawInsufficientFunds(t *testing.T) {
	f := newFixture(t)
	f.ledger.On("Balance", mock.Anything, f.account.Address()).Return(uint64(1000), nil)

	result, err := f.manager.Withdraw(context.Background(), WithdrawRequest{
		Amount:     1001,
		Recipient:  solana.NewWallet().PublicKey(),
		OwnerProof: "signed-by-owner",
	})

	require.Error(t, err)
	assert.Nil(t, result)
	assert.True(t, errors.IsKind(err, errors.KindInsufficientFunds))

	var e *errors.Error
	require.True(t, errors.As(err, &e))
	assert.Equal(t, uint64(1000), e.Context["balance"])
	assert.Equal(t, uint64(1001), e.Context["amount"])

	f.sender.AssertNotCalled(t, "SubmitTransaction", mock.Anything, mock.Anything)
	f.ledger.AssertNotCalled(t, "LatestBlockhash", mock.Anything)

	recent, err := f.journal.RecentWithdrawals(1)
	require.NoError(t, err)
	require.Len(t, recent, 1)
	assert.Equal(t, store.WithdrawalStatusFailed, recent[0].Status)
}

func TestWithdrawRejectsBeforeNetwork(t *testing.T) {
	f := newFixture(t)
	recipient := solana.NewWallet().PublicKey()

	tests := []struct {
		name string
		req  WithdrawRequest
		kind errors.Kind
	}{
		{name: "missing proof", req: WithdrawRequest{Amount: 1, Recipient: recipient}, kind: errors.KindUnauthorized},
		{name: "blank proof", req: WithdrawRequest{Amount: 1, Recipient: recipient, OwnerProof: "  "}, kind: errors.KindUnauthorized},
		{name: "zero amount", req: WithdrawRequest{Recipient: recipient, OwnerProof: "p"}, kind: errors.KindInput},
		{name: "zero recipient", req: WithdrawRequest{Amount: 1, OwnerProof: "p"}, kind: errors.KindInput},
		{name: "treasury recipient", req: WithdrawRequest{Amount: 1, Recipient: f.account.Address(), OwnerProof: "p"}, kind: errors.KindInput},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.manager.Withdraw(context.Background(), tt.req)
			require.Error(t, err)
			assert.True(t, errors.IsKind(err, tt.kind))
		})
	}

	f.ledger.AssertNotCalled(t, "Balance", mock.Anything, mock.Anything)
	f.sender.AssertNotCalled(t, "SubmitTransaction", mock.Anything, mock.Anything)
}

func TestWithdrawSuccess(t *testing.T) {
	f := newFixture(t)
	recipient := solana.NewWallet().PublicKey()
	sig := randomSignature()

	f.ledger.On("Balance", mock.Anything, f.account.Address()).Return(uint64(10_000_000), nil).Once()
	f.ledger.On("Balance", mock.Anything, f.account.Address()).Return(uint64(5_995_000), nil).Once()
	f.ledger.On("LatestBlockhash", mock.Anything).Return(solana.Hash(solana.NewWallet().PublicKey()), uint64(99), nil)
	f.sender.On("SubmitTransaction", mock.Anything, mock.MatchedBy(func(tx *solana.Transaction) bool {
		if err := tx.VerifySignatures(); err != nil {
			return false
		}
		if !tx.Message.AccountKeys[0].Equals(f.account.Address()) || len(tx.Message.Instructions) != 1 {
			return false
		}
		data := tx.Message.Instructions[0].Data
		return binary.LittleEndian.Uint64(data[4:12]) == 4_000_000
	})).Return(sig, nil).Once()

	result, err := f.manager.Withdraw(context.Background(), WithdrawRequest{
		Amount:     4_000_000,
		Recipient:  recipient,
		OwnerProof: "signed-by-owner",
	})
	require.NoError(t, err)
	assert.Equal(t, sig, result.Signature)
	assert.Equal(t, uint64(10_000_000), result.BalanceBefore)
	require.NotNil(t, result.BalanceAfter)
	assert.Equal(t, uint64(5_995_000), *result.BalanceAfter)
	f.sender.AssertExpectations(t)

	recent, err := f.journal.RecentWithdrawals(1)
	require.NoError(t, err)
	require.Len(t, recent, 1)
	assert.Equal(t, store.WithdrawalStatusConfirmed, recent[0].Status)
	assert.Equal(t, sig.String(), recent[0].Signature)
	assert.Equal(t, recipient.String(), recent[0].Recipient)
}

func TestWithdrawConfirmationTimeout(t *testing.T) {
	f := newFixture(t)
	sig := randomSignature()

	f.ledger.On("Balance", mock.Anything, f.account.Address()).Return(uint64(10_000), nil)
	f.ledger.On("LatestBlockhash", mock.Anything).Return(solana.Hash(solana.NewWallet().PublicKey()), uint64(99), nil)
	f.sender.On("SubmitTransaction", mock.Anything, mock.Anything).
		Return(sig, errors.NewConfirmationTimeoutError("await_confirmation", sig.String(), context.DeadlineExceeded))

	_, err := f.manager.Withdraw(context.Background(), WithdrawRequest{
		Amount:     1_000,
		Recipient:  solana.NewWallet().PublicKey(),
		OwnerProof: "p",
	})
	require.Error(t, err)
	assert.True(t, errors.IsKind(err, errors.KindConfirmationTimeout))

	recent, err := f.journal.RecentWithdrawals(1)
	require.NoError(t, err)
	assert.Equal(t, store.WithdrawalStatusTimedOut, recent[0].Status)
	assert.Equal(t, sig.String(), recent[0].Signature)
}

func TestWithdrawBalanceReadFails(t *testing.T) {
	f := newFixture(t)
	f.ledger.On("Balance", mock.Anything, f.account.Address()).Return(uint64(0), stderrors.New("connection reset"))

	_, err := f.manager.Withdraw(context.Background(), WithdrawRequest{
		Amount:     1,
		Recipient:  solana.NewWallet().PublicKey(),
		OwnerProof: "p",
	})
	require.Error(t, err)
	assert.True(t, errors.IsKind(err, errors.KindNetwork))
	f.sender.AssertNotCalled(t, "SubmitTransaction", mock.Anything, mock.Anything)
}

// chain is a ledger and sender whose balance drops when a withdrawal lands.
type chain struct {
	mu      sync.Mutex
	balance uint64
	sent    int
}

func (c *chain) Balance(context.Context, solana.PublicKey) (uint64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.balance, nil
}

func (c *chain) LatestBlockhash(context.Context) (solana.Hash, uint64, error) {
	return solana.Hash(solana.NewWallet().PublicKey()), 1, nil
}

func (c *chain) SubmitTransaction(_ context.Context, tx *solana.Transaction) (solana.Signature, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	amount := binary.LittleEndian.Uint64(tx.Message.Instructions[0].Data[4:12])
	c.balance -= amount
	c.sent++
	return tx.Signatures[0], nil
}

func TestConcurrentWithdrawalsAreSerialized(t *testing.T) {
	account, err := NewAccount(solana.NewWallet().PrivateKey, solana.PublicKey{})
	require.NoError(t, err)
	net := &chain{balance: 1000}
	manager := NewManager(account, net, net, nil, zerolog.Nop())

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = manager.Withdraw(context.Background(), WithdrawRequest{
				Amount:     600,
				Recipient:  solana.NewWallet().PublicKey(),
				OwnerProof: "p",
			})
		}(i)
	}
	wg.Wait()

	failures := 0
	for _, err := range errs {
		if err != nil {
			failures++
			assert.True(t, errors.IsKind(err, errors.KindInsufficientFunds))
		}
	}
	assert.Equal(t, 1, failures)
	assert.Equal(t, 1, net.sent)
	assert.Equal(t, uint64(400), net.balance)
}

func TestInfo(t *testing.T) {
	f := newFixture(t)
	f.ledger.On("Balance", mock.Anything, f.account.Address()).Return(uint64(2_500_000_000), nil)

	require.NoError(t, f.journal.RecordPreparedMint(&store.PassportMint{MintAddress: "m1", FeePayer: "p", Kind: "nft", ServiceFee: 1_601_000}))
	_, err := f.journal.UpdateMintStatus("m1", store.MintStatusConfirmed, "sig")
	require.NoError(t, err)

	info, err := f.manager.Info(context.Background())
	require.NoError(t, err)
	assert.Equal(t, f.account.Address().String(), info.Address)
	assert.Equal(t, uint64(2_500_000_000), info.Balance)
	assert.Equal(t, 2.5, info.BalanceSOL)
	assert.Equal(t, uint64(1_601_000), info.TotalCollectedFees)
	assert.Equal(t, f.account.Owner().String(), info.OwnerAddress)
}

func TestWithdrawals(t *testing.T) {
	t.Run("lists journaled attempts newest first", func(t *testing.T) {
		f := newFixture(t)
		recipient := solana.NewWallet().PublicKey()
		f.ledger.On("Balance", mock.Anything, f.account.Address()).Return(uint64(100), nil)

		_, err := f.manager.Withdraw(context.Background(), WithdrawRequest{Amount: 500, Recipient: recipient, OwnerProof: "proof"})
		require.Error(t, err)

		_, err = f.manager.Withdraw(context.Background(), WithdrawRequest{Amount: 700, Recipient: recipient, OwnerProof: "proof"})
		require.Error(t, err)

		list, err := f.manager.Withdrawals(context.Background(), 10)
		require.NoError(t, err)
		require.Len(t, list, 2)
		assert.Equal(t, uint64(700), list[0].Amount)
		assert.Equal(t, recipient.String(), list[0].Recipient)
		assert.Equal(t, store.WithdrawalStatusFailed, list[0].Status)
		assert.Contains(t, list[0].Error, "insufficient")
		assert.False(t, list[0].CreatedAt.IsZero())

		limited, err := f.manager.Withdrawals(context.Background(), 1)
		require.NoError(t, err)
		assert.Len(t, limited, 1)
	})

	t.Run("no journal", func(t *testing.T) {
		account, err := NewAccount(solana.NewWallet().PrivateKey, solana.PublicKey{})
		require.NoError(t, err)
		manager := NewManager(account, new(MockLedger), new(MockSender), nil, zerolog.Nop())

		list, err := manager.Withdrawals(context.Background(), 10)
		require.NoError(t, err)
		assert.Empty(t, list)
	})

	t.Run("journal failure", func(t *testing.T) {
		f := newFixture(t)
		require.NoError(t, f.journal.Close())

		_, err := f.manager.Withdrawals(context.Background(), 10)
		assert.True(t, errors.IsKind(err, errors.KindDatabase))
	})
}

func TestNewAccount(t *testing.T) {
	key := solana.NewWallet().PrivateKey

	_, err := NewAccount(solana.PrivateKey{1, 2, 3}, solana.PublicKey{})
	assert.Error(t, err)

	_, err = NewAccount(key, key.PublicKey())
	assert.Error(t, err)

	account, err := NewAccount(key, solana.PublicKey{})
	require.NoError(t, err)
	assert.Equal(t, key.PublicKey(), account.Address())
	assert.True(t, account.Owner().IsZero())
	assert.Nil(t, account.signer(solana.NewWallet().PublicKey()))
	assert.NotNil(t, account.signer(key.PublicKey()))
}
