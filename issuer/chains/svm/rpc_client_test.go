package svm

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/programs/system"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smartpassport/passport-node/issuer/errors"
)

func newTestClient(t *testing.T, urls ...string) *RPCClient {
	t.Helper()
	client, err := NewRPCClient(urls, rpc.CommitmentConfirmed, zerolog.New(zerolog.NewTestWriter(t)))
	require.NoError(t, err)
	return client
}

func TestNewRPCClient(t *testing.T) {
	t.Run("no urls", func(t *testing.T) {
		_, err := NewRPCClient(nil, rpc.CommitmentConfirmed, zerolog.Nop())
		require.ErrorContains(t, err, "no RPC URLs provided")
	})

	t.Run("only empty urls", func(t *testing.T) {
		_, err := NewRPCClient([]string{""}, rpc.CommitmentConfirmed, zerolog.Nop())
		require.ErrorContains(t, err, "no RPC URLs provided")
	})

	t.Run("empty urls are skipped", func(t *testing.T) {
		client, err := NewRPCClient([]string{"", "http://a:8899", "", "http://b:8899"}, rpc.CommitmentConfirmed, zerolog.Nop())
		require.NoError(t, err)
		assert.Equal(t, []string{"http://a:8899", "http://b:8899"}, client.Endpoints())
	})

	t.Run("defaults commitment", func(t *testing.T) {
		client, err := NewRPCClient([]string{"http://localhost:8899"}, "", zerolog.Nop())
		require.NoError(t, err)
		assert.Equal(t, rpc.CommitmentConfirmed, client.Commitment())
	})
}

func TestMinimumBalanceForRentExemption(t *testing.T) {
	server := newMockRPCServer(t, map[string]rpcHandler{
		"getMinimumBalanceForRentExemption": func(params json.RawMessage) (interface{}, *rpcErrorBody) {
			var p []json.RawMessage
			require.NoError(t, json.Unmarshal(params, &p))
			var size uint64
			require.NoError(t, json.Unmarshal(p[0], &size))
			return size * 10, nil
		},
	})
	client := newTestClient(t, server.URL)

	lamports, err := client.MinimumBalanceForRentExemption(context.Background(), 82)
	require.NoError(t, err)
	assert.Equal(t, uint64(820), lamports)
}

func TestFailover(t *testing.T) {
	bad := failingServer(t)
	good := newMockRPCServer(t, map[string]rpcHandler{
		"getBalance": func(json.RawMessage) (interface{}, *rpcErrorBody) {
			return contextValue(1234), nil
		},
	})
	client := newTestClient(t, bad.URL, good.URL)

	for i := 0; i < 3; i++ {
		balance, err := client.Balance(context.Background(), solana.SystemProgramID)
		require.NoError(t, err)
		assert.Equal(t, uint64(1234), balance)
	}
}

func TestFailoverLogsFailingEndpoint(t *testing.T) {
	bad := failingServer(t)
	good := newMockRPCServer(t, map[string]rpcHandler{
		"getBalance": func(json.RawMessage) (interface{}, *rpcErrorBody) {
			return contextValue(1), nil
		},
	})

	var logs bytes.Buffer
	client, err := NewRPCClient([]string{bad.URL, good.URL}, rpc.CommitmentConfirmed, zerolog.New(&logs))
	require.NoError(t, err)

	_, err = client.Balance(context.Background(), solana.SystemProgramID)
	require.NoError(t, err)
	assert.Contains(t, logs.String(), `"endpoint":"`+bad.URL+`"`)
	assert.NotContains(t, logs.String(), good.URL)
}

func TestErrorClassification(t *testing.T) {
	t.Run("rpc error", func(t *testing.T) {
		server := newMockRPCServer(t, map[string]rpcHandler{
			"getBalance": func(json.RawMessage) (interface{}, *rpcErrorBody) {
				return nil, &rpcErrorBody{Code: -32602, Message: "Invalid param"}
			},
		})
		client := newTestClient(t, server.URL)

		_, err := client.Balance(context.Background(), solana.SystemProgramID)
		require.Error(t, err)
		assert.True(t, errors.IsKind(err, errors.KindRPC))
		assert.True(t, errors.IsRetryable(err))
	})

	t.Run("unreachable endpoint", func(t *testing.T) {
		bad := failingServer(t)
		client := newTestClient(t, bad.URL)

		_, err := client.MinimumBalanceForRentExemption(context.Background(), 165)
		require.Error(t, err)
		assert.True(t, errors.IsKind(err, errors.KindNetwork))
		assert.True(t, errors.IsRetryable(err))
	})

	t.Run("cancelled context", func(t *testing.T) {
		client := newTestClient(t, "http://127.0.0.1:1")
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		_, _, err := client.LatestBlockhash(ctx)
		require.Error(t, err)
		assert.True(t, errors.IsKind(err, errors.KindNetwork))
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestLatestBlockhash(t *testing.T) {
	hash := solana.Hash(solana.NewWallet().PublicKey())
	server := newMockRPCServer(t, map[string]rpcHandler{
		"getLatestBlockhash": func(json.RawMessage) (interface{}, *rpcErrorBody) {
			return contextValue(map[string]interface{}{
				"blockhash":            hash.String(),
				"lastValidBlockHeight": 150,
			}), nil
		},
	})
	client := newTestClient(t, server.URL)

	got, height, err := client.LatestBlockhash(context.Background())
	require.NoError(t, err)
	assert.Equal(t, hash, got)
	assert.Equal(t, uint64(150), height)
}

func TestSendTransaction(t *testing.T) {
	payer := solana.NewWallet()
	tx, err := solana.NewTransaction(
		[]solana.Instruction{system.NewTransferInstruction(1, payer.PublicKey(), solana.NewWallet().PublicKey()).Build()},
		solana.Hash(solana.NewWallet().PublicKey()),
		solana.TransactionPayer(payer.PublicKey()),
	)
	require.NoError(t, err)
	_, err = tx.Sign(func(pk solana.PublicKey) *solana.PrivateKey {
		if pk.Equals(payer.PublicKey()) {
			return &payer.PrivateKey
		}
		return nil
	})
	require.NoError(t, err)

	t.Run("returns signature", func(t *testing.T) {
		server := newMockRPCServer(t, map[string]rpcHandler{
			"sendTransaction": func(json.RawMessage) (interface{}, *rpcErrorBody) {
				return tx.Signatures[0].String(), nil
			},
		})
		client := newTestClient(t, server.URL)

		sig, err := client.SendTransaction(context.Background(), tx)
		require.NoError(t, err)
		assert.Equal(t, tx.Signatures[0], sig)
	})

	t.Run("single attempt without failover", func(t *testing.T) {
		first := newMockRPCServer(t, map[string]rpcHandler{
			"sendTransaction": func(json.RawMessage) (interface{}, *rpcErrorBody) {
				return nil, &rpcErrorBody{Code: -32002, Message: "Transaction simulation failed"}
			},
		})
		second := newMockRPCServer(t, map[string]rpcHandler{
			"sendTransaction": func(json.RawMessage) (interface{}, *rpcErrorBody) {
				return tx.Signatures[0].String(), nil
			},
		})
		client := newTestClient(t, first.URL, second.URL)

		_, err := client.SendTransaction(context.Background(), tx)
		require.Error(t, err)
		assert.True(t, errors.IsKind(err, errors.KindRPC))
		assert.Equal(t, 1, first.callCount("sendTransaction"))
		assert.Equal(t, 0, second.callCount("sendTransaction"))
	})
}

func TestSignatureStatus(t *testing.T) {
	sig := solana.Signature{1, 2, 3}

	t.Run("unknown signature", func(t *testing.T) {
		server := newMockRPCServer(t, map[string]rpcHandler{
			"getSignatureStatuses": func(json.RawMessage) (interface{}, *rpcErrorBody) {
				return contextValue([]interface{}{nil}), nil
			},
		})
		client := newTestClient(t, server.URL)

		status, err := client.SignatureStatus(context.Background(), sig)
		require.NoError(t, err)
		assert.Nil(t, status)
	})

	t.Run("confirmed", func(t *testing.T) {
		server := newMockRPCServer(t, map[string]rpcHandler{
			"getSignatureStatuses": func(json.RawMessage) (interface{}, *rpcErrorBody) {
				return contextValue([]interface{}{map[string]interface{}{
					"slot":               10,
					"confirmations":      nil,
					"err":                nil,
					"confirmationStatus": "confirmed",
				}}), nil
			},
		})
		client := newTestClient(t, server.URL)

		status, err := client.SignatureStatus(context.Background(), sig)
		require.NoError(t, err)
		require.NotNil(t, status)
		assert.Equal(t, rpc.ConfirmationStatusConfirmed, status.ConfirmationStatus)
		assert.Nil(t, status.Err)
	})
}

func TestIsHealthy(t *testing.T) {
	healthy := newMockRPCServer(t, map[string]rpcHandler{
		"getHealth": func(json.RawMessage) (interface{}, *rpcErrorBody) { return "ok", nil },
	})
	unhealthy := newMockRPCServer(t, map[string]rpcHandler{
		"getHealth": func(json.RawMessage) (interface{}, *rpcErrorBody) {
			return nil, &rpcErrorBody{Code: -32005, Message: "Node is behind"}
		},
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	assert.True(t, newTestClient(t, unhealthy.URL, healthy.URL).IsHealthy(ctx))
	assert.False(t, newTestClient(t, unhealthy.URL).IsHealthy(ctx))

	client := newTestClient(t, healthy.URL)
	client.Close()
	assert.False(t, client.IsHealthy(ctx))
}
