package svm

import (
	"context"
	stderrors "errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/gagliardetto/solana-go/rpc/jsonrpc"
	"github.com/rs/zerolog"

	"github.com/smartpassport/passport-node/issuer/errors"
)

// RPCClient provides the Solana RPC calls the issuer needs, spread over one
// or more endpoints. Reads fail over to the next endpoint; broadcasts do not.
type RPCClient struct {
	clients    []*rpc.Client
	urls       []string
	index      uint64
	commitment rpc.CommitmentType
	mu         sync.RWMutex
	logger     zerolog.Logger
}

// NewRPCClient creates a client for rpcURLs. No network I/O happens here.
func NewRPCClient(rpcURLs []string, commitment rpc.CommitmentType, logger zerolog.Logger) (*RPCClient, error) {
	if len(rpcURLs) == 0 {
		return nil, fmt.Errorf("no RPC URLs provided")
	}
	if commitment == "" {
		commitment = rpc.CommitmentConfirmed
	}

	clients := make([]*rpc.Client, 0, len(rpcURLs))
	urls := make([]string, 0, len(rpcURLs))
	for _, url := range rpcURLs {
		if url == "" {
			continue
		}
		clients = append(clients, rpc.New(url))
		urls = append(urls, url)
	}
	if len(clients) == 0 {
		return nil, fmt.Errorf("no RPC URLs provided")
	}

	return &RPCClient{
		clients:    clients,
		urls:       urls,
		commitment: commitment,
		logger:     logger.With().Str("component", "svm_rpc_client").Logger(),
	}, nil
}

// Commitment returns the commitment level used for reads and confirmation.
func (rc *RPCClient) Commitment() rpc.CommitmentType {
	return rc.commitment
}

// Endpoints returns the RPC URLs in use, in failover order.
func (rc *RPCClient) Endpoints() []string {
	rc.mu.RLock()
	defer rc.mu.RUnlock()
	return append([]string(nil), rc.urls...)
}

// executeWithFailover executes fn against each endpoint in round-robin order
// until one succeeds.
func (rc *RPCClient) executeWithFailover(ctx context.Context, operation string, fn func(*rpc.Client) error) error {
	rc.mu.RLock()
	clients := rc.clients
	urls := rc.urls
	rc.mu.RUnlock()

	if len(clients) == 0 {
		return errors.NewNetworkError(operation, "no RPC clients available", nil)
	}

	var lastErr error
	for attempt := 0; attempt < len(clients); attempt++ {
		if err := ctx.Err(); err != nil {
			return errors.NewNetworkError(operation, "request cancelled", err)
		}

		index := (atomic.AddUint64(&rc.index, 1) - 1) % uint64(len(clients))

		err := fn(clients[index])
		if err == nil {
			return nil
		}
		lastErr = err

		rc.logger.Warn().
			Str("operation", operation).
			Str("endpoint", urls[index]).
			Int("attempt", attempt+1).
			Err(err).
			Msg("operation failed, trying next endpoint")
	}

	return classify(operation, fmt.Sprintf("failed after trying %d endpoints", len(clients)), lastErr)
}

// executeOnce runs fn against a single endpoint.
func (rc *RPCClient) executeOnce(ctx context.Context, operation string, fn func(*rpc.Client) error) error {
	rc.mu.RLock()
	clients := rc.clients
	rc.mu.RUnlock()

	if len(clients) == 0 {
		return errors.NewNetworkError(operation, "no RPC clients available", nil)
	}
	if err := ctx.Err(); err != nil {
		return errors.NewNetworkError(operation, "request cancelled", err)
	}

	index := atomic.AddUint64(&rc.index, 1) - 1
	if err := fn(clients[index%uint64(len(clients))]); err != nil {
		return classify(operation, "request failed", err)
	}
	return nil
}

// classify maps a transport error onto the issuer error taxonomy: answers from
// the node are RPC errors, everything else is a network error.
func classify(operation, message string, err error) error {
	var rpcErr *jsonrpc.RPCError
	if stderrors.As(err, &rpcErr) {
		return errors.NewRPCError(operation, message, err).WithContext("rpc_code", rpcErr.Code)
	}
	return errors.NewNetworkError(operation, message, err)
}

// IsHealthy reports whether any endpoint answers getHealth with "ok".
func (rc *RPCClient) IsHealthy(ctx context.Context) bool {
	err := rc.executeWithFailover(ctx, "get_health", func(client *rpc.Client) error {
		health, err := client.GetHealth(ctx)
		if err != nil {
			return err
		}
		if health != "ok" {
			return fmt.Errorf("node is not healthy: %s", health)
		}
		return nil
	})
	return err == nil
}

// MinimumBalanceForRentExemption returns the rent-exempt minimum, in lamports,
// for an account of size bytes.
func (rc *RPCClient) MinimumBalanceForRentExemption(ctx context.Context, size uint64) (uint64, error) {
	var lamports uint64
	err := rc.executeWithFailover(ctx, "get_minimum_balance_for_rent_exemption", func(client *rpc.Client) error {
		var innerErr error
		lamports, innerErr = client.GetMinimumBalanceForRentExemption(ctx, size, rc.commitment)
		return innerErr
	})
	return lamports, err
}

// LatestBlockhash returns a recent blockhash and the last block height at
// which a transaction using it is still valid.
func (rc *RPCClient) LatestBlockhash(ctx context.Context) (solana.Hash, uint64, error) {
	var (
		blockhash  solana.Hash
		lastHeight uint64
	)
	err := rc.executeWithFailover(ctx, "get_latest_blockhash", func(client *rpc.Client) error {
		resp, innerErr := client.GetLatestBlockhash(ctx, rc.commitment)
		if innerErr != nil {
			return innerErr
		}
		if resp == nil || resp.Value == nil {
			return fmt.Errorf("empty blockhash response")
		}
		blockhash = resp.Value.Blockhash
		lastHeight = resp.Value.LastValidBlockHeight
		return nil
	})
	return blockhash, lastHeight, err
}

// Balance returns the lamport balance of account.
func (rc *RPCClient) Balance(ctx context.Context, account solana.PublicKey) (uint64, error) {
	var balance uint64
	err := rc.executeWithFailover(ctx, "get_balance", func(client *rpc.Client) error {
		resp, innerErr := client.GetBalance(ctx, account, rc.commitment)
		if innerErr != nil {
			return innerErr
		}
		if resp == nil {
			return fmt.Errorf("empty balance response")
		}
		balance = resp.Value
		return nil
	})
	return balance, err
}

// SendTransaction broadcasts a fully signed transaction. It makes exactly one
// attempt; resubmission is the caller's decision.
func (rc *RPCClient) SendTransaction(ctx context.Context, tx *solana.Transaction) (solana.Signature, error) {
	var sig solana.Signature
	err := rc.executeOnce(ctx, "send_transaction", func(client *rpc.Client) error {
		var innerErr error
		sig, innerErr = client.SendTransactionWithOpts(
			ctx,
			tx,
			rpc.TransactionOpts{
				SkipPreflight:       false,
				PreflightCommitment: rc.commitment,
			},
		)
		return innerErr
	})
	if err != nil {
		return solana.Signature{}, err
	}

	rc.logger.Info().
		Str("signature", sig.String()).
		Msg("transaction sent")
	return sig, nil
}

// SignatureStatus returns the status of sig, or nil when the network does not
// know it yet.
func (rc *RPCClient) SignatureStatus(ctx context.Context, sig solana.Signature) (*rpc.SignatureStatusesResult, error) {
	var status *rpc.SignatureStatusesResult
	err := rc.executeWithFailover(ctx, "get_signature_statuses", func(client *rpc.Client) error {
		resp, innerErr := client.GetSignatureStatuses(ctx, false, sig)
		if innerErr != nil {
			return innerErr
		}
		if resp != nil && len(resp.Value) > 0 {
			status = resp.Value[0]
		}
		return nil
	})
	return status, err
}

// Close drops all endpoint clients.
func (rc *RPCClient) Close() {
	rc.mu.Lock()
	defer rc.mu.Unlock()

	// Solana RPC clients don't have explicit Close, but we clear the slice
	rc.clients = nil
}
