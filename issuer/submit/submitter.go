// Package submit broadcasts wallet-signed transactions and waits for the
// network to confirm them.
package submit

import (
	"context"
	"fmt"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/rs/zerolog"

	"github.com/smartpassport/passport-node/issuer/errors"
)

// Broadcaster sends transactions and reports their status.
type Broadcaster interface {
	SendTransaction(ctx context.Context, tx *solana.Transaction) (solana.Signature, error)
	SignatureStatus(ctx context.Context, sig solana.Signature) (*rpc.SignatureStatusesResult, error)
}

// Submitter broadcasts fully signed transactions and blocks until they reach
// the configured commitment.
type Submitter struct {
	net          Broadcaster
	commitment   rpc.CommitmentType
	timeout      time.Duration
	pollInterval time.Duration
	logger       zerolog.Logger
}

// NewSubmitter creates a Submitter. Zero durations fall back to 60s and 500ms.
func NewSubmitter(net Broadcaster, commitment rpc.CommitmentType, timeout, pollInterval time.Duration, logger zerolog.Logger) *Submitter {
	if commitment == "" {
		commitment = rpc.CommitmentConfirmed
	}
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	if pollInterval <= 0 {
		pollInterval = 500 * time.Millisecond
	}
	return &Submitter{
		net:          net,
		commitment:   commitment,
		timeout:      timeout,
		pollInterval: pollInterval,
		logger:       logger.With().Str("component", "submitter").Logger(),
	}
}

// Decode parses a base64 wire transaction. Any failure is an input error.
func Decode(encoded string) (*solana.Transaction, error) {
	if encoded == "" {
		return nil, errors.NewInputError("decode_transaction", "signed transaction is required")
	}
	tx, err := solana.TransactionFromBase64(encoded)
	if err != nil {
		return nil, errors.NewInputError("decode_transaction", "malformed transaction: "+err.Error())
	}
	return tx, nil
}

// CheckSignatures verifies that every required signer has signed tx and that
// each signature is valid for the message.
func CheckSignatures(tx *solana.Transaction) error {
	const op = "check_signatures"

	signers := tx.Message.Signers()
	if len(tx.Signatures) != len(signers) {
		return errors.NewInputError(op, fmt.Sprintf("transaction carries %d signatures, %d required", len(tx.Signatures), len(signers)))
	}
	for i, signer := range signers {
		if tx.Signatures[i] == (solana.Signature{}) {
			return errors.NewMissingSignatureError(op, signer.String())
		}
	}
	if err := tx.VerifySignatures(); err != nil {
		return errors.NewInputError(op, "invalid signature: "+err.Error())
	}
	return nil
}

// Submit decodes encoded and submits it. See SubmitTransaction.
func (s *Submitter) Submit(ctx context.Context, encoded string) (solana.Signature, error) {
	tx, err := Decode(encoded)
	if err != nil {
		return solana.Signature{}, err
	}
	return s.SubmitTransaction(ctx, tx)
}

// SubmitTransaction checks that tx is completely signed, broadcasts it once
// and polls until it reaches the configured commitment. A transaction that is
// broadcast but not confirmed in time yields a confirmation timeout error
// carrying the signature; it may still land, so it is never resent here.
func (s *Submitter) SubmitTransaction(ctx context.Context, tx *solana.Transaction) (solana.Signature, error) {
	const op = "submit_transaction"

	if err := CheckSignatures(tx); err != nil {
		return solana.Signature{}, err
	}

	sig, err := s.net.SendTransaction(ctx, tx)
	if err != nil {
		return solana.Signature{}, errors.WrapKind(err, errors.KindRPC, op, "failed to broadcast transaction")
	}

	if err := s.awaitConfirmation(ctx, sig); err != nil {
		return sig, err
	}
	return sig, nil
}

func (s *Submitter) awaitConfirmation(ctx context.Context, sig solana.Signature) error {
	const op = "await_confirmation"

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	ticker := time.NewTicker(s.pollInterval)
	defer ticker.Stop()

	start := time.Now()
	for {
		status, err := s.net.SignatureStatus(ctx, sig)
		switch {
		case err != nil:
			s.logger.Debug().Err(err).Str("signature", sig.String()).Msg("signature status query failed")
		case status != nil && status.Err != nil:
			return errors.NewRPCError(op, "transaction failed on chain", fmt.Errorf("%v", status.Err)).
				WithContext("signature", sig.String())
		case status != nil && reached(status.ConfirmationStatus, s.commitment):
			s.logger.Info().
				Str("signature", sig.String()).
				Str("status", string(status.ConfirmationStatus)).
				Dur("elapsed", time.Since(start)).
				Msg("transaction confirmed")
			return nil
		}

		select {
		case <-ctx.Done():
			s.logger.Warn().
				Str("signature", sig.String()).
				Dur("elapsed", time.Since(start)).
				Msg("confirmation not observed before deadline")
			return errors.NewConfirmationTimeoutError(op, sig.String(), ctx.Err())
		case <-ticker.C:
		}
	}
}

func reached(status rpc.ConfirmationStatusType, target rpc.CommitmentType) bool {
	switch target {
	case rpc.CommitmentFinalized:
		return status == rpc.ConfirmationStatusFinalized
	case rpc.CommitmentProcessed:
		return status == rpc.ConfirmationStatusProcessed ||
			status == rpc.ConfirmationStatusConfirmed ||
			status == rpc.ConfirmationStatusFinalized
	default:
		return status == rpc.ConfirmationStatusConfirmed ||
			status == rpc.ConfirmationStatusFinalized
	}
}
