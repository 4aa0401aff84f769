// Package core wires cost estimation, composition, assembly, submission and
// the treasury into the operations exposed by the passport node.
package core

import (
	"context"
	"fmt"
	"strings"

	"github.com/gagliardetto/solana-go"
	"github.com/rs/zerolog"

	"github.com/smartpassport/passport-node/issuer/compose"
	"github.com/smartpassport/passport-node/issuer/constant"
	"github.com/smartpassport/passport-node/issuer/cost"
	"github.com/smartpassport/passport-node/issuer/errors"
	"github.com/smartpassport/passport-node/issuer/keys"
	"github.com/smartpassport/passport-node/issuer/metrics"
	"github.com/smartpassport/passport-node/issuer/storage"
	"github.com/smartpassport/passport-node/issuer/store"
	"github.com/smartpassport/passport-node/issuer/submit"
	"github.com/smartpassport/passport-node/issuer/treasury"
)

// Deps are the collaborators of a Service. Journal and Health may be nil.
type Deps struct {
	Estimator     Estimator
	Composer      *compose.Composer
	Assembler     Assembler
	Submitter     Submitter
	Treasury      Treasury
	MetadataStore storage.MetadataStore
	Journal       MintJournal
	Health        HealthChecker

	// TreasuryOwner verifies withdrawal proofs. Withdrawals are refused
	// while it is zero.
	TreasuryOwner solana.PublicKey
	Cluster       string
	UploadRetry   *errors.RetryConfig
}

// Service implements the passport node operations.
type Service struct {
	deps   Deps
	logger zerolog.Logger
}

// NewService validates deps and creates a Service.
func NewService(deps Deps, logger zerolog.Logger) (*Service, error) {
	switch {
	case deps.Estimator == nil:
		return nil, fmt.Errorf("estimator is required")
	case deps.Composer == nil:
		return nil, fmt.Errorf("composer is required")
	case deps.Assembler == nil:
		return nil, fmt.Errorf("assembler is required")
	case deps.Submitter == nil:
		return nil, fmt.Errorf("submitter is required")
	case deps.Treasury == nil:
		return nil, fmt.Errorf("treasury is required")
	case deps.MetadataStore == nil:
		return nil, fmt.Errorf("metadata store is required")
	}
	if deps.UploadRetry == nil {
		deps.UploadRetry = errors.DefaultRetryConfig()
	}
	return &Service{
		deps:   deps,
		logger: logger.With().Str("component", "passport_service").Logger(),
	}, nil
}

// MintInput is a request to prepare a passport mint. Either MetadataURI or
// Passport must be set; with only Passport, the metadata document is built
// and uploaded first.
type MintInput struct {
	MetadataURI string
	Name        string
	Symbol      string
	FeePayer    string
	Collection  string
	Passport    *storage.Passport
}

// Prepared is a mint transaction ready for the wallet's signature.
type Prepared struct {
	Transaction          string     `json:"transaction"`
	MintAddress          string     `json:"mint_address"`
	MetadataURI          string     `json:"metadata_uri"`
	Cost                 cost.Quote `json:"cost"`
	LastValidBlockHeight uint64     `json:"last_valid_block_height"`
}

// Submitted is a confirmed submission.
type Submitted struct {
	Signature   string `json:"signature"`
	ExplorerURL string `json:"explorer_url"`
}

// Withdrawn is a confirmed treasury withdrawal.
type Withdrawn struct {
	Submitted
	BalanceBefore uint64  `json:"balance_before"`
	BalanceAfter  *uint64 `json:"balance_after,omitempty"`
}

// Healthy reports whether the ledger RPC answers.
func (s *Service) Healthy(ctx context.Context) bool {
	if s.deps.Health == nil {
		return true
	}
	return s.deps.Health.IsHealthy(ctx)
}

// Quote returns the current cost of minting a passport.
func (s *Service) Quote(ctx context.Context) (cost.Quote, error) {
	breakdown, err := s.deps.Estimator.Estimate(ctx)
	if err != nil {
		return cost.Quote{}, err
	}
	return breakdown.Quote(), nil
}

// QuoteCollection returns the current cost of minting a collection. The
// accounts created match a passport mint.
func (s *Service) QuoteCollection(ctx context.Context) (cost.Quote, error) {
	return s.Quote(ctx)
}

// PrepareMint composes and assembles a passport mint for in.FeePayer.
func (s *Service) PrepareMint(ctx context.Context, in MintInput) (*Prepared, error) {
	return s.prepare(ctx, "prepare_mint", constant.TxTypeNFT, in)
}

// PrepareCollection composes and assembles a sized collection mint.
func (s *Service) PrepareCollection(ctx context.Context, in MintInput) (*Prepared, error) {
	if in.Collection != "" {
		return nil, errors.NewInputError("prepare_collection", "a collection cannot belong to another collection")
	}
	return s.prepare(ctx, "prepare_collection", constant.TxTypeCollection, in)
}

func (s *Service) prepare(ctx context.Context, op, kind string, in MintInput) (*Prepared, error) {
	feePayer, err := parseAddress(op, "fee_payer", in.FeePayer)
	if err != nil {
		return nil, err
	}
	var collection *solana.PublicKey
	if in.Collection != "" {
		pk, err := parseAddress(op, "collection", in.Collection)
		if err != nil {
			return nil, err
		}
		collection = &pk
	}
	if strings.TrimSpace(in.Name) == "" {
		return nil, errors.NewInputError(op, "name is required")
	}
	symbol := in.Symbol
	if symbol == "" {
		symbol = compose.DeriveSymbol(in.Name)
	}

	metadataURI := in.MetadataURI
	if metadataURI == "" {
		if in.Passport == nil {
			return nil, errors.NewInputError(op, "metadata_uri or passport is required")
		}
		metadataURI, err = s.uploadPassport(ctx, in.Name, symbol, *in.Passport)
		if err != nil {
			return nil, err
		}
	}

	breakdown, err := s.deps.Estimator.Estimate(ctx)
	if err != nil {
		return nil, err
	}

	asset, err := keys.NewAssetIdentity()
	if err != nil {
		return nil, errors.NewInternalError(op, "failed to generate asset identity", err)
	}

	req := compose.Request{
		MetadataURI: metadataURI,
		Name:        in.Name,
		Symbol:      symbol,
		FeePayer:    feePayer,
		Collection:  collection,
		ServiceFee:  breakdown.ServiceFee,
	}
	var plan *compose.Plan
	if kind == constant.TxTypeCollection {
		plan, err = s.deps.Composer.ComposeCollection(req, breakdown, asset)
	} else {
		plan, err = s.deps.Composer.ComposeMint(req, breakdown, asset)
	}
	if err != nil {
		return nil, err
	}

	envelope, err := s.deps.Assembler.Assemble(ctx, plan.Instructions, feePayer, &asset)
	if err != nil {
		return nil, err
	}

	if s.deps.Journal != nil {
		record := &store.PassportMint{
			MintAddress: plan.Mint.String(),
			FeePayer:    feePayer.String(),
			Kind:        kind,
			Name:        in.Name,
			MetadataURI: metadataURI,
			ServiceFee:  breakdown.ServiceFee,
		}
		if err := s.deps.Journal.RecordPreparedMint(record); err != nil {
			return nil, errors.NewDatabaseError(op, "failed to record prepared mint", err)
		}
	}
	metrics.MintPrepared(kind)

	s.logger.Info().
		Str("kind", kind).
		Str("mint", plan.Mint.String()).
		Str("fee_payer", feePayer.String()).
		Uint64("service_fee", breakdown.ServiceFee).
		Int("instructions", len(plan.Instructions)).
		Msg("mint transaction prepared")

	return &Prepared{
		Transaction:          envelope.Transaction,
		MintAddress:          plan.Mint.String(),
		MetadataURI:          metadataURI,
		Cost:                 breakdown.Quote(),
		LastValidBlockHeight: envelope.LastValidBlockHeight,
	}, nil
}

func (s *Service) uploadPassport(ctx context.Context, name, symbol string, passport storage.Passport) (string, error) {
	data, err := storage.NewPassportDocument(name, symbol, passport).Marshal()
	if err != nil {
		return "", errors.NewInternalError("upload_metadata", "failed to encode metadata document", err)
	}

	var uri string
	err = errors.RetryWithConfig(ctx, func() error {
		var storeErr error
		uri, storeErr = s.deps.MetadataStore.Store(ctx, data, storage.ContentTypeJSON)
		return storeErr
	}, s.deps.UploadRetry)
	if err != nil {
		metrics.Upload("metadata", "failed")
		return "", errors.WrapKind(err, errors.KindUpload, "upload_metadata", "failed to upload metadata document")
	}
	metrics.Upload("metadata", "stored")

	s.logger.Debug().Str("uri", uri).Int("bytes", len(data)).Msg("metadata document uploaded")
	return uri, nil
}

// UploadImage stores a passport image and returns its URI. contentType is
// taken as declared by the client and must be an image type; the bytes
// themselves are not inspected.
func (s *Service) UploadImage(ctx context.Context, data []byte, contentType string) (string, error) {
	const op = "upload_image"

	contentType = strings.TrimSpace(contentType)
	switch {
	case len(data) == 0:
		return "", errors.NewInputError(op, "image is empty")
	case len(data) > constant.MaxImageBytes:
		return "", errors.NewInputError(op, fmt.Sprintf("image exceeds %d bytes", constant.MaxImageBytes)).
			WithContext("size", len(data))
	case !strings.HasPrefix(strings.ToLower(contentType), "image/"):
		return "", errors.NewInputError(op, fmt.Sprintf("content type %q is not an image type", contentType))
	}

	var uri string
	err := errors.RetryWithConfig(ctx, func() error {
		var storeErr error
		uri, storeErr = s.deps.MetadataStore.Store(ctx, data, contentType)
		return storeErr
	}, s.deps.UploadRetry)
	if err != nil {
		metrics.Upload("image", "failed")
		return "", errors.WrapKind(err, errors.KindUpload, op, "failed to upload image")
	}
	metrics.Upload("image", "stored")

	s.logger.Info().
		Str("uri", uri).
		Str("content_type", contentType).
		Int("bytes", len(data)).
		Msg("passport image uploaded")
	return uri, nil
}

// Submit broadcasts a wallet-signed transaction of the given type and waits
// for confirmation. Prepared mints are marked with the outcome.
func (s *Service) Submit(ctx context.Context, encoded, txType string) (*Submitted, error) {
	const op = "submit_signed_transaction"

	if txType == "" {
		txType = constant.TxTypeNFT
	}
	if txType != constant.TxTypeNFT && txType != constant.TxTypeCollection {
		return nil, errors.NewInputError(op, fmt.Sprintf("unknown transaction type %q", txType))
	}

	tx, err := submit.Decode(encoded)
	if err != nil {
		return nil, err
	}
	record := s.findPreparedMint(tx)

	sig, err := s.deps.Submitter.SubmitTransaction(ctx, tx)
	if err != nil {
		s.recordOutcome(record, txType, sig, err)
		return nil, err
	}
	s.recordOutcome(record, txType, sig, nil)

	return &Submitted{
		Signature:   sig.String(),
		ExplorerURL: ExplorerURL(sig.String(), s.deps.Cluster),
	}, nil
}

// findPreparedMint returns the journal record of the mint a transaction
// creates. The mint is one of the non-payer signers.
func (s *Service) findPreparedMint(tx *solana.Transaction) *store.PassportMint {
	if s.deps.Journal == nil {
		return nil
	}
	signers := tx.Message.Signers()
	for i := 1; i < len(signers); i++ {
		record, err := s.deps.Journal.GetMint(signers[i].String())
		if err != nil {
			s.logger.Warn().Err(err).Msg("failed to look up prepared mint")
			return nil
		}
		if record != nil {
			return record
		}
	}
	return nil
}

func (s *Service) recordOutcome(record *store.PassportMint, txType string, sig solana.Signature, cause error) {
	outcome := store.MintStatusConfirmed
	switch {
	case cause == nil:
	case errors.IsKind(cause, errors.KindConfirmationTimeout):
		outcome = store.MintStatusTimedOut
	case errors.IsKind(cause, errors.KindRPC), errors.IsKind(cause, errors.KindNetwork):
		outcome = store.MintStatusFailed
	default:
		// Rejected before broadcast; the prepared mint stays pending.
		metrics.Submission(txType, "rejected")
		return
	}
	metrics.Submission(txType, outcome)

	if record == nil {
		return
	}
	var signature string
	if sig != (solana.Signature{}) {
		signature = sig.String()
	}
	rows, err := s.deps.Journal.UpdateMintStatus(record.MintAddress, outcome, signature)
	if err != nil {
		s.logger.Error().Err(err).Str("mint", record.MintAddress).Msg("failed to update mint status")
		return
	}
	if outcome == store.MintStatusConfirmed && rows > 0 && record.ServiceFee > 0 {
		metrics.FeeCollected(record.ServiceFee)
		s.logger.Info().
			Str("mint", record.MintAddress).
			Uint64("service_fee", record.ServiceFee).
			Msg("service fee collected")
	}
}

// TreasuryInfo returns the treasury snapshot.
func (s *Service) TreasuryInfo(ctx context.Context) (*treasury.Info, error) {
	info, err := s.deps.Treasury.Info(ctx)
	if err != nil {
		return nil, err
	}
	metrics.TreasuryBalance(info.Balance)
	return info, nil
}

// TreasuryWithdrawals returns recent withdrawal attempts, newest first. A
// limit outside 1..MaxWithdrawalLimit falls back to the default or the cap.
func (s *Service) TreasuryWithdrawals(ctx context.Context, limit int) ([]treasury.Withdrawal, error) {
	switch {
	case limit <= 0:
		limit = constant.DefaultWithdrawalLimit
	case limit > constant.MaxWithdrawalLimit:
		limit = constant.MaxWithdrawalLimit
	}
	return s.deps.Treasury.Withdrawals(ctx, limit)
}

// WithdrawInput is a request to move treasury funds to Recipient.
// OwnerSignature is a base58 signature by the treasury owner over
// WithdrawalMessage(Amount, Recipient).
type WithdrawInput struct {
	Amount         uint64
	Recipient      string
	OwnerSignature string
}

// WithdrawalMessage is the message the treasury owner signs to approve a
// withdrawal.
func WithdrawalMessage(amount uint64, recipient string) []byte {
	return []byte(fmt.Sprintf("passportd-withdraw:%d:%s", amount, recipient))
}

// Withdraw verifies the owner's approval and withdraws from the treasury.
func (s *Service) Withdraw(ctx context.Context, in WithdrawInput) (*Withdrawn, error) {
	const op = "withdraw"

	recipient, err := parseAddress(op, "recipient", in.Recipient)
	if err != nil {
		return nil, err
	}
	if err := s.verifyOwner(op, in); err != nil {
		metrics.Withdrawal("unauthorized")
		return nil, err
	}

	result, err := s.deps.Treasury.Withdraw(ctx, treasury.WithdrawRequest{
		Amount:     in.Amount,
		Recipient:  recipient,
		OwnerProof: in.OwnerSignature,
	})
	if err != nil {
		metrics.Withdrawal(strings.ToLower(string(errors.KindOf(err))))
		return nil, err
	}
	metrics.Withdrawal("confirmed")
	if result.BalanceAfter != nil {
		metrics.TreasuryBalance(*result.BalanceAfter)
	}

	return &Withdrawn{
		Submitted: Submitted{
			Signature:   result.Signature.String(),
			ExplorerURL: ExplorerURL(result.Signature.String(), s.deps.Cluster),
		},
		BalanceBefore: result.BalanceBefore,
		BalanceAfter:  result.BalanceAfter,
	}, nil
}

func (s *Service) verifyOwner(op string, in WithdrawInput) error {
	if s.deps.TreasuryOwner.IsZero() {
		return errors.NewUnauthorizedError(op, "treasury owner is not configured")
	}
	if in.OwnerSignature == "" {
		return errors.NewUnauthorizedError(op, "owner signature is required")
	}
	sig, err := solana.SignatureFromBase58(in.OwnerSignature)
	if err != nil {
		return errors.NewUnauthorizedError(op, "owner signature is malformed")
	}
	if !sig.Verify(s.deps.TreasuryOwner, WithdrawalMessage(in.Amount, in.Recipient)) {
		return errors.NewUnauthorizedError(op, "owner signature does not match")
	}
	return nil
}

func parseAddress(op, field, value string) (solana.PublicKey, error) {
	if value == "" {
		return solana.PublicKey{}, errors.NewInputError(op, field+" is required")
	}
	pk, err := solana.PublicKeyFromBase58(value)
	if err != nil {
		return solana.PublicKey{}, errors.NewInputError(op, fmt.Sprintf("%s is not a valid address: %v", field, err))
	}
	return pk, nil
}
