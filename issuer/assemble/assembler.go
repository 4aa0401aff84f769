// Package assemble turns composed instructions into a transport-encoded,
// partially signed transaction for a remote wallet to complete.
package assemble

import (
	"context"

	"github.com/gagliardetto/solana-go"
	"github.com/rs/zerolog"

	"github.com/smartpassport/passport-node/issuer/errors"
	"github.com/smartpassport/passport-node/issuer/keys"
)

// BlockhashSource fetches the freshness token for a new transaction.
type BlockhashSource interface {
	LatestBlockhash(ctx context.Context) (solana.Hash, uint64, error)
}

// Envelope is an encoded transaction awaiting the fee payer's signature.
type Envelope struct {
	// Transaction is the base64 wire encoding.
	Transaction          string           `json:"transaction"`
	MintAddress          solana.PublicKey `json:"mint_address"`
	Blockhash            solana.Hash      `json:"blockhash"`
	LastValidBlockHeight uint64           `json:"last_valid_block_height"`
}

// Assembler builds envelopes. It never holds the fee payer's key.
type Assembler struct {
	blockhashes BlockhashSource
	logger      zerolog.Logger
}

// NewAssembler creates an Assembler.
func NewAssembler(blockhashes BlockhashSource, logger zerolog.Logger) *Assembler {
	return &Assembler{
		blockhashes: blockhashes,
		logger:      logger.With().Str("component", "assembler").Logger(),
	}
}

// Assemble builds a transaction paid by feePayer from instructions, signs it
// with asset when one is given, and encodes it. Every required signer must be
// either feePayer or the asset; anything else is rejected before a blockhash
// is fetched.
func (a *Assembler) Assemble(ctx context.Context, instructions []solana.Instruction, feePayer solana.PublicKey, asset *keys.AssetIdentity) (*Envelope, error) {
	const op = "assemble_transaction"

	if len(instructions) == 0 {
		return nil, errors.NewInputError(op, "no instructions to assemble")
	}
	if feePayer.IsZero() {
		return nil, errors.NewInputError(op, "fee payer is required")
	}
	if err := checkSigners(op, instructions, feePayer, asset); err != nil {
		return nil, err
	}

	blockhash, lastValid, err := a.blockhashes.LatestBlockhash(ctx)
	if err != nil {
		return nil, errors.WrapKind(err, errors.KindNetwork, op, "failed to fetch blockhash")
	}

	tx, err := solana.NewTransaction(instructions, blockhash, solana.TransactionPayer(feePayer))
	if err != nil {
		return nil, errors.NewInputError(op, "failed to build transaction: "+err.Error())
	}

	// Unsigned slots travel as zero signatures for the wallet to fill.
	tx.Signatures = make([]solana.Signature, tx.Message.Header.NumRequiredSignatures)

	var mint solana.PublicKey
	if asset != nil && !asset.IsZero() {
		mint = asset.PublicKey()
		if _, err := tx.PartialSign(asset.Signer()); err != nil {
			return nil, errors.NewInternalError(op, "failed to sign with asset identity", err)
		}
	}

	encoded, err := tx.ToBase64()
	if err != nil {
		return nil, errors.NewInternalError(op, "failed to encode transaction", err)
	}

	a.logger.Debug().
		Str("fee_payer", feePayer.String()).
		Str("mint", mint.String()).
		Str("blockhash", blockhash.String()).
		Int("instructions", len(instructions)).
		Msg("transaction assembled")

	return &Envelope{
		Transaction:          encoded,
		MintAddress:          mint,
		Blockhash:            blockhash,
		LastValidBlockHeight: lastValid,
	}, nil
}

func checkSigners(op string, instructions []solana.Instruction, feePayer solana.PublicKey, asset *keys.AssetIdentity) error {
	for i, ix := range instructions {
		for _, meta := range ix.Accounts() {
			if !meta.IsSigner || meta.PublicKey.Equals(feePayer) {
				continue
			}
			if asset != nil && !asset.IsZero() && meta.PublicKey.Equals(asset.PublicKey()) {
				continue
			}
			return errors.NewInputError(op, "instruction requires a signer the service cannot provide").
				WithContext("instruction", i).
				WithContext("signer", meta.PublicKey.String())
		}
	}
	return nil
}
