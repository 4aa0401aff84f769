// Package compose builds the ordered instruction list that mints a passport
// NFT or a passport collection. Composition is pure: it performs no network
// I/O and never mutates an instruction once built.
package compose

import (
	"strings"
	"unicode/utf8"

	"github.com/gagliardetto/solana-go"
	associatedtokenaccount "github.com/gagliardetto/solana-go/programs/associated-token-account"
	"github.com/gagliardetto/solana-go/programs/system"
	"github.com/gagliardetto/solana-go/programs/token"

	"github.com/smartpassport/passport-node/issuer/constant"
	"github.com/smartpassport/passport-node/issuer/cost"
	"github.com/smartpassport/passport-node/issuer/errors"
	"github.com/smartpassport/passport-node/issuer/keys"
)

const defaultSymbol = "NFT"

// Request describes one asset to mint.
type Request struct {
	MetadataURI string
	Name        string
	Symbol      string
	FeePayer    solana.PublicKey
	// Collection, when set, verifies the new asset as a member of that
	// sized collection.
	Collection *solana.PublicKey
	// ServiceFee is transferred from the fee payer to the treasury when
	// non-zero.
	ServiceFee uint64
}

// Plan is a composed mint: its instructions and the addresses they create.
type Plan struct {
	Instructions   []solana.Instruction
	Mint           solana.PublicKey
	HoldingAccount solana.PublicKey
	Metadata       solana.PublicKey
	MasterEdition  solana.PublicKey
}

// Composer builds mint plans for a fixed treasury and royalty.
type Composer struct {
	treasury           solana.PublicKey
	royaltyBasisPoints uint16
}

// NewComposer creates a Composer.
func NewComposer(treasury solana.PublicKey, royaltyBasisPoints uint16) *Composer {
	return &Composer{
		treasury:           treasury,
		royaltyBasisPoints: royaltyBasisPoints,
	}
}

// ComposeMint returns the instructions that mint one passport NFT:
//
//  1. create the mint account, funded with the quoted rent
//  2. initialize it with zero decimals under the fee payer's authority
//  3. create the fee payer's associated token account
//  4. mint exactly one unit into it
//  5. create the metadata and master edition
//
// followed by the collection verification when req.Collection is set and the
// fee transfer to the treasury when req.ServiceFee is non-zero. Each of steps
// 2 to 5 depends on the state created by the step before it.
func (c *Composer) ComposeMint(req Request, quote cost.CostBreakdown, asset keys.AssetIdentity) (*Plan, error) {
	return c.compose("compose_mint", req, quote, asset, false)
}

// ComposeCollection returns the instructions that mint a sized collection
// asset. The steps match ComposeMint except that the metadata is created with
// collection details and no collection verification is possible.
func (c *Composer) ComposeCollection(req Request, quote cost.CostBreakdown, asset keys.AssetIdentity) (*Plan, error) {
	if req.Collection != nil {
		return nil, errors.NewInputError("compose_collection", "a collection cannot belong to another collection")
	}
	return c.compose("compose_collection", req, quote, asset, true)
}

func (c *Composer) compose(op string, req Request, quote cost.CostBreakdown, asset keys.AssetIdentity, sized bool) (*Plan, error) {
	if asset.IsZero() {
		return nil, errors.NewInputError(op, "asset identity is required")
	}
	symbol, err := validateRequest(op, &req)
	if err != nil {
		return nil, err
	}
	if req.FeePayer.Equals(asset.PublicKey()) {
		return nil, errors.NewInputError(op, "fee payer must differ from the asset identity")
	}
	if req.ServiceFee > 0 && c.treasury.IsZero() {
		return nil, errors.NewConfigError(op, "treasury address is not configured")
	}

	mint := asset.PublicKey()
	payer := req.FeePayer

	holding, _, err := solana.FindAssociatedTokenAddress(payer, mint)
	if err != nil {
		return nil, errors.NewInternalError(op, "failed to derive associated token address", err)
	}
	metadata, err := MetadataAddress(mint)
	if err != nil {
		return nil, errors.NewInternalError(op, "failed to derive metadata address", err)
	}
	edition, err := MasterEditionAddress(mint)
	if err != nil {
		return nil, errors.NewInternalError(op, "failed to derive master edition address", err)
	}

	createMetadata, err := newCreateV1Instruction(
		createV1Accounts{
			Metadata:        metadata,
			MasterEdition:   edition,
			Mint:            mint,
			Authority:       payer,
			Payer:           payer,
			UpdateAuthority: payer,
		},
		assetData{
			Name:                 req.Name,
			Symbol:               symbol,
			URI:                  req.MetadataURI,
			SellerFeeBasisPoints: c.royaltyBasisPoints,
			IsMutable:            true,
			SizedCollection:      sized,
		},
	)
	if err != nil {
		return nil, errors.NewInternalError(op, "failed to encode metadata instruction", err)
	}

	instructions := []solana.Instruction{
		system.NewCreateAccountInstruction(
			quote.MintAccount,
			constant.MintAccountSize,
			solana.TokenProgramID,
			payer,
			mint,
		).Build(),
		token.NewInitializeMintInstruction(0, payer, payer, mint, solana.SysVarRentPubkey).Build(),
		associatedtokenaccount.NewCreateInstruction(payer, payer, mint).Build(),
		token.NewMintToInstruction(1, mint, holding, payer, nil).Build(),
		createMetadata,
	}

	if req.Collection != nil {
		collectionMetadata, err := MetadataAddress(*req.Collection)
		if err != nil {
			return nil, errors.NewInternalError(op, "failed to derive collection metadata address", err)
		}
		collectionEdition, err := MasterEditionAddress(*req.Collection)
		if err != nil {
			return nil, errors.NewInternalError(op, "failed to derive collection master edition address", err)
		}
		instructions = append(instructions, newSetAndVerifySizedCollectionItemInstruction(collectionItemAccounts{
			Metadata:                metadata,
			CollectionAuthority:     payer,
			Payer:                   payer,
			UpdateAuthority:         payer,
			CollectionMint:          *req.Collection,
			CollectionMetadata:      collectionMetadata,
			CollectionMasterEdition: collectionEdition,
		}))
	}

	if req.ServiceFee > 0 {
		instructions = append(instructions, system.NewTransferInstruction(req.ServiceFee, payer, c.treasury).Build())
	}

	return &Plan{
		Instructions:   instructions,
		Mint:           mint,
		HoldingAccount: holding,
		Metadata:       metadata,
		MasterEdition:  edition,
	}, nil
}

func validateRequest(op string, req *Request) (string, error) {
	if req.FeePayer.IsZero() {
		return "", errors.NewInputError(op, "fee payer is required")
	}
	if strings.TrimSpace(req.Name) == "" {
		return "", errors.NewInputError(op, "name is required")
	}
	if len(req.Name) > MaxNameLength {
		return "", errors.NewInputError(op, "name exceeds 32 bytes")
	}
	if req.MetadataURI == "" {
		return "", errors.NewInputError(op, "metadata uri is required")
	}
	if len(req.MetadataURI) > MaxURILength {
		return "", errors.NewInputError(op, "metadata uri exceeds 200 bytes")
	}
	if req.Collection != nil && req.Collection.IsZero() {
		return "", errors.NewInputError(op, "collection address is invalid")
	}

	symbol := req.Symbol
	if symbol == "" {
		symbol = DeriveSymbol(req.Name)
	}
	if len(symbol) > MaxSymbolLength {
		return "", errors.NewInputError(op, "symbol exceeds 10 bytes")
	}
	return symbol, nil
}

// DeriveSymbol returns the first four characters of name upper-cased, or
// "NFT" when name is blank. The result never exceeds MaxSymbolLength bytes
// and is cut on a rune boundary.
func DeriveSymbol(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return defaultSymbol
	}
	if utf8.RuneCountInString(name) > 4 {
		name = string([]rune(name)[:4])
	}
	symbol := strings.ToUpper(name)
	for len(symbol) > MaxSymbolLength {
		_, size := utf8.DecodeLastRuneInString(symbol)
		symbol = symbol[:len(symbol)-size]
	}
	return symbol
}
