package compose

import (
	"bytes"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
)

// Token Metadata instruction discriminators.
const (
	instructionCreate                         uint8 = 42
	instructionSetAndVerifySizedCollectionItem uint8 = 32
)

const (
	createArgsV1             uint8 = 0
	tokenStandardNonFungible uint8 = 0
	collectionDetailsV1      uint8 = 0
	printSupplyZero          uint8 = 0
)

// On-chain limits enforced by the Token Metadata program.
const (
	MaxNameLength   = 32
	MaxSymbolLength = 10
	MaxURILength    = 200
)

var (
	metadataSeed = []byte("metadata")
	editionSeed  = []byte("edition")
)

// MetadataAddress derives the metadata account of mint.
func MetadataAddress(mint solana.PublicKey) (solana.PublicKey, error) {
	addr, _, err := solana.FindProgramAddress(
		[][]byte{metadataSeed, solana.TokenMetadataProgramID.Bytes(), mint.Bytes()},
		solana.TokenMetadataProgramID,
	)
	return addr, err
}

// MasterEditionAddress derives the master edition account of mint.
func MasterEditionAddress(mint solana.PublicKey) (solana.PublicKey, error) {
	addr, _, err := solana.FindProgramAddress(
		[][]byte{metadataSeed, solana.TokenMetadataProgramID.Bytes(), mint.Bytes(), editionSeed},
		solana.TokenMetadataProgramID,
	)
	return addr, err
}

// assetData is the subset of the CreateV1 asset data this node sets. Fields
// not represented here are always encoded as None/false.
type assetData struct {
	Name                 string
	Symbol               string
	URI                  string
	SellerFeeBasisPoints uint16
	IsMutable            bool
	SizedCollection      bool
}

func encodeCreateV1(data assetData) ([]byte, error) {
	buf := new(bytes.Buffer)
	enc := bin.NewBorshEncoder(buf)

	steps := []func() error{
		func() error { return enc.WriteUint8(instructionCreate) },
		func() error { return enc.WriteUint8(createArgsV1) },
		func() error { return writeBorshString(enc, data.Name) },
		func() error { return writeBorshString(enc, data.Symbol) },
		func() error { return writeBorshString(enc, data.URI) },
		func() error { return enc.WriteUint16(data.SellerFeeBasisPoints, bin.LE) },
		func() error { return enc.WriteBool(false) }, // creators
		func() error { return enc.WriteBool(false) }, // primary_sale_happened
		func() error { return enc.WriteBool(data.IsMutable) },
		func() error { return enc.WriteUint8(tokenStandardNonFungible) },
		func() error { return enc.WriteBool(false) }, // collection
		func() error { return enc.WriteBool(false) }, // uses
		func() error { return writeCollectionDetails(enc, data.SizedCollection) },
		func() error { return enc.WriteBool(false) }, // rule_set
		func() error { return enc.WriteBool(false) }, // decimals
		func() error { return enc.WriteBool(true) },  // print_supply
		func() error { return enc.WriteUint8(printSupplyZero) },
	}
	for _, step := range steps {
		if err := step(); err != nil {
			return nil, err
		}
	}
	return buf.Bytes(), nil
}

func writeBorshString(enc *bin.Encoder, s string) error {
	if err := enc.WriteUint32(uint32(len(s)), bin.LE); err != nil {
		return err
	}
	return enc.WriteBytes([]byte(s), false)
}

func writeCollectionDetails(enc *bin.Encoder, sized bool) error {
	if !sized {
		return enc.WriteBool(false)
	}
	if err := enc.WriteBool(true); err != nil {
		return err
	}
	if err := enc.WriteUint8(collectionDetailsV1); err != nil {
		return err
	}
	return enc.WriteUint64(0, bin.LE)
}

// createV1Accounts are the accounts of a Token Metadata CreateV1 instruction
// for a non-fungible asset.
type createV1Accounts struct {
	Metadata        solana.PublicKey
	MasterEdition   solana.PublicKey
	Mint            solana.PublicKey
	Authority       solana.PublicKey
	Payer           solana.PublicKey
	UpdateAuthority solana.PublicKey
}

func newCreateV1Instruction(accounts createV1Accounts, data assetData) (solana.Instruction, error) {
	payload, err := encodeCreateV1(data)
	if err != nil {
		return nil, err
	}

	return solana.NewInstruction(
		solana.TokenMetadataProgramID,
		solana.AccountMetaSlice{
			solana.NewAccountMeta(accounts.Metadata, true, false),
			solana.NewAccountMeta(accounts.MasterEdition, true, false),
			solana.NewAccountMeta(accounts.Mint, true, true),
			solana.NewAccountMeta(accounts.Authority, false, true),
			solana.NewAccountMeta(accounts.Payer, true, true),
			solana.NewAccountMeta(accounts.UpdateAuthority, false, true),
			solana.NewAccountMeta(solana.SystemProgramID, false, false),
			solana.NewAccountMeta(solana.SysVarInstructionsPubkey, false, false),
			solana.NewAccountMeta(solana.TokenProgramID, false, false),
		},
		payload,
	), nil
}

// collectionItemAccounts are the accounts of SetAndVerifySizedCollectionItem.
type collectionItemAccounts struct {
	Metadata                solana.PublicKey
	CollectionAuthority     solana.PublicKey
	Payer                   solana.PublicKey
	UpdateAuthority         solana.PublicKey
	CollectionMint          solana.PublicKey
	CollectionMetadata      solana.PublicKey
	CollectionMasterEdition solana.PublicKey
}

func newSetAndVerifySizedCollectionItemInstruction(accounts collectionItemAccounts) solana.Instruction {
	return solana.NewInstruction(
		solana.TokenMetadataProgramID,
		solana.AccountMetaSlice{
			solana.NewAccountMeta(accounts.Metadata, true, false),
			solana.NewAccountMeta(accounts.CollectionAuthority, false, true),
			solana.NewAccountMeta(accounts.Payer, true, true),
			solana.NewAccountMeta(accounts.UpdateAuthority, false, false),
			solana.NewAccountMeta(accounts.CollectionMint, false, false),
			solana.NewAccountMeta(accounts.CollectionMetadata, true, false),
			solana.NewAccountMeta(accounts.CollectionMasterEdition, false, false),
		},
		[]byte{instructionSetAndVerifySizedCollectionItem},
	)
}
