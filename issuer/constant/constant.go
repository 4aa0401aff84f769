package constant

import "os"

// <NodeDir>/                    (e.g., /home/issuer/.passportd)
// └── config/
//	└── passportd_config.json
// └── keys/
//	└── keypair.json            (service identity)
//	└── treasury_keypair.json   (treasury identity, unrecoverable if lost)
// └── databases/
//	└── passports.db

const (
	NodeDir = ".passportd"

	ConfigSubdir   = "config"
	ConfigFileName = "passportd_config.json"

	KeysSubdir = "keys"

	DatabasesSubdir  = "databases"
	DatabaseFileName = "passports.db"
)

var DefaultNodeHome = os.ExpandEnv("$HOME/") + NodeDir

// LamportsPerSOL is the number of lamports in one SOL.
const LamportsPerSOL uint64 = 1_000_000_000

// Fixed account sizes, in bytes, of the accounts a passport mint creates.
const (
	MintAccountSize     uint64 = 82
	TokenAccountSize    uint64 = 165
	MetadataAccountSize uint64 = 679
)

// Transaction types accepted by the submission endpoint.
const (
	TxTypeNFT        = "nft"
	TxTypeCollection = "collection"
)

// MaxImageBytes caps the size of a passport image upload.
const MaxImageBytes = 10 << 20

// Treasury withdrawal listing bounds.
const (
	DefaultWithdrawalLimit = 20
	MaxWithdrawalLimit     = 100
)
