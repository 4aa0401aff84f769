package main

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/rs/zerolog"

	"github.com/smartpassport/passport-node/issuer/api"
	"github.com/smartpassport/passport-node/issuer/assemble"
	"github.com/smartpassport/passport-node/issuer/chains/svm"
	"github.com/smartpassport/passport-node/issuer/compose"
	"github.com/smartpassport/passport-node/issuer/config"
	"github.com/smartpassport/passport-node/issuer/constant"
	"github.com/smartpassport/passport-node/issuer/core"
	"github.com/smartpassport/passport-node/issuer/cost"
	"github.com/smartpassport/passport-node/issuer/db"
	"github.com/smartpassport/passport-node/issuer/price"
	"github.com/smartpassport/passport-node/issuer/storage"
	"github.com/smartpassport/passport-node/issuer/submit"
	"github.com/smartpassport/passport-node/issuer/treasury"
)

// node owns the long-lived resources of a running daemon.
type node struct {
	log     zerolog.Logger
	rpc     *svm.RPCClient
	journal *db.Journal
	cleaner *db.MintCleaner
	server  *api.Server
}

func buildNode(cfg config.Config, log zerolog.Logger) (*node, error) {
	serviceKey, _, err := loadOrCreateKey(cfg.ResolvePath(cfg.ServiceKeypairPath), log)
	if err != nil {
		return nil, fmt.Errorf("service identity: %w", err)
	}
	treasuryKey, created, err := loadOrCreateKey(cfg.ResolvePath(cfg.TreasuryKeypairPath), log)
	if err != nil {
		return nil, fmt.Errorf("treasury identity: %w", err)
	}
	if created {
		log.Warn().
			Str("path", cfg.ResolvePath(cfg.TreasuryKeypairPath)).
			Msg("new treasury keypair created; back it up, funds are unrecoverable if it is lost")
	}

	owner, err := ownerAddress(cfg)
	if err != nil {
		return nil, err
	}
	if owner.IsZero() {
		log.Warn().Msg("no treasury owner configured; withdrawals are disabled")
	}

	rpcClient, err := newRPCClient(cfg, log)
	if err != nil {
		return nil, err
	}

	journal, err := db.OpenJournal(filepath.Join(cfg.NodeHome, constant.DatabasesSubdir), cfg.DatabaseFile)
	if err != nil {
		rpcClient.Close()
		return nil, err
	}

	submitter := submit.NewSubmitter(rpcClient, rpc.CommitmentType(cfg.Commitment),
		cfg.ConfirmationTimeout(), cfg.ConfirmationPollInterval(), log)

	account, err := treasury.NewAccount(treasuryKey, owner)
	if err != nil {
		rpcClient.Close()
		_ = journal.Close()
		return nil, err
	}

	service, err := core.NewService(core.Deps{
		Estimator:     newEstimator(cfg, rpcClient, account.Address(), log),
		Composer:      compose.NewComposer(account.Address(), cfg.RoyaltyBasisPoints),
		Assembler:     assemble.NewAssembler(rpcClient, log),
		Submitter:     submitter,
		Treasury:      treasury.NewManager(account, rpcClient, submitter, journal, log),
		MetadataStore: storage.NewBundlr(cfg.BundlrURL, cfg.GatewayURL, cfg.RequestTimeout()),
		Journal:       journal,
		Health:        rpcClient,
		TreasuryOwner: owner,
		Cluster:       cfg.Cluster,
	}, log)
	if err != nil {
		rpcClient.Close()
		_ = journal.Close()
		return nil, err
	}

	server, err := api.NewServer(log, cfg.QueryServerPort, service, cfg.RateLimit)
	if err != nil {
		rpcClient.Close()
		_ = journal.Close()
		return nil, err
	}

	log.Info().
		Str("service_address", serviceKey.PublicKey().String()).
		Str("treasury_address", account.Address().String()).
		Str("cluster", cfg.Cluster).
		Strs("rpc_urls", rpcClient.Endpoints()).
		Float64("service_fee_rate", cfg.ServiceFeeRate).
		Msg("node initialized")

	return &node{
		log:     log,
		rpc:     rpcClient,
		journal: journal,
		cleaner: db.NewMintCleaner(journal, cfg.MintCleanupInterval(), cfg.MintRetention(), log),
		server:  server,
	}, nil
}

// run serves requests until ctx is cancelled.
func (n *node) run(ctx context.Context) error {
	if err := n.server.Start(); err != nil {
		n.close()
		return err
	}
	n.cleaner.Start(ctx)
	n.log.Info().Msg("passportd started")

	<-ctx.Done()

	n.log.Info().Msg("shutting down passportd")
	n.cleaner.Stop()
	if err := n.server.Stop(); err != nil {
		n.log.Error().Err(err).Msg("failed to stop API server")
	}
	return n.close()
}

func (n *node) close() error {
	n.rpc.Close()
	return n.journal.Close()
}

func newRPCClient(cfg config.Config, log zerolog.Logger) (*svm.RPCClient, error) {
	return svm.NewRPCClient(cfg.RPCURLs, rpc.CommitmentType(cfg.Commitment), log)
}

func newEstimator(cfg config.Config, rent cost.RentQuerier, feeRecipient solana.PublicKey, log zerolog.Logger) *cost.Estimator {
	var source price.Source = price.Fixed(cfg.FallbackPrice)
	if cfg.PriceSource == config.PriceSourceCoinGecko {
		source = price.NewCoinGecko(cfg.PriceAPIURL, cfg.RequestTimeout())
	}
	reference := price.NewReference(source, cfg.FallbackPrice, cfg.RequestTimeout(), log)
	return cost.NewEstimator(rent, reference, cfg.ServiceFeeRate, cfg.NetworkFeeLamports, feeRecipient, log)
}

func ownerAddress(cfg config.Config) (solana.PublicKey, error) {
	if cfg.TreasuryOwnerAddress == "" {
		return solana.PublicKey{}, nil
	}
	owner, err := solana.PublicKeyFromBase58(cfg.TreasuryOwnerAddress)
	if err != nil {
		return solana.PublicKey{}, fmt.Errorf("invalid treasury owner address %q: %w", cfg.TreasuryOwnerAddress, err)
	}
	return owner, nil
}
