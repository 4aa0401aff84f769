package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/gagliardetto/solana-go"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/smartpassport/passport-node/issuer/config"
	"github.com/smartpassport/passport-node/issuer/keys"
	"github.com/smartpassport/passport-node/issuer/logger"
)

// keysCmd returns the keys command with all subcommands
func keysCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "keys",
		Short: "Manage the service and treasury identities",
		Long: `
The keys commands manage the two identities of the node:
  service   the node's own identity
  treasury  the custodial account that collects service fees

The treasury key file is the only way to move collected fees.
If it is lost the funds are unrecoverable, so back it up after creation.
`,
	}

	cmd.AddCommand(keysShowCmd())
	cmd.AddCommand(keysCreateCmd())
	cmd.AddCommand(keysImportCmd())

	return cmd
}

// keysShowCmd prints the addresses of existing identities
func keysShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show service and treasury addresses",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadOrDefault(homeFlag)
			if err != nil {
				return err
			}
			log := logger.Init(cfg)

			for _, id := range identities(cfg) {
				key, err := keys.NewFileStore(id.path, log).Load()
				switch {
				case errors.Is(err, keys.ErrKeyNotFound):
					fmt.Fprintf(cmd.OutOrStdout(), "%-9s (not created) %s\n", id.name, id.path)
				case err != nil:
					return fmt.Errorf("%s identity: %w", id.name, err)
				default:
					fmt.Fprintf(cmd.OutOrStdout(), "%-9s %s %s\n", id.name, key.PublicKey(), id.path)
				}
			}
			return nil
		},
	}
}

// keysCreateCmd creates any identity that does not exist yet
func keysCreateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "create",
		Short: "Create missing service and treasury keypairs",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadOrDefault(homeFlag)
			if err != nil {
				return err
			}
			log := logger.Init(cfg)

			for _, id := range identities(cfg) {
				key, created, err := loadOrCreateKey(id.path, log)
				if err != nil {
					return fmt.Errorf("%s identity: %w", id.name, err)
				}
				status := "exists"
				if created {
					status = "created"
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%-9s %s %s (%s)\n", id.name, key.PublicKey(), id.path, status)
			}
			return nil
		},
	}
}

// keysImportCmd stores an existing keypair as the service or treasury identity
func keysImportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "import <service|treasury> <key-file>",
		Short: "Import an existing keypair as an identity",
		Long: `
Import reads a secret key from key-file, either the JSON byte array written
by solana-keygen or a base58 string, and stores it as the given identity.
An identity that already exists is never overwritten.
`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadOrDefault(homeFlag)
			if err != nil {
				return err
			}
			log := logger.Init(cfg)

			var target *identity
			ids := identities(cfg)
			for i := range ids {
				if ids[i].name == args[0] {
					target = &ids[i]
					break
				}
			}
			if target == nil {
				return fmt.Errorf("unknown identity %q, expected service or treasury", args[0])
			}

			data, err := os.ReadFile(filepath.Clean(args[1]))
			if err != nil {
				return fmt.Errorf("failed to read key file: %w", err)
			}
			key, err := keys.ParseSecret(data)
			if err != nil {
				return fmt.Errorf("invalid key file %s: %w", args[1], err)
			}
			if err := keys.NewFileStore(target.path, log).Import(key); err != nil {
				return fmt.Errorf("%s identity: %w", target.name, err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "%-9s %s %s (imported)\n", target.name, key.PublicKey(), target.path)
			return nil
		},
	}
}

type identity struct {
	name string
	path string
}

func identities(cfg config.Config) []identity {
	return []identity{
		{name: "service", path: cfg.ResolvePath(cfg.ServiceKeypairPath)},
		{name: "treasury", path: cfg.ResolvePath(cfg.TreasuryKeypairPath)},
	}
}

func loadOrCreateKey(path string, log zerolog.Logger) (solana.PrivateKey, bool, error) {
	return keys.LoadOrCreate(keys.NewFileStore(path, log), log)
}

// treasuryAddress returns the treasury address without creating a key.
func treasuryAddress(cfg config.Config, log zerolog.Logger) (solana.PublicKey, error) {
	key, err := keys.NewFileStore(cfg.ResolvePath(cfg.TreasuryKeypairPath), log).Load()
	if errors.Is(err, keys.ErrKeyNotFound) {
		return solana.PublicKey{}, nil
	}
	if err != nil {
		return solana.PublicKey{}, err
	}
	return key.PublicKey(), nil
}
