package main

import (
	"github.com/spf13/cobra"

	"github.com/smartpassport/passport-node/issuer/constant"
)

var homeFlag string

func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:          "passportd",
		Short:        "Product passport NFT issuance node",
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().StringVar(&homeFlag, "home", constant.DefaultNodeHome, "Node home directory")

	InitRootCmd(rootCmd) // add subcommands like `start` and `version`

	return rootCmd
}
