package core

import "fmt"

const mainnetCluster = "mainnet-beta"

// ExplorerURL links a transaction signature on the Solana explorer.
func ExplorerURL(signature, cluster string) string {
	if cluster == "" || cluster == mainnetCluster {
		return fmt.Sprintf("https://explorer.solana.com/tx/%s", signature)
	}
	return fmt.Sprintf("https://explorer.solana.com/tx/%s?cluster=%s", signature, cluster)
}
