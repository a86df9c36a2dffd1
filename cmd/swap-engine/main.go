package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "swap-engine",
		Short:         "Concentrated-liquidity quoting and swap routing",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().String("config", "./config.yaml", "путь к конфигу")
	root.AddCommand(newServeCmd(), newQuoteCmd(), newFeeTiersCmd(), newTaxTokensCmd())
	return root
}
