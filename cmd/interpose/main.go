package main

import (
	"os"

	"github.com/k2io/interpose"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	verbose bool
	log     = zap.NewNop()
)

var rootCmd = &cobra.Command{
	Use:          "interpose",
	Short:        "Inspect host images and build patch tables for the interpose runtime",
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if !verbose {
			return nil
		}
		interpose.SetDebug(true)
		l, err := interpose.NewLogger(interpose.LogConfig{})
		if err != nil {
			return err
		}
		log = l
		interpose.SetLogger(l)
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Log debug output to stderr")
	rootCmd.AddCommand(fingerprintCmd, symbolsCmd, verifyCmd, genCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
