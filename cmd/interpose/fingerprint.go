package main

import (
	"fmt"
	"sort"
	"strings"

	"github.com/k2io/interpose/internal/image"
	"github.com/k2io/interpose/internal/patchfile"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	fingerprintTable string
	symbolsFilter    string
)

var fingerprintCmd = &cobra.Command{
	Use:   "fingerprint <image>",
	Short: "Print the build fingerprint of a host image",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		f, err := image.Open(args[0])
		if err != nil {
			return err
		}
		fp, err := f.Fingerprint()
		if err != nil {
			return err
		}
		log.Debug("fingerprinted", zap.String("image", args[0]), zap.String("format", f.Format()))
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "0x%08X\t%s\n", fp, f.Format())
		if fingerprintTable == "" {
			return nil
		}
		pf, err := patchfile.Load(fingerprintTable)
		if err != nil {
			return err
		}
		v, err := pf.BuildTable().Lookup(fp)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "variant %s\n", v)
		return nil
	},
}

var symbolsCmd = &cobra.Command{
	Use:   "symbols <image>",
	Short: "List the symbols of a host image",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		f, err := image.Open(args[0])
		if err != nil {
			return err
		}
		syms, err := f.Symbols()
		if err != nil {
			return err
		}
		names := make([]string, 0, len(syms))
		for name := range syms {
			if name != "" && strings.Contains(name, symbolsFilter) {
				names = append(names, name)
			}
		}
		sort.Strings(names)
		out := cmd.OutOrStdout()
		for _, name := range names {
			fmt.Fprintf(out, "0x%08X\t%s\n", syms[name], name)
		}
		return nil
	},
}

func init() {
	fingerprintCmd.Flags().StringVar(&fingerprintTable, "table", "", "Patch description used to name the variant")
	symbolsCmd.Flags().StringVar(&symbolsFilter, "filter", "", "Only list symbols containing this text")
}
