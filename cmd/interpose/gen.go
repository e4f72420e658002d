package main

import (
	"bytes"
	"os"

	"github.com/k2io/interpose/internal/patchfile"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var genOutput string

var genCmd = &cobra.Command{
	Use:   "gen <patches.toml>",
	Short: "Generate the Go patch table from a patch description",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		pf, err := patchfile.Load(args[0])
		if err != nil {
			return err
		}
		var buf bytes.Buffer
		if err := pf.Generate(&buf); err != nil {
			return err
		}
		if genOutput == "" || genOutput == "-" {
			_, err = cmd.OutOrStdout().Write(buf.Bytes())
			return err
		}
		log.Debug("writing patch table", zap.String("output", genOutput), zap.Int("hooks", len(pf.Hooks)))
		return os.WriteFile(genOutput, buf.Bytes(), 0o644)
	},
}

func init() {
	genCmd.Flags().StringVarP(&genOutput, "output", "o", "", "Output file (default stdout)")
}
