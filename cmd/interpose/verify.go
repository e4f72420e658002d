package main

import (
	"errors"
	"fmt"
	"text/tabwriter"

	"github.com/fatih/color"
	"github.com/k2io/interpose"
	"github.com/k2io/interpose/internal/image"
	"github.com/k2io/interpose/internal/patchfile"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/arch/x86/x86asm"
)

var verifyTable string

var (
	colorOK     = color.New(color.FgHiGreen).SprintFunc()
	colorFailed = color.New(color.Bold, color.FgRed).SprintFunc()
	colorAbsent = color.New(color.Faint).SprintFunc()
)

var verifyCmd = &cobra.Command{
	Use:   "verify --table <patches.toml> <image>",
	Short: "Check every hook site of a patch table against a host image on disk",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		pf, err := patchfile.Load(verifyTable)
		if err != nil {
			return err
		}
		f, err := image.Open(args[0])
		if err != nil {
			return err
		}
		fp, err := f.Fingerprint()
		if err != nil {
			return err
		}
		v, err := pf.BuildTable().Lookup(fp)
		if err != nil {
			return err
		}
		log.Debug("verifying", zap.String("image", args[0]), zap.Stringer("variant", v))

		tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintf(tw, "HOOK\tSITE\tINSTRUCTION\tSTATUS\n")
		var failed int
		for _, h := range pf.Hooks {
			site := h.Sites.For(v)
			if site == 0 {
				fmt.Fprintf(tw, "%s\t-\t-\t%s\n", h.Name, colorAbsent("absent in "+v.String()))
				continue
			}
			status, inst := checkHook(f, h, site)
			if status == "ok" {
				status = colorOK(status)
			} else {
				failed++
				status = colorFailed(status)
			}
			fmt.Fprintf(tw, "%s\t0x%08X\t%s\t%s\n", h.Name, site, inst, status)
		}
		if err := tw.Flush(); err != nil {
			return err
		}
		if failed > 0 {
			return fmt.Errorf("%d of %d hooks failed verification for variant %s", failed, len(pf.Hooks), v)
		}
		return nil
	},
}

func checkHook(f *image.File, h patchfile.Hook, site uintptr) (status, disasm string) {
	code, err := f.ReadVirtual(site, interpose.JumpSize)
	if err != nil {
		return err.Error(), "-"
	}
	disasm = "?"
	if inst, err := x86asm.Decode(code, 32); err == nil {
		disasm = x86asm.IntelSyntax(inst, uint64(site), nil)
	}
	if err := interpose.VerifySite(h.Name, site, code, h.Opcode); err != nil {
		if errors.Is(err, interpose.ErrOpcodeMismatch) {
			return "opcode mismatch", disasm
		}
		return err.Error(), disasm
	}
	return "ok", disasm
}

func init() {
	verifyCmd.Flags().StringVar(&verifyTable, "table", "", "Patch description (TOML)")
	_ = verifyCmd.MarkFlagRequired("table")
}
