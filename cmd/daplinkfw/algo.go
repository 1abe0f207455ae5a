package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/moffa90/go-daplink/flashalgo"
)

func (a *app) algoCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "algo INPUT",
		Short: "Extract a flash algorithm from an ELF, AXF or FLM file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runAlgo(cmd, args[0])
		},
	}
	cmd.Flags().String("output", "", "write the blob words to this file instead of stdout")
	cmd.Flags().Int("words-per-line", 8, "blob words per output line")
	return cmd
}

func (a *app) runAlgo(cmd *cobra.Command, input string) error {
	data, err := readFile(a, input)
	if err != nil {
		return err
	}
	algo, err := flashalgo.Extract(data)
	if err != nil {
		return fmt.Errorf("%s: %w", input, err)
	}

	out := cmd.OutOrStdout()
	printf(out, "%s", algo.Info)
	s := algo.Symbols
	printf(out, "Symbols:\n")
	printf(out, "  Init=0x%08x\n  UnInit=0x%08x\n  EraseSector=0x%08x\n  ProgramPage=0x%08x\n",
		s.Init, s.UnInit, s.EraseSector, s.ProgramPage)
	printf(out, "  BlankCheck=%s\n  EraseChip=%s\n  Verify=%s\n", s.BlankCheck, s.EraseChip, s.Verify)
	l := algo.Layout
	printf(out, "Sections:\n  RO 0x%08x+0x%x\n  RW 0x%08x+0x%x\n  ZI 0x%08x+0x%x\n",
		l.RO.Start, l.RO.Size, l.RW.Start, l.RW.Size, l.ZI.Start, l.ZI.Size)

	blob := algo.FormatBlob(a.v.GetInt(key(cmd, "words-per-line")))
	path := a.v.GetString(key(cmd, "output"))
	if path == "" {
		printf(out, "Blob:\n")
		_, err := io.WriteString(out, blob+"\n")
		return err
	}
	if !strings.HasSuffix(blob, "\n") {
		blob += "\n"
	}
	return afero.WriteFile(a.fs, path, []byte(blob), 0o644)
}

func readFile(a *app, path string) ([]byte, error) {
	data, err := afero.ReadFile(a.fs, path)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}
	return data, nil
}
