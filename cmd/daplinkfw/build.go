package main

import (
	"fmt"
	"path/filepath"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/moffa90/go-daplink/builder"
	"github.com/moffa90/go-daplink/flashalgo"
	"github.com/moffa90/go-daplink/image"
)

func (a *app) buildCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "build INPUT OUTPUT",
		Short: "Build an update image with board id, family id, flash algorithm and CRC",
		Long: `Build reads a linked hex or bin image and writes the update artifacts
<OUTPUT>[-<board id>][-<family id>][-<bin offset>] with .hex, .bin, .txt
and .c extensions, plus legacy variants for the interface start addresses
in the legacy table. The table can be replaced from the config file:

  build:
    legacy:
      - {start: 0x8000, pad_start: 0x5000}`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runBuild(cmd, args[0], args[1])
		},
	}
	f := cmd.Flags()
	f.String("board-id", "", "board id in hex")
	f.String("family-id", "", "family id in hex")
	f.String("bin-offset", "", "load address in hex of a bin input")
	f.String("flash-algo-file", "", "ELF, AXF or FLM file to extract the flash algorithm from")
	f.String("target-ram-start", "", "lowest address of target RAM in hex")
	f.String("target-ram-end", "", "highest address of target RAM in hex")
	f.String("flash-blob-entry", "0x20000000", "entry point of the flash algorithm in target RAM")
	return cmd
}

func (a *app) runBuild(cmd *cobra.Command, input, output string) error {
	v := a.v
	boardID := v.GetString(key(cmd, "board-id"))
	familyID := v.GetString(key(cmd, "family-id"))
	binOffset := v.GetString(key(cmd, "bin-offset"))

	format := image.FormatFromPath(input)
	var offset uint32
	if binOffset != "" {
		if format != image.FormatBinary {
			return fmt.Errorf("--bin-offset only applies to bin input")
		}
		n, err := parseHex(binOffset, 32)
		if err != nil {
			return fmt.Errorf("--bin-offset: %w", err)
		}
		offset = uint32(n)
	}

	f, err := a.fs.Open(input)
	if err != nil {
		return err
	}
	img, err := image.ParseReader(f, format, offset)
	_ = f.Close()
	if err != nil {
		return fmt.Errorf("%s: %w", input, err)
	}

	var opts []builder.Option
	if boardID != "" {
		n, err := parseHex(boardID, 16)
		if err != nil {
			return fmt.Errorf("--board-id: %w", err)
		}
		opts = append(opts, builder.WithBoardID(uint16(n)))
	}
	if familyID != "" {
		n, err := parseHex(familyID, 16)
		if err != nil {
			return fmt.Errorf("--family-id: %w", err)
		}
		opts = append(opts, builder.WithFamilyID(uint16(n)))
	}
	if path := v.GetString(key(cmd, "flash-algo-file")); path != "" {
		algoOpts, err := a.flashAlgoOptions(cmd, path)
		if err != nil {
			return err
		}
		opts = append(opts, algoOpts...)
	}
	if k := key(cmd, "legacy"); v.IsSet(k) {
		var table []builder.LegacyOffset
		if err := v.UnmarshalKey(k, &table); err != nil {
			return fmt.Errorf("legacy table: %w", err)
		}
		opts = append(opts, builder.WithLegacyTable(table))
	}

	res, err := builder.Assemble(img, opts...)
	if err != nil {
		return err
	}

	base := builder.OutputBase(filepath.Base(output), boardID, familyID, binOffset)
	files, err := res.WriteFs(a.fs, filepath.Dir(output), base)
	if err != nil {
		return err
	}

	art := res.Artifact.Image
	log.WithFields(log.Fields{
		"start":  fmt.Sprintf("0x%x", art.Start),
		"length": fmt.Sprintf("0x%x", art.Size()),
		"crc32":  fmt.Sprintf("0x%08x", res.Artifact.CRC),
	}).Info("image built")
	if res.Blob != nil {
		log.Infof("flash algorithm at 0x%08x, target config at 0x%08x",
			res.Blob.BlobAddr, res.Blob.TargetConfigAddr)
	}
	for _, name := range files {
		printf(cmd.OutOrStdout(), "%s\n", name)
	}
	return nil
}

func (a *app) flashAlgoOptions(cmd *cobra.Command, path string) ([]builder.Option, error) {
	v := a.v
	ramStart, ramEnd := v.GetString(key(cmd, "target-ram-start")), v.GetString(key(cmd, "target-ram-end"))
	if ramStart == "" || ramEnd == "" {
		return nil, fmt.Errorf("--target-ram-start and --target-ram-end are required with --flash-algo-file")
	}
	start, err := parseHex(ramStart, 32)
	if err != nil {
		return nil, fmt.Errorf("--target-ram-start: %w", err)
	}
	end, err := parseHex(ramEnd, 32)
	if err != nil {
		return nil, fmt.Errorf("--target-ram-end: %w", err)
	}
	entry, err := parseHex(v.GetString(key(cmd, "flash-blob-entry")), 32)
	if err != nil {
		return nil, fmt.Errorf("--flash-blob-entry: %w", err)
	}

	data, err := readFile(a, path)
	if err != nil {
		return nil, err
	}
	algo, err := flashalgo.Extract(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return []builder.Option{
		builder.WithFlashAlgo(algo, uint32(start), uint32(end)),
		builder.WithBlobEntry(uint32(entry)),
	}, nil
}
