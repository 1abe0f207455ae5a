package builder

import (
	"encoding/binary"
	"fmt"

	"github.com/moffa90/go-daplink/flashalgo"
	"github.com/moffa90/go-daplink/image"
	log "github.com/sirupsen/logrus"
)

// Flash algorithm blob layout.
const (
	// BlobHeaderSize is the size of the launch header preceding the blob
	BlobHeaderSize = 32

	// StackReserve is the stack space reserved above the algorithm data
	StackReserve = 0x200

	// BufferOffset is the offset of the page buffer from the blob entry
	BufferOffset = 0xA00

	// RegionEntries is the number of entries per region class in the
	// target-config descriptor
	RegionEntries = 10

	sectorEntrySize    = 2 * 4
	programTargetWords = 14
	programTargetSize  = programTargetWords * 4
	regionEntryWords   = 5

	// version, sector table address, sector count, 2x10 regions,
	// then u32 + u16 + u8 + u8 flags
	targetConfigSize = 3*4 + 2*RegionEntries*regionEntryWords*4 + 4 + 2 + 1 + 1

	targetConfigVersion = 1
	pageEraseFlag       = 1
)

// blobHeader is the launch stub executed before any algorithm function.
var blobHeader = [BlobHeaderSize / 4]uint32{
	0xE00ABE00, 0x062D780D, 0x24084068, 0xD3000040,
	0x1E644058, 0x1C49D1FA, 0x2A001E52, 0x4770D1F2,
}

// BlobPlacement records where the flash algorithm structures were written.
type BlobPlacement struct {
	// BlobAddr is the flash address of the launch header
	BlobAddr uint32

	// BlobSize is header + algorithm + padding
	BlobSize uint32

	SectorInfoAddr    uint32
	ProgramTargetAddr uint32
	TargetConfigAddr  uint32

	// StackPointer is the initial stack pointer in target RAM
	StackPointer uint32

	// TotalSize is the size of everything placed before the CRC
	TotalSize uint32
}

// alignUp rounds v up to a multiple of align (a power of two).
func alignUp(v, align uint32) uint32 {
	return (v + align - 1) &^ (align - 1)
}

// words encodes vs as consecutive little-endian u32 values.
func words(vs ...uint32) []byte {
	b := make([]byte, 0, 4*len(vs))
	for _, v := range vs {
		b = binary.LittleEndian.AppendUint32(b, v)
	}
	return b
}

// embedFlashAlgo writes the algorithm structures just before the CRC field
// and links them from the target record.
func embedFlashAlgo(img *image.Image, record uint32, cfg Config) (*BlobPlacement, error) {
	algo := cfg.FlashAlgo
	if cfg.RAMEnd <= cfg.RAMStart {
		return nil, ErrMissingRAMRange
	}

	entry := cfg.BlobEntry
	algoSize := uint32(len(algo.Blob))
	pad := alignUp(algoSize, 4) - algoSize
	sectors := algo.Info.Sectors

	p := &BlobPlacement{BlobSize: BlobHeaderSize + algoSize + pad}
	p.TotalSize = p.BlobSize + uint32(len(sectors))*sectorEntrySize + programTargetSize + targetConfigSize

	if uint64(p.TotalSize)+image.CRCSize > uint64(img.Size()) {
		return nil, &LayoutError{
			What:   "flash algorithm",
			Addr:   img.Start,
			Size:   p.TotalSize,
			Reason: fmt.Sprintf("does not fit in 0x%X byte image", img.Size()),
		}
	}

	p.BlobAddr = img.End() + 1 - image.CRCSize - p.TotalSize
	p.SectorInfoAddr = p.BlobAddr + p.BlobSize
	p.ProgramTargetAddr = p.SectorInfoAddr + uint32(len(sectors))*sectorEntrySize
	p.TargetConfigAddr = p.ProgramTargetAddr + programTargetSize
	p.StackPointer = alignUp(entry+BlobHeaderSize+algo.Layout.RW.Start+algo.Layout.RW.Size+StackReserve, 0x100)

	log.Debugf("flash_blob offset: 0x%x", p.BlobAddr-img.Start)
	log.Debugf("sector_info offset: 0x%x", p.SectorInfoAddr-img.Start)
	log.Debugf("program_target offset: 0x%x", p.ProgramTargetAddr-img.Start)
	log.Debugf("target_cfg offset: 0x%x", p.TargetConfigAddr-img.Start)

	blob := make([]byte, 0, p.BlobSize)
	blob = append(blob, words(blobHeader[:]...)...)
	blob = append(blob, algo.Blob...)
	blob = append(blob, make([]byte, pad)...)

	sectorInfo := make([]uint32, 0, 2*len(sectors))
	for _, s := range sectors {
		sectorInfo = append(sectorInfo, s.Start+algo.Info.Start, s.Size)
	}

	fn := func(off uint32) uint32 { return off + BlobHeaderSize + entry }
	optional := func(raw uint32, ok bool) uint32 {
		if !ok {
			return 0
		}
		return fn(raw)
	}
	eraseChip, hasEraseChip := algo.Symbols.EraseChip.Addr()
	verify, hasVerify := algo.Symbols.Verify.Addr()
	programTarget := []uint32{
		fn(algo.Symbols.Init),
		fn(algo.Symbols.UnInit),
		optional(eraseChip, hasEraseChip),
		fn(algo.Symbols.EraseSector),
		fn(algo.Symbols.ProgramPage),
		optional(verify, hasVerify),
		entry + 1,                                     // breakpoint
		entry + BlobHeaderSize + algo.Layout.RW.Start, // static base
		p.StackPointer,
		entry + BufferOffset,
		entry,
		p.BlobSize,
		p.BlobAddr,
		algo.Info.PageSize,
	}

	targetConfig := make([]uint32, 0, targetConfigSize/4)
	targetConfig = append(targetConfig, targetConfigVersion, p.SectorInfoAddr, uint32(len(sectors)))
	targetConfig = append(targetConfig, algo.Info.Start, algo.Info.Start+algo.Info.Size, 1, 0, p.ProgramTargetAddr)
	targetConfig = append(targetConfig, make([]uint32, (RegionEntries-1)*regionEntryWords)...)
	targetConfig = append(targetConfig, cfg.RAMStart, cfg.RAMEnd, 0, 0, 0)
	targetConfig = append(targetConfig, make([]uint32, (RegionEntries-1)*regionEntryWords)...)
	// u32 + u16 + u8 + u8 flags, all zero
	targetConfig = append(targetConfig, 0, 0)

	writes := []struct {
		what string
		addr uint32
		data []byte
	}{
		{"flash blob", p.BlobAddr, blob},
		{"sector info", p.SectorInfoAddr, words(sectorInfo...)},
		{"program target", p.ProgramTargetAddr, words(programTarget...)},
		{"target config", p.TargetConfigAddr, words(targetConfig...)},
	}
	for _, w := range writes {
		if err := img.Put(w.addr, w.data); err != nil {
			return nil, fmt.Errorf("failed to write %s: %w", w.what, err)
		}
	}

	var flags uint32
	if algo.Symbols.EraseSector != flashalgo.NotImplemented {
		flags = pageEraseFlag
	}
	if err := img.PutUint32(record+recordFlagsOffset, flags); err != nil {
		return nil, fmt.Errorf("failed to write target record flags: %w", err)
	}
	if err := img.PutUint32(record+recordConfigOffset, p.TargetConfigAddr); err != nil {
		return nil, fmt.Errorf("failed to write target config pointer: %w", err)
	}

	return p, nil
}
