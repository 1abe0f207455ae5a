package builder

import (
	"fmt"

	"github.com/moffa90/go-daplink/image"
	log "github.com/sirupsen/logrus"
)

// Image layout offsets.
const (
	// TargetInfoOffset is the offset of the target record pointer
	TargetInfoOffset = 13 * 4

	familyIDOffset     = 2
	boardIDOffset      = 4
	recordFlagsOffset  = 12
	recordConfigOffset = 16

	// minImageSize covers the vector table checksum word and the CRC
	minImageSize = image.VectorChecksumOffset + 4 + image.CRCSize
)

// Artifact is a finished update image with a valid trailing CRC.
type Artifact struct {
	Image *image.Image
	CRC   uint32
}

// Bytes returns the artifact content.
func (a *Artifact) Bytes() []byte {
	return a.Image.Data
}

// Verify checks the trailing CRC.
func (a *Artifact) Verify() error {
	return image.VerifyCRC(a.Image)
}

// Result is the output of Assemble.
type Result struct {
	// Artifact is the primary update image
	Artifact *Artifact

	// VectorChecksum is the value written at offset 0x1C
	VectorChecksum uint32

	// Blob is the flash algorithm placement, nil when none was embedded
	Blob *BlobPlacement

	// Legacy is set when the image start is in the legacy table
	Legacy *LegacyArtifact
}

// Assemble builds an update artifact from img. img is not modified.
//
// Any error aborts the build; no partial artifact is returned.
func Assemble(img *image.Image, opts ...Option) (*Result, error) {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	if img.Size() < minImageSize {
		return nil, fmt.Errorf("%w: %d bytes, need at least %d", ErrImageTooSmall, img.Size(), minImageSize)
	}
	out := img.Clone()
	res := &Result{}

	csum, err := image.VectorChecksum(out.Data)
	if err != nil {
		return nil, err
	}
	if err := out.PutUint32(out.Start+image.VectorChecksumOffset, csum); err != nil {
		return nil, fmt.Errorf("failed to write vector checksum: %w", err)
	}
	res.VectorChecksum = csum

	if cfg.BoardID != nil || cfg.FamilyID != nil || cfg.FlashAlgo != nil {
		record, err := out.Uint32(out.Start + TargetInfoOffset)
		if err != nil {
			return nil, fmt.Errorf("failed to read target record pointer: %w", err)
		}
		log.Debugf("board_info offset: 0x%x", record-out.Start)

		if err := patchIdentity(out, record, cfg); err != nil {
			return nil, err
		}
		if cfg.FlashAlgo != nil {
			res.Blob, err = embedFlashAlgo(out, record, cfg)
			if err != nil {
				return nil, err
			}
		}
	}

	crc, err := out.SealCRC()
	if err != nil {
		return nil, err
	}
	res.Artifact = &Artifact{Image: out, CRC: crc}
	log.Debugf("Start 0x%x, Length 0x%x, CRC32 0x%08x", out.Start, out.Size(), crc)

	if pad, ok := lookupLegacy(cfg.LegacyTable, out.Start); ok {
		res.Legacy, err = buildLegacy(res.Artifact, pad)
		if err != nil {
			return nil, err
		}
	}

	return res, nil
}

func patchIdentity(img *image.Image, record uint32, cfg Config) error {
	if cfg.FamilyID != nil {
		if err := img.PutUint16(record+familyIDOffset, *cfg.FamilyID); err != nil {
			return fmt.Errorf("failed to write family id: %w", err)
		}
	}
	if cfg.BoardID != nil {
		id := fmt.Sprintf("%04X", *cfg.BoardID)
		if err := img.Put(record+boardIDOffset, []byte(id)); err != nil {
			return fmt.Errorf("failed to write board id: %w", err)
		}
	}
	return nil
}
