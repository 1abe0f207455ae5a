package builder

import "github.com/moffa90/go-daplink/flashalgo"

// DefaultBlobEntry is the default target RAM address the flash algorithm
// blob is loaded to.
const DefaultBlobEntry = 0x20000000

// Config holds the build configuration.
type Config struct {
	// BoardID is written as four hex digits into the target record
	BoardID *uint16

	// FamilyID is written as u16 into the target record
	FamilyID *uint16

	// FlashAlgo is embedded when non-nil
	FlashAlgo *flashalgo.Algo

	// RAMStart and RAMEnd describe the target RAM region
	RAMStart uint32
	RAMEnd   uint32

	// BlobEntry is where the algorithm runs in target RAM
	BlobEntry uint32

	// LegacyTable selects the images that get a legacy variant
	LegacyTable []LegacyOffset
}

func defaultConfig() Config {
	return Config{
		BlobEntry:   DefaultBlobEntry,
		LegacyTable: DefaultLegacyTable,
	}
}

// Option is a functional option for Assemble.
type Option func(*Config)

// WithBoardID sets the board id.
//
// Example:
//
//	res, err := builder.Assemble(img, builder.WithBoardID(0x0240))
func WithBoardID(id uint16) Option {
	return func(c *Config) {
		c.BoardID = &id
	}
}

// WithFamilyID sets the family id.
func WithFamilyID(id uint16) Option {
	return func(c *Config) {
		c.FamilyID = &id
	}
}

// WithFlashAlgo embeds a flash algorithm for a target whose RAM spans
// [ramStart, ramEnd].
//
// Example:
//
//	algo, _ := flashalgo.ExtractFile("target.axf")
//	res, err := builder.Assemble(img,
//	    builder.WithFlashAlgo(algo, 0x20000000, 0x20010000),
//	)
func WithFlashAlgo(algo *flashalgo.Algo, ramStart, ramEnd uint32) Option {
	return func(c *Config) {
		c.FlashAlgo = algo
		c.RAMStart = ramStart
		c.RAMEnd = ramEnd
	}
}

// WithBlobEntry sets the target RAM address the algorithm is loaded to.
func WithBlobEntry(addr uint32) Option {
	return func(c *Config) {
		c.BlobEntry = addr
	}
}

// WithLegacyTable replaces the legacy offset table. A nil or empty table
// disables legacy variants.
func WithLegacyTable(table []LegacyOffset) Option {
	return func(c *Config) {
		c.LegacyTable = table
	}
}
