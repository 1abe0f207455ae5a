package flashalgo

import (
	"fmt"
	"strings"
)

// NotImplemented is the value written in place of an optional function
// the algorithm does not provide.
const NotImplemented = 0xFFFFFFFF

// OptionalSymbol is the address of a function that an algorithm may omit.
type OptionalSymbol struct {
	addr uint32
	ok   bool
}

// Symbol returns a present OptionalSymbol at addr.
func Symbol(addr uint32) OptionalSymbol {
	return OptionalSymbol{addr: addr, ok: true}
}

// Addr returns the symbol address and whether the symbol is present.
func (s OptionalSymbol) Addr() (uint32, bool) {
	return s.addr, s.ok
}

// Raw returns the address, or NotImplemented when the symbol is absent.
func (s OptionalSymbol) Raw() uint32 {
	if !s.ok {
		return NotImplemented
	}
	return s.addr
}

func (s OptionalSymbol) String() string {
	if !s.ok {
		return "absent"
	}
	return fmt.Sprintf("0x%08x", s.addr)
}

// Symbols holds the blob relative entry points of the algorithm.
type Symbols struct {
	Init        uint32
	UnInit      uint32
	EraseSector uint32
	ProgramPage uint32

	BlankCheck OptionalSymbol
	EraseChip  OptionalSymbol
	Verify     OptionalSymbol
}

// Section is an address range inside the algorithm blob.
type Section struct {
	Start uint32
	Size  uint32
}

// End returns the first address after the section.
func (s Section) End() uint32 {
	return s.Start + s.Size
}

// Layout is the placement of the code, data and zero-init sections.
type Layout struct {
	RO Section
	RW Section
	ZI Section
}

// Algo is a flash algorithm ready to be embedded in a firmware image.
type Algo struct {
	// Info is the decoded FlashDevice record
	Info FlashInfo

	// Symbols are the function offsets relative to the blob start
	Symbols Symbols

	// Layout describes the sections making up Blob
	Layout Layout

	// Blob is code and data with room for zero-init data, len = RO+RW+ZI
	Blob []byte
}

// FormatBlob renders the blob as comma separated little-endian 32-bit
// words, wordsPerLine per line, padding the blob with zeros to a multiple
// of four bytes.
func (a *Algo) FormatBlob(wordsPerLine int) string {
	if wordsPerLine <= 0 {
		wordsPerLine = 8
	}
	blob := a.Blob
	if pad := len(blob) % 4; pad != 0 {
		blob = append(append([]byte(nil), blob...), make([]byte, 4-pad)...)
	}

	var b strings.Builder
	for i := 0; i < len(blob); i += 4 {
		if i > 0 {
			if (i/4)%wordsPerLine == 0 {
				b.WriteString(",\n")
			} else {
				b.WriteString(", ")
			}
		}
		w := uint32(blob[i]) | uint32(blob[i+1])<<8 | uint32(blob[i+2])<<16 | uint32(blob[i+3])<<24
		fmt.Fprintf(&b, "0x%08x", w)
	}
	return b.String()
}
