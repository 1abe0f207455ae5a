package flashalgo

import (
	"bytes"
	"debug/elf"
	"errors"
	"fmt"
	"os"

	log "github.com/sirupsen/logrus"
)

var (
	requiredSymbols = []string{"Init", "UnInit", "EraseSector", "ProgramPage"}
)

// ExtractFile reads and extracts the algorithm in the object file at path.
func ExtractFile(path string) (*Algo, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}
	algo, err := Extract(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return algo, nil
}

// Extract parses an ELF flash driver object.
//
// Missing required symbols yield a *MissingSymbolError, layout problems a
// *SectionError. No partial Algo is ever returned.
func Extract(data []byte) (*Algo, error) {
	f, err := elf.NewFile(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to parse ELF: %w", err)
	}
	defer func() { _ = f.Close() }()

	syms, err := readSymbols(f)
	if err != nil {
		return nil, err
	}

	algo := &Algo{}
	if err := resolveSymbols(syms, &algo.Symbols); err != nil {
		return nil, err
	}

	dev, ok := syms["FlashDevice"]
	if !ok {
		return nil, &MissingSymbolError{Name: "FlashDevice"}
	}
	algo.Info, err = decodeFlashInfo(&segments{f: f}, uint32(dev))
	if err != nil {
		return nil, err
	}

	ro, rw, zi, err := findSections(f)
	if err != nil {
		return nil, err
	}
	algo.Layout = Layout{RO: ro.Section, RW: rw.Section, ZI: zi.Section}

	algo.Blob = make([]byte, ro.Size+rw.Size+zi.Size)
	for _, s := range []progSection{ro, rw} {
		if uint32(len(s.data)) != s.Size {
			return nil, &SectionError{Reason: fmt.Sprintf("section at 0x%x has %d bytes, header says %d", s.Start, len(s.data), s.Size)}
		}
		copy(algo.Blob[s.Start:], s.data)
	}

	log.Debugf("flash algo %q: ro=%+v rw=%+v zi=%+v blob=%d bytes",
		algo.Info.Name, ro.Section, rw.Section, zi.Section, len(algo.Blob))
	return algo, nil
}

// readSymbols maps symbol names to values. The first definition of a
// duplicated name wins.
func readSymbols(f *elf.File) (map[string]uint64, error) {
	if f.Section(".symtab") == nil {
		return nil, ErrMissingSymbolTable
	}
	list, err := f.Symbols()
	if err != nil {
		if errors.Is(err, elf.ErrNoSymbols) {
			return nil, ErrMissingSymbolTable
		}
		return nil, fmt.Errorf("invalid symbol table: %w", err)
	}

	syms := make(map[string]uint64, len(list))
	for _, s := range list {
		if _, dup := syms[s.Name]; dup {
			log.Debugf("Duplicate symbol %s", s.Name)
			continue
		}
		syms[s.Name] = s.Value
	}
	return syms, nil
}

func resolveSymbols(syms map[string]uint64, out *Symbols) error {
	required := []*uint32{&out.Init, &out.UnInit, &out.EraseSector, &out.ProgramPage}
	for i, name := range requiredSymbols {
		v, ok := syms[name]
		if !ok {
			return &MissingSymbolError{Name: name}
		}
		*required[i] = uint32(v)
	}

	optional := map[string]*OptionalSymbol{
		"BlankCheck": &out.BlankCheck,
		"EraseChip":  &out.EraseChip,
		"Verify":     &out.Verify,
	}
	for name, dst := range optional {
		if v, ok := syms[name]; ok {
			*dst = Symbol(uint32(v))
		}
	}
	return nil
}

type progSection struct {
	Section
	data []byte
}

// findSections locates the RO, RW and ZI sections and validates their
// placement.
func findSections(f *elf.File) (ro, rw, zi progSection, err error) {
	wanted := []struct {
		name string
		typ  elf.SectionType
	}{
		{"PrgCode", elf.SHT_PROGBITS},
		{"PrgData", elf.SHT_PROGBITS},
		{"PrgData", elf.SHT_NOBITS},
	}
	found := make([]*elf.Section, len(wanted))

	for _, s := range f.Sections {
		for i, w := range wanted {
			if s.Name != w.name || s.Type != w.typ {
				continue
			}
			if found[i] != nil {
				return ro, rw, zi, &SectionError{Reason: fmt.Sprintf("elf contains duplicate section %s attr %s", s.Name, s.Type)}
			}
			found[i] = s
		}
	}

	if found[0] == nil {
		return ro, rw, zi, &SectionError{Reason: "RO section is missing"}
	}
	if found[1] == nil {
		return ro, rw, zi, &SectionError{Reason: "RW section is missing"}
	}

	for i, dst := range []*progSection{&ro, &rw} {
		s := found[i]
		dst.Section = Section{Start: uint32(s.Addr), Size: uint32(s.Size)}
		if dst.data, err = s.Data(); err != nil {
			return ro, rw, zi, fmt.Errorf("failed to read section %s: %w", s.Name, err)
		}
	}
	if found[2] != nil {
		zi.Section = Section{Start: uint32(found[2].Addr), Size: uint32(found[2].Size)}
	} else {
		zi.Section = Section{Start: rw.End()}
	}

	switch {
	case ro.Start != 0:
		err = &SectionError{Reason: "RO section does not start at address 0"}
	case ro.End() != rw.Start:
		err = &SectionError{Reason: "RW section does not follow RO section"}
	case rw.End() != zi.Start:
		err = &SectionError{Reason: "ZI section does not follow RW section"}
	}
	return ro, rw, zi, err
}

// segments reads the load image of an ELF file through its program
// headers, addressed by physical address.
type segments struct {
	f *elf.File
}

func (m *segments) read(addr uint32, size int) ([]byte, error) {
	lo, hi := uint64(addr), uint64(addr)+uint64(size)
	for _, p := range m.f.Progs {
		segSize := p.Memsz
		if p.Filesz < segSize {
			segSize = p.Filesz
		}
		if lo >= p.Paddr && hi <= p.Paddr+segSize {
			b := make([]byte, size)
			if _, err := p.ReadAt(b, int64(lo-p.Paddr)); err != nil {
				return nil, fmt.Errorf("failed to read segment at 0x%x: %w", p.Paddr, err)
			}
			return b, nil
		}
	}
	return nil, &ReadError{Addr: addr, Size: size}
}
